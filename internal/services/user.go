package services

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"vmpanel/internal/models"
)

var (
	ErrUserNotFound = errors.New("user not found")
	ErrUserExists   = errors.New("user already exists")
)

// UserService manages local user records. Account credentials live in
// GoTrue; this service only mirrors identities locally.
type UserService struct {
	db       *gorm.DB
	identity Identity
}

func NewUserService(db *gorm.DB, identity Identity) *UserService {
	return &UserService{db: db, identity: identity}
}

// Create registers the account with GoTrue and mirrors it locally
func (s *UserService) Create(ctx context.Context, email, password string, isAdmin bool) (*models.User, error) {
	signup, err := s.identity.Signup(ctx, email, password)
	if err != nil {
		return nil, err
	}

	userID := signup.UserID()
	if userID == "" {
		return nil, fmt.Errorf("auth service returned no user id")
	}

	user := &models.User{
		ID:      userID,
		Email:   email,
		IsAdmin: isAdmin,
	}
	if err := s.db.Create(user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrUserExists
		}
		return nil, err
	}

	return user, nil
}

// List returns all local users
func (s *UserService) List() ([]models.User, error) {
	var users []models.User
	if err := s.db.Order("created_at").Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

// Get returns one user by id
func (s *UserService) Get(id string) (*models.User, error) {
	var user models.User
	if err := s.db.Where("id = ?", id).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

// Delete removes a user, their VM assignment, and detaches their audit rows.
// Audit rows keep the denormalized email; only the user reference is nulled.
// Done explicitly in one transaction so the semantics hold regardless of
// database-level FK enforcement.
func (s *UserService) Delete(id string) (*models.User, error) {
	var user models.User
	if err := s.db.Where("id = ?", id).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", id).Delete(&models.VMAssignment{}).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.AuditLog{}).Where("user_id = ?", id).
			Update("user_id", nil).Error; err != nil {
			return err
		}
		return tx.Delete(&user).Error
	})
	if err != nil {
		return nil, err
	}

	return &user, nil
}

// Count returns the number of local users
func (s *UserService) Count() (int64, error) {
	var count int64
	if err := s.db.Model(&models.User{}).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
