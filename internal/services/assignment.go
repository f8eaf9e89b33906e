package services

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"vmpanel/internal/models"
	"vmpanel/internal/proxmox"
)

var (
	ErrAlreadyAssigned    = errors.New("user already has a VM assigned")
	ErrAssignmentNotFound = errors.New("assignment not found")
	ErrAssignedVMNotFound = errors.New("vm not found in hypervisor")
)

// AssignmentService manages the one-VM-per-user assignment table.
type AssignmentService struct {
	db *gorm.DB
	hv Hypervisor
}

func NewAssignmentService(db *gorm.DB, hv Hypervisor) *AssignmentService {
	return &AssignmentService{db: db, hv: hv}
}

// Create assigns a VM to a user after verifying the user exists, holds no
// other assignment, and the VM exists in the hypervisor. The VM name is
// snapshotted at creation time and not kept in sync afterwards.
func (s *AssignmentService) Create(ctx context.Context, userID string, vmID int) (*models.VMAssignment, error) {
	var user models.User
	if err := s.db.Where("id = ?", userID).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	var existing models.VMAssignment
	if err := s.db.Where("user_id = ?", userID).First(&existing).Error; err == nil {
		return nil, fmt.Errorf("%w: VM %d", ErrAlreadyAssigned, existing.VMID)
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	status, err := s.hv.Status(ctx, vmID)
	if err != nil {
		if errors.Is(err, proxmox.ErrUnreachable) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: VM %d: %v", ErrAssignedVMNotFound, vmID, err)
	}

	assignment := &models.VMAssignment{
		UserID: userID,
		VMID:   vmID,
		VMName: status.Name,
	}
	if err := s.db.Create(assignment).Error; err != nil {
		// The unique index on user_id closes the race between two
		// concurrent creates for the same user.
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrAlreadyAssigned
		}
		return nil, err
	}

	assignment.User = user
	return assignment, nil
}

// List returns all assignments with their owning user
func (s *AssignmentService) List() ([]models.VMAssignment, error) {
	var assignments []models.VMAssignment
	if err := s.db.Preload("User").Order("created_at").Find(&assignments).Error; err != nil {
		return nil, err
	}
	return assignments, nil
}

// GetByUser returns the user's assignment, or nil when they have none
func (s *AssignmentService) GetByUser(userID string) (*models.VMAssignment, error) {
	var assignment models.VMAssignment
	if err := s.db.Where("user_id = ?", userID).First(&assignment).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &assignment, nil
}

// GetByUserAndVM returns the assignment matching both user and VM, or nil
func (s *AssignmentService) GetByUserAndVM(userID string, vmID int) (*models.VMAssignment, error) {
	var assignment models.VMAssignment
	err := s.db.Where("user_id = ? AND vm_id = ?", userID, vmID).First(&assignment).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &assignment, nil
}

// Delete removes an assignment by id
func (s *AssignmentService) Delete(id uint) error {
	result := s.db.Delete(&models.VMAssignment{}, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrAssignmentNotFound
	}
	return nil
}
