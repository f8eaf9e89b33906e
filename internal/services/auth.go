package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
	"gorm.io/gorm"

	"vmpanel/internal/gotrue"
	"vmpanel/internal/models"
)

var (
	ErrTokenExpired       = errors.New("token has expired")
	ErrTokenInvalid       = errors.New("invalid token")
	ErrUserNotProvisioned = errors.New("authenticated identity has no local user record")
)

// Claims are the token claims this service cares about.
type Claims struct {
	UserID string
	Email  string
}

// AuthService verifies GoTrue-issued bearer tokens and handles the login
// flow against the external auth service.
type AuthService struct {
	db        *gorm.DB
	identity  Identity
	jwtSecret []byte
}

func NewAuthService(db *gorm.DB, identity Identity, jwtSecret string) *AuthService {
	return &AuthService{
		db:        db,
		identity:  identity,
		jwtSecret: []byte(jwtSecret),
	}
}

// VerifyToken validates the signature and expiry of a GoTrue access token
// and extracts the subject id and email claims
func (s *AuthService) VerifyToken(tokenString string) (*Claims, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.jwtSecret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenInvalid
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, ErrTokenInvalid
	}

	sub, _ := claims["sub"].(string)
	email, _ := claims["email"].(string)
	if sub == "" || email == "" {
		return nil, ErrTokenInvalid
	}

	return &Claims{UserID: sub, Email: email}, nil
}

// ResolveUser loads the local user record for verified token claims.
// A valid token with no matching row is an integrity gap, not a login path;
// bearer resolution never creates users.
func (s *AuthService) ResolveUser(claims *Claims) (*models.User, error) {
	var user models.User
	if err := s.db.Where("id = ?", claims.UserID).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotProvisioned
		}
		return nil, err
	}
	return &user, nil
}

// Login authenticates against GoTrue and gets or creates the local user
// record keyed by the provider's subject id
func (s *AuthService) Login(ctx context.Context, email, password string) (*gotrue.TokenResponse, *models.User, error) {
	token, err := s.identity.Login(ctx, email, password)
	if err != nil {
		return nil, nil, err
	}

	if token.User.ID == "" || token.User.Email == "" {
		return nil, nil, fmt.Errorf("invalid authentication response from auth service")
	}

	var user models.User
	err = s.db.Where("id = ?", token.User.ID).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		user = models.User{
			ID:      token.User.ID,
			Email:   token.User.Email,
			IsAdmin: false,
		}
		if err := s.db.Create(&user).Error; err != nil {
			return nil, nil, err
		}
	} else if err != nil {
		return nil, nil, err
	}

	return token, &user, nil
}
