package handlers

import (
	"errors"

	"github.com/gin-gonic/gin"

	"vmpanel/internal/api/middleware"
	"vmpanel/internal/gotrue"
	"vmpanel/internal/models"
	"vmpanel/internal/services"
)

type AuthHandler struct {
	authService *services.AuthService
	identity    services.Identity
}

func NewAuthHandler(authService *services.AuthService, identity services.Identity) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		identity:    identity,
	}
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
}

type LoginResponse struct {
	AccessToken string       `json:"access_token"`
	TokenType   string       `json:"token_type"`
	ExpiresIn   int          `json:"expires_in"`
	User        *models.User `json:"user"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

type PasswordResetRequest struct {
	Email string `json:"email" binding:"required,email"`
}

type ChangePasswordRequest struct {
	NewPassword string `json:"new_password" binding:"required,min=8"`
}

// Login authenticates via GoTrue and returns the provider token bundle
// together with the local user record, creating it on first login
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(400, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}

	token, user, err := h.authService.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, gotrue.ErrUnavailable) {
			c.JSON(503, gin.H{"error": "Authentication service unavailable"})
			return
		}
		if errors.Is(err, gotrue.ErrInvalidCredentials) {
			c.JSON(401, gin.H{"error": "Invalid credentials"})
			return
		}
		c.JSON(500, gin.H{"error": "Login failed"})
		return
	}

	tokenType := token.TokenType
	if tokenType == "" {
		tokenType = "bearer"
	}

	c.JSON(200, LoginResponse{
		AccessToken: token.AccessToken,
		TokenType:   tokenType,
		ExpiresIn:   token.ExpiresIn,
		User:        user,
	})
}

// Refresh exchanges a refresh token for a new token bundle
func (h *AuthHandler) Refresh(c *gin.Context) {
	var req RefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(400, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}

	token, err := h.identity.RefreshToken(c.Request.Context(), req.RefreshToken)
	if err != nil {
		if errors.Is(err, gotrue.ErrUnavailable) {
			c.JSON(503, gin.H{"error": "Authentication service unavailable"})
			return
		}
		c.JSON(401, gin.H{"error": "Invalid refresh token"})
		return
	}

	c.JSON(200, token)
}

// RequestPasswordReset asks GoTrue to send a recovery email. The response
// is the same whether or not the account exists.
func (h *AuthHandler) RequestPasswordReset(c *gin.Context) {
	var req PasswordResetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(400, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}

	if err := h.identity.RequestPasswordReset(c.Request.Context(), req.Email); err != nil {
		c.JSON(503, gin.H{"error": "Authentication service unavailable"})
		return
	}

	c.JSON(200, gin.H{"message": "Password reset email sent if account exists"})
}

// ChangePassword forwards the caller's token to GoTrue with the new password
func (h *AuthHandler) ChangePassword(c *gin.Context) {
	var req ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(400, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}

	accessToken := c.GetString("access_token")

	if err := h.identity.ChangePassword(c.Request.Context(), accessToken, req.NewPassword); err != nil {
		if errors.Is(err, gotrue.ErrUnavailable) {
			c.JSON(503, gin.H{"error": "Authentication service unavailable"})
			return
		}
		c.JSON(400, gin.H{"error": "Password change failed"})
		return
	}

	c.JSON(200, gin.H{"message": "Password changed successfully"})
}

// Me returns the current authenticated user
func (h *AuthHandler) Me(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		c.JSON(401, gin.H{"error": "Not authenticated"})
		return
	}

	c.JSON(200, user)
}
