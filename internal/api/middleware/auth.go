package middleware

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"vmpanel/internal/logger"
	"vmpanel/internal/models"
	"vmpanel/internal/services"
)

// AuthMiddleware verifies the bearer token against the GoTrue shared secret
// and resolves it to the local user record.
func AuthMiddleware(authService *services.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.JSON(401, gin.H{"error": "Authorization header required"})
			c.Abort()
			return
		}

		// Extract token from "Bearer <token>"
		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.JSON(401, gin.H{"error": "Invalid authorization header format"})
			c.Abort()
			return
		}

		claims, err := authService.VerifyToken(parts[1])
		if err != nil {
			if errors.Is(err, services.ErrTokenExpired) {
				c.JSON(401, gin.H{"error": "Token has expired"})
			} else {
				c.JSON(401, gin.H{"error": "Invalid token"})
			}
			c.Abort()
			return
		}

		user, err := authService.ResolveUser(claims)
		if err != nil {
			// A valid token with no local record is an integrity gap
			// between GoTrue and this database, not an auth failure.
			if errors.Is(err, services.ErrUserNotProvisioned) {
				logger.Error("valid token for unprovisioned user",
					zap.String("email", claims.Email))
				c.JSON(500, gin.H{"error": "User record missing for authenticated identity"})
			} else {
				c.JSON(500, gin.H{"error": "Failed to resolve user"})
			}
			c.Abort()
			return
		}

		c.Set("user", user)
		c.Set("access_token", parts[1])

		c.Next()
	}
}

// RequireAdmin gates a route group to admin users
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, exists := c.Get("user")
		if !exists {
			c.JSON(401, gin.H{"error": "Unauthorized"})
			c.Abort()
			return
		}

		if !user.(*models.User).IsAdmin {
			c.JSON(403, gin.H{"error": "Admin privileges required"})
			c.Abort()
			return
		}

		c.Next()
	}
}

// CurrentUser pulls the authenticated user out of the request context
func CurrentUser(c *gin.Context) (*models.User, bool) {
	user, exists := c.Get("user")
	if !exists {
		return nil, false
	}
	u, ok := user.(*models.User)
	return u, ok
}
