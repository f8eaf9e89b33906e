package routes

import (
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"vmpanel/internal/api/handlers"
	"vmpanel/internal/api/middleware"
	"vmpanel/internal/config"
	"vmpanel/internal/services"
)

// SetupRoutes wires services and handlers onto the router. The hypervisor
// and identity clients are passed in so tests can substitute doubles.
func SetupRoutes(r *gin.Engine, cfg *config.Config, db *gorm.DB, hv services.Hypervisor, identity services.Identity) {
	// Initialize services
	authService := services.NewAuthService(db, identity, cfg.GoTrue.JWTSecret)
	userService := services.NewUserService(db, identity)
	assignmentService := services.NewAssignmentService(db, hv)
	accessService := services.NewAccessService(db, hv, cfg.Proxmox.VMIDs)
	auditService := services.NewAuditService(db)
	statsService := services.NewStatsService(db, hv, auditService, cfg.Proxmox.VMIDs)

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(authService, identity)
	vmHandler := handlers.NewVMHandler(accessService, hv, auditService)
	adminHandler := handlers.NewAdminHandler(userService, assignmentService, statsService)
	healthHandler := handlers.NewHealthHandler(db, hv, identity)

	// Middleware
	r.Use(middleware.CORSMiddleware(cfg.CORS.Origins))

	// Public routes
	r.GET("/health", healthHandler.Check)

	auth := r.Group("/auth")
	{
		auth.POST("/login", authHandler.Login)
		auth.POST("/refresh", authHandler.Refresh)
		auth.POST("/request-password-reset", authHandler.RequestPasswordReset)
	}

	// Protected routes
	protected := r.Group("")
	protected.Use(middleware.AuthMiddleware(authService))
	{
		protected.GET("/auth/me", authHandler.Me)
		protected.POST("/auth/change-password", authHandler.ChangePassword)

		vms := protected.Group("/vms")
		{
			vms.GET("", vmHandler.List)
			vms.GET("/:id/status", vmHandler.Status)
			vms.POST("/:id/start", vmHandler.Start)
			vms.POST("/:id/stop", vmHandler.Stop)
			vms.POST("/:id/shutdown", vmHandler.Shutdown)
		}

		admin := protected.Group("/admin")
		admin.Use(middleware.RequireAdmin())
		{
			admin.POST("/users", adminHandler.CreateUser)
			admin.GET("/users", adminHandler.ListUsers)
			admin.DELETE("/users/:id", adminHandler.DeleteUser)

			admin.POST("/vm-assignments", adminHandler.CreateAssignment)
			admin.GET("/vm-assignments", adminHandler.ListAssignments)
			admin.DELETE("/vm-assignments/:id", adminHandler.DeleteAssignment)

			admin.GET("/stats", adminHandler.Stats)
		}
	}
}
