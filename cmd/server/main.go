package main

import (
	"fmt"
	"log"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"vmpanel/internal/api/routes"
	"vmpanel/internal/config"
	"vmpanel/internal/gotrue"
	"vmpanel/internal/logger"
	"vmpanel/internal/models"
	"vmpanel/internal/proxmox"
)

func main() {
	// Load configuration
	cfg, err := config.Load("configs/config.yaml")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if err := logger.Init(cfg.Logging.Level); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	// Initialize database
	db, err := models.InitDB(cfg)
	if err != nil {
		logger.Error("Failed to initialize database", zap.Error(err))
		log.Fatalf("Failed to initialize database: %v", err)
	}

	// Upstream clients
	identityClient := gotrue.NewClient(cfg.GoTrue)
	proxmoxClient := proxmox.NewClient(cfg.Proxmox)

	// Set Gin mode
	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Create router
	r := gin.New()
	r.Use(gin.Recovery())

	// Setup routes
	routes.SetupRoutes(r, cfg, db, proxmoxClient, identityClient)

	// Run server
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	logger.Info("Starting VM panel server",
		zap.String("addr", addr),
		zap.String("proxmox_node", cfg.Proxmox.Node))
	if err := r.Run(addr); err != nil {
		logger.Error("Server exited", zap.Error(err))
		log.Fatalf("Failed to start server: %v", err)
	}
}
