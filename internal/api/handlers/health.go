package handlers

import (
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"vmpanel/internal/models"
	"vmpanel/internal/services"
)

type HealthHandler struct {
	db       *gorm.DB
	hv       services.Hypervisor
	identity services.Identity
}

func NewHealthHandler(db *gorm.DB, hv services.Hypervisor, identity services.Identity) *HealthHandler {
	return &HealthHandler{
		db:       db,
		hv:       hv,
		identity: identity,
	}
}

type HealthResponse struct {
	Status    string    `json:"status"`
	Database  string    `json:"database"`
	Proxmox   string    `json:"proxmox"`
	GoTrue    string    `json:"gotrue"`
	Timestamp time.Time `json:"timestamp"`
}

// Check reports the composite health of the database, the hypervisor, and
// the auth service. Always answers 200; a degraded dependency is reflected
// in the body.
func (h *HealthHandler) Check(c *gin.Context) {
	ctx := c.Request.Context()

	database := "healthy"
	if err := models.Ping(h.db); err != nil {
		database = "unhealthy"
	}

	pve := "healthy"
	if !h.hv.Health(ctx) {
		pve = "unhealthy"
	}

	auth := "healthy"
	if !h.identity.Health(ctx) {
		auth = "unhealthy"
	}

	status := "healthy"
	if database != "healthy" || pve != "healthy" || auth != "healthy" {
		status = "degraded"
	}

	c.JSON(200, HealthResponse{
		Status:    status,
		Database:  database,
		Proxmox:   pve,
		GoTrue:    auth,
		Timestamp: time.Now().UTC(),
	})
}
