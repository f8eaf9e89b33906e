package handlers

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/gin-gonic/gin"

	"vmpanel/internal/api/middleware"
	"vmpanel/internal/models"
	"vmpanel/internal/proxmox"
	"vmpanel/internal/services"
)

type VMHandler struct {
	access *services.AccessService
	hv     services.Hypervisor
	audit  *services.AuditService
}

func NewVMHandler(access *services.AccessService, hv services.Hypervisor, audit *services.AuditService) *VMHandler {
	return &VMHandler{
		access: access,
		hv:     hv,
		audit:  audit,
	}
}

type VMListResponse struct {
	VMs   []services.VMView `json:"vms"`
	Total int               `json:"total"`
}

// List returns the VMs visible to the caller: the whole fleet for admins,
// the single assigned VM (or nothing) for everyone else
func (h *VMHandler) List(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		c.JSON(401, gin.H{"error": "Not authenticated"})
		return
	}

	views, err := h.access.VisibleVMs(c.Request.Context(), user)
	if err != nil {
		if errors.Is(err, services.ErrAssignedVMMissing) {
			c.JSON(404, gin.H{"error": err.Error()})
			return
		}
		c.JSON(500, gin.H{"error": "Failed to fetch VMs"})
		return
	}

	c.JSON(200, VMListResponse{VMs: views, Total: len(views)})
}

// Status returns the live status of one VM. No audit row is written for
// status reads.
func (h *VMHandler) Status(c *gin.Context) {
	user, vmID, ok := h.authorized(c)
	if !ok {
		return
	}

	status, err := h.hv.Status(c.Request.Context(), vmID)
	if err != nil {
		h.upstreamError(c, vmID, err)
		return
	}

	assignedUser := ""
	if !user.IsAdmin {
		assignedUser = user.Email
	}

	c.JSON(200, services.VMView{
		VMID:         status.VMID,
		VMName:       status.Name,
		Status:       status.Status,
		Uptime:       status.Uptime,
		AssignedUser: assignedUser,
		CanControl:   true,
	})
}

// Start powers on the VM
func (h *VMHandler) Start(c *gin.Context) {
	h.controlAction(c, services.ActionStart, h.hv.Start)
}

// Stop force-stops the VM
func (h *VMHandler) Stop(c *gin.Context) {
	h.controlAction(c, services.ActionStop, h.hv.Stop)
}

// Shutdown gracefully shuts down the VM
func (h *VMHandler) Shutdown(c *gin.Context) {
	h.controlAction(c, services.ActionShutdown, h.hv.Shutdown)
}

// controlAction runs one VM lifecycle operation: authorize, call the
// hypervisor, write exactly one audit row for the attempt, respond. The
// audit row is written after the hypervisor call resolves, success or not.
func (h *VMHandler) controlAction(c *gin.Context, action string, call func(context.Context, int) (*proxmox.ActionResult, error)) {
	user, vmID, ok := h.authorized(c)
	if !ok {
		return
	}

	result, err := call(c.Request.Context(), vmID)
	if err != nil {
		h.audit.Record(user.ID, user.Email, action, vmID, fmt.Sprintf("VM-%d", vmID),
			false, err.Error(), c.ClientIP())
		h.upstreamError(c, vmID, err)
		return
	}

	errorMessage := ""
	if !result.Success {
		errorMessage = result.Message
	}
	h.audit.Record(user.ID, user.Email, action, vmID, result.VMName,
		result.Success, errorMessage, c.ClientIP())

	c.JSON(200, result)
}

// authorized parses the VM id and checks the caller may act on it
func (h *VMHandler) authorized(c *gin.Context) (*models.User, int, bool) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		c.JSON(401, gin.H{"error": "Not authenticated"})
		return nil, 0, false
	}

	vmID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(400, gin.H{"error": "Invalid VM ID"})
		return nil, 0, false
	}

	decision, err := h.access.Authorize(user, vmID)
	if err != nil {
		c.JSON(500, gin.H{"error": "Authorization check failed"})
		return nil, 0, false
	}
	if !decision.Allowed {
		c.JSON(403, gin.H{"error": "You don't have access to this VM"})
		return nil, 0, false
	}

	return user, vmID, true
}

func (h *VMHandler) upstreamError(c *gin.Context, vmID int, err error) {
	switch {
	case errors.Is(err, proxmox.ErrUnreachable):
		c.JSON(503, gin.H{"error": "Hypervisor unreachable"})
	case errors.Is(err, proxmox.ErrVMNotFound):
		c.JSON(404, gin.H{"error": fmt.Sprintf("VM %d not found", vmID)})
	default:
		c.JSON(500, gin.H{"error": "VM operation failed"})
	}
}
