package handlers

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"

	"vmpanel/internal/gotrue"
	"vmpanel/internal/services"
)

type AdminHandler struct {
	users       *services.UserService
	assignments *services.AssignmentService
	stats       *services.StatsService
}

func NewAdminHandler(users *services.UserService, assignments *services.AssignmentService, stats *services.StatsService) *AdminHandler {
	return &AdminHandler{
		users:       users,
		assignments: assignments,
		stats:       stats,
	}
}

type CreateUserRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
	IsAdmin  bool   `json:"is_admin"`
}

type CreateAssignmentRequest struct {
	UserID string `json:"user_id" binding:"required"`
	VMID   int    `json:"vm_id" binding:"required"`
}

// CreateUser registers the account with GoTrue and mirrors it locally
func (h *AdminHandler) CreateUser(c *gin.Context) {
	var req CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(400, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}

	user, err := h.users.Create(c.Request.Context(), req.Email, req.Password, req.IsAdmin)
	if err != nil {
		switch {
		case errors.Is(err, gotrue.ErrUnavailable):
			c.JSON(503, gin.H{"error": "Authentication service unavailable"})
		case errors.Is(err, gotrue.ErrRejected):
			c.JSON(400, gin.H{"error": err.Error()})
		case errors.Is(err, services.ErrUserExists):
			c.JSON(409, gin.H{"error": "User already exists"})
		default:
			c.JSON(500, gin.H{"error": "Failed to create user"})
		}
		return
	}

	c.JSON(201, user)
}

// ListUsers returns all local users
func (h *AdminHandler) ListUsers(c *gin.Context) {
	users, err := h.users.List()
	if err != nil {
		c.JSON(500, gin.H{"error": "Failed to get users"})
		return
	}

	c.JSON(200, users)
}

// DeleteUser removes a local user. The VM assignment is removed with it and
// audit rows keep the email with the user reference nulled. The GoTrue
// account is not touched.
func (h *AdminHandler) DeleteUser(c *gin.Context) {
	user, err := h.users.Delete(c.Param("id"))
	if err != nil {
		if errors.Is(err, services.ErrUserNotFound) {
			c.JSON(404, gin.H{"error": "User not found"})
			return
		}
		c.JSON(500, gin.H{"error": "Failed to delete user"})
		return
	}

	c.JSON(200, gin.H{"message": "User " + user.Email + " deleted successfully"})
}

// CreateAssignment binds a VM to a user
func (h *AdminHandler) CreateAssignment(c *gin.Context) {
	var req CreateAssignmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(400, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}

	assignment, err := h.assignments.Create(c.Request.Context(), req.UserID, req.VMID)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrUserNotFound):
			c.JSON(404, gin.H{"error": "User not found"})
		case errors.Is(err, services.ErrAlreadyAssigned):
			c.JSON(409, gin.H{"error": err.Error()})
		case errors.Is(err, services.ErrAssignedVMNotFound):
			c.JSON(404, gin.H{"error": err.Error()})
		default:
			c.JSON(500, gin.H{"error": "Failed to create assignment"})
		}
		return
	}

	c.JSON(201, assignment)
}

// ListAssignments returns all assignments with their owning user
func (h *AdminHandler) ListAssignments(c *gin.Context) {
	assignments, err := h.assignments.List()
	if err != nil {
		c.JSON(500, gin.H{"error": "Failed to get assignments"})
		return
	}

	c.JSON(200, assignments)
}

// DeleteAssignment removes an assignment by id
func (h *AdminHandler) DeleteAssignment(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(400, gin.H{"error": "Invalid assignment ID"})
		return
	}

	if err := h.assignments.Delete(uint(id)); err != nil {
		if errors.Is(err, services.ErrAssignmentNotFound) {
			c.JSON(404, gin.H{"error": "Assignment not found"})
			return
		}
		c.JSON(500, gin.H{"error": "Failed to delete assignment"})
		return
	}

	c.JSON(200, gin.H{"message": "VM assignment deleted successfully"})
}

// Stats returns the admin dashboard aggregate
func (h *AdminHandler) Stats(c *gin.Context) {
	stats, err := h.stats.Collect(c.Request.Context())
	if err != nil {
		c.JSON(500, gin.H{"error": "Failed to collect stats"})
		return
	}

	c.JSON(200, stats)
}
