package services

import (
	"go.uber.org/zap"
	"gorm.io/gorm"

	"vmpanel/internal/logger"
	"vmpanel/internal/models"
)

// Audit action kinds.
const (
	ActionStart       = "start"
	ActionStop        = "stop"
	ActionShutdown    = "shutdown"
	ActionStatusCheck = "status_check"
)

// AuditService appends one row per VM control attempt. The trail is
// append-only; nothing updates or deletes rows here.
type AuditService struct {
	db *gorm.DB
}

func NewAuditService(db *gorm.DB) *AuditService {
	return &AuditService{db: db}
}

// Record persists one audit row. A persistence failure is logged but never
// surfaced: the outcome of the VM action has already been determined and
// must not be masked by audit trouble.
func (s *AuditService) Record(userID, userEmail, action string, vmID int, vmName string, success bool, errorMessage, ipAddress string) {
	entry := &models.AuditLog{
		UserID:       &userID,
		UserEmail:    userEmail,
		Action:       action,
		VMID:         vmID,
		VMName:       vmName,
		Success:      success,
		ErrorMessage: errorMessage,
		IPAddress:    ipAddress,
	}

	if err := s.db.Create(entry).Error; err != nil {
		logger.Error("failed to write audit log",
			zap.String("user_email", userEmail),
			zap.String("action", action),
			zap.Int("vm_id", vmID),
			zap.Error(err))
	}
}

// Recent returns the newest n audit rows
func (s *AuditService) Recent(n int) ([]models.AuditLog, error) {
	var logs []models.AuditLog
	if err := s.db.Order("timestamp DESC, id DESC").Limit(n).Find(&logs).Error; err != nil {
		return nil, err
	}
	return logs, nil
}
