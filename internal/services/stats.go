package services

import (
	"context"
	"time"

	"gorm.io/gorm"

	"vmpanel/internal/models"
)

// AdminStats is the aggregate for the admin dashboard.
type AdminStats struct {
	TotalUsers    int64          `json:"total_users"`
	TotalVMs      int            `json:"total_vms"`
	VMsRunning    int            `json:"vms_running"`
	VMsStopped    int            `json:"vms_stopped"`
	RecentActions []RecentAction `json:"recent_actions"`
}

// RecentAction is one audit row as shown on the dashboard.
type RecentAction struct {
	UserEmail string `json:"user_email"`
	Action    string `json:"action"`
	VMID      int    `json:"vm_id"`
	VMName    string `json:"vm_name"`
	Success   bool   `json:"success"`
	Timestamp string `json:"timestamp"`
}

// StatsService aggregates fleet and audit data for admins.
type StatsService struct {
	db    *gorm.DB
	hv    Hypervisor
	audit *AuditService
	vmIDs []int
}

func NewStatsService(db *gorm.DB, hv Hypervisor, audit *AuditService, vmIDs []int) *StatsService {
	return &StatsService{db: db, hv: hv, audit: audit, vmIDs: vmIDs}
}

// Collect gathers user counts, live VM counts by state, and the ten most
// recent audit rows
func (s *StatsService) Collect(ctx context.Context) (*AdminStats, error) {
	var totalUsers int64
	if err := s.db.Model(&models.User{}).Count(&totalUsers).Error; err != nil {
		return nil, err
	}

	allVMs := s.hv.ListAll(ctx, s.vmIDs)
	running, stopped := 0, 0
	for _, vm := range allVMs {
		switch vm.Status {
		case "running":
			running++
		case "stopped":
			stopped++
		}
	}

	logs, err := s.audit.Recent(10)
	if err != nil {
		return nil, err
	}

	recent := make([]RecentAction, 0, len(logs))
	for _, log := range logs {
		recent = append(recent, RecentAction{
			UserEmail: log.UserEmail,
			Action:    log.Action,
			VMID:      log.VMID,
			VMName:    log.VMName,
			Success:   log.Success,
			Timestamp: log.Timestamp.UTC().Format(time.RFC3339),
		})
	}

	return &AdminStats{
		TotalUsers:    totalUsers,
		TotalVMs:      len(allVMs),
		VMsRunning:    running,
		VMsStopped:    stopped,
		RecentActions: recent,
	}, nil
}
