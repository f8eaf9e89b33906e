package models

import (
	"time"
)

// User mirrors an account in GoTrue. The ID is the GoTrue subject id and is
// never generated locally; a row exists once that identity has logged in or
// been created by an admin.
type User struct {
	ID        string    `json:"id" gorm:"type:varchar(64);primaryKey"`
	Email     string    `json:"email" gorm:"type:varchar(255);uniqueIndex;not null"`
	IsAdmin   bool      `json:"is_admin" gorm:"not null;default:false"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// VMAssignment binds a user to their workstation VM. The unique index on
// UserID enforces at most one VM per user; nothing constrains the VM side,
// so two users may share a VM id.
type VMAssignment struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	UserID    string    `json:"user_id" gorm:"type:varchar(64);uniqueIndex;not null"`
	VMID      int       `json:"vm_id" gorm:"not null"` // Proxmox VM ID
	VMName    string    `json:"vm_name" gorm:"type:varchar(255)"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	User      User      `json:"user,omitempty" gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
}

// AuditLog records one row per VM control attempt. UserEmail is a snapshot
// taken at write time so the trail survives user deletion.
type AuditLog struct {
	ID           uint      `json:"id" gorm:"primaryKey"`
	UserID       *string   `json:"user_id" gorm:"type:varchar(64);index"`
	UserEmail    string    `json:"user_email" gorm:"type:varchar(255);not null"`
	Action       string    `json:"action" gorm:"type:varchar(50);not null"` // start, stop, shutdown, status_check
	VMID         int       `json:"vm_id" gorm:"not null"`
	VMName       string    `json:"vm_name" gorm:"type:varchar(255)"`
	Success      bool      `json:"success" gorm:"not null"`
	ErrorMessage string    `json:"error_message" gorm:"type:varchar(1024)"`
	IPAddress    string    `json:"ip_address" gorm:"type:varchar(45)"`
	Timestamp    time.Time `json:"timestamp" gorm:"autoCreateTime;index"`
}
