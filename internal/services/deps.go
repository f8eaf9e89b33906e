package services

import (
	"context"

	"vmpanel/internal/gotrue"
	"vmpanel/internal/proxmox"
)

// Hypervisor is the surface of the Proxmox client the services depend on.
// Declared here so tests can substitute a double.
type Hypervisor interface {
	Status(ctx context.Context, vmID int) (*proxmox.VMStatus, error)
	Start(ctx context.Context, vmID int) (*proxmox.ActionResult, error)
	Stop(ctx context.Context, vmID int) (*proxmox.ActionResult, error)
	Shutdown(ctx context.Context, vmID int) (*proxmox.ActionResult, error)
	ListAll(ctx context.Context, vmIDs []int) []proxmox.VMStatus
	Health(ctx context.Context) bool
}

// Identity is the surface of the GoTrue client the services depend on.
type Identity interface {
	Login(ctx context.Context, email, password string) (*gotrue.TokenResponse, error)
	Signup(ctx context.Context, email, password string) (*gotrue.SignupResponse, error)
	RefreshToken(ctx context.Context, refreshToken string) (*gotrue.TokenResponse, error)
	ChangePassword(ctx context.Context, accessToken, newPassword string) error
	RequestPasswordReset(ctx context.Context, email string) error
	Health(ctx context.Context) bool
}
