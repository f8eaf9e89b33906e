package services

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"vmpanel/internal/config"
	"vmpanel/internal/gotrue"
	"vmpanel/internal/models"
	"vmpanel/internal/proxmox"
)

// setupTestDB opens a throwaway sqlite database
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	path := fmt.Sprintf("%s/vmpanel_test_%d.db", os.TempDir(), time.Now().UnixNano())
	cfg := &config.Config{
		Database: config.DatabaseConfig{
			Type:   "sqlite",
			SQLite: config.SQLiteConfig{Path: path},
		},
	}

	db, err := models.InitDB(cfg)
	require.NoError(t, err)

	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
		os.Remove(path)
	})

	return db
}

func createUser(t *testing.T, db *gorm.DB, id, email string, isAdmin bool) *models.User {
	t.Helper()
	user := &models.User{ID: id, Email: email, IsAdmin: isAdmin}
	require.NoError(t, db.Create(user).Error)
	return user
}

// fakeHypervisor is an in-memory Hypervisor double backed by a fixed VM set.
type fakeHypervisor struct {
	vms         map[int]*proxmox.VMStatus
	unreachable bool
	actions     []string
}

func (f *fakeHypervisor) Status(_ context.Context, vmID int) (*proxmox.VMStatus, error) {
	if f.unreachable {
		return nil, fmt.Errorf("%w: connection refused", proxmox.ErrUnreachable)
	}
	vm, ok := f.vms[vmID]
	if !ok {
		return nil, fmt.Errorf("%w: VM %d", proxmox.ErrVMNotFound, vmID)
	}
	cpy := *vm
	return &cpy, nil
}

func (f *fakeHypervisor) ListAll(ctx context.Context, vmIDs []int) []proxmox.VMStatus {
	out := make([]proxmox.VMStatus, 0, len(vmIDs))
	for _, vmID := range vmIDs {
		status, err := f.Status(ctx, vmID)
		if err != nil {
			out = append(out, proxmox.VMStatus{
				VMID:   vmID,
				Name:   fmt.Sprintf("VM-%d", vmID),
				Status: "unknown",
				Error:  err.Error(),
			})
			continue
		}
		out = append(out, *status)
	}
	return out
}

func (f *fakeHypervisor) Start(ctx context.Context, vmID int) (*proxmox.ActionResult, error) {
	return f.act(ctx, vmID, "start", "running", "VM is already running", "starting")
}

func (f *fakeHypervisor) Stop(ctx context.Context, vmID int) (*proxmox.ActionResult, error) {
	return f.act(ctx, vmID, "stop", "stopped", "VM is already stopped", "stopping")
}

func (f *fakeHypervisor) Shutdown(ctx context.Context, vmID int) (*proxmox.ActionResult, error) {
	return f.act(ctx, vmID, "shutdown", "stopped", "VM is already stopped", "shutting_down")
}

func (f *fakeHypervisor) act(ctx context.Context, vmID int, action, terminal, noopMsg, transitional string) (*proxmox.ActionResult, error) {
	current, err := f.Status(ctx, vmID)
	if err != nil {
		return nil, err
	}
	if current.Status == terminal {
		return &proxmox.ActionResult{
			Success: false,
			Message: noopMsg,
			VMID:    vmID,
			VMName:  current.Name,
			Status:  terminal,
		}, nil
	}
	f.actions = append(f.actions, fmt.Sprintf("%s:%d", action, vmID))
	return &proxmox.ActionResult{
		Success: true,
		Message: fmt.Sprintf("VM %s command sent successfully", action),
		VMID:    vmID,
		VMName:  current.Name,
		Status:  transitional,
	}, nil
}

func (f *fakeHypervisor) Health(context.Context) bool { return !f.unreachable }

// fakeIdentity is an Identity double with scripted responses.
type fakeIdentity struct {
	users       map[string]fakeAccount // email -> account
	unavailable bool
	rejectMsg   string
	nextID      int
}

type fakeAccount struct {
	ID       string
	Password string
}

func (f *fakeIdentity) Login(_ context.Context, email, password string) (*gotrue.TokenResponse, error) {
	if f.unavailable {
		return nil, fmt.Errorf("%w: connection refused", gotrue.ErrUnavailable)
	}
	account, ok := f.users[email]
	if !ok || account.Password != password {
		return nil, gotrue.ErrInvalidCredentials
	}
	return &gotrue.TokenResponse{
		AccessToken: "token-" + account.ID,
		TokenType:   "bearer",
		ExpiresIn:   3600,
		User:        gotrue.TokenUser{ID: account.ID, Email: email},
	}, nil
}

func (f *fakeIdentity) Signup(_ context.Context, email, password string) (*gotrue.SignupResponse, error) {
	if f.unavailable {
		return nil, fmt.Errorf("%w: connection refused", gotrue.ErrUnavailable)
	}
	if f.rejectMsg != "" {
		return nil, fmt.Errorf("%w: %s", gotrue.ErrRejected, f.rejectMsg)
	}
	f.nextID++
	id := fmt.Sprintf("fake-%d", f.nextID)
	if f.users == nil {
		f.users = map[string]fakeAccount{}
	}
	f.users[email] = fakeAccount{ID: id, Password: password}
	return &gotrue.SignupResponse{ID: id, Email: email}, nil
}

func (f *fakeIdentity) RefreshToken(context.Context, string) (*gotrue.TokenResponse, error) {
	return &gotrue.TokenResponse{AccessToken: "refreshed"}, nil
}

func (f *fakeIdentity) ChangePassword(context.Context, string, string) error { return nil }

func (f *fakeIdentity) RequestPasswordReset(context.Context, string) error { return nil }

func (f *fakeIdentity) Health(context.Context) bool { return !f.unavailable }
