package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vmpanel/internal/models"
	"vmpanel/internal/proxmox"
)

func TestAuthorize(t *testing.T) {
	db := setupTestDB(t)
	hv := &fakeHypervisor{vms: map[int]*proxmox.VMStatus{}}
	access := NewAccessService(db, hv, []int{101, 102})

	admin := createUser(t, db, "admin-1", "admin@example.com", true)
	alice := createUser(t, db, "user-1", "alice@example.com", false)
	require.NoError(t, db.Create(&models.VMAssignment{UserID: alice.ID, VMID: 101, VMName: "ws-alice"}).Error)

	t.Run("admin allowed on any VM", func(t *testing.T) {
		for _, vmID := range []int{101, 102, 999} {
			decision, err := access.Authorize(admin, vmID)
			require.NoError(t, err)
			assert.True(t, decision.Allowed)
		}
	})

	t.Run("user allowed on assigned VM only", func(t *testing.T) {
		decision, err := access.Authorize(alice, 101)
		require.NoError(t, err)
		assert.True(t, decision.Allowed)

		decision, err = access.Authorize(alice, 102)
		require.NoError(t, err)
		assert.False(t, decision.Allowed)
		assert.Equal(t, "not assigned", decision.Reason)
	})

	t.Run("decision follows assignment changes", func(t *testing.T) {
		require.NoError(t, db.Where("user_id = ?", alice.ID).Delete(&models.VMAssignment{}).Error)

		decision, err := access.Authorize(alice, 101)
		require.NoError(t, err)
		assert.False(t, decision.Allowed, "authorization must be checked fresh per request")
	})
}

func TestVisibleVMs(t *testing.T) {
	db := setupTestDB(t)
	hv := &fakeHypervisor{vms: map[int]*proxmox.VMStatus{
		101: {VMID: 101, Name: "ws-alice", Status: "running", Uptime: 120},
		102: {VMID: 102, Name: "ws-spare", Status: "stopped"},
	}}
	access := NewAccessService(db, hv, []int{101, 102, 103})

	admin := createUser(t, db, "admin-1", "admin@example.com", true)
	alice := createUser(t, db, "user-1", "alice@example.com", false)
	bob := createUser(t, db, "user-2", "bob@example.com", false)
	require.NoError(t, db.Create(&models.VMAssignment{UserID: alice.ID, VMID: 101, VMName: "ws-alice"}).Error)

	t.Run("admin sees whole fleet with owners", func(t *testing.T) {
		views, err := access.VisibleVMs(context.Background(), admin)
		require.NoError(t, err)
		require.Len(t, views, 3)

		byID := map[int]VMView{}
		for _, v := range views {
			byID[v.VMID] = v
		}

		assert.Equal(t, "alice@example.com", byID[101].AssignedUser)
		assert.Empty(t, byID[102].AssignedUser)
		assert.Equal(t, "unknown", byID[103].Status, "unreachable VM reported as unknown, not dropped")
		assert.True(t, byID[101].CanControl)
	})

	t.Run("user sees exactly the assigned VM", func(t *testing.T) {
		views, err := access.VisibleVMs(context.Background(), alice)
		require.NoError(t, err)
		require.Len(t, views, 1)
		assert.Equal(t, 101, views[0].VMID)
		assert.Equal(t, "alice@example.com", views[0].AssignedUser)
	})

	t.Run("unassigned user sees empty list", func(t *testing.T) {
		views, err := access.VisibleVMs(context.Background(), bob)
		require.NoError(t, err)
		assert.Empty(t, views)
	})

	t.Run("assignment to VM outside the fleet is a hard error", func(t *testing.T) {
		require.NoError(t, db.Create(&models.VMAssignment{UserID: bob.ID, VMID: 999, VMName: "ghost"}).Error)

		_, err := access.VisibleVMs(context.Background(), bob)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrAssignedVMMissing)
	})
}
