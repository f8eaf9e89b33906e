package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vmpanel/internal/models"
	"vmpanel/internal/proxmox"
)

func TestAssignmentCreate(t *testing.T) {
	db := setupTestDB(t)
	hv := &fakeHypervisor{vms: map[int]*proxmox.VMStatus{
		101: {VMID: 101, Name: "ws-alice", Status: "running"},
		102: {VMID: 102, Name: "ws-spare", Status: "stopped"},
	}}
	svc := NewAssignmentService(db, hv)

	alice := createUser(t, db, "user-1", "alice@example.com", false)
	bob := createUser(t, db, "user-2", "bob@example.com", false)

	t.Run("snapshots the VM name at creation time", func(t *testing.T) {
		assignment, err := svc.Create(context.Background(), alice.ID, 101)
		require.NoError(t, err)
		assert.Equal(t, "ws-alice", assignment.VMName)
		assert.Equal(t, 101, assignment.VMID)
	})

	t.Run("second assignment for the same user conflicts", func(t *testing.T) {
		_, err := svc.Create(context.Background(), alice.ID, 102)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrAlreadyAssigned)

		var count int64
		db.Model(&models.VMAssignment{}).Where("user_id = ?", alice.ID).Count(&count)
		assert.Equal(t, int64(1), count)
	})

	t.Run("unknown user", func(t *testing.T) {
		_, err := svc.Create(context.Background(), "ghost", 102)
		assert.ErrorIs(t, err, ErrUserNotFound)
	})

	t.Run("VM absent from hypervisor", func(t *testing.T) {
		_, err := svc.Create(context.Background(), bob.ID, 999)
		assert.ErrorIs(t, err, ErrAssignedVMNotFound)
	})

	t.Run("hypervisor outage is not a not-found", func(t *testing.T) {
		hv.unreachable = true
		defer func() { hv.unreachable = false }()

		_, err := svc.Create(context.Background(), bob.ID, 101)
		require.Error(t, err)
		assert.ErrorIs(t, err, proxmox.ErrUnreachable)
		assert.NotErrorIs(t, err, ErrAssignedVMNotFound)
	})

	t.Run("two users may share one VM id", func(t *testing.T) {
		// Only the user side is constrained; nothing prevents assigning
		// the same VM to a second user.
		assignment, err := svc.Create(context.Background(), bob.ID, 101)
		require.NoError(t, err)
		assert.Equal(t, 101, assignment.VMID)
	})
}

func TestAssignmentCreateRaceGuard(t *testing.T) {
	db := setupTestDB(t)
	hv := &fakeHypervisor{vms: map[int]*proxmox.VMStatus{
		101: {VMID: 101, Name: "ws-alice", Status: "running"},
	}}
	svc := NewAssignmentService(db, hv)

	alice := createUser(t, db, "user-1", "alice@example.com", false)

	// Simulate losing the check-then-insert race: the row appears after the
	// service's existence check would have passed. The unique index must
	// still reject the insert and surface it as a conflict.
	require.NoError(t, db.Create(&models.VMAssignment{UserID: alice.ID, VMID: 101, VMName: "ws-alice"}).Error)

	err := db.Create(&models.VMAssignment{UserID: alice.ID, VMID: 102, VMName: "other"}).Error
	require.Error(t, err, "unique index on user_id must reject the second row")

	_, err = svc.Create(context.Background(), alice.ID, 101)
	assert.ErrorIs(t, err, ErrAlreadyAssigned)

	var count int64
	db.Model(&models.VMAssignment{}).Where("user_id = ?", alice.ID).Count(&count)
	assert.Equal(t, int64(1), count)
}

func TestAssignmentLookupsAndDelete(t *testing.T) {
	db := setupTestDB(t)
	hv := &fakeHypervisor{vms: map[int]*proxmox.VMStatus{
		101: {VMID: 101, Name: "ws-alice", Status: "running"},
	}}
	svc := NewAssignmentService(db, hv)

	alice := createUser(t, db, "user-1", "alice@example.com", false)
	assignment, err := svc.Create(context.Background(), alice.ID, 101)
	require.NoError(t, err)

	t.Run("GetByUser", func(t *testing.T) {
		got, err := svc.GetByUser(alice.ID)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, 101, got.VMID)

		got, err = svc.GetByUser("ghost")
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("GetByUserAndVM", func(t *testing.T) {
		got, err := svc.GetByUserAndVM(alice.ID, 101)
		require.NoError(t, err)
		require.NotNil(t, got)

		got, err = svc.GetByUserAndVM(alice.ID, 102)
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("List preloads the owner", func(t *testing.T) {
		assignments, err := svc.List()
		require.NoError(t, err)
		require.Len(t, assignments, 1)
		assert.Equal(t, "alice@example.com", assignments[0].User.Email)
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, svc.Delete(assignment.ID))

		got, err := svc.GetByUser(alice.ID)
		require.NoError(t, err)
		assert.Nil(t, got)

		assert.ErrorIs(t, svc.Delete(assignment.ID), ErrAssignmentNotFound)
	})
}
