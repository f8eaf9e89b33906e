package services

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"vmpanel/internal/models"
	"vmpanel/internal/proxmox"
)

// ErrAssignedVMMissing means a user's assigned VM id is absent from the live
// hypervisor listing. That is an integrity problem between the assignment
// table and the hypervisor, not an empty result.
var ErrAssignedVMMissing = errors.New("assigned VM not found in hypervisor")

// Decision is the outcome of an authorization check.
type Decision struct {
	Allowed bool
	Reason  string
}

// Allow is the positive authorization decision.
var Allow = Decision{Allowed: true}

// Deny builds a negative decision with a reason.
func Deny(reason string) Decision {
	return Decision{Allowed: false, Reason: reason}
}

// VMView is one VM as presented to a caller of the VM list.
type VMView struct {
	VMID         int    `json:"vm_id"`
	VMName       string `json:"vm_name"`
	Status       string `json:"status"`
	Uptime       int64  `json:"uptime"`
	AssignedUser string `json:"assigned_user,omitempty"`
	CanControl   bool   `json:"can_control"`
}

// AccessService decides which user may act on which VM.
type AccessService struct {
	db    *gorm.DB
	hv    Hypervisor
	vmIDs []int
}

func NewAccessService(db *gorm.DB, hv Hypervisor, vmIDs []int) *AccessService {
	return &AccessService{db: db, hv: hv, vmIDs: vmIDs}
}

// Authorize decides whether the user may operate on the VM. Admins may act
// on any VM; everyone else only on their assigned one. The assignment is
// looked up fresh on every call because assignments change between requests.
func (s *AccessService) Authorize(user *models.User, vmID int) (Decision, error) {
	if user.IsAdmin {
		return Allow, nil
	}

	var assignment models.VMAssignment
	err := s.db.Where("user_id = ? AND vm_id = ?", user.ID, vmID).First(&assignment).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Deny("not assigned"), nil
		}
		return Decision{}, err
	}

	return Allow, nil
}

// VisibleVMs returns the VM list for the caller. Admins see the whole
// configured fleet annotated with the assigned owner; regular users see
// only their assigned VM, or an empty list when they have none.
func (s *AccessService) VisibleVMs(ctx context.Context, user *models.User) ([]VMView, error) {
	allVMs := s.hv.ListAll(ctx, s.vmIDs)

	if user.IsAdmin {
		var assignments []models.VMAssignment
		if err := s.db.Preload("User").Find(&assignments).Error; err != nil {
			return nil, err
		}

		ownerByVM := make(map[int]string, len(assignments))
		for _, a := range assignments {
			ownerByVM[a.VMID] = a.User.Email
		}

		views := make([]VMView, 0, len(allVMs))
		for _, vm := range allVMs {
			views = append(views, VMView{
				VMID:         vm.VMID,
				VMName:       vm.Name,
				Status:       vm.Status,
				Uptime:       vm.Uptime,
				AssignedUser: ownerByVM[vm.VMID],
				CanControl:   true,
			})
		}
		return views, nil
	}

	var assignment models.VMAssignment
	err := s.db.Where("user_id = ?", user.ID).First(&assignment).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return []VMView{}, nil
		}
		return nil, err
	}

	for _, vm := range allVMs {
		if vm.VMID == assignment.VMID {
			return []VMView{{
				VMID:         vm.VMID,
				VMName:       vm.Name,
				Status:       vm.Status,
				Uptime:       vm.Uptime,
				AssignedUser: user.Email,
				CanControl:   true,
			}}, nil
		}
	}

	return nil, fmt.Errorf("%w: VM %d", ErrAssignedVMMissing, assignment.VMID)
}

// StatusFor returns the live status of one VM for an already-authorized
// caller
func (s *AccessService) StatusFor(ctx context.Context, vmID int) (*proxmox.VMStatus, error) {
	return s.hv.Status(ctx, vmID)
}
