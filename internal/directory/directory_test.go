package directory

import (
	"testing"
	"time"

	"github.com/eventgrid/platform/internal/access"
	"github.com/eventgrid/platform/internal/shared/errors"
	"github.com/eventgrid/platform/internal/shared/types"
)

// --- Model Tests ---

func TestNodeStatus(t *testing.T) {
	tests := []struct {
		status   NodeStatus
		expected string
	}{
		{NodeStatusActive, "active"},
		{NodeStatusInactive, "inactive"},
		{NodeStatusPending, "pending"},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			if string(tt.status) != tt.expected {
				t.Errorf("Expected '%s', got '%s'", tt.expected, tt.status)
			}
		})
	}
}

func TestAdminWithJurisdiction(t *testing.T) {
	branchID := types.NewID()

	admin := Admin{
		ID:    types.NewID(),
		Name:  "Dana Whitfield",
		Email: "dana.whitfield@grid.example.org",
		Role:  access.RoleBranchAdmin,
		Jurisdiction: &Jurisdiction{
			Level:  access.LevelBranch,
			NodeID: branchID,
		},
		Active:    true,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}

	if admin.ID.IsZero() {
		t.Error("Admin ID should not be zero")
	}

	if admin.Jurisdiction == nil {
		t.Fatal("Jurisdiction should be set")
	}

	if admin.Jurisdiction.Level != access.LevelBranch {
		t.Errorf("Expected level branch_admin, got '%s'", admin.Jurisdiction.Level)
	}

	if admin.Jurisdiction.NodeID != branchID {
		t.Error("Jurisdiction node ID mismatch")
	}
}

func TestSuperAdminHasNoJurisdiction(t *testing.T) {
	admin := Admin{
		ID:     types.NewID(),
		Name:   "Root",
		Email:  "root@grid.example.org",
		Role:   access.RoleSuperAdmin,
		Active: true,
	}

	if admin.Jurisdiction != nil {
		t.Error("SuperAdmin should have nil Jurisdiction")
	}
}

func TestPickupStationCreation(t *testing.T) {
	zoneID := types.NewID()

	station := PickupStation{
		ID:       types.NewID(),
		ZoneID:   zoneID,
		Name:     "Central Station",
		Capacity: 250,
		Active:   true,
		Address: types.Address{
			Street:     "12 Harbor Road",
			City:       "Westport",
			PostalCode: "44210",
			Country:    "US",
		},
	}

	if station.ID.IsZero() {
		t.Error("Station ID should not be zero")
	}

	if station.ZoneID != zoneID {
		t.Error("Zone ID mismatch")
	}

	if station.Capacity != 250 {
		t.Errorf("Expected capacity 250, got %d", station.Capacity)
	}

	if !station.Active {
		t.Error("Station should be active")
	}
}

// --- Service Tests ---

func TestInitialStatusByCreatorRole(t *testing.T) {
	svc := NewService(nil)

	tests := []struct {
		role     access.Role
		expected NodeStatus
	}{
		{access.RoleSuperAdmin, NodeStatusActive},
		{access.RoleStateAdmin, NodeStatusPending},
		{access.RoleBranchAdmin, NodeStatusPending},
	}

	for _, tt := range tests {
		t.Run(string(tt.role), func(t *testing.T) {
			actor := &ResolvedAdmin{Admin: Admin{Role: tt.role}}
			if got := svc.initialStatus(actor); got != tt.expected {
				t.Errorf("Expected status %s, got %s", tt.expected, got)
			}
		})
	}
}

func TestAuthorizeNodeCreate(t *testing.T) {
	svc := NewService(nil)
	stateID := types.NewID()
	otherStateID := types.NewID()

	stateNode := access.Node{Kind: access.KindState, ID: stateID}

	tests := []struct {
		name    string
		actor   *ResolvedAdmin
		wantErr error
	}{
		{
			name: "super admin anywhere",
			actor: &ResolvedAdmin{
				Admin: Admin{Role: access.RoleSuperAdmin},
				Scope: access.Scope{Role: access.RoleSuperAdmin},
			},
			wantErr: nil,
		},
		{
			name: "state admin in own state",
			actor: &ResolvedAdmin{
				Admin: Admin{Role: access.RoleStateAdmin},
				Scope: access.Scope{Role: access.RoleStateAdmin, StateID: stateID},
			},
			wantErr: nil,
		},
		{
			name: "state admin in foreign state",
			actor: &ResolvedAdmin{
				Admin: Admin{Role: access.RoleStateAdmin},
				Scope: access.Scope{Role: access.RoleStateAdmin, StateID: otherStateID},
			},
			wantErr: errors.ErrForbidden,
		},
		{
			name: "branch admin cannot create branches",
			actor: &ResolvedAdmin{
				Admin: Admin{Role: access.RoleBranchAdmin},
				Scope: access.Scope{Role: access.RoleBranchAdmin, StateID: stateID},
			},
			wantErr: errors.ErrForbidden,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := svc.authorizeNodeCreate(tt.actor, stateNode, access.RoleBranchAdmin, "create_branch")
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("Expected no error, got %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

// --- Request Validation Tests ---

func TestCreateAdminRequestScopedRole(t *testing.T) {
	zoneID := types.NewID()

	req := CreateAdminRequest{
		Name:  "Priya Raman",
		Email: "priya.raman@grid.example.org",
		Role:  access.RoleZonalAdmin,
		Jurisdiction: &Jurisdiction{
			Level:  access.LevelZone,
			NodeID: zoneID,
		},
	}

	if req.Role != access.RoleZonalAdmin {
		t.Errorf("Expected role zonal_admin, got '%s'", req.Role)
	}

	expected, ok := access.LevelForRole(req.Role)
	if !ok {
		t.Fatal("zonal_admin should bind to a level")
	}

	if req.Jurisdiction.Level != expected {
		t.Errorf("Jurisdiction level should be %s, got %s", expected, req.Jurisdiction.Level)
	}
}

func TestListAdminsFilter(t *testing.T) {
	role := access.RoleBranchAdmin
	active := true

	filter := ListAdminsFilter{
		Role:   &role,
		Active: &active,
		Search: "Whitfield",
		Limit:  25,
		Offset: 0,
	}

	if filter.Role == nil || *filter.Role != access.RoleBranchAdmin {
		t.Error("Role filter should be set correctly")
	}

	if filter.Active == nil || !*filter.Active {
		t.Error("Active filter should be set correctly")
	}

	if filter.Limit != 25 {
		t.Errorf("Expected limit 25, got %d", filter.Limit)
	}
}
