package cascade

import (
	"testing"

	"github.com/eventgrid/platform/internal/access"
	"github.com/eventgrid/platform/internal/directory"
	"github.com/eventgrid/platform/internal/shared/errors"
	"github.com/eventgrid/platform/internal/shared/types"
)

// --- Level Derivation Tests ---

func TestDelegationSetsLevel(t *testing.T) {
	stateID := types.NewID()
	branchID := types.NewID()
	zoneID := types.NewID()

	tests := []struct {
		name     string
		sets     DelegationSets
		expected access.Role
	}{
		{
			name:     "states only sits at the root",
			sets:     DelegationSets{States: []types.ID{stateID}},
			expected: access.RoleSuperAdmin,
		},
		{
			name:     "branches without zones",
			sets:     DelegationSets{States: []types.ID{stateID}, Branches: []types.ID{branchID}},
			expected: access.RoleStateAdmin,
		},
		{
			name: "zones without stations",
			sets: DelegationSets{
				States:   []types.ID{stateID},
				Branches: []types.ID{branchID},
				Zones:    []types.ID{zoneID},
			},
			expected: access.RoleBranchAdmin,
		},
		{
			name: "stations assigned reach the floor",
			sets: DelegationSets{
				States:           []types.ID{stateID},
				Branches:         []types.ID{branchID},
				Zones:            []types.ID{zoneID},
				StationsAssigned: true,
			},
			expected: access.RoleZonalAdmin,
		},
		{
			name:     "empty sets",
			sets:     DelegationSets{},
			expected: access.RoleSuperAdmin,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.sets.Level(); got != tt.expected {
				t.Errorf("Expected level %s, got %s", tt.expected, got)
			}
		})
	}
}

func TestDelegationSetsContains(t *testing.T) {
	branchID := types.NewID()
	sets := DelegationSets{Branches: []types.ID{branchID}}

	if !sets.Contains(DelegationBranch, branchID) {
		t.Error("Branch should be a member of the branch set")
	}

	if sets.Contains(DelegationZone, branchID) {
		t.Error("Branch should not be a member of the zone set")
	}

	if sets.Contains(DelegationBranch, types.NewID()) {
		t.Error("Unknown node should not be a member")
	}
}

// --- Event Status Tests ---

func TestEventStatusValid(t *testing.T) {
	valid := []EventStatus{EventStatusScheduled, EventStatusOngoing, EventStatusConcluded, EventStatusCancelled}
	for _, status := range valid {
		if !status.Valid() {
			t.Errorf("Status %s should be valid", status)
		}
	}

	if EventStatus("archived").Valid() {
		t.Error("Unknown status should not be valid")
	}
}

// --- Delegation Authorization Tests ---

func TestAuthorizeBranchDelegation(t *testing.T) {
	svc := NewService(nil, nil)
	stateID := types.NewID()
	otherStateID := types.NewID()

	rootSets := DelegationSets{States: []types.ID{stateID}}

	tests := []struct {
		name    string
		actor   *directory.ResolvedAdmin
		sets    DelegationSets
		wantErr error
	}{
		{
			name: "state admin of delegated state",
			actor: &directory.ResolvedAdmin{
				Admin: directory.Admin{Role: access.RoleStateAdmin},
				Scope: access.Scope{Role: access.RoleStateAdmin, StateID: stateID},
			},
			sets:    rootSets,
			wantErr: nil,
		},
		{
			name: "state admin of foreign state",
			actor: &directory.ResolvedAdmin{
				Admin: directory.Admin{Role: access.RoleStateAdmin},
				Scope: access.Scope{Role: access.RoleStateAdmin, StateID: otherStateID},
			},
			sets:    rootSets,
			wantErr: errors.ErrForbidden,
		},
		{
			name: "branch admin cannot delegate branches",
			actor: &directory.ResolvedAdmin{
				Admin: directory.Admin{Role: access.RoleBranchAdmin},
				Scope: access.Scope{Role: access.RoleBranchAdmin, StateID: stateID},
			},
			sets:    rootSets,
			wantErr: errors.ErrForbidden,
		},
		{
			// Another state's branches being in already must not
			// block this state admin's own append
			name: "state admin delegates after a sibling state",
			actor: &directory.ResolvedAdmin{
				Admin: directory.Admin{Role: access.RoleStateAdmin},
				Scope: access.Scope{Role: access.RoleStateAdmin, StateID: stateID},
			},
			sets: DelegationSets{
				States:   []types.ID{stateID, otherStateID},
				Branches: []types.ID{types.NewID()},
			},
			wantErr: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := svc.authorizeBranchDelegation(tt.actor, tt.sets)
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

func TestAuthorizeZoneDelegation(t *testing.T) {
	svc := NewService(nil, nil)
	stateID := types.NewID()
	branchID := types.NewID()
	otherBranchID := types.NewID()

	actorFor := func(branch types.ID) *directory.ResolvedAdmin {
		return &directory.ResolvedAdmin{
			Admin: directory.Admin{Role: access.RoleBranchAdmin},
			Scope: access.Scope{Role: access.RoleBranchAdmin, StateID: stateID, BranchID: branch},
		}
	}

	tests := []struct {
		name    string
		actor   *directory.ResolvedAdmin
		sets    DelegationSets
		wantErr error
	}{
		{
			name:    "branch admin of delegated branch",
			actor:   actorFor(branchID),
			sets:    DelegationSets{States: []types.ID{stateID}, Branches: []types.ID{branchID}},
			wantErr: nil,
		},
		{
			// A branch joins the cascade only through its state
			// admin's delegation; state membership alone is not enough
			name:    "branch admin under delegated state, branch not delegated",
			actor:   actorFor(branchID),
			sets:    DelegationSets{States: []types.ID{stateID}},
			wantErr: errors.ErrForbidden,
		},
		{
			name:    "branch admin outside the delegated tree",
			actor:   actorFor(otherBranchID),
			sets:    DelegationSets{States: []types.ID{types.NewID()}, Branches: []types.ID{branchID}},
			wantErr: errors.ErrForbidden,
		},
		{
			// A sibling branch's zones being in already must not block
			// this branch admin's own append
			name:  "branch admin delegates after a sibling branch",
			actor: actorFor(branchID),
			sets: DelegationSets{
				States:   []types.ID{stateID},
				Branches: []types.ID{branchID, otherBranchID},
				Zones:    []types.ID{types.NewID()},
			},
			wantErr: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := svc.authorizeZoneDelegation(tt.actor, tt.sets)
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

// Sibling admins grow disjoint parts of the same set; neither order of
// appends may lock the other out.
func TestSiblingAdminsDelegateIndependently(t *testing.T) {
	svc := NewService(nil, nil)
	stateA := types.NewID()
	stateB := types.NewID()
	branchA := types.NewID()
	branchB := types.NewID()

	stateAdmin := func(state types.ID) *directory.ResolvedAdmin {
		return &directory.ResolvedAdmin{
			Admin: directory.Admin{Role: access.RoleStateAdmin},
			Scope: access.Scope{Role: access.RoleStateAdmin, StateID: state},
		}
	}
	branchAdmin := func(branch types.ID) *directory.ResolvedAdmin {
		return &directory.ResolvedAdmin{
			Admin: directory.Admin{Role: access.RoleBranchAdmin},
			Scope: access.Scope{Role: access.RoleBranchAdmin, StateID: stateA, BranchID: branch},
		}
	}

	// State admin A delegated first; state admin B must still get in
	sets := DelegationSets{States: []types.ID{stateA, stateB}, Branches: []types.ID{branchA}}
	if err := svc.authorizeBranchDelegation(stateAdmin(stateB), sets); err != nil {
		t.Errorf("Expected sibling state admin to be authorized, got %v", err)
	}
	if err := svc.authorizeBranchDelegation(stateAdmin(stateA), sets); err != nil {
		t.Errorf("Expected first state admin to stay authorized, got %v", err)
	}

	// Same at the branch level once branch A's zones are in
	sets = DelegationSets{
		States:   []types.ID{stateA},
		Branches: []types.ID{branchA, branchB},
		Zones:    []types.ID{types.NewID()},
	}
	if err := svc.authorizeZoneDelegation(branchAdmin(branchB), sets); err != nil {
		t.Errorf("Expected sibling branch admin to be authorized, got %v", err)
	}
	if err := svc.authorizeZoneDelegation(branchAdmin(branchA), sets); err != nil {
		t.Errorf("Expected first branch admin to stay authorized, got %v", err)
	}
}

// --- Visibility Tests ---

func TestEventVisibility(t *testing.T) {
	svc := NewService(nil, nil)
	stateID := types.NewID()
	branchID := types.NewID()
	zoneID := types.NewID()

	sets := DelegationSets{
		States:   []types.ID{stateID},
		Branches: []types.ID{branchID},
		Zones:    []types.ID{zoneID},
	}

	tests := []struct {
		name  string
		actor *directory.ResolvedAdmin
		want  bool
	}{
		{
			name: "super admin sees everything",
			actor: &directory.ResolvedAdmin{
				Admin: directory.Admin{Role: access.RoleSuperAdmin},
				Scope: access.Scope{Role: access.RoleSuperAdmin},
			},
			want: true,
		},
		{
			name: "state admin of member state",
			actor: &directory.ResolvedAdmin{
				Admin: directory.Admin{Role: access.RoleStateAdmin},
				Scope: access.Scope{Role: access.RoleStateAdmin, StateID: stateID},
			},
			want: true,
		},
		{
			name: "state admin of foreign state",
			actor: &directory.ResolvedAdmin{
				Admin: directory.Admin{Role: access.RoleStateAdmin},
				Scope: access.Scope{Role: access.RoleStateAdmin, StateID: types.NewID()},
			},
			want: false,
		},
		{
			name: "zonal admin of member zone",
			actor: &directory.ResolvedAdmin{
				Admin: directory.Admin{Role: access.RoleZonalAdmin},
				Scope: access.Scope{Role: access.RoleZonalAdmin, StateID: stateID, BranchID: branchID, ZoneID: zoneID},
			},
			want: true,
		},
		{
			name: "zonal admin of sibling zone still sees via branch",
			actor: &directory.ResolvedAdmin{
				Admin: directory.Admin{Role: access.RoleZonalAdmin},
				Scope: access.Scope{Role: access.RoleZonalAdmin, StateID: stateID, BranchID: branchID, ZoneID: types.NewID()},
			},
			want: true,
		},
		{
			name: "zonal admin outside the tree",
			actor: &directory.ResolvedAdmin{
				Admin: directory.Admin{Role: access.RoleZonalAdmin},
				Scope: access.Scope{Role: access.RoleZonalAdmin, BranchID: types.NewID(), ZoneID: types.NewID()},
			},
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := svc.visible(tt.actor, sets); got != tt.want {
				t.Errorf("Expected visible=%v, got %v", tt.want, got)
			}
		})
	}
}

// --- Creation Target Tests ---

func TestZonalAdminTargetsRestrictedToOwnZone(t *testing.T) {
	svc := NewService(nil, nil)
	zoneID := types.NewID()

	actor := &directory.ResolvedAdmin{
		Admin: directory.Admin{Role: access.RoleZonalAdmin},
		Scope: access.Scope{
			Role:     access.RoleZonalAdmin,
			StateID:  types.NewID(),
			BranchID: types.NewID(),
			ZoneID:   zoneID,
		},
	}

	// Own zone is accepted
	initial, err := svc.initialDelegations(nil, actor, []types.ID{zoneID})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(initial[DelegationZone]) != 1 || initial[DelegationZone][0] != zoneID {
		t.Error("Zone set should contain exactly the actor's zone")
	}
	if len(initial[DelegationState]) != 1 || len(initial[DelegationBranch]) != 1 {
		t.Error("Ancestry should be inserted into the state and branch sets")
	}

	// A foreign zone is rejected
	if _, err := svc.initialDelegations(nil, actor, []types.ID{types.NewID()}); !errors.Is(err, errors.ErrForbidden) {
		t.Errorf("Expected forbidden, got %v", err)
	}
}

func TestLeafRolesCannotCreateEvents(t *testing.T) {
	svc := NewService(nil, nil)

	actor := &directory.ResolvedAdmin{
		Admin: directory.Admin{Role: access.RoleWorker},
		Scope: access.Scope{Role: access.RoleWorker},
	}

	if _, err := svc.initialDelegations(nil, actor, nil); !errors.Is(err, errors.ErrForbidden) {
		t.Errorf("Expected forbidden, got %v", err)
	}
}

func TestDedupe(t *testing.T) {
	a := types.NewID()
	b := types.NewID()

	in := []types.ID{a, b, a, a, b}
	out := dedupe(in)
	if len(out) != 2 {
		t.Errorf("Expected 2 unique IDs, got %d", len(out))
	}

	// The caller's slice must come back untouched
	want := []types.ID{a, b, a, a, b}
	for i := range want {
		if in[i] != want[i] {
			t.Errorf("Input slice modified at %d: expected %s, got %s", i, want[i], in[i])
		}
	}
}
