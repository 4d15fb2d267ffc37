package access

import (
	"testing"

	"github.com/eventgrid/platform/internal/shared/types"
)

func TestRoleRanks(t *testing.T) {
	tests := []struct {
		role Role
		rank int
	}{
		{RoleSuperAdmin, 4},
		{RoleStateAdmin, 3},
		{RoleBranchAdmin, 2},
		{RoleZonalAdmin, 1},
		{RoleWorker, 0},
		{RoleRegistrar, 0},
		{Role("unknown"), 0},
	}

	for _, tt := range tests {
		t.Run(string(tt.role), func(t *testing.T) {
			if tt.role.Rank() != tt.rank {
				t.Errorf("Expected rank %d for %s, got %d", tt.rank, tt.role, tt.role.Rank())
			}
		})
	}
}

func TestCanManageMatrix(t *testing.T) {
	adminRoles := []Role{RoleSuperAdmin, RoleStateAdmin, RoleBranchAdmin, RoleZonalAdmin}

	// Strictly higher rank manages strictly lower rank; nobody manages
	// a peer or a superior.
	for _, actor := range adminRoles {
		for _, target := range adminRoles {
			want := actor.Rank() > target.Rank()
			got := CanManage(actor, target)
			if got != want {
				t.Errorf("CanManage(%s, %s) = %v, want %v", actor, target, got, want)
			}
		}
	}
}

func TestCanManageSelf(t *testing.T) {
	for _, role := range []Role{RoleSuperAdmin, RoleStateAdmin, RoleBranchAdmin, RoleZonalAdmin} {
		if CanManage(role, role) {
			t.Errorf("CanManage(%s, %s) should be false", role, role)
		}
	}
}

func TestCanManageLeafActors(t *testing.T) {
	for _, actor := range []Role{RoleWorker, RoleRegistrar} {
		for _, target := range []Role{RoleSuperAdmin, RoleZonalAdmin, RoleWorker} {
			if CanManage(actor, target) {
				t.Errorf("CanManage(%s, %s) should be false", actor, target)
			}
		}
	}
}

func TestLevelForRole(t *testing.T) {
	tests := []struct {
		role  Role
		level Level
		ok    bool
	}{
		{RoleStateAdmin, LevelState, true},
		{RoleBranchAdmin, LevelBranch, true},
		{RoleZonalAdmin, LevelZone, true},
		{RoleSuperAdmin, "", false},
		{RoleWorker, "", false},
	}

	for _, tt := range tests {
		level, ok := LevelForRole(tt.role)
		if ok != tt.ok || level != tt.level {
			t.Errorf("LevelForRole(%s) = (%s, %v), want (%s, %v)", tt.role, level, ok, tt.level, tt.ok)
		}
	}
}

func TestLevelKind(t *testing.T) {
	tests := []struct {
		level Level
		kind  NodeKind
	}{
		{LevelState, KindState},
		{LevelBranch, KindBranch},
		{LevelZone, KindZone},
	}

	for _, tt := range tests {
		kind, ok := tt.level.Kind()
		if !ok || kind != tt.kind {
			t.Errorf("Level(%s).Kind() = (%s, %v), want %s", tt.level, kind, ok, tt.kind)
		}
	}

	if _, ok := Level("nonsense").Kind(); ok {
		t.Error("unknown level should not resolve to a kind")
	}
}

func TestCanAccessSuperAdmin(t *testing.T) {
	scope := Scope{Role: RoleSuperAdmin}

	nodes := []Node{
		{Kind: KindState, ID: types.NewID()},
		{Kind: KindBranch, ID: types.NewID(), StateID: types.NewID()},
		{Kind: KindZone, ID: types.NewID(), BranchID: types.NewID(), StateID: types.NewID()},
	}

	for _, node := range nodes {
		if !CanAccess(scope, node) {
			t.Errorf("SuperAdmin should access %s %s", node.Kind, node.ID)
		}
	}
}

func TestCanAccessStateAdmin(t *testing.T) {
	ownState := types.NewID()
	otherState := types.NewID()
	scope := Scope{Role: RoleStateAdmin, StateID: ownState}

	tests := []struct {
		name string
		node Node
		want bool
	}{
		{"own state", Node{Kind: KindState, ID: ownState}, true},
		{"other state", Node{Kind: KindState, ID: otherState}, false},
		{"branch under own state", Node{Kind: KindBranch, ID: types.NewID(), StateID: ownState}, true},
		{"branch under other state", Node{Kind: KindBranch, ID: types.NewID(), StateID: otherState}, false},
		{"zone under own state", Node{Kind: KindZone, ID: types.NewID(), BranchID: types.NewID(), StateID: ownState}, true},
		{"zone under other state", Node{Kind: KindZone, ID: types.NewID(), BranchID: types.NewID(), StateID: otherState}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CanAccess(scope, tt.node); got != tt.want {
				t.Errorf("CanAccess = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCanAccessBranchAdmin(t *testing.T) {
	stateID := types.NewID()
	ownBranch := types.NewID()
	otherBranch := types.NewID()
	scope := Scope{Role: RoleBranchAdmin, StateID: stateID, BranchID: ownBranch}

	tests := []struct {
		name string
		node Node
		want bool
	}{
		{"own branch", Node{Kind: KindBranch, ID: ownBranch, StateID: stateID}, true},
		{"sibling branch", Node{Kind: KindBranch, ID: otherBranch, StateID: stateID}, false},
		{"own state", Node{Kind: KindState, ID: stateID}, false},
		{"zone in own branch", Node{Kind: KindZone, ID: types.NewID(), BranchID: ownBranch, StateID: stateID}, true},
		{"zone in sibling branch", Node{Kind: KindZone, ID: types.NewID(), BranchID: otherBranch, StateID: stateID}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CanAccess(scope, tt.node); got != tt.want {
				t.Errorf("CanAccess = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCanAccessZonalAdmin(t *testing.T) {
	stateID := types.NewID()
	branchID := types.NewID()
	ownZone := types.NewID()
	siblingZone := types.NewID()
	scope := Scope{Role: RoleZonalAdmin, StateID: stateID, BranchID: branchID, ZoneID: ownZone}

	tests := []struct {
		name string
		node Node
		want bool
	}{
		{"own zone", Node{Kind: KindZone, ID: ownZone, BranchID: branchID, StateID: stateID}, true},
		// A sibling zone in the same branch is still off limits
		{"sibling zone same branch", Node{Kind: KindZone, ID: siblingZone, BranchID: branchID, StateID: stateID}, false},
		{"own branch", Node{Kind: KindBranch, ID: branchID, StateID: stateID}, false},
		{"own state", Node{Kind: KindState, ID: stateID}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CanAccess(scope, tt.node); got != tt.want {
				t.Errorf("CanAccess = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCanAccessLeafRoles(t *testing.T) {
	node := Node{Kind: KindZone, ID: types.NewID()}

	for _, role := range []Role{RoleWorker, RoleRegistrar, Role("")} {
		scope := Scope{Role: role, ZoneID: node.ID}
		if CanAccess(scope, node) {
			t.Errorf("role %q should never pass a node access check", role)
		}
	}
}

func TestCanAccessEmptyScope(t *testing.T) {
	// An admin with no jurisdiction assigned (mid-transfer) accesses nothing
	tests := []struct {
		role Role
		node Node
	}{
		{RoleStateAdmin, Node{Kind: KindState, ID: types.NewID()}},
		{RoleBranchAdmin, Node{Kind: KindBranch, ID: types.NewID()}},
		{RoleZonalAdmin, Node{Kind: KindZone, ID: types.NewID()}},
	}

	for _, tt := range tests {
		if CanAccess(Scope{Role: tt.role}, tt.node) {
			t.Errorf("%s with empty scope should not access %s", tt.role, tt.node.Kind)
		}
	}
}
