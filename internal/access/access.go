// Package access implements the pure authorization decisions for the
// jurisdiction hierarchy: rank-based management checks and node access
// checks. It holds no state and performs no lookups; callers supply
// resolved jurisdiction ancestry.
package access

import (
	"github.com/eventgrid/platform/internal/shared/types"
)

// Role is a closed enumeration of principal roles.
type Role string

const (
	RoleSuperAdmin  Role = "super_admin"
	RoleStateAdmin  Role = "state_admin"
	RoleBranchAdmin Role = "branch_admin"
	RoleZonalAdmin  Role = "zonal_admin"

	// Leaf roles: never appear on the left side of a permission check
	RoleWorker    Role = "worker"
	RoleRegistrar Role = "registrar"
)

// roleRanks is the strict total order over admin roles.
// Leaf roles rank zero and can manage nobody.
var roleRanks = map[Role]int{
	RoleSuperAdmin:  4,
	RoleStateAdmin:  3,
	RoleBranchAdmin: 2,
	RoleZonalAdmin:  1,
	RoleWorker:      0,
	RoleRegistrar:   0,
}

// Rank returns the role's position in the management order, 0 for
// leaf or unknown roles.
func (r Role) Rank() int {
	return roleRanks[r]
}

// IsAdmin reports whether the role is one of the four admin roles.
func (r Role) IsAdmin() bool {
	return r.Rank() > 0
}

// Valid reports whether the role is a known role.
func (r Role) Valid() bool {
	_, ok := roleRanks[r]
	return ok
}

// ParseRole converts a string into a Role, reporting whether it is known.
func ParseRole(s string) (Role, bool) {
	r := Role(s)
	return r, r.Valid()
}

// CanManage reports whether an actor role may manage a target role.
// This is intentionally role-only; jurisdiction overlap is checked
// separately by the caller so the two concerns stay composable.
func CanManage(actor, target Role) bool {
	return actor.Rank() > target.Rank() && actor.Rank() > 0
}

// NodeKind identifies a level of the geography tree.
type NodeKind string

const (
	KindState  NodeKind = "state"
	KindBranch NodeKind = "branch"
	KindZone   NodeKind = "zone"
)

// Level identifies a jurisdiction level an admin can hold. Values
// deliberately mirror the admin role that manages that level, which is
// also the enum used by the jurisdiction transfer workflow.
type Level string

const (
	LevelState  Level = "state_admin"
	LevelBranch Level = "branch_admin"
	LevelZone   Level = "zonal_admin"
)

// Kind returns the geography node kind managed at this level.
func (l Level) Kind() (NodeKind, bool) {
	switch l {
	case LevelState:
		return KindState, true
	case LevelBranch:
		return KindBranch, true
	case LevelZone:
		return KindZone, true
	}
	return "", false
}

// Role returns the admin role that holds this jurisdiction level.
func (l Level) Role() Role {
	return Role(l)
}

// LevelForRole returns the jurisdiction level a role is scoped to.
// SuperAdmin and leaf roles hold no jurisdiction.
func LevelForRole(r Role) (Level, bool) {
	switch r {
	case RoleStateAdmin:
		return LevelState, true
	case RoleBranchAdmin:
		return LevelBranch, true
	case RoleZonalAdmin:
		return LevelZone, true
	}
	return "", false
}

// Scope is an admin's resolved jurisdiction ancestry. For a StateAdmin
// only StateID is set; for a BranchAdmin StateID and BranchID; for a
// ZonalAdmin all three. SuperAdmin carries an empty scope.
type Scope struct {
	Role     Role
	StateID  types.ID
	BranchID types.ID
	ZoneID   types.ID
}

// Node is a geography node with its ancestry resolved: a branch carries
// its state, a zone carries its branch and state.
type Node struct {
	Kind     NodeKind
	ID       types.ID
	BranchID types.ID
	StateID  types.ID
}

// CanAccess reports whether the scoped admin may act on the node.
// SuperAdmin may act anywhere; StateAdmin on anything under its state;
// BranchAdmin on anything under its branch; ZonalAdmin only on its own
// zone. Every other role is denied.
func CanAccess(scope Scope, node Node) bool {
	switch scope.Role {
	case RoleSuperAdmin:
		return true

	case RoleStateAdmin:
		if scope.StateID.IsZero() {
			return false
		}
		switch node.Kind {
		case KindState:
			return node.ID == scope.StateID
		case KindBranch, KindZone:
			return node.StateID == scope.StateID
		}
		return false

	case RoleBranchAdmin:
		if scope.BranchID.IsZero() {
			return false
		}
		switch node.Kind {
		case KindBranch:
			return node.ID == scope.BranchID
		case KindZone:
			return node.BranchID == scope.BranchID
		}
		return false

	case RoleZonalAdmin:
		// No descent below zone
		return node.Kind == KindZone && !scope.ZoneID.IsZero() && node.ID == scope.ZoneID
	}

	return false
}
