package directory

import (
	"context"
	"fmt"

	"github.com/eventgrid/platform/internal/access"
	"github.com/eventgrid/platform/internal/shared/errors"
	"github.com/eventgrid/platform/internal/shared/metrics"
	"github.com/eventgrid/platform/internal/shared/types"
)

// Service implements the directory workflows on top of the repository:
// admin resolution, guarded node creation and the approval step for
// nodes created by non-root admins.
type Service struct {
	repo *Repository
}

// NewService creates a new directory service
func NewService(repo *Repository) *Service {
	return &Service{repo: repo}
}

// ResolveAdmin loads an admin and expands its jurisdiction into a full
// access scope. A scoped admin whose jurisdiction was transferred away
// resolves to an empty scope and passes no access check until a new
// jurisdiction is assigned.
func (s *Service) ResolveAdmin(ctx context.Context, id types.ID) (*ResolvedAdmin, error) {
	admin, err := s.repo.GetAdmin(ctx, id)
	if err != nil {
		return nil, err
	}

	if !admin.Role.IsAdmin() {
		return nil, errors.InvalidState(fmt.Sprintf("principal %s holds role %s, not an admin role", id, admin.Role))
	}

	if !admin.Active {
		return nil, errors.Forbidden("admin is disabled")
	}

	scope, err := s.scopeFor(ctx, admin)
	if err != nil {
		return nil, err
	}

	return &ResolvedAdmin{Admin: *admin, Scope: scope}, nil
}

// scopeFor derives the access scope from the stored jurisdiction pair
func (s *Service) scopeFor(ctx context.Context, admin *Admin) (access.Scope, error) {
	scope := access.Scope{Role: admin.Role}

	if admin.Role == access.RoleSuperAdmin || admin.Jurisdiction == nil {
		return scope, nil
	}

	kind, ok := admin.Jurisdiction.Level.Kind()
	if !ok {
		return scope, errors.Internal(fmt.Errorf("admin %s has unknown jurisdiction level %q", admin.ID, admin.Jurisdiction.Level))
	}

	node, err := s.repo.ResolveNode(ctx, kind, admin.Jurisdiction.NodeID)
	if err != nil {
		return scope, errors.Wrap(err, "failed to resolve jurisdiction")
	}

	switch node.Kind {
	case access.KindState:
		scope.StateID = node.ID
	case access.KindBranch:
		scope.StateID = node.StateID
		scope.BranchID = node.ID
	case access.KindZone:
		scope.StateID = node.StateID
		scope.BranchID = node.BranchID
		scope.ZoneID = node.ID
	}

	return scope, nil
}

// ResolveNode resolves a geography node with ancestry
func (s *Service) ResolveNode(ctx context.Context, kind access.NodeKind, id types.ID) (access.Node, error) {
	return s.repo.ResolveNode(ctx, kind, id)
}

// --- Node Creation ---

// CreateState creates a new state. Only a SuperAdmin may create states,
// and they come up active immediately.
func (s *Service) CreateState(ctx context.Context, actor *ResolvedAdmin, req CreateStateRequest) (*State, error) {
	if actor.Role != access.RoleSuperAdmin {
		metrics.RecordAuthorizationDecision("create_state", false)
		return nil, errors.Forbidden("only a super admin may create states")
	}
	metrics.RecordAuthorizationDecision("create_state", true)

	state := &State{
		ID:     types.NewID(),
		Name:   req.Name,
		Code:   req.Code,
		Status: NodeStatusActive,
	}

	if err := s.repo.CreateState(ctx, state); err != nil {
		return nil, err
	}

	return state, nil
}

// CreateBranch creates a branch under a state. The actor must manage the
// branch level and hold jurisdiction over the parent state. Branches
// created by anyone below SuperAdmin start pending and need approval.
func (s *Service) CreateBranch(ctx context.Context, actor *ResolvedAdmin, stateID types.ID, req CreateBranchRequest) (*Branch, error) {
	parent, err := s.repo.ResolveNode(ctx, access.KindState, stateID)
	if err != nil {
		return nil, err
	}

	if err := s.authorizeNodeCreate(actor, parent, access.RoleBranchAdmin, "create_branch"); err != nil {
		return nil, err
	}

	branch := &Branch{
		ID:      types.NewID(),
		StateID: stateID,
		Name:    req.Name,
		Code:    req.Code,
		Status:  s.initialStatus(actor),
	}

	if err := s.repo.CreateBranch(ctx, branch); err != nil {
		return nil, err
	}

	return branch, nil
}

// CreateZone creates a zone under a branch, with the same approval
// policy as branches.
func (s *Service) CreateZone(ctx context.Context, actor *ResolvedAdmin, branchID types.ID, req CreateZoneRequest) (*Zone, error) {
	parent, err := s.repo.ResolveNode(ctx, access.KindBranch, branchID)
	if err != nil {
		return nil, err
	}

	if err := s.authorizeNodeCreate(actor, parent, access.RoleZonalAdmin, "create_zone"); err != nil {
		return nil, err
	}

	zone := &Zone{
		ID:       types.NewID(),
		BranchID: branchID,
		Name:     req.Name,
		Code:     req.Code,
		Status:   s.initialStatus(actor),
	}

	if err := s.repo.CreateZone(ctx, zone); err != nil {
		return nil, err
	}

	return zone, nil
}

// CreateStation creates a pickup station under a zone. Any admin with
// jurisdiction over the zone may add stations; they are active at once.
func (s *Service) CreateStation(ctx context.Context, actor *ResolvedAdmin, zoneID types.ID, req CreateStationRequest) (*PickupStation, error) {
	zone, err := s.repo.ResolveNode(ctx, access.KindZone, zoneID)
	if err != nil {
		return nil, err
	}

	allowed := access.CanAccess(actor.Scope, zone)
	metrics.RecordAuthorizationDecision("create_station", allowed)
	if !allowed {
		return nil, errors.Forbidden("zone is outside your jurisdiction")
	}

	if req.Capacity < 0 {
		return nil, errors.Validation("validation failed", map[string]string{
			"capacity": "capacity must not be negative",
		})
	}

	station := &PickupStation{
		ID:       types.NewID(),
		ZoneID:   zoneID,
		Name:     req.Name,
		Capacity: req.Capacity,
		Active:   true,
		Address:  req.Address,
		Contact:  req.Contact,
	}

	if err := s.repo.CreateStation(ctx, station); err != nil {
		return nil, err
	}

	return station, nil
}

// authorizeNodeCreate checks that the actor outranks the admin level of
// the new node and has jurisdiction over its parent
func (s *Service) authorizeNodeCreate(actor *ResolvedAdmin, parent access.Node, managedRole access.Role, check string) error {
	if !access.CanManage(actor.Role, managedRole) {
		metrics.RecordAuthorizationDecision(check, false)
		return errors.Forbidden(fmt.Sprintf("role %s may not create nodes at this level", actor.Role))
	}

	allowed := access.CanAccess(actor.Scope, parent)
	metrics.RecordAuthorizationDecision(check, allowed)
	if !allowed {
		return errors.Forbidden("parent node is outside your jurisdiction")
	}

	return nil
}

func (s *Service) initialStatus(actor *ResolvedAdmin) NodeStatus {
	if actor.Role == access.RoleSuperAdmin {
		return NodeStatusActive
	}
	return NodeStatusPending
}

// ApproveNode activates a pending node. The approver must outrank the
// admin level that manages the node and hold jurisdiction over it.
func (s *Service) ApproveNode(ctx context.Context, actor *ResolvedAdmin, kind access.NodeKind, id types.ID) error {
	return s.reviewNode(ctx, actor, kind, id, NodeStatusActive)
}

// RejectNode rejects a pending node. Rejected nodes stay addressable
// by id but never host activity.
func (s *Service) RejectNode(ctx context.Context, actor *ResolvedAdmin, kind access.NodeKind, id types.ID) error {
	return s.reviewNode(ctx, actor, kind, id, NodeStatusRejected)
}

func (s *Service) reviewNode(ctx context.Context, actor *ResolvedAdmin, kind access.NodeKind, id types.ID, target NodeStatus) error {
	node, err := s.repo.ResolveNode(ctx, kind, id)
	if err != nil {
		return err
	}

	var managedRole access.Role
	switch kind {
	case access.KindState:
		managedRole = access.RoleStateAdmin
	case access.KindBranch:
		managedRole = access.RoleBranchAdmin
	case access.KindZone:
		managedRole = access.RoleZonalAdmin
	default:
		return errors.BadRequest(fmt.Sprintf("unknown node kind %q", kind))
	}

	allowed := access.CanManage(actor.Role, managedRole) && access.CanAccess(actor.Scope, node)
	metrics.RecordAuthorizationDecision("review_node", allowed)
	if !allowed {
		return errors.Forbidden("node is outside your jurisdiction")
	}

	current, err := s.nodeStatus(ctx, kind, id)
	if err != nil {
		return err
	}
	if current != NodeStatusPending {
		return errors.InvalidState(fmt.Sprintf("%s is %s, not pending approval", kind, current))
	}

	return s.repo.UpdateNodeStatus(ctx, kind, id, target)
}

func (s *Service) nodeStatus(ctx context.Context, kind access.NodeKind, id types.ID) (NodeStatus, error) {
	switch kind {
	case access.KindState:
		state, err := s.repo.GetState(ctx, id)
		if err != nil {
			return "", err
		}
		return state.Status, nil
	case access.KindBranch:
		branch, err := s.repo.GetBranch(ctx, id)
		if err != nil {
			return "", err
		}
		return branch.Status, nil
	case access.KindZone:
		zone, err := s.repo.GetZone(ctx, id)
		if err != nil {
			return "", err
		}
		return zone.Status, nil
	}
	return "", errors.BadRequest(fmt.Sprintf("unknown node kind %q", kind))
}

// --- Admin Creation ---

// CreateAdmin creates a new principal. The actor must strictly outrank
// the new role. Scoped admin roles require a jurisdiction whose level
// matches the role; SuperAdmin must be created without one.
func (s *Service) CreateAdmin(ctx context.Context, actor *ResolvedAdmin, req CreateAdminRequest) (*Admin, error) {
	if !req.Role.Valid() {
		return nil, errors.Validation("validation failed", map[string]string{
			"role": fmt.Sprintf("unknown role %q", req.Role),
		})
	}

	allowed := access.CanManage(actor.Role, req.Role)
	metrics.RecordAuthorizationDecision("create_admin", allowed)
	if !allowed {
		return nil, errors.Forbidden(fmt.Sprintf("role %s may not create %s principals", actor.Role, req.Role))
	}

	if err := s.validateJurisdiction(ctx, actor, req); err != nil {
		return nil, err
	}

	// New principals start disabled and are approved through the
	// lifecycle enable path by an admin who outranks them and shares
	// their jurisdiction. The bootstrap super admin is seeded active.
	admin := &Admin{
		ID:           types.NewID(),
		Name:         req.Name,
		Email:        req.Email,
		Role:         req.Role,
		Jurisdiction: req.Jurisdiction,
		Active:       false,
	}

	if err := s.repo.CreateAdmin(ctx, admin); err != nil {
		return nil, err
	}

	return admin, nil
}

func (s *Service) validateJurisdiction(ctx context.Context, actor *ResolvedAdmin, req CreateAdminRequest) error {
	if req.Role == access.RoleSuperAdmin {
		if req.Jurisdiction != nil {
			return errors.Validation("validation failed", map[string]string{
				"jurisdiction": "super admin holds no jurisdiction",
			})
		}
		return nil
	}

	if req.Jurisdiction == nil {
		if req.Role.IsAdmin() {
			return errors.Validation("validation failed", map[string]string{
				"jurisdiction": "scoped admin roles require a jurisdiction",
			})
		}
		return nil
	}

	// Scoped admins bind at the level matching their role; leaf
	// principals may only be attached to a zone.
	if req.Role.IsAdmin() {
		expected, _ := access.LevelForRole(req.Role)
		if req.Jurisdiction.Level != expected {
			return errors.Validation("validation failed", map[string]string{
				"jurisdiction": fmt.Sprintf("role %s binds at level %s", req.Role, expected),
			})
		}
	} else if req.Jurisdiction.Level != access.LevelZone {
		return errors.Validation("validation failed", map[string]string{
			"jurisdiction": fmt.Sprintf("role %s may only be attached to a zone", req.Role),
		})
	}

	kind, _ := req.Jurisdiction.Level.Kind()
	node, err := s.repo.ResolveNode(ctx, kind, req.Jurisdiction.NodeID)
	if err != nil {
		return err
	}

	allowed := access.CanAccess(actor.Scope, node)
	metrics.RecordAuthorizationDecision("create_admin", allowed)
	if !allowed {
		return errors.Forbidden("jurisdiction node is outside your jurisdiction")
	}

	return nil
}
