package cascade

import (
	"context"
	"fmt"

	"github.com/eventgrid/platform/internal/access"
	"github.com/eventgrid/platform/internal/directory"
	"github.com/eventgrid/platform/internal/shared/errors"
	"github.com/eventgrid/platform/internal/shared/metrics"
	"github.com/eventgrid/platform/internal/shared/types"
)

// Service implements the cascade workflows: event creation at the
// actor's level, delegation down the tree and station assignment at
// the zone floor.
type Service struct {
	repo *Repository
	dir  *directory.Repository
}

// NewService creates a new cascade service
func NewService(repo *Repository, dir *directory.Repository) *Service {
	return &Service{repo: repo, dir: dir}
}

// --- Event Creation ---

// CreateEvent creates an event with its initial delegation sets. The
// targets are interpreted one level below the actor's own, and the
// actor's full ancestry is inserted into the sets above them so the
// derived level is correct from the first read.
func (s *Service) CreateEvent(ctx context.Context, actor *directory.ResolvedAdmin, req CreateEventRequest) (*EventDetail, error) {
	if req.Title == "" {
		return nil, errors.Validation("validation failed", map[string]string{
			"title": "title is required",
		})
	}
	if !req.EndsAt.After(req.StartsAt) {
		return nil, errors.Validation("validation failed", map[string]string{
			"ends_at": "ends_at must be after starts_at",
		})
	}

	initial, err := s.initialDelegations(ctx, actor, req.TargetIDs)
	if err != nil {
		return nil, err
	}

	event := &Event{
		ID:          types.NewID(),
		Title:       req.Title,
		Description: req.Description,
		Status:      EventStatusScheduled,
		StartsAt:    req.StartsAt,
		EndsAt:      req.EndsAt,
		CreatedBy:   actor.ID,
		CreatorRole: actor.Role,
	}

	if err := s.repo.CreateEvent(ctx, event, initial); err != nil {
		return nil, err
	}

	metrics.RecordEventCreated(string(actor.Role))

	return s.detail(ctx, event)
}

// initialDelegations builds the creation-time delegation sets for the
// actor's role
func (s *Service) initialDelegations(ctx context.Context, actor *directory.ResolvedAdmin, targets []types.ID) (map[DelegationKind][]types.ID, error) {
	initial := make(map[DelegationKind][]types.ID)

	switch actor.Role {
	case access.RoleSuperAdmin:
		if err := s.checkTargets(ctx, actor, access.KindState, targets); err != nil {
			return nil, err
		}
		initial[DelegationState] = targets

	case access.RoleStateAdmin:
		if err := s.checkTargets(ctx, actor, access.KindBranch, targets); err != nil {
			return nil, err
		}
		initial[DelegationState] = []types.ID{actor.Scope.StateID}
		initial[DelegationBranch] = targets

	case access.RoleBranchAdmin:
		if err := s.checkTargets(ctx, actor, access.KindZone, targets); err != nil {
			return nil, err
		}
		initial[DelegationState] = []types.ID{actor.Scope.StateID}
		initial[DelegationBranch] = []types.ID{actor.Scope.BranchID}
		initial[DelegationZone] = targets

	case access.RoleZonalAdmin:
		// A zonal admin creates an event scoped to their own zone;
		// explicit targets may only name that zone.
		for _, id := range targets {
			if id != actor.Scope.ZoneID {
				return nil, errors.Forbidden("zone is outside your jurisdiction")
			}
		}
		initial[DelegationState] = []types.ID{actor.Scope.StateID}
		initial[DelegationBranch] = []types.ID{actor.Scope.BranchID}
		initial[DelegationZone] = []types.ID{actor.Scope.ZoneID}

	default:
		return nil, errors.Forbidden(fmt.Sprintf("role %s may not create events", actor.Role))
	}

	return initial, nil
}

// checkTargets verifies that every target exists, is active and lies
// inside the actor's jurisdiction. At least one target is required.
func (s *Service) checkTargets(ctx context.Context, actor *directory.ResolvedAdmin, kind access.NodeKind, targets []types.ID) error {
	if len(targets) == 0 {
		return errors.InvalidState(fmt.Sprintf("at least one %s target is required", kind))
	}

	for _, id := range targets {
		node, err := s.dir.ResolveNode(ctx, kind, id)
		if err != nil {
			return err
		}

		allowed := access.CanAccess(actor.Scope, node)
		metrics.RecordAuthorizationDecision("event_target", allowed)
		if !allowed {
			return errors.Forbidden(fmt.Sprintf("%s %s is outside your jurisdiction", kind, id))
		}

		active, err := s.nodeActive(ctx, kind, id)
		if err != nil {
			return err
		}
		if !active {
			return errors.InvalidState(fmt.Sprintf("%s %s is not active", kind, id))
		}
	}

	return nil
}

func (s *Service) nodeActive(ctx context.Context, kind access.NodeKind, id types.ID) (bool, error) {
	switch kind {
	case access.KindState:
		state, err := s.dir.GetState(ctx, id)
		if err != nil {
			return false, err
		}
		return state.Status == directory.NodeStatusActive, nil
	case access.KindBranch:
		branch, err := s.dir.GetBranch(ctx, id)
		if err != nil {
			return false, err
		}
		return branch.Status == directory.NodeStatusActive, nil
	case access.KindZone:
		zone, err := s.dir.GetZone(ctx, id)
		if err != nil {
			return false, err
		}
		return zone.Status == directory.NodeStatusActive, nil
	}
	return false, errors.BadRequest(fmt.Sprintf("unknown node kind %q", kind))
}

// --- Delegation ---

// Delegate appends nodes to a delegation set. Appends are unions:
// sibling admins may grow disjoint parts of the same set in any order
// while the event is open, and duplicates are absorbed.
func (s *Service) Delegate(ctx context.Context, actor *directory.ResolvedAdmin, eventID types.ID, req DelegateRequest) (*EventDetail, error) {
	if len(req.NodeIDs) == 0 {
		return nil, errors.InvalidState("at least one node is required")
	}

	event, err := s.repo.GetEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if event.Status == EventStatusConcluded || event.Status == EventStatusCancelled {
		return nil, errors.InvalidState(fmt.Sprintf("event is %s, delegation is closed", event.Status))
	}

	sets, err := s.repo.GetDelegations(ctx, eventID)
	if err != nil {
		return nil, err
	}

	switch req.Kind {
	case DelegationBranch:
		if err := s.authorizeBranchDelegation(actor, sets); err != nil {
			return nil, err
		}
		if err := s.checkTargets(ctx, actor, access.KindBranch, req.NodeIDs); err != nil {
			return nil, err
		}

	case DelegationZone:
		if err := s.authorizeZoneDelegation(actor, sets); err != nil {
			return nil, err
		}
		if err := s.checkTargets(ctx, actor, access.KindZone, req.NodeIDs); err != nil {
			return nil, err
		}

	case DelegationState:
		return nil, errors.BadRequest("the state set is fixed at event creation")

	default:
		return nil, errors.BadRequest(fmt.Sprintf("unknown delegation kind %q", req.Kind))
	}

	if _, err := s.repo.AppendDelegations(ctx, eventID, req.Kind, req.NodeIDs, actor.ID); err != nil {
		return nil, err
	}

	metrics.RecordDelegationAppend(string(req.Kind))

	return s.detail(ctx, event)
}

// authorizeBranchDelegation admits a state admin whose state is in the
// state set. Sibling states delegate independently; how deep other
// subtrees have already cascaded is irrelevant.
func (s *Service) authorizeBranchDelegation(actor *directory.ResolvedAdmin, sets DelegationSets) error {
	allowed := actor.Role == access.RoleStateAdmin && sets.Contains(DelegationState, actor.Scope.StateID)
	metrics.RecordAuthorizationDecision("delegate_branch", allowed)
	if !allowed {
		return errors.Forbidden("branch delegation requires a state admin of a delegated state")
	}

	return nil
}

// authorizeZoneDelegation admits a branch admin whose branch is
// already in the branch set. A branch enters the cascade only through
// its state admin's delegation; there is no shortcut via the state set.
func (s *Service) authorizeZoneDelegation(actor *directory.ResolvedAdmin, sets DelegationSets) error {
	allowed := actor.Role == access.RoleBranchAdmin && sets.Contains(DelegationBranch, actor.Scope.BranchID)
	metrics.RecordAuthorizationDecision("delegate_zone", allowed)
	if !allowed {
		return errors.Forbidden("zone delegation requires a branch admin of a delegated branch")
	}

	return nil
}

// --- Station Assignment ---

// AssignStations replaces the station selection of one zone of the
// event. Only that zone's rows are rewritten; selections of other
// zones are untouched.
func (s *Service) AssignStations(ctx context.Context, actor *directory.ResolvedAdmin, eventID, zoneID types.ID, req AssignStationsRequest) ([]StationAssignment, error) {
	if len(req.StationIDs) == 0 {
		return nil, errors.InvalidState("at least one station is required")
	}

	event, err := s.repo.GetEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if event.Status == EventStatusConcluded || event.Status == EventStatusCancelled {
		return nil, errors.InvalidState(fmt.Sprintf("event is %s, assignment is closed", event.Status))
	}

	sets, err := s.repo.GetDelegations(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if !sets.Contains(DelegationZone, zoneID) {
		return nil, errors.InvalidState("zone is not delegated on this event")
	}

	zone, err := s.dir.ResolveNode(ctx, access.KindZone, zoneID)
	if err != nil {
		return nil, err
	}

	allowed := access.CanAccess(actor.Scope, zone)
	metrics.RecordAuthorizationDecision("assign_stations", allowed)
	if !allowed {
		return nil, errors.Forbidden("zone is outside your jurisdiction")
	}

	stations, err := s.dir.GetStationsByIDs(ctx, req.StationIDs)
	if err != nil {
		return nil, err
	}
	if len(stations) != len(dedupe(req.StationIDs)) {
		return nil, errors.NotFound("station", "one or more stations do not exist")
	}

	assignments := make([]StationAssignment, 0, len(stations))
	for _, station := range stations {
		if station.ZoneID != zoneID {
			return nil, errors.InvalidState(fmt.Sprintf("station %s does not belong to zone %s", station.ID, zoneID))
		}
		if !station.Active {
			return nil, errors.InvalidState(fmt.Sprintf("station %s is not active", station.ID))
		}

		assignments = append(assignments, StationAssignment{
			EventID:    eventID,
			ZoneID:     zoneID,
			StationID:  station.ID,
			Capacity:   station.Capacity,
			Occupancy:  0,
			AssignedBy: actor.ID,
		})
	}

	if err := s.repo.ReplaceZoneStations(ctx, eventID, zoneID, assignments); err != nil {
		return nil, err
	}

	metrics.RecordDelegationAppend("station")

	return assignments, nil
}

func dedupe(ids []types.ID) []types.ID {
	seen := make(map[types.ID]struct{}, len(ids))
	out := make([]types.ID, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// --- Reads ---

// GetEventDetail loads an event with its delegation sets, enforcing
// that the actor's jurisdiction intersects them
func (s *Service) GetEventDetail(ctx context.Context, actor *directory.ResolvedAdmin, eventID types.ID) (*EventDetail, error) {
	event, err := s.repo.GetEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}

	detail, err := s.detail(ctx, event)
	if err != nil {
		return nil, err
	}

	allowed := s.visible(actor, detail.Delegations)
	metrics.RecordAuthorizationDecision("view_event", allowed)
	if !allowed {
		return nil, errors.Forbidden("event is outside your jurisdiction")
	}

	return detail, nil
}

// visible reports whether the scope intersects the delegation sets
func (s *Service) visible(actor *directory.ResolvedAdmin, sets DelegationSets) bool {
	switch actor.Role {
	case access.RoleSuperAdmin:
		return true
	case access.RoleStateAdmin:
		return sets.Contains(DelegationState, actor.Scope.StateID)
	case access.RoleBranchAdmin:
		return sets.Contains(DelegationBranch, actor.Scope.BranchID) ||
			sets.Contains(DelegationState, actor.Scope.StateID)
	case access.RoleZonalAdmin:
		return sets.Contains(DelegationZone, actor.Scope.ZoneID) ||
			sets.Contains(DelegationBranch, actor.Scope.BranchID)
	}
	return false
}

// ListEvents lists events visible to the actor
func (s *Service) ListEvents(ctx context.Context, actor *directory.ResolvedAdmin, filter ListEventsFilter) ([]Event, int, error) {
	return s.repo.ListEventsForScope(ctx, actor.Scope, filter)
}

func (s *Service) detail(ctx context.Context, event *Event) (*EventDetail, error) {
	sets, err := s.repo.GetDelegations(ctx, event.ID)
	if err != nil {
		return nil, err
	}

	return &EventDetail{
		Event:       *event,
		Level:       sets.Level(),
		Delegations: sets,
	}, nil
}
