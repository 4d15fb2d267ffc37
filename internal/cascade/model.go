package cascade

import (
	"time"

	"github.com/eventgrid/platform/internal/access"
	"github.com/eventgrid/platform/internal/shared/types"
)

// EventStatus defines the status of an event
type EventStatus string

const (
	EventStatusScheduled EventStatus = "scheduled"
	EventStatusOngoing   EventStatus = "ongoing"
	EventStatusConcluded EventStatus = "concluded"
	EventStatusCancelled EventStatus = "cancelled"
)

// Valid reports whether the status is a known event status
func (s EventStatus) Valid() bool {
	switch s {
	case EventStatusScheduled, EventStatusOngoing, EventStatusConcluded, EventStatusCancelled:
		return true
	}
	return false
}

// DelegationKind identifies which membership set a delegation row
// belongs to
type DelegationKind string

const (
	DelegationState  DelegationKind = "state"
	DelegationBranch DelegationKind = "branch"
	DelegationZone   DelegationKind = "zone"
)

// Event is the aggregate root of a cascade. Its level is never stored;
// it is derived from the delegation sets on every read.
type Event struct {
	ID          types.ID    `json:"id"`
	Title       string      `json:"title"`
	Description string      `json:"description,omitempty"`
	Status      EventStatus `json:"status"`

	StartsAt time.Time `json:"starts_at"`
	EndsAt   time.Time `json:"ends_at"`

	CreatedBy   types.ID    `json:"created_by"`
	CreatorRole access.Role `json:"creator_role"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DelegationSets holds the three membership sets of an event. Each set
// is a deduplicated union of everything ever delegated at that kind;
// rows are appended, never removed.
type DelegationSets struct {
	States   []types.ID `json:"states"`
	Branches []types.ID `json:"branches"`
	Zones    []types.ID `json:"zones"`

	// StationsAssigned is true when at least one pickup station has
	// been assigned in any zone of the event
	StationsAssigned bool `json:"stations_assigned"`
}

// Level derives the rank the cascade currently sits at from the deepest
// populated set. An event with only states has not been delegated past
// the root; assigned stations mean the cascade reached the zone floor.
func (d DelegationSets) Level() access.Role {
	switch {
	case d.StationsAssigned:
		return access.RoleZonalAdmin
	case len(d.Zones) > 0:
		return access.RoleBranchAdmin
	case len(d.Branches) > 0:
		return access.RoleStateAdmin
	default:
		return access.RoleSuperAdmin
	}
}

// Contains reports whether an id is a member of the given set
func (d DelegationSets) Contains(kind DelegationKind, id types.ID) bool {
	var set []types.ID
	switch kind {
	case DelegationState:
		set = d.States
	case DelegationBranch:
		set = d.Branches
	case DelegationZone:
		set = d.Zones
	}

	for _, member := range set {
		if member == id {
			return true
		}
	}
	return false
}

// EventDetail is an event with its delegation sets expanded
type EventDetail struct {
	Event
	Level       access.Role    `json:"level"`
	Delegations DelegationSets `json:"delegations"`
}

// StationAssignment binds a pickup station to an event inside a zone
type StationAssignment struct {
	EventID   types.ID `json:"event_id"`
	ZoneID    types.ID `json:"zone_id"`
	StationID types.ID `json:"station_id"`

	// Capacity is frozen from the station at assignment time; zero
	// means unbounded
	Capacity  int `json:"capacity"`
	Occupancy int `json:"occupancy"`

	AssignedBy types.ID  `json:"assigned_by"`
	AssignedAt time.Time `json:"assigned_at"`
}

// CreateEventRequest is the request to create an event. TargetIDs are
// interpreted at the level matching the creator's role: states for a
// SuperAdmin, branches for a StateAdmin, zones for a BranchAdmin. A
// ZonalAdmin creates without targets, scoped to their own zone.
type CreateEventRequest struct {
	Title       string     `json:"title" validate:"required,min=2,max=255"`
	Description string     `json:"description"`
	StartsAt    time.Time  `json:"starts_at" validate:"required"`
	EndsAt      time.Time  `json:"ends_at" validate:"required"`
	TargetIDs   []types.ID `json:"target_ids"`
}

// DelegateRequest appends nodes to one of the event's delegation sets
type DelegateRequest struct {
	Kind    DelegationKind `json:"kind" validate:"required"`
	NodeIDs []types.ID     `json:"node_ids" validate:"required,min=1"`
}

// AssignStationsRequest replaces the station selection of one zone
type AssignStationsRequest struct {
	StationIDs []types.ID `json:"station_ids" validate:"required,min=1"`
}

// ListEventsFilter defines filters for listing events
type ListEventsFilter struct {
	Status *EventStatus `json:"status,omitempty"`
	Limit  int          `json:"limit,omitempty"`
	Offset int          `json:"offset,omitempty"`
}
