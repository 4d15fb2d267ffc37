package directory

import (
	"time"

	"github.com/eventgrid/platform/internal/access"
	"github.com/eventgrid/platform/internal/shared/types"
)

// NodeStatus defines the status of a geography node
type NodeStatus string

const (
	NodeStatusActive   NodeStatus = "active"
	NodeStatusInactive NodeStatus = "inactive"
	NodeStatusPending  NodeStatus = "pending"
	NodeStatusRejected NodeStatus = "rejected"
)

// State is the root level of the geography tree
type State struct {
	ID     types.ID   `json:"id"`
	Name   string     `json:"name"`
	Code   string     `json:"code"`
	Status NodeStatus `json:"status"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Branch is a subdivision of a state
type Branch struct {
	ID      types.ID   `json:"id"`
	StateID types.ID   `json:"state_id"`
	Name    string     `json:"name"`
	Code    string     `json:"code"`
	Status  NodeStatus `json:"status"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Zone is a subdivision of a branch
type Zone struct {
	ID       types.ID   `json:"id"`
	BranchID types.ID   `json:"branch_id"`
	Name     string     `json:"name"`
	Code     string     `json:"code"`
	Status   NodeStatus `json:"status"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// PickupStation is a physical distribution point inside a zone
type PickupStation struct {
	ID       types.ID `json:"id"`
	ZoneID   types.ID `json:"zone_id"`
	Name     string   `json:"name"`
	Capacity int      `json:"capacity"`
	Active   bool     `json:"active"`

	Address types.Address     `json:"address"`
	Contact types.ContactInfo `json:"contact"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Jurisdiction is the single node an admin is responsible for. The full
// ancestry (branch's state, zone's branch and state) is derived at read
// time, never stored on the admin row.
type Jurisdiction struct {
	Level  access.Level `json:"level"`
	NodeID types.ID     `json:"node_id"`
}

// Admin represents a platform principal. Jurisdiction is nil for a
// SuperAdmin, and temporarily nil for a scoped admin whose jurisdiction
// was transferred away.
type Admin struct {
	ID    types.ID    `json:"id"`
	Name  string      `json:"name"`
	Email string      `json:"email"`
	Role  access.Role `json:"role"`

	Jurisdiction *Jurisdiction `json:"jurisdiction,omitempty"`

	Active          bool       `json:"active"`
	StatusChangedAt *time.Time `json:"status_changed_at,omitempty"`
	StatusChangedBy *types.ID  `json:"status_changed_by,omitempty"`
	StatusReason    string     `json:"status_reason,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ResolvedAdmin is an admin with the jurisdiction ancestry expanded into
// an access scope. All permission checks run against the scope.
type ResolvedAdmin struct {
	Admin
	Scope access.Scope `json:"scope"`
}

// CreateStateRequest is the request to create a state
type CreateStateRequest struct {
	Name string `json:"name" validate:"required,min=2,max=255"`
	Code string `json:"code" validate:"required,min=2,max=50"`
}

// CreateBranchRequest is the request to create a branch under a state
type CreateBranchRequest struct {
	Name string `json:"name" validate:"required,min=2,max=255"`
	Code string `json:"code" validate:"required,min=2,max=50"`
}

// CreateZoneRequest is the request to create a zone under a branch
type CreateZoneRequest struct {
	Name string `json:"name" validate:"required,min=2,max=255"`
	Code string `json:"code" validate:"required,min=2,max=50"`
}

// CreateStationRequest is the request to create a pickup station under a zone
type CreateStationRequest struct {
	Name     string            `json:"name" validate:"required,min=2,max=255"`
	Capacity int               `json:"capacity" validate:"min=0"`
	Address  types.Address     `json:"address"`
	Contact  types.ContactInfo `json:"contact"`
}

// CreateAdminRequest is the request to create an admin
type CreateAdminRequest struct {
	Name         string        `json:"name" validate:"required,min=2,max=255"`
	Email        string        `json:"email" validate:"required,email"`
	Role         access.Role   `json:"role" validate:"required"`
	Jurisdiction *Jurisdiction `json:"jurisdiction,omitempty"`
}

// ListAdminsFilter defines filters for listing admins
type ListAdminsFilter struct {
	Role   *access.Role  `json:"role,omitempty"`
	Level  *access.Level `json:"level,omitempty"`
	Active *bool         `json:"active,omitempty"`
	Search string        `json:"search,omitempty"`
	Limit  int           `json:"limit,omitempty"`
	Offset int           `json:"offset,omitempty"`
}
