package lifecycle

import (
	"time"

	"github.com/eventgrid/platform/internal/access"
	"github.com/eventgrid/platform/internal/shared/types"
)

// MoveMode selects what happens to the source admin after its
// jurisdiction moves to the destination.
type MoveMode string

const (
	// MoveTransfer clears the source's jurisdiction but leaves the
	// admin active, waiting for a new assignment.
	MoveTransfer MoveMode = "transfer"
	// MoveReplace clears the source's jurisdiction and deactivates
	// the admin in the same transaction.
	MoveReplace MoveMode = "replace"
)

// StatusRequest carries the reason for a disable or enable operation
type StatusRequest struct {
	Reason string `json:"reason"`
}

// MoveRequest names the admin that receives the jurisdiction
type MoveRequest struct {
	ToAdminID types.ID `json:"to_admin_id" validate:"required"`
	Reason    string   `json:"reason"`
}

// MoveResult describes a completed jurisdiction move
type MoveResult struct {
	Mode        MoveMode     `json:"mode"`
	FromAdminID types.ID     `json:"from_admin_id"`
	ToAdminID   types.ID     `json:"to_admin_id"`
	Level       access.Level `json:"level"`
	NodeID      types.ID     `json:"node_id"`
	MovedAt     time.Time    `json:"moved_at"`
}

// adminRow is the locked projection of an admin used inside the move
// transaction
type adminRow struct {
	ID     types.ID
	Role   access.Role
	Level  *access.Level
	NodeID *types.ID
	Active bool
}
