package lifecycle

import (
	"testing"
	"time"

	"github.com/eventgrid/platform/internal/access"
	"github.com/eventgrid/platform/internal/shared/types"
)

func TestMoveModes(t *testing.T) {
	tests := []struct {
		mode     MoveMode
		expected string
	}{
		{MoveTransfer, "transfer"},
		{MoveReplace, "replace"},
	}

	for _, tt := range tests {
		t.Run(string(tt.mode), func(t *testing.T) {
			if string(tt.mode) != tt.expected {
				t.Errorf("Expected '%s', got '%s'", tt.expected, tt.mode)
			}
		})
	}
}

func TestMoveResult(t *testing.T) {
	fromID := types.NewID()
	toID := types.NewID()
	nodeID := types.NewID()

	result := MoveResult{
		Mode:        MoveReplace,
		FromAdminID: fromID,
		ToAdminID:   toID,
		Level:       access.LevelBranch,
		NodeID:      nodeID,
		MovedAt:     time.Now().UTC(),
	}

	if result.FromAdminID != fromID {
		t.Error("FromAdminID mismatch")
	}

	if result.ToAdminID != toID {
		t.Error("ToAdminID mismatch")
	}

	if result.Level != access.LevelBranch {
		t.Errorf("Expected level branch_admin, got '%s'", result.Level)
	}

	if result.NodeID != nodeID {
		t.Error("NodeID mismatch")
	}

	if result.MovedAt.IsZero() {
		t.Error("MovedAt should be stamped")
	}
}

func TestMoveRequestValidation(t *testing.T) {
	req := MoveRequest{}

	if !req.ToAdminID.IsZero() {
		t.Error("Empty request should have zero ToAdminID")
	}

	req.ToAdminID = types.NewID()
	req.Reason = "regional reorganization"

	if req.ToAdminID.IsZero() {
		t.Error("ToAdminID should be set")
	}

	if req.Reason != "regional reorganization" {
		t.Errorf("Expected reason 'regional reorganization', got '%s'", req.Reason)
	}
}

func TestAdminRowJurisdictionPresence(t *testing.T) {
	level := access.LevelZone
	nodeID := types.NewID()

	tests := []struct {
		name string
		row  adminRow
		held bool
	}{
		{
			name: "scoped admin holds jurisdiction",
			row:  adminRow{ID: types.NewID(), Role: access.RoleZonalAdmin, Level: &level, NodeID: &nodeID, Active: true},
			held: true,
		},
		{
			name: "admin awaiting assignment",
			row:  adminRow{ID: types.NewID(), Role: access.RoleZonalAdmin, Active: true},
			held: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			held := tt.row.Level != nil && tt.row.NodeID != nil
			if held != tt.held {
				t.Errorf("Expected held=%v, got %v", tt.held, held)
			}
		})
	}
}
