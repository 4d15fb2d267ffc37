package lifecycle

import (
	"context"
	"fmt"

	"github.com/eventgrid/platform/internal/access"
	"github.com/eventgrid/platform/internal/directory"
	"github.com/eventgrid/platform/internal/shared/errors"
	"github.com/eventgrid/platform/internal/shared/metrics"
	"github.com/eventgrid/platform/internal/shared/types"
)

// Service implements the admin lifecycle workflows: disable, enable and
// the atomic jurisdiction move in its two modes.
type Service struct {
	repo *Repository
	dir  *directory.Repository
}

// NewService creates a new lifecycle service
func NewService(repo *Repository, dir *directory.Repository) *Service {
	return &Service{repo: repo, dir: dir}
}

// Disable deactivates an admin. The actor must strictly outrank the
// target and hold jurisdiction over the target's node.
func (s *Service) Disable(ctx context.Context, actor *directory.ResolvedAdmin, targetID types.ID, reason string) error {
	if err := s.authorizeOverAdmin(ctx, actor, targetID, "disable_admin"); err != nil {
		return err
	}

	if err := s.repo.SetActive(ctx, targetID, false, actor.ID, reason); err != nil {
		return err
	}

	metrics.RecordLifecycleTransition("disable")
	return nil
}

// Enable reactivates a disabled admin under the same authorization rule
// as Disable.
func (s *Service) Enable(ctx context.Context, actor *directory.ResolvedAdmin, targetID types.ID, reason string) error {
	if err := s.authorizeOverAdmin(ctx, actor, targetID, "enable_admin"); err != nil {
		return err
	}

	if err := s.repo.SetActive(ctx, targetID, true, actor.ID, reason); err != nil {
		return err
	}

	metrics.RecordLifecycleTransition("enable")
	return nil
}

// Move runs the jurisdiction move workflow. Transfer and replace share
// the same transaction; the mode only decides the fate of the source.
func (s *Service) Move(ctx context.Context, actor *directory.ResolvedAdmin, fromID types.ID, req MoveRequest, mode MoveMode) (*MoveResult, error) {
	if req.ToAdminID.IsZero() {
		return nil, errors.Validation("validation failed", map[string]string{
			"to_admin_id": "to_admin_id is required",
		})
	}

	if err := s.authorizeOverAdmin(ctx, actor, fromID, "move_jurisdiction"); err != nil {
		return nil, err
	}

	result, err := s.repo.MoveJurisdiction(ctx, fromID, req.ToAdminID, mode, actor.ID, req.Reason)
	if err != nil {
		return nil, err
	}

	metrics.RecordLifecycleTransition(string(mode))
	return result, nil
}

// authorizeOverAdmin checks rank and jurisdiction overlap against the
// target admin. A target without a jurisdiction is reachable only by a
// SuperAdmin, since no scoped jurisdiction can contain it.
func (s *Service) authorizeOverAdmin(ctx context.Context, actor *directory.ResolvedAdmin, targetID types.ID, check string) error {
	target, err := s.dir.GetAdmin(ctx, targetID)
	if err != nil {
		return err
	}

	if !access.CanManage(actor.Role, target.Role) {
		metrics.RecordAuthorizationDecision(check, false)
		return errors.Forbidden(fmt.Sprintf("role %s may not manage %s admins", actor.Role, target.Role))
	}

	if target.Jurisdiction == nil {
		allowed := actor.Role == access.RoleSuperAdmin
		metrics.RecordAuthorizationDecision(check, allowed)
		if !allowed {
			return errors.Forbidden("admin without jurisdiction can only be managed by a super admin")
		}
		return nil
	}

	kind, ok := target.Jurisdiction.Level.Kind()
	if !ok {
		return errors.Internal(fmt.Errorf("admin %s has unknown jurisdiction level %q", target.ID, target.Jurisdiction.Level))
	}

	node, err := s.dir.ResolveNode(ctx, kind, target.Jurisdiction.NodeID)
	if err != nil {
		return err
	}

	allowed := access.CanAccess(actor.Scope, node)
	metrics.RecordAuthorizationDecision(check, allowed)
	if !allowed {
		return errors.Forbidden("admin is outside your jurisdiction")
	}

	return nil
}
