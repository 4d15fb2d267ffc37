package participation

import (
	"context"
	"fmt"

	"github.com/eventgrid/platform/internal/cascade"
	"github.com/eventgrid/platform/internal/directory"
	"github.com/eventgrid/platform/internal/shared/errors"
	"github.com/eventgrid/platform/internal/shared/metrics"
	"github.com/eventgrid/platform/internal/shared/types"
)

// Service implements participation updates, event status moves and the
// timeline reads. Event visibility is delegated to the cascade module;
// everything the caller reaches here has already passed the
// jurisdiction intersection check.
type Service struct {
	repo *Repository
	cas  *cascade.Service
}

// NewService creates a new participation service
func NewService(repo *Repository, cas *cascade.Service) *Service {
	return &Service{repo: repo, cas: cas}
}

// UpdateParticipation upserts a participant's standing and appends the
// change to the event timeline
func (s *Service) UpdateParticipation(ctx context.Context, actor *directory.ResolvedAdmin, eventID types.ID, req UpdateParticipationRequest) (*Participation, *TimelineEntry, error) {
	if req.ParticipantID.IsZero() {
		return nil, nil, errors.Validation("validation failed", map[string]string{
			"participant_id": "participant_id is required",
		})
	}
	if !req.Status.Valid() {
		return nil, nil, errors.Validation("validation failed", map[string]string{
			"status": fmt.Sprintf("unknown status %q", req.Status),
		})
	}

	if _, err := s.cas.GetEventDetail(ctx, actor, eventID); err != nil {
		return nil, nil, err
	}

	p := &Participation{
		EventID:       eventID,
		ParticipantID: req.ParticipantID,
		StationID:     req.StationID,
		Status:        req.Status,
		UpdatedBy:     actor.ID,
		Reason:        req.Reason,
	}

	entry, err := s.repo.UpsertParticipation(ctx, p)
	if err != nil {
		return nil, nil, err
	}

	metrics.RecordParticipationUpdate(string(req.Status))
	metrics.RecordTimelineEntry()

	return p, entry, nil
}

// UpdateEventStatus moves the event through its status machine. Only
// the creator, or an admin who strictly outranks the creator, may move
// an event.
func (s *Service) UpdateEventStatus(ctx context.Context, actor *directory.ResolvedAdmin, eventID types.ID, req UpdateEventStatusRequest) (*TimelineEntry, error) {
	if !req.Status.Valid() {
		return nil, errors.Validation("validation failed", map[string]string{
			"status": fmt.Sprintf("unknown status %q", req.Status),
		})
	}

	detail, err := s.cas.GetEventDetail(ctx, actor, eventID)
	if err != nil {
		return nil, err
	}

	allowed := actor.ID == detail.CreatedBy || actor.Role.Rank() > detail.CreatorRole.Rank()
	metrics.RecordAuthorizationDecision("event_status", allowed)
	if !allowed {
		return nil, errors.Forbidden("only the creator or a higher-ranked admin may move this event")
	}

	entry, err := s.repo.UpdateEventStatus(ctx, eventID, req.Status, actor.ID, string(actor.Role), req.Reason)
	if err != nil {
		return nil, err
	}

	metrics.RecordEventStatusChange(entry.FromStatus, entry.ToStatus)
	metrics.RecordTimelineEntry()

	return entry, nil
}

// ListParticipations lists the participants of an event the actor can
// see
func (s *Service) ListParticipations(ctx context.Context, actor *directory.ResolvedAdmin, eventID types.ID) ([]Participation, error) {
	if _, err := s.cas.GetEventDetail(ctx, actor, eventID); err != nil {
		return nil, err
	}
	return s.repo.ListParticipations(ctx, eventID)
}

// GetTimeline returns the event timeline, newest first
func (s *Service) GetTimeline(ctx context.Context, actor *directory.ResolvedAdmin, eventID types.ID, limit, offset int) ([]TimelineEntry, int, error) {
	if _, err := s.cas.GetEventDetail(ctx, actor, eventID); err != nil {
		return nil, 0, err
	}
	return s.repo.ListTimeline(ctx, eventID, limit, offset)
}

// VerifyTimeline walks the event's chain and reports whether it is
// intact
func (s *Service) VerifyTimeline(ctx context.Context, actor *directory.ResolvedAdmin, eventID types.ID) (*ChainReport, error) {
	if _, err := s.cas.GetEventDetail(ctx, actor, eventID); err != nil {
		return nil, err
	}
	return s.repo.VerifyChain(ctx, eventID)
}
