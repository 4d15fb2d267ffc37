package notification

import (
	"context"
	"fmt"

	"github.com/eventgrid/platform/internal/access"
	"github.com/eventgrid/platform/internal/cascade"
	"github.com/eventgrid/platform/internal/directory"
	"github.com/eventgrid/platform/internal/shared/events"
	"github.com/eventgrid/platform/internal/shared/types"
)

// Subscriber listens to domain events and fans them out as
// notifications to the admins they concern
type Subscriber struct {
	dir *directory.Repository
	cas *cascade.Repository
	svc *Service
	bus events.EventBus
}

// NewSubscriber creates a new notification subscriber
func NewSubscriber(dir *directory.Repository, cas *cascade.Repository, svc *Service, bus events.EventBus) *Subscriber {
	return &Subscriber{dir: dir, cas: cas, svc: svc, bus: bus}
}

// Start subscribes to the event streams that produce notifications
func (s *Subscriber) Start(ctx context.Context) error {
	patterns := []struct {
		pattern      string
		consumerName string
	}{
		{"cascade.*", "notify-cascade-subscriber"},
		{"lifecycle.*", "notify-lifecycle-subscriber"},
		{"participation.*", "notify-participation-subscriber"},
	}

	for _, p := range patterns {
		if err := s.bus.Subscribe(ctx, p.pattern, p.consumerName, s.handleEvent); err != nil {
			return fmt.Errorf("failed to subscribe to %s: %w", p.pattern, err)
		}
	}

	return nil
}

func (s *Subscriber) handleEvent(ctx context.Context, event events.Event) error {
	data, ok := event.Data.(map[string]any)
	if !ok {
		return nil
	}

	switch event.Type {
	case "cascade.event.delegated":
		return s.notifyDelegated(ctx, event, data)
	case "lifecycle.jurisdiction.moved":
		return s.notifyJurisdictionMoved(ctx, event, data)
	case "lifecycle.admin.disabled":
		return s.notifyAdminStatus(ctx, event, data, "Your admin account has been disabled", PriorityUrgent)
	case "lifecycle.admin.enabled":
		return s.notifyAdminStatus(ctx, event, data, "Your admin account has been re-enabled", PriorityNormal)
	case "participation.event.status_changed":
		return s.notifyEventStatusChanged(ctx, event, data)
	}

	return nil
}

// notifyDelegated tells the admins of the newly delegated nodes that an
// event landed in their jurisdiction
func (s *Subscriber) notifyDelegated(ctx context.Context, event events.Event, data map[string]any) error {
	kind, _ := data["kind"].(string)
	level, ok := levelForKind(kind)
	if !ok {
		return nil
	}

	nodeIDs := idsFrom(data["node_ids"])
	if len(nodeIDs) == 0 {
		return nil
	}

	admins, err := s.dir.AdminsForNodes(ctx, level, nodeIDs)
	if err != nil {
		return fmt.Errorf("failed to resolve delegation recipients: %w", err)
	}

	subject := fmt.Sprintf("An event has been delegated to your %s", kind)
	for i := range admins {
		s.enqueueFor(&admins[i], event, subject, PriorityHigh, data)
	}

	return nil
}

// notifyJurisdictionMoved tells the receiving admin about the handover
func (s *Subscriber) notifyJurisdictionMoved(ctx context.Context, event events.Event, data map[string]any) error {
	toID, ok := idFrom(data["to_admin_id"])
	if !ok {
		return nil
	}

	admin, err := s.dir.GetAdmin(ctx, toID)
	if err != nil {
		return fmt.Errorf("failed to resolve handover recipient: %w", err)
	}

	s.enqueueFor(admin, event, "A jurisdiction has been assigned to you", PriorityHigh, data)
	return nil
}

// notifyAdminStatus tells the affected admin about an account change
func (s *Subscriber) notifyAdminStatus(ctx context.Context, event events.Event, data map[string]any, subject string, priority Priority) error {
	adminID, ok := idFrom(data["admin_id"])
	if !ok {
		return nil
	}

	admin, err := s.dir.GetAdmin(ctx, adminID)
	if err != nil {
		return fmt.Errorf("failed to resolve status recipient: %w", err)
	}

	s.enqueueFor(admin, event, subject, priority, data)
	return nil
}

// notifyEventStatusChanged fans a status move out to every admin in the
// event's delegation sets
func (s *Subscriber) notifyEventStatusChanged(ctx context.Context, event events.Event, data map[string]any) error {
	eventID, ok := idFrom(data["event_id"])
	if !ok {
		return nil
	}

	sets, err := s.cas.GetDelegations(ctx, eventID)
	if err != nil {
		return fmt.Errorf("failed to resolve delegation sets: %w", err)
	}

	toStatus, _ := data["to_status"].(string)
	subject := fmt.Sprintf("An event in your jurisdiction is now %s", toStatus)

	groups := []struct {
		level access.Level
		ids   []types.ID
	}{
		{access.LevelState, sets.States},
		{access.LevelBranch, sets.Branches},
		{access.LevelZone, sets.Zones},
	}

	for _, g := range groups {
		admins, err := s.dir.AdminsForNodes(ctx, g.level, g.ids)
		if err != nil {
			return fmt.Errorf("failed to resolve status change recipients: %w", err)
		}
		for i := range admins {
			s.enqueueFor(&admins[i], event, subject, PriorityNormal, data)
		}
	}

	return nil
}

func (s *Subscriber) enqueueFor(admin *directory.Admin, event events.Event, subject string, priority Priority, data map[string]any) {
	n := &Notification{
		Channel:       ChannelEmail,
		Priority:      priority,
		RecipientID:   admin.ID,
		RecipientName: admin.Name,
		Email:         admin.Email,
		Subject:       subject,
		Body:          subject,
		Data:          data,
		SourceEvent:   event.Type,
	}

	// Best effort; a full buffer is not the publisher's problem
	_ = s.svc.Enqueue(n)
}

func levelForKind(kind string) (access.Level, bool) {
	switch cascade.DelegationKind(kind) {
	case cascade.DelegationState:
		return access.LevelState, true
	case cascade.DelegationBranch:
		return access.LevelBranch, true
	case cascade.DelegationZone:
		return access.LevelZone, true
	}
	return "", false
}

// idFrom extracts an ID from event data, which may carry it as a
// string after a JSON round trip
func idFrom(v any) (types.ID, bool) {
	switch val := v.(type) {
	case types.ID:
		return val, !val.IsZero()
	case string:
		id, err := types.ParseID(val)
		if err != nil {
			return "", false
		}
		return id, true
	}
	return "", false
}

func idsFrom(v any) []types.ID {
	var ids []types.ID

	switch val := v.(type) {
	case []types.ID:
		return val
	case []any:
		for _, item := range val {
			if id, ok := idFrom(item); ok {
				ids = append(ids, id)
			}
		}
	case []string:
		for _, item := range val {
			if id, ok := idFrom(item); ok {
				ids = append(ids, id)
			}
		}
	}

	return ids
}
