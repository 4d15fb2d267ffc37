package notification

import (
	"context"
	"testing"
	"time"

	"github.com/eventgrid/platform/internal/access"
	"github.com/eventgrid/platform/internal/shared/config"
	"github.com/eventgrid/platform/internal/shared/types"
)

func testService(provider Provider, cfg ServiceConfig) *Service {
	return NewService(map[Channel]Provider{ChannelEmail: provider}, cfg)
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("Condition not met before timeout")
}

func TestServiceDispatch(t *testing.T) {
	mock := NewMockProvider("mock_email")
	svc := testService(mock, ServiceConfig{Workers: 2, BufferSize: 8, RetryAttempts: 1, RetryDelay: time.Millisecond})

	if err := svc.Start(context.Background()); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	defer svc.Stop()

	n := &Notification{
		Channel:     ChannelEmail,
		RecipientID: types.NewID(),
		Email:       "admin@example.com",
		Subject:     "test",
	}

	if err := svc.Enqueue(n); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	waitFor(t, time.Second, func() bool { return len(mock.Sent()) == 1 })

	if n.Status != StatusSent {
		t.Errorf("Expected '%s', got '%s'", StatusSent, n.Status)
	}

	stats := svc.GetStats()
	if stats.Sent != 1 {
		t.Errorf("Expected 1 sent, got %d", stats.Sent)
	}
	if stats.ByChannel[ChannelEmail] != 1 {
		t.Errorf("Expected 1 email dispatch, got %d", stats.ByChannel[ChannelEmail])
	}
}

func TestServiceRetryExhaustion(t *testing.T) {
	mock := NewMockProvider("mock_email")
	mock.SetFailOnSend(true)

	svc := testService(mock, ServiceConfig{Workers: 1, BufferSize: 8, RetryAttempts: 2, RetryDelay: 5 * time.Millisecond})

	if err := svc.Start(context.Background()); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	defer svc.Stop()

	n := &Notification{Channel: ChannelEmail, RecipientID: types.NewID(), Subject: "test"}
	if err := svc.Enqueue(n); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	waitFor(t, time.Second, func() bool { return svc.GetStats().Failed == 1 })

	if n.Status != StatusFailed {
		t.Errorf("Expected '%s', got '%s'", StatusFailed, n.Status)
	}
	if n.RetryCount != 2 {
		t.Errorf("Expected 2 attempts, got %d", n.RetryCount)
	}
	if n.LastError == "" {
		t.Error("Expected last error to be recorded")
	}
}

func TestServiceMissingProvider(t *testing.T) {
	svc := NewService(nil, ServiceConfig{Workers: 1, BufferSize: 8, RetryAttempts: 1, RetryDelay: time.Millisecond})

	if err := svc.Start(context.Background()); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	defer svc.Stop()

	n := &Notification{Channel: ChannelSMS, RecipientID: types.NewID()}
	if err := svc.Enqueue(n); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	waitFor(t, time.Second, func() bool { return svc.GetStats().Failed == 1 })

	if n.Status != StatusFailed {
		t.Errorf("Expected '%s', got '%s'", StatusFailed, n.Status)
	}
}

func TestEnqueueBufferFull(t *testing.T) {
	// Service never started, so nothing drains the buffer
	svc := testService(NewMockProvider("mock_email"), ServiceConfig{Workers: 1, BufferSize: 1, RetryAttempts: 1, RetryDelay: time.Millisecond})

	first := &Notification{Channel: ChannelEmail, RecipientID: types.NewID()}
	if err := svc.Enqueue(first); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	second := &Notification{Channel: ChannelEmail, RecipientID: types.NewID()}
	if err := svc.Enqueue(second); err == nil {
		t.Error("Expected error when buffer is full")
	}

	stats := svc.GetStats()
	if stats.Dropped != 1 {
		t.Errorf("Expected 1 dropped, got %d", stats.Dropped)
	}
}

func TestEnqueueDefaults(t *testing.T) {
	svc := testService(NewMockProvider("mock_email"), ServiceConfig{BufferSize: 4})

	n := &Notification{Channel: ChannelEmail, RecipientID: types.NewID()}
	if err := svc.Enqueue(n); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if n.ID == "" {
		t.Error("Expected ID to be assigned")
	}
	if n.Priority != PriorityNormal {
		t.Errorf("Expected '%s', got '%s'", PriorityNormal, n.Priority)
	}
	if n.CreatedAt.IsZero() {
		t.Error("Expected created timestamp to be set")
	}
}

func TestConfigFrom(t *testing.T) {
	sc := ConfigFrom(config.NotifyConfig{Workers: 8, BufferSize: 512})
	if sc.Workers != 8 {
		t.Errorf("Expected 8 workers, got %d", sc.Workers)
	}
	if sc.BufferSize != 512 {
		t.Errorf("Expected buffer size 512, got %d", sc.BufferSize)
	}

	defaults := ConfigFrom(config.NotifyConfig{})
	if defaults.Workers != 4 || defaults.BufferSize != 256 {
		t.Errorf("Expected defaults, got workers=%d buffer=%d", defaults.Workers, defaults.BufferSize)
	}
}

func TestLevelForKind(t *testing.T) {
	tests := []struct {
		kind  string
		level access.Level
		ok    bool
	}{
		{"state", access.LevelState, true},
		{"branch", access.LevelBranch, true},
		{"zone", access.LevelZone, true},
		{"station", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		level, ok := levelForKind(tt.kind)
		if ok != tt.ok || level != tt.level {
			t.Errorf("levelForKind(%q) = (%q, %v), want (%q, %v)", tt.kind, level, ok, tt.level, tt.ok)
		}
	}
}

func TestIDExtraction(t *testing.T) {
	id := types.NewID()

	if got, ok := idFrom(id); !ok || got != id {
		t.Error("Expected ID to pass through")
	}
	if got, ok := idFrom(id.String()); !ok || got != id {
		t.Error("Expected string ID to parse")
	}
	if _, ok := idFrom("not-a-uuid"); ok {
		t.Error("Expected invalid ID to be rejected")
	}
	if _, ok := idFrom(42); ok {
		t.Error("Expected non-string value to be rejected")
	}

	other := types.NewID()
	ids := idsFrom([]any{id.String(), other.String(), "garbage"})
	if len(ids) != 2 {
		t.Errorf("Expected 2 IDs, got %d", len(ids))
	}
}

func TestMockProviderReceipt(t *testing.T) {
	mock := NewMockProvider("mock_email")
	n := &Notification{ID: "ntf-1", Channel: ChannelEmail}

	if err := mock.Send(context.Background(), n); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	receipt, err := mock.DeliveryStatus(context.Background(), "ntf-1")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if receipt.Status != StatusSent {
		t.Errorf("Expected '%s', got '%s'", StatusSent, receipt.Status)
	}

	if _, err := mock.DeliveryStatus(context.Background(), "missing"); err == nil {
		t.Error("Expected error for unknown notification")
	}
}
