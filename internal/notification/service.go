package notification

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/eventgrid/platform/internal/shared/config"
)

// Provider delivers notifications on one channel
type Provider interface {
	Send(ctx context.Context, n *Notification) error
	DeliveryStatus(ctx context.Context, notificationID string) (*DeliveryReceipt, error)
}

// ServiceConfig holds dispatcher configuration
type ServiceConfig struct {
	Workers       int
	BufferSize    int
	RetryAttempts int
	RetryDelay    time.Duration
}

// DefaultServiceConfig returns default configuration
func DefaultServiceConfig() ServiceConfig {
	return ServiceConfig{
		Workers:       4,
		BufferSize:    256,
		RetryAttempts: 3,
		RetryDelay:    10 * time.Second,
	}
}

// ConfigFrom builds a ServiceConfig from the application config
func ConfigFrom(cfg config.NotifyConfig) ServiceConfig {
	sc := DefaultServiceConfig()
	if cfg.Workers > 0 {
		sc.Workers = cfg.Workers
	}
	if cfg.BufferSize > 0 {
		sc.BufferSize = cfg.BufferSize
	}
	return sc
}

// Service dispatches notifications through channel providers with a
// fixed worker pool. Delivery is best effort: a full buffer drops the
// notification rather than blocking the caller.
type Service struct {
	providers map[Channel]Provider

	mu    sync.RWMutex
	stats Stats

	notifCh chan *Notification
	config  ServiceConfig

	started bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// NewService creates a notification service. Channels without a
// provider fail at dispatch time, not at registration.
func NewService(providers map[Channel]Provider, config ServiceConfig) *Service {
	if config.Workers <= 0 {
		config.Workers = DefaultServiceConfig().Workers
	}
	if config.BufferSize <= 0 {
		config.BufferSize = DefaultServiceConfig().BufferSize
	}

	return &Service{
		providers: providers,
		notifCh:   make(chan *Notification, config.BufferSize),
		config:    config,
		stopCh:    make(chan struct{}),
	}
}

// Start starts the worker pool
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return fmt.Errorf("notification service already started")
	}
	s.started = true
	s.mu.Unlock()

	for i := 0; i < s.config.Workers; i++ {
		s.wg.Add(1)
		go s.worker(ctx)
	}

	return nil
}

// Stop stops the worker pool and waits for in-flight sends
func (s *Service) Stop() error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return fmt.Errorf("notification service not started")
	}
	s.started = false
	s.mu.Unlock()

	close(s.stopCh)
	s.wg.Wait()

	return nil
}

// Enqueue submits a notification for dispatch
func (s *Service) Enqueue(n *Notification) error {
	if n.ID == "" {
		n.ID = fmt.Sprintf("ntf-%d", time.Now().UnixNano())
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now()
	}
	if n.Priority == "" {
		n.Priority = PriorityNormal
	}
	n.Status = StatusPending

	select {
	case s.notifCh <- n:
		s.mu.Lock()
		s.stats.Enqueued++
		s.mu.Unlock()
		return nil
	default:
		s.mu.Lock()
		s.stats.Dropped++
		s.mu.Unlock()
		return fmt.Errorf("notification buffer full")
	}
}

func (s *Service) worker(ctx context.Context) {
	defer s.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case n := <-s.notifCh:
			s.dispatch(ctx, n)
		}
	}
}

func (s *Service) dispatch(ctx context.Context, n *Notification) {
	provider, ok := s.providers[n.Channel]

	var err error
	if !ok {
		err = fmt.Errorf("no provider for channel %s", n.Channel)
	} else {
		err = provider.Send(ctx, n)
	}

	if err == nil {
		now := time.Now()
		n.SentAt = &now
		n.Status = StatusSent
		s.record(n.Channel, true)
		return
	}

	n.LastError = err.Error()
	n.RetryCount++

	if n.RetryCount >= s.config.RetryAttempts {
		n.Status = StatusFailed
		s.record(n.Channel, false)
		return
	}

	// Requeue after the retry delay; give up if the service stops
	// or the buffer stays full.
	go func() {
		select {
		case <-time.After(s.config.RetryDelay):
		case <-s.stopCh:
			return
		}

		select {
		case s.notifCh <- n:
		default:
			s.mu.Lock()
			s.stats.Dropped++
			s.mu.Unlock()
		}
	}()
}

func (s *Service) record(ch Channel, success bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stats.ByChannel == nil {
		s.stats.ByChannel = make(map[Channel]int64)
	}
	s.stats.ByChannel[ch]++

	if success {
		s.stats.Sent++
	} else {
		s.stats.Failed++
	}
}

// GetStats returns a snapshot of dispatch statistics
func (s *Service) GetStats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snapshot := s.stats
	snapshot.ByChannel = make(map[Channel]int64, len(s.stats.ByChannel))
	for k, v := range s.stats.ByChannel {
		snapshot.ByChannel[k] = v
	}
	return snapshot
}
