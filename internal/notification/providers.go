package notification

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MockProvider records sent notifications for testing
type MockProvider struct {
	mu         sync.RWMutex
	name       string
	sent       map[string]*Notification
	failOnSend bool
}

// NewMockProvider creates a recording provider
func NewMockProvider(name string) *MockProvider {
	return &MockProvider{
		name: name,
		sent: make(map[string]*Notification),
	}
}

// Send records the notification, or fails when configured to
func (p *MockProvider) Send(ctx context.Context, n *Notification) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.failOnSend {
		return fmt.Errorf("mock send failure")
	}

	p.sent[n.ID] = n
	return nil
}

// DeliveryStatus returns a receipt for a recorded notification
func (p *MockProvider) DeliveryStatus(ctx context.Context, notificationID string) (*DeliveryReceipt, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if _, ok := p.sent[notificationID]; ok {
		return &DeliveryReceipt{
			NotificationID: notificationID,
			Status:         StatusSent,
			Timestamp:      time.Now(),
			Provider:       p.name,
		}, nil
	}

	return nil, fmt.Errorf("notification not found")
}

// SetFailOnSend sets whether Send should fail
func (p *MockProvider) SetFailOnSend(fail bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failOnSend = fail
}

// Sent returns all recorded notifications
func (p *MockProvider) Sent() []*Notification {
	p.mu.RLock()
	defer p.mu.RUnlock()

	result := make([]*Notification, 0, len(p.sent))
	for _, n := range p.sent {
		result = append(result, n)
	}
	return result
}

// ConsoleProvider prints notifications to stdout for development
type ConsoleProvider struct {
	prefix string
}

// NewConsoleProvider creates a console logging provider
func NewConsoleProvider(prefix string) *ConsoleProvider {
	return &ConsoleProvider{prefix: prefix}
}

// Send prints the notification
func (p *ConsoleProvider) Send(ctx context.Context, n *Notification) error {
	fmt.Printf("\n[%s NOTIFICATION]\n", p.prefix)
	fmt.Printf("  ID:        %s\n", n.ID)
	fmt.Printf("  Channel:   %s\n", n.Channel)
	fmt.Printf("  Priority:  %s\n", n.Priority)
	fmt.Printf("  Recipient: %s (%s)\n", n.RecipientName, n.RecipientID)
	fmt.Printf("  Subject:   %s\n", n.Subject)
	fmt.Printf("  Body:\n%s\n", n.Body)
	if n.SourceEvent != "" {
		fmt.Printf("  Source:    %s\n", n.SourceEvent)
	}
	fmt.Println()
	return nil
}

// DeliveryStatus always reports sent
func (p *ConsoleProvider) DeliveryStatus(ctx context.Context, notificationID string) (*DeliveryReceipt, error) {
	return &DeliveryReceipt{
		NotificationID: notificationID,
		Status:         StatusSent,
		Timestamp:      time.Now(),
		Provider:       "console",
	}, nil
}
