package notification

import (
	"time"

	"github.com/eventgrid/platform/internal/shared/types"
)

// Channel is the delivery channel of a notification
type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelSMS   Channel = "sms"
	ChannelInApp Channel = "in_app"
)

// Priority orders notifications for the recipient, not for delivery;
// the dispatcher treats all channels the same
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// DeliveryStatus is the dispatch state of a notification
type DeliveryStatus string

const (
	StatusPending DeliveryStatus = "pending"
	StatusSent    DeliveryStatus = "sent"
	StatusFailed  DeliveryStatus = "failed"
)

// Notification is one message to one admin
type Notification struct {
	ID       string         `json:"id"`
	Channel  Channel        `json:"channel"`
	Priority Priority       `json:"priority"`
	Status   DeliveryStatus `json:"status"`

	RecipientID   types.ID `json:"recipient_id"`
	RecipientName string   `json:"recipient_name,omitempty"`
	Email         string   `json:"email,omitempty"`
	Phone         string   `json:"phone,omitempty"`

	Subject string         `json:"subject"`
	Body    string         `json:"body"`
	Data    map[string]any `json:"data,omitempty"`

	// SourceEvent is the bus event type that produced this
	// notification, when it came from the subscriber
	SourceEvent string `json:"source_event,omitempty"`

	CreatedAt  time.Time  `json:"created_at"`
	SentAt     *time.Time `json:"sent_at,omitempty"`
	RetryCount int        `json:"retry_count"`
	LastError  string     `json:"last_error,omitempty"`
}

// DeliveryReceipt is a provider's confirmation for one notification
type DeliveryReceipt struct {
	NotificationID string         `json:"notification_id"`
	Status         DeliveryStatus `json:"status"`
	Timestamp      time.Time      `json:"timestamp"`
	Provider       string         `json:"provider"`
	ErrorMessage   string         `json:"error_message,omitempty"`
}

// Stats counts dispatch outcomes since the service started
type Stats struct {
	Enqueued  int64             `json:"enqueued"`
	Sent      int64             `json:"sent"`
	Failed    int64             `json:"failed"`
	Dropped   int64             `json:"dropped"`
	ByChannel map[Channel]int64 `json:"by_channel"`
}
