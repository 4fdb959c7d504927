package notification

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Status represents the delivery status of a notification
type Status string

const (
	StatusPending Status = "PENDING"
	StatusSent    Status = "SENT"
	StatusFailed  Status = "FAILED"
)

var (
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrCannotRetry       = errors.New("cannot retry notification")
	ErrUnknownEvent      = errors.New("unknown notification event")
)

// DefaultMaxRetries bounds redelivery of a failed notification.
const DefaultMaxRetries = 3

// Notification is one intent addressed to one recipient
type Notification struct {
	NotificationID uuid.UUID         `json:"notificationId"`
	ColiSpaceID    uuid.UUID         `json:"coliSpaceId"`
	Type           EventType         `json:"type"`
	Title          string            `json:"title"`
	Body           string            `json:"body"`
	Metadata       map[string]string `json:"metadata,omitempty"`
	RecipientID    string            `json:"recipientId"`
	Status         Status            `json:"status"`
	RetryCount     int               `json:"retryCount"`
	MaxRetries     int               `json:"maxRetries"`
	LastError      *string           `json:"lastError,omitempty"`
	CreatedAt      time.Time         `json:"createdAt"`
	SentAt         *time.Time        `json:"sentAt,omitempty"`
	FailedAt       *time.Time        `json:"failedAt,omitempty"`

	// DeliveredVia names the channels that already accepted this
	// notification, so a retry only goes through the ones that failed.
	DeliveredVia []string `json:"-"`
}

// NewNotification addresses an intent to a recipient
func NewNotification(coliSpaceID uuid.UUID, recipientID string, intent Intent) *Notification {
	return &Notification{
		NotificationID: uuid.New(),
		ColiSpaceID:    coliSpaceID,
		Type:           intent.Type,
		Title:          intent.Title,
		Body:           intent.Body,
		Metadata:       intent.Metadata,
		RecipientID:    recipientID,
		Status:         StatusPending,
		MaxRetries:     DefaultMaxRetries,
		CreatedAt:      time.Now().UTC(),
	}
}

// CanTransitionTo checks if a transition to the target status is valid
func (n *Notification) CanTransitionTo(target Status) bool {
	transitions := map[Status][]Status{
		StatusPending: {StatusSent, StatusFailed},
		StatusSent:    {},
		StatusFailed:  {StatusPending}, // Retry
	}

	allowed, ok := transitions[n.Status]
	if !ok {
		return false
	}
	for _, s := range allowed {
		if s == target {
			return true
		}
	}
	return false
}

// MarkSent marks the notification as sent
func (n *Notification) MarkSent() error {
	if !n.CanTransitionTo(StatusSent) {
		return ErrInvalidTransition
	}
	n.Status = StatusSent
	now := time.Now().UTC()
	n.SentAt = &now
	return nil
}

// MarkFailed marks the notification as failed
func (n *Notification) MarkFailed(errMsg string) error {
	if !n.CanTransitionTo(StatusFailed) {
		return ErrInvalidTransition
	}
	n.Status = StatusFailed
	now := time.Now().UTC()
	n.FailedAt = &now
	n.LastError = &errMsg
	n.RetryCount++
	return nil
}

// CanRetry checks if the notification can be retried
func (n *Notification) CanRetry() bool {
	return n.Status == StatusFailed && n.RetryCount < n.MaxRetries
}

// ResetForRetry resets the notification for retry
func (n *Notification) ResetForRetry() error {
	if !n.CanRetry() {
		return ErrCannotRetry
	}
	n.Status = StatusPending
	n.FailedAt = nil
	return nil
}

// DeliveredOn reports whether channel already accepted the notification.
func (n *Notification) DeliveredOn(channel string) bool {
	for _, c := range n.DeliveredVia {
		if c == channel {
			return true
		}
	}
	return false
}

// RecordDelivery notes that channel accepted the notification.
func (n *Notification) RecordDelivery(channel string) {
	if !n.DeliveredOn(channel) {
		n.DeliveredVia = append(n.DeliveredVia, channel)
	}
}

// IsTerminal returns true if the notification will not be delivered again
func (n *Notification) IsTerminal() bool {
	return n.Status == StatusSent || (n.Status == StatusFailed && !n.CanRetry())
}
