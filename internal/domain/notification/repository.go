package notification

//go:generate go run go.uber.org/mock/mockgen -destination=mocks/mock_notification.go -package=mocks . Repository,Sender

import (
	"context"
)

// Repository defines the interface for notification persistence
type Repository interface {
	Create(ctx context.Context, notification *Notification) error
	Update(ctx context.Context, notification *Notification) error
	ListByRecipient(ctx context.Context, recipientID string, limit int) ([]*Notification, error)
	ListRetryable(ctx context.Context, limit int) ([]*Notification, error)
}

// Sender delivers one notification over some transport
type Sender interface {
	Send(ctx context.Context, notification *Notification) error
}
