package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/Mr-houngbo/Colit/internal/domain/notification"
)

// NotificationRepository records notifications in memory.
type NotificationRepository struct {
	mu    sync.RWMutex
	items map[uuid.UUID]*notification.Notification
}

func NewNotificationRepository() *NotificationRepository {
	return &NotificationRepository{items: make(map[uuid.UUID]*notification.Notification)}
}

func (r *NotificationRepository) Create(ctx context.Context, n *notification.Notification) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items[n.NotificationID] = cloneNotification(n)
	return nil
}

func (r *NotificationRepository) Update(ctx context.Context, n *notification.Notification) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[n.NotificationID]; !ok {
		return notification.ErrInvalidTransition
	}
	r.items[n.NotificationID] = cloneNotification(n)
	return nil
}

func (r *NotificationRepository) ListByRecipient(ctx context.Context, recipientID string, limit int) ([]*notification.Notification, error) {
	return r.list(ctx, limit, func(n *notification.Notification) bool {
		return n.RecipientID == recipientID
	})
}

func (r *NotificationRepository) ListRetryable(ctx context.Context, limit int) ([]*notification.Notification, error) {
	return r.list(ctx, limit, func(n *notification.Notification) bool {
		return n.CanRetry()
	})
}

func (r *NotificationRepository) list(ctx context.Context, limit int, keep func(*notification.Notification) bool) ([]*notification.Notification, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	out := make([]*notification.Notification, 0)
	for _, n := range r.items {
		if keep(n) {
			out = append(out, cloneNotification(n))
		}
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return paginate(out, limit, 0), nil
}

func cloneNotification(n *notification.Notification) *notification.Notification {
	c := *n
	if n.Metadata != nil {
		c.Metadata = make(map[string]string, len(n.Metadata))
		for k, v := range n.Metadata {
			c.Metadata[k] = v
		}
	}
	if n.LastError != nil {
		v := *n.LastError
		c.LastError = &v
	}
	c.DeliveredVia = append([]string(nil), n.DeliveredVia...)
	return &c
}
