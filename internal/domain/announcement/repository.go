package announcement

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository defines persistence for announcements.
type Repository interface {
	Create(ctx context.Context, a *Announcement) error
	GetByID(ctx context.Context, id uuid.UUID) (*Announcement, error)
	List(ctx context.Context, filter Filter) ([]*Announcement, error)
	// AdvanceStatus moves the status forward only; it reports false when the
	// current status is already at or past next.
	AdvanceStatus(ctx context.Context, id uuid.UUID, next Status, updatedAt time.Time) (bool, error)
}
