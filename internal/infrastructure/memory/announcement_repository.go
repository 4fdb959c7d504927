package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Mr-houngbo/Colit/internal/domain/announcement"
)

// AnnouncementRepository is a process-local announcement.Repository.
type AnnouncementRepository struct {
	mu    sync.RWMutex
	items map[uuid.UUID]*announcement.Announcement
}

// NewAnnouncementRepository creates an empty repository.
func NewAnnouncementRepository() *AnnouncementRepository {
	return &AnnouncementRepository{items: make(map[uuid.UUID]*announcement.Announcement)}
}

func (r *AnnouncementRepository) Create(ctx context.Context, a *announcement.Announcement) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items[a.ID] = cloneAnnouncement(a)
	return nil
}

func (r *AnnouncementRepository) GetByID(ctx context.Context, id uuid.UUID) (*announcement.Announcement, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.items[id]
	if !ok {
		return nil, nil
	}
	return cloneAnnouncement(a), nil
}

func (r *AnnouncementRepository) List(ctx context.Context, filter announcement.Filter) ([]*announcement.Announcement, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	out := make([]*announcement.Announcement, 0, len(r.items))
	for _, a := range r.items {
		if matchesFilter(a, filter) {
			out = append(out, cloneAnnouncement(a))
		}
	}
	r.mu.RUnlock()

	// newest first, same as the SQL listing
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return paginate(out, filter.Limit, filter.Offset), nil
}

func (r *AnnouncementRepository) AdvanceStatus(ctx context.Context, id uuid.UUID, next announcement.Status, updatedAt time.Time) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.items[id]
	if !ok || !a.Status.CanAdvanceTo(next) {
		return false, nil
	}
	a.Status = next
	a.UpdatedAt = updatedAt
	return true, nil
}

func matchesFilter(a *announcement.Announcement, f announcement.Filter) bool {
	if f.Kind != nil && a.Kind != *f.Kind {
		return false
	}
	if f.Status != nil && a.Status != *f.Status {
		return false
	}
	if f.PosterID != "" && a.PosterID != f.PosterID {
		return false
	}
	if f.DepartureCity != "" && !strings.EqualFold(a.DepartureCity, f.DepartureCity) {
		return false
	}
	if f.ArrivalCity != "" && !strings.EqualFold(a.ArrivalCity, f.ArrivalCity) {
		return false
	}
	if f.Since != nil && a.Date.Before(*f.Since) {
		return false
	}
	return true
}

func paginate[T any](items []T, limit, offset int) []T {
	if offset > 0 {
		if offset >= len(items) {
			return items[:0]
		}
		items = items[offset:]
	}
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}

func cloneAnnouncement(a *announcement.Announcement) *announcement.Announcement {
	c := *a
	if a.PricePerKg != nil {
		v := *a.PricePerKg
		c.PricePerKg = &v
	}
	if a.PackageValue != nil {
		v := *a.PackageValue
		c.PackageValue = &v
	}
	if a.TransportMode != nil {
		v := *a.TransportMode
		c.TransportMode = &v
	}
	c.ReceiverContact = cloneContact(a.ReceiverContact)
	return &c
}

func cloneContact(rc *announcement.ReceiverContact) *announcement.ReceiverContact {
	if rc == nil {
		return nil
	}
	v := *rc
	return &v
}
