package memory

import (
	"context"
	"strings"
	"sync"

	"github.com/Mr-houngbo/Colit/internal/domain/profile"
)

// ProfileRepository serves profiles seeded with Put.
type ProfileRepository struct {
	mu    sync.RWMutex
	items map[string]profile.Profile
}

func NewProfileRepository() *ProfileRepository {
	return &ProfileRepository{items: make(map[string]profile.Profile)}
}

// Put inserts or replaces a profile.
func (r *ProfileRepository) Put(p profile.Profile) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items[p.ID] = p
}

func (r *ProfileRepository) GetByID(ctx context.Context, id string) (*profile.Profile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.items[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (r *ProfileRepository) GetByEmail(ctx context.Context, email string) (*profile.Profile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, p := range r.items {
		if p.Email != "" && strings.EqualFold(p.Email, strings.TrimSpace(email)) {
			found := p
			return &found, nil
		}
	}
	return nil, nil
}
