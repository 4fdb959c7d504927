package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/Mr-houngbo/Colit/internal/domain/colispace"
)

const subscriptionBuffer = 256

type feed struct {
	mu   sync.Mutex
	subs map[uuid.UUID]map[*subscription]struct{}
}

func newFeed() *feed {
	return &feed{subs: make(map[uuid.UUID]map[*subscription]struct{})}
}

type subscription struct {
	feed        *feed
	coliSpaceID uuid.UUID
	ch          chan colispace.ChangeEvent
	once        sync.Once
	done        chan struct{}
}

func (s *subscription) Events() <-chan colispace.ChangeEvent {
	return s.ch
}

func (s *subscription) Close() {
	s.once.Do(func() {
		close(s.done)
		s.feed.remove(s)
	})
}

func (f *feed) subscribe(ctx context.Context, coliSpaceID uuid.UUID) *subscription {
	sub := &subscription{
		feed:        f,
		coliSpaceID: coliSpaceID,
		ch:          make(chan colispace.ChangeEvent, subscriptionBuffer),
		done:        make(chan struct{}),
	}
	f.mu.Lock()
	if f.subs[coliSpaceID] == nil {
		f.subs[coliSpaceID] = make(map[*subscription]struct{})
	}
	f.subs[coliSpaceID][sub] = struct{}{}
	f.mu.Unlock()

	go func() {
		select {
		case <-ctx.Done():
			sub.Close()
		case <-sub.done:
		}
	}()
	return sub
}

func (f *feed) remove(sub *subscription) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if set, ok := f.subs[sub.coliSpaceID]; ok {
		delete(set, sub)
		if len(set) == 0 {
			delete(f.subs, sub.coliSpaceID)
		}
	}
	close(sub.ch)
}

// publish never blocks a writer; a subscriber that falls behind loses events
// and is expected to refetch.
func (f *feed) publish(ev colispace.ChangeEvent) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for sub := range f.subs[ev.ColiSpaceID] {
		select {
		case sub.ch <- ev:
		default:
		}
	}
}
