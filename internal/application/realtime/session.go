package realtime

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Mr-houngbo/Colit/internal/domain/colispace"
)

// Session is the local view of one coli space. Apply is idempotent so the
// initial fetch and the live feed can deliver the same record twice.
type Session struct {
	mu       sync.RWMutex
	id       uuid.UUID
	space    *colispace.ColiSpace
	messages map[uuid.UUID]*colispace.Message
	steps    map[colispace.StepID]*colispace.TimelineStep
}

// NewSession creates an empty session for a coli space.
func NewSession(id uuid.UUID) *Session {
	return &Session{
		id:       id,
		messages: make(map[uuid.UUID]*colispace.Message),
		steps:    make(map[colispace.StepID]*colispace.TimelineStep),
	}
}

// ID returns the coli space id.
func (s *Session) ID() uuid.UUID {
	return s.id
}

// Apply merges one change and reports whether local state changed.
func (s *Session) Apply(ev colispace.ChangeEvent) bool {
	if ev.ColiSpaceID != s.id {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	switch ev.Kind {
	case colispace.ChangeMessageInserted:
		if ev.Message == nil {
			return false
		}
		return s.addMessage(ev.Message)
	case colispace.ChangeStepUpdated:
		if ev.Step == nil {
			return false
		}
		return s.mergeStep(ev.Step)
	case colispace.ChangeSpaceUpdated:
		if ev.Space == nil {
			return false
		}
		return s.mergeSpace(ev.Space)
	}
	return false
}

func (s *Session) addMessage(m *colispace.Message) bool {
	if _, known := s.messages[m.ID]; known {
		return false
	}
	c := *m
	s.messages[m.ID] = &c
	return true
}

// mergeStep never un-completes a step.
func (s *Session) mergeStep(st *colispace.TimelineStep) bool {
	cur, ok := s.steps[st.StepID]
	if ok && (cur.Completed || !st.Completed) {
		return false
	}
	c := *st
	s.steps[st.StepID] = &c
	return true
}

// mergeSpace keeps the newest row. LastMessageAt moves without bumping
// UpdatedAt, so it is merged on its own and never goes backwards.
func (s *Session) mergeSpace(sp *colispace.ColiSpace) bool {
	c := *sp
	if s.space != nil {
		if sp.UpdatedAt.Before(s.space.UpdatedAt) {
			return false
		}
		c.LastMessageAt = laterTime(s.space.LastMessageAt, sp.LastMessageAt)
		if sameSpace(s.space, &c) {
			return false
		}
	}
	s.space = &c
	return true
}

func sameSpace(a, b *colispace.ColiSpace) bool {
	return a.Status == b.Status &&
		a.GPID == b.GPID &&
		a.ReceiverID == b.ReceiverID &&
		a.UpdatedAt.Equal(b.UpdatedAt) &&
		equalTime(a.LastMessageAt, b.LastMessageAt)
}

// Space returns the latest known coli space, or nil before the first fetch.
func (s *Session) Space() *colispace.ColiSpace {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.space == nil {
		return nil
	}
	c := *s.space
	return &c
}

// Messages returns known messages ordered by creation time.
func (s *Session) Messages() []*colispace.Message {
	s.mu.RLock()
	out := make([]*colispace.Message, 0, len(s.messages))
	for _, m := range s.messages {
		c := *m
		out = append(out, &c)
	}
	s.mu.RUnlock()
	colispace.SortMessages(out)
	return out
}

// Steps returns known steps in timeline order.
func (s *Session) Steps() []*colispace.TimelineStep {
	s.mu.RLock()
	out := make([]*colispace.TimelineStep, 0, len(s.steps))
	for _, st := range s.steps {
		c := *st
		out = append(out, &c)
	}
	s.mu.RUnlock()
	colispace.SortSteps(out)
	return out
}

func equalTime(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}

func laterTime(a, b *time.Time) *time.Time {
	switch {
	case a == nil && b == nil:
		return nil
	case a == nil || (b != nil && b.After(*a)):
		t := *b
		return &t
	default:
		t := *a
		return &t
	}
}
