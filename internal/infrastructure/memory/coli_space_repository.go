package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Mr-houngbo/Colit/internal/domain/colispace"
)

// ColiSpaceRepository keeps spaces, timelines and messages in memory and
// publishes every write to its subscribers.
type ColiSpaceRepository struct {
	mu       sync.RWMutex
	spaces   map[uuid.UUID]*colispace.ColiSpace
	steps    map[uuid.UUID][]*colispace.TimelineStep
	messages map[uuid.UUID][]*colispace.Message

	feed *feed
}

// NewColiSpaceRepository creates an empty repository.
func NewColiSpaceRepository() *ColiSpaceRepository {
	return &ColiSpaceRepository{
		spaces:   make(map[uuid.UUID]*colispace.ColiSpace),
		steps:    make(map[uuid.UUID][]*colispace.TimelineStep),
		messages: make(map[uuid.UUID][]*colispace.Message),
		feed:     newFeed(),
	}
}

var (
	_ colispace.Repository        = (*ColiSpaceRepository)(nil)
	_ colispace.MessageRepository = (*ColiSpaceRepository)(nil)
	_ colispace.Feed              = (*ColiSpaceRepository)(nil)
)

func (r *ColiSpaceRepository) GetByID(ctx context.Context, id uuid.UUID) (*colispace.ColiSpace, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	sp, ok := r.spaces[id]
	if !ok {
		return nil, nil
	}
	return cloneSpace(sp), nil
}

func (r *ColiSpaceRepository) FindByPair(ctx context.Context, announcementID uuid.UUID, senderID, gpID string) (*colispace.ColiSpace, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	if sp := r.findLocked(announcementID, senderID, gpID); sp != nil {
		return cloneSpace(sp), nil
	}
	return nil, nil
}

func (r *ColiSpaceRepository) FindPending(ctx context.Context, announcementID uuid.UUID, senderID string) (*colispace.ColiSpace, error) {
	return r.FindByPair(ctx, announcementID, senderID, "")
}

func (r *ColiSpaceRepository) findLocked(announcementID uuid.UUID, senderID, gpID string) *colispace.ColiSpace {
	for _, sp := range r.spaces {
		if sp.AnnouncementID == announcementID && sp.SenderID == senderID && sp.GPID == gpID {
			return sp
		}
	}
	return nil
}

func (r *ColiSpaceRepository) ListByParticipant(ctx context.Context, who colispace.Identity) ([]*colispace.ColiSpace, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	out := make([]*colispace.ColiSpace, 0)
	for _, sp := range r.spaces {
		if isParticipant(sp, who) {
			out = append(out, cloneSpace(sp))
		}
	}
	r.mu.RUnlock()
	sortSpaces(out)
	return out, nil
}

func isParticipant(sp *colispace.ColiSpace, who colispace.Identity) bool {
	if who.UserID != "" && (sp.SenderID == who.UserID || sp.GPID == who.UserID || sp.ReceiverID == who.UserID) {
		return true
	}
	return who.Email != "" && sp.ReceiverContact != nil && strings.EqualFold(sp.ReceiverContact.Email, who.Email)
}

func (r *ColiSpaceRepository) GetOrCreate(ctx context.Context, space *colispace.ColiSpace, steps []*colispace.TimelineStep) (*colispace.ColiSpace, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	r.mu.Lock()
	if existing := r.findLocked(space.AnnouncementID, space.SenderID, space.GPID); existing != nil {
		out := cloneSpace(existing)
		r.mu.Unlock()
		return out, false, nil
	}
	stored := cloneSpace(space)
	r.spaces[stored.ID] = stored
	seeded := make([]*colispace.TimelineStep, 0, len(steps))
	for _, st := range steps {
		c := cloneStep(st)
		c.ColiSpaceID = stored.ID
		seeded = append(seeded, c)
	}
	colispace.SortSteps(seeded)
	r.steps[stored.ID] = seeded
	out := cloneSpace(stored)
	r.mu.Unlock()

	r.feed.publish(colispace.ChangeEvent{Kind: colispace.ChangeSpaceUpdated, ColiSpaceID: out.ID, Space: cloneSpace(out)})
	return out, true, nil
}

func (r *ColiSpaceRepository) AttachGP(ctx context.Context, id uuid.UUID, gpID string, at time.Time) (bool, error) {
	return r.updateSpace(ctx, id, func(sp *colispace.ColiSpace) bool {
		if sp.GPID != "" || sp.SenderID == gpID {
			return false
		}
		// the pair may already exist as a space of its own
		if r.findLocked(sp.AnnouncementID, sp.SenderID, gpID) != nil {
			return false
		}
		sp.GPID = gpID
		sp.UpdatedAt = at
		return true
	})
}

func (r *ColiSpaceRepository) AttachReceiver(ctx context.Context, id uuid.UUID, receiverID string, at time.Time) (bool, error) {
	return r.updateSpace(ctx, id, func(sp *colispace.ColiSpace) bool {
		if sp.ReceiverID == receiverID {
			return true
		}
		if sp.ReceiverID != "" {
			return false
		}
		sp.ReceiverID = receiverID
		sp.UpdatedAt = at
		return true
	})
}

func (r *ColiSpaceRepository) AdvanceStatus(ctx context.Context, id uuid.UUID, next colispace.Status, at time.Time) (bool, error) {
	return r.updateSpace(ctx, id, func(sp *colispace.ColiSpace) bool {
		if !sp.Status.CanAdvanceTo(next) {
			return false
		}
		sp.Status = next
		sp.UpdatedAt = at
		return true
	})
}

func (r *ColiSpaceRepository) TouchLastMessage(ctx context.Context, id uuid.UUID, at time.Time) error {
	_, err := r.updateSpace(ctx, id, func(sp *colispace.ColiSpace) bool {
		if sp.LastMessageAt != nil && sp.LastMessageAt.After(at) {
			return false
		}
		t := at
		sp.LastMessageAt = &t
		return true
	})
	return err
}

func (r *ColiSpaceRepository) updateSpace(ctx context.Context, id uuid.UUID, apply func(sp *colispace.ColiSpace) bool) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	r.mu.Lock()
	sp, ok := r.spaces[id]
	if !ok || !apply(sp) {
		r.mu.Unlock()
		return false, nil
	}
	out := cloneSpace(sp)
	r.mu.Unlock()

	r.feed.publish(colispace.ChangeEvent{Kind: colispace.ChangeSpaceUpdated, ColiSpaceID: id, Space: out})
	return true, nil
}

func (r *ColiSpaceRepository) ListSteps(ctx context.Context, id uuid.UUID) ([]*colispace.TimelineStep, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	steps := r.steps[id]
	out := make([]*colispace.TimelineStep, 0, len(steps))
	for _, st := range steps {
		out = append(out, cloneStep(st))
	}
	return out, nil
}

func (r *ColiSpaceRepository) CompleteStep(ctx context.Context, id uuid.UUID, stepID colispace.StepID, validatedBy *string, at time.Time) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	r.mu.Lock()
	var target *colispace.TimelineStep
	for _, st := range r.steps[id] {
		if st.StepID == stepID {
			target = st
			break
		}
	}
	if target == nil || target.Completed {
		r.mu.Unlock()
		return false, nil
	}
	target.Completed = true
	target.ValidatedAt = &at
	if validatedBy != nil {
		v := *validatedBy
		target.ValidatedBy = &v
	}
	out := cloneStep(target)
	r.mu.Unlock()

	r.feed.publish(colispace.ChangeEvent{Kind: colispace.ChangeStepUpdated, ColiSpaceID: id, Step: out})
	return true, nil
}

func (r *ColiSpaceRepository) CreateMessage(ctx context.Context, msg *colispace.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	if _, ok := r.spaces[msg.ColiSpaceID]; !ok {
		r.mu.Unlock()
		return colispace.NotFound("coli space", msg.ColiSpaceID)
	}
	stored := cloneMessage(msg)
	r.messages[msg.ColiSpaceID] = append(r.messages[msg.ColiSpaceID], stored)
	out := cloneMessage(stored)
	r.mu.Unlock()

	r.feed.publish(colispace.ChangeEvent{Kind: colispace.ChangeMessageInserted, ColiSpaceID: msg.ColiSpaceID, Message: out})
	return nil
}

func (r *ColiSpaceRepository) ListMessages(ctx context.Context, coliSpaceID uuid.UUID) ([]*colispace.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	msgs := r.messages[coliSpaceID]
	out := make([]*colispace.Message, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, cloneMessage(m))
	}
	r.mu.RUnlock()
	colispace.SortMessages(out)
	return out, nil
}

func (r *ColiSpaceRepository) Subscribe(ctx context.Context, coliSpaceID uuid.UUID) (colispace.Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return r.feed.subscribe(ctx, coliSpaceID), nil
}

func sortSpaces(spaces []*colispace.ColiSpace) {
	activity := func(sp *colispace.ColiSpace) int64 {
		if sp.LastMessageAt != nil && sp.LastMessageAt.After(sp.UpdatedAt) {
			return sp.LastMessageAt.UnixNano()
		}
		return sp.UpdatedAt.UnixNano()
	}
	sort.SliceStable(spaces, func(i, j int) bool {
		ai, aj := activity(spaces[i]), activity(spaces[j])
		if ai != aj {
			return ai > aj
		}
		return spaces[i].ID.String() < spaces[j].ID.String()
	})
}

func cloneSpace(sp *colispace.ColiSpace) *colispace.ColiSpace {
	c := *sp
	c.ReceiverContact = cloneContact(sp.ReceiverContact)
	if sp.LastMessageAt != nil {
		t := *sp.LastMessageAt
		c.LastMessageAt = &t
	}
	return &c
}

func cloneStep(st *colispace.TimelineStep) *colispace.TimelineStep {
	c := *st
	if st.ValidatedBy != nil {
		v := *st.ValidatedBy
		c.ValidatedBy = &v
	}
	if st.ValidatedAt != nil {
		t := *st.ValidatedAt
		c.ValidatedAt = &t
	}
	return &c
}

func cloneMessage(m *colispace.Message) *colispace.Message {
	c := *m
	c.Attachments = append([]string(nil), m.Attachments...)
	if c.Attachments == nil {
		c.Attachments = []string{}
	}
	return &c
}
