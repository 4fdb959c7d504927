package realtime

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Mr-houngbo/Colit/internal/domain/colispace"
)

// Adapter connects a change feed to local sessions.
type Adapter struct {
	feed     colispace.Feed
	spaces   colispace.Repository
	messages colispace.MessageRepository
	logger   zerolog.Logger
}

// NewAdapter creates a realtime adapter.
func NewAdapter(feed colispace.Feed, spaces colispace.Repository, messages colispace.MessageRepository, logger zerolog.Logger) *Adapter {
	return &Adapter{
		feed:     feed,
		spaces:   spaces,
		messages: messages,
		logger:   logger.With().Str("service", "realtime").Logger(),
	}
}

// Subscribe delivers changes of one coli space to onEvent, in feed order,
// from a single goroutine. The returned function stops delivery and is safe
// to call more than once, including from inside onEvent.
func (a *Adapter) Subscribe(ctx context.Context, id uuid.UUID, onEvent func(colispace.ChangeEvent)) (func(), error) {
	ctx, cancel := context.WithCancel(ctx)
	sub, err := a.feed.Subscribe(ctx, id)
	if err != nil {
		cancel()
		return nil, colispace.Unavailable(err)
	}

	go func() {
		events := sub.Events()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-events:
				if !ok {
					return
				}
				if ctx.Err() != nil {
					return
				}
				onEvent(ev)
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			cancel()
			sub.Close()
		})
	}, nil
}

// Open subscribes first and fetches second, so nothing written in between
// is missed; duplicates are absorbed by the session.
func (a *Adapter) Open(ctx context.Context, id uuid.UUID) (*Session, func(), error) {
	return a.open(ctx, id, nil)
}

// OpenWith is Open with an extra callback run after each applied change.
func (a *Adapter) OpenWith(ctx context.Context, id uuid.UUID, onChange func(colispace.ChangeEvent)) (*Session, func(), error) {
	return a.open(ctx, id, onChange)
}

func (a *Adapter) open(ctx context.Context, id uuid.UUID, onChange func(colispace.ChangeEvent)) (*Session, func(), error) {
	session := NewSession(id)
	unsubscribe, err := a.Subscribe(ctx, id, func(ev colispace.ChangeEvent) {
		if session.Apply(ev) && onChange != nil {
			onChange(ev)
		}
	})
	if err != nil {
		return nil, nil, err
	}

	if err := a.load(ctx, session); err != nil {
		unsubscribe()
		return nil, nil, err
	}
	return session, unsubscribe, nil
}

func (a *Adapter) load(ctx context.Context, session *Session) error {
	id := session.ID()
	space, err := a.spaces.GetByID(ctx, id)
	if err != nil {
		return colispace.Unavailable(err)
	}
	if space == nil {
		return colispace.NotFound("coli space", id)
	}
	session.Apply(colispace.ChangeEvent{Kind: colispace.ChangeSpaceUpdated, ColiSpaceID: id, Space: space})

	steps, err := a.spaces.ListSteps(ctx, id)
	if err != nil {
		return colispace.Unavailable(err)
	}
	if len(steps) == 0 {
		return colispace.NotFound("timeline", id)
	}
	for _, st := range steps {
		session.Apply(colispace.ChangeEvent{Kind: colispace.ChangeStepUpdated, ColiSpaceID: id, Step: st})
	}

	msgs, err := a.messages.ListMessages(ctx, id)
	if err != nil {
		return colispace.Unavailable(err)
	}
	for _, m := range msgs {
		session.Apply(colispace.ChangeEvent{Kind: colispace.ChangeMessageInserted, ColiSpaceID: id, Message: m})
	}
	a.logger.Debug().
		Str("coli_space_id", id.String()).
		Int("steps", len(steps)).
		Int("messages", len(msgs)).
		Msg("session loaded")
	return nil
}

// WithSession opens a session, runs fn and always unsubscribes afterwards.
func (a *Adapter) WithSession(ctx context.Context, id uuid.UUID, fn func(*Session) error) error {
	session, unsubscribe, err := a.Open(ctx, id)
	if err != nil {
		return err
	}
	defer unsubscribe()
	return fn(session)
}
