package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/Mr-houngbo/Colit/internal/domain/colispace"
)

// ChangeChannel is the NOTIFY channel fed by the table triggers.
const ChangeChannel = "colit_changes"

const (
	subscriptionBuffer = 256
	reconnectDelay     = 2 * time.Second
)

var _ colispace.Feed = (*Feed)(nil)

// changePayload is the id-only NOTIFY body; rows are re-read before delivery.
type changePayload struct {
	Kind        colispace.ChangeKind `json:"kind"`
	ColiSpaceID uuid.UUID            `json:"coliSpaceId"`
	MessageID   *uuid.UUID           `json:"messageId,omitempty"`
	StepID      colispace.StepID     `json:"stepId,omitempty"`
}

func parsePayload(raw string) (changePayload, error) {
	var p changePayload
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return p, err
	}
	if p.ColiSpaceID == uuid.Nil {
		return p, fmt.Errorf("change payload without coli space id: %s", raw)
	}
	switch p.Kind {
	case colispace.ChangeMessageInserted:
		if p.MessageID == nil {
			return p, fmt.Errorf("message change without id: %s", raw)
		}
	case colispace.ChangeStepUpdated:
		if p.StepID == "" {
			return p, fmt.Errorf("step change without step id: %s", raw)
		}
	case colispace.ChangeSpaceUpdated:
	default:
		return p, fmt.Errorf("unknown change kind %q", p.Kind)
	}
	return p, nil
}

// Feed turns LISTEN/NOTIFY on ChangeChannel into colispace change events.
type Feed struct {
	pool   *pgxpool.Pool
	repo   *ColiSpaceRepository
	logger zerolog.Logger

	mu   sync.Mutex
	subs map[uuid.UUID]map[*feedSubscription]struct{}
}

// NewFeed creates a feed. Run must be started for events to flow.
func NewFeed(pool *pgxpool.Pool, repo *ColiSpaceRepository, logger zerolog.Logger) *Feed {
	return &Feed{
		pool:   pool,
		repo:   repo,
		logger: logger.With().Str("component", "change_feed").Logger(),
		subs:   make(map[uuid.UUID]map[*feedSubscription]struct{}),
	}
}

type feedSubscription struct {
	feed        *Feed
	coliSpaceID uuid.UUID
	ch          chan colispace.ChangeEvent
	once        sync.Once
	done        chan struct{}
}

func (s *feedSubscription) Events() <-chan colispace.ChangeEvent {
	return s.ch
}

func (s *feedSubscription) Close() {
	s.once.Do(func() {
		close(s.done)
		s.feed.remove(s)
	})
}

// Subscribe registers interest in one coli space until ctx ends or the
// subscription is closed.
func (f *Feed) Subscribe(ctx context.Context, coliSpaceID uuid.UUID) (colispace.Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	sub := &feedSubscription{
		feed:        f,
		coliSpaceID: coliSpaceID,
		ch:          make(chan colispace.ChangeEvent, subscriptionBuffer),
		done:        make(chan struct{}),
	}
	f.mu.Lock()
	if f.subs[coliSpaceID] == nil {
		f.subs[coliSpaceID] = make(map[*feedSubscription]struct{})
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
	return sub, nil
}

func (f *Feed) remove(sub *feedSubscription) {
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

func (f *Feed) watched(id uuid.UUID) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs[id]) > 0
}

func (f *Feed) publish(ev colispace.ChangeEvent) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for sub := range f.subs[ev.ColiSpaceID] {
		select {
		case sub.ch <- ev:
		default:
			f.logger.Warn().Str("coli_space_id", ev.ColiSpaceID.String()).Msg("subscriber buffer full, dropping change")
		}
	}
}

// Run listens until ctx is cancelled, reconnecting after connection loss.
func (f *Feed) Run(ctx context.Context) error {
	for {
		err := f.listen(ctx)
		if ctx.Err() != nil {
			return nil
		}
		f.logger.Warn().Err(err).Dur("retry_in", reconnectDelay).Msg("change feed disconnected")
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(reconnectDelay):
		}
	}
}

func (f *Feed) listen(ctx context.Context) error {
	conn, err := f.pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "LISTEN "+pgx.Identifier{ChangeChannel}.Sanitize()); err != nil {
		return err
	}
	f.logger.Info().Str("channel", ChangeChannel).Msg("listening for changes")

	for {
		n, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			return err
		}
		p, err := parsePayload(n.Payload)
		if err != nil {
			f.logger.Warn().Err(err).Msg("ignoring malformed change")
			continue
		}
		if !f.watched(p.ColiSpaceID) {
			continue
		}
		ev, err := f.load(ctx, p)
		if err != nil {
			f.logger.Warn().Err(err).Str("coli_space_id", p.ColiSpaceID.String()).Msg("failed to load changed row")
			continue
		}
		if ev != nil {
			f.publish(*ev)
		}
	}
}

func (f *Feed) load(ctx context.Context, p changePayload) (*colispace.ChangeEvent, error) {
	ev := &colispace.ChangeEvent{Kind: p.Kind, ColiSpaceID: p.ColiSpaceID}
	switch p.Kind {
	case colispace.ChangeMessageInserted:
		m, err := f.repo.getMessage(ctx, *p.MessageID)
		if err != nil || m == nil {
			return nil, err
		}
		ev.Message = m
	case colispace.ChangeStepUpdated:
		st, err := f.repo.getStep(ctx, p.ColiSpaceID, p.StepID)
		if err != nil || st == nil {
			return nil, err
		}
		ev.Step = st
	case colispace.ChangeSpaceUpdated:
		sp, err := f.repo.GetByID(ctx, p.ColiSpaceID)
		if err != nil || sp == nil {
			return nil, err
		}
		ev.Space = sp
	}
	return ev, nil
}
