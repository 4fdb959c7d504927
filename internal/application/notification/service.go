package notification

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/Mr-houngbo/Colit/internal/domain/announcement"
	"github.com/Mr-houngbo/Colit/internal/domain/colispace"
	"github.com/Mr-houngbo/Colit/internal/domain/notification"
	"github.com/Mr-houngbo/Colit/internal/domain/profile"
)

const defaultSendTimeout = 10 * time.Second

// Service turns coli space events into per-recipient notifications and
// delivers them in the background. Delivery never affects the caller.
type Service struct {
	repo          notification.Repository
	sender        notification.Sender
	announcements announcement.Repository
	profiles      profile.Repository
	timeout       time.Duration
	logger        zerolog.Logger

	wg sync.WaitGroup
}

// NewService creates a notification service. announcements and profiles
// only enrich the rendered text and may be nil.
func NewService(
	repo notification.Repository,
	sender notification.Sender,
	announcements announcement.Repository,
	profiles profile.Repository,
	timeout time.Duration,
	logger zerolog.Logger,
) *Service {
	if timeout <= 0 {
		timeout = defaultSendTimeout
	}
	return &Service{
		repo:          repo,
		sender:        sender,
		announcements: announcements,
		profiles:      profiles,
		timeout:       timeout,
		logger:        logger.With().Str("service", "notification").Logger(),
	}
}

// Dispatch schedules delivery of ev to every participant except the actor.
// It returns immediately.
func (s *Service) Dispatch(ctx context.Context, ev notification.Event) {
	if ev.Space == nil {
		return
	}
	recipients := ev.Space.ParticipantIDs(ev.ActorID)
	if len(recipients) == 0 {
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
		defer cancel()
		s.deliverAll(ctx, ev, recipients)
	}()
}

// Wait blocks until every scheduled delivery has finished.
func (s *Service) Wait() {
	s.wg.Wait()
}

func (s *Service) deliverAll(ctx context.Context, ev notification.Event, recipients []string) {
	intent, err := notification.BuildIntent(ev.Type, s.intentContext(ctx, ev))
	if err != nil {
		s.logger.Error().Err(err).Str("type", string(ev.Type)).Msg("failed to build notification intent")
		return
	}
	for _, recipient := range recipients {
		n := notification.NewNotification(ev.Space.ID, recipient, intent)
		if err := s.repo.Create(ctx, n); err != nil {
			s.logger.Warn().Err(err).
				Str("recipient_id", recipient).
				Str("type", string(ev.Type)).
				Msg("failed to record notification")
			continue
		}
		s.deliver(ctx, n)
	}
}

func (s *Service) intentContext(ctx context.Context, ev notification.Event) notification.Context {
	c := notification.Context{
		ColiSpaceID: ev.Space.ID,
		StepID:      ev.StepID,
		ActorID:     ev.ActorID,
		Preview:     ev.Preview,
	}
	if s.announcements != nil {
		a, err := s.announcements.GetByID(ctx, ev.Space.AnnouncementID)
		if err != nil {
			s.logger.Debug().Err(err).Msg("announcement lookup failed")
		} else if a != nil {
			c.DepartureCity = a.DepartureCity
			c.ArrivalCity = a.ArrivalCity
		}
	}
	if s.profiles != nil && ev.ActorID != "" {
		p, err := s.profiles.GetByID(ctx, ev.ActorID)
		if err != nil {
			s.logger.Debug().Err(err).Msg("actor profile lookup failed")
		} else if p != nil {
			c.ActorName = p.DisplayName()
		}
	}
	if ev.StepID != "" {
		if def, ok := colispace.Definition(ev.StepID); ok {
			c.StepLabel = def.Label
		}
	}
	return c
}

func (s *Service) deliver(ctx context.Context, n *notification.Notification) {
	if err := s.sender.Send(ctx, n); err != nil {
		s.logger.Warn().Err(err).
			Str("notification_id", n.NotificationID.String()).
			Str("recipient_id", n.RecipientID).
			Int("retry_count", n.RetryCount).
			Msg("notification delivery failed")
		if markErr := n.MarkFailed(err.Error()); markErr != nil {
			s.logger.Error().Err(markErr).Msg("failed to mark notification failed")
			return
		}
	} else if err := n.MarkSent(); err != nil {
		s.logger.Error().Err(err).Msg("failed to mark notification sent")
		return
	}
	if err := s.repo.Update(ctx, n); err != nil {
		s.logger.Warn().Err(err).Str("notification_id", n.NotificationID.String()).Msg("failed to update notification")
	}
}

// ListForRecipient returns a user's notifications, oldest first.
func (s *Service) ListForRecipient(ctx context.Context, recipientID string, limit int) ([]*notification.Notification, error) {
	if recipientID == "" {
		return nil, colispace.ErrNotParticipant
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	items, err := s.repo.ListByRecipient(ctx, recipientID, limit)
	if err != nil {
		return nil, colispace.Unavailable(err)
	}
	return items, nil
}

// ProcessRetryable re-sends failed notifications that still have retries.
// It returns how many were re-sent successfully.
func (s *Service) ProcessRetryable(ctx context.Context, limit int) (int, error) {
	items, err := s.repo.ListRetryable(ctx, limit)
	if err != nil {
		return 0, err
	}
	sent := 0
	for _, n := range items {
		if err := n.ResetForRetry(); err != nil {
			continue
		}
		sendCtx, cancel := context.WithTimeout(ctx, s.timeout)
		s.deliver(sendCtx, n)
		cancel()
		if n.Status == notification.StatusSent {
			sent++
		}
	}
	return sent, nil
}

// RunRetryLoop calls ProcessRetryable every interval until ctx is done.
func (s *Service) RunRetryLoop(ctx context.Context, interval time.Duration, batch int) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := s.ProcessRetryable(ctx, batch)
			if err != nil && !errors.Is(err, context.Canceled) {
				s.logger.Warn().Err(err).Msg("notification retry pass failed")
				continue
			}
			if n > 0 {
				s.logger.Info().Int("count", n).Msg("notifications re-sent")
			}
		}
	}
}

// Channel is one named delivery route.
type Channel struct {
	Name   string
	Sender notification.Sender
}

// MultiSender delivers through every channel and joins their errors.
// Channels that already accepted a notification are skipped, so a retry
// reaches only the ones that failed.
type MultiSender []Channel

func (m MultiSender) Send(ctx context.Context, n *notification.Notification) error {
	var errs []error
	for _, ch := range m {
		if ch.Sender == nil || n.DeliveredOn(ch.Name) {
			continue
		}
		if err := ch.Sender.Send(ctx, n); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", ch.Name, err))
			continue
		}
		n.RecordDelivery(ch.Name)
	}
	return errors.Join(errs...)
}
