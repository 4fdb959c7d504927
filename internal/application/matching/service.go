package matching

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Mr-houngbo/Colit/internal/domain/announcement"
	"github.com/Mr-houngbo/Colit/internal/domain/colispace"
)

// Service turns "responder engages announcement" into one canonical coli space.
type Service struct {
	repo   colispace.Repository
	logger zerolog.Logger
	now    func() time.Time
}

// NewService creates a matching service.
func NewService(repo colispace.Repository, logger zerolog.Logger) *Service {
	return &Service{
		repo:   repo,
		logger: logger.With().Str("service", "matching").Logger(),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Roles returns the sender and GP ids implied by a response.
func Roles(a *announcement.Announcement, responderID string) (senderID, gpID string) {
	if a.Kind == announcement.KindSendRequest {
		return a.PosterID, responderID
	}
	return responderID, a.PosterID
}

// ResolveOrCreate returns the coli space for (announcement, responder),
// creating it on first contact.
func (s *Service) ResolveOrCreate(ctx context.Context, a *announcement.Announcement, responderID string) (*colispace.ColiSpace, bool, error) {
	return s.resolve(ctx, a, strings.TrimSpace(responderID), nil)
}

// RespondWithReceiver is the GP offer flow where the sender names the
// package's receiver up front. The receiver is recorded on creation only.
func (s *Service) RespondWithReceiver(ctx context.Context, a *announcement.Announcement, responder colispace.Identity, receiver announcement.ReceiverContact) (*colispace.ColiSpace, bool, error) {
	if a.Kind != announcement.KindGPOffer {
		return nil, false, colispace.Invalid(announcement.ErrInvalidKind)
	}
	rc := receiver.Normalized()
	if rc.Name == "" || (rc.Phone == "" && rc.Email == "") {
		return nil, false, colispace.Invalid(announcement.ErrIncompleteReceiver)
	}
	if rc.Email != "" && strings.EqualFold(rc.Email, strings.TrimSpace(responder.Email)) {
		return nil, false, colispace.Invalid(announcement.ErrSelfReceiver)
	}
	return s.resolve(ctx, a, strings.TrimSpace(responder.UserID), &rc)
}

func (s *Service) resolve(ctx context.Context, a *announcement.Announcement, responderID string, receiver *announcement.ReceiverContact) (*colispace.ColiSpace, bool, error) {
	if a == nil {
		return nil, false, colispace.NotFound("announcement", uuid.Nil)
	}
	if responderID == "" {
		return nil, false, colispace.ErrNotParticipant
	}
	senderID, gpID := Roles(a, responderID)
	if senderID == gpID {
		return nil, false, colispace.ErrSelfMatch
	}

	existing, err := s.repo.FindByPair(ctx, a.ID, senderID, gpID)
	if err != nil {
		return nil, false, colispace.Unavailable(err)
	}
	if existing != nil {
		return existing, false, nil
	}

	if a.Status != announcement.StatusActive {
		return nil, false, colispace.ErrClosed
	}

	if a.Kind == announcement.KindSendRequest {
		space, attached, err := s.attachPending(ctx, a, senderID, gpID)
		if err != nil {
			return nil, false, err
		}
		if space != nil {
			return space, attached, nil
		}
	}

	now := s.now()
	space := &colispace.ColiSpace{
		ID:              uuid.New(),
		AnnouncementID:  a.ID,
		SenderID:        senderID,
		GPID:            gpID,
		ReceiverContact: receiver,
		Status:          colispace.StatusCreated,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if space.ReceiverContact == nil && a.HasReceiver() {
		rc := a.ReceiverContact.Normalized()
		space.ReceiverContact = &rc
	}

	got, isNew, err := s.repo.GetOrCreate(ctx, space, colispace.SeedTimeline(space.ID, now))
	if err != nil {
		return nil, false, colispace.Unavailable(err)
	}
	if isNew {
		s.logger.Info().
			Str("coli_space_id", got.ID.String()).
			Str("announcement_id", a.ID.String()).
			Str("sender_id", senderID).
			Str("gp_id", gpID).
			Msg("coli space created")
	}
	return got, isNew, nil
}

// attachPending claims the pending space of a send request for gpID. It
// returns a nil space when there is nothing to claim and creation should go on.
func (s *Service) attachPending(ctx context.Context, a *announcement.Announcement, senderID, gpID string) (*colispace.ColiSpace, bool, error) {
	pending, err := s.repo.FindPending(ctx, a.ID, senderID)
	if err != nil {
		return nil, false, colispace.Unavailable(err)
	}
	if pending == nil {
		return nil, false, nil
	}

	ok, err := s.repo.AttachGP(ctx, pending.ID, gpID, s.now())
	if err != nil {
		return nil, false, colispace.Unavailable(err)
	}
	if ok {
		space, err := s.repo.GetByID(ctx, pending.ID)
		if err != nil {
			return nil, false, colispace.Unavailable(err)
		}
		if space == nil {
			return nil, false, colispace.NotFound("coli space", pending.ID)
		}
		s.logger.Info().
			Str("coli_space_id", space.ID.String()).
			Str("gp_id", gpID).
			Msg("gp attached to pending coli space")
		return space, true, nil
	}

	// Lost the attach race: the same GP may have won it from another request.
	existing, err := s.repo.FindByPair(ctx, a.ID, senderID, gpID)
	if err != nil {
		return nil, false, colispace.Unavailable(err)
	}
	if existing != nil {
		return existing, false, nil
	}
	return nil, false, nil
}

// OpenPending creates the GP-less space of a send request that embeds its
// receiver, so the receiver can follow it before any GP responds.
func (s *Service) OpenPending(ctx context.Context, a *announcement.Announcement) (*colispace.ColiSpace, error) {
	if a.Kind != announcement.KindSendRequest || !a.HasReceiver() {
		return nil, colispace.Invalid(announcement.ErrIncompleteReceiver)
	}
	now := s.now()
	rc := a.ReceiverContact.Normalized()
	space := &colispace.ColiSpace{
		ID:              uuid.New(),
		AnnouncementID:  a.ID,
		SenderID:        a.PosterID,
		ReceiverContact: &rc,
		Status:          colispace.StatusCreated,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	got, _, err := s.repo.GetOrCreate(ctx, space, colispace.SeedTimeline(space.ID, now))
	if err != nil {
		return nil, colispace.Unavailable(err)
	}
	return got, nil
}

// Mine lists the spaces the caller takes part in, most recently active first.
func (s *Service) Mine(ctx context.Context, who colispace.Identity) ([]*colispace.ColiSpace, error) {
	if strings.TrimSpace(who.UserID) == "" && strings.TrimSpace(who.Email) == "" {
		return nil, colispace.ErrNotParticipant
	}
	spaces, err := s.repo.ListByParticipant(ctx, who)
	if err != nil {
		return nil, colispace.Unavailable(err)
	}
	return spaces, nil
}
