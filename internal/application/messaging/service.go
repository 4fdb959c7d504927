package messaging

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Mr-houngbo/Colit/internal/domain/colispace"
	"github.com/Mr-houngbo/Colit/internal/domain/notification"
	"github.com/Mr-houngbo/Colit/internal/domain/profile"
)

const (
	maxTextLength  = 4000
	maxAttachments = 10
)

// Notifier receives side-effect events. It must not block.
type Notifier interface {
	Dispatch(ctx context.Context, ev notification.Event)
}

// Service handles the chat and membership of coli spaces.
type Service struct {
	spaces   colispace.Repository
	messages colispace.MessageRepository
	profiles profile.Repository
	notifier Notifier
	logger   zerolog.Logger
	now      func() time.Time
}

// NewService creates a messaging service. profiles and notifier may be nil.
func NewService(
	spaces colispace.Repository,
	messages colispace.MessageRepository,
	profiles profile.Repository,
	notifier Notifier,
	logger zerolog.Logger,
) *Service {
	return &Service{
		spaces:   spaces,
		messages: messages,
		profiles: profiles,
		notifier: notifier,
		logger:   logger.With().Str("service", "messaging").Logger(),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Participant is one member of a space with display data.
type Participant struct {
	Role      colispace.Role `json:"role"`
	UserID    string         `json:"userId,omitempty"`
	Name      string         `json:"name"`
	Email     string         `json:"email,omitempty"`
	Phone     string         `json:"phone,omitempty"`
	AvatarURL string         `json:"avatarUrl,omitempty"`
}

// SendMessage appends a message once the store confirms it.
func (s *Service) SendMessage(ctx context.Context, id uuid.UUID, who colispace.Identity, text string, attachments []string) (*colispace.Message, error) {
	space, err := s.member(ctx, id, who)
	if err != nil {
		return nil, err
	}
	if space.IsClosed() {
		return nil, colispace.ErrClosed
	}

	msg := &colispace.Message{
		ID:          uuid.New(),
		ColiSpaceID: id,
		UserID:      who.UserID,
		Text:        strings.TrimSpace(text),
		Attachments: cleanAttachments(attachments),
		CreatedAt:   s.now(),
	}
	if msg.IsEmpty() {
		return nil, colispace.ErrInvalidInput
	}
	if len([]rune(msg.Text)) > maxTextLength || len(msg.Attachments) > maxAttachments {
		return nil, colispace.ErrInvalidInput
	}

	if err := s.messages.CreateMessage(ctx, msg); err != nil {
		return nil, colispace.Unavailable(err)
	}
	if err := s.spaces.TouchLastMessage(ctx, id, msg.CreatedAt); err != nil {
		s.logger.Warn().Err(err).Str("coli_space_id", id.String()).Msg("failed to touch last message time")
	}

	if s.notifier != nil {
		s.notifier.Dispatch(ctx, notification.Event{
			Type:    notification.EventNewMessage,
			Space:   space,
			ActorID: who.UserID,
			Preview: msg.Text,
		})
	}
	return msg, nil
}

// ListMessages returns the chat in creation order.
func (s *Service) ListMessages(ctx context.Context, id uuid.UUID, who colispace.Identity) ([]*colispace.Message, error) {
	if _, err := s.member(ctx, id, who); err != nil {
		return nil, err
	}
	msgs, err := s.messages.ListMessages(ctx, id)
	if err != nil {
		return nil, colispace.Unavailable(err)
	}
	colispace.SortMessages(msgs)
	return msgs, nil
}

// Participants resolves the sender, the GP and the receiver to display data.
func (s *Service) Participants(ctx context.Context, id uuid.UUID, who colispace.Identity) ([]Participant, error) {
	space, err := s.member(ctx, id, who)
	if err != nil {
		return nil, err
	}

	out := make([]Participant, 0, 3)
	out = append(out, s.participant(ctx, colispace.RoleSender, space.SenderID))
	if space.HasGP() {
		out = append(out, s.participant(ctx, colispace.RoleGP, space.GPID))
	}
	switch {
	case space.ReceiverID != "":
		p := s.participant(ctx, colispace.RoleReceiver, space.ReceiverID)
		if space.ReceiverContact != nil && p.Name == space.ReceiverID {
			p.Name = space.ReceiverContact.Name
		}
		out = append(out, p)
	case space.ReceiverContact != nil:
		out = append(out, Participant{
			Role:  colispace.RoleReceiver,
			Name:  space.ReceiverContact.Name,
			Email: space.ReceiverContact.Email,
			Phone: space.ReceiverContact.Phone,
		})
	}
	return out, nil
}

func (s *Service) participant(ctx context.Context, role colispace.Role, userID string) Participant {
	p := Participant{Role: role, UserID: userID, Name: userID}
	if s.profiles == nil {
		return p
	}
	prof, err := s.profiles.GetByID(ctx, userID)
	if err != nil {
		s.logger.Debug().Err(err).Str("user_id", userID).Msg("profile lookup failed")
		return p
	}
	if prof != nil {
		p.Name = prof.DisplayName()
		p.Email = prof.Email
		p.AvatarURL = prof.AvatarURL
	}
	return p
}

// JoinAsReceiver links the caller's account to the receiver contact of the
// space. The caller's email must match the contact email.
func (s *Service) JoinAsReceiver(ctx context.Context, id uuid.UUID, who colispace.Identity) (*colispace.ColiSpace, error) {
	space, err := s.spaces.GetByID(ctx, id)
	if err != nil {
		return nil, colispace.Unavailable(err)
	}
	if space == nil {
		return nil, colispace.NotFound("coli space", id)
	}
	if space.IsClosed() {
		return nil, colispace.ErrClosed
	}
	if who.UserID == "" || space.ReceiverContact == nil || space.ReceiverContact.Email == "" ||
		!strings.EqualFold(strings.TrimSpace(who.Email), space.ReceiverContact.Email) {
		return nil, colispace.ErrNotParticipant
	}
	if who.UserID == space.SenderID || who.UserID == space.GPID {
		return nil, colispace.ErrForbidden
	}
	if space.ReceiverID == who.UserID {
		return space, nil
	}

	ok, err := s.spaces.AttachReceiver(ctx, id, who.UserID, s.now())
	if err != nil {
		return nil, colispace.Unavailable(err)
	}
	if !ok {
		return nil, colispace.ErrForbidden
	}
	fresh, err := s.spaces.GetByID(ctx, id)
	if err != nil {
		return nil, colispace.Unavailable(err)
	}
	if fresh == nil {
		return nil, colispace.NotFound("coli space", id)
	}

	s.logger.Info().Str("coli_space_id", id.String()).Str("receiver_id", who.UserID).Msg("receiver joined")
	if s.notifier != nil {
		s.notifier.Dispatch(ctx, notification.Event{
			Type:    notification.EventReceiverJoined,
			Space:   fresh,
			ActorID: who.UserID,
		})
	}
	return fresh, nil
}

func (s *Service) member(ctx context.Context, id uuid.UUID, who colispace.Identity) (*colispace.ColiSpace, error) {
	space, err := s.spaces.GetByID(ctx, id)
	if err != nil {
		return nil, colispace.Unavailable(err)
	}
	if space == nil {
		return nil, colispace.NotFound("coli space", id)
	}
	if colispace.RoleFor(space, who) == colispace.RoleNone {
		return nil, colispace.ErrNotParticipant
	}
	return space, nil
}

func cleanAttachments(in []string) []string {
	out := make([]string, 0, len(in))
	for _, a := range in {
		if a = strings.TrimSpace(a); a != "" {
			out = append(out, a)
		}
	}
	return out
}
