package announcement

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Mr-houngbo/Colit/internal/domain/announcement"
	"github.com/Mr-houngbo/Colit/internal/domain/colispace"
)

const (
	defaultLimit = 50
	maxLimit     = 200
	scanBatch    = 200
)

// PendingOpener creates the GP-less space of a send request.
type PendingOpener interface {
	OpenPending(ctx context.Context, a *announcement.Announcement) (*colispace.ColiSpace, error)
}

// Service handles announcement publication and listing.
type Service struct {
	repo    announcement.Repository
	pending PendingOpener
	logger  zerolog.Logger
	now     func() time.Time
}

// NewService creates an announcement service. pending may be nil.
func NewService(repo announcement.Repository, pending PendingOpener, logger zerolog.Logger) *Service {
	return &Service{
		repo:    repo,
		pending: pending,
		logger:  logger.With().Str("service", "announcement").Logger(),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// CreateInput holds the poster-controlled fields of an announcement.
type CreateInput struct {
	Kind            announcement.Kind             `json:"kind"`
	DepartureCity   string                        `json:"departureCity"`
	ArrivalCity     string                        `json:"arrivalCity"`
	Date            time.Time                     `json:"date"`
	WeightKg        float64                       `json:"weightKg"`
	PricePerKg      *float64                      `json:"pricePerKg,omitempty"`
	TransportMode   *announcement.TransportMode   `json:"transportMode,omitempty"`
	IsFragile       bool                          `json:"isFragile"`
	IsUrgent        bool                          `json:"isUrgent"`
	ReceiverContact *announcement.ReceiverContact `json:"receiverContact,omitempty"`
	PackageValue    *float64                      `json:"packageValue,omitempty"`
	Description     string                        `json:"description,omitempty"`
}

// Create publishes an announcement for poster. A send request that names its
// receiver also gets a pending coli space.
func (s *Service) Create(ctx context.Context, poster colispace.Identity, in CreateInput) (*announcement.Announcement, error) {
	if strings.TrimSpace(poster.UserID) == "" {
		return nil, colispace.ErrNotParticipant
	}
	now := s.now()
	a := &announcement.Announcement{
		ID:            uuid.New(),
		PosterID:      poster.UserID,
		Kind:          in.Kind,
		DepartureCity: strings.TrimSpace(in.DepartureCity),
		ArrivalCity:   strings.TrimSpace(in.ArrivalCity),
		Date:          in.Date.UTC(),
		WeightKg:      in.WeightKg,
		PricePerKg:    in.PricePerKg,
		TransportMode: in.TransportMode,
		IsFragile:     in.IsFragile,
		IsUrgent:      in.IsUrgent,
		PackageValue:  in.PackageValue,
		Description:   strings.TrimSpace(in.Description),
		Status:        announcement.StatusActive,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if in.ReceiverContact != nil {
		rc := in.ReceiverContact.Normalized()
		a.ReceiverContact = &rc
	}
	if err := a.Validate(poster.Email); err != nil {
		return nil, colispace.Invalid(err)
	}

	if err := s.repo.Create(ctx, a); err != nil {
		return nil, colispace.Unavailable(err)
	}
	s.logger.Info().
		Str("announcement_id", a.ID.String()).
		Str("kind", string(a.Kind)).
		Str("poster_id", a.PosterID).
		Msg("announcement created")

	if s.pending != nil && a.Kind == announcement.KindSendRequest && a.HasReceiver() {
		if _, err := s.pending.OpenPending(ctx, a); err != nil {
			s.logger.Warn().Err(err).Str("announcement_id", a.ID.String()).Msg("failed to open pending coli space")
		}
	}
	return a, nil
}

// Get returns one announcement.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*announcement.Announcement, error) {
	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, colispace.Unavailable(err)
	}
	if a == nil {
		return nil, colispace.NotFound("announcement", id)
	}
	return a, nil
}

// Query combines the indexed filter with an optional condition expression.
type Query struct {
	Filter announcement.Filter
	Where  string
}

// List returns announcements newest first. When Where is set the condition
// is evaluated after the store filter, and pagination applies to the
// matching rows.
func (s *Service) List(ctx context.Context, q Query) ([]*announcement.Announcement, error) {
	cond, err := announcement.CompileCondition(q.Where)
	if err != nil {
		return nil, colispace.Invalid(err)
	}
	limit, offset := normalizePage(q.Filter.Limit, q.Filter.Offset)

	if cond == nil {
		f := q.Filter
		f.Limit, f.Offset = limit, offset
		out, err := s.repo.List(ctx, f)
		if err != nil {
			return nil, colispace.Unavailable(err)
		}
		return out, nil
	}

	var (
		out     []*announcement.Announcement
		skipped int
	)
	f := q.Filter
	f.Offset = 0
	f.Limit = scanBatch
	for {
		batch, err := s.repo.List(ctx, f)
		if err != nil {
			return nil, colispace.Unavailable(err)
		}
		for _, a := range batch {
			ok, err := cond.Match(a)
			if err != nil {
				return nil, colispace.Invalid(err)
			}
			if !ok {
				continue
			}
			if skipped < offset {
				skipped++
				continue
			}
			out = append(out, a)
			if len(out) == limit {
				return out, nil
			}
		}
		if len(batch) < scanBatch {
			return out, nil
		}
		f.Offset += scanBatch
	}
}

// MarkDelivered closes an announcement out of band, for the poster only.
func (s *Service) MarkDelivered(ctx context.Context, id uuid.UUID, who colispace.Identity) (*announcement.Announcement, error) {
	a, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if a.PosterID != who.UserID {
		return nil, colispace.ErrForbidden
	}
	ok, err := s.repo.AdvanceStatus(ctx, id, announcement.StatusDelivered, s.now())
	if err != nil {
		return nil, colispace.Unavailable(err)
	}
	if !ok {
		return nil, colispace.Invalid(announcement.ErrInvalidStatusAdvance)
	}
	return s.Get(ctx, id)
}

func normalizePage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
