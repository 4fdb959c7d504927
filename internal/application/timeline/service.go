package timeline

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Mr-houngbo/Colit/internal/domain/announcement"
	"github.com/Mr-houngbo/Colit/internal/domain/colispace"
	"github.com/Mr-houngbo/Colit/internal/domain/notification"
)

// Notifier receives side-effect events. It must not block.
type Notifier interface {
	Dispatch(ctx context.Context, ev notification.Event)
}

// Service runs the timeline state machine of coli spaces.
type Service struct {
	repo          colispace.Repository
	announcements announcement.Repository
	notifier      Notifier
	logger        zerolog.Logger
	now           func() time.Time
}

// NewService creates a timeline service. notifier may be nil.
func NewService(
	repo colispace.Repository,
	announcements announcement.Repository,
	notifier Notifier,
	logger zerolog.Logger,
) *Service {
	return &Service{
		repo:          repo,
		announcements: announcements,
		notifier:      notifier,
		logger:        logger.With().Str("service", "timeline").Logger(),
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// View is a coli space as seen by one participant.
type View struct {
	Space *colispace.ColiSpace      `json:"space"`
	Role  colispace.Role            `json:"role"`
	Steps []*colispace.TimelineStep `json:"steps"`
}

// Result is the outcome of a successful validation.
type Result struct {
	Space  *colispace.ColiSpace        `json:"space"`
	Steps  []*colispace.TimelineStep   `json:"steps"`
	Events []colispace.TransitionEvent `json:"events"`
}

// Timeline returns the space, the caller's role and the ordered steps.
func (s *Service) Timeline(ctx context.Context, id uuid.UUID, who colispace.Identity) (*View, error) {
	space, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	role := colispace.RoleFor(space, who)
	if role == colispace.RoleNone {
		return nil, colispace.ErrNotParticipant
	}
	steps, err := s.steps(ctx, id)
	if err != nil {
		return nil, err
	}
	return &View{Space: space, Role: role, Steps: steps}, nil
}

// Validate completes stepID on behalf of who, then auto-completes the
// following auto steps. Checks run in a fixed order so the reported error
// is stable.
func (s *Service) Validate(ctx context.Context, id uuid.UUID, stepID colispace.StepID, who colispace.Identity) (*Result, error) {
	space, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if space.IsClosed() {
		return nil, colispace.ErrClosed
	}
	def, ok := colispace.Definition(stepID)
	if !ok {
		return nil, colispace.NotFound("timeline step", stepID)
	}
	steps, err := s.steps(ctx, id)
	if err != nil {
		return nil, err
	}
	target := colispace.FindStep(steps, stepID)
	if target == nil {
		return nil, colispace.NotFound("timeline step", stepID)
	}
	// a pending send request has one party; the timeline waits for a gp
	if !space.HasGP() {
		return nil, colispace.ErrAwaitingGP
	}

	role := colispace.RoleFor(space, who)
	if !def.Policy.Allows(role) {
		return nil, colispace.ErrUnauthorizedStep
	}
	if target.Completed {
		return nil, colispace.ErrAlreadyCompleted
	}

	var events []colispace.TransitionEvent
	settled, err := s.settleAutoSteps(ctx, space.ID, steps)
	if err != nil {
		return nil, err
	}
	events = append(events, settled...)

	if frontier := colispace.Frontier(steps); frontier == nil || frontier.StepID != stepID {
		return nil, colispace.ErrOutOfOrder
	}

	now := s.now()
	actor := who.UserID
	done, err := s.repo.CompleteStep(ctx, space.ID, stepID, &actor, now)
	if err != nil {
		return nil, colispace.Unavailable(err)
	}
	if !done {
		return nil, colispace.ErrAlreadyCompleted
	}
	markCompleted(target, &actor, now)
	events = append(events, transition(space.ID, stepID, &actor, now))

	s.logger.Info().
		Str("coli_space_id", space.ID.String()).
		Str("step_id", string(stepID)).
		Str("validated_by", actor).
		Str("role", string(role)).
		Msg("timeline step validated")

	for _, next := range colispace.CascadeAfter(stepID) {
		ok, err := s.repo.CompleteStep(ctx, space.ID, next, nil, now)
		if err != nil {
			// The manual step stands; the next validation settles the rest.
			s.logger.Error().Err(err).
				Str("coli_space_id", space.ID.String()).
				Str("step_id", string(next)).
				Msg("auto step completion failed")
			break
		}
		if !ok {
			continue
		}
		markCompleted(colispace.FindStep(steps, next), nil, now)
		events = append(events, transition(space.ID, next, nil, now))
	}

	s.applyStatus(ctx, space, events, now)

	if fresh, err := s.repo.GetByID(ctx, space.ID); err == nil && fresh != nil {
		space = fresh
	}
	if fresh, err := s.repo.ListSteps(ctx, space.ID); err == nil && len(fresh) > 0 {
		colispace.SortSteps(fresh)
		steps = fresh
	}

	for _, ev := range events {
		s.notify(ctx, notification.Event{
			Type:    notification.EventForStep(ev.StepID),
			Space:   space,
			ActorID: actor,
			StepID:  ev.StepID,
		})
	}

	return &Result{Space: space, Steps: steps, Events: events}, nil
}

// settleAutoSteps completes auto steps sitting at the frontier, left behind
// when an earlier cascade was interrupted.
func (s *Service) settleAutoSteps(ctx context.Context, id uuid.UUID, steps []*colispace.TimelineStep) ([]colispace.TransitionEvent, error) {
	var events []colispace.TransitionEvent
	for {
		frontier := colispace.Frontier(steps)
		if frontier == nil {
			return events, nil
		}
		def, _ := colispace.Definition(frontier.StepID)
		if !def.Policy.AutoValidate {
			return events, nil
		}
		now := s.now()
		ok, err := s.repo.CompleteStep(ctx, id, frontier.StepID, nil, now)
		if err != nil {
			return nil, colispace.Unavailable(err)
		}
		if ok {
			events = append(events, transition(id, frontier.StepID, nil, now))
		}
		markCompleted(frontier, nil, now)
	}
}

// applyStatus advances the space and its announcement after completions.
// Failures are logged: the steps are already committed.
func (s *Service) applyStatus(ctx context.Context, space *colispace.ColiSpace, events []colispace.TransitionEvent, now time.Time) {
	var (
		next    colispace.Status
		annNext announcement.Status
	)
	for _, ev := range events {
		if st, ok := colispace.StatusAfter(ev.StepID); ok && (next == "" || next.CanAdvanceTo(st)) {
			next = st
		}
		switch ev.StepID {
		case colispace.StepValidated:
			if annNext == "" {
				annNext = announcement.StatusTaken
			}
		case colispace.StepCompleted:
			annNext = announcement.StatusDelivered
		}
	}

	if next != "" {
		if _, err := s.repo.AdvanceStatus(ctx, space.ID, next, now); err != nil {
			s.logger.Error().Err(err).
				Str("coli_space_id", space.ID.String()).
				Str("status", string(next)).
				Msg("failed to advance coli space status")
		}
	}
	if annNext != "" && s.announcements != nil {
		if _, err := s.announcements.AdvanceStatus(ctx, space.AnnouncementID, annNext, now); err != nil {
			s.logger.Error().Err(err).
				Str("announcement_id", space.AnnouncementID.String()).
				Str("status", string(annNext)).
				Msg("failed to advance announcement status")
		}
	}
}

// Cancel closes a space out of band. Only the sender or the GP may cancel.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID, who colispace.Identity) (*colispace.ColiSpace, error) {
	space, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	switch colispace.RoleFor(space, who) {
	case colispace.RoleSender, colispace.RoleGP:
	case colispace.RoleNone:
		return nil, colispace.ErrNotParticipant
	default:
		return nil, colispace.ErrForbidden
	}
	if err := terminalError(space.Status); err != nil {
		return nil, err
	}

	ok, err := s.repo.AdvanceStatus(ctx, id, colispace.StatusCancelled, s.now())
	if err != nil {
		return nil, colispace.Unavailable(err)
	}
	fresh, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !ok {
		if err := terminalError(fresh.Status); err != nil {
			return nil, err
		}
	}
	s.logger.Info().
		Str("coli_space_id", id.String()).
		Str("cancelled_by", who.UserID).
		Msg("coli space cancelled")
	return fresh, nil
}

func terminalError(status colispace.Status) error {
	switch status {
	case colispace.StatusCancelled:
		return colispace.ErrClosed
	case colispace.StatusDelivered:
		return colispace.ErrAlreadyCompleted
	}
	return nil
}

func (s *Service) load(ctx context.Context, id uuid.UUID) (*colispace.ColiSpace, error) {
	space, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, colispace.Unavailable(err)
	}
	if space == nil {
		return nil, colispace.NotFound("coli space", id)
	}
	return space, nil
}

// steps never falls back to a default timeline: a space without steps is a
// data integrity problem and surfaces as not found.
func (s *Service) steps(ctx context.Context, id uuid.UUID) ([]*colispace.TimelineStep, error) {
	steps, err := s.repo.ListSteps(ctx, id)
	if err != nil {
		return nil, colispace.Unavailable(err)
	}
	if len(steps) == 0 {
		return nil, colispace.NotFound("timeline", id)
	}
	colispace.SortSteps(steps)
	return steps, nil
}

func (s *Service) notify(ctx context.Context, ev notification.Event) {
	if s.notifier == nil {
		return
	}
	s.notifier.Dispatch(ctx, ev)
}

func markCompleted(st *colispace.TimelineStep, by *string, at time.Time) {
	if st == nil {
		return
	}
	st.Completed = true
	st.ValidatedBy = by
	t := at
	st.ValidatedAt = &t
}

func transition(id uuid.UUID, step colispace.StepID, by *string, at time.Time) colispace.TransitionEvent {
	return colispace.TransitionEvent{
		ColiSpaceID: id,
		StepID:      step,
		NewState:    colispace.TransitionCompleted,
		ValidatedBy: by,
		At:          at,
	}
}
