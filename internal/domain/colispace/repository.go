package colispace

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository persists coli spaces and their timelines. Lookups return
// (nil, nil) when the row does not exist.
type Repository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*ColiSpace, error)
	FindByPair(ctx context.Context, announcementID uuid.UUID, senderID, gpID string) (*ColiSpace, error)
	FindPending(ctx context.Context, announcementID uuid.UUID, senderID string) (*ColiSpace, error)
	ListByParticipant(ctx context.Context, who Identity) ([]*ColiSpace, error)

	// GetOrCreate inserts space with its seeded steps as one unit. When a space
	// already exists for the same pair, it is returned with isNew=false.
	GetOrCreate(ctx context.Context, space *ColiSpace, steps []*TimelineStep) (*ColiSpace, bool, error)

	// AttachGP sets gpId on a pending space. It reports false when the space
	// already had a GP.
	AttachGP(ctx context.Context, id uuid.UUID, gpID string, at time.Time) (bool, error)
	// AttachReceiver sets receiverId when unset or already equal to receiverID.
	AttachReceiver(ctx context.Context, id uuid.UUID, receiverID string, at time.Time) (bool, error)
	// AdvanceStatus moves the space to next only from a valid predecessor.
	AdvanceStatus(ctx context.Context, id uuid.UUID, next Status, at time.Time) (bool, error)
	TouchLastMessage(ctx context.Context, id uuid.UUID, at time.Time) error

	ListSteps(ctx context.Context, id uuid.UUID) ([]*TimelineStep, error)
	// CompleteStep flips completed=false to true. It reports false when the
	// step was already completed by someone else.
	CompleteStep(ctx context.Context, id uuid.UUID, stepID StepID, validatedBy *string, at time.Time) (bool, error)
}

// MessageRepository persists chat messages.
type MessageRepository interface {
	CreateMessage(ctx context.Context, msg *Message) error
	ListMessages(ctx context.Context, coliSpaceID uuid.UUID) ([]*Message, error)
}

// Subscription is a live change stream for one coli space.
type Subscription interface {
	Events() <-chan ChangeEvent
	Close()
}

// Feed yields message inserts and step or space updates scoped to one space.
type Feed interface {
	Subscribe(ctx context.Context, coliSpaceID uuid.UUID) (Subscription, error)
}
