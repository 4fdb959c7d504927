package colispace

import (
	"context"
	"errors"
	"fmt"
)

var (
	ErrSelfMatch        = errors.New("responder cannot match their own announcement")
	ErrUnauthorizedStep = errors.New("not allowed to validate this step")
	ErrAlreadyCompleted = errors.New("step already completed")
	ErrOutOfOrder       = errors.New("step is not the current timeline frontier")
	ErrStoreUnavailable = errors.New("store unavailable")
	ErrNotFound         = errors.New("not found")
	ErrNotParticipant   = errors.New("user is not a participant of this coli space")
	ErrClosed           = errors.New("coli space is closed")
	ErrInvalidInput     = errors.New("invalid input")
	ErrForbidden        = errors.New("action not allowed for this role")
	ErrAwaitingGP       = errors.New("coli space has no gp yet")
)

// Unavailable wraps a store failure so callers can match ErrStoreUnavailable
// while keeping the cause. Context cancellation is passed through untouched.
func Unavailable(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrStoreUnavailable) || errors.Is(err, context.Canceled) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
}

// NotFound builds a not-found error for the named entity.
func NotFound(entity string, id any) error {
	return fmt.Errorf("%w: %s %v", ErrNotFound, entity, id)
}

// Invalid builds an input error carrying the reason.
func Invalid(reason error) error {
	return fmt.Errorf("%w: %w", ErrInvalidInput, reason)
}
