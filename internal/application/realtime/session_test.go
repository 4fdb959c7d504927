package realtime

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/Mr-houngbo/Colit/internal/domain/colispace"
)

func TestSession_MessagesAreDeduplicatedAndOrdered(t *testing.T) {
	id := uuid.New()
	s := NewSession(id)
	base := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	late := &colispace.Message{ID: uuid.New(), ColiSpaceID: id, Text: "second", CreatedAt: base.Add(time.Minute)}
	early := &colispace.Message{ID: uuid.New(), ColiSpaceID: id, Text: "first", CreatedAt: base}

	assert.True(t, s.Apply(colispace.ChangeEvent{Kind: colispace.ChangeMessageInserted, ColiSpaceID: id, Message: late}))
	assert.True(t, s.Apply(colispace.ChangeEvent{Kind: colispace.ChangeMessageInserted, ColiSpaceID: id, Message: early}))
	assert.False(t, s.Apply(colispace.ChangeEvent{Kind: colispace.ChangeMessageInserted, ColiSpaceID: id, Message: late}))

	msgs := s.Messages()
	if assert.Len(t, msgs, 2) {
		assert.Equal(t, "first", msgs[0].Text)
		assert.Equal(t, "second", msgs[1].Text)
	}
}

func TestSession_IgnoresOtherSpaces(t *testing.T) {
	s := NewSession(uuid.New())
	other := uuid.New()
	applied := s.Apply(colispace.ChangeEvent{
		Kind:        colispace.ChangeMessageInserted,
		ColiSpaceID: other,
		Message:     &colispace.Message{ID: uuid.New(), ColiSpaceID: other, Text: "x"},
	})
	assert.False(t, applied)
	assert.Empty(t, s.Messages())
}

func TestSession_StepsNeverRegress(t *testing.T) {
	id := uuid.New()
	s := NewSession(id)
	now := time.Now().UTC()
	by := "s1"
	pending := &colispace.TimelineStep{ColiSpaceID: id, StepID: colispace.StepValidated, Position: 1}
	done := &colispace.TimelineStep{ColiSpaceID: id, StepID: colispace.StepValidated, Position: 1, Completed: true, ValidatedBy: &by, ValidatedAt: &now}

	assert.True(t, s.Apply(colispace.ChangeEvent{Kind: colispace.ChangeStepUpdated, ColiSpaceID: id, Step: pending}))
	assert.True(t, s.Apply(colispace.ChangeEvent{Kind: colispace.ChangeStepUpdated, ColiSpaceID: id, Step: done}))
	assert.False(t, s.Apply(colispace.ChangeEvent{Kind: colispace.ChangeStepUpdated, ColiSpaceID: id, Step: pending}))
	assert.False(t, s.Apply(colispace.ChangeEvent{Kind: colispace.ChangeStepUpdated, ColiSpaceID: id, Step: done}))

	steps := s.Steps()
	if assert.Len(t, steps, 1) {
		assert.True(t, steps[0].Completed)
		assert.Equal(t, "s1", *steps[0].ValidatedBy)
	}
}

func TestSession_SpaceKeepsNewest(t *testing.T) {
	id := uuid.New()
	s := NewSession(id)
	t0 := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	older := &colispace.ColiSpace{ID: id, Status: colispace.StatusCreated, UpdatedAt: t0}
	newer := &colispace.ColiSpace{ID: id, Status: colispace.StatusAccepted, UpdatedAt: t0.Add(time.Second)}

	assert.Nil(t, s.Space())
	assert.True(t, s.Apply(colispace.ChangeEvent{Kind: colispace.ChangeSpaceUpdated, ColiSpaceID: id, Space: newer}))
	assert.False(t, s.Apply(colispace.ChangeEvent{Kind: colispace.ChangeSpaceUpdated, ColiSpaceID: id, Space: older}))
	assert.False(t, s.Apply(colispace.ChangeEvent{Kind: colispace.ChangeSpaceUpdated, ColiSpaceID: id, Space: newer}))
	assert.Equal(t, colispace.StatusAccepted, s.Space().Status)

	touched := *newer
	at := t0.Add(time.Second)
	touched.LastMessageAt = &at
	assert.True(t, s.Apply(colispace.ChangeEvent{Kind: colispace.ChangeSpaceUpdated, ColiSpaceID: id, Space: &touched}))
	assert.NotNil(t, s.Space().LastMessageAt)
}

func TestSession_LastMessageAtNeverMovesBack(t *testing.T) {
	id := uuid.New()
	s := NewSession(id)
	updated := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	first, second := updated.Add(time.Minute), updated.Add(2*time.Minute)
	space := func(last *time.Time) *colispace.ColiSpace {
		return &colispace.ColiSpace{ID: id, Status: colispace.StatusAccepted, UpdatedAt: updated, LastMessageAt: last}
	}

	assert.True(t, s.Apply(colispace.ChangeEvent{Kind: colispace.ChangeSpaceUpdated, ColiSpaceID: id, Space: space(&second)}))
	assert.False(t, s.Apply(colispace.ChangeEvent{Kind: colispace.ChangeSpaceUpdated, ColiSpaceID: id, Space: space(&first)}))
	assert.False(t, s.Apply(colispace.ChangeEvent{Kind: colispace.ChangeSpaceUpdated, ColiSpaceID: id, Space: space(nil)}))
	if got := s.Space(); assert.NotNil(t, got) && assert.NotNil(t, got.LastMessageAt) {
		assert.True(t, got.LastMessageAt.Equal(second))
	}

	t.Run("a status change keeps the newer message time", func(t *testing.T) {
		moved := space(&first)
		moved.Status = colispace.StatusInTransit
		assert.True(t, s.Apply(colispace.ChangeEvent{Kind: colispace.ChangeSpaceUpdated, ColiSpaceID: id, Space: moved}))
		got := s.Space()
		assert.Equal(t, colispace.StatusInTransit, got.Status)
		assert.True(t, got.LastMessageAt.Equal(second))
	})
}

func TestSession_NilPayloadsAreIgnored(t *testing.T) {
	id := uuid.New()
	s := NewSession(id)
	assert.False(t, s.Apply(colispace.ChangeEvent{Kind: colispace.ChangeMessageInserted, ColiSpaceID: id}))
	assert.False(t, s.Apply(colispace.ChangeEvent{Kind: colispace.ChangeStepUpdated, ColiSpaceID: id}))
	assert.False(t, s.Apply(colispace.ChangeEvent{Kind: colispace.ChangeSpaceUpdated, ColiSpaceID: id}))
	assert.False(t, s.Apply(colispace.ChangeEvent{Kind: "UNKNOWN", ColiSpaceID: id}))
}
