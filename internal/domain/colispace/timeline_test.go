package colispace

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mr-houngbo/Colit/internal/domain/announcement"
)

func TestSeedTimeline(t *testing.T) {
	id := uuid.New()
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	steps := SeedTimeline(id, now)

	require.Len(t, steps, 6)
	order := []StepID{StepCreated, StepValidated, StepPickedUp, StepInTransit, StepDelivered, StepCompleted}
	for i, st := range steps {
		assert.Equal(t, order[i], st.StepID)
		assert.Equal(t, i, st.Position)
		assert.Equal(t, id, st.ColiSpaceID)
		assert.NotEmpty(t, st.Label)
		assert.Nil(t, st.ValidatedBy)
		if st.StepID == StepCreated {
			assert.True(t, st.Completed)
			require.NotNil(t, st.ValidatedAt)
			assert.Equal(t, now, *st.ValidatedAt)
		} else {
			assert.False(t, st.Completed)
			assert.Nil(t, st.ValidatedAt)
		}
	}
}

func TestPolicyTable(t *testing.T) {
	tests := []struct {
		step    StepID
		auto    bool
		allowed []Role
	}{
		{StepCreated, true, nil},
		{StepValidated, false, []Role{RoleSender, RoleGP}},
		{StepPickedUp, false, []Role{RoleGP}},
		{StepInTransit, true, nil},
		{StepDelivered, false, []Role{RoleGP}},
		{StepCompleted, true, nil},
	}

	for _, tt := range tests {
		t.Run(string(tt.step), func(t *testing.T) {
			def, ok := Definition(tt.step)
			require.True(t, ok)
			assert.Equal(t, tt.auto, def.Policy.AutoValidate)
			for _, role := range []Role{RoleSender, RoleGP, RoleReceiver, RoleNone} {
				want := false
				for _, a := range tt.allowed {
					if a == role {
						want = true
					}
				}
				assert.Equal(t, want, def.Policy.Allows(role), "role %s", role)
			}
		})
	}

	_, ok := Definition("lost")
	assert.False(t, ok)
	assert.Equal(t, -1, Position("lost"))
}

func TestFrontier(t *testing.T) {
	steps := SeedTimeline(uuid.New(), time.Now())
	assert.Equal(t, StepValidated, Frontier(steps).StepID)

	for _, st := range steps {
		st.Completed = true
	}
	assert.Nil(t, Frontier(steps))
}

func TestSortSteps(t *testing.T) {
	steps := SeedTimeline(uuid.New(), time.Now())
	shuffled := []*TimelineStep{steps[4], steps[0], steps[5], steps[2], steps[1], steps[3]}

	SortSteps(shuffled)

	for i, st := range shuffled {
		assert.Equal(t, steps[i].StepID, st.StepID)
	}
}

func TestCascadeAfter(t *testing.T) {
	assert.Empty(t, CascadeAfter(StepValidated))
	assert.Equal(t, []StepID{StepInTransit}, CascadeAfter(StepPickedUp))
	assert.Equal(t, []StepID{StepCompleted}, CascadeAfter(StepDelivered))
	assert.Empty(t, CascadeAfter(StepCompleted))
	assert.Nil(t, CascadeAfter("unknown"))
}

func TestStatusAfter(t *testing.T) {
	s, ok := StatusAfter(StepValidated)
	assert.True(t, ok)
	assert.Equal(t, StatusAccepted, s)

	s, ok = StatusAfter(StepPickedUp)
	assert.True(t, ok)
	assert.Equal(t, StatusInTransit, s)

	s, ok = StatusAfter(StepCompleted)
	assert.True(t, ok)
	assert.Equal(t, StatusDelivered, s)

	_, ok = StatusAfter(StepDelivered)
	assert.False(t, ok)
}

func TestRoleFor(t *testing.T) {
	space := &ColiSpace{
		SenderID:        "s1",
		GPID:            "gp1",
		ReceiverContact: &announcement.ReceiverContact{Name: "Awa", Email: "awa@example.com"},
	}

	assert.Equal(t, RoleSender, RoleFor(space, Identity{UserID: "s1"}))
	assert.Equal(t, RoleGP, RoleFor(space, Identity{UserID: "gp1"}))
	assert.Equal(t, RoleReceiver, RoleFor(space, Identity{UserID: "r1", Email: "AWA@example.com "}))
	assert.Equal(t, RoleNone, RoleFor(space, Identity{UserID: "x"}))
	assert.Equal(t, RoleNone, RoleFor(space, Identity{}))
	assert.Equal(t, RoleNone, RoleFor(nil, Identity{UserID: "s1"}))

	t.Run("sender wins over receiver email", func(t *testing.T) {
		assert.Equal(t, RoleSender, RoleFor(space, Identity{UserID: "s1", Email: "awa@example.com"}))
	})

	t.Run("pending space never matches an empty gp", func(t *testing.T) {
		pending := &ColiSpace{SenderID: "s1"}
		assert.Equal(t, RoleNone, RoleFor(pending, Identity{UserID: ""}))
	})

	t.Run("attached receiver id", func(t *testing.T) {
		joined := &ColiSpace{SenderID: "s1", GPID: "gp1", ReceiverID: "r9"}
		assert.Equal(t, RoleReceiver, RoleFor(joined, Identity{UserID: "r9"}))
	})
}

func TestStatusTransitions(t *testing.T) {
	assert.True(t, StatusCreated.CanAdvanceTo(StatusAccepted))
	assert.True(t, StatusCreated.CanAdvanceTo(StatusDelivered))
	assert.True(t, StatusInTransit.CanAdvanceTo(StatusCancelled))
	assert.False(t, StatusAccepted.CanAdvanceTo(StatusCreated))
	assert.False(t, StatusDelivered.CanAdvanceTo(StatusCancelled))
	assert.False(t, StatusCancelled.CanAdvanceTo(StatusAccepted))
	assert.False(t, StatusAccepted.CanAdvanceTo(StatusAccepted))

	assert.ElementsMatch(t, []Status{StatusCreated, StatusAccepted}, StatusInTransit.Predecessors())
	assert.ElementsMatch(t, []Status{StatusCreated, StatusAccepted, StatusInTransit}, StatusCancelled.Predecessors())
}

func TestParticipantIDs(t *testing.T) {
	space := &ColiSpace{SenderID: "s1", GPID: "gp1", ReceiverID: "r1"}
	assert.Equal(t, []string{"gp1", "r1"}, space.ParticipantIDs("s1"))
	assert.Equal(t, []string{"s1", "gp1", "r1"}, space.ParticipantIDs(""))

	pending := &ColiSpace{SenderID: "s1"}
	assert.Empty(t, pending.ParticipantIDs("s1"))
}

func TestSortMessages(t *testing.T) {
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	a := &Message{ID: uuid.MustParse("00000000-0000-0000-0000-000000000001"), CreatedAt: base}
	b := &Message{ID: uuid.MustParse("00000000-0000-0000-0000-000000000002"), CreatedAt: base}
	c := &Message{ID: uuid.New(), CreatedAt: base.Add(-time.Minute)}

	msgs := []*Message{b, a, c}
	SortMessages(msgs)

	assert.Equal(t, []*Message{c, a, b}, msgs)
}

func TestMessageIsEmpty(t *testing.T) {
	assert.True(t, (&Message{Text: "  "}).IsEmpty())
	assert.True(t, (&Message{Attachments: []string{""}}).IsEmpty())
	assert.False(t, (&Message{Text: "salut"}).IsEmpty())
	assert.False(t, (&Message{Attachments: []string{"https://cdn/x.jpg"}}).IsEmpty())
}
