package colispace

import (
	"sort"
	"time"

	"github.com/google/uuid"
)

// StepID names one delivery milestone.
type StepID string

const (
	StepCreated   StepID = "created"
	StepValidated StepID = "validated"
	StepPickedUp  StepID = "picked_up"
	StepInTransit StepID = "in_transit"
	StepDelivered StepID = "delivered"
	StepCompleted StepID = "completed"
)

// Policy says who may complete a step. Auto steps have no human actor.
type Policy struct {
	AutoValidate bool   `json:"autoValidate"`
	CanValidate  []Role `json:"canValidate"`
}

// Allows reports whether role may manually validate a step under p.
func (p Policy) Allows(role Role) bool {
	if p.AutoValidate || role == RoleNone {
		return false
	}
	for _, r := range p.CanValidate {
		if r == role {
			return true
		}
	}
	return false
}

// StepDefinition is one entry of the fixed timeline schema.
type StepDefinition struct {
	ID     StepID `json:"stepId"`
	Label  string `json:"label"`
	Policy Policy `json:"policy"`
}

var timeline = []StepDefinition{
	{ID: StepCreated, Label: "Espace Coli créé", Policy: Policy{AutoValidate: true}},
	{ID: StepValidated, Label: "Accord validé", Policy: Policy{CanValidate: []Role{RoleSender, RoleGP}}},
	{ID: StepPickedUp, Label: "Colis pris en charge", Policy: Policy{CanValidate: []Role{RoleGP}}},
	{ID: StepInTransit, Label: "En transit", Policy: Policy{AutoValidate: true}},
	{ID: StepDelivered, Label: "Colis livré", Policy: Policy{CanValidate: []Role{RoleGP}}},
	{ID: StepCompleted, Label: "Terminé", Policy: Policy{AutoValidate: true}},
}

// Definitions returns the canonical step schema in order.
func Definitions() []StepDefinition {
	out := make([]StepDefinition, len(timeline))
	copy(out, timeline)
	return out
}

// Definition looks up a step by id.
func Definition(id StepID) (StepDefinition, bool) {
	for _, d := range timeline {
		if d.ID == id {
			return d, true
		}
	}
	return StepDefinition{}, false
}

// Position returns the zero-based index of id, or -1 when unknown.
func Position(id StepID) int {
	for i, d := range timeline {
		if d.ID == id {
			return i
		}
	}
	return -1
}

// TimelineStep is the persisted state of one milestone in one coli space.
type TimelineStep struct {
	ColiSpaceID uuid.UUID  `json:"coliSpaceId"`
	StepID      StepID     `json:"stepId"`
	Label       string     `json:"label"`
	Position    int        `json:"position"`
	Completed   bool       `json:"completed"`
	ValidatedBy *string    `json:"validatedBy,omitempty"`
	ValidatedAt *time.Time `json:"validatedAt,omitempty"`
}

// SeedTimeline builds the six steps of a new space. Only `created` starts
// completed; it is the one and only place timelines are produced.
func SeedTimeline(coliSpaceID uuid.UUID, now time.Time) []*TimelineStep {
	steps := make([]*TimelineStep, 0, len(timeline))
	for i, d := range timeline {
		st := &TimelineStep{
			ColiSpaceID: coliSpaceID,
			StepID:      d.ID,
			Label:       d.Label,
			Position:    i,
		}
		if d.ID == StepCreated {
			at := now
			st.Completed = true
			st.ValidatedAt = &at
		}
		steps = append(steps, st)
	}
	return steps
}

// SortSteps orders steps by canonical position.
func SortSteps(steps []*TimelineStep) {
	sort.SliceStable(steps, func(i, j int) bool {
		return Position(steps[i].StepID) < Position(steps[j].StepID)
	})
}

// Frontier returns the first step not yet completed, or nil when the
// timeline is finished. steps must be sorted.
func Frontier(steps []*TimelineStep) *TimelineStep {
	for _, st := range steps {
		if !st.Completed {
			return st
		}
	}
	return nil
}

// FindStep returns the step with the given id.
func FindStep(steps []*TimelineStep, id StepID) *TimelineStep {
	for _, st := range steps {
		if st.StepID == id {
			return st
		}
	}
	return nil
}

// CascadeAfter lists the auto steps that follow id up to the next manual step.
func CascadeAfter(id StepID) []StepID {
	pos := Position(id)
	if pos < 0 {
		return nil
	}
	var out []StepID
	for _, d := range timeline[pos+1:] {
		if !d.Policy.AutoValidate {
			break
		}
		out = append(out, d.ID)
	}
	return out
}

// StatusAfter returns the space status implied by completing a step.
func StatusAfter(id StepID) (Status, bool) {
	switch id {
	case StepValidated:
		return StatusAccepted, true
	case StepPickedUp, StepInTransit:
		return StatusInTransit, true
	case StepCompleted:
		return StatusDelivered, true
	default:
		return "", false
	}
}

// TransitionState is the new state carried by a transition event.
type TransitionState string

const TransitionCompleted TransitionState = "completed"

// TransitionEvent is emitted once per step completed, cascaded ones included.
type TransitionEvent struct {
	ColiSpaceID uuid.UUID       `json:"coliSpaceId"`
	StepID      StepID          `json:"stepId"`
	NewState    TransitionState `json:"newState"`
	ValidatedBy *string         `json:"validatedBy,omitempty"`
	At          time.Time       `json:"at"`
}
