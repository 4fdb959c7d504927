package notification

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/Mr-houngbo/Colit/internal/domain/colispace"
)

// EventType names what happened in a coli space.
type EventType string

const (
	EventNewMessage       EventType = "NEW_MESSAGE"
	EventStepValidated    EventType = "STEP_VALIDATED"
	EventReceiverJoined   EventType = "RECEIVER_JOINED"
	EventPackagePickedUp  EventType = "PACKAGE_PICKED_UP"
	EventPackageDelivered EventType = "PACKAGE_DELIVERED"
)

// Context carries what an intent may mention.
type Context struct {
	ColiSpaceID   uuid.UUID
	DepartureCity string
	ArrivalCity   string
	StepID        colispace.StepID
	StepLabel     string
	ActorID       string
	ActorName     string
	Preview       string
}

// Intent is a rendered notification, independent of how it is delivered.
type Intent struct {
	Type     EventType         `json:"type"`
	Title    string            `json:"title"`
	Body     string            `json:"body"`
	Metadata map[string]string `json:"metadata"`
}

// EventForStep maps a completed step to its event type.
func EventForStep(step colispace.StepID) EventType {
	switch step {
	case colispace.StepPickedUp:
		return EventPackagePickedUp
	case colispace.StepDelivered:
		return EventPackageDelivered
	default:
		return EventStepValidated
	}
}

// BuildIntent renders the notification for an event. It has no side effects.
func BuildIntent(event EventType, c Context) (Intent, error) {
	route := c.DepartureCity + " → " + c.ArrivalCity
	actor := c.ActorName
	if actor == "" {
		actor = "Un participant"
	}

	in := Intent{
		Type: event,
		Metadata: map[string]string{
			"type":        string(event),
			"coliSpaceId": c.ColiSpaceID.String(),
		},
	}
	if c.ActorID != "" {
		in.Metadata["actorId"] = c.ActorID
	}

	switch event {
	case EventNewMessage:
		in.Title = "Nouveau message"
		in.Body = fmt.Sprintf("%s vous a envoyé un message", actor)
		if c.Preview != "" {
			in.Body = fmt.Sprintf("%s : %s", actor, truncate(c.Preview, 80))
		}
	case EventStepValidated:
		label := c.StepLabel
		if label == "" {
			label = string(c.StepID)
		}
		in.Title = "Étape validée"
		in.Body = fmt.Sprintf("L'étape « %s » a été validée pour le colis %s", label, route)
		in.Metadata["stepId"] = string(c.StepID)
	case EventReceiverJoined:
		in.Title = "Destinataire rejoint"
		in.Body = fmt.Sprintf("Le destinataire a rejoint l'espace du colis %s", route)
	case EventPackagePickedUp:
		in.Title = "Colis pris en charge"
		in.Body = fmt.Sprintf("Votre colis %s a été pris en charge par le GP", route)
		in.Metadata["stepId"] = string(colispace.StepPickedUp)
	case EventPackageDelivered:
		in.Title = "Colis livré"
		in.Body = fmt.Sprintf("Votre colis %s a été livré", route)
		in.Metadata["stepId"] = string(colispace.StepDelivered)
	default:
		return Intent{}, fmt.Errorf("%w: %s", ErrUnknownEvent, event)
	}
	return in, nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "…"
}

// Event is a fact the other participants of a coli space should hear about.
type Event struct {
	Type    EventType
	Space   *colispace.ColiSpace
	ActorID string
	StepID  colispace.StepID
	Preview string
}
