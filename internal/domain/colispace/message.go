package colispace

import (
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Message is an append-only chat entry.
type Message struct {
	ID          uuid.UUID `json:"id"`
	ColiSpaceID uuid.UUID `json:"coliSpaceId"`
	UserID      string    `json:"userId"`
	Text        string    `json:"text,omitempty"`
	Attachments []string  `json:"attachments"`
	CreatedAt   time.Time `json:"createdAt"`
}

// IsEmpty reports a message with neither text nor attachments.
func (m *Message) IsEmpty() bool {
	if strings.TrimSpace(m.Text) != "" {
		return false
	}
	for _, a := range m.Attachments {
		if strings.TrimSpace(a) != "" {
			return false
		}
	}
	return true
}

// SortMessages orders by creation time, then id, never by arrival.
func SortMessages(msgs []*Message) {
	sort.SliceStable(msgs, func(i, j int) bool {
		if !msgs[i].CreatedAt.Equal(msgs[j].CreatedAt) {
			return msgs[i].CreatedAt.Before(msgs[j].CreatedAt)
		}
		return msgs[i].ID.String() < msgs[j].ID.String()
	})
}

// ChangeKind identifies a realtime change.
type ChangeKind string

const (
	ChangeMessageInserted ChangeKind = "MESSAGE_INSERTED"
	ChangeStepUpdated     ChangeKind = "STEP_UPDATED"
	ChangeSpaceUpdated    ChangeKind = "SPACE_UPDATED"
)

// ChangeEvent is one record delivered by a Feed.
type ChangeEvent struct {
	Kind        ChangeKind    `json:"kind"`
	ColiSpaceID uuid.UUID     `json:"coliSpaceId"`
	Message     *Message      `json:"message,omitempty"`
	Step        *TimelineStep `json:"step,omitempty"`
	Space       *ColiSpace    `json:"space,omitempty"`
}
