package colispace

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Mr-houngbo/Colit/internal/domain/announcement"
)

// Status describes the collaboration lifecycle.
type Status string

const (
	StatusCreated   Status = "CREATED"
	StatusAccepted  Status = "ACCEPTED"
	StatusInTransit Status = "IN_TRANSIT"
	StatusDelivered Status = "DELIVERED"
	StatusCancelled Status = "CANCELLED"
)

// Role is the part a user plays inside one coli space.
type Role string

const (
	RoleSender   Role = "sender"
	RoleGP       Role = "gp"
	RoleReceiver Role = "receiver"
	RoleNone     Role = "none"
)

// Identity is the authenticated caller as known by the auth provider.
type Identity struct {
	UserID string `json:"userId"`
	Email  string `json:"email,omitempty"`
}

// ColiSpace is the shared record for one sender and one GP over one announcement.
type ColiSpace struct {
	ID              uuid.UUID                     `json:"id"`
	AnnouncementID  uuid.UUID                     `json:"announcementId"`
	SenderID        string                        `json:"senderId"`
	GPID            string                        `json:"gpId,omitempty"`
	ReceiverID      string                        `json:"receiverId,omitempty"`
	ReceiverContact *announcement.ReceiverContact `json:"receiverContact,omitempty"`
	Status          Status                        `json:"status"`
	LastMessageAt   *time.Time                    `json:"lastMessageAt,omitempty"`
	CreatedAt       time.Time                     `json:"createdAt"`
	UpdatedAt       time.Time                     `json:"updatedAt"`
}

// HasGP reports whether a GP is attached. Pending send-request spaces have none.
func (c *ColiSpace) HasGP() bool {
	return c.GPID != ""
}

// IsClosed reports whether the space accepts no further activity.
func (c *ColiSpace) IsClosed() bool {
	return c.Status == StatusCancelled
}

// ParticipantIDs returns the known user ids, excluding the given one.
func (c *ColiSpace) ParticipantIDs(exclude string) []string {
	out := make([]string, 0, 3)
	for _, id := range []string{c.SenderID, c.GPID, c.ReceiverID} {
		if id == "" || id == exclude {
			continue
		}
		dup := false
		for _, seen := range out {
			if seen == id {
				dup = true
				break
			}
		}
		if !dup {
			out = append(out, id)
		}
	}
	return out
}

// RoleFor resolves the caller's role. It is the single place where ids and
// emails are compared, used for authorization and display alike.
func RoleFor(space *ColiSpace, who Identity) Role {
	if space == nil {
		return RoleNone
	}
	userID := strings.TrimSpace(who.UserID)
	if userID != "" {
		switch userID {
		case space.SenderID:
			return RoleSender
		case space.GPID:
			return RoleGP
		case space.ReceiverID:
			return RoleReceiver
		}
	}
	email := strings.TrimSpace(who.Email)
	if email != "" && space.ReceiverContact != nil && strings.EqualFold(email, strings.TrimSpace(space.ReceiverContact.Email)) {
		return RoleReceiver
	}
	return RoleNone
}

func (s Status) rank() int {
	switch s {
	case StatusCreated:
		return 0
	case StatusAccepted:
		return 1
	case StatusInTransit:
		return 2
	case StatusDelivered:
		return 3
	case StatusCancelled:
		return 4
	default:
		return -1
	}
}

// IsTerminal reports whether no transition leaves s.
func (s Status) IsTerminal() bool {
	return s == StatusDelivered || s == StatusCancelled
}

// CanAdvanceTo reports whether s may move to next. Progress is monotonic and
// cancellation is allowed from any non-terminal status.
func (s Status) CanAdvanceTo(next Status) bool {
	if s.rank() < 0 || next.rank() < 0 || s.IsTerminal() {
		return false
	}
	if next == StatusCancelled {
		return true
	}
	return next.rank() > s.rank()
}

// Predecessors lists the statuses from which s can be reached.
func (s Status) Predecessors() []Status {
	out := make([]Status, 0, 3)
	for _, prev := range []Status{StatusCreated, StatusAccepted, StatusInTransit, StatusDelivered, StatusCancelled} {
		if prev.CanAdvanceTo(s) {
			out = append(out, prev)
		}
	}
	return out
}
