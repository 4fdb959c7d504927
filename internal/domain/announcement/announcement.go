package announcement

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Kind describes who posted the announcement.
type Kind string

const (
	KindGPOffer     Kind = "GP_OFFER"
	KindSendRequest Kind = "SEND_REQUEST"
)

// Status describes announcement availability.
type Status string

const (
	StatusActive    Status = "ACTIVE"
	StatusTaken     Status = "TAKEN"
	StatusDelivered Status = "DELIVERED"
)

// TransportMode is the GP's means of travel.
type TransportMode string

const (
	TransportCar   TransportMode = "CAR"
	TransportBus   TransportMode = "BUS"
	TransportPlane TransportMode = "PLANE"
	TransportTrain TransportMode = "TRAIN"
)

var (
	ErrInvalidKind          = errors.New("kind must be GP_OFFER or SEND_REQUEST")
	ErrMissingCity          = errors.New("departure and arrival cities are required")
	ErrSameCity             = errors.New("departure and arrival cities must differ")
	ErrInvalidWeight        = errors.New("weight must be greater than zero")
	ErrNegativeAmount       = errors.New("price and package value must not be negative")
	ErrInvalidTransport     = errors.New("transport mode must be CAR, BUS, PLANE or TRAIN")
	ErrSelfReceiver         = errors.New("poster cannot be their own receiver")
	ErrIncompleteReceiver   = errors.New("receiver contact needs a name and a phone or email")
	ErrInvalidStatusAdvance = errors.New("announcement status cannot move backwards")
)

// ReceiverContact identifies the package's destination contact.
type ReceiverContact struct {
	Name  string `json:"name"`
	Phone string `json:"phone,omitempty"`
	Email string `json:"email,omitempty"`
}

// Normalized returns a copy with trimmed fields and a lower-cased email.
func (c ReceiverContact) Normalized() ReceiverContact {
	return ReceiverContact{
		Name:  strings.TrimSpace(c.Name),
		Phone: strings.TrimSpace(c.Phone),
		Email: strings.ToLower(strings.TrimSpace(c.Email)),
	}
}

// Announcement is a GP offer or a send request.
type Announcement struct {
	ID              uuid.UUID        `json:"id"`
	PosterID        string           `json:"posterId"`
	Kind            Kind             `json:"kind"`
	DepartureCity   string           `json:"departureCity"`
	ArrivalCity     string           `json:"arrivalCity"`
	Date            time.Time        `json:"date"`
	WeightKg        float64          `json:"weightKg"`
	PricePerKg      *float64         `json:"pricePerKg,omitempty"`
	TransportMode   *TransportMode   `json:"transportMode,omitempty"`
	IsFragile       bool             `json:"isFragile"`
	IsUrgent        bool             `json:"isUrgent"`
	ReceiverContact *ReceiverContact `json:"receiverContact,omitempty"`
	PackageValue    *float64         `json:"packageValue,omitempty"`
	Description     string           `json:"description,omitempty"`
	Status          Status           `json:"status"`
	CreatedAt       time.Time        `json:"createdAt"`
	UpdatedAt       time.Time        `json:"updatedAt"`
}

// Validate checks the fields a poster controls. posterEmail is used to
// reject an announcement whose receiver is the poster.
func (a *Announcement) Validate(posterEmail string) error {
	switch a.Kind {
	case KindGPOffer, KindSendRequest:
	default:
		return ErrInvalidKind
	}
	if strings.TrimSpace(a.DepartureCity) == "" || strings.TrimSpace(a.ArrivalCity) == "" {
		return ErrMissingCity
	}
	if strings.EqualFold(strings.TrimSpace(a.DepartureCity), strings.TrimSpace(a.ArrivalCity)) {
		return ErrSameCity
	}
	if a.WeightKg <= 0 {
		return ErrInvalidWeight
	}
	if (a.PricePerKg != nil && *a.PricePerKg < 0) || (a.PackageValue != nil && *a.PackageValue < 0) {
		return ErrNegativeAmount
	}
	if a.TransportMode != nil {
		switch *a.TransportMode {
		case TransportCar, TransportBus, TransportPlane, TransportTrain:
		default:
			return ErrInvalidTransport
		}
	}
	if a.ReceiverContact != nil {
		rc := a.ReceiverContact.Normalized()
		if rc.Name == "" || (rc.Phone == "" && rc.Email == "") {
			return ErrIncompleteReceiver
		}
		if rc.Email != "" && strings.EqualFold(rc.Email, strings.TrimSpace(posterEmail)) {
			return ErrSelfReceiver
		}
	}
	return nil
}

// HasReceiver reports whether receiver information was embedded.
func (a *Announcement) HasReceiver() bool {
	return a.ReceiverContact != nil && strings.TrimSpace(a.ReceiverContact.Name) != ""
}

func (s Status) rank() int {
	switch s {
	case StatusActive:
		return 0
	case StatusTaken:
		return 1
	case StatusDelivered:
		return 2
	default:
		return -1
	}
}

// CanAdvanceTo reports whether moving from s to next keeps the status monotonic.
func (s Status) CanAdvanceTo(next Status) bool {
	if next.rank() < 0 || s.rank() < 0 {
		return false
	}
	return next.rank() > s.rank()
}

// Predecessors lists the statuses from which s can be reached.
func (s Status) Predecessors() []Status {
	out := make([]Status, 0, 2)
	for _, prev := range []Status{StatusActive, StatusTaken, StatusDelivered} {
		if prev.CanAdvanceTo(s) {
			out = append(out, prev)
		}
	}
	return out
}

// Filter narrows announcement listings.
type Filter struct {
	Kind          *Kind
	Status        *Status
	PosterID      string
	DepartureCity string
	ArrivalCity   string
	Since         *time.Time
	Limit         int
	Offset        int
}
