// Package booking holds the types owned by the external scheduling
// platform and the read-only client used to fetch them.
package booking

import (
	"strings"
	"time"
)

// Booking is a read-only snapshot of an appointment record, fetched
// fresh for every notification.
type Booking struct {
	ID                 string     `json:"id"`
	Status             string     `json:"status"`
	StartAt            time.Time  `json:"start_at"`
	DurationMinutes    int        `json:"duration_minutes,omitempty"`
	Segments           []Segment  `json:"segments,omitempty"`
	CustomerID         string     `json:"customer_id,omitempty"`
	CancellationReason string     `json:"cancellation_reason,omitempty"`
	CancelledAt        *time.Time `json:"cancelled_at,omitempty"`
}

// Segment is one service segment of a multi-segment booking. Only the
// first segment's duration is used when deriving the calendar event.
type Segment struct {
	DurationMinutes int `json:"duration_minutes"`
}

// Customer is a read-only snapshot of the customer attached to a
// booking. A booking may have no customer at all.
type Customer struct {
	GivenName  string   `json:"given_name"`
	FamilyName string   `json:"family_name"`
	Address    *Address `json:"address,omitempty"`
	Phone      string   `json:"phone,omitempty"`
}

// Address is a postal address as the scheduling platform models it.
type Address struct {
	Line1      string `json:"line1,omitempty"`
	Locality   string `json:"locality,omitempty"`
	Region     string `json:"region,omitempty"`
	PostalCode string `json:"postal_code,omitempty"`
	Country    string `json:"country,omitempty"`
}

// Notification is one inbound booking-lifecycle event. The ID is the
// upstream's own identifier for the delivery; it may be absent, in
// which case the notification cannot be deduplicated.
type Notification struct {
	ID        string
	EventKind string
	BookingID string
}

// Kind classifies the raw event-kind string.
type Kind int

const (
	KindUnknown Kind = iota
	KindCreated
	KindUpdated
	KindCancelled
)

// Kind maps the raw event-kind string to a known kind. The match is
// case-insensitive; anything unrecognized is KindUnknown and is
// acknowledged but not processed.
func (n *Notification) Kind() Kind {
	kind := strings.ToLower(n.EventKind)
	switch {
	case strings.Contains(kind, "cancel"):
		return KindCancelled
	case strings.Contains(kind, "creat"):
		return KindCreated
	case strings.Contains(kind, "updat"):
		return KindUpdated
	default:
		return KindUnknown
	}
}

// String returns the kind name for logging and metrics labels.
func (k Kind) String() string {
	switch k {
	case KindCreated:
		return "created"
	case KindUpdated:
		return "updated"
	case KindCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Status is the synchronization-relevant state of a booking.
type Status int

const (
	StatusActive Status = iota
	StatusCancelled
)

// noShowStatus is the platform's marker for a customer that never
// showed up; it counts as a cancellation for calendar purposes.
const noShowStatus = "NO_SHOW"

// Classify maps a booking's status fields to Active or Cancelled.
// It is total: an unrecognized status defaults to Active, because a
// missed cancellation is visible and recoverable while wrongly
// deleting a live event is not.
func Classify(b *Booking) Status {
	status := strings.ToUpper(strings.TrimSpace(b.Status))
	if strings.Contains(status, "CANCEL") {
		return StatusCancelled
	}
	if status == noShowStatus {
		return StatusCancelled
	}
	if b.CancelledAt != nil {
		return StatusCancelled
	}
	if b.CancellationReason != "" {
		return StatusCancelled
	}
	return StatusActive
}
