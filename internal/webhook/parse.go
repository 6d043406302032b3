// Package webhook accepts booking-lifecycle notifications over HTTP
// and turns the upstream's loosely shaped payloads into typed
// notifications.
package webhook

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/joenovotny/calendar-push/internal/booking"
)

// ErrMalformed marks a payload with no recognizable booking
// identifier.
var ErrMalformed = errors.New("webhook: malformed notification")

// payload covers the known shapes the scheduling platform delivers.
// Which fields are populated varies by event kind and platform
// version, so resolution is by explicit ordered preference, never by
// guessing.
type payload struct {
	EventID        string `json:"event_id"`
	NotificationID string `json:"notification_id"`
	Type           string `json:"type"`
	EventType      string `json:"event_type"`
	BookingID      string `json:"booking_id"`
	Data           struct {
		ID     string `json:"id"`
		Object struct {
			Booking struct {
				ID string `json:"id"`
			} `json:"booking"`
		} `json:"object"`
		Booking struct {
			ID string `json:"id"`
		} `json:"booking"`
	} `json:"data"`
}

// ParseNotification resolves an inbound payload into a typed
// notification. The booking id is taken from the first present of
// data.object.booking.id, data.booking.id, booking_id, data.id; the
// event kind from type then event_type; the notification id from
// event_id then notification_id (and may legitimately be empty).
func ParseNotification(body []byte) (*booking.Notification, error) {
	var p payload
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	bookingID := firstNonEmpty(
		p.Data.Object.Booking.ID,
		p.Data.Booking.ID,
		p.BookingID,
		p.Data.ID,
	)
	if bookingID == "" {
		return nil, fmt.Errorf("%w: no booking identifier in payload", ErrMalformed)
	}

	return &booking.Notification{
		ID:        firstNonEmpty(p.EventID, p.NotificationID),
		EventKind: firstNonEmpty(p.Type, p.EventType),
		BookingID: bookingID,
	}, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
