// Package ics derives the calendar event for a booking and serializes
// it to and from the iCalendar wire format.
package ics

import (
	"fmt"
	"strings"
	"time"

	"github.com/joenovotny/calendar-push/internal/booking"
)

const (
	// uidNamespace ties every calendar object back to this service.
	// It must never change: the uid is the only link between a booking
	// and its remote object.
	uidNamespace = "@calendar-push"

	summaryLabel = "Appointment"

	defaultDurationMinutes = 60
)

// EventRecord is the fully derived value pushed to the calendar store.
// It has no identity beyond its UID.
type EventRecord struct {
	UID         string
	Summary     string
	Location    string
	Description string
	Start       time.Time
	End         time.Time
}

// UID returns the deterministic calendar object identifier for a
// booking. Identical bookings always map to the same remote object,
// which is what makes upsert and delete idempotent across retries.
func UID(bookingID string) string {
	return bookingID + uidNamespace
}

// Project derives the calendar event for a booking. The customer may
// be nil; every customer-derived field then falls back to a default.
// Project never fails.
func Project(b *booking.Booking, customer *booking.Customer) *EventRecord {
	start := b.StartAt
	end := start.Add(time.Duration(durationMinutes(b)) * time.Minute)

	name := customerName(customer)

	return &EventRecord{
		UID:         UID(b.ID),
		Summary:     summaryLabel + " – " + name,
		Location:    location(customer),
		Description: description(b, customer),
		Start:       start,
		End:         end,
	}
}

// durationMinutes picks the event duration: the first segment of a
// multi-segment booking wins, then the booking-level duration, then
// the 60-minute default.
func durationMinutes(b *booking.Booking) int {
	if len(b.Segments) > 0 && b.Segments[0].DurationMinutes > 0 {
		return b.Segments[0].DurationMinutes
	}
	if b.DurationMinutes > 0 {
		return b.DurationMinutes
	}
	return defaultDurationMinutes
}

func customerName(customer *booking.Customer) string {
	if customer == nil {
		return "Customer"
	}
	name := strings.TrimSpace(strings.TrimSpace(customer.GivenName) + " " + strings.TrimSpace(customer.FamilyName))
	if name == "" {
		return "Customer"
	}
	return name
}

// location formats the customer's postal address, joining the
// non-empty components with ", ". "TBD" when no address is available.
func location(customer *booking.Customer) string {
	if customer == nil || customer.Address == nil {
		return "TBD"
	}
	addr := customer.Address
	var parts []string
	for _, part := range []string{addr.Line1, addr.Locality, addr.Region, addr.PostalCode, addr.Country} {
		if part != "" {
			parts = append(parts, part)
		}
	}
	if len(parts) == 0 {
		return "TBD"
	}
	return strings.Join(parts, ", ")
}

func description(b *booking.Booking, customer *booking.Customer) string {
	lines := []string{fmt.Sprintf("Booking ID: %s", b.ID)}
	if customer != nil && customer.Phone != "" {
		lines = append(lines, fmt.Sprintf("Phone: %s", customer.Phone))
	}
	return strings.Join(lines, "\n")
}
