// Package sync orchestrates the end-to-end flow for one inbound
// booking notification: dedup, fetch, classify, project, encode, and
// write to the remote calendar.
package sync

import (
	"context"
	"fmt"
	"strings"
	gosync "sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/joenovotny/calendar-push/internal/booking"
	"github.com/joenovotny/calendar-push/internal/dedup"
	"github.com/joenovotny/calendar-push/internal/ics"
	"github.com/joenovotny/calendar-push/internal/metrics"
)

// BookingDirectory is the read-only booking/customer lookup service.
type BookingDirectory interface {
	GetBooking(ctx context.Context, id string) (*booking.Booking, error)
	GetCustomer(ctx context.Context, id string) (*booking.Customer, error)
}

// CalendarStore performs idempotent writes against the remote
// calendar, keyed by uid.
type CalendarStore interface {
	UpsertEvent(ctx context.Context, uid, document string) error
	DeleteEvent(ctx context.Context, uid string) error
}

// Notifier is the optional email side channel. Implementations must
// degrade to a no-op when unconfigured.
type Notifier interface {
	Send(ctx context.Context, subject, body string, attachment []byte) error
}

// Syncer processes booking notifications one at a time and keeps the
// remote calendar object for each booking in its desired end state:
// present and current for active bookings, absent for cancelled ones.
type Syncer struct {
	bookings BookingDirectory
	calendar CalendarStore
	gate     *dedup.Gate
	notifier Notifier

	notifyOnUpdates bool
	now             func() time.Time
	log             zerolog.Logger

	// mu serializes processing: notifications are a single logical
	// stream, and the dedup gate expects a single writer.
	mu gosync.Mutex
}

// NewSyncer creates the orchestrator.
func NewSyncer(bookings BookingDirectory, calendar CalendarStore, gate *dedup.Gate, notifier Notifier, notifyOnUpdates bool, logger zerolog.Logger) *Syncer {
	return &Syncer{
		bookings:        bookings,
		calendar:        calendar,
		gate:            gate,
		notifier:        notifier,
		notifyOnUpdates: notifyOnUpdates,
		now:             time.Now,
		log:             logger.With().Str("component", "syncer").Logger(),
	}
}

// Process handles one notification to its terminal state. The error
// return reports internal failure for logging and metrics; the
// transport layer decides independently what the sender sees.
func (s *Syncer) Process(ctx context.Context, n *booking.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	kind := n.Kind()
	metrics.NotificationsTotal.WithLabelValues(kind.String()).Inc()
	log := s.log.With().Str("booking_id", n.BookingID).Str("event_kind", n.EventKind).Logger()

	if !s.gate.ShouldProcess(n.ID) {
		metrics.DuplicatesTotal.Inc()
		log.Info().Str("notification_id", n.ID).Msg("duplicate notification within dedup window, skipping")
		return nil
	}

	if kind == booking.KindUnknown {
		log.Debug().Msg("ignoring notification with unrecognized event kind")
		return nil
	}

	if kind == booking.KindCancelled {
		return s.removeEvent(ctx, n.BookingID, nil, log)
	}

	b, err := s.bookings.GetBooking(ctx, n.BookingID)
	if err != nil {
		metrics.SyncFailuresTotal.WithLabelValues("booking_fetch").Inc()
		return fmt.Errorf("failed to fetch booking %s: %w", n.BookingID, err)
	}

	if booking.Classify(b) == booking.StatusCancelled {
		return s.removeEvent(ctx, n.BookingID, b, log)
	}

	var customer *booking.Customer
	if b.CustomerID != "" {
		customer, err = s.bookings.GetCustomer(ctx, b.CustomerID)
		if err != nil {
			// Absorbed: the projector falls back to defaults.
			log.Warn().Str("customer_id", b.CustomerID).Err(err).Msg("customer lookup failed, using defaults")
			customer = nil
		}
	}

	rec := ics.Project(b, customer)
	doc, err := ics.Encode(rec, s.now())
	if err != nil {
		metrics.SyncFailuresTotal.WithLabelValues("encode").Inc()
		return fmt.Errorf("failed to encode event for booking %s: %w", n.BookingID, err)
	}

	if err := s.calendar.UpsertEvent(ctx, rec.UID, doc); err != nil {
		metrics.SyncFailuresTotal.WithLabelValues("upsert").Inc()
		return fmt.Errorf("failed to upsert calendar object %s: %w", rec.UID, err)
	}
	metrics.CalendarOpsTotal.WithLabelValues("upsert").Inc()

	if kind == booking.KindCreated || (kind == booking.KindUpdated && s.notifyOnUpdates) {
		subject := fmt.Sprintf("Booking confirmed: %s", rec.Summary)
		if kind == booking.KindUpdated {
			subject = fmt.Sprintf("Booking updated: %s", rec.Summary)
		}
		body := fmt.Sprintf("%s\n%s – %s\n\n%s",
			rec.Summary,
			rec.Start.UTC().Format(time.RFC1123),
			rec.End.UTC().Format(time.RFC1123),
			rec.Description)
		if err := s.notifier.Send(ctx, subject, body, []byte(doc)); err != nil {
			// Mail is best-effort; the calendar write already succeeded.
			log.Warn().Err(err).Msg("notification mail failed")
		}
	}

	log.Info().Str("uid", rec.UID).Msg("calendar event synchronized")
	return nil
}

// removeEvent drives the cancellation path: a tolerant delete of the
// booking's calendar object, preceded by a best-effort fetch whose
// only purpose is a friendlier mail subject. Enrichment failures are
// swallowed; the delete proceeds regardless.
func (s *Syncer) removeEvent(ctx context.Context, bookingID string, b *booking.Booking, log zerolog.Logger) error {
	subject := fmt.Sprintf("Booking cancelled: %s", bookingID)
	body := fmt.Sprintf("Booking %s was cancelled.", bookingID)

	if b == nil {
		var err error
		if b, err = s.bookings.GetBooking(ctx, bookingID); err != nil {
			log.Debug().Err(err).Msg("booking lookup for cancellation notice failed")
			b = nil
		}
	}
	if b != nil {
		if b.CancellationReason != "" {
			body += "\nReason: " + b.CancellationReason
		}
		if b.CustomerID != "" {
			if customer, err := s.bookings.GetCustomer(ctx, b.CustomerID); err == nil {
				if name := strings.TrimSpace(customer.GivenName + " " + customer.FamilyName); name != "" {
					subject = fmt.Sprintf("Booking cancelled: %s", name)
				}
			} else {
				log.Debug().Err(err).Msg("customer lookup for cancellation notice failed")
			}
		}
	}

	uid := ics.UID(bookingID)
	if err := s.calendar.DeleteEvent(ctx, uid); err != nil {
		metrics.SyncFailuresTotal.WithLabelValues("delete").Inc()
		return fmt.Errorf("failed to delete calendar object %s: %w", uid, err)
	}
	metrics.CalendarOpsTotal.WithLabelValues("delete").Inc()

	if err := s.notifier.Send(ctx, subject, body, nil); err != nil {
		log.Warn().Err(err).Msg("cancellation mail failed")
	}

	log.Info().Str("uid", uid).Msg("calendar event removed")
	return nil
}
