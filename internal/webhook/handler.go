package webhook

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/joenovotny/calendar-push/internal/booking"
)

// maxBodyBytes bounds the inbound payload size.
const maxBodyBytes = 1 << 20

// Processor handles one parsed notification to its terminal state.
type Processor interface {
	Process(ctx context.Context, n *booking.Notification) error
}

// Handler is the inbound HTTP surface for booking notifications.
//
// ackAlways is the documented delivery policy: when set, the sender is
// acknowledged no matter what happened internally, so a failing
// pipeline never drives the upstream into a retry storm. Recovery of
// missed events is an operational replay concern, not this handler's.
type Handler struct {
	processor Processor
	ackAlways bool
	log       zerolog.Logger
}

// NewHandler creates the webhook handler.
func NewHandler(processor Processor, ackAlways bool, logger zerolog.Logger) *Handler {
	return &Handler{
		processor: processor,
		ackAlways: ackAlways,
		log:       logger.With().Str("component", "webhook").Logger(),
	}
}

// Routes mounts the notification endpoint.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/webhooks/bookings", h.handleNotification)
}

func (h *Handler) handleNotification(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		h.log.Warn().Err(err).Msg("failed to read notification body")
		h.respond(w, http.StatusBadRequest)
		return
	}

	n, err := ParseNotification(body)
	if err != nil {
		h.log.Warn().Err(err).Msg("rejecting unparseable notification")
		h.respond(w, http.StatusBadRequest)
		return
	}

	if err := h.processor.Process(r.Context(), n); err != nil {
		h.log.Error().
			Str("booking_id", n.BookingID).
			Str("event_kind", n.EventKind).
			Err(err).
			Msg("notification processing failed")
		h.respond(w, http.StatusInternalServerError)
		return
	}

	h.respond(w, http.StatusAccepted)
}

// respond writes the outcome. Under the always-acknowledge policy any
// status collapses to 202 accepted.
func (h *Handler) respond(w http.ResponseWriter, status int) {
	outcome := "accepted"
	if h.ackAlways {
		status = http.StatusAccepted
	} else if status != http.StatusAccepted {
		outcome = "rejected"
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": outcome})
}
