// Package metrics exposes Prometheus counters for the notification
// pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// NotificationsTotal counts inbound notifications by event kind.
	NotificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "calendar_push_notifications_total",
		Help: "Inbound booking notifications received, by event kind.",
	}, []string{"kind"})

	// DuplicatesTotal counts notifications skipped by the dedup gate.
	DuplicatesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "calendar_push_duplicates_total",
		Help: "Notifications skipped as duplicates within the dedup window.",
	})

	// SyncFailuresTotal counts per-notification processing failures by
	// pipeline stage.
	SyncFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "calendar_push_sync_failures_total",
		Help: "Notification processing failures, by pipeline stage.",
	}, []string{"stage"})

	// CalendarOpsTotal counts writes against the remote calendar store.
	CalendarOpsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "calendar_push_calendar_ops_total",
		Help: "Operations issued against the remote calendar store.",
	}, []string{"op"})
)
