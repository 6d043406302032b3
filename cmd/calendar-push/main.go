package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/joenovotny/calendar-push/internal/booking"
	"github.com/joenovotny/calendar-push/internal/caldav"
	"github.com/joenovotny/calendar-push/internal/config"
	"github.com/joenovotny/calendar-push/internal/dedup"
	"github.com/joenovotny/calendar-push/internal/mailer"
	"github.com/joenovotny/calendar-push/internal/sync"
	"github.com/joenovotny/calendar-push/internal/webhook"
)

func printHelp() {
	fmt.Fprintf(os.Stderr, `Calendar Push Service

Receives booking-lifecycle webhook notifications from a scheduling
platform and keeps one calendar event per booking on a remote CalDAV
calendar: active bookings are created or updated, cancelled bookings
are removed.

USAGE:
    %s [OPTIONS]

OPTIONS:
    -h, --help              Show this help message and exit
    --config FILE           Path to JSON config file (optional)
    --listen ADDR           HTTP listen address (default ":8080",
                            overrides config file and LISTEN_ADDR)
    --booking-api-url URL   Base URL of the booking/customer API
                            (overrides config file and BOOKING_API_URL)
    --caldav-url URL        CalDAV server URL, e.g. "https://caldav.icloud.com"
                            (overrides config file and CALDAV_SERVER_URL)
    --calendar-name NAME    Display name of the target calendar
                            (default: "Bookings", overrides config file
                            and CALENDAR_NAME)

CONFIGURATION PRECEDENCE (highest to lowest):
    1. Command-line flags
    2. Environment variables
    3. Config file (--config)
    4. Defaults

ENVIRONMENT VARIABLES:
    LISTEN_ADDR, LOG_LEVEL, BOOKING_API_URL, BOOKING_API_TOKEN,
    CALDAV_SERVER_URL, CALDAV_USERNAME, CALDAV_PASSWORD,
    CALDAV_HOME_PATH, CALENDAR_NAME, DEDUP_WINDOW_MINUTES,
    NOTIFY_ON_UPDATES, ALWAYS_ACKNOWLEDGE, SMTP_HOST, SMTP_PORT,
    SMTP_FROM, SMTP_TO, SMTP_USERNAME, SMTP_PASSWORD

ENDPOINTS:
    POST /webhooks/bookings   Inbound booking notifications
    GET  /healthz             Liveness probe
    GET  /metrics             Prometheus metrics

`, os.Args[0])
}

func newLogger(level string) zerolog.Logger {
	lvl := zerolog.InfoLevel
	if level != "" {
		if parsed, err := zerolog.ParseLevel(level); err == nil {
			lvl = parsed
		}
	}
	return zerolog.New(os.Stdout).Level(lvl).With().
		Timestamp().
		Str("service", "calendar-push").
		Logger()
}

func main() {
	helpFlag := flag.Bool("help", false, "Show help message")
	helpFlagShort := flag.Bool("h", false, "Show help message (shorthand)")
	configFile := flag.String("config", "", "Path to JSON config file (optional)")
	listenAddr := flag.String("listen", "", "HTTP listen address")
	bookingAPIURL := flag.String("booking-api-url", "", "Base URL of the booking/customer API")
	caldavURL := flag.String("caldav-url", "", "CalDAV server URL")
	calendarName := flag.String("calendar-name", "", "Display name of the target calendar")
	flag.Parse()

	if *helpFlag || *helpFlagShort {
		printHelp()
		os.Exit(0)
	}

	cfg, err := config.LoadConfig(*configFile, *listenAddr, *bookingAPIURL, *caldavURL, *calendarName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	bookings, err := booking.NewClient(ctx, cfg.BookingAPIURL, cfg.BookingAPIToken, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create booking client")
	}

	calendar, err := caldav.NewClient(cfg.CalDAVServerURL, cfg.CalDAVUsername, cfg.CalDAVPassword, cfg.CalDAVHomePath, cfg.CalendarName, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create CalDAV client")
	}

	notifier := mailer.New(cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.Username, cfg.SMTP.Password, cfg.SMTP.From, cfg.SMTP.To, logger)
	if !notifier.Enabled() {
		logger.Info().Msg("email side channel not configured, notifications disabled")
	}

	gate := dedup.NewGate(time.Duration(cfg.DedupWindowMinutes) * time.Minute)
	syncer := sync.NewSyncer(bookings, calendar, gate, notifier, cfg.NotifyOnUpdates, logger)
	handler := webhook.NewHandler(syncer, cfg.AckAlways(), logger)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	handler.Routes(r)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())

	server := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", cfg.ListenAddr).Msg("listening for booking notifications")
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server failed")
		}
	case <-ctx.Done():
		logger.Info().Msg("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("shutdown failed")
		}
	}
}
