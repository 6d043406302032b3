// Package config loads service configuration with the precedence
// flags > environment variables > config file > defaults.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// SMTPConfig configures the optional email side channel. An empty
// host disables it; the service then runs without notification mail.
type SMTPConfig struct {
	Host     string   `json:"host,omitempty"`
	Port     int      `json:"port,omitempty"`
	From     string   `json:"from,omitempty"`
	To       []string `json:"to,omitempty"`
	Username string   `json:"username,omitempty"`
	Password string   `json:"password,omitempty"`
}

// Config holds the configuration for the calendar push service.
type Config struct {
	ListenAddr string `json:"listen_addr,omitempty"`
	LogLevel   string `json:"log_level,omitempty"`

	BookingAPIURL   string `json:"booking_api_url,omitempty"`
	BookingAPIToken string `json:"booking_api_token,omitempty"`

	CalDAVServerURL string `json:"caldav_server_url,omitempty"`
	CalDAVUsername  string `json:"caldav_username,omitempty"`
	CalDAVPassword  string `json:"caldav_password,omitempty"`
	CalDAVHomePath  string `json:"caldav_home_path,omitempty"`
	CalendarName    string `json:"calendar_name,omitempty"`

	DedupWindowMinutes int  `json:"dedup_window_minutes,omitempty"`
	NotifyOnUpdates    bool `json:"notify_on_updates,omitempty"`

	// AlwaysAcknowledge controls whether the webhook sender is told
	// "accepted" even when processing failed. Defaults to true so the
	// upstream never enters a retry storm; set to false in
	// environments that want upstream retries instead.
	AlwaysAcknowledge *bool `json:"always_acknowledge,omitempty"`

	SMTP SMTPConfig `json:"smtp,omitempty"`
}

// AckAlways resolves the acknowledgement policy with its default.
func (c *Config) AckAlways() bool {
	return c.AlwaysAcknowledge == nil || *c.AlwaysAcknowledge
}

// LoadConfigFromFile loads configuration from a JSON file.
func LoadConfigFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := json.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return &config, nil
}

// LoadConfig loads configuration with the following precedence
// (highest to lowest):
// 1. Command-line flags
// 2. Environment variables
// 3. Config file
// 4. Defaults
// Returns an error if any required value is missing.
func LoadConfig(configFile string, listenFlag, bookingAPIURLFlag, caldavURLFlag, calendarNameFlag string) (*Config, error) {
	var config Config

	// Step 1: Load from config file if provided
	if configFile != "" {
		fileConfig, err := LoadConfigFromFile(configFile)
		if err != nil {
			return nil, err
		}
		config = *fileConfig
	}

	// Step 2: Override with environment variables
	if v := os.Getenv("LISTEN_ADDR"); v != "" {
		config.ListenAddr = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		config.LogLevel = v
	}
	if v := os.Getenv("BOOKING_API_URL"); v != "" {
		config.BookingAPIURL = v
	}
	if v := os.Getenv("BOOKING_API_TOKEN"); v != "" {
		config.BookingAPIToken = v
	}
	if v := os.Getenv("CALDAV_SERVER_URL"); v != "" {
		config.CalDAVServerURL = v
	}
	if v := os.Getenv("CALDAV_USERNAME"); v != "" {
		config.CalDAVUsername = v
	}
	if v := os.Getenv("CALDAV_PASSWORD"); v != "" {
		config.CalDAVPassword = v
	}
	if v := os.Getenv("CALDAV_HOME_PATH"); v != "" {
		config.CalDAVHomePath = v
	}
	if v := os.Getenv("CALENDAR_NAME"); v != "" {
		config.CalendarName = v
	}
	if v := os.Getenv("DEDUP_WINDOW_MINUTES"); v != "" {
		minutes, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid DEDUP_WINDOW_MINUTES value: %w", err)
		}
		config.DedupWindowMinutes = minutes
	}
	if v := os.Getenv("NOTIFY_ON_UPDATES"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("invalid NOTIFY_ON_UPDATES value: %w", err)
		}
		config.NotifyOnUpdates = b
	}
	if v := os.Getenv("ALWAYS_ACKNOWLEDGE"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("invalid ALWAYS_ACKNOWLEDGE value: %w", err)
		}
		config.AlwaysAcknowledge = &b
	}
	if v := os.Getenv("SMTP_HOST"); v != "" {
		config.SMTP.Host = v
	}
	if v := os.Getenv("SMTP_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid SMTP_PORT value: %w", err)
		}
		config.SMTP.Port = port
	}
	if v := os.Getenv("SMTP_FROM"); v != "" {
		config.SMTP.From = v
	}
	if v := os.Getenv("SMTP_TO"); v != "" {
		config.SMTP.To = splitAndTrim(v)
	}
	if v := os.Getenv("SMTP_USERNAME"); v != "" {
		config.SMTP.Username = v
	}
	if v := os.Getenv("SMTP_PASSWORD"); v != "" {
		config.SMTP.Password = v
	}

	// Step 3: Override with command-line flags (highest priority)
	if listenFlag != "" {
		config.ListenAddr = listenFlag
	}
	if bookingAPIURLFlag != "" {
		config.BookingAPIURL = bookingAPIURLFlag
	}
	if caldavURLFlag != "" {
		config.CalDAVServerURL = caldavURLFlag
	}
	if calendarNameFlag != "" {
		config.CalendarName = calendarNameFlag
	}

	// Step 4: Apply defaults and validate required fields
	if config.BookingAPIURL == "" {
		return nil, fmt.Errorf("booking_api_url must be provided via --booking-api-url flag, BOOKING_API_URL environment variable, or config file")
	}
	if config.CalDAVServerURL == "" {
		return nil, fmt.Errorf("caldav_server_url must be provided via --caldav-url flag, CALDAV_SERVER_URL environment variable, or config file")
	}
	if config.CalDAVUsername == "" {
		return nil, fmt.Errorf("caldav_username must be provided via CALDAV_USERNAME environment variable or config file")
	}
	if config.CalDAVPassword == "" {
		return nil, fmt.Errorf("caldav_password must be provided via CALDAV_PASSWORD environment variable or config file")
	}

	if config.ListenAddr == "" {
		config.ListenAddr = ":8080"
	}
	if config.CalendarName == "" {
		config.CalendarName = "Bookings"
	}
	if config.DedupWindowMinutes <= 0 {
		config.DedupWindowMinutes = 10
	}

	return &config, nil
}

func splitAndTrim(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
