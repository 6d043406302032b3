package config

import (
	"os"
	"path/filepath"
	"testing"
)

func setRequiredEnv(t *testing.T) {
	t.Setenv("BOOKING_API_URL", "https://bookings.example.com")
	t.Setenv("CALDAV_SERVER_URL", "https://caldav.example.com")
	t.Setenv("CALDAV_USERNAME", "alice")
	t.Setenv("CALDAV_PASSWORD", "secret")
}

func TestLoadConfig(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("BOOKING_API_TOKEN", "tok")
	t.Setenv("CALENDAR_NAME", "Appointments")
	t.Setenv("DEDUP_WINDOW_MINUTES", "15")
	t.Setenv("NOTIFY_ON_UPDATES", "true")

	config, err := LoadConfig("", "", "", "", "")
	if err != nil {
		t.Fatalf("LoadConfig() returned an error: %v", err)
	}

	if config.BookingAPIURL != "https://bookings.example.com" {
		t.Errorf("Expected BookingAPIURL to be 'https://bookings.example.com', got '%s'", config.BookingAPIURL)
	}
	if config.BookingAPIToken != "tok" {
		t.Errorf("Expected BookingAPIToken to be 'tok', got '%s'", config.BookingAPIToken)
	}
	if config.CalDAVUsername != "alice" || config.CalDAVPassword != "secret" {
		t.Errorf("Unexpected CalDAV credentials: %s/%s", config.CalDAVUsername, config.CalDAVPassword)
	}
	if config.CalendarName != "Appointments" {
		t.Errorf("Expected CalendarName to be 'Appointments', got '%s'", config.CalendarName)
	}
	if config.DedupWindowMinutes != 15 {
		t.Errorf("Expected DedupWindowMinutes to be 15, got %d", config.DedupWindowMinutes)
	}
	if !config.NotifyOnUpdates {
		t.Error("Expected NotifyOnUpdates to be true")
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	setRequiredEnv(t)

	config, err := LoadConfig("", "", "", "", "")
	if err != nil {
		t.Fatalf("LoadConfig() returned an error: %v", err)
	}

	if config.ListenAddr != ":8080" {
		t.Errorf("Expected ListenAddr default ':8080', got '%s'", config.ListenAddr)
	}
	if config.CalendarName != "Bookings" {
		t.Errorf("Expected CalendarName default 'Bookings', got '%s'", config.CalendarName)
	}
	if config.DedupWindowMinutes != 10 {
		t.Errorf("Expected DedupWindowMinutes default 10, got %d", config.DedupWindowMinutes)
	}
	if !config.AckAlways() {
		t.Error("Expected acknowledgement policy to default to always-acknowledge")
	}
	if config.NotifyOnUpdates {
		t.Error("Expected NotifyOnUpdates to default to false")
	}
}

func TestLoadConfig_CommandLineFlags(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("LISTEN_ADDR", ":9999")
	t.Setenv("CALENDAR_NAME", "FromEnv")

	config, err := LoadConfig("", ":7777", "https://flags.example.com", "https://flagdav.example.com", "FromFlag")
	if err != nil {
		t.Fatalf("LoadConfig() returned an error: %v", err)
	}

	if config.ListenAddr != ":7777" {
		t.Errorf("Expected flag to override env, got ListenAddr '%s'", config.ListenAddr)
	}
	if config.BookingAPIURL != "https://flags.example.com" {
		t.Errorf("Expected flag to override env, got BookingAPIURL '%s'", config.BookingAPIURL)
	}
	if config.CalDAVServerURL != "https://flagdav.example.com" {
		t.Errorf("Expected flag to override env, got CalDAVServerURL '%s'", config.CalDAVServerURL)
	}
	if config.CalendarName != "FromFlag" {
		t.Errorf("Expected flag to override env, got CalendarName '%s'", config.CalendarName)
	}
}

func TestLoadConfig_FromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	content := `{
		"listen_addr": ":9090",
		"booking_api_url": "https://file.example.com",
		"caldav_server_url": "https://filedav.example.com",
		"caldav_username": "filealice",
		"caldav_password": "filesecret",
		"calendar_name": "FromFile",
		"always_acknowledge": false,
		"smtp": {"host": "smtp.example.com", "from": "bot@example.com", "to": ["ops@example.com"]}
	}`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	config, err := LoadConfig(path, "", "", "", "")
	if err != nil {
		t.Fatalf("LoadConfig() returned an error: %v", err)
	}

	if config.ListenAddr != ":9090" {
		t.Errorf("Expected ListenAddr ':9090', got '%s'", config.ListenAddr)
	}
	if config.CalendarName != "FromFile" {
		t.Errorf("Expected CalendarName 'FromFile', got '%s'", config.CalendarName)
	}
	if config.AckAlways() {
		t.Error("Expected always_acknowledge=false from file to be honored")
	}
	if config.SMTP.Host != "smtp.example.com" || len(config.SMTP.To) != 1 {
		t.Errorf("Unexpected SMTP config: %+v", config.SMTP)
	}
}

func TestLoadConfig_EnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	content := `{
		"booking_api_url": "https://file.example.com",
		"caldav_server_url": "https://filedav.example.com",
		"caldav_username": "filealice",
		"caldav_password": "filesecret",
		"calendar_name": "FromFile"
	}`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	t.Setenv("CALENDAR_NAME", "FromEnv")
	t.Setenv("CALDAV_USERNAME", "envalice")

	config, err := LoadConfig(path, "", "", "", "")
	if err != nil {
		t.Fatalf("LoadConfig() returned an error: %v", err)
	}

	if config.CalendarName != "FromEnv" {
		t.Errorf("Expected env to override file, got CalendarName '%s'", config.CalendarName)
	}
	if config.CalDAVUsername != "envalice" {
		t.Errorf("Expected env to override file, got CalDAVUsername '%s'", config.CalDAVUsername)
	}
	if config.CalDAVPassword != "filesecret" {
		t.Errorf("Expected file value to survive where no env is set, got '%s'", config.CalDAVPassword)
	}
}

func TestLoadConfig_MissingRequired(t *testing.T) {
	tests := []struct {
		name string
		skip string
	}{
		{"missing booking api url", "BOOKING_API_URL"},
		{"missing caldav server url", "CALDAV_SERVER_URL"},
		{"missing caldav username", "CALDAV_USERNAME"},
		{"missing caldav password", "CALDAV_PASSWORD"},
	}

	all := map[string]string{
		"BOOKING_API_URL":   "https://bookings.example.com",
		"CALDAV_SERVER_URL": "https://caldav.example.com",
		"CALDAV_USERNAME":   "alice",
		"CALDAV_PASSWORD":   "secret",
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range all {
				if k == tt.skip {
					t.Setenv(k, "")
					continue
				}
				t.Setenv(k, v)
			}
			if _, err := LoadConfig("", "", "", "", ""); err == nil {
				t.Errorf("Expected an error when %s is missing", tt.skip)
			}
		})
	}
}

func TestLoadConfig_InvalidValues(t *testing.T) {
	setRequiredEnv(t)

	t.Setenv("DEDUP_WINDOW_MINUTES", "not-a-number")
	if _, err := LoadConfig("", "", "", "", ""); err == nil {
		t.Error("Expected an error for a non-numeric dedup window")
	}
	t.Setenv("DEDUP_WINDOW_MINUTES", "")

	t.Setenv("ALWAYS_ACKNOWLEDGE", "maybe")
	if _, err := LoadConfig("", "", "", "", ""); err == nil {
		t.Error("Expected an error for a non-boolean acknowledgement policy")
	}
}

func TestLoadConfig_SMTPRecipientList(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("SMTP_TO", "ops@example.com, oncall@example.com ,, ")

	config, err := LoadConfig("", "", "", "", "")
	if err != nil {
		t.Fatalf("LoadConfig() returned an error: %v", err)
	}

	want := []string{"ops@example.com", "oncall@example.com"}
	if len(config.SMTP.To) != len(want) {
		t.Fatalf("Expected %d recipients, got %v", len(want), config.SMTP.To)
	}
	for i := range want {
		if config.SMTP.To[i] != want[i] {
			t.Errorf("Recipient %d = '%s', want '%s'", i, config.SMTP.To[i], want[i])
		}
	}
}

func TestLoadConfigFromFile_Missing(t *testing.T) {
	if _, err := LoadConfigFromFile(filepath.Join(t.TempDir(), "nope.json")); err == nil {
		t.Error("Expected an error for a missing config file")
	}
}
