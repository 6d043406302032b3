package mailer

import (
	"context"
	"encoding/base64"
	"errors"
	"net/smtp"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

type capturedMail struct {
	addr string
	from string
	to   []string
	msg  string
}

func newCapturingMailer(host string, to []string) (*Mailer, *capturedMail) {
	m := New(host, 0, "alice", "secret", "bot@example.com", to, zerolog.Nop())
	captured := &capturedMail{}
	m.send = func(addr string, _ smtp.Auth, from string, to []string, msg []byte) error {
		captured.addr = addr
		captured.from = from
		captured.to = to
		captured.msg = string(msg)
		return nil
	}
	return m, captured
}

func TestMailer_DisabledIsNoOp(t *testing.T) {
	tests := []struct {
		name string
		m    *Mailer
	}{
		{"no host", New("", 0, "", "", "bot@example.com", []string{"ops@example.com"}, zerolog.Nop())},
		{"no recipients", New("smtp.example.com", 0, "", "", "bot@example.com", nil, zerolog.Nop())},
		{"no sender", New("smtp.example.com", 0, "", "", "", []string{"ops@example.com"}, zerolog.Nop())},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.m.Enabled() {
				t.Error("mailer should be disabled")
			}
			tt.m.send = func(string, smtp.Auth, string, []string, []byte) error {
				t.Error("disabled mailer must not send")
				return nil
			}
			if err := tt.m.Send(context.Background(), "s", "b", nil); err != nil {
				t.Errorf("disabled Send() should be a silent no-op, got %v", err)
			}
		})
	}
}

func TestMailer_DefaultPort(t *testing.T) {
	m, captured := newCapturingMailer("smtp.example.com", []string{"ops@example.com"})

	if !m.Enabled() {
		t.Fatal("mailer should be enabled")
	}
	if err := m.Send(context.Background(), "s", "b", nil); err != nil {
		t.Fatalf("Send() returned an error: %v", err)
	}
	if captured.addr != "smtp.example.com:587" {
		t.Errorf("addr = %q, want the default submission port", captured.addr)
	}
}

func TestMailer_PlainTextMessage(t *testing.T) {
	m, captured := newCapturingMailer("smtp.example.com", []string{"ops@example.com", "oncall@example.com"})

	err := m.Send(context.Background(), "Booking confirmed: Ann Lee", "See you there.", nil)
	if err != nil {
		t.Fatalf("Send() returned an error: %v", err)
	}

	if captured.from != "bot@example.com" {
		t.Errorf("from = %q", captured.from)
	}
	if len(captured.to) != 2 {
		t.Errorf("to = %v", captured.to)
	}
	for _, want := range []string{
		"From: bot@example.com\r\n",
		"To: ops@example.com, oncall@example.com\r\n",
		"Subject: Booking confirmed: Ann Lee\r\n",
		"Content-Type: text/plain; charset=utf-8\r\n",
		"See you there.",
	} {
		if !strings.Contains(captured.msg, want) {
			t.Errorf("message missing %q:\n%s", want, captured.msg)
		}
	}
	if strings.Contains(captured.msg, "multipart") {
		t.Error("message without attachment should not be multipart")
	}
}

func TestMailer_CalendarAttachment(t *testing.T) {
	m, captured := newCapturingMailer("smtp.example.com", []string{"ops@example.com"})

	doc := "BEGIN:VCALENDAR\r\nEND:VCALENDAR\r\n"
	if err := m.Send(context.Background(), "s", "b", []byte(doc)); err != nil {
		t.Fatalf("Send() returned an error: %v", err)
	}

	for _, want := range []string{
		"Content-Type: multipart/mixed;",
		"Content-Type: text/calendar; method=PUBLISH; charset=utf-8\r\n",
		"Content-Disposition: attachment; filename=invite.ics\r\n",
		"Content-Transfer-Encoding: base64\r\n",
		base64.StdEncoding.EncodeToString([]byte(doc)),
	} {
		if !strings.Contains(captured.msg, want) {
			t.Errorf("message missing %q:\n%s", want, captured.msg)
		}
	}
}

func TestMailer_SendFailureIsWrapped(t *testing.T) {
	m, _ := newCapturingMailer("smtp.example.com", []string{"ops@example.com"})
	sentinel := errors.New("connection refused")
	m.send = func(string, smtp.Auth, string, []string, []byte) error { return sentinel }

	err := m.Send(context.Background(), "s", "b", nil)
	if !errors.Is(err, sentinel) {
		t.Errorf("Send() = %v, want wrapped sentinel", err)
	}
}

func TestMailer_CancelledContext(t *testing.T) {
	m, _ := newCapturingMailer("smtp.example.com", []string{"ops@example.com"})
	m.send = func(string, smtp.Auth, string, []string, []byte) error {
		t.Error("send must not be called with a cancelled context")
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := m.Send(ctx, "s", "b", nil); err == nil {
		t.Error("Send() should report the cancelled context")
	}
}
