// Package mailer is the optional email side channel. A mailer without
// an SMTP host or recipients is a no-op, never an error: notification
// mail is best-effort by contract.
package mailer

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Mailer sends plain-text notification mail, optionally with an
// iCalendar attachment.
type Mailer struct {
	addr     string // host:port, empty disables the mailer
	host     string
	username string
	password string
	from     string
	to       []string
	send     func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
	log      zerolog.Logger
}

// New creates a mailer. When host is empty or there are no recipients
// the mailer is disabled and Send always succeeds without doing
// anything.
func New(host string, port int, username, password, from string, to []string, logger zerolog.Logger) *Mailer {
	m := &Mailer{
		host:     host,
		username: username,
		password: password,
		from:     from,
		to:       to,
		send:     smtp.SendMail,
		log:      logger.With().Str("component", "mailer").Logger(),
	}
	if host != "" && len(to) > 0 && from != "" {
		if port == 0 {
			port = 587
		}
		m.addr = fmt.Sprintf("%s:%d", host, port)
	}
	return m
}

// Enabled reports whether the mailer is configured to actually send.
func (m *Mailer) Enabled() bool {
	return m != nil && m.addr != ""
}

// Send delivers one message. attachment, when non-nil, is attached as
// a text/calendar part named invite.ics.
func (m *Mailer) Send(ctx context.Context, subject, body string, attachment []byte) error {
	if !m.Enabled() {
		m.log.Debug().Str("subject", subject).Msg("mailer not configured, skipping notification")
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	var auth smtp.Auth
	if m.username != "" {
		auth = smtp.PlainAuth("", m.username, m.password, m.host)
	}

	msg := m.buildMessage(subject, body, attachment)
	if err := m.send(m.addr, auth, m.from, m.to, msg); err != nil {
		return fmt.Errorf("failed to send notification mail: %w", err)
	}
	m.log.Debug().Str("subject", subject).Int("recipients", len(m.to)).Msg("notification mail sent")
	return nil
}

func (m *Mailer) buildMessage(subject, body string, attachment []byte) []byte {
	var b strings.Builder
	boundary := "calendar-push-" + uuid.NewString()

	fmt.Fprintf(&b, "From: %s\r\n", m.from)
	fmt.Fprintf(&b, "To: %s\r\n", strings.Join(m.to, ", "))
	fmt.Fprintf(&b, "Subject: %s\r\n", subject)
	fmt.Fprintf(&b, "Message-ID: <%s@calendar-push>\r\n", uuid.NewString())
	b.WriteString("MIME-Version: 1.0\r\n")

	if attachment == nil {
		b.WriteString("Content-Type: text/plain; charset=utf-8\r\n\r\n")
		b.WriteString(body)
		b.WriteString("\r\n")
		return []byte(b.String())
	}

	fmt.Fprintf(&b, "Content-Type: multipart/mixed; boundary=%q\r\n\r\n", boundary)

	fmt.Fprintf(&b, "--%s\r\n", boundary)
	b.WriteString("Content-Type: text/plain; charset=utf-8\r\n\r\n")
	b.WriteString(body)
	b.WriteString("\r\n")

	fmt.Fprintf(&b, "--%s\r\n", boundary)
	b.WriteString("Content-Type: text/calendar; method=PUBLISH; charset=utf-8\r\n")
	b.WriteString("Content-Disposition: attachment; filename=invite.ics\r\n")
	b.WriteString("Content-Transfer-Encoding: base64\r\n\r\n")
	b.WriteString(base64.StdEncoding.EncodeToString(attachment))
	b.WriteString("\r\n")

	fmt.Fprintf(&b, "--%s--\r\n", boundary)
	return []byte(b.String())
}
