// Package email delivers notification mail over SMTP.
package email

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"fretops/internal/domain/notification"
)

// Config holds SMTP settings.
type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// Compile-time check.
var _ notification.EmailSender = (*SMTPSender)(nil)

// SMTPSender sends plain-text mail. Delivery is best-effort by contract:
// the fan-out logs failures and moves on.
type SMTPSender struct {
	config Config
}

// NewSMTPSender creates the sender.
func NewSMTPSender(config Config) *SMTPSender {
	return &SMTPSender{config: config}
}

// Send implements notification.EmailSender.
func (s *SMTPSender) Send(ctx context.Context, to, subject, body string) error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	var auth smtp.Auth
	if s.config.Username != "" {
		auth = smtp.PlainAuth("", s.config.Username, s.config.Password, s.config.Host)
	}

	var msg strings.Builder
	fmt.Fprintf(&msg, "From: %s\r\n", s.config.From)
	fmt.Fprintf(&msg, "To: %s\r\n", to)
	fmt.Fprintf(&msg, "Subject: %s\r\n", subject)
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString("Content-Type: text/plain; charset=utf-8\r\n")
	msg.WriteString("\r\n")
	msg.WriteString(body)
	msg.WriteString("\r\n")

	if err := smtp.SendMail(addr, auth, s.config.From, []string{to}, []byte(msg.String())); err != nil {
		return fmt.Errorf("send mail to %s: %w", to, err)
	}
	return nil
}
