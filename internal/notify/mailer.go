package notify

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"go.uber.org/zap"
)

// Mailer delivers one rendered message. Implementations must be safe for
// concurrent use by the dispatcher.
type Mailer interface {
	Send(ctx context.Context, recipient, subject, htmlBody string) error
}

// SMTPMailer delivers through a plain SMTP relay.
type SMTPMailer struct {
	Addr string // host:port
	From string
	Auth smtp.Auth
}

func (m *SMTPMailer) Send(_ context.Context, recipient, subject, htmlBody string) error {
	var msg strings.Builder
	fmt.Fprintf(&msg, "From: %s\r\n", m.From)
	fmt.Fprintf(&msg, "To: %s\r\n", recipient)
	fmt.Fprintf(&msg, "Subject: %s\r\n", subject)
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n")
	msg.WriteString("\r\n")
	msg.WriteString(htmlBody)
	return smtp.SendMail(m.Addr, m.Auth, m.From, []string{recipient}, []byte(msg.String()))
}

// LogMailer logs instead of delivering. Dev default.
type LogMailer struct{ Log *zap.Logger }

func (m *LogMailer) Send(_ context.Context, recipient, subject, _ string) error {
	m.Log.Info("mail (not delivered, log mailer)",
		zap.String("recipient", recipient), zap.String("subject", subject))
	return nil
}
