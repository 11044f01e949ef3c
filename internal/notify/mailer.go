package notify

import (
	"context"
	"fmt"
	"mime"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"travel/internal/config"
)

// Message is a rendered plain-text email.
type Message struct {
	To      string
	Subject string
	Body    string
}

// Mailer delivers a rendered email.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// NewMailer picks the backend configured by EMAIL_BACKEND.
func NewMailer(cfg config.EmailConfig, logger *zap.Logger) Mailer {
	if cfg.Backend == config.EmailBackendSMTP {
		return NewSMTPMailer(cfg)
	}
	return NewConsoleMailer(cfg.From, logger)
}

// ConsoleMailer writes emails to the log instead of sending them.
type ConsoleMailer struct {
	from   string
	logger *zap.Logger
}

// NewConsoleMailer creates a log-only mailer.
func NewConsoleMailer(from string, logger *zap.Logger) *ConsoleMailer {
	return &ConsoleMailer{from: from, logger: logger}
}

// Send logs the message.
func (m *ConsoleMailer) Send(ctx context.Context, msg Message) error {
	m.logger.Info("email",
		zap.String("from", m.from),
		zap.String("to", msg.To),
		zap.String("subject", msg.Subject),
		zap.String("body", msg.Body),
	)
	return nil
}

// SMTPMailer sends mail through an SMTP relay with PLAIN auth over STARTTLS.
type SMTPMailer struct {
	addr     string
	host     string
	from     string
	auth     smtp.Auth
	sendMail func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// NewSMTPMailer creates a mailer for the configured relay.
func NewSMTPMailer(cfg config.EmailConfig) *SMTPMailer {
	var auth smtp.Auth
	if cfg.Username != "" {
		auth = smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)
	}

	return &SMTPMailer{
		addr:     net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		host:     cfg.Host,
		from:     cfg.From,
		auth:     auth,
		sendMail: smtp.SendMail,
	}
}

// Send delivers msg. The context is checked before dialing; net/smtp has no
// per-call cancellation.
func (m *SMTPMailer) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	envelopeFrom := addressOnly(m.from)
	if err := m.sendMail(m.addr, m.auth, envelopeFrom, []string{msg.To}, m.compose(msg)); err != nil {
		return fmt.Errorf("smtp send to %s: %w", msg.To, err)
	}
	return nil
}

func (m *SMTPMailer) compose(msg Message) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", headerValue(m.from))
	fmt.Fprintf(&b, "To: %s\r\n", headerValue(msg.To))
	fmt.Fprintf(&b, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", msg.Subject))
	fmt.Fprintf(&b, "Date: %s\r\n", time.Now().Format(time.RFC1123Z))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=\"utf-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString(strings.ReplaceAll(msg.Body, "\n", "\r\n"))
	return []byte(b.String())
}

// headerValue drops line breaks so a value cannot start a new header.
func headerValue(v string) string {
	return strings.Map(func(r rune) rune {
		if r == '\r' || r == '\n' {
			return -1
		}
		return r
	}, v)
}

// addressOnly strips a display name: "Name <a@b>" becomes "a@b".
func addressOnly(from string) string {
	if start := strings.LastIndex(from, "<"); start >= 0 {
		if end := strings.LastIndex(from, ">"); end > start {
			return from[start+1 : end]
		}
	}
	return strings.TrimSpace(from)
}
