package smtp

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"net"
	"net/mail"
	gosmtp "net/smtp"
	"strings"
	"time"

	"github.com/keyxmakerx/juken/internal/apperror"
)

// MailService is the interface other plugins use to send email. Auth uses
// it for recovery and confirmation links.
type MailService interface {
	SendMail(ctx context.Context, to []string, subject, body string) error
	IsConfigured(ctx context.Context) bool
}

// errHeaderInjection rejects header values carrying line breaks.
var errHeaderInjection = errors.New("header value contains a line break")

const dialTimeout = 10 * time.Second

// smtpService implements MailService over net/smtp.
type smtpService struct {
	settings Settings
	now      func() time.Time
}

// NewSMTPService creates a new SMTP service.
func NewSMTPService(settings Settings) MailService {
	return &smtpService{settings: settings, now: time.Now}
}

// IsConfigured returns true if a host is configured.
func (s *smtpService) IsConfigured(_ context.Context) bool {
	return s.settings.Host != ""
}

// SendMail sends a plain-text email. The context bounds the whole exchange.
func (s *smtpService) SendMail(ctx context.Context, to []string, subject, body string) error {
	if !s.IsConfigured(ctx) {
		return apperror.NewBadRequest("SMTP is not configured")
	}
	if len(to) == 0 {
		return apperror.NewBadRequest("no recipients")
	}

	// Build the message before dialing so a bad header costs no connection.
	from := mail.Address{Name: s.settings.FromName, Address: s.settings.From}
	msg, err := buildMessage(from, to, subject, body, s.now())
	if err != nil {
		return apperror.NewBadRequest(err.Error())
	}

	addr := net.JoinHostPort(s.settings.Host, fmt.Sprint(s.settings.Port))
	conn, err := s.dial(ctx, addr)
	if err != nil {
		return fmt.Errorf("connecting to %s: %w", addr, err)
	}
	defer conn.Close()

	// net/smtp has no context support; the deadline covers every command.
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	client, err := gosmtp.NewClient(conn, s.settings.Host)
	if err != nil {
		return fmt.Errorf("creating smtp client: %w", err)
	}
	defer client.Close()

	// Upgrade before AUTH so credentials never cross in plain text.
	if s.settings.Encryption == EncryptionSTARTTLS {
		if err := client.StartTLS(s.tlsConfig()); err != nil {
			return fmt.Errorf("starting TLS: %w", err)
		}
	}

	if s.settings.Username != "" {
		auth := gosmtp.PlainAuth("", s.settings.Username, s.settings.Password, s.settings.Host)
		if err := client.Auth(auth); err != nil {
			return fmt.Errorf("authenticating: %w", err)
		}
	}

	if err := sendMessage(client, from.Address, to, msg); err != nil {
		return err
	}

	// Count and subject only; the body holds one-time links.
	slog.Debug("mail sent", slog.Int("recipients", len(to)), slog.String("subject", subject))
	return nil
}

// dial opens a TCP or implicit-TLS connection depending on the mode.
func (s *smtpService) dial(ctx context.Context, addr string) (net.Conn, error) {
	d := &net.Dialer{Timeout: dialTimeout}
	if s.settings.Encryption == EncryptionSSL {
		td := &tls.Dialer{NetDialer: d, Config: s.tlsConfig()}
		return td.DialContext(ctx, "tcp", addr)
	}
	return d.DialContext(ctx, "tcp", addr)
}

func (s *smtpService) tlsConfig() *tls.Config {
	return &tls.Config{ServerName: s.settings.Host, MinVersion: tls.VersionTLS12}
}

// buildMessage renders an RFC 5322 plain-text message.
func buildMessage(from mail.Address, to []string, subject, body string, now time.Time) (string, error) {
	for _, v := range append([]string{subject}, to...) {
		if strings.ContainsAny(v, "\r\n") {
			return "", errHeaderInjection
		}
	}

	// Headers, blank line, then the body with CRLF line endings.
	var msg strings.Builder
	fmt.Fprintf(&msg, "From: %s\r\n", from.String())
	fmt.Fprintf(&msg, "To: %s\r\n", strings.Join(to, ", "))
	fmt.Fprintf(&msg, "Subject: %s\r\n", mimeSubject(subject))
	fmt.Fprintf(&msg, "Date: %s\r\n", now.UTC().Format(time.RFC1123Z))
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	msg.WriteString("\r\n")
	msg.WriteString(strings.ReplaceAll(strings.ReplaceAll(body, "\r\n", "\n"), "\n", "\r\n"))
	return msg.String(), nil
}

// mimeSubject Q-encodes non-ASCII subjects.
func mimeSubject(subject string) string {
	for _, r := range subject {
		if r > 127 {
			return mime.QEncoding.Encode("UTF-8", subject)
		}
	}
	return subject
}

// sendMessage handles MAIL FROM, RCPT TO, DATA for an existing SMTP client.
func sendMessage(client *gosmtp.Client, from string, to []string, msg string) error {
	if err := client.Mail(from); err != nil {
		return fmt.Errorf("MAIL FROM: %w", err)
	}
	for _, recipient := range to {
		if err := client.Rcpt(recipient); err != nil {
			return fmt.Errorf("RCPT TO: %w", err)
		}
	}
	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("DATA: %w", err)
	}
	if _, err := w.Write([]byte(msg)); err != nil {
		return fmt.Errorf("writing message: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("closing data: %w", err)
	}
	return client.Quit()
}
