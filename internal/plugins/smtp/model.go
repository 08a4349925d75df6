// Package smtp sends transactional email (password recovery and sign-up
// confirmation links). Settings come from the environment via config; mail
// is disabled when no host is configured.
package smtp

import (
	"github.com/keyxmakerx/juken/internal/config"
)

// Encryption modes for the SMTP connection.
const (
	EncryptionSTARTTLS = "starttls"
	EncryptionSSL      = "ssl"
	EncryptionNone     = "none"
)

// Settings holds the resolved SMTP configuration.
type Settings struct {
	Host       string
	Port       int
	Username   string
	Password   string
	From       string
	FromName   string
	Encryption string
}

// SettingsFromConfig converts the environment configuration.
func SettingsFromConfig(c config.SMTPConfig) Settings {
	s := Settings{
		Host:       c.Host,
		Port:       c.Port,
		Username:   c.Username,
		Password:   c.Password,
		From:       c.From,
		FromName:   c.FromName,
		Encryption: c.Encryption,
	}
	if s.Port <= 0 {
		s.Port = 587
	}
	if s.Encryption == "" {
		s.Encryption = EncryptionSTARTTLS
	}
	return s
}

// Mail represents an email message to be sent.
type Mail struct {
	To      []string
	Subject string
	Body    string
}
