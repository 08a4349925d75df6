package smtp

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"testing"
	"time"

	"github.com/keyxmakerx/juken/internal/apperror"
	"github.com/keyxmakerx/juken/internal/config"
)

func TestSettingsFromConfig_Defaults(t *testing.T) {
	s := SettingsFromConfig(config.SMTPConfig{Host: "mail.test"})
	if s.Port != 587 {
		t.Errorf("port = %d, want 587", s.Port)
	}
	if s.Encryption != EncryptionSTARTTLS {
		t.Errorf("encryption = %q, want starttls", s.Encryption)
	}
}

func TestIsConfigured(t *testing.T) {
	ctx := context.Background()
	if NewSMTPService(Settings{}).IsConfigured(ctx) {
		t.Error("empty host should not be configured")
	}
	if !NewSMTPService(Settings{Host: "mail.test"}).IsConfigured(ctx) {
		t.Error("host set should be configured")
	}
}

func TestSendMail_NotConfigured(t *testing.T) {
	err := NewSMTPService(Settings{}).SendMail(context.Background(), []string{"a@b.test"}, "s", "b")
	if apperror.SafeCode(err) != 400 {
		t.Fatalf("expected 400 AppError, got %v", err)
	}
}

func TestBuildMessage(t *testing.T) {
	from := mail.Address{Name: "Juken", Address: "no-reply@juken.test"}
	now := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)

	msg, err := buildMessage(from, []string{"taro@example.com"}, "Reset your password", "line1\nline2", now)
	if err != nil {
		t.Fatalf("buildMessage: %v", err)
	}
	for _, want := range []string{
		"From: \"Juken\" <no-reply@juken.test>\r\n",
		"To: taro@example.com\r\n",
		"Subject: Reset your password\r\n",
		"Date: Wed, 01 Apr 2026 09:00:00 +0000\r\n",
		"\r\n\r\nline1\r\nline2",
	} {
		if !strings.Contains(msg, want) {
			t.Errorf("message missing %q:\n%s", want, msg)
		}
	}
}

func TestBuildMessage_EncodesNonASCIISubject(t *testing.T) {
	msg, err := buildMessage(mail.Address{Address: "a@b.test"}, []string{"c@d.test"}, "パスワード再設定", "", time.Now())
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(msg, "Subject: =?UTF-8?q?") {
		t.Errorf("expected Q-encoded subject, got:\n%s", msg)
	}
}

func TestBuildMessage_RejectsHeaderInjection(t *testing.T) {
	_, err := buildMessage(mail.Address{Address: "a@b.test"}, []string{"c@d.test"}, "hi\r\nBcc: x@evil.test", "", time.Now())
	if !errors.Is(err, errHeaderInjection) {
		t.Fatalf("expected header injection error, got %v", err)
	}
}
