// Package config loads application configuration from environment
// variables. All config is centralized here so no other package reads env
// vars directly. Sensible defaults are provided for development, and a .env
// file in the working directory is honoured when present.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-sql-driver/mysql"
	"github.com/joho/godotenv"
)

// Config holds all application configuration. Populated from environment
// variables at startup and passed to other packages via dependency injection.
type Config struct {
	// Env is the runtime environment: "development" or "production".
	Env string `env:"ENV" envDefault:"development"`

	// Port is the HTTP listen port.
	Port int `env:"PORT" envDefault:"8080"`

	// BaseURL is the public-facing URL of the web app, used in invitation
	// links and password reset redirects.
	BaseURL string `env:"BASE_URL" envDefault:"http://localhost:5173"`

	// LogLevel controls log verbosity: "debug", "info", "warn", "error".
	LogLevel string `env:"LOG_LEVEL" envDefault:"debug"`

	// MigrationsPath is the directory holding golang-migrate SQL files.
	MigrationsPath string `env:"MIGRATIONS_PATH" envDefault:"db/migrations"`

	// CORSOrigins lists the browser origins allowed to call the API.
	CORSOrigins []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:"," envDefault:"http://localhost:5173"`

	// TrustedProxies lists CIDRs whose X-Forwarded-For / X-Real-IP headers
	// are believed when resolving the client IP.
	TrustedProxies []string `env:"TRUSTED_PROXIES" envSeparator:"," envDefault:"127.0.0.0/8,10.0.0.0/8,172.16.0.0/12,192.168.0.0/16,::1/128"`

	Database  DatabaseConfig
	Redis     RedisConfig
	Auth      AuthConfig
	RateLimit RateLimitConfig
	Invite    InviteConfig
	SMTP      SMTPConfig
}

// DatabaseConfig holds MariaDB connection parameters. Individual fields are
// read from separate env vars; DATABASE_URL takes precedence when set.
type DatabaseConfig struct {
	// Host is the MariaDB address in host:port format. A bare host gets :3306.
	Host     string `env:"DB_HOST" envDefault:"localhost:3306"`
	User     string `env:"DB_USER" envDefault:"juken"`
	Password string `env:"DB_PASSWORD" envDefault:"juken"`
	Name     string `env:"DB_NAME" envDefault:"juken"`

	// URL is a full go-sql-driver DSN that bypasses the fields above.
	URL string `env:"DATABASE_URL"`

	MaxOpenConns    int           `env:"DB_MAX_OPEN_CONNS" envDefault:"25"`
	MaxIdleConns    int           `env:"DB_MAX_IDLE_CONNS" envDefault:"5"`
	ConnMaxLifetime time.Duration `env:"DB_CONN_MAX_LIFETIME" envDefault:"5m"`
}

// DSN returns the go-sql-driver/mysql connection string, built with the
// driver's FormatDSN so special characters in passwords are escaped.
func (d DatabaseConfig) DSN() string {
	if d.URL != "" {
		return d.URL
	}
	cfg := mysql.NewConfig()
	cfg.User = d.User
	cfg.Passwd = d.Password
	cfg.Net = "tcp"
	cfg.Addr = ensurePort(d.Host, "3306")
	cfg.DBName = d.Name
	cfg.ParseTime = true
	cfg.Loc = time.UTC
	return cfg.FormatDSN()
}

// ensurePort appends the default port if the host string doesn't include one.
func ensurePort(host, defaultPort string) string {
	if _, _, err := net.SplitHostPort(host); err != nil {
		return net.JoinHostPort(host, defaultPort)
	}
	return host
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	// URL is the Redis connection URL (e.g., "redis://localhost:6379/0").
	URL string `env:"REDIS_URL" envDefault:"redis://localhost:6379/0"`
}

// AuthConfig holds authentication and session settings.
type AuthConfig struct {
	// SecretKey signs the client-key cookie. 32+ characters in production.
	SecretKey string `env:"SECRET_KEY"`

	// SessionIdleTimeout ends a session after this much inactivity.
	SessionIdleTimeout time.Duration `env:"SESSION_IDLE_TIMEOUT" envDefault:"1h"`

	// RefreshTTL bounds how long a refresh token can mint new sessions.
	RefreshTTL time.Duration `env:"REFRESH_TTL" envDefault:"720h"`

	// InactivityCheckInterval is how often long-lived clients re-check
	// their session.
	InactivityCheckInterval time.Duration `env:"INACTIVITY_CHECK_INTERVAL" envDefault:"5m"`

	// OneTimeTokenTTL is the lifetime of recovery and confirmation links.
	OneTimeTokenTTL time.Duration `env:"ONE_TIME_TOKEN_TTL" envDefault:"1h"`

	// RequireEmailConfirmation holds new accounts unconfirmed until the
	// sign-up link is followed.
	RequireEmailConfirmation bool `env:"REQUIRE_EMAIL_CONFIRMATION" envDefault:"true"`

	// PasswordResetPath is appended to BaseURL for the reset redirect.
	PasswordResetPath string `env:"PASSWORD_RESET_PATH" envDefault:"/password-reset/confirm"`

	// ConfirmPath is appended to BaseURL for sign-up confirmation links.
	ConfirmPath string `env:"CONFIRM_PATH" envDefault:"/auth/confirm"`
}

// RateLimitConfig holds the sign-in limiter policy and the per-IP limit
// applied to auth endpoints.
type RateLimitConfig struct {
	MaxAttempts     int           `env:"LOGIN_MAX_ATTEMPTS" envDefault:"5"`
	Window          time.Duration `env:"LOGIN_WINDOW" envDefault:"15m"`
	BlockDuration   time.Duration `env:"LOGIN_BLOCK_DURATION" envDefault:"30m"`
	CleanupInterval time.Duration `env:"LOGIN_CLEANUP_INTERVAL" envDefault:"1h"`

	IPMaxRequests int           `env:"AUTH_IP_MAX_REQUESTS" envDefault:"20"`
	IPWindow      time.Duration `env:"AUTH_IP_WINDOW" envDefault:"1m"`
}

// InviteConfig holds invitation token defaults.
type InviteConfig struct {
	TTL        time.Duration `env:"INVITE_TTL" envDefault:"24h"`
	MaxUses    int           `env:"INVITE_MAX_USES" envDefault:"1"`
	PendingTTL time.Duration `env:"INVITE_PENDING_TTL" envDefault:"1h"`
}

// SMTPConfig holds outgoing mail settings. Mail is disabled when Host is empty.
type SMTPConfig struct {
	Host     string `env:"SMTP_HOST"`
	Port     int    `env:"SMTP_PORT" envDefault:"587"`
	Username string `env:"SMTP_USERNAME"`
	Password string `env:"SMTP_PASSWORD"`
	From     string `env:"SMTP_FROM" envDefault:"no-reply@localhost"`
	FromName string `env:"SMTP_FROM_NAME" envDefault:"Juken"`

	// Encryption is "starttls", "ssl" or "none".
	Encryption string `env:"SMTP_ENCRYPTION" envDefault:"starttls"`
}

// Load reads a .env file when present, then parses the environment.
// Returns an error if required variables are missing or malformed.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}
	return parse()
}

// parse builds the Config from the process environment only.
func parse() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if cfg.IsProduction() {
		if cfg.Auth.SecretKey == "" {
			return nil, fmt.Errorf("SECRET_KEY is required in production")
		}
		if len(cfg.Auth.SecretKey) < 32 {
			return nil, fmt.Errorf("SECRET_KEY must be at least 32 characters in production")
		}
	}

	// Dev-only default secret so local dev works without .env.
	if cfg.Auth.SecretKey == "" {
		cfg.Auth.SecretKey = "dev-secret-key-do-not-use-in-production!!"
	}

	if cfg.Invite.MaxUses < 1 {
		return nil, fmt.Errorf("INVITE_MAX_USES must be at least 1")
	}

	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return cfg, nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	env := strings.ToLower(c.Env)
	return env == "development" || env == "dev"
}

// IsProduction returns true for "production" and "prod", case-insensitive.
func (c *Config) IsProduction() bool {
	env := strings.ToLower(c.Env)
	return env == "production" || env == "prod"
}

// PasswordResetURL is the redirect target embedded in reset e-mails.
func (c *Config) PasswordResetURL() string {
	return c.BaseURL + c.Auth.PasswordResetPath
}

// ConfirmURL is the target embedded in sign-up confirmation e-mails.
func (c *Config) ConfirmURL() string {
	return c.BaseURL + c.Auth.ConfirmPath
}
