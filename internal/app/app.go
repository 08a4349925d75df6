// Package app is the application bootstrap and dependency injection root.
// It holds the shared infrastructure (DB pool, Redis client, Echo instance,
// rate limiters) and wires the plugins together.
package app

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/keyxmakerx/juken/internal/apperror"
	"github.com/keyxmakerx/juken/internal/config"
	"github.com/keyxmakerx/juken/internal/middleware"
	"github.com/keyxmakerx/juken/internal/ratelimit"
)

// App holds all shared dependencies and the Echo HTTP server instance.
// Created once at startup in main.go and used to register all routes.
type App struct {
	Config *config.Config

	// DB is the MariaDB connection pool shared by all plugins.
	DB *sql.DB

	// Redis holds sessions and parked invitations.
	Redis *redis.Client

	Echo *echo.Echo

	// LoginLimiter throttles sign-in per e-mail; IPLimiter throttles the
	// auth and invitation endpoints per client IP. main runs their cleanup.
	LoginLimiter *ratelimit.Limiter
	IPLimiter    *ratelimit.Limiter
}

// New creates the App and configures Echo with global middleware, the
// request validator and the JSON error handler.
func New(cfg *config.Config, db *sql.DB, rdb *redis.Client) *App {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// c.RealIP() must see the browser, not the reverse proxy, or the
	// per-IP limiter throttles everyone together.
	middleware.TrustedProxies(e, cfg.TrustedProxies)

	app := &App{
		Config: cfg,
		DB:     db,
		Redis:  rdb,
		Echo:   e,
		LoginLimiter: ratelimit.New(
			ratelimit.WithMaxAttempts(cfg.RateLimit.MaxAttempts),
			ratelimit.WithWindow(cfg.RateLimit.Window),
			ratelimit.WithBlockDuration(cfg.RateLimit.BlockDuration),
		),
		IPLimiter: ratelimit.New(
			ratelimit.WithMaxAttempts(cfg.RateLimit.IPMaxRequests),
			ratelimit.WithWindow(cfg.RateLimit.IPWindow),
			ratelimit.WithBlockDuration(cfg.RateLimit.IPWindow),
		),
	}

	app.setupMiddleware()
	e.Validator = newRequestValidator()
	e.HTTPErrorHandler = app.errorHandler

	return app
}

// setupMiddleware registers global middleware on the Echo instance.
// Order matters: outermost (recovery) runs first, innermost (CSRF) runs last.
func (a *App) setupMiddleware() {
	// Panic recovery -- must be outermost to catch panics from all other middleware.
	a.Echo.Use(middleware.Recovery())

	a.Echo.Use(middleware.RequestLogger())
	a.Echo.Use(middleware.SecurityHeaders())

	// The web app is served from its own origin and calls the API with
	// credentials.
	a.Echo.Use(middleware.CORS(middleware.CORSConfig{
		AllowedOrigins:   a.Config.CORSOrigins,
		AllowCredentials: true,
	}))

	// The client key must exist before the auth workflow and invitation
	// parking read it.
	a.Echo.Use(middleware.ClientKey(a.Config.Auth.SecretKey))

	// CSRF -- double-submit cookie on every state-changing request.
	a.Echo.Use(middleware.CSRF(middleware.CSRFConfig{
		SkipPrefixes: []string{"/healthz"},
	}))
}

// errorResponse is the JSON body of every error.
type errorResponse struct {
	Error    string            `json:"error"`
	Message  string            `json:"message"`
	Kind     string            `json:"kind,omitempty"`
	Fields   map[string]string `json:"fields,omitempty"`
	Redirect string            `json:"redirect,omitempty"`
}

// errorHandler maps domain errors (AppError) and Echo's own errors to JSON.
// Internal causes are logged, never sent.
func (a *App) errorHandler(err error, c echo.Context) {
	// Don't double-write if response is already committed.
	if c.Response().Committed {
		return
	}

	// Anything that is not an Echo error goes through the apperror safe
	// accessors: an AppError keeps its status and message, any other error
	// becomes a generic 500.
	code := apperror.SafeCode(err)
	resp := errorResponse{Message: apperror.SafeMessage(err)}

	var appErr *apperror.AppError
	var echoErr *echo.HTTPError
	switch {
	case errors.As(err, &appErr):
		resp.Kind = appErr.Kind.String()
		resp.Fields = appErr.Fields
		resp.Redirect = appErr.Redirect

		if appErr.Internal != nil {
			level := slog.LevelError
			if code < http.StatusInternalServerError {
				level = slog.LevelWarn
			}
			slog.Log(c.Request().Context(), level, "request failed",
				slog.String("type", appErr.Type),
				slog.Any("internal", appErr.Internal),
				slog.String("path", middleware.RoutePath(c)),
			)
		}
	case errors.As(err, &echoErr):
		code = echoErr.Code
		// Echo's own messages are safe below 500; server errors get the
		// generic text.
		if msg, ok := echoErr.Message.(string); ok && code < http.StatusInternalServerError {
			resp.Message = msg
		} else {
			resp.Message = defaultErrorMessage(code)
		}
		if echoErr.Internal != nil {
			slog.Error("http error",
				slog.Int("status", code),
				slog.Any("internal", echoErr.Internal),
				slog.String("path", middleware.RoutePath(c)),
			)
		}
	default:
		slog.Error("unhandled error",
			slog.Any("error", err),
			slog.String("path", middleware.RoutePath(c)),
		)
	}

	resp.Error = http.StatusText(code)
	if c.Request().Method == http.MethodHead {
		_ = c.NoContent(code)
		return
	}
	_ = c.JSON(code, resp)
}

// defaultErrorMessage returns a user-friendly message for common HTTP status codes
// when no specific message was provided by the error.
func defaultErrorMessage(code int) string {
	switch code {
	case http.StatusBadRequest:
		return "The request was invalid or cannot be processed."
	case http.StatusUnauthorized:
		return "You need to sign in to do this."
	case http.StatusForbidden:
		return "You don't have permission to access this resource."
	case http.StatusNotFound:
		return "The resource you're looking for doesn't exist."
	case http.StatusMethodNotAllowed:
		return "This action is not allowed."
	case http.StatusTooManyRequests:
		return "You're making too many requests. Please slow down."
	case http.StatusServiceUnavailable:
		return "The service is temporarily unavailable. Please try again later."
	default:
		return "An unexpected error occurred."
	}
}

// Start begins listening for HTTP requests on the configured port.
func (a *App) Start() error {
	addr := fmt.Sprintf(":%d", a.Config.Port)
	slog.Info("starting Juken server",
		slog.String("addr", addr),
		slog.String("env", a.Config.Env),
	)
	return a.Echo.Start(addr)
}
