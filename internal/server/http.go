// Package server assembles the HTTP API: routes, middleware chain, and the
// listener lifecycle.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/gaini88088/expert-pancake/internal/audit"
	auditrepo "github.com/gaini88088/expert-pancake/internal/audit/repository"
	"github.com/gaini88088/expert-pancake/internal/coordinator"
	identityservice "github.com/gaini88088/expert-pancake/internal/identity/service"
	"github.com/gaini88088/expert-pancake/internal/security"
	"github.com/gaini88088/expert-pancake/internal/server/handler"
	"github.com/gaini88088/expert-pancake/internal/server/middleware"
	sessionservice "github.com/gaini88088/expert-pancake/internal/session/service"
	trustservice "github.com/gaini88088/expert-pancake/internal/trust/service"
	verificationservice "github.com/gaini88088/expert-pancake/internal/verification/service"
)

const (
	readTimeout  = 15 * time.Second
	writeTimeout = 30 * time.Second
	idleTimeout  = 60 * time.Second
)

// Deps holds the service dependencies the HTTP API exposes.
type Deps struct {
	// Verifier checks credentials and manages registration and TOTP enrollment.
	Verifier *identityservice.Verifier
	// Sessions is the session manager for listing and activity tracking.
	Sessions *sessionservice.Manager
	// Flows sequences logins, logouts, and the emergency logout.
	Flows *coordinator.Coordinator
	// Verification runs the step-up verification challenge flow.
	Verification *verificationservice.Service
	// Trust serves the known-device inventory.
	Trust *trustservice.Evaluator
	// Tokens issues and validates bearer session tokens.
	Tokens *security.TokenProvider
	// SessionSource resolves bearer tokens to live sessions for the auth
	// middleware; usually the session repository.
	SessionSource middleware.SessionSource
	// AuditLog records user-visible account actions.
	AuditLog audit.AuditLogger
	// AuditRepo feeds the security event feed. May be the same store the
	// audit logger writes to.
	AuditRepo auditrepo.Repository
	// RateLimiter is optional; nil disables rate limiting.
	RateLimiter *middleware.RateLimiter
	// HealthDB is pinged by the readiness probe. Nil skips the check.
	HealthDB handler.Pinger
	// HealthPolicy is checked by the readiness probe. Nil skips the check.
	HealthPolicy handler.PolicyChecker
	// Logger is the base structured logger for handlers and middleware.
	Logger *slog.Logger
}

// NewRouter builds the full route table.
//
// Route → handler mapping:
//   - /healthz, /readyz                → handler.HealthHandler
//   - /v1/auth/*                       → handler.AuthHandler
//   - /v1/sessions*                    → handler.SessionHandler
//   - /v1/verification/*               → handler.VerificationHandler
//   - /v1/devices*                     → handler.DeviceHandler
//   - /v1/security/*                   → handler.SecurityHandler
func NewRouter(deps Deps) *mux.Router {
	validate := validator.New()

	authH := handler.NewAuthHandler(deps.Verifier, deps.Flows, deps.Tokens, validate, deps.Logger)
	sessionH := handler.NewSessionHandler(deps.Sessions, deps.Flows, deps.Logger)
	verificationH := handler.NewVerificationHandler(deps.Verification, deps.Verifier, validate, deps.Logger)
	deviceH := handler.NewDeviceHandler(deps.Trust, deps.AuditLog, deps.Logger)
	securityH := handler.NewSecurityHandler(deps.Sessions, deps.Trust, deps.Verifier, deps.AuditRepo, deps.Logger)
	healthH := handler.NewHealthHandler(deps.HealthDB, deps.HealthPolicy)

	authMW := middleware.NewAuth(deps.Tokens, deps.SessionSource, deps.Sessions, deps.Logger)

	r := mux.NewRouter()
	r.Use(middleware.RealIP, middleware.Logging(deps.Logger))

	r.HandleFunc("/healthz", healthH.Live).Methods("GET")
	r.HandleFunc("/readyz", healthH.Ready).Methods("GET")

	public := r.PathPrefix("/v1").Subrouter()
	if deps.RateLimiter != nil {
		public.Use(deps.RateLimiter.Limit)
	}
	public.HandleFunc("/auth/register", authH.Register).Methods("POST")
	public.HandleFunc("/auth/login", authH.Login).Methods("POST")

	private := r.PathPrefix("/v1").Subrouter()
	if deps.RateLimiter != nil {
		private.Use(deps.RateLimiter.Limit)
	}
	private.Use(authMW.Require)
	private.HandleFunc("/auth/logout", authH.Logout).Methods("POST")
	private.HandleFunc("/sessions", sessionH.List).Methods("GET")
	private.HandleFunc("/sessions/revoke-others", sessionH.RevokeOthers).Methods("POST")
	private.HandleFunc("/sessions/revoke-all", sessionH.RevokeAll).Methods("POST")
	private.HandleFunc("/sessions/{id}", sessionH.Terminate).Methods("DELETE")
	private.HandleFunc("/verification/begin", verificationH.Begin).Methods("POST")
	private.HandleFunc("/verification/confirm", verificationH.Confirm).Methods("POST")
	private.HandleFunc("/verification/totp/enroll", verificationH.EnrollTOTP).Methods("POST")
	private.HandleFunc("/devices", deviceH.List).Methods("GET")
	private.HandleFunc("/devices/{fingerprint}", deviceH.Forget).Methods("DELETE")
	private.HandleFunc("/security/status", securityH.Status).Methods("GET")
	private.HandleFunc("/security/events", securityH.Events).Methods("GET")

	return r
}

// Server wraps the HTTP listener with traced handlers and a graceful stop.
type Server struct {
	srv    *http.Server
	logger *slog.Logger
}

// New returns a Server listening on addr once Start is called.
func New(addr string, deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	router := NewRouter(deps)
	return &Server{
		srv: &http.Server{
			Addr:         addr,
			Handler:      otelhttp.NewHandler(router, "http.server"),
			ReadTimeout:  readTimeout,
			WriteTimeout: writeTimeout,
			IdleTimeout:  idleTimeout,
		},
		logger: logger.With("component", "server"),
	}
}

// Start serves until Shutdown is called. A clean shutdown returns nil.
func (s *Server) Start() error {
	s.logger.Info("http server listening", "addr", s.srv.Addr)
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests until ctx expires.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
