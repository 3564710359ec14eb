// Package server assembles the HTTP surface: routes, middleware, and the
// listener lifecycle.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"insurance-management/backend/internal/audit"
	"insurance-management/backend/internal/platform/rbac"
	"insurance-management/backend/internal/procedure"
	"insurance-management/backend/internal/security"
	"insurance-management/backend/internal/server/handlers"
	"insurance-management/backend/internal/session/repository"
	"insurance-management/backend/internal/session/service"
)

// Deps carries everything the HTTP surface needs. All fields are required
// except Auditor and DB, which may be nil.
type Deps struct {
	Logger    zerolog.Logger
	Procs     *procedure.Client
	Tokens    *security.TokenProvider
	Hasher    *security.Hasher
	Sessions  repository.Repository
	Validator *service.Validator
	Gate      *rbac.Gate
	Auditor   audit.ActivityLogger
	Mode      service.OperatingMode
	DB        handlers.Pinger
}

// Server owns the HTTP listener.
type Server struct {
	http *http.Server
	log  zerolog.Logger
}

// New builds the server on addr with all routes registered.
func New(addr string, deps Deps) *Server {
	auth := handlers.NewAuthHandler(deps.Procs, deps.Tokens, deps.Sessions, deps.Validator, deps.Auditor, deps.Mode)
	users := handlers.NewUserHandler(deps.Procs, deps.Hasher, deps.Gate, deps.Auditor)
	contracts := handlers.NewContractHandler(deps.Procs, deps.Gate, deps.Auditor)
	health := handlers.NewHealthHandler(deps.DB)

	authn := handlers.RequireSession(deps.Validator)
	audited := handlers.AuditRequests(deps.Auditor)
	// The audit middleware reads the identity the auth middleware attaches,
	// so it must run inside it.
	protected := func(h http.HandlerFunc) http.Handler { return authn(audited(h)) }

	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", health.Root)
	mux.HandleFunc("GET /health", health.Health)

	mux.HandleFunc("POST /auth/login", auth.Login)
	mux.HandleFunc("POST /auth/logout", auth.Logout)
	mux.HandleFunc("GET /auth/validate", auth.Validate)

	mux.HandleFunc("POST /users/register", users.Register)
	mux.HandleFunc("POST /users/activate", users.Activate)
	mux.HandleFunc("POST /users/password-reset/request", users.RequestPasswordReset)
	mux.HandleFunc("POST /users/password-reset/confirm", users.ConfirmPasswordReset)
	mux.Handle("GET /users/me", protected(users.Me))
	mux.Handle("PUT /users/me/password", protected(users.ChangeMyPassword))
	mux.Handle("GET /users/{id}", protected(users.Get))
	mux.Handle("PUT /users/{id}", protected(users.Update))

	mux.Handle("GET /contracts", protected(contracts.List))
	mux.Handle("POST /contracts", protected(contracts.Create))
	mux.Handle("GET /contracts/{id}", protected(contracts.Detail))
	mux.Handle("PUT /contracts/{id}", protected(contracts.Update))
	mux.Handle("DELETE /contracts/{id}", protected(contracts.Delete))
	mux.Handle("POST /contracts/{id}/create-insured-user", protected(contracts.CreateInsuredUser))

	handler := handlers.RequestLogger(deps.Logger)(mux)

	return &Server{
		http: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       30 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       2 * time.Minute,
		},
		log: deps.Logger,
	}
}

// Start serves until the listener closes. It returns nil on graceful shutdown.
func (s *Server) Start() error {
	s.log.Info().Str("addr", s.http.Addr).Msg("http server listening")
	if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests until ctx expires.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

// Handler exposes the assembled route tree, used by tests.
func (s *Server) Handler() http.Handler {
	return s.http.Handler
}
