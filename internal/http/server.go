// Package http exposes the engine over a JSON API. Authentication is
// delegated to a fronting proxy which forwards the verified account email in
// the X-User-Email header; this layer resolves that email to a member
// identity and enforces roles.
package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"caixa/internal/config"
	"caixa/internal/core"
	"caixa/internal/log"
	"caixa/internal/services"
)

const userHeader = "X-User-Email"

// Server wires the service layer to routes and owns the request middleware.
type Server struct {
	*http.Server

	finance   *services.FinanceService
	voting    *services.VotingService
	scheduler *services.SchedulerService
	audit     *services.AuditService
	identity  *services.IdentityService
	modules   *config.Store

	cronSecret string
	limiter    *rateLimiter
	logger     *log.Logger
}

// Deps carries everything the server needs.
type Deps struct {
	Finance    *services.FinanceService
	Voting     *services.VotingService
	Scheduler  *services.SchedulerService
	Audit      *services.AuditService
	Identity   *services.IdentityService
	Modules    *config.Store
	CronSecret string
	Logger     *log.Logger
}

// NewServer configures routes and middleware, returning a ready-to-run
// server.
func NewServer(addr string, deps Deps) *Server {
	s := &Server{
		finance:    deps.Finance,
		voting:     deps.Voting,
		scheduler:  deps.Scheduler,
		audit:      deps.Audit,
		identity:   deps.Identity,
		modules:    deps.Modules,
		cronSecret: deps.CronSecret,
		limiter:    newRateLimiter(60),
		logger:     deps.Logger.WithComponent("http"),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", handleReady)

	mux.HandleFunc("POST /donations", s.wrap(s.handleCreateDonation))
	mux.HandleFunc("GET /summary", s.wrap(s.handleSummary))
	mux.HandleFunc("GET /transactions", s.wrap(s.handleListTransactions))
	mux.HandleFunc("POST /expenses", s.wrap(s.handleCreateExpense))
	mux.HandleFunc("POST /webhooks/settlement", s.wrap(s.handleSettlement))

	mux.HandleFunc("GET /proposals", s.wrap(s.handleListProposals))
	mux.HandleFunc("POST /proposals", s.wrap(s.handleCreateProposal))
	mux.HandleFunc("GET /proposals/{id}", s.wrap(s.handleProposalDetail))
	mux.HandleFunc("POST /proposals/{id}/votes", s.wrap(s.handleCastVote))
	mux.HandleFunc("POST /proposals/{id}/comments", s.wrap(s.handleAddComment))
	mux.HandleFunc("POST /proposals/{id}/close", s.wrap(s.handleCloseProposal))

	mux.HandleFunc("POST /cron/run-payments", s.wrap(s.handleRunPayments))
	mux.HandleFunc("GET /cron/status", s.wrap(s.handleCronStatus))

	mux.HandleFunc("GET /audit", s.wrap(s.handlePublicAudit))
	mux.HandleFunc("GET /admin/audit", s.wrap(s.handleAdminAudit))
	mux.HandleFunc("PUT /admin/modules", s.wrap(s.handleUpdateModules))
	mux.HandleFunc("POST /admin/users/{handle}/ban", s.wrap(s.handleBanUser))
	mux.HandleFunc("POST /admin/users/{handle}/unban", s.wrap(s.handleUnbanUser))

	s.Server = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

// wrap applies security headers, rate limiting and request logging.
func (s *Server) wrap(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

		if !s.limiter.allow(clientIP(r)) {
			writeJSON(w, http.StatusTooManyRequests, errorResponse{Error: "rate limit exceeded"})
			return
		}

		requestID := uuid.NewString()
		w.Header().Set("X-Request-ID", requestID)

		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next(rw, r)

		s.logger.InfoContext(r.Context(), "request",
			"request_id", requestID,
			"method", r.Method,
			"path", r.URL.Path,
			"status", rw.status,
			"duration_ms", time.Since(start).Milliseconds())
	}
}

// Shutdown stops the listener and the limiter's cleanup goroutine.
func (s *Server) Shutdown(ctx context.Context) error {
	s.limiter.stop()
	return s.Server.Shutdown(ctx)
}

// resolveUser maps the forwarded email to a member. Returns nil without an
// error when the request is anonymous.
func (s *Server) resolveUser(r *http.Request) (*core.User, error) {
	email := r.Header.Get(userHeader)
	if email == "" {
		return nil, nil
	}
	u, err := s.identity.ResolveOrCreate(r.Context(), email)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// requireMember resolves the caller and rejects anonymous or banned ones.
func (s *Server) requireMember(r *http.Request) (core.User, error) {
	u, err := s.resolveUser(r)
	if err != nil {
		return core.User{}, err
	}
	if u == nil {
		return core.User{}, fmt.Errorf("authentication required: %w", core.ErrForbidden)
	}
	if u.Banned {
		return core.User{}, fmt.Errorf("account is banned: %w", core.ErrForbidden)
	}
	return *u, nil
}

func (s *Server) requireAdmin(r *http.Request) (core.User, error) {
	u, err := s.requireMember(r)
	if err != nil {
		return core.User{}, err
	}
	if u.Role != core.RoleAdmin {
		return core.User{}, fmt.Errorf("admin role required: %w", core.ErrForbidden)
	}
	return u, nil
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func handleReady(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
