// Package server exposes the engines over HTTP and WebSocket.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"bolao/internal/domain"
	"bolao/internal/server/handler"
	"bolao/internal/server/middleware"
	"bolao/internal/server/ws"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port        int
	CORSOrigins []string
	APIKey      string // if empty, authentication is disabled

	RateLimit       int           // requests per window per client IP; 0 disables
	RateLimitWindow time.Duration
}

// Handlers aggregates all HTTP handlers that the server needs to register.
// Pool, Governance, and Events may be nil depending on the run mode; routes
// for a nil handler are simply not registered.
type Handlers struct {
	Health     *handler.HealthHandler
	Pool       *handler.PoolHandler
	Governance *handler.GovernanceHandler
	Events     *handler.EventsHandler
}

// Server is the HTTP + WebSocket API server.
type Server struct {
	httpServer *http.Server
	mux        *http.ServeMux
	logger     *slog.Logger
}

// NewServer creates a new Server with all routes registered on the ServeMux
// and the middleware chain (rate limiting, auth, logging, CORS) applied.
func NewServer(cfg Config, handlers Handlers, limiter domain.RateLimiter, wsHub *ws.Hub, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	// Health check (no auth required).
	mux.HandleFunc("GET /api/health", handlers.Health.HealthCheck)

	if h := handlers.Pool; h != nil {
		mux.HandleFunc("GET /api/pool", h.GetSnapshot)
		mux.HandleFunc("POST /api/pool/phases", h.RegisterPhase)
		mux.HandleFunc("GET /api/pool/phases/{name}/matches", h.ListMatches)
		mux.HandleFunc("POST /api/pool/matches", h.RegisterMatch)
		mux.HandleFunc("GET /api/pool/matches/{id}", h.GetMatch)
		mux.HandleFunc("POST /api/pool/matches/{id}/bets", h.PlaceBet)
		mux.HandleFunc("GET /api/pool/matches/{id}/bets/{user}", h.GetBet)
		mux.HandleFunc("POST /api/pool/matches/{id}/result/propose", h.ProposeResult)
		mux.HandleFunc("POST /api/pool/matches/{id}/result/finalize", h.FinalizeResult)
		mux.HandleFunc("POST /api/pool/matches/{id}/payouts", h.PayoutWinners)
		mux.HandleFunc("POST /api/pool/final-prize", h.SendFinalPrize)
		mux.HandleFunc("POST /api/pool/fees/withdraw", h.WithdrawFees)
		mux.HandleFunc("GET /api/pool/points/{user}", h.GetUserPoints)
	}

	if h := handlers.Governance; h != nil {
		mux.HandleFunc("GET /api/governance", h.GetSnapshot)
		mux.HandleFunc("POST /api/governance/proposals", h.CreateProposal)
		mux.HandleFunc("GET /api/governance/proposals", h.ListProposals)
		mux.HandleFunc("GET /api/governance/proposals/{id}", h.GetProposal)
		mux.HandleFunc("POST /api/governance/proposals/{id}/votes", h.Vote)
		mux.HandleFunc("GET /api/governance/proposals/{id}/votes/{voter}", h.GetVote)
		mux.HandleFunc("POST /api/governance/proposals/{id}/finalize", h.FinalizeProposal)
		mux.HandleFunc("POST /api/governance/proposals/{id}/execute", h.Execute)
		mux.HandleFunc("PUT /api/governance/market-target", h.SetMarketTarget)
		mux.HandleFunc("PUT /api/governance/owner", h.SetOwner)
	}

	if h := handlers.Events; h != nil {
		mux.HandleFunc("GET /api/events", h.ListEvents)
	}

	if wsHub != nil {
		mux.HandleFunc("GET /ws", wsHub.HandleWS)
	}

	// Build the middleware chain, innermost first.
	var h http.Handler = mux

	h = middleware.Auth(cfg.APIKey)(h)

	if limiter != nil && cfg.RateLimit > 0 {
		window := cfg.RateLimitWindow
		if window <= 0 {
			window = time.Minute
		}
		h = middleware.RateLimit(limiter, cfg.RateLimit, window)(h)
	}

	h = middleware.Logging(logger)(h)
	h = corsMiddleware(cfg.CORSOrigins)(h)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      h,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: srv,
		mux:        mux,
		logger:     logger,
	}
}

// Start begins listening for HTTP requests. It blocks until the server
// encounters an error or is shut down.
func (s *Server) Start() error {
	s.logger.Info("server: starting",
		slog.String("addr", s.httpServer.Addr),
	)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server, waiting for in-flight requests
// to complete within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server: shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}

// corsMiddleware returns middleware that sets CORS headers for the allowed
// origins. If no origins are specified, it defaults to allowing all origins.
func corsMiddleware(allowedOrigins []string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")

			if origin != "" {
				allowed := len(allowedOrigins) == 0
				for _, o := range allowedOrigins {
					if strings.EqualFold(o, "*") || strings.EqualFold(o, origin) {
						allowed = true
						break
					}
				}

				if allowed {
					w.Header().Set("Access-Control-Allow-Origin", origin)
					w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
					w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-API-Key, X-Caller-Signature")
					w.Header().Set("Access-Control-Max-Age", "86400")
				}
			}

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
