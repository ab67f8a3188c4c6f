// Package http exposes ledger sessions as a JSON API.
package http

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"uangku/internal/log"
	"uangku/internal/middleware/ratelimit"
	"uangku/internal/middleware/security"
	"uangku/internal/middleware/trace"
	"uangku/internal/services"
)

const maxBodyBytes = 1 << 20

type Server struct {
	http.Server
	ledger  *services.Ledger
	logger  *log.Logger
	limiter *ratelimit.Limiter
	tracer  *trace.Middleware
}

// Options tune the server. Zero values select the defaults.
type Options struct {
	// RateLimitPerMinute caps requests per client; negative disables it.
	RateLimitPerMinute int
}

func NewServer(addr string, ledger *services.Ledger, logger *log.Logger, opts Options) *Server {
	if logger == nil {
		logger = log.Discard()
	}
	s := &Server{
		ledger: ledger,
		logger: logger.WithComponent(log.ComponentHTTP),
		tracer: trace.NewMiddleware(logger),
	}
	if opts.RateLimitPerMinute >= 0 {
		s.limiter = ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: opts.RateLimitPerMinute})
	}

	s.Server = http.Server{
		Addr:              addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(s.tracer.Middleware)
	r.Use(middleware.Recoverer)
	r.Use(security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware)
	if s.limiter != nil {
		r.Use(s.limiter.Middleware(clientKey, func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusTooManyRequests, errorBody{Error: "rate_limited", Message: "rate limit exceeded, retry later"})
		}))
	}

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "not_found", Message: "no such route"})
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, errorBody{Error: "method_not_allowed", Message: r.Method + " is not allowed here"})
	})

	r.Get("/healthz", s.handleHealth)

	r.Route("/api/users/{user}", func(r chi.Router) {
		r.Get("/transactions", s.handleListTransactions)
		r.Post("/transactions", s.handleAddTransaction)
		r.Post("/transactions/batch", s.handleBatchUpdate)
		r.Put("/transactions/{id}", s.handleUpdateTransaction)
		r.Delete("/transactions/{id}", s.handleDeleteTransaction)

		r.Post("/undo", s.handleUndo)
		r.Post("/redo", s.handleRedo)
		r.Get("/history", s.handleHistory)
		r.Delete("/history", s.handleClearHistory)

		r.Get("/balance", s.handleBalance)
		r.Get("/budgets", s.handleBudgets)
		r.Post("/budgets", s.handleWatchBudget)
		r.Get("/summary", s.handleSummary)
	})
	return r
}

// Shutdown stops accepting requests and releases the rate limiter.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.limiter != nil {
		s.limiter.Stop()
	}
	return s.Server.Shutdown(ctx)
}

// clientKey is the client address without its port.
func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
