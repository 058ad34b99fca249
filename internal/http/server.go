package http

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"budget/internal/core"
	"budget/internal/log"
	"budget/internal/metrics"
	"budget/internal/services"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Options tunes the API server.
type Options struct {
	MetricsEnabled bool
	Logger         *log.Logger
}

// Server exposes the ledger over a JSON API.
type Server struct {
	http.Server
	svc         *services.LedgerService
	logger      *log.Logger
	rateLimiter *rateLimiter
	started     time.Time

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run http.Server.
func NewServer(addr string, svc *services.LedgerService, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(log.DefaultConfig()).WithComponent(log.ComponentHTTP)
	}
	s := &Server{
		Server: http.Server{
			Addr:              addr,
			ReadHeaderTimeout: 10 * time.Second,
		},
		svc:         svc,
		logger:      logger,
		rateLimiter: newRateLimiter(),
		started:     time.Now(),
	}
	s.Handler = s.routes(opts.MetricsEnabled)
	return s
}

func (s *Server) routes(metricsEnabled bool) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(log.Middleware(s.logger))
	r.Use(log.RequestIDMiddleware(func(r *http.Request) string { return middleware.GetReqID(r.Context()) }))
	r.Use(log.AccessLogMiddleware)
	r.Use(instrument)
	r.Use(s.withSecurityHeaders)

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	if metricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(s.withRateLimit)

		r.Route("/accounts", func(r chi.Router) {
			r.Get("/", s.handleListAccounts)
			r.Post("/", s.handleCreateAccount)
			r.Get("/{id}", s.handleGetAccount)
			r.Get("/{id}/history", s.handleHistory(core.SavingsEntity))
			r.Get("/{id}/balance", s.handleBalance(core.SavingsEntity))
			r.Get("/{id}/audit", s.handleAudit(core.SavingsEntity))
		})
		r.Route("/bills", func(r chi.Router) {
			r.Get("/", s.handleListBills)
			r.Post("/", s.handleCreateBill)
			r.Get("/{id}", s.handleGetBill)
			r.Post("/{id}/payments", s.handlePayBill)
			r.Get("/{id}/history", s.handleHistory(core.BillEntity))
			r.Get("/{id}/balance", s.handleBalance(core.BillEntity))
			r.Get("/{id}/audit", s.handleAudit(core.BillEntity))
		})
		r.Route("/transactions", func(r chi.Router) {
			r.Get("/", s.handleListTransactions)
			r.Post("/", s.handleAddTransaction)
			r.Get("/{id}", s.handleGetTransaction)
			r.Patch("/{id}", s.handleEditTransaction)
			r.Delete("/{id}", s.handleDeleteTransaction)
		})
		r.Post("/transfers", s.handleTransfer)
		r.Post("/paychecks", s.handleProcessPaycheck)
		r.Route("/weeks", func(r chi.Router) {
			r.Get("/", s.handleListWeeks)
			r.Get("/current", s.handleCurrentWeek)
			r.Post("/close-elapsed", s.handleCloseElapsed)
			r.Get("/{n}/summary", s.handleWeekSummary)
			r.Post("/{n}/close", s.handleCloseWeek)
		})
		r.Get("/pay-period", s.handlePayPeriod)
		r.Post("/audit", s.handleAuditAll)
		r.Route("/reimbursements", func(r chi.Router) {
			r.Get("/", s.handleListReimbursements)
			r.Post("/", s.handleAddReimbursement)
			r.Get("/totals", s.handleReimbursementTotals)
			r.Patch("/{id}", s.handleSetReimbursementState)
			r.Delete("/{id}", s.handleDeleteReimbursement)
		})
	})

	return r
}

// instrument records request counts and latency by route pattern.
func instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		metrics.HTTPRequests.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		metrics.HTTPDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

// Shutdown gracefully shuts down the server and cleanup routines
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		if s.rateLimiter != nil {
			s.rateLimiter.stop()
		}
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(s.started).Round(time.Second).String(),
	})
}

// handleReady reports whether the ledger database answers.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := s.svc.Ping(ctx); err != nil {
		log.FromContext(ctx).WarnContext(ctx, "Readiness check failed", log.FieldError, err.Error())
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not_ready", "database": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready", "database": "ok"})
}
