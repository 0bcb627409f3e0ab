// Package api provides the HTTP server for Cuentas: REST resources for
// accounts, bills, payments and payment methods, plus the async task
// submission and polling endpoints.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/cuentas-labs/cuentas/internal/app/orchestrator"
	"github.com/cuentas-labs/cuentas/internal/domain"
	"github.com/cuentas-labs/cuentas/internal/health"
	"github.com/cuentas-labs/cuentas/internal/infra/sqlite"
	"github.com/cuentas-labs/cuentas/internal/security"
)

// Version is reported by /api/version.
const Version = "0.1.0"

// Server is the Cuentas HTTP API server.
type Server struct {
	db             *sqlite.DB
	orch           *orchestrator.Orchestrator
	cards          *security.Gateway
	checker        *health.Checker
	metricsEnabled bool
}

// NewServer creates an API server over its collaborators.
func NewServer(db *sqlite.DB, orch *orchestrator.Orchestrator, cards *security.Gateway) *Server {
	return &Server{db: db, orch: orch, cards: cards}
}

// EnableMetrics enables the /metrics Prometheus endpoint.
func (s *Server) EnableMetrics() { s.metricsEnabled = true }

// SetHealthChecker wires the periodic health checker into /health.
func (s *Server) SetHealthChecker(c *health.Checker) { s.checker = c }

// Handler returns the chi router with all routes mounted.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(5 * time.Minute))
	r.Use(corsMiddleware)

	r.Get("/health", s.handleHealth)
	r.Get("/api/version", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"version": Version})
	})

	r.Route("/api", func(r chi.Router) {
		r.Route("/accounts", func(r chi.Router) {
			r.Get("/", s.handleListAccounts)
			r.Post("/", s.handleCreateAccount)
			r.Get("/{id}", s.handleGetAccount)
			r.Put("/{id}", s.handleUpdateAccount)
			r.Delete("/{id}", s.handleDeleteAccount)
			r.Post("/{id}/sync", s.handleSyncAccount)
		})

		r.Route("/bills", func(r chi.Router) {
			r.Get("/", s.handleListBills)
			r.Get("/{id}", s.handleGetBill)
			r.Post("/{id}/pay", s.handlePayBill)
		})

		r.Route("/payment-methods", func(r chi.Router) {
			r.Get("/", s.handleListPaymentMethods)
			r.Post("/", s.handleCreatePaymentMethod)
			r.Get("/{id}", s.handleGetPaymentMethod)
			r.Put("/{id}", s.handleRenamePaymentMethod)
			r.Delete("/{id}", s.handleDeletePaymentMethod)
		})

		r.Route("/payments", func(r chi.Router) {
			r.Get("/", s.handleListPayments)
			r.Post("/", s.handleCreatePayment)
			r.Get("/{id}", s.handleGetPayment)
			r.Delete("/{id}", s.handleDeletePayment)
		})

		r.Get("/tasks/{id}", s.handleGetTask)
		r.Get("/health/checks", s.handleHealthChecks)
	})

	if s.metricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.checker == nil {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		return
	}
	status := http.StatusOK
	state := "ok"
	if !s.checker.IsHealthy() {
		status = http.StatusServiceUnavailable
		state = "degraded"
	}
	writeJSON(w, status, map[string]any{
		"status": state,
		"checks": s.checker.Statuses(),
	})
}

func (s *Server) handleHealthChecks(w http.ResponseWriter, r *http.Request) {
	if s.checker == nil {
		writeJSON(w, http.StatusOK, map[string]any{"checks": []any{}})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"checks": s.checker.Statuses()})
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]interface{}{
		"error": map[string]interface{}{
			"message": msg,
			"type":    "error",
		},
	})
}

// writeDomainError maps domain sentinels to HTTP status codes.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrAccountNotFound),
		errors.Is(err, domain.ErrBillNotFound),
		errors.Is(err, domain.ErrPaymentNotFound),
		errors.Is(err, domain.ErrPaymentMethodNotFound),
		errors.Is(err, domain.ErrTaskNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrNoDriverAvailable):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

// corsMiddleware adds CORS headers for local development.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}
