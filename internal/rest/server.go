// Package rest exposes products, categories, transactions, login, and
// remote-log ingestion over CORS-permissive JSON HTTP.
package rest

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/scangate/gateway/internal/auth"
	"github.com/scangate/gateway/internal/logsink"
	"github.com/scangate/gateway/internal/metrics"
	"github.com/scangate/gateway/internal/middleware"
	"github.com/scangate/gateway/internal/storage"
)

// Server is the REST listener. It implements the same Start(ctx)/Shutdown(ctx)
// lifecycle shape as the other transports.
type Server struct {
	addr     string
	db       *storage.DB
	verifier *auth.Verifier
	sink     *logsink.Sink
	metrics  *metrics.Metrics
	limiter  *middleware.RateLimiter
	logger   *slog.Logger

	httpServer *http.Server
	listener   net.Listener
}

func NewServer(addr string, db *storage.DB, verifier *auth.Verifier, sink *logsink.Sink, m *metrics.Metrics, limiter *middleware.RateLimiter, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{addr: addr, db: db, verifier: verifier, sink: sink, metrics: m, limiter: limiter, logger: logger}
}

func (s *Server) Start(ctx context.Context) error {
	router := mux.NewRouter()
	router.Use(corsMiddleware)
	router.Use(s.recoverMiddleware)

	loginHandler := http.Handler(http.HandlerFunc(s.handleLogin))
	if s.limiter != nil {
		loginHandler = s.limiter.Middleware(loginHandler)
	}
	router.Handle("/api/login", loginHandler).Methods(http.MethodPost, http.MethodOptions)

	router.HandleFunc("/api/products", s.withAuth(s.handleListProducts)).Methods(http.MethodGet, http.MethodOptions)
	router.HandleFunc("/api/products", s.withAuth(s.handleCreateProduct)).Methods(http.MethodPost)
	router.HandleFunc("/api/products/{id}", s.withAuth(s.handleUpdateProduct)).Methods(http.MethodPut)
	router.HandleFunc("/api/products/{id}", s.withAuth(s.handleDeleteProduct)).Methods(http.MethodDelete)

	router.HandleFunc("/api/categories", s.withAuth(s.handleListCategories)).Methods(http.MethodGet, http.MethodOptions)
	router.HandleFunc("/api/categories", s.withAuth(s.handleCreateCategory)).Methods(http.MethodPost)
	router.HandleFunc("/api/categories/{id}", s.withAuth(s.handleUpdateCategory)).Methods(http.MethodPut)
	router.HandleFunc("/api/categories/{id}", s.withAuth(s.handleDeleteCategory)).Methods(http.MethodDelete)

	router.HandleFunc("/api/transactions", s.withAuth(s.handleListTransactions)).Methods(http.MethodGet, http.MethodOptions)
	router.HandleFunc("/api/transactions/checkout", s.withAuth(s.handleCheckout)).Methods(http.MethodPost)
	router.HandleFunc("/api/transactions/{id}/cancel", s.withAuth(s.handleCancelTransaction)).Methods(http.MethodPost)
	router.HandleFunc("/api/transactions/{id}/items", s.withAuth(s.handleListTransactionItems)).Methods(http.MethodGet)
	router.HandleFunc("/api/transactions/{id}", s.withAuth(s.handleGetTransaction)).Methods(http.MethodGet)

	router.HandleFunc("/api/remote-log", s.withAuth(s.handleRemoteLog)).Methods(http.MethodPost, http.MethodOptions)

	router.HandleFunc("/healthz", s.handleHealthz).Methods(http.MethodGet)
	router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	s.httpServer = &http.Server{Addr: s.addr, Handler: router}
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("listen rest server: %w", err)
	}
	s.listener = ln

	go func() {
		if err := s.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.logger.Error("rest server stopped", "error", err)
		}
	}()
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// Addr returns the bound listener address, useful when addr was ":0".
func (s *Server) Addr() string {
	if s.listener == nil {
		return s.addr
	}
	return s.listener.Addr().String()
}

// recoverMiddleware turns a handler panic into a logged fatal exit, so a
// programmer error crashes the process for a supervisor to restart instead
// of leaving the router running with a corrupted goroutine.
func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error("panic recovered, exiting", "where", "rest", "panic", rec)
				os.Exit(1)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if err := s.db.Ping(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "storage unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
