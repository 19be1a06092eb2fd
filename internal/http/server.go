// Package http exposes the projection engine and derived queries as a JSON
// API.
package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"zlotowka/internal/cache"
	"zlotowka/internal/core"
	applog "zlotowka/internal/log"
	"zlotowka/internal/services"
)

// ReadinessCheck reports whether a dependency is ready to serve.
type ReadinessCheck func(ctx context.Context) error

type Server struct {
	http.Server
	service    *services.ProjectionService
	ready      ReadinessCheck
	structured *applog.StructuredLogger

	// projectionCache keys by user and window; settlement runs at most once
	// a day, so short TTLs keep responses fresh enough.
	projectionCache *cache.LRUCache[[]core.SinglePlotData]
	cacheManager    *cache.Manager

	shutdownOnce sync.Once
}

// NewServer configures routes and response caching, returning a
// ready-to-run http.Server.
func NewServer(addr string, logger *applog.Logger, service *services.ProjectionService, ready ReadinessCheck, cacheTTL time.Duration) *Server {
	mux := http.NewServeMux()

	s := &Server{
		Server: http.Server{
			Addr:    addr,
			Handler: applog.Middleware(logger)(mux),
		},
		service:         service,
		ready:           ready,
		structured:      applog.NewStructuredLogger(logger.WithComponent(applog.ComponentHTTP)),
		projectionCache: cache.NewLRUCache[[]core.SinglePlotData](256, cacheTTL),
		cacheManager:    cache.NewManager(),
	}

	s.cacheManager.Register(s.projectionCache)
	s.cacheManager.StartCleanup(10 * time.Minute)

	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /users/{id}/projection", s.withMiddleware(s.handleProjection))
	mux.HandleFunc("GET /users/{id}/estimate", s.withMiddleware(s.handleEstimate))
	mux.HandleFunc("GET /users/{id}/summary", s.withMiddleware(s.handleSummary))
	mux.HandleFunc("GET /users/{id}/revenues-expenses", s.withMiddleware(s.handleRevenuesExpenses))
	mux.HandleFunc("GET /users/{id}/next-transaction", s.withMiddleware(s.handleNextTransaction))
	mux.HandleFunc("GET /users/{id}/balance", s.withMiddleware(s.handleBalance))

	return s
}

// Shutdown stops the cache cleanup goroutine and drains the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.cacheManager.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

// withMiddleware adds security headers and request logging.
func (s *Server) withMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		clientIP := r.Header.Get("X-Forwarded-For")
		if clientIP == "" {
			clientIP = r.Header.Get("X-Real-IP")
		}
		if clientIP == "" {
			clientIP = r.RemoteAddr
		}

		requestID := generateRequestID()
		ctx := context.WithValue(r.Context(), requestIDKey, requestID)
		r = r.WithContext(ctx)

		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

		s.structured.LogHTTPStart(ctx, r, clientIP)

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next(rw, r)

		s.structured.LogHTTPEnd(ctx, r, rw.statusCode, time.Since(start).Milliseconds(), clientIP)
	}
}

// responseWriter wraps http.ResponseWriter to capture the status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.ready != nil {
		if err := s.ready(r.Context()); err != nil {
			http.Error(w, "not ready", http.StatusServiceUnavailable)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
