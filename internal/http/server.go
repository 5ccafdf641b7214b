// Package http exposes the JSON API for transactions and cards.
package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"financas/internal/cache"
	"financas/internal/core"
	"financas/internal/log"
	"financas/internal/services"
)

type Server struct {
	http.Server
	transactions *services.TransactionService
	cards        *services.CardService
	rateLimiter  *rateLimiter
	metrics      *securityMetrics
	logger       *log.Logger

	// Read-side caches for the aggregation endpoints. Any write to
	// transactions purges both wholesale; entries are keyed by period.
	statsCache      *cache.LRUCache[core.Summary]
	byCategoryCache *cache.LRUCache[[]core.CategoryAmount]
	caches          *cache.Manager

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run
// http.Server.
func NewServer(addr string, transactions *services.TransactionService, cards *services.CardService, logger *log.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		Server: http.Server{
			Addr:    addr,
			Handler: mux,
		},
		transactions:    transactions,
		cards:           cards,
		rateLimiter:     newRateLimiter(),
		metrics:         &securityMetrics{},
		logger:          logger.WithComponent(log.ComponentHTTP),
		statsCache:      cache.NewLRUCache[core.Summary](100, 5*time.Minute),
		byCategoryCache: cache.NewLRUCache[[]core.CategoryAmount](100, 5*time.Minute),
		caches:          cache.NewManager(),
	}

	s.caches.Register(s.statsCache)
	s.caches.Register(s.byCategoryCache)
	s.caches.StartCleanup(10 * time.Minute)

	mux.HandleFunc("/healthz", handleHealth)
	mux.HandleFunc("/readyz", handleReady)

	mux.HandleFunc("GET /transactions/", s.withSecurityHeaders(s.handleListTransactions))
	mux.HandleFunc("POST /transactions/", s.withSecurityHeaders(s.handleCreateTransaction))
	mux.HandleFunc("GET /transactions/stats", s.withSecurityHeaders(s.handleStats))
	mux.HandleFunc("GET /transactions/by_category", s.withSecurityHeaders(s.handleByCategory))
	mux.HandleFunc("DELETE /transactions/bulk_delete", s.withSecurityHeaders(s.handleBulkDelete))
	mux.HandleFunc("GET /transactions/{id}", s.withSecurityHeaders(s.handleGetTransaction))
	mux.HandleFunc("PATCH /transactions/{id}", s.withSecurityHeaders(s.handlePatchTransaction))
	mux.HandleFunc("DELETE /transactions/{id}", s.withSecurityHeaders(s.handleDeleteTransaction))
	mux.HandleFunc("PATCH /transactions/{id}/toggle_status", s.withSecurityHeaders(s.handleToggleStatus))

	mux.HandleFunc("GET /cards/", s.withSecurityHeaders(s.handleListCards))
	mux.HandleFunc("POST /cards/", s.withSecurityHeaders(s.handleCreateCard))
	mux.HandleFunc("GET /cards/{id}", s.withSecurityHeaders(s.handleGetCard))
	mux.HandleFunc("DELETE /cards/{id}", s.withSecurityHeaders(s.handleDeleteCard))

	return s
}

// Shutdown stops the cleanup goroutines and then the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.caches.Stop()
		s.rateLimiter.stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

// withSecurityHeaders adds security headers, rate limiting, and request
// logging.
func (s *Server) withSecurityHeaders(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		clientIP := extractClientIP(r)
		requestID := generateRequestID()

		ctx := context.WithValue(r.Context(), requestIDKey{}, requestID)
		r = r.WithContext(ctx)

		if isMutating(r.Method) && !s.rateLimiter.allow(clientIP, s.metrics) {
			s.logger.WarnContext(ctx, "rate limit exceeded",
				log.FieldRequestID, requestID,
				log.FieldClientIP, clientIP,
				log.FieldMethod, r.Method,
				log.FieldPath, r.URL.Path)
			w.Header().Set("Retry-After", "60")
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}

		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next(rw, r)

		s.logger.InfoContext(ctx, "request completed",
			log.FieldRequestID, requestID,
			log.FieldMethod, r.Method,
			log.FieldPath, r.URL.Path,
			log.FieldStatusCode, rw.statusCode,
			log.FieldDuration, time.Since(start).Milliseconds(),
			log.FieldClientIP, clientIP)
	}
}

func isMutating(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPatch, http.MethodPut, http.MethodDelete:
		return true
	}
	return false
}

type requestIDKey struct{}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
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

func (s *Server) invalidateStats() {
	s.statsCache.Purge()
	s.byCategoryCache.Purge()
}
