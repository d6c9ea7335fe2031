// Package http serves the JSON API: recurring items, the household summary,
// monthly transactions, the household definition, and statement imports.
// Handlers talk to a backend.Backend so the same routes run against SQLite,
// Postgres, or the in-memory store.
package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"bilancio/internal/backend"
	"bilancio/internal/cache"
	"bilancio/internal/config"
	"bilancio/internal/importer"
	applog "bilancio/internal/log"
	"bilancio/internal/middleware/ratelimit"
	"bilancio/internal/middleware/security"
	"bilancio/internal/middleware/trace"
)

const (
	itemsCacheSize = 8
	txnCacheSize   = 24
	cacheTTL       = 2 * time.Minute
	summaryKey     = "summary"
)

// Server wraps http.Server with the backend, per-view caches, and the
// middleware state that needs explicit shutdown.
type Server struct {
	http.Server

	backend backend.Backend
	imports importer.BatchRecorder // nil when the backend keeps no batch bookkeeping
	parsers *importer.Registry

	householdPath string
	hmu           sync.RWMutex
	household     config.HouseholdFile

	itemsCache   *cache.LRUCache[[]itemResponse]
	summaryCache *cache.LRUCache[summaryResponse]
	txnCache     *cache.LRUCache[transactionsResponse]
	caches       *cache.Manager

	limiter  *ratelimit.Limiter
	detector *security.Detector

	shutdownOnce sync.Once
}

// NewServer loads the household definition, configures routes and middleware,
// and returns a ready-to-run server.
func NewServer(addr string, b backend.Backend, imports importer.BatchRecorder, householdPath string) (*Server, error) {
	hf, err := config.LoadHousehold(householdPath)
	if err != nil {
		return nil, err
	}

	s := &Server{
		backend:       b,
		imports:       imports,
		parsers:       importer.DefaultRegistry(),
		householdPath: householdPath,
		household:     hf,
		itemsCache:    cache.NewLRUCache[[]itemResponse](itemsCacheSize, cacheTTL),
		summaryCache:  cache.NewLRUCache[summaryResponse](1, cacheTTL),
		txnCache:      cache.NewLRUCache[transactionsResponse](txnCacheSize, cacheTTL),
		caches:        cache.NewManager(),
		limiter:       ratelimit.NewLimiter(ratelimit.DefaultConfig()),
		detector:      security.NewDetector(),
	}

	s.caches.Register(s.itemsCache)
	s.caches.Register(s.summaryCache)
	s.caches.Register(s.txnCache)
	s.caches.StartCleanup(10 * time.Minute)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", handleReady)
	mux.HandleFunc("GET /api/items", s.handleListItems)
	mux.HandleFunc("POST /api/items", s.handleCreateItem)
	mux.HandleFunc("DELETE /api/items/{id}", s.handleDeleteItem)
	mux.HandleFunc("POST /api/items/{id}/toggle", s.handleToggleItem)
	mux.HandleFunc("GET /api/summary", s.handleSummary)
	mux.HandleFunc("GET /api/household", s.handleGetHousehold)
	mux.HandleFunc("PUT /api/household", s.handlePutHousehold)
	mux.HandleFunc("GET /api/transactions", s.handleListTransactions)
	mux.HandleFunc("POST /api/import", s.handleImport)

	headersCfg := security.DefaultHeadersConfig()
	// The API serves no markup; lock the CSP all the way down.
	headersCfg.CSP = "default-src 'none'; frame-ancestors 'none'"
	headers := security.NewHeadersMiddleware(headersCfg)
	tracer := trace.NewMiddleware(s.detector.ExtractClientIP)
	logger := applog.New(applog.DefaultConfig())

	var handler http.Handler = s.withRateLimit(mux)
	handler = headers.Middleware(handler)
	handler = s.withDetection(handler)
	handler = applog.RequestIDMiddleware(func(r *http.Request) string {
		return trace.GetRequestID(r.Context())
	})(handler)
	handler = applog.ComponentMiddleware(applog.ComponentHTTP)(handler)
	handler = applog.Middleware(logger)(handler)
	handler = tracer.Middleware(handler)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s, nil
}

// withRateLimit throttles mutating requests per client IP. Reads pass
// through: they are cheap and cached.
func (s *Server) withRateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet || r.Method == http.MethodHead {
			next.ServeHTTP(w, r)
			return
		}

		clientIP := s.detector.ExtractClientIP(r)
		if !s.limiter.Allow(clientIP) {
			applog.FromContext(r.Context()).WarnContext(r.Context(), "Rate limit exceeded",
				"client_ip", clientIP,
				"method", r.Method,
				"path", r.URL.Path)
			w.Header().Set("Retry-After", "60")
			writeError(w, r, http.StatusTooManyRequests, "rate limit exceeded, try again later")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// withDetection logs requests matching known probe patterns. Detection never
// blocks; it feeds the security metrics and the logs.
func (s *Server) withDetection(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.detector.DetectSuspiciousRequest(r) {
			applog.FromContext(r.Context()).WarnContext(r.Context(), "Suspicious request detected",
				"client_ip", s.detector.ExtractClientIP(r),
				"method", r.Method,
				"path", r.URL.Path,
				"user_agent", r.Header.Get("User-Agent"))
		}
		next.ServeHTTP(w, r)
	})
}

// Shutdown stops the cache and rate limiter cleanup goroutines, then shuts
// down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.caches.Stop()
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

// currentHousehold returns the live household definition.
func (s *Server) currentHousehold() config.HouseholdFile {
	s.hmu.RLock()
	defer s.hmu.RUnlock()
	return s.household
}

// invalidateItems drops every cached view derived from the item set.
func (s *Server) invalidateItems() {
	s.itemsCache.Flush()
	s.summaryCache.Delete(summaryKey)
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

func handleReady(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ready"))
}
