// Package http exposes the membership ledger as a JSON API.
package http

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"kotizy/internal/cache"
	"kotizy/internal/core"
	"kotizy/internal/directory"
	"kotizy/internal/ledger"
	"kotizy/internal/middleware/auth"
	"kotizy/internal/middleware/ratelimit"
	"kotizy/internal/middleware/trace"
	"kotizy/internal/storage"
)

type Server struct {
	http.Server

	ledger    *ledger.Service
	directory *directory.Service
	store     *storage.SQLiteStore

	rateLimiter *ratelimit.Limiter

	// Year reports are expensive aggregations, so they are cached and
	// invalidated whenever a ledger write touches the year.
	reportCache  *cache.LRUCache[core.YearReport]
	cacheManager *cache.Manager

	shutdownOnce sync.Once
}

// NewServer wires the routes and middleware, returning a ready-to-run server.
func NewServer(addr, apiKey string, led *ledger.Service, dir *directory.Service, store *storage.SQLiteStore) *Server {
	s := &Server{
		ledger:       led,
		directory:    dir,
		store:        store,
		rateLimiter:  ratelimit.NewLimiter(ratelimit.DefaultConfig()),
		reportCache:  cache.NewLRUCache[core.YearReport](100, 5*time.Minute),
		cacheManager: cache.NewManager(),
	}

	s.cacheManager.Register(s.reportCache)
	s.cacheManager.StartCleanup(10 * time.Minute)

	tracer := trace.NewMiddleware(clientIP)
	authz := auth.NewMiddleware(apiKey)

	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)
	r.Use(tracer.Middleware)
	r.Use(s.rateLimiter.Middleware(clientIP, nil))

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)

	r.Route("/api/admins", func(r chi.Router) {
		r.Use(authz.Middleware)

		r.Route("/members", func(r chi.Router) {
			r.Get("/", s.handleListMembers)
			r.Post("/", s.handleCreateMember)
			r.Get("/{id}", s.handleGetMember)
			r.Put("/{id}", s.handleUpdateMember)
			r.Delete("/{id}", s.handleDeleteMember)
			r.Post("/{id}/contributions/{year}", s.handleEnsureContribution)
			r.Get("/{id}/contributions/{year}", s.handleGetMemberContribution)
		})

		r.Route("/districts", func(r chi.Router) {
			r.Get("/", s.handleListDistricts)
			r.Post("/", s.handleCreateDistrict)
			r.Delete("/{id}", s.handleDeleteDistrict)
		})

		r.Route("/tributes", func(r chi.Router) {
			r.Get("/", s.handleListTributes)
			r.Post("/", s.handleCreateTribute)
			r.Delete("/{id}", s.handleDeleteTribute)
		})

		r.Route("/contributions", func(r chi.Router) {
			r.Post("/generate/{year}", s.handleGenerateYear)
			r.Get("/years/{year}", s.handleListYear)
			r.Get("/years/{year}/report", s.handleYearReport)
			r.Get("/{id}", s.handleGetContribution)
			r.Put("/{id}", s.handleUpdateContribution)
			r.Delete("/{id}", s.handleDeleteContribution)
			r.Get("/{id}/payments", s.handleListContributionPayments)
			r.Post("/{id}/payments", s.handleRecordPayment)
		})

		r.Route("/payments", func(r chi.Router) {
			r.Get("/{id}", s.handleGetPayment)
			r.Put("/{id}", s.handleUpdatePayment)
			r.Delete("/{id}", s.handleDeletePayment)
		})
	})

	s.Server = http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Shutdown stops the server and its background cleanup routines.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		s.cacheManager.Stop()
		s.rateLimiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})

	return shutdownErr
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(r.Context()); err != nil {
		respondJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "database unavailable"})
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func reportCacheKey(year int) string {
	return fmt.Sprintf("report:%d", year)
}

// invalidateYear drops cached report variants after a ledger write.
func (s *Server) invalidateYear(year int) {
	s.reportCache.DeletePrefix(reportCacheKey(year))
}

// clientIP extracts the originating address, honoring proxy headers.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if i := strings.Index(fwd, ","); i >= 0 {
			return strings.TrimSpace(fwd[:i])
		}
		return strings.TrimSpace(fwd)
	}
	if real := r.Header.Get("X-Real-IP"); real != "" {
		return real
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
