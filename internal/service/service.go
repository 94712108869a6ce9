package service

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/oakmere/wallcal/internal/hub"
	"github.com/oakmere/wallcal/internal/session"
	"github.com/oakmere/wallcal/internal/store"
	"github.com/oakmere/wallcal/pkg/config"
)

// Service is the request gateway: it authenticates admin requests, gates
// writes on document shape, invokes the document store, and triggers the
// broadcast hub. It holds no document state between requests.
type Service struct {
	appCtx   context.Context
	cfg      *config.Server
	logger   *slog.Logger
	store    store.Store
	sessions *session.Store
	hub      *hub.Hub
	mux      *http.ServeMux

	startedAt  time.Time
	routesOnce sync.Once

	rateLimiters map[string]*rate.Limiter
}

func NewService(
	ctx context.Context,
	logger *slog.Logger,
	cfg *config.Server,
	docs store.Store,
	sessions *session.Store,
	broadcaster *hub.Hub,
) *Service {

	rateLimiters := make(map[string]*rate.Limiter)
	rlLogger := logger.With("component", "rate-limiter")

	if rlConfig := cfg.RateLimiters.Auth; rlConfig.Limit > 0 {
		rateLimiters["auth"] = rate.NewLimiter(rate.Limit(rlConfig.Limit), rlConfig.Burst)
		rlLogger.Info("Initialized rate limiter for 'auth'", "limit", rlConfig.Limit, "burst", rlConfig.Burst)
	}
	if rlConfig := cfg.RateLimiters.Data; rlConfig.Limit > 0 {
		rateLimiters["data"] = rate.NewLimiter(rate.Limit(rlConfig.Limit), rlConfig.Burst)
		rlLogger.Info("Initialized rate limiter for 'data'", "limit", rlConfig.Limit, "burst", rlConfig.Burst)
	}
	if rlConfig := cfg.RateLimiters.Default; rlConfig.Limit > 0 {
		rateLimiters["default"] = rate.NewLimiter(rate.Limit(rlConfig.Limit), rlConfig.Burst)
		rlLogger.Info("Initialized rate limiter for 'default'", "limit", rlConfig.Limit, "burst", rlConfig.Burst)
	}

	return &Service{
		appCtx:       ctx,
		cfg:          cfg,
		logger:       logger,
		store:        docs,
		sessions:     sessions,
		hub:          broadcaster,
		mux:          http.NewServeMux(),
		rateLimiters: rateLimiters,
	}
}

func (s *Service) rateLimitMiddleware(next http.Handler, category string) http.Handler {
	limiter, ok := s.rateLimiters[category]
	if !ok {
		limiter, ok = s.rateLimiters["default"]
		if !ok {
			s.logger.Warn("No rate limiter configured for category and no default limiter present", "category", category)
			return next
		}
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !limiter.Allow() {
			s.logger.Warn("Rate limit exceeded", "category", category, "path", r.URL.Path, "remote_addr", r.RemoteAddr)
			http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// bearerToken pulls the token out of the Authorization header. Absent
// header, wrong scheme, and empty token all report as "no token supplied".
func bearerToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(authHeader, "Bearer ")
	if !ok {
		return ""
	}
	return strings.TrimSpace(token)
}

// requireAdmin guards write endpoints. Missing token and invalid token are
// distinct outcomes: 401 tells the client it never authenticated, 403 tells
// it the token it holds is stale. A stale token is revoked on sight so the
// client converges to a fresh login.
func (s *Service) requireAdmin(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			return
		}
		if !s.sessions.Validate(token) {
			s.sessions.Revoke(token)
			http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
			return
		}
		next(w, r)
	}
}

func (s *Service) routes() *http.ServeMux {
	s.routesOnce.Do(func() {
		s.mux.Handle("/api/auth/login", s.rateLimitMiddleware(http.HandlerFunc(s.loginHandler), "auth"))
		s.mux.Handle("/api/config", s.rateLimitMiddleware(http.HandlerFunc(s.configHandler), "default"))
		s.mux.Handle("/api/data/", s.rateLimitMiddleware(http.HandlerFunc(s.dataHandler), "data"))
		s.mux.Handle("/", http.HandlerFunc(s.rootHandler))
	})
	return s.mux
}

// Run mounts the routes, starts the liveness sweep, and serves until the
// app context is cancelled.
func (s *Service) Run() {

	mux := s.routes()

	go s.hub.Run(s.appCtx)

	s.logger.Info("Attempting to start server", "listen_addr", s.cfg.HttpBinding)

	srv := &http.Server{
		Addr:    s.cfg.HttpBinding,
		Handler: mux,
	}

	go func() {
		<-s.appCtx.Done()
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancelShutdown()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("Server shutdown error", "error", err)
		}
	}()

	s.startedAt = time.Now()

	if err := srv.ListenAndServe(); err != http.ErrServerClosed {
		s.logger.Error("HTTP server error", "error", err)
	}
}

// Handler exposes the composed mux so tests can drive the gateway without
// binding a port. The caller owns the hub's sweep lifecycle in that case.
func (s *Service) Handler() http.Handler {
	return s.routes()
}
