// Package web provides the HTTP server, pages and JSON API of the BOM
// comparison service.
package web

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"io/fs"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/JonMunkholm/bomdiff/internal/config"
	"github.com/JonMunkholm/bomdiff/internal/core"
	"github.com/JonMunkholm/bomdiff/internal/metrics"
	mw "github.com/JonMunkholm/bomdiff/internal/web/middleware"
)

//go:embed static
var staticFiles embed.FS

// HistoryLister returns recent comparison summaries, newest first.
type HistoryLister interface {
	Recent(ctx context.Context, limit int) ([]core.HistoryEntry, error)
}

// HealthChecker reports whether the comparison backend answers.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// Server is the HTTP server for the comparison UI and API.
type Server struct {
	cfg     *config.Config
	service *core.Service
	history HistoryLister
	backend HealthChecker
	router  *chi.Mux
	server  *http.Server

	limiters []*rateLimiter
}

// Option configures a Server.
type Option func(*Server)

// WithHistory enables the history page and API.
func WithHistory(h HistoryLister) Option {
	return func(s *Server) { s.history = h }
}

// WithBackendHealth includes the backend in /health.
func WithBackendHealth(h HealthChecker) Option {
	return func(s *Server) { s.backend = h }
}

// NewServer creates a new Server instance.
func NewServer(cfg *config.Config, service *core.Service, opts ...Option) *Server {
	s := &Server{
		cfg:     cfg,
		service: service,
		router:  chi.NewRouter(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

// setupMiddleware configures middleware for all routes.
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(mw.TrustedRealIP(s.cfg.Security.TrustedProxies))
	s.router.Use(mw.Logger)
	s.router.Use(middleware.Recoverer)
	if s.cfg.Metrics.Enabled {
		s.router.Use(metrics.Middleware)
	}
	s.router.Use(middleware.Compress(5))
	s.router.Use(middleware.Timeout(s.cfg.Server.RequestTimeout))

	// Security hardening
	s.router.Use(securityHeaders(s.cfg.Security.EnableCSP))

	if s.cfg.Rate.Enabled {
		limiter := s.newRateLimiter("global", s.cfg.Rate.RequestsPerMinute, time.Minute)
		s.router.Use(limiter.middleware)
	}
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	staticFS, err := fs.Sub(staticFiles, "static")
	if err != nil {
		panic(err)
	}
	s.router.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.FS(staticFS))))

	s.router.Get("/health", s.handleHealth)
	if s.cfg.Metrics.Enabled {
		s.router.Handle(s.cfg.Metrics.Path, metrics.Handler())
	}

	// Comparisons are expensive; they get their own, tighter limit.
	compareLimit := func(next http.Handler) http.Handler { return next }
	if s.cfg.Rate.Enabled {
		compareLimit = s.newRateLimiter("compare", s.cfg.Rate.CompareLimit, time.Minute).middleware
	}

	// Pages
	s.router.Get("/", s.handleIndex)
	s.router.Get("/history", s.handleHistoryPage)
	s.router.With(compareLimit).Post("/compare", s.handleCompareForm)
	s.router.Get("/compare/{id}", s.handleResults)
	s.router.Get("/compare/{id}/print", s.handlePrint)
	s.router.Post("/compare/{id}/discard", s.handleDiscard)

	// API routes
	s.router.Route("/api", func(r chi.Router) {
		r.Use(mw.APIKeyAuth(&s.cfg.Security))

		r.With(compareLimit).Post("/compare", s.handleAPICompare)
		r.Get("/compare/{id}", s.handleAPIView)
		r.Get("/compare/{id}/export", s.handleExport)
		r.Delete("/compare/{id}", s.handleAPIDiscard)
		r.Get("/history", s.handleAPIHistory)
	})
}

// Start begins listening for HTTP requests.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         s.cfg.Server.Addr(),
		Handler:      s.router,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
		IdleTimeout:  s.cfg.Server.IdleTimeout,
	}

	slog.Info("starting server", "addr", s.server.Addr)
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server and its background cleanup.
func (s *Server) Shutdown(ctx context.Context) error {
	for _, rl := range s.limiters {
		rl.stop()
	}
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router returns the underlying chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// contentSecurityPolicy allows the htmx script from unpkg and inline
// handlers used by the print view.
const contentSecurityPolicy = "default-src 'self'; script-src 'self' 'unsafe-inline' https://unpkg.com; style-src 'self' 'unsafe-inline'; img-src 'self' data:; font-src 'self'"

// securityHeaders adds security headers to all responses.
func securityHeaders(enableCSP bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Prevent MIME type sniffing
			w.Header().Set("X-Content-Type-Options", "nosniff")

			// Prevent clickjacking
			w.Header().Set("X-Frame-Options", "DENY")

			if enableCSP {
				w.Header().Set("Content-Security-Policy", contentSecurityPolicy)
			}

			// Control referrer information
			w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

			next.ServeHTTP(w, r)
		})
	}
}

// rateLimiter implements a simple token bucket rate limiter per IP.
type rateLimiter struct {
	name     string
	mu       sync.Mutex
	visitors map[string]*visitor
	rate     int           // requests per window
	window   time.Duration // time window
	now      func() time.Time
	done     chan struct{}
	stopOnce sync.Once
}

type visitor struct {
	tokens    int
	lastReset time.Time
}

// newRateLimiter creates a named limiter whose cleanup stops on Shutdown.
func (s *Server) newRateLimiter(name string, rate int, window time.Duration) *rateLimiter {
	rl := newRateLimiter(name, rate, window)
	s.limiters = append(s.limiters, rl)
	go rl.cleanup()
	return rl
}

func newRateLimiter(name string, rate int, window time.Duration) *rateLimiter {
	return &rateLimiter{
		name:     name,
		visitors: make(map[string]*visitor),
		rate:     rate,
		window:   window,
		now:      time.Now,
		done:     make(chan struct{}),
	}
}

// cleanup removes stale visitor entries every window until stopped.
func (rl *rateLimiter) cleanup() {
	ticker := time.NewTicker(rl.window)
	defer ticker.Stop()
	for {
		select {
		case <-rl.done:
			return
		case <-ticker.C:
			rl.evictStale()
		}
	}
}

func (rl *rateLimiter) evictStale() {
	now := rl.now()
	rl.mu.Lock()
	defer rl.mu.Unlock()
	for ip, v := range rl.visitors {
		if now.Sub(v.lastReset) > rl.window*2 {
			delete(rl.visitors, ip)
		}
	}
}

func (rl *rateLimiter) stop() {
	rl.stopOnce.Do(func() { close(rl.done) })
}

// allow checks if the request should be allowed and consumes a token if so.
func (rl *rateLimiter) allow(ip string) bool {
	now := rl.now()
	rl.mu.Lock()
	defer rl.mu.Unlock()

	v, exists := rl.visitors[ip]
	if !exists {
		rl.visitors[ip] = &visitor{
			tokens:    rl.rate - 1, // consume one token
			lastReset: now,
		}
		return true
	}

	// Reset tokens if window has passed
	if now.Sub(v.lastReset) > rl.window {
		v.tokens = rl.rate - 1
		v.lastReset = now
		return true
	}

	if v.tokens <= 0 {
		return false
	}

	v.tokens--
	return true
}

// middleware rate limits by client IP. TrustedRealIP has already replaced
// RemoteAddr with the client address when the request came via a proxy.
func (rl *rateLimiter) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := r.RemoteAddr
		if host, _, err := net.SplitHostPort(ip); err == nil {
			ip = host
		}

		if !rl.allow(ip) {
			metrics.NewRecorder().RateLimited(rl.name)
			w.Header().Set("Retry-After", strconv.Itoa(int(rl.window.Seconds())))
			writeError(w, r, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}

		next.ServeHTTP(w, r)
	})
}

// writeError writes a JSON error response for failures that happen before
// a handler runs. The message is logged and mapped to its user-facing form.
func writeError(w http.ResponseWriter, r *http.Request, status int, message string) {
	msg := core.MapError(errors.New(message))
	slog.Warn("http error",
		"status", status,
		"error", message,
		"path", r.URL.Path,
		"request_id", middleware.GetReqID(r.Context()),
	)
	respondErrorJSON(w, msg, status)
}

// writeJSON encodes v as JSON and writes it to w.
// Logs encoding errors since headers are already sent.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode error", "error", err)
	}
}
