package httpapi

import (
	"context"
	"crypto/subtle"
	"net/http"
	"time"

	goGuard "github.com/MrEthical07/goGuard"
	"github.com/MrEthical07/goGuard/middleware"
	"github.com/go-chi/chi/v5"
)

// Engine is the subset of goGuard.Engine served over HTTP.
type Engine interface {
	middleware.Checker
	GetRateLimitStatus(ctx context.Context, c goGuard.Category, identifier string, extra ...string) (goGuard.Verdict, error)
	ResetRateLimit(ctx context.Context, c goGuard.Category, identifier, adminID string, extra ...string) error
	RecordFailureWithResult(ctx context.Context, c goGuard.Category, identifier string) (goGuard.FailureResult, error)
	BlockIP(ctx context.Context, ip string, d time.Duration) error
	UnblockIP(ctx context.Context, ip string) (bool, error)
	GetBlockedIPs(ctx context.Context) ([]goGuard.DenyEntry, error)
	LockAccount(ctx context.Context, userID string, d time.Duration) error
	UnlockAccount(ctx context.Context, userID string) (bool, error)
	GetLockedAccounts(ctx context.Context) ([]goGuard.DenyEntry, error)
	RefreshAccessToken(ctx context.Context, tenantID, userID, refreshToken string) (goGuard.TokenPair, error)
	SecurityReport() goGuard.SecurityReport
	Ping(ctx context.Context) error
}

// Options configures [NewRouter].
type Options struct {
	// AdminToken enables the /admin routes. Requests must present it in
	// X-Admin-Token.
	AdminToken string
	// TrustProxy resolves client IPs from X-Forwarded-For / X-Real-IP.
	TrustProxy bool
	// Metrics is mounted at /admin/metrics when set.
	Metrics http.Handler
	// MaxBodyBytes bounds JSON request bodies. Defaults to 64 KiB.
	MaxBodyBytes int64
}

type server struct {
	engine   Engine
	opts     Options
	clientIP middleware.KeyFunc
}

// NewRouter builds the HTTP surface for engine.
func NewRouter(engine Engine, opts Options) http.Handler {
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = 64 << 10
	}
	s := &server{engine: engine, opts: opts, clientIP: middleware.ClientIP(opts.TrustProxy)}

	r := chi.NewRouter()
	r.Get("/healthz", s.handleHealth)

	gate := middleware.Gate(engine, middleware.Options{IPFn: s.clientIP})
	r.With(gate).Post("/auth/refresh", s.handleRefresh)

	if opts.AdminToken != "" {
		// Failure reports require the operator credential.
		r.With(s.requireAdmin).Post("/auth/failures", s.handleFailure)

		r.Route("/admin", func(r chi.Router) {
			r.Use(s.requireAdmin)
			r.Get("/ratelimit/{category}/{identifier}", s.handleRateLimitStatus)
			r.Delete("/ratelimit/{category}/{identifier}", s.handleRateLimitReset)
			r.Get("/blocked-ips", s.handleListBlocked)
			r.Put("/blocked-ips/{ip}", s.handleBlockIP)
			r.Delete("/blocked-ips/{ip}", s.handleUnblockIP)
			r.Get("/locked-accounts", s.handleListLocked)
			r.Put("/locked-accounts/{userID}", s.handleLockAccount)
			r.Delete("/locked-accounts/{userID}", s.handleUnlockAccount)
			r.Get("/security-report", s.handleSecurityReport)
			if opts.Metrics != nil {
				r.Method(http.MethodGet, "/metrics", opts.Metrics)
			}
		})
	}

	return r
}

func (s *server) requireAdmin(next http.Handler) http.Handler {
	want := []byte(s.opts.AdminToken)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got := []byte(r.Header.Get("X-Admin-Token"))
		if subtle.ConstantTimeCompare(got, want) != 1 {
			writeJSON(w, http.StatusUnauthorized, errorBody{Error: "unauthorized"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.Ping(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
