package middleware

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strconv"

	goGuard "github.com/MrEthical07/goGuard"
)

// Checker is the part of goGuard.Engine the gate needs.
type Checker interface {
	CheckRateLimit(ctx context.Context, c goGuard.Category, identifier string, extra ...string) (goGuard.Verdict, error)
}

// Options configures [Gate].
type Options struct {
	// IPFn resolves the caller IP. Defaults to ClientIP(false).
	IPFn KeyFunc
	// UserFn, when set, resolves the user to check against CategoryUser.
	// Requests for which it returns "" skip the user check.
	UserFn KeyFunc
	// Endpoint also counts (ip, method, path) against CategoryEndpoint.
	Endpoint bool
	// RouteFn names the endpoint. Defaults to the URL path; pass a route
	// pattern resolver to keep high-cardinality paths out of the key space.
	RouteFn KeyFunc
}

// Gate returns middleware that admits a request only when every configured
// check allows it.
func Gate(engine Checker, opts Options) func(http.Handler) http.Handler {
	if opts.IPFn == nil {
		opts.IPFn = ClientIP(false)
	}
	if opts.RouteFn == nil {
		opts.RouteFn = func(r *http.Request) string { return r.URL.Path }
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if engine == nil {
				http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
				return
			}

			ip := opts.IPFn(r)
			ctx := goGuard.WithClientIP(r.Context(), ip)

			v, err := engine.CheckRateLimit(ctx, goGuard.CategoryIP, ip)
			if err != nil {
				writeDenied(w, v, err)
				return
			}
			setLimitHeaders(w, v)

			if opts.UserFn != nil {
				if user := opts.UserFn(r); user != "" {
					uv, err := engine.CheckRateLimit(ctx, goGuard.CategoryUser, user)
					if err != nil {
						writeDenied(w, uv, err)
						return
					}
				}
			}

			if opts.Endpoint {
				ev, err := engine.CheckRateLimit(ctx, goGuard.CategoryEndpoint, ip, r.Method, opts.RouteFn(r))
				if err != nil {
					writeDenied(w, ev, err)
					return
				}
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func setLimitHeaders(w http.ResponseWriter, v goGuard.Verdict) {
	if v.Limit <= 0 || v.Degraded {
		return
	}
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(v.Limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(v.Remaining))
}

// WriteError maps an Engine error to its HTTP status. Verdict headers are
// written when v carries them.
func WriteError(w http.ResponseWriter, v goGuard.Verdict, err error) {
	writeDenied(w, v, err)
}

func writeDenied(w http.ResponseWriter, v goGuard.Verdict, err error) {
	switch {
	case errors.Is(err, goGuard.ErrRateLimitExceeded):
		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(v.Limit))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(v.Remaining))
		setRetryAfter(w, v)
		http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
	case errors.Is(err, goGuard.ErrIPBlocked), errors.Is(err, goGuard.ErrAccountLocked):
		setRetryAfter(w, v)
		http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
	case errors.Is(err, goGuard.ErrRefreshInProgress):
		w.Header().Set("Retry-After", "1")
		http.Error(w, "refresh in progress", http.StatusConflict)
	case errors.Is(err, goGuard.ErrRefreshReuse):
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
	case errors.Is(err, goGuard.ErrUpstreamRefreshFailed):
		http.Error(w, http.StatusText(http.StatusBadGateway), http.StatusBadGateway)
	case errors.Is(err, goGuard.ErrStoreUnavailable),
		errors.Is(err, goGuard.ErrEngineNotReady),
		errors.Is(err, goGuard.ErrNoIdentityProvider):
		http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
	case errors.Is(err, goGuard.ErrInvalidCategory),
		errors.Is(err, goGuard.ErrInvalidIdentifier),
		errors.Is(err, goGuard.ErrInvalidDuration):
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
	default:
		log.Printf("goGuard: unexpected gate error: %v", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

func setRetryAfter(w http.ResponseWriter, v goGuard.Verdict) {
	if secs := v.RetryAfterSeconds(); secs > 0 {
		w.Header().Set("Retry-After", strconv.FormatInt(secs, 10))
	}
}
