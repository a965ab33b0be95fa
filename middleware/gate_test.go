package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	goGuard "github.com/MrEthical07/goGuard"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestEngine(t *testing.T, configure func(*goGuard.Builder)) (*goGuard.Engine, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis run failed: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	b := goGuard.New().WithRedis(rdb)
	if configure != nil {
		configure(b)
	}
	engine, err := b.Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(func() {
		engine.Close()
		_ = rdb.Close()
		mr.Close()
	})
	return engine, mr
}

func okHandler(calls *int) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*calls++
		w.WriteHeader(http.StatusOK)
	})
}

func doRequest(h http.Handler, remoteAddr, path string, header http.Header) *httptest.ResponseRecorder {
	r := httptest.NewRequest(http.MethodGet, "http://gateway"+path, nil)
	r.RemoteAddr = remoteAddr
	for k, v := range header {
		r.Header[k] = v
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	return w
}

func TestGateAllowsThenRejectsWithHeaders(t *testing.T) {
	engine, _ := newTestEngine(t, func(b *goGuard.Builder) {
		b.WithPolicy(goGuard.CategoryIP, goGuard.Policy{MaxRequests: 2, Window: time.Minute})
	})
	calls := 0
	h := Gate(engine, Options{})(okHandler(&calls))

	w := doRequest(h, "10.0.0.1:1234", "/", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if w.Header().Get("X-RateLimit-Limit") != "2" || w.Header().Get("X-RateLimit-Remaining") != "1" {
		t.Fatalf("unexpected headers: %v", w.Header())
	}

	doRequest(h, "10.0.0.1:1234", "/", nil)
	w = doRequest(h, "10.0.0.1:1234", "/", nil)
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", w.Code)
	}
	if w.Header().Get("Retry-After") != "60" {
		t.Fatalf("Retry-After = %q", w.Header().Get("Retry-After"))
	}
	if w.Header().Get("X-RateLimit-Remaining") != "0" {
		t.Fatalf("X-RateLimit-Remaining = %q", w.Header().Get("X-RateLimit-Remaining"))
	}
	if calls != 2 {
		t.Fatalf("handler called %d times, want 2", calls)
	}

	// Another client is unaffected.
	if w := doRequest(h, "10.0.0.2:1234", "/", nil); w.Code != http.StatusOK {
		t.Fatalf("other ip: expected 200, got %d", w.Code)
	}
}

func TestGateBlockedIPGetsForbiddenWithRetryAfterOnly(t *testing.T) {
	engine, _ := newTestEngine(t, nil)
	if err := engine.BlockIP(context.Background(), "10.0.0.9", 90*time.Second); err != nil {
		t.Fatal(err)
	}
	calls := 0
	h := Gate(engine, Options{})(okHandler(&calls))

	w := doRequest(h, "10.0.0.9:4000", "/", nil)
	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", w.Code)
	}
	if w.Header().Get("Retry-After") != "90" {
		t.Fatalf("Retry-After = %q", w.Header().Get("Retry-After"))
	}
	if w.Header().Get("X-RateLimit-Limit") != "" {
		t.Fatal("block denials must not carry limit headers")
	}
	if calls != 0 {
		t.Fatal("handler must not run")
	}
}

func TestGateLockedUser(t *testing.T) {
	engine, _ := newTestEngine(t, nil)
	engine.LockAccount(context.Background(), "alice", time.Hour)
	calls := 0
	h := Gate(engine, Options{UserFn: Header("X-User")})(okHandler(&calls))

	w := doRequest(h, "10.0.0.1:1", "/", http.Header{"X-User": {"alice"}})
	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", w.Code)
	}
	if w := doRequest(h, "10.0.0.1:1", "/", http.Header{"X-User": {"bob"}}); w.Code != http.StatusOK {
		t.Fatalf("bob: expected 200, got %d", w.Code)
	}
	if w := doRequest(h, "10.0.0.1:1", "/", nil); w.Code != http.StatusOK {
		t.Fatalf("anonymous: expected 200, got %d", w.Code)
	}
}

func TestGateEndpointCountsPerRoute(t *testing.T) {
	engine, _ := newTestEngine(t, func(b *goGuard.Builder) {
		b.WithPolicy(goGuard.CategoryEndpoint, goGuard.Policy{MaxRequests: 1, Window: time.Minute})
	})
	calls := 0
	h := Gate(engine, Options{Endpoint: true})(okHandler(&calls))

	if w := doRequest(h, "10.0.0.1:1", "/a", nil); w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if w := doRequest(h, "10.0.0.1:1", "/b", nil); w.Code != http.StatusOK {
		t.Fatalf("expected 200 for other route, got %d", w.Code)
	}
	if w := doRequest(h, "10.0.0.1:1", "/a", nil); w.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", w.Code)
	}
}

func TestGateFailOpenWhenStoreDown(t *testing.T) {
	engine, mr := newTestEngine(t, nil)
	calls := 0
	h := Gate(engine, Options{})(okHandler(&calls))

	mr.SetError("boom")
	w := doRequest(h, "10.0.0.1:1", "/", nil)
	if w.Code != http.StatusOK || calls != 1 {
		t.Fatalf("expected degraded pass-through, got %d", w.Code)
	}
	if w.Header().Get("X-RateLimit-Limit") != "" {
		t.Fatal("degraded verdicts must not advertise limits")
	}
}

type stubChecker struct {
	v   goGuard.Verdict
	err error
}

func (s stubChecker) CheckRateLimit(context.Context, goGuard.Category, string, ...string) (goGuard.Verdict, error) {
	return s.v, s.err
}

func TestGateErrorStatusMapping(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("%w: down", goGuard.ErrStoreUnavailable), http.StatusServiceUnavailable},
		{goGuard.ErrEngineNotReady, http.StatusServiceUnavailable},
		{goGuard.ErrInvalidIdentifier, http.StatusBadRequest},
		{goGuard.ErrRefreshInProgress, http.StatusConflict},
		{goGuard.ErrRefreshReuse, http.StatusUnauthorized},
		{errors.Join(goGuard.ErrUpstreamRefreshFailed, errors.New("x")), http.StatusBadGateway},
		{errors.New("surprise"), http.StatusInternalServerError},
	}
	for _, tc := range tests {
		calls := 0
		h := Gate(stubChecker{err: tc.err}, Options{})(okHandler(&calls))
		if w := doRequest(h, "10.0.0.1:1", "/", nil); w.Code != tc.want {
			t.Errorf("%v: status = %d, want %d", tc.err, w.Code, tc.want)
		}
		if calls != 0 {
			t.Errorf("%v: handler ran", tc.err)
		}
	}
}

func TestGateNilEngine(t *testing.T) {
	calls := 0
	h := Gate(nil, Options{})(okHandler(&calls))
	if w := doRequest(h, "10.0.0.1:1", "/", nil); w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", w.Code)
	}
}
