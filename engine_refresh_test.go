package goGuard

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/MrEthical07/goGuard/internal/stores"
	"github.com/MrEthical07/goGuard/jwt"
	"github.com/alicebob/miniredis/v2"
)

// rotatingIDP issues tok-1, tok-2, ... and counts upstream calls.
type rotatingIDP struct {
	calls atomic.Int64
}

func (p *rotatingIDP) Refresh(ctx context.Context, tenantID, refreshToken string) (TokenPair, error) {
	n := p.calls.Add(1)
	return TokenPair{
		AccessToken:  fmt.Sprintf("access-%d", n),
		RefreshToken: fmt.Sprintf("refresh-%d", n),
	}, nil
}

func newRefreshEngine(t *testing.T, cfg Config, idp IdentityProvider) (*Engine, *miniredis.Miniredis) {
	t.Helper()
	return newTestEngine(t, cfg, func(b *Builder) {
		b.WithIdentityProvider(idp)
	})
}

func TestRefreshAccessTokenRotatesAndDetectsReuse(t *testing.T) {
	idp := &rotatingIDP{}
	engine, _ := newRefreshEngine(t, testConfig(), idp)
	ctx := context.Background()

	pair, err := engine.RefreshAccessToken(ctx, "acme", "alice", "token-x")
	if err != nil {
		t.Fatalf("first refresh: %v", err)
	}
	if pair.AccessToken != "access-1" || pair.RefreshToken != "refresh-1" {
		t.Fatalf("unexpected pair %+v", pair)
	}

	_, err = engine.RefreshAccessToken(ctx, "acme", "alice", "token-x")
	if !errors.Is(err, ErrRefreshReuse) {
		t.Fatalf("expected ErrRefreshReuse, got %v", err)
	}
	if got := idp.calls.Load(); got != 1 {
		t.Fatalf("upstream called %d times, want 1", got)
	}

	// The rotated token is still usable.
	if _, err := engine.RefreshAccessToken(ctx, "acme", "alice", "refresh-1"); err != nil {
		t.Fatalf("refresh with rotated token: %v", err)
	}

	snap := engine.MetricsSnapshot()
	if snap.Counters[MetricRefreshSuccess] != 2 || snap.Counters[MetricRefreshReuseDetected] != 1 {
		t.Fatalf("unexpected metrics %+v", snap.Counters)
	}
}

func TestRefreshBlacklistIsTenantScoped(t *testing.T) {
	engine, _ := newRefreshEngine(t, testConfig(), &rotatingIDP{})
	ctx := context.Background()

	if _, err := engine.RefreshAccessToken(ctx, "acme", "alice", "shared-token"); err != nil {
		t.Fatal(err)
	}
	if _, err := engine.RefreshAccessToken(ctx, "globex", "alice", "shared-token"); err != nil {
		t.Fatalf("other tenant should not see acme's blacklist: %v", err)
	}
}

func TestRefreshConcurrentSameUserOneWinner(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	var calls atomic.Int64
	idp := IdentityProviderFunc(func(ctx context.Context, tenantID, refreshToken string) (TokenPair, error) {
		calls.Add(1)
		close(entered)
		<-release
		return TokenPair{AccessToken: "a2", RefreshToken: "r2"}, nil
	})
	engine, _ := newRefreshEngine(t, testConfig(), idp)
	ctx := context.Background()

	var (
		wg       sync.WaitGroup
		firstErr error
		pair     TokenPair
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		pair, firstErr = engine.RefreshAccessToken(ctx, "acme", "alice", "r1")
	}()

	<-entered
	start := time.Now()
	_, err := engine.RefreshAccessToken(ctx, "acme", "alice", "r1")
	if !errors.Is(err, ErrRefreshInProgress) {
		t.Fatalf("expected ErrRefreshInProgress, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("loser waited %s instead of failing fast", elapsed)
	}

	close(release)
	wg.Wait()
	if firstErr != nil || pair.RefreshToken != "r2" {
		t.Fatalf("winner: pair=%+v err=%v", pair, firstErr)
	}
	if calls.Load() != 1 {
		t.Fatalf("upstream called %d times", calls.Load())
	}

	// The lease is released once the winner is done.
	if _, err := engine.RefreshAccessToken(ctx, "acme", "alice", "r1"); !errors.Is(err, ErrRefreshReuse) {
		t.Fatalf("expected reuse after winner rotated r1, got %v", err)
	}
}

func TestRefreshDifferentUsersDoNotContend(t *testing.T) {
	block := make(chan struct{})
	idp := IdentityProviderFunc(func(ctx context.Context, tenantID, refreshToken string) (TokenPair, error) {
		if refreshToken == "slow" {
			<-block
		}
		return TokenPair{AccessToken: "a", RefreshToken: refreshToken + "-next"}, nil
	})
	engine, _ := newRefreshEngine(t, testConfig(), idp)
	ctx := context.Background()

	done := make(chan error, 1)
	go func() {
		_, err := engine.RefreshAccessToken(ctx, "acme", "alice", "slow")
		done <- err
	}()

	if _, err := engine.RefreshAccessToken(ctx, "acme", "bob", "fast"); err != nil {
		t.Fatalf("bob should not wait for alice: %v", err)
	}
	close(block)
	if err := <-done; err != nil {
		t.Fatal(err)
	}
}

func TestRefreshUpstreamFailureKeepsTokenUsable(t *testing.T) {
	var fail atomic.Bool
	fail.Store(true)
	cause := errors.New("idp exploded")
	idp := IdentityProviderFunc(func(ctx context.Context, tenantID, refreshToken string) (TokenPair, error) {
		if fail.Load() {
			return TokenPair{}, cause
		}
		return TokenPair{AccessToken: "a", RefreshToken: "r-next"}, nil
	})
	engine, _ := newRefreshEngine(t, testConfig(), idp)
	ctx := context.Background()

	_, err := engine.RefreshAccessToken(ctx, "acme", "alice", "r1")
	if !errors.Is(err, ErrUpstreamRefreshFailed) || !errors.Is(err, cause) {
		t.Fatalf("expected upstream failure wrapping cause, got %v", err)
	}

	fail.Store(false)
	if _, err := engine.RefreshAccessToken(ctx, "acme", "alice", "r1"); err != nil {
		t.Fatalf("token must stay usable after upstream failure: %v", err)
	}
}

func TestRefreshUpstreamTimeout(t *testing.T) {
	cfg := testConfig()
	cfg.Refresh.UpstreamTimeout = 50 * time.Millisecond
	idp := IdentityProviderFunc(func(ctx context.Context, tenantID, refreshToken string) (TokenPair, error) {
		<-ctx.Done()
		return TokenPair{}, ctx.Err()
	})
	engine, _ := newRefreshEngine(t, cfg, idp)

	_, err := engine.RefreshAccessToken(context.Background(), "acme", "alice", "r1")
	if !errors.Is(err, ErrUpstreamRefreshFailed) || !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected upstream timeout, got %v", err)
	}
	// Lease released: a retry reaches the upstream again instead of LockBusy.
	_, err = engine.RefreshAccessToken(context.Background(), "acme", "alice", "r1")
	if errors.Is(err, ErrRefreshInProgress) {
		t.Fatal("lease leaked after upstream timeout")
	}
}

func TestRefreshUnrotatedPairIsUpstreamFailure(t *testing.T) {
	idp := IdentityProviderFunc(func(ctx context.Context, tenantID, refreshToken string) (TokenPair, error) {
		return TokenPair{AccessToken: "a", RefreshToken: refreshToken}, nil
	})
	engine, _ := newRefreshEngine(t, testConfig(), idp)

	if _, err := engine.RefreshAccessToken(context.Background(), "acme", "alice", "r1"); !errors.Is(err, ErrUpstreamRefreshFailed) {
		t.Fatalf("expected ErrUpstreamRefreshFailed, got %v", err)
	}
}

func TestRefreshFailsClosedWhenStoreDown(t *testing.T) {
	idp := &rotatingIDP{}
	engine, mr := newTestEngine(t, testConfig(), func(b *Builder) { b.WithIdentityProvider(idp) })

	mr.SetError("boom")
	_, err := engine.RefreshAccessToken(context.Background(), "acme", "alice", "r1")
	if !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable, got %v", err)
	}
	if idp.calls.Load() != 0 {
		t.Fatal("upstream must not be called when the lease cannot be acquired")
	}
	if got := engine.MetricsSnapshot().Counters[MetricRefreshStoreFailure]; got != 1 {
		t.Fatalf("store failure metric = %d", got)
	}
}

func TestRefreshInvalidInput(t *testing.T) {
	engine, _ := newRefreshEngine(t, testConfig(), &rotatingIDP{})
	ctx := context.Background()

	if _, err := engine.RefreshAccessToken(ctx, "", "alice", "r1"); !errors.Is(err, ErrInvalidIdentifier) {
		t.Fatalf("empty tenant: %v", err)
	}
	if _, err := engine.RefreshAccessToken(ctx, "acme", "", "r1"); !errors.Is(err, ErrInvalidIdentifier) {
		t.Fatalf("empty user: %v", err)
	}
	if _, err := engine.RefreshAccessToken(ctx, "acme", "alice", ""); !errors.Is(err, ErrInvalidIdentifier) {
		t.Fatalf("empty token: %v", err)
	}
}

func TestRefreshWithoutIdentityProvider(t *testing.T) {
	engine, _ := newTestEngine(t, testConfig())

	if _, err := engine.RefreshAccessToken(context.Background(), "acme", "alice", "r1"); !errors.Is(err, ErrNoIdentityProvider) {
		t.Fatalf("expected ErrNoIdentityProvider, got %v", err)
	}
}

func TestBlacklistTTLFollowsTokenExpiry(t *testing.T) {
	m, err := jwt.NewManager(jwt.Config{
		AccessTTL:     time.Minute,
		RefreshTTL:    2 * time.Hour,
		SigningMethod: jwt.MethodHS256,
		PrivateKey:    []byte("test-secret"),
	})
	if err != nil {
		t.Fatal(err)
	}
	pair, err := m.IssuePair("alice", "acme")
	if err != nil {
		t.Fatal(err)
	}

	engine, mr := newRefreshEngine(t, testConfig(), &rotatingIDP{})

	if _, err := engine.RefreshAccessToken(context.Background(), "acme", "alice", pair.RefreshToken); err != nil {
		t.Fatal(err)
	}
	key := stores.BlacklistKey("acme", engine.blacklist.Hash(pair.RefreshToken))
	ttl := mr.TTL(key)
	if ttl < 2*time.Hour-time.Minute || ttl > 2*time.Hour {
		t.Fatalf("blacklist ttl = %s, want about 2h", ttl)
	}
	if mr.Exists(pair.RefreshToken) {
		t.Fatal("raw token must never be stored")
	}
}

func TestBlacklistTTLFallbackAndFloor(t *testing.T) {
	engine, _ := newTestEngine(t, testConfig())

	if got := engine.blacklistTTL("opaque-token"); got != 7*24*time.Hour {
		t.Fatalf("opaque token ttl = %s, want fallback", got)
	}

	m, err := jwt.NewManager(jwt.Config{
		AccessTTL:     time.Second,
		RefreshTTL:    5 * time.Second,
		SigningMethod: jwt.MethodHS256,
		PrivateKey:    []byte("test-secret"),
	})
	if err != nil {
		t.Fatal(err)
	}
	pair, _ := m.IssuePair("alice", "acme")
	if got := engine.blacklistTTL(pair.RefreshToken); got != time.Minute {
		t.Fatalf("nearly expired token ttl = %s, want floor of 1m", got)
	}
}

func TestRefreshRejectsDotSegmentTenant(t *testing.T) {
	idp := &rotatingIDP{}
	engine, _ := newRefreshEngine(t, testConfig(), idp)

	for _, tenant := range []string{".", ".."} {
		_, err := engine.RefreshAccessToken(context.Background(), tenant, "alice", "token-x")
		if !errors.Is(err, ErrInvalidIdentifier) {
			t.Fatalf("tenant %q: expected ErrInvalidIdentifier, got %v", tenant, err)
		}
	}
	if got := idp.calls.Load(); got != 0 {
		t.Fatalf("upstream called %d times", got)
	}
}
