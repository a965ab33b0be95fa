package limiters

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/MrEthical07/goGuard/internal/rate"
	"github.com/MrEthical07/goGuard/internal/store"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, store.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = rdb.Close()
		mr.Close()
	})
	return mr, store.NewRedis(rdb)
}

func testFailureConfig() FailureConfig {
	return FailureConfig{
		Window:        5 * time.Minute,
		Threshold:     10,
		BlockDuration: 30 * time.Minute,
	}
}

func TestDenyListBlockRoundTrip(t *testing.T) {
	mr, s := newTestRedis(t)
	ctx := context.Background()
	blocks := NewDenyList(s, BlockedIPPrefix)

	created, err := blocks.Add(ctx, "1.2.3.4", 30*time.Second)
	if err != nil || !created {
		t.Fatalf("Add: created=%v err=%v", created, err)
	}
	if !mr.Exists("blocked_ip:1.2.3.4") {
		t.Fatal("expected blocked_ip:1.2.3.4 key")
	}

	blocked, err := blocks.Contains(ctx, "1.2.3.4")
	if err != nil || !blocked {
		t.Fatalf("Contains: blocked=%v err=%v", blocked, err)
	}

	mr.FastForward(30 * time.Second)

	blocked, err = blocks.Contains(ctx, "1.2.3.4")
	if err != nil || blocked {
		t.Fatalf("expected expiry: blocked=%v err=%v", blocked, err)
	}
}

func TestDenyListOverwriteRefreshesTTL(t *testing.T) {
	mr, s := newTestRedis(t)
	ctx := context.Background()
	locks := NewDenyList(s, LockedAccountPrefix)

	if _, err := locks.Add(ctx, "u1", time.Minute); err != nil {
		t.Fatal(err)
	}
	mr.FastForward(50 * time.Second)
	created, err := locks.Add(ctx, "u1", time.Minute)
	if err != nil || !created {
		t.Fatalf("overwrite: created=%v err=%v", created, err)
	}
	ttl, found, err := locks.TTL(ctx, "u1")
	if err != nil || !found || ttl != time.Minute {
		t.Fatalf("ttl=%s found=%v err=%v", ttl, found, err)
	}
}

func TestDenyListRemoveIsIdempotent(t *testing.T) {
	_, s := newTestRedis(t)
	ctx := context.Background()
	blocks := NewDenyList(s, BlockedIPPrefix)

	if _, err := blocks.Add(ctx, "5.6.7.8", time.Minute); err != nil {
		t.Fatal(err)
	}
	removed, err := blocks.Remove(ctx, "5.6.7.8")
	if err != nil || !removed {
		t.Fatalf("Remove: removed=%v err=%v", removed, err)
	}
	removed, err = blocks.Remove(ctx, "5.6.7.8")
	if err != nil || removed {
		t.Fatalf("second Remove: removed=%v err=%v", removed, err)
	}
	if _, found, _ := blocks.TTL(ctx, "5.6.7.8"); found {
		t.Fatal("expected no ttl after remove")
	}
}

func TestDenyListRejectsNonPositiveDuration(t *testing.T) {
	_, s := newTestRedis(t)
	blocks := NewDenyList(s, BlockedIPPrefix)
	if _, err := blocks.Add(context.Background(), "1.1.1.1", 0); !errors.Is(err, ErrInvalidDuration) {
		t.Fatalf("expected ErrInvalidDuration, got %v", err)
	}
}

func TestDenyListListUnescapesIDsAndIsolatesPrefixes(t *testing.T) {
	_, s := newTestRedis(t)
	ctx := context.Background()
	blocks := NewDenyList(s, BlockedIPPrefix)
	locks := NewDenyList(s, LockedAccountPrefix)

	ids := []string{"1.2.3.4", "2001:db8::1", "10.0.0.9"}
	for _, id := range ids {
		if _, err := blocks.Add(ctx, id, time.Hour); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := locks.Add(ctx, "user_1", time.Hour); err != nil {
		t.Fatal(err)
	}

	entries, err := blocks.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	got := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.TTL <= 0 || e.TTL > time.Hour {
			t.Fatalf("bad ttl for %s: %s", e.ID, e.TTL)
		}
		got = append(got, e.ID)
	}
	sort.Strings(got)
	want := append([]string(nil), ids...)
	sort.Strings(want)
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}

	lockEntries, err := locks.List(ctx)
	if err != nil || len(lockEntries) != 1 || lockEntries[0].ID != "user_1" {
		t.Fatalf("locks: %+v err=%v", lockEntries, err)
	}
}

func TestFailureTrackerBlocksAtThreshold(t *testing.T) {
	mr, s := newTestRedis(t)
	ctx := context.Background()
	blocks := NewDenyList(s, BlockedIPPrefix)
	tracker := NewFailureTracker(s, testFailureConfig(), blocks)

	for i := 1; i < 10; i++ {
		out, err := tracker.RecordFailure(ctx, rate.CategoryLogin, "1.2.3.4")
		if err != nil {
			t.Fatalf("failure %d: %v", i, err)
		}
		if out.Blocked || out.Count != int64(i) {
			t.Fatalf("failure %d: %+v", i, out)
		}
	}

	out, err := tracker.RecordFailure(ctx, rate.CategoryLogin, "1.2.3.4")
	if err != nil {
		t.Fatalf("10th failure: %v", err)
	}
	if !out.Blocked || out.BlockTTL != 30*time.Minute {
		t.Fatalf("expected block at threshold: %+v", out)
	}
	if ttl := mr.TTL("blocked_ip:1.2.3.4"); ttl != 30*time.Minute {
		t.Fatalf("block ttl = %s", ttl)
	}
	if mr.Exists("locked_account:1.2.3.4") {
		t.Fatal("failure tracker must never lock accounts")
	}
}

func TestFailureTrackerWindowIsIndependentAndFixed(t *testing.T) {
	mr, s := newTestRedis(t)
	ctx := context.Background()
	tracker := NewFailureTracker(s, testFailureConfig(), NewDenyList(s, BlockedIPPrefix))

	for i := 0; i < 9; i++ {
		if _, err := tracker.RecordFailure(ctx, rate.CategoryInvalidToken, "9.9.9.9"); err != nil {
			t.Fatal(err)
		}
	}
	if mr.Exists("invalid_token:9.9.9.9") {
		t.Fatal("failure counter must not share the decision engine key")
	}

	mr.FastForward(5*time.Minute + time.Second)

	out, err := tracker.RecordFailure(ctx, rate.CategoryInvalidToken, "9.9.9.9")
	if err != nil {
		t.Fatal(err)
	}
	if out.Count != 1 || out.Blocked {
		t.Fatalf("expected new window: %+v", out)
	}
}

func TestFailureTrackerCountAndReset(t *testing.T) {
	_, s := newTestRedis(t)
	ctx := context.Background()
	tracker := NewFailureTracker(s, testFailureConfig(), NewDenyList(s, BlockedIPPrefix))

	for i := 0; i < 3; i++ {
		if _, err := tracker.RecordFailure(ctx, rate.CategoryLogin, "7.7.7.7"); err != nil {
			t.Fatal(err)
		}
	}
	n, err := tracker.Count(ctx, rate.CategoryLogin, "7.7.7.7")
	if err != nil || n != 3 {
		t.Fatalf("count=%d err=%v", n, err)
	}
	if err := tracker.Reset(ctx, rate.CategoryLogin, "7.7.7.7"); err != nil {
		t.Fatal(err)
	}
	n, err = tracker.Count(ctx, rate.CategoryLogin, "7.7.7.7")
	if err != nil || n != 0 {
		t.Fatalf("after reset count=%d err=%v", n, err)
	}
}

func TestFailureTrackerRejectsUntrackedCategories(t *testing.T) {
	_, s := newTestRedis(t)
	tracker := NewFailureTracker(s, testFailureConfig(), NewDenyList(s, BlockedIPPrefix))
	for _, c := range []rate.Category{rate.CategoryIP, rate.CategoryUser, rate.CategoryEndpoint, rate.CategoryOTP, rate.CategoryTokenRefresh} {
		if _, err := tracker.RecordFailure(context.Background(), c, "x"); !errors.Is(err, ErrNotTracked) {
			t.Fatalf("%s: expected ErrNotTracked, got %v", c, err)
		}
	}
}

func TestFailureTrackerConcurrentFailuresAllCounted(t *testing.T) {
	_, s := newTestRedis(t)
	ctx := context.Background()
	blocks := NewDenyList(s, BlockedIPPrefix)
	tracker := NewFailureTracker(s, testFailureConfig(), blocks)

	var wg sync.WaitGroup
	for i := 0; i < 25; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = tracker.RecordFailure(ctx, rate.CategoryLogin, "3.3.3.3")
		}()
	}
	wg.Wait()

	n, err := tracker.Count(ctx, rate.CategoryLogin, "3.3.3.3")
	if err != nil || n != 25 {
		t.Fatalf("count=%d err=%v", n, err)
	}
	blocked, err := blocks.Contains(ctx, "3.3.3.3")
	if err != nil || !blocked {
		t.Fatalf("expected block: blocked=%v err=%v", blocked, err)
	}
}

func TestStoreOutageSurfacesUnavailable(t *testing.T) {
	mr, s := newTestRedis(t)
	ctx := context.Background()
	blocks := NewDenyList(s, BlockedIPPrefix)
	tracker := NewFailureTracker(s, testFailureConfig(), blocks)
	mr.SetError("ERR connection reset")

	if _, err := blocks.Contains(ctx, "1.1.1.1"); !errors.Is(err, store.ErrUnavailable) {
		t.Fatalf("Contains: %v", err)
	}
	if _, err := blocks.List(ctx); !errors.Is(err, store.ErrUnavailable) {
		t.Fatalf("List: %v", err)
	}
	if _, err := tracker.RecordFailure(ctx, rate.CategoryLogin, "1.1.1.1"); !errors.Is(err, store.ErrUnavailable) {
		t.Fatalf("RecordFailure: %v", err)
	}
}
