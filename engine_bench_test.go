package goGuard

import (
	"context"
	"strconv"
	"testing"
	"time"
)

func BenchmarkCheckRateLimit(b *testing.B) {
	cfg := testConfig()
	cfg.RateLimit.Policies = map[Category]Policy{
		CategoryIP: {MaxRequests: 1 << 30, Window: time.Hour},
	}
	engine, _ := newTestEngine(b, cfg)
	ctx := context.Background()

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := engine.CheckRateLimit(ctx, CategoryIP, "10.0.0."+strconv.Itoa(i%256)); err != nil {
			b.Fatalf("CheckRateLimit: %v", err)
		}
	}
}

func BenchmarkRefreshAccessToken(b *testing.B) {
	idp := &rotatingIDP{}
	engine, _ := newTestEngine(b, testConfig(), func(bld *Builder) {
		bld.WithIdentityProvider(idp)
	})
	ctx := context.Background()
	token := "seed"

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		pair, err := engine.RefreshAccessToken(ctx, "bench", "user-1", token)
		if err != nil {
			b.Fatalf("RefreshAccessToken: %v", err)
		}
		token = pair.RefreshToken
	}
}
