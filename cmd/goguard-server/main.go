package main

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	goGuard "github.com/MrEthical07/goGuard"
	"github.com/MrEthical07/goGuard/audit/export/postgres"
	auditsentry "github.com/MrEthical07/goGuard/audit/export/sentry"
	"github.com/MrEthical07/goGuard/httpapi"
	"github.com/MrEthical07/goGuard/idp"
	"github.com/MrEthical07/goGuard/jwt"
	"github.com/MrEthical07/goGuard/metrics/export/prometheus"
	"github.com/getsentry/sentry-go"
	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

func main() {
	cfg, err := loadConfig()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	for _, w := range cfg.Guard.Lint() {
		log.Printf("config %s [%s]: %s", w.Code, w.Severity, w.Message)
	}

	if cfg.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:              cfg.SentryDSN,
			Environment:      cfg.SentryEnvironment,
			AttachStacktrace: true,
		}); err != nil {
			log.Fatalf("failed to init sentry: %v", err)
		}
		defer sentry.Flush(2 * time.Second)
	}

	rdb := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:      cfg.Redis.Addrs,
		Password:   cfg.Redis.Password,
		DB:         cfg.Redis.DB,
		MasterName: cfg.Redis.MasterName,
	})
	defer func() {
		if err := rdb.Close(); err != nil {
			log.Printf("failed to close redis: %v", err)
		}
	}()

	sinks, closeSinks, err := buildAuditSinks(cfg)
	if err != nil {
		log.Fatalf("failed to init audit sinks: %v", err)
	}
	defer closeSinks()

	r := chi.NewRouter()

	provider, err := buildIdentityProvider(cfg.IdentityProvider, r)
	if err != nil {
		log.Fatalf("failed to init identity provider: %v", err)
	}

	builder := goGuard.New().
		WithConfig(cfg.Guard).
		WithRedis(rdb).
		WithIdentityProvider(provider)
	if len(sinks) > 0 {
		builder = builder.WithAuditSink(goGuard.MultiSink(sinks))
	}
	engine, err := builder.Build()
	if err != nil {
		log.Fatalf("failed to build engine: %v", err)
	}
	defer engine.Close()

	pingCtx, cancelPing := context.WithTimeout(context.Background(), 3*time.Second)
	if err := engine.Ping(pingCtx); err != nil {
		log.Printf("redis not reachable at startup, continuing: %v", err)
	}
	cancelPing()

	r.Mount("/", httpapi.NewRouter(engine, httpapi.Options{
		AdminToken: cfg.AdminToken,
		TrustProxy: cfg.TrustProxy,
		Metrics:    prometheus.NewExporter(engine).Handler(),
	}))

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		log.Printf("goguard listening on %s", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Println("shutdown signal received")
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			log.Printf("server error: %v", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}
}

func buildAuditSinks(cfg serverConfig) ([]goGuard.AuditSink, func(), error) {
	var (
		sinks   []goGuard.AuditSink
		closers []func()
	)
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	if cfg.AuditJSON {
		sinks = append(sinks, goGuard.NewJSONWriterSink(os.Stdout))
	}
	if cfg.SentryDSN != "" {
		sinks = append(sinks, auditsentry.NewSink(sentry.CurrentHub()))
	}
	if cfg.DatabaseURL != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			closeAll()
			return nil, nil, fmt.Errorf("connect postgres: %w", err)
		}
		closers = append(closers, pool.Close)

		sink := postgres.NewSink(pool, 0)
		if err := sink.EnsureSchema(ctx); err != nil {
			closeAll()
			return nil, nil, err
		}
		sinks = append(sinks, sink)
	}
	return sinks, closeAll, nil
}

// buildIdentityProvider returns the upstream used for refresh. In local mode
// the dev provider is also mounted under /idp and a sample pair is logged.
func buildIdentityProvider(cfg idpConfig, r chi.Router) (goGuard.IdentityProvider, error) {
	switch {
	case cfg.BaseURL != "":
		client, err := idp.NewClient(idp.ClientConfig{
			BaseURL:         cfg.BaseURL,
			ConnectTimeout:  cfg.ConnectTimeout,
			ResponseTimeout: cfg.ResponseTimeout,
		})
		if err != nil {
			return nil, err
		}
		return client, nil
	case cfg.Local:
		pub, priv, err := ed25519.GenerateKey(rand.Reader)
		if err != nil {
			return nil, err
		}
		m, err := jwt.NewManager(jwt.Config{
			AccessTTL:     15 * time.Minute,
			RefreshTTL:    24 * time.Hour,
			SigningMethod: jwt.MethodEd25519,
			PrivateKey:    priv,
			PublicKey:     pub,
			Issuer:        "goguard-dev",
			KeyID:         "dev",
			VerifyKeys:    map[string][]byte{"dev": pub},
		})
		if err != nil {
			return nil, err
		}
		local, err := idp.NewLocal(m)
		if err != nil {
			return nil, err
		}
		r.Mount("/idp", local.Handler())

		pair, err := local.Issue("dev", "dev-user")
		if err != nil {
			return nil, err
		}
		log.Printf("local identity provider enabled; tenant=dev user=dev-user refresh_token=%s", pair.RefreshToken)
		return local, nil
	default:
		log.Println("no identity provider configured; /auth/refresh will answer 503")
		return nil, nil
	}
}
