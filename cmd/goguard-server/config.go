package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	goGuard "github.com/MrEthical07/goGuard"
	"github.com/joho/godotenv"
)

type serverConfig struct {
	Addr       string
	AdminToken string
	TrustProxy bool

	Redis redisConfig

	IdentityProvider idpConfig

	SentryDSN         string
	SentryEnvironment string
	DatabaseURL       string
	AuditJSON         bool

	Guard goGuard.Config
}

type redisConfig struct {
	Addrs      []string
	Password   string
	DB         int
	MasterName string
}

type idpConfig struct {
	BaseURL         string
	ConnectTimeout  time.Duration
	ResponseTimeout time.Duration
	// Local runs an in-process identity provider with a throwaway key.
	Local bool
}

func loadConfig() (serverConfig, error) {
	_ = godotenv.Load()
	return configFromEnv(os.Getenv)
}

func configFromEnv(getenv func(string) string) (serverConfig, error) {
	env := envReader{get: getenv}

	cfg := serverConfig{
		Addr:              env.str("HTTP_ADDR", ":8080"),
		AdminToken:        env.str("ADMIN_TOKEN", ""),
		SentryDSN:         env.str("SENTRY_DSN", ""),
		SentryEnvironment: env.str("SENTRY_ENVIRONMENT", "production"),
		DatabaseURL:       env.str("DATABASE_URL", ""),
		Redis: redisConfig{
			Addrs:      splitList(env.str("REDIS_ADDRS", "localhost:6379")),
			Password:   env.str("REDIS_PASSWORD", ""),
			MasterName: env.str("REDIS_MASTER_NAME", ""),
		},
		IdentityProvider: idpConfig{
			BaseURL: env.str("IDP_BASE_URL", ""),
		},
		Guard: goGuard.DefaultConfig(),
	}

	cfg.TrustProxy = env.boolean("TRUST_PROXY", false)
	cfg.AuditJSON = env.boolean("AUDIT_JSON", false)
	cfg.Redis.DB = env.integer("REDIS_DB", 0)
	cfg.IdentityProvider.Local = env.boolean("IDP_LOCAL", false)
	cfg.IdentityProvider.ConnectTimeout = env.millis("IDP_CONNECT_TIMEOUT_MS", time.Second)
	cfg.IdentityProvider.ResponseTimeout = env.millis("IDP_RESPONSE_TIMEOUT_MS", 4*time.Second)

	g := &cfg.Guard
	g.RateLimit.FailOpen = env.boolean("RATE_LIMIT_FAIL_OPEN", g.RateLimit.FailOpen)
	for _, c := range goGuard.Categories() {
		prefix := "RATE_LIMIT_" + strings.ToUpper(c.String())
		if env.get(prefix+"_MAX") == "" && env.get(prefix+"_WINDOW_SECONDS") == "" {
			continue
		}
		p, _ := goGuard.DefaultPolicy(c)
		p.MaxRequests = env.integer(prefix+"_MAX", p.MaxRequests)
		p.Window = env.seconds(prefix+"_WINDOW_SECONDS", p.Window)
		if g.RateLimit.Policies == nil {
			g.RateLimit.Policies = make(map[goGuard.Category]goGuard.Policy)
		}
		g.RateLimit.Policies[c] = p
	}

	g.Failure.Window = env.seconds("FAILURE_WINDOW_SECONDS", g.Failure.Window)
	g.Failure.Threshold = env.integer("FAILURE_THRESHOLD", g.Failure.Threshold)
	g.Failure.BlockDuration = env.seconds("FAILURE_BLOCK_SECONDS", g.Failure.BlockDuration)

	g.Refresh.UpstreamTimeout = env.millis("REFRESH_UPSTREAM_TIMEOUT_MS", g.Refresh.UpstreamTimeout)
	g.Refresh.FallbackTokenTTL = env.seconds("REFRESH_FALLBACK_TTL_SECONDS", g.Refresh.FallbackTokenTTL)
	if key := env.str("TOKEN_HASH_KEY", ""); key != "" {
		g.Refresh.HashKey = []byte(key)
	}

	g.Store.OperationTimeout = env.millis("STORE_TIMEOUT_MS", g.Store.OperationTimeout)

	g.Metrics.Enabled = env.boolean("METRICS_ENABLED", true)
	g.Metrics.EnableLatencyHistograms = env.boolean("METRICS_LATENCY", true)

	g.Audit.Enabled = cfg.AuditJSON || cfg.SentryDSN != "" || cfg.DatabaseURL != ""
	g.Audit.BufferSize = env.integer("AUDIT_BUFFER", g.Audit.BufferSize)

	if env.err != nil {
		return serverConfig{}, env.err
	}
	if len(cfg.Redis.Addrs) == 0 {
		return serverConfig{}, fmt.Errorf("REDIS_ADDRS must list at least one address")
	}
	if cfg.IdentityProvider.BaseURL != "" && cfg.IdentityProvider.Local {
		return serverConfig{}, fmt.Errorf("IDP_BASE_URL and IDP_LOCAL are mutually exclusive")
	}
	if err := g.Validate(); err != nil {
		return serverConfig{}, fmt.Errorf("invalid guard config: %w", err)
	}
	return cfg, nil
}

// envReader keeps the first parse error so callers can read every
// variable and check once.
type envReader struct {
	get func(string) string
	err error
}

func (e *envReader) str(key, fallback string) string {
	v := strings.TrimSpace(e.get(key))
	if v == "" {
		return fallback
	}
	return v
}

func (e *envReader) integer(key string, fallback int) int {
	raw := e.str(key, "")
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		e.fail(fmt.Errorf("invalid %s: %w", key, err))
		return fallback
	}
	return v
}

func (e *envReader) boolean(key string, fallback bool) bool {
	raw := e.str(key, "")
	if raw == "" {
		return fallback
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		e.fail(fmt.Errorf("invalid %s: %w", key, err))
		return fallback
	}
	return v
}

func (e *envReader) seconds(key string, fallback time.Duration) time.Duration {
	return time.Duration(e.integer(key, int(fallback/time.Second))) * time.Second
}

func (e *envReader) millis(key string, fallback time.Duration) time.Duration {
	return time.Duration(e.integer(key, int(fallback/time.Millisecond))) * time.Millisecond
}

func (e *envReader) fail(err error) {
	if e.err == nil {
		e.err = err
	}
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
