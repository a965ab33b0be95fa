package goGuard

import (
	"errors"
	"time"

	"github.com/MrEthical07/goGuard/internal/limiters"
	"github.com/MrEthical07/goGuard/internal/rate"
	"github.com/MrEthical07/goGuard/internal/store"
	"github.com/MrEthical07/goGuard/internal/stores"
	"github.com/redis/go-redis/v9"
	xrate "golang.org/x/time/rate"
)

// Builder assembles an [Engine]. A Builder can be built once.
type Builder struct {
	config Config
	redis  redis.UniversalClient

	idp       IdentityProvider
	auditSink AuditSink

	built bool
}

// New returns a Builder seeded with [DefaultConfig].
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis sets the shared store. Any go-redis client works: single node,
// cluster, sentinel failover or ring.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithPolicy overrides the policy of one category.
func (b *Builder) WithPolicy(c Category, p Policy) *Builder {
	if b.config.RateLimit.Policies == nil {
		b.config.RateLimit.Policies = make(map[Category]Policy)
	}
	b.config.RateLimit.Policies[c] = p
	return b
}

// WithIdentityProvider wires the upstream used by [Engine.RefreshAccessToken].
// Without one, refresh calls fail with [ErrNoIdentityProvider].
func (b *Builder) WithIdentityProvider(idp IdentityProvider) *Builder {
	b.idp = idp
	return b
}

func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and wires every component. It performs
// no store I/O; use [Engine.Ping] to probe connectivity.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)

	if b.redis == nil {
		return nil, errors.New("redis client required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	// -------- POLICIES --------
	registry, err := rate.NewRegistry(cfg.RateLimit.Policies)
	if err != nil {
		return nil, err
	}

	// -------- STORE --------
	st := store.WithTimeout(store.NewRedis(b.redis), cfg.Store.OperationTimeout)

	blocks := limiters.NewDenyList(st, limiters.BlockedIPPrefix)
	locks := limiters.NewDenyList(st, limiters.LockedAccountPrefix)

	blacklist, err := stores.NewBlacklist(st, cfg.Refresh.HashKey)
	if err != nil {
		return nil, err
	}

	engine := &Engine{
		config:   cloneConfig(cfg),
		store:    st,
		policies: registry,
		counter:  rate.NewCounter(st),
		blocks:   blocks,
		locks:    locks,
		failures: limiters.NewFailureTracker(st, limiters.FailureConfig{
			Window:        cfg.Failure.Window,
			Threshold:     cfg.Failure.Threshold,
			BlockDuration: cfg.Failure.BlockDuration,
		}, blocks),
		locker:    stores.NewLocker(st, RefreshLeaseTTL),
		blacklist: blacklist,
		idp:       b.idp,
		audit:     newAuditDispatcher(cfg.Audit, b.auditSink),
		metrics:   NewMetrics(cfg.Metrics),
		warnLimit: xrate.NewLimiter(xrate.Every(10*time.Second), 5),
		now:       time.Now,
	}
	engine.flowDeps = engine.buildFlowDeps()

	b.built = true

	return engine, nil
}
