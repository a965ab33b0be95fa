package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const scanPageSize = 1000

// A counter found without expiry is re-armed so a lost PEXPIRE cannot pin it.
const incrWithTTLScript = `
local count = redis.call('INCR', KEYS[1])
local ttl = redis.call('PTTL', KEYS[1])
if count == 1 or ttl < 0 then
  redis.call('PEXPIRE', KEYS[1], ARGV[1])
  ttl = tonumber(ARGV[1])
end
return {count, ttl}
`

const deleteIfValueScript = `
if redis.call('GET', KEYS[1]) == ARGV[1] then
  return redis.call('DEL', KEYS[1])
end
return 0
`

var (
	incrWithTTLLua   = redis.NewScript(incrWithTTLScript)
	deleteIfValueLua = redis.NewScript(deleteIfValueScript)
)

// Redis implements [Client] over any go-redis universal client (single node,
// sentinel or cluster).
type Redis struct {
	redis redis.UniversalClient
}

// NewRedis wraps client. The caller keeps ownership and closes it.
func NewRedis(client redis.UniversalClient) *Redis {
	return &Redis{redis: client}
}

func (r *Redis) IncrWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, time.Duration, error) {
	if ttl <= 0 {
		return 0, 0, errors.New("store: counter ttl must be > 0")
	}
	raw, err := incrWithTTLLua.Run(ctx, r.redis, []string{key}, ttl.Milliseconds()).Slice()
	if err != nil {
		return 0, 0, unavailable(err)
	}
	if len(raw) != 2 {
		return 0, 0, fmt.Errorf("%w: unexpected script reply length %d", ErrUnavailable, len(raw))
	}
	count, ok := raw[0].(int64)
	if !ok {
		return 0, 0, fmt.Errorf("%w: unexpected counter reply %T", ErrUnavailable, raw[0])
	}
	remaining, ok := raw[1].(int64)
	if !ok {
		return 0, 0, fmt.Errorf("%w: unexpected ttl reply %T", ErrUnavailable, raw[1])
	}
	return count, time.Duration(remaining) * time.Millisecond, nil
}

func (r *Redis) GetWithTTL(ctx context.Context, key string) (string, time.Duration, bool, error) {
	pipe := r.redis.Pipeline()
	getCmd := pipe.Get(ctx, key)
	ttlCmd := pipe.PTTL(ctx, key)
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return "", 0, false, unavailable(err)
	}

	value, err := getCmd.Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", 0, false, nil
		}
		return "", 0, false, unavailable(err)
	}
	ttl, found := normalizeTTL(ttlCmd.Val())
	if !found {
		return "", 0, false, nil
	}
	return value, ttl, true, nil
}

func (r *Redis) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := r.redis.Set(ctx, key, value, ttl).Err(); err != nil {
		return unavailable(err)
	}
	return nil
}

func (r *Redis) SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	ok, err := r.redis.SetNX(ctx, key, value, ttl).Result()
	if err != nil {
		return false, unavailable(err)
	}
	return ok, nil
}

func (r *Redis) Delete(ctx context.Context, key string) (bool, error) {
	n, err := r.redis.Del(ctx, key).Result()
	if err != nil {
		return false, unavailable(err)
	}
	return n > 0, nil
}

func (r *Redis) DeleteIfValue(ctx context.Context, key, value string) (bool, error) {
	n, err := deleteIfValueLua.Run(ctx, r.redis, []string{key}, value).Int64()
	if err != nil {
		return false, unavailable(err)
	}
	return n > 0, nil
}

func (r *Redis) TTL(ctx context.Context, key string) (time.Duration, bool, error) {
	d, err := r.redis.PTTL(ctx, key).Result()
	if err != nil {
		return 0, false, unavailable(err)
	}
	ttl, found := normalizeTTL(d)
	return ttl, found, nil
}

func (r *Redis) Exists(ctx context.Context, key string) (bool, error) {
	n, err := r.redis.Exists(ctx, key).Result()
	if err != nil {
		return false, unavailable(err)
	}
	return n > 0, nil
}

// ScanWithTTL walks every key starting with prefix. Each SCAN page costs one
// extra pipelined round trip for its TTLs, regardless of page size. On a
// cluster every master is scanned.
func (r *Redis) ScanWithTTL(ctx context.Context, prefix string) ([]Entry, error) {
	pattern := escapeGlob(prefix) + "*"

	cluster, ok := r.redis.(*redis.ClusterClient)
	if !ok {
		out, err := scanNode(ctx, r.redis, pattern)
		if err != nil {
			return nil, unavailable(err)
		}
		return out, nil
	}

	var (
		mu  sync.Mutex
		out []Entry
	)
	err := cluster.ForEachMaster(ctx, func(ctx context.Context, node *redis.Client) error {
		entries, err := scanNode(ctx, node, pattern)
		if err != nil {
			return err
		}
		mu.Lock()
		out = append(out, entries...)
		mu.Unlock()
		return nil
	})
	if err != nil {
		return nil, unavailable(err)
	}
	return out, nil
}

func scanNode(ctx context.Context, c redis.Cmdable, pattern string) ([]Entry, error) {
	var (
		cursor uint64
		out    []Entry
	)
	for {
		keys, next, err := c.Scan(ctx, cursor, pattern, scanPageSize).Result()
		if err != nil {
			return nil, err
		}

		if len(keys) > 0 {
			pipe := c.Pipeline()
			cmds := make([]*redis.DurationCmd, len(keys))
			for i, key := range keys {
				cmds[i] = pipe.PTTL(ctx, key)
			}
			if _, err := pipe.Exec(ctx); err != nil {
				return nil, err
			}
			for i, key := range keys {
				ttl, found := normalizeTTL(cmds[i].Val())
				if !found {
					continue
				}
				out = append(out, Entry{Key: key, TTL: ttl})
			}
		}

		cursor = next
		if cursor == 0 {
			return out, nil
		}
	}
}

func (r *Redis) Ping(ctx context.Context) error {
	if err := r.redis.Ping(ctx).Err(); err != nil {
		return unavailable(err)
	}
	return nil
}

// normalizeTTL maps the PTTL sentinels: -2 means missing, -1 means the key
// exists without expiry (reported as zero).
func normalizeTTL(d time.Duration) (time.Duration, bool) {
	switch {
	case d == -2 || d == -2*time.Millisecond:
		return 0, false
	case d < 0:
		return 0, true
	default:
		return d, true
	}
}

func escapeGlob(s string) string {
	if !strings.ContainsAny(s, `*?[]\`) {
		return s
	}
	var b strings.Builder
	b.Grow(len(s) + 4)
	for _, r := range s {
		switch r {
		case '*', '?', '[', ']', '\\':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

func unavailable(err error) error {
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}
