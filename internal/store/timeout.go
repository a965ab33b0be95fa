package store

import (
	"context"
	"time"
)

// WithTimeout bounds every operation on c by d. A zero or negative d returns
// c unchanged.
func WithTimeout(c Client, d time.Duration) Client {
	if d <= 0 {
		return c
	}
	return &timeoutClient{next: c, timeout: d}
}

type timeoutClient struct {
	next    Client
	timeout time.Duration
}

func (t *timeoutClient) IncrWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, time.Duration, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return t.next.IncrWithTTL(ctx, key, ttl)
}

func (t *timeoutClient) GetWithTTL(ctx context.Context, key string) (string, time.Duration, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return t.next.GetWithTTL(ctx, key)
}

func (t *timeoutClient) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return t.next.Set(ctx, key, value, ttl)
}

func (t *timeoutClient) SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return t.next.SetNX(ctx, key, value, ttl)
}

func (t *timeoutClient) Delete(ctx context.Context, key string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return t.next.Delete(ctx, key)
}

func (t *timeoutClient) DeleteIfValue(ctx context.Context, key, value string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return t.next.DeleteIfValue(ctx, key, value)
}

func (t *timeoutClient) TTL(ctx context.Context, key string) (time.Duration, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return t.next.TTL(ctx, key)
}

func (t *timeoutClient) Exists(ctx context.Context, key string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return t.next.Exists(ctx, key)
}

// ScanWithTTL walks many pages, so it is bounded by the caller's context
// only.
func (t *timeoutClient) ScanWithTTL(ctx context.Context, prefix string) ([]Entry, error) {
	return t.next.ScanWithTTL(ctx, prefix)
}

func (t *timeoutClient) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return t.next.Ping(ctx)
}
