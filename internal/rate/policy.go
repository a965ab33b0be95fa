package rate

import (
	"fmt"
	"time"
)

// Policy is the limit rule for one category.
type Policy struct {
	MaxRequests int
	Window      time.Duration
}

// Validate rejects policies that could never admit a request or never expire.
func (p Policy) Validate() error {
	if p.MaxRequests <= 0 {
		return fmt.Errorf("MaxRequests must be > 0, got %d", p.MaxRequests)
	}
	if p.Window < time.Second {
		return fmt.Errorf("Window must be >= 1s, got %s", p.Window)
	}
	return nil
}

// DefaultPolicy returns the built-in policy for c.
func DefaultPolicy(c Category) (Policy, error) {
	switch c {
	case CategoryIP:
		return Policy{MaxRequests: 100, Window: time.Minute}, nil
	case CategoryUser:
		return Policy{MaxRequests: 1000, Window: time.Hour}, nil
	case CategoryEndpoint:
		return Policy{MaxRequests: 60, Window: time.Minute}, nil
	case CategoryLogin:
		return Policy{MaxRequests: 5, Window: 5 * time.Minute}, nil
	case CategoryOTP:
		return Policy{MaxRequests: 3, Window: 5 * time.Minute}, nil
	case CategoryTokenRefresh:
		return Policy{MaxRequests: 10, Window: time.Minute}, nil
	case CategoryInvalidToken:
		return Policy{MaxRequests: 10, Window: 5 * time.Minute}, nil
	default:
		return Policy{}, fmt.Errorf("%w: %s", ErrUnknownCategory, c)
	}
}

// Registry resolves the effective policy per category. It is immutable after
// construction and safe for concurrent use.
type Registry struct {
	policies [categoryEnd]Policy
}

// NewRegistry merges overrides over the built-in defaults.
func NewRegistry(overrides map[Category]Policy) (*Registry, error) {
	r := &Registry{}
	for _, c := range Categories() {
		p, err := DefaultPolicy(c)
		if err != nil {
			return nil, err
		}
		r.policies[c] = p
	}
	for c, p := range overrides {
		if !c.Valid() {
			return nil, fmt.Errorf("%w: %s", ErrUnknownCategory, c)
		}
		if err := p.Validate(); err != nil {
			return nil, fmt.Errorf("policy %s: %w", c, err)
		}
		r.policies[c] = p
	}
	return r, nil
}

// Resolve returns the effective policy for c.
func (r *Registry) Resolve(c Category) (Policy, error) {
	if !c.Valid() {
		return Policy{}, fmt.Errorf("%w: %s", ErrUnknownCategory, c)
	}
	if r == nil {
		return DefaultPolicy(c)
	}
	return r.policies[c], nil
}

// Snapshot returns a copy of every effective policy.
func (r *Registry) Snapshot() map[Category]Policy {
	out := make(map[Category]Policy, int(categoryEnd)-1)
	for _, c := range Categories() {
		p, _ := r.Resolve(c)
		out[c] = p
	}
	return out
}
