package stores

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/goGuard/internal/store"
	"github.com/google/uuid"
)

// DefaultLeaseTTL bounds how long a crashed holder can keep a resource.
const DefaultLeaseTTL = 10 * time.Second

// ErrInvalidLease rejects unlock calls with a zero lease.
var ErrInvalidLease = errors.New("invalid lease")

// Lease is a granted lock. Only the holder of Owner can release it.
type Lease struct {
	Key       string
	Owner     string
	ExpiresAt time.Time
}

// Locker hands out fixed-duration leases over store keys.
type Locker struct {
	store    store.Client
	ttl      time.Duration
	newOwner func() string
}

// NewLocker creates a Locker. A non-positive ttl selects [DefaultLeaseTTL].
func NewLocker(s store.Client, ttl time.Duration) *Locker {
	if ttl <= 0 {
		ttl = DefaultLeaseTTL
	}
	return &Locker{
		store:    s,
		ttl:      ttl,
		newOwner: func() string { return uuid.NewString() },
	}
}

// RefreshLockKey is the lock resource for one user's refresh operation.
func RefreshLockKey(tenantID, userID string) string {
	return store.EscapeSegment(tenantID) + ":refresh:lock:" + store.EscapeSegment(userID)
}

// TryLock attempts to acquire key without waiting. ok is false when another
// holder has a live lease.
func (l *Locker) TryLock(ctx context.Context, key string) (Lease, bool, error) {
	owner := l.newOwner()
	acquired, err := l.store.SetNX(ctx, key, owner, l.ttl)
	if err != nil {
		return Lease{}, false, err
	}
	if !acquired {
		return Lease{}, false, nil
	}
	return Lease{Key: key, Owner: owner, ExpiresAt: time.Now().Add(l.ttl)}, true, nil
}

// Unlock releases lease. It reports false, without side effects, when the
// lease already expired or was never held.
func (l *Locker) Unlock(ctx context.Context, lease Lease) (bool, error) {
	if lease.Key == "" || lease.Owner == "" {
		return false, ErrInvalidLease
	}
	return l.store.DeleteIfValue(ctx, lease.Key, lease.Owner)
}

// TTL returns the fixed lease duration.
func (l *Locker) TTL() time.Duration {
	return l.ttl
}
