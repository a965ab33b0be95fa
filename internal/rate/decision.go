package rate

import "time"

// Action is the escalation hint attached to a denial.
type Action uint8

const (
	ActionNone Action = iota
	ActionReject
	ActionBlockIP
	ActionLockAccount
	ActionRevokeToken
)

func (a Action) String() string {
	switch a {
	case ActionNone:
		return "none"
	case ActionReject:
		return "reject"
	case ActionBlockIP:
		return "block_ip"
	case ActionLockAccount:
		return "lock_account"
	case ActionRevokeToken:
		return "revoke_token"
	default:
		return "unknown"
	}
}

// Verdict is the result of one check.
type Verdict struct {
	Allowed      bool
	Category     Category
	Identifier   string
	CurrentCount int64
	Limit        int
	Remaining    int
	// RetryAfter is the remaining window (or block) time for denials, zero
	// when allowed.
	RetryAfter time.Duration
	Action     Action
	// Blocked is set when an active block or lock entry denied the request.
	Blocked bool
	// Degraded is set when part of the decision could not consult the store
	// and the request was let through.
	Degraded bool
}

// RetryAfterSeconds rounds RetryAfter up to whole seconds, as sent in the
// Retry-After header.
func (v Verdict) RetryAfterSeconds() int64 {
	if v.RetryAfter <= 0 {
		return 0
	}
	secs := int64(v.RetryAfter / time.Second)
	if v.RetryAfter%time.Second != 0 {
		secs++
	}
	return secs
}

// Decide turns a post-increment counter state into a verdict.
func Decide(key Key, policy Policy, state State) Verdict {
	v := Verdict{
		Category:     key.Category,
		Identifier:   key.Identifier,
		CurrentCount: state.Count,
		Limit:        policy.MaxRequests,
		Remaining:    remaining(policy.MaxRequests, state.Count),
	}
	if state.Count <= int64(policy.MaxRequests) {
		v.Allowed = true
		return v
	}
	v.RetryAfter = state.TTL
	if v.RetryAfter <= 0 {
		v.RetryAfter = policy.Window
	}
	v.Action = denialAction(key.Category)
	return v
}

// Status reports a counter without counting the read as a hit.
func Status(key Key, policy Policy, state State) Verdict {
	v := Verdict{
		Category:     key.Category,
		Identifier:   key.Identifier,
		CurrentCount: state.Count,
		Limit:        policy.MaxRequests,
		Remaining:    remaining(policy.MaxRequests, state.Count),
		RetryAfter:   state.TTL,
		Allowed:      state.Count < int64(policy.MaxRequests),
	}
	if state.Count > int64(policy.MaxRequests) {
		v.Blocked = true
		v.Action = denialAction(key.Category)
	}
	return v
}

// Denied builds the verdict for a request stopped by an active block or lock
// entry before any counting happened.
func Denied(key Key, policy Policy, ttl time.Duration, action Action) Verdict {
	return Verdict{
		Category:   key.Category,
		Identifier: key.Identifier,
		Limit:      policy.MaxRequests,
		RetryAfter: ttl,
		Action:     action,
		Blocked:    true,
	}
}

// Degraded builds the fail-open verdict used when the counter store is down.
func Degraded(key Key, policy Policy) Verdict {
	return Verdict{
		Allowed:    true,
		Category:   key.Category,
		Identifier: key.Identifier,
		Limit:      policy.MaxRequests,
		Remaining:  policy.MaxRequests,
		Degraded:   true,
	}
}

// Throttling never escalates; credential-abuse categories escalate through
// the failure tracker instead.
func denialAction(c Category) Action {
	switch c {
	case CategoryIP, CategoryUser, CategoryEndpoint, CategoryOTP, CategoryTokenRefresh:
		return ActionReject
	case CategoryLogin, CategoryInvalidToken:
		return ActionReject
	default:
		return ActionReject
	}
}

func remaining(limit int, count int64) int {
	r := int64(limit) - count
	if r < 0 {
		return 0
	}
	return int(r)
}
