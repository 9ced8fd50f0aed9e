// Package ratelimit implements the sliding-window, per-(user, operation)
// limiter with violation-escalation blacklisting.
package ratelimit

import (
	"sync"
	"time"

	apperrors "github.com/yanqian/ai-helloworld/pkg/errors"
)

// Operation names the limited action.
type Operation string

const (
	OpChat          Operation = "chat"
	OpUpload        Operation = "upload"
	OpVoice         Operation = "voice"
	OpLogin         Operation = "login"
	OpRegister      Operation = "register"
	OpConfigUpdate  Operation = "config_update"
	OpSearch        Operation = "search"
	OpAPIDefault    Operation = "api_default"
)

// Limit is the request budget for an operation.
type Limit struct {
	Count  int
	Window time.Duration
}

var defaultLimits = map[Operation]Limit{
	OpChat:         {20, 60 * time.Second},
	OpUpload:       {10, 60 * time.Second},
	OpVoice:        {5, 60 * time.Second},
	OpLogin:        {5, 300 * time.Second},
	OpRegister:     {3, 3600 * time.Second},
	OpConfigUpdate: {10, 60 * time.Second},
	OpSearch:       {30, 60 * time.Second},
	OpAPIDefault:   {100, 60 * time.Second},
}

const (
	violationWindow  = 10 * time.Minute
	violationLimit   = 5
	blacklistDuration = 30 * time.Minute
)

type key struct {
	user int64
	op   Operation
}

// Limiter tracks per-(user, operation) request timestamps and escalates
// repeat offenders to a time-bounded blacklist.
type Limiter struct {
	mu          sync.Mutex
	limits      map[Operation]Limit
	requests    map[key][]time.Time
	violations  map[int64][]time.Time
	blacklisted map[int64]time.Time
	now         func() time.Time
}

// New constructs a Limiter with the default limits table.
func New() *Limiter {
	limits := make(map[Operation]Limit, len(defaultLimits))
	for op, l := range defaultLimits {
		limits[op] = l
	}
	return &Limiter{
		limits:      limits,
		requests:    make(map[key][]time.Time),
		violations:  make(map[int64][]time.Time),
		blacklisted: make(map[int64]time.Time),
		now:         time.Now,
	}
}

// Quota describes a user's current standing for one operation.
type Quota struct {
	Limit    int
	Used     int
	Remaining int
	ResetInS int
	WindowS  int
}

func (l *Limiter) limitFor(op Operation) Limit {
	if lim, ok := l.limits[op]; ok {
		return lim
	}
	return l.limits[OpAPIDefault]
}

// Check applies blacklist short-circuit, eviction,
// capacity check, violation recording, and timestamp append on success.
func (l *Limiter) Check(userID int64, op Operation, cost int) error {
	if cost <= 0 {
		cost = 1
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()

	if until, ok := l.blacklisted[userID]; ok && now.Before(until) {
		return apperrors.RateLimited(int(until.Sub(now).Seconds()))
	}

	lim := l.limitFor(op)
	k := key{user: userID, op: op}
	times := evict(l.requests[k], now, lim.Window)

	if len(times)+cost > lim.Count {
		l.requests[k] = times
		l.recordViolationLocked(userID, now)
		retryAfter := int(lim.Window.Seconds())
		if len(times) > 0 {
			oldest := times[0]
			retryAfter = int((lim.Window - now.Sub(oldest)).Seconds())
			if retryAfter < 0 {
				retryAfter = 0
			}
		}
		return apperrors.RateLimited(retryAfter)
	}

	for i := 0; i < cost; i++ {
		times = append(times, now)
	}
	l.requests[k] = times
	return nil
}

func (l *Limiter) recordViolationLocked(userID int64, now time.Time) {
	violations := evict(l.violations[userID], now, violationWindow)
	violations = append(violations, now)
	l.violations[userID] = violations
	if len(violations) >= violationLimit {
		l.blacklisted[userID] = now.Add(blacklistDuration)
	}
}

func evict(times []time.Time, now time.Time, window time.Duration) []time.Time {
	cutoff := now.Add(-window)
	out := times[:0]
	for _, t := range times {
		if t.After(cutoff) {
			out = append(out, t)
		}
	}
	return append([]time.Time(nil), out...)
}

// Quota reports a user's current standing for op.
func (l *Limiter) Quota(userID int64, op Operation) Quota {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	lim := l.limitFor(op)
	times := evict(l.requests[key{user: userID, op: op}], now, lim.Window)
	used := len(times)
	resetIn := 0
	if used > 0 {
		resetIn = int((lim.Window - now.Sub(times[0])).Seconds())
		if resetIn < 0 {
			resetIn = 0
		}
	}
	remaining := lim.Count - used
	if remaining < 0 {
		remaining = 0
	}
	return Quota{
		Limit:     lim.Count,
		Used:      used,
		Remaining: remaining,
		ResetInS:  resetIn,
		WindowS:   int(lim.Window.Seconds()),
	}
}

// Reset clears every tracked key for userID, including blacklist status.
func (l *Limiter) Reset(userID int64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for k := range l.requests {
		if k.user == userID {
			delete(l.requests, k)
		}
	}
	delete(l.violations, userID)
	delete(l.blacklisted, userID)
}

// Stats summarizes limiter-wide occupancy.
type Stats struct {
	ActiveUsers    int
	TotalRequests  int
	BlacklistedIDs []int64
}

// Stats reports active users, total tracked requests, and blacklist contents.
func (l *Limiter) Stats() Stats {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	users := make(map[int64]struct{})
	total := 0
	for k, times := range l.requests {
		if len(times) == 0 {
			continue
		}
		users[k.user] = struct{}{}
		total += len(times)
	}
	blacklisted := make([]int64, 0)
	for user, until := range l.blacklisted {
		if now.Before(until) {
			blacklisted = append(blacklisted, user)
		}
	}
	return Stats{ActiveUsers: len(users), TotalRequests: total, BlacklistedIDs: blacklisted}
}
