package store

import (
	"context"
	"errors"
	"time"

	"github.com/coolwarex/backend/internal/license"
)

// RateWindow is the persisted fixed-window counter for one identity.
type RateWindow struct {
	Count     int   `json:"count"`
	StartedAt int64 `json:"startedAt"` // unix milliseconds
}

// LimitResult reports the outcome of one consume call.
type LimitResult struct {
	Allowed           bool
	Count             int
	RetryAfterSeconds int
}

// Limiter counts requests in fixed, non-overlapping windows. A burst of
// up to 2x max across a window boundary is an accepted trade-off for not
// needing per-request timestamps in the store.
type Limiter struct {
	kv KV
}

func NewLimiter(kv KV) *Limiter {
	return &Limiter{kv: kv}
}

// Consume counts one attempt against key. The counter resets when the
// window has elapsed and is written back on every call.
func (l *Limiter) Consume(ctx context.Context, key string, window time.Duration, maxAttempts int, now time.Time) (LimitResult, error) {
	nowMs := now.UnixMilli()
	windowMs := window.Milliseconds()

	current := RateWindow{Count: 0, StartedAt: nowMs}
	if err := GetJSON(ctx, l.kv, key, &current); err != nil && !errors.Is(err, ErrNotFound) {
		return LimitResult{}, err
	}

	next := RateWindow{Count: 1, StartedAt: nowMs}
	if nowMs-current.StartedAt < windowMs {
		next = RateWindow{Count: current.Count + 1, StartedAt: current.StartedAt}
	}

	if err := SetJSON(ctx, l.kv, key, next); err != nil {
		return LimitResult{}, err
	}

	retryAfter := (next.StartedAt + windowMs - nowMs + 999) / 1000
	if retryAfter < 1 {
		retryAfter = 1
	}

	return LimitResult{
		Allowed:           next.Count <= maxAttempts,
		Count:             next.Count,
		RetryAfterSeconds: int(retryAfter),
	}, nil
}

// LimitKey builds the store key for one purpose and identity. The
// identity is hashed so raw IPs and emails never land in the store.
func LimitKey(purpose, identity string) string {
	return "ratelimit:" + purpose + ":" + license.SHA256Hex(identity)
}
