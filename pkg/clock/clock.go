package clock

import (
	"context"
	"time"
)

// Clock provides current time; useful for deterministic tests.
type Clock interface {
	Now() time.Time
}

// Wall reads the system clock.
type Wall struct{}

func (Wall) Now() time.Time { return time.Now() }

type contextKey string

const overrideKey contextKey = "clock_override"

// WithOverride attaches an explicit instant to the context. The override
// is pure data: it affects only calls that resolve against this context
// and never advances any global clock.
func WithOverride(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, overrideKey, t)
}

// Override returns the instant attached to the context, if any.
func Override(ctx context.Context) (time.Time, bool) {
	t, ok := ctx.Value(overrideKey).(time.Time)
	return t, ok
}

// Resolve is the single source of "now" for expiry comparisons. It
// returns the context override when present, otherwise the base clock.
func Resolve(ctx context.Context, base Clock) time.Time {
	if t, ok := Override(ctx); ok {
		return t
	}
	return base.Now()
}
