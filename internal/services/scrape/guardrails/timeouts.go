// Package guardrails holds cross cutting time budgets for scrape work
package guardrails

import (
	"context"
	"time"
)

// Timeouts is an optional budget bundle for a single entity.
// Zero values mean no extra timeout at that level
type Timeouts struct {
	// Entity is the overall budget for walking and writing one country
	Entity time.Duration

	// Write caps the parquet publish step
	Write time.Duration

	// DB caps each ledger statement
	DB time.Duration
}

// WithEntity returns a context limited by the entity budget without extending any parent deadline
func WithEntity(parent context.Context, t Timeouts) (context.Context, context.CancelFunc) {
	return withChildTimeout(parent, t.Entity)
}

// ForWrite returns a sub context for the publish step
func ForWrite(parent context.Context, t Timeouts) (context.Context, context.CancelFunc) {
	return withChildTimeout(parent, t.Write)
}

// ForDB returns a sub context for a ledger write. It is detached from parent
// cancellation so the final ledger row still lands after an interrupt
func ForDB(parent context.Context, t Timeouts) (context.Context, context.CancelFunc) {
	d := t.DB
	if d <= 0 {
		d = 5 * time.Second
	}
	return context.WithTimeout(context.WithoutCancel(parent), d)
}

// Remaining returns the time until the deadline on ctx or zero when none is set or already expired
func Remaining(ctx context.Context) time.Duration {
	if dl, ok := ctx.Deadline(); ok {
		d := time.Until(dl)
		if d > 0 {
			return d
		}
	}
	return 0
}

// withChildTimeout chooses the tighter of the requested duration and any parent remainder.
// When d is zero it returns a simple cancelable child inheriting the parent deadline
func withChildTimeout(parent context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(parent)
	}
	if rem := Remaining(parent); rem > 0 && rem < d {
		return context.WithTimeout(parent, rem)
	}
	return context.WithTimeout(parent, d)
}
