package esimdb

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	perr "github.com/georgenavi/esimdb-scraper/internal/platform/errors"
)

// Pacer spaces consecutive page requests for one country.
// The gap is measured from the moment the previous page was marked Done, so a
// slow fetch never eats into it. A Pacer belongs to a single walk goroutine
type Pacer struct {
	every rate.Limit
	lim   *rate.Limiter
}

// NewPacer builds a pacer with a minimum gap of delay; zero or negative disables pacing
func NewPacer(delay time.Duration) *Pacer {
	if delay <= 0 {
		return &Pacer{every: rate.Inf, lim: rate.NewLimiter(rate.Inf, 1)}
	}
	every := rate.Every(delay)
	return &Pacer{every: every, lim: rate.NewLimiter(every, 1)}
}

// Wait blocks until the next request may be issued or ctx ends
func (p *Pacer) Wait(ctx context.Context) error {
	if err := p.lim.Wait(ctx); err != nil {
		if ctx.Err() != nil {
			return perr.Canceled(ctx, "esimdb pacing interrupted")
		}
		// deadline shorter than the delay
		return perr.Wrap(err, perr.ErrorCodeCanceled, "esimdb pacing exceeds deadline")
	}
	return nil
}

// Done marks the end of a page; the next Wait holds for the full delay from now
func (p *Pacer) Done() {
	if p.every == rate.Inf {
		return
	}
	p.lim = rate.NewLimiter(p.every, 1)
	p.lim.Allow()
}
