package service

import (
	"context"
	"errors"

	perr "github.com/georgenavi/esimdb-scraper/internal/platform/errors"
	"github.com/georgenavi/esimdb-scraper/internal/platform/logger"
	"github.com/georgenavi/esimdb-scraper/internal/services/scrape/domain"
	"github.com/georgenavi/esimdb-scraper/internal/services/scrape/ingest"
)

// walk drives pagination for one country until Done or Failed.
// Done: an empty page, a page with no new records after page 1, the last
// advertised page, or the MaxPages cap. Failed: a terminal fetch error or cancellation
func (s *Service) walk(ctx context.Context, f domain.Fetcher, c domain.Country, date string) (domain.Batch, error) {
	log := logger.C(ctx)
	pacer := s.NewPacer(s.Cfg.PageDelay)
	seen := ingest.NewTracker()
	b := domain.Batch{Country: c}

	state := domain.StateFetching
	step := func(next domain.WalkState, page int, why string) {
		log.Debug().Int("page", page).Stringer("from", state).Stringer("to", next).Str("why", why).Msg("scrape: walk")
		state = next
	}

	for page := 1; ; page++ {
		if page > s.Cfg.MaxPages {
			log.Warn().Int("max_pages", s.Cfg.MaxPages).Msg("scrape: page cap reached")
			step(domain.StateDone, page-1, "max_pages")
			return b, nil
		}
		if ctx.Err() != nil {
			step(domain.StateFailed, page, "canceled")
			return b, perr.Canceled(ctx, "walk interrupted")
		}
		if err := pacer.Wait(ctx); err != nil {
			step(domain.StateFailed, page, "canceled")
			return b, err
		}

		raw, err := f.PlansPage(ctx, c.Slug, page)
		pacer.Done()
		if err != nil {
			step(domain.StateFailed, page, "fetch_error")
			return b, err
		}
		b.Pages = page
		step(domain.StateProcessing, page, raw.Shape.String())

		if raw.Empty() {
			step(domain.StateDone, page, "empty_page")
			return b, nil
		}
		if fresh := s.process(ctx, c, raw, date, seen, &b); fresh == 0 && page > 1 {
			step(domain.StateDone, page, "no_new_records")
			return b, nil
		}
		if n := raw.NumberOfPages; n != nil && page >= *n {
			step(domain.StateDone, page, "last_page")
			return b, nil
		}
		step(domain.StateFetching, page+1, "next")
	}
}

// process runs every record of one page through normalize, validate and dedup
// and returns how many new records were accepted
func (s *Service) process(ctx context.Context, c domain.Country, page domain.RawPage, date string, seen *ingest.Tracker, b *domain.Batch) int {
	log := logger.C(ctx)
	fresh := 0
	for i, raw := range page.Records {
		rec, degs, err := s.Norm.Normalize(c, page, raw)
		if err == nil {
			var v domain.Validated
			var vdegs []domain.Degradation
			v, vdegs, err = s.Valid.Validate(rec, date)
			degs = append(degs, vdegs...)
			if err == nil {
				if !seen.Observe(v.ID) {
					b.Duplicates++
					continue
				}
				logDegradations(ctx, v.ID, degs)
				b.Degraded += len(degs)
				b.Records = append(b.Records, v)
				fresh++
				continue
			}
		}

		b.Dropped++
		logDegradations(ctx, rec.ID, degs)
		evt := log.Warn().Int("page", page.Number).Int("index", i).Str("plan_id", rec.ID)
		var rej *domain.Rejection
		if errors.As(err, &rej) {
			evt = evt.Str("reason", string(rej.Reason)).Str("detail", rej.Detail)
		} else {
			evt = evt.Err(err)
		}
		evt.Msg("scrape: record dropped")
	}
	return fresh
}

// logDegradations emits one warning per field that was degraded or flagged,
// whether or not the record itself survives
func logDegradations(ctx context.Context, id string, degs []domain.Degradation) {
	log := logger.C(ctx)
	for _, d := range degs {
		evt := log.Warn().Str("plan_id", id).Str("field", d.Field).Str("reason", string(d.Reason))
		if d.Value != "" {
			evt = evt.Str("value", d.Value)
		}
		if d.Kept {
			evt.Msg("scrape: field flagged")
		} else {
			evt.Msg("scrape: field degraded")
		}
	}
}
