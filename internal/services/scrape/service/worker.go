package service

import (
	"context"
	"runtime/debug"

	perr "github.com/georgenavi/esimdb-scraper/internal/platform/errors"
	"github.com/georgenavi/esimdb-scraper/internal/platform/logger"
	"github.com/georgenavi/esimdb-scraper/internal/services/scrape/domain"
	"github.com/georgenavi/esimdb-scraper/internal/services/scrape/guardrails"
)

// runEntity walks one country, publishes its batch and isolates every failure,
// panics included, into the returned Outcome
func (s *Service) runEntity(ctx context.Context, f domain.Fetcher, r run, c domain.Country) (out domain.Outcome) {
	ctx = logger.WithCountry(ctx, c.Slug)
	log := logger.C(ctx)
	out = domain.Outcome{Country: c.Slug, Started: s.now()}
	s.ledgerStart(ctx, r, out)

	defer func() {
		if rec := recover(); rec != nil {
			out.Status = domain.StatusFailed
			out.Err = perr.PanicErrf("entity %s panicked: %v", c.Slug, rec)
			log.Error().Err(out.Err).Str("stack", string(debug.Stack())).Msg("scrape: recovered panic")
		}
		out.Finished = s.now()
		s.ledgerFinish(ctx, r, out)
	}()

	ectx, cancel := guardrails.WithEntity(ctx, s.Cfg.Timeouts)
	defer cancel()

	batch, err := s.walk(ectx, f, c, r.date)
	out.Pages, out.Duplicates, out.Dropped, out.Degraded = batch.Pages, batch.Duplicates, batch.Dropped, batch.Degraded
	if err != nil {
		out.Status, out.Err = domain.StatusFailed, err
		return out
	}
	if len(batch.Records) == 0 {
		out.Status = domain.StatusEmpty
		log.Warn().Int("pages", out.Pages).Int("dropped", out.Dropped).Msg("scrape: no plans found")
		return out
	}

	wctx, wcancel := guardrails.ForWrite(ectx, s.Cfg.Timeouts)
	path, err := s.Writer.Write(wctx, r.date, c.Slug, batch.Records)
	wcancel()
	if err != nil {
		out.Status, out.Err = domain.StatusFailed, err
		return out
	}
	out.Status, out.Rows, out.Path = domain.StatusWritten, len(batch.Records), path
	log.Info().
		Int("rows", out.Rows).
		Int("pages", out.Pages).
		Int("duplicates", out.Duplicates).
		Int("dropped", out.Dropped).
		Int("degraded", out.Degraded).
		Str("path", path).
		Msg("scrape: entity written")

	if s.Mirror != nil {
		key, merr := s.Mirror.Put(ctx, r.date, c.Slug, path)
		if merr != nil {
			out.MirrorErr = merr
			log.Warn().Err(merr).Str("path", path).Msg("scrape: mirror upload failed")
		} else {
			out.Mirrored = key
		}
	}
	return out
}

func (s *Service) ledgerStart(ctx context.Context, r run, o domain.Outcome) {
	if s.Ledger == nil {
		return
	}
	dbCtx, cancel := guardrails.ForDB(ctx, s.Cfg.Timeouts)
	defer cancel()
	if err := s.Ledger.Start(dbCtx, entityRun(r, o, "running")); err != nil {
		logger.C(ctx).Warn().Err(err).Msg("scrape: ledger start failed")
	}
}

func (s *Service) ledgerFinish(ctx context.Context, r run, o domain.Outcome) {
	if s.Ledger == nil {
		return
	}
	dbCtx, cancel := guardrails.ForDB(ctx, s.Cfg.Timeouts)
	defer cancel()
	if err := s.Ledger.Finish(dbCtx, entityRun(r, o, string(o.Status))); err != nil {
		logger.C(ctx).Warn().Err(err).Msg("scrape: ledger finish failed")
	}
}

func entityRun(r run, o domain.Outcome, status string) domain.EntityRun {
	return domain.EntityRun{
		RunID:      r.id,
		ScrapeDate: r.date,
		Country:    o.Country,
		Status:     status,
		Pages:      o.Pages,
		Plans:      o.Rows,
		Duplicates: o.Duplicates,
		Dropped:    o.Dropped,
		Degraded:   o.Degraded,
		Path:       o.Path,
		Error:      o.Reason(),
		StartedAt:  o.Started,
		FinishedAt: o.Finished,
	}
}
