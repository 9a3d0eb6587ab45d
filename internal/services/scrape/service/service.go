// Package service provides the scrape orchestrator, entity worker and pagination walker
package service

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	perr "github.com/georgenavi/esimdb-scraper/internal/platform/errors"
	"github.com/georgenavi/esimdb-scraper/internal/platform/logger"
	"github.com/georgenavi/esimdb-scraper/internal/services/scrape/domain"
	"github.com/georgenavi/esimdb-scraper/internal/services/scrape/guardrails"
)

// Config holds configuration options for the scrape service
type Config struct {
	// Workers bounds concurrent entities; <=0 -> 1, capped at the entity count
	Workers int

	// PageDelay is the minimum gap between page requests of one entity
	PageDelay time.Duration

	// MaxPages stops runaway pagination; <=0 -> 500
	MaxPages int

	// Countries is an optional slug allow-list
	Countries []string

	// ScrapeDate is YYYYMMDD; empty -> today in UTC at run start
	ScrapeDate string

	SchemaVersion string

	Timeouts guardrails.Timeouts
}

// Service implements domain.RunnerPort
type Service struct {
	Fetchers domain.FetcherFactory
	Norm     domain.Normalizer
	Valid    domain.Validator
	Writer   domain.Writer
	NewPacer func(time.Duration) domain.Pacer
	Cfg      Config

	// Mirror and Ledger are optional
	Mirror domain.Mirror
	Ledger domain.Ledger

	now      func() time.Time
	newRunID func() string
}

// New constructs the scrape service
func New(
	fetchers domain.FetcherFactory,
	norm domain.Normalizer,
	valid domain.Validator,
	writer domain.Writer,
	pacer func(time.Duration) domain.Pacer,
	cfg Config,
) *Service {
	if fetchers == nil {
		panic("scrape.Service requires a non nil FetcherFactory")
	}
	if norm == nil || valid == nil {
		panic("scrape.Service requires a normalizer and a validator")
	}
	if writer == nil {
		panic("scrape.Service requires a non nil Writer")
	}
	if pacer == nil {
		panic("scrape.Service requires a pacer constructor")
	}
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = 500
	}
	return &Service{
		Fetchers: fetchers,
		Norm:     norm,
		Valid:    valid,
		Writer:   writer,
		NewPacer: pacer,
		Cfg:      cfg,
		now:      time.Now,
		newRunID: uuid.NewString,
	}
}

// WithMirror wires an optional object store mirror
func (s *Service) WithMirror(m domain.Mirror) *Service {
	s.Mirror = m
	return s
}

// WithLedger wires an optional run ledger
func (s *Service) WithLedger(l domain.Ledger) *Service {
	s.Ledger = l
	return s
}

// run carries the identity stamped onto every entity of one run
type run struct {
	id   string
	date string
}

// Run discovers entities and scrapes each one on a bounded pool.
// Entity failures are reported in the result, never returned as err;
// err is non nil only when discovery failed
func (s *Service) Run(ctx context.Context) (domain.RunResult, error) {
	r := run{id: s.newRunID(), date: s.Cfg.ScrapeDate}
	if r.date == "" {
		r.date = s.now().UTC().Format("20060102")
	}
	ctx = logger.WithRun(ctx, r.id)
	log := logger.C(ctx)
	res := domain.RunResult{RunID: r.id, ScrapeDate: r.date}

	countries, err := s.discover(ctx)
	if err != nil {
		res.Interrupted = ctx.Err() != nil
		log.Error().Err(err).Msg("scrape: discovery failed")
		return res, err
	}
	log.Info().Int("countries", len(countries)).Str("scrape_date", r.date).Msg("scrape: run started")

	var (
		col  = &collector{res: &res}
		jobs = make(chan domain.Country)
		g    errgroup.Group
	)

	// feeder stops admitting entities once ctx is done
	g.Go(func() error {
		defer close(jobs)
		for i, c := range countries {
			select {
			case <-ctx.Done():
				col.skip(len(countries) - i)
				return nil
			case jobs <- c:
			}
		}
		return nil
	})

	for range s.poolSize(len(countries)) {
		g.Go(func() error {
			s.worker(ctx, r, jobs, col)
			return nil
		})
	}
	_ = g.Wait()

	res.Interrupted = ctx.Err() != nil
	res.Sort()
	s.summarize(ctx, res)
	return res, nil
}

// worker owns one lazily created Fetcher for every entity it handles
func (s *Service) worker(ctx context.Context, r run, jobs <-chan domain.Country, col *collector) {
	var f domain.Fetcher
	defer func() {
		if f != nil {
			f.Close()
		}
	}()
	for c := range jobs {
		if ctx.Err() != nil {
			col.skip(1)
			continue
		}
		if f == nil {
			f = s.Fetchers()
		}
		col.add(s.runEntity(ctx, f, r, c))
	}
}

// collector serializes outcome accounting across workers
type collector struct {
	mu  sync.Mutex
	res *domain.RunResult
}

func (c *collector) add(o domain.Outcome) {
	c.mu.Lock()
	c.res.Add(o)
	c.mu.Unlock()
}

func (c *collector) skip(n int) {
	c.mu.Lock()
	c.res.NotStarted += n
	c.mu.Unlock()
}

func (s *Service) poolSize(n int) int {
	return max(min(s.Cfg.Workers, n), 1)
}

// discover lists countries on a short lived fetcher and applies the allow-list
func (s *Service) discover(ctx context.Context) ([]domain.Country, error) {
	f := s.Fetchers()
	defer f.Close()

	all, err := f.Countries(ctx)
	if err != nil {
		return nil, err
	}
	if len(s.Cfg.Countries) == 0 {
		return all, nil
	}

	out := make([]domain.Country, 0, len(s.Cfg.Countries))
	found := map[string]bool{}
	for _, c := range all {
		if slices.Contains(s.Cfg.Countries, c.Slug) {
			out = append(out, c)
			found[c.Slug] = true
		}
	}
	for _, slug := range s.Cfg.Countries {
		if !found[slug] {
			logger.C(ctx).Warn().Str("country", slug).Msg("scrape: allow-listed country not offered upstream")
		}
	}
	if len(out) == 0 {
		return nil, perr.InvalidArgf("none of the requested countries %v exist upstream", s.Cfg.Countries)
	}
	return out, nil
}

func (s *Service) summarize(ctx context.Context, res domain.RunResult) {
	log := logger.C(ctx)
	for _, o := range res.Outcomes {
		if o.Status == domain.StatusFailed {
			log.Error().Str("country", o.Country).Str("reason", o.Reason()).Msg("scrape: entity failed")
		}
	}
	evt := log.Info()
	if !res.OK() {
		evt = log.Warn()
	}
	evt.
		Int("written", res.Written).
		Int("empty", res.Empty).
		Int("failed", res.Failed).
		Int("not_started", res.NotStarted).
		Int("plans", res.Plans).
		Int("duplicates", res.Duplicates).
		Int("dropped", res.Dropped).
		Int("degraded", res.Degraded).
		Int("mirror_failures", res.MirrorFailures).
		Bool("interrupted", res.Interrupted).
		Msg("scrape: run finished")
}
