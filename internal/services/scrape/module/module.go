// Package module wires the scrape service from config
package module

import (
	"context"

	"github.com/georgenavi/esimdb-scraper/internal/adapters/sink/objectstore"
	"github.com/georgenavi/esimdb-scraper/internal/adapters/sink/parquetfile"
	"github.com/georgenavi/esimdb-scraper/internal/adapters/upstream/esimdb"
	"github.com/georgenavi/esimdb-scraper/internal/modkit"
	perr "github.com/georgenavi/esimdb-scraper/internal/platform/errors"
	"github.com/georgenavi/esimdb-scraper/internal/services/scrape/domain"
	"github.com/georgenavi/esimdb-scraper/internal/services/scrape/guardrails"
	"github.com/georgenavi/esimdb-scraper/internal/services/scrape/ingest"
	"github.com/georgenavi/esimdb-scraper/internal/services/scrape/repo"
	"github.com/georgenavi/esimdb-scraper/internal/services/scrape/service"
)

// Ports defines the scrape module ports
type Ports struct {
	Runner domain.RunnerPort
}

// Collaborators replaces adapters the module would otherwise build;
// nil fields keep the default. Pass with modkit.WithPorts
type Collaborators struct {
	Fetchers domain.FetcherFactory
	Writer   domain.Writer
	Mirror   domain.Mirror
	Ledger   domain.Ledger
}

// schemaEnsurer is implemented by ledgers and mirrors that need setup
type schemaEnsurer interface {
	EnsureSchema(ctx context.Context) error
}

type bucketEnsurer interface {
	EnsureBucket(ctx context.Context) error
}

// Module implements the scrape module
type Module struct {
	deps  modkit.Deps
	opts  Options
	name  string
	ports Ports

	ledger domain.Ledger
	mirror domain.Mirror
}

// New validates options read from deps.Cfg and wires fetcher, writer,
// the optional ledger and mirror into the scrape service
func New(deps modkit.Deps, options ...modkit.Option) (*Module, error) {
	return NewWithOptions(deps, FromConfig(deps.Cfg), options...)
}

// NewWithOptions is New with explicit options
func NewWithOptions(deps modkit.Deps, opts Options, options ...modkit.Option) (*Module, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	b := modkit.Build(options...)
	inj, _ := modkit.Injected[Collaborators](b)

	m := &Module{deps: deps, opts: opts, name: b.Name}
	if m.name == "" {
		m.name = "scrape"
	}

	fetchers := inj.Fetchers
	if fetchers == nil {
		fetchers = ingest.NewFetcherFactory(esimdb.Options{
			BaseURL:   opts.BaseURL,
			Locale:    opts.Locale,
			UserAgent: opts.UserAgent,
			Timeout:   opts.FetchTimeout,
			Attempts:  opts.Retries,
			RetryBase: opts.RetryBase,
			RetryMax:  opts.RetryMax,
		})
	}
	writer := inj.Writer
	if writer == nil {
		writer = parquetfile.New(opts.OutputDir)
	}

	var err error
	if m.ledger = inj.Ledger; m.ledger == nil {
		if m.ledger, err = m.buildLedger(); err != nil {
			return nil, err
		}
	}
	if m.mirror = inj.Mirror; m.mirror == nil && opts.MirrorEnabled {
		if m.mirror, err = objectstore.New(opts.Mirror); err != nil {
			return nil, err
		}
	}

	svc := service.New(
		fetchers,
		ingest.NewNormalizer(),
		ingest.NewValidator(opts.SchemaVersion),
		writer,
		ingest.NewPacer,
		service.Config{
			Workers:       opts.Workers,
			PageDelay:     opts.PageDelay,
			MaxPages:      opts.MaxPages,
			Countries:     opts.Countries,
			ScrapeDate:    opts.ScrapeDate,
			SchemaVersion: opts.SchemaVersion,
			Timeouts: guardrails.Timeouts{
				Entity: opts.EntityTimeout,
				Write:  opts.WriteTimeout,
				DB:     opts.DBTimeout,
			},
		},
	)
	if m.ledger != nil {
		svc.WithLedger(m.ledger)
	}
	if m.mirror != nil {
		svc.WithMirror(m.mirror)
	}
	m.ports = Ports{Runner: svc}

	deps.Log.Info().
		Str("module", m.name).
		Str("output_dir", opts.OutputDir).
		Int("workers", opts.Workers).
		Str("ledger", opts.Ledger).
		Strs("backends", deps.Backends()).
		Bool("mirror", m.mirror != nil).
		Msg("scrape module wired")
	return m, nil
}

func (m *Module) buildLedger() (domain.Ledger, error) {
	switch m.opts.Ledger {
	case LedgerPG:
		if m.deps.PG == nil {
			return nil, perr.InvalidArgf("ledger %q requires a postgres store", LedgerPG)
		}
		return repo.NewPGLedger(m.deps.PG, repo.NewPG(), m.opts.DBTimeout), nil
	case LedgerCH:
		if m.deps.CH == nil {
			return nil, perr.InvalidArgf("ledger %q requires a clickhouse store", LedgerCH)
		}
		return repo.NewCH(m.deps.CH), nil
	}
	return nil, nil
}

// Init creates the ledger table and mirror bucket when those are configured
func (m *Module) Init(ctx context.Context) error {
	if s, ok := m.ledger.(schemaEnsurer); ok {
		if err := s.EnsureSchema(ctx); err != nil {
			return err
		}
	}
	if b, ok := m.mirror.(bucketEnsurer); ok {
		if err := b.EnsureBucket(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Options returns the validated options the module was built with
func (m *Module) Options() Options { return m.opts }

// Name returns the module name
func (m *Module) Name() string { return m.name }

// Ports returns the module ports
func (m *Module) Ports() any { return m.ports }
