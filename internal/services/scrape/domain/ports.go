package domain

import "context"

// RunnerPort is the public port exposed by the module
type RunnerPort interface {
	Run(ctx context.Context) (RunResult, error)
}

// Fetcher talks to the upstream for one worker
type Fetcher interface {
	Countries(ctx context.Context) ([]Country, error)
	PlansPage(ctx context.Context, slug string, page int) (RawPage, error)
	Close()
}

// FetcherFactory builds a fresh Fetcher; each worker calls it at most once
type FetcherFactory func() Fetcher

// Pacer spaces consecutive requests for one entity.
// Done marks the end of a unit of work; the delay runs from there
type Pacer interface {
	Wait(ctx context.Context) error
	Done()
}

// Normalizer turns one raw record into the canonical shape
type Normalizer interface {
	Normalize(c Country, page RawPage, raw RawRecord) (Record, []Degradation, error)
}

// Validator enforces value invariants and stamps the run date
type Validator interface {
	Validate(rec Record, scrapeDate string) (Validated, []Degradation, error)
}

// Writer publishes one entity batch atomically and returns the final path
type Writer interface {
	Write(ctx context.Context, scrapeDate, slug string, rows []Validated) (string, error)
}

// Mirror copies a published file elsewhere and returns its remote key
type Mirror interface {
	Put(ctx context.Context, scrapeDate, slug, path string) (string, error)
}

// Ledger records entity lifecycles; failures never change an outcome
type Ledger interface {
	Start(ctx context.Context, run EntityRun) error
	Finish(ctx context.Context, run EntityRun) error
}

// LedgerRepo is the sql surface bound per transaction
type LedgerRepo interface {
	StartEntity(ctx context.Context, run EntityRun) error
	FinishEntity(ctx context.Context, run EntityRun) error
}
