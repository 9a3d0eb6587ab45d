// Package repo provides the run ledger for Postgres and ClickHouse
package repo

import (
	"context"
	"fmt"
	"time"

	"github.com/georgenavi/esimdb-scraper/internal/modkit/repokit"
	perr "github.com/georgenavi/esimdb-scraper/internal/platform/errors"
	"github.com/georgenavi/esimdb-scraper/internal/services/scrape/domain"
)

// PGSchema creates the ledger table when missing
const PGSchema = `
CREATE TABLE IF NOT EXISTS scrape_entity_runs (
	run_id       uuid        NOT NULL,
	scrape_date  char(8)     NOT NULL,
	country      text        NOT NULL,
	status       text        NOT NULL,
	pages        integer     NOT NULL DEFAULT 0,
	plans        integer     NOT NULL DEFAULT 0,
	duplicates   integer     NOT NULL DEFAULT 0,
	dropped      integer     NOT NULL DEFAULT 0,
	degraded     integer     NOT NULL DEFAULT 0,
	path         text,
	error        text,
	started_at   timestamptz NOT NULL,
	finished_at  timestamptz,
	PRIMARY KEY (run_id, country)
)`

type (
	// PG is a Postgres binder for domain.LedgerRepo
	PG      struct{}
	queries struct{ q repokit.Queryer }
)

// NewPG returns a Postgres binder for domain.LedgerRepo
func NewPG() repokit.Binder[domain.LedgerRepo] { return PG{} }

// Bind implements repokit.Binder
func (PG) Bind(q repokit.Queryer) domain.LedgerRepo { return &queries{q: q} }

// StartEntity marks one country of a run as running (idempotent)
func (r *queries) StartEntity(ctx context.Context, run domain.EntityRun) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO scrape_entity_runs (run_id, scrape_date, country, status, started_at)
		VALUES ($1::uuid, $2, $3, 'running', $4)
		ON CONFLICT (run_id, country) DO UPDATE
		SET status = 'running', started_at = EXCLUDED.started_at, error = null, finished_at = null
	`, run.RunID, run.ScrapeDate, run.Country, run.StartedAt.UTC())
	return err
}

// FinishEntity records the terminal state of one country (idempotent)
func (r *queries) FinishEntity(ctx context.Context, run domain.EntityRun) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO scrape_entity_runs (
			run_id, scrape_date, country, status, pages, plans, duplicates,
			dropped, degraded, path, error, started_at, finished_at
		)
		VALUES ($1::uuid, $2, $3, $4, $5, $6, $7, $8, $9, NULLIF($10,''), NULLIF($11,''), $12, $13)
		ON CONFLICT (run_id, country) DO UPDATE SET
			status = EXCLUDED.status,
			pages = EXCLUDED.pages,
			plans = EXCLUDED.plans,
			duplicates = EXCLUDED.duplicates,
			dropped = EXCLUDED.dropped,
			degraded = EXCLUDED.degraded,
			path = EXCLUDED.path,
			error = EXCLUDED.error,
			finished_at = EXCLUDED.finished_at
	`,
		run.RunID, run.ScrapeDate, run.Country, run.Status, run.Pages, run.Plans, run.Duplicates,
		run.Dropped, run.Degraded, run.Path, run.Error, run.StartedAt.UTC(), run.FinishedAt.UTC(),
	)
	return err
}

// txAttempts bounds replays of a ledger write that lost a lock or serialization race
const txAttempts = 3

// PGLedger implements domain.Ledger over a transaction runner
type PGLedger struct {
	db     repokit.TxRunner
	binder repokit.Binder[domain.LedgerRepo]
}

// NewPGLedger wraps db so every ledger tx runs with a statement timeout
func NewPGLedger(db repokit.TxRunner, b repokit.Binder[domain.LedgerRepo], stmtTimeout time.Duration) *PGLedger {
	if b == nil {
		b = NewPG()
	}
	if stmtTimeout > 0 {
		db = repokit.WithBeginHooks(db, StatementTimeout(stmtTimeout))
	}
	return &PGLedger{db: db, binder: b}
}

// StatementTimeout returns a BeginHook scoping statement_timeout to the tx
func StatementTimeout(d time.Duration) repokit.BeginHook {
	stmt := fmt.Sprintf("SET LOCAL statement_timeout = %d", d.Milliseconds())
	return func(ctx context.Context, q repokit.Queryer) error {
		_, err := q.Exec(ctx, stmt)
		return err
	}
}

// EnsureSchema creates the ledger table
func (l *PGLedger) EnsureSchema(ctx context.Context) error {
	_, err := l.db.Exec(ctx, PGSchema)
	return perr.FromPostgres(err, "create scrape_entity_runs")
}

// Start implements domain.Ledger
func (l *PGLedger) Start(ctx context.Context, run domain.EntityRun) error {
	err := repokit.WithRetry(ctx, l.db, txAttempts, func(q repokit.Queryer) error {
		return repokit.MustBind(l.binder, q).StartEntity(ctx, run)
	})
	return perr.FromPostgresf(err, "ledger start %s", run.Country)
}

// Finish implements domain.Ledger
func (l *PGLedger) Finish(ctx context.Context, run domain.EntityRun) error {
	err := repokit.WithRetry(ctx, l.db, txAttempts, func(q repokit.Queryer) error {
		return repokit.MustBind(l.binder, q).FinishEntity(ctx, run)
	})
	return perr.FromPostgresf(err, "ledger finish %s", run.Country)
}
