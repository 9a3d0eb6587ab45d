package repo

import (
	"context"

	"github.com/georgenavi/esimdb-scraper/internal/modkit/repokit"
	perr "github.com/georgenavi/esimdb-scraper/internal/platform/errors"
	"github.com/georgenavi/esimdb-scraper/internal/services/scrape/domain"
)

// CHSchema creates the append only ledger table when missing
const CHSchema = `
CREATE TABLE IF NOT EXISTS scrape_entity_runs (
	run_id       UUID,
	scrape_date  FixedString(8),
	country      LowCardinality(String),
	status       LowCardinality(String),
	pages        UInt32,
	plans        UInt32,
	duplicates   UInt32,
	dropped      UInt32,
	degraded     UInt32,
	path         String,
	error        String,
	started_at   DateTime64(3, 'UTC'),
	finished_at  DateTime64(3, 'UTC')
)
ENGINE = MergeTree
ORDER BY (scrape_date, country, run_id)`

var chColumns = []string{
	"run_id", "scrape_date", "country", "status", "pages", "plans", "duplicates",
	"dropped", "degraded", "path", "error", "started_at", "finished_at",
}

// CHLedger appends one row per finished entity; Start is a no-op
type CHLedger struct {
	ch repokit.Appender
}

// NewCH returns a ClickHouse ledger
func NewCH(ch repokit.Appender) *CHLedger { return &CHLedger{ch: ch} }

// EnsureSchema creates the ledger table
func (l *CHLedger) EnsureSchema(ctx context.Context) error {
	if err := l.ch.Exec(ctx, CHSchema); err != nil {
		return perr.Wrap(err, perr.ErrorCodeDB, "create scrape_entity_runs")
	}
	return nil
}

// Start implements domain.Ledger
func (l *CHLedger) Start(context.Context, domain.EntityRun) error { return nil }

// Finish implements domain.Ledger
func (l *CHLedger) Finish(ctx context.Context, run domain.EntityRun) error {
	row := []any{
		run.RunID, run.ScrapeDate, run.Country, run.Status,
		uint32(run.Pages), uint32(run.Plans), uint32(run.Duplicates),
		uint32(run.Dropped), uint32(run.Degraded),
		run.Path, run.Error, run.StartedAt.UTC(), run.FinishedAt.UTC(),
	}
	if err := l.ch.Insert(ctx, "scrape_entity_runs", chColumns, [][]any{row}); err != nil {
		return perr.Wrapf(err, perr.ErrorCodeDB, "ledger finish %s", run.Country)
	}
	return nil
}
