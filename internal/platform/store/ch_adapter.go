package store

import (
	"context"
	"errors"
	"time"

	"github.com/georgenavi/esimdb-scraper/internal/platform/logger"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
)

// chConn is the subset of *ch.CH the adapter needs
type chConn interface {
	Exec(ctx context.Context, sql string, args ...any) error
	Insert(ctx context.Context, table string, columns []string, rows [][]any) error
	Query(ctx context.Context, sql string, args ...any) (driver.Rows, error)
	Ping(ctx context.Context) error
	Close() error
}

// newCHAdapter wraps a clickhouse connection as the store.Clickhouse seam
func newCHAdapter(c chConn) *clickhouseAdapter {
	return &clickhouseAdapter{inner: c}
}

// clickhouseAdapter adapts *ch.CH to the store.Clickhouse interface
type clickhouseAdapter struct {
	inner chConn
	log   *logger.Logger
}

var _ Clickhouse = (*clickhouseAdapter)(nil)

func (a *clickhouseAdapter) Exec(ctx context.Context, sql string, args ...any) error {
	start := time.Now()
	err := a.inner.Exec(ctx, sql, args...)
	a.trace(ctx, "exec", sql, 0, start, err)
	return err
}

func (a *clickhouseAdapter) Insert(ctx context.Context, table string, columns []string, rows [][]any) error {
	start := time.Now()
	err := a.inner.Insert(ctx, table, columns, rows)
	a.trace(ctx, "insert", table, len(rows), start, err)
	return err
}

func (a *clickhouseAdapter) Query(ctx context.Context, sql string, args ...any) (Rows, error) {
	start := time.Now()
	r, err := a.inner.Query(ctx, sql, args...)
	a.trace(ctx, "query", sql, 0, start, err)
	if err != nil {
		return nil, err
	}
	return &rowsAdapter{r: r}, nil
}

func (a *clickhouseAdapter) Close() error { return a.inner.Close() }

// Ping verifies connectivity with ClickHouse
func (a *clickhouseAdapter) Ping(ctx context.Context) error {
	if a == nil || a.inner == nil {
		return errors.New("store: nil clickhouse adapter")
	}
	return a.inner.Ping(ctx)
}

func (a *clickhouseAdapter) trace(ctx context.Context, op, what string, n int, start time.Time, err error) {
	if a.log == nil {
		return
	}
	evt := a.log.Debug()
	if err != nil {
		evt = a.log.Warn().Err(err)
	}
	evt.Ctx(ctx).
		Str("component", "ch").
		Str("op", op).
		Str("sql", what).
		Int("rows", n).
		Float64("elapsed_ms", float64(time.Since(start).Microseconds())/1000.0).
		Msg("ch")
}

// rowsAdapter wraps driver.Rows as store.Rows
type rowsAdapter struct {
	r driver.Rows
}

func (r *rowsAdapter) Next() bool             { return r.r.Next() }
func (r *rowsAdapter) Scan(dest ...any) error { return r.r.Scan(dest...) }
func (r *rowsAdapter) Err() error             { return r.r.Err() }
func (r *rowsAdapter) Close()                 { _ = r.r.Close() }
func (r *rowsAdapter) Columns() []string      { return r.r.Columns() }
