package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/georgenavi/esimdb-scraper/internal/platform/store/pg"
)

// pgxQuerier is the statement surface shared by *pgxpool.Pool and pgx.Tx
type pgxQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// traced runs statements on q and reports each one to obs
type traced struct {
	q    pgxQuerier
	obs  pg.Observer
	slow time.Duration
}

func (t traced) Exec(ctx context.Context, sql string, args ...any) (CommandTag, error) {
	start := time.Now()
	ct, err := t.q.Exec(ctx, sql, args...)
	t.observe(ctx, sql, args, start, err)
	return ct, err
}

func (t traced) Query(ctx context.Context, sql string, args ...any) (Rows, error) {
	start := time.Now()
	rs, err := t.q.Query(ctx, sql, args...)
	t.observe(ctx, sql, args, start, err)
	if err != nil {
		return nil, err
	}
	return pgxRows{rs}, nil
}

// QueryRow reports once Scan has run so the event carries the scan error
func (t traced) QueryRow(ctx context.Context, sql string, args ...any) Row {
	start := time.Now()
	return scanHook{r: t.q.QueryRow(ctx, sql, args...), done: func(err error) {
		t.observe(ctx, sql, args, start, err)
	}}
}

// observe is a no-op without an observer. slow <= 0 never flags a statement
func (t traced) observe(ctx context.Context, sql string, args []any, start time.Time, err error) {
	if t.obs == nil {
		return
	}
	d := time.Since(start)
	t.obs.Observe(ctx, pg.Statement{
		SQL:     sql,
		Args:    args,
		Elapsed: d,
		Err:     err,
		Slow:    t.slow > 0 && d >= t.slow,
	})
}

// pgAdapter is the TxRunner over a pgx pool; statements inside Tx are observed too
type pgAdapter struct {
	traced
	pool *pgxpool.Pool
}

func newPGAdapter(pool *pgxpool.Pool, obs pg.Observer, slow time.Duration) *pgAdapter {
	return &pgAdapter{traced: traced{q: pool, obs: obs, slow: slow}, pool: pool}
}

func (a *pgAdapter) Ping(ctx context.Context) error {
	if a == nil || a.pool == nil {
		return errors.New("pg: adapter not open")
	}
	return a.pool.Ping(ctx)
}

func (a *pgAdapter) Close() error {
	if a.pool != nil {
		a.pool.Close()
	}
	return nil
}

// Tx commits when fn returns nil and rolls back otherwise
func (a *pgAdapter) Tx(ctx context.Context, fn func(q RowQuerier) error) error {
	return pgx.BeginFunc(ctx, a.pool, func(tx pgx.Tx) error {
		return fn(traced{q: tx, obs: a.obs, slow: a.slow})
	})
}

type scanHook struct {
	r    pgx.Row
	done func(error)
}

func (s scanHook) Scan(dst ...any) error {
	err := s.r.Scan(dst...)
	s.done(err)
	return err
}

type pgxRows struct{ pgx.Rows }

func (r pgxRows) Columns() []string {
	fds := r.FieldDescriptions()
	out := make([]string, 0, len(fds))
	for _, fd := range fds {
		out = append(out, fd.Name)
	}
	return out
}
