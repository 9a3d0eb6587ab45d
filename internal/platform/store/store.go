// Package store opens the optional run ledger backends and exposes them
// through the narrow seams repos write to
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/georgenavi/esimdb-scraper/internal/platform/logger"
)

// Store holds whichever backends were enabled. The zero value holds none
type Store struct {
	Log logger.Logger

	PG TxRunner
	CH Clickhouse
}

// Row is a single result row
type Row interface {
	Scan(dest ...any) error
}

// Rows is a result set
type Rows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
	Close()
	Columns() []string
}

// CommandTag reports what a write statement did
type CommandTag interface {
	String() string
	RowsAffected() int64
}

// RowQuerier is the statement surface shared by a pool and a transaction
type RowQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) Row
}

// TxRunner is a RowQuerier that can also open transactions
type TxRunner interface {
	RowQuerier
	Tx(ctx context.Context, fn func(q RowQuerier) error) error
}

// Clickhouse is the append only columnar seam
type Clickhouse interface {
	Exec(ctx context.Context, sql string, args ...any) error
	Insert(ctx context.Context, table string, columns []string, rows [][]any) error
	Query(ctx context.Context, sql string, args ...any) (Rows, error)
	Close() error
}

// Pinger is any backend that can report readiness
type Pinger interface{ Ping(context.Context) error }

// Option adjusts the Store before any backend is opened
type Option func(*Store) error

// WithLogger sets the logger backends trace through
func WithLogger(l logger.Logger) Option {
	return func(s *Store) error {
		s.Log = l.With().Str("component", "store").Logger()
		return nil
	}
}

var (
	pgOpener = openPG
	chOpener = openCH
)

// Open opens every backend cfg enables, in order. When one fails the ones
// already open are closed before the error is returned
func Open(ctx context.Context, cfg Config, opts ...Option) (*Store, error) {
	s := &Store{}
	for _, o := range opts {
		if err := o(s); err != nil {
			return nil, err
		}
	}

	steps := []struct {
		name string
		on   bool
		open func() error
	}{
		{"postgres", cfg.PG.Enabled, func() (err error) { s.PG, err = pgOpener(ctx, cfg, s); return }},
		{"clickhouse", cfg.CH.Enabled, func() (err error) { s.CH, err = chOpener(ctx, cfg, s); return }},
	}
	for _, st := range steps {
		if !st.on {
			continue
		}
		if err := st.open(); err != nil {
			_ = s.Close(ctx)
			return nil, fmt.Errorf("store: %s: %w", st.name, err)
		}
		s.Log.Info().Str("backend", st.name).Msg("store backend open")
	}
	return s, nil
}

// Guard pings every open backend and joins the failures
func (s *Store) Guard(ctx context.Context) error {
	if s == nil {
		return errors.New("store: nil store")
	}
	var errs []error
	backends := []struct {
		name string
		b    any
	}{{"pg", s.PG}, {"ch", s.CH}}
	for _, be := range backends {
		p, ok := be.b.(Pinger)
		if !ok {
			continue
		}
		if err := p.Ping(ctx); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", be.name, err))
		}
	}
	return errors.Join(errs...)
}

// Close closes clickhouse then postgres. Nil backends are skipped
func (s *Store) Close(_ context.Context) error {
	if s == nil {
		return nil
	}
	var errs []error
	if s.CH != nil {
		errs = append(errs, s.CH.Close())
	}
	if c, ok := s.PG.(interface{ Close() error }); ok {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}
