// Package pg opens the pgx pool behind the Postgres run ledger and reports
// the statements run on it
package pg

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/georgenavi/esimdb-scraper/internal/platform/logger"
)

// Config is the pool subset the ledger tunes
type Config struct {
	URL      string
	AppName  string
	MaxConns int32

	// DialTimeout bounds each new connection, zero keeps the driver default
	DialTimeout time.Duration
}

var newPool = pgxpool.NewWithConfig

// Open parses cfg.URL, applies the overrides and builds the pool. It does not ping
func Open(ctx context.Context, cfg Config) (*pgxpool.Pool, error) {
	pc, err := poolConfig(cfg)
	if err != nil {
		return nil, err
	}
	return newPool(ctx, pc)
}

func poolConfig(cfg Config) (*pgxpool.Config, error) {
	pc, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("pg: parse url: %w", err)
	}
	if cfg.MaxConns > 0 {
		pc.MaxConns = cfg.MaxConns
	}
	if cfg.DialTimeout > 0 {
		pc.ConnConfig.ConnectTimeout = cfg.DialTimeout
	}
	if cfg.AppName != "" {
		pc.ConnConfig.RuntimeParams["application_name"] = cfg.AppName
	}
	return pc, nil
}

// Statement is one executed SQL statement
type Statement struct {
	SQL     string
	Args    []any
	Elapsed time.Duration
	Err     error
	Slow    bool
}

// Observer is told about every statement once it has finished
type Observer interface {
	Observe(ctx context.Context, st Statement)
}

// LogObserver logs statements at debug, slow or failed ones at warn
func LogObserver(l logger.Logger) Observer {
	return logObserver{l: l.With().Str("component", "pg").Logger()}
}

type logObserver struct{ l logger.Logger }

func (o logObserver) Observe(ctx context.Context, st Statement) {
	evt := o.l.Debug()
	if st.Slow || st.Err != nil {
		evt = o.l.Warn()
	}
	evt.Ctx(ctx).
		Dur("elapsed", st.Elapsed).
		Bool("slow", st.Slow).
		Str("sql", strings.Join(strings.Fields(st.SQL), " ")).
		Int("args", len(st.Args)).
		Err(st.Err).
		Msg("pg statement")
}
