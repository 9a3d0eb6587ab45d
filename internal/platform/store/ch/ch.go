// Package ch provides a ClickHouse client over clickhouse-go
package ch

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"strings"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"github.com/georgenavi/esimdb-scraper/internal/core/version"
)

// Config configures the clickhouse client
type Config struct {
	URL string

	// Role and Tag are reported to the server as client info
	Role string
	Tag  string
}

// CH wraps a native clickhouse connection
type CH struct {
	conn driver.Conn
}

// seam for tests
var openConn = clickhouse.Open

// Open parses the DSN, dials and pings the server
func Open(ctx context.Context, cfg Config) (*CH, error) {
	opts, err := clickhouse.ParseDSN(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("ch: parse dsn: %w", err)
	}
	opts.ClientInfo = clientInfo(cfg.Role, cfg.Tag)

	conn, err := openConn(opts)
	if err != nil {
		return nil, fmt.Errorf("ch: open: %w", err)
	}
	if err := conn.Ping(ctx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("ch: ping: %w", err)
	}
	return &CH{conn: conn}, nil
}

// Exec runs a statement that returns no rows (DDL, ALTER)
func (c *CH) Exec(ctx context.Context, sql string, args ...any) error {
	return c.conn.Exec(ctx, sql, args...)
}

// Insert appends rows to table in one native batch. Each row must match columns in order
func (c *CH) Insert(ctx context.Context, table string, columns []string, rows [][]any) error {
	if len(rows) == 0 {
		return nil
	}
	b, err := c.conn.PrepareBatch(ctx, insertSQL(table, columns))
	if err != nil {
		return fmt.Errorf("ch: prepare batch %s: %w", table, err)
	}
	for i, r := range rows {
		if len(r) != len(columns) {
			_ = b.Abort()
			return fmt.Errorf("ch: row %d has %d values, want %d", i, len(r), len(columns))
		}
		if err := b.Append(r...); err != nil {
			_ = b.Abort()
			return fmt.Errorf("ch: append row %d: %w", i, err)
		}
	}
	if err := b.Send(); err != nil {
		return fmt.Errorf("ch: send batch %s: %w", table, err)
	}
	return nil
}

// Query runs a query and returns driver rows
func (c *CH) Query(ctx context.Context, sql string, args ...any) (driver.Rows, error) {
	return c.conn.Query(ctx, sql, args...)
}

// Ping checks connectivity
func (c *CH) Ping(ctx context.Context) error { return c.conn.Ping(ctx) }

// Close closes the connection
func (c *CH) Close() error {
	if c == nil || c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

func insertSQL(table string, columns []string) string {
	if len(columns) == 0 {
		return "INSERT INTO " + table
	}
	return "INSERT INTO " + table + " (" + strings.Join(columns, ", ") + ")"
}

// clientInfo names this binary in system.query_log so ledger inserts can be
// traced back to a host and build
func clientInfo(role, tag string) clickhouse.ClientInfo {
	host, _ := os.Hostname()
	or := func(s string) string {
		if s = strings.TrimSpace(s); s != "" {
			return s
		}
		return "unknown"
	}
	info := version.Info()
	return clickhouse.ClientInfo{Products: []struct{ Name, Version string }{
		{Name: "esimdb-scraper", Version: or(tag)},
		{Name: "role", Version: or(role)},
		{Name: "commit", Version: or(info.Commit)},
		{Name: "go", Version: runtime.Version()},
		{Name: "host", Version: or(host)},
	}}
}
