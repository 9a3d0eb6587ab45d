package pg

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	kit "github.com/georgenavi/esimdb-scraper/internal/platform/testkit"
)

func TestPoolConfig(t *testing.T) {
	pc, err := poolConfig(Config{
		URL:         "postgres://u:p@db:5432/ledger?sslmode=disable",
		AppName:     "esimdb-scrape",
		MaxConns:    3,
		DialTimeout: 2 * time.Second,
	})
	if err != nil {
		t.Fatal(err)
	}
	if pc.MaxConns != 3 || pc.ConnConfig.ConnectTimeout != 2*time.Second {
		t.Fatalf("overrides not applied: max=%d dial=%v", pc.MaxConns, pc.ConnConfig.ConnectTimeout)
	}
	if pc.ConnConfig.RuntimeParams["application_name"] != "esimdb-scrape" || pc.ConnConfig.Database != "ledger" {
		t.Fatalf("conn config = %+v", pc.ConnConfig.RuntimeParams)
	}

	if _, err := poolConfig(Config{URL: "://bad"}); err == nil || !strings.Contains(err.Error(), "pg: parse url") {
		t.Fatalf("want parse error, got %v", err)
	}
}

func TestOpenSurfacesPoolError(t *testing.T) {
	kit.Serial(t)
	var seen *pgxpool.Config
	kit.Swap(t, &newPool, func(_ context.Context, pc *pgxpool.Config) (*pgxpool.Pool, error) {
		seen = pc
		return nil, errors.New("boom")
	})
	if _, err := Open(context.Background(), Config{URL: "postgres://u@h/db", MaxConns: 2}); err == nil {
		t.Fatal("want pool error")
	}
	if seen == nil || seen.MaxConns != 2 {
		t.Fatalf("pool built from wrong config: %+v", seen)
	}
}

func TestLogObserverLevels(t *testing.T) {
	var buf bytes.Buffer
	o := LogObserver(zerolog.New(&buf).Level(zerolog.DebugLevel))
	ctx := context.Background()

	o.Observe(ctx, Statement{SQL: "INSERT INTO t\n\t(a)\nVALUES ($1)", Args: []any{1}})
	o.Observe(ctx, Statement{SQL: "SELECT 1", Slow: true})
	o.Observe(ctx, Statement{SQL: "bad", Err: errors.New("syntax")})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("lines = %d: %s", len(lines), buf.String())
	}
	kit.MustContain(t, lines[0], `"level":"debug"`, `"sql":"INSERT INTO t (a) VALUES ($1)"`, `"args":1`, `"component":"pg"`)
	kit.MustContain(t, lines[1], `"level":"warn"`, `"slow":true`)
	kit.MustContain(t, lines[2], `"level":"warn"`, `"error":"syntax"`)
}
