package store

import (
	"context"
	"fmt"
	"time"

	"github.com/georgenavi/esimdb-scraper/internal/core/version"
	"github.com/georgenavi/esimdb-scraper/internal/platform/logger"
	chx "github.com/georgenavi/esimdb-scraper/internal/platform/store/ch"
	"github.com/georgenavi/esimdb-scraper/internal/platform/store/pg"
)

// backoff bounds for the boot ping loop
var (
	pingBackoff    = 150 * time.Millisecond
	pingBackoffMax = 2 * time.Second
	sleep          = time.Sleep
)

// openPG builds the pool and returns it once Postgres answers a ping
func openPG(ctx context.Context, cfg Config, s *Store) (TxRunner, error) {
	pool, err := pg.Open(ctx, pg.Config{
		URL:         cfg.PG.URL,
		AppName:     cfg.AppName,
		MaxConns:    cfg.PG.MaxConns,
		DialTimeout: cfg.PG.PingTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("postgres open: %w", err)
	}

	var obs pg.Observer
	if cfg.PG.LogSQL {
		obs = pg.LogObserver(s.Log)
	}
	a := newPGAdapter(pool, obs, time.Duration(cfg.PG.SlowQueryMs)*time.Millisecond)

	if err := waitReady(ctx, s.Log, "postgres", cfg.PG.ConnectRetries, cfg.PG.PingTimeout, a.Ping); err != nil {
		_ = a.Close()
		return nil, err
	}
	return a, nil
}

// waitReady pings until ping succeeds, attempts run out or ctx ends.
// The delay between attempts doubles up to pingBackoffMax
func waitReady(ctx context.Context, log logger.Logger, name string, attempts int, timeout time.Duration, ping func(context.Context) error) error {
	if attempts <= 0 {
		attempts = 6
	}
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	delay := pingBackoff
	var err error
	for i := 1; i <= attempts; i++ {
		pctx, cancel := context.WithTimeout(ctx, timeout)
		err = ping(pctx)
		cancel()
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if i == attempts {
			break
		}
		log.Warn().Err(err).Int("attempt", i).Int("attempts", attempts).Dur("retry_in", delay).Msgf("%s not ready", name)
		sleep(delay)
		delay = min(delay*2, pingBackoffMax)
	}
	return fmt.Errorf("%s ping failed after %d attempts: %w", name, attempts, err)
}

func openCH(ctx context.Context, cfg Config, s *Store) (Clickhouse, error) {
	tag := cfg.CH.ClientTag
	if tag == "" {
		tag = version.Info().Version
	}
	c, err := chx.Open(ctx, chx.Config{URL: cfg.CH.URL, Role: cfg.AppName, Tag: tag})
	if err != nil {
		return nil, err
	}
	a := newCHAdapter(c)
	if cfg.CH.LogSQL {
		a.log = &s.Log
	}
	return a, nil
}
