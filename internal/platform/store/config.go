package store

import (
	"time"

	"github.com/georgenavi/esimdb-scraper/internal/platform/config"
)

// Config aggregates per backend configuration
type Config struct {
	AppName string

	PG PGConfig
	CH CHConfig
}

// PGConfig configures postgres connectivity and tracing
type PGConfig struct {
	Enabled     bool
	URL         string
	MaxConns    int32
	LogSQL      bool
	SlowQueryMs int

	// ConnectRetries bounds the boot ping loop; PingTimeout bounds each ping
	ConnectRetries int
	PingTimeout    time.Duration
}

// CHConfig configures clickhouse connectivity
type CHConfig struct {
	Enabled   bool
	URL       string
	LogSQL    bool
	ClientTag string
}

// FromConfig reads SERVICE_PGSQL_* and SERVICE_CLICKHOUSE_* for the ledger
// backend named by ledger ("pg" or "ch"); any other value enables nothing
func FromConfig(root config.Conf, appName, ledger string) Config {
	cfg := Config{AppName: appName}
	switch ledger {
	case "pg":
		pg := root.Prefix("SERVICE_PGSQL_")
		cfg.PG = PGConfig{
			Enabled:        true,
			URL:            pg.MustString("DBURL"),
			MaxConns:       int32(pg.MayInt("MAX_CONNS", 4)),
			SlowQueryMs:    pg.MayInt("SLOW_MS", 500),
			LogSQL:         pg.MayBool("LOG_SQL", false),
			ConnectRetries: pg.MayInt("CONNECT_RETRIES", 6),
			PingTimeout:    pg.MayDuration("PING_TIMEOUT", 3*time.Second),
		}
	case "ch":
		ch := root.Prefix("SERVICE_CLICKHOUSE_")
		cfg.CH = CHConfig{
			Enabled:   true,
			URL:       ch.MustString("DBURL"),
			LogSQL:    ch.MayBool("LOG_SQL", false),
			ClientTag: ch.MayString("CLIENT_TAG", ""),
		}
	}
	return cfg
}
