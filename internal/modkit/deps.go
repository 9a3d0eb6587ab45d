// Package modkit provides module wiring and core deps
package modkit

import (
	"github.com/georgenavi/esimdb-scraper/internal/modkit/repokit"
	"github.com/georgenavi/esimdb-scraper/internal/platform/config"
	"github.com/georgenavi/esimdb-scraper/internal/platform/logger"
	"github.com/georgenavi/esimdb-scraper/internal/platform/store"
)

// Deps is what main hands every module. The zero value is usable in tests
type Deps struct {
	Log logger.Logger
	Cfg config.Conf

	// PG and CH are optional ledger backends, nil when not configured
	PG repokit.TxRunner
	CH store.Clickhouse
}

// Backends lists the stores that were opened, for startup logs
func (d Deps) Backends() []string {
	var out []string
	if d.PG != nil {
		out = append(out, "pg")
	}
	if d.CH != nil {
		out = append(out, "ch")
	}
	return out
}
