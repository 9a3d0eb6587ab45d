// Package ingest holds the field normalizer, record validator, dedup tracker
// and the adapter shims the scrape service consumes
package ingest

import (
	"time"

	"github.com/georgenavi/esimdb-scraper/internal/adapters/upstream/esimdb"
	"github.com/georgenavi/esimdb-scraper/internal/services/scrape/domain"
)

// NewFetcherFactory returns a factory producing one esimdb Session per call
func NewFetcherFactory(opts esimdb.Options) domain.FetcherFactory {
	return func() domain.Fetcher { return esimdb.NewSession(opts) }
}

// NewPacer returns the per entity request pacer
func NewPacer(delay time.Duration) domain.Pacer { return esimdb.NewPacer(delay) }
