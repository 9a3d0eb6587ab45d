package module

import (
	"time"

	"github.com/georgenavi/esimdb-scraper/internal/adapters/sink/objectstore"
	"github.com/georgenavi/esimdb-scraper/internal/core/version"
	"github.com/georgenavi/esimdb-scraper/internal/platform/config"
	"github.com/georgenavi/esimdb-scraper/internal/platform/validate"
	"github.com/georgenavi/esimdb-scraper/internal/services/scrape/domain"
)

// Ledger backends
const (
	LedgerNone = "none"
	LedgerPG   = "pg"
	LedgerCH   = "ch"
)

// Options holds configuration options for the scrape module
type Options struct {
	BaseURL   string `json:"base_url" validate:"required,url"`
	Locale    string `json:"locale" validate:"required,max=16"`
	UserAgent string `json:"user_agent" validate:"required"`
	OutputDir string `json:"output_dir" validate:"required"`

	Workers   int           `json:"workers" validate:"min=1,max=64"`
	PageDelay time.Duration `json:"page_delay" validate:"min=0"`
	MaxPages  int           `json:"max_pages" validate:"min=1,max=100000"`

	Retries      int           `json:"retries" validate:"min=1,max=10"`
	RetryBase    time.Duration `json:"retry_base" validate:"min=0"`
	RetryMax     time.Duration `json:"retry_max" validate:"gtefield=RetryBase"`
	FetchTimeout time.Duration `json:"fetch_timeout" validate:"gt=0"`

	EntityTimeout time.Duration `json:"entity_timeout" validate:"min=0"`
	WriteTimeout  time.Duration `json:"write_timeout" validate:"min=0"`
	DBTimeout     time.Duration `json:"db_timeout" validate:"min=0"`

	Countries     []string `json:"countries" validate:"omitempty,dive,required,max=64"`
	ScrapeDate    string   `json:"scrape_date" validate:"omitempty,yyyymmdd"`
	SchemaVersion string   `json:"schema_version" validate:"required"`

	Ledger string `json:"ledger" validate:"oneof=none pg ch"`

	MirrorEnabled bool `json:"mirror_enabled"`
	// Mirror is validated by objectstore.New when enabled
	Mirror objectstore.Config `json:"mirror" validate:"-"`
}

// FromConfig reads the scrape options from config with ESIMDB_ prefix
func FromConfig(cfg config.Conf) Options {
	c := cfg.Prefix("ESIMDB_")
	return Options{
		BaseURL:       c.MayURL("BASE_URL", "https://esimdb.com/api/client"),
		Locale:        c.MayString("LOCALE", "en"),
		UserAgent:     c.MayString("USER_AGENT", version.UserAgent()),
		OutputDir:     c.MayString("OUTPUT_DIR", "esimdb_data"),
		Workers:       c.MayInt("WORKERS", 5),
		PageDelay:     c.MayDuration("PAGE_DELAY", 200*time.Millisecond),
		MaxPages:      c.MayInt("MAX_PAGES", 500),
		Retries:       c.MayInt("RETRIES", 3),
		RetryBase:     c.MayDuration("RETRY_BASE", time.Second),
		RetryMax:      c.MayDuration("RETRY_MAX", 30*time.Second),
		FetchTimeout:  c.MayDuration("FETCH_TIMEOUT", 30*time.Second),
		EntityTimeout: c.MayDuration("ENTITY_TIMEOUT", 0),
		WriteTimeout:  c.MayDuration("WRITE_TIMEOUT", 0),
		DBTimeout:     c.MayDuration("DB_TIMEOUT", 5*time.Second),
		Countries:     c.MayCSV("COUNTRIES", nil),
		ScrapeDate:    c.MayString("DATE", ""),
		SchemaVersion: domain.SchemaVersion,
		Ledger:        c.MayEnum("LEDGER", LedgerNone, LedgerNone, LedgerPG, LedgerCH),
		MirrorEnabled: c.MayBool("MIRROR_ENABLED", false),
		Mirror: objectstore.Config{
			Endpoint:  c.MayString("MIRROR_ENDPOINT", ""),
			Bucket:    c.MayString("MIRROR_BUCKET", ""),
			Prefix:    c.MayString("MIRROR_PREFIX", ""),
			AccessKey: c.MayString("MIRROR_ACCESS_KEY", ""),
			SecretKey: c.MayString("MIRROR_SECRET_KEY", ""),
			Region:    c.MayString("MIRROR_REGION", ""),
			UseSSL:    c.MayBool("MIRROR_USE_SSL", true),
		},
	}
}

// Validate checks option ranges
func (o Options) Validate() error { return validate.Struct(o) }
