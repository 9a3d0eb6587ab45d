package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/georgenavi/esimdb-scraper/internal/core/version"
	"github.com/georgenavi/esimdb-scraper/internal/modkit"
	"github.com/georgenavi/esimdb-scraper/internal/modkit/module"
	"github.com/georgenavi/esimdb-scraper/internal/platform/config"
	"github.com/georgenavi/esimdb-scraper/internal/platform/logger"
	"github.com/georgenavi/esimdb-scraper/internal/platform/store"

	scrapemod "github.com/georgenavi/esimdb-scraper/internal/services/scrape/module"
)

const (
	exitOK          = 0
	exitFailed      = 1
	exitInterrupted = 130
)

func mustSetEnv(key, val string) {
	if val != "" {
		_ = os.Setenv(key, val)
	}
}

func main() {
	os.Exit(run())
}

func run() int {
	var (
		fOut       = flag.String("out", "", "output root directory (ESIMDB_OUTPUT_DIR)")
		fWorkers   = flag.Int("workers", 0, "concurrent countries (ESIMDB_WORKERS)")
		fLocale    = flag.String("locale", "", "upstream locale (ESIMDB_LOCALE)")
		fCountries = flag.String("countries", "", "comma separated slug allow-list (ESIMDB_COUNTRIES)")
		fDate      = flag.String("date", "", "scrape date YYYYMMDD, default today UTC (ESIMDB_DATE)")
		fLedger    = flag.String("ledger", "", "run ledger: none | pg | ch (ESIMDB_LEDGER)")
	)
	flag.Parse()

	// Surface flags to modules that read FromConfig
	mustSetEnv("ESIMDB_OUTPUT_DIR", *fOut)
	if *fWorkers > 0 {
		mustSetEnv("ESIMDB_WORKERS", strconv.Itoa(*fWorkers))
	}
	mustSetEnv("ESIMDB_LOCALE", *fLocale)
	mustSetEnv("ESIMDB_COUNTRIES", *fCountries)
	mustSetEnv("ESIMDB_DATE", *fDate)
	mustSetEnv("ESIMDB_LEDGER", *fLedger)

	l := logger.Get()
	bi := version.Info()
	l.Info().Str("version", bi.Version).Str("commit", bi.Commit).Msg("esimdb-scrape starting")

	root := config.New()
	opts := scrapemod.FromConfig(root)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := store.Open(ctx, store.FromConfig(root, "esimdb-scrape", opts.Ledger), store.WithLogger(*l))
	if err != nil {
		l.Error().Err(err).Str("ledger", opts.Ledger).Msg("store.Open failed")
		return exitFailed
	}
	defer func() {
		if err := st.Close(context.Background()); err != nil {
			l.Error().Err(err).Msg("failed to close store")
		}
	}()

	deps := modkit.Deps{
		Cfg: root,
		PG:  st.PG,
		CH:  st.CH,
		Log: *l,
	}

	m, err := scrapemod.NewWithOptions(deps, opts)
	if err != nil {
		l.Error().Err(err).Msg("scrape module configuration invalid")
		return exitFailed
	}
	if err := module.Register(m); err != nil {
		l.Error().Err(err).Msg("register scrape module")
		return exitFailed
	}
	if err := m.Init(ctx); err != nil {
		l.Error().Err(err).Msg("scrape module init failed")
		return exitFailed
	}
	if err := st.Guard(ctx); err != nil {
		l.Error().Err(err).Strs("backends", deps.Backends()).Msg("ledger backend not ready")
		return exitFailed
	}

	ports, _ := module.PortsAs[scrapemod.Ports](m.Name())
	res, err := ports.Runner.Run(ctx)
	switch {
	case res.Interrupted:
		l.Warn().Msg("esimdb-scrape interrupted")
		return exitInterrupted
	case err != nil:
		return exitFailed
	case !res.OK():
		return exitFailed
	}
	return exitOK
}
