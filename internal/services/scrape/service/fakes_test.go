package service

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/georgenavi/esimdb-scraper/internal/adapters/upstream/esimdb"
	perr "github.com/georgenavi/esimdb-scraper/internal/platform/errors"
	"github.com/georgenavi/esimdb-scraper/internal/services/scrape/domain"
	"github.com/georgenavi/esimdb-scraper/internal/services/scrape/ingest"
)

// pageResp is one scripted upstream page; pages past the script are empty
type pageResp struct {
	raws  []string
	pages *int
	err   error
}

type fakeUpstream struct {
	mu           sync.Mutex
	countries    []domain.Country
	countriesErr error
	pages        map[string][]pageResp
	onPage       func(ctx context.Context, slug string, page int)

	made, closed int
	calls        map[string]int
}

func (u *fakeUpstream) factory() domain.FetcherFactory {
	return func() domain.Fetcher {
		u.mu.Lock()
		defer u.mu.Unlock()
		u.made++
		return &fakeFetcher{u: u}
	}
}

func (u *fakeUpstream) callsFor(slug string) int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.calls[slug]
}

type fakeFetcher struct{ u *fakeUpstream }

func (f *fakeFetcher) Countries(ctx context.Context) ([]domain.Country, error) {
	if f.u.countriesErr != nil {
		return nil, f.u.countriesErr
	}
	return f.u.countries, nil
}

func (f *fakeFetcher) PlansPage(ctx context.Context, slug string, page int) (domain.RawPage, error) {
	f.u.mu.Lock()
	if f.u.calls == nil {
		f.u.calls = map[string]int{}
	}
	f.u.calls[slug]++
	script := f.u.pages[slug]
	hook := f.u.onPage
	f.u.mu.Unlock()

	if hook != nil {
		hook(ctx, slug, page)
	}
	if ctx.Err() != nil {
		return domain.RawPage{}, &domain.FetchError{Country: slug, Page: page, Attempts: 1, Err: perr.Canceled(ctx, "fetch interrupted")}
	}
	out := domain.RawPage{Country: slug, Number: page, Shape: esimdb.ShapeArray}
	if page > len(script) {
		return out, nil
	}
	r := script[page-1]
	if r.err != nil {
		return domain.RawPage{}, r.err
	}
	out.NumberOfPages = r.pages
	if r.pages != nil {
		out.Shape = esimdb.ShapeObject
	}
	for _, raw := range r.raws {
		out.Records = append(out.Records, json.RawMessage(raw))
	}
	return out, nil
}

func (f *fakeFetcher) Close() {
	f.u.mu.Lock()
	f.u.closed++
	f.u.mu.Unlock()
}

type fakeWriter struct {
	mu      sync.Mutex
	written map[string][]domain.Validated
	fail    map[string]error
	panicOn string
}

func (w *fakeWriter) Write(ctx context.Context, date, slug string, rows []domain.Validated) (string, error) {
	if slug == w.panicOn {
		panic("writer exploded")
	}
	if err := ctx.Err(); err != nil {
		return "", perr.Canceled(ctx, "write interrupted")
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.fail[slug]; err != nil {
		return "", err
	}
	if w.written == nil {
		w.written = map[string][]domain.Validated{}
	}
	w.written[slug] = append([]domain.Validated(nil), rows...)
	return "/out/" + date + "/" + slug + ".parquet", nil
}

func (w *fakeWriter) rows(slug string) []domain.Validated {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.written[slug]
}

type fakeLedger struct {
	mu       sync.Mutex
	started  []domain.EntityRun
	finished []domain.EntityRun
	err      error
}

func (l *fakeLedger) Start(_ context.Context, r domain.EntityRun) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.started = append(l.started, r)
	return l.err
}

func (l *fakeLedger) Finish(_ context.Context, r domain.EntityRun) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.finished = append(l.finished, r)
	return l.err
}

type fakeMirror struct {
	err  error
	keys []string
	mu   sync.Mutex
}

func (m *fakeMirror) Put(_ context.Context, date, slug, _ string) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	k := date + "/" + slug + ".parquet"
	m.keys = append(m.keys, k)
	return k, nil
}

func newTestService(u *fakeUpstream, w *fakeWriter, cfg Config) *Service {
	if cfg.ScrapeDate == "" {
		cfg.ScrapeDate = "20240131"
	}
	if cfg.SchemaVersion == "" {
		cfg.SchemaVersion = "1.0"
	}
	s := New(u.factory(), ingest.NewNormalizer(), ingest.NewValidator(cfg.SchemaVersion), w, ingest.NewPacer, cfg)
	s.newRunID = func() string { return "run-1" }
	s.now = func() time.Time { return time.Date(2024, 1, 31, 12, 0, 0, 0, time.UTC) }
	return s
}

func countries(slugs ...string) []domain.Country {
	out := make([]domain.Country, 0, len(slugs))
	for _, s := range slugs {
		out = append(out, domain.Country{Slug: s, Name: s, Region: "Europe"})
	}
	return out
}

func intp(n int) *int { return &n }
