package parquetfile

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/reader"

	perr "github.com/georgenavi/esimdb-scraper/internal/platform/errors"
	kit "github.com/georgenavi/esimdb-scraper/internal/platform/testkit"
	"github.com/georgenavi/esimdb-scraper/internal/services/scrape/domain"
)

func ptr[T any](v T) *T { return &v }

func validated(id, name string, price, gb *float64, days *int) domain.Validated {
	return domain.Validated{
		Record: domain.Record{
			ID: id, Country: "Testland", Region: "Europe", Provider: "Airalo",
			PlanName: name, PriceUSD: price, DataGB: gb, ValidityDays: days,
		},
		ScrapeDate:    "20240131",
		SchemaVersion: "1.0",
	}
}

func readBack(t *testing.T, path string) []Row {
	t.Helper()
	pf, err := local.NewLocalFileReader(path)
	if err != nil {
		t.Fatalf("open %s: %v", path, err)
	}
	defer pf.Close()
	pr, err := reader.NewParquetReader(pf, new(Row), 1)
	if err != nil {
		t.Fatalf("reader: %v", err)
	}
	defer pr.ReadStop()
	rows := make([]Row, int(pr.GetNumRows()))
	if err := pr.Read(&rows); err != nil {
		t.Fatalf("read: %v", err)
	}
	return rows
}

func leftovers(t *testing.T, dir string) []string {
	t.Helper()
	m, _ := filepath.Glob(filepath.Join(dir, ".*.tmp"))
	return m
}

func TestWrite_RoundTrip(t *testing.T) {
	w := New(t.TempDir())
	rows := []domain.Validated{
		validated("1", "A", ptr(10.0), ptr(3.0), ptr(30)),
		validated("2", "B", nil, nil, nil),
	}
	path, err := w.Write(context.Background(), "20240131", "testland", rows)
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	if path != filepath.Join(w.Root, "20240131", "testland.parquet") || path != w.Path("20240131", "testland") {
		t.Fatalf("unexpected path %s", path)
	}
	st, err := os.Stat(path)
	if err != nil || st.Mode().Perm() != 0o644 {
		t.Fatalf("stat: %v %v", err, st)
	}

	got := readBack(t, path)
	if len(got) != 2 {
		t.Fatalf("rows = %d", len(got))
	}
	a := got[0]
	if a.Country != "Testland" || a.PlanName != "A" || a.ScrapeDate != "20240131" || a.SchemaVersion != "1.0" {
		t.Fatalf("unexpected row %+v", a)
	}
	if a.PriceUSD == nil || *a.PriceUSD != 10 || a.DataGB == nil || *a.DataGB != 3 || a.ValidityDays == nil || *a.ValidityDays != 30 {
		t.Fatalf("unexpected numerics %+v", a)
	}
	if b := got[1]; b.PriceUSD != nil || b.DataGB != nil || b.ValidityDays != nil {
		t.Fatalf("absent fields must be null: %+v", b)
	}
	if l := leftovers(t, filepath.Dir(path)); len(l) != 0 {
		t.Fatalf("temp files left: %v", l)
	}
}

func TestWrite_SanitizesSlugAndOverwrites(t *testing.T) {
	w := New(t.TempDir())
	p1, err := w.Write(context.Background(), "20240131", "Côte d'Ivoire", []domain.Validated{validated("1", "A", nil, nil, nil)})
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	if filepath.Base(p1) != "cote_d_ivoire.parquet" {
		t.Fatalf("slug not sanitized: %s", p1)
	}
	p2, err := w.Write(context.Background(), "20240131", "Côte d'Ivoire", []domain.Validated{
		validated("1", "A", nil, nil, nil),
		validated("2", "B", nil, nil, nil),
	})
	if err != nil || p2 != p1 {
		t.Fatalf("rewrite: %v %s", err, p2)
	}
	if n := len(readBack(t, p1)); n != 2 {
		t.Fatalf("overwrite should replace the file, rows=%d", n)
	}
}

func TestWrite_FailureKeepsPreviousFile(t *testing.T) {
	w := New(t.TempDir())
	prev := []domain.Validated{validated("1", "A", ptr(1.5), nil, nil)}
	path, err := w.Write(context.Background(), "20240131", "testland", prev)
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	cases := []struct {
		name string
		arm  func(t *testing.T)
	}{
		{"sync fails", func(t *testing.T) {
			kit.Swap(t, &syncFile, func(*os.File) error { return errors.New("disk gone") })
		}},
		{"rename fails", func(t *testing.T) {
			kit.Swap(t, &rename, func(string, string) error { return errors.New("cross device") })
		}},
	}
	next := []domain.Validated{validated("1", "A", nil, nil, nil), validated("2", "B", nil, nil, nil)}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tc.arm(t)
			_, err := w.Write(context.Background(), "20240131", "testland", next)
			if !perr.IsCode(err, perr.ErrorCodeIO) {
				t.Fatalf("want io error, got %v", err)
			}
			if n := len(readBack(t, path)); n != 1 {
				t.Fatalf("previous file must be intact, rows=%d", n)
			}
			if l := leftovers(t, filepath.Dir(path)); len(l) != 0 {
				t.Fatalf("temp files left: %v", l)
			}
		})
	}
}

func TestWrite_FirstFailureLeavesNoFile(t *testing.T) {
	w := New(t.TempDir())
	kit.Swap(t, &rename, func(string, string) error { return errors.New("boom") })
	if _, err := w.Write(context.Background(), "20240131", "testland", []domain.Validated{validated("1", "A", nil, nil, nil)}); err == nil {
		t.Fatalf("want error")
	}
	if _, err := os.Stat(w.Path("20240131", "testland")); !os.IsNotExist(err) {
		t.Fatalf("target must not exist: %v", err)
	}
}

func TestWrite_Guards(t *testing.T) {
	w := New(t.TempDir())
	rows := []domain.Validated{validated("1", "A", nil, nil, nil)}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := w.Write(ctx, "20240131", "testland", rows); !perr.IsCode(err, perr.ErrorCodeCanceled) {
		t.Fatalf("want canceled, got %v", err)
	}
	if _, err := w.Write(context.Background(), "2024-01-31", "testland", rows); !perr.IsCode(err, perr.ErrorCodeValidation) {
		t.Fatalf("want validation error for bad date, got %v", err)
	}
	if _, err := w.Write(context.Background(), "20240131", "testland", nil); !perr.IsCode(err, perr.ErrorCodeInvalidArgument) {
		t.Fatalf("want invalid argument for empty batch, got %v", err)
	}
	if _, err := os.Stat(filepath.Join(w.Root, "20240131")); !os.IsNotExist(err) {
		t.Fatalf("no directory should be created by rejected writes")
	}
}

func TestWrite_CreateTempFails(t *testing.T) {
	w := New(t.TempDir())
	kit.Swap(t, &createTemp, func(string, string) (*os.File, error) { return nil, errors.New("no inodes") })
	_, err := w.Write(context.Background(), "20240131", "testland", []domain.Validated{validated("1", "A", nil, nil, nil)})
	if !perr.IsCode(err, perr.ErrorCodeIO) {
		t.Fatalf("want io error, got %v", err)
	}
}
