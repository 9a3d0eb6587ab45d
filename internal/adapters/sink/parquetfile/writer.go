// Package parquetfile publishes one Snappy compressed Parquet file per country
// under <root>/<YYYYMMDD>/<slug>.parquet. A file is either complete or absent
package parquetfile

import (
	"context"
	"os"
	"path/filepath"

	"github.com/xitongsys/parquet-go-source/writerfile"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/writer"

	"github.com/georgenavi/esimdb-scraper/internal/core/normalize"
	perr "github.com/georgenavi/esimdb-scraper/internal/platform/errors"
	"github.com/georgenavi/esimdb-scraper/internal/platform/logger"
	"github.com/georgenavi/esimdb-scraper/internal/platform/validate"
	"github.com/georgenavi/esimdb-scraper/internal/services/scrape/domain"
)

// seams
var (
	createTemp = os.CreateTemp
	syncFile   = func(f *os.File) error { return f.Sync() }
	rename     = os.Rename
)

// Writer implements domain.Writer on the local filesystem
type Writer struct {
	Root string

	// Parallel is the parquet-go marshal parallelism
	Parallel int64

	log *logger.Logger
}

// New returns a writer rooted at root
func New(root string) *Writer {
	return &Writer{Root: root, Parallel: 4, log: logger.Named("parquetfile")}
}

type target struct {
	Date string `json:"scrape_date" validate:"required,yyyymmdd"`
	Slug string `json:"slug" validate:"required,slug"`
}

// Path returns the final location for one country on one date
func (w *Writer) Path(date, slug string) string {
	return filepath.Join(w.Root, date, normalize.Slug(slug)+".parquet")
}

// Write serializes rows to a temp file next to the target, syncs it and renames
// it into place. On any error the temp file is removed and an existing target is untouched
func (w *Writer) Write(ctx context.Context, date, slug string, rows []domain.Validated) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", perr.Canceled(ctx, "parquet write interrupted")
	}
	t := target{Date: date, Slug: normalize.Slug(slug)}
	if err := validate.Struct(t); err != nil {
		return "", err
	}
	if len(rows) == 0 {
		return "", perr.InvalidArgf("no rows for %s", t.Slug)
	}

	dir := filepath.Join(w.Root, t.Date)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", perr.Wrapf(err, perr.ErrorCodeIO, "create %s", dir)
	}
	final := filepath.Join(dir, t.Slug+".parquet")

	tmp, err := createTemp(dir, "."+t.Slug+"-*.parquet.tmp")
	if err != nil {
		return "", perr.Wrapf(err, perr.ErrorCodeIO, "create temp file in %s", dir)
	}
	published := false
	defer func() {
		if !published {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	if err := w.encode(ctx, tmp, rows); err != nil {
		return "", err
	}
	if err := syncFile(tmp); err != nil {
		return "", perr.Wrapf(err, perr.ErrorCodeIO, "sync %s", tmp.Name())
	}
	if err := tmp.Chmod(0o644); err != nil {
		return "", perr.Wrapf(err, perr.ErrorCodeIO, "chmod %s", tmp.Name())
	}
	if err := tmp.Close(); err != nil {
		return "", perr.Wrapf(err, perr.ErrorCodeIO, "close %s", tmp.Name())
	}
	if err := rename(tmp.Name(), final); err != nil {
		return "", perr.Wrapf(err, perr.ErrorCodeIO, "publish %s", final)
	}
	published = true

	w.log.Debug().Str("path", final).Int("rows", len(rows)).Msg("parquet published")
	return final, nil
}

func (w *Writer) encode(ctx context.Context, f *os.File, rows []domain.Validated) error {
	pf := writerfile.NewWriterFile(f)
	pw, err := writer.NewParquetWriter(pf, new(Row), max(w.Parallel, 1))
	if err != nil {
		return perr.Wrap(err, perr.ErrorCodeIO, "init parquet writer")
	}
	pw.CompressionType = parquet.CompressionCodec_SNAPPY

	for i, v := range rows {
		if i%1024 == 0 && ctx.Err() != nil {
			_ = pw.WriteStop()
			return perr.Canceled(ctx, "parquet write interrupted")
		}
		if err := pw.Write(FromValidated(v)); err != nil {
			_ = pw.WriteStop()
			return perr.Wrapf(err, perr.ErrorCodeIO, "write row %d", i)
		}
	}
	if err := pw.WriteStop(); err != nil {
		return perr.Wrap(err, perr.ErrorCodeIO, "finish parquet file")
	}
	return nil
}
