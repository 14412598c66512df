// Package fetcher reads bulk metric updates from JSON, CSV and XLSX files.
package fetcher

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/hypolab/internal/model"
)

// ReadOptions configures ReadUpdatesFile.
type ReadOptions struct {
	// Sheet names the worksheet for .xlsx files; the first sheet is used when empty.
	Sheet string
	// Delimiter overrides the CSV field separator.
	Delimiter rune
}

// ReadUpdatesFile loads raw updates from path, choosing the parser by
// file extension.
func ReadUpdatesFile(ctx context.Context, path string, opts ReadOptions) ([]model.RawUpdate, error) {
	ext := strings.ToLower(filepath.Ext(path))
	log := zap.L().With(zap.String("component", "fetcher"), zap.String("path", path))

	var (
		updates []model.RawUpdate
		err     error
	)
	switch ext {
	case ".json":
		updates, err = readJSONFile(ctx, path)
	case ".csv", ".tsv", ".txt":
		delim := opts.Delimiter
		if delim == 0 && ext == ".tsv" {
			delim = '\t'
		}
		updates, err = readCSVFile(ctx, path, delim)
	case ".xlsx":
		var header []string
		var rows [][]string
		header, rows, err = ReadXLSXTable(path, XLSXOptions{SheetName: opts.Sheet})
		if err == nil {
			updates = RowsToUpdates(header, rows)
		}
	default:
		return nil, eris.Errorf("fetcher: unsupported file type %q", ext)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "fetcher: read %s", path)
	}

	log.Debug("fetcher: loaded updates", zap.Int("count", len(updates)))
	return updates, nil
}

func readJSONFile(ctx context.Context, path string) ([]model.RawUpdate, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrap(err, "open")
	}
	defer f.Close() //nolint:errcheck
	return DecodeUpdates(ctx, f)
}

func readCSVFile(ctx context.Context, path string, delim rune) ([]model.RawUpdate, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrap(err, "open")
	}
	defer f.Close() //nolint:errcheck

	header, rows, err := ReadCSVTable(ctx, f, CSVOptions{Delimiter: delim, TrimSpace: true})
	if err != nil {
		return nil, err
	}
	return RowsToUpdates(header, rows), nil
}
