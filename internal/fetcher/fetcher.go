// Package fetcher reads tabular patient data from CSV and XLSX files.
package fetcher

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
)

// Table is a header row plus data rows. Rows may be ragged.
type Table struct {
	Header []string
	Rows   [][]string
}

// Record is one data row keyed by lower-cased, trimmed header name.
type Record map[string]string

// Get returns the first non-empty value among keys, matched
// case-insensitively against the header.
func (r Record) Get(keys ...string) string {
	for _, k := range keys {
		if v := strings.TrimSpace(r[headerKey(k)]); v != "" {
			return v
		}
	}
	return ""
}

func headerKey(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Records maps each row onto the header. Missing trailing cells become "",
// cells beyond the header are dropped, and blank rows are skipped.
func (t *Table) Records() []Record {
	keys := make([]string, len(t.Header))
	for i, h := range t.Header {
		keys[i] = headerKey(h)
	}

	out := make([]Record, 0, len(t.Rows))
	for _, row := range t.Rows {
		if blank(row) {
			continue
		}
		rec := make(Record, len(keys))
		for i, k := range keys {
			if k == "" {
				continue
			}
			if i < len(row) {
				rec[k] = row[i]
			} else {
				rec[k] = ""
			}
		}
		out = append(out, rec)
	}
	return out
}

func blank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// ReadTable reads a .csv, .tsv or .xlsx file, using the first row as the
// header.
func ReadTable(ctx context.Context, path string) (*Table, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv", ".tsv":
		f, err := os.Open(path)
		if err != nil {
			return nil, eris.Wrapf(err, "fetcher: open %s", path)
		}
		defer f.Close() //nolint:errcheck

		opts := CSVOptions{TrimSpace: true, LazyQuotes: true}
		if strings.EqualFold(filepath.Ext(path), ".tsv") {
			opts.Delimiter = '\t'
		}
		return ReadCSV(ctx, f, opts)
	case ".xlsx":
		return ReadXLSX(path, XLSXOptions{})
	default:
		return nil, eris.Errorf("fetcher: unsupported file type %q", filepath.Ext(path))
	}
}
