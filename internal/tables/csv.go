// Package tables reads and writes the CSV tables exchanged between pipeline stages.
package tables

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/rewired-gh/liqstudy/internal/models"
)

// table is an opened CSV file with its header resolved to column positions.
type table struct {
	path   string
	file   *os.File
	reader *csv.Reader
	cols   map[string]int
}

// openTable opens path and checks that every required column is present.
func openTable(path string, required []string) (*table, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrMissingInput, path)
		}
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.ReuseRecord = true
	header, err := r.Read()
	if err == io.EOF {
		header = nil
	} else if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to read header of %s: %w", path, err)
	}

	cols := make(map[string]int, len(header))
	for i, name := range header {
		name = strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))
		if _, dup := cols[name]; !dup {
			cols[name] = i
		}
	}
	var missing []string
	for _, name := range required {
		if _, ok := cols[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		f.Close()
		sort.Strings(missing)
		return nil, &SchemaError{Path: path, Missing: missing}
	}
	return &table{path: path, file: f, reader: r, cols: cols}, nil
}

func (t *table) Close() error {
	return t.file.Close()
}

// each calls fn for every data record. line is the 1-based file line of the record.
func (t *table) each(fn func(rec record, line int) error) error {
	line := 1
	for {
		fields, err := t.reader.Read()
		if err == io.EOF {
			return nil
		}
		line++
		if err != nil {
			return fmt.Errorf("%s: line %d: %w", t.path, line, err)
		}
		if err := fn(record{fields: fields, cols: t.cols}, line); err != nil {
			return fmt.Errorf("%s: line %d: %w", t.path, line, err)
		}
	}
}

type record struct {
	fields []string
	cols   map[string]int
}

func (r record) get(name string) string {
	i, ok := r.cols[name]
	if !ok || i >= len(r.fields) {
		return ""
	}
	return strings.TrimSpace(r.fields[i])
}

// float parses a numeric cell; blank and "NaN" cells are NaN.
func (r record) float(name string) (float64, error) {
	s := r.get(name)
	if s == "" {
		return math.NaN(), nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("column %s: %w", name, err)
	}
	return v, nil
}

// count parses a count cell, accepting the "3.0" form written by float-typed tools.
func (r record) count(name string) (int, error) {
	s := r.get(name)
	if n, err := strconv.Atoi(s); err == nil {
		return n, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v != math.Trunc(v) {
		return 0, fmt.Errorf("column %s: invalid count %q", name, s)
	}
	return int(v), nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// writeTable writes header and rows to a temporary file next to path and renames it
// into place, so a failed write never leaves a partial table.
func writeTable(path string, header []string, rows [][]string) (err error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	w := csv.NewWriter(tmp)
	if err := w.Write(header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	for i, row := range rows {
		if err := w.Write(row); err != nil {
			return fmt.Errorf("failed to write record %d: %w", i, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("failed to flush %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", path, err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("failed to chmod %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to move %s into place: %w", path, err)
	}
	return nil
}

// stat parses a statistic cell; blank and NaN cells are undefined.
func (r record) stat(name string) (models.Stat, error) {
	v, err := r.float(name)
	if err != nil {
		return models.Stat{}, err
	}
	return models.Defined(v), nil
}
