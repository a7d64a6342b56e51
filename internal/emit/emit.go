package emit

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/pacvolt/pva/internal/model"
)

// ErrWriteFailure marks an output path that could not be created or
// written. No partial file remains after it.
var ErrWriteFailure = errors.New("output write failure")

// debugStem names the per-kind debug tables for the rolling-window kinds.
var debugStem = map[model.SourceKind]string{
	model.KindRolling:  "24roll",
	model.KindPrevious: "24prev",
}

// Emitter merges surviving per-source sequences and writes the main
// consolidated table plus per-kind debug tables.
type Emitter struct {
	path       string
	debugDir   string
	provenance bool // add the source column (OverlapPolicy ALL)
}

// New creates an Emitter writing the main table to path and debug tables
// into debugDir.
func New(path, debugDir string, provenance bool) *Emitter {
	return &Emitter{path: path, debugDir: debugDir, provenance: provenance}
}

// Emit merges the files and writes all tables. Emission is atomic per
// table: each is written to a temp file in its destination directory and
// renamed into place, so a failure leaves no partial file. A context
// cancelled before emission leaves no artifact at all; once writing has
// begun the tables run to completion or fail outright. Returns the number
// of rows in the main table.
func (e *Emitter) Emit(ctx context.Context, files []model.DataFile) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	merged := Merge(files)
	names := fieldNames(files)
	header := e.header(names)

	rows := make([][]string, 0, len(merged))
	for _, rec := range merged {
		rows = append(rows, e.row(rec, names))
	}
	if err := writeTable(e.path, header, rows); err != nil {
		return 0, err
	}

	for _, f := range files {
		stem, ok := debugStem[f.Kind]
		if !ok {
			continue
		}
		debugRows := make([][]string, 0, len(f.Records))
		for _, rec := range f.Records {
			debugRows = append(debugRows, e.row(rec, names))
		}
		path := filepath.Join(e.debugDir, stem+"_debug.csv")
		if err := writeTable(path, header, debugRows); err != nil {
			return 0, err
		}
	}
	return len(rows), nil
}

// fieldNames returns the sorted union of field names observed across the
// contributing files.
func fieldNames(files []model.DataFile) []string {
	seen := make(map[string]struct{})
	for _, f := range files {
		for _, rec := range f.Records {
			for name := range rec.Fields {
				seen[name] = struct{}{}
			}
		}
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (e *Emitter) header(names []string) []string {
	header := append([]string{"scet"}, names...)
	if e.provenance {
		header = append(header, "source")
	}
	return header
}

func (e *Emitter) row(rec model.Record, names []string) []string {
	row := make([]string, 0, len(names)+2)
	row = append(row, rec.Timestamp.Format(model.SCETLayout))
	for _, name := range names {
		row = append(row, rec.Fields[name]) // missing fields render empty
	}
	if e.provenance {
		row = append(row, string(rec.Source))
	}
	return row
}

// writeTable writes one CSV table atomically: temp file in the destination
// directory, then rename. On any failure the temp file is removed.
func writeTable(path string, header []string, rows [][]string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("emit: create %s: %v: %w", dir, err, ErrWriteFailure)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("emit: temp file for %s: %v: %w", path, err, ErrWriteFailure)
	}
	defer func() {
		if tmp != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	w := csv.NewWriter(tmp)
	if err := w.Write(header); err != nil {
		return fmt.Errorf("emit: write %s: %v: %w", path, err, ErrWriteFailure)
	}
	for _, row := range rows {
		if err := w.Write(row); err != nil {
			return fmt.Errorf("emit: write %s: %v: %w", path, err, ErrWriteFailure)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("emit: flush %s: %v: %w", path, err, ErrWriteFailure)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		tmp = nil
		return fmt.Errorf("emit: close %s: %v: %w", path, err, ErrWriteFailure)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		tmp = nil
		return fmt.Errorf("emit: rename into %s: %v: %w", path, err, ErrWriteFailure)
	}
	tmp = nil
	return nil
}
