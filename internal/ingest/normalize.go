package ingest

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/pacvolt/pva/internal/model"
)

// normalizedStem maps each kind to its normalized-table file stem.
var normalizedStem = map[model.SourceKind]string{
	model.KindRolling:  "24roll",
	model.KindPrevious: "24prev",
	model.KindMonthly:  "monthly",
	model.KindFault:    "fault",
}

// WriteNormalized writes the long-format normalized table for one export
// into dir: one row per channel per sample, columns scet,name,value,unit.
// These tables are diagnostic side output, retained for the rolling-window
// kinds so an operator can inspect what ingestion actually read.
func WriteNormalized(dir string, df model.DataFile) (string, error) {
	path := filepath.Join(dir, normalizedStem[df.Kind]+"_normalized.csv")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("ingest: normalized table dir %s: %w", dir, err)
	}
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("ingest: normalized table %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"scet", "name", "value", "unit"}); err != nil {
		return "", fmt.Errorf("ingest: normalized table %s: %w", path, err)
	}
	for _, rec := range df.Records {
		scet := rec.Timestamp.Format(model.SCETLayout)
		for _, name := range sortedFieldNames(rec.Fields) {
			row := []string{scet, name, rec.Fields[name], df.Units[name]}
			if err := w.Write(row); err != nil {
				return "", fmt.Errorf("ingest: normalized table %s: %w", path, err)
			}
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", fmt.Errorf("ingest: normalized table %s: %w", path, err)
	}
	return path, nil
}

func sortedFieldNames(fields map[string]string) []string {
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
