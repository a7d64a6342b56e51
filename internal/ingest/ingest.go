package ingest

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/pacvolt/pva/internal/model"
)

// Result is one parsed export plus the warnings recovered during parsing.
type Result struct {
	File     model.DataFile
	Warnings []string
}

// channel is one measurement column from the export header.
type channel struct {
	idx  int
	name string
	unit string
}

// File parses a wide-format export into a DataFile. The first line is the
// export banner and is skipped; the second line carries column headers with
// RecNr first and Time last. Data lines that are short or carry an
// unparsable Time cell are skipped with a warning; only unreadable files or
// unusable headers fail.
func File(path string, kind model.SourceKind, base time.Time) (Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return Result{}, fmt.Errorf("ingest: open %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1 // row widths vary; short rows are handled below

	// Banner line.
	if _, err := r.Read(); err != nil {
		return Result{}, fmt.Errorf("ingest: %s: missing banner line: %w", path, err)
	}
	headers, err := r.Read()
	if err != nil {
		return Result{}, fmt.Errorf("ingest: %s: missing header line: %w", path, err)
	}
	if len(headers) < 3 {
		return Result{}, fmt.Errorf("ingest: %s: header has %d columns, need RecNr, at least one channel, and Time", path, len(headers))
	}

	timeIdx := len(headers) - 1
	channels := make([]channel, 0, timeIdx-1)
	units := make(map[string]string, timeIdx-1)
	for i := 1; i < timeIdx; i++ {
		name, unit := splitUnit(strings.TrimSpace(headers[i]))
		channels = append(channels, channel{idx: i, name: name, unit: unit})
		units[name] = unit
	}

	res := Result{File: model.DataFile{Path: path, Kind: kind, Units: units}}
	name := filepath.Base(path)
	seen := make(map[int64]struct{})

	for line := 3; ; line++ {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			res.warnf("%s line %d: %v, skipped", name, line, err)
			continue
		}
		if len(row) < len(headers) {
			res.warnf("%s line %d: %d of %d columns, skipped", name, line, len(row), len(headers))
			continue
		}
		offset, err := parseOffset(row[timeIdx])
		if err != nil {
			res.warnf("%s line %d: no parsable timestamp in %q, skipped", name, line, row[timeIdx])
			continue
		}
		ts := base.Add(offset)
		if _, dup := seen[ts.UnixNano()]; dup {
			res.warnf("%s line %d: duplicate timestamp %s, skipped", name, line, ts.Format(model.SCETLayout))
			continue
		}
		seen[ts.UnixNano()] = struct{}{}

		fields := make(map[string]string, len(channels))
		for _, c := range channels {
			fields[c.name] = row[c.idx]
		}
		res.File.Records = append(res.File.Records, model.Record{
			Timestamp: ts,
			Source:    kind,
			Seq:       len(res.File.Records),
			Fields:    fields,
		})
	}

	recs := res.File.Records
	sort.SliceStable(recs, func(i, j int) bool {
		return recs[i].Timestamp.Before(recs[j].Timestamp)
	})
	if len(recs) > 0 {
		res.File.Coverage = model.Span{
			Min: recs[0].Timestamp,
			Max: recs[len(recs)-1].Timestamp,
		}
	}
	return res, nil
}

func (r *Result) warnf(format string, args ...any) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

// splitUnit extracts a trailing parenthesized unit from a column name:
// "AvgVin(U)" → ("AvgVin", "U"); "PSats" → ("PSats", "").
func splitUnit(col string) (string, string) {
	open := strings.IndexByte(col, '(')
	if open > 0 && strings.HasSuffix(col, ")") {
		return col[:open], col[open+1 : len(col)-1]
	}
	return col, ""
}

// parseOffset converts an export time cell "HH:MM:SS.f" into a duration
// from the base date. Hours may exceed 23 in monthly exports.
func parseOffset(s string) (time.Duration, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 3 {
		return 0, fmt.Errorf("want HH:MM:SS.f, got %q", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 {
		return 0, fmt.Errorf("bad hours in %q", s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("bad minutes in %q", s)
	}
	secStr, fracStr, _ := strings.Cut(parts[2], ".")
	sec, err := strconv.Atoi(secStr)
	if err != nil || sec < 0 || sec > 60 {
		return 0, fmt.Errorf("bad seconds in %q", s)
	}
	var nanos int64
	if fracStr != "" {
		// Pad or truncate the fraction to nanosecond precision.
		padded := (fracStr + "000000000")[:9]
		nanos, err = strconv.ParseInt(padded, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("bad fraction in %q", s)
		}
	}
	return time.Duration(h)*time.Hour +
		time.Duration(m)*time.Minute +
		time.Duration(sec)*time.Second +
		time.Duration(nanos), nil
}
