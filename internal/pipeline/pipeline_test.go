package pipeline

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pacvolt/pva/internal/config"
	"github.com/pacvolt/pva/internal/ingest"
	"github.com/pacvolt/pva/internal/summary"
)

var base = time.Date(2025, 12, 20, 0, 0, 0, 0, time.UTC) // 2025-354T00:00:00

const (
	rollingExport = `PacVolt export,unit 7,rolling
RecNr,AvgVin(U),AvgAmps(I),Time
1,28.1,1.5,10:00:00.0
2,28.2,1.6,10:15:00.0
3,28.0,1.4,10:30:00.0
4,28.3,1.5,10:45:00.0
5,28.1,1.6,11:00:00.0
`
	previousExport = `PacVolt export,unit 7,previous
RecNr,AvgVin(U),AvgAmps(I),Time
1,27.9,1.3,10:30:00.0
2,27.8,1.2,10:45:00.0
3,27.7,1.3,11:00:00.0
4,27.9,1.4,11:15:00.0
5,28.0,1.3,11:30:00.0
`
	faultExport = `PacVolt export,unit 7,fault
RecNr,FaultCode,Time
1,E42,09:58:00.0
2,E42,10:01:00.0
`
	emptyFaultExport = `PacVolt export,unit 7,fault
RecNr,FaultCode,Time
`
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

// exportDir lays out a full directory-mode input set.
func exportDir(t *testing.T, fault string) string {
	t.Helper()
	dir := t.TempDir()
	writeFile(t, dir, "24roll.csv", rollingExport)
	writeFile(t, dir, "24prev.csv", previousExport)
	if fault != "" {
		writeFile(t, dir, "fault.csv", fault)
	}
	return dir
}

func baseRun(input, outDir string) config.Run {
	return config.Run{
		Input:     input,
		Output:    filepath.Join(outDir, "merged.csv"),
		DebugDir:  outDir,
		Overlap:   config.OverlapOnlyRecent,
		Exclusion: config.ExclusionNone,
		BaseDate:  base,
	}
}

func readLines(t *testing.T, path string) []string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return strings.Split(strings.TrimSpace(string(data)), "\n")
}

func TestExecute_FullRun(t *testing.T) {
	dir := exportDir(t, faultExport)
	outDir := t.TempDir()
	run := baseRun(dir, outDir)
	run.Exclusion = config.ExclusionAll
	run.Margin = 5 * time.Minute

	col := summary.New(run.Output)
	if err := New(run, col).Execute(context.Background()); err != nil {
		t.Fatalf("Execute() error: %v", err)
	}

	// Fault events 09:58 and 10:01 cluster into [09:58, 10:01]; margin 5m
	// retains [09:53, 10:06]. Only the 10:00 rolling sample falls inside.
	lines := readLines(t, run.Output)
	if len(lines) != 2 {
		t.Fatalf("got %d output lines, want header + 1 row: %v", len(lines), lines)
	}
	if !strings.HasPrefix(lines[1], "2025-354T10:00:00,") {
		t.Errorf("surviving row = %q, want the 10:00:00 sample", lines[1])
	}

	s := col.Summary()
	if s.Status != summary.StatusSuccess {
		t.Errorf("status = %q, want success", s.Status)
	}
	if s.FaultFile == "" {
		t.Error("fault file should be recorded")
	}
	if len(s.InputFiles) != 3 {
		t.Errorf("InputFiles = %v, want 3", s.InputFiles)
	}
	for kind, want := range map[string]int{"rolling-24h": 5, "previous-24h": 5, "fault-log": 2} {
		if s.Counts[kind] != want {
			t.Errorf("Counts[%s] = %d, want %d", kind, s.Counts[kind], want)
		}
	}

	// Diagnostic side output.
	for _, name := range []string{
		"24roll_normalized.csv", "24prev_normalized.csv",
		"24roll_debug.csv", "24prev_debug.csv",
	} {
		if _, err := os.Stat(filepath.Join(outDir, name)); err != nil {
			t.Errorf("missing diagnostic table %s: %v", name, err)
		}
	}
}

func TestExecute_OverlapOnlyRecent(t *testing.T) {
	dir := exportDir(t, faultExport)
	outDir := t.TempDir()
	run := baseRun(dir, outDir)

	col := summary.New(run.Output)
	if err := New(run, col).Execute(context.Background()); err != nil {
		t.Fatalf("Execute() error: %v", err)
	}

	// Rolling covers [10:00, 11:00]; previous contributes only past 11:00.
	lines := readLines(t, run.Output)
	if len(lines) != 1+5+2 {
		t.Fatalf("got %d rows, want 7 (5 rolling + 2 late previous)", len(lines)-1)
	}
	for i := 2; i < len(lines); i++ {
		prev := strings.SplitN(lines[i-1], ",", 2)[0]
		cur := strings.SplitN(lines[i], ",", 2)[0]
		if cur < prev {
			t.Errorf("timestamps decrease: %q after %q", cur, prev)
		}
	}

	s := col.Summary()
	found := false
	for _, w := range s.Warnings {
		if strings.Contains(w, "overlapping previous-24h records dropped") {
			found = true
		}
	}
	if !found {
		t.Errorf("expected overlap-drop warning, got %v", s.Warnings)
	}
}

// Two fully overlapping sources under ALL: every shared timestamp appears
// once per source, distinguished by the provenance column.
func TestExecute_OverlapAllKeepsProvenance(t *testing.T) {
	dir := exportDir(t, faultExport)
	outDir := t.TempDir()
	run := baseRun(dir, outDir)
	run.Overlap = config.OverlapAll

	col := summary.New(run.Output)
	if err := New(run, col).Execute(context.Background()); err != nil {
		t.Fatalf("Execute() error: %v", err)
	}

	lines := readLines(t, run.Output)
	if !strings.HasSuffix(lines[0], ",source") {
		t.Fatalf("header = %q, want trailing source column", lines[0])
	}
	if len(lines) != 1+10 {
		t.Fatalf("got %d rows, want all 10", len(lines)-1)
	}
	var sharedSources []string
	for _, line := range lines[1:] {
		if strings.HasPrefix(line, "2025-354T10:30:00,") {
			parts := strings.Split(line, ",")
			sharedSources = append(sharedSources, parts[len(parts)-1])
		}
	}
	if len(sharedSources) != 2 || sharedSources[0] == sharedSources[1] {
		t.Fatalf("shared timestamp sources = %v, want two distinct", sharedSources)
	}
}

func TestExecute_NoFaultEventsWithExclusionAll(t *testing.T) {
	dir := exportDir(t, emptyFaultExport)
	outDir := t.TempDir()
	run := baseRun(dir, outDir)
	run.Exclusion = config.ExclusionAll

	col := summary.New(run.Output)
	if err := New(run, col).Execute(context.Background()); err != nil {
		t.Fatalf("Execute() error: %v (empty result is not an error)", err)
	}

	lines := readLines(t, run.Output)
	if len(lines) != 1 {
		t.Fatalf("got %d data rows, want 0", len(lines)-1)
	}

	s := col.Summary()
	if s.Status != summary.StatusSuccess {
		t.Errorf("status = %q, want success", s.Status)
	}
	found := false
	for _, w := range s.Warnings {
		if strings.Contains(w, "no fault clusters found") {
			found = true
		}
	}
	if !found {
		t.Errorf("expected 'no fault clusters found' warning, got %v", s.Warnings)
	}
}

func TestExecute_MalformedLineRecovered(t *testing.T) {
	dir := t.TempDir()
	damaged := `PacVolt export,unit 7,rolling
RecNr,AvgVin(U),Time
1,28.1,10:00:00.0
2,28.2,garbage
3,28.0,10:30:00.0
`
	writeFile(t, dir, "24roll.csv", damaged)
	writeFile(t, dir, "fault.csv", faultExport)
	outDir := t.TempDir()
	run := baseRun(dir, outDir)

	col := summary.New(run.Output)
	if err := New(run, col).Execute(context.Background()); err != nil {
		t.Fatalf("Execute() error: %v", err)
	}

	s := col.Summary()
	if s.Status != summary.StatusSuccess {
		t.Errorf("status = %q, want success", s.Status)
	}
	// Three raw data lines, one skipped.
	if s.Counts["rolling-24h"] != 2 {
		t.Errorf("Counts[rolling-24h] = %d, want 2", s.Counts["rolling-24h"])
	}
	found := false
	for _, w := range s.Warnings {
		if strings.Contains(w, "skipped") {
			found = true
		}
	}
	if !found {
		t.Errorf("expected skipped-line warning, got %v", s.Warnings)
	}
}

func TestExecute_MissingFaultLogIsFatal(t *testing.T) {
	dir := exportDir(t, "")
	outDir := t.TempDir()
	run := baseRun(dir, outDir)

	col := summary.New(run.Output)
	err := New(run, col).Execute(context.Background())
	if !errors.Is(err, ingest.ErrMissingRequiredFile) {
		t.Fatalf("Execute() error = %v, want ErrMissingRequiredFile", err)
	}
	if col.Summary().Status != summary.StatusFailure {
		t.Error("summary should record failure")
	}
	// Fatal before any processing: no output artifact.
	if _, statErr := os.Stat(run.Output); !os.IsNotExist(statErr) {
		t.Error("output file exists despite fatal discovery error")
	}
}

func TestExecute_SingleFileMode(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "export.csv", rollingExport)
	outDir := t.TempDir()
	run := baseRun(path, outDir)
	run.SingleKind = "rolling-24h"

	col := summary.New(run.Output)
	if err := New(run, col).Execute(context.Background()); err != nil {
		t.Fatalf("Execute() error: %v", err)
	}
	lines := readLines(t, run.Output)
	if len(lines) != 1+5 {
		t.Fatalf("got %d rows, want 5", len(lines)-1)
	}
	if col.Summary().FaultFile != "" {
		t.Error("single-file mode should not record a fault file")
	}
}

func TestExecute_CancelledBeforeEmit(t *testing.T) {
	dir := exportDir(t, faultExport)
	outDir := t.TempDir()
	run := baseRun(dir, outDir)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	col := summary.New(run.Output)
	err := New(run, col).Execute(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Execute() error = %v, want context.Canceled", err)
	}
	if _, statErr := os.Stat(run.Output); !os.IsNotExist(statErr) {
		t.Error("output artifact exists after cancellation")
	}
}

func TestExecute_Idempotent(t *testing.T) {
	dir := exportDir(t, faultExport)
	outDir := t.TempDir()
	run := baseRun(dir, outDir)
	run.Overlap = config.OverlapAll
	run.Exclusion = config.ExclusionAll
	run.Margin = 30 * time.Minute

	if err := New(run, summary.New(run.Output)).Execute(context.Background()); err != nil {
		t.Fatal(err)
	}
	first, _ := os.ReadFile(run.Output)
	if err := New(run, summary.New(run.Output)).Execute(context.Background()); err != nil {
		t.Fatal(err)
	}
	second, _ := os.ReadFile(run.Output)
	if !bytes.Equal(first, second) {
		t.Fatal("identical runs produced different output bytes")
	}
}
