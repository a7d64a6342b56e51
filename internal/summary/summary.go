package summary

import (
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/pacvolt/pva/internal/model"
)

// Run statuses reported to the presentation layer.
const (
	StatusSuccess = "success"
	StatusFailure = "failure"
)

// RunSummary is the read-only structured data handed to the presentation
// layer after a run.
type RunSummary struct {
	RunID      string         `json:"runId"`
	InputFiles []string       `json:"inputFiles"`
	FaultFile  string         `json:"faultFile,omitempty"`
	OutputFile string         `json:"outputFile"`
	Status     string         `json:"status"`
	Message    string         `json:"message,omitempty"`
	Counts     map[string]int `json:"counts"`
	Warnings   []string       `json:"warnings"`
}

// Collector accumulates run metadata. It is safe for concurrent use and
// never blocks the pipeline on whether the data is ever displayed.
type Collector struct {
	mu sync.Mutex
	s  RunSummary
}

// New creates a Collector for a fresh run.
func New(outputFile string) *Collector {
	return &Collector{s: RunSummary{
		RunID:      uuid.NewString(),
		OutputFile: outputFile,
		Counts:     make(map[string]int),
	}}
}

// AddInput records an input file actually consumed.
func (c *Collector) AddInput(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.s.InputFiles = append(c.s.InputFiles, path)
}

// SetFaultFile records that a fault log was supplied and used.
func (c *Collector) SetFaultFile(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.s.FaultFile = path
}

// AddCount adds to the ingested record count for a source kind.
func (c *Collector) AddCount(kind model.SourceKind, n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.s.Counts[string(kind)] += n
}

// Warn records one warning.
func (c *Collector) Warn(format string, args ...any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.s.Warnings = append(c.s.Warnings, fmt.Sprintf(format, args...))
}

// WarnAll records a batch of warnings, e.g. a file's malformed-line notes.
func (c *Collector) WarnAll(warnings []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.s.Warnings = append(c.s.Warnings, warnings...)
}

// Succeed marks the run successful.
func (c *Collector) Succeed() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.s.Status = StatusSuccess
}

// Fail marks the run failed with the given cause.
func (c *Collector) Fail(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.s.Status = StatusFailure
	c.s.Message = err.Error()
}

// Summary returns a snapshot of the accumulated data. Mutating the snapshot
// does not affect the collector.
func (c *Collector) Summary() RunSummary {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := c.s
	out.InputFiles = append([]string(nil), c.s.InputFiles...)
	out.Warnings = append([]string(nil), c.s.Warnings...)
	out.Counts = make(map[string]int, len(c.s.Counts))
	for k, v := range c.s.Counts {
		out.Counts[k] = v
	}
	return out
}
