package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/pacvolt/pva/internal/cluster"
	"github.com/pacvolt/pva/internal/config"
	"github.com/pacvolt/pva/internal/emit"
	"github.com/pacvolt/pva/internal/exclude"
	"github.com/pacvolt/pva/internal/ingest"
	"github.com/pacvolt/pva/internal/model"
	"github.com/pacvolt/pva/internal/overlap"
	"github.com/pacvolt/pva/internal/summary"
)

// Pipeline wires ingestion, fault clustering, overlap resolution,
// exclusion filtering and emission into one run. A run is single-threaded
// and synchronous: every stage consumes the fully materialized output of
// its predecessors.
type Pipeline struct {
	run config.Run
	sum *summary.Collector
}

// New creates a Pipeline for one run.
func New(run config.Run, sum *summary.Collector) *Pipeline {
	return &Pipeline{run: run, sum: sum}
}

// Execute processes the configured dataset to completion and records the
// terminal status on the summary collector. Cancellation before emission
// leaves no output artifact.
func (p *Pipeline) Execute(ctx context.Context) error {
	if err := p.execute(ctx); err != nil {
		p.sum.Fail(err)
		return err
	}
	p.sum.Succeed()
	return nil
}

func (p *Pipeline) execute(ctx context.Context) error {
	srcs, err := p.sources()
	if err != nil {
		return err
	}

	var fault *model.DataFile
	var files []model.DataFile
	for _, s := range srcs {
		if err := ctx.Err(); err != nil {
			return err
		}
		res, err := ingest.File(s.Path, s.Kind, p.run.BaseDate)
		if err != nil {
			return fmt.Errorf("pipeline ingest: %w", err)
		}
		p.sum.AddInput(s.Path)
		p.sum.WarnAll(res.Warnings)
		p.sum.AddCount(s.Kind, len(res.File.Records))
		slog.Debug("ingested export",
			"path", s.Path, "kind", s.Kind,
			"records", len(res.File.Records), "skipped", len(res.Warnings))

		if s.Kind == model.KindFault {
			f := res.File
			fault = &f
			p.sum.SetFaultFile(s.Path)
			continue
		}
		files = append(files, res.File)
	}

	// Diagnostic side output: normalized long-format tables for the
	// rolling-window kinds. Best effort, never fails the run.
	for _, f := range files {
		if f.Kind != model.KindRolling && f.Kind != model.KindPrevious {
			continue
		}
		if _, err := ingest.WriteNormalized(p.run.DebugDir, f); err != nil {
			p.sum.Warn("normalized table for %s not written: %v", f.Kind, err)
			slog.Warn("normalized table not written", "kind", f.Kind, "error", err)
		}
	}

	var clusters []model.FaultCluster
	if fault != nil {
		clusters = cluster.New(cluster.Config{Gap: p.run.ClusterGap}).Cluster(fault.Records)
		slog.Debug("clustered fault events",
			"events", len(fault.Records), "clusters", len(clusters))
	}
	if p.run.Exclusion == config.ExclusionAll && len(clusters) == 0 {
		p.sum.Warn("no fault clusters found")
	}

	resolved := overlap.Resolve(files, p.run.Overlap)
	for _, kind := range model.DataKinds() {
		if n := resolved.Dropped[kind]; n > 0 {
			p.sum.Warn("%d overlapping %s records dropped", n, kind)
		}
	}

	filtered := exclude.Apply(resolved.Files, clusters, exclude.Config{
		Policy: p.run.Exclusion,
		Margin: p.run.Margin,
		Min:    p.run.MinTime,
		Max:    p.run.MaxTime,
	})

	em := emit.New(p.run.Output, p.run.DebugDir, p.run.Overlap == config.OverlapAll)
	rows, err := em.Emit(ctx, filtered)
	if err != nil {
		return fmt.Errorf("pipeline emit: %w", err)
	}
	if rows == 0 {
		p.sum.Warn("merged output contains zero rows")
	}
	slog.Info("run complete", "rows", rows, "output", p.run.Output)
	return nil
}

// sources resolves the run input into (path, kind) pairs: directory mode
// discovers recognized filenames, single-file mode uses the configured kind.
func (p *Pipeline) sources() ([]ingest.Source, error) {
	info, err := os.Stat(p.run.Input)
	if err != nil {
		return nil, fmt.Errorf("pipeline: input %s: %w", p.run.Input, err)
	}
	if info.IsDir() {
		return ingest.Discover(p.run.Input)
	}
	return []ingest.Source{{Path: p.run.Input, Kind: p.run.SingleKind}}, nil
}
