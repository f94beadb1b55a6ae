// Package orchestrator runs an experiment: every strategy of every
// sample-count group is profiled and finalized, and the collected runs
// are exported, stored, summarized and charted.
package orchestrator

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/user/shardbench/pkg/config"
	"github.com/user/shardbench/pkg/ports"
	"github.com/user/shardbench/pkg/strategy"
	"github.com/user/shardbench/pkg/summarizer"
	"github.com/user/shardbench/pkg/telemetry"
)

// ReportFileName is the Markdown summary written to the results directory.
const ReportFileName = "summary.md"

// Config contains the output settings of an experiment.
type Config struct {
	ResultsDir   string
	ExportPrefix string
	// ChartPath, if set, receives a PNG of mean throughput per strategy.
	ChartPath     string
	Weights       summarizer.Weights
	Extrapolation *summarizer.Extrapolation
	Confidence    float64
	// Source describes the experiment in the report.
	Source string
}

// FromExperiment derives the output settings from an experiment file.
func FromExperiment(e config.Experiment, source string) Config {
	c := Config{
		ResultsDir:   e.ResultsDir,
		ExportPrefix: e.ExportPrefix,
		ChartPath:    e.ChartPath,
		Weights: summarizer.Weights{
			Preprocessing: e.Weights.Preprocessing,
			Storage:       e.Weights.Storage,
			Throughput:    e.Weights.Throughput,
		},
		Confidence: summarizer.DefaultConfidence,
		Source:     source,
	}
	if e.Extrapolation.Enabled() {
		c.Extrapolation = &summarizer.Extrapolation{DatasetGB: e.Extrapolation.DatasetGB, SampleKB: e.Extrapolation.SampleKB}
	}
	return c
}

// Orchestrator coordinates strategies and result output.
type Orchestrator struct {
	deps     strategy.Dependencies
	store    ports.ResultStore
	renderer ports.ChartRenderer
	logger   ports.Logger
}

// New creates a new Orchestrator. store and renderer may be nil.
func New(deps strategy.Dependencies, store ports.ResultStore, renderer ports.ChartRenderer) *Orchestrator {
	return &Orchestrator{
		deps:     deps,
		store:    store,
		renderer: renderer,
		logger:   deps.Logger,
	}
}

// Result lists what an experiment produced.
type Result struct {
	Runs      ports.Table
	Telemetry ports.Table
	Groups    []summarizer.Summary
	Ranking   []summarizer.Score

	RunsPath      string
	TelemetryPath string
	BenchPath     string
	ReportPath    string
	ChartPath     string
}

// Run profiles every strategy in order. A failing strategy stops the
// experiment; the runs finished before it are still exported.
func (o *Orchestrator) Run(ctx context.Context, groups []config.Group, cfg Config) (Result, error) {
	runs := summarizer.NewRunTable(nil)
	tel := summarizer.NewTelemetryTable(strategy.Meta{}, nil)

	total := 0
	for _, g := range groups {
		total += len(g.Strategies)
	}
	o.logger.Info("Starting experiment: %d strategies", total)

	var runErr error
	n := 0
loop:
	for _, g := range groups {
		o.logger.Info("Sample count %d: %d strategies", g.SampleCount, len(g.Strategies))
		for _, sc := range g.Strategies {
			n++
			records, samples, err := o.runStrategy(ctx, sc)
			runs = summarizer.Concat(runs, summarizer.NewRunTable(records))
			if len(records) > 0 {
				tel = summarizer.Concat(tel, summarizer.NewTelemetryTable(records[0].Meta, samples))
			}
			if err != nil {
				o.logger.Error("Strategy %d of %d failed: %v", n, total, err)
				runErr = fmt.Errorf("strategy %d of %d: %w", n, total, err)
				break loop
			}
		}
	}

	res, err := o.export(ctx, runs, tel, cfg)
	return res, errors.Join(runErr, err)
}

func (o *Orchestrator) runStrategy(ctx context.Context, sc strategy.Config) ([]strategy.RunRecord, []telemetry.Record, error) {
	s, err := strategy.New(sc, o.deps)
	if err != nil {
		return nil, nil, err
	}
	profileErr := s.Profile(ctx)
	s.LogStats()
	records, samples := s.Finalize()
	return records, samples, profileErr
}

// export writes every output of the collected tables. Output failures
// are joined so one broken sink does not hide the others.
func (o *Orchestrator) export(ctx context.Context, runs, tel ports.Table, cfg Config) (Result, error) {
	res := Result{Runs: runs, Telemetry: tel}
	if len(runs.Rows) == 0 {
		o.logger.Warn("No runs recorded, nothing to export")
		return res, nil
	}

	fs := o.deps.FS
	if err := fs.MkdirAll(cfg.ResultsDir); err != nil {
		return res, fmt.Errorf("create results directory: %w", err)
	}

	var errs []error
	keep := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}

	runsName, err := summarizer.ExportFileName(runs, summarizer.RunsKind, cfg.ExportPrefix)
	if err != nil {
		return res, err
	}
	telName, _ := summarizer.ExportFileName(runs, summarizer.TelemetryKind, cfg.ExportPrefix)

	res.RunsPath = filepath.Join(cfg.ResultsDir, runsName)
	keep(o.writeTable(res.RunsPath, func(b *bytes.Buffer) error { return summarizer.WriteCSV(b, runs) }))
	res.TelemetryPath = filepath.Join(cfg.ResultsDir, telName)
	keep(o.writeTable(res.TelemetryPath, func(b *bytes.Buffer) error { return summarizer.WriteCSV(b, tel) }))
	res.BenchPath = filepath.Join(cfg.ResultsDir, strings.TrimSuffix(runsName, ".csv")+".bench")
	keep(o.writeTable(res.BenchPath, func(b *bytes.Buffer) error { return summarizer.WriteBenchfmt(b, runs) }))
	o.logger.Info("Exported runs to %s", res.RunsPath)

	if o.store != nil {
		keep(o.store.Save(ctx, runs))
		keep(o.store.Save(ctx, tel))
	}

	report, err := Analyze(runs, cfg, o.deps.Clock.Now())
	if err != nil {
		errs = append(errs, err)
		return res, errors.Join(errs...)
	}
	res.Groups = report.Groups
	res.Ranking = report.Ranking

	res.ReportPath = filepath.Join(cfg.ResultsDir, ReportFileName)
	keep(summarizer.NewWriter(summarizer.NewMarkdownFormatter(), fs).Write(res.ReportPath, report))
	for i, s := range report.Ranking {
		o.logger.Info("Rank %d: %s (%.3f)", i+1, s.Name, s.Score)
	}

	if cfg.ChartPath != "" && o.renderer != nil {
		if err := WriteChart(fs, o.renderer, cfg.ChartPath, report.Groups); err != nil {
			errs = append(errs, err)
		} else {
			res.ChartPath = cfg.ChartPath
		}
	}

	return res, errors.Join(errs...)
}

func (o *Orchestrator) writeTable(path string, write func(*bytes.Buffer) error) error {
	var buf bytes.Buffer
	if err := write(&buf); err != nil {
		return fmt.Errorf("export %s: %w", path, err)
	}
	if err := o.deps.FS.WriteFile(path, buf.Bytes()); err != nil {
		return fmt.Errorf("export %s: %w", path, err)
	}
	return nil
}
