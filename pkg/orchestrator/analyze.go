package orchestrator

import (
	"fmt"
	"math"
	"time"

	"github.com/user/shardbench/pkg/ports"
	"github.com/user/shardbench/pkg/summarizer"
)

// Analyze summarizes, ranks and optionally extrapolates a run table
// into a report.
func Analyze(runs ports.Table, cfg Config, now time.Time) (*summarizer.Report, error) {
	confidence := cfg.Confidence
	if confidence <= 0 {
		confidence = summarizer.DefaultConfidence
	}
	groups, err := summarizer.Summarize(runs, confidence)
	if err != nil {
		return nil, fmt.Errorf("summarize: %w", err)
	}

	b := summarizer.NewBuilder(now).
		WithSource(cfg.Source).
		WithGroups(groups).
		WithRanking(summarizer.Rank(summarizer.Normalize(groups), cfg.Weights), cfg.Weights)

	if x := cfg.Extrapolation; x != nil {
		scaled, err := summarizer.Extrapolate(runs, x.DatasetGB, x.SampleKB)
		if err != nil {
			return nil, fmt.Errorf("extrapolate: %w", err)
		}
		sg, err := summarizer.Summarize(scaled, confidence)
		if err != nil {
			return nil, fmt.Errorf("summarize extrapolation: %w", err)
		}
		b.WithExtrapolation(*x, sg)
	}
	return b.Build(), nil
}

// WriteChart renders mean throughput per group, with the confidence
// interval as whisker, and writes the PNG to path.
func WriteChart(fs ports.FileSystem, r ports.ChartRenderer, path string, groups []summarizer.Summary) error {
	chart := ports.Chart{Title: "Online throughput", Unit: "samples/s"}
	for _, g := range groups {
		whisker := g.ThroughputCI.Hi - g.Throughput
		if math.IsInf(whisker, 0) || math.IsNaN(whisker) {
			whisker = 0
		}
		chart.Bars = append(chart.Bars, ports.Bar{Label: g.Name(), Value: g.Throughput, Err: whisker})
	}
	png, err := r.RenderPNG(chart)
	if err != nil {
		return fmt.Errorf("render chart: %w", err)
	}
	if err := fs.WriteFile(path, png); err != nil {
		return fmt.Errorf("write chart: %w", err)
	}
	return nil
}
