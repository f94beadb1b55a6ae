package main

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/ideamans/go-l10n"
	"github.com/urfave/cli/v2"

	"github.com/user/shardbench/pkg/adapters/ggrenderer"
	"github.com/user/shardbench/pkg/adapters/osfilesystem"
	"github.com/user/shardbench/pkg/orchestrator"
	"github.com/user/shardbench/pkg/summarizer"
)

func summarizeCommand() *cli.Command {
	return &cli.Command{
		Name:      "summarize",
		Usage:     l10n.T("Summarize and rank a previously exported runs CSV"),
		ArgsUsage: "<runs.csv>",
		Flags: []cli.Flag{
			&cli.Float64Flag{Name: "w-preprocessing", Value: 1, Usage: l10n.T("Rank weight of offline preprocessing time")},
			&cli.Float64Flag{Name: "w-storage", Value: 1, Usage: l10n.T("Rank weight of storage consumption")},
			&cli.Float64Flag{Name: "w-throughput", Value: 1, Usage: l10n.T("Rank weight of online throughput")},
			&cli.Float64Flag{Name: "dataset-gb", Usage: l10n.T("Extrapolate to a dataset of this size in GB")},
			&cli.Float64Flag{Name: "sample-kb", Usage: l10n.T("Size of one sample in KB, used for extrapolation")},
			&cli.Float64Flag{Name: "confidence", Value: summarizer.DefaultConfidence, Usage: l10n.T("Confidence level of throughput intervals")},
			&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: l10n.T("Report path (defaults to the CSV name with .md)")},
			&cli.StringFlag{Name: "chart", Usage: l10n.T("PNG chart of throughput per strategy")},
			&cli.StringFlag{Name: "bench", Usage: l10n.T("Also write the runs in Go benchmark format")},
			&cli.StringFlag{Name: "log-level", Aliases: []string{"l"}, Value: "info", Usage: "debug, info, warn, error"},
		},
		Action: summarizeAction,
	}
}

func summarizeAction(c *cli.Context) error {
	input := c.Args().First()
	if input == "" {
		return cli.Exit(l10n.T("A runs CSV is required"), exitConfiguration)
	}
	log := newLogger(c.String("log-level"), false, false)
	fs := osfilesystem.New()

	data, err := fs.ReadFile(input)
	if err != nil {
		return fmt.Errorf("read %s: %w", input, err)
	}
	runs, err := summarizer.ReadRunCSV(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("load %s: %w", input, err)
	}

	cfg := orchestrator.Config{
		Weights: summarizer.Weights{
			Preprocessing: c.Float64("w-preprocessing"),
			Storage:       c.Float64("w-storage"),
			Throughput:    c.Float64("w-throughput"),
		},
		Confidence: c.Float64("confidence"),
		Source:     input,
	}
	if gb, kb := c.Float64("dataset-gb"), c.Float64("sample-kb"); gb > 0 || kb > 0 {
		cfg.Extrapolation = &summarizer.Extrapolation{DatasetGB: gb, SampleKB: kb}
	}

	report, err := orchestrator.Analyze(runs, cfg, time.Now())
	if err != nil {
		return err
	}

	output := c.String("output")
	if output == "" {
		output = strings.TrimSuffix(input, filepath.Ext(input)) + ".md"
	}
	if err := summarizer.NewWriter(summarizer.NewMarkdownFormatter(), fs).Write(output, report); err != nil {
		return err
	}
	log.Info("Report saved to %s", output)

	for i, s := range report.Ranking {
		log.Info("Rank %d: %s (%.3f)", i+1, s.Name, s.Score)
	}

	if path := c.String("chart"); path != "" {
		if err := orchestrator.WriteChart(fs, ggrenderer.New(), path, report.Groups); err != nil {
			return err
		}
		log.Info("Chart saved to %s", path)
	}

	if path := c.String("bench"); path != "" {
		var buf bytes.Buffer
		if err := summarizer.WriteBenchfmt(&buf, runs); err != nil {
			return err
		}
		if err := fs.WriteFile(path, buf.Bytes()); err != nil {
			return fmt.Errorf("write %s: %w", path, err)
		}
		log.Info("Exported runs to %s", path)
	}
	return nil
}
