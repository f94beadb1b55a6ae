package summarizer

import (
	"fmt"
	"strings"
)

// MarkdownFormatter renders a Report as a Markdown document.
type MarkdownFormatter struct{}

// NewMarkdownFormatter creates a new MarkdownFormatter.
func NewMarkdownFormatter() *MarkdownFormatter {
	return &MarkdownFormatter{}
}

// Format implements Formatter.
func (f *MarkdownFormatter) Format(r *Report) string {
	var b strings.Builder

	b.WriteString("# Benchmark Summary\n\n")
	fmt.Fprintf(&b, "Generated: %s\n", r.GeneratedAt.Format("2006-01-02 15:04:05"))
	if r.Source != "" {
		fmt.Fprintf(&b, "Source: %s\n", r.Source)
	}
	b.WriteString("\n## Strategies\n\n")
	writeGroups(&b, r.Groups)

	if len(r.Ranking) > 0 {
		b.WriteString("\n## Ranking\n\n")
		fmt.Fprintf(&b, "Weights: preprocessing %.2f, storage %.2f, throughput %.2f\n\n",
			r.Weights.Preprocessing, r.Weights.Storage, r.Weights.Throughput)
		b.WriteString("| # | Strategy | Score |\n")
		b.WriteString("|---|----------|-------|\n")
		for i, s := range r.Ranking {
			fmt.Fprintf(&b, "| %d | %s | %.3f |\n", i+1, s.Name, s.Score)
		}
	}

	if r.Extrapolation != nil {
		b.WriteString("\n## Extrapolation\n\n")
		fmt.Fprintf(&b, "Full dataset of %.1f GB at %.1f KB per sample.\n\n", r.Extrapolation.DatasetGB, r.Extrapolation.SampleKB)
		writeGroups(&b, r.Extrapolated)
	}

	var warnings []string
	for _, g := range r.Groups {
		if g.DropFailures > 0 {
			warnings = append(warnings, fmt.Sprintf("%s: caches could not be dropped in %d of %d runs", g.Name(), g.DropFailures, g.Runs))
		}
		if g.TelemetryMissing > 0 {
			warnings = append(warnings, fmt.Sprintf("%s: telemetry missing in %d of %d runs", g.Name(), g.TelemetryMissing, g.Runs))
		}
	}
	if len(warnings) > 0 {
		b.WriteString("\n## Warnings\n\n")
		for _, w := range warnings {
			fmt.Fprintf(&b, "- %s\n", w)
		}
	}

	return b.String()
}

func writeGroups(b *strings.Builder, groups []Summary) {
	if len(groups) == 0 {
		b.WriteString("No runs recorded.\n")
		return
	}
	b.WriteString("| Strategy | Threads | Samples | Runs | Offline (s) | Online (s) | Shards (MB) | Throughput (samples/s) |\n")
	b.WriteString("|----------|---------|---------|------|-------------|------------|-------------|------------------------|\n")
	for _, g := range groups {
		fmt.Fprintf(b, "| %s | %d | %d | %d | %.3f | %.3f | %.2f | %.1f ± %s |\n",
			g.SplitName, g.Threads, g.SampleCount, g.Runs,
			g.OfflineTime, g.OnlineTime, g.ShardSizeMB, g.Throughput, g.ThroughputCI.PctRangeString())
	}
}
