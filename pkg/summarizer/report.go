package summarizer

import "time"

// Report is everything the summary document shows.
type Report struct {
	GeneratedAt time.Time
	// Source names the experiment or file the runs came from.
	Source string

	Groups  []Summary
	Ranking []Score
	Weights Weights

	// Extrapolation, if set, describes the dataset the extrapolated
	// groups were scaled to.
	Extrapolation *Extrapolation
	Extrapolated  []Summary
}

// Extrapolation parameters.
type Extrapolation struct {
	DatasetGB float64
	SampleKB  float64
}

// Builder provides a fluent interface for building a Report.
type Builder struct {
	report *Report
}

// NewBuilder creates a new Builder stamped with the given time.
func NewBuilder(now time.Time) *Builder {
	return &Builder{report: &Report{GeneratedAt: now}}
}

// WithSource sets the source description.
func (b *Builder) WithSource(source string) *Builder {
	b.report.Source = source
	return b
}

// WithGroups sets the group summaries.
func (b *Builder) WithGroups(groups []Summary) *Builder {
	b.report.Groups = groups
	return b
}

// WithRanking sets the ranking and the weights it was computed with.
func (b *Builder) WithRanking(ranking []Score, w Weights) *Builder {
	b.report.Ranking = ranking
	b.report.Weights = w
	return b
}

// WithExtrapolation sets the extrapolated group summaries.
func (b *Builder) WithExtrapolation(e Extrapolation, groups []Summary) *Builder {
	b.report.Extrapolation = &e
	b.report.Extrapolated = groups
	return b
}

// Build returns the constructed Report.
func (b *Builder) Build() *Report {
	return b.report
}
