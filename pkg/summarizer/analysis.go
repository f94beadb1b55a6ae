package summarizer

import (
	"cmp"
	"errors"
	"fmt"
	"slices"

	"github.com/aclements/go-moremath/stats"
	"golang.org/x/perf/benchmath"

	"github.com/user/shardbench/pkg/ports"
)

// DefaultConfidence is the confidence level of throughput intervals.
const DefaultConfidence = 0.95

// Summary aggregates the runs of one (split name, threads, sample
// count) group.
type Summary struct {
	SplitName   string
	Threads     int
	SampleCount int
	Runs        int

	// Means over the group's runs.
	OfflineTime float64
	OnlineTime  float64
	ShardSizeMB float64
	Throughput  float64

	ThroughputStdDev float64
	// ThroughputCI is the confidence interval of the mean throughput.
	ThroughputCI benchmath.Summary

	DropFailures     int
	TelemetryMissing int
}

// Name identifies the group, e.g. "2-scale-up-threads-4-samples-100".
func (s Summary) Name() string {
	return fmt.Sprintf("%s-threads-%d-samples-%d", s.SplitName, s.Threads, s.SampleCount)
}

type groupKey struct {
	split   string
	threads int64
	samples int64
}

// Summarize groups the run table by split name, thread count and sample
// count and averages each group. Groups appear in order of their first
// run.
func Summarize(runs ports.Table, confidence float64) ([]Summary, error) {
	a, err := newAccessor(runs, ColSplitName, ColThreadCount, ColSampleCount,
		ColOfflineTime, ColOnlineTime, ColShardSize, ColThroughput)
	if err != nil {
		return nil, err
	}
	_, hasFlags := a.idx[ColDropFailed]

	var order []groupKey
	members := map[groupKey][]int{}
	for i := range runs.Rows {
		k := groupKey{a.text(i, ColSplitName), a.int(i, ColThreadCount), a.int(i, ColSampleCount)}
		if _, ok := members[k]; !ok {
			order = append(order, k)
		}
		members[k] = append(members[k], i)
	}

	out := make([]Summary, 0, len(order))
	for _, k := range order {
		rows := members[k]
		column := func(name string) stats.Sample {
			xs := make([]float64, len(rows))
			for j, r := range rows {
				xs[j] = a.float(r, name)
			}
			return stats.Sample{Xs: xs}
		}

		tp := column(ColThroughput)
		s := Summary{
			SplitName:        k.split,
			Threads:          int(k.threads),
			SampleCount:      int(k.samples),
			Runs:             len(rows),
			OfflineTime:      column(ColOfflineTime).Mean(),
			OnlineTime:       column(ColOnlineTime).Mean(),
			ShardSizeMB:      column(ColShardSize).Mean(),
			Throughput:       tp.Mean(),
			ThroughputStdDev: tp.StdDev(),
			// NewSample sorts in place; tp.Xs is a private copy.
			ThroughputCI: benchmath.AssumeNormal.Summary(benchmath.NewSample(tp.Xs, &benchmath.DefaultThresholds), confidence),
		}
		if hasFlags {
			for _, r := range rows {
				s.DropFailures += int(a.int(r, ColDropFailed))
				s.TelemetryMissing += int(a.int(r, ColNoTelemetry))
			}
		}
		out = append(out, s)
	}
	return out, nil
}

// Normalized holds min-max normalized scores in [0, 1] where higher is
// better: faster preprocessing, smaller shards and higher throughput.
type Normalized struct {
	Summary
	Preprocessing float64
	Storage       float64
	ThroughputN   float64
}

func minMax(groups []Summary, v func(Summary) float64) (lo, hi float64) {
	lo, hi = v(groups[0]), v(groups[0])
	for _, g := range groups[1:] {
		lo = min(lo, v(g))
		hi = max(hi, v(g))
	}
	return lo, hi
}

// scale maps x into [0, 1] over [lo, hi]. A degenerate range maps every
// value to 1: all groups tie for best.
func scale(x, lo, hi float64) float64 {
	if hi == lo {
		return 1
	}
	return (x - lo) / (hi - lo)
}

// Normalize scores each group against the others. Offline time and
// shard size are inverted so that lower raw values score higher.
func Normalize(groups []Summary) []Normalized {
	if len(groups) == 0 {
		return nil
	}
	offLo, offHi := minMax(groups, func(s Summary) float64 { return s.OfflineTime })
	sizeLo, sizeHi := minMax(groups, func(s Summary) float64 { return s.ShardSizeMB })
	tpLo, tpHi := minMax(groups, func(s Summary) float64 { return s.Throughput })

	out := make([]Normalized, len(groups))
	for i, g := range groups {
		out[i] = Normalized{
			Summary:       g,
			Preprocessing: invert(scale(g.OfflineTime, offLo, offHi), offLo, offHi),
			Storage:       invert(scale(g.ShardSizeMB, sizeLo, sizeHi), sizeLo, sizeHi),
			ThroughputN:   scale(g.Throughput, tpLo, tpHi),
		}
	}
	return out
}

func invert(v, lo, hi float64) float64 {
	if hi == lo {
		return v
	}
	return 1 - v
}

// Weights weight the normalized scores in a ranking.
type Weights struct {
	Preprocessing float64
	Storage       float64
	Throughput    float64
}

// Score is the weighted score of one group.
type Score struct {
	Name  string
	Score float64
}

// Rank orders the groups by weighted score, best first. Ties keep their
// input order.
func Rank(norm []Normalized, w Weights) []Score {
	out := make([]Score, len(norm))
	for i, n := range norm {
		out[i] = Score{
			Name:  n.Name(),
			Score: w.Preprocessing*n.Preprocessing + w.Storage*n.Storage + w.Throughput*n.ThroughputN,
		}
	}
	slices.SortStableFunc(out, func(a, b Score) int {
		return cmp.Compare(b.Score, a.Score)
	})
	return out
}

// ErrInvalidExtrapolation is returned for non-positive dataset or
// sample sizes.
var ErrInvalidExtrapolation = errors.New("dataset and sample size must be positive")

// extrapolated are the run columns that scale with the sample count.
var extrapolated = []string{ColOfflineTime, ColShardSize, ColOnlineTime}

// Extrapolate scales the time and size columns of the run table to a
// full dataset of datasetGB gigabytes whose samples average sampleKB
// kilobytes, assuming the measured samples are representative. Each row
// is scaled by its own sample count. Throughput is a rate and stays as
// measured.
func Extrapolate(runs ports.Table, datasetGB, sampleKB float64) (ports.Table, error) {
	if datasetGB <= 0 || sampleKB <= 0 {
		return ports.Table{}, ErrInvalidExtrapolation
	}
	a, err := newAccessor(runs, append([]string{ColSampleCount}, extrapolated...)...)
	if err != nil {
		return ports.Table{}, err
	}

	total := datasetGB * 1000 * 1000 / sampleKB
	out := ports.Table{Name: runs.Name, Columns: runs.Columns, Rows: make([][]any, len(runs.Rows))}
	for i, row := range runs.Rows {
		r := append([]any(nil), row...)
		if n := a.int(i, ColSampleCount); n > 0 {
			factor := total / float64(n)
			for _, c := range extrapolated {
				r[a.idx[c]] = a.float(i, c) * factor
			}
		}
		out.Rows[i] = r
	}
	return out, nil
}
