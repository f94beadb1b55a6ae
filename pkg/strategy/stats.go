package strategy

import (
	"github.com/aclements/go-moremath/stats"
)

// Stat is the mean and sample standard deviation of one metric over the
// recorded runs.
type Stat struct {
	Name   string
	Mean   float64
	StdDev float64
}

// Stats summarizes the numeric metrics of the recorded runs. Metrics of
// a strategy without records are reported as zero.
func (s *Strategy) Stats() []Stat {
	metrics := []struct {
		name  string
		value func(RunRecord) float64
	}{
		{"offline_processing_and_save_time_s", func(r RunRecord) float64 { return r.OfflineTime.Seconds() }},
		{"shard_cum_size_MB", RunRecord.ShardSizeMB},
		{"online_processing_time_s", func(r RunRecord) float64 { return r.OnlineTime.Seconds() }},
		{"throughput_sps", func(r RunRecord) float64 { return r.Throughput }},
	}

	out := make([]Stat, 0, len(metrics))
	for _, m := range metrics {
		st := Stat{Name: m.name}
		if len(s.records) > 0 {
			sample := stats.Sample{Xs: make([]float64, len(s.records))}
			for i, r := range s.records {
				sample.Xs[i] = m.value(r)
			}
			st.Mean = sample.Mean()
			st.StdDev = sample.StdDev()
		}
		out = append(out, st)
	}
	return out
}

// LogStats writes the meta attributes and Stats at info level.
func (s *Strategy) LogStats() {
	s.logger.Info("Strategy %s", s.dir)
	m := s.meta
	s.logger.Info("  - ueid = %s, split = %s, created = %s", m.UEID, m.SplitName, m.CreationTimestamp)
	s.logger.Info("  - shards = %d, threads = %d, compression = %s, storage = %s", m.ShardCount, m.ThreadCount, m.Compression, m.StorageType)
	s.logger.Info("  - system cache = %v, application cache = %v, batch = %d, prefetch = %d", m.SystemCache, m.ApplicationCache, m.BatchSize, m.Prefetch)
	s.logger.Info("  - runs = %d of %d", len(s.records), s.config.Runs)
	for _, st := range s.Stats() {
		s.logger.Info("  - %s = %.3f +/- %.2f", st.Name, st.Mean, st.StdDev)
	}
}
