package strategy

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/user/shardbench/pkg/pipeline"
	"github.com/user/shardbench/pkg/profile"
	"github.com/user/shardbench/pkg/schema"
	"github.com/user/shardbench/pkg/shards"
)

// RunRecord is the measurement of one run.
type RunRecord struct {
	Meta
	Run       int
	RunsTotal int
	// SampleCount is the configured number of samples per run.
	SampleCount int
	// Consumed is the number of elements the online phase yielded.
	Consumed int

	OfflineTime time.Duration
	ShardBytes  int64
	OnlineTime  time.Duration
	// Throughput is SampleCount divided by the online time in seconds.
	Throughput float64

	CacheDropFailed  bool
	TelemetryMissing bool
}

// ShardSizeMB returns the shard size in megabytes of 1000² bytes.
func (r RunRecord) ShardSizeMB() float64 {
	return float64(r.ShardBytes) / (1000 * 1000)
}

type phaseInput struct {
	run int
}

type offlineResult struct {
	elapsed time.Duration
	bytes   int64
	records int
}

type onlineResult struct {
	elapsed  time.Duration
	consumed int
}

// ExecuteRun performs run number run.Index: the offline phase when the
// cache policy asks for it, a cache drop, the timed online phase and the
// shard cleanup. Its record is appended on success.
func (s *Strategy) ExecuteRun(ctx context.Context, run profile.Run) (err error) {
	if s.state == Finalized {
		return ErrFinalized
	}

	keep := s.config.KeepSystemCache
	first := run.Index == 0
	last := run.Index+1 >= s.config.Runs

	rec := RunRecord{
		Meta:             s.meta,
		Run:              run.Index,
		RunsTotal:        s.config.Runs,
		SampleCount:      s.config.SampleCount,
		CacheDropFailed:  run.CacheDropFailed,
		TelemetryMissing: run.TelemetryMissing,
	}

	switch {
	case s.split && (!keep || first):
		off, err := s.offlinePhase.Execute(ctx, phaseInput{run: run.Index})
		if err != nil {
			s.cleanup()
			return fmt.Errorf("offline phase: %w", err)
		}
		rec.OfflineTime = off.elapsed
		rec.ShardBytes = off.bytes
		s.state = OfflineMaterialized
		s.logger.Debug("Materialized %d records (%d bytes) in %s", off.records, off.bytes, off.elapsed)
	case !s.split:
		if err := s.deps.FS.MkdirAll(s.dir); err != nil {
			return fmt.Errorf("create shard directory: %w", err)
		}
	}

	if !keep || first {
		if err := s.deps.Dropper.Drop(ctx, s.config.Drop); err != nil {
			s.logger.Warn("Could not drop caches: %v", err)
			rec.CacheDropFailed = true
		}
	}

	s.state = Running
	on, err := s.onlinePhase.Execute(ctx, phaseInput{run: run.Index})
	if err != nil || !keep || last {
		s.cleanup()
	}
	if err != nil {
		return fmt.Errorf("online phase: %w", err)
	}

	secs := on.elapsed.Seconds()
	if secs <= 0 {
		return fmt.Errorf("%w: run %d took %s", ErrDegenerateTiming, run.Index, on.elapsed)
	}
	rec.OnlineTime = on.elapsed
	rec.Consumed = on.consumed
	rec.Throughput = float64(s.config.SampleCount) / secs
	if math.IsInf(rec.Throughput, 0) || math.IsNaN(rec.Throughput) {
		return fmt.Errorf("%w: run %d throughput %v", ErrDegenerateTiming, run.Index, rec.Throughput)
	}

	s.records = append(s.records, rec)
	s.logger.Info("Run %d: %.1f samples/s online, %s offline", run.Index, rec.Throughput, rec.OfflineTime)
	return nil
}

// materialize runs the offline pipeline into the shard directory.
func (s *Strategy) materialize(ctx context.Context, in phaseInput) (offlineResult, error) {
	start := s.deps.Clock.Now()
	res, err := shards.Write(ctx, s.deps.FS, s.offline, shards.WriteOptions{
		Dir:         s.dir,
		ShardCount:  s.config.ShardCount,
		Compression: s.compression,
		SampleCount: s.config.SampleCount,
		Logger:      s.deps.Logger.WithComponent("shards"),
	})
	if err != nil {
		return offlineResult{}, err
	}
	return offlineResult{
		elapsed: s.deps.Clock.Now().Sub(start),
		bytes:   res.Bytes,
		records: res.Records,
	}, nil
}

// consume builds the online pipeline and drains it. With the
// application cache enabled the first pass fills the cache and only the
// second pass is timed.
func (s *Strategy) consume(ctx context.Context, in phaseInput) (onlineResult, error) {
	start := s.deps.Clock.Now()

	it, err := s.online.Open(ctx)
	if err != nil {
		return onlineResult{}, err
	}
	it = pipeline.Take(it, s.config.SampleCount)
	if s.config.BatchSize > 0 {
		it = pipeline.Batch(it, s.config.BatchSize)
		if s.config.Prefetch > 0 {
			it = pipeline.Prefetch(ctx, it, s.config.Prefetch)
		}
	}

	if s.config.ApplicationCache {
		cache := pipeline.NewCache(it)
		defer cache.Close()
		if _, err := drain(ctx, cache.Iterator()); err != nil {
			return onlineResult{}, err
		}
		start = s.deps.Clock.Now()
		it = cache.Iterator()
	}

	consumed, err := drain(ctx, it)
	if err != nil {
		return onlineResult{}, err
	}
	return onlineResult{elapsed: s.deps.Clock.Now().Sub(start), consumed: consumed}, nil
}

// drain reads it to the end, touching every element, and returns the
// number of elements seen. Batches count their members.
func drain(ctx context.Context, it pipeline.Iterator) (int, error) {
	n := 0
	err := pipeline.ForEach(ctx, it, func(v any) error {
		if b, ok := v.(schema.Batch); ok {
			n += len(b)
			for _, m := range b {
				schema.Touch(m)
			}
			return nil
		}
		schema.Touch(v)
		n++
		return nil
	})
	return n, err
}

// cleanup removes the shard files. Telemetry files stay in place.
func (s *Strategy) cleanup() {
	if !s.split {
		return
	}
	if err := shards.Remove(s.deps.FS, s.dir); err != nil {
		s.logger.Warn("Could not remove shards in %s: %v", s.dir, err)
	}
}
