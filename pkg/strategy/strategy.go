// Package strategy measures one way of splitting a preprocessing pipeline
// into an offline phase, materialized to shard files, and an online phase
// that reads the shards back and finishes preprocessing.
package strategy

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/user/shardbench/pkg/pipeline"
	"github.com/user/shardbench/pkg/ports"
	"github.com/user/shardbench/pkg/profile"
	"github.com/user/shardbench/pkg/shards"
	"github.com/user/shardbench/pkg/telemetry"
)

var (
	// ErrConfiguration marks settings that can never produce a valid run.
	ErrConfiguration = errors.New("invalid configuration")
	// ErrDegenerateTiming is returned when the online phase took no
	// measurable time, leaving the throughput undefined.
	ErrDegenerateTiming = errors.New("strategy: degenerate online timing")
	// ErrFinalized is returned when a finalized strategy is asked to run.
	ErrFinalized = errors.New("strategy: already finalized")
)

// StorageTypes lists the accepted storage type tags.
var StorageTypes = []string{"local-ssd", "local-hdd", "remote", "ramdisk", "nfs"}

// FullyOnlineName is the split name of a strategy without offline phase.
const FullyOnlineName = "0-fully-online"

// TimestampLayout formats the creation timestamp of a strategy.
const TimestampLayout = "2006-01-02-15:04:05"

// State is the lifecycle state of a strategy.
type State int

const (
	Initialized State = iota
	OfflineMaterialized
	Running
	Finalized
)

func (s State) String() string {
	switch s {
	case Initialized:
		return "initialized"
	case OfflineMaterialized:
		return "offline-materialized"
	case Running:
		return "running"
	case Finalized:
		return "finalized"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Config describes one strategy of an experiment.
type Config struct {
	Pipeline pipeline.Pipeline
	// SplitPosition is the number of leading steps run offline. Zero
	// runs the whole pipeline online.
	SplitPosition int
	ShardCount    int
	ThreadCount   int
	// ShardDirPrefix is the path prefix of the shard directory.
	ShardDirPrefix string
	Compression    string
	StorageType    string

	SampleCount int
	Runs        int
	// KeepSystemCache keeps the OS page cache warm after the first run.
	KeepSystemCache bool
	// ApplicationCache times a second pass over an in-memory cache of
	// the online output.
	ApplicationCache bool
	BatchSize        int
	// Prefetch is only applied together with BatchSize.
	Prefetch int
	Fuse     bool

	SettleDelay time.Duration
	Watchdog    time.Duration
	Drop        ports.DropOptions
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		ShardCount:     1,
		ThreadCount:    1,
		ShardDirPrefix: "./shards",
		Compression:    "none",
		StorageType:    "local-ssd",
		SampleCount:    1000,
		Runs:           1,
		Fuse:           true,
		SettleDelay:    profile.DefaultSettleDelay,
		Drop:           ports.DropOptions{PageCache: true, DentriesAndInodes: true},
	}
}

// Meta holds the attributes shared by every record of a strategy.
type Meta struct {
	UEID              string
	SplitName         string
	CreationTimestamp string
	ShardCount        int
	ThreadCount       int
	Compression       string
	StorageType       string
	ApplicationCache  bool
	SystemCache       bool
	BatchSize         int
	Prefetch          int
}

// Dependencies are the ports a strategy acts through.
type Dependencies struct {
	FS      ports.FileSystem
	Dropper ports.CacheDropper
	Sampler ports.Sampler
	Clock   ports.Clock
	Logger  ports.Logger
	// NewID returns a fresh unique id. Defaults to a random UUID.
	NewID func() string
}

// Strategy runs and records the measurements of one split.
type Strategy struct {
	config      Config
	deps        Dependencies
	logger      ports.Logger
	compression shards.Compression
	dir         string
	meta        Meta

	split   bool
	offline *pipeline.Compiled
	online  *pipeline.Compiled

	offlinePhase pipeline.Stage[phaseInput, offlineResult]
	onlinePhase  pipeline.Stage[phaseInput, onlineResult]

	state     State
	records   []RunRecord
	telemetry []telemetry.Record
}

// New validates config, splits and compiles the pipeline and derives a
// unique shard directory. No pipeline code runs before the first run.
func New(config Config, deps Dependencies) (*Strategy, error) {
	compression, err := shards.ParseCompression(config.Compression)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfiguration, err)
	}
	if !slices.Contains(StorageTypes, config.StorageType) {
		return nil, fmt.Errorf("%w: storage type %q is not one of %s", ErrConfiguration, config.StorageType, strings.Join(StorageTypes, ", "))
	}
	if config.ShardCount < 1 || config.ThreadCount < 1 || config.Runs < 1 || config.SampleCount < 1 {
		return nil, fmt.Errorf("%w: shard, thread, run and sample counts must be positive", ErrConfiguration)
	}
	if config.BatchSize < 0 || config.Prefetch < 0 {
		return nil, fmt.Errorf("%w: batch size and prefetch must not be negative", ErrConfiguration)
	}
	if deps.NewID == nil {
		deps.NewID = func() string { return uuid.NewString() }
	}

	s := &Strategy{
		config:      config,
		deps:        deps,
		logger:      deps.Logger.WithComponent("strategy"),
		compression: compression,
		split:       config.SplitPosition != 0,
	}
	s.meta = Meta{
		UEID:              shortID(deps.NewID()),
		SplitName:         splitName(config.Pipeline, config.SplitPosition),
		CreationTimestamp: deps.Clock.Now().Format(TimestampLayout),
		ShardCount:        config.ShardCount,
		ThreadCount:       config.ThreadCount,
		Compression:       compression.String(),
		StorageType:       config.StorageType,
		ApplicationCache:  config.ApplicationCache,
		SystemCache:       config.KeepSystemCache,
		BatchSize:         config.BatchSize,
		Prefetch:          config.Prefetch,
	}
	s.dir = fmt.Sprintf("%s_%s_%s_shards-%d_threads-%d_%s",
		config.ShardDirPrefix, s.meta.CreationTimestamp, s.meta.SplitName,
		config.ShardCount, config.ThreadCount, s.meta.UEID)

	if err := s.compile(); err != nil {
		return nil, err
	}

	s.offlinePhase = pipeline.StageFunc[phaseInput, offlineResult](s.materialize)
	s.onlinePhase = pipeline.StageFunc[phaseInput, onlineResult](s.consume)
	return s, nil
}

// compile splits the pipeline and compiles both halves so that schema
// and split errors surface before any run.
func (s *Strategy) compile() error {
	opts := pipeline.Options{
		Fuse:        s.config.Fuse,
		Parallelism: s.config.ThreadCount,
		Logger:      s.deps.Logger.WithComponent("compiler"),
	}

	online := s.config.Pipeline
	if s.split {
		prefix, suffix, err := pipeline.Split(s.config.Pipeline, s.config.SplitPosition)
		if err != nil {
			return err
		}
		if s.offline, err = pipeline.Compile(prefix, opts); err != nil {
			return fmt.Errorf("offline pipeline: %w", err)
		}
		online = append(pipeline.Pipeline{shards.NewLoader(s.deps.FS, s.dir, s.compression).Step()}, suffix...)
	}

	compiled, err := pipeline.Compile(online, opts)
	if err != nil {
		return fmt.Errorf("online pipeline: %w", err)
	}
	s.online = compiled
	return nil
}

// shortID keeps the first six hex digits of an id.
func shortID(id string) string {
	id = strings.ReplaceAll(id, "-", "")
	if len(id) > 6 {
		id = id[:6]
	}
	return id
}

// splitName names a split after its last offline step.
func splitName(p pipeline.Pipeline, pos int) string {
	if pos <= 0 || pos > len(p) {
		return FullyOnlineName
	}
	name := strings.ToLower(strings.ReplaceAll(p[pos-1].Name, " ", "-"))
	return fmt.Sprintf("%d-%s", pos, name)
}

// Dir returns the shard directory of the strategy.
func (s *Strategy) Dir() string { return s.dir }

// Meta returns the attributes shared by every record.
func (s *Strategy) Meta() Meta { return s.meta }

// State returns the lifecycle state.
func (s *Strategy) State() State { return s.state }

// Records returns the run records collected so far.
func (s *Strategy) Records() []RunRecord {
	return slices.Clone(s.records)
}

// Telemetry returns the telemetry records loaded by Finalize.
func (s *Strategy) Telemetry() []telemetry.Record {
	return slices.Clone(s.telemetry)
}

// Profile executes all configured runs under the profiled run driver.
// Telemetry files are written next to the shards.
func (s *Strategy) Profile(ctx context.Context) error {
	if s.state == Finalized {
		return ErrFinalized
	}
	s.logger.Info("Profiling strategy %s", filepath.Base(s.dir))

	cfg := profile.DefaultConfig()
	cfg.Runs = s.config.Runs
	cfg.ResultsDir = s.dir
	cfg.SampleCount = s.config.SampleCount
	cfg.KeepSystemCache = s.config.KeepSystemCache
	cfg.SettleDelay = s.config.SettleDelay
	cfg.Watchdog = s.config.Watchdog
	cfg.Drop = s.config.Drop

	driver := profile.New(cfg, s.deps.FS, s.deps.Dropper, s.deps.Sampler, s.deps.Clock, s.deps.Logger)
	return driver.Run(ctx, s.ExecuteRun)
}

// Finalize loads the telemetry written during the runs and freezes the
// strategy. It returns the run and telemetry records. Telemetry that
// cannot be loaded is logged and the affected runs are flagged
// TelemetryMissing; it never costs the run records.
func (s *Strategy) Finalize() ([]RunRecord, []telemetry.Record) {
	if s.state != Finalized {
		records, failed, err := telemetry.LoadDir(s.deps.FS, s.dir)
		if err != nil {
			s.logger.Warn("Telemetry could not be loaded: %v", err)
			for i := range s.records {
				s.records[i].TelemetryMissing = true
			}
		}
		for _, fe := range failed {
			s.logger.Warn("Telemetry of run %d is unusable: %v", fe.Run, fe.Err)
			for i := range s.records {
				if s.records[i].Run == fe.Run {
					s.records[i].TelemetryMissing = true
				}
			}
		}
		s.telemetry = records
		s.state = Finalized
	}
	return s.Records(), s.Telemetry()
}
