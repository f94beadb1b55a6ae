// Package config provides experiment configuration loading and expansion
// into strategies.
package config

import (
	"fmt"
	"os"
	"slices"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/user/shardbench/pkg/catalog"
	"github.com/user/shardbench/pkg/ports"
	"github.com/user/shardbench/pkg/shards"
	"github.com/user/shardbench/pkg/strategy"
)

// ErrConfiguration marks an experiment that can never run.
var ErrConfiguration = strategy.ErrConfiguration

// Experiment is the full configuration of a benchmark.
type Experiment struct {
	// Pipeline
	Pipeline        string          `yaml:"pipeline"`
	PipelineOptions PipelineOptions `yaml:"pipeline_options"`

	// Strategies: one per split position and shard/thread pair
	SplitPositions []int `yaml:"split_positions"`
	ShardCounts    []int `yaml:"shard_counts"`
	ThreadCounts   []int `yaml:"thread_counts"`
	// PairShardsThreads zips shard and thread counts instead of crossing them.
	PairShardsThreads bool `yaml:"pair_shards_threads"`

	// Runs
	SampleCounts     []int  `yaml:"sample_counts"`
	Runs             int    `yaml:"runs"`
	Compression      string `yaml:"compression"`
	StorageType      string `yaml:"storage_type"`
	ShardDirPrefix   string `yaml:"shard_dir_prefix"`
	KeepSystemCache  bool   `yaml:"keep_system_cache"`
	ApplicationCache bool   `yaml:"application_cache"`
	BatchSize        int    `yaml:"batch_size"`
	Prefetch         int    `yaml:"prefetch"`
	Fuse             bool   `yaml:"fuse"`

	// Profiling
	SettleDelay    time.Duration `yaml:"settle_delay"`
	Watchdog       time.Duration `yaml:"watchdog"`
	DropCachesPath string        `yaml:"drop_caches_path"`
	DropDentries   bool          `yaml:"drop_dentries"`
	DstatPath      string        `yaml:"dstat_path"`
	DisableDstat   bool          `yaml:"disable_dstat"`

	// Output
	ResultsDir   string `yaml:"results_dir"`
	ExportPrefix string `yaml:"export_prefix"`
	Database     string `yaml:"database"`
	ChartPath    string `yaml:"chart"`
	LogLevel     string `yaml:"log_level"`

	// Analysis
	Weights       Weights       `yaml:"rank_weights"`
	Extrapolation Extrapolation `yaml:"extrapolation"`
}

// Weights weight the normalized preprocessing time, storage and
// throughput scores when ranking strategies.
type Weights struct {
	Preprocessing float64 `yaml:"preprocessing"`
	Storage       float64 `yaml:"storage"`
	Throughput    float64 `yaml:"throughput"`
}

// Extrapolation scales results to a full dataset. Zero values disable it.
type Extrapolation struct {
	DatasetGB float64 `yaml:"dataset_gb"`
	SampleKB  float64 `yaml:"sample_kb"`
}

// Enabled reports whether both sizes are set.
func (x Extrapolation) Enabled() bool {
	return x.DatasetGB > 0 && x.SampleKB > 0
}

// PipelineOptions parameterizes the catalog pipeline.
type PipelineOptions struct {
	DType       string `yaml:"dtype"`
	Rows        int    `yaml:"rows"`
	Cols        int    `yaml:"cols"`
	ImageSize   int    `yaml:"image_size"`
	TargetSize  int    `yaml:"target_size"`
	ImageFormat string `yaml:"image_format"`
	Seed        uint64 `yaml:"seed"`
}

// Defaults returns an Experiment with default values.
func Defaults() Experiment {
	c := catalog.DefaultOptions()
	return Experiment{
		Pipeline: "synthetic-tensor",
		PipelineOptions: PipelineOptions{
			DType:       c.DType,
			Rows:        c.Rows,
			Cols:        c.Cols,
			ImageSize:   c.ImageSize,
			TargetSize:  c.TargetSize,
			ImageFormat: c.ImageFormat,
			Seed:        c.Seed,
		},

		SplitPositions: []int{0},
		ShardCounts:    []int{1},
		ThreadCounts:   []int{1},

		SampleCounts:   []int{1000},
		Runs:           1,
		Compression:    "none",
		StorageType:    "local-ssd",
		ShardDirPrefix: "./shards",
		Fuse:           true,

		SettleDelay:    5 * time.Second,
		DropCachesPath: "/proc/sys/vm/drop_caches",
		DropDentries:   true,

		ResultsDir: "./results",
		LogLevel:   "info",

		Weights: Weights{Preprocessing: 1, Storage: 1, Throughput: 1},
	}
}

// LoadFromFile loads an experiment from a YAML file over the defaults.
func LoadFromFile(path string) (Experiment, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("%w: %s: %v", ErrConfiguration, path, err)
	}

	return cfg, nil
}

// Validate checks the experiment for settings that can never run.
func (e Experiment) Validate() error {
	if !slices.Contains(catalog.Names(), e.Pipeline) {
		return fmt.Errorf("%w: unknown pipeline %q", ErrConfiguration, e.Pipeline)
	}
	if _, err := shards.ParseCompression(e.Compression); err != nil {
		return fmt.Errorf("%w: %v", ErrConfiguration, err)
	}
	if !slices.Contains(strategy.StorageTypes, e.StorageType) {
		return fmt.Errorf("%w: unknown storage type %q", ErrConfiguration, e.StorageType)
	}
	if len(e.SplitPositions) == 0 || len(e.ShardCounts) == 0 || len(e.ThreadCounts) == 0 || len(e.SampleCounts) == 0 {
		return fmt.Errorf("%w: split positions, shard, thread and sample counts must not be empty", ErrConfiguration)
	}
	if e.PairShardsThreads && len(e.ShardCounts) != len(e.ThreadCounts) {
		return fmt.Errorf("%w: paired shard and thread counts differ in length", ErrConfiguration)
	}
	for _, list := range [][]int{e.ShardCounts, e.ThreadCounts, e.SampleCounts} {
		for _, n := range list {
			if n < 1 {
				return fmt.Errorf("%w: counts must be positive, got %d", ErrConfiguration, n)
			}
		}
	}
	for _, p := range e.SplitPositions {
		if p < 0 {
			return fmt.Errorf("%w: split position %d is negative", ErrConfiguration, p)
		}
	}
	if e.Runs < 1 {
		return fmt.Errorf("%w: runs must be positive, got %d", ErrConfiguration, e.Runs)
	}
	if e.BatchSize < 0 || e.Prefetch < 0 || e.SettleDelay < 0 || e.Watchdog < 0 {
		return fmt.Errorf("%w: batch size, prefetch and delays must not be negative", ErrConfiguration)
	}
	w := e.Weights
	if w.Preprocessing < 0 || w.Storage < 0 || w.Throughput < 0 {
		return fmt.Errorf("%w: rank weights must not be negative", ErrConfiguration)
	}
	if x := e.Extrapolation; x.DatasetGB < 0 || x.SampleKB < 0 {
		return fmt.Errorf("%w: extrapolation sizes must not be negative", ErrConfiguration)
	}
	return nil
}

// DropOptions returns the caches to drop before runs.
func (e Experiment) DropOptions() ports.DropOptions {
	return ports.DropOptions{PageCache: true, DentriesAndInodes: e.DropDentries}
}

// Group is the set of strategies sharing one sample count.
type Group struct {
	SampleCount int
	Strategies  []strategy.Config
}

// Strategies expands the experiment into strategy configurations, one
// group per sample count. Within a group the order is shard/thread
// pair, then split position.
func (e Experiment) Strategies() ([]Group, error) {
	if err := e.Validate(); err != nil {
		return nil, err
	}

	type pair struct{ shards, threads int }
	var pairs []pair
	if e.PairShardsThreads {
		for i := range e.ShardCounts {
			pairs = append(pairs, pair{e.ShardCounts[i], e.ThreadCounts[i]})
		}
	} else {
		for _, t := range e.ThreadCounts {
			for _, s := range e.ShardCounts {
				pairs = append(pairs, pair{s, t})
			}
		}
	}

	groups := make([]Group, 0, len(e.SampleCounts))
	for _, samples := range e.SampleCounts {
		p, err := catalog.Build(e.Pipeline, e.catalogOptions(samples))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrConfiguration, err)
		}

		g := Group{SampleCount: samples}
		for _, pr := range pairs {
			for _, split := range e.SplitPositions {
				if split > len(p) {
					return nil, fmt.Errorf("%w: split position %d exceeds the %d steps of %s", ErrConfiguration, split, len(p), e.Pipeline)
				}
				g.Strategies = append(g.Strategies, strategy.Config{
					Pipeline:         p,
					SplitPosition:    split,
					ShardCount:       pr.shards,
					ThreadCount:      pr.threads,
					ShardDirPrefix:   e.ShardDirPrefix,
					Compression:      e.Compression,
					StorageType:      e.StorageType,
					SampleCount:      samples,
					Runs:             e.Runs,
					KeepSystemCache:  e.KeepSystemCache,
					ApplicationCache: e.ApplicationCache,
					BatchSize:        e.BatchSize,
					Prefetch:         e.Prefetch,
					Fuse:             e.Fuse,
					SettleDelay:      e.SettleDelay,
					Watchdog:         e.Watchdog,
					Drop:             e.DropOptions(),
				})
			}
		}
		groups = append(groups, g)
	}
	return groups, nil
}

func (e Experiment) catalogOptions(samples int) catalog.Options {
	o := e.PipelineOptions
	return catalog.Options{
		SampleCount: samples,
		Seed:        o.Seed,
		DType:       o.DType,
		Rows:        o.Rows,
		Cols:        o.Cols,
		ImageSize:   o.ImageSize,
		TargetSize:  o.TargetSize,
		ImageFormat: o.ImageFormat,
	}
}
