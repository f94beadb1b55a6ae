package main

import (
	"github.com/ideamans/go-l10n"
	"github.com/urfave/cli/v2"

	"github.com/user/shardbench/pkg/config"
)

func runFlags() []cli.Flag {
	strategies := l10n.T("Strategies")
	runs := l10n.T("Runs")
	profiling := l10n.T("Profiling")
	output := l10n.T("Output")
	logging := l10n.T("Logging")

	return []cli.Flag{
		&cli.StringFlag{Name: "pipeline", Category: strategies, Usage: l10n.T("Pipeline catalog (synthetic-tensor, synthetic-image)")},
		&cli.IntSliceFlag{Name: "split", Category: strategies, Usage: l10n.T("Split positions, 0 is fully online")},
		&cli.IntSliceFlag{Name: "shards", Category: strategies, Usage: l10n.T("Shard counts")},
		&cli.IntSliceFlag{Name: "threads", Category: strategies, Usage: l10n.T("Thread counts")},
		&cli.BoolFlag{Name: "pair", Category: strategies, Usage: l10n.T("Pair shard and thread counts instead of crossing them")},
		&cli.StringFlag{Name: "compression", Category: strategies, Usage: "none, ZLIB, GZIP"},
		&cli.StringFlag{Name: "storage", Category: strategies, Usage: "local-ssd, local-hdd, remote, ramdisk, nfs"},
		&cli.StringFlag{Name: "shard-dir-prefix", Category: strategies, Usage: l10n.T("Prefix of shard directories")},
		&cli.BoolFlag{Name: "no-fuse", Category: strategies, Usage: l10n.T("Do not fuse adjacent element transforms")},

		&cli.IntSliceFlag{Name: "samples", Aliases: []string{"n"}, Category: runs, Usage: l10n.T("Sample counts")},
		&cli.IntFlag{Name: "runs", Aliases: []string{"r"}, Category: runs, Usage: l10n.T("Runs per strategy")},
		&cli.BoolFlag{Name: "keep-system-cache", Category: runs, Usage: l10n.T("Materialize and drop caches only before the first run")},
		&cli.BoolFlag{Name: "application-cache", Category: runs, Usage: l10n.T("Cache elements in memory and time the second pass")},
		&cli.IntFlag{Name: "batch-size", Category: runs, Usage: l10n.T("Online batch size, 0 disables batching")},
		&cli.IntFlag{Name: "prefetch", Category: runs, Usage: l10n.T("Batches to prefetch")},

		&cli.DurationFlag{Name: "settle-delay", Category: profiling, Usage: l10n.T("Pause after each run before the next one")},
		&cli.DurationFlag{Name: "watchdog", Category: profiling, Usage: l10n.T("Abort a run that takes longer, 0 disables")},
		&cli.StringFlag{Name: "drop-caches-path", Category: profiling, Usage: l10n.T("Kernel drop_caches control file")},
		&cli.BoolFlag{Name: "drop-dentries", Category: profiling, Usage: l10n.T("Also drop dentries and inodes")},
		&cli.StringFlag{Name: "dstat-path", Category: profiling, Usage: l10n.T("Path to dstat (falls back to DSTAT_PATH, then PATH)")},
		&cli.BoolFlag{Name: "no-dstat", Category: profiling, Usage: l10n.T("Do not record telemetry")},

		&cli.StringFlag{Name: "results-dir", Aliases: []string{"o"}, Category: output, Usage: l10n.T("Directory for exported results")},
		&cli.StringFlag{Name: "export-prefix", Category: output, Usage: l10n.T("Prefix of exported file names")},
		&cli.StringFlag{Name: "db", Category: output, Usage: l10n.T("SQLite database receiving all rows")},
		&cli.StringFlag{Name: "chart", Category: output, Usage: l10n.T("PNG chart of throughput per strategy")},

		&cli.StringFlag{Name: "log-level", Aliases: []string{"l"}, Category: logging, Usage: "debug, info, warn, error"},
		&cli.BoolFlag{Name: "quiet", Aliases: []string{"q"}, Category: logging, Usage: l10n.T("Suppress all log output")},
	}
}

// applyRunFlags overrides experiment settings with the flags given on
// the command line.
func applyRunFlags(c *cli.Context, e *config.Experiment) {
	setString := func(name string, dst *string) {
		if c.IsSet(name) {
			*dst = c.String(name)
		}
	}
	setInts := func(name string, dst *[]int) {
		if c.IsSet(name) {
			*dst = c.IntSlice(name)
		}
	}
	setInt := func(name string, dst *int) {
		if c.IsSet(name) {
			*dst = c.Int(name)
		}
	}
	setBool := func(name string, dst *bool, value bool) {
		if c.IsSet(name) {
			*dst = value
		}
	}

	setString("pipeline", &e.Pipeline)
	setInts("split", &e.SplitPositions)
	setInts("shards", &e.ShardCounts)
	setInts("threads", &e.ThreadCounts)
	setBool("pair", &e.PairShardsThreads, c.Bool("pair"))
	setString("compression", &e.Compression)
	setString("storage", &e.StorageType)
	setString("shard-dir-prefix", &e.ShardDirPrefix)
	setBool("no-fuse", &e.Fuse, !c.Bool("no-fuse"))

	setInts("samples", &e.SampleCounts)
	setInt("runs", &e.Runs)
	setBool("keep-system-cache", &e.KeepSystemCache, c.Bool("keep-system-cache"))
	setBool("application-cache", &e.ApplicationCache, c.Bool("application-cache"))
	setInt("batch-size", &e.BatchSize)
	setInt("prefetch", &e.Prefetch)

	if c.IsSet("settle-delay") {
		e.SettleDelay = c.Duration("settle-delay")
	}
	if c.IsSet("watchdog") {
		e.Watchdog = c.Duration("watchdog")
	}
	setString("drop-caches-path", &e.DropCachesPath)
	setBool("drop-dentries", &e.DropDentries, c.Bool("drop-dentries"))
	setString("dstat-path", &e.DstatPath)
	setBool("no-dstat", &e.DisableDstat, c.Bool("no-dstat"))

	setString("results-dir", &e.ResultsDir)
	setString("export-prefix", &e.ExportPrefix)
	setString("db", &e.Database)
	setString("chart", &e.ChartPath)
	setString("log-level", &e.LogLevel)
}
