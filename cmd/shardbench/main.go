// Package main provides the CLI entry point for shardbench.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ideamans/go-l10n"
	"github.com/urfave/cli/v2"

	"github.com/user/shardbench/pkg/adapters/dropcache"
	"github.com/user/shardbench/pkg/adapters/dstat"
	"github.com/user/shardbench/pkg/adapters/ggrenderer"
	"github.com/user/shardbench/pkg/adapters/logger"
	"github.com/user/shardbench/pkg/adapters/nullsampler"
	"github.com/user/shardbench/pkg/adapters/osfilesystem"
	"github.com/user/shardbench/pkg/adapters/sqlitestore"
	"github.com/user/shardbench/pkg/adapters/sysclock"
	"github.com/user/shardbench/pkg/config"
	"github.com/user/shardbench/pkg/orchestrator"
	"github.com/user/shardbench/pkg/ports"
	"github.com/user/shardbench/pkg/strategy"
)

var version = "dev"

const exitConfiguration = 2

func main() {
	app := &cli.App{
		Name:  "shardbench",
		Usage: l10n.T("Benchmark where to split a preprocessing pipeline into offline and online phases"),
		Commands: []*cli.Command{
			runCommand(),
			summarizeCommand(),
			versionCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func versionCommand() *cli.Command {
	return &cli.Command{
		Name:  "version",
		Usage: l10n.T("Show version information"),
		Action: func(c *cli.Context) error {
			fmt.Println(l10n.F("shardbench version %s", version))
			return nil
		},
	}
}

func newLogger(level string, quiet, elapsed bool) ports.Logger {
	if quiet {
		return logger.NewNoop()
	}
	l := logger.NewConsole(ports.ParseLogLevel(level))
	if elapsed {
		return l.WithElapsed(time.Now)
	}
	return l
}

// signalContext cancels on SIGINT or SIGTERM.
func signalContext(log ports.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case <-sigCh:
			log.Warn("Interrupted, shutting down...")
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigCh)
	}()
	return ctx, cancel
}

// configurationExit turns a configuration error into an immediate exit.
func configurationExit(err error) error {
	if errors.Is(err, config.ErrConfiguration) {
		return cli.Exit(l10n.F("Configuration error: %v", err), exitConfiguration)
	}
	return err
}

func runCommand() *cli.Command {
	return &cli.Command{
		Name:      "run",
		Usage:     l10n.T("Profile every strategy of an experiment"),
		ArgsUsage: "[experiment.yaml]",
		Flags:     runFlags(),
		Action:    runAction,
	}
}

func runAction(c *cli.Context) error {
	exp := config.Defaults()
	source := "defaults"
	if path := c.Args().First(); path != "" {
		var err error
		if exp, err = config.LoadFromFile(path); err != nil {
			return configurationExit(err)
		}
		source = path
	}
	applyRunFlags(c, &exp)

	groups, err := exp.Strategies()
	if err != nil {
		return configurationExit(err)
	}

	log := newLogger(exp.LogLevel, c.Bool("quiet"), true)
	ctx, cancel := signalContext(log)
	defer cancel()

	fs := osfilesystem.New()
	deps := strategy.Dependencies{
		FS:      fs,
		Dropper: dropcache.New(exp.DropCachesPath),
		Sampler: newSampler(exp, log),
		Clock:   sysclock.New(),
		Logger:  log,
	}

	var store ports.ResultStore
	if exp.Database != "" {
		s, err := sqlitestore.Open(exp.Database)
		if err != nil {
			return err
		}
		defer s.Close()
		store = s
	}

	orch := orchestrator.New(deps, store, ggrenderer.New())
	res, err := orch.Run(ctx, groups, orchestrator.FromExperiment(exp, source))
	if err != nil {
		return configurationExit(err)
	}

	if res.ReportPath != "" {
		log.Info("Report saved to %s", res.ReportPath)
	}
	return nil
}

// newSampler returns the dstat sampler, or a null sampler when dstat is
// disabled or missing. Runs without a sampler are flagged as missing
// telemetry.
func newSampler(exp config.Experiment, log ports.Logger) ports.Sampler {
	if exp.DisableDstat {
		return nullsampler.New()
	}
	path, err := dstat.Find(exp.DstatPath)
	if err != nil {
		log.Warn("Telemetry disabled: %v", err)
		return nullsampler.New()
	}
	return dstat.New(path)
}
