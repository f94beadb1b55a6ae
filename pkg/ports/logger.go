// Package ports defines the interfaces between the benchmark core and its
// environment: logging, the filesystem, cache control, telemetry
// sampling, time, result persistence and chart rendering.
package ports

import "strings"

// LogLevel orders log messages by severity.
type LogLevel int

const (
	// LevelDebug carries per-component detail: compiled nodes, shard
	// writes, cache drops.
	LevelDebug LogLevel = iota
	// LevelInfo reports experiment, strategy and run progress.
	LevelInfo
	// LevelWarn reports a degraded measurement. The run-group goes on and
	// the run record carries a flag.
	LevelWarn
	// LevelError reports a failure that stops the experiment.
	LevelError
	// LevelQuiet suppresses all output.
	LevelQuiet
)

var levelNames = [...]string{"debug", "info", "warn", "error", "quiet"}

func (l LogLevel) String() string {
	if l < LevelDebug || l > LevelQuiet {
		return "unknown"
	}
	return levelNames[l]
}

// ParseLogLevel maps a level name to a LogLevel, ignoring case.
// "warning" and "none" are accepted as aliases. Unknown names fall back
// to LevelInfo.
func ParseLogLevel(s string) LogLevel {
	switch s = strings.ToLower(strings.TrimSpace(s)); s {
	case "warning":
		return LevelWarn
	case "none":
		return LevelQuiet
	}
	for i, name := range levelNames {
		if name == s {
			return LogLevel(i)
		}
	}
	return LevelInfo
}

// Logger is the logging port. msg is a format string and doubles as the
// translation key for localized output.
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})

	// WithComponent returns a Logger that prefixes every message with
	// the component name, e.g. "[shards]".
	WithComponent(component string) Logger
}
