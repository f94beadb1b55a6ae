package logger

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/user/shardbench/pkg/ports"
)

func TestConsoleLogger_Levels(t *testing.T) {
	tests := []struct {
		level   ports.LogLevel
		wantOut int
		wantErr int
	}{
		{ports.LevelDebug, 2, 2},
		{ports.LevelInfo, 1, 2},
		{ports.LevelWarn, 0, 2},
		{ports.LevelError, 0, 1},
		{ports.LevelQuiet, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.level.String(), func(t *testing.T) {
			var out, errOut bytes.Buffer
			l := NewConsoleTo(tt.level, &out, &errOut)
			l.Debug("debug %d", 1)
			l.Info("info %d", 2)
			l.Warn("warn %d", 3)
			l.Error("error %d", 4)

			if got := strings.Count(out.String(), "\n"); got != tt.wantOut {
				t.Errorf("stdout lines = %d, want %d", got, tt.wantOut)
			}
			if got := strings.Count(errOut.String(), "\n"); got != tt.wantErr {
				t.Errorf("stderr lines = %d, want %d", got, tt.wantErr)
			}
		})
	}
}

func TestConsoleLogger_WithComponent(t *testing.T) {
	var out bytes.Buffer
	l := NewConsoleTo(ports.LevelDebug, &out, &out)
	l.WithComponent("shards").Debug("%d of %d", 17, 20)

	if got := out.String(); got != "[shards] 17 of 20\n" {
		t.Errorf("output = %q", got)
	}
}

func TestConsoleLogger_Prefixes(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	calls := 0
	now := func() time.Time {
		calls++
		return start.Add(time.Duration(calls-1) * 1500 * time.Millisecond)
	}

	tests := []struct {
		name string
		log  func(l *ConsoleLogger)
		want string
	}{
		{
			name: "nested components",
			log:  func(l *ConsoleLogger) { l.WithComponent("strategy").WithComponent("shards").Info("wrote %d", 3) },
			want: "[strategy/shards] wrote 3\n",
		},
		{
			name: "warning tag",
			log:  func(l *ConsoleLogger) { l.WithComponent("profile").Warn("slow") },
			want: "WARN [profile] slow\n",
		},
		{
			name: "error tag",
			log:  func(l *ConsoleLogger) { l.Error("boom") },
			want: "ERROR boom\n",
		},
		{
			name: "elapsed",
			log:  func(l *ConsoleLogger) { l.WithElapsed(now).Info("tick") },
			want: "[    1.5s] tick\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			tt.log(NewConsoleTo(ports.LevelDebug, &out, &out))
			if got := out.String(); got != tt.want {
				t.Errorf("output = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestNoopLogger(t *testing.T) {
	l := NewNoop()
	if l.WithComponent("x") != ports.Logger(l) {
		t.Error("WithComponent should return the same logger")
	}
	l.Error("ignored %d", 1)
}
