// Package summarizer turns run and telemetry records into tables and
// derives comparable summaries, rankings and reports from them.
package summarizer

import (
	"github.com/user/shardbench/pkg/ports"
	"github.com/user/shardbench/pkg/strategy"
	"github.com/user/shardbench/pkg/telemetry"
)

// Table names.
const (
	RunTableName       = "runs"
	TelemetryTableName = "telemetry"
)

// Run table column names used by the analysis.
const (
	ColOfflineTime = "offline_processing_and_save_time_s"
	ColShardCount  = "shard_count"
	ColThreadCount = "thread_count"
	ColShardSize   = "shard_cum_size_MB"
	ColSampleCount = "sample_count"
	ColOnlineTime  = "online_processing_time_s"
	ColThroughput  = "throughput_sps"
	ColRun         = "runs_count"
	ColRunsTotal   = "runs_total"
	ColUEID        = "ueid"
	ColSplitName   = "split_name"
	ColCreated     = "creation_timestamp"
	ColCompression = "compression_type"
	ColStorage     = "storage_type"
	ColAppCache    = "application_cache"
	ColSysCache    = "system_cache"
	ColBatchSize   = "batch_size"
	ColPrefetch    = "prefetch"
	ColConsumed    = "consumed"
	ColDropFailed  = "cache_drop_failed"
	ColNoTelemetry = "telemetry_missing"
)

func col(name string, t ports.ColumnType) ports.Column {
	return ports.Column{Name: name, Type: t}
}

// RunColumns is the schema of the run table.
var RunColumns = []ports.Column{
	col(ColOfflineTime, ports.ColumnReal),
	col(ColShardCount, ports.ColumnInteger),
	col(ColThreadCount, ports.ColumnInteger),
	col(ColShardSize, ports.ColumnReal),
	col(ColSampleCount, ports.ColumnInteger),
	col(ColOnlineTime, ports.ColumnReal),
	col(ColThroughput, ports.ColumnReal),
	col(ColRun, ports.ColumnInteger),
	col(ColRunsTotal, ports.ColumnInteger),
	col(ColUEID, ports.ColumnText),
	col(ColSplitName, ports.ColumnText),
	col(ColCreated, ports.ColumnText),
	col(ColCompression, ports.ColumnText),
	col(ColStorage, ports.ColumnText),
	col(ColAppCache, ports.ColumnInteger),
	col(ColSysCache, ports.ColumnInteger),
	col(ColBatchSize, ports.ColumnInteger),
	col(ColPrefetch, ports.ColumnInteger),
	col(ColConsumed, ports.ColumnInteger),
	col(ColDropFailed, ports.ColumnInteger),
	col(ColNoTelemetry, ports.ColumnInteger),
}

// telemetryMetrics are the numeric telemetry columns in table order.
var telemetryMetrics = []struct {
	name  string
	value func(telemetry.Record) float64
}{
	{"rel_time_s", func(r telemetry.Record) float64 { return r.RelTime }},
	{"disk_read_mbs", func(r telemetry.Record) float64 { return r.DiskReadMBs }},
	{"disk_write_mbs", func(r telemetry.Record) float64 { return r.DiskWriteMBs }},
	{"net_read_mbs", func(r telemetry.Record) float64 { return r.NetRecvMBs }},
	{"net_write_mbs", func(r telemetry.Record) float64 { return r.NetSendMBs }},
	{"cpu_usr_in_percent", func(r telemetry.Record) float64 { return r.CPUUser }},
	{"cpu_sys_in_percent", func(r telemetry.Record) float64 { return r.CPUSystem }},
	{"cpu_idle_in_percent", func(r telemetry.Record) float64 { return r.CPUIdle }},
	{"cpu_wait_in_percent", func(r telemetry.Record) float64 { return r.CPUWait }},
	{"system_interrupts_per_s", func(r telemetry.Record) float64 { return r.Interrupts }},
	{"system_context_switches_per_s", func(r telemetry.Record) float64 { return r.ContextSwitches }},
	{"memory_free_mb", func(r telemetry.Record) float64 { return r.MemFreeMB }},
	{"memory_buffered_mb", func(r telemetry.Record) float64 { return r.MemBufferedMB }},
	{"memory_used_mb", func(r telemetry.Record) float64 { return r.MemUsedMB }},
	{"memory_cached_mb", func(r telemetry.Record) float64 { return r.MemCachedMB }},
	{"vm_major_pagefaults", func(r telemetry.Record) float64 { return r.VMMajorFaults }},
	{"vm_minor_pagefaults", func(r telemetry.Record) float64 { return r.VMMinorFaults }},
	{"vm_allocated_mb", func(r telemetry.Record) float64 { return r.VMAllocatedMB }},
	{"vm_free_mb", func(r telemetry.Record) float64 { return r.VMFreeMB }},
	{"filesystem_files", func(r telemetry.Record) float64 { return r.FSFiles }},
	{"filesystem_inodes", func(r telemetry.Record) float64 { return r.FSInodes }},
	{"filelocks_posix", func(r telemetry.Record) float64 { return r.LocksPosix }},
	{"filelocks_lock", func(r telemetry.Record) float64 { return r.LocksLock }},
	{"filelocks_read", func(r telemetry.Record) float64 { return r.LocksRead }},
	{"filelocks_write", func(r telemetry.Record) float64 { return r.LocksWrite }},
}

// TelemetryColumns is the schema of the telemetry table.
var TelemetryColumns = func() []ports.Column {
	cols := make([]ports.Column, 0, len(telemetryMetrics)+9)
	for _, m := range telemetryMetrics {
		cols = append(cols, col(m.name, ports.ColumnReal))
	}
	return append(cols,
		col("run", ports.ColumnInteger),
		col(ColSampleCount, ports.ColumnInteger),
		col(ColShardCount, ports.ColumnInteger),
		col(ColThreadCount, ports.ColumnInteger),
		col(ColUEID, ports.ColumnText),
		col(ColSplitName, ports.ColumnText),
		col(ColCreated, ports.ColumnText),
		col(ColCompression, ports.ColumnText),
		col(ColStorage, ports.ColumnText),
	)
}()

func boolInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

// NewRunTable builds the run table, one row per record.
func NewRunTable(records []strategy.RunRecord) ports.Table {
	t := ports.Table{Name: RunTableName, Columns: RunColumns}
	for _, r := range records {
		t.Rows = append(t.Rows, []any{
			r.OfflineTime.Seconds(),
			int64(r.ShardCount),
			int64(r.ThreadCount),
			r.ShardSizeMB(),
			int64(r.SampleCount),
			r.OnlineTime.Seconds(),
			r.Throughput,
			int64(r.Run),
			int64(r.RunsTotal),
			r.UEID,
			r.SplitName,
			r.CreationTimestamp,
			r.Compression,
			r.StorageType,
			boolInt(r.ApplicationCache),
			boolInt(r.SystemCache),
			int64(r.BatchSize),
			int64(r.Prefetch),
			int64(r.Consumed),
			boolInt(r.CacheDropFailed),
			boolInt(r.TelemetryMissing),
		})
	}
	return t
}

// NewTelemetryTable builds the telemetry table of one strategy, tagging
// each sample with the strategy's attributes.
func NewTelemetryTable(meta strategy.Meta, records []telemetry.Record) ports.Table {
	t := ports.Table{Name: TelemetryTableName, Columns: TelemetryColumns}
	for _, r := range records {
		row := make([]any, 0, len(TelemetryColumns))
		for _, m := range telemetryMetrics {
			row = append(row, m.value(r))
		}
		row = append(row,
			int64(r.Run),
			int64(r.SampleCount),
			int64(meta.ShardCount),
			int64(meta.ThreadCount),
			meta.UEID,
			meta.SplitName,
			meta.CreationTimestamp,
			meta.Compression,
			meta.StorageType,
		)
		t.Rows = append(t.Rows, row)
	}
	return t
}

// Concat appends the rows of more to t. All tables must share t's
// columns.
func Concat(t ports.Table, more ...ports.Table) ports.Table {
	out := ports.Table{Name: t.Name, Columns: t.Columns, Rows: append([][]any(nil), t.Rows...)}
	for _, m := range more {
		out.Rows = append(out.Rows, m.Rows...)
	}
	return out
}

// accessor reads typed cells of one table by column name.
type accessor struct {
	t   ports.Table
	idx map[string]int
}

func newAccessor(t ports.Table, required ...string) (*accessor, error) {
	a := &accessor{t: t, idx: make(map[string]int, len(t.Columns))}
	for i, c := range t.Columns {
		a.idx[c.Name] = i
	}
	for _, name := range required {
		if _, ok := a.idx[name]; !ok {
			return nil, &MissingColumnError{Table: t.Name, Column: name}
		}
	}
	return a, nil
}

func (a *accessor) float(row int, name string) float64 {
	switch v := a.t.Rows[row][a.idx[name]].(type) {
	case float64:
		return v
	case int64:
		return float64(v)
	default:
		return 0
	}
}

func (a *accessor) int(row int, name string) int64 {
	switch v := a.t.Rows[row][a.idx[name]].(type) {
	case int64:
		return v
	case float64:
		return int64(v)
	default:
		return 0
	}
}

func (a *accessor) text(row int, name string) string {
	s, _ := a.t.Rows[row][a.idx[name]].(string)
	return s
}

// MissingColumnError reports a table lacking a column an operation needs.
type MissingColumnError struct {
	Table  string
	Column string
}

func (e *MissingColumnError) Error() string {
	return "table " + e.Table + " has no column " + e.Column
}
