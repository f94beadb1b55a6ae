// Package telemetry reads the per-run dstat CSV files written by the
// telemetry sampler into typed records.
package telemetry

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/user/shardbench/pkg/ports"
)

// ErrMalformedTelemetry is returned for files that are not dstat CSV output.
var ErrMalformedTelemetry = errors.New("telemetry: malformed dstat csv")

// FilePattern matches telemetry files inside a shard directory.
const FilePattern = "dstat_*.csv"

// dstat writes four preamble rows, then the group row and the column row.
const (
	groupRow  = 4
	columnRow = 5
)

const megabyte = 1000 * 1000

var fileName = regexp.MustCompile(`dstat_run-(\d+)_samples-(\d+)\.csv$`)

// Record is one sample of the system counters taken during a run.
type Record struct {
	Run         int
	SampleCount int
	// RelTime is the number of seconds since the first sample of the run.
	RelTime float64

	DiskReadMBs  float64
	DiskWriteMBs float64
	NetRecvMBs   float64
	NetSendMBs   float64

	CPUUser   float64
	CPUSystem float64
	CPUIdle   float64
	CPUWait   float64

	Interrupts      float64
	ContextSwitches float64

	MemFreeMB     float64
	MemBufferedMB float64
	MemUsedMB     float64
	MemCachedMB   float64

	VMMajorFaults float64
	VMMinorFaults float64
	VMAllocatedMB float64
	VMFreeMB      float64

	FSFiles  float64
	FSInodes float64

	LocksPosix float64
	LocksLock  float64
	LocksRead  float64
	LocksWrite float64
}

type column struct{ group, name string }

// field binds a dstat column to a record field with a divisor.
type field struct {
	column
	div float64
	set func(*Record, float64)
}

var fields = []field{
	{column{"dsk/total", "read"}, megabyte, func(r *Record, v float64) { r.DiskReadMBs = v }},
	{column{"dsk/total", "writ"}, megabyte, func(r *Record, v float64) { r.DiskWriteMBs = v }},
	{column{"net/total", "recv"}, megabyte, func(r *Record, v float64) { r.NetRecvMBs = v }},
	{column{"net/total", "send"}, megabyte, func(r *Record, v float64) { r.NetSendMBs = v }},
	{column{"total cpu usage", "usr"}, 1, func(r *Record, v float64) { r.CPUUser = v }},
	{column{"total cpu usage", "sys"}, 1, func(r *Record, v float64) { r.CPUSystem = v }},
	{column{"total cpu usage", "idl"}, 1, func(r *Record, v float64) { r.CPUIdle = v }},
	{column{"total cpu usage", "wai"}, 1, func(r *Record, v float64) { r.CPUWait = v }},
	{column{"system", "int"}, 1, func(r *Record, v float64) { r.Interrupts = v }},
	{column{"system", "csw"}, 1, func(r *Record, v float64) { r.ContextSwitches = v }},
	{column{"memory usage", "free"}, megabyte, func(r *Record, v float64) { r.MemFreeMB = round2(v) }},
	{column{"memory usage", "buff"}, megabyte, func(r *Record, v float64) { r.MemBufferedMB = round2(v) }},
	{column{"memory usage", "used"}, megabyte, func(r *Record, v float64) { r.MemUsedMB = round2(v) }},
	{column{"memory usage", "cach"}, megabyte, func(r *Record, v float64) { r.MemCachedMB = round2(v) }},
	{column{"virtual memory", "majpf"}, 1, func(r *Record, v float64) { r.VMMajorFaults = v }},
	{column{"virtual memory", "minpf"}, 1, func(r *Record, v float64) { r.VMMinorFaults = v }},
	{column{"virtual memory", "alloc"}, megabyte, func(r *Record, v float64) { r.VMAllocatedMB = round2(v) }},
	{column{"virtual memory", "free"}, megabyte, func(r *Record, v float64) { r.VMFreeMB = round2(v) }},
	{column{"filesystem", "files"}, 1, func(r *Record, v float64) { r.FSFiles = v }},
	{column{"filesystem", "inodes"}, 1, func(r *Record, v float64) { r.FSInodes = v }},
	{column{"file locks", "pos"}, 1, func(r *Record, v float64) { r.LocksPosix = v }},
	{column{"file locks", "lck"}, 1, func(r *Record, v float64) { r.LocksLock = v }},
	{column{"file locks", "rea"}, 1, func(r *Record, v float64) { r.LocksRead = v }},
	{column{"file locks", "wri"}, 1, func(r *Record, v float64) { r.LocksWrite = v }},
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// ParseFileName extracts the run index and sample count from a telemetry
// file name.
func ParseFileName(path string) (run, sampleCount int, ok bool) {
	m := fileName.FindStringSubmatch(filepath.Base(path))
	if m == nil {
		return 0, 0, false
	}
	run, _ = strconv.Atoi(m[1])
	sampleCount, _ = strconv.Atoi(m[2])
	return run, sampleCount, true
}

// Parse reads dstat CSV output. Samples sharing the same whole-second
// epoch are dropped after the first. A file cut off before the header
// rows yields no records and no error. The sampler is killed to stop it,
// so a final row that is shorter than the header or does not parse is
// treated as cut off and skipped. Columns missing from the file leave
// their fields zero.
func Parse(r io.Reader, run, sampleCount int) ([]Record, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	rows, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedTelemetry, err)
	}
	if len(rows) <= columnRow {
		return nil, nil
	}

	header := rows[columnRow]
	index := columnIndex(rows[groupRow], header)
	epochCol, ok := index[column{"epoch", "epoch"}]
	if !ok {
		return nil, fmt.Errorf("%w: no epoch column", ErrMalformedTelemetry)
	}

	var (
		records []Record
		seen    = make(map[int64]bool)
		first   int64
		data    = rows[columnRow+1:]
	)
	for i, row := range data {
		last := i == len(data)-1
		if last && len(row) < len(header) {
			break
		}
		rec, err := parseRow(row, index, epochCol)
		if err != nil {
			if last {
				break
			}
			return nil, fmt.Errorf("%w: row %d %v", ErrMalformedTelemetry, i, err)
		}
		sec := int64(rec.RelTime)
		if seen[sec] {
			continue
		}
		seen[sec] = true
		if len(records) == 0 || sec < first {
			first = sec
		}
		rec.Run, rec.SampleCount = run, sampleCount
		records = append(records, rec)
	}

	for i := range records {
		records[i].RelTime -= float64(first)
	}
	return records, nil
}

// parseRow reads one sample. RelTime holds the whole-second epoch.
func parseRow(row []string, index map[column]int, epochCol int) (Record, error) {
	epoch, err := cell(row, epochCol)
	if err != nil {
		return Record{}, fmt.Errorf("epoch: %v", err)
	}
	rec := Record{RelTime: float64(int64(epoch))}
	for _, f := range fields {
		col, ok := index[f.column]
		if !ok {
			continue
		}
		v, err := cell(row, col)
		if err != nil {
			return Record{}, fmt.Errorf("%s/%s: %v", f.group, f.name, err)
		}
		f.set(&rec, v/f.div)
	}
	return rec, nil
}

// columnIndex maps (group, name) pairs to column positions. Group
// labels are only written above the first column of each group. The
// first occurrence of a pair wins.
func columnIndex(groups, names []string) map[column]int {
	index := make(map[column]int, len(names))
	group := ""
	for i, name := range names {
		if i < len(groups) && strings.TrimSpace(groups[i]) != "" {
			group = strings.TrimSpace(groups[i])
		}
		c := column{group, strings.TrimSpace(name)}
		if _, dup := index[c]; !dup {
			index[c] = i
		}
	}
	return index
}

func cell(row []string, col int) (float64, error) {
	if col >= len(row) {
		return 0, fmt.Errorf("missing column %d", col)
	}
	s := strings.TrimSpace(row[col])
	if s == "" {
		return 0, nil
	}
	return strconv.ParseFloat(s, 64)
}

// ParseFile parses one telemetry file whose name carries the run index
// and sample count.
func ParseFile(fs ports.FileSystem, path string) ([]Record, error) {
	run, samples, ok := ParseFileName(path)
	if !ok {
		return nil, fmt.Errorf("%w: unexpected file name %s", ErrMalformedTelemetry, path)
	}
	f, err := fs.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	records, err := Parse(f, run, samples)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return records, nil
}

// FileError reports a telemetry file that could not be read or parsed.
type FileError struct {
	Path string
	Run  int
	Err  error
}

func (e *FileError) Error() string { return e.Err.Error() }
func (e *FileError) Unwrap() error { return e.Err }

// LoadDir parses every telemetry file in dir, ordered by run index.
// Files that fail are reported in failed and skipped; the records of
// the other files are still returned. err is set only when the
// directory cannot be listed.
func LoadDir(fs ports.FileSystem, dir string) (records []Record, failed []*FileError, err error) {
	paths, err := fs.Glob(filepath.Join(dir, FilePattern))
	if err != nil {
		return nil, nil, err
	}
	sort.SliceStable(paths, func(i, j int) bool {
		ri, _, _ := ParseFileName(paths[i])
		rj, _, _ := ParseFileName(paths[j])
		return ri < rj
	})

	for _, p := range paths {
		recs, err := ParseFile(fs, p)
		if err != nil {
			run, _, ok := ParseFileName(p)
			if !ok {
				run = -1
			}
			failed = append(failed, &FileError{Path: p, Run: run, Err: err})
			continue
		}
		records = append(records, recs...)
	}
	return records, failed, nil
}
