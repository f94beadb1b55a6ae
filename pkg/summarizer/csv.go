package summarizer

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/user/shardbench/pkg/ports"
)

// Export table kinds used in file names.
const (
	RunsKind      = "cum-df"
	TelemetryKind = "cum-dstat-df"
)

// ErrEmptyTable is returned when an operation needs at least one row.
var ErrEmptyTable = errors.New("table has no rows")

// WriteCSV writes t with a header row.
func WriteCSV(w io.Writer, t ports.Table) error {
	cw := csv.NewWriter(w)
	header := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		header[i] = c.Name
	}
	if err := cw.Write(header); err != nil {
		return err
	}

	rec := make([]string, len(t.Columns))
	for n, row := range t.Rows {
		if len(row) != len(t.Columns) {
			return fmt.Errorf("%s row %d: %d values for %d columns", t.Name, n, len(row), len(t.Columns))
		}
		for i, v := range row {
			rec[i] = formatCell(v)
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatCell(v any) string {
	switch v := v.(type) {
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64)
	case int64:
		return strconv.FormatInt(v, 10)
	case string:
		return v
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

// ReadCSV reads a table written by WriteCSV. Columns are matched by
// header name, so their order in the file does not matter; extra file
// columns are ignored.
func ReadCSV(r io.Reader, name string, columns []ports.Column) (ports.Table, error) {
	t := ports.Table{Name: name, Columns: columns}

	cr := csv.NewReader(r)
	header, err := cr.Read()
	if err != nil {
		if err == io.EOF {
			return t, fmt.Errorf("%s: missing header", name)
		}
		return t, err
	}
	pos := make(map[string]int, len(header))
	for i, h := range header {
		pos[strings.TrimSpace(h)] = i
	}
	src := make([]int, len(columns))
	for i, c := range columns {
		p, ok := pos[c.Name]
		if !ok {
			return t, &MissingColumnError{Table: name, Column: c.Name}
		}
		src[i] = p
	}

	for line := 2; ; line++ {
		rec, err := cr.Read()
		if err == io.EOF {
			return t, nil
		}
		if err != nil {
			return t, err
		}
		row := make([]any, len(columns))
		for i, c := range columns {
			v, err := parseCell(rec[src[i]], c.Type)
			if err != nil {
				return t, fmt.Errorf("%s line %d column %s: %w", name, line, c.Name, err)
			}
			row[i] = v
		}
		t.Rows = append(t.Rows, row)
	}
}

func parseCell(s string, typ ports.ColumnType) (any, error) {
	switch typ {
	case ports.ColumnInteger:
		if s == "" {
			return int64(0), nil
		}
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return n, nil
		}
		// Tolerate integers exported as floats, e.g. "4.0".
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, err
		}
		return int64(f), nil
	case ports.ColumnReal:
		if s == "" {
			return 0.0, nil
		}
		return strconv.ParseFloat(s, 64)
	default:
		return s, nil
	}
}

// ReadRunCSV reads an exported run table.
func ReadRunCSV(r io.Reader) (ports.Table, error) {
	return ReadCSV(r, RunTableName, RunColumns)
}

// ReadTelemetryCSV reads an exported telemetry table.
func ReadTelemetryCSV(r io.Reader) (ports.Table, error) {
	return ReadCSV(r, TelemetryTableName, TelemetryColumns)
}

// ExportFileName derives the export file name of a table kind from the
// run table: the optional prefix, the creation timestamp of the first
// run, the kind and the distinct sample and thread counts in order of
// appearance, e.g.
//
//	prefix_2026-10-17-10:00:00_cum-df_samples-100-200_threads-1-4.csv
func ExportFileName(runs ports.Table, kind, prefix string) (string, error) {
	if len(runs.Rows) == 0 {
		return "", ErrEmptyTable
	}
	a, err := newAccessor(runs, ColCreated, ColSampleCount, ColThreadCount)
	if err != nil {
		return "", err
	}

	samples := []string{"samples"}
	threads := []string{"threads"}
	seenS := map[int64]bool{}
	seenT := map[int64]bool{}
	for i := range runs.Rows {
		if s := a.int(i, ColSampleCount); !seenS[s] {
			seenS[s] = true
			samples = append(samples, strconv.FormatInt(s, 10))
		}
		if th := a.int(i, ColThreadCount); !seenT[th] {
			seenT[th] = true
			threads = append(threads, strconv.FormatInt(th, 10))
		}
	}

	parts := []string{a.text(0, ColCreated), kind, strings.Join(samples, "-"), strings.Join(threads, "-")}
	if prefix != "" {
		parts = append([]string{prefix}, parts...)
	}
	return strings.Join(parts, "_") + ".csv", nil
}
