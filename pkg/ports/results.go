package ports

import "context"

// ColumnType is the storage type of a table column.
type ColumnType int

const (
	ColumnText ColumnType = iota
	ColumnInteger
	ColumnReal
)

// Column describes one table column.
type Column struct {
	Name string
	Type ColumnType
}

// Table is a named set of rows. Each row holds one value per column:
// string for ColumnText, int64 for ColumnInteger, float64 for ColumnReal.
type Table struct {
	Name    string
	Columns []Column
	Rows    [][]any
}

// ColumnIndex returns the index of the named column or -1.
func (t Table) ColumnIndex(name string) int {
	for i, c := range t.Columns {
		if c.Name == name {
			return i
		}
	}
	return -1
}

// ResultStore persists result tables beyond the lifetime of a process.
type ResultStore interface {
	// Save appends the rows of t to the store, creating the table if needed.
	Save(ctx context.Context, t Table) error

	// Close releases the store.
	Close() error
}

// Bar is one bar of a chart.
type Bar struct {
	Label string
	Value float64
	// Err is drawn as a whisker around Value when positive.
	Err float64
}

// Chart is a simple bar chart.
type Chart struct {
	Title  string
	Unit   string
	Width  int
	Height int
	Bars   []Bar
}

// ChartRenderer renders charts to PNG.
type ChartRenderer interface {
	RenderPNG(c Chart) ([]byte, error)
}
