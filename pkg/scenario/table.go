package scenario

import (
	"iter"
	"slices"
	"strings"

	messages "github.com/cucumber/messages/go/v21"
)

// Row is a single row of a step data table.
type Row struct {
	cells   []string
	headers []string
}

// Get returns the cell under the header col (case-insensitive), or "".
func (r Row) Get(col string) string {
	for i, h := range r.headers {
		if strings.EqualFold(h, col) {
			return r.Cell(i)
		}
	}
	return ""
}

// Cell returns the cell at index, or "" when out of range.
func (r Row) Cell(index int) string {
	if index < 0 || index >= len(r.cells) {
		return ""
	}
	return r.cells[index]
}

// Values returns a copy of the cells.
func (r Row) Values() []string {
	return slices.Clone(r.cells)
}

// Table is the data table attached to a feature file step. The first row
// doubles as the header row for Row.Get.
type Table struct {
	headers []string
	rows    []Row
}

// NewTable creates a Table from raw cells.
func NewTable(data [][]string) Table {
	if len(data) == 0 {
		return Table{}
	}
	headers := slices.Clone(data[0])
	rows := make([]Row, len(data))
	for i, cells := range data {
		rows[i] = Row{cells: slices.Clone(cells), headers: headers}
	}
	return Table{headers: headers, rows: rows}
}

// NewTableFromPickle converts the table argument of a pickle step.
func NewTableFromPickle(pt *messages.PickleTable) Table {
	if pt == nil {
		return Table{}
	}
	data := make([][]string, len(pt.Rows))
	for i, row := range pt.Rows {
		for _, cell := range row.Cells {
			data[i] = append(data[i], cell.Value)
		}
	}
	return NewTable(data)
}

// Headers returns the cells of the first row.
func (t Table) Headers() []string {
	return slices.Clone(t.headers)
}

// Len counts the rows, header included.
func (t Table) Len() int {
	return len(t.rows)
}

// All iterates over every row, header included.
func (t Table) All() iter.Seq2[int, Row] {
	return func(yield func(int, Row) bool) {
		for i, row := range t.rows {
			if !yield(i, row) {
				return
			}
		}
	}
}

// SkipHeader iterates over the data rows.
func (t Table) SkipHeader() iter.Seq2[int, Row] {
	return func(yield func(int, Row) bool) {
		for i := 1; i < len(t.rows); i++ {
			if !yield(i-1, t.rows[i]) {
				return
			}
		}
	}
}

// Pairs reads a two column key/value table without a header:
//
//	| root         | [id="create-list-panel"] |
//	| hidden class | translate-x-full         |
//
// Keys are lower-cased and spaces become underscores.
func (t Table) Pairs() map[string]string {
	out := make(map[string]string, len(t.rows))
	for _, row := range t.rows {
		key := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(row.Cell(0))), " ", "_")
		if key != "" {
			out[key] = strings.TrimSpace(row.Cell(1))
		}
	}
	return out
}
