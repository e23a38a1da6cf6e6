package expr

import (
	"encoding/json"
	"strings"
)

// GridContext is the view of one grid that expressions see under
// grids.<name>.
type GridContext struct {
	Rows         []Row
	SelectedRows []Row
}

// NewGridContext builds a GridContext from the value stored for the grid
// and the rows the user currently has selected. The stored value may be a
// JSON array string or a slice of rows. Anything else, including malformed
// JSON, produces a grid with no rows.
func NewGridContext(stored any, selected []Row) *GridContext {
	sel := make([]Row, 0, len(selected))
	sel = append(sel, selected...)
	return &GridContext{
		Rows:         DecodeRows(stored),
		SelectedRows: sel,
	}
}

// DecodeRows reads grid rows out of a stored form value. It never fails:
// content that is not an array of objects yields an empty list.
func DecodeRows(stored any) []Row {
	switch v := stored.(type) {
	case []Row:
		out := make([]Row, 0, len(v))
		for _, r := range v {
			if r != nil {
				out = append(out, r)
			}
		}
		return out
	case []any:
		return objects(v)
	case string:
		if strings.TrimSpace(v) == "" {
			return []Row{}
		}
		var raw []any
		if err := json.Unmarshal([]byte(v), &raw); err != nil {
			return []Row{}
		}
		return objects(raw)
	}
	return []Row{}
}

func objects(items []any) []Row {
	out := make([]Row, 0, len(items))
	for _, it := range items {
		if r, ok := it.(map[string]any); ok {
			out = append(out, r)
		}
	}
	return out
}

// SelectedRow returns the first selected row, or nil when nothing is selected.
func (g *GridContext) SelectedRow() Row {
	if len(g.SelectedRows) == 0 {
		return nil
	}
	return g.SelectedRows[0]
}

// Count returns the number of rows.
func (g *GridContext) Count() int {
	return len(g.Rows)
}

// Sum adds up column over all rows, selected or not. Values without a
// numeric reading count as 0.
func (g *GridContext) Sum(column string) float64 {
	var total float64
	for _, r := range g.Rows {
		n, _ := ToNumber(valueOr(r, column))
		total += n
	}
	return total
}

// Avg returns the mean of column over all rows, or 0 for an empty grid.
func (g *GridContext) Avg(column string) float64 {
	if len(g.Rows) == 0 {
		return 0
	}
	return g.Sum(column) / float64(len(g.Rows))
}

// Min returns the smallest numeric value in column. The second result is
// false when no row holds a number there.
func (g *GridContext) Min(column string) (float64, bool) {
	return g.fold(column, func(best, n float64) bool { return n < best })
}

// Max returns the largest numeric value in column.
func (g *GridContext) Max(column string) (float64, bool) {
	return g.fold(column, func(best, n float64) bool { return n > best })
}

func (g *GridContext) fold(column string, better func(best, n float64) bool) (float64, bool) {
	var (
		best  float64
		found bool
	)
	for _, r := range g.Rows {
		v, ok := r[column]
		if !ok || isNullish(v) {
			continue
		}
		n, ok := ToNumber(v)
		if !ok {
			continue
		}
		if !found || better(best, n) {
			best, found = n, true
		}
	}
	return best, found
}

func valueOr(r Row, column string) any {
	if v, ok := r[column]; ok {
		return v
	}
	return Undefined
}

func (g *GridContext) asMap() map[string]any {
	rows := make([]any, len(g.Rows))
	for i, r := range g.Rows {
		rows[i] = r
	}
	selected := make([]any, len(g.SelectedRows))
	for i, r := range g.SelectedRows {
		selected[i] = r
	}
	var first any
	if r := g.SelectedRow(); r != nil {
		first = r
	}
	return map[string]any{
		"rows":         rows,
		"selectedRows": selected,
		"selectedRow":  first,
	}
}
