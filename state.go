package formrules

import (
	"sort"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// Synthetic entries recorded in AppliedRules when a field's legacy
// expressions hold.
const (
	LegacyHiddenRuleID   = "field:hiddenExpression"
	LegacyReadonlyRuleID = "field:readonlyExpression"
)

// ComputedFieldState is the resolved state of a field or grid column.
type ComputedFieldState struct {
	IsHidden   bool `json:"isHidden" yaml:"isHidden"`
	IsReadonly bool `json:"isReadonly" yaml:"isReadonly"`

	// Every rule whose target matched and whose condition held, in the
	// order the rules were applied, whether or not it changed the outcome.
	AppliedRules []string `json:"appliedRules" yaml:"appliedRules"`

	// The rule that last decided each axis. Empty when the static
	// definition decided it.
	HiddenSource   string `json:"hiddenSource,omitempty" yaml:"hiddenSource,omitempty"`
	ReadonlySource string `json:"readonlySource,omitempty" yaml:"readonlySource,omitempty"`
}

// ComputedGridState is the resolved state of a grid and its columns.
type ComputedGridState struct {
	ComputedFieldState `yaml:",inline"`

	ColumnStates map[string]ComputedFieldState `json:"columnStates" yaml:"columnStates"`
}

// ComputedFormState is the result of one computation pass.
type ComputedFormState struct {
	Fields map[string]ComputedFieldState `json:"fields" yaml:"fields"`
	Grids  map[string]ComputedGridState  `json:"grids" yaml:"grids"`

	// Only available when the StateComputer collects diagnostics.
	Diagnostics *Diagnostics `json:"-" yaml:"-"`
}

// Field returns the state of the named field, and whether it was computed.
func (s *ComputedFormState) Field(name string) (ComputedFieldState, bool) {
	if s == nil {
		return ComputedFieldState{}, false
	}
	st, ok := s.Fields[name]
	return st, ok
}

// Grid returns the state of the named grid, and whether it was computed.
func (s *ComputedFormState) Grid(name string) (ComputedGridState, bool) {
	if s == nil {
		return ComputedGridState{}, false
	}
	st, ok := s.Grids[name]
	return st, ok
}

// String renders the state of every field, grid and column as a table.
func (s *ComputedFormState) String() string {
	tw := table.NewWriter()
	tw.SetTitle("FORM STATE")
	tw.AppendHeader(table.Row{"Kind", "Name", "Hidden", "Read-\nonly", "Applied Rules"})

	for _, name := range sortedKeys(s.Fields) {
		st := s.Fields[name]
		tw.AppendRow(stateRow("field", name, st))
	}
	for _, name := range sortedKeys(s.Grids) {
		gs := s.Grids[name]
		tw.AppendRow(stateRow("grid", name, gs.ComputedFieldState))
		for _, col := range sortedKeys(gs.ColumnStates) {
			tw.AppendRow(stateRow("column", "  "+name+"."+col, gs.ColumnStates[col]))
		}
	}

	style := table.StyleLight
	style.Format.Header = text.FormatDefault
	tw.SetStyle(style)
	return tw.Render()
}

func stateRow(kind, name string, st ComputedFieldState) table.Row {
	return table.Row{kind, name, yesNo(st.IsHidden), yesNo(st.IsReadonly), strings.Join(st.AppliedRules, ", ")}
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return ""
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
