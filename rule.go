package formrules

import (
	"fmt"
	"slices"
	"strings"

	"github.com/google/uuid"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// Effect is what a ConditionRule does to its targets when its condition
// is true.
type Effect string

const (
	// Hidden hides the target and locks the hidden axis.
	Hidden Effect = "hidden"
	// Readonly makes the target read-only and locks the readonly axis.
	Readonly Effect = "readonly"
	// Visible shows the target unless the hidden axis is locked.
	Visible Effect = "visible"
	// Editable restores the default read-only state unless the readonly
	// axis is locked.
	Editable Effect = "editable"
)

// Valid reports whether e is one of the four known effects.
func (e Effect) Valid() bool {
	switch e {
	case Hidden, Readonly, Visible, Editable:
		return true
	}
	return false
}

// TargetType selects which part of a Target applies.
type TargetType string

const (
	TargetAll    TargetType = "all"
	TargetField  TargetType = "field"
	TargetGrid   TargetType = "grid"
	TargetColumn TargetType = "column"
)

// Valid reports whether t is one of the four known target types.
func (t TargetType) Valid() bool {
	switch t {
	case TargetAll, TargetField, TargetGrid, TargetColumn:
		return true
	}
	return false
}

// ColumnTarget names columns of one grid.
type ColumnTarget struct {
	GridName    string   `json:"gridName" yaml:"gridName"`
	ColumnNames []string `json:"columnNames" yaml:"columnNames"`
}

// Target is the scope a rule applies to. Only the list matching Type is
// consulted: FieldNames for field, GridNames for grid, ColumnTargets for
// column.
type Target struct {
	Type          TargetType     `json:"type" yaml:"type"`
	FieldNames    []string       `json:"fieldNames,omitempty" yaml:"fieldNames,omitempty"`
	GridNames     []string       `json:"gridNames,omitempty" yaml:"gridNames,omitempty"`
	ColumnTargets []ColumnTarget `json:"columnTargets,omitempty" yaml:"columnTargets,omitempty"`
}

// errUnknownTarget is returned by the match functions for an unrecognized
// target type; callers treat the rule as non-matching.
type errUnknownTarget TargetType

func (e errUnknownTarget) Error() string {
	return fmt.Sprintf("unrecognized rule target %q", string(e))
}

// matchesField reports whether the target covers the field.
func (t Target) matchesField(name string) (bool, error) {
	switch t.Type {
	case TargetAll:
		return true, nil
	case TargetField:
		return slices.Contains(t.FieldNames, name), nil
	case TargetGrid, TargetColumn:
		return false, nil
	default:
		return false, errUnknownTarget(t.Type)
	}
}

// matchesGrid reports whether the target covers the grid as a whole.
func (t Target) matchesGrid(grid string) (bool, error) {
	switch t.Type {
	case TargetAll:
		return true, nil
	case TargetGrid:
		return slices.Contains(t.GridNames, grid), nil
	case TargetField, TargetColumn:
		return false, nil
	default:
		return false, errUnknownTarget(t.Type)
	}
}

// matchesColumn reports whether the target covers the column. A grid
// target covers all of the grid's columns.
func (t Target) matchesColumn(grid, column string) (bool, error) {
	switch t.Type {
	case TargetAll:
		return true, nil
	case TargetGrid:
		return slices.Contains(t.GridNames, grid), nil
	case TargetColumn:
		for _, ct := range t.ColumnTargets {
			if ct.GridName == grid && slices.Contains(ct.ColumnNames, column) {
				return true, nil
			}
		}
		return false, nil
	case TargetField:
		return false, nil
	default:
		return false, errUnknownTarget(t.Type)
	}
}

func (t Target) String() string {
	switch t.Type {
	case TargetAll:
		return "all"
	case TargetField:
		return "field:" + strings.Join(t.FieldNames, ",")
	case TargetGrid:
		return "grid:" + strings.Join(t.GridNames, ",")
	case TargetColumn:
		parts := make([]string, 0, len(t.ColumnTargets))
		for _, ct := range t.ColumnTargets {
			parts = append(parts, ct.GridName+"."+strings.Join(ct.ColumnNames, "|"))
		}
		return "column:" + strings.Join(parts, ",")
	}
	return fmt.Sprintf("unknown(%s)", string(t.Type))
}

// A ConditionRule changes the hidden or read-only state of its targets
// while its condition is true.
type ConditionRule struct {
	// A unique rule identifier. It is also the tie-break key when two
	// rules have the same priority. (required)
	ID string `json:"id" yaml:"id"`

	Name        string `json:"name,omitempty" yaml:"name,omitempty"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`

	// The condition expression. The rule applies when it evaluates true.
	Condition string `json:"condition" yaml:"condition"`

	Effect Effect `json:"effect" yaml:"effect"`
	Target Target `json:"target" yaml:"target"`

	// Higher priorities are applied first.
	Priority int `json:"priority" yaml:"priority"`

	// Disabled rules are dropped before a pass.
	Enabled bool `json:"enabled" yaml:"enabled"`
}

const ruleIDPrefix = "rule_"

// NewRuleID returns a fresh, unique rule ID.
func NewRuleID() string {
	return ruleIDPrefix + uuid.NewString()
}

// DefaultRule returns the rule a rule editor starts from: enabled, priority
// 0, making every field read-only, with an empty condition.
func DefaultRule() ConditionRule {
	return ConditionRule{
		ID:       NewRuleID(),
		Name:     "New Rule",
		Effect:   Readonly,
		Target:   Target{Type: TargetAll},
		Priority: 0,
		Enabled:  true,
	}
}

// SortRules orders rules by priority descending, then ID ascending.
func SortRules(rules []ConditionRule) {
	slices.SortStableFunc(rules, compareRules)
}

func compareRules(a, b ConditionRule) int {
	if a.Priority != b.Priority {
		if a.Priority > b.Priority {
			return -1
		}
		return 1
	}
	return strings.Compare(a.ID, b.ID)
}

// String renders the rule as a table.
func (r ConditionRule) String() string {
	return rulesTable("", []ConditionRule{r})
}

// RulesTable renders a list of rules, in the order given, as a table.
func RulesTable(title string, rules []ConditionRule) string {
	return rulesTable(title, rules)
}

func rulesTable(title string, rules []ConditionRule) string {
	tw := table.NewWriter()
	if title != "" {
		tw.SetTitle(title)
	}
	tw.AppendHeader(table.Row{"ID", "Priority", "Enabled", "Effect", "Target", "Condition"})
	for _, r := range rules {
		tw.AppendRow(table.Row{r.ID, r.Priority, r.Enabled, r.Effect, r.Target.String(), r.Condition})
	}
	style := table.StyleLight
	style.Format.Header = text.FormatDefault
	tw.SetStyle(style)
	return tw.Render()
}
