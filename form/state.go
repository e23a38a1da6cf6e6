package form

import (
	"slices"

	"github.com/ezachrisen/formrules"
	"github.com/ezachrisen/formrules/expr"
)

// ComputedStates resolves condition rules against the current values.
func (c *Controller) ComputedStates() *formrules.ComputedFormState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.computedStates(false)
}

// Diagnose resolves condition rules like ComputedStates and records every
// rule evaluation in the result's Diagnostics.
func (c *Controller) Diagnose() *formrules.ComputedFormState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.computedStates(true)
}

// c.mu must be held.
func (c *Controller) computedStates(diagnose bool) *formrules.ComputedFormState {
	var ev formrules.Evaluator
	if c.opts.ConditionEvaluator != nil {
		ev = c.opts.ConditionEvaluator(c.context())
	} else {
		ev = c.evaluator()
	}
	global, task := c.opts.ConditionRules, c.opts.TaskConditionRules
	if c.opts.RuleSource != nil {
		global, task = c.opts.RuleSource.Rules(c.opts.TaskKey)
	}
	sc := formrules.NewStateComputer(ev,
		formrules.FormReadonly(c.opts.Readonly),
		formrules.CollectDiagnostics(diagnose),
		formrules.WithLogger(c.opts.Logger))
	return sc.ComputeFormState(c.opts.Fields, c.opts.Grids, global, task)
}

// States returns the final state of every field and grid: ComputedStates
// with the visibility fallback of FieldState and GridState applied.
func (c *Controller) States() *formrules.ComputedFormState {
	c.mu.Lock()
	defer c.mu.Unlock()
	states := c.computedStates(false)
	out := &formrules.ComputedFormState{
		Fields: make(map[string]formrules.ComputedFieldState, len(c.opts.Fields)),
		Grids:  make(map[string]formrules.ComputedGridState, len(c.opts.Grids)),
	}
	for _, f := range c.opts.Fields {
		out.Fields[f.Name] = c.fieldState(f, states)
	}
	for _, g := range c.opts.Grids {
		out.Grids[g.Name] = c.gridState(g, states)
	}
	return out
}

// FieldState returns the final state of the named field. When no rule or
// legacy hidden expression decided whether the field is hidden, its
// visibility expression decides.
func (c *Controller) FieldState(name string) (formrules.ComputedFieldState, bool) {
	field, ok := c.fields[name]
	if !ok {
		return formrules.ComputedFieldState{}, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fieldState(field, c.computedStates(false)), true
}

// GridState returns the final state of the named grid, with the same
// visibility fallback as FieldState.
func (c *Controller) GridState(name string) (formrules.ComputedGridState, bool) {
	i := slices.IndexFunc(c.opts.Grids, func(g formrules.GridDefinition) bool { return g.Name == name })
	if i < 0 {
		return formrules.ComputedGridState{}, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gridState(c.opts.Grids[i], c.computedStates(false)), true
}

// c.mu must be held.
func (c *Controller) fieldState(field formrules.FieldDefinition, states *formrules.ComputedFormState) formrules.ComputedFieldState {
	st, ok := states.Field(field.Name)
	if !ok {
		st = formrules.ComputedFieldState{
			IsHidden:     field.Hidden,
			IsReadonly:   field.Readonly || c.opts.Readonly,
			AppliedRules: []string{},
		}
	}
	if st.HiddenSource == "" && field.VisibilityExpression != "" {
		st.IsHidden = !c.evaluator().WithValue(c.values[field.Name]).Visibility(field.VisibilityExpression)
	}
	return st
}

// c.mu must be held.
func (c *Controller) gridState(grid formrules.GridDefinition, states *formrules.ComputedFormState) formrules.ComputedGridState {
	st, ok := states.Grid(grid.Name)
	if !ok {
		st = formrules.ComputedGridState{
			ComputedFieldState: formrules.ComputedFieldState{IsReadonly: c.opts.Readonly, AppliedRules: []string{}},
			ColumnStates:       map[string]formrules.ComputedFieldState{},
		}
	}
	if st.HiddenSource == "" && grid.VisibilityExpression != "" {
		st.IsHidden = !c.evaluator().Visibility(grid.VisibilityExpression)
	}
	return st
}

// An Item is one visible field or grid in layout order.
type Item struct {
	Kind  Kind                       `json:"kind" yaml:"kind"`
	Field *formrules.FieldDefinition `json:"field,omitempty" yaml:"field,omitempty"`
	Grid  *formrules.GridDefinition  `json:"grid,omitempty" yaml:"grid,omitempty"`
	Row   int                        `json:"row" yaml:"row"`
	Col   int                        `json:"col" yaml:"col"`
}

// Name returns the name of the field or grid.
func (i Item) Name() string {
	if i.Field != nil {
		return i.Field.Name
	}
	if i.Grid != nil {
		return i.Grid.Name
	}
	return ""
}

// SortedItems returns the visible fields and grids ordered by layout row,
// then column. Items in the same cell keep definition order, fields
// before grids.
func (c *Controller) SortedItems() []Item {
	c.mu.Lock()
	defer c.mu.Unlock()
	states := c.computedStates(false)

	var items []Item
	for i := range c.opts.Fields {
		f := &c.opts.Fields[i]
		if c.fieldState(*f, states).IsHidden {
			continue
		}
		items = append(items, Item{Kind: KindField, Field: f, Row: f.GridRow, Col: f.GridColumn})
	}
	for i := range c.opts.Grids {
		g := &c.opts.Grids[i]
		if c.gridState(*g, states).IsHidden {
			continue
		}
		items = append(items, Item{Kind: KindGrid, Grid: g, Row: g.GridRow, Col: g.GridColumn})
	}
	slices.SortStableFunc(items, func(a, b Item) int {
		if a.Row != b.Row {
			return a.Row - b.Row
		}
		return a.Col - b.Col
	})
	return items
}

// Grids returns the grid contexts expressions currently see.
func (c *Controller) Grids() map[string]*expr.GridContext {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.evaluator().Grids()
}
