package form

import (
	"log/slog"
	"maps"
	"slices"
	"sync"

	"github.com/ezachrisen/formrules"
	"github.com/ezachrisen/formrules/expr"
	"github.com/ezachrisen/formrules/internal/log"
)

// Controller holds the state of one form edit. Its methods may be called
// from several goroutines, but the host normally drives it from one.
type Controller struct {
	opts   Options
	log    *slog.Logger
	fields map[string]formrules.FieldDefinition

	mu          sync.Mutex
	values      map[string]any
	errors      map[string]string
	selections  map[string][]expr.Row
	initialized bool
	dirty       bool

	// field names awaiting recomputation, in the order queued
	pending []string
}

// New returns a Controller for the form described by opts.
func New(opts Options) *Controller {
	c := &Controller{
		opts:       opts,
		log:        log.WithComponent(opts.Logger, "form"),
		fields:     make(map[string]formrules.FieldDefinition, len(opts.Fields)),
		values:     cloneValues(opts.InitialValues),
		errors:     map[string]string{},
		selections: map[string][]expr.Row{},
	}
	for _, f := range opts.Fields {
		c.fields[f.Name] = f
	}
	return c
}

func cloneValues(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return maps.Clone(m)
}

// Snapshot returns the current values. The map is never modified; later
// changes produce a new one.
func (c *Controller) Snapshot() map[string]any {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.values
}

// Value returns the current value of a field or grid.
func (c *Controller) Value(name string) any {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.values[name]
}

// Dirty reports whether any value changed since the controller was created
// or reset.
func (c *Controller) Dirty() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dirty
}

// Initialized reports whether Initialize has seeded the defaults.
func (c *Controller) Initialized() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.initialized
}

// Errors returns a copy of the field errors found by the last Validate,
// less those cleared by later changes.
func (c *Controller) Errors() map[string]string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return maps.Clone(c.errors)
}

// DependencyMap maps each referenced name to the fields and grids that
// depend on it. It is rebuilt from the definitions on every call.
func (c *Controller) DependencyMap() map[string][]Dependent {
	return BuildDependencyMap(c.opts.Fields, c.opts.Grids)
}

// HandleFieldChange stores value for the field. Unless the change is
// automated, every dependent field with a calculation expression is
// queued for recomputation.
func (c *Controller) HandleFieldChange(name string, value any, automated bool) {
	c.mu.Lock()
	snap, scheduled := c.set(name, value, automated)
	c.mu.Unlock()
	c.after(snap, scheduled)
}

// HandleGridChange stores the rows of a grid and queues the fields that
// depend on the grid, as a user edit does.
func (c *Controller) HandleGridChange(name string, rows []expr.Row) {
	c.mu.Lock()
	snap, scheduled := c.set(name, slices.Clone(rows), false)
	c.mu.Unlock()
	c.after(snap, scheduled)
}

// HandleGridSelectionChange records the selected rows of a grid, which
// expressions see as grids.<name>.selectedRows and selectedRow.
func (c *Controller) HandleGridSelectionChange(name string, rows []expr.Row) {
	c.mu.Lock()
	defer c.mu.Unlock()
	sel := maps.Clone(c.selections)
	sel[name] = slices.Clone(rows)
	c.selections = sel
}

// set replaces the snapshot with one holding value. It reports whether
// the pending queue went from empty to non-empty.
func (c *Controller) set(name string, value any, automated bool) (map[string]any, bool) {
	next := maps.Clone(c.values)
	next[name] = value
	c.values = next
	c.dirty = true
	if _, ok := c.errors[name]; ok {
		errs := maps.Clone(c.errors)
		delete(errs, name)
		c.errors = errs
	}
	if automated {
		return next, false
	}

	wasEmpty := len(c.pending) == 0
	for _, d := range BuildDependencyMap(c.opts.Fields, c.opts.Grids)[name] {
		if d.Kind != KindField || c.fields[d.Name].CalculationExpression == "" {
			continue
		}
		if !slices.Contains(c.pending, d.Name) {
			c.pending = append(c.pending, d.Name)
			c.log.Debug("recalculation queued", log.FieldKey, d.Name, "source", name)
		}
	}
	return next, wasEmpty && len(c.pending) > 0
}

// after runs the callbacks for a change, outside the lock.
func (c *Controller) after(snap map[string]any, scheduled bool) {
	if c.opts.OnValuesChange != nil && snap != nil {
		c.opts.OnValuesChange(snap)
	}
	if scheduled && c.opts.Schedule != nil {
		c.opts.Schedule(func() { c.Flush() })
	}
}

// Pending returns the fields awaiting recomputation.
func (c *Controller) Pending() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.pending)
}

// Flush recomputes every queued field against the values current at the
// time it runs, and returns how many fields changed.
func (c *Controller) Flush() int {
	c.mu.Lock()
	queue := c.pending
	c.pending = nil
	c.mu.Unlock()

	n := 0
	for _, name := range queue {
		if c.ExecuteFieldLogic(name) {
			n++
		}
	}
	return n
}

// ExecuteFieldLogic evaluates the field's calculation expression, with the
// field's current value bound to value, and stores the result as an
// automated change when it differs from the current value. It reports
// whether the value changed.
func (c *Controller) ExecuteFieldLogic(name string) bool {
	field, ok := c.fields[name]
	if !ok || field.CalculationExpression == "" {
		return false
	}

	c.mu.Lock()
	current := c.values[name]
	result, ok := c.evaluator().WithValue(current).Calculation(field.CalculationExpression)
	if !ok || expr.StrictEquals(current, result) {
		c.mu.Unlock()
		return false
	}
	c.log.Debug("calculated value changed", log.FieldKey, name, log.ExpressionKey, field.CalculationExpression)
	snap, _ := c.set(name, result, true)
	c.mu.Unlock()

	c.after(snap, false)
	return true
}

// Initialize fills empty fields with their default values, or false for
// checkboxes. It runs once, and not at all after the user has changed
// anything. Statically hidden fields are left alone.
func (c *Controller) Initialize() {
	c.mu.Lock()
	if c.initialized || c.dirty {
		c.mu.Unlock()
		return
	}
	next := maps.Clone(c.values)
	for _, f := range c.opts.Fields {
		if f.Hidden || !blank(next[f.Name]) {
			continue
		}
		switch {
		case hasDefault(f.DefaultValue):
			next[f.Name] = f.DefaultValue
		case f.Type == formrules.Checkbox:
			next[f.Name] = false
		}
	}
	c.values = next
	c.initialized = true
	c.mu.Unlock()

	c.after(next, false)
}

// Reset returns the controller to its initial values and forgets errors,
// selections, queued work and the gating flags.
func (c *Controller) Reset() {
	c.mu.Lock()
	c.values = cloneValues(c.opts.InitialValues)
	c.errors = map[string]string{}
	c.selections = map[string][]expr.Row{}
	c.pending = nil
	c.dirty = false
	c.initialized = false
	snap := c.values
	c.mu.Unlock()

	c.after(snap, false)
}

// Values returns the current values with each grid's data taken from its
// GridRef, when there is one.
func (c *Controller) Values(gridRefs map[string]GridRef) map[string]any {
	c.mu.Lock()
	out := maps.Clone(c.values)
	c.mu.Unlock()
	for _, g := range c.opts.Grids {
		if ref, ok := gridRefs[g.Name]; ok && ref != nil {
			out[g.Name] = ref.Data()
		}
	}
	return out
}

// context returns the evaluation context for the current snapshot.
// c.mu must be held.
func (c *Controller) context() expr.Context {
	return expr.Context{
		Form:    c.values,
		Process: c.opts.ProcessVariables,
		User:    c.opts.User,
	}
}

// evaluator returns an expression evaluator over the current snapshot,
// the grids and the task. c.mu must be held.
func (c *Controller) evaluator() *expr.Evaluator {
	grids := make(map[string]*expr.GridContext, len(c.opts.Grids))
	for _, g := range c.opts.Grids {
		grids[g.Name] = expr.NewGridContext(c.values[g.Name], c.selections[g.Name])
	}
	return expr.New(c.context(), expr.WithLogger(c.opts.Logger)).
		WithGrids(grids).
		WithTask(c.opts.Task)
}

// blank reports whether a field has no value yet.
func blank(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case string:
		return x == ""
	}
	return expr.IsUndefined(v)
}

// hasDefault reports whether a default value is set to something other
// than a zero value.
func hasDefault(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case string:
		return x != ""
	case bool:
		return x
	}
	if n, ok := expr.ToNumber(v); ok {
		return n != 0
	}
	return true
}
