package formrules

import (
	"context"
	"log/slog"
	"slices"
	"time"

	"github.com/ezachrisen/formrules/internal/log"
	"github.com/ezachrisen/formrules/internal/metrics"
)

// StateComputer resolves the hidden and read-only state of fields, grids
// and grid columns from condition rules.
type StateComputer struct {
	// The Evaluator that decides rule conditions and legacy expressions
	evaluator Evaluator

	// Options used during every pass
	opts Options
}

// See the functional definitions below for the meaning.
type Options struct {
	FormReadonly       bool
	CollectDiagnostics bool
	Logger             *slog.Logger
}

type Option func(f *Options)

// Given an array of Option functions, apply their effect
// on the Options struct.
func applyOptions(o *Options, opts ...Option) {
	for _, opt := range opts {
		opt(o)
	}
}

// FormReadonly makes the whole form read-only. Fields and grids start out
// read-only, and editable rules restore them to read-only.
// Default: off
func FormReadonly(b bool) Option {
	return func(f *Options) {
		f.FormReadonly = b
	}
}

// CollectDiagnostics records every rule evaluation in
// ComputedFormState.Diagnostics.
// Default: off
func CollectDiagnostics(b bool) Option {
	return func(f *Options) {
		f.CollectDiagnostics = b
	}
}

// WithLogger sets the logger for warnings about unrecognized rules, and
// for per-rule tracing at log.LevelTrace.
// Default: slog.Default()
func WithLogger(l *slog.Logger) Option {
	return func(f *Options) {
		f.Logger = l
	}
}

// NewStateComputer returns a StateComputer that evaluates conditions with
// evaluator.
func NewStateComputer(evaluator Evaluator, opts ...Option) *StateComputer {
	c := StateComputer{evaluator: evaluator}
	applyOptions(&c.opts, opts...)
	c.opts.Logger = log.WithComponent(c.opts.Logger, "state")
	return &c
}

// ComputeFormState merges the global and task rules, drops disabled and
// unrecognized rules, sorts the rest and resolves every field and grid.
func (c *StateComputer) ComputeFormState(fields []FieldDefinition, grids []GridDefinition, globalRules, taskRules []ConditionRule) *ComputedFormState {
	start := time.Now()
	rules := c.PrepareRules(globalRules, taskRules)

	var d *Diagnostics
	if c.opts.CollectDiagnostics {
		d = &Diagnostics{Started: time.Now()}
	}

	state := &ComputedFormState{
		Fields:      make(map[string]ComputedFieldState, len(fields)),
		Grids:       make(map[string]ComputedGridState, len(grids)),
		Diagnostics: d,
	}
	for _, f := range fields {
		state.Fields[f.Name] = c.computeFieldState(f, rules, d)
	}
	for _, g := range grids {
		state.Grids[g.Name] = c.computeGridState(g, rules, d)
	}
	if d != nil {
		d.Elapsed = time.Since(d.Started)
	}
	metrics.RecordPass(time.Since(start))
	return state
}

// PrepareRules returns the enabled, recognized rules of both sets in
// application order. Rules with an unrecognized effect or target are
// logged and left out.
func (c *StateComputer) PrepareRules(globalRules, taskRules []ConditionRule) []ConditionRule {
	rules := make([]ConditionRule, 0, len(globalRules)+len(taskRules))
	for _, set := range [][]ConditionRule{globalRules, taskRules} {
		for _, r := range set {
			if !r.Enabled {
				continue
			}
			if !r.Effect.Valid() {
				c.opts.Logger.Warn("ignoring rule with unrecognized effect",
					log.RuleIDKey, r.ID, log.EffectKey, string(r.Effect))
				continue
			}
			if !r.Target.Type.Valid() {
				c.opts.Logger.Warn("ignoring rule with unrecognized target",
					log.RuleIDKey, r.ID, log.TargetKey, string(r.Target.Type))
				continue
			}
			rules = append(rules, r)
		}
	}
	SortRules(rules)
	return rules
}

// ComputeFieldState resolves one field. Rules are applied in the order
// given; pass them through PrepareRules or SortRules first.
func (c *StateComputer) ComputeFieldState(field FieldDefinition, rules []ConditionRule) ComputedFieldState {
	return c.computeFieldState(field, rules, nil)
}

// ComputeGridState resolves one grid and each of its columns.
func (c *StateComputer) ComputeGridState(grid GridDefinition, rules []ConditionRule) ComputedGridState {
	return c.computeGridState(grid, rules, nil)
}

// ComputeColumnState resolves one column of gridName. gridReadonly is the
// grid's resolved read-only flag, which the column starts from and which
// editable rules restore.
func (c *StateComputer) ComputeColumnState(gridName string, column GridColumn, rules []ConditionRule, gridReadonly bool) ComputedFieldState {
	return c.computeColumnState(gridName, column, rules, gridReadonly, nil)
}

func (c *StateComputer) computeFieldState(field FieldDefinition, rules []ConditionRule, d *Diagnostics) ComputedFieldState {
	res := newResolution(ScopeField, field.Name, field.Hidden, field.Readonly || c.opts.FormReadonly, c.opts.FormReadonly, d)

	if field.HiddenExpression != "" {
		matched := c.evaluator.Bool(field.HiddenExpression)
		res.legacy(LegacyHiddenRuleID, field.HiddenExpression, Hidden, matched)
	}
	if field.ReadonlyExpression != "" {
		matched := c.evaluator.Bool(field.ReadonlyExpression)
		res.legacy(LegacyReadonlyRuleID, field.ReadonlyExpression, Readonly, matched)
	}

	for _, r := range rules {
		ok, err := r.Target.matchesField(field.Name)
		c.apply(res, r, ok, err)
	}
	return res.state
}

func (c *StateComputer) computeGridState(grid GridDefinition, rules []ConditionRule, d *Diagnostics) ComputedGridState {
	res := newResolution(ScopeGrid, grid.Name, false, c.opts.FormReadonly, c.opts.FormReadonly, d)
	for _, r := range rules {
		ok, err := r.Target.matchesGrid(grid.Name)
		c.apply(res, r, ok, err)
	}

	gs := ComputedGridState{
		ComputedFieldState: res.state,
		ColumnStates:       make(map[string]ComputedFieldState, len(grid.Columns)),
	}
	for _, col := range grid.Columns {
		gs.ColumnStates[col.Name] = c.computeColumnState(grid.Name, col, rules, res.state.IsReadonly, d)
	}
	return gs
}

func (c *StateComputer) computeColumnState(gridName string, column GridColumn, rules []ConditionRule, gridReadonly bool, d *Diagnostics) ComputedFieldState {
	res := newResolution(ScopeColumn, gridName+"."+column.Name, false, gridReadonly, gridReadonly, d)
	for _, r := range rules {
		ok, err := r.Target.matchesColumn(gridName, column.Name)
		c.apply(res, r, ok, err)
	}
	return res.state
}

// apply evaluates r for the entity being resolved when its target matches.
func (c *StateComputer) apply(res *resolution, r ConditionRule, targeted bool, err error) {
	if err != nil {
		c.opts.Logger.Warn("rule target not matched", log.RuleIDKey, r.ID, log.ErrorKey, err.Error())
		return
	}
	if !targeted {
		return
	}
	if !r.Effect.Valid() {
		c.opts.Logger.Warn("ignoring rule with unrecognized effect",
			log.RuleIDKey, r.ID, log.EffectKey, string(r.Effect))
		return
	}
	matched := c.evaluator.Bool(r.Condition)
	metrics.RecordRuleEvaluation(string(r.Effect), matched)
	c.opts.Logger.Log(context.Background(), log.LevelTrace, "rule evaluated",
		log.RuleIDKey, r.ID, string(res.scope), res.entity, "matched", matched)
	res.rule(r, matched)
}

// axis is one of the two resolved flags, with its lock.
type axis struct {
	value  bool
	locked bool
}

// resolution accumulates the state of one entity during a pass.
type resolution struct {
	scope    Scope
	entity   string
	hidden   axis
	readonly axis

	// readonlyFallback is what an editable rule restores.
	readonlyFallback bool

	state ComputedFieldState
	diag  *Diagnostics
}

func newResolution(scope Scope, entity string, hidden, readonly, readonlyFallback bool, d *Diagnostics) *resolution {
	return &resolution{
		scope:            scope,
		entity:           entity,
		hidden:           axis{value: hidden},
		readonly:         axis{value: readonly},
		readonlyFallback: readonlyFallback,
		state: ComputedFieldState{
			IsHidden:     hidden,
			IsReadonly:   readonly,
			AppliedRules: []string{},
		},
		diag: d,
	}
}

// legacy applies a legacy hidden or readonly expression.
func (r *resolution) legacy(id, expression string, effect Effect, matched bool) {
	ev := Evaluation{Scope: r.scope, Entity: r.entity, RuleID: id, Condition: expression, Effect: effect, Matched: matched}
	if matched {
		ev.Changed = r.effect(id, effect)
		r.state.AppliedRules = append(r.state.AppliedRules, id)
	}
	r.diag.record(ev)
}

// rule applies a condition rule whose target covers the entity.
func (r *resolution) rule(rule ConditionRule, matched bool) {
	ev := Evaluation{Scope: r.scope, Entity: r.entity, RuleID: rule.ID, Condition: rule.Condition, Effect: rule.Effect, Matched: matched}
	if matched {
		ev.Changed = r.effect(rule.ID, rule.Effect)
		r.state.AppliedRules = append(r.state.AppliedRules, rule.ID)
	}
	r.diag.record(ev)
}

// effect applies one effect under the least-access-wins policy and reports
// whether the entity's state changed.
func (r *resolution) effect(id string, e Effect) bool {
	before := r.state
	switch e {
	case Hidden:
		if !r.hidden.locked {
			r.hidden = axis{value: true, locked: true}
			r.state.HiddenSource = id
		}
	case Readonly:
		if !r.readonly.locked {
			r.readonly = axis{value: true, locked: true}
			r.state.ReadonlySource = id
		}
	case Visible:
		if !r.hidden.locked {
			r.hidden.value = false
			r.state.HiddenSource = id
		}
	case Editable:
		if !r.readonly.locked {
			r.readonly.value = r.readonlyFallback
			r.state.ReadonlySource = id
		}
	}
	r.state.IsHidden = r.hidden.value
	r.state.IsReadonly = r.readonly.value
	return before.IsHidden != r.state.IsHidden || before.IsReadonly != r.state.IsReadonly
}

// RulesForField returns the rules whose target covers the named field, in
// the order given.
func RulesForField(rules []ConditionRule, field string) []ConditionRule {
	return slices.DeleteFunc(slices.Clone(rules), func(r ConditionRule) bool {
		ok, err := r.Target.matchesField(field)
		return err != nil || !ok
	})
}
