package form

import (
	"testing"

	"github.com/ezachrisen/formrules"
	"github.com/ezachrisen/formrules/expr"
	"github.com/ezachrisen/formrules/internal/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func hideRule(id, condition string, fields ...string) formrules.ConditionRule {
	return formrules.ConditionRule{
		ID:        id,
		Condition: condition,
		Effect:    formrules.Hidden,
		Target:    formrules.Target{Type: formrules.TargetField, FieldNames: fields},
		Enabled:   true,
	}
}

func TestFieldState_VisibilityFallback(t *testing.T) {
	tests := []struct {
		name   string
		amount any
		rules  []formrules.ConditionRule
		hidden bool
	}{
		{name: "expression false hides", amount: 50, hidden: true},
		{name: "expression true shows", amount: 150, hidden: false},
		{
			name:   "rule decides, expression ignored",
			amount: 50,
			rules: []formrules.ConditionRule{{
				ID: "show-notes", Condition: "true", Effect: formrules.Visible, Enabled: true,
				Target: formrules.Target{Type: formrules.TargetField, FieldNames: []string{"notes"}},
			}},
			hidden: false,
		},
		{
			name:   "rule that did not match leaves fallback",
			amount: 50,
			rules:  []formrules.ConditionRule{hideRule("never", "false", "notes")},
			hidden: true,
		},
		{
			name:   "readonly rule does not decide visibility",
			amount: 150,
			rules: []formrules.ConditionRule{{
				ID: "lock", Condition: "true", Effect: formrules.Readonly, Enabled: true,
				Target: formrules.Target{Type: formrules.TargetAll},
			}},
			hidden: false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := New(Options{
				Fields: []formrules.FieldDefinition{
					{Name: "amount", Type: formrules.Number},
					{Name: "notes", VisibilityExpression: "form.amount > 100"},
				},
				InitialValues:  map[string]any{"amount": tt.amount},
				ConditionRules: tt.rules,
				Logger:         log.Discard(),
			})
			st, ok := c.FieldState("notes")
			require.True(t, ok)
			assert.Equal(t, tt.hidden, st.IsHidden)
		})
	}
}

func TestFieldState_Unknown(t *testing.T) {
	c := New(Options{Logger: log.Discard()})
	_, ok := c.FieldState("nope")
	assert.False(t, ok)
	_, ok = c.GridState("nope")
	assert.False(t, ok)
}

func TestFieldState_FaultingVisibilityIsVisible(t *testing.T) {
	c := New(Options{
		Fields: []formrules.FieldDefinition{{Name: "f", Hidden: true, VisibilityExpression: "form.a ==="}},
		Logger: log.Discard(),
	})
	st, _ := c.FieldState("f")
	assert.False(t, st.IsHidden)
}

func TestGridState(t *testing.T) {
	opts := Options{
		Grids: []formrules.GridDefinition{
			{Name: "lines", VisibilityExpression: "form.kind == 'itemized'", Columns: []formrules.GridColumn{{Name: "cost"}}},
		},
		Readonly: true,
		Logger:   log.Discard(),
	}

	opts.InitialValues = map[string]any{"kind": "lump"}
	st, ok := New(opts).GridState("lines")
	require.True(t, ok)
	assert.True(t, st.IsHidden)
	assert.True(t, st.IsReadonly)
	assert.True(t, st.ColumnStates["cost"].IsReadonly)

	opts.InitialValues = map[string]any{"kind": "ITEMIZED"}
	st, _ = New(opts).GridState("lines")
	assert.False(t, st.IsHidden)
}

func TestComputedStates_RuleSource(t *testing.T) {
	vault, err := formrules.NewRuleVault(nil, map[string][]formrules.ConditionRule{
		"approve": {hideRule("hide-comment", "user.username == 'ann'", "comment")},
	})
	require.NoError(t, err)

	opts := Options{
		Fields:     []formrules.FieldDefinition{{Name: "comment"}},
		RuleSource: vault,
		TaskKey:    "approve",
		User:       expr.User{ID: "1", Username: "ann"},
		Logger:     log.Discard(),
	}
	c := New(opts)
	assert.True(t, c.ComputedStates().Fields["comment"].IsHidden)

	require.NoError(t, vault.Mutate(formrules.Delete("hide-comment")))
	assert.False(t, c.ComputedStates().Fields["comment"].IsHidden, "rules are read on every computation")

	opts.TaskKey = "review"
	require.NoError(t, vault.Mutate(formrules.Add(hideRule("hide-comment", "true", "comment"), "approve")))
	assert.False(t, New(opts).ComputedStates().Fields["comment"].IsHidden)
}

func TestComputedStates_ConditionEvaluator(t *testing.T) {
	var seen expr.Context
	c := New(Options{
		Fields:           []formrules.FieldDefinition{{Name: "f"}},
		InitialValues:    map[string]any{"x": 1},
		ProcessVariables: map[string]any{"region": "eu"},
		ConditionRules:   []formrules.ConditionRule{hideRule("r", "anything", "f")},
		ConditionEvaluator: func(ctx expr.Context) formrules.Evaluator {
			seen = ctx
			return formrules.EvaluatorFunc(func(string) bool { return true })
		},
		Logger: log.Discard(),
	})
	assert.True(t, c.ComputedStates().Fields["f"].IsHidden)
	assert.Equal(t, 1, seen.Form["x"])
	assert.Equal(t, "eu", seen.Process["region"])
}

func TestDiagnose(t *testing.T) {
	c := New(Options{
		Fields:         []formrules.FieldDefinition{{Name: "f"}},
		ConditionRules: []formrules.ConditionRule{hideRule("r", "true", "f")},
		Logger:         log.Discard(),
	})
	assert.Nil(t, c.ComputedStates().Diagnostics)
	d := c.Diagnose().Diagnostics
	require.NotNil(t, d)
	assert.Len(t, d.For(formrules.ScopeField, "f"), 1)
}

func TestSortedItems(t *testing.T) {
	c := New(Options{
		Fields: []formrules.FieldDefinition{
			{Name: "c", GridRow: 2, GridColumn: 1},
			{Name: "a", GridRow: 1, GridColumn: 2},
			{Name: "hidden", GridRow: 0, GridColumn: 0, Hidden: true},
			{Name: "b", GridRow: 1, GridColumn: 1},
			{Name: "tied", GridRow: 2, GridColumn: 1},
		},
		Grids: []formrules.GridDefinition{
			{Name: "g", GridRow: 1, GridColumn: 2},
			{Name: "gone", GridRow: 0, VisibilityExpression: "false"},
		},
		Logger: log.Discard(),
	})

	var names []string
	for _, it := range c.SortedItems() {
		names = append(names, it.Name())
	}
	assert.Equal(t, []string{"b", "a", "g", "c", "tied"}, names)
}

func TestStates(t *testing.T) {
	c := New(Options{
		Fields: []formrules.FieldDefinition{
			{Name: "a", VisibilityExpression: "false"},
			{Name: "b", Readonly: true},
		},
		Grids:  []formrules.GridDefinition{{Name: "g", VisibilityExpression: "form.b == 'x'"}},
		Logger: log.Discard(),
	})
	st := c.States()
	assert.True(t, st.Fields["a"].IsHidden)
	assert.False(t, c.ComputedStates().Fields["a"].IsHidden, "raw states have no fallback")
	assert.True(t, st.Fields["b"].IsReadonly)
	assert.True(t, st.Grids["g"].IsHidden)
}
