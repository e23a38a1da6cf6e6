package cel_test

import (
	"testing"

	"github.com/ezachrisen/formrules"
	"github.com/ezachrisen/formrules/cel"
	ferrors "github.com/ezachrisen/formrules/errors"
	"github.com/ezachrisen/formrules/expr"
	"github.com/ezachrisen/formrules/internal/log"
	"github.com/matryer/is"
)

func makeContext() expr.Context {
	return expr.Context{
		Form: map[string]any{
			"amount":   1500,
			"rate":     0.25,
			"status":   "approved",
			"notes":    "",
			"tags":     []any{"urgent", "travel"},
			"lines":    []any{},
			"approved": true,
		},
		Process: map[string]any{"region": "eu"},
		User: expr.User{
			ID:       "u1",
			Username: "ann",
			Roles:    []string{"manager", "approver"},
			Groups:   []string{"finance"},
		},
	}
}

func TestBool(t *testing.T) {
	task := &expr.Task{ID: "t1", Name: "Approve", TaskDefinitionKey: "approve"}
	e, err := cel.New(makeContext(), task, cel.WithLogger(log.Discard()))
	if err != nil {
		t.Fatal(err)
	}

	cases := map[string]bool{
		`true`:                                    true,
		`form.amount > 1000`:                      true,
		`form.amount > 1000.5`:                    true,
		`form.rate < 1`:                           true,
		`form.status == "approved"`:               true,
		`${form.status == 'approved'}`:            true,
		`form.approved && process.region == "eu"`: true,
		`"urgent" in form.tags`:                   true,
		`hasRole("manager")`:                      true,
		`hasRole("admin")`:                        false,
		`hasGroup("finance")`:                     true,
		`hasAnyRole(["admin", "approver"])`:       true,
		`hasAnyGroup(["hr"])`:                     false,
		`isEmpty(form.notes)`:                     true,
		`isEmpty(form.lines)`:                     true,
		`isNotEmpty(form.tags)`:                   true,
		`user.username == "ann"`:                  true,
		`task.taskDefinitionKey == "approve"`:     true,
		`form.missing == 1`:                       false, // no such key
		`form.amount +`:                           false, // syntax error
		`form.amount`:                             false, // not boolean
	}

	for expression, want := range cases {
		t.Run(expression, func(t *testing.T) {
			is := is.New(t)
			is.Equal(e.Bool(expression), want)
		})
	}
}

func TestEvaluate(t *testing.T) {
	is := is.New(t)
	e, err := cel.New(makeContext(), nil, cel.WithLogger(log.Discard()))
	is.NoErr(err)

	v, err := e.Evaluate(`form.rate * 4.0`)
	is.NoErr(err)
	is.Equal(v, 1.0)

	v, err = e.Evaluate(`task.size()`)
	is.NoErr(err)
	is.Equal(v, int64(0))

	_, err = e.Evaluate(`form.nope`)
	is.True(err != nil)
	is.Equal(ferrors.Type(err), "expression")
}

func TestCompile(t *testing.T) {
	is := is.New(t)
	e, err := cel.New(expr.Context{}, nil)
	is.NoErr(err)

	is.NoErr(e.Compile(`form.amount > 10 && hasRole("x")`))
	is.True(e.Compile(`hasRole(1)`) != nil)
	is.True(e.Compile(`unknownFunc()`) != nil)
	is.True(e.Compile(``) != nil)
	is.True(e.Compile(`${}`) != nil)
}

// Evaluators built by one Compiler reuse its programs and still see their
// own context, including the user the role functions check.
func TestCompilerSharesPrograms(t *testing.T) {
	is := is.New(t)
	c, err := cel.NewCompiler(cel.WithLogger(log.Discard()))
	is.NoErr(err)
	factory := c.Factory(nil)

	manager := makeContext()
	clerk := makeContext()
	clerk.User = expr.User{ID: "u2", Roles: []string{"clerk"}, Groups: []string{"hr"}}
	clerk.Form = map[string]any{"amount": 10}

	conditions := []string{`hasRole("manager")`, `hasAnyGroup(["finance"])`, `form.amount > 1000`}
	for _, cond := range conditions {
		is.True(factory(manager).Bool(cond))
		is.True(!factory(clerk).Bool(cond))
	}
	is.Equal(c.CacheSize(), len(conditions))

	is.True(factory(clerk).Bool(`hasRole("clerk") && hasGroup("hr")`))
	is.Equal(c.CacheSize(), len(conditions)+1)
}

// The CEL evaluator can drive the state computer in place of the native
// expression language.
func TestStateComputer(t *testing.T) {
	is := is.New(t)
	ctx := makeContext()
	sc := formrules.NewStateComputer(cel.Factory(nil, cel.WithLogger(log.Discard()))(ctx), formrules.WithLogger(log.Discard()))

	state := sc.ComputeFormState(
		[]formrules.FieldDefinition{{Name: "notes", Hidden: true}, {Name: "amount"}},
		nil,
		[]formrules.ConditionRule{
			{ID: "show", Condition: `form.amount >= 1500`, Effect: formrules.Visible, Enabled: true,
				Target: formrules.Target{Type: formrules.TargetField, FieldNames: []string{"notes"}}},
			{ID: "lock", Condition: `!hasRole("controller")`, Effect: formrules.Readonly, Enabled: true,
				Target: formrules.Target{Type: formrules.TargetField, FieldNames: []string{"amount"}}},
		},
		nil,
	)
	is.True(!state.Fields["notes"].IsHidden)
	is.True(state.Fields["amount"].IsReadonly)
}
