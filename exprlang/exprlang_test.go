package exprlang_test

import (
	"sync"
	"testing"

	"github.com/ezachrisen/formrules"
	ferrors "github.com/ezachrisen/formrules/errors"
	"github.com/ezachrisen/formrules/expr"
	"github.com/ezachrisen/formrules/exprlang"
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
	c := exprlang.NewCompiler(exprlang.WithLogger(log.Discard()))
	e := c.Evaluator(makeContext(), task)

	cases := map[string]bool{
		`true`:                                    true,
		`form.amount > 1000`:                      true,
		`form.amount > 1000.5`:                    true,
		`form.rate < 1`:                           true,
		`form.status == "approved"`:               true,
		`form.status == 'approved'`:               true,
		`${form.status == 'approved'}`:            true,
		`form.approved && process.region == "eu"`: true,
		`"urgent" in form.tags`:                   true,
		`len(form.tags) == 2`:                     true,
		`hasRole("manager")`:                      true,
		`hasRole("admin")`:                        false,
		`!hasGroup("finance")`:                    false,
		`hasAnyRole(["admin", "approver"])`:       true,
		`hasAnyGroup(["hr"])`:                     false,
		`isEmpty(form.notes)`:                     true,
		`isEmpty(form.lines)`:                     true,
		`isEmpty(form.missing)`:                   true,
		`isNotEmpty(form.tags)`:                   true,
		`user.username == "ann"`:                  true,
		`task.taskDefinitionKey == "approve"`:     true,
		`form.missing == nil`:                     true,
		`form.amount == "1500"`:                   false, // no coercion
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
	e := exprlang.NewCompiler(exprlang.WithLogger(log.Discard())).Evaluator(makeContext(), nil)

	v, err := e.Evaluate(`form.rate * 4`)
	is.NoErr(err)
	is.Equal(v, 1.0)

	v, err = e.Evaluate(`task.taskDefinitionKey`)
	is.NoErr(err)
	is.Equal(v, nil) // no task

	_, err = e.Evaluate(`form.amount +`)
	is.True(err != nil)
	is.Equal(ferrors.Type(err), "expression")
}

func TestCompileCache(t *testing.T) {
	is := is.New(t)
	c := exprlang.NewCompiler(exprlang.WithLogger(log.Discard()))

	is.NoErr(c.Compile(`form.a == 1`))
	is.NoErr(c.Compile(`form.a == 1`))
	is.True(c.Compile(`form.a ==`) != nil)
	is.True(c.Compile(``) != nil)
	is.Equal(c.CacheSize(), 1)

	// the cache is shared by evaluators over different contexts
	ctx := makeContext()
	ctx.Form = map[string]any{"a": 1}
	is.True(c.Evaluator(ctx, nil).Bool(`form.a == 1`))
	ctx.Form = map[string]any{"a": 2}
	is.True(!c.Evaluator(ctx, nil).Bool(`form.a == 1`))
	is.Equal(c.CacheSize(), 1)
}

func TestConcurrentEvaluators(t *testing.T) {
	c := exprlang.NewCompiler(exprlang.WithLogger(log.Discard()))
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			e := c.Evaluator(expr.Context{Form: map[string]any{"n": n}}, nil)
			for j := 0; j < 50; j++ {
				if e.Bool(`form.n >= 0`) != true {
					t.Errorf("evaluator %d: condition failed", n)
					return
				}
			}
		}(i)
	}
	wg.Wait()
	is.New(t).Equal(c.CacheSize(), 1)
}

func TestStateComputer(t *testing.T) {
	is := is.New(t)
	c := exprlang.NewCompiler(exprlang.WithLogger(log.Discard()))
	eval := c.Factory(nil)(makeContext())

	rules := []formrules.ConditionRule{
		{
			ID: "hide-notes", Condition: `form.amount > 1000 && !hasRole("auditor")`,
			Effect: formrules.Hidden, Enabled: true,
			Target: formrules.Target{Type: formrules.TargetField, FieldNames: []string{"notes"}},
		},
		{
			ID: "lock-eu", Condition: `process.region in ["eu", "uk"]`,
			Effect: formrules.Readonly, Enabled: true,
			Target: formrules.Target{Type: formrules.TargetAll},
		},
	}
	fields := []formrules.FieldDefinition{{Name: "notes"}, {Name: "amount"}}

	sc := formrules.NewStateComputer(eval, formrules.WithLogger(log.Discard()))
	st := sc.ComputeFormState(fields, nil, rules, nil)

	is.True(st.Fields["notes"].IsHidden)
	is.True(st.Fields["notes"].IsReadonly)
	is.True(!st.Fields["amount"].IsHidden)
	is.True(st.Fields["amount"].IsReadonly)
}
