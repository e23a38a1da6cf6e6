package expr_test

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"

	"github.com/matryer/is"

	"github.com/ezachrisen/formrules/expr"
)

func testContext() expr.Context {
	return expr.Context{
		Form: map[string]any{
			"amount":   1000,
			"status":   "Approved",
			"tags":     []string{"a", "b"},
			"empty":    "",
			"name":     "bob",
			"zero":     0,
			"flag":     false,
			"items":    []any{},
			"price":    "12.5",
			"quantity": 4,
			"nested":   map[string]any{"inner": map[string]any{"x": "deep"}},
		},
		Process: map[string]any{
			"region":    "EU",
			"initiator": "admin",
			"rate":      0.25,
		},
		User: expr.User{
			ID:       "u1",
			Username: "alice",
			Roles:    []string{"manager", "clerk"},
			Groups:   []string{"finance"},
		},
	}
}

func TestEvaluate(t *testing.T) {
	cases := map[string]struct {
		expr string
		want any
	}{
		"loose numeric coercion":    {`amount == "1000"`, true},
		"wrapper":                   {`${amount > 500}`, true},
		"case insensitive equality": {`status == "approved"`, true},
		"strict string vs number":   {`amount === "1000"`, false},
		"strict number":             {`amount === 1000`, true},
		"strict not equal":          {`status !== "Approved"`, false},
		"loose not equal":           {`amount != 1000`, false},
		"process fallback":          {`region == "EU"`, true},
		"process prefix":            {`process.initiator == 'admin'`, true},
		"user prefix":               {`user.username == "alice"`, true},
		"nested path":               {`form.nested.inner.x == 'deep'`, true},
		"and":                       {`amount > 500 && status == "approved"`, true},
		"or":                        {`amount < 10 || region == "EU"`, true},
		"not":                       {`!flag`, true},
		"not parenthesized":         {`!(amount > 500)`, false},
		"parenthesized operands":    {`(amount > 500) && (region == "EU")`, true},
		"grouping":                  {`(amount > 5000 || region == "EU") && name == 'bob'`, true},
		"in":                        {`status in ["Rejected", "approved"]`, true},
		"in miss":                   {`region in ['US', 'APAC']`, false},
		"contains":                  {`tags.contains('b')`, true},
		"contains miss":             {`tags.contains("z")`, false},
		"contains on string":        {`name.contains('b')`, false},
		"hasRole":                   {`hasRole('manager')`, true},
		"hasGroup":                  {`hasGroup("hr")`, false},
		"hasAnyRole":                {`hasAnyRole(['admin', 'clerk'])`, true},
		"hasAnyGroup":               {`hasAnyGroup(['hr'])`, false},
		"isEmpty string":            {`isEmpty(empty)`, true},
		"isEmpty list":              {`isEmpty(items)`, true},
		"isEmpty missing":           {`isEmpty(missing)`, true},
		"isNotEmpty":                {`isNotEmpty(name)`, true},
		"string literal":            {`'hello'`, "hello"},
		"number literal":            {`42`, 42.0},
		"null literal":              {`null`, nil},
		"unknown identifier":        {`nosuch`, nil},
		"identifier value":          {`name`, "bob"},
		"relational string prefix":  {`"12abc" > 11`, true},
		"zero is falsy":             {`zero && true`, false},
		"false string is falsy":     {`"FALSE" || false`, false},
		"list length":               {`tags.length == 2`, true},
		"null loosely equals undef": {`missing == null`, true},
		"null strictly differs":     {`missing === null`, false},
		"greater or equal":          {`amount >= 1000`, true},
		"operator inside string":    {`name == "a || b"`, false},
		"empty expression":          {``, nil},
	}

	e := expr.New(testContext())
	for name, c := range cases {
		t.Run(name, func(t *testing.T) {
			is := is.New(t)
			is.Equal(e.Evaluate(c.expr), c.want)
		})
	}
}

func TestEvaluateIsPure(t *testing.T) {
	is := is.New(t)
	e := expr.New(testContext())
	for _, s := range []string{`amount == "1000"`, `hasAnyRole(['clerk'])`, `tags.contains('a') && !flag`} {
		first := e.Evaluate(s)
		for i := 0; i < 5; i++ {
			is.Equal(e.Evaluate(s), first)
		}
	}
}

func TestFaultsDegradeToDefaults(t *testing.T) {
	faulty := []string{
		`a &&`,
		`&& ||`,
		`(amount > 1`,
		`name == 'abc`,
		`amount == `,
		`hasRole()`,
		`!`,
		`amount > 1)`,
	}

	for _, s := range faulty {
		t.Run(s, func(t *testing.T) {
			is := is.New(t)
			var buf bytes.Buffer
			logger := slog.New(slog.NewTextHandler(&buf, nil))
			e := expr.New(testContext(), expr.WithLogger(logger))

			is.Equal(e.Evaluate(s), nil)
			is.True(!e.Bool(s))
			is.True(e.Visibility(s))
			valid, msg := e.Validation(s)
			is.True(valid)
			is.Equal(msg, "")
			_, ok := e.Calculation(s)
			is.True(!ok)
			is.True(strings.Contains(buf.String(), "expression evaluation failed"))
		})
	}
}

func TestDeepNestingIsAFault(t *testing.T) {
	is := is.New(t)
	s := strings.Repeat("!", 100) + "true"
	e := expr.New(testContext(), expr.WithLogger(slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))))
	is.Equal(e.Evaluate(s), nil)
	is.True(e.Visibility(s))
}

func TestArithmetic(t *testing.T) {
	ctx := testContext()
	ctx.Form["a"] = 10
	ctx.Form["b"] = 3
	ctx.Form["c"] = "2"
	e := expr.New(ctx, expr.WithLogger(slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))))

	cases := map[string]float64{
		"price * quantity":       50,
		"(a + b) * 2":            26,
		"a - b - c":              5,
		"2 + 3 * 4":              14,
		"a / 0":                  0,
		"a % 0":                  0,
		"a % 4":                  2,
		"-a + 3":                 -7,
		"a - -b":                 13,
		"missing + 1":            1,
		"name + 1":               1,
		"form.price * 2":         25,
		"process.rate * 100":     25,
		"${a * b}":               30,
		"a +":                    0,
		"max(a)":                 0,
		"(1 + 2":                 0,
		"a ^ 2":                  0,
		"true + 1":               1,
		"quantity / 8":           0.5,
		"nested.inner.x + a * 2": 20,
	}
	for s, want := range cases {
		t.Run(s, func(t *testing.T) {
			is := is.New(t)
			is.Equal(e.Arithmetic(s), want)
		})
	}
}

func TestIsArithmetic(t *testing.T) {
	is := is.New(t)
	is.True(expr.IsArithmetic("price * quantity"))
	is.True(expr.IsArithmetic("(a + b) / 2"))
	is.True(!expr.IsArithmetic("amount"))
	is.True(!expr.IsArithmetic("a + b > 2"))
	is.True(!expr.IsArithmetic("grids.items.sum('total') + 1"))
}

func gridEvaluator(t *testing.T) *expr.Evaluator {
	t.Helper()
	ctx := testContext()
	grids := map[string]*expr.GridContext{
		"items": expr.NewGridContext(
			`[{"total": 10}, {"total": "5.5"}, {"total": "x"}, {}]`,
			[]expr.Row{{"total": 10, "sku": "A1"}},
		),
	}
	return expr.New(ctx).
		WithGrids(grids).
		WithTask(&expr.Task{ID: "t1", Name: "Approve", TaskDefinitionKey: "approve"})
}

func TestGridFunction(t *testing.T) {
	is := is.New(t)
	e := gridEvaluator(t)

	v, ok := e.GridFunction("grids.items.sum('total')")
	is.True(ok)
	is.Equal(v, 15.5)

	v, ok = e.GridFunction(`grids.items.sum("total")`)
	is.True(ok)
	is.Equal(v, 15.5)

	v, ok = e.GridFunction("grids.items.rows.length")
	is.True(ok)
	is.Equal(v, 4.0)

	v, ok = e.GridFunction("grids.unknown.sum('total')")
	is.True(ok)
	is.Equal(v, 0.0)

	_, ok = e.GridFunction("grids.items.avg('total')")
	is.True(!ok)

	_, ok = e.GridFunction("amount + 1")
	is.True(!ok)
}

func TestCalculation(t *testing.T) {
	e := gridEvaluator(t).WithValue(41)

	cases := map[string]struct {
		expr string
		want any
		ok   bool
	}{
		"grid sum with return":   {"return grids.items.sum('total');", 15.5, true},
		"grid count":             {"grids.items.rows.length", 4.0, true},
		"arithmetic":             {"price * quantity", 50.0, true},
		"value binding":          {"value + 1", 42.0, true},
		"boolean":                {"status == 'Approved'", true, true},
		"string":                 {"'fixed'", "fixed", true},
		"null is an update":      {"null", nil, true},
		"empty":                  {"", nil, false},
		"undefined is no update": {"nosuch", nil, false},
	}
	for name, c := range cases {
		t.Run(name, func(t *testing.T) {
			is := is.New(t)
			v, ok := e.Calculation(c.expr)
			is.Equal(ok, c.ok)
			is.Equal(v, c.want)
		})
	}
}

func TestVisibilityAndValidation(t *testing.T) {
	is := is.New(t)
	e := expr.New(testContext())

	is.True(e.Visibility("return amount > 500;"))
	is.True(e.Visibility(""))
	is.True(!e.Visibility("amount > 5000"))

	valid, msg := e.Validation("'Amount is too large'")
	is.True(!valid)
	is.Equal(msg, "Amount is too large")

	valid, msg = e.Validation("amount < 5000")
	is.True(valid)
	is.Equal(msg, "")

	valid, _ = e.Validation("amount > 5000")
	is.True(!valid)

	valid, _ = e.Validation("   ")
	is.True(valid)
}

func TestExtendedIdentifiers(t *testing.T) {
	is := is.New(t)
	e := gridEvaluator(t).WithValue("x")

	is.Equal(e.Evaluate("task.taskDefinitionKey == 'approve'"), true)
	is.Equal(e.Evaluate("grids.items.selectedRow.sku"), "A1")
	is.Equal(e.Evaluate("grids.items.rows.length > 2"), true)
	is.Equal(e.Evaluate("grids.items.selectedRows.length"), 1.0)
	is.Equal(e.Evaluate("value == 'X'"), true)

	plain := expr.New(testContext())
	is.Equal(plain.Evaluate("task.name"), nil)
	is.Equal(plain.Evaluate("value"), nil)
}

func TestWithMethodsDoNotModifyReceiver(t *testing.T) {
	is := is.New(t)
	base := expr.New(testContext())
	derived := base.WithValue(5)

	is.Equal(derived.Evaluate("value"), 5)
	is.Equal(base.Evaluate("value"), nil)
}
