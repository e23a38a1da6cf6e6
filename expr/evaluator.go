package expr

import (
	"fmt"
	"log/slog"
	"maps"
	"regexp"
	"strconv"
	"strings"

	ferrors "github.com/ezachrisen/formrules/errors"
	"github.com/ezachrisen/formrules/internal/log"
	"github.com/ezachrisen/formrules/internal/metrics"
)

// maxDepth bounds how deeply sub-expressions may nest.
const maxDepth = 64

var (
	comparisonOps = []string{"===", "!==", "==", "!=", ">=", "<=", ">", "<"}

	inPattern       = regexp.MustCompile(`(?s)^(.+?)\s+in\s+\[(.*)\]$`)
	containsPattern = regexp.MustCompile(`(?s)^(.+?)\.contains\((.*)\)$`)
	builtinPattern  = regexp.MustCompile(`(?s)^(hasRole|hasGroup|hasAnyRole|hasAnyGroup|isEmpty|isNotEmpty)(\(.*\))$`)
	numberLiteral   = regexp.MustCompile(`^-?\d+(\.\d+)?$`)
)

// An Evaluator evaluates expressions against a fixed context. It is never
// modified after construction; the With methods return a new Evaluator.
// Evaluation is pure, so an Evaluator may be shared between goroutines.
type Evaluator struct {
	ctx  Context
	user map[string]any

	grids    map[string]*GridContext
	task     *Task
	value    any
	hasValue bool

	log *slog.Logger
}

// Option configures an Evaluator.
type Option func(*Evaluator)

// WithLogger sets the logger that receives expression faults.
func WithLogger(l *slog.Logger) Option {
	return func(e *Evaluator) {
		e.log = l
	}
}

// New returns an Evaluator for ctx.
func New(ctx Context, opts ...Option) *Evaluator {
	e := &Evaluator{
		ctx:  ctx,
		user: ctx.User.Map(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.log = log.WithComponent(e.log, "expr")
	return e
}

// Context returns the context the Evaluator was built with.
func (e *Evaluator) Context() Context {
	return e.ctx
}

// Grids returns the grid contexts bound to the Evaluator.
func (e *Evaluator) Grids() map[string]*GridContext {
	return e.grids
}

// WithGrids returns an Evaluator that additionally resolves grids.<name>.
func (e *Evaluator) WithGrids(grids map[string]*GridContext) *Evaluator {
	c := *e
	c.grids = maps.Clone(grids)
	if c.grids == nil {
		c.grids = map[string]*GridContext{}
	}
	return &c
}

// WithTask returns an Evaluator that additionally resolves task.<attr>.
func (e *Evaluator) WithTask(t *Task) *Evaluator {
	c := *e
	c.task = t
	return &c
}

// WithValue returns an Evaluator in which the identifier value refers to v.
func (e *Evaluator) WithValue(v any) *Evaluator {
	c := *e
	c.value = v
	c.hasValue = true
	return &c
}

// Evaluate evaluates expression and returns a bool, string, float64, nil,
// or a list or object read from the context. An identifier that does not
// resolve, an empty expression, and a faulty expression all yield nil.
func (e *Evaluator) Evaluate(expression string) any {
	v, err := e.eval(expression)
	if err != nil {
		e.fault(expression, err)
		return nil
	}
	if IsUndefined(v) {
		return nil
	}
	return v
}

// Bool evaluates expression and coerces the result with ToBool. A faulty
// expression is false.
func (e *Evaluator) Bool(expression string) bool {
	v, err := e.eval(expression)
	if err != nil {
		e.fault(expression, err)
		return false
	}
	return ToBool(v)
}

// Visibility evaluates a visibility expression. Empty and faulty
// expressions are visible.
func (e *Evaluator) Visibility(expression string) bool {
	s := stripStatement(expression)
	if s == "" {
		return true
	}
	v, err := e.eval(s)
	if err != nil {
		e.fault(expression, err)
		return true
	}
	return ToBool(v)
}

// Validation evaluates a validation expression. A non-empty string result
// is an error message. Empty and faulty expressions are valid.
func (e *Evaluator) Validation(expression string) (valid bool, message string) {
	s := stripStatement(expression)
	if s == "" {
		return true, ""
	}
	v, err := e.eval(s)
	if err != nil {
		e.fault(expression, err)
		return true, ""
	}
	if msg, ok := v.(string); ok && msg != "" {
		return false, msg
	}
	return ToBool(v), ""
}

func (e *Evaluator) fault(expression string, err error) {
	metrics.RecordExpressionFault()
	e.log.Warn("expression evaluation failed",
		log.ExpressionKey, expression,
		log.ErrorKey, err.Error())
}

// guard converts a panic during evaluation into an error.
func guard(expression string, err *error) {
	if r := recover(); r != nil {
		*err = &ferrors.ExpressionError{
			Expression: expression,
			Reason:     "internal evaluation failure",
			Cause:      fmt.Errorf("%v", r),
		}
	}
}

func (e *Evaluator) eval(expression string) (v any, err error) {
	defer guard(expression, &err)
	s := Unwrap(expression)
	if s == "" {
		return nil, nil
	}
	if err := checkBalanced(s); err != nil {
		return nil, &ferrors.ExpressionError{Expression: expression, Reason: err.Error()}
	}
	v, err = e.expr(s, 0)
	if err != nil {
		if _, ok := err.(*ferrors.ExpressionError); !ok {
			err = &ferrors.ExpressionError{Expression: expression, Reason: err.Error()}
		}
	}
	return v, err
}

func operandError(op string) error {
	return fmt.Errorf("missing operand for %s", op)
}

func (e *Evaluator) expr(s string, depth int) (any, error) {
	if depth > maxDepth {
		return nil, fmt.Errorf("nesting deeper than %d", maxDepth)
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("empty expression")
	}

	for _, op := range []string{"||", "&&"} {
		parts := split(s, op)
		if len(parts) == 1 {
			continue
		}
		for _, p := range parts {
			if strings.TrimSpace(p) == "" {
				return nil, operandError(op)
			}
		}
		// || is true when any part is true, && only when all are.
		want := op == "||"
		for _, p := range parts {
			v, err := e.expr(p, depth+1)
			if err != nil {
				return nil, err
			}
			if ToBool(v) == want {
				return want, nil
			}
		}
		return !want, nil
	}

	if strings.HasPrefix(s, "!") && !strings.HasPrefix(s, "!=") {
		inner := strings.TrimSpace(s[1:])
		if inner == "" {
			return nil, operandError("!")
		}
		if enclosed(inner) {
			inner = inner[1 : len(inner)-1]
		}
		v, err := e.expr(inner, depth+1)
		if err != nil {
			return nil, err
		}
		return !ToBool(v), nil
	}

	if enclosed(s) {
		return e.expr(s[1:len(s)-1], depth+1)
	}

	for _, op := range comparisonOps {
		parts := split(s, op)
		if len(parts) != 2 {
			continue
		}
		l, r := strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1])
		if l == "" || r == "" {
			return nil, operandError(op)
		}
		return compare(e.resolve(l), e.resolve(r), op), nil
	}

	if m := inPattern.FindStringSubmatch(s); m != nil {
		v, err := e.expr(m[1], depth+1)
		if err != nil {
			return nil, err
		}
		for _, item := range e.list(m[2]) {
			if LooseEquals(v, item) {
				return true, nil
			}
		}
		return false, nil
	}

	if m := containsPattern.FindStringSubmatch(s); m != nil && enclosed(s[len(m[1])+len(".contains"):]) {
		if strings.TrimSpace(m[2]) == "" {
			return nil, fmt.Errorf("contains needs an argument")
		}
		search, err := e.expr(m[2], depth+1)
		if err != nil {
			return nil, err
		}
		items, ok := elements(e.resolve(m[1]))
		if !ok {
			return false, nil
		}
		for _, item := range items {
			if LooseEquals(item, search) {
				return true, nil
			}
		}
		return false, nil
	}

	if m := builtinPattern.FindStringSubmatch(s); m != nil && enclosed(m[2]) {
		return e.builtin(m[1], strings.TrimSpace(m[2][1:len(m[2])-1]))
	}

	return e.resolve(s), nil
}

func (e *Evaluator) builtin(name, arg string) (any, error) {
	if arg == "" {
		return nil, fmt.Errorf("%s needs an argument", name)
	}
	switch name {
	case "hasRole":
		role, _ := unquote(arg)
		return e.ctx.User.HasRole(role), nil
	case "hasGroup":
		group, _ := unquote(arg)
		return e.ctx.User.HasGroup(group), nil
	case "hasAnyRole", "hasAnyGroup":
		if strings.HasPrefix(arg, "[") && strings.HasSuffix(arg, "]") {
			arg = arg[1 : len(arg)-1]
		}
		check := e.ctx.User.HasRole
		if name == "hasAnyGroup" {
			check = e.ctx.User.HasGroup
		}
		for _, v := range e.list(arg) {
			if check(ToString(v)) {
				return true, nil
			}
		}
		return false, nil
	case "isEmpty":
		return IsEmpty(e.resolve(arg)), nil
	case "isNotEmpty":
		return !IsEmpty(e.resolve(arg)), nil
	}
	return nil, fmt.Errorf("unknown function %s", name)
}

// list resolves the comma-separated items of an array literal body.
func (e *Evaluator) list(body string) []any {
	var out []any
	for _, item := range split(body, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		out = append(out, e.resolve(item))
	}
	return out
}

func compare(l, r any, op string) bool {
	switch op {
	case "===":
		return strictEquals(l, r)
	case "!==":
		return !strictEquals(l, r)
	case "==":
		return LooseEquals(l, r)
	case "!=":
		return !LooseEquals(l, r)
	case ">":
		return relational(l) > relational(r)
	case "<":
		return relational(l) < relational(r)
	case ">=":
		return relational(l) >= relational(r)
	case "<=":
		return relational(l) <= relational(r)
	}
	return false
}

// resolve reads a literal or an identifier.
func (e *Evaluator) resolve(s string) any {
	s = strings.TrimSpace(s)
	if str, ok := unquote(s); ok {
		return str
	}
	if numberLiteral.MatchString(s) {
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f
		}
	}
	switch s {
	case "true":
		return true
	case "false":
		return false
	case "null":
		return nil
	}
	return e.variable(s)
}

// variable resolves a dotted identifier path.
func (e *Evaluator) variable(path string) any {
	parts := strings.Split(path, ".")
	rest := parts[1:]
	switch parts[0] {
	case "form":
		return walkMap(e.ctx.Form, rest)
	case "process":
		return walkMap(e.ctx.Process, rest)
	case "user":
		return walkMap(e.user, rest)
	case "grids":
		if e.grids != nil {
			return e.grid(rest)
		}
	case "task":
		if e.task != nil {
			return walkMap(e.task.asMap(), rest)
		}
	case "value":
		if e.hasValue {
			return walk(e.value, rest)
		}
	}
	v := walkMap(e.ctx.Form, parts)
	if IsUndefined(v) {
		v = walkMap(e.ctx.Process, parts)
	}
	return v
}

func (e *Evaluator) grid(parts []string) any {
	if len(parts) == 0 {
		all := make(map[string]any, len(e.grids))
		for name, g := range e.grids {
			all[name] = g.asMap()
		}
		return all
	}
	g, ok := e.grids[parts[0]]
	if !ok || g == nil {
		return Undefined
	}
	return walk(g.asMap(), parts[1:])
}

func walkMap(m map[string]any, parts []string) any {
	if m == nil {
		return Undefined
	}
	return walk(m, parts)
}

func walk(root any, parts []string) any {
	cur := root
	for _, p := range parts {
		if isNullish(cur) {
			return Undefined
		}
		cur = member(cur, p)
	}
	return cur
}
