package cel

import (
	"fmt"
	"log/slog"
	"sync"

	celgo "github.com/google/cel-go/cel"

	"github.com/ezachrisen/formrules"
	ferrors "github.com/ezachrisen/formrules/errors"
	"github.com/ezachrisen/formrules/expr"
	"github.com/ezachrisen/formrules/internal/log"
	"github.com/ezachrisen/formrules/internal/metrics"
)

// Compiler holds the CEL environment and caches compiled programs by
// expression text. The environment does not depend on any form context,
// so one Compiler serves every Evaluator it creates.
type Compiler struct {
	env *celgo.Env
	log *slog.Logger

	mu       sync.RWMutex
	programs map[string]celgo.Program
}

// Option configures a Compiler.
type Option func(c *Compiler)

// WithLogger sets the logger that receives evaluation errors.
// Default: slog.Default()
func WithLogger(l *slog.Logger) Option {
	return func(c *Compiler) {
		c.log = l
	}
}

// NewCompiler builds the CEL environment with the form, process, user and
// task variables and the role, group and emptiness functions.
func NewCompiler(opts ...Option) (*Compiler, error) {
	c := &Compiler{
		programs: map[string]celgo.Program{},
	}
	for _, opt := range opts {
		opt(c)
	}
	c.log = log.WithComponent(c.log, "cel")

	envOpts := []celgo.EnvOption{
		celgo.Variable("form", celgo.MapType(celgo.StringType, celgo.DynType)),
		celgo.Variable("process", celgo.MapType(celgo.StringType, celgo.DynType)),
		celgo.Variable("user", celgo.MapType(celgo.StringType, celgo.DynType)),
		celgo.Variable("task", celgo.MapType(celgo.StringType, celgo.DynType)),
		celgo.CrossTypeNumericComparisons(true),
		celgo.Macros(userMacros()...),
	}
	envOpts = append(envOpts, userFunctions()...)
	envOpts = append(envOpts, emptinessFunctions()...)

	env, err := celgo.NewEnv(envOpts...)
	if err != nil {
		return nil, fmt.Errorf("creating CEL environment: %w", err)
	}
	c.env = env
	return c, nil
}

// Compile parses and type-checks expression, caching the program. It
// returns an *errors.ExpressionError describing the first problem.
func (c *Compiler) Compile(expression string) error {
	_, err := c.program(expression)
	return err
}

// CacheSize returns the number of cached programs.
func (c *Compiler) CacheSize() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.programs)
}

// Evaluator returns an Evaluator for ctx that shares the Compiler's
// programs. task may be nil.
func (c *Compiler) Evaluator(ctx expr.Context, task *expr.Task) *Evaluator {
	taskVars := map[string]any{}
	if task != nil {
		taskVars = map[string]any{
			"id":                task.ID,
			"name":              task.Name,
			"taskDefinitionKey": task.TaskDefinitionKey,
			"assignee":          task.Assignee,
		}
	}
	return &Evaluator{
		c: c,
		activation: map[string]any{
			"form":    orEmpty(ctx.Form),
			"process": orEmpty(ctx.Process),
			"user":    ctx.User.Map(),
			"task":    taskVars,
		},
	}
}

// Factory returns a function that builds an Evaluator for each context, for
// use as form.Options.ConditionEvaluator.
func (c *Compiler) Factory(task *expr.Task) func(expr.Context) formrules.Evaluator {
	return func(ctx expr.Context) formrules.Evaluator {
		return c.Evaluator(ctx, task)
	}
}

func (c *Compiler) program(expression string) (celgo.Program, error) {
	c.mu.RLock()
	prg, ok := c.programs[expression]
	c.mu.RUnlock()
	if ok {
		return prg, nil
	}

	src := expr.Unwrap(expression)
	if src == "" {
		return nil, &ferrors.ExpressionError{Expression: expression, Reason: "empty expression"}
	}
	ast, iss := c.env.Compile(src)
	if iss != nil && iss.Err() != nil {
		return nil, &ferrors.ExpressionError{Expression: expression, Reason: iss.Err().Error(), Cause: iss.Err()}
	}
	prg, err := c.env.Program(ast)
	if err != nil {
		return nil, &ferrors.ExpressionError{Expression: expression, Reason: "generating program: " + err.Error(), Cause: err}
	}

	c.mu.Lock()
	c.programs[expression] = prg
	c.mu.Unlock()
	return prg, nil
}

func orEmpty(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}

// New returns an Evaluator for ctx with a Compiler of its own. task may be
// nil. Use a Compiler to share programs between contexts.
func New(ctx expr.Context, task *expr.Task, opts ...Option) (*Evaluator, error) {
	c, err := NewCompiler(opts...)
	if err != nil {
		return nil, err
	}
	return c.Evaluator(ctx, task), nil
}

// Factory builds one Compiler and returns a function that binds it to each
// context, for use as form.Options.ConditionEvaluator. If the Compiler
// cannot be built, every condition is false.
func Factory(task *expr.Task, opts ...Option) func(expr.Context) formrules.Evaluator {
	c, err := NewCompiler(opts...)
	if err != nil {
		slog.Default().Error("CEL evaluator unavailable", log.ErrorKey, err.Error())
		return func(expr.Context) formrules.Evaluator {
			return formrules.EvaluatorFunc(func(string) bool { return false })
		}
	}
	return c.Factory(task)
}

// Evaluator evaluates CEL expressions against one form context.
type Evaluator struct {
	c          *Compiler
	activation map[string]any
}

// Compile parses and type-checks expression using the Evaluator's
// Compiler.
func (e *Evaluator) Compile(expression string) error {
	return e.c.Compile(expression)
}

// Evaluate evaluates expression and returns its value converted to Go.
func (e *Evaluator) Evaluate(expression string) (any, error) {
	prg, err := e.c.program(expression)
	if err != nil {
		return nil, err
	}
	out, _, err := prg.Eval(e.activation)
	if err != nil {
		return nil, &ferrors.ExpressionError{Expression: expression, Reason: err.Error(), Cause: err}
	}
	return out.Value(), nil
}

// Bool evaluates a condition. Errors and non-boolean results are false.
func (e *Evaluator) Bool(expression string) bool {
	v, err := e.Evaluate(expression)
	if err != nil {
		metrics.RecordExpressionFault()
		e.c.log.Warn("expression evaluation failed", log.ExpressionKey, expression, log.ErrorKey, err.Error())
		return false
	}
	b, ok := v.(bool)
	if !ok {
		metrics.RecordExpressionFault()
		e.c.log.Warn("expression is not boolean", log.ExpressionKey, expression, "type", fmt.Sprintf("%T", v))
		return false
	}
	return b
}
