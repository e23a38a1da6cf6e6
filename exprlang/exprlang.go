package exprlang

import (
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/ezachrisen/formrules"
	ferrors "github.com/ezachrisen/formrules/errors"
	fexpr "github.com/ezachrisen/formrules/expr"
	"github.com/ezachrisen/formrules/internal/log"
	"github.com/ezachrisen/formrules/internal/metrics"
)

// Compiler compiles expressions and caches the programs.
type Compiler struct {
	log *slog.Logger

	mu    sync.RWMutex
	cache map[string]*vm.Program
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

// NewCompiler returns a Compiler with an empty cache.
func NewCompiler(opts ...Option) *Compiler {
	c := &Compiler{cache: map[string]*vm.Program{}}
	for _, opt := range opts {
		opt(c)
	}
	c.log = log.WithComponent(c.log, "exprlang")
	return c
}

// compileEnv declares the shape of the variables and functions. The values
// are replaced per evaluation.
var compileEnv = map[string]any{
	"form":        map[string]any{},
	"process":     map[string]any{},
	"user":        map[string]any{},
	"task":        map[string]any{},
	"hasRole":     func(string) bool { return false },
	"hasGroup":    func(string) bool { return false },
	"hasAnyRole":  func([]any) bool { return false },
	"hasAnyGroup": func([]any) bool { return false },
	"isEmpty":     func(any) bool { return false },
	"isNotEmpty":  func(any) bool { return false },
}

// Compile parses and checks expression, caching the program. It returns
// an *errors.ExpressionError describing the problem.
func (c *Compiler) Compile(expression string) error {
	_, err := c.program(expression)
	return err
}

// CacheSize returns the number of cached programs.
func (c *Compiler) CacheSize() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.cache)
}

func (c *Compiler) program(expression string) (*vm.Program, error) {
	c.mu.RLock()
	prg, ok := c.cache[expression]
	c.mu.RUnlock()
	if ok {
		return prg, nil
	}

	src := fexpr.Unwrap(expression)
	if src == "" {
		return nil, &ferrors.ExpressionError{Expression: expression, Reason: "empty expression"}
	}
	prg, err := expr.Compile(src, expr.Env(compileEnv), expr.AllowUndefinedVariables())
	if err != nil {
		return nil, &ferrors.ExpressionError{Expression: expression, Reason: err.Error(), Cause: err}
	}

	c.mu.Lock()
	c.cache[expression] = prg
	c.mu.Unlock()
	return prg, nil
}

// Evaluator returns an Evaluator for ctx that shares the Compiler's
// cache. task may be nil.
func (c *Compiler) Evaluator(ctx fexpr.Context, task *fexpr.Task) *Evaluator {
	u := ctx.User
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
		env: map[string]any{
			"form":        orEmpty(ctx.Form),
			"process":     orEmpty(ctx.Process),
			"user":        u.Map(),
			"task":        taskVars,
			"hasRole":     u.HasRole,
			"hasGroup":    u.HasGroup,
			"hasAnyRole":  anyMember(u.Roles),
			"hasAnyGroup": anyMember(u.Groups),
			"isEmpty":     fexpr.IsEmpty,
			"isNotEmpty":  func(v any) bool { return !fexpr.IsEmpty(v) },
		},
	}
}

// Factory returns a function that builds an Evaluator for each context, for
// use as form.Options.ConditionEvaluator.
func (c *Compiler) Factory(task *fexpr.Task) func(fexpr.Context) formrules.Evaluator {
	return func(ctx fexpr.Context) formrules.Evaluator {
		return c.Evaluator(ctx, task)
	}
}

func orEmpty(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}

func anyMember(set []string) func([]any) bool {
	return func(items []any) bool {
		for _, item := range items {
			if s, ok := item.(string); ok && slices.Contains(set, s) {
				return true
			}
		}
		return false
	}
}

// Evaluator evaluates expressions against one form context.
type Evaluator struct {
	c   *Compiler
	env map[string]any
}

// Evaluate evaluates expression and returns its value.
func (e *Evaluator) Evaluate(expression string) (any, error) {
	prg, err := e.c.program(expression)
	if err != nil {
		return nil, err
	}
	out, err := expr.Run(prg, e.env)
	if err != nil {
		return nil, &ferrors.ExpressionError{Expression: expression, Reason: err.Error(), Cause: err}
	}
	return out, nil
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
