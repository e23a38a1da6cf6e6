package main

import (
	"fmt"
	"log/slog"

	"github.com/ezachrisen/formrules"
	"github.com/ezachrisen/formrules/cel"
	"github.com/ezachrisen/formrules/expr"
	"github.com/ezachrisen/formrules/exprlang"
)

// Condition evaluators selectable with --evaluator.
const (
	evaluatorNative = "native"
	evaluatorCEL    = "cel"
	evaluatorExpr   = "expr"
)

const evaluatorUsage = "Condition evaluator: native, cel, expr"

func unknownEvaluator(name string) error {
	return fmt.Errorf("unknown evaluator %q (use native, cel or expr)", name)
}

// conditionEvaluator returns the form.Options.ConditionEvaluator for name.
// The native evaluator is the controller's default and yields nil.
func conditionEvaluator(name string, task *expr.Task, logger *slog.Logger) (func(expr.Context) formrules.Evaluator, error) {
	switch name {
	case evaluatorNative:
		return nil, nil
	case evaluatorCEL:
		c, err := cel.NewCompiler(cel.WithLogger(logger))
		if err != nil {
			return nil, err
		}
		return c.Factory(task), nil
	case evaluatorExpr:
		return exprlang.NewCompiler(exprlang.WithLogger(logger)).Factory(task), nil
	}
	return nil, unknownEvaluator(name)
}

// compiler checks that an expression compiles.
type compiler interface {
	Compile(expression string) error
}

// conditionCompiler returns a compiler for name, or nil for the native
// evaluator, which has no separate compile step.
func conditionCompiler(name string, logger *slog.Logger) (compiler, error) {
	switch name {
	case evaluatorNative:
		return nil, nil
	case evaluatorCEL:
		return cel.NewCompiler(cel.WithLogger(logger))
	case evaluatorExpr:
		return exprlang.NewCompiler(exprlang.WithLogger(logger)), nil
	}
	return nil, unknownEvaluator(name)
}
