package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/ezachrisen/formrules/cel"
	"github.com/ezachrisen/formrules/expr"
	"github.com/ezachrisen/formrules/exprlang"
	"github.com/spf13/cobra"
)

// Evaluation modes of the eval command.
const (
	modeValue      = "value"
	modeBool       = "bool"
	modeCalc       = "calc"
	modeArith      = "arith"
	modeVisibility = "visibility"
	modeValidation = "validation"
)

type evalOptions struct {
	context   string
	mode      string
	evaluator string
}

func newEvalCommand(a *app) *cobra.Command {
	o := &evalOptions{}
	cmd := &cobra.Command{
		Use:   "eval <expression>",
		Short: "Evaluate an expression against a context",
		Long: `Eval evaluates one expression against an evaluation context and prints
the result. Every list of objects in the form values is available as a
grid under grids.<name>.

Modes:
  value       the value of the expression
  bool        the expression as a condition
  calc        a calculation; prints nothing when it does not produce a value
  arith       an arithmetic expression over form values
  visibility  a visibility expression; empty means visible
  validation  a validation expression and its message

The cel and expr evaluators support the value and bool modes.`,
		Example: `  formstate eval "form.total > 1000" -c context.yaml --mode bool
  formstate eval "grids.lines.sum('amount')" -c context.yaml --mode calc
  formstate eval "hasRole('approver')" -c context.yaml --evaluator cel`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.run(cmd, a, args[0])
		},
	}

	cmd.Flags().StringVarP(&o.context, "context", "c", "", "Evaluation context with form values, process variables, user and task")
	cmd.Flags().StringVarP(&o.mode, "mode", "m", modeValue, "Evaluation mode: value, bool, calc, arith, visibility, validation")
	cmd.Flags().StringVar(&o.evaluator, "evaluator", evaluatorNative, "Expression evaluator: native, cel, expr")
	return cmd
}

func (o *evalOptions) run(cmd *cobra.Command, a *app, expression string) error {
	ctx, err := loadContext(o.context)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	var e typedEvaluator
	switch o.evaluator {
	case evaluatorNative:
		return o.native(out, a, ctx.Context, ctx.Task, expression)
	case evaluatorCEL:
		if e, err = cel.New(ctx.Context, ctx.Task, cel.WithLogger(a.logger)); err != nil {
			return err
		}
	case evaluatorExpr:
		e = exprlang.NewCompiler(exprlang.WithLogger(a.logger)).Evaluator(ctx.Context, ctx.Task)
	default:
		return unknownEvaluator(o.evaluator)
	}

	switch o.mode {
	case modeValue:
		v, err := e.Evaluate(expression)
		if err != nil {
			return err
		}
		return printValue(out, v)
	case modeBool:
		fmt.Fprintln(out, e.Bool(expression))
		return nil
	}
	return fmt.Errorf("mode %q is not supported by the %s evaluator", o.mode, o.evaluator)
}

// typedEvaluator is implemented by the cel and expr evaluators.
type typedEvaluator interface {
	Evaluate(expression string) (any, error)
	Bool(expression string) bool
}

func (o *evalOptions) native(out io.Writer, a *app, ctx expr.Context, task *expr.Task, expression string) error {
	grids := map[string]*expr.GridContext{}
	for name, v := range ctx.Form {
		if _, ok := v.([]any); ok {
			grids[name] = expr.NewGridContext(v, nil)
		}
	}
	e := expr.New(ctx, expr.WithLogger(a.logger)).WithGrids(grids).WithTask(task)

	switch o.mode {
	case modeValue:
		return printValue(out, e.Evaluate(expression))
	case modeBool:
		fmt.Fprintln(out, e.Bool(expression))
	case modeCalc:
		if v, ok := e.Calculation(expression); ok {
			return printValue(out, v)
		}
	case modeArith:
		fmt.Fprintln(out, expr.ToString(e.Arithmetic(expression)))
	case modeVisibility:
		fmt.Fprintln(out, e.Visibility(expression))
	case modeValidation:
		valid, msg := e.Validation(expression)
		if valid {
			fmt.Fprintln(out, "valid")
		} else {
			fmt.Fprintf(out, "invalid: %s\n", msg)
		}
	default:
		return fmt.Errorf("unknown mode %q", o.mode)
	}
	return nil
}

// printValue prints scalars in expression text form and everything else
// as JSON.
func printValue(out io.Writer, v any) error {
	switch v.(type) {
	case map[string]any, []any:
		data, err := json.Marshal(v)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, string(data))
		return nil
	}
	fmt.Fprintln(out, expr.ToString(v))
	return nil
}
