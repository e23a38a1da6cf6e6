package main

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/spf13/cobra"

	"github.com/ezachrisen/formrules"
	"github.com/ezachrisen/formrules/definition"
	ferrors "github.com/ezachrisen/formrules/errors"
)

func newValidateCommand(a *app) *cobra.Command {
	var evaluator string
	cmd := &cobra.Command{
		Use:   "validate <definition>...",
		Short: "Check form definitions and their rules",
		Long: `Validate checks form definitions and their process rules: names are
present and unique, field types are known, rule ids are well formed and
rule targets name existing fields, grids and columns.

Arguments may be glob patterns; ** matches any number of directories.

With --evaluator cel or --evaluator expr, every rule condition and legacy
hidden or readonly expression is also compiled.`,
		Example: `  formstate validate expense.yaml
  formstate validate 'forms/**/*.yaml' --evaluator cel`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := conditionCompiler(evaluator, a.logger)
			if err != nil {
				return err
			}
			paths, err := expand(args)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			failed := 0
			for _, path := range paths {
				if !validateFile(out, path, c) {
					failed++
				}
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d definitions are invalid", failed, len(paths))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&evaluator, "evaluator", evaluatorNative, evaluatorUsage)
	return cmd
}

// expand replaces glob patterns by the files they match. Plain paths are
// kept as given so that a missing file is reported by the loader.
func expand(args []string) ([]string, error) {
	var paths []string
	for _, arg := range args {
		if !strings.ContainsAny(arg, "*?[{") {
			paths = append(paths, arg)
			continue
		}
		matches, err := doublestar.FilepathGlob(arg)
		if err != nil {
			return nil, fmt.Errorf("bad pattern %q: %w", arg, err)
		}
		if len(matches) == 0 {
			return nil, fmt.Errorf("no definitions match %q", arg)
		}
		paths = append(paths, matches...)
	}
	return paths, nil
}

// validateFile prints the result for one definition and reports whether
// it is valid.
func validateFile(out io.Writer, path string, c compiler) bool {
	bundle, err := definition.Load(path)
	if err == nil {
		err = bundle.Validate()
		if c != nil {
			err = ferrors.Join(err, compileConditions(bundle, c))
		}
	}
	if err != nil {
		fmt.Fprintf(out, "[FAIL] %s\n", path)
		for _, line := range strings.Split(err.Error(), "\n") {
			fmt.Fprintf(out, "  %s\n", line)
		}
		return false
	}
	fmt.Fprintf(out, "[OK] %s\n", path)
	return true
}

// compileConditions compiles every condition the state computer would hand
// to a condition evaluator.
func compileConditions(bundle *definition.Bundle, c compiler) error {
	var errs []error
	check := func(where, expression string) {
		if expression == "" {
			return
		}
		if err := c.Compile(expression); err != nil {
			errs = append(errs, ferrors.Wrap(err, where))
		}
	}
	for _, f := range bundle.Form.Fields {
		check("field "+f.Name+" hiddenExpression", f.HiddenExpression)
		check("field "+f.Name+" readonlyExpression", f.ReadonlyExpression)
	}
	rules := func(where string, rs []formrules.ConditionRule) {
		for _, r := range rs {
			check(where+" rule "+r.ID, r.Condition)
		}
	}
	rules("global", bundle.Process.GlobalConditions)

	tasks := make([]string, 0, len(bundle.Process.TaskConditions))
	for task := range bundle.Process.TaskConditions {
		tasks = append(tasks, task)
	}
	sort.Strings(tasks)
	for _, task := range tasks {
		rules("task "+task, bundle.Process.TaskConditions[task])
	}
	return ferrors.Join(errs...)
}
