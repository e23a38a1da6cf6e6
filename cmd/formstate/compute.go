package main

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/ezachrisen/formrules"
	"github.com/ezachrisen/formrules/expr"
	"github.com/ezachrisen/formrules/form"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

type computeOptions struct {
	formFlags
	format      string
	diagnostics bool
}

// computeResult is what compute prints in the json and yaml formats.
type computeResult struct {
	Values     map[string]any               `json:"values" yaml:"values"`
	State      *formrules.ComputedFormState `json:"state" yaml:"state"`
	Validation form.Result                  `json:"validation" yaml:"validation"`
	Layout     []string                     `json:"layout" yaml:"layout"`
}

func newComputeCommand(a *app) *cobra.Command {
	o := &computeOptions{}
	cmd := &cobra.Command{
		Use:   "compute",
		Short: "Compute the state of a form",
		Long: `Compute loads a form definition and an evaluation context, fills in
default values, runs every calculation and resolves the hidden and
read-only state of every field, grid and grid column.

The state of each entity starts from its static definition. Condition
rules are applied in priority order; hidden and readonly rules win over
visible and editable rules.`,
		Example: `  formstate compute -d expense.yaml -c context.yaml
  formstate compute -d expense.yaml -c context.yaml --task approve --format json
  formstate compute -d expense.yaml --evaluator cel --diagnostics`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return o.run(cmd, a)
		},
	}

	o.register(cmd)
	cmd.Flags().StringVarP(&o.format, "format", "o", formatTable, "Output format: table, json, yaml")
	cmd.Flags().BoolVar(&o.diagnostics, "diagnostics", false, "Print a report of every rule evaluation")
	return cmd
}

func (o *computeOptions) run(cmd *cobra.Command, a *app) error {
	if err := checkFormat(o.format); err != nil {
		return err
	}
	sess, err := o.open(a)
	if err != nil {
		return err
	}
	c := sess.controller

	res := computeResult{
		Values:     c.Snapshot(),
		State:      c.States(),
		Validation: c.Validate(nil),
	}
	for _, item := range c.SortedItems() {
		res.Layout = append(res.Layout, item.Name())
	}

	out := cmd.OutOrStdout()
	err = write(out, o.format, res, func(w io.Writer) error {
		return printCompute(w, res)
	})
	if err != nil {
		return err
	}

	if o.diagnostics {
		w := out
		if o.format != formatTable {
			w = cmd.ErrOrStderr()
		}
		fmt.Fprintln(w, c.Diagnose().Diagnostics)
	}
	return nil
}

func printCompute(w io.Writer, res computeResult) error {
	fmt.Fprintln(w, res.State)

	tw := table.NewWriter()
	tw.SetTitle("VALUES")
	tw.AppendHeader(table.Row{"Name", "Value"})
	names := make([]string, 0, len(res.Values))
	for name := range res.Values {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		tw.AppendRow(table.Row{name, display(res.Values[name])})
	}
	tw.SetStyle(table.StyleLight)
	fmt.Fprintln(w, tw.Render())

	fmt.Fprintf(w, "Layout: %s\n", strings.Join(res.Layout, ", "))
	if res.Validation.Valid {
		fmt.Fprintln(w, "[OK] form is valid")
		return nil
	}
	fmt.Fprintln(w, "[FAIL] form is invalid")
	fields := make([]string, 0, len(res.Validation.Errors))
	for name := range res.Validation.Errors {
		fields = append(fields, name)
	}
	sort.Strings(fields)
	for _, name := range fields {
		fmt.Fprintf(w, "  %s: %s\n", name, res.Validation.Errors[name])
	}
	return nil
}

// display renders a value for the values table. Grid data is summarized.
func display(v any) string {
	switch v.(type) {
	case []any, []expr.Row:
		return fmt.Sprintf("(%d rows)", len(expr.DecodeRows(v)))
	}
	return expr.ToString(v)
}
