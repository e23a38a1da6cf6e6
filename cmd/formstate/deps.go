package main

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/ezachrisen/formrules/definition"
	"github.com/ezachrisen/formrules/form"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func newDepsCommand(a *app) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "deps <definition>",
		Short: "Show which fields and grids depend on each value",
		Long: `Deps lists, for every field or grid referenced by a calculation or
visibility expression, the fields and grids whose expressions mention it.
Changing a value queues its dependent fields for recalculation.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkFormat(format); err != nil {
				return err
			}
			bundle, err := definition.Load(args[0])
			if err != nil {
				return err
			}
			c := form.New(form.Options{
				Fields: bundle.Form.Fields,
				Grids:  bundle.Form.Grids,
				Logger: a.logger,
			})
			deps := c.DependencyMap()
			return write(cmd.OutOrStdout(), format, deps, func(w io.Writer) error {
				return printDeps(w, deps)
			})
		},
	}
	cmd.Flags().StringVarP(&format, "format", "o", formatTable, "Output format: table, json, yaml")
	return cmd
}

func printDeps(w io.Writer, deps map[string][]form.Dependent) error {
	names := make([]string, 0, len(deps))
	for name := range deps {
		names = append(names, name)
	}
	sort.Strings(names)

	tw := table.NewWriter()
	tw.SetTitle("DEPENDENCIES")
	tw.AppendHeader(table.Row{"Value", "Dependents"})
	for _, name := range names {
		parts := make([]string, len(deps[name]))
		for i, d := range deps[name] {
			parts[i] = fmt.Sprintf("%s %s", d.Kind, d.Name)
		}
		tw.AppendRow(table.Row{name, strings.Join(parts, "\n")})
	}
	tw.SetStyle(table.StyleLight)
	fmt.Fprintln(w, tw.Render())
	return nil
}
