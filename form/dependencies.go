package form

import (
	"regexp"
	"slices"

	"github.com/ezachrisen/formrules"
)

var referencePattern = regexp.MustCompile(`form\.([a-zA-Z0-9_]+)|grids\.([a-zA-Z0-9_]+)`)

// Kind distinguishes fields from grids.
type Kind string

const (
	KindField Kind = "field"
	KindGrid  Kind = "grid"
)

// A Dependent is a field or grid with an expression that refers to
// another value.
type Dependent struct {
	Kind Kind   `json:"kind" yaml:"kind"`
	Name string `json:"name" yaml:"name"`
}

// References returns the names of the form values and grids that
// expression refers to, in order of first appearance.
func References(expression string) []string {
	var refs []string
	for _, m := range referencePattern.FindAllStringSubmatch(expression, -1) {
		name := m[1]
		if name == "" {
			name = m[2]
		}
		if !slices.Contains(refs, name) {
			refs = append(refs, name)
		}
	}
	return refs
}

// BuildDependencyMap maps each referenced value name to the fields and
// grids whose expressions refer to it. Fields come before grids, each in
// definition order, and no dependent is listed twice for the same name.
func BuildDependencyMap(fields []formrules.FieldDefinition, grids []formrules.GridDefinition) map[string][]Dependent {
	deps := map[string][]Dependent{}
	add := func(d Dependent, expressions ...string) {
		for _, e := range expressions {
			for _, name := range References(e) {
				if !slices.Contains(deps[name], d) {
					deps[name] = append(deps[name], d)
				}
			}
		}
	}
	for _, f := range fields {
		add(Dependent{Kind: KindField, Name: f.Name},
			f.VisibilityExpression,
			f.CalculationExpression,
			f.ValidationExpression,
			f.HiddenExpression,
			f.ReadonlyExpression,
			f.RequiredExpression)
	}
	for _, g := range grids {
		add(Dependent{Kind: KindGrid, Name: g.Name}, g.VisibilityExpression)
	}
	return deps
}
