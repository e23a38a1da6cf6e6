package definition

import (
	"fmt"
	"slices"

	"github.com/ezachrisen/formrules"
	ferrors "github.com/ezachrisen/formrules/errors"
)

// Validate checks the bundle for problems a form would otherwise trip over
// at run time: missing or duplicate names, unknown field types, malformed
// or duplicate rules, and rules that target names the form does not have.
// It returns every problem found, joined, or nil.
func (b *Bundle) Validate() error {
	var errs []error
	names := map[string]string{}
	columns := map[string][]string{}

	claim := func(key, name string) {
		if name == "" {
			errs = append(errs, &ferrors.ValidationError{Field: key + ".name", Message: "name is required"})
			return
		}
		if prev, ok := names[name]; ok {
			errs = append(errs, &ferrors.ValidationError{
				Field:      key + ".name",
				Message:    fmt.Sprintf("duplicate name %q (also %s)", name, prev),
				Suggestion: "fields and grids share one namespace",
			})
			return
		}
		names[name] = key
	}

	for i, f := range b.Form.Fields {
		key := fmt.Sprintf("fields[%d]", i)
		claim(key, f.Name)
		if _, err := formrules.ParseFieldType(string(f.Type)); err != nil {
			errs = append(errs, &ferrors.ConfigError{Key: key + ".type", Reason: err.Error()})
		}
	}
	for i, g := range b.Form.Grids {
		key := fmt.Sprintf("grids[%d]", i)
		claim(key, g.Name)
		if g.MaxRows > 0 && g.MinRows > g.MaxRows {
			errs = append(errs, &ferrors.ValidationError{Field: key, Message: fmt.Sprintf("minRows %d exceeds maxRows %d", g.MinRows, g.MaxRows)})
		}
		for j, c := range g.Columns {
			ckey := fmt.Sprintf("%s.columns[%d]", key, j)
			switch {
			case c.Name == "":
				errs = append(errs, &ferrors.ValidationError{Field: ckey + ".name", Message: "name is required"})
			case slices.Contains(columns[g.Name], c.Name):
				errs = append(errs, &ferrors.ValidationError{Field: ckey + ".name", Message: fmt.Sprintf("duplicate column %q", c.Name)})
			default:
				columns[g.Name] = append(columns[g.Name], c.Name)
			}
			if _, err := formrules.ParseFieldType(string(c.Type)); err != nil {
				errs = append(errs, &ferrors.ConfigError{Key: ckey + ".type", Reason: err.Error()})
			}
		}
	}

	if _, err := b.Process.Vault(); err != nil {
		errs = append(errs, err)
	}

	fieldNames := map[string]bool{}
	for _, f := range b.Form.Fields {
		fieldNames[f.Name] = true
	}
	gridNames := map[string]bool{}
	for _, g := range b.Form.Grids {
		gridNames[g.Name] = true
	}

	check := func(where string, rules []formrules.ConditionRule) {
		for i, r := range rules {
			key := fmt.Sprintf("%s[%d] (%s)", where, i, r.ID)
			for _, n := range r.Target.FieldNames {
				if r.Target.Type == formrules.TargetField && !fieldNames[n] {
					errs = append(errs, &ferrors.ValidationError{Field: key + ".target", Message: fmt.Sprintf("unknown field %q", n)})
				}
			}
			for _, n := range r.Target.GridNames {
				if r.Target.Type == formrules.TargetGrid && !gridNames[n] {
					errs = append(errs, &ferrors.ValidationError{Field: key + ".target", Message: fmt.Sprintf("unknown grid %q", n)})
				}
			}
			if r.Target.Type != formrules.TargetColumn {
				continue
			}
			for _, ct := range r.Target.ColumnTargets {
				if !gridNames[ct.GridName] {
					errs = append(errs, &ferrors.ValidationError{Field: key + ".target", Message: fmt.Sprintf("unknown grid %q", ct.GridName)})
					continue
				}
				for _, c := range ct.ColumnNames {
					if !slices.Contains(columns[ct.GridName], c) {
						errs = append(errs, &ferrors.ValidationError{Field: key + ".target", Message: fmt.Sprintf("unknown column %s.%s", ct.GridName, c)})
					}
				}
			}
		}
	}
	check("globalConditions", b.Process.GlobalConditions)
	for _, task := range sortedKeys(b.Process.TaskConditions) {
		check("taskConditions."+task, b.Process.TaskConditions[task])
	}

	return ferrors.Join(errs...)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
