package form

import (
	"fmt"
	"regexp"
	"unicode/utf8"

	"github.com/dustin/go-humanize"
	"github.com/ezachrisen/formrules"
	"github.com/ezachrisen/formrules/expr"
	"github.com/ezachrisen/formrules/internal/log"
)

// Result is the outcome of Validate.
type Result struct {
	Valid bool `json:"valid" yaml:"valid"`

	// Field name to user-facing message
	Errors map[string]string `json:"errors" yaml:"errors"`
}

// Validate checks every visible field and asks the GridRef of every
// visible grid to validate itself. The field errors replace those of the
// previous call.
func (c *Controller) Validate(gridRefs map[string]GridRef) Result {
	c.mu.Lock()
	states := c.computedStates(false)
	res := Result{Valid: true, Errors: map[string]string{}}

	for _, f := range c.opts.Fields {
		if c.fieldState(f, states).IsHidden {
			continue
		}
		if msg := c.validateField(f, c.values[f.Name]); msg != "" {
			res.Errors[f.Name] = msg
			res.Valid = false
		}
	}

	var visibleGrids []string
	for _, g := range c.opts.Grids {
		if !c.gridState(g, states).IsHidden {
			visibleGrids = append(visibleGrids, g.Name)
		}
	}
	c.errors = res.Errors
	c.mu.Unlock()

	// GridRefs belong to the host and are called outside the lock.
	for _, name := range visibleGrids {
		if ref, ok := gridRefs[name]; ok && ref != nil && !ref.Validate() {
			c.log.Debug("grid failed validation", log.GridKey, name)
			res.Valid = false
		}
	}
	return res
}

// validateField returns the first problem with value, or "". c.mu must be
// held.
func (c *Controller) validateField(f formrules.FieldDefinition, value any) string {
	label := f.DisplayLabel()
	ev := c.evaluator().WithValue(value)

	required := f.Required || (f.RequiredExpression != "" && ev.Bool(f.RequiredExpression))
	if blank(value) {
		if required {
			return fmt.Sprintf("%s is required", label)
		}
		return ""
	}

	if f.ValidationExpression != "" {
		if ok, msg := ev.Validation(f.ValidationExpression); !ok {
			switch {
			case msg != "":
				return msg
			case f.ValidationMessage != "":
				return f.ValidationMessage
			}
			return fmt.Sprintf("%s is invalid", label)
		}
	}

	return c.checkConstraints(label, f.Type, f.Validation, value)
}

func (c *Controller) checkConstraints(label string, typ formrules.FieldType, v formrules.Constraints, value any) string {
	s := expr.ToString(value)
	n := utf8.RuneCountInString(s)
	if v.MinLength > 0 && n < v.MinLength {
		return fmt.Sprintf("%s must be at least %s characters", label, humanize.Comma(int64(v.MinLength)))
	}
	if v.MaxLength > 0 && n > v.MaxLength {
		return fmt.Sprintf("%s must not exceed %s characters", label, humanize.Comma(int64(v.MaxLength)))
	}

	if v.Pattern != "" {
		re, err := regexp.Compile(v.Pattern)
		if err != nil {
			c.log.Warn("ignoring invalid validation pattern", "pattern", v.Pattern, log.ErrorKey, err.Error())
		} else if !re.MatchString(s) {
			if v.PatternMessage != "" {
				return v.PatternMessage
			}
			return fmt.Sprintf("%s format is invalid", label)
		}
	}

	if !typ.Numeric() {
		return ""
	}
	num, ok := expr.ToNumber(value)
	if !ok {
		return ""
	}
	if v.Min != nil && num < *v.Min {
		return fmt.Sprintf("%s must be at least %s", label, humanize.Commaf(*v.Min))
	}
	if v.Max != nil && num > *v.Max {
		return fmt.Sprintf("%s must not exceed %s", label, humanize.Commaf(*v.Max))
	}
	return ""
}
