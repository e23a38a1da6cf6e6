package formrules

import (
	"fmt"
	"strings"

	"github.com/markbates/inflect"
)

// FieldType is the input type of a field or grid column.
type FieldType string

const (
	Text        FieldType = "text"
	TextArea    FieldType = "textarea"
	Number      FieldType = "number"
	Currency    FieldType = "currency"
	Percentage  FieldType = "percentage"
	Email       FieldType = "email"
	Phone       FieldType = "phone"
	Date        FieldType = "date"
	DateTime    FieldType = "datetime"
	Select      FieldType = "select"
	MultiSelect FieldType = "multiselect"
	Radio       FieldType = "radio"
	Checkbox    FieldType = "checkbox"
	File        FieldType = "file"
	Signature   FieldType = "signature"
	Expression  FieldType = "expression"
	Header      FieldType = "header"
	UserPicker  FieldType = "userPicker"
	GroupPicker FieldType = "groupPicker"
)

var fieldTypes = []FieldType{
	Text, TextArea, Number, Currency, Percentage, Email, Phone, Date, DateTime,
	Select, MultiSelect, Radio, Checkbox, File, Signature, Expression, Header,
	UserPicker, GroupPicker,
}

func (t FieldType) String() string { return string(t) }

// Numeric reports whether range constraints (min/max) apply to the type.
func (t FieldType) Numeric() bool {
	switch t {
	case Number, Currency, Percentage:
		return true
	}
	return false
}

// ParseFieldType parses a string into a FieldType. The empty string is Text.
func ParseFieldType(s string) (FieldType, error) {
	if s == "" {
		return Text, nil
	}
	for _, t := range fieldTypes {
		if strings.EqualFold(string(t), s) {
			return t, nil
		}
	}
	return "", fmt.Errorf("unrecognized field type: %s", s)
}

// Constraints are the declarative validation limits of a field or column.
// Zero lengths mean "no limit"; Min and Max are only set when present.
type Constraints struct {
	MinLength      int      `json:"minLength,omitempty" yaml:"minLength,omitempty"`
	MaxLength      int      `json:"maxLength,omitempty" yaml:"maxLength,omitempty"`
	Min            *float64 `json:"min,omitempty" yaml:"min,omitempty"`
	Max            *float64 `json:"max,omitempty" yaml:"max,omitempty"`
	Pattern        string   `json:"pattern,omitempty" yaml:"pattern,omitempty"`
	PatternMessage string   `json:"patternMessage,omitempty" yaml:"patternMessage,omitempty"`
}

// A FieldDefinition describes one form field.
type FieldDefinition struct {
	// Name is the key the field's value is stored under. (required)
	Name string `json:"name" yaml:"name"`

	// Label is shown to the user and used in validation messages. When
	// empty, a humanized form of Name is used.
	Label string `json:"label,omitempty" yaml:"label,omitempty"`

	Type         FieldType     `json:"type,omitempty" yaml:"type,omitempty"`
	Required     bool          `json:"required,omitempty" yaml:"required,omitempty"`
	Hidden       bool          `json:"hidden,omitempty" yaml:"hidden,omitempty"`
	Readonly     bool          `json:"readonly,omitempty" yaml:"readonly,omitempty"`
	DefaultValue any           `json:"defaultValue,omitempty" yaml:"defaultValue,omitempty"`
	Options      []FieldOption `json:"options,omitempty" yaml:"options,omitempty"`

	// Expressions evaluated against the current form context.
	VisibilityExpression  string `json:"visibilityExpression,omitempty" yaml:"visibilityExpression,omitempty"`
	CalculationExpression string `json:"calculationExpression,omitempty" yaml:"calculationExpression,omitempty"`
	ValidationExpression  string `json:"validationExpression,omitempty" yaml:"validationExpression,omitempty"`
	HiddenExpression      string `json:"hiddenExpression,omitempty" yaml:"hiddenExpression,omitempty"`
	ReadonlyExpression    string `json:"readonlyExpression,omitempty" yaml:"readonlyExpression,omitempty"`
	RequiredExpression    string `json:"requiredExpression,omitempty" yaml:"requiredExpression,omitempty"`

	// ValidationMessage replaces the generic message when
	// ValidationExpression evaluates false.
	ValidationMessage string `json:"validationMessage,omitempty" yaml:"validationMessage,omitempty"`

	Validation Constraints `json:"validation,omitempty" yaml:"validation,omitempty"`

	// Placement on the layout grid.
	GridRow    int `json:"gridRow,omitempty" yaml:"gridRow,omitempty"`
	GridColumn int `json:"gridColumn,omitempty" yaml:"gridColumn,omitempty"`
	GridWidth  int `json:"gridWidth,omitempty" yaml:"gridWidth,omitempty"`
}

// FieldOption is one choice of a select, multiselect or radio field.
type FieldOption struct {
	Value string `json:"value" yaml:"value"`
	Label string `json:"label" yaml:"label"`
}

// DisplayLabel returns Label, or Name humanized ("total_amount" becomes
// "Total amount").
func (f FieldDefinition) DisplayLabel() string {
	return displayLabel(f.Label, f.Name)
}

// Expressions returns the field's non-empty expressions keyed by kind.
func (f FieldDefinition) Expressions() map[string]string {
	all := map[string]string{
		"visibility":  f.VisibilityExpression,
		"calculation": f.CalculationExpression,
		"validation":  f.ValidationExpression,
		"hidden":      f.HiddenExpression,
		"readonly":    f.ReadonlyExpression,
		"required":    f.RequiredExpression,
	}
	for k, v := range all {
		if strings.TrimSpace(v) == "" {
			delete(all, k)
		}
	}
	return all
}

// A GridColumn describes one column of a grid.
type GridColumn struct {
	Name       string      `json:"name" yaml:"name"`
	Label      string      `json:"label,omitempty" yaml:"label,omitempty"`
	Type       FieldType   `json:"type,omitempty" yaml:"type,omitempty"`
	Required   bool        `json:"required,omitempty" yaml:"required,omitempty"`
	Validation Constraints `json:"validation,omitempty" yaml:"validation,omitempty"`
	Width      int         `json:"width,omitempty" yaml:"width,omitempty"`
}

// DisplayLabel returns Label, or Name humanized.
func (c GridColumn) DisplayLabel() string {
	return displayLabel(c.Label, c.Name)
}

// A GridDefinition describes a repeating table of rows within a form.
type GridDefinition struct {
	Name                 string       `json:"name" yaml:"name"`
	Label                string       `json:"label,omitempty" yaml:"label,omitempty"`
	Description          string       `json:"description,omitempty" yaml:"description,omitempty"`
	Columns              []GridColumn `json:"columns" yaml:"columns"`
	MinRows              int          `json:"minRows,omitempty" yaml:"minRows,omitempty"`
	MaxRows              int          `json:"maxRows,omitempty" yaml:"maxRows,omitempty"`
	VisibilityExpression string       `json:"visibilityExpression,omitempty" yaml:"visibilityExpression,omitempty"`
	GridRow              int          `json:"gridRow,omitempty" yaml:"gridRow,omitempty"`
	GridColumn           int          `json:"gridColumn,omitempty" yaml:"gridColumn,omitempty"`
	GridWidth            int          `json:"gridWidth,omitempty" yaml:"gridWidth,omitempty"`
}

// DisplayLabel returns Label, or Name humanized.
func (g GridDefinition) DisplayLabel() string {
	return displayLabel(g.Label, g.Name)
}

func displayLabel(label, name string) string {
	if label != "" {
		return label
	}
	return inflect.Humanize(name)
}
