// Package definition loads form definitions, process rules and evaluation
// contexts from YAML or JSON files.
package definition

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/ezachrisen/formrules"
	ferrors "github.com/ezachrisen/formrules/errors"
	"github.com/ezachrisen/formrules/expr"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Format is the encoding of a definition file.
type Format string

const (
	YAML Format = "yaml"
	JSON Format = "json"
)

// FormatFromPath returns the format implied by the file extension.
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return YAML, nil
	case ".json":
		return JSON, nil
	}
	return "", &ferrors.ConfigError{Key: path, Reason: "unrecognized file extension; use .yaml, .yml or .json"}
}

// A Bundle is a form together with the rules of the process it belongs to.
type Bundle struct {
	Form    Form    `json:"form" yaml:"form"`
	Process Process `json:"process" yaml:"process"`
}

// Form is the layout of a form.
type Form struct {
	ID     string                      `json:"id" yaml:"id"`
	Name   string                      `json:"name" yaml:"name"`
	Fields []formrules.FieldDefinition `json:"fields" yaml:"fields"`
	Grids  []formrules.GridDefinition  `json:"grids,omitempty" yaml:"grids,omitempty"`
}

// Process holds the condition rules that apply to every task of a process,
// and those that apply to one task, keyed by task definition key.
type Process struct {
	GlobalConditions []formrules.ConditionRule            `json:"globalConditions" yaml:"globalConditions"`
	TaskConditions   map[string][]formrules.ConditionRule `json:"taskConditions,omitempty" yaml:"taskConditions,omitempty"`
}

// Rules returns the global rules and the rules of the task. It makes
// Process a form.RuleSource.
func (p Process) Rules(taskKey string) (global, task []formrules.ConditionRule) {
	return p.GlobalConditions, p.TaskConditions[taskKey]
}

// Vault returns a RuleVault holding the process rules.
func (p Process) Vault() (*formrules.RuleVault, error) {
	return formrules.NewRuleVault(p.GlobalConditions, p.TaskConditions)
}

// Load reads a bundle from a YAML or JSON file.
func Load(path string) (*Bundle, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading definition %s", path)
	}
	b, err := Parse(data, format)
	if err != nil {
		return nil, errors.Wrapf(err, "loading definition %s", path)
	}
	return b, nil
}

// Parse decodes a bundle. Rules without an enabled key are enabled, and
// conditionRules is accepted as an older name for globalConditions.
func Parse(data []byte, format Format) (*Bundle, error) {
	var doc bundleDoc
	if err := decode(data, format, &doc); err != nil {
		return nil, err
	}

	b := &Bundle{
		Form: doc.Form,
		Process: Process{
			GlobalConditions: rules(append(doc.Process.GlobalConditions, doc.Process.ConditionRules...)),
		},
	}
	if len(doc.Process.TaskConditions) > 0 {
		b.Process.TaskConditions = make(map[string][]formrules.ConditionRule, len(doc.Process.TaskConditions))
		for k, v := range doc.Process.TaskConditions {
			b.Process.TaskConditions[k] = rules(v)
		}
	}
	return b, nil
}

func decode(data []byte, format Format, v any) error {
	switch format {
	case YAML:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(v); err != nil {
			return &ferrors.ConfigError{Reason: "invalid YAML: " + err.Error(), Cause: err}
		}
	case JSON:
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(v); err != nil {
			return &ferrors.ConfigError{Reason: "invalid JSON: " + err.Error(), Cause: err}
		}
	default:
		return &ferrors.ConfigError{Key: "format", Reason: "unrecognized format " + string(format)}
	}
	return nil
}

type bundleDoc struct {
	Form    Form       `json:"form" yaml:"form"`
	Process processDoc `json:"process" yaml:"process"`
}

type processDoc struct {
	GlobalConditions []ruleDoc            `json:"globalConditions" yaml:"globalConditions"`
	ConditionRules   []ruleDoc            `json:"conditionRules" yaml:"conditionRules"`
	TaskConditions   map[string][]ruleDoc `json:"taskConditions" yaml:"taskConditions"`
}

// ruleDoc is a ConditionRule as written in a file, where a missing
// enabled key means enabled.
type ruleDoc struct {
	ID          string           `json:"id" yaml:"id"`
	Name        string           `json:"name" yaml:"name"`
	Description string           `json:"description" yaml:"description"`
	Condition   string           `json:"condition" yaml:"condition"`
	Effect      formrules.Effect `json:"effect" yaml:"effect"`
	Target      formrules.Target `json:"target" yaml:"target"`
	Priority    int              `json:"priority" yaml:"priority"`
	Enabled     *bool            `json:"enabled" yaml:"enabled"`
}

func rules(docs []ruleDoc) []formrules.ConditionRule {
	out := make([]formrules.ConditionRule, 0, len(docs))
	for _, d := range docs {
		out = append(out, formrules.ConditionRule{
			ID:          d.ID,
			Name:        d.Name,
			Description: d.Description,
			Condition:   d.Condition,
			Effect:      d.Effect,
			Target:      d.Target,
			Priority:    d.Priority,
			Enabled:     d.Enabled == nil || *d.Enabled,
		})
	}
	return out
}

// Context is an evaluation context file: the values, process variables and
// user an edit is evaluated with, and optionally the task being worked on.
type Context struct {
	expr.Context `yaml:",inline"`

	Task     *expr.Task `json:"task,omitempty" yaml:"task,omitempty"`
	Readonly bool       `json:"readonly,omitempty" yaml:"readonly,omitempty"`
}

// TaskKey returns the task definition key, or "" without a task.
func (c *Context) TaskKey() string {
	if c.Task == nil {
		return ""
	}
	return c.Task.TaskDefinitionKey
}

// LoadContext reads a context from a YAML or JSON file.
func LoadContext(path string) (*Context, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading context %s", path)
	}
	c, err := ParseContext(data, format)
	if err != nil {
		return nil, errors.Wrapf(err, "loading context %s", path)
	}
	return c, nil
}

// ParseContext decodes a context.
func ParseContext(data []byte, format Format) (*Context, error) {
	var c Context
	if err := decode(data, format, &c); err != nil {
		return nil, err
	}
	if c.Form == nil {
		c.Form = map[string]any{}
	}
	if c.Process == nil {
		c.Process = map[string]any{}
	}
	return &c, nil
}
