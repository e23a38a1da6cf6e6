// Package errors defines the typed errors returned by the formrules
// packages. Expression faults never reach callers of the evaluator, but
// they are modelled here so they can be logged and inspected uniformly.
package errors

import "fmt"

// ExpressionError describes an expression that could not be parsed or
// evaluated.
type ExpressionError struct {
	// Expression is the offending expression text
	Expression string

	// Reason explains what is wrong with it
	Reason string

	// Cause is the underlying error, if any (for example a recovered panic)
	Cause error
}

// Error implements the error interface.
func (e *ExpressionError) Error() string {
	if e.Expression == "" {
		return fmt.Sprintf("expression error: %s", e.Reason)
	}
	return fmt.Sprintf("expression %q: %s", e.Expression, e.Reason)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *ExpressionError) Unwrap() error {
	return e.Cause
}

// ErrorType classifies the error.
func (e *ExpressionError) ErrorType() string { return "expression" }

// ValidationError represents definitions or rules that break a structural
// constraint, such as a missing or duplicate id.
type ValidationError struct {
	// Field identifies which input failed validation
	Field string

	// Message is the human-readable error description
	Message string

	// Suggestion provides actionable guidance for fixing the error
	Suggestion string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation failed: %s", e.Message)
}

// ErrorType classifies the error.
func (e *ValidationError) ErrorType() string { return "validation" }

// NotFoundError represents a missing rule, field or grid.
type NotFoundError struct {
	// Resource is the kind of thing looked up ("rule", "field", "grid")
	Resource string

	// ID is the identifier that was not found
	ID string
}

// Error implements the error interface.
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// ErrorType classifies the error.
func (e *NotFoundError) ErrorType() string { return "not_found" }

// ConfigError represents a malformed definition file or context file.
type ConfigError struct {
	// Key is the path to the offending entry (e.g. "fields[2].type")
	Key string

	// Reason explains what's wrong
	Reason string

	// Cause is the underlying error (e.g. file read error, parse error)
	Cause error
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("config error at %s: %s", e.Key, e.Reason)
	}
	return fmt.Sprintf("config error: %s", e.Reason)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *ConfigError) Unwrap() error {
	return e.Cause
}

// ErrorType classifies the error.
func (e *ConfigError) ErrorType() string { return "config" }

// Classifier is implemented by every error type in this package.
type Classifier interface {
	error
	ErrorType() string
}
