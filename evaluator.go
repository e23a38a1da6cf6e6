package formrules

// Evaluator is the interface implemented by types that can decide whether a
// condition expression holds for the current form context.
//
// Bool must not return an error: an expression that cannot be evaluated is
// false, and the evaluator is responsible for reporting it. Bool must be
// pure, because the StateComputer may evaluate the same expression more
// than once in a pass.
//
// *expr.Evaluator and *cel.Evaluator implement Evaluator.
type Evaluator interface {
	Bool(expression string) bool
}

// EvaluatorFunc adapts an ordinary function to the Evaluator interface.
type EvaluatorFunc func(expression string) bool

// Bool calls f(expression).
func (f EvaluatorFunc) Bool(expression string) bool {
	return f(expression)
}
