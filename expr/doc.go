// Package expr implements the form expression language: a small, closed
// grammar evaluated against an immutable snapshot of form values, process
// variables and the current user.
//
// The grammar has no loops, no assignment and no user-defined functions.
// Operators, from lowest to highest precedence:
//
//	||                         logical OR
//	&&                         logical AND
//	!                          logical NOT
//	( )                        grouping
//	== != === !== > >= < <=    comparison
//	x in [a, b]                membership
//	list.contains(x)           membership
//	hasRole('r') hasGroup('g') hasAnyRole(['a','b']) hasAnyGroup(['a'])
//	isEmpty(x) isNotEmpty(x)
//
// Identifiers are either prefixed (form.amount, process.region, user.username)
// or bare, in which case they resolve against the form values first and the
// process variables second. An identifier that does not resolve yields
// Undefined; it is never an error.
//
// Besides boolean/value evaluation, an Evaluator has an arithmetic mode
// (+ - * / % and parentheses over numeric identifiers) and a grid-function
// mode that understands grids.<name>.sum('<column>') and
// grids.<name>.rows.length.
//
// Evaluation never returns an error to the caller. Faults are logged and
// converted into a default that suits the call site:
//
//	Evaluate     nil
//	Visibility   visible (true)
//	Validation   valid (true, "")
//	Calculation  no update (nil, false)
//	Arithmetic   0
package expr
