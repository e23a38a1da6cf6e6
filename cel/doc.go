// Package cel provides a formrules.Evaluator backed by Google's cel-go.
//
// See https://github.com/google/cel-go and https://opensource.google/projects/cel for more information
// about CEL. Expressions must conform to the CEL spec: https://github.com/google/cel-spec.
//
// Variables
//
// An expression sees the same context as the native expression language:
//
//	form     map(string, dyn)   current form values
//	process  map(string, dyn)   process variables
//	user     map(string, dyn)   id, username, roles, groups
//	task     map(string, dyn)   id, name, taskDefinitionKey, assignee (empty without a task)
//
// Functions
//
// The built-ins of the native language are available with the same names:
//
//	hasRole(string) bool
//	hasGroup(string) bool
//	hasAnyRole(list) bool
//	hasAnyGroup(list) bool
//	isEmpty(dyn) bool
//	isNotEmpty(dyn) bool
//
// Differences from the native language
//
// CEL is typed. Comparing a string to a number is a compile error rather
// than a coercion, == is always strict, and reading a key that is not in
// form or process is an evaluation error. Numbers of different types
// compare by value, so form.amount > 1000 works whether amount is an int
// or a double. Any error makes Bool return false, and is logged.
//
// A Compiler owns the environment and the compiled programs. Build one
// and create an Evaluator per context with Compiler.Evaluator or
// Compiler.Factory; New is a shorthand for a single context. The role and
// group functions read the user variable, so programs are shared between
// users.
//
// An optional ${...} wrapper is stripped before compiling, so expressions
// written for the native language that happen to be valid CEL can be used
// unchanged.
package cel
