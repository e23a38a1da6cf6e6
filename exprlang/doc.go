// Package exprlang provides a formrules.Evaluator backed by expr-lang
// (https://expr-lang.org).
//
// Expressions see the same variables as the native expression language:
// form, process, user and task, each a map. The role, group and emptiness
// built-ins are available as functions:
//
//	hasRole('approver') && !hasGroup('finance')
//	hasAnyRole(['admin', 'owner'])
//	isEmpty(form.notes)
//
// Unlike CEL, reading a key that is missing from form or process yields
// nil rather than an error. Comparisons are typed: nil > 1000 and
// "5" == 5 are runtime errors or false, not coercions. Any error makes Bool
// return false, and is logged.
//
// A Compiler caches compiled programs by expression text. Programs do not
// depend on the context, so one Compiler serves every snapshot of a form:
//
//	c := exprlang.NewCompiler()
//	opts.ConditionEvaluator = c.Factory(task)
package exprlang
