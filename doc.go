// Package formrules resolves the conditional state of dynamically defined
// business forms: which fields, grids and grid columns are hidden, and which
// are read-only, given the current form values, process variables and user.
//
// The state is decided by ConditionRules. A rule has a condition expression,
// an Effect (hidden, readonly, visible, editable), a Target (all fields, some
// fields, some grids, or some grid columns), a priority and an enabled flag.
//
// Typical use is as follows:
//
//  1. Load the field and grid definitions, and the global and task rules
//  2. Build an expr.Evaluator for the current values
//  3. Create a StateComputer with that evaluator
//  4. Call ComputeFormState
//  5. Hand the ComputedFormState to the rendering layer
//
// # Resolution policy
//
// Rules are applied in a deterministic order: priority descending, then rule
// ID ascending. Resolution is least-access-wins with locking. Once a rule
// (or a field's legacy hiddenExpression/readonlyExpression) asserts hidden
// or readonly, that axis is locked for the rest of the pass: a later visible
// or editable rule cannot undo it. Visible and editable rules only take
// effect on an axis that is still unlocked.
//
//	a-hidden  (priority 10, hidden)   matches -> hidden, locked
//	b-visible (priority 10, visible)  matches -> no effect, axis locked
//
//	result: IsHidden = true, AppliedRules = [a-hidden b-visible]
//
// Fields, grids and grid columns are resolved independently. A column
// starts from its grid's resolved read-only flag but never inherits the
// grid's hidden flag.
//
// # Rule ownership and modification
//
// A computation pass treats the definitions and rules it is given as an
// immutable snapshot. To change rules while forms are being evaluated, keep
// them in a RuleVault: mutations replace the vault's snapshot atomically, and
// each pass reads whichever snapshot is current when it starts.
package formrules
