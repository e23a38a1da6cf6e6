package formrules_test

import (
	"fmt"

	"github.com/ezachrisen/formrules"
	"github.com/ezachrisen/formrules/expr"
)

// Example showing how condition rules resolve the state of a form.
func Example() {

	// Step 1: Describe the form
	fields := []formrules.FieldDefinition{
		{Name: "amount", Type: formrules.Currency},
		{Name: "approverNotes", Type: formrules.TextArea, Hidden: true},
		{Name: "costCenter", Type: formrules.Text},
	}

	// Step 2: Write the rules
	global := []formrules.ConditionRule{
		{
			ID:        "show-notes-for-large-amounts",
			Condition: "form.amount > 1000",
			Effect:    formrules.Visible,
			Target:    formrules.Target{Type: formrules.TargetField, FieldNames: []string{"approverNotes"}},
			Priority:  10,
			Enabled:   true,
		},
	}
	task := []formrules.ConditionRule{
		{
			ID:        "lock-cost-center",
			Condition: "!hasRole('finance')",
			Effect:    formrules.Readonly,
			Target:    formrules.Target{Type: formrules.TargetField, FieldNames: []string{"costCenter"}},
			Enabled:   true,
		},
	}

	// Step 3: Evaluate against the current values
	ctx := expr.Context{
		Form: map[string]any{"amount": 2500},
		User: expr.User{ID: "u7", Roles: []string{"approver"}},
	}
	sc := formrules.NewStateComputer(expr.New(ctx))
	state := sc.ComputeFormState(fields, nil, global, task)

	for _, name := range []string{"amount", "approverNotes", "costCenter"} {
		st := state.Fields[name]
		fmt.Printf("%s hidden=%t readonly=%t\n", name, st.IsHidden, st.IsReadonly)
	}
	// Output:
	// amount hidden=false readonly=false
	// approverNotes hidden=false readonly=false
	// costCenter hidden=false readonly=true
}

// Example showing that a hidden rule outranks a visible rule with the same
// priority.
func ExampleStateComputer_ComputeFieldState() {
	rules := []formrules.ConditionRule{
		{ID: "b-visible", Condition: "true", Effect: formrules.Visible, Priority: 10, Enabled: true,
			Target: formrules.Target{Type: formrules.TargetField, FieldNames: []string{"f"}}},
		{ID: "a-hidden", Condition: "true", Effect: formrules.Hidden, Priority: 10, Enabled: true,
			Target: formrules.Target{Type: formrules.TargetField, FieldNames: []string{"f"}}},
	}
	sc := formrules.NewStateComputer(expr.New(expr.Context{}))
	st := sc.ComputeFieldState(formrules.FieldDefinition{Name: "f", Hidden: true}, sc.PrepareRules(rules, nil))
	fmt.Println(st.IsHidden, st.AppliedRules)
	// Output: true [a-hidden b-visible]
}

// Example showing how to replace rules while forms are being evaluated.
func ExampleRuleVault_Mutate() {
	v, err := formrules.NewRuleVault(nil, nil)
	if err != nil {
		fmt.Println(err)
		return
	}

	r := formrules.DefaultRule()
	r.ID = "lock-all"
	r.Condition = "process.status == 'closed'"
	if err := v.Mutate(formrules.Add(r, "review")); err != nil {
		fmt.Println(err)
		return
	}
	if err := v.Mutate(formrules.Delete("no-such-rule")); err != nil {
		fmt.Println(err)
	}

	global, task := v.Rules("review")
	fmt.Println(len(global), len(task), task[0].ID)
	// Output:
	// rule not found: no-such-rule
	// 0 1 lock-all
}
