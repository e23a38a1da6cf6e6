package formrules

import (
	"fmt"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	ferrors "github.com/ezachrisen/formrules/errors"
)

// bannedIDCharacters may not appear in a rule ID.
const bannedIDCharacters = " \t\n/:"

// RuleSet is an immutable snapshot of the global rules and the rules of
// each task.
type RuleSet struct {
	Global     []ConditionRule
	Tasks      map[string][]ConditionRule
	LastUpdate time.Time
}

func (s *RuleSet) clone() *RuleSet {
	c := &RuleSet{
		Global:     slices.Clone(s.Global),
		Tasks:      make(map[string][]ConditionRule, len(s.Tasks)),
		LastUpdate: s.LastUpdate,
	}
	for k, v := range s.Tasks {
		c.Tasks[k] = slices.Clone(v)
	}
	return c
}

// find returns the task key ("" for global) and index of the rule with id.
func (s *RuleSet) find(id string) (string, int, bool) {
	if i := slices.IndexFunc(s.Global, func(r ConditionRule) bool { return r.ID == id }); i >= 0 {
		return "", i, true
	}
	for _, task := range sortedKeys(s.Tasks) {
		if i := slices.IndexFunc(s.Tasks[task], func(r ConditionRule) bool { return r.ID == id }); i >= 0 {
			return task, i, true
		}
	}
	return "", 0, false
}

// RuleVault holds a RuleSet that can be replaced while forms are being
// evaluated. Readers never block; each Mutate call builds a new snapshot
// and swaps it in atomically, so a reader sees either all of a call's
// changes or none of them.
type RuleVault struct {
	set atomic.Pointer[RuleSet]

	// serializes writers
	mu sync.Mutex
}

// NewRuleVault creates a vault holding the given rules.
func NewRuleVault(global []ConditionRule, tasks map[string][]ConditionRule) (*RuleVault, error) {
	s := &RuleSet{
		Global:     slices.Clone(global),
		Tasks:      map[string][]ConditionRule{},
		LastUpdate: time.Now(),
	}
	for k, v := range tasks {
		s.Tasks[k] = slices.Clone(v)
	}
	if err := s.validate(); err != nil {
		return nil, err
	}
	v := &RuleVault{}
	v.set.Store(s)
	return v, nil
}

// Snapshot returns the current rule set. It must not be modified.
func (v *RuleVault) Snapshot() *RuleSet {
	return v.set.Load()
}

// Rules returns copies of the global rules and of the rules for taskKey.
func (v *RuleVault) Rules(taskKey string) (global, task []ConditionRule) {
	s := v.set.Load()
	return slices.Clone(s.Global), slices.Clone(s.Tasks[taskKey])
}

// Rule returns the rule with id and the task it belongs to ("" for global).
func (v *RuleVault) Rule(id string) (ConditionRule, string, error) {
	s := v.set.Load()
	task, i, ok := s.find(id)
	if !ok {
		return ConditionRule{}, "", &ferrors.NotFoundError{Resource: "rule", ID: id}
	}
	if task == "" {
		return s.Global[i], "", nil
	}
	return s.Tasks[task][i], task, nil
}

// LastUpdate returns the time of the last successful mutation.
func (v *RuleVault) LastUpdate() time.Time {
	return v.set.Load().LastUpdate
}

// A Mutation is one change applied by Mutate.
type Mutation func(s *RuleSet) error

// Mutate applies the mutations, in order, to a copy of the current rule
// set and stores the result. If any mutation fails, or the resulting set
// is invalid, nothing changes. Unless one of the mutations is LastUpdate,
// the update time is set to now.
func (v *RuleVault) Mutate(mutations ...Mutation) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	old := v.set.Load()
	s := old.clone()
	s.LastUpdate = time.Time{}
	for _, m := range mutations {
		if err := m(s); err != nil {
			return err
		}
	}
	if err := s.validate(); err != nil {
		return err
	}
	if s.LastUpdate.IsZero() {
		s.LastUpdate = time.Now()
	}
	v.set.Store(s)
	return nil
}

// Add adds a rule to the task's rules, or to the global rules when taskKey
// is empty.
func Add(r ConditionRule, taskKey string) Mutation {
	return func(s *RuleSet) error {
		if _, _, ok := s.find(r.ID); ok {
			return &ferrors.ValidationError{Field: "id", Message: fmt.Sprintf("rule %s already exists", r.ID)}
		}
		if taskKey == "" {
			s.Global = append(s.Global, r)
			return nil
		}
		s.Tasks[taskKey] = append(s.Tasks[taskKey], r)
		return nil
	}
}

// Replace replaces the rule with the same ID, wherever it is stored.
func Replace(r ConditionRule) Mutation {
	return func(s *RuleSet) error {
		task, i, ok := s.find(r.ID)
		if !ok {
			return &ferrors.NotFoundError{Resource: "rule", ID: r.ID}
		}
		if task == "" {
			s.Global[i] = r
		} else {
			s.Tasks[task][i] = r
		}
		return nil
	}
}

// Delete removes the rule with id.
func Delete(id string) Mutation {
	return func(s *RuleSet) error {
		task, i, ok := s.find(id)
		if !ok {
			return &ferrors.NotFoundError{Resource: "rule", ID: id}
		}
		if task == "" {
			s.Global = slices.Delete(s.Global, i, i+1)
		} else {
			s.Tasks[task] = slices.Delete(s.Tasks[task], i, i+1)
		}
		return nil
	}
}

// Enable turns a rule on or off.
func Enable(id string, enabled bool) Mutation {
	return func(s *RuleSet) error {
		task, i, ok := s.find(id)
		if !ok {
			return &ferrors.NotFoundError{Resource: "rule", ID: id}
		}
		if task == "" {
			s.Global[i].Enabled = enabled
		} else {
			s.Tasks[task][i].Enabled = enabled
		}
		return nil
	}
}

// SetTaskRules replaces all rules of a task. An empty list removes the task.
func SetTaskRules(taskKey string, rules []ConditionRule) Mutation {
	return func(s *RuleSet) error {
		if len(rules) == 0 {
			delete(s.Tasks, taskKey)
			return nil
		}
		s.Tasks[taskKey] = slices.Clone(rules)
		return nil
	}
}

// SetRules replaces every rule in the vault.
func SetRules(global []ConditionRule, tasks map[string][]ConditionRule) Mutation {
	return func(s *RuleSet) error {
		s.Global = slices.Clone(global)
		s.Tasks = make(map[string][]ConditionRule, len(tasks))
		for k, v := range tasks {
			if len(v) > 0 {
				s.Tasks[k] = slices.Clone(v)
			}
		}
		return nil
	}
}

// LastUpdate sets the update time recorded with the new snapshot.
func LastUpdate(t time.Time) Mutation {
	return func(s *RuleSet) error {
		s.LastUpdate = t
		return nil
	}
}

func (s *RuleSet) validate() error {
	seen := map[string]string{}
	check := func(where string, rules []ConditionRule) error {
		for i, r := range rules {
			if err := ValidateRule(r); err != nil {
				return ferrors.Wrapf(err, "%s[%d]", where, i)
			}
			if prev, ok := seen[r.ID]; ok {
				return &ferrors.ValidationError{
					Field:   fmt.Sprintf("%s[%d].id", where, i),
					Message: fmt.Sprintf("duplicate rule id %s (also in %s)", r.ID, prev),
				}
			}
			seen[r.ID] = where
		}
		return nil
	}
	if err := check("global", s.Global); err != nil {
		return err
	}
	for _, task := range sortedKeys(s.Tasks) {
		if err := check("tasks."+task, s.Tasks[task]); err != nil {
			return err
		}
	}
	return nil
}

// ValidateRule checks the structural constraints of a single rule: a
// well-formed ID and a recognized effect and target.
func ValidateRule(r ConditionRule) error {
	if strings.TrimSpace(r.ID) == "" {
		return &ferrors.ValidationError{Field: "id", Message: "rule id is required", Suggestion: "use NewRuleID"}
	}
	if strings.ContainsAny(r.ID, bannedIDCharacters) {
		return &ferrors.ValidationError{Field: "id", Message: fmt.Sprintf("rule id %q cannot contain any of %q", r.ID, bannedIDCharacters)}
	}
	if !r.Effect.Valid() {
		return &ferrors.ValidationError{Field: "effect", Message: fmt.Sprintf("unrecognized effect %q", r.Effect),
			Suggestion: "use hidden, readonly, visible or editable"}
	}
	if !r.Target.Type.Valid() {
		return &ferrors.ValidationError{Field: "target.type", Message: fmt.Sprintf("unrecognized target %q", r.Target.Type),
			Suggestion: "use all, field, grid or column"}
	}
	return nil
}

// TaskKeys returns the task keys that have rules, sorted.
func (s *RuleSet) TaskKeys() []string {
	return sortedKeys(s.Tasks)
}
