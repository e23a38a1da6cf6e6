package expr

import "slices"

// Row is a single grid row, keyed by column name.
type Row = map[string]any

// User is the identity of the person filling in the form.
type User struct {
	ID       string   `json:"id" yaml:"id"`
	Username string   `json:"username" yaml:"username"`
	Roles    []string `json:"roles" yaml:"roles"`
	Groups   []string `json:"groups" yaml:"groups"`
}

// HasRole reports whether the user holds role.
func (u User) HasRole(role string) bool {
	return slices.Contains(u.Roles, role)
}

// HasGroup reports whether the user belongs to group.
func (u User) HasGroup(group string) bool {
	return slices.Contains(u.Groups, group)
}

// Map returns the user as the object seen by expressions under the
// user prefix.
func (u User) Map() map[string]any {
	return map[string]any{
		"id":       u.ID,
		"username": u.Username,
		"roles":    slices.Clone(u.Roles),
		"groups":   slices.Clone(u.Groups),
	}
}

// Task describes the workflow task the form belongs to.
type Task struct {
	ID                string `json:"id" yaml:"id"`
	Name              string `json:"name" yaml:"name"`
	TaskDefinitionKey string `json:"taskDefinitionKey" yaml:"taskDefinitionKey"`
	Assignee          string `json:"assignee,omitempty" yaml:"assignee,omitempty"`
}

func (t *Task) asMap() map[string]any {
	return map[string]any{
		"id":                t.ID,
		"name":              t.Name,
		"taskDefinitionKey": t.TaskDefinitionKey,
		"assignee":          t.Assignee,
	}
}

// Context is the data an expression is evaluated against. The evaluator
// treats it as read-only.
type Context struct {
	Form    map[string]any `json:"form" yaml:"form"`
	Process map[string]any `json:"process" yaml:"process"`
	User    User           `json:"user" yaml:"user"`
}
