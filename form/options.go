package form

import (
	"log/slog"

	"github.com/ezachrisen/formrules"
	"github.com/ezachrisen/formrules/expr"
)

// A RuleSource supplies condition rules at the time they are needed.
// *formrules.RuleVault is a RuleSource.
type RuleSource interface {
	Rules(taskKey string) (global, task []formrules.ConditionRule)
}

// A GridRef is the rendering layer's handle on a grid editor. The
// controller delegates grid validation and grid data to it.
type GridRef interface {
	Validate() bool
	Data() []expr.Row
}

// Options configure a Controller.
type Options struct {
	Fields []formrules.FieldDefinition
	Grids  []formrules.GridDefinition

	// Values the edit starts from, and returns to on Reset.
	InitialValues map[string]any

	// Readonly makes the whole form read-only.
	Readonly bool

	// Condition rules. When RuleSource is set, it is consulted on every
	// state computation instead, with TaskKey.
	ConditionRules     []formrules.ConditionRule
	TaskConditionRules []formrules.ConditionRule
	RuleSource         RuleSource
	TaskKey            string

	ProcessVariables map[string]any
	User             expr.User
	Task             *expr.Task

	// ConditionEvaluator, if set, builds the evaluator used for condition
	// rules and legacy hidden/read-only expressions. The default is
	// the expr evaluator over the same context.
	ConditionEvaluator func(ctx expr.Context) formrules.Evaluator

	// Schedule is called when recomputation work is queued and the queue
	// was empty. It should arrange for drain to be called later, for
	// example on the host's event loop. Without Schedule, queued work
	// waits for an explicit Flush.
	Schedule func(drain func())

	// OnValuesChange is called with every new value snapshot.
	OnValuesChange func(values map[string]any)

	// Default: slog.Default()
	Logger *slog.Logger
}
