package main

import (
	"github.com/spf13/cobra"

	"github.com/ezachrisen/formrules"
	"github.com/ezachrisen/formrules/definition"
	"github.com/ezachrisen/formrules/expr"
	"github.com/ezachrisen/formrules/form"
)

// formFlags are the flags that describe a form session.
type formFlags struct {
	definition string
	context    string
	task       string
	readonly   bool
	evaluator  string
}

func (f *formFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.definition, "definition", "d", "", "Form definition and process rules (required)")
	cmd.Flags().StringVarP(&f.context, "context", "c", "", "Evaluation context with form values, process variables, user and task")
	cmd.Flags().StringVarP(&f.task, "task", "t", "", "Task definition key; overrides the task in the context")
	cmd.Flags().BoolVar(&f.readonly, "readonly", false, "Make the whole form read-only")
	cmd.Flags().StringVar(&f.evaluator, "evaluator", evaluatorNative, evaluatorUsage)
	_ = cmd.MarkFlagRequired("definition")
}

// session is a loaded form: its definition, the vault holding its rules,
// and a controller that has been initialized and recalculated.
type session struct {
	bundle     *definition.Bundle
	vault      *formrules.RuleVault
	controller *form.Controller
}

func (f *formFlags) open(a *app) (*session, error) {
	bundle, err := definition.Load(f.definition)
	if err != nil {
		return nil, err
	}
	ctx, err := loadContext(f.context)
	if err != nil {
		return nil, err
	}
	if f.task != "" {
		if ctx.Task == nil {
			ctx.Task = &expr.Task{}
		}
		ctx.Task.TaskDefinitionKey = f.task
	}
	vault, err := bundle.Process.Vault()
	if err != nil {
		return nil, err
	}

	opts := form.Options{
		Fields:           bundle.Form.Fields,
		Grids:            bundle.Form.Grids,
		InitialValues:    ctx.Form,
		Readonly:         f.readonly || ctx.Readonly,
		RuleSource:       vault,
		TaskKey:          ctx.TaskKey(),
		ProcessVariables: ctx.Process,
		User:             ctx.User,
		Task:             ctx.Task,
		Logger:           a.logger,
	}
	opts.ConditionEvaluator, err = conditionEvaluator(f.evaluator, ctx.Task, a.logger)
	if err != nil {
		return nil, err
	}

	c := form.New(opts)
	c.Initialize()
	for _, field := range bundle.Form.Fields {
		if field.CalculationExpression != "" {
			c.ExecuteFieldLogic(field.Name)
		}
	}
	return &session{bundle: bundle, vault: vault, controller: c}, nil
}

// loadContext reads the context file, or returns an empty context when no
// path is given.
func loadContext(path string) (*definition.Context, error) {
	if path == "" {
		return &definition.Context{
			Context: expr.Context{Form: map[string]any{}, Process: map[string]any{}},
		}, nil
	}
	return definition.LoadContext(path)
}
