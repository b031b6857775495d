// Package router maps a task's declared requirements onto an execution target.
package router

import "github.com/viant/hybrid/model"

// Route returns the target for task. Rules are evaluated in a fixed order and
// the first match wins:
//
//  1. system access routes to the operator, or hybrid when multi-step
//  2. multi-step routes to hybrid
//  3. conversation and analysis route to the assistant
//  4. system operation and research route to the operator
//  5. anything else routes to the assistant
//
// Route only reads the task.
func Route(task *model.Task) model.Target {
	if task == nil {
		return model.TargetAssistant
	}
	if task.RequiresSystemAccess {
		if task.RequiresMultiStep {
			return model.TargetHybrid
		}
		return model.TargetOperator
	}
	if task.RequiresMultiStep {
		return model.TargetHybrid
	}
	switch task.Type.Normalize() {
	case model.TypeConversation, model.TypeAnalysis:
		return model.TargetAssistant
	case model.TypeSystemOperation, model.TypeResearch:
		return model.TargetOperator
	}
	return model.TargetAssistant
}
