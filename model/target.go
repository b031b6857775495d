package model

// Target identifies where a task is executed.
type Target string

const (
	// TargetAssistant is the reasoning backend: conversation, planning, analysis.
	TargetAssistant Target = "assistant"
	// TargetOperator is the execution-capable backend with system access.
	TargetOperator Target = "operator"
	// TargetHybrid runs plan -> execute -> verify across both backends.
	TargetHybrid Target = "hybrid"
)
