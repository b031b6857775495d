// Package hybrid routes tasks across a reasoning backend (assistant), an
// execution backend with system access (operator) and a staged hybrid
// workflow combining both.
//
// Every submitted task is first evaluated against the registered guardrails,
// then routed, then driven by the orchestrator:
//
//   - policy       – guardrail engine producing allow / block / approval verdicts
//   - router       – deterministic task to target decision
//   - orchestrator – plan, execute, verify state machine with approval gates
//   - approval     – human-in-the-loop decisions for suspended runs
//   - audit        – one event per guardrail evaluation, route and stage
//
// End-users typically interact with the Service façade:
//
//	srv, _ := hybrid.New(
//		hybrid.WithAssistant(assistant),
//		hybrid.WithOperator(operator),
//	)
//	_ = srv.AddGuardrail("no-drop", policy.KindBlock, dropsTable, "destructive SQL is not allowed")
//	result, _ := srv.Run(ctx, model.NewTask("Explain load average"))
//
// A result with status awaiting_approval is continued with Approve, Reject or
// Decide; Listen resumes runs as decisions arrive from other processes.
package hybrid
