// Package orchestrator drives a routed run through its stages.
//
// Hybrid runs move PLANNING -> EXECUTING -> VERIFYING and end COMPLETED or
// FAILED. Between planning and execution the guardrail engine re-evaluates
// the task augmented with the plan; a block fails the run, an approval
// suspends it in AWAITING_APPROVAL until Resume, Decide or Reject. Single
// target runs record one execution stage on the routed backend.
//
// Every transition appends to the run's stage list, emits an audit event and
// a tracing span, and persists the run. Cancellation is cooperative: an
// in-flight backend call finishes but no further stage starts.
package orchestrator
