// Package approval implements the human-in-the-loop layer for runs suspended
// by approval guardrails. A request is raised per triggered guardrail; an
// explicit decision approves or rejects it.
package approval
