// Package model contains the serialisable representation of tasks, runs and
// their results shared by the router, the guardrail engine and the
// orchestrator.
//
// A Task is submitted by the caller, a Run records its routed execution as an
// append-only list of stages and a Result is what the caller gets back. Task
// status and run state transitions are validated here so every package moves
// them the same way.
package model
