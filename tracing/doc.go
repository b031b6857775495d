// Package tracing wraps OpenTelemetry so that routing, guardrail gates and
// run stages can be traced without importing the upstream packages directly.
// Spans are no-op until Init or InitWithExporter installs a provider.
package tracing
