// Package idgen wraps the UUID generator so that task and run identifiers can
// be stubbed in tests. Callers treat identifiers as opaque strings.
package idgen
