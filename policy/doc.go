// Package policy provides guardrails: named predicates evaluated against a
// task before routing and again at approval gates during a hybrid run. The
// Engine is stateless apart from its registration list, so it can be shared
// by any number of concurrent runs.
package policy
