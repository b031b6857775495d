// Package backend defines the contract every execution or reasoning backend
// satisfies. The orchestrator depends only on Adapter and the error kinds
// declared here; concrete adapters live in sub packages.
package backend
