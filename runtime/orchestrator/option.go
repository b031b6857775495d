package orchestrator

import (
	"github.com/viant/hybrid/backend"
	"github.com/viant/hybrid/model"
	"github.com/viant/hybrid/policy"
	"github.com/viant/hybrid/service/approval"
	"github.com/viant/hybrid/service/audit"
	"github.com/viant/hybrid/service/dao"
	"github.com/viant/hybrid/service/metrics"
)

// Option configures an Orchestrator.
type Option func(o *Orchestrator)

// WithAssistant sets the planning and verification backend.
func WithAssistant(adapter backend.Adapter) Option {
	return func(o *Orchestrator) {
		o.assistant = adapter
	}
}

// WithOperator sets the execution backend.
func WithOperator(adapter backend.Adapter) Option {
	return func(o *Orchestrator) {
		o.operator = adapter
	}
}

// WithEngine sets the guardrail engine consulted at the approval gate.
func WithEngine(engine *policy.Engine) Option {
	return func(o *Orchestrator) {
		o.engine = engine
	}
}

// WithApprovalService sets the service receiving approval requests.
func WithApprovalService(service approval.Service) Option {
	return func(o *Orchestrator) {
		o.approvals = service
	}
}

// WithRunDAO sets run persistence.
func WithRunDAO(runs dao.Service[string, model.Run]) Option {
	return func(o *Orchestrator) {
		o.runs = runs
	}
}

// WithAuditSink sets the audit sink.
func WithAuditSink(sink audit.Sink) Option {
	return func(o *Orchestrator) {
		o.audit = sink
	}
}

// WithMetrics sets the metrics sink updated on run outcomes.
func WithMetrics(sink metrics.Sink) Option {
	return func(o *Orchestrator) {
		o.metrics = sink
	}
}

// WithRunConfig sets defaults applied to runs leaving fields unset.
func WithRunConfig(config model.RunConfig) Option {
	return func(o *Orchestrator) {
		o.config = config
	}
}
