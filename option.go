package hybrid

import (
	"log"

	"github.com/viant/hybrid/backend"
	"github.com/viant/hybrid/model"
	"github.com/viant/hybrid/policy"
	"github.com/viant/hybrid/service/approval"
	"github.com/viant/hybrid/service/audit"
	"github.com/viant/hybrid/service/dao"
	"github.com/viant/hybrid/service/metrics"
	"github.com/viant/hybrid/tracing"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// Option configures a Service.
type Option func(s *Service)

// WithAssistant sets the reasoning backend used for conversation, planning and verification.
func WithAssistant(adapter backend.Adapter) Option {
	return func(s *Service) {
		s.assistant = adapter
	}
}

// WithOperator sets the execution backend with system access.
func WithOperator(adapter backend.Adapter) Option {
	return func(s *Service) {
		s.operator = adapter
	}
}

// WithRetry wraps both backends with transient failure retries.
func WithRetry(retry backend.Retry) Option {
	return func(s *Service) {
		s.retry = &retry
	}
}

// WithEngine sets the guardrail engine, replacing the default empty one.
func WithEngine(engine *policy.Engine) Option {
	return func(s *Service) {
		s.engine = engine
	}
}

// WithGuardrails registers guardrails in the given order.
func WithGuardrails(guardrails ...*policy.Guardrail) Option {
	return func(s *Service) {
		s.guardrails = append(s.guardrails, guardrails...)
	}
}

// WithApprovalService sets the approval service
func WithApprovalService(svc approval.Service) Option {
	return func(s *Service) { s.approvals = svc }
}

// WithRunDAO sets the run persistence
func WithRunDAO(runs dao.Service[string, model.Run]) Option {
	return func(s *Service) {
		s.runs = runs
	}
}

// WithAuditSink adds audit sinks; every sink receives every event.
func WithAuditSink(sinks ...audit.Sink) Option {
	return func(s *Service) {
		s.sinks = append(s.sinks, sinks...)
	}
}

// WithMetrics sets the tracker backing rate and cost limits and run counters.
func WithMetrics(tracker *metrics.Tracker) Option {
	return func(s *Service) {
		s.tracker = tracker
	}
}

// WithMetricsSink adds a sink receiving every counter change.
func WithMetricsSink(sink metrics.Sink) Option {
	return func(s *Service) {
		s.metricSinks = append(s.metricSinks, sink)
	}
}

// WithRunConfig sets per-run defaults: stage timeouts and execution parallelism.
func WithRunConfig(config model.RunConfig) Option {
	return func(s *Service) {
		s.runConfig = config
	}
}

// WithTracing exports task, run and stage spans as JSON to outputFile, or to
// stdout when outputFile is empty.
func WithTracing(serviceName, serviceVersion, outputFile string) Option {
	return func(s *Service) {
		if err := tracing.Init(serviceName, serviceVersion, outputFile); err != nil {
			log.Printf("hybrid: tracing disabled: %v", err)
		}
	}
}

// WithTracingExporter exports spans through exporter instead of stdout.
func WithTracingExporter(serviceName, serviceVersion string, exporter sdktrace.SpanExporter) Option {
	return func(s *Service) {
		if err := tracing.InitWithExporter(serviceName, serviceVersion, exporter); err != nil {
			log.Printf("hybrid: tracing disabled: %v", err)
		}
	}
}
