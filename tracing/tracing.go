package tracing

import (
	"context"
	"io"
	"os"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

const instrumentation = "github.com/viant/hybrid"

// Span kinds accepted by StartSpan.
const (
	KindInternal = "INTERNAL"
	KindClient   = "CLIENT"
	KindServer   = "SERVER"
	KindProducer = "PRODUCER"
	KindConsumer = "CONSUMER"
)

// Attribute keys shared by instrumented packages.
const (
	AttrRunID     = "run.id"
	AttrTaskID    = "task.id"
	AttrTarget    = "run.target"
	AttrStage     = "stage.kind"
	AttrBackend   = "stage.backend"
	AttrGuardrail = "guardrail.name"
	AttrDecision  = "guardrail.decision"
	AttrTriggered = "guardrail.triggered"
)

// Init installs a provider exporting spans as JSON lines to outputFile, or to
// stdout when outputFile is empty. Only the first call in a process applies.
func Init(serviceName, serviceVersion, outputFile string) error {
	var w io.Writer = os.Stdout
	if outputFile != "" {
		f, err := os.Create(outputFile)
		if err != nil {
			return err
		}
		w = f
	}
	exporter, err := stdouttrace.New(stdouttrace.WithWriter(w))
	if err != nil {
		return err
	}
	return installProvider(serviceName, serviceVersion, exporter)
}

// InitWithExporter installs a provider around exporter, e.g. an in-memory
// exporter in tests. Only the first call in a process applies.
func InitWithExporter(serviceName, serviceVersion string, exporter sdktrace.SpanExporter) error {
	return installProvider(serviceName, serviceVersion, exporter)
}

var (
	providerOnce sync.Once
	providerErr  error
)

func installProvider(serviceName, serviceVersion string, exporter sdktrace.SpanExporter) error {
	if exporter == nil {
		return nil
	}
	providerOnce.Do(func() {
		res, err := resource.New(context.Background(),
			resource.WithAttributes(
				attribute.String("service.name", serviceName),
				attribute.String("service.version", serviceVersion),
			),
		)
		if err != nil {
			providerErr = err
			return
		}
		tp := sdktrace.NewTracerProvider(
			sdktrace.WithSpanProcessor(sdktrace.NewSimpleSpanProcessor(exporter)),
			sdktrace.WithResource(res),
		)
		otel.SetTracerProvider(tp)
	})
	return providerErr
}

// Span is a run, stage or operation span.
type Span struct {
	span trace.Span
}

var spanKinds = map[string]trace.SpanKind{
	KindInternal: trace.SpanKindInternal,
	KindClient:   trace.SpanKindClient,
	KindServer:   trace.SpanKindServer,
	KindProducer: trace.SpanKindProducer,
	KindConsumer: trace.SpanKindConsumer,
}

// attributes converts string pairs, skipping empty values.
func attributes(attrs map[string]string) []attribute.KeyValue {
	ret := make([]attribute.KeyValue, 0, len(attrs))
	for k, v := range attrs {
		if v == "" {
			continue
		}
		ret = append(ret, attribute.String(k, v))
	}
	return ret
}

// WithAttributes attaches the non-empty attrs to the span.
func (s *Span) WithAttributes(attrs map[string]string) *Span {
	if s == nil || len(attrs) == 0 {
		return s
	}
	s.span.SetAttributes(attributes(attrs)...)
	return s
}

// AddEvent records a named point-in-time event on the span.
func (s *Span) AddEvent(name string, attrs map[string]string) {
	if s == nil {
		return
	}
	s.span.AddEvent(name, trace.WithAttributes(attributes(attrs)...))
}

// Guardrail records one guardrail evaluation as a span event.
func (s *Span) Guardrail(name, decision string, triggered bool) {
	if s == nil {
		return
	}
	s.span.AddEvent("guardrail", trace.WithAttributes(
		attribute.String(AttrGuardrail, name),
		attribute.String(AttrDecision, decision),
		attribute.Bool(AttrTriggered, triggered),
	))
}

// SetStatus records err on the span, or OK when err is nil.
func (s *Span) SetStatus(err error) {
	if s == nil {
		return
	}
	if err == nil {
		s.span.SetStatus(codes.Ok, "")
		return
	}
	s.span.RecordError(err)
	s.span.SetStatus(codes.Error, err.Error())
}

// Fail marks the span as failed for an outcome that is not a Go error, such
// as a guardrail block or a rejected approval.
func (s *Span) Fail(reason string) {
	if s == nil {
		return
	}
	s.span.SetStatus(codes.Error, reason)
}

// StartSpan starts a child span of whatever ctx carries; unknown kinds map to INTERNAL.
func StartSpan(ctx context.Context, name, kind string) (context.Context, *Span) {
	spanKind, ok := spanKinds[kind]
	if !ok {
		spanKind = trace.SpanKindInternal
	}
	parent := trace.SpanFromContext(ctx).SpanContext()
	ctx, span := otel.Tracer(instrumentation).Start(ctx, name, trace.WithSpanKind(spanKind))
	if parent.IsValid() {
		span.SetAttributes(
			attribute.String("parent.trace_id", parent.TraceID().String()),
			attribute.String("parent.span_id", parent.SpanID().String()),
		)
	}
	return ctx, &Span{span: span}
}

// EndSpan records status from err and ends the span.
func EndSpan(sp *Span, err error) {
	if sp == nil {
		return
	}
	if err != nil || !sp.failed() {
		sp.SetStatus(err)
	}
	sp.span.End()
}

func (s *Span) failed() bool {
	if ro, ok := s.span.(sdktrace.ReadOnlySpan); ok {
		return ro.Status().Code == codes.Error
	}
	return false
}

// SpanFromContext returns the current span.
func SpanFromContext(ctx context.Context) (*Span, bool) {
	sp := trace.SpanFromContext(ctx)
	if !sp.SpanContext().IsValid() {
		return nil, false
	}
	return &Span{span: sp}, true
}
