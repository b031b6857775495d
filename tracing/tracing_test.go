package tracing

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestSpans(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	require.NoError(t, InitWithExporter("hybrid", "0.0.1", exporter))

	ctx, run := StartSpan(context.Background(), "run", KindInternal)
	run.WithAttributes(map[string]string{AttrRunID: "r1", AttrTaskID: "t1", AttrTarget: ""})
	_, found := SpanFromContext(ctx)
	assert.True(t, found)

	_, planning := StartSpan(ctx, "stage planning", KindClient)
	EndSpan(planning, errors.New("backend refused"))

	_, gate := StartSpan(ctx, "gate", "unknown")
	gate.Guardrail("block_destructive", "block", true)
	gate.Fail("Destructive operation blocked")
	EndSpan(gate, nil)
	EndSpan(run, nil)

	spans := exporter.GetSpans()
	require.Len(t, spans, 3)

	testCases := []struct {
		name   string
		code   codes.Code
		parent bool
	}{
		{name: "stage planning", code: codes.Error, parent: true},
		{name: "gate", code: codes.Error, parent: true},
		{name: "run", code: codes.Ok, parent: false},
	}
	for i, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			span := spans[i]
			assert.Equal(t, tc.name, span.Name)
			assert.Equal(t, tc.code, span.Status.Code)
			assert.Equal(t, tc.parent, span.Parent.IsValid())
		})
	}
	assert.Len(t, spans[1].Events, 1)

	_, ok := SpanFromContext(context.Background())
	assert.False(t, ok)
	EndSpan(nil, nil)
}
