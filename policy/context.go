package policy

import "context"

type ctxKeyT struct{}

var ctxKey ctxKeyT

// WithEngine embeds engine in ctx. Service.Run and the plan gate evaluate it
// instead of the service engine, e.g. for a tenant with stricter guardrails.
// Runs resumed after approval use the engine of the resuming context.
func WithEngine(ctx context.Context, engine *Engine) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxKey, engine)
}

// FromContext extracts an engine embedded with WithEngine.
func FromContext(ctx context.Context) *Engine {
	if ctx == nil {
		return nil
	}
	if v, ok := ctx.Value(ctxKey).(*Engine); ok {
		return v
	}
	return nil
}
