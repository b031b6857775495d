package backend

import "context"

// Request is the envelope passed to a backend.
type Request struct {
	// Prompt is a natural-language prompt or a command, depending on the backend.
	Prompt  string                 `json:"prompt"`
	Context map[string]interface{} `json:"context,omitempty"`
}

// Response is the envelope returned by a backend.
type Response struct {
	Output interface{} `json:"output,omitempty"`
	// Passed is set by verification-capable backends to report an explicit
	// success or failure verdict.
	Passed *bool   `json:"passed,omitempty"`
	Cost   float64 `json:"cost,omitempty"`
}

// Adapter invokes a backend.
type Adapter interface {
	Invoke(ctx context.Context, request *Request) (*Response, error)
}

// Named is implemented by adapters that report a name for stage records.
type Named interface {
	Name() string
}

// Func adapts a function to Adapter.
type Func func(ctx context.Context, request *Request) (*Response, error)

// Invoke calls f.
func (f Func) Invoke(ctx context.Context, request *Request) (*Response, error) {
	return f(ctx, request)
}

// NameOf returns the adapter name, or fallback when the adapter is unnamed.
func NameOf(adapter Adapter, fallback string) string {
	if named, ok := adapter.(Named); ok && named.Name() != "" {
		return named.Name()
	}
	return fallback
}

// Passed returns a pointer to v, used to set Response.Passed.
func Passed(v bool) *bool {
	return &v
}
