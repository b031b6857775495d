// Package ollama provides an assistant backend served by a local or remote
// Ollama instance.
package ollama

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/ollama/ollama/api"
	"github.com/viant/hybrid/backend"
)

// Name identifies the backend in stage records.
const Name = "ollama"

const defaultModel = "llama3.1"

// Config represents ollama backend configuration
type Config struct {
	// Host overrides OLLAMA_HOST, e.g. http://127.0.0.1:11434.
	Host  string `json:"host,omitempty" yaml:"host,omitempty" mapstructure:"host"`
	Model string `json:"model,omitempty" yaml:"model,omitempty" mapstructure:"model"`
	// Temperature is passed as a model option when set.
	Temperature float64 `json:"temperature,omitempty" yaml:"temperature,omitempty" mapstructure:"temperature"`
}

// Adapter answers prompts with an Ollama model.
type Adapter struct {
	client *api.Client
	config Config
}

// New creates an adapter.
func New(cfg Config) (*Adapter, error) {
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	var client *api.Client
	if cfg.Host != "" {
		base, err := url.Parse(cfg.Host)
		if err != nil {
			return nil, fmt.Errorf("invalid ollama host %v: %w", cfg.Host, err)
		}
		client = api.NewClient(base, http.DefaultClient)
	} else {
		var err error
		if client, err = api.ClientFromEnvironment(); err != nil {
			return nil, fmt.Errorf("failed to create ollama client: %w", err)
		}
	}
	return &Adapter{client: client, config: cfg}, nil
}

// Name returns the backend name.
func (a *Adapter) Name() string {
	return Name
}

// Invoke generates a single, non streamed completion.
func (a *Adapter) Invoke(ctx context.Context, request *backend.Request) (*backend.Response, error) {
	stream := false
	generateRequest := &api.GenerateRequest{
		Model:  a.config.Model,
		System: backend.Instruction(request),
		Prompt: backend.Prompt(request),
		Stream: &stream,
	}
	if a.config.Temperature > 0 {
		generateRequest.Options = map[string]interface{}{"temperature": a.config.Temperature}
	}
	var text strings.Builder
	err := a.client.Generate(ctx, generateRequest, func(response api.GenerateResponse) error {
		text.WriteString(response.Response)
		return nil
	})
	if err != nil {
		return nil, classify(err)
	}
	return backend.TextResponse(request, strings.TrimSpace(text.String()), 0), nil
}

// classify maps client failures onto backend error kinds.
func classify(err error) error {
	var statusErr api.StatusError
	if errors.As(err, &statusErr) {
		switch {
		case statusErr.StatusCode == http.StatusNotFound:
			return &backend.Error{Kind: backend.KindPermanent, Message: "model not found", Err: err}
		case statusErr.StatusCode == http.StatusTooManyRequests, statusErr.StatusCode >= http.StatusInternalServerError:
			return backend.Transient(err)
		}
		return backend.Permanent(err)
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return backend.Permanent(err)
	}
	// connection failures, the server may still be starting
	return backend.Transient(err)
}
