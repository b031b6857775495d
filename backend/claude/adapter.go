// Package claude provides an assistant backend over the Anthropic Messages API,
// called directly or through AWS Bedrock.
package claude

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/bedrock"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/viant/hybrid/backend"
)

// Name identifies the backend in stage records.
const Name = "claude"

const defaultMaxTokens = 4096

// Config contains configuration for creating an Adapter.
type Config struct {
	Model     string `json:"model,omitempty" yaml:"model,omitempty" mapstructure:"model"`
	APIKey    string `json:"apiKey,omitempty" yaml:"apiKey,omitempty" mapstructure:"api_key"`
	MaxTokens int64  `json:"maxTokens,omitempty" yaml:"maxTokens,omitempty" mapstructure:"max_tokens"`
	// UseBedrock routes calls through AWS Bedrock instead of the direct API.
	UseBedrock bool   `json:"useBedrock,omitempty" yaml:"useBedrock,omitempty" mapstructure:"use_bedrock"`
	AWSRegion  string `json:"awsRegion,omitempty" yaml:"awsRegion,omitempty" mapstructure:"aws_region"`
	AWSProfile string `json:"awsProfile,omitempty" yaml:"awsProfile,omitempty" mapstructure:"aws_profile"`
	// InputPrice and OutputPrice are USD per million tokens, used to report cost.
	InputPrice  float64 `json:"inputPrice,omitempty" yaml:"inputPrice,omitempty" mapstructure:"input_price"`
	OutputPrice float64 `json:"outputPrice,omitempty" yaml:"outputPrice,omitempty" mapstructure:"output_price"`
	// ClientRetries is the number of retries the Anthropic client performs on
	// its own. Zero leaves retrying to backend.WithRetry.
	ClientRetries int `json:"clientRetries,omitempty" yaml:"clientRetries,omitempty" mapstructure:"client_retries"`
}

// Adapter answers prompts with Claude.
type Adapter struct {
	inner     anthropic.Client
	model     anthropic.Model
	maxTokens int64
	config    Config
}

// New creates an adapter. Extra request options are appended after the
// credential and retry options.
func New(ctx context.Context, cfg Config, opts ...option.RequestOption) (*Adapter, error) {
	var requestOptions []option.RequestOption
	if cfg.UseBedrock {
		var loadOpts []func(*config.LoadOptions) error
		if cfg.AWSRegion != "" {
			loadOpts = append(loadOpts, config.WithRegion(cfg.AWSRegion))
		}
		if cfg.AWSProfile != "" {
			loadOpts = append(loadOpts, config.WithSharedConfigProfile(cfg.AWSProfile))
		}
		requestOptions = append(requestOptions, bedrock.WithLoadDefaultConfig(ctx, loadOpts...))
	} else {
		apiKey := cfg.APIKey
		if apiKey == "" {
			apiKey = os.Getenv("ANTHROPIC_API_KEY")
		}
		if apiKey == "" {
			return nil, fmt.Errorf("ANTHROPIC_API_KEY environment variable is not set")
		}
		requestOptions = append(requestOptions, option.WithAPIKey(apiKey))
	}
	requestOptions = append(requestOptions, option.WithMaxRetries(cfg.ClientRetries))
	requestOptions = append(requestOptions, opts...)

	model := anthropic.Model(cfg.Model)
	if model == "" {
		model = anthropic.ModelClaudeSonnet4_20250514
	}
	if cfg.UseBedrock {
		model = bedrockModel(model)
	}
	maxTokens := cfg.MaxTokens
	if maxTokens == 0 {
		maxTokens = defaultMaxTokens
	}
	if cfg.InputPrice == 0 && cfg.OutputPrice == 0 {
		cfg.InputPrice, cfg.OutputPrice = 3.0, 15.0
	}
	return &Adapter{
		inner:     anthropic.NewClient(requestOptions...),
		model:     model,
		maxTokens: maxTokens,
		config:    cfg,
	}, nil
}

// bedrockModel converts Anthropic model names to Bedrock inference profiles.
func bedrockModel(model anthropic.Model) anthropic.Model {
	profiles := map[anthropic.Model]string{
		anthropic.ModelClaudeSonnet4_20250514:   "us.anthropic.claude-sonnet-4-20250514-v1:0",
		anthropic.ModelClaudeSonnet4_5_20250929: "us.anthropic.claude-sonnet-4-5-20250929-v1:0",
		anthropic.ModelClaudeHaiku4_5_20251001:  "us.anthropic.claude-haiku-4-5-20251001-v1:0",
		anthropic.ModelClaudeOpus4_1_20250805:   "us.anthropic.claude-opus-4-1-20250805-v1:0",
	}
	if profile, ok := profiles[model]; ok {
		return anthropic.Model(profile)
	}
	return model
}

// Name returns the backend name.
func (a *Adapter) Name() string {
	return Name
}

// Model returns the configured model.
func (a *Adapter) Model() string {
	return string(a.model)
}

// Invoke sends the request as a single user message.
func (a *Adapter) Invoke(ctx context.Context, request *backend.Request) (*backend.Response, error) {
	resp, err := a.inner.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     a.model,
		MaxTokens: a.maxTokens,
		System: []anthropic.TextBlockParam{
			{Text: backend.Instruction(request)},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(backend.Prompt(request))),
		},
	})
	if err != nil {
		return nil, classify(err)
	}
	if resp.StopReason == "refusal" {
		return nil, backend.Refused("model %v refused the request", a.model)
	}
	var text strings.Builder
	for _, block := range resp.Content {
		if variant, ok := block.AsAny().(anthropic.TextBlock); ok {
			text.WriteString(variant.Text)
		}
	}
	cost := float64(resp.Usage.InputTokens)/1_000_000*a.config.InputPrice +
		float64(resp.Usage.OutputTokens)/1_000_000*a.config.OutputPrice
	return backend.TextResponse(request, strings.TrimSpace(text.String()), cost), nil
}

// classify maps API failures onto backend error kinds.
func classify(err error) error {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.StatusCode == http.StatusTooManyRequests, apiErr.StatusCode >= http.StatusInternalServerError:
			return backend.Transient(err)
		case apiErr.StatusCode == http.StatusForbidden:
			return &backend.Error{Kind: backend.KindRefused, Message: "access denied", Err: err}
		}
		return backend.Permanent(err)
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return backend.Permanent(err)
	}
	return backend.Transient(err)
}
