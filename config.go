package hybrid

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/viant/afs"
	"github.com/viant/hybrid/backend"
	"github.com/viant/hybrid/model"
	"gopkg.in/yaml.v3"
)

// Config is a serialisable representation of the service configuration. It can
// be populated from YAML, JSON or viper bound flags and environment variables.
// The zero value is usable; DefaultConfig returns the values used by the CLI.
type Config struct {
	Run     model.RunConfig `json:"run" yaml:"run" mapstructure:"run"`
	Retry   backend.Retry   `json:"retry" yaml:"retry" mapstructure:"retry"`
	Limits  LimitConfig     `json:"limits" yaml:"limits" mapstructure:"limits"`
	Policy  PolicyConfig    `json:"policy" yaml:"policy" mapstructure:"policy"`
	Audit   AuditConfig     `json:"audit" yaml:"audit" mapstructure:"audit"`
	Store   StoreConfig     `json:"store" yaml:"store" mapstructure:"store"`
	Tracing TracingConfig   `json:"tracing" yaml:"tracing" mapstructure:"tracing"`
}

// LimitConfig configures the built-in rate and cost limit guardrails. Zero
// disables a limit.
type LimitConfig struct {
	// MaxRuns is the number of submitted tasks allowed within Window, or in
	// total when Window is zero.
	MaxRuns int64         `json:"maxRuns,omitempty" yaml:"maxRuns,omitempty" mapstructure:"max_runs"`
	Window  time.Duration `json:"window,omitempty" yaml:"window,omitempty" mapstructure:"window"`
	// Budget caps accumulated spend plus the estimated cost of the next task.
	Budget float64 `json:"budget,omitempty" yaml:"budget,omitempty" mapstructure:"budget"`
}

// PolicyConfig locates declarative guardrail rules.
type PolicyConfig struct {
	RulesURL string `json:"rulesURL,omitempty" yaml:"rulesURL,omitempty" mapstructure:"rules_url"`
	// Watch reloads rules when the local rules file changes.
	Watch bool `json:"watch,omitempty" yaml:"watch,omitempty" mapstructure:"watch"`
}

// AuditConfig selects audit sinks.
type AuditConfig struct {
	Log    bool   `json:"log,omitempty" yaml:"log,omitempty" mapstructure:"log"`
	SQLite string `json:"sqlite,omitempty" yaml:"sqlite,omitempty" mapstructure:"sqlite"`
}

// StoreConfig selects run persistence; an empty URL keeps runs in memory.
type StoreConfig struct {
	RunURL string `json:"runURL,omitempty" yaml:"runURL,omitempty" mapstructure:"run_url"`
}

// TracingConfig configures the stdout OpenTelemetry exporter.
type TracingConfig struct {
	Enabled     bool   `json:"enabled,omitempty" yaml:"enabled,omitempty" mapstructure:"enabled"`
	ServiceName string `json:"serviceName,omitempty" yaml:"serviceName,omitempty" mapstructure:"service_name"`
	Version     string `json:"version,omitempty" yaml:"version,omitempty" mapstructure:"version"`
	OutputFile  string `json:"outputFile,omitempty" yaml:"outputFile,omitempty" mapstructure:"output_file"`
}

const (
	DefaultServiceName         = "hybrid"
	DefaultMaxParallel         = 4
	DefaultPlanningTimeout     = 2 * time.Minute
	DefaultVerificationTimeout = 2 * time.Minute
)

// DefaultConfig returns a Config populated with the defaults used by the CLI.
// Callers may modify the returned struct before passing it to NewFromConfig.
func DefaultConfig() *Config {
	return &Config{
		Run: model.RunConfig{
			PlanningTimeout:     DefaultPlanningTimeout,
			ExecutionTimeout:    model.DefaultTimeout,
			VerificationTimeout: DefaultVerificationTimeout,
			MaxParallel:         DefaultMaxParallel,
		},
		Retry: backend.Retry{
			Type:       "exponential",
			MaxRetries: backend.DefaultMaxRetries,
			Delay:      backend.DefaultRetryDelay,
		},
		Tracing: TracingConfig{ServiceName: DefaultServiceName},
	}
}

// Validate returns aggregated error describing invalid settings or nil.
func (c *Config) Validate() error {
	if c == nil {
		return nil
	}
	var problems []string
	if c.Run.MaxParallel < 0 {
		problems = append(problems, "run.maxParallel must be >= 0")
	}
	if c.Run.PlanningTimeout < 0 || c.Run.ExecutionTimeout < 0 || c.Run.VerificationTimeout < 0 {
		problems = append(problems, "run timeouts must be >= 0")
	}
	switch strings.ToLower(c.Retry.Type) {
	case "", "fixed", "exponential", "none":
	default:
		problems = append(problems, fmt.Sprintf("retry.type %q is not supported", c.Retry.Type))
	}
	if c.Retry.MaxRetries < 0 || c.Retry.Delay < 0 {
		problems = append(problems, "retry.maxRetries and retry.delay must be >= 0")
	}
	if c.Limits.MaxRuns < 0 || c.Limits.Window < 0 || c.Limits.Budget < 0 {
		problems = append(problems, "limits must be >= 0")
	}
	if c.Policy.Watch && c.Policy.RulesURL == "" {
		problems = append(problems, "policy.watch requires policy.rulesURL")
	}
	if c.Tracing.Enabled && c.Tracing.ServiceName == "" {
		problems = append(problems, "tracing.serviceName must be set when tracing is enabled")
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid config: %s", strings.Join(problems, "; "))
	}
	return nil
}

// LoadConfig reads a YAML config from any afs supported URL on top of DefaultConfig.
func LoadConfig(ctx context.Context, URL string) (*Config, error) {
	data, err := afs.New().DownloadWithURL(ctx, URL)
	if err != nil {
		return nil, fmt.Errorf("failed to load config %v: %w", URL, err)
	}
	ret := DefaultConfig()
	if err = yaml.Unmarshal(data, ret); err != nil {
		return nil, fmt.Errorf("failed to decode config %v: %w", URL, err)
	}
	if err = ret.Validate(); err != nil {
		return nil, err
	}
	return ret, nil
}
