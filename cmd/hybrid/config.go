package main

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
	"github.com/viant/hybrid"
	"github.com/viant/hybrid/backend/claude"
	"github.com/viant/hybrid/backend/ollama"
	"github.com/viant/hybrid/backend/shell"
)

const (
	providerClaude = "claude"
	providerOllama = "ollama"
	envPrefix      = "HYBRID"
)

// Config holds the CLI configuration: the service settings plus the backends.
type Config struct {
	hybrid.Config `mapstructure:",squash"`
	Assistant     AssistantConfig `mapstructure:"assistant"`
	Operator      shell.Config    `mapstructure:"operator"`
}

// AssistantConfig selects and configures the reasoning backend.
type AssistantConfig struct {
	Provider string        `mapstructure:"provider"`
	Claude   claude.Config `mapstructure:"claude"`
	Ollama   ollama.Config `mapstructure:"ollama"`
}

// loadConfig reads the config file, when given, on top of the defaults.
// Environment variables override both, e.g. HYBRID_ASSISTANT_PROVIDER.
func loadConfig(v *viper.Viper, path string) (*Config, error) {
	setDefaults(v)
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config from %s: %w", path, err)
		}
	}
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("assistant.claude.api_key", "ANTHROPIC_API_KEY")

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	switch cfg.Assistant.Provider {
	case providerClaude, providerOllama:
	default:
		return nil, fmt.Errorf("unsupported assistant provider %q", cfg.Assistant.Provider)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	defaults := hybrid.DefaultConfig()
	v.SetDefault("run.planning", defaults.Run.PlanningTimeout.String())
	v.SetDefault("run.execution", defaults.Run.ExecutionTimeout.String())
	v.SetDefault("run.verification", defaults.Run.VerificationTimeout.String())
	v.SetDefault("run.max_parallel", defaults.Run.MaxParallel)
	v.SetDefault("retry.type", defaults.Retry.Type)
	v.SetDefault("retry.maxretries", defaults.Retry.MaxRetries)
	v.SetDefault("retry.delay", defaults.Retry.Delay.String())
	v.SetDefault("tracing.service_name", defaults.Tracing.ServiceName)
	v.SetDefault("assistant.provider", providerClaude)
	v.SetDefault("operator.url", shell.LocalURL)
}
