package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/hybrid/backend/shell"
)

func TestLoadConfig(t *testing.T) {
	testCases := []struct {
		description string
		content     string
		env         map[string]string
		expectErr   bool
		check       func(t *testing.T, cfg *Config)
	}{
		{
			description: "defaults",
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, providerClaude, cfg.Assistant.Provider)
				assert.Equal(t, shell.LocalURL, cfg.Operator.URL)
				assert.Equal(t, 2*time.Minute, cfg.Run.PlanningTimeout)
				assert.Equal(t, 4, cfg.Run.MaxParallel)
				assert.Equal(t, "exponential", cfg.Retry.Type)
				assert.Equal(t, 3, cfg.Retry.MaxRetries)
			},
		},
		{
			description: "file",
			content: `assistant:
  provider: ollama
  ollama:
    model: qwen2.5
operator:
  url: ssh://build-host:22/
  credentials: ~/.secret/build.json
run:
  execution: 90s
  max_parallel: 8
limits:
  max_runs: 5
  budget: 1.5
audit:
  sqlite: /tmp/hybrid-audit.db
`,
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, providerOllama, cfg.Assistant.Provider)
				assert.Equal(t, "qwen2.5", cfg.Assistant.Ollama.Model)
				assert.Equal(t, "ssh://build-host:22/", cfg.Operator.URL)
				assert.Equal(t, "~/.secret/build.json", cfg.Operator.Credentials)
				assert.Equal(t, 90*time.Second, cfg.Run.ExecutionTimeout)
				assert.Equal(t, 8, cfg.Run.MaxParallel)
				assert.Equal(t, int64(5), cfg.Limits.MaxRuns)
				assert.Equal(t, 1.5, cfg.Limits.Budget)
				assert.Equal(t, "/tmp/hybrid-audit.db", cfg.Audit.SQLite)
			},
		},
		{
			description: "environment",
			env:         map[string]string{"HYBRID_ASSISTANT_PROVIDER": "ollama", "ANTHROPIC_API_KEY": "secret"},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, providerOllama, cfg.Assistant.Provider)
				assert.Equal(t, "secret", cfg.Assistant.Claude.APIKey)
			},
		},
		{
			description: "unsupported provider",
			content:     "assistant:\n  provider: gpt\n",
			expectErr:   true,
		},
		{
			description: "invalid retry",
			content:     "retry:\n  type: linear\n",
			expectErr:   true,
		},
	}

	for _, testCase := range testCases {
		t.Run(testCase.description, func(t *testing.T) {
			for k, v := range testCase.env {
				t.Setenv(k, v)
			}
			path := ""
			if testCase.content != "" {
				path = filepath.Join(t.TempDir(), "hybrid.yaml")
				require.NoError(t, os.WriteFile(path, []byte(testCase.content), 0o644))
			}
			cfg, err := loadConfig(viper.New(), path)
			if testCase.expectErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			testCase.check(t, cfg)
		})
	}
}
