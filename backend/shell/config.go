package shell

import (
	"time"

	"github.com/viant/afs/url"
)

const (
	// LocalURL runs commands on the local host.
	LocalURL           = "bash://localhost/"
	defaultTimeout     = time.Minute
	defaultMaxSessions = 4
)

// Config represents operator backend configuration
type Config struct {
	// URL selects the host, bash://localhost/ for local or ssh://host:port/ for remote execution.
	URL string `json:"url,omitempty" yaml:"url,omitempty" mapstructure:"url"`
	// Credentials is a scy secret resource holding ssh credentials.
	Credentials string            `json:"credentials,omitempty" yaml:"credentials,omitempty" mapstructure:"credentials"`
	Workdir     string            `json:"workdir,omitempty" yaml:"workdir,omitempty" mapstructure:"workdir"`
	Env         map[string]string `json:"env,omitempty" yaml:"env,omitempty" mapstructure:"env"`
	// Timeout bounds each command.
	Timeout time.Duration `json:"timeout,omitempty" yaml:"timeout,omitempty" mapstructure:"timeout"`
	// MaxSessions caps the idle shell sessions kept for reuse, default 4.
	// Concurrent invocations beyond it open short-lived sessions.
	MaxSessions int `json:"maxSessions,omitempty" yaml:"maxSessions,omitempty" mapstructure:"max_sessions"`
	// AbortOnError stops at the first command with a non zero status, default true.
	AbortOnError *bool `json:"abortOnError,omitempty" yaml:"abortOnError,omitempty" mapstructure:"abort_on_error"`
}

// Init fills defaults.
func (c *Config) Init() {
	if c.URL == "" {
		c.URL = LocalURL
	}
	if c.Timeout == 0 {
		c.Timeout = defaultTimeout
	}
	if c.MaxSessions <= 0 {
		c.MaxSessions = defaultMaxSessions
	}
}

// IsLocal reports whether commands run on the local host.
func (c *Config) IsLocal() bool {
	return url.Host(c.URL) == "localhost"
}

func (c *Config) abortOnError() bool {
	if c.AbortOnError == nil {
		return true
	}
	return *c.AbortOnError
}
