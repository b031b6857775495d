// Package shell provides the operator backend: prompts are treated as shell
// commands executed locally or over ssh.
package shell

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/viant/afs/url"
	"github.com/viant/gosh"
	"github.com/viant/gosh/runner"
	"github.com/viant/gosh/runner/local"
	rssh "github.com/viant/gosh/runner/ssh"
	"github.com/viant/hybrid/backend"
	"github.com/viant/scy/cred/secret"
	"golang.org/x/crypto/ssh"
)

// Name identifies the operator backend in stage records.
const Name = "shell"

// ContextCommands may carry a []string of commands overriding the prompt.
const ContextCommands = "commands"

// Session runs commands; *gosh.Service satisfies it.
type Session interface {
	Run(ctx context.Context, command string, options ...runner.Option) (string, int, error)
	Close() error
}

// SessionFactory opens a session for the configured host.
type SessionFactory func(ctx context.Context, config *Config) (Session, error)

// Adapter executes commands through gosh. A session is a single shell whose
// output stream cannot be shared, so each Invoke borrows a session for its
// whole command sequence; up to Config.MaxSessions idle sessions are reused.
type Adapter struct {
	config  Config
	factory SessionFactory
	mux     sync.Mutex
	idle    []Session
	closed  bool
}

// Option configures the adapter.
type Option func(a *Adapter)

// WithSessionFactory replaces the gosh session factory.
func WithSessionFactory(factory SessionFactory) Option {
	return func(a *Adapter) {
		a.factory = factory
	}
}

// New creates an operator adapter.
func New(config Config, opts ...Option) *Adapter {
	config.Init()
	ret := &Adapter{config: config, factory: newSession}
	for _, opt := range opts {
		opt(ret)
	}
	return ret
}

// Name returns the backend name.
func (a *Adapter) Name() string {
	return Name
}

// Invoke runs every command in the request. A command exiting with a non zero
// status fails the invocation with a permanent error carrying its stderr.
func (a *Adapter) Invoke(ctx context.Context, request *backend.Request) (*backend.Response, error) {
	commands := Commands(request)
	if len(commands) == 0 {
		return nil, backend.Refused("no command to execute")
	}
	session, err := a.acquire(ctx)
	if err != nil {
		return nil, backend.Transient(fmt.Errorf("failed to get session: %w", err))
	}
	output := a.execute(ctx, session, commands)
	a.release(session)
	response := &backend.Response{Output: output, Passed: backend.Passed(output.Status == 0)}
	if output.Status != 0 {
		last := output.Commands[len(output.Commands)-1]
		return response, &backend.Error{
			Kind:    backend.KindPermanent,
			Message: fmt.Sprintf("command %q exited with status %d: %s", last.Input, last.Status, strings.TrimSpace(last.Stderr)),
		}
	}
	return response, nil
}

func (a *Adapter) execute(ctx context.Context, session Session, commands []string) *Output {
	output := &Output{}
	var combinedStdout, combinedStderr strings.Builder
	for _, cmd := range commands {
		command := &Command{Input: cmd}
		command.Output, command.Stderr, command.Status = a.executeCommand(ctx, session, cmd)
		output.Commands = append(output.Commands, command)
		if command.Output != "" {
			combinedStdout.WriteString(command.Output)
			combinedStdout.WriteString("\n")
		}
		if command.Stderr != "" {
			combinedStderr.WriteString(command.Stderr)
			combinedStderr.WriteString("\n")
		}
		output.Status = command.Status
		if a.config.abortOnError() && command.Status != 0 {
			break
		}
	}
	output.Stdout = strings.TrimSpace(combinedStdout.String())
	output.Stderr = strings.TrimSpace(combinedStderr.String())
	return output
}

// executeCommand runs a single command and returns stdout, stderr and status
func (a *Adapter) executeCommand(ctx context.Context, session Session, command string) (string, string, int) {
	started := time.Now()
	stdout, status, err := session.Run(ctx, command, runner.WithTimeout(int(a.config.Timeout.Milliseconds())))
	if elapsed := time.Since(started); elapsed > a.config.Timeout && err == nil {
		err = fmt.Errorf("command %v timed out after: %s", command, elapsed)
	}
	if err != nil && status == 0 {
		status = -1
	}
	if status == 0 {
		return stdout, "", status
	}
	if stdout == "" && err != nil {
		stdout = err.Error()
	}
	return "", stdout, status
}

// acquire takes an idle session or opens a new one.
func (a *Adapter) acquire(ctx context.Context) (Session, error) {
	a.mux.Lock()
	if count := len(a.idle); count > 0 {
		session := a.idle[count-1]
		a.idle = a.idle[:count-1]
		a.mux.Unlock()
		return session, nil
	}
	a.mux.Unlock()
	session, err := a.factory(ctx, &a.config)
	if err != nil {
		return nil, err
	}
	if a.config.Workdir != "" {
		if _, _, err = session.Run(ctx, "cd "+a.config.Workdir); err != nil {
			_ = session.Close()
			return nil, fmt.Errorf("failed to change directory: %w", err)
		}
	}
	return session, nil
}

// release returns session to the idle set, closing it when the set is full
// or the adapter was closed.
func (a *Adapter) release(session Session) {
	a.mux.Lock()
	if !a.closed && len(a.idle) < a.config.MaxSessions {
		a.idle = append(a.idle, session)
		a.mux.Unlock()
		return
	}
	a.mux.Unlock()
	_ = session.Close()
}

// Close releases idle sessions; sessions still running commands are closed
// when their Invoke returns.
func (a *Adapter) Close() error {
	a.mux.Lock()
	idle := a.idle
	a.idle = nil
	a.closed = true
	a.mux.Unlock()
	var errs []error
	for _, session := range idle {
		if err := session.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Commands extracts commands from the request context or, when absent, from
// the prompt lines. Blank lines and # comments are skipped.
func Commands(request *backend.Request) []string {
	if request == nil {
		return nil
	}
	if value, ok := request.Context[ContextCommands]; ok {
		switch actual := value.(type) {
		case []string:
			return actual
		case []interface{}:
			var ret []string
			for _, item := range actual {
				ret = append(ret, fmt.Sprint(item))
			}
			return ret
		}
	}
	var ret []string
	for _, line := range strings.Split(request.Prompt, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		ret = append(ret, line)
	}
	return ret
}

func newSession(ctx context.Context, config *Config) (Session, error) {
	var envOptions []runner.Option
	if len(config.Env) > 0 {
		envOptions = append(envOptions, runner.WithEnvironment(config.Env))
	}
	if config.IsLocal() {
		return gosh.New(ctx, local.New(envOptions...))
	}
	sshConfig, err := sshConfig(ctx, config.Credentials)
	if err != nil {
		return nil, fmt.Errorf("failed to get SSH config: %w", err)
	}
	host := url.Host(config.URL)
	if !strings.Contains(host, ":") {
		host += ":22"
	}
	return gosh.New(ctx, rssh.New(host, sshConfig, envOptions...))
}

// sshConfig creates an SSH config from scy secrets
func sshConfig(ctx context.Context, credentials string) (*ssh.ClientConfig, error) {
	if credentials == "" {
		credentials = "localhost"
	}
	generic, err := secret.New().GetCredentials(ctx, credentials)
	if err != nil {
		return nil, err
	}
	return generic.SSH.Config(ctx)
}
