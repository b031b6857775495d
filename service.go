package hybrid

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/viant/afs"
	"github.com/viant/hybrid/backend"
	"github.com/viant/hybrid/internal/idgen"
	"github.com/viant/hybrid/model"
	"github.com/viant/hybrid/policy"
	"github.com/viant/hybrid/router"
	"github.com/viant/hybrid/runtime/orchestrator"
	"github.com/viant/hybrid/service/approval"
	amem "github.com/viant/hybrid/service/approval/memory"
	"github.com/viant/hybrid/service/audit"
	"github.com/viant/hybrid/service/dao"
	runfs "github.com/viant/hybrid/service/dao/run/fs"
	rmem "github.com/viant/hybrid/service/dao/run/memory"
	"github.com/viant/hybrid/service/metrics"
	"github.com/viant/hybrid/tracing"
)

const (
	// RateLimitGuardrail names the guardrail installed by LimitConfig.MaxRuns.
	RateLimitGuardrail = "rate_limit"
	// CostLimitGuardrail names the guardrail installed by LimitConfig.Budget.
	CostLimitGuardrail = "cost_limit"
)

// Service routes tasks, enforces guardrails and drives runs.
type Service struct {
	assistant    backend.Adapter
	operator     backend.Adapter
	retry        *backend.Retry
	engine       *policy.Engine
	guardrails   []*policy.Guardrail
	approvals    approval.Service
	runs         dao.Service[string, model.Run]
	sinks        []audit.Sink
	audit        audit.Sink
	tracker      *metrics.Tracker
	metricSinks  []metrics.Sink
	metrics      metrics.Sink
	runConfig    model.RunConfig
	orchestrator *orchestrator.Orchestrator
	closers      []func() error
}

// New creates a service. Runs, approvals and counters default to memory.
func New(options ...Option) (*Service, error) {
	ret := &Service{}
	if err := ret.init(options); err != nil {
		return nil, err
	}
	return ret, nil
}

// NewFromConfig creates a service from cfg; options are applied after the
// config derived ones so callers can override backends or sinks.
func NewFromConfig(ctx context.Context, cfg *Config, options ...Option) (*Service, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	var closers []func() error
	opts := []Option{
		WithRunConfig(cfg.Run),
		WithRetry(cfg.Retry),
		WithMetrics(metrics.NewTracker(metrics.WithWindow(cfg.Limits.Window))),
	}
	if cfg.Tracing.Enabled {
		opts = append(opts, WithTracing(cfg.Tracing.ServiceName, cfg.Tracing.Version, cfg.Tracing.OutputFile))
	}
	if cfg.Audit.Log {
		opts = append(opts, WithAuditSink(audit.NewLog(nil)))
	}
	if cfg.Audit.SQLite != "" {
		db, err := audit.OpenSQLite(cfg.Audit.SQLite)
		if err != nil {
			return nil, err
		}
		closers = append(closers, db.Close)
		opts = append(opts, WithAuditSink(db))
	}
	if cfg.Store.RunURL != "" {
		runs, err := runfs.New(ctx, cfg.Store.RunURL)
		if err != nil {
			closeAll(closers)
			return nil, err
		}
		opts = append(opts, WithRunDAO(runs))
	}
	ret, err := New(append(opts, options...)...)
	if err != nil {
		closeAll(closers)
		return nil, err
	}
	ret.closers = append(ret.closers, closers...)
	if err = ret.installLimits(cfg.Limits); err != nil {
		_ = ret.Close()
		return nil, err
	}
	if err = ret.installRules(ctx, cfg.Policy); err != nil {
		_ = ret.Close()
		return nil, err
	}
	return ret, nil
}

func (s *Service) init(options []Option) error {
	for _, option := range options {
		option(s)
	}
	s.ensureBaseSetup()
	for _, g := range s.guardrails {
		if err := s.engine.Add(g); err != nil {
			return err
		}
	}
	assistant, operator := s.assistant, s.operator
	if s.retry != nil {
		if assistant != nil {
			assistant = backend.WithRetry(assistant, *s.retry)
		}
		if operator != nil {
			operator = backend.WithRetry(operator, *s.retry)
		}
	}
	s.orchestrator = orchestrator.New(
		orchestrator.WithAssistant(assistant),
		orchestrator.WithOperator(operator),
		orchestrator.WithEngine(s.engine),
		orchestrator.WithApprovalService(s.approvals),
		orchestrator.WithRunDAO(s.runs),
		orchestrator.WithAuditSink(s.audit),
		orchestrator.WithMetrics(s.metrics),
		orchestrator.WithRunConfig(s.runConfig),
	)
	return nil
}

func (s *Service) ensureBaseSetup() {
	if s.engine == nil {
		s.engine, _ = policy.NewEngine()
	}
	if s.approvals == nil {
		s.approvals = amem.New()
	}
	if s.runs == nil {
		s.runs = rmem.New()
	}
	if s.tracker == nil {
		s.tracker = metrics.NewTracker()
	}
	s.audit = audit.Multi(s.sinks...)
	sinks := append([]metrics.Sink{s.tracker}, s.metricSinks...)
	s.metrics = metrics.Multi(sinks...)
}

func (s *Service) installLimits(limits LimitConfig) error {
	if limits.MaxRuns > 0 {
		message := fmt.Sprintf("rate limit of %d runs exceeded", limits.MaxRuns)
		if limits.Window > 0 {
			message = fmt.Sprintf("rate limit of %d runs per %s exceeded", limits.MaxRuns, limits.Window)
		}
		if err := s.engine.Add(policy.RateLimit(RateLimitGuardrail, message, s.tracker.Recent, limits.MaxRuns)); err != nil {
			return err
		}
	}
	if limits.Budget > 0 {
		message := fmt.Sprintf("cost budget of %.2f exceeded", limits.Budget)
		if err := s.engine.Add(policy.CostLimit(CostLimitGuardrail, message, s.tracker.Spend, limits.Budget)); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) installRules(ctx context.Context, cfg PolicyConfig) error {
	if cfg.RulesURL == "" {
		return nil
	}
	if err := policy.Reload(ctx, afs.New(), cfg.RulesURL, s.engine); err != nil {
		return fmt.Errorf("failed to install guardrail rules %v: %w", cfg.RulesURL, err)
	}
	if !cfg.Watch {
		return nil
	}
	location := strings.TrimPrefix(cfg.RulesURL, "file://")
	if strings.Contains(location, "://") {
		return fmt.Errorf("failed to watch guardrail rules %v: only local files can be watched", cfg.RulesURL)
	}
	watchCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	if err := policy.Watch(watchCtx, location, s.engine, nil); err != nil {
		cancel()
		return err
	}
	s.closers = append(s.closers, func() error {
		cancel()
		return nil
	})
	return nil
}

// Engine returns the guardrail engine.
func (s *Service) Engine() *policy.Engine {
	return s.engine
}

// Approvals returns the approval service.
func (s *Service) Approvals() approval.Service {
	return s.approvals
}

// Metrics returns the counters tracker.
func (s *Service) Metrics() *metrics.Tracker {
	return s.tracker
}

// AddGuardrail registers a guardrail evaluated after the existing ones.
func (s *Service) AddGuardrail(name string, kind policy.Kind, predicate policy.Predicate, message string, approver ...string) error {
	return s.engine.Add(policy.New(name, kind, predicate, message, approver...))
}

// RemoveGuardrail unregisters a guardrail.
func (s *Service) RemoveGuardrail(name string) error {
	return s.engine.Remove(name)
}

// Run evaluates guardrails, routes task and drives the resulting run until
// it completes, fails or suspends for approval. Blocking and approval are
// reported in the result; an error is returned only for an invalid task or
// an infrastructure failure.
func (s *Service) Run(ctx context.Context, task *model.Task) (*model.Result, error) {
	if task == nil {
		return nil, fmt.Errorf("%w: task was nil", model.ErrInvalidTask)
	}
	task.Init()
	if err := task.Validate(); err != nil {
		return nil, err
	}
	if task.Status != model.StatusPending {
		return nil, fmt.Errorf("%w: task %v was already %s", model.ErrInvalidTask, task.ID, task.Status)
	}
	ctx, span := tracing.StartSpan(ctx, "task.run", tracing.KindServer)
	span.WithAttributes(map[string]string{tracing.AttrTaskID: task.ID})
	result, err := s.run(ctx, task)
	if err == nil && result.Status == model.ResultBlocked {
		span.Fail(result.Reason)
	}
	tracing.EndSpan(span, err)
	return result, err
}

func (s *Service) run(ctx context.Context, task *model.Task) (*model.Result, error) {
	runID := idgen.New()
	verdict := s.engineFor(ctx).Evaluate(task)
	s.audited(ctx, task, runID, verdict)
	if verdict.Blocked() {
		return s.block(ctx, task, runID, verdict)
	}
	if err := task.Advance(model.StatusRouting); err != nil {
		return nil, err
	}
	target := router.Route(task)
	task.Target = target
	s.metrics.Update(ctx, metrics.Delta{Submitted: 1, Target: target})
	s.emit(ctx, audit.NewEvent(audit.KindRoute, task.ID, runID, "router", "router", string(target)))

	run := model.NewRun(task, target, s.runConfig)
	run.ID = runID
	run.Warnings = append(run.Warnings, verdict.Warnings...)
	var err error
	if verdict.RequiresApproval() {
		run, err = s.orchestrator.Suspend(ctx, run, verdict)
	} else {
		run, err = s.orchestrator.Start(ctx, run)
	}
	if err != nil {
		return nil, err
	}
	return model.ResultOf(run), nil
}

// block records a refused task as a failed run so it appears in History.
func (s *Service) block(ctx context.Context, task *model.Task, runID string, verdict *policy.Verdict) (*model.Result, error) {
	run := model.NewRun(task, "", s.runConfig)
	run.ID = runID
	run.Warnings = append(run.Warnings, verdict.Warnings...)
	if err := task.Advance(model.StatusBlocked); err != nil {
		return nil, err
	}
	task.Error = verdict.Message
	if err := run.Transition(model.RunFailed); err != nil {
		return nil, err
	}
	run.Reason = verdict.Message
	run.Guardrail = verdict.Guardrail
	run.Error = model.NewError(model.ErrorBlocked, "%s", verdict.Message)
	s.metrics.Update(ctx, metrics.Delta{Submitted: 1, Blocked: 1})
	s.emit(ctx, audit.NewEvent(audit.KindRun, task.ID, runID, "run", "policy", string(model.ResultBlocked)).WithMetadata("guardrail", verdict.Guardrail))
	if err := s.runs.Save(context.WithoutCancel(ctx), run); err != nil {
		return nil, fmt.Errorf("failed to save run %v: %w", runID, err)
	}
	return model.ResultOf(run), nil
}

// audited emits one audit event per evaluated guardrail.
// engineFor returns the engine embedded with policy.WithEngine, or the service engine.
func (s *Service) engineFor(ctx context.Context) *policy.Engine {
	if engine := policy.FromContext(ctx); engine != nil {
		return engine
	}
	return s.engine
}

func (s *Service) audited(ctx context.Context, task *model.Task, runID string, verdict *policy.Verdict) {
	span, _ := tracing.SpanFromContext(ctx)
	for _, evaluation := range verdict.Evaluations {
		span.Guardrail(evaluation.Guardrail, string(verdict.Decision), evaluation.Triggered)
		detail := "passed"
		if evaluation.Triggered {
			detail = "triggered"
		}
		event := audit.NewEvent(audit.KindGuardrail, task.ID, runID, evaluation.Guardrail, "policy", detail).
			WithMetadata("kind", string(evaluation.Kind)).
			WithMetadata("decision", string(verdict.Decision)).
			WithMetadata("gate", "submission")
		if evaluation.Fault != "" {
			event.WithMetadata("fault", evaluation.Fault)
		}
		s.emit(ctx, event)
	}
}

func (s *Service) emit(ctx context.Context, event *audit.Event) {
	if err := s.audit.Record(context.WithoutCancel(ctx), event); err != nil {
		log.Printf("hybrid: failed to record audit event %v/%v: %v", event.RunID, event.Name, err)
	}
}

// Decide records a decision for one approval request of a suspended run, or
// for every pending request when requestID is empty, and resumes the run
// once nothing is pending.
func (s *Service) Decide(ctx context.Context, runID, requestID string, approved bool, decidedBy, reason string) (*model.Result, error) {
	run, err := s.orchestrator.Decide(ctx, runID, requestID, approved, decidedBy, reason)
	if err != nil {
		return nil, err
	}
	return model.ResultOf(run), nil
}

// Approve grants every pending approval of a run.
func (s *Service) Approve(ctx context.Context, runID, decidedBy string) (*model.Result, error) {
	return s.Decide(ctx, runID, "", true, decidedBy, "")
}

// Reject refuses a suspended run; it fails with reason "rejected".
func (s *Service) Reject(ctx context.Context, runID, decidedBy, reason string) (*model.Result, error) {
	return s.Decide(ctx, runID, "", false, decidedBy, reason)
}

// Pending lists open approval requests.
func (s *Service) Pending(ctx context.Context, filters ...approval.PendingFilter) ([]*approval.Request, error) {
	return approval.ListPending(ctx, s.approvals, filters...)
}

// Cancel requests cooperative cancellation of a run.
func (s *Service) Cancel(ctx context.Context, runID string) error {
	return s.orchestrator.Cancel(ctx, runID)
}

// Result returns the current result of a run.
func (s *Service) Result(ctx context.Context, runID string) (*model.Result, error) {
	run, err := s.orchestrator.Get(ctx, runID)
	if err != nil {
		return nil, err
	}
	return model.ResultOf(run), nil
}

// History lists results of submitted runs, blocked ones included, ordered
// by submission.
func (s *Service) History(ctx context.Context, parameters ...*dao.Parameter) ([]*model.Result, error) {
	runs, err := s.orchestrator.List(ctx, parameters...)
	if err != nil {
		return nil, err
	}
	ret := make([]*model.Result, 0, len(runs))
	for _, run := range runs {
		ret = append(ret, model.ResultOf(run))
	}
	return ret, nil
}

// Listen resumes suspended runs as approval decisions arrive until ctx is done.
func (s *Service) Listen(ctx context.Context) error {
	return s.orchestrator.Listen(ctx)
}

// Close releases audit stores and stops rule watchers.
func (s *Service) Close() error {
	closers := s.closers
	s.closers = nil
	return closeAll(closers)
}

func closeAll(closers []func() error) error {
	var errs []error
	for _, closer := range closers {
		if err := closer(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
