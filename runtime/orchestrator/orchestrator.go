package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/viant/hybrid/backend"
	"github.com/viant/hybrid/model"
	"github.com/viant/hybrid/policy"
	"github.com/viant/hybrid/service/approval"
	amem "github.com/viant/hybrid/service/approval/memory"
	"github.com/viant/hybrid/service/audit"
	"github.com/viant/hybrid/service/dao"
	rmem "github.com/viant/hybrid/service/dao/run/memory"
	"github.com/viant/hybrid/service/metrics"
	"github.com/viant/hybrid/tracing"
)

var (
	// ErrRunNotFound is returned for unknown run ids.
	ErrRunNotFound = errors.New("run not found")
	// ErrNotSuspended is returned when resuming a run that is not awaiting approval.
	ErrNotSuspended = errors.New("run is not awaiting approval")
	// ErrTerminal is returned when acting on a completed or failed run.
	ErrTerminal = errors.New("run already finished")
)

// Terminal reasons.
const (
	ReasonCompleted = "completed"
	ReasonCancelled = "cancelled"
	ReasonRejected  = "rejected"
)

const actor = "orchestrator"

// Orchestrator drives runs. It is safe for concurrent use; each run is owned
// by one caller at a time.
type Orchestrator struct {
	assistant backend.Adapter
	operator  backend.Adapter
	engine    *policy.Engine
	approvals approval.Service
	runs      dao.Service[string, model.Run]
	audit     audit.Sink
	metrics   metrics.Sink
	config    model.RunConfig
	registry  *registry
}

// New creates an orchestrator. Runs and approvals default to memory services.
func New(options ...Option) *Orchestrator {
	engine, _ := policy.NewEngine()
	ret := &Orchestrator{
		engine:    engine,
		approvals: amem.New(),
		runs:      rmem.New(),
		audit:     audit.Nop,
		registry:  newRegistry(),
	}
	for _, option := range options {
		option(ret)
	}
	return ret
}

// Approvals returns the approval service.
func (o *Orchestrator) Approvals() approval.Service {
	return o.approvals
}

// Start persists run and drives it until it is terminal or suspended. The
// returned run is a snapshot.
func (o *Orchestrator) Start(ctx context.Context, run *model.Run) (*model.Run, error) {
	if err := o.prepare(run); err != nil {
		return nil, err
	}
	h := o.registry.get(run.ID)
	h.Lock()
	defer h.Unlock()
	if run.State.IsTerminal() {
		return nil, fmt.Errorf("%w: %s", ErrTerminal, run.ID)
	}
	ctx, span := o.runSpan(ctx, run, "run.start")
	o.update(ctx, metrics.Delta{Running: 1})
	o.emit(ctx, audit.NewEvent(audit.KindRun, run.Task.ID, run.ID, "run", actor, "started").WithMetadata("target", string(run.Target)))
	if err := o.save(ctx, run); err != nil {
		tracing.EndSpan(span, err)
		return nil, err
	}
	err := o.drive(ctx, h, run)
	o.endRunSpan(span, run, err)
	return run.Clone(), err
}

// Suspend parks a run awaiting the approvals demanded by verdict before its
// first stage. Resume continues at the run's first state.
func (o *Orchestrator) Suspend(ctx context.Context, run *model.Run, verdict *policy.Verdict) (*model.Run, error) {
	if err := o.prepare(run); err != nil {
		return nil, err
	}
	if verdict == nil || !verdict.RequiresApproval() {
		return nil, fmt.Errorf("run %v: verdict does not require approval", run.ID)
	}
	h := o.registry.get(run.ID)
	h.Lock()
	defer h.Unlock()
	o.update(ctx, metrics.Delta{Running: 1})
	o.emit(ctx, audit.NewEvent(audit.KindRun, run.Task.ID, run.ID, "run", actor, "started").WithMetadata("target", string(run.Target)))
	if err := o.suspend(ctx, run, verdict.Approvals, run.State); err != nil {
		return nil, err
	}
	if err := o.save(ctx, run); err != nil {
		return nil, err
	}
	return run.Clone(), nil
}

// Resume continues a suspended run once every approval is granted. A run
// with pending approvals is returned unchanged; a rejected one fails.
func (o *Orchestrator) Resume(ctx context.Context, runID string) (*model.Run, error) {
	h := o.registry.get(runID)
	h.Lock()
	defer h.Unlock()
	run, err := o.load(ctx, runID)
	if err != nil {
		return nil, err
	}
	if err = suspended(run); err != nil {
		return nil, err
	}
	if h.cancelled.Load() {
		o.cancel(ctx, run)
		return o.settle(ctx, run)
	}
	rejected, err := o.syncDecisions(ctx, run)
	if err != nil {
		return nil, err
	}
	if rejected != nil {
		o.reject(ctx, run, rejected)
		return o.settle(ctx, run)
	}
	if len(run.PendingApprovals()) > 0 {
		if err = o.save(ctx, run); err != nil {
			return nil, err
		}
		return run.Clone(), nil
	}
	ctx, span := o.runSpan(ctx, run, "run.resume")
	next := run.ResumeState
	if next == "" {
		next = run.FirstState()
	}
	o.transition(run, next)
	run.ResumeState = ""
	run.Reason = ""
	o.update(ctx, metrics.Delta{Awaiting: -1, Running: 1})
	o.emit(ctx, audit.NewEvent(audit.KindRun, run.Task.ID, run.ID, "run", actor, "resumed"))
	if err = o.save(ctx, run); err != nil {
		tracing.EndSpan(span, err)
		return nil, err
	}
	err = o.drive(ctx, h, run)
	o.endRunSpan(span, run, err)
	return run.Clone(), err
}

// Decide records a decision for requestID, or for every pending approval of
// the run when requestID is empty, then resumes the run.
func (o *Orchestrator) Decide(ctx context.Context, runID, requestID string, approved bool, decidedBy, reason string) (*model.Run, error) {
	run, err := o.load(ctx, runID)
	if err != nil {
		return nil, err
	}
	if err = suspended(run); err != nil {
		return nil, err
	}
	var ids []string
	if requestID == "" {
		for _, ref := range run.PendingApprovals() {
			ids = append(ids, ref.RequestID)
		}
	} else if run.Approval(requestID) == nil {
		return nil, fmt.Errorf("%w: %s in run %s", approval.ErrRequestNotFound, requestID, runID)
	} else {
		ids = append(ids, requestID)
	}
	for _, id := range ids {
		if _, err = o.approvals.Decide(ctx, id, approved, decidedBy, reason); err != nil && !errors.Is(err, approval.ErrAlreadyDecided) {
			return nil, fmt.Errorf("failed to decide %v: %w", id, err)
		}
	}
	ret, err := o.Resume(ctx, runID)
	if errors.Is(err, ErrNotSuspended) || errors.Is(err, ErrTerminal) {
		// resumed concurrently by a decision listener
		return o.Get(ctx, runID)
	}
	return ret, err
}

// Approve grants every pending approval of the run.
func (o *Orchestrator) Approve(ctx context.Context, runID, decidedBy string) (*model.Run, error) {
	return o.Decide(ctx, runID, "", true, decidedBy, "")
}

// Reject refuses the run's pending approvals; the run fails with reason
// "rejected".
func (o *Orchestrator) Reject(ctx context.Context, runID, decidedBy, reason string) (*model.Run, error) {
	return o.Decide(ctx, runID, "", false, decidedBy, reason)
}

// Cancel requests cooperative cancellation. A suspended or idle run fails
// immediately; a run being driven fails before its next stage.
func (o *Orchestrator) Cancel(ctx context.Context, runID string) error {
	run, err := o.load(ctx, runID)
	if err != nil {
		return err
	}
	if run.State.IsTerminal() {
		return fmt.Errorf("%w: %s", ErrTerminal, runID)
	}
	h := o.registry.get(runID)
	h.cancelled.Store(true)
	if !h.TryLock() {
		return nil
	}
	defer h.Unlock()
	if run, err = o.load(ctx, runID); err != nil {
		return err
	}
	if run.State.IsTerminal() {
		return nil
	}
	o.cancel(ctx, run)
	_, err = o.settle(ctx, run)
	return err
}

// Get returns a run snapshot.
func (o *Orchestrator) Get(ctx context.Context, runID string) (*model.Run, error) {
	return o.load(ctx, runID)
}

// List returns persisted runs matching parameters.
func (o *Orchestrator) List(ctx context.Context, parameters ...*dao.Parameter) ([]*model.Run, error) {
	return o.runs.List(ctx, parameters...)
}

// Listen resumes runs as decisions are published on the approval queue,
// until ctx is done.
func (o *Orchestrator) Listen(ctx context.Context) error {
	queue := o.approvals.Queue()
	for {
		msg, err := queue.Consume(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		event := msg.T()
		decision, ok := event.Data.(*approval.Decision)
		if event.Topic != approval.TopicDecisionCreated || !ok || decision.RunID == "" {
			_ = msg.Ack()
			continue
		}
		if _, err = o.Resume(ctx, decision.RunID); err != nil && !errors.Is(err, ErrNotSuspended) && !errors.Is(err, ErrTerminal) {
			log.Printf("orchestrator: failed to resume run %v: %v", decision.RunID, err)
		}
		_ = msg.Ack()
	}
}

func (o *Orchestrator) prepare(run *model.Run) error {
	if run == nil || run.Task == nil {
		return fmt.Errorf("%w: run has no task", model.ErrInvalidTask)
	}
	if run.ID == "" || run.State == "" {
		defaults := model.NewRun(run.Task, run.Target, run.Config)
		if run.ID == "" {
			run.ID = defaults.ID
		}
		if run.State == "" {
			run.State = defaults.State
		}
		if run.CreatedAt.IsZero() {
			run.CreatedAt, run.UpdatedAt = defaults.CreatedAt, defaults.UpdatedAt
		}
	}
	if run.Target == "" {
		return fmt.Errorf("%w: run %v has no target", model.ErrInvalidTask, run.ID)
	}
	if run.Config.PlanningTimeout == 0 {
		run.Config.PlanningTimeout = o.config.PlanningTimeout
	}
	if run.Config.ExecutionTimeout == 0 {
		run.Config.ExecutionTimeout = o.config.ExecutionTimeout
	}
	if run.Config.VerificationTimeout == 0 {
		run.Config.VerificationTimeout = o.config.VerificationTimeout
	}
	if run.Config.MaxParallel == 0 {
		run.Config.MaxParallel = o.config.MaxParallel
	}
	return nil
}

// drive advances run until it is terminal or suspended, persisting after
// every transition. A cancellation request is observed before each stage and
// at suspension.
func (o *Orchestrator) drive(ctx context.Context, h *handle, run *model.Run) error {
	for !run.State.IsTerminal() {
		if h.cancelled.Load() || ctx.Err() != nil {
			o.cancel(ctx, run)
		} else if run.State == model.RunAwaitingApproval {
			break
		} else {
			if run.Task.Status != model.StatusInProgress {
				_ = run.Task.Advance(model.StatusInProgress)
			}
			switch run.State {
			case model.RunPlanning:
				o.plan(ctx, run)
			case model.RunExecuting:
				o.execute(ctx, run)
			case model.RunVerifying:
				o.verify(ctx, run)
			default:
				o.finish(ctx, run, model.RunFailed, fmt.Sprintf("unsupported run state %q", run.State), model.NewError(model.ErrorInvalid, "unsupported run state %q", run.State))
			}
		}
		if err := o.save(ctx, run); err != nil {
			return err
		}
	}
	if run.State.IsTerminal() {
		o.registry.delete(run.ID)
	}
	return nil
}

// settle persists a run finished outside drive.
func (o *Orchestrator) settle(ctx context.Context, run *model.Run) (*model.Run, error) {
	if err := o.save(ctx, run); err != nil {
		return nil, err
	}
	if run.State.IsTerminal() {
		o.registry.delete(run.ID)
	}
	return run.Clone(), nil
}

func (o *Orchestrator) transition(run *model.Run, state model.RunState) {
	if err := run.Transition(state); err != nil {
		log.Printf("orchestrator: run %v: %v", run.ID, err)
	}
}

// finish moves run to a terminal state.
func (o *Orchestrator) finish(ctx context.Context, run *model.Run, state model.RunState, reason string, runErr *model.Error) {
	wasAwaiting := run.State == model.RunAwaitingApproval
	o.transition(run, state)
	run.ResumeState = ""
	run.Reason = reason
	run.Error = runErr
	delta := metrics.Delta{Running: -1, Spend: run.Cost}
	if wasAwaiting {
		delta = metrics.Delta{Awaiting: -1, Spend: run.Cost}
	}
	status := model.StatusFailed
	if state == model.RunCompleted {
		status = model.StatusCompleted
		delta.Completed = 1
	} else {
		delta.Failed = 1
	}
	_ = run.Task.Advance(status)
	if status == model.StatusFailed {
		run.Task.Error = reason
	}
	o.update(ctx, delta)
	o.emit(ctx, audit.NewEvent(audit.KindRun, run.Task.ID, run.ID, "run", actor, reason).WithMetadata("state", string(state)))
}

func (o *Orchestrator) cancel(ctx context.Context, run *model.Run) {
	o.closePending(ctx, run, actor, ReasonCancelled)
	o.finish(ctx, run, model.RunFailed, ReasonCancelled, model.NewError(model.ErrorCancelled, ReasonCancelled))
}

func (o *Orchestrator) reject(ctx context.Context, run *model.Run, ref *model.ApprovalRef) {
	o.closePending(ctx, run, actor, ReasonRejected)
	message := fmt.Sprintf("approval %v rejected by %v", ref.Guardrail, ref.DecidedBy)
	o.finish(ctx, run, model.RunFailed, ReasonRejected, model.NewError(model.ErrorRejected, "%s", message))
}

// closePending rejects approval requests still open for a run ending early.
func (o *Orchestrator) closePending(ctx context.Context, run *model.Run, decidedBy, reason string) {
	for _, ref := range run.PendingApprovals() {
		if _, err := o.approvals.Decide(context.WithoutCancel(ctx), ref.RequestID, false, decidedBy, reason); err != nil && !errors.Is(err, approval.ErrAlreadyDecided) {
			log.Printf("orchestrator: failed to close approval %v: %v", ref.RequestID, err)
		}
	}
}

// suspend raises approval requests and parks run until they are decided.
func (o *Orchestrator) suspend(ctx context.Context, run *model.Run, approvals []*policy.Approval, resume model.RunState) error {
	messages := make([]string, 0, len(approvals))
	for _, item := range approvals {
		request := &approval.Request{
			RunID:     run.ID,
			TaskID:    run.Task.ID,
			Guardrail: item.Guardrail,
			Approver:  item.Approver,
			Message:   item.Message,
		}
		if err := o.approvals.RequestApproval(ctx, request); err != nil {
			return fmt.Errorf("failed to request approval for %v: %w", item.Guardrail, err)
		}
		run.Approvals = append(run.Approvals, &model.ApprovalRef{
			RequestID: request.ID,
			Guardrail: item.Guardrail,
			Approver:  item.Approver,
			Message:   item.Message,
		})
		messages = append(messages, item.Message)
		o.emit(ctx, audit.NewEvent(audit.KindApproval, run.Task.ID, run.ID, item.Guardrail, item.Approver, "requested").WithMetadata("requestId", request.ID))
	}
	o.transition(run, model.RunAwaitingApproval)
	run.ResumeState = resume
	run.Reason = strings.Join(messages, "; ")
	o.update(ctx, metrics.Delta{Running: -1, Awaiting: 1})
	o.emit(ctx, audit.NewEvent(audit.KindRun, run.Task.ID, run.ID, "run", actor, string(model.RunAwaitingApproval)).WithMetadata("resumeState", string(resume)))
	return nil
}

// syncDecisions copies decisions recorded by the approval service onto the
// run and returns the first rejected approval.
func (o *Orchestrator) syncDecisions(ctx context.Context, run *model.Run) (*model.ApprovalRef, error) {
	var rejected *model.ApprovalRef
	for _, ref := range run.Approvals {
		if ref.Approved == nil {
			decision, err := o.approvals.Decision(ctx, ref.RequestID)
			if err != nil {
				return nil, fmt.Errorf("failed to load decision %v: %w", ref.RequestID, err)
			}
			if decision == nil {
				continue
			}
			approved := decision.Approved
			ref.Approved = &approved
			ref.DecidedBy = decision.DecidedBy
			event := audit.NewEvent(audit.KindApproval, run.Task.ID, run.ID, ref.Guardrail, decision.DecidedBy, "rejected")
			if approved {
				event.Detail = "approved"
				event.ApprovedBy = decision.DecidedBy
			}
			if decision.Reason != "" {
				event.WithMetadata("reason", decision.Reason)
			}
			o.emit(ctx, event)
		}
		if rejected == nil && ref.Approved != nil && !*ref.Approved {
			rejected = ref
		}
	}
	return rejected, nil
}

func (o *Orchestrator) load(ctx context.Context, runID string) (*model.Run, error) {
	run, err := o.runs.Load(ctx, runID)
	if err != nil {
		if errors.Is(err, dao.ErrNotFound) || errors.Is(err, dao.ErrInvalidID) {
			return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
		}
		return nil, fmt.Errorf("failed to load run %v: %w", runID, err)
	}
	return run, nil
}

func (o *Orchestrator) save(ctx context.Context, run *model.Run) error {
	if err := o.runs.Save(context.WithoutCancel(ctx), run); err != nil {
		return fmt.Errorf("failed to save run %v: %w", run.ID, err)
	}
	return nil
}

func (o *Orchestrator) emit(ctx context.Context, event *audit.Event) {
	if o.audit == nil {
		return
	}
	if err := o.audit.Record(context.WithoutCancel(ctx), event); err != nil {
		log.Printf("orchestrator: failed to record audit event %v/%v: %v", event.RunID, event.Name, err)
	}
}

func (o *Orchestrator) update(ctx context.Context, delta metrics.Delta) {
	if o.metrics != nil {
		o.metrics.Update(ctx, delta)
	}
}

func (o *Orchestrator) runSpan(ctx context.Context, run *model.Run, name string) (context.Context, *tracing.Span) {
	ctx, span := tracing.StartSpan(ctx, name, tracing.KindInternal)
	span.WithAttributes(map[string]string{
		tracing.AttrRunID:  run.ID,
		tracing.AttrTaskID: run.Task.ID,
		tracing.AttrTarget: string(run.Target),
	})
	return ctx, span
}

func (o *Orchestrator) endRunSpan(span *tracing.Span, run *model.Run, err error) {
	if err == nil && run.State == model.RunFailed {
		span.Fail(run.Reason)
	}
	tracing.EndSpan(span, err)
}

func suspended(run *model.Run) error {
	if run.State.IsTerminal() {
		return fmt.Errorf("%w: %s", ErrTerminal, run.ID)
	}
	if run.State != model.RunAwaitingApproval {
		return fmt.Errorf("%w: %s is %s", ErrNotSuspended, run.ID, run.State)
	}
	return nil
}
