package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/viant/hybrid/backend"
	"github.com/viant/hybrid/internal/clock"
	"github.com/viant/hybrid/internal/idgen"
	"github.com/viant/hybrid/model"
	"github.com/viant/hybrid/policy"
	"github.com/viant/hybrid/service/audit"
	"github.com/viant/hybrid/tracing"
)

var stageSuffix = map[model.StageKind]string{
	model.StagePlanning:     "plan",
	model.StageExecution:    "exec",
	model.StageVerification: "verify",
}

// plan asks the assistant for a plan, then gates execution on the guardrails.
func (o *Orchestrator) plan(ctx context.Context, run *model.Run) {
	request := o.request(run, model.StagePlanning, run.Task.Description)
	stage, response := o.invoke(ctx, run, model.StagePlanning, o.assistant, request)
	if stage.Error != nil {
		o.record(ctx, run, stage)
		o.failStage(ctx, run, stage)
		return
	}
	run.Plan = model.PlanOf(response.Output)
	stage.Output = run.Plan
	o.gate(ctx, run, stage)
}

// gate re-evaluates the guardrails on the task augmented with the plan.
func (o *Orchestrator) gate(ctx context.Context, run *model.Run, stage *model.Stage) {
	engine := o.engineFor(ctx)
	if engine == nil {
		o.record(ctx, run, stage)
		o.transition(run, model.RunExecuting)
		return
	}
	verdict := engine.Evaluate(run.Task.Augment(run.Plan))
	o.audited(ctx, run, verdict)
	run.Warnings = appendUnique(run.Warnings, verdict.Warnings...)
	if verdict.Blocked() {
		o.record(ctx, run, stage)
		run.Guardrail = verdict.Guardrail
		o.finish(ctx, run, model.RunFailed, verdict.Message, model.NewError(model.ErrorBlocked, "%s", verdict.Message))
		return
	}
	var pending []*policy.Approval
	if verdict.RequiresApproval() {
		pending = unapproved(run, verdict.Approvals)
	}
	if len(pending) == 0 {
		o.record(ctx, run, stage)
		o.transition(run, model.RunExecuting)
		return
	}
	stage.Status = model.StageAwaitingApproval
	o.record(ctx, run, stage)
	if err := o.suspend(ctx, run, pending, model.RunExecuting); err != nil {
		o.finish(ctx, run, model.RunFailed, err.Error(), model.NewError(model.ErrorPermanent, "%v", err))
	}
}

func (o *Orchestrator) engineFor(ctx context.Context) *policy.Engine {
	if engine := policy.FromContext(ctx); engine != nil {
		return engine
	}
	return o.engine
}

// audited emits one audit event per evaluated guardrail.
func (o *Orchestrator) audited(ctx context.Context, run *model.Run, verdict *policy.Verdict) {
	for _, evaluation := range verdict.Evaluations {
		detail := "passed"
		if evaluation.Triggered {
			detail = "triggered"
		}
		event := audit.NewEvent(audit.KindGuardrail, run.Task.ID, run.ID, evaluation.Guardrail, "policy", detail).
			WithMetadata("kind", string(evaluation.Kind)).
			WithMetadata("decision", string(verdict.Decision)).
			WithMetadata("gate", string(model.StagePlanning))
		if evaluation.Fault != "" {
			event.WithMetadata("fault", evaluation.Fault)
		}
		o.emit(ctx, event)
	}
}

// execute runs the execution stage: the plan fanned out to the operator for
// hybrid runs, a single call to the routed backend otherwise.
func (o *Orchestrator) execute(ctx context.Context, run *model.Run) {
	if run.Target != model.TargetHybrid {
		o.executeSingle(ctx, run)
		return
	}
	commands := operations(run)
	stage := &model.Stage{Kind: model.StageExecution, Backend: backend.NameOf(o.operator, string(model.TargetOperator)), StartedAt: clock.Now()}
	if o.operator == nil {
		o.unavailable(stage)
		run.Execution = newGroup(commands).report(stage.Error)
		stage.Output = run.Execution
		o.record(ctx, run, stage)
		o.transition(run, model.RunVerifying)
		return
	}
	spanCtx, span := o.stageSpan(ctx, run, stage)
	g := newGroup(commands)
	report, err := within(spanCtx, run.Config.Timeout(model.StageExecution), string(model.StageExecution), func(ctx context.Context) (*model.ExecutionReport, error) {
		o.fanOut(ctx, run, g)
		return g.report(nil), nil
	})
	if err != nil {
		report = g.report(stageError(err))
	}
	run.Cost += g.spent()
	run.Execution = report
	stage.Output = report
	stage.EndedAt = clock.Now()
	stage.Status = model.StageSucceeded
	if !report.OK() {
		stage.Status = model.StageFailed
		if err != nil {
			stage.Error = stageError(err)
		} else {
			stage.Error = model.NewError(model.ErrorFailed, "%d of %d operations failed: %s", report.Failed, len(report.Operations), strings.Join(report.Errors(), "; "))
		}
	}
	tracing.EndSpan(span, stageErr(stage))
	o.record(ctx, run, stage)
	o.transition(run, model.RunVerifying)
}

// fanOut dispatches every operation and waits for all of them. Operation
// failures never cancel siblings; once ctx is done, operations not yet
// started are failed without reaching the operator.
func (o *Orchestrator) fanOut(ctx context.Context, run *model.Run, g *group) {
	var eg errgroup.Group
	if run.Config.MaxParallel > 0 {
		eg.SetLimit(run.Config.MaxParallel)
	}
	for i, command := range g.commands() {
		if err := ctx.Err(); err != nil {
			g.markDone(i, nil, 0, stageError(err))
			continue
		}
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				g.markDone(i, nil, 0, stageError(err))
				return nil
			}
			opCtx, span := tracing.StartSpan(ctx, "operation", tracing.KindClient)
			span.WithAttributes(map[string]string{tracing.AttrRunID: run.ID, tracing.AttrStage: string(model.StageExecution)})
			response, err := o.operator.Invoke(opCtx, o.operationRequest(run, i, command))
			tracing.EndSpan(span, err)
			if err != nil {
				g.markDone(i, nil, 0, stageError(err))
				return nil
			}
			if response == nil {
				response = &backend.Response{}
			}
			g.markDone(i, response.Output, response.Cost, nil)
			return nil
		})
	}
	_ = eg.Wait()
}

func (o *Orchestrator) executeSingle(ctx context.Context, run *model.Run) {
	adapter := o.assistant
	if run.Target == model.TargetOperator {
		adapter = o.operator
	}
	request := o.request(run, model.StageExecution, run.Task.Description)
	stage, response := o.invoke(ctx, run, model.StageExecution, adapter, request)
	o.record(ctx, run, stage)
	if stage.Error != nil {
		o.failStage(ctx, run, stage)
		return
	}
	run.Output = response.Output
	o.finish(ctx, run, model.RunCompleted, ReasonCompleted, nil)
}

// verify asks the assistant to assess the execution report.
func (o *Orchestrator) verify(ctx context.Context, run *model.Run) {
	prompt := fmt.Sprintf("Verify the outcome of the task: %s", run.Task.Description)
	if errs := run.Execution.Errors(); len(errs) > 0 {
		prompt += "\nFailed operations:\n" + strings.Join(errs, "\n")
	}
	request := o.request(run, model.StageVerification, prompt)
	if run.Execution != nil {
		request.Context[model.ContextExecution] = run.Execution
	}
	stage, response := o.invoke(ctx, run, model.StageVerification, o.assistant, request)
	if stage.Error != nil {
		o.record(ctx, run, stage)
		o.failStage(ctx, run, stage)
		return
	}
	execution := run.LastStage(model.StageExecution)
	passed := execution.Succeeded()
	if response.Passed != nil {
		passed = *response.Passed
	}
	run.Output = response.Output
	if !passed {
		stage.Status = model.StageFailed
		stage.Error = model.NewError(model.ErrorFailed, "verification reported failure")
	}
	o.record(ctx, run, stage)
	switch {
	case passed:
		o.finish(ctx, run, model.RunCompleted, ReasonCompleted, nil)
	case execution != nil && execution.Error != nil:
		o.finish(ctx, run, model.RunFailed, "execution failed: "+execution.Error.Message, execution.Error)
	default:
		o.finish(ctx, run, model.RunFailed, stage.Error.Message, stage.Error)
	}
}

// invoke calls adapter for a single-call stage. The returned stage is not yet
// recorded; response is nil when the stage failed.
func (o *Orchestrator) invoke(ctx context.Context, run *model.Run, kind model.StageKind, adapter backend.Adapter, request *backend.Request) (*model.Stage, *backend.Response) {
	fallback := string(model.TargetAssistant)
	if kind == model.StageExecution && run.Target != model.TargetAssistant {
		fallback = string(model.TargetOperator)
	}
	stage := &model.Stage{Kind: kind, Backend: backend.NameOf(adapter, fallback), StartedAt: clock.Now()}
	if adapter == nil {
		o.unavailable(stage)
		return stage, nil
	}
	spanCtx, span := o.stageSpan(ctx, run, stage)
	response, err := within(spanCtx, run.Config.Timeout(kind), string(kind), func(ctx context.Context) (*backend.Response, error) {
		return adapter.Invoke(ctx, request)
	})
	tracing.EndSpan(span, err)
	stage.EndedAt = clock.Now()
	if err != nil {
		stage.Status = model.StageFailed
		stage.Error = stageError(err)
		return stage, nil
	}
	if response == nil {
		response = &backend.Response{}
	}
	run.Cost += response.Cost
	stage.Status = model.StageSucceeded
	stage.Output = response.Output
	return stage, response
}

func (o *Orchestrator) unavailable(stage *model.Stage) {
	stage.EndedAt = clock.Now()
	stage.Status = model.StageFailed
	stage.Error = model.NewError(model.ErrorPermanent, "no %s backend configured", stage.Backend)
}

// record appends stage to the run's trail and audits it.
func (o *Orchestrator) record(ctx context.Context, run *model.Run, stage *model.Stage) {
	if stage.EndedAt.IsZero() {
		stage.EndedAt = clock.Now()
	}
	run.Append(stage)
	run.UpdatedAt = clock.Now()
	event := audit.NewEvent(audit.KindStage, run.Task.ID, run.ID, string(stage.Kind), stage.Backend, string(stage.Status)).
		WithMetadata("stageId", idgen.Derived(run.Task.ID, stageSuffix[stage.Kind])).
		WithMetadata("duration", stage.EndedAt.Sub(stage.StartedAt).String())
	if stage.Error != nil {
		event.WithMetadata("error", stage.Error.Error())
	}
	o.emit(ctx, event)
}

// failStage ends the run after a stage that cannot be continued from.
func (o *Orchestrator) failStage(ctx context.Context, run *model.Run, stage *model.Stage) {
	reason := fmt.Sprintf("%s failed: %s", stage.Kind, stage.Error.Message)
	if stage.Error.Kind == model.ErrorCancelled {
		reason = ReasonCancelled
	}
	o.finish(ctx, run, model.RunFailed, reason, stage.Error)
}

func (o *Orchestrator) stageSpan(ctx context.Context, run *model.Run, stage *model.Stage) (context.Context, *tracing.Span) {
	ctx, span := tracing.StartSpan(ctx, "stage."+string(stage.Kind), tracing.KindClient)
	span.WithAttributes(map[string]string{
		tracing.AttrRunID:   run.ID,
		tracing.AttrTaskID:  run.Task.ID,
		tracing.AttrStage:   string(stage.Kind),
		tracing.AttrBackend: stage.Backend,
	})
	return ctx, span
}

// request builds the envelope for a stage; the task context is copied so
// backends never mutate the caller's map.
func (o *Orchestrator) request(run *model.Run, kind model.StageKind, prompt string) *backend.Request {
	task := run.Task
	values := make(map[string]interface{}, len(task.Context)+6)
	for k, v := range task.Context {
		values[k] = v
	}
	values[model.ContextStage] = string(kind)
	values[model.ContextStageID] = idgen.Derived(task.ID, stageSuffix[kind])
	values[model.ContextTaskID] = task.ID
	values[model.ContextTaskType] = string(task.Type)
	values[model.ContextPriority] = task.Priority
	if run.Plan != nil && kind != model.StagePlanning {
		values[model.ContextPlan] = run.Plan
	}
	return &backend.Request{Prompt: prompt, Context: values}
}

func (o *Orchestrator) operationRequest(run *model.Run, index int, command string) *backend.Request {
	ret := o.request(run, model.StageExecution, command)
	delete(ret.Context, model.ContextCommands)
	ret.Context[model.ContextOperation] = index
	return ret
}

// operations splits the plan into independent execution sub-operations.
func operations(run *model.Run) []string {
	if run.Plan != nil && len(run.Plan.Steps) > 0 {
		return append([]string(nil), run.Plan.Steps...)
	}
	if text := run.Plan.String(); text != "" {
		return []string{text}
	}
	return []string{run.Task.Description}
}

// within runs fn bounded by timeout. A stage that exceeds it fails with a
// timeout error without waiting for fn; cancellation of ctx instead lets the
// in-flight call finish.
func within[T any](ctx context.Context, timeout time.Duration, stage string, fn func(ctx context.Context) (T, error)) (T, error) {
	if timeout <= 0 {
		return fn(ctx)
	}
	stageCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	type outcome struct {
		value T
		err   error
	}
	done := make(chan outcome, 1)
	go func() {
		value, err := fn(stageCtx)
		done <- outcome{value: value, err: err}
	}()
	select {
	case out := <-done:
		if out.err != nil && ctx.Err() == nil && errors.Is(stageCtx.Err(), context.DeadlineExceeded) {
			return out.value, backend.Timeout(stage, out.err)
		}
		return out.value, out.err
	case <-stageCtx.Done():
		if ctx.Err() != nil {
			out := <-done
			return out.value, out.err
		}
		var zero T
		return zero, backend.Timeout(stage, stageCtx.Err())
	}
}

// stageError converts an adapter failure into the run error envelope.
// Transient errors only surface from adapters without a retry wrapper and are
// terminal here.
func stageError(err error) *model.Error {
	if errors.Is(err, context.Canceled) {
		return model.NewError(model.ErrorCancelled, ReasonCancelled)
	}
	message := err.Error()
	var backendErr *backend.Error
	if errors.As(err, &backendErr) {
		message = strings.TrimPrefix(message, string(backendErr.Kind)+": ")
	}
	switch backend.KindOf(err) {
	case backend.KindTimeout:
		return &model.Error{Kind: model.ErrorTimeout, Message: message}
	case backend.KindRefused:
		return &model.Error{Kind: model.ErrorRefused, Message: message}
	}
	return &model.Error{Kind: model.ErrorPermanent, Message: message}
}

func stageErr(stage *model.Stage) error {
	if stage.Error == nil {
		return nil
	}
	return stage.Error
}

// unapproved drops approvals already granted earlier in the run.
func unapproved(run *model.Run, approvals []*policy.Approval) []*policy.Approval {
	var ret []*policy.Approval
	for _, item := range approvals {
		granted := false
		for _, ref := range run.Approvals {
			if ref.Guardrail == item.Guardrail && ref.Approved != nil && *ref.Approved {
				granted = true
				break
			}
		}
		if !granted {
			ret = append(ret, item)
		}
	}
	return ret
}

func appendUnique(list []string, values ...string) []string {
	for _, value := range values {
		found := false
		for _, existing := range list {
			if existing == value {
				found = true
				break
			}
		}
		if !found {
			list = append(list, value)
		}
	}
	return list
}
