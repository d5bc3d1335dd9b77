package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// MetricsRecorder receives engine-level measurements. Implementations must
// be safe for concurrent use. A nil recorder disables measurement.
type MetricsRecorder interface {
	RecordGoalStarted()
	RecordGoalCompleted(status string, duration time.Duration)
	RecordStepExecution(status string, duration time.Duration)
	RecordReplan(strategy string)
	RecordError(class, code string)
}

// SpanTracer opens trace spans around goal runs and step attempts. A nil
// tracer disables tracing.
type SpanTracer interface {
	StartGoalSpan(ctx context.Context, goalID string) (context.Context, trace.Span)
	StartStepSpan(ctx context.Context, stepID, planID string, retryCount int) (context.Context, trace.Span)
}

// Options configures an Engine.
type Options struct {
	Planner   Planner
	Executor  Executor
	Evaluator Evaluator
	Replanner Replanner
	Store     Store
	Events    EventPublisher

	// Memory is optional; when nil no prior-run context is recalled.
	Memory MemoryManager

	// Policy is optional; when nil every plan is admitted.
	Policy PolicyGate

	// Metrics is optional.
	Metrics MetricsRecorder

	// Tracer is optional.
	Tracer SpanTracer

	// MaxPlanIterations bounds the number of plan versions per goal.
	// Zero means DefaultMaxPlanIterations.
	MaxPlanIterations int

	// RecallLimit is how many memory entries feed planning. Zero means
	// DefaultRecallLimit.
	RecallLimit int

	Logger zerolog.Logger
}

// Engine drives the goal lifecycle: plan, schedule ready steps, execute,
// evaluate, and replan on failure until the goal completes or its budgets
// are exhausted. The engine is the only mutator of a goal's plan graph.
type Engine struct {
	planner   Planner
	executor  Executor
	evaluator Evaluator
	replanner Replanner
	store     Store
	events    EventPublisher
	memory    MemoryManager
	policy    PolicyGate
	metrics   MetricsRecorder
	tracer    SpanTracer
	logger    zerolog.Logger

	maxPlanIterations int
	recallLimit       int

	// mu protects the active goal table.
	mu     sync.Mutex
	active map[string]time.Time
}

// NewEngine creates a new orchestration engine.
func NewEngine(opts Options) (*Engine, error) {
	if opts.Planner == nil || opts.Executor == nil || opts.Evaluator == nil || opts.Replanner == nil {
		return nil, NewPermanentError("all four agent roles are required", nil).
			WithCode(ErrCodeValidation)
	}
	if opts.Store == nil {
		return nil, NewPermanentError("store is required", nil).
			WithCode(ErrCodeValidation)
	}

	maxIter := opts.MaxPlanIterations
	if maxIter <= 0 {
		maxIter = DefaultMaxPlanIterations
	}
	recall := opts.RecallLimit
	if recall <= 0 {
		recall = DefaultRecallLimit
	}

	return &Engine{
		planner:           opts.Planner,
		executor:          opts.Executor,
		evaluator:         opts.Evaluator,
		replanner:         opts.Replanner,
		store:             opts.Store,
		events:            opts.Events,
		memory:            opts.Memory,
		policy:            opts.Policy,
		metrics:           opts.Metrics,
		tracer:            opts.Tracer,
		logger:            opts.Logger.With().Str("component", "engine").Logger(),
		maxPlanIterations: maxIter,
		recallLimit:       recall,
		active:            make(map[string]time.Time),
	}, nil
}

// SubmitGoal accepts a goal, persists it, and starts processing on a
// background goroutine. It returns as soon as the goal is persisted; the
// run's outcome is observable via the store or the event stream.
func (e *Engine) SubmitGoal(ctx context.Context, owner, text string) (*Goal, error) {
	if text == "" {
		return nil, NewPermanentError("goal text is empty", nil).
			WithCode(ErrCodeValidation).
			WithOperation("submit_goal")
	}

	now := time.Now()
	goal := &Goal{
		ID:        uuid.New().String(),
		Owner:     owner,
		Text:      text,
		Status:    GoalStatusReceived,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := e.store.CreateGoal(ctx, goal); err != nil {
		return nil, fmt.Errorf("failed to persist goal: %w", err)
	}

	e.mu.Lock()
	e.active[goal.ID] = now
	e.mu.Unlock()

	if e.metrics != nil {
		e.metrics.RecordGoalStarted()
	}

	// The background run gets its own copy of the goal so the caller can
	// read the returned snapshot without racing the run's mutations.
	run := *goal
	go func() {
		// The request context ends when the caller returns; goal
		// processing outlives it.
		runCtx := context.Background()
		defer e.finishTracking(run.ID, now)
		e.ProcessGoal(runCtx, &run)
	}()

	return goal, nil
}

// ActiveGoals returns the IDs of goals currently being processed.
func (e *Engine) ActiveGoals() []string {
	e.mu.Lock()
	defer e.mu.Unlock()

	ids := make([]string, 0, len(e.active))
	for id := range e.active {
		ids = append(ids, id)
	}
	return ids
}

func (e *Engine) finishTracking(goalID string, startedAt time.Time) {
	e.mu.Lock()
	delete(e.active, goalID)
	e.mu.Unlock()

	e.logger.Debug().
		Str("goal_id", goalID).
		Dur("duration", time.Since(startedAt)).
		Msg("Goal processing finished")
}

// ProcessGoal runs the full plan-execute-evaluate-replan cycle for a goal.
// It never returns an error: every fault is absorbed into the goal's
// terminal status and the event stream.
func (e *Engine) ProcessGoal(ctx context.Context, goal *Goal) {
	startedAt := time.Now()

	if e.tracer != nil {
		var span trace.Span
		ctx, span = e.tracer.StartGoalSpan(ctx, goal.ID)
		defer span.End()
		// Registered before the recover handler so the fault status is
		// already on the goal when the span closes.
		defer func() { recordGoalSpan(span, goal) }()
	}

	defer func() {
		if r := recover(); r != nil {
			e.logger.Error().
				Str("goal_id", goal.ID).
				Interface("panic", r).
				Msg("Goal processing panicked")
			e.faultGoal(ctx, goal, fmt.Sprintf("internal fault: %v", r))
		}
	}()

	log := e.logger.With().Str("goal_id", goal.ID).Logger()
	log.Info().Str("text", goal.Text).Msg("Processing goal")

	plan, err := e.planGoal(ctx, goal)
	if err != nil {
		log.Error().Err(err).Msg("Planning failed")
		e.recordError(err)
		e.faultGoal(ctx, goal, fmt.Sprintf("planning failed: %v", err))
		e.recordCompletion(goal, startedAt)
		return
	}

	plan, err = e.executePlan(ctx, goal, plan)
	if err != nil {
		log.Error().Err(err).Msg("Execution faulted")
		e.recordError(err)
		e.faultGoal(ctx, goal, fmt.Sprintf("execution failed: %v", err))
		e.recordCompletion(goal, startedAt)
		return
	}

	if IsComplete(plan) {
		e.completeGoal(ctx, goal, plan)
	} else {
		e.failGoal(ctx, goal, "no further progress possible")
	}
	e.recordCompletion(goal, startedAt)
}

func (e *Engine) recordCompletion(goal *Goal, startedAt time.Time) {
	if e.metrics != nil {
		e.metrics.RecordGoalCompleted(string(goal.Status), time.Since(startedAt))
	}
}

func (e *Engine) recordError(err error) {
	if e.metrics != nil {
		e.metrics.RecordError(string(GetErrorClass(err)), GetErrorCode(err))
	}
}

// planGoal transitions the goal to planning, obtains plan version 1, admits
// it, and activates it.
func (e *Engine) planGoal(ctx context.Context, goal *Goal) (*Plan, error) {
	if err := e.setGoalStatus(ctx, goal, GoalStatusPlanning); err != nil {
		return nil, err
	}

	var recalled []MemoryEntry
	if e.memory != nil {
		entries, err := e.memory.Recall(ctx, goal.Text, e.recallLimit)
		if err != nil {
			// Recall is advisory; planning proceeds without it.
			e.logger.Warn().Err(err).Str("goal_id", goal.ID).Msg("Memory recall failed")
		} else {
			recalled = entries
		}
	}

	plan, err := e.planner.CreatePlan(ctx, goal, recalled)
	if err != nil {
		return nil, fmt.Errorf("planner failed: %w", err)
	}

	if err := e.preparePlan(goal, plan, 1); err != nil {
		return nil, err
	}
	if err := e.admitPlan(ctx, plan); err != nil {
		return nil, err
	}
	if err := e.activatePlan(ctx, goal, plan); err != nil {
		return nil, err
	}

	if err := e.setGoalStatus(ctx, goal, GoalStatusExecuting); err != nil {
		return nil, err
	}
	return plan, nil
}

// preparePlan normalizes producer output and validates the DAG.
func (e *Engine) preparePlan(goal *Goal, plan *Plan, version int) error {
	if plan.ID == "" {
		plan.ID = uuid.New().String()
	}
	plan.GoalID = goal.ID
	plan.Version = version
	plan.Active = true
	if plan.CreatedAt.IsZero() {
		plan.CreatedAt = time.Now()
	}
	for _, step := range plan.Steps {
		if step.Status == "" {
			step.Status = StepStatusPending
		}
		if step.MaxRetries <= 0 {
			step.MaxRetries = DefaultMaxRetries
		}
	}
	return plan.Validate()
}

func (e *Engine) admitPlan(ctx context.Context, plan *Plan) error {
	if e.policy == nil {
		return nil
	}

	result, err := e.policy.AdmitPlan(ctx, plan)
	if err != nil {
		return fmt.Errorf("policy evaluation failed: %w", err)
	}
	if !result.Allowed {
		msg := "plan rejected by policy"
		if len(result.Violations) > 0 {
			msg = fmt.Sprintf("plan rejected by policy: %s", result.Violations[0].Message)
		}
		return NewPermanentError(msg, nil).
			WithCode(ErrCodePlanRejected).
			WithResource(plan.ID).
			WithOperation("admit_plan")
	}
	for _, w := range result.Warnings {
		e.logger.Warn().Str("plan_id", plan.ID).Str("warning", w).Msg("Policy warning")
	}
	return nil
}

// activatePlan persists the plan as the goal's single active version and
// announces it. Prior versions are deactivated first.
func (e *Engine) activatePlan(ctx context.Context, goal *Goal, plan *Plan) error {
	if err := e.store.DeactivatePlans(ctx, goal.ID); err != nil {
		return fmt.Errorf("failed to deactivate prior plans: %w", err)
	}
	if err := e.store.CreatePlan(ctx, plan); err != nil {
		return fmt.Errorf("failed to persist plan: %w", err)
	}

	goal.ActivePlanID = plan.ID
	goal.UpdatedAt = time.Now()
	if err := e.store.UpdateGoal(ctx, goal); err != nil {
		return fmt.Errorf("failed to rebind active plan: %w", err)
	}

	e.publish(goal.ID, EventPlanCreated, map[string]interface{}{
		"plan_id": plan.ID,
		"version": plan.Version,
		"steps":   plan.Steps,
	})
	return nil
}

// executePlan runs the scheduling loop until the plan completes, no steps
// are ready, or the plan-iteration ceiling is hit. It returns the plan
// version that was current when the loop exited.
func (e *Engine) executePlan(ctx context.Context, goal *Goal, plan *Plan) (*Plan, error) {
	log := e.logger.With().Str("goal_id", goal.ID).Logger()

	// Steps whose failure already drove a recovery attempt that left them
	// failed (escalation or exhausted fallback). They never trigger
	// replanning again.
	handled := make(map[string]bool)

	for iteration := 0; iteration < e.maxPlanIterations; iteration++ {
		ready := ReadySteps(plan)
		if len(ready) == 0 {
			log.Debug().Int("iteration", iteration).Msg("No ready steps, exiting loop")
			break
		}

		log.Info().
			Int("iteration", iteration).
			Int("ready", len(ready)).
			Int("plan_version", plan.Version).
			Msg("Scheduling ready steps")

		// planMu serializes step mutation and write-through within one
		// batch; executor and evaluator calls run outside the lock.
		var planMu sync.Mutex

		if len(ready) == 1 {
			e.attemptStep(ctx, goal, plan, ready[0], &planMu)
		} else {
			// Independent steps run concurrently. The next iteration only
			// begins after the whole batch has settled.
			var wg sync.WaitGroup
			for _, step := range ready {
				wg.Add(1)
				go func(s *Step) {
					defer wg.Done()
					e.attemptStep(ctx, goal, plan, s, &planMu)
				}(step)
			}
			wg.Wait()
		}

		if IsComplete(plan) {
			break
		}

		// One representative failed step per iteration drives replanning:
		// the first failed step in plan order not yet handled.
		failed := firstUnhandledFailed(plan, handled)
		if failed == nil {
			continue
		}

		newPlan, err := e.replan(ctx, goal, plan, failed)
		if err != nil {
			return plan, err
		}
		if ns := FindStep(newPlan, failed.ID); ns != nil && ns.Status == StepStatusFailed {
			handled[failed.ID] = true
		}
		plan = newPlan
	}

	return plan, nil
}

func firstUnhandledFailed(plan *Plan, handled map[string]bool) *Step {
	for _, step := range plan.Steps {
		if step.Status == StepStatusFailed && !handled[step.ID] {
			return step
		}
	}
	return nil
}

// attemptStep runs one execute-evaluate pass for a step and applies the
// retry policy to the verdict. Faults are absorbed into the step state.
func (e *Engine) attemptStep(ctx context.Context, goal *Goal, plan *Plan, step *Step, planMu *sync.Mutex) {
	log := e.logger.With().
		Str("goal_id", goal.ID).
		Str("step_id", step.ID).
		Logger()

	if e.tracer != nil {
		var span trace.Span
		ctx, span = e.tracer.StartStepSpan(ctx, step.ID, plan.ID, step.RetryCount)
		defer span.End()
		defer func() { recordStepSpan(span, step) }()
	}

	attemptStart := time.Now()

	planMu.Lock()
	step.Status = StepStatusInProgress
	step.StartedAt = &attemptStart
	e.persistStep(ctx, plan, step)
	e.publishStepUpdate(goal.ID, step, "")
	previous := DependencyResults(plan, step)
	planMu.Unlock()

	result, execErr := e.executor.ExecuteStep(ctx, goal, plan, step, previous)
	if execErr != nil {
		log.Warn().Err(execErr).Msg("Step execution faulted")
		result = &ExecutionResult{
			StepID:    step.ID,
			Summary:   fmt.Sprintf("execution faulted: %v", execErr),
			Timestamp: time.Now(),
		}
	}

	planMu.Lock()
	step.Status = StepStatusEvaluating
	e.persistStep(ctx, plan, step)
	e.publishStepUpdate(goal.ID, step, "")
	planMu.Unlock()

	eval := e.evaluateStep(ctx, goal, plan, step, result, execErr)

	planMu.Lock()
	if eval.Outcome == EvalOutcomeSuccess {
		completedAt := time.Now()
		step.Status = StepStatusCompleted
		step.Result = result.OutputData
		step.Error = ""
		step.CompletedAt = &completedAt
		e.persistStep(ctx, plan, step)
		e.publishStepUpdate(goal.ID, step, result.Summary)
		log.Info().Int("retries", step.RetryCount).Msg("Step completed")
	} else {
		e.handleStepFailure(ctx, goal, plan, step, eval)
	}
	planMu.Unlock()

	if e.metrics != nil {
		e.metrics.RecordStepExecution(string(step.Status), time.Since(attemptStart))
	}
}

// evaluateStep obtains a verdict, falling back to a mechanical failure
// verdict when the evaluator itself faults.
func (e *Engine) evaluateStep(ctx context.Context, goal *Goal, plan *Plan, step *Step,
	result *ExecutionResult, execErr error) *Evaluation {
	if execErr != nil {
		return &Evaluation{
			StepID:    step.ID,
			Outcome:   EvalOutcomeFailure,
			Reasoning: execErr.Error(),
		}
	}

	eval, err := e.evaluator.Evaluate(ctx, goal, plan, step, result)
	if err != nil {
		e.logger.Warn().Err(err).Str("step_id", step.ID).Msg("Evaluator faulted")
		return &Evaluation{
			StepID:    step.ID,
			Outcome:   EvalOutcomeFailure,
			Reasoning: fmt.Sprintf("evaluation failed: %v", err),
		}
	}
	return eval
}

// handleStepFailure applies the retry ceiling: below the ceiling the step
// returns to pending and re-enters the ready set; at the ceiling it is
// forced to failed, which triggers replanning in the owning iteration.
func (e *Engine) handleStepFailure(ctx context.Context, goal *Goal, plan *Plan, step *Step, eval *Evaluation) {
	step.RetryCount++
	step.Error = eval.Reasoning

	if step.RetryCount < step.MaxRetries {
		step.Status = StepStatusPending
		e.persistStep(ctx, plan, step)
		e.publish(goal.ID, EventStepUpdate, map[string]interface{}{
			"step_id":     step.ID,
			"title":       step.Title,
			"status":      "retrying",
			"retry_count": step.RetryCount,
			"error":       step.Error,
		})
		e.logger.Info().
			Str("step_id", step.ID).
			Int("retry_count", step.RetryCount).
			Int("max_retries", step.MaxRetries).
			Msg("Step failed, retrying")
		return
	}

	completedAt := time.Now()
	step.Status = StepStatusFailed
	step.CompletedAt = &completedAt
	e.persistStep(ctx, plan, step)
	e.publishStepUpdate(goal.ID, step, "")
	e.logger.Warn().
		Str("step_id", step.ID).
		Int("retry_count", step.RetryCount).
		Msg("Step exhausted retries")
}

// replan produces and activates the next plan version for a failed step.
// If the replanner cannot be obtained, the simple-retry fallback guarantees
// the loop still terminates.
func (e *Engine) replan(ctx context.Context, goal *Goal, plan *Plan, failed *Step) (*Plan, error) {
	log := e.logger.With().
		Str("goal_id", goal.ID).
		Str("step_id", failed.ID).
		Logger()

	e.publish(goal.ID, EventReplanning, map[string]interface{}{
		"failed_step_id": failed.ID,
		"failed_title":   failed.Title,
		"plan_version":   plan.Version,
	})

	eval := &Evaluation{
		StepID:    failed.ID,
		Outcome:   EvalOutcomeFailure,
		Reasoning: failed.Error,
	}
	result := &ExecutionResult{StepID: failed.ID, Summary: failed.Error, Timestamp: time.Now()}

	newPlan, err := e.replanner.Replan(ctx, goal, plan, failed, eval, result)
	if err != nil {
		log.Warn().Err(err).Msg("Replanner unavailable, applying simple retry")
		e.simpleRetry(ctx, goal, plan, failed)
		return plan, nil
	}

	if err := e.preparePlan(goal, newPlan, plan.Version+1); err != nil {
		log.Warn().Err(err).Msg("Replanned plan invalid, applying simple retry")
		e.simpleRetry(ctx, goal, plan, failed)
		return plan, nil
	}
	if err := e.admitPlan(ctx, newPlan); err != nil {
		log.Warn().Err(err).Msg("Replanned plan rejected, applying simple retry")
		e.simpleRetry(ctx, goal, plan, failed)
		return plan, nil
	}

	// The superseded plan keeps its history; only the failed step is marked
	// as having been replanned.
	failed.Status = StepStatusReplanned
	e.persistStep(ctx, plan, failed)

	if err := e.activatePlan(ctx, goal, newPlan); err != nil {
		return plan, err
	}

	if e.metrics != nil {
		e.metrics.RecordReplan("replanner")
	}
	log.Info().
		Int("old_version", plan.Version).
		Int("new_version", newPlan.Version).
		Msg("Plan replaced")
	return newPlan, nil
}

// simpleRetry is the degraded recovery path used when the replanner cannot
// produce a plan: the retry ceiling alone decides whether the step gets
// another attempt. The ceiling guarantees termination.
func (e *Engine) simpleRetry(ctx context.Context, goal *Goal, plan *Plan, step *Step) {
	if step.RetryCount >= step.MaxRetries {
		completedAt := time.Now()
		step.Status = StepStatusFailed
		step.Error = "retry ceiling reached and replanning unavailable"
		step.CompletedAt = &completedAt
		e.persistStep(ctx, plan, step)
		e.publishStepUpdate(goal.ID, step, "")
		return
	}

	step.RetryCount++
	step.Status = StepStatusPending
	e.persistStep(ctx, plan, step)
	e.publish(goal.ID, EventStepUpdate, map[string]interface{}{
		"step_id":     step.ID,
		"title":       step.Title,
		"status":      "retrying",
		"retry_count": step.RetryCount,
	})

	if e.metrics != nil {
		e.metrics.RecordReplan("simple_retry")
	}
}

// completeGoal finalizes a satisfied goal and records the run for recall.
func (e *Engine) completeGoal(ctx context.Context, goal *Goal, plan *Plan) {
	goal.Status = GoalStatusCompleted
	goal.UpdatedAt = time.Now()
	if err := e.store.UpdateGoal(ctx, goal); err != nil {
		e.logger.Error().Err(err).Str("goal_id", goal.ID).Msg("Failed to persist completed goal")
	}

	e.publish(goal.ID, EventGoalCompleted, map[string]interface{}{
		"plan_id":      plan.ID,
		"plan_version": plan.Version,
		"steps":        len(plan.Steps),
	})

	if e.memory != nil {
		if err := e.memory.RecordRun(ctx, goal, plan); err != nil {
			e.logger.Warn().Err(err).Str("goal_id", goal.ID).Msg("Failed to record run memory")
		}
	}

	e.logger.Info().Str("goal_id", goal.ID).Msg("Goal completed")
}

// failGoal finalizes an unsatisfiable goal.
func (e *Engine) failGoal(ctx context.Context, goal *Goal, reason string) {
	goal.Status = GoalStatusFailed
	goal.Error = reason
	goal.UpdatedAt = time.Now()
	if err := e.store.UpdateGoal(ctx, goal); err != nil {
		e.logger.Error().Err(err).Str("goal_id", goal.ID).Msg("Failed to persist failed goal")
	}

	e.publish(goal.ID, EventGoalFailed, map[string]interface{}{
		"reason": reason,
	})
	e.logger.Warn().Str("goal_id", goal.ID).Str("reason", reason).Msg("Goal failed")
}

// faultGoal is the outermost safety net for unhandled faults. It must never
// itself raise, so persistence failures are only logged.
func (e *Engine) faultGoal(ctx context.Context, goal *Goal, detail string) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error().Interface("panic", r).Msg("Fault handler panicked")
		}
	}()

	goal.Status = GoalStatusFailed
	goal.Error = detail
	goal.UpdatedAt = time.Now()
	if err := e.store.UpdateGoal(ctx, goal); err != nil {
		e.logger.Error().Err(err).Str("goal_id", goal.ID).Msg("Failed to persist faulted goal")
	}

	e.publish(goal.ID, EventError, map[string]interface{}{
		"detail": detail,
	})
}

// setGoalStatus persists a lifecycle transition and announces it.
func (e *Engine) setGoalStatus(ctx context.Context, goal *Goal, status GoalStatus) error {
	goal.Status = status
	goal.UpdatedAt = time.Now()
	if err := e.store.UpdateGoal(ctx, goal); err != nil {
		return fmt.Errorf("failed to persist goal status %s: %w", status, err)
	}

	e.publish(goal.ID, EventGoalStatus, map[string]interface{}{
		"status": string(status),
	})
	return nil
}

// persistStep writes the plan through the store. Mutations are persisted
// before the corresponding event is published, so listeners always observe
// consistent state.
func (e *Engine) persistStep(ctx context.Context, plan *Plan, step *Step) {
	if err := e.store.UpdatePlan(ctx, plan); err != nil {
		e.logger.Error().Err(err).
			Str("plan_id", plan.ID).
			Str("step_id", step.ID).
			Msg("Failed to persist step state")
	}
}

func (e *Engine) publishStepUpdate(goalID string, step *Step, summary string) {
	payload := map[string]interface{}{
		"step_id":     step.ID,
		"title":       step.Title,
		"status":      string(step.Status),
		"retry_count": step.RetryCount,
	}
	if summary != "" {
		payload["summary"] = summary
	}
	if step.Error != "" {
		payload["error"] = step.Error
	}
	e.publish(goalID, EventStepUpdate, payload)
}

// recordGoalSpan closes out a goal span with the goal's terminal state.
func recordGoalSpan(span trace.Span, goal *Goal) {
	span.SetAttributes(attribute.String("goal.status", string(goal.Status)))
	if goal.Status == GoalStatusCompleted {
		span.SetStatus(codes.Ok, "")
	} else {
		span.SetStatus(codes.Error, goal.Error)
	}
}

// recordStepSpan closes out a step span with the state the attempt left the
// step in.
func recordStepSpan(span trace.Span, step *Step) {
	span.SetAttributes(
		attribute.String("step.status", string(step.Status)),
		attribute.Int("step.retry_count", step.RetryCount),
	)
	if step.Status == StepStatusFailed {
		span.SetStatus(codes.Error, step.Error)
	} else {
		span.SetStatus(codes.Ok, "")
	}
}

func (e *Engine) publish(goalID string, eventType StreamEventType, payload map[string]interface{}) {
	if e.events == nil {
		return
	}
	e.events.Publish(&StreamEvent{
		ID:        uuid.New().String(),
		Type:      eventType,
		GoalID:    goalID,
		Payload:   payload,
		Timestamp: time.Now(),
	})
}
