// Package orchestrator drives a task graph through its execution plan.
//
// The orchestrator walks the scheduler's waves in order and drives each
// task's state machine through its attempts, retrying failed tasks while
// their budget lasts. A task that exhausts its budget aborts the run:
// the current wave drains, every task that has not started is cancelled,
// and no later wave is entered. Collaborators (executor, ledger, event
// bus, hooks, tracer, metrics) are injected; every one of them except
// the executor is optional.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/conduct-dev/conduct/internal/events"
	"github.com/conduct-dev/conduct/internal/hooks"
	"github.com/conduct-dev/conduct/internal/ledger"
	"github.com/conduct-dev/conduct/internal/observability"
	"github.com/conduct-dev/conduct/internal/scheduler"
	"github.com/conduct-dev/conduct/internal/statemachine"
	"github.com/conduct-dev/conduct/internal/task"
	"github.com/conduct-dev/conduct/internal/types"
)

// Orchestrator executes one run of one graph. It is single-use: Run may
// be called once; a second call fails with RUN_ALREADY_STARTED.
type Orchestrator struct {
	graph     *task.Graph
	scheduler *scheduler.Scheduler
	executor  Executor

	logger      *slog.Logger
	log         *observability.RunLogger
	tracer      trace.Tracer
	ledger      ledger.Ledger
	hooks       *hooks.Registry
	bus         events.EventBus
	metrics     *observability.Recorder
	maxParallel int

	runID    types.ID
	machines map[string]*statemachine.TaskStateMachine

	// waveByTask maps each task to its planned wave index. Written once
	// when the plan is computed, before any task runs.
	waveByTask map[string]int

	mu         sync.Mutex
	started    bool
	results    map[string]*TaskResult
	failedTask string

	// completed is only written between waves, after the wave barrier,
	// so in-wave goroutines may read it without locking.
	completed map[string]bool
}

// Option is a functional option for configuring an Orchestrator.
type Option func(*Orchestrator)

// WithLogger configures the orchestrator to use the specified structured
// logger for run execution logging. Its handler backs a run-scoped
// logger, so every entry carries the run id and, inside spans, the
// trace and span ids.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithTracer configures the orchestrator to emit OpenTelemetry spans for
// the run and for each task attempt.
func WithTracer(tracer trace.Tracer) Option {
	return func(o *Orchestrator) {
		o.tracer = tracer
	}
}

// WithLedger configures the ledger that receives a record for every run
// and task lifecycle transition.
func WithLedger(l ledger.Ledger) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.ledger = l
		}
	}
}

// WithHooks configures the hook registry dispatched at run start, after
// each task settles, and at run end.
func WithHooks(registry *hooks.Registry) Option {
	return func(o *Orchestrator) {
		o.hooks = registry
	}
}

// WithEventBus configures the bus on which task and run lifecycle events
// are published.
func WithEventBus(bus events.EventBus) Option {
	return func(o *Orchestrator) {
		o.bus = bus
	}
}

// WithMetrics configures the metrics recorder for task, wave and run
// instruments.
func WithMetrics(recorder *observability.Recorder) Option {
	return func(o *Orchestrator) {
		o.metrics = recorder
	}
}

// WithMaxParallel configures the maximum number of tasks that may execute
// concurrently within a wave. The default of 1 executes each wave in the
// plan's tie-break order, which is the reference sequential order.
func WithMaxParallel(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.maxParallel = n
		}
	}
}

// New creates an Orchestrator for one run of the given graph. An
// execution record and state machine is built for every task up front,
// each with a trace id that stays stable across that task's retries.
func New(graph *task.Graph, executor Executor, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		graph:       graph,
		scheduler:   scheduler.New(),
		executor:    executor,
		logger:      slog.Default(),
		ledger:      ledger.Nop{},
		maxParallel: 1,
		runID:       types.NewID(),
		machines:    make(map[string]*statemachine.TaskStateMachine),
		results:     make(map[string]*TaskResult),
		completed:   make(map[string]bool),
	}

	for _, opt := range opts {
		opt(o)
	}

	// Run logs flow through a run-scoped logger that stamps the run id
	// and, inside spans, the trace and span ids.
	o.log = observability.NewRunLogger(o.logger.Handler(), o.runID.String())

	for _, t := range graph.Tasks() {
		o.machines[t.ID] = statemachine.NewTaskStateMachine(statemachine.NewTaskExecution(t))
	}

	return o
}

// RunID returns the run's identifier.
func (o *Orchestrator) RunID() types.ID {
	return o.runID
}

// Run executes the graph and returns the per-task results.
//
// Waves execute strictly in plan order; wave N+1 never starts before
// every task in wave N has settled. Within a wave, up to maxParallel
// tasks run concurrently. A task failure is retried until its budget is
// spent; exhaustion aborts the run with a RUN_ABORTED error, and the
// returned results still describe every task, including the cancelled
// remainder. Context cancellation is observed between attempts and
// between tasks, never mid-call.
func (o *Orchestrator) Run(ctx context.Context) (map[string]*TaskResult, error) {
	o.mu.Lock()
	if o.started {
		o.mu.Unlock()
		return nil, types.NewError(types.RUN_ALREADY_STARTED,
			fmt.Sprintf("run %s has already been started; create a new orchestrator for a fresh run", o.runID))
	}
	o.started = true
	o.mu.Unlock()

	plan, err := o.scheduler.Plan(o.graph)
	if err != nil {
		return nil, err
	}

	o.waveByTask = make(map[string]int, plan.TotalTasks)
	for _, wave := range plan.Waves {
		for _, id := range wave.TaskIDs {
			o.waveByTask[id] = wave.Index
		}
	}

	var span trace.Span
	if o.tracer != nil {
		ctx, span = o.tracer.Start(ctx, "orchestrator.run",
			trace.WithAttributes(
				attribute.String("run.id", o.runID.String()),
				attribute.Int("run.task_count", plan.TotalTasks),
				attribute.Int("run.wave_count", plan.TotalWaves),
			),
		)
		defer span.End()
	}

	o.log.Info(ctx, "starting run",
		"graph", o.graph.Name(),
		"task_count", plan.TotalTasks,
		"wave_count", plan.TotalWaves,
		"max_parallel", o.maxParallel,
	)

	startTime := time.Now()
	o.announceRun(ctx, plan)

	for _, wave := range plan.Waves {
		if err := ctx.Err(); err != nil {
			return o.abort(ctx, startTime, types.WrapError(types.RUN_ABORTED, "run cancelled", err))
		}

		waveStart := time.Now()
		o.announceWave(ctx, wave)

		g := &errgroup.Group{}
		g.SetLimit(o.maxParallel)
		for _, id := range wave.TaskIDs {
			taskID := id
			g.Go(func() error {
				return o.runTask(ctx, wave, taskID)
			})
		}

		// Wave barrier: every task in the wave settles before the run
		// moves on, aborts included.
		if err := g.Wait(); err != nil {
			return o.abort(ctx, startTime, err)
		}

		for _, id := range wave.TaskIDs {
			o.completed[id] = true
		}

		waveDuration := time.Since(waveStart)
		if o.metrics != nil {
			o.metrics.RecordWave(wave.Index, waveDuration)
		}
		o.publish(ctx, events.Event{
			Type:      events.EventWaveCompleted,
			Timestamp: time.Now().UTC(),
			RunID:     o.runID,
			Payload: events.WaveCompletedPayload{
				RunID:    o.runID,
				Wave:     wave.Index,
				Duration: waveDuration,
			},
		})
		o.publish(ctx, events.Event{
			Type:      events.EventRunProgress,
			Timestamp: time.Now().UTC(),
			RunID:     o.runID,
			Payload: events.RunProgressPayload{
				RunID:          o.runID,
				CompletedTasks: len(o.completed),
				TotalTasks:     plan.TotalTasks,
				CurrentWave:    wave.Index,
			},
		})
	}

	return o.finish(ctx, startTime)
}

// runTask drives one task through its retry loop until it settles.
// Returning a non-nil error aborts the run after the wave drains.
func (o *Orchestrator) runTask(ctx context.Context, wave scheduler.Wave, taskID string) error {
	sm := o.machines[taskID]
	exec := sm.Execution()
	taskStart := time.Now()

	// The plan already guarantees dependency order; this re-validation
	// catches scheduling bugs before they execute anything.
	if err := sm.EnsureDependenciesSatisfied(o.completed); err != nil {
		o.log.Error(ctx, "dependency re-validation failed",
			"task_id", taskID, "error", err)
		o.noteFailedTask(taskID)
		return err
	}

	for {
		if ctxErr := ctx.Err(); ctxErr != nil {
			o.cancelTask(ctx, sm, wave.Index, taskStart, "run cancelled")
			return types.WrapError(types.RUN_ABORTED, "run cancelled", ctxErr)
		}

		if err := sm.Start(); err != nil {
			// Start only refuses on a bug in the wave loop; surface it.
			o.noteFailedTask(taskID)
			return err
		}

		o.log.Debug(ctx, "task attempt starting",
			"task_id", taskID,
			"trace_id", exec.TraceID,
			"attempt", exec.Attempt,
			"max_attempts", exec.MaxAttempts,
		)
		o.publish(ctx, events.Event{
			Type:      events.EventTaskStarted,
			Timestamp: time.Now().UTC(),
			RunID:     o.runID,
			TaskID:    taskID,
			TraceID:   exec.TraceID.String(),
			Payload: events.TaskStartedPayload{
				RunID:   o.runID,
				TaskID:  taskID,
				Attempt: exec.Attempt,
			},
		})

		attemptStart := time.Now()
		output, execErr := o.executeAttempt(ctx, taskID, exec)
		attemptDuration := time.Since(attemptStart)

		if execErr == nil {
			if err := sm.Complete(); err != nil {
				o.noteFailedTask(taskID)
				return err
			}
			o.settleTask(ctx, sm, wave.Index, taskStart, output, nil)
			if o.metrics != nil {
				o.metrics.RecordTaskCompleted(taskID, exec.Attempt, attemptDuration)
			}
			o.publish(ctx, events.Event{
				Type:      events.EventTaskCompleted,
				Timestamp: time.Now().UTC(),
				RunID:     o.runID,
				TaskID:    taskID,
				TraceID:   exec.TraceID.String(),
				Payload: events.TaskCompletedPayload{
					RunID:    o.runID,
					TaskID:   taskID,
					Attempt:  exec.Attempt,
					Duration: attemptDuration,
				},
			})
			return nil
		}

		if err := sm.Fail(); err != nil {
			o.noteFailedTask(taskID)
			return err
		}
		exhausted := !exec.AttemptsRemaining()
		o.log.Warn(ctx, "task attempt failed",
			"task_id", taskID,
			"trace_id", exec.TraceID,
			"attempt", exec.Attempt,
			"max_attempts", exec.MaxAttempts,
			"exhausted", exhausted,
			"error", execErr,
		)
		if o.metrics != nil {
			o.metrics.RecordTaskFailed(taskID, exec.Attempt, attemptDuration, exhausted)
		}
		o.publish(ctx, events.Event{
			Type:      events.EventTaskFailed,
			Timestamp: time.Now().UTC(),
			RunID:     o.runID,
			TaskID:    taskID,
			TraceID:   exec.TraceID.String(),
			Payload: events.TaskFailedPayload{
				RunID:     o.runID,
				TaskID:    taskID,
				Attempt:   exec.Attempt,
				Error:     execErr.Error(),
				Duration:  attemptDuration,
				Exhausted: exhausted,
			},
		})

		if !exhausted {
			if err := sm.Reset(); err != nil {
				o.noteFailedTask(taskID)
				return err
			}
			o.recordRetry(ctx, sm, wave.Index, execErr)
			continue
		}

		// Budget spent: the task settles in failed and the run aborts.
		o.settleTask(ctx, sm, wave.Index, taskStart, nil, execErr)
		o.noteFailedTask(taskID)
		return types.WrapError(types.RUN_ABORTED,
			fmt.Sprintf("task %s failed after %d of %d attempts", taskID, exec.Attempt, exec.MaxAttempts),
			execErr)
	}
}

// executeAttempt invokes the executor for one attempt, wrapped in a span
// when a tracer is configured.
func (o *Orchestrator) executeAttempt(ctx context.Context, taskID string, exec *statemachine.TaskExecution) (any, error) {
	if o.tracer != nil {
		var span trace.Span
		ctx, span = o.tracer.Start(ctx, "task.execute",
			trace.WithAttributes(
				attribute.String("task.id", taskID),
				attribute.String("task.trace_id", exec.TraceID.String()),
				attribute.Int("task.attempt", exec.Attempt),
			),
		)
		defer span.End()

		output, err := o.executor.Execute(ctx, taskID, exec)
		if err != nil {
			span.RecordError(err)
		}
		return output, err
	}
	return o.executor.Execute(ctx, taskID, exec)
}

// settleTask records a task's final outcome for this run: result map,
// ledger entry, and the after-task hook. Called once per task.
func (o *Orchestrator) settleTask(ctx context.Context, sm *statemachine.TaskStateMachine, waveIndex int, taskStart time.Time, output any, taskErr error) {
	exec := sm.Execution()

	result := &TaskResult{
		TaskID:   exec.TaskID,
		State:    exec.State,
		Attempts: exec.Attempt,
		TraceID:  exec.TraceID,
		Output:   output,
		Duration: time.Since(taskStart),
	}
	if taskErr != nil {
		result.Error = taskErr.Error()
	}
	o.setResult(result)

	ev := ledger.NewEvent(ledger.EventTaskStateChange)
	ev.RunID = o.runID.String()
	ev.TaskID = exec.TaskID
	ev.TraceID = exec.TraceID.String()
	ev.State = exec.State.String()
	ev.Attempt = exec.Attempt
	ev.Data = map[string]any{"wave": waveIndex}
	if taskErr != nil {
		ev.Error = taskErr.Error()
	}
	o.record(ctx, ev)

	if o.hooks != nil {
		info := hooks.TaskInfo{
			RunID:   o.runID,
			TaskID:  exec.TaskID,
			State:   exec.State.String(),
			Attempt: exec.Attempt,
			TraceID: exec.TraceID,
			Output:  output,
		}
		if taskErr != nil {
			info.Error = taskErr.Error()
		}
		o.hooks.AfterTask(ctx, info)
	}
}

// cancelTask moves a task that never settled to cancelled.
func (o *Orchestrator) cancelTask(ctx context.Context, sm *statemachine.TaskStateMachine, waveIndex int, taskStart time.Time, reason string) {
	exec := sm.Execution()
	if err := sm.Cancel(); err != nil {
		o.log.Error(ctx, "could not cancel task",
			"task_id", exec.TaskID, "error", err)
		return
	}
	o.settleTask(ctx, sm, waveIndex, taskStart, nil, nil)
	o.publish(ctx, events.Event{
		Type:      events.EventTaskCancelled,
		Timestamp: time.Now().UTC(),
		RunID:     o.runID,
		TaskID:    exec.TaskID,
		TraceID:   exec.TraceID.String(),
		Payload: events.TaskCancelledPayload{
			RunID:  o.runID,
			TaskID: exec.TaskID,
			Reason: reason,
		},
	})
}

// recordRetry emits the failed -> pending reset for a task with budget
// remaining.
func (o *Orchestrator) recordRetry(ctx context.Context, sm *statemachine.TaskStateMachine, waveIndex int, execErr error) {
	exec := sm.Execution()

	ev := ledger.NewEvent(ledger.EventTaskRetry)
	ev.RunID = o.runID.String()
	ev.TaskID = exec.TaskID
	ev.TraceID = exec.TraceID.String()
	ev.State = exec.State.String()
	ev.Attempt = exec.Attempt
	ev.Error = execErr.Error()
	ev.Data = map[string]any{"wave": waveIndex}
	o.record(ctx, ev)

	if o.metrics != nil {
		o.metrics.RecordTaskRetried(exec.TaskID, exec.Attempt+1)
	}
	o.publish(ctx, events.Event{
		Type:      events.EventTaskRetried,
		Timestamp: time.Now().UTC(),
		RunID:     o.runID,
		TaskID:    exec.TaskID,
		TraceID:   exec.TraceID.String(),
		Payload: events.TaskRetriedPayload{
			RunID:       o.runID,
			TaskID:      exec.TaskID,
			NextAttempt: exec.Attempt + 1,
			MaxAttempts: exec.MaxAttempts,
		},
	})
}

// announceRun records and publishes the run start and dispatches the
// before-run hook.
func (o *Orchestrator) announceRun(ctx context.Context, plan *scheduler.Plan) {
	ev := ledger.NewEvent(ledger.EventRunStarted)
	ev.RunID = o.runID.String()
	ev.Data = map[string]any{
		"graph":      o.graph.Name(),
		"task_count": plan.TotalTasks,
		"wave_count": plan.TotalWaves,
	}
	o.record(ctx, ev)

	o.publish(ctx, events.Event{
		Type:      events.EventRunStarted,
		Timestamp: time.Now().UTC(),
		RunID:     o.runID,
		Payload: events.RunStartedPayload{
			RunID:     o.runID,
			GraphName: o.graph.Name(),
			TaskCount: plan.TotalTasks,
			WaveCount: plan.TotalWaves,
		},
	})

	if o.hooks != nil {
		waves := make([][]string, len(plan.Waves))
		for i, w := range plan.Waves {
			ids := make([]string, len(w.TaskIDs))
			copy(ids, w.TaskIDs)
			waves[i] = ids
		}
		o.hooks.BeforeRun(ctx, hooks.RunInfo{
			RunID:     o.runID,
			GraphName: o.graph.Name(),
			TaskCount: plan.TotalTasks,
			Waves:     waves,
		})
	}
}

// announceWave records and publishes the start of a wave.
func (o *Orchestrator) announceWave(ctx context.Context, wave scheduler.Wave) {
	o.log.Debug(ctx, "wave starting",
		"wave", wave.Index,
		"tasks", wave.TaskIDs,
		"can_parallel", wave.CanParallel,
	)

	ev := ledger.NewEvent(ledger.EventWaveStarted)
	ev.RunID = o.runID.String()
	ev.Data = map[string]any{
		"wave":         wave.Index,
		"tasks":        wave.TaskIDs,
		"can_parallel": wave.CanParallel,
	}
	o.record(ctx, ev)

	o.publish(ctx, events.Event{
		Type:      events.EventWaveStarted,
		Timestamp: time.Now().UTC(),
		RunID:     o.runID,
		Payload: events.WaveStartedPayload{
			RunID:       o.runID,
			Wave:        wave.Index,
			TaskIDs:     wave.TaskIDs,
			CanParallel: wave.CanParallel,
		},
	})
}

// finish settles a fully successful run.
func (o *Orchestrator) finish(ctx context.Context, startTime time.Time) (map[string]*TaskResult, error) {
	duration := time.Since(startTime)

	o.log.Info(ctx, "run completed",
		"duration", duration,
		"tasks", len(o.resultsCopy()),
	)

	ev := ledger.NewEvent(ledger.EventRunCompleted)
	ev.RunID = o.runID.String()
	ev.Data = map[string]any{
		"duration_ms":    duration.Milliseconds(),
		"tasks_executed": len(o.resultsCopy()),
	}
	o.record(ctx, ev)

	if o.metrics != nil {
		o.metrics.RecordRun("completed", duration)
	}
	o.publish(ctx, events.Event{
		Type:      events.EventRunCompleted,
		Timestamp: time.Now().UTC(),
		RunID:     o.runID,
		Payload: events.RunCompletedPayload{
			RunID:         o.runID,
			Duration:      duration,
			TasksExecuted: len(o.resultsCopy()),
			Success:       true,
		},
	})

	if o.hooks != nil {
		o.hooks.AfterRun(ctx, o.summary(true, duration))
	}

	return o.resultsCopy(), nil
}

// abort settles an aborted run: every task still pending is cancelled,
// so no task is left in a non-terminal state other than failed.
func (o *Orchestrator) abort(ctx context.Context, startTime time.Time, runErr error) (map[string]*TaskResult, error) {
	for _, id := range o.graph.TaskIDs() {
		sm := o.machines[id]
		if sm.State() == statemachine.StatePending {
			o.cancelTask(ctx, sm, o.waveByTask[id], startTime, "run aborted")
		}
	}

	duration := time.Since(startTime)
	failedTask := o.failedTaskID()

	o.log.Error(ctx, "run aborted",
		"duration", duration,
		"failed_task", failedTask,
		"error", runErr,
	)

	ev := ledger.NewEvent(ledger.EventRunAborted)
	ev.RunID = o.runID.String()
	ev.Error = runErr.Error()
	ev.Data = map[string]any{
		"duration_ms": duration.Milliseconds(),
		"failed_task": failedTask,
	}
	o.record(ctx, ev)

	if o.metrics != nil {
		o.metrics.RecordRun("aborted", duration)
	}
	o.publish(ctx, events.Event{
		Type:      events.EventRunAborted,
		Timestamp: time.Now().UTC(),
		RunID:     o.runID,
		Payload: events.RunAbortedPayload{
			RunID:         o.runID,
			Error:         runErr.Error(),
			FailedTask:    failedTask,
			Duration:      duration,
			TasksExecuted: len(o.resultsCopy()),
		},
	})

	if o.hooks != nil {
		o.hooks.AfterRun(ctx, o.summary(false, duration))
	}

	return o.resultsCopy(), runErr
}

// Snapshot returns a point-in-time view of every task execution, keyed
// by task id.
func (o *Orchestrator) Snapshot() map[string]statemachine.Snapshot {
	o.mu.Lock()
	defer o.mu.Unlock()
	snap := make(map[string]statemachine.Snapshot, len(o.machines))
	for id, sm := range o.machines {
		snap[id] = sm.Execution().Snapshot()
	}
	return snap
}

// Completed returns the sorted ids of tasks that reached completed.
func (o *Orchestrator) Completed() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	var ids []string
	for id, sm := range o.machines {
		if sm.State() == statemachine.StateCompleted {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

func (o *Orchestrator) setResult(result *TaskResult) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.results[result.TaskID] = result
}

func (o *Orchestrator) resultsCopy() map[string]*TaskResult {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make(map[string]*TaskResult, len(o.results))
	for id, r := range o.results {
		out[id] = r
	}
	return out
}

func (o *Orchestrator) noteFailedTask(taskID string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.failedTask == "" {
		o.failedTask = taskID
	}
}

func (o *Orchestrator) failedTaskID() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.failedTask
}

func (o *Orchestrator) summary(success bool, duration time.Duration) hooks.RunSummary {
	summary := hooks.RunSummary{
		RunID:    o.runID,
		Success:  success,
		Duration: duration,
	}
	results := o.resultsCopy()
	for _, id := range o.graph.TaskIDs() {
		result := results[id]
		if result == nil {
			continue
		}
		summary.Tasks = append(summary.Tasks, hooks.TaskInfo{
			RunID:   o.runID,
			TaskID:  result.TaskID,
			State:   result.State.String(),
			Attempt: result.Attempts,
			TraceID: result.TraceID,
			Error:   result.Error,
			Output:  result.Output,
		})
	}
	return summary
}

// record writes a ledger event. Ledger failures are logged rather than
// propagated; the audit trail is best effort once the run is in flight.
func (o *Orchestrator) record(ctx context.Context, ev ledger.Event) {
	if err := o.ledger.Record(ctx, ev); err != nil {
		o.log.Warn(ctx, "ledger write failed",
			"event_type", ev.Type,
			"task_id", ev.TaskID,
			"error", err,
		)
	}
}

// publish sends an event to the bus when one is configured. Publish never
// blocks; slow subscribers drop.
func (o *Orchestrator) publish(ctx context.Context, ev events.Event) {
	if o.bus == nil {
		return
	}
	_ = o.bus.Publish(ctx, ev)
}
