package dag

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/calyptra/redgraph/internal/logging"
)

// Backend is the external collaborator that performs the side-effecting
// action named by a task's tool name. The executor bounds every attempt with
// a wall-clock deadline carried on the context.
type Backend interface {
	Execute(ctx context.Context, tool string, args map[string]any) (any, error)
}

// ResourceKeyer is an optional Backend extension reporting which rate-limit
// key a call addresses, or "" when the tool touches no external resource.
type ResourceKeyer interface {
	ResourceKey(tool string, args map[string]any) string
}

// Executor drives a plan's task graph to completion with bounded concurrency,
// variable substitution between tasks, retries with backoff, and per-resource
// rate limiting. One executor may run many plans; each plan is owned by
// exactly one Execute call for its lifetime.
type Executor struct {
	backend        Backend
	policy         RetryPolicy
	limiter        *RateLimiter
	maxConcurrency int
	taskTimeout    time.Duration
	logger         *logging.Logger

	// Callbacks
	OnTaskStart    func(taskID, tool string)
	OnTaskComplete func(taskID string, output any)
	OnTaskFailed   func(taskID string, err error)
	OnTaskSkipped  func(taskID, reason string)
	OnRetry        func(taskID string, attempt int, delay time.Duration)
}

// NewExecutor creates an executor. A nil limiter disables rate limiting.
func NewExecutor(backend Backend, policy RetryPolicy, limiter *RateLimiter) *Executor {
	return &Executor{
		backend:        backend,
		policy:         policy,
		limiter:        limiter,
		maxConcurrency: 5,
		taskTimeout:    2 * time.Minute,
		logger:         logging.New().WithComponent("executor"),
	}
}

// SetMaxConcurrency caps the number of simultaneously running tasks.
func (e *Executor) SetMaxConcurrency(n int) {
	if n > 0 {
		e.maxConcurrency = n
	}
}

// SetTaskTimeout sets the per-attempt wall-clock deadline.
func (e *Executor) SetTaskTimeout(d time.Duration) {
	if d > 0 {
		e.taskTimeout = d
	}
}

// SetLogger replaces the executor's logger.
func (e *Executor) SetLogger(l *logging.Logger) {
	if l != nil {
		e.logger = l.WithComponent("executor")
	}
}

// outcome carries one dispatched task's attempt results back to the fold step.
type outcome struct {
	task        *Task
	output      any
	err         error
	attempts    int
	concurrency int
}

// Execute runs the plan to completion and always returns a complete result
// structure, even on partial failure. Overall success means zero Failed and
// zero Skipped tasks. Cancellation via ctx is cooperative: no new dispatches
// are issued once ctx is done, and Execute returns when the in-flight batch
// resolves.
func (e *Executor) Execute(ctx context.Context, plan *Plan) (*Result, error) {
	if plan == nil {
		return nil, fmt.Errorf("execute: nil plan")
	}

	start := time.Now()
	logger := e.logger.WithPlanID(plan.ID)
	logger.ExecutionStart(plan.ID, len(plan.Tasks))
	ctx, span := startPlanSpan(ctx, plan)

	// Completed outputs, keyed by task id. Mutated only here, in the fold
	// step between batches — never by in-flight task goroutines.
	results := make(map[string]any, len(plan.Tasks))
	meta := make(map[string]map[string]any, len(plan.Tasks))

	sem := semaphore.NewWeighted(int64(e.maxConcurrency))
	var inflight, peak atomic.Int64
	toolCalls := 0
	cancelled := false

	for {
		if ctx.Err() != nil {
			cancelled = true
			break
		}

		ready := e.readyTasks(plan)
		if len(ready) == 0 {
			if allTerminal(plan) {
				break
			}
			// Nothing ready and not all terminal: remaining tasks can
			// never run (broken dependency or residual cycle).
			for _, t := range plan.Tasks {
				if !t.Status.Terminal() {
					e.skip(t, logger, "unreachable: broken dependency or cycle", meta)
				}
			}
			break
		}

		outcomes := make([]*outcome, len(ready))
		var wg sync.WaitGroup
		for i, t := range ready {
			if ctx.Err() != nil {
				cancelled = true
				break
			}
			wg.Add(1)
			go func(i int, t *Task) {
				defer wg.Done()
				outcomes[i] = e.runTask(ctx, logger, t, results, sem, &inflight, &peak)
			}(i, t)
		}
		wg.Wait()

		// Fold the batch's outcomes into the shared state.
		for _, o := range outcomes {
			if o == nil {
				continue // never dispatched (cancelled waiting for a slot)
			}
			toolCalls += o.attempts
			meta[o.task.ID] = map[string]any{
				"tool":        o.task.ToolName,
				"concurrency": o.concurrency,
			}
			if o.err == nil {
				results[o.task.ID] = o.output
			}
		}
		e.propagateSkips(plan, logger, meta)

		if cancelled {
			break
		}
	}

	if cancelled {
		for _, t := range plan.Tasks {
			if !t.Status.Terminal() {
				e.skip(t, logger, "execution cancelled", meta)
			}
		}
	}

	res := e.buildResult(plan, results, meta, toolCalls, int(peak.Load()), time.Since(start))
	logger.ExecutionComplete(plan.ID, res.Metrics.Duration, res.Success)
	endPlanSpan(span, res)
	return res, nil
}

// readyTasks returns Pending tasks whose every dependency is Completed.
// Tasks downstream of failures are already Skipped by propagateSkips.
func (e *Executor) readyTasks(plan *Plan) []*Task {
	var ready []*Task
	for _, t := range plan.Tasks {
		if t.Status != StatusPending {
			continue
		}
		ok := true
		for _, dep := range t.DependsOn {
			d := plan.Task(dep)
			if d == nil || d.Status != StatusCompleted {
				ok = false
				break
			}
		}
		if ok {
			ready = append(ready, t)
		}
	}
	return ready
}

// runTask executes one task: acquire a concurrency slot, resolve variables
// against prior results, then attempt the tool call with retries. It mutates
// only its own task; shared maps are read-only here.
func (e *Executor) runTask(ctx context.Context, logger *logging.Logger, t *Task, results map[string]any, sem *semaphore.Weighted, inflight, peak *atomic.Int64) *outcome {
	if err := sem.Acquire(ctx, 1); err != nil {
		return nil // cancelled before dispatch; task stays Pending
	}
	defer sem.Release(1)

	cur := inflight.Add(1)
	defer inflight.Add(-1)
	for {
		p := peak.Load()
		if cur <= p || peak.CompareAndSwap(p, cur) {
			break
		}
	}

	t.Status = StatusRunning
	t.StartedAt = time.Now()
	o := &outcome{task: t, concurrency: int(cur)}

	args := Resolve(t.Arguments, results)
	key := e.resourceKey(t.ToolName, args)

	ctx, span := startTaskSpan(ctx, t, key)
	defer func() { endTaskSpan(span, t) }()

	if e.OnTaskStart != nil {
		e.OnTaskStart(t.ID, t.ToolName)
	}

	for {
		logger.TaskDispatch(t.ID, t.ToolName, t.RetryCount)
		attemptStart := time.Now()
		output, err := e.attempt(ctx, t.ToolName, args, key)
		o.attempts++
		logger.TaskResult(t.ID, t.ToolName, time.Since(attemptStart), err)

		if err == nil {
			t.Status = StatusCompleted
			t.Result = output
			t.CompletedAt = time.Now()
			o.output = output
			if e.OnTaskComplete != nil {
				e.OnTaskComplete(t.ID, output)
			}
			return o
		}

		retryable := e.policy.IsRetryable(err.Error())
		if errors.Is(err, ErrAttemptTimeout) {
			retryable = true
		}
		if ctx.Err() != nil {
			retryable = false
		}

		if !retryable || t.RetryCount >= e.policy.MaxAttempts {
			t.Status = StatusFailed
			t.Error = err.Error()
			t.CompletedAt = time.Now()
			o.err = err
			if e.OnTaskFailed != nil {
				e.OnTaskFailed(t.ID, err)
			}
			return o
		}

		delay := e.policy.Delay(t.RetryCount)
		t.RetryCount++
		logger.TaskRetry(t.ID, t.RetryCount, delay)
		if e.OnRetry != nil {
			e.OnRetry(t.ID, t.RetryCount, delay)
		}
		select {
		case <-ctx.Done():
			t.Status = StatusFailed
			t.Error = err.Error()
			t.CompletedAt = time.Now()
			o.err = err
			if e.OnTaskFailed != nil {
				e.OnTaskFailed(t.ID, err)
			}
			return o
		case <-time.After(delay):
		}
	}
}

// attempt performs a single tool call under the rate limiter and the
// per-attempt deadline. The guard is held for the duration of this one
// attempt only.
func (e *Executor) attempt(ctx context.Context, tool string, args map[string]any, key string) (any, error) {
	if e.limiter != nil {
		guard, err := e.limiter.Acquire(ctx, key)
		if err != nil {
			return nil, err
		}
		defer guard.Release()
	}

	actx, cancel := context.WithTimeout(ctx, e.taskTimeout)
	defer cancel()

	out, err := e.backend.Execute(actx, tool, args)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || (actx.Err() == context.DeadlineExceeded && ctx.Err() == nil) {
			return nil, fmt.Errorf("%w after %s", ErrAttemptTimeout, e.taskTimeout)
		}
		return nil, &ToolExecutionError{Tool: tool, Err: err}
	}
	return out, nil
}

// resourceKey derives the rate-limit key for a call, preferring the backend's
// own judgement. URL-shaped keys collapse to their host so every probe of the
// same target shares one cadence.
func (e *Executor) resourceKey(tool string, args map[string]any) string {
	var key string
	if rk, ok := e.backend.(ResourceKeyer); ok {
		key = rk.ResourceKey(tool, args)
	}
	if strings.Contains(key, "://") {
		if u, err := url.Parse(key); err == nil && u.Host != "" {
			key = u.Host
		}
	}
	return key
}

// propagateSkips marks every Pending task with a Failed or Skipped dependency
// as Skipped, transitively, before the next ready-set computation.
func (e *Executor) propagateSkips(plan *Plan, logger *logging.Logger, meta map[string]map[string]any) {
	for changed := true; changed; {
		changed = false
		for _, t := range plan.Tasks {
			if t.Status != StatusPending {
				continue
			}
			for _, dep := range t.DependsOn {
				d := plan.Task(dep)
				if d != nil && (d.Status == StatusFailed || d.Status == StatusSkipped) {
					e.skip(t, logger, fmt.Sprintf("upstream task %s %s", d.ID, d.Status), meta)
					changed = true
					break
				}
			}
		}
	}
}

// skip finalizes a task as Skipped without ever starting it.
func (e *Executor) skip(t *Task, logger *logging.Logger, reason string, meta map[string]map[string]any) {
	t.Status = StatusSkipped
	t.CompletedAt = time.Now()
	meta[t.ID] = map[string]any{
		"tool":        t.ToolName,
		"skip_reason": reason,
	}
	logger.TaskSkipped(t.ID, reason)
	if e.OnTaskSkipped != nil {
		e.OnTaskSkipped(t.ID, reason)
	}
}

// allTerminal reports whether every task reached a final state.
func allTerminal(plan *Plan) bool {
	for _, t := range plan.Tasks {
		if !t.Status.Terminal() {
			return false
		}
	}
	return true
}

// buildResult assembles the aggregate metrics, per-task results, and the
// final output value.
func (e *Executor) buildResult(plan *Plan, results map[string]any, meta map[string]map[string]any, toolCalls, peak int, elapsed time.Duration) *Result {
	res := &Result{
		PlanID: plan.ID,
		Metrics: Metrics{
			TotalTasks:      len(plan.Tasks),
			ToolCalls:       toolCalls,
			PeakParallelism: peak,
			Duration:        elapsed,
		},
	}

	for _, t := range plan.Tasks {
		switch t.Status {
		case StatusCompleted:
			res.Metrics.Completed++
		case StatusFailed:
			res.Metrics.Failed++
		case StatusSkipped:
			res.Metrics.Skipped++
		}

		tr := TaskResult{
			TaskID:      t.ID,
			Status:      t.Status,
			Output:      t.Result,
			Error:       t.Error,
			RetryCount:  t.RetryCount,
			StartedAt:   t.StartedAt,
			CompletedAt: t.CompletedAt,
			Metadata:    meta[t.ID],
		}
		if !t.StartedAt.IsZero() && !t.CompletedAt.IsZero() {
			tr.DurationMs = t.CompletedAt.Sub(t.StartedAt).Milliseconds()
		}
		res.Tasks = append(res.Tasks, tr)
	}

	res.Success = res.Metrics.Failed == 0 && res.Metrics.Skipped == 0

	if len(plan.Tasks) == 1 {
		res.Output = plan.Tasks[0].Result
	} else {
		out := make(map[string]any, len(results))
		for id, v := range results {
			out[id] = v
		}
		res.Output = out
	}
	return res
}
