package dag

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/calyptra/redgraph/internal/telemetry"
)

// startPlanSpan opens the root span covering a whole plan execution.
func startPlanSpan(ctx context.Context, plan *Plan) (context.Context, trace.Span) {
	ctx, span := telemetry.GetTracer().StartSpan(ctx, "dag.execute")
	span.SetAttributes(
		attribute.String("plan.id", plan.ID),
		attribute.Int("plan.tasks", len(plan.Tasks)),
	)
	return ctx, span
}

// endPlanSpan records the aggregate outcome and closes the plan span.
func endPlanSpan(span trace.Span, res *Result) {
	span.SetAttributes(
		attribute.Bool("plan.success", res.Success),
		attribute.Int("plan.completed", res.Metrics.Completed),
		attribute.Int("plan.failed", res.Metrics.Failed),
		attribute.Int("plan.skipped", res.Metrics.Skipped),
		attribute.Int("plan.tool_calls", res.Metrics.ToolCalls),
		attribute.Int("plan.peak_parallelism", res.Metrics.PeakParallelism),
	)
	if !res.Success {
		span.SetStatus(codes.Error, "plan finished with failed or skipped tasks")
	}
	span.End()
}

// startTaskSpan opens a span covering one task's full dispatch, retries
// included.
func startTaskSpan(ctx context.Context, t *Task, resourceKey string) (context.Context, trace.Span) {
	ctx, span := telemetry.GetTracer().StartSpan(ctx, "dag.task")
	attrs := []attribute.KeyValue{
		attribute.String("task.id", t.ID),
		attribute.String("task.tool", t.ToolName),
	}
	if resourceKey != "" {
		attrs = append(attrs, attribute.String("task.resource", resourceKey))
	}
	span.SetAttributes(attrs...)
	return ctx, span
}

// endTaskSpan records the task's final state and closes its span.
func endTaskSpan(span trace.Span, t *Task) {
	span.SetAttributes(
		attribute.String("task.status", string(t.Status)),
		attribute.Int("task.retries", t.RetryCount),
	)
	if t.Status == StatusFailed {
		span.SetStatus(codes.Error, t.Error)
	}
	span.End()
}
