// Package architect contains the reasoning architectures that drive the
// engine: a one-shot compile-and-execute flow and an iterative OODA loop.
// All scheduling semantics live in the dag package; these are thin consumers.
package architect

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/calyptra/redgraph/internal/dag"
	"github.com/calyptra/redgraph/internal/llm"
	"github.com/calyptra/redgraph/internal/logging"
	"github.com/calyptra/redgraph/internal/planner"
	"github.com/calyptra/redgraph/internal/session"
	"github.com/calyptra/redgraph/internal/tools"
)

const joinPrompt = `You are the final synthesis step of a security
reconnaissance run. Given the objective and the structured results of every
executed task, write a concise findings summary for the operator. Call out
failures and gaps explicitly. Plain text only.`

// Report is what an architecture hands back to the caller.
type Report struct {
	Plan    *dag.Plan
	Result  *dag.Result
	Summary string
}

// Compiler plans once, executes the whole graph, then makes one final
// synthesis call over the collected results.
type Compiler struct {
	planner  *planner.Planner
	executor *dag.Executor
	client   llm.CompletionClient
	specs    []tools.Spec
	session  *session.Session
	logger   *logging.Logger
}

// NewCompiler wires a compiler architecture.
func NewCompiler(p *planner.Planner, ex *dag.Executor, client llm.CompletionClient, specs []tools.Spec) *Compiler {
	return &Compiler{
		planner:  p,
		executor: ex,
		client:   client,
		specs:    specs,
		logger:   logging.New().WithComponent("compiler"),
	}
}

// SetSession attaches a session recorder to the run.
func (c *Compiler) SetSession(s *session.Session) {
	c.session = s
}

// Run executes one plan-execute-synthesize pass.
func (c *Compiler) Run(ctx context.Context, mission string) (*Report, error) {
	plan, err := c.planner.GeneratePlan(ctx, mission, c.specs)
	if err != nil {
		return nil, err
	}
	if c.session != nil {
		c.session.RecordPlan(plan)
		c.session.Attach(c.executor)
	}

	res, err := c.executor.Execute(ctx, plan)
	if err != nil {
		return nil, err
	}
	if c.session != nil {
		c.session.RecordRun(res)
	}

	summary, err := synthesize(ctx, c.client, mission, res)
	if err != nil {
		// The run itself finished; a failed synthesis degrades to the
		// raw results rather than discarding them.
		c.logger.Warn("synthesis failed, returning raw results", map[string]interface{}{
			"error": err.Error(),
		})
		summary = ""
	}

	return &Report{Plan: plan, Result: res, Summary: summary}, nil
}

// synthesize makes the join call: one completion over the run's results.
func synthesize(ctx context.Context, client llm.CompletionClient, mission string, res *dag.Result) (string, error) {
	digest, err := json.MarshalIndent(resultDigest(res), "", "  ")
	if err != nil {
		return "", fmt.Errorf("synthesis: %w", err)
	}
	user := fmt.Sprintf("Objective:\n%s\n\nResults:\n%s", mission, digest)
	return client.Complete(ctx, joinPrompt, user)
}

// resultDigest flattens a result into a JSON-friendly shape for the
// synthesis prompt.
func resultDigest(res *dag.Result) map[string]any {
	tasks := make([]map[string]any, 0, len(res.Tasks))
	for _, tr := range res.Tasks {
		entry := map[string]any{
			"task_id": tr.TaskID,
			"status":  string(tr.Status),
		}
		if tr.Output != nil {
			entry["output"] = tr.Output
		}
		if tr.Error != "" {
			entry["error"] = tr.Error
		}
		if tr.RetryCount > 0 {
			entry["retries"] = tr.RetryCount
		}
		tasks = append(tasks, entry)
	}
	return map[string]any{
		"success": res.Success,
		"tasks":   tasks,
	}
}
