package planner

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/calyptra/redgraph/internal/dag"
	"github.com/calyptra/redgraph/internal/llm"
	"github.com/calyptra/redgraph/internal/logging"
	"github.com/calyptra/redgraph/internal/tools"
)

const systemPrompt = `You are a task planner for a security reconnaissance engine.
Given an objective, emit a numbered plan where every line has the form:

  <n>. <tool_name>(<arg>=<value>, ...)  [depends: <n>, <n>]

Rules:
- Use only the tools listed in the catalog, with their documented arguments.
- String values are double-quoted. Reference an earlier task's output with
  $<n> or $<n>.<field>, e.g. target=$1.final_url.
- List a task in [depends: ...] when it must wait for that task to finish.
- Independent tasks get no depends annotation and run in parallel.
- End the plan with a line containing join().
- Emit nothing but the plan.`

// Planner turns a mission description into an executable plan with exactly
// one LLM call.
type Planner struct {
	client llm.CompletionClient
	logger *logging.Logger
}

// NewPlanner creates a planner backed by the given completion client.
func NewPlanner(client llm.CompletionClient) *Planner {
	return &Planner{
		client: client,
		logger: logging.New().WithComponent("planner"),
	}
}

// SetLogger replaces the planner's logger.
func (p *Planner) SetLogger(l *logging.Logger) {
	if l != nil {
		p.logger = l.WithComponent("planner")
	}
}

// GeneratePlan renders the tool catalog into the prompt, requests one
// completion, and parses it into a plan. Residual cycles or unknown
// dependency ids are reported but not fatal; the executor degrades the
// affected tasks to Skipped.
func (p *Planner) GeneratePlan(ctx context.Context, description string, specs []tools.Spec) (*dag.Plan, error) {
	userPrompt := fmt.Sprintf("Objective:\n%s\n\nTool catalog:\n%s", description, tools.RenderSpecs(specs))

	completion, err := p.client.Complete(ctx, systemPrompt, userPrompt)
	if err != nil {
		return nil, fmt.Errorf("plan generation: %w", err)
	}

	tasks, err := ParsePlan(completion)
	if err != nil {
		return nil, err
	}

	plan := &dag.Plan{
		ID:          uuid.NewString(),
		Description: description,
		Tasks:       tasks,
	}
	if err := plan.Validate(); err != nil {
		p.logger.Warn("plan has structural defects, affected tasks will be skipped", map[string]interface{}{
			"plan_id": plan.ID,
			"defect":  err.Error(),
		})
	}
	p.logger.PlanGenerated(plan.ID, len(plan.Tasks))
	return plan, nil
}
