package architect

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/calyptra/redgraph/internal/dag"
	"github.com/calyptra/redgraph/internal/llm"
	"github.com/calyptra/redgraph/internal/logging"
	"github.com/calyptra/redgraph/internal/planner"
	"github.com/calyptra/redgraph/internal/session"
	"github.com/calyptra/redgraph/internal/tools"
)

// OODA iterates observe-orient-decide-act: plan against the mission plus the
// observations gathered so far, execute, and replan until the run succeeds or
// the iteration budget is spent.
type OODA struct {
	planner       *planner.Planner
	executor      *dag.Executor
	client        llm.CompletionClient
	specs         []tools.Spec
	maxIterations int
	session       *session.Session
	logger        *logging.Logger
}

// NewOODA wires an OODA architecture. maxIterations below 1 is treated as 1.
func NewOODA(p *planner.Planner, ex *dag.Executor, client llm.CompletionClient, specs []tools.Spec, maxIterations int) *OODA {
	if maxIterations < 1 {
		maxIterations = 1
	}
	return &OODA{
		planner:       p,
		executor:      ex,
		client:        client,
		specs:         specs,
		maxIterations: maxIterations,
		logger:        logging.New().WithComponent("ooda"),
	}
}

// SetSession attaches a session recorder to the run.
func (o *OODA) SetSession(s *session.Session) {
	o.session = s
}

// Run loops until a fully successful execution or the iteration limit. The
// last iteration's report is returned either way; the caller checks
// Result.Success.
func (o *OODA) Run(ctx context.Context, mission string) (*Report, error) {
	if o.session != nil {
		o.session.Attach(o.executor)
	}

	var observations []string
	var report *Report

	for iter := 1; iter <= o.maxIterations; iter++ {
		if ctx.Err() != nil {
			return report, ctx.Err()
		}

		objective := mission
		if len(observations) > 0 {
			objective = fmt.Sprintf("%s\n\nObservations from earlier attempts:\n%s\n\nPlan only the remaining or corrective work.",
				mission, strings.Join(observations, "\n"))
		}

		plan, err := o.planner.GeneratePlan(ctx, objective, o.specs)
		if err != nil {
			return report, err
		}
		if o.session != nil {
			o.session.RecordPlan(plan)
		}

		res, err := o.executor.Execute(ctx, plan)
		if err != nil {
			return report, err
		}
		if o.session != nil {
			o.session.RecordRun(res)
		}

		report = &Report{Plan: plan, Result: res}
		o.logger.Info("iteration finished", map[string]interface{}{
			"iteration": iter,
			"success":   res.Success,
			"failed":    res.Metrics.Failed,
			"skipped":   res.Metrics.Skipped,
		})

		if res.Success {
			if summary, serr := synthesize(ctx, o.client, mission, res); serr == nil {
				report.Summary = summary
			}
			return report, nil
		}

		observations = append(observations, observe(res)...)
	}

	if report != nil {
		if summary, serr := synthesize(ctx, o.client, mission, report.Result); serr == nil {
			report.Summary = summary
		}
	}
	return report, nil
}

// observe distills one failed run into observation lines for the next plan.
func observe(res *dag.Result) []string {
	var obs []string
	for _, tr := range res.Tasks {
		switch tr.Status {
		case dag.StatusFailed:
			obs = append(obs, fmt.Sprintf("- task %s failed: %s", tr.TaskID, tr.Error))
		case dag.StatusCompleted:
			if tr.Output == nil {
				continue
			}
			out, err := json.Marshal(tr.Output)
			if err != nil {
				continue
			}
			s := string(out)
			if len(s) > 500 {
				s = s[:500] + "..."
			}
			obs = append(obs, fmt.Sprintf("- task %s completed with: %s", tr.TaskID, s))
		}
	}
	return obs
}
