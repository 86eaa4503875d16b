package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/calyptra/redgraph/internal/architect"
	"github.com/calyptra/redgraph/internal/config"
	"github.com/calyptra/redgraph/internal/dag"
	"github.com/calyptra/redgraph/internal/llm"
	"github.com/calyptra/redgraph/internal/logging"
	"github.com/calyptra/redgraph/internal/planner"
	"github.com/calyptra/redgraph/internal/session"
	"github.com/calyptra/redgraph/internal/tools"
)

// appContext carries the shared dependencies into command Run methods.
type appContext struct {
	ctx    context.Context
	cfg    *config.Config
	logger *logging.Logger
}

// engine bundles the assembled components for one invocation.
type engine struct {
	registry *tools.Registry
	backend  *tools.Backend
	executor *dag.Executor
	planner  *planner.Planner
	client   llm.CompletionClient
}

// buildRegistry registers the builtins and overlays the configured catalog,
// when present.
func buildRegistry(app *appContext) (*tools.Registry, error) {
	registry := tools.NewRegistry()
	tools.RegisterBuiltins(registry)

	path := app.cfg.Catalog.Path
	if path == "" {
		return registry, nil
	}
	catalog, err := tools.LoadCatalog(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			// No catalog on disk: the builtins' own specs suffice.
			return registry, nil
		}
		return nil, err
	}
	catalog.Apply(registry)
	return registry, nil
}

// buildEngine assembles the full stack from config.
func buildEngine(app *appContext, concurrency int) (*engine, error) {
	registry, err := buildRegistry(app)
	if err != nil {
		return nil, err
	}
	backend := tools.NewBackend(registry)

	client, err := llm.NewClient(app.cfg)
	if err != nil {
		return nil, err
	}

	limiter := dag.NewRateLimiter(
		app.cfg.RateLimit.GlobalPermits,
		app.cfg.RateLimit.PerResourcePermits,
		app.cfg.MinInterval(),
	)
	ex := dag.NewExecutor(backend, dag.RetryPolicyFromConfig(app.cfg), limiter)
	ex.SetTaskTimeout(app.cfg.TaskTimeout())
	ex.SetLogger(app.logger)
	if concurrency > 0 {
		ex.SetMaxConcurrency(concurrency)
	} else {
		ex.SetMaxConcurrency(app.cfg.Engine.MaxConcurrency)
	}

	p := planner.NewPlanner(client)
	p.SetLogger(app.logger)

	return &engine{
		registry: registry,
		backend:  backend,
		executor: ex,
		planner:  p,
		client:   client,
	}, nil
}

// Run plans the mission and executes the resulting task graph.
func (c *RunCmd) Run(app *appContext) error {
	mission := strings.Join(c.Mission, " ")
	if strings.TrimSpace(mission) == "" {
		return fmt.Errorf("empty mission description")
	}

	eng, err := buildEngine(app, c.Concurrency)
	if err != nil {
		return err
	}
	specs := eng.registry.Specs()
	sess := session.New(mission)

	var report *architect.Report
	switch c.Arch {
	case "ooda":
		o := architect.NewOODA(eng.planner, eng.executor, eng.client, specs, app.cfg.Engine.MaxIterations)
		o.SetSession(sess)
		report, err = o.Run(app.ctx, mission)
	default:
		comp := architect.NewCompiler(eng.planner, eng.executor, eng.client, specs)
		comp.SetSession(sess)
		report, err = comp.Run(app.ctx, mission)
	}
	if err != nil {
		return err
	}

	if c.SessionOut != "" {
		if serr := sess.ExportJSON(c.SessionOut); serr != nil {
			app.logger.Warn("session export failed", map[string]interface{}{"error": serr.Error()})
		}
	}

	if c.JSON {
		return printJSON(report.Result)
	}
	printReport(report)
	if !report.Result.Success {
		return fmt.Errorf("mission finished with failures")
	}
	return nil
}

// Run generates a plan and prints it without executing anything.
func (c *PlanCmd) Run(app *appContext) error {
	mission := strings.Join(c.Mission, " ")
	if strings.TrimSpace(mission) == "" {
		return fmt.Errorf("empty mission description")
	}

	eng, err := buildEngine(app, 0)
	if err != nil {
		return err
	}
	plan, err := eng.planner.GeneratePlan(app.ctx, mission, eng.registry.Specs())
	if err != nil {
		return err
	}
	printPlan(plan)
	return nil
}

// Run lists the registered tools.
func (c *ToolsCmd) Run(app *appContext) error {
	registry, err := buildRegistry(app)
	if err != nil {
		return err
	}
	fmt.Print(tools.RenderSpecs(registry.Specs()))
	return nil
}

// Run prints build information.
func (c *VersionCmd) Run(_ *appContext) error {
	fmt.Printf("redgraph %s (commit %s, built %s)\n", version, commit, buildTime)
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
