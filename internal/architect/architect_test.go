package architect

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/calyptra/redgraph/internal/dag"
	"github.com/calyptra/redgraph/internal/planner"
	"github.com/calyptra/redgraph/internal/session"
)

// scriptedClient returns canned completions in order, repeating the last one.
type scriptedClient struct {
	completions []string
	calls       int
	prompts     []string
}

func (c *scriptedClient) Complete(_ context.Context, _, userPrompt string) (string, error) {
	c.prompts = append(c.prompts, userPrompt)
	i := c.calls
	c.calls++
	if i >= len(c.completions) {
		i = len(c.completions) - 1
	}
	if len(c.completions) == 0 {
		return "", errors.New("no scripted completion")
	}
	return c.completions[i], nil
}

// mapBackend resolves tools from a function map; unlisted tools fail.
type mapBackend struct {
	handlers map[string]func(args map[string]any) (any, error)
}

func (b *mapBackend) Execute(_ context.Context, tool string, args map[string]any) (any, error) {
	h, ok := b.handlers[tool]
	if !ok {
		return nil, errors.New("unknown tool " + tool)
	}
	return h(args)
}

func fastExecutor(b dag.Backend) *dag.Executor {
	policy := dag.DefaultRetryPolicy()
	policy.MaxAttempts = 0
	return dag.NewExecutor(b, policy, nil)
}

func TestCompilerRunPlansExecutesSynthesizes(t *testing.T) {
	client := &scriptedClient{completions: []string{
		"1. probe(target=\"https://example.com\")\njoin()",
		"All clear: one probe, no findings.",
	}}
	backend := &mapBackend{handlers: map[string]func(map[string]any) (any, error){
		"probe": func(map[string]any) (any, error) {
			return map[string]any{"status": float64(200)}, nil
		},
	}}

	c := NewCompiler(planner.NewPlanner(client), fastExecutor(backend), client, nil)
	s := session.New("test mission")
	c.SetSession(s)

	report, err := c.Run(context.Background(), "probe example.com")
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if !report.Result.Success {
		t.Error("expected successful run")
	}
	if report.Summary != "All clear: one probe, no findings." {
		t.Errorf("summary = %q", report.Summary)
	}
	// One planning call plus one synthesis call, nothing else.
	if client.calls != 2 {
		t.Errorf("llm calls = %d, want 2", client.calls)
	}
	if len(s.Snapshot()) == 0 {
		t.Error("session recorded nothing")
	}
}

func TestCompilerSynthesisPromptCarriesResults(t *testing.T) {
	client := &scriptedClient{completions: []string{
		"1. probe(target=\"https://example.com\")",
		"summary",
	}}
	backend := &mapBackend{handlers: map[string]func(map[string]any) (any, error){
		"probe": func(map[string]any) (any, error) { return "probed", nil },
	}}

	c := NewCompiler(planner.NewPlanner(client), fastExecutor(backend), client, nil)
	if _, err := c.Run(context.Background(), "mission"); err != nil {
		t.Fatalf("run: %v", err)
	}

	joinPrompt := client.prompts[len(client.prompts)-1]
	if !strings.Contains(joinPrompt, "probed") {
		t.Errorf("synthesis prompt missing task output:\n%s", joinPrompt)
	}
}

func TestOODAStopsAfterSuccess(t *testing.T) {
	client := &scriptedClient{completions: []string{
		"1. probe(target=\"https://example.com\")",
		"done",
	}}
	backend := &mapBackend{handlers: map[string]func(map[string]any) (any, error){
		"probe": func(map[string]any) (any, error) { return "ok", nil },
	}}

	o := NewOODA(planner.NewPlanner(client), fastExecutor(backend), client, nil, 5)
	report, err := o.Run(context.Background(), "mission")
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if !report.Result.Success {
		t.Error("expected success")
	}
	// One plan call and one synthesis call: no replanning after success.
	if client.calls != 2 {
		t.Errorf("llm calls = %d, want 2", client.calls)
	}
}

func TestOODAReplansWithObservations(t *testing.T) {
	client := &scriptedClient{completions: []string{
		"1. flaky(target=\"https://example.com\")",
		"1. probe(target=\"https://example.com\")",
		"recovered",
	}}
	backend := &mapBackend{handlers: map[string]func(map[string]any) (any, error){
		"flaky": func(map[string]any) (any, error) { return nil, errors.New("forbidden") },
		"probe": func(map[string]any) (any, error) { return "ok", nil },
	}}

	o := NewOODA(planner.NewPlanner(client), fastExecutor(backend), client, nil, 3)
	report, err := o.Run(context.Background(), "mission")
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if !report.Result.Success {
		t.Error("second iteration should succeed")
	}
	// The second planning prompt must carry the first failure.
	second := client.prompts[1]
	if !strings.Contains(second, "failed") || !strings.Contains(second, "forbidden") {
		t.Errorf("replan prompt missing observations:\n%s", second)
	}
}

func TestOODAHonorsIterationBudget(t *testing.T) {
	client := &scriptedClient{completions: []string{
		"1. flaky(target=\"https://example.com\")",
	}}
	backend := &mapBackend{handlers: map[string]func(map[string]any) (any, error){
		"flaky": func(map[string]any) (any, error) { return nil, errors.New("forbidden") },
	}}

	o := NewOODA(planner.NewPlanner(client), fastExecutor(backend), client, nil, 2)
	report, err := o.Run(context.Background(), "mission")
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if report == nil || report.Result.Success {
		t.Fatal("expected a failed final report")
	}
	if planCalls := countPlanPrompts(client.prompts); planCalls != 2 {
		t.Errorf("planning calls = %d, want the 2-iteration budget", planCalls)
	}
}

func countPlanPrompts(prompts []string) int {
	n := 0
	for _, p := range prompts {
		if strings.Contains(p, "Tool catalog:") {
			n++
		}
	}
	return n
}
