package planner

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/calyptra/redgraph/internal/tools"
)

type mockClient struct {
	calls      int
	completion string
	err        error
	lastUser   string
}

func (m *mockClient) Complete(_ context.Context, _, userPrompt string) (string, error) {
	m.calls++
	m.lastUser = userPrompt
	return m.completion, m.err
}

func catalogSpecs() []tools.Spec {
	r := tools.NewRegistry()
	tools.RegisterBuiltins(r)
	return r.Specs()
}

func TestGeneratePlanSingleCompletionCall(t *testing.T) {
	client := &mockClient{completion: "1. dns_lookup(host=\"example.com\")\njoin()"}
	p := NewPlanner(client)

	plan, err := p.GeneratePlan(context.Background(), "enumerate example.com", catalogSpecs())
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	if client.calls != 1 {
		t.Errorf("completion calls = %d, want exactly 1", client.calls)
	}
	if plan.ID == "" {
		t.Error("plan must get an id")
	}
	if plan.Description != "enumerate example.com" {
		t.Errorf("description = %q", plan.Description)
	}
	if len(plan.Tasks) != 1 {
		t.Errorf("tasks = %d", len(plan.Tasks))
	}
}

func TestGeneratePlanRendersCatalogIntoPrompt(t *testing.T) {
	client := &mockClient{completion: "1. echo(value=\"x\")"}
	p := NewPlanner(client)

	if _, err := p.GeneratePlan(context.Background(), "anything", catalogSpecs()); err != nil {
		t.Fatalf("generate: %v", err)
	}
	if !strings.Contains(client.lastUser, "http_probe(") {
		t.Error("prompt should include the rendered tool catalog")
	}
	if !strings.Contains(client.lastUser, "anything") {
		t.Error("prompt should include the objective")
	}
}

func TestGeneratePlanPropagatesClientError(t *testing.T) {
	client := &mockClient{err: errors.New("rate limit")}
	p := NewPlanner(client)

	if _, err := p.GeneratePlan(context.Background(), "x", nil); err == nil {
		t.Fatal("expected error")
	}
}

func TestGeneratePlanToleratesCycles(t *testing.T) {
	client := &mockClient{completion: "1. echo(value=$2)\n2. echo(value=$1)"}
	p := NewPlanner(client)

	plan, err := p.GeneratePlan(context.Background(), "x", nil)
	if err != nil {
		t.Fatalf("cyclic plan must still parse: %v", err)
	}
	if len(plan.Tasks) != 2 {
		t.Errorf("tasks = %d", len(plan.Tasks))
	}
}
