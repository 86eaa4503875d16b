package dag

import (
	"strings"
	"testing"
)

func planOf(ids map[string][]string) *Plan {
	p := &Plan{ID: "p1"}
	for id, deps := range ids {
		p.Tasks = append(p.Tasks, &Task{ID: id, ToolName: "noop", DependsOn: deps, Status: StatusPending})
	}
	return p
}

func TestPlanValidateAccepts(t *testing.T) {
	p := planOf(map[string][]string{
		"a": nil,
		"b": {"a"},
		"c": {"a", "b"},
	})
	if err := p.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
}

func TestPlanValidateDuplicateID(t *testing.T) {
	p := &Plan{ID: "p1", Tasks: []*Task{
		{ID: "a", ToolName: "noop"},
		{ID: "a", ToolName: "noop"},
	}}
	err := p.Validate()
	if err == nil || !strings.Contains(err.Error(), "duplicate") {
		t.Fatalf("err = %v", err)
	}
}

func TestPlanValidateUnknownDependency(t *testing.T) {
	p := planOf(map[string][]string{"a": {"ghost"}})
	err := p.Validate()
	if err == nil || !strings.Contains(err.Error(), "unknown") {
		t.Fatalf("err = %v", err)
	}
}

func TestPlanValidateCycle(t *testing.T) {
	p := planOf(map[string][]string{
		"a": {"b"},
		"b": {"a"},
	})
	err := p.Validate()
	if err == nil || !strings.Contains(err.Error(), "cycle") {
		t.Fatalf("err = %v", err)
	}
}

func TestTaskStatusTerminal(t *testing.T) {
	terminal := []TaskStatus{StatusCompleted, StatusFailed, StatusSkipped}
	for _, s := range terminal {
		if !s.Terminal() {
			t.Errorf("%s should be terminal", s)
		}
	}
	for _, s := range []TaskStatus{StatusPending, StatusRunning} {
		if s.Terminal() {
			t.Errorf("%s should not be terminal", s)
		}
	}
}
