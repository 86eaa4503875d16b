// Package dag provides the dependency-graph task execution engine that
// drives tool invocations for the reasoning architectures.
package dag

import (
	"fmt"
	"time"
)

// TaskStatus represents the lifecycle state of a task.
type TaskStatus string

const (
	StatusPending   TaskStatus = "pending"
	StatusRunning   TaskStatus = "running"
	StatusCompleted TaskStatus = "completed"
	StatusFailed    TaskStatus = "failed"
	StatusSkipped   TaskStatus = "skipped"
)

// Terminal reports whether the status is a final state.
func (s TaskStatus) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusSkipped:
		return true
	}
	return false
}

// Plan is a graph of tool invocations produced by the planner. Task order
// carries no semantic meaning beyond display.
type Plan struct {
	ID          string
	Description string
	Tasks       []*Task
}

// Task is a single tool invocation in a plan. Tasks are created by the
// planner and mutated only by the executor that owns the plan.
type Task struct {
	ID          string
	ToolName    string
	Arguments   map[string]any
	DependsOn   []string
	Status      TaskStatus
	Result      any
	Error       string
	RetryCount  int
	StartedAt   time.Time
	CompletedAt time.Time
}

// Task returns the task with the given id, or nil.
func (p *Plan) Task(id string) *Task {
	for _, t := range p.Tasks {
		if t.ID == id {
			return t
		}
	}
	return nil
}

// Validate checks structural invariants: unique task ids, known dependency
// ids, and an acyclic dependency relation.
func (p *Plan) Validate() error {
	seen := make(map[string]bool, len(p.Tasks))
	for _, t := range p.Tasks {
		if t.ID == "" {
			return fmt.Errorf("plan %s: task with empty id", p.ID)
		}
		if seen[t.ID] {
			return fmt.Errorf("plan %s: duplicate task id %q", p.ID, t.ID)
		}
		seen[t.ID] = true
	}
	for _, t := range p.Tasks {
		for _, dep := range t.DependsOn {
			if !seen[dep] {
				return fmt.Errorf("plan %s: task %q depends on unknown task %q", p.ID, t.ID, dep)
			}
		}
	}
	if cycle := p.findCycle(); len(cycle) > 0 {
		return fmt.Errorf("plan %s: dependency cycle involving tasks %v", p.ID, cycle)
	}
	return nil
}

// findCycle returns the ids of tasks on a dependency cycle, or nil.
func (p *Plan) findCycle() []string {
	const (
		unvisited = 0
		visiting  = 1
		done      = 2
	)
	state := make(map[string]int, len(p.Tasks))
	var cycle []string

	var visit func(id string) bool
	visit = func(id string) bool {
		switch state[id] {
		case visiting:
			cycle = append(cycle, id)
			return true
		case done:
			return false
		}
		state[id] = visiting
		if t := p.Task(id); t != nil {
			for _, dep := range t.DependsOn {
				if visit(dep) {
					return true
				}
			}
		}
		state[id] = done
		return false
	}

	for _, t := range p.Tasks {
		if state[t.ID] == unvisited && visit(t.ID) {
			return cycle
		}
	}
	return nil
}

// TaskResult is the per-task outcome reported to callers after execution.
type TaskResult struct {
	TaskID      string
	Status      TaskStatus
	Output      any
	Error       string
	DurationMs  int64
	RetryCount  int
	StartedAt   time.Time
	CompletedAt time.Time
	Metadata    map[string]any
}

// Metrics aggregates one plan execution.
type Metrics struct {
	TotalTasks      int
	Completed       int
	Failed          int
	Skipped         int
	ToolCalls       int
	PeakParallelism int
	Duration        time.Duration
}

// Result is everything one Execute call returns: aggregate metrics, per-task
// outcomes, and a single final output value. The final output is the lone
// task's result when the plan has exactly one task, otherwise a map keyed by
// task id.
type Result struct {
	PlanID  string
	Success bool
	Metrics Metrics
	Tasks   []TaskResult
	Output  any
}
