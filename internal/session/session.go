// Package session records the chronology of an engine run: plan generation,
// task dispatches and outcomes, retries, skips, and the final summary. The
// record lives in memory and can be exported as JSON.
package session

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/calyptra/redgraph/internal/dag"
)

// EventType tags one recorded event.
type EventType string

const (
	EventPlanGenerated EventType = "plan_generated"
	EventTaskStarted   EventType = "task_started"
	EventTaskCompleted EventType = "task_completed"
	EventTaskFailed    EventType = "task_failed"
	EventTaskSkipped   EventType = "task_skipped"
	EventTaskRetried   EventType = "task_retried"
	EventRunCompleted  EventType = "run_completed"
)

// Event is one timestamped entry in a session.
type Event struct {
	Type      EventType      `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	TaskID    string         `json:"task_id,omitempty"`
	Detail    map[string]any `json:"detail,omitempty"`
}

// Session accumulates events for one run. Safe for concurrent appends; the
// executor's callbacks fire from task goroutines.
type Session struct {
	ID          string    `json:"id"`
	Description string    `json:"description"`
	StartedAt   time.Time `json:"started_at"`
	Events      []Event   `json:"events"`

	mu sync.Mutex
}

// New starts an empty session.
func New(description string) *Session {
	return &Session{
		ID:          uuid.NewString(),
		Description: description,
		StartedAt:   time.Now(),
	}
}

func (s *Session) append(e Event) {
	e.Timestamp = time.Now()
	s.mu.Lock()
	s.Events = append(s.Events, e)
	s.mu.Unlock()
}

// RecordPlan notes that a plan was generated.
func (s *Session) RecordPlan(plan *dag.Plan) {
	s.append(Event{Type: EventPlanGenerated, Detail: map[string]any{
		"plan_id": plan.ID,
		"tasks":   len(plan.Tasks),
	}})
}

// RecordRun notes the aggregate outcome of an execution.
func (s *Session) RecordRun(res *dag.Result) {
	s.append(Event{Type: EventRunCompleted, Detail: map[string]any{
		"plan_id":     res.PlanID,
		"success":     res.Success,
		"completed":   res.Metrics.Completed,
		"failed":      res.Metrics.Failed,
		"skipped":     res.Metrics.Skipped,
		"duration_ms": res.Metrics.Duration.Milliseconds(),
	}})
}

// Attach wires the session to an executor's callbacks.
func (s *Session) Attach(ex *dag.Executor) {
	ex.OnTaskStart = func(taskID, tool string) {
		s.append(Event{Type: EventTaskStarted, TaskID: taskID, Detail: map[string]any{"tool": tool}})
	}
	ex.OnTaskComplete = func(taskID string, _ any) {
		s.append(Event{Type: EventTaskCompleted, TaskID: taskID})
	}
	ex.OnTaskFailed = func(taskID string, err error) {
		s.append(Event{Type: EventTaskFailed, TaskID: taskID, Detail: map[string]any{"error": err.Error()}})
	}
	ex.OnTaskSkipped = func(taskID, reason string) {
		s.append(Event{Type: EventTaskSkipped, TaskID: taskID, Detail: map[string]any{"reason": reason}})
	}
	ex.OnRetry = func(taskID string, attempt int, delay time.Duration) {
		s.append(Event{Type: EventTaskRetried, TaskID: taskID, Detail: map[string]any{
			"attempt":  attempt,
			"delay_ms": delay.Milliseconds(),
		}})
	}
}

// Snapshot returns a copy of the recorded events.
func (s *Session) Snapshot() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Event, len(s.Events))
	copy(out, s.Events)
	return out
}

// ExportJSON writes the session to a file as indented JSON.
func (s *Session) ExportJSON(path string) error {
	s.mu.Lock()
	data, err := json.MarshalIndent(s, "", "  ")
	s.mu.Unlock()
	if err != nil {
		return fmt.Errorf("session export: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("session export: %w", err)
	}
	return nil
}
