// Package logging provides structured, standards-compliant logging.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

// Level represents log severity.
type Level string

const (
	LevelDebug Level = "DEBUG"
	LevelInfo  Level = "INFO"
	LevelWarn  Level = "WARN"
	LevelError Level = "ERROR"
)

// Logger provides structured logging to stdout.
type Logger struct {
	mu        sync.Mutex
	output    io.Writer
	minLevel  Level
	component string
	planID    string
}

// levelPriority maps levels to numeric priority for filtering.
var levelPriority = map[Level]int{
	LevelDebug: 0,
	LevelInfo:  1,
	LevelWarn:  2,
	LevelError: 3,
}

// ParseLevel maps a config string to a Level, defaulting to info.
func ParseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

// New creates a new Logger.
func New() *Logger {
	return &Logger{
		output:   os.Stdout,
		minLevel: LevelInfo,
	}
}

// WithComponent returns a new logger with the given component name.
func (l *Logger) WithComponent(component string) *Logger {
	return &Logger{
		output:    l.output,
		minLevel:  l.minLevel,
		component: component,
		planID:    l.planID,
	}
}

// WithPlanID returns a new logger tagged with the given plan id.
func (l *Logger) WithPlanID(planID string) *Logger {
	return &Logger{
		output:    l.output,
		minLevel:  l.minLevel,
		component: l.component,
		planID:    planID,
	}
}

// SetLevel sets the minimum log level.
func (l *Logger) SetLevel(level Level) {
	l.minLevel = level
}

// SetOutput sets the output writer (default: stdout).
func (l *Logger) SetOutput(w io.Writer) {
	l.output = w
}

// Debug logs a debug message.
func (l *Logger) Debug(msg string, fields ...map[string]interface{}) {
	l.log(LevelDebug, msg, fields...)
}

// Info logs an info message.
func (l *Logger) Info(msg string, fields ...map[string]interface{}) {
	l.log(LevelInfo, msg, fields...)
}

// Warn logs a warning message.
func (l *Logger) Warn(msg string, fields ...map[string]interface{}) {
	l.log(LevelWarn, msg, fields...)
}

// Error logs an error message.
func (l *Logger) Error(msg string, fields ...map[string]interface{}) {
	l.log(LevelError, msg, fields...)
}

// formatFields formats a map of fields as key=value pairs.
func formatFields(fields map[string]interface{}) string {
	if len(fields) == 0 {
		return ""
	}
	var parts []string
	for k, v := range fields {
		parts = append(parts, fmt.Sprintf("%s=%v", k, v))
	}
	return " " + strings.Join(parts, " ")
}

// log writes a log entry in traditional format: LEVEL TIMESTAMP [component] message key=value ...
func (l *Logger) log(level Level, msg string, fields ...map[string]interface{}) {
	if levelPriority[level] < levelPriority[l.minLevel] {
		return
	}

	timestamp := time.Now().UTC().Format("2006-01-02T15:04:05.000Z")

	var fieldStr string
	if len(fields) > 0 && fields[0] != nil {
		f := fields[0]
		if l.planID != "" {
			merged := make(map[string]interface{}, len(f)+1)
			for k, v := range f {
				merged[k] = v
			}
			merged["plan"] = l.planID
			f = merged
		}
		fieldStr = formatFields(f)
	} else if l.planID != "" {
		fieldStr = formatFields(map[string]interface{}{"plan": l.planID})
	}

	var line string
	if l.component != "" {
		line = fmt.Sprintf("%-5s %s [%s] %s%s\n", level, timestamp, l.component, msg, fieldStr)
	} else {
		line = fmt.Sprintf("%-5s %s %s%s\n", level, timestamp, msg, fieldStr)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.output.Write([]byte(line))
}

// PlanGenerated logs a freshly parsed plan.
func (l *Logger) PlanGenerated(planID string, taskCount int) {
	l.Info("plan_generated", map[string]interface{}{
		"plan":  planID,
		"tasks": taskCount,
	})
}

// TaskDispatch logs a task entering execution.
func (l *Logger) TaskDispatch(taskID, tool string, attempt int) {
	l.Debug("task_dispatch", map[string]interface{}{
		"task":    taskID,
		"tool":    tool,
		"attempt": attempt,
	})
}

// TaskResult logs a finished task attempt.
func (l *Logger) TaskResult(taskID, tool string, duration time.Duration, err error) {
	fields := map[string]interface{}{
		"task":     taskID,
		"tool":     tool,
		"duration": duration.String(),
	}
	if err != nil {
		fields["error"] = err.Error()
		l.Error("task_error", fields)
	} else {
		l.Debug("task_result", fields)
	}
}

// TaskRetry logs a retry decision for a failed attempt.
func (l *Logger) TaskRetry(taskID string, attempt int, delay time.Duration) {
	l.Warn("task_retry", map[string]interface{}{
		"task":    taskID,
		"attempt": attempt,
		"delay":   delay.String(),
	})
}

// TaskSkipped logs a task skipped due to an upstream failure.
func (l *Logger) TaskSkipped(taskID, reason string) {
	l.Warn("task_skipped", map[string]interface{}{
		"task":   taskID,
		"reason": reason,
	})
}

// ExecutionStart logs the start of plan execution.
func (l *Logger) ExecutionStart(planID string, taskCount int) {
	l.Info("execution_start", map[string]interface{}{
		"plan":  planID,
		"tasks": taskCount,
	})
}

// ExecutionComplete logs the completion of plan execution.
func (l *Logger) ExecutionComplete(planID string, duration time.Duration, success bool) {
	l.Info("execution_complete", map[string]interface{}{
		"plan":     planID,
		"duration": duration.String(),
		"success":  success,
	})
}

// RateLimited logs a dispatch delayed by per-resource spacing.
func (l *Logger) RateLimited(resource string, wait time.Duration) {
	l.Debug("rate_limited", map[string]interface{}{
		"resource": resource,
		"wait":     wait.String(),
	})
}
