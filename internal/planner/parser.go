package planner

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/calyptra/redgraph/internal/dag"
)

// taskLineRe matches one plan line: `<int>. <tool>(<args>)` with an optional
// trailing `[depends: <int-list>]`.
var taskLineRe = regexp.MustCompile(`^\s*(\d+)\.\s*([A-Za-z_][A-Za-z0-9_]*)\s*\((.*)\)\s*(?:\[depends:\s*([^\]]*)\])?\s*$`)

// refRe extracts the task id from a variable reference value.
var refRe = regexp.MustCompile(`^\$(\d+)(?:\.|$|\[)`)

// ParsePlan turns an LLM completion into tasks. Code fences and prose lines
// are tolerated; a bare join() line marks the end of the plan and is
// discarded. A non-empty completion yielding zero tasks is a
// PlanParsingError.
func ParsePlan(completion string) ([]*dag.Task, error) {
	trimmed := strings.TrimSpace(completion)
	if trimmed == "" {
		return nil, &dag.PlanParsingError{Reason: "empty completion", Raw: completion}
	}

	var tasks []*dag.Task
	seen := map[string]bool{}
	for _, line := range strings.Split(trimmed, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "```") ||
			strings.HasPrefix(line, "#") || strings.HasPrefix(line, "//") {
			continue
		}

		if strings.HasPrefix(line, "join()") {
			break // end-of-plan sentinel, never a task
		}

		m := taskLineRe.FindStringSubmatch(line)
		if m == nil {
			continue // prose or noise around the plan
		}
		id, tool, rawArgs, rawDeps := m[1], m[2], m[3], m[4]

		if tool == "join" {
			break // end-of-plan sentinel, never a task
		}
		if seen[id] {
			return nil, &dag.PlanParsingError{
				Reason: "duplicate task id " + id,
				Raw:    completion,
			}
		}
		seen[id] = true

		args := parseArgs(rawArgs)
		deps := parseDeps(rawDeps)
		// Variable references imply dependencies even when the depends
		// annotation omits them.
		for _, v := range args {
			s, ok := v.(string)
			if !ok {
				continue
			}
			if rm := refRe.FindStringSubmatch(s); rm != nil {
				deps[rm[1]] = true
			}
		}

		tasks = append(tasks, &dag.Task{
			ID:        id,
			ToolName:  tool,
			Arguments: args,
			DependsOn: sortedKeys(deps),
			Status:    dag.StatusPending,
		})
	}

	if len(tasks) == 0 {
		return nil, &dag.PlanParsingError{
			Reason: "no task lines found",
			Raw:    completion,
		}
	}
	return tasks, nil
}

// parseArgs splits `name=value, name=value` pairs, honoring quotes.
func parseArgs(raw string) map[string]any {
	args := map[string]any{}
	for _, part := range splitTopLevel(raw) {
		name, value, ok := strings.Cut(part, "=")
		if !ok {
			continue
		}
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		args[name] = parseValue(strings.TrimSpace(value))
	}
	return args
}

// splitTopLevel splits on commas outside quoted strings.
func splitTopLevel(s string) []string {
	var parts []string
	var b strings.Builder
	inQuote := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '"' && (i == 0 || s[i-1] != '\\'):
			inQuote = !inQuote
			b.WriteByte(c)
		case c == ',' && !inQuote:
			parts = append(parts, b.String())
			b.Reset()
		default:
			b.WriteByte(c)
		}
	}
	if b.Len() > 0 {
		parts = append(parts, b.String())
	}
	return parts
}

// parseValue maps an argument literal to its Go value: quoted string,
// variable reference (kept verbatim), number, boolean, null, or bare word.
func parseValue(raw string) any {
	if len(raw) >= 2 && raw[0] == '"' && raw[len(raw)-1] == '"' {
		s := raw[1 : len(raw)-1]
		s = strings.ReplaceAll(s, `\"`, `"`)
		return s
	}
	if strings.HasPrefix(raw, "'") && strings.HasSuffix(raw, "'") && len(raw) >= 2 {
		return raw[1 : len(raw)-1]
	}
	if strings.HasPrefix(raw, "$") {
		return raw
	}
	switch strings.ToLower(raw) {
	case "true":
		return true
	case "false":
		return false
	case "null", "none":
		return nil
	}
	if n, err := strconv.ParseFloat(raw, 64); err == nil {
		return n
	}
	return raw
}

func parseDeps(raw string) map[string]bool {
	deps := map[string]bool{}
	for _, d := range strings.Split(raw, ",") {
		d = strings.TrimSpace(d)
		if d != "" {
			deps[d] = true
		}
	}
	return deps
}

func sortedKeys(set map[string]bool) []string {
	if len(set) == 0 {
		return nil
	}
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
