package dag

import (
	"regexp"
	"strconv"
	"strings"
)

// Variable references take the form $<task_id> or $<task_id>.<path>, where
// each path segment is a field name optionally suffixed with [*] (broadcast
// over an array) or [<index>] (array index).
var segmentRe = regexp.MustCompile(`^([A-Za-z0-9_\-]*)(?:\[(\*|[0-9]+)\])?$`)

// Resolve substitutes variable references in arguments against prior task
// results. Only top-level string values are inspected; nested objects and
// arrays pass through verbatim. A resolution miss yields nil rather than an
// error so one missing hint does not abort an otherwise runnable task — the
// tool backend rejects a nil argument with a normal execution error if it
// matters.
func Resolve(args map[string]any, results map[string]any) map[string]any {
	resolved := make(map[string]any, len(args))
	for name, value := range args {
		s, ok := value.(string)
		if !ok || !strings.HasPrefix(s, "$") {
			resolved[name] = value
			continue
		}
		v, _ := ResolveReference(s, results)
		resolved[name] = v
	}
	return resolved
}

// ResolveReference resolves a single $task.path reference. The second return
// value reports whether resolution succeeded.
func ResolveReference(ref string, results map[string]any) (any, bool) {
	body := strings.TrimPrefix(ref, "$")
	id, path, _ := strings.Cut(body, ".")
	root, ok := results[id]
	if !ok {
		return nil, false
	}
	if path == "" {
		return root, true
	}
	return walkPath(root, strings.Split(path, "."))
}

// walkPath walks a JSON-shaped value by field and array segments.
func walkPath(v any, segs []string) (any, bool) {
	if len(segs) == 0 {
		return v, true
	}
	m := segmentRe.FindStringSubmatch(segs[0])
	if m == nil {
		return nil, false
	}
	field, index := m[1], m[2]

	if field != "" {
		obj, ok := v.(map[string]any)
		if !ok {
			return nil, false
		}
		if v, ok = obj[field]; !ok {
			return nil, false
		}
	}
	if index == "" {
		return walkPath(v, segs[1:])
	}

	arr, ok := v.([]any)
	if !ok {
		return nil, false
	}
	if index == "*" {
		// Broadcast: project the remaining path across every element,
		// dropping elements where the remainder fails to resolve.
		out := make([]any, 0, len(arr))
		for _, el := range arr {
			if rv, ok := walkPath(el, segs[1:]); ok {
				out = append(out, rv)
			}
		}
		return out, true
	}
	i, err := strconv.Atoi(index)
	if err != nil || i < 0 || i >= len(arr) {
		return nil, false
	}
	return walkPath(arr[i], segs[1:])
}
