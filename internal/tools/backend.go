package tools

import (
	"context"
	"fmt"

	"github.com/calyptra/redgraph/internal/logging"
)

// Backend adapts a registry to the executor: it looks up the tool named by a
// task and runs it. It also derives rate-limit keys from each tool's
// catalog-declared resource argument.
type Backend struct {
	registry *Registry
	logger   *logging.Logger
}

// NewBackend wraps a registry.
func NewBackend(r *Registry) *Backend {
	return &Backend{
		registry: r,
		logger:   logging.New().WithComponent("tools"),
	}
}

// Execute runs the named tool with the given arguments.
func (b *Backend) Execute(ctx context.Context, tool string, args map[string]any) (any, error) {
	t, err := b.registry.Get(tool)
	if err != nil {
		return nil, err
	}
	out, err := t.Execute(ctx, args)
	if err != nil {
		b.logger.Debug("tool call failed", map[string]interface{}{
			"tool":  tool,
			"error": err.Error(),
		})
	}
	return out, err
}

// ResourceKey returns the value of the tool's resource argument, or "" when
// the tool is local or the argument is absent. The executor normalizes
// URL-shaped keys to their host.
func (b *Backend) ResourceKey(tool string, args map[string]any) string {
	spec, ok := b.registry.Spec(tool)
	if !ok || spec.ResourceArg == "" {
		return ""
	}
	v, ok := args[spec.ResourceArg]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}
