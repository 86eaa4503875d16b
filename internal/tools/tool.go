package tools

import "context"

// Tool is one executable capability. Implementations must be safe for
// concurrent use; the engine dispatches tasks in parallel.
type Tool interface {
	Name() string
	Description() string
	Execute(ctx context.Context, args map[string]interface{}) (interface{}, error)
}

// ArgSpec describes one tool argument for the planner prompt.
type ArgSpec struct {
	Name        string `yaml:"name"`
	Type        string `yaml:"type"`
	Required    bool   `yaml:"required"`
	Description string `yaml:"description"`
}

// Spec is a tool's catalog entry. ResourceArg names the argument whose value
// identifies the external resource the tool touches, for rate limiting; empty
// means the tool is local.
type Spec struct {
	Name        string    `yaml:"name"`
	Description string    `yaml:"description"`
	ResourceArg string    `yaml:"resource_arg"`
	Args        []ArgSpec `yaml:"args"`
}
