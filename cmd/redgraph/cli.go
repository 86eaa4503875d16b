// Package main defines the CLI structure using kong.
package main

// CLI defines the command-line interface.
type CLI struct {
	Config  string `help:"Config file path" type:"path"`
	Catalog string `help:"Tool catalog YAML path (overrides config)" type:"path"`
	Debug   bool   `help:"Enable debug logging and tracing"`

	Run     RunCmd     `cmd:"" help:"Plan a mission and execute it"`
	Plan    PlanCmd    `cmd:"" help:"Generate a plan without executing it"`
	Tools   ToolsCmd   `cmd:"" help:"List available tools"`
	Version VersionCmd `cmd:"" help:"Show version information"`
}

// RunCmd plans a mission and drives the task graph to completion.
type RunCmd struct {
	Mission     []string `arg:"" help:"Mission description"`
	Arch        string   `default:"compiler" enum:"compiler,ooda" help:"Reasoning architecture (compiler or ooda)"`
	SessionOut  string   `help:"Write the session event log to this JSON file" type:"path"`
	Concurrency int      `help:"Max concurrent tasks (overrides config)"`
	JSON        bool     `help:"Print the raw result as JSON instead of the summary view"`
}

// PlanCmd generates and prints a plan without running anything.
type PlanCmd struct {
	Mission []string `arg:"" help:"Mission description"`
}

// ToolsCmd lists the registered tools and their arguments.
type ToolsCmd struct{}

// VersionCmd prints build information.
type VersionCmd struct{}
