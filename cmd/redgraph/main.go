// Package main is the entry point for the redgraph CLI: an LLM-planned,
// dependency-graph task execution engine for reconnaissance missions.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/joho/godotenv"

	"github.com/calyptra/redgraph/internal/config"
	"github.com/calyptra/redgraph/internal/logging"
	"github.com/calyptra/redgraph/internal/telemetry"
)

// Build-time variables (set via ldflags)
var (
	version   = "dev"
	commit    = "unknown"
	buildTime = "unknown"
)

func init() {
	// .env for API keys and local overrides
	_ = godotenv.Load()
}

func main() {
	var cli CLI
	kctx := kong.Parse(&cli,
		kong.Name("redgraph"),
		kong.Description("LLM-planned parallel task execution for security reconnaissance"),
		kong.UsageOnError(),
	)

	cfg, err := loadConfig(cli.Config)
	if err != nil {
		kctx.FatalIfErrorf(err)
	}
	if cli.Catalog != "" {
		cfg.Catalog.Path = cli.Catalog
	}

	logger := logging.New()
	if cli.Debug {
		logger.SetLevel(logging.LevelDebug)
	} else {
		logger.SetLevel(logging.ParseLevel(cfg.Logging.Level))
	}
	telemetry.Init(cli.Debug)

	// Ctrl-C cancels cooperatively: in-flight tasks finish, the rest skip.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := &appContext{ctx: ctx, cfg: cfg, logger: logger}
	kctx.FatalIfErrorf(kctx.Run(app))
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFile(path)
	}
	return config.LoadDefault()
}
