// Package main is the entry point for the gatewatch telemetry service.
package main

import (
	"context"
	"fmt"
	"os"

	"gatewatch/bootstrap"
	"gatewatch/cmd"
)

// run initializes and starts the gatewatch server.
func run() error {
	ctx := context.Background()

	configPath := os.Getenv("GATEWATCH_CONFIG")

	app, err := bootstrap.NewApp(ctx, configPath)
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}

	if err := app.Start(ctx); err != nil {
		app.Shutdown()
		return fmt.Errorf("failed to start application: %w", err)
	}

	app.WaitForShutdown()
	app.Shutdown()
	return nil
}

// main is the entry point.
func main() {
	// Check if running as CLI command
	if len(os.Args) > 1 && os.Args[1] == "tools" {
		// Strip "tools" from os.Args since the command already knows
		// it's the tools command
		os.Args = append([]string{os.Args[0]}, os.Args[2:]...)

		toolsCmd := cmd.NewToolsCmd()
		if err := toolsCmd.Execute(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
