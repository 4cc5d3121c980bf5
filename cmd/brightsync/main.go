// Package main provides the entry point for the brightsync CLI tool.
package main

import (
	"context"
	"os"

	"github.com/agentstation/brightsync/cmd/brightsync/app"
	"github.com/agentstation/brightsync/pkg/logging"
)

// Version information populated by goreleaser.
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
	builtBy = "unknown"
)

func main() {
	// LOG_* variables configure the default logger, used wherever no
	// command logger is in the context.
	logging.ConfigureFromEnv()

	application, err := app.New(version, commit, date, builtBy)
	if err != nil {
		app.ExitOnError(err)
	}

	ctx, cancel := app.ContextWithSignals(context.Background())
	defer cancel()

	if err := application.Execute(ctx, os.Args[1:]); err != nil {
		cancel()
		app.ExitOnError(err)
	}
}
