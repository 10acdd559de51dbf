// Package main implements the main entry point of the word machine
package main

import (
	"context"
	"errors"
	"os"

	"github.com/retroenv/retrogolib/app"
	"github.com/retroenv/retrogolib/log"
	"github.com/retroenv/wordvm/internal/cli"
	"github.com/retroenv/wordvm/internal/config"
	"github.com/retroenv/wordvm/internal/fileprocessor"
	"github.com/retroenv/wordvm/internal/pipeline"
)

var (
	version = "dev"
	commit  = ""
	date    = ""
)

func main() {
	ctx := app.Context()

	opts, disasmOptions, err := cli.ParseFlags(os.Args)
	if err != nil {
		logger := config.CreateLogger(opts.Debug, opts.Quiet, opts.Trace)
		var usageErr *cli.UsageError
		if errors.As(err, &usageErr) {
			fileprocessor.PrintBanner(logger, opts, version, commit, date)
			usageErr.ShowUsage()
		} else {
			logger.Error(err.Error())
		}
		os.Exit(1)
	}

	logger := config.CreateLogger(opts.Debug, opts.Quiet, opts.Trace)
	fileprocessor.PrintBanner(logger, opts, version, commit, date)

	console := pipeline.Console{
		Input:  os.Stdin,
		Output: os.Stdout,
		Errors: os.Stderr,
	}
	if err := fileprocessor.ProcessFile(ctx, logger, opts, disasmOptions, console); err != nil {
		// Handle context cancellation (Ctrl+C) gracefully
		if errors.Is(err, context.Canceled) {
			logger.Info("Operation cancelled")
			return
		}
		logger.Error("Processing failed", log.Err(err))
		os.Exit(1)
	}
}
