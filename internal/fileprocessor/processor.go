// Package fileprocessor handles the processing of a single input file for
// the selected command.
package fileprocessor

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/retroenv/retrogolib/log"
	"github.com/retroenv/wordvm/internal/options"
	"github.com/retroenv/wordvm/internal/pipeline"
)

// ProcessFile runs or disassembles the input file depending on the command.
func ProcessFile(ctx context.Context, logger *log.Logger, opts options.Program,
	disasmOptions options.Disassembler, console pipeline.Console) error {

	p := pipeline.New(logger)

	switch opts.Command {
	case options.CommandRun:
		if err := p.Run(ctx, opts, console); err != nil {
			return fmt.Errorf("running %s: %w", opts.Input, err)
		}
		return nil

	case options.CommandDisassemble:
		return disassembleFile(ctx, p, opts, disasmOptions, console.Output)

	default:
		return fmt.Errorf("unsupported command '%s'", opts.Command)
	}
}

func disassembleFile(ctx context.Context, p *pipeline.Pipeline, opts options.Program,
	disasmOptions options.Disassembler, stdout io.Writer) error {

	writer, err := createWriter(opts, stdout)
	if err != nil {
		return fmt.Errorf("creating writer: %w", err)
	}

	if err := p.Disassemble(ctx, opts, disasmOptions, writer); err != nil {
		_ = writer.Close()
		return fmt.Errorf("disassembling %s: %w", opts.Input, err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("closing file: %w", err)
	}
	return nil
}

func createWriter(opts options.Program, stdout io.Writer) (io.WriteCloser, error) {
	if opts.Output == "" {
		return &nopCloser{stdout}, nil
	}

	file, err := os.Create(opts.Output)
	if err != nil {
		return nil, fmt.Errorf("creating output file %s: %w", opts.Output, err)
	}
	return file, nil
}

// PrintBanner prints application version information
func PrintBanner(logger *log.Logger, opts options.Program, version, commit, date string) {
	if opts.Quiet {
		return
	}

	versionString := version
	if commit != "" {
		if len(commit) > 7 {
			commit = commit[:7]
		}
		versionString += fmt.Sprintf(" (%s)", commit)
	}

	logger.Info("wordvm", log.String("version", versionString))

	if date != "" && !strings.Contains(date, "unknown") {
		logger.Info("Build", log.String("date", date))
	}
}

// nopCloser wraps an io.Writer to add a no-op Close method
type nopCloser struct {
	io.Writer
}

func (nc *nopCloser) Close() error {
	return nil
}
