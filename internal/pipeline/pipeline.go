// Package pipeline orchestrates the run and disassembly workflows.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/retroenv/retrogolib/log"
	"github.com/retroenv/wordvm/internal/debugcmd"
	"github.com/retroenv/wordvm/internal/detector"
	"github.com/retroenv/wordvm/internal/disasm"
	"github.com/retroenv/wordvm/internal/loader"
	"github.com/retroenv/wordvm/internal/machine"
	"github.com/retroenv/wordvm/internal/options"
)

// Console contains the terminal streams of a program run.
type Console struct {
	Input  io.Reader
	Output io.Writer
	Errors io.Writer // receives the state dump of a faulted machine
}

// Pipeline orchestrates the complete workflows.
type Pipeline struct {
	logger   *log.Logger
	detector *detector.Detector
	loader   *loader.Loader
}

// New creates a new pipeline.
func New(logger *log.Logger) *Pipeline {
	return &Pipeline{
		logger:   logger,
		detector: detector.New(logger),
		loader:   loader.New(),
	}
}

// Load detects the input type and loads the program image or snapshot,
// including the scripted input file.
func (p *Pipeline) Load(opts options.Program) (*machine.State, error) {
	kind, err := p.detector.Detect(opts)
	if err != nil {
		return nil, fmt.Errorf("detecting input type: %w", err)
	}

	state, err := p.loader.Load(opts, kind)
	if err != nil {
		return nil, fmt.Errorf("loading input: %w", err)
	}
	return state, nil
}

// Run loads the input and executes it until the program halts.
func (p *Pipeline) Run(ctx context.Context, opts options.Program, console Console) error {
	state, err := p.Load(opts)
	if err != nil {
		return err
	}
	return p.RunState(ctx, state, opts, console)
}

// RunState executes an already loaded machine state until the program
// halts. A closed interactive input stream ends the run without error.
func (p *Pipeline) RunState(ctx context.Context, state *machine.State, opts options.Program, console Console) error {
	p.printInfo(opts, state)

	var escape byte
	if opts.Escape != "" {
		escape = opts.Escape[0]
	}

	input := console.Input
	if input != nil {
		reader, stop := contextReader(ctx, input)
		defer stop()
		input = reader
	}

	m := machine.New(p.logger, state, machine.Config{
		Output:      console.Output,
		Input:       input,
		Echo:        console.Output,
		DumpOutput:  console.Errors,
		Escape:      escape,
		Commands:    debugcmd.New(p.logger, console.Output),
		Interceptor: p.interceptor(opts),
	})

	err := m.Run(ctx)
	switch {
	case err == nil:
		p.logger.Debug("Program halted", log.Hex("pc", state.PC))
		return nil

	case errors.Is(err, machine.ErrEndOfInput):
		p.logger.Info("Interactive input closed, stopping", log.Hex("pc", state.PC))
		return nil

	default:
		return fmt.Errorf("running program: %w", err)
	}
}

// Disassemble loads the input and writes a listing of its address space.
func (p *Pipeline) Disassemble(ctx context.Context, opts options.Program, disasmOpts options.Disassembler,
	writer io.Writer) error {

	state, err := p.Load(opts)
	if err != nil {
		return err
	}

	dis := disasm.New(p.logger, &state.Memory, disasmOpts)
	if err := dis.Process(ctx, writer); err != nil {
		return fmt.Errorf("disassembling: %w", err)
	}
	return nil
}

// contextReader reads the input in the background, a read that is blocked
// on the terminal fails with the context error once the context is cancelled.
// The returned function releases the reader.
func contextReader(ctx context.Context, r io.Reader) (io.Reader, func()) {
	pr, pw := io.Pipe()
	go func() {
		_, err := io.Copy(pw, r)
		_ = pw.CloseWithError(err)
	}()
	stopCancel := context.AfterFunc(ctx, func() {
		_ = pw.CloseWithError(ctx.Err())
	})

	return pr, func() {
		stopCancel()
		_ = pr.Close()
	}
}

// printInfo prints information about the program being run.
func (p *Pipeline) printInfo(opts options.Program, state *machine.State) {
	if opts.Quiet {
		return
	}

	p.logger.Debug("Starting program",
		log.String("file", opts.Input),
		log.Hex("pc", state.PC),
		log.Int("pending_input", len(state.Input)),
		log.Int("stubs", len(opts.Stubs)))
}
