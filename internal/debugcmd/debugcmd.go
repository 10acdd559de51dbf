// Package debugcmd implements the debug commands that can be issued while a
// program waits for interactive input.
package debugcmd

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/retroenv/retrogolib/log"
	"github.com/retroenv/wordvm/internal/machine"
	"github.com/retroenv/wordvm/internal/snapshot"
)

// Command names.
const (
	Dump   = "dump"
	Set    = "set"
	Save   = "save"
	Export = "export"
)

var errUsage = errors.New("invalid arguments")

// Compile-time check to ensure Handler implements machine.CommandHandler.
var _ machine.CommandHandler = (*Handler)(nil)

// Handler executes debug commands against a machine state and reports the
// results to the console.
type Handler struct {
	logger  *log.Logger
	console io.Writer
}

// New returns a new debug command handler.
func New(logger *log.Logger, console io.Writer) *Handler {
	return &Handler{
		logger:  logger,
		console: console,
	}
}

// HandleCommand parses and executes a single command line.
func (h *Handler) HandleCommand(state *machine.State, line string) error {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return errors.New("empty command")
	}

	h.logger.Debug("Debug command", log.String("command", line))

	name, args := fields[0], fields[1:]
	switch name {
	case Dump:
		return state.Dump(h.console)

	case Set:
		if len(args) != 2 {
			return fmt.Errorf("%w: usage: set <register> <value>", errUsage)
		}
		return h.setRegister(state, args[0], args[1])

	case Save:
		if len(args) != 1 {
			return fmt.Errorf("%w: usage: save <path>", errUsage)
		}
		return h.write(args[0], func(path string) error {
			return snapshot.WriteNew(path, state.Memory.Bytes())
		})

	case Export:
		if len(args) != 1 {
			return fmt.Errorf("%w: usage: export <path>", errUsage)
		}
		return h.write(args[0], func(path string) error {
			return snapshot.Save(path, state.Snapshot())
		})

	default:
		return fmt.Errorf("unknown command '%s'", name)
	}
}

func (h *Handler) setRegister(state *machine.State, registerArg, valueArg string) error {
	register, err := strconv.ParseUint(registerArg, 10, 16)
	if err != nil || register >= machine.RegisterCount {
		return fmt.Errorf("invalid register '%s'", registerArg)
	}
	value, err := strconv.ParseUint(valueArg, 10, 16)
	if err != nil || value > machine.MaxValue {
		return fmt.Errorf("invalid value '%s'", valueArg)
	}

	if err := state.SetRegister(uint16(register), uint16(value)); err != nil {
		return fmt.Errorf("setting register: %w", err)
	}
	h.printf("updating register %d: %d\n", register, value)
	return nil
}

// write calls the writer function and reports the outcome. An existing
// file is reported and left untouched, it is not treated as an error.
func (h *Handler) write(path string, writer func(path string) error) error {
	err := writer(path)
	switch {
	case errors.Is(err, snapshot.ErrExists):
		h.printf("file %s already exists, doing nothing\n", path)
		return nil
	case err != nil:
		return err
	}
	h.printf("file saved to %s\n", path)
	return nil
}

func (h *Handler) printf(format string, args ...any) {
	if _, err := fmt.Fprintf(h.console, format, args...); err != nil {
		h.logger.Error("Writing to console failed", log.Err(err))
	}
}
