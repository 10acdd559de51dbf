// Package cli handles command line interface logic
package cli

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/retroenv/wordvm/internal/detector"
	"github.com/retroenv/wordvm/internal/machine"
	"github.com/retroenv/wordvm/internal/options"
)

// ParseFlags parses the command line arguments, including the program name,
// and returns program and disassembler options.
func ParseFlags(args []string) (options.Program, options.Disassembler, error) {
	flags := flag.NewFlagSet(args[0], flag.ContinueOnError)
	flags.SetOutput(io.Discard)

	var opts options.Program
	readOptionFlags(flags, &opts)

	if err := flags.Parse(args[1:]); err != nil {
		return opts, options.Disassembler{}, &UsageError{flags: flags, msg: err.Error()}
	}

	if err := parseCommand(flags, &opts); err != nil {
		return opts, options.Disassembler{}, err
	}

	if err := normalizeOptions(&opts); err != nil {
		return opts, options.Disassembler{}, err
	}

	return opts, createDisasmOptions(opts), nil
}

// UsageError represents an error that should show usage information
type UsageError struct {
	flags *flag.FlagSet
	msg   string
}

func (e *UsageError) Error() string {
	return e.msg
}

func (e *UsageError) ShowUsage() {
	fmt.Printf("usage: wordvm [options] run <program or snapshot> [scripted input file]\n")
	fmt.Printf("       wordvm [options] dis <program or snapshot>\n\n")
	e.flags.SetOutput(os.Stdout)
	e.flags.PrintDefaults()
	fmt.Println()
}

// parseCommand reads the command and its file parameters from the
// positional arguments.
func parseCommand(flags *flag.FlagSet, opts *options.Program) error {
	args := flags.Args()
	if len(args) < 2 {
		return &UsageError{flags: flags, msg: "missing command or input file"}
	}

	for _, arg := range args[1:] {
		if strings.HasPrefix(arg, "-") {
			return &UsageError{
				flags: flags,
				msg:   fmt.Sprintf("Potential argument %s found after command, please pass all options before the command", arg),
			}
		}
	}

	opts.Command = args[0]
	opts.Input = args[1]

	switch opts.Command {
	case options.CommandRun:
		if len(args) > 3 {
			return &UsageError{flags: flags, msg: "too many arguments for command run"}
		}
		if len(args) == 3 {
			opts.Script = args[2]
		}

	case options.CommandDisassemble:
		if len(args) > 2 {
			return &UsageError{flags: flags, msg: "too many arguments for command dis"}
		}

	default:
		return &UsageError{flags: flags, msg: fmt.Sprintf("unsupported command '%s'", opts.Command)}
	}
	return nil
}

// normalizeOptions normalizes and validates option values
func normalizeOptions(opts *options.Program) error {
	if opts.Format != "" {
		kind, err := detector.KindFromString(opts.Format)
		if err != nil {
			return err
		}
		opts.Format = string(kind)
	}

	if len(opts.Escape) != 1 {
		return fmt.Errorf("escape character '%s' must be a single byte", opts.Escape)
	}
	return nil
}

// createDisasmOptions creates disassembler options based on program options
func createDisasmOptions(opts options.Program) options.Disassembler {
	disasmOptions := options.NewDisassembler()
	disasmOptions.HexComments = !opts.NoHexComments
	disasmOptions.OffsetComments = !opts.NoOffsets
	disasmOptions.ZeroWords = opts.ZeroWords
	return disasmOptions
}

func readOptionFlags(flags *flag.FlagSet, opts *options.Program) {
	flags.StringVar(&opts.Output, "o", "", "name of the output .asm file for the dis command, printed on console if no name given")
	flags.StringVar(&opts.Format, "format", "", "input format (image, json, toml, cbor) - if not auto-detected from file extension")
	flags.StringVar(&opts.Escape, "escape", options.DefaultEscape, "interactive input character that starts a debug command")
	flags.BoolVar(&opts.Debug, "debug", false, "enable debugging options for extended logging")
	flags.BoolVar(&opts.Quiet, "q", false, "perform operations quietly")
	flags.BoolVar(&opts.Trace, "trace", false, "log every executed instruction, implies -debug")
	flags.Func("stub", "answer calls to an address with a value in register 0, format addr=value, repeatable", func(s string) error {
		return parseStub(opts, s)
	})

	flags.BoolVar(&opts.NoHexComments, "nohexcomments", false, "do not output instruction words as hex values in comments")
	flags.BoolVar(&opts.NoOffsets, "nooffsets", false, "do not output addresses in comments")
	flags.BoolVar(&opts.ZeroWords, "z", false, "output the trailing zero words of the address space")
}

// parseStub parses a call stub definition of the format addr=value. Both
// numbers can be given in decimal or with a 0x prefix in hex.
func parseStub(opts *options.Program, s string) error {
	addrStr, valueStr, ok := strings.Cut(s, "=")
	if !ok {
		return fmt.Errorf("stub '%s' is not of format addr=value", s)
	}

	addr, err := strconv.ParseUint(strings.TrimSpace(addrStr), 0, 16)
	if err != nil || addr >= machine.MemorySize {
		return fmt.Errorf("invalid stub address '%s'", addrStr)
	}
	value, err := strconv.ParseUint(strings.TrimSpace(valueStr), 0, 16)
	if err != nil || value > machine.MaxValue {
		return fmt.Errorf("invalid stub value '%s'", valueStr)
	}

	if opts.Stubs == nil {
		opts.Stubs = map[uint16]uint16{}
	}
	opts.Stubs[uint16(addr)] = uint16(value)
	return nil
}
