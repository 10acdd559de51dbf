// Package options contains the program options.
package options

// Commands supported by the program.
const (
	CommandRun         = "run"
	CommandDisassemble = "dis"
)

// DefaultEscape is the interactive input character that starts a debug command.
const DefaultEscape = "/"

// Parameters contains file path options.
type Parameters struct {
	Input  string // program image or snapshot
	Script string // optional file whose bytes pre-populate the input buffer
	Output string // disassembly output file, stdout if empty
}

// Flags contains behavior options.
type Flags struct {
	Format string // input format: image, json, toml, cbor (default: auto-detect)
	Escape string // interactive escape character for debug commands
	Debug  bool
	Quiet  bool
	Trace  bool // log every executed instruction

	// Stubs answers calls to the given address by setting register 0 to the
	// mapped value and skipping the call.
	Stubs map[uint16]uint16
}

// OutputFlags contains disassembly output formatting options.
type OutputFlags struct {
	NoHexComments bool
	NoOffsets     bool
	ZeroWords     bool
}

// Program options.
type Program struct {
	Command string

	Parameters
	Flags
	OutputFlags
}

// Disassembler defines options to control the disassembler.
type Disassembler struct {
	HexComments    bool // output the instruction words as hex values in comments
	OffsetComments bool // output the address of every line in comments
	ZeroWords      bool // output the trailing zero words of the address space
}

// NewDisassembler returns a new options instance with default options.
func NewDisassembler() Disassembler {
	return Disassembler{
		HexComments:    true,
		OffsetComments: true,
	}
}
