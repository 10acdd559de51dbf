// Package machine implements the execution engine of the 16-bit word machine:
// address space, registers, stack, operand resolution and the
// fetch-decode-execute cycle for all 22 opcodes.
package machine

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/retroenv/retrogolib/log"
)

// Status is the outcome of a single step.
type Status int

const (
	// Continue means the instruction executed and the machine is still running.
	Continue Status = iota
	// Retry means a debug command was processed instead of consuming input,
	// the instruction did not complete and will be executed again.
	Retry
	// Halted means the machine stopped.
	Halted
)

func (s Status) String() string {
	switch s {
	case Continue:
		return "continue"
	case Retry:
		return "retry"
	case Halted:
		return "halted"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// CommandHandler executes a debug command line against the machine state.
type CommandHandler interface {
	HandleCommand(state *State, line string) error
}

// Interceptor is called with the address of the next instruction before it
// is decoded. Returning true marks the instruction as handled, the
// interceptor is then responsible for updating the program counter.
type Interceptor func(pc uint16, state *State) (bool, error)

// Config contains the collaborators of a machine.
type Config struct {
	Output      io.Writer      // sink for the out instruction
	Input       io.Reader      // interactive input stream
	Echo        io.Writer      // optional, receives scripted input bytes as they are consumed
	DumpOutput  io.Writer      // optional, receives a state dump on a fatal fault
	Escape      byte           // interactive byte that starts a debug command, 0 disables
	Commands    CommandHandler // optional debug command surface
	Interceptor Interceptor    // optional pre-dispatch hook
}

// Machine executes programs against a State.
type Machine struct {
	logger *log.Logger
	state  *State

	out        *bufio.Writer
	in         *bufio.Reader
	echo       io.Writer
	dumpOutput io.Writer
	escape     byte

	commands    CommandHandler
	interceptor Interceptor
}

// New returns a new machine executing the given state.
func New(logger *log.Logger, state *State, cfg Config) *Machine {
	m := &Machine{
		logger:      logger,
		state:       state,
		echo:        cfg.Echo,
		dumpOutput:  cfg.DumpOutput,
		escape:      cfg.Escape,
		commands:    cfg.Commands,
		interceptor: cfg.Interceptor,
	}
	output := cfg.Output
	if output == nil {
		output = io.Discard
	}
	m.out = bufio.NewWriter(output)
	if cfg.Input != nil {
		m.in = bufio.NewReader(cfg.Input)
	}
	return m
}

// State returns the state that the machine executes.
func (m *Machine) State() *State {
	return m.state
}

// SetInterceptor installs a pre-dispatch hook, replacing any previous one.
func (m *Machine) SetInterceptor(interceptor Interceptor) {
	m.interceptor = interceptor
}

// Run executes instructions until the machine halts, the context is
// cancelled or a fault occurs. On a fault the state is dumped before the
// error is returned.
func (m *Machine) Run(ctx context.Context) error {
	defer func() {
		_ = m.out.Flush()
	}()

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		status, err := m.Step()
		if err != nil {
			// a cancelled run can interrupt reading interactive input
			if errors.Is(err, ErrEndOfInput) || ctx.Err() != nil {
				return err
			}
			m.fault(err)
			return err
		}
		if status == Halted {
			return nil
		}
	}
}

func (m *Machine) fault(err error) {
	_ = m.out.Flush()
	m.logger.Error("Machine fault",
		log.Err(err),
		log.Hex("pc", m.state.PC),
		log.Int("stack_depth", m.state.Stack.Len()))
	if m.dumpOutput != nil {
		if dumpErr := m.state.Dump(m.dumpOutput); dumpErr != nil {
			m.logger.Error("Dumping state failed", log.Err(dumpErr))
		}
	}
}

// Step executes a single instruction.
func (m *Machine) Step() (Status, error) {
	s := m.state
	if !s.Running {
		return Halted, nil
	}
	pc := s.PC

	if m.interceptor != nil {
		handled, err := m.interceptor(pc, s)
		if err != nil {
			return Halted, fmt.Errorf("interceptor at pc %d: %w", pc, err)
		}
		if handled {
			return m.status(Continue), nil
		}
	}

	word, err := s.Memory.Read(pc)
	if err != nil {
		return Halted, withPC(err, pc)
	}
	info, ok := Lookup(word)
	if !ok {
		return Halted, &Error{Err: ErrUnknownOpcode, PC: pc, Addr: pc, Value: uint32(word)}
	}

	var args [3]uint16
	for i, kind := range info.Operands {
		addr := pc + 1 + uint16(i)
		if kind == RegisterOperand {
			args[i], err = s.ResolveRegister(addr)
		} else {
			args[i], err = s.ResolveValue(addr)
		}
		if err != nil {
			return Halted, withPC(err, pc)
		}
	}

	next := pc + info.Size()
	status, err := m.execute(Opcode(word), args, &next)
	if err != nil {
		return Halted, withPC(err, pc)
	}
	if status == Continue && s.Running {
		s.PC = next
	}
	return m.status(status), nil
}

// status returns Halted for a stopped machine and the given status otherwise.
func (m *Machine) status(status Status) Status {
	if !m.state.Running {
		return Halted
	}
	return status
}

// execute applies the semantics of an opcode to the state. next holds the
// address of the following instruction and is replaced by control flow
// instructions.
//
//nolint:funlen,cyclop // one case per opcode
func (m *Machine) execute(op Opcode, args [3]uint16, next *uint16) (Status, error) {
	s := m.state
	a, b, c := args[0], args[1], args[2]

	switch op {
	case Halt:
		s.Running = false

	case Set:
		s.Registers[a] = b

	case Push:
		s.Stack.Push(a)

	case Pop:
		v, ok := s.Stack.Pop()
		if !ok {
			return Halted, &Error{Err: ErrStackUnderflow}
		}
		s.Registers[a] = v

	case Eq:
		s.Registers[a] = boolWord(b == c)

	case Gt:
		s.Registers[a] = boolWord(b > c)

	case Jmp:
		*next = a

	case Jt:
		if a != 0 {
			*next = b
		}

	case Jf:
		if a == 0 {
			*next = b
		}

	case Add:
		s.Registers[a] = uint16((uint32(b) + uint32(c)) % modulus)

	case Mult:
		s.Registers[a] = uint16((uint32(b) * uint32(c)) % modulus)

	case Mod:
		if c == 0 {
			return Halted, &Error{Err: ErrDivisionByZero}
		}
		s.Registers[a] = b % c

	case And:
		s.Registers[a] = b & c

	case Or:
		s.Registers[a] = b | c

	case Not:
		s.Registers[a] = ^b & MaxValue

	case Rmem:
		v, err := s.Memory.Read(b)
		if err != nil {
			return Halted, err
		}
		s.Registers[a] = v

	case Wmem:
		if err := s.Memory.Write(a, b); err != nil {
			return Halted, err
		}

	case Call:
		s.Stack.Push(*next)
		s.Depth++
		*next = a

	case Ret:
		addr, ok := s.Stack.Pop()
		if !ok {
			s.Running = false
			return Halted, nil
		}
		if s.Depth > 0 {
			s.Depth--
		}
		*next = addr

	case Out:
		if err := m.out.WriteByte(byte(a)); err != nil {
			return Halted, fmt.Errorf("writing output: %w", err)
		}

	case In:
		v, consumed, err := m.readInputByte()
		if err != nil {
			return Halted, err
		}
		if !consumed {
			return Retry, nil
		}
		s.Registers[a] = uint16(v)

	case Noop:

	default:
		return Halted, &Error{Err: ErrUnknownOpcode, Value: uint32(op)}
	}

	return Continue, nil
}

func boolWord(b bool) uint16 {
	if b {
		return 1
	}
	return 0
}
