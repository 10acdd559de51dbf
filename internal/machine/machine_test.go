package machine

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"slices"
	"strconv"
	"strings"
	"testing"

	"github.com/retroenv/retrogolib/assert"
	"github.com/retroenv/retrogolib/log"
)

const (
	r0 = RegisterBase + iota
	r1
	r2
	r3
)

// program packs words into a little endian program image.
func program(words ...uint16) []byte {
	image := make([]byte, len(words)*2)
	for i, w := range words {
		binary.LittleEndian.PutUint16(image[i*2:], w)
	}
	return image
}

type testMachine struct {
	*Machine
	output *bytes.Buffer
}

func newTestMachine(t *testing.T, interactive string, words ...uint16) testMachine {
	t.Helper()

	state, err := NewState(program(words...))
	assert.NoError(t, err)

	output := &bytes.Buffer{}
	cfg := Config{
		Output: output,
		Input:  strings.NewReader(interactive),
		Escape: '/',
	}
	return testMachine{
		Machine: New(log.NewTestLogger(t), state, cfg),
		output:  output,
	}
}

// newFaultLogger returns a logger for runs that are expected to fault. The
// test logger fails the test on error records.
func newFaultLogger() *log.Logger {
	cfg := log.DefaultConfig()
	cfg.Level = log.ErrorLevel
	return log.NewWithConfig(cfg)
}

// commandFunc adapts a function to the CommandHandler interface.
type commandFunc func(state *State, line string) error

func (f commandFunc) HandleCommand(state *State, line string) error {
	return f(state, line)
}

func TestSetAndOut(t *testing.T) {
	m := newTestMachine(t, "", uint16(Set), r0, 5, uint16(Out), r0, uint16(Halt))
	s := m.State()

	status, err := m.Step()
	assert.NoError(t, err)
	assert.Equal(t, Continue, status)
	assert.Equal(t, uint16(5), s.Registers[0])
	assert.Equal(t, uint16(3), s.PC)

	assert.NoError(t, m.Run(context.Background()))
	assert.Equal(t, "\x05", m.output.String())
	assert.False(t, s.Running)
}

func TestArithmetic(t *testing.T) {
	values := []uint16{0, 1, 2, 255, 256, 12345, 16384, 32766, 32767}

	for _, x := range values {
		for _, y := range values {
			m := newTestMachine(t, "",
				uint16(Add), r0, x, y,
				uint16(Mult), r1, x, y,
				uint16(Halt))
			assert.NoError(t, m.Run(context.Background()))

			s := m.State()
			assert.Equal(t, uint16((uint32(x)+uint32(y))%32768), s.Registers[0])
			assert.Equal(t, uint16((uint32(x)*uint32(y))%32768), s.Registers[1])
		}
	}
}

func TestMultWithRegisters(t *testing.T) {
	m := newTestMachine(t, "",
		uint16(Set), r1, 32767,
		uint16(Set), r2, 32767,
		uint16(Mult), r0, r1, r2,
		uint16(Halt))
	assert.NoError(t, m.Run(context.Background()))
	assert.Equal(t, uint16(1), m.State().Registers[0])
}

func TestNotIsInvolution(t *testing.T) {
	m := newTestMachine(t, "", uint16(Not), r1, r0, uint16(Not), r2, r1, uint16(Halt))
	s := m.State()

	for x := range uint16(MaxValue + 1) {
		s.Registers[0] = x
		s.PC = 0
		s.Running = true
		assert.NoError(t, m.Run(context.Background()))
		if s.Registers[1] != ^x&0x7fff || s.Registers[2] != x {
			t.Fatalf("not(%d) = %d, not(not(%d)) = %d", x, s.Registers[1], x, s.Registers[2])
		}
	}
}

func TestBitwiseAndMod(t *testing.T) {
	m := newTestMachine(t, "",
		uint16(And), r0, 0x7f0f, 0x00ff,
		uint16(Or), r1, 0x7000, 0x000f,
		uint16(Mod), r2, 17, 5,
		uint16(Halt))
	assert.NoError(t, m.Run(context.Background()))

	s := m.State()
	assert.Equal(t, uint16(0x000f), s.Registers[0])
	assert.Equal(t, uint16(0x700f), s.Registers[1])
	assert.Equal(t, uint16(2), s.Registers[2])
}

func TestComparisons(t *testing.T) {
	tests := []struct {
		b, c   uint16
		eq, gt uint16
	}{
		{b: 1, c: 1, eq: 1, gt: 0},
		{b: 2, c: 1, eq: 0, gt: 1},
		{b: 1, c: 2, eq: 0, gt: 0},
		{b: 32767, c: 0, eq: 0, gt: 1},
	}

	for _, tt := range tests {
		t.Run(strconv.Itoa(int(tt.b))+"_"+strconv.Itoa(int(tt.c)), func(t *testing.T) {
			m := newTestMachine(t, "", uint16(Eq), r0, tt.b, tt.c, uint16(Gt), r1, tt.b, tt.c, uint16(Halt))
			assert.NoError(t, m.Run(context.Background()))
			assert.Equal(t, tt.eq, m.State().Registers[0])
			assert.Equal(t, tt.gt, m.State().Registers[1])
		})
	}
}

func TestStackRoundTrip(t *testing.T) {
	m := newTestMachine(t, "",
		uint16(Push), 10,
		uint16(Push), 20,
		uint16(Push), 30,
		uint16(Pop), r0,
		uint16(Pop), r1,
		uint16(Pop), r2,
		uint16(Halt))
	assert.NoError(t, m.Run(context.Background()))

	s := m.State()
	assert.Equal(t, uint16(30), s.Registers[0])
	assert.Equal(t, uint16(20), s.Registers[1])
	assert.Equal(t, uint16(10), s.Registers[2])
	assert.Equal(t, 0, s.Stack.Len())
}

func TestPopEmptyStack(t *testing.T) {
	m := newTestMachine(t, "", uint16(Noop), uint16(Pop), r0)
	m.logger = newFaultLogger()

	err := m.Run(context.Background())
	assert.True(t, errors.Is(err, ErrStackUnderflow))

	var vmErr *Error
	assert.True(t, errors.As(err, &vmErr))
	assert.Equal(t, uint16(1), vmErr.PC)
}

func TestJumps(t *testing.T) {
	m := newTestMachine(t, "",
		uint16(Jmp), 4, // 0
		uint16(Halt), uint16(Halt), // 2
		uint16(Jt), 0, 20, // 4: not taken
		uint16(Jf), 1, 20, // 7: not taken
		uint16(Jt), 1, 16, // 10: taken
		uint16(Halt), uint16(Halt), uint16(Halt), // 13
		uint16(Jf), 0, 21, // 16: taken
		uint16(Halt), uint16(Halt), // 19
		uint16(Set), r0, 7, // 21
		uint16(Halt))
	assert.NoError(t, m.Run(context.Background()))

	s := m.State()
	assert.Equal(t, uint16(7), s.Registers[0])
	assert.Equal(t, uint16(24), s.PC)
}

func TestJumpTargetFromRegister(t *testing.T) {
	m := newTestMachine(t, "",
		uint16(Set), r3, 9, // 0
		uint16(Jmp), r3, // 3
		uint16(Add), r0, r0, 1, // 5: skipped
		uint16(Halt)) // 9

	assert.NoError(t, m.Run(context.Background()))
	assert.Equal(t, uint16(9), m.State().PC)
	assert.Equal(t, uint16(0), m.State().Registers[0])
}

func TestCallReturn(t *testing.T) {
	m := newTestMachine(t, "",
		uint16(Call), 5, // 0
		uint16(Out), 'b', // 2
		uint16(Halt), // 4
		uint16(Out), 'a', // 5
		uint16(Ret)) // 7

	s := m.State()
	status, err := m.Step()
	assert.NoError(t, err)
	assert.Equal(t, Continue, status)
	assert.Equal(t, uint16(5), s.PC)
	assert.True(t, slices.Equal([]uint16{2}, s.Stack.Values()))
	assert.Equal(t, 1, s.Depth)

	_, err = m.Step()
	assert.NoError(t, err)
	_, err = m.Step()
	assert.NoError(t, err)
	assert.Equal(t, uint16(2), s.PC)
	assert.Equal(t, 0, s.Depth)

	assert.NoError(t, m.Run(context.Background()))
	assert.Equal(t, "ab", m.output.String())
}

func TestRetOnEmptyStackHalts(t *testing.T) {
	m := newTestMachine(t, "", uint16(Ret))
	s := m.State()

	status, err := m.Step()
	assert.NoError(t, err)
	assert.Equal(t, Halted, status)
	assert.False(t, s.Running)
	assert.Equal(t, 0, s.Depth)

	status, err = m.Step()
	assert.NoError(t, err)
	assert.Equal(t, Halted, status)
}

func TestMemoryInstructions(t *testing.T) {
	m := newTestMachine(t, "",
		uint16(Wmem), 1000, 4242,
		uint16(Set), r1, 1000,
		uint16(Rmem), r0, r1,
		uint16(Rmem), r2, 0,
		uint16(Halt))
	assert.NoError(t, m.Run(context.Background()))

	s := m.State()
	assert.Equal(t, uint16(4242), s.Registers[0])
	assert.Equal(t, uint16(Wmem), s.Registers[2])
	v, err := s.Memory.Read(1000)
	assert.NoError(t, err)
	assert.Equal(t, uint16(4242), v)
}

func TestSelfModifyingCode(t *testing.T) {
	m := newTestMachine(t, "",
		uint16(Wmem), 4, uint16(Out), // 0: patch the halt below into out
		uint16(Noop), // 3
		uint16(Halt), 'x', // 4
		uint16(Halt)) // 6
	assert.NoError(t, m.Run(context.Background()))
	assert.Equal(t, "x", m.output.String())
}

func TestFaults(t *testing.T) {
	tests := []struct {
		name  string
		words []uint16
		err   error
		pc    uint16
	}{
		{name: "unknown opcode", words: []uint16{uint16(Noop), 22}, err: ErrUnknownOpcode, pc: 1},
		{name: "invalid operand", words: []uint16{uint16(Push), 32776}, err: ErrInvalidWord, pc: 0},
		{name: "literal destination", words: []uint16{uint16(Set), 5, 5}, err: ErrTypeMismatch, pc: 0},
		{name: "division by zero", words: []uint16{uint16(Mod), r0, 1, 0}, err: ErrDivisionByZero, pc: 0},
		{name: "pop empty stack", words: []uint16{uint16(Pop), r0}, err: ErrStackUnderflow, pc: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newTestMachine(t, "", tt.words...)
			m.logger = newFaultLogger()
			dump := &bytes.Buffer{}
			m.dumpOutput = dump

			err := m.Run(context.Background())
			assert.True(t, errors.Is(err, tt.err))

			var vmErr *Error
			assert.True(t, errors.As(err, &vmErr))
			assert.Equal(t, tt.pc, vmErr.PC)
			assert.Contains(t, dump.String(), "register 0:")
		})
	}
}

func TestRunOffTheEnd(t *testing.T) {
	state, err := NewState(nil)
	assert.NoError(t, err)
	for addr := range uint16(MemorySize) {
		assert.NoError(t, state.Memory.Write(addr, uint16(Noop)))
	}
	m := New(newFaultLogger(), state, Config{})

	err = m.Run(context.Background())
	assert.True(t, errors.Is(err, ErrOutOfBounds))
}

func TestInputBuffer(t *testing.T) {
	m := newTestMachine(t, "z", uint16(In), r0, uint16(In), r1, uint16(In), r2, uint16(Halt))
	s := m.State()
	s.Input = []byte("xy")
	echo := &bytes.Buffer{}
	m.echo = echo

	assert.NoError(t, m.Run(context.Background()))
	assert.Equal(t, uint16('x'), s.Registers[0])
	assert.Equal(t, uint16('y'), s.Registers[1])
	assert.Equal(t, uint16('z'), s.Registers[2])
	assert.Equal(t, "xy", echo.String())
	assert.Equal(t, 0, len(s.Input))
}

func TestEndOfInput(t *testing.T) {
	m := newTestMachine(t, "", uint16(Out), 'a', uint16(In), r0, uint16(Halt))

	err := m.Run(context.Background())
	assert.True(t, errors.Is(err, ErrEndOfInput))
	assert.Equal(t, "a", m.output.String())
	assert.Equal(t, uint16(2), m.State().PC)
}

func TestDebugCommandRetriesInput(t *testing.T) {
	m := newTestMachine(t, "/set 0 42\nq", uint16(In), r1, uint16(Halt))
	s := m.State()

	var lines []string
	m.commands = commandFunc(func(state *State, line string) error {
		lines = append(lines, line)
		fields := strings.Fields(line)
		register, _ := strconv.Atoi(fields[1])
		value, _ := strconv.Atoi(fields[2])
		return state.SetRegister(uint16(register), uint16(value))
	})

	status, err := m.Step()
	assert.NoError(t, err)
	assert.Equal(t, Retry, status)
	assert.Equal(t, uint16(0), s.PC)
	assert.Equal(t, uint16(42), s.Registers[0])
	assert.Equal(t, uint16(0), s.Registers[1])
	assert.Equal(t, 0, len(s.Input))
	assert.True(t, slices.Equal([]string{"set 0 42"}, lines))

	status, err = m.Step()
	assert.NoError(t, err)
	assert.Equal(t, Continue, status)
	assert.Equal(t, uint16('q'), s.Registers[1])
	assert.Equal(t, uint16(2), s.PC)
}

func TestDebugCommandFailureDoesNotStop(t *testing.T) {
	m := newTestMachine(t, "/bogus\nk", uint16(In), r0, uint16(Halt))
	m.commands = commandFunc(func(*State, string) error {
		return errors.New("unknown command")
	})

	assert.NoError(t, m.Run(context.Background()))
	assert.Equal(t, uint16('k'), m.State().Registers[0])
}

func TestEscapeIgnoredInScriptedInput(t *testing.T) {
	m := newTestMachine(t, "", uint16(In), r0, uint16(Halt))
	m.State().Input = []byte("/")

	assert.NoError(t, m.Run(context.Background()))
	assert.Equal(t, uint16('/'), m.State().Registers[0])
}

func TestInterceptor(t *testing.T) {
	m := newTestMachine(t, "",
		uint16(Call), 100, // 0
		uint16(Out), r0, // 2
		uint16(Halt)) // 4

	var seen []uint16
	m.SetInterceptor(func(pc uint16, state *State) (bool, error) {
		seen = append(seen, pc)
		if pc != 0 {
			return false, nil
		}
		state.Registers[0] = 6
		state.PC = pc + 2
		return true, nil
	})

	assert.NoError(t, m.Run(context.Background()))
	assert.Equal(t, "\x06", m.output.String())
	assert.True(t, slices.Equal([]uint16{0, 2, 4}, seen))
	assert.Equal(t, 0, m.State().Stack.Len())
}

func TestRunCancelled(t *testing.T) {
	m := newTestMachine(t, "", uint16(Jmp), 0)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := m.Run(ctx)
	assert.True(t, errors.Is(err, context.Canceled))
}

// cancelReader cancels the run when the machine blocks for input.
type cancelReader struct {
	cancel context.CancelFunc
}

func (r cancelReader) Read([]byte) (int, error) {
	r.cancel()
	return 0, context.Canceled
}

func TestRunCancelledWhileReadingInput(t *testing.T) {
	state, err := NewState(program(uint16(In), r0, uint16(Halt)))
	assert.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	dump := &bytes.Buffer{}
	m := New(log.NewTestLogger(t), state, Config{
		Input:      cancelReader{cancel: cancel},
		DumpOutput: dump,
	})

	err = m.Run(ctx)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Empty(t, dump.String())
	assert.Equal(t, uint16(0), state.PC)
}
