package machine

import (
	"errors"
	"fmt"
)

// Fault kinds. All of them are fatal for the running program.
var (
	ErrOutOfBounds    = errors.New("address out of bounds")
	ErrInvalidWord    = errors.New("invalid word")
	ErrTypeMismatch   = errors.New("operand is not a register")
	ErrStackUnderflow = errors.New("stack underflow")
	ErrUnknownOpcode  = errors.New("unknown opcode")
	ErrDivisionByZero = errors.New("division by zero")
	ErrImageTooLarge  = errors.New("image exceeds address space")
)

// ErrEndOfInput is returned when the interactive input stream is closed
// while the program waits for input.
var ErrEndOfInput = errors.New("end of interactive input")

// Error describes a machine fault and the context it happened in.
type Error struct {
	Err   error  // one of the fault kinds
	PC    uint16 // address of the instruction that faulted
	Addr  uint16 // address being accessed or decoded
	Value uint32 // offending word or value
}

func (e *Error) Error() string {
	switch {
	case errors.Is(e.Err, ErrOutOfBounds):
		return fmt.Sprintf("%s: address %d at pc %d", e.Err, e.Addr, e.PC)
	case errors.Is(e.Err, ErrImageTooLarge):
		return fmt.Sprintf("%s: %d bytes", e.Err, e.Value)
	case errors.Is(e.Err, ErrStackUnderflow), errors.Is(e.Err, ErrDivisionByZero):
		return fmt.Sprintf("%s at pc %d", e.Err, e.PC)
	default:
		return fmt.Sprintf("%s %d at address %d, pc %d", e.Err, e.Value, e.Addr, e.PC)
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// withPC sets the program counter of a machine fault.
func withPC(err error, pc uint16) error {
	var e *Error
	if errors.As(err, &e) {
		e.PC = pc
	}
	return err
}
