package machine

import (
	"fmt"
	"io"
)

// State is the complete, persistable state of a machine session.
type State struct {
	Memory    Memory
	Registers [RegisterCount]uint16
	PC        uint16
	Stack     Stack
	Running   bool
	Depth     int    // call depth, diagnostic only
	Input     []byte // pending scripted input, consumed before interactive input
}

// NewState returns a running state with the program image loaded at address 0.
func NewState(image []byte) (*State, error) {
	s := &State{Running: true}
	if err := s.Memory.Load(image); err != nil {
		return nil, fmt.Errorf("loading image: %w", err)
	}
	return s, nil
}

// SetRegister overwrites a register.
func (s *State) SetRegister(register, value uint16) error {
	if register >= RegisterCount {
		return &Error{Err: ErrInvalidWord, Value: uint32(register) + RegisterBase}
	}
	if value > MaxValue {
		return &Error{Err: ErrInvalidWord, Value: uint32(value)}
	}
	s.Registers[register] = value
	return nil
}

// Dump writes a human readable description of the state.
func (s *State) Dump(w io.Writer) error {
	if _, err := fmt.Fprintf(w, "address space: %d words\n", MemorySize); err != nil {
		return fmt.Errorf("writing dump: %w", err)
	}
	for i, v := range s.Registers {
		if _, err := fmt.Fprintf(w, "register %d: %d\n", i, v); err != nil {
			return fmt.Errorf("writing dump: %w", err)
		}
	}
	for i, v := range s.Stack {
		if _, err := fmt.Fprintf(w, "stack %d: %d\n", i, v); err != nil {
			return fmt.Errorf("writing dump: %w", err)
		}
	}
	if _, err := fmt.Fprintf(w, "running=%t, pc=%d, depth=%d, pending input=%d\n",
		s.Running, s.PC, s.Depth, len(s.Input)); err != nil {
		return fmt.Errorf("writing dump: %w", err)
	}
	return nil
}
