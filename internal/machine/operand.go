package machine

import "fmt"

// Operand is a classified raw operand word.
type Operand struct {
	Register bool   // true if the operand refers to a register
	Value    uint16 // literal value or register index
}

func (o Operand) String() string {
	if o.Register {
		return fmt.Sprintf("r%d", o.Value)
	}
	return fmt.Sprintf("$%04x", o.Value)
}

// Classify decodes a raw operand word into a literal or a register reference.
func Classify(raw uint16) (Operand, error) {
	switch {
	case raw < RegisterBase:
		return Operand{Value: raw}, nil
	case raw < RegisterBase+RegisterCount:
		return Operand{Register: true, Value: raw - RegisterBase}, nil
	default:
		return Operand{}, &Error{Err: ErrInvalidWord, Value: uint32(raw)}
	}
}

// classifyAt reads and classifies the operand word at the given address.
func (s *State) classifyAt(addr uint16) (Operand, uint16, error) {
	raw, err := s.Memory.Read(addr)
	if err != nil {
		return Operand{}, 0, err
	}
	op, err := Classify(raw)
	if err != nil {
		return Operand{}, raw, &Error{Err: ErrInvalidWord, Addr: addr, Value: uint32(raw)}
	}
	return op, raw, nil
}

// ResolveRegister returns the register index referenced by the operand at
// the given address. Literal operands fail with ErrTypeMismatch.
func (s *State) ResolveRegister(addr uint16) (uint16, error) {
	op, raw, err := s.classifyAt(addr)
	if err != nil {
		return 0, err
	}
	if !op.Register {
		return 0, &Error{Err: ErrTypeMismatch, Addr: addr, Value: uint32(raw)}
	}
	return op.Value, nil
}

// ResolveValue returns the value of the operand at the given address, which
// is either the literal itself or the current content of the referenced register.
func (s *State) ResolveValue(addr uint16) (uint16, error) {
	op, _, err := s.classifyAt(addr)
	if err != nil {
		return 0, err
	}
	if op.Register {
		return s.Registers[op.Value], nil
	}
	return op.Value, nil
}
