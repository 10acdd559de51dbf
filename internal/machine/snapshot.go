package machine

import "fmt"

// Snapshot is the serializable form of a State.
type Snapshot struct {
	Memory    []uint16 `json:"memory" toml:"memory" cbor:"memory"`
	Registers []uint16 `json:"registers" toml:"registers" cbor:"registers"`
	PC        uint16   `json:"pc" toml:"pc" cbor:"pc"`
	Stack     []uint16 `json:"stack" toml:"stack" cbor:"stack"`
	Running   bool     `json:"running" toml:"running" cbor:"running"`
	Depth     int      `json:"depth" toml:"depth" cbor:"depth"`
	Input     []byte   `json:"input" toml:"input" cbor:"input"`
}

// Snapshot returns a copy of the state in serializable form.
func (s *State) Snapshot() *Snapshot {
	return &Snapshot{
		Memory:    s.Memory.Words(),
		Registers: append([]uint16(nil), s.Registers[:]...),
		PC:        s.PC,
		Stack:     s.Stack.Values(),
		Running:   s.Running,
		Depth:     s.Depth,
		Input:     append([]byte(nil), s.Input...),
	}
}

// FromSnapshot reconstructs a state from its serializable form.
func FromSnapshot(snap *Snapshot) (*State, error) {
	if len(snap.Registers) != RegisterCount {
		return nil, fmt.Errorf("snapshot has %d registers, expected %d", len(snap.Registers), RegisterCount)
	}
	if snap.PC >= MemorySize {
		return nil, fmt.Errorf("snapshot program counter: %w",
			&Error{Err: ErrOutOfBounds, Addr: snap.PC, PC: snap.PC})
	}
	if snap.Depth < 0 {
		return nil, fmt.Errorf("snapshot has negative call depth %d", snap.Depth)
	}

	s := &State{
		PC:      snap.PC,
		Stack:   Stack(append([]uint16(nil), snap.Stack...)),
		Running: snap.Running,
		Depth:   snap.Depth,
		Input:   append([]byte(nil), snap.Input...),
	}
	// registers can hold any word read by rmem, values are restored verbatim
	copy(s.Registers[:], snap.Registers)
	if err := s.Memory.SetWords(snap.Memory); err != nil {
		return nil, fmt.Errorf("snapshot memory: %w", err)
	}
	return s, nil
}
