package disasm

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/retroenv/wordvm/internal/machine"
)

const labelNaming = "label_%04x"

// Instruction is a decoded instruction of the address space.
type Instruction struct {
	Address  uint16
	Opcode   machine.Opcode
	Info     machine.Info
	Words    []uint16 // opcode word followed by the raw operand words
	Operands []machine.Operand
}

// Decode decodes the instruction at the given address without modifying any state.
// Words that do not form a valid instruction return a machine fault error.
func Decode(mem *machine.Memory, address uint16) (Instruction, error) {
	word, err := mem.Read(address)
	if err != nil {
		return Instruction{}, err
	}
	info, ok := machine.Lookup(word)
	if !ok {
		return Instruction{}, &machine.Error{Err: machine.ErrUnknownOpcode, Addr: address, Value: uint32(word)}
	}

	ins := Instruction{
		Address:  address,
		Opcode:   machine.Opcode(word),
		Info:     info,
		Words:    make([]uint16, 0, info.Size()),
		Operands: make([]machine.Operand, 0, len(info.Operands)),
	}
	ins.Words = append(ins.Words, word)

	for i, kind := range info.Operands {
		addr := address + 1 + uint16(i)
		raw, err := mem.Read(addr)
		if err != nil {
			return Instruction{}, err
		}
		op, err := machine.Classify(raw)
		if err != nil {
			return Instruction{}, &machine.Error{Err: machine.ErrInvalidWord, Addr: addr, Value: uint32(raw)}
		}
		if kind == machine.RegisterOperand && !op.Register {
			return Instruction{}, &machine.Error{Err: machine.ErrTypeMismatch, Addr: addr, Value: uint32(raw)}
		}

		ins.Words = append(ins.Words, raw)
		ins.Operands = append(ins.Operands, op)
	}
	return ins, nil
}

// Size returns the number of words the instruction occupies.
func (i Instruction) Size() uint16 {
	return i.Info.Size()
}

// Target returns the literal control flow target of a branching instruction.
func (i Instruction) Target() (uint16, bool) {
	if !i.Info.Branch || len(i.Operands) == 0 {
		return 0, false
	}
	op := i.Operands[len(i.Operands)-1]
	if op.Register {
		return 0, false
	}
	return op.Value, true
}

func (i Instruction) String() string {
	return i.format(nil)
}

// format returns the assembly representation of the instruction. Literal
// branch targets are printed as labels if the label function accepts them.
func (i Instruction) format(hasLabel func(uint16) bool) string {
	if len(i.Operands) == 0 {
		return i.Info.Name
	}

	params := make([]string, len(i.Operands))
	for j, op := range i.Operands {
		params[j] = op.String()
	}

	switch target, ok := i.Target(); {
	case ok && hasLabel != nil && hasLabel(target):
		params[len(params)-1] = fmt.Sprintf(labelNaming, target)

	case i.Opcode == machine.Out && !i.Operands[0].Register && isPrintable(i.Operands[0].Value):
		params[0] = strconv.QuoteRuneToASCII(rune(i.Operands[0].Value))
	}

	return i.Info.Name + " " + strings.Join(params, ", ")
}

func isPrintable(value uint16) bool {
	return value == '\n' || (value >= ' ' && value <= '~')
}
