package machine

import "fmt"

// Opcode is the numeric identifier of an instruction.
type Opcode uint16

// Instruction set.
const (
	Halt Opcode = iota
	Set
	Push
	Pop
	Eq
	Gt
	Jmp
	Jt
	Jf
	Add
	Mult
	Mod
	And
	Or
	Not
	Rmem
	Wmem
	Call
	Ret
	Out
	In
	Noop
)

// OperandKind describes how an instruction uses an operand.
type OperandKind int

const (
	// ValueOperand is a literal or the content of a register.
	ValueOperand OperandKind = iota
	// RegisterOperand must name a register, it is the destination of a write.
	RegisterOperand
)

// Info contains the static description of an opcode.
type Info struct {
	Name     string
	Operands []OperandKind
	Branch   bool // instruction may transfer control to its last operand
}

// Size returns the number of words the instruction occupies.
func (i Info) Size() uint16 {
	return uint16(1 + len(i.Operands))
}

var opcodes = [...]Info{
	Halt: {Name: "halt"},
	Set:  {Name: "set", Operands: []OperandKind{RegisterOperand, ValueOperand}},
	Push: {Name: "push", Operands: []OperandKind{ValueOperand}},
	Pop:  {Name: "pop", Operands: []OperandKind{RegisterOperand}},
	Eq:   {Name: "eq", Operands: []OperandKind{RegisterOperand, ValueOperand, ValueOperand}},
	Gt:   {Name: "gt", Operands: []OperandKind{RegisterOperand, ValueOperand, ValueOperand}},
	Jmp:  {Name: "jmp", Operands: []OperandKind{ValueOperand}, Branch: true},
	Jt:   {Name: "jt", Operands: []OperandKind{ValueOperand, ValueOperand}, Branch: true},
	Jf:   {Name: "jf", Operands: []OperandKind{ValueOperand, ValueOperand}, Branch: true},
	Add:  {Name: "add", Operands: []OperandKind{RegisterOperand, ValueOperand, ValueOperand}},
	Mult: {Name: "mult", Operands: []OperandKind{RegisterOperand, ValueOperand, ValueOperand}},
	Mod:  {Name: "mod", Operands: []OperandKind{RegisterOperand, ValueOperand, ValueOperand}},
	And:  {Name: "and", Operands: []OperandKind{RegisterOperand, ValueOperand, ValueOperand}},
	Or:   {Name: "or", Operands: []OperandKind{RegisterOperand, ValueOperand, ValueOperand}},
	Not:  {Name: "not", Operands: []OperandKind{RegisterOperand, ValueOperand}},
	Rmem: {Name: "rmem", Operands: []OperandKind{RegisterOperand, ValueOperand}},
	Wmem: {Name: "wmem", Operands: []OperandKind{ValueOperand, ValueOperand}},
	Call: {Name: "call", Operands: []OperandKind{ValueOperand}, Branch: true},
	Ret:  {Name: "ret"},
	Out:  {Name: "out", Operands: []OperandKind{ValueOperand}},
	In:   {Name: "in", Operands: []OperandKind{RegisterOperand}},
	Noop: {Name: "noop"},
}

// Lookup returns the description of an opcode word.
func Lookup(word uint16) (Info, bool) {
	if int(word) >= len(opcodes) {
		return Info{}, false
	}
	return opcodes[word], true
}

// Info returns the description of the opcode.
func (o Opcode) Info() (Info, bool) {
	return Lookup(uint16(o))
}

func (o Opcode) String() string {
	if info, ok := o.Info(); ok {
		return info.Name
	}
	return fmt.Sprintf("opcode(%d)", uint16(o))
}
