// Package disasm implements a static linear disassembler for the word machine.
package disasm

import (
	"context"
	"fmt"
	"hash/crc32"
	"io"

	"github.com/retroenv/retrogolib/log"
	"github.com/retroenv/retrogolib/set"
	"github.com/retroenv/wordvm/internal/machine"
	"github.com/retroenv/wordvm/internal/options"
	"github.com/retroenv/wordvm/internal/writer"
)

// line is a single entry of the listing, either an instruction or a data word.
type line struct {
	address     uint16
	instruction *Instruction
	data        uint16
}

// Disasm implements a disassembler.
type Disasm struct {
	logger  *log.Logger
	mem     *machine.Memory
	options options.Disassembler

	lines   []line
	starts  set.Set[uint16] // addresses that begin a listing line
	targets set.Set[uint16] // literal branch targets
}

// New creates a new disassembler for the given address space.
func New(logger *log.Logger, mem *machine.Memory, options options.Disassembler) *Disasm {
	return &Disasm{
		logger:  logger,
		mem:     mem,
		options: options,
		starts:  set.New[uint16](),
		targets: set.New[uint16](),
	}
}

// Process disassembles the address space linearly from address 0 and writes
// the listing to the writer.
func (dis *Disasm) Process(ctx context.Context, w io.Writer) error {
	end, limit := dis.listingRange()
	next, err := dis.walk(ctx, end, limit)
	if err != nil {
		return err
	}

	// without a known image size the trailing zero run is cut off, the
	// halt that starts it is part of the program
	if dis.mem.ImageWords() == 0 && !dis.options.ZeroWords && next < machine.MemorySize {
		if err := dis.addInstruction(next); err != nil {
			return err
		}
		next++
	}

	dis.logger.Debug("Disassembled address space",
		log.Int("lines", len(dis.lines)),
		log.Int("labels", dis.labelCount()),
		log.Hex("end", next))

	wr := writer.New(w, writer.Options{
		HexComments:    dis.options.HexComments,
		OffsetComments: dis.options.OffsetComments,
	})
	return dis.write(wr, next)
}

// listingRange returns the address where the listing ends and the address
// up to which the operands of an instruction starting before the end may
// extend. A loaded program image is listed completely. Restored address
// spaces are listed up to their trailing zero words.
func (dis *Disasm) listingRange() (end, limit uint16) {
	if dis.options.ZeroWords {
		return machine.MemorySize, machine.MemorySize
	}
	if words := dis.mem.ImageWords(); words > 0 {
		return uint16(words), uint16(words)
	}

	words := dis.mem.Words()
	last := len(words)
	for last > 0 && words[last-1] == 0 {
		last--
	}
	return uint16(last), machine.MemorySize
}

// walk decodes all lines starting between address 0 and end and returns the
// address following the last line.
func (dis *Disasm) walk(ctx context.Context, end, limit uint16) (uint16, error) {
	address := uint16(0)
	for address < end {
		if err := ctx.Err(); err != nil {
			return 0, fmt.Errorf("disassembling: %w", err)
		}

		dis.starts.Add(address)
		ins, err := Decode(dis.mem, address)
		if err != nil || address+ins.Size() > limit {
			word, err := dis.mem.Read(address)
			if err != nil {
				return 0, fmt.Errorf("reading data word: %w", err)
			}
			dis.lines = append(dis.lines, line{address: address, data: word})
			address++
			continue
		}

		dis.appendInstruction(ins)
		address += ins.Size()
	}
	return address, nil
}

// addInstruction decodes the instruction at the address and adds it as line.
func (dis *Disasm) addInstruction(address uint16) error {
	ins, err := Decode(dis.mem, address)
	if err != nil {
		return fmt.Errorf("decoding instruction: %w", err)
	}
	dis.starts.Add(address)
	dis.appendInstruction(ins)
	return nil
}

func (dis *Disasm) appendInstruction(ins Instruction) {
	if target, ok := ins.Target(); ok {
		dis.targets.Add(target)
	}
	dis.lines = append(dis.lines, line{address: ins.Address, instruction: &ins})
}

// hasLabel returns whether a label is emitted for the address. Targets inside
// of an instruction or outside of the listing are printed as literals.
func (dis *Disasm) hasLabel(address uint16) bool {
	return dis.targets.Contains(address) && dis.starts.Contains(address)
}

func (dis *Disasm) labelCount() int {
	count := 0
	for address := range dis.targets {
		if dis.starts.Contains(address) {
			count++
		}
	}
	return count
}

func (dis *Disasm) write(wr *writer.Writer, end uint16) error {
	checksum := crc32.ChecksumIEEE(dis.mem.Bytes()[:int(end)*2])
	if err := wr.WriteCommentHeader(checksum, int(end)); err != nil {
		return err
	}

	first := true
	var data []uint16
	var dataStart uint16

	flushData := func() error {
		if len(data) == 0 {
			return nil
		}
		err := wr.BundleDataWrites(dataStart, data)
		data = data[:0]
		return err
	}

	for _, l := range dis.lines {
		if dis.hasLabel(l.address) {
			if err := flushData(); err != nil {
				return err
			}
			if err := wr.WriteLabel(fmt.Sprintf(labelNaming, l.address), first); err != nil {
				return err
			}
		}
		first = false

		if l.instruction == nil {
			if len(data) == 0 {
				dataStart = l.address
			}
			data = append(data, l.data)
			continue
		}

		if err := flushData(); err != nil {
			return err
		}
		ins := l.instruction
		if err := wr.WriteCode(ins.format(dis.hasLabel), ins.Address, ins.Words); err != nil {
			return err
		}
	}
	return flushData()
}
