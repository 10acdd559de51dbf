// Package writer implements the assembly listing output of the disassembler.
package writer

import (
	"fmt"
	"io"
	"strings"
)

const dataWordsPerLine = 8

// Options of the writer.
type Options struct {
	HexComments    bool // output instruction words as hex values in comments
	OffsetComments bool // output the address of every line in comments
}

// Writer writes assembly listing lines.
type Writer struct {
	options Options
	writer  io.Writer
}

// New creates a new writer.
func New(writer io.Writer, options Options) *Writer {
	return &Writer{
		options: options,
		writer:  writer,
	}
}

// WriteCommentHeader writes the header comments describing the disassembled image.
func (w Writer) WriteCommentHeader(checksum uint32, words int) error {
	if _, err := fmt.Fprintf(w.writer, "; CRC32 checksum: %08x\n", checksum); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	if _, err := fmt.Fprintf(w.writer, "; Words: %d\n\n", words); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	return nil
}

// WriteLabel writes a label line, preceded by an empty line unless the
// label is the first line of the output.
func (w Writer) WriteLabel(label string, first bool) error {
	if !first {
		if _, err := fmt.Fprintln(w.writer); err != nil {
			return fmt.Errorf("writing line: %w", err)
		}
	}
	if _, err := fmt.Fprintf(w.writer, "%s:\n", label); err != nil {
		return fmt.Errorf("writing label: %w", err)
	}
	return nil
}

// WriteCode writes an instruction line.
func (w Writer) WriteCode(code string, address uint16, words []uint16) error {
	return w.writeLine("  "+code, w.comment(address, words))
}

// BundleDataWrites writes data words, dataWordsPerLine words per line.
func (w Writer) BundleDataWrites(address uint16, data []uint16) error {
	remaining := len(data)
	for i := 0; remaining > 0; {
		toWrite := min(remaining, dataWordsPerLine)

		buf := &strings.Builder{}
		buf.WriteString(".word ")
		for j := range toWrite {
			if j > 0 {
				buf.WriteString(", ")
			}
			fmt.Fprintf(buf, "$%04x", data[i+j])
		}

		// data words are already visible, only the address is added as comment
		var comment string
		if w.options.OffsetComments {
			comment = fmt.Sprintf("$%04X", address+uint16(i))
		}
		if err := w.writeLine(buf.String(), comment); err != nil {
			return fmt.Errorf("writing data line: %w", err)
		}

		i += toWrite
		remaining -= toWrite
	}
	return nil
}

func (w Writer) comment(address uint16, words []uint16) string {
	var parts []string
	if w.options.OffsetComments {
		parts = append(parts, fmt.Sprintf("$%04X", address))
	}
	if w.options.HexComments {
		for _, word := range words {
			parts = append(parts, fmt.Sprintf("%04X", word))
		}
	}
	return strings.Join(parts, " ")
}

func (w Writer) writeLine(line, comment string) error {
	var err error
	if comment == "" {
		_, err = fmt.Fprintf(w.writer, "%s\n", line)
	} else {
		_, err = fmt.Fprintf(w.writer, "%-32s ; %s\n", line, comment)
	}
	if err != nil {
		return fmt.Errorf("writing line: %w", err)
	}
	return nil
}
