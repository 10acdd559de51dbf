package machine

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/retroenv/retrogolib/log"
)

// readInputByte returns the next input byte. Scripted input is consumed
// first, then a byte is read from the interactive stream. If the
// interactive byte is the escape character the rest of the line is handed
// to the debug command handler and false is returned, signaling that no
// byte was consumed.
func (m *Machine) readInputByte() (byte, bool, error) {
	s := m.state
	if len(s.Input) > 0 {
		b := s.Input[0]
		s.Input = s.Input[1:]
		if m.echo != nil {
			// echo and output usually share the terminal
			if err := m.out.Flush(); err != nil {
				return 0, false, fmt.Errorf("flushing output: %w", err)
			}
			if _, err := m.echo.Write([]byte{b}); err != nil {
				return 0, false, fmt.Errorf("echoing input: %w", err)
			}
		}
		return b, true, nil
	}

	if m.in == nil {
		return 0, false, ErrEndOfInput
	}
	// output written so far has to be visible before blocking for input
	if err := m.out.Flush(); err != nil {
		return 0, false, fmt.Errorf("flushing output: %w", err)
	}

	b, err := m.in.ReadByte()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return 0, false, ErrEndOfInput
		}
		return 0, false, fmt.Errorf("reading input: %w", err)
	}
	if m.escape == 0 || b != m.escape {
		return b, true, nil
	}

	line, err := m.in.ReadString('\n')
	if err != nil && (!errors.Is(err, io.EOF) || line == "") {
		if errors.Is(err, io.EOF) {
			return 0, false, ErrEndOfInput
		}
		return 0, false, fmt.Errorf("reading command: %w", err)
	}
	m.runCommand(strings.TrimSpace(line))
	return 0, false, nil
}

// runCommand executes a debug command. Failing commands are reported but
// never affect the execution of the program.
func (m *Machine) runCommand(line string) {
	if m.commands == nil {
		m.logger.Warn("Debug commands are not available", log.String("command", line))
		return
	}
	if err := m.commands.HandleCommand(m.state, line); err != nil {
		m.logger.Warn("Debug command failed", log.String("command", line), log.Err(err))
	}
}
