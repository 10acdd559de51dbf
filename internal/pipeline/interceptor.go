package pipeline

import (
	"strings"

	"github.com/retroenv/retrogolib/log"
	"github.com/retroenv/wordvm/internal/disasm"
	"github.com/retroenv/wordvm/internal/machine"
	"github.com/retroenv/wordvm/internal/options"
)

// interceptor returns the pre-dispatch hook for the enabled run options,
// nil if no hook is needed.
func (p *Pipeline) interceptor(opts options.Program) machine.Interceptor {
	var chain []machine.Interceptor
	if opts.Trace {
		chain = append(chain, p.traceInterceptor())
	}
	if len(opts.Stubs) > 0 {
		chain = append(chain, p.stubInterceptor(opts.Stubs))
	}

	switch len(chain) {
	case 0:
		return nil
	case 1:
		return chain[0]
	default:
		return chainInterceptors(chain)
	}
}

// chainInterceptors calls every interceptor in order until one handles the
// instruction.
func chainInterceptors(chain []machine.Interceptor) machine.Interceptor {
	return func(pc uint16, state *machine.State) (bool, error) {
		for _, interceptor := range chain {
			handled, err := interceptor(pc, state)
			if err != nil || handled {
				return handled, err
			}
		}
		return false, nil
	}
}

// traceInterceptor logs every instruction before it executes, indented by
// the call depth. Undecodable words are left to the machine to report.
func (p *Pipeline) traceInterceptor() machine.Interceptor {
	return func(pc uint16, state *machine.State) (bool, error) {
		ins, err := disasm.Decode(&state.Memory, pc)
		if err != nil {
			return false, nil //nolint:nilerr // decode errors are faults of the machine step
		}

		p.logger.Debug("Trace",
			log.Hex("pc", pc),
			log.Int("depth", state.Depth),
			log.String("instruction", strings.Repeat("  ", state.Depth)+ins.String()))
		return false, nil
	}
}

// stubInterceptor answers calls to the stubbed addresses by setting register
// 0 to the configured value and continuing after the call instruction.
func (p *Pipeline) stubInterceptor(stubs map[uint16]uint16) machine.Interceptor {
	return func(pc uint16, state *machine.State) (bool, error) {
		word, err := state.Memory.Read(pc)
		if err != nil || machine.Opcode(word) != machine.Call {
			return false, nil //nolint:nilerr // read errors are faults of the machine step
		}

		target, err := state.ResolveValue(pc + 1)
		if err != nil {
			return false, nil //nolint:nilerr // operand errors are faults of the machine step
		}
		value, ok := stubs[target]
		if !ok {
			return false, nil
		}

		p.logger.Debug("Stubbed call",
			log.Hex("pc", pc),
			log.Hex("target", target),
			log.Uint16("result", value))
		state.Registers[0] = value
		state.PC = pc + 2
		return true, nil
	}
}
