// Package loader handles program image and snapshot loading operations.
package loader

import (
	"fmt"
	"os"

	"github.com/retroenv/wordvm/internal/detector"
	"github.com/retroenv/wordvm/internal/machine"
	"github.com/retroenv/wordvm/internal/options"
	"github.com/retroenv/wordvm/internal/snapshot"
)

// Loader handles loading machine input files from disk.
type Loader struct{}

// New creates a new loader.
func New() *Loader {
	return &Loader{}
}

// Load loads a program image or snapshot based on the detected kind and
// applies the scripted input file if one is given. The scripted input
// replaces any pending input of a snapshot.
func (l *Loader) Load(opts options.Program, kind detector.Kind) (*machine.State, error) {
	data, err := os.ReadFile(opts.Input)
	if err != nil {
		return nil, fmt.Errorf("reading file %s: %w", opts.Input, err)
	}

	state, err := l.LoadFromBytes(data, kind)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", opts.Input, err)
	}

	if opts.Script != "" {
		script, err := os.ReadFile(opts.Script)
		if err != nil {
			return nil, fmt.Errorf("reading script file %s: %w", opts.Script, err)
		}
		state.Input = script
	}

	return state, nil
}

// LoadFromBytes creates a machine state from in memory file content.
func (l *Loader) LoadFromBytes(data []byte, kind detector.Kind) (*machine.State, error) {
	format, isSnapshot := kind.SnapshotFormat()
	if !isSnapshot {
		state, err := machine.NewState(data)
		if err != nil {
			return nil, fmt.Errorf("creating state: %w", err)
		}
		return state, nil
	}

	snap, err := snapshot.Unmarshal(data, format)
	if err != nil {
		return nil, fmt.Errorf("decoding snapshot: %w", err)
	}
	state, err := machine.FromSnapshot(snap)
	if err != nil {
		return nil, fmt.Errorf("restoring snapshot: %w", err)
	}
	return state, nil
}
