// Package detector handles input file type detection.
package detector

import (
	"fmt"
	"strings"

	"github.com/retroenv/retrogolib/log"
	"github.com/retroenv/wordvm/internal/options"
	"github.com/retroenv/wordvm/internal/snapshot"
)

// Kind is the type of a machine input file.
type Kind string

// Image is a raw program image, every other kind is a snapshot format.
const Image Kind = "image"

// SnapshotFormat returns the snapshot format of the kind, false is returned
// for program images.
func (k Kind) SnapshotFormat() (snapshot.Format, bool) {
	if k == Image {
		return "", false
	}
	return snapshot.Format(k), true
}

// KindFromString parses an explicitly given input format.
func KindFromString(s string) (Kind, error) {
	switch kind := Kind(strings.ToLower(s)); kind {
	case Image, Kind(snapshot.JSON), Kind(snapshot.TOML), Kind(snapshot.CBOR):
		return kind, nil
	default:
		return "", fmt.Errorf("unsupported input format '%s'", s)
	}
}

// Detector handles input type detection.
type Detector struct {
	logger *log.Logger
}

// New creates a new input type detector.
func New(logger *log.Logger) *Detector {
	return &Detector{
		logger: logger,
	}
}

// Detect determines the input type from options or file auto-detection.
// It first checks if a format is explicitly specified in options, otherwise
// a snapshot is detected by its file extension and everything else is
// treated as a program image.
func (d *Detector) Detect(opts options.Program) (Kind, error) {
	if opts.Format != "" {
		return KindFromString(opts.Format)
	}

	kind := Image
	if format, ok := snapshot.FormatFromPath(opts.Input); ok {
		kind = Kind(format)
	}
	d.logger.Debug("Auto-detected input format",
		log.String("format", string(kind)),
		log.String("file", opts.Input))
	return kind, nil
}
