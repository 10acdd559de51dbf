// Package snapshot reads and writes machine snapshots in JSON, TOML or CBOR format.
package snapshot

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/fxamacker/cbor/v2"
	"github.com/retroenv/wordvm/internal/machine"
)

// Format is a snapshot serialization format.
type Format string

// Supported formats, named after their file extension.
const (
	JSON Format = "json"
	TOML Format = "toml"
	CBOR Format = "cbor"
)

// ErrExists is returned when saving to a path that already exists.
var ErrExists = errors.New("file already exists")

var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("snapshot: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// FormatFromPath returns the snapshot format matching the file extension.
func FormatFromPath(path string) (Format, bool) {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	switch Format(ext) {
	case JSON, TOML, CBOR:
		return Format(ext), true
	default:
		return "", false
	}
}

// Marshal serializes a snapshot.
func Marshal(snap *machine.Snapshot, format Format) ([]byte, error) {
	switch format {
	case JSON:
		return json.Marshal(snap)

	case TOML:
		buf := &bytes.Buffer{}
		if err := toml.NewEncoder(buf).Encode(snap); err != nil {
			return nil, fmt.Errorf("encoding toml: %w", err)
		}
		return buf.Bytes(), nil

	case CBOR:
		return cborEncMode.Marshal(snap)

	default:
		return nil, fmt.Errorf("unsupported snapshot format '%s'", format)
	}
}

// Unmarshal deserializes a snapshot.
func Unmarshal(data []byte, format Format) (*machine.Snapshot, error) {
	var snap machine.Snapshot
	var err error

	switch format {
	case JSON:
		err = json.Unmarshal(data, &snap)
	case TOML:
		err = toml.Unmarshal(data, &snap)
	case CBOR:
		err = cbor.Unmarshal(data, &snap)
	default:
		return nil, fmt.Errorf("unsupported snapshot format '%s'", format)
	}
	if err != nil {
		return nil, fmt.Errorf("decoding %s snapshot: %w", format, err)
	}
	return &snap, nil
}

// Load reads a snapshot file, the format is derived from the file extension.
func Load(path string) (*machine.Snapshot, error) {
	format, ok := FormatFromPath(path)
	if !ok {
		return nil, fmt.Errorf("unknown snapshot format of file '%s'", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading file '%s': %w", path, err)
	}
	return Unmarshal(data, format)
}

// Save writes a snapshot file. The format is derived from the file
// extension, JSON is used for unknown extensions. Existing files are never
// overwritten.
func Save(path string, snap *machine.Snapshot) error {
	format, ok := FormatFromPath(path)
	if !ok {
		format = JSON
	}
	data, err := Marshal(snap, format)
	if err != nil {
		return fmt.Errorf("encoding snapshot: %w", err)
	}
	return WriteNew(path, data)
}

// WriteNew creates a file with the given content, failing with ErrExists if
// the file already exists.
func WriteNew(path string, data []byte) error {
	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return fmt.Errorf("%w: %s", ErrExists, path)
		}
		return fmt.Errorf("creating file '%s': %w", path, err)
	}
	if _, err := file.Write(data); err != nil {
		_ = file.Close()
		return fmt.Errorf("writing file '%s': %w", path, err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("closing file '%s': %w", path, err)
	}
	return nil
}
