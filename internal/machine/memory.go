package machine

import "encoding/binary"

const (
	// MemorySize is the number of words in the address space.
	MemorySize = 32768

	// ImageSize is the size in bytes of a full address space image.
	ImageSize = MemorySize * 2

	// MaxValue is the largest value a word may hold as data.
	MaxValue = 32767

	// RegisterBase is the raw operand value that refers to register 0.
	RegisterBase = 32768

	// RegisterCount is the number of general purpose registers.
	RegisterCount = 8

	// modulus for all arithmetic results.
	modulus = MaxValue + 1
)

// Memory is the word addressed store backing the loaded program and all data.
// Words are kept packed as little endian byte pairs, the same layout as
// program images on disk.
type Memory struct {
	data       [ImageSize]byte
	imageWords int // words covered by the last loaded program image
}

// Load copies a program image into memory starting at address 0.
func (m *Memory) Load(image []byte) error {
	if len(image) > ImageSize {
		return &Error{Err: ErrImageTooLarge, Value: uint32(len(image))}
	}
	copy(m.data[:], image)
	clear(m.data[len(image):])
	m.imageWords = (len(image) + 1) / 2
	return nil
}

// ImageWords returns the number of words covered by the loaded program image.
// It is 0 if the content was restored from words instead of an image.
func (m *Memory) ImageWords() int {
	return m.imageWords
}

// Read returns the word stored at the given word address.
func (m *Memory) Read(addr uint16) (uint16, error) {
	if addr >= MemorySize {
		return 0, &Error{Err: ErrOutOfBounds, Addr: addr}
	}
	ptr := int(addr) * 2
	low := uint16(m.data[ptr])
	high := uint16(m.data[ptr+1])
	return high<<8 + low, nil
}

// Write stores a word at the given word address.
func (m *Memory) Write(addr, value uint16) error {
	if addr >= MemorySize {
		return &Error{Err: ErrOutOfBounds, Addr: addr, Value: uint32(value)}
	}
	ptr := int(addr) * 2
	m.data[ptr] = byte(value % 256)
	m.data[ptr+1] = byte(value >> 8)
	return nil
}

// Bytes returns a copy of the packed address space image.
func (m *Memory) Bytes() []byte {
	image := make([]byte, ImageSize)
	copy(image, m.data[:])
	return image
}

// Words returns the address space as a slice of words.
func (m *Memory) Words() []uint16 {
	words := make([]uint16, MemorySize)
	for i := range words {
		words[i] = binary.LittleEndian.Uint16(m.data[i*2:])
	}
	return words
}

// SetWords replaces the address space content with the given words,
// zero filling the remainder.
func (m *Memory) SetWords(words []uint16) error {
	if len(words) > MemorySize {
		return &Error{Err: ErrImageTooLarge, Value: uint32(len(words) * 2)}
	}
	clear(m.data[:])
	m.imageWords = 0
	for i, w := range words {
		binary.LittleEndian.PutUint16(m.data[i*2:], w)
	}
	return nil
}
