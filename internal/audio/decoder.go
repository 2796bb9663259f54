package audio

import (
	"errors"
	"io"
)

// Decoder errors
var (
	ErrIO                = errors.New("audio file could not be read")
	ErrUnsupportedFormat = errors.New("unsupported audio format")
	ErrCorruptData       = errors.New("corrupt audio data")
	ErrInvalidWaveFormat = errors.New("invalid wave format")
)

// Decoder turns one container format into a Wave
type Decoder interface {
	// Decode reads a complete encoded file from reader
	Decode(reader io.Reader) (*Wave, error)

	// CanDecode checks if this decoder can handle the given filename
	CanDecode(filename string) bool

	// FormatName returns the name of the format this decoder handles
	FormatName() string

	// FileType returns the dispatch tag this decoder is registered under
	FileType() FileType
}
