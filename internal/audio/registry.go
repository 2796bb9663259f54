package audio

import (
	"bytes"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/spf13/afero"
)

// DecoderRegistry maps file types to decoders and loads waves from files or
// memory
type DecoderRegistry struct {
	mu       sync.RWMutex
	decoders []Decoder
	fs       afero.Fs
}

// NewDecoderRegistry creates a new empty decoder registry reading from the OS filesystem
func NewDecoderRegistry() *DecoderRegistry {
	return NewDecoderRegistryWithFilesystem(afero.NewOsFs())
}

// NewDecoderRegistryWithFilesystem creates an empty registry reading through fs
func NewDecoderRegistryWithFilesystem(fs afero.Fs) *DecoderRegistry {
	slog.Debug("creating new decoder registry")
	return &DecoderRegistry{
		decoders: make([]Decoder, 0),
		fs:       fs,
	}
}

// NewDefaultRegistry creates a registry with every built-in decoder
func NewDefaultRegistry() *DecoderRegistry {
	return NewDefaultRegistryWithFilesystem(afero.NewOsFs())
}

// NewDefaultRegistryWithFilesystem creates a registry with every built-in
// decoder, reading files through fs
func NewDefaultRegistryWithFilesystem(fs afero.Fs) *DecoderRegistry {
	registry := NewDecoderRegistryWithFilesystem(fs)

	registry.Register(NewWavDecoder())
	registry.Register(NewOggDecoder())
	registry.Register(NewMp3Decoder())
	registry.Register(NewFlacDecoder())
	registry.Register(NewAiffDecoder())

	slog.Debug("default decoder registry initialized",
		"supported_formats", registry.GetSupportedFormats())

	return registry
}

// Register adds a decoder. A later decoder for the same FileType replaces the
// earlier one.
func (r *DecoderRegistry) Register(decoder Decoder) {
	if decoder == nil {
		slog.Warn("attempted to register nil decoder")
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for i, existing := range r.decoders {
		if existing.FileType() == decoder.FileType() {
			slog.Debug("replacing decoder", "format", decoder.FormatName())
			r.decoders[i] = decoder
			return
		}
	}
	r.decoders = append(r.decoders, decoder)

	slog.Debug("decoder registered",
		"format", decoder.FormatName(),
		"total_decoders", len(r.decoders))
}

// GetDecoders returns all registered decoders
func (r *DecoderRegistry) GetDecoders() []Decoder {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]Decoder(nil), r.decoders...)
}

// GetSupportedFormats returns a list of all supported format names
func (r *DecoderRegistry) GetSupportedFormats() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	formats := make([]string, 0, len(r.decoders))
	for _, decoder := range r.decoders {
		formats = append(formats, decoder.FormatName())
	}
	return formats
}

// DecoderFor returns the decoder registered for t, or nil
func (r *DecoderRegistry) DecoderFor(t FileType) Decoder {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, decoder := range r.decoders {
		if decoder.FileType() == t {
			return decoder
		}
	}
	return nil
}

// DetectFormat detects the appropriate decoder based on filename extension only
func (r *DecoderRegistry) DetectFormat(filename string) Decoder {
	slog.Debug("detecting format by extension", "filename", filename)

	if filename == "" {
		return nil
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, decoder := range r.decoders {
		if decoder.CanDecode(filename) {
			slog.Debug("format detected by extension",
				"filename", filename,
				"format", decoder.FormatName())
			return decoder
		}
	}

	slog.Debug("no decoder found for filename", "filename", filename)
	return nil
}

// resolve picks the decoder for a type tag, falling back to the content
// signature when the tag is not recognized
func (r *DecoderRegistry) resolve(tag string, data []byte) (Decoder, error) {
	fileType := ParseFileType(tag)
	if fileType == FileTypeUnknown {
		slog.Debug("type tag not recognized, sniffing content", "tag", tag)
		fileType = DetectFileType(data)
	}

	if fileType == FileTypeUnknown {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, tag)
	}

	decoder := r.DecoderFor(fileType)
	if decoder == nil {
		return nil, fmt.Errorf("%w: no decoder registered for %s", ErrUnsupportedFormat, fileType)
	}
	return decoder, nil
}

// LoadWave reads the file at path and decodes it by its extension.
func (r *DecoderRegistry) LoadWave(path string) (*Wave, error) {
	path = TruncateAtNUL(path)
	slog.Debug("loading wave from file", "path", path)

	data, err := afero.ReadFile(r.fs, path)
	if err != nil {
		slog.Error("failed to read audio file", "path", path, "error", err)
		return nil, fmt.Errorf("%w: %s: %w", ErrIO, path, err)
	}
	if len(data) == 0 {
		slog.Error("audio file is empty", "path", path)
		return nil, fmt.Errorf("%w: %s: file is empty", ErrCorruptData, path)
	}

	slog.Debug("buffered file content for decode", "path", path, "size_bytes", len(data))

	wave, err := r.LoadWaveFromMemory(extensionOf(path), data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return wave, nil
}

// LoadWaveFromMemory decodes data using the decoder named by fileType, which
// may be given as ".wav", "wav" or "WAV".
func (r *DecoderRegistry) LoadWaveFromMemory(fileType string, data []byte) (*Wave, error) {
	fileType = TruncateAtNUL(fileType)

	if len(data) == 0 {
		slog.Error("no data to decode", "file_type", fileType)
		return nil, fmt.Errorf("%w: empty input", ErrCorruptData)
	}

	decoder, err := r.resolve(fileType, data)
	if err != nil {
		slog.Error("no suitable decoder found", "file_type", fileType, "error", err)
		return nil, err
	}

	slog.Debug("decoder selected",
		"file_type", fileType,
		"decoder_format", decoder.FormatName())

	wave, err := decoder.Decode(bytes.NewReader(data))
	if err != nil {
		slog.Error("decode operation failed",
			"decoder_format", decoder.FormatName(),
			"error", err)
		return nil, err
	}

	if err := wave.Validate(); err != nil {
		slog.Error("decoder produced an inconsistent wave",
			"decoder_format", decoder.FormatName(),
			"error", err)
		return nil, err
	}

	return wave, nil
}

// extensionOf returns everything after the last dot of the base name, or ""
func extensionOf(path string) string {
	base := path
	if i := strings.LastIndexAny(base, `/\`); i >= 0 {
		base = base[i+1:]
	}
	if i := strings.LastIndexByte(base, '.'); i >= 0 {
		return base[i:]
	}
	return ""
}

// TruncateAtNUL cuts s at its first NUL byte, the way a C string would end.
func TruncateAtNUL(s string) string {
	if i := strings.IndexByte(s, 0); i >= 0 {
		return s[:i]
	}
	return s
}
