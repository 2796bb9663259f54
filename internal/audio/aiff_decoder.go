package audio

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"log/slog"
	"math"
	"strings"

	"github.com/go-audio/aiff"
	goaudio "github.com/go-audio/audio"
)

// AiffDecoder handles AIFF audio format decoding
type AiffDecoder struct{}

// NewAiffDecoder creates a new AIFF decoder instance
func NewAiffDecoder() *AiffDecoder {
	slog.Debug("creating new AIFF decoder instance")
	return &AiffDecoder{}
}

// FormatName returns the name of the format this decoder handles
func (d *AiffDecoder) FormatName() string {
	return "AIFF"
}

// FileType returns FileTypeAIFF
func (d *AiffDecoder) FileType() FileType {
	return FileTypeAIFF
}

// CanDecode checks if this decoder can handle the given filename
func (d *AiffDecoder) CanDecode(filename string) bool {
	lower := strings.ToLower(filename)
	canDecode := strings.HasSuffix(lower, ".aiff") || strings.HasSuffix(lower, ".aif")

	slog.Debug("AIFF decoder file check",
		"filename", filename,
		"can_decode", canDecode)

	return canDecode
}

// Decode reads AIFF audio data. Big-endian samples are rewritten in the Wave
// encodings: 8-bit becomes unsigned, 16-bit stays signed, 32-bit becomes float.
func (d *AiffDecoder) Decode(reader io.Reader) (*Wave, error) {
	slog.Debug("starting AIFF decode operation")

	// go-audio/aiff needs a ReadSeeker
	data, err := io.ReadAll(reader)
	if err != nil {
		slog.Error("failed to read AIFF data", "error", err)
		return nil, fmt.Errorf("%w: %w", ErrIO, err)
	}

	if len(data) == 0 {
		slog.Error("empty AIFF data")
		return nil, fmt.Errorf("%w: empty AIFF data", ErrCorruptData)
	}

	decoder := aiff.NewDecoder(bytes.NewReader(data))
	decoder.ReadInfo()

	if !decoder.IsValidFile() {
		slog.Error("invalid AIFF file format")
		return nil, fmt.Errorf("%w: not a valid AIFF file", ErrCorruptData)
	}

	sampleRate := uint32(decoder.SampleRate)
	channels := int32(decoder.NumChans)
	bitDepth := uint32(decoder.SampleBitDepth())

	slog.Debug("AIFF format detected",
		"sample_rate", sampleRate,
		"channels", channels,
		"bits_per_sample", bitDepth)

	if channels == 0 || sampleRate == 0 || bitDepth == 0 {
		slog.Error("invalid AIFF format parameters",
			"channels", channels,
			"sample_rate", sampleRate,
			"bit_depth", bitDepth)
		return nil, fmt.Errorf("%w: %d channels at %d Hz, %d bits", ErrCorruptData, channels, sampleRate, bitDepth)
	}

	if !validSampleSize(bitDepth) {
		slog.Error("unsupported bit depth", "bits", bitDepth)
		return nil, fmt.Errorf("%w: %d-bit AIFF samples", ErrInvalidWaveFormat, bitDepth)
	}

	pcmBuffer, err := decoder.FullPCMBuffer()
	if err != nil {
		slog.Error("failed to read AIFF samples", "error", err)
		return nil, fmt.Errorf("%w: %w", ErrCorruptData, err)
	}

	if pcmBuffer == nil || len(pcmBuffer.Data) < int(channels) {
		slog.Error("no audio data found in AIFF file")
		return nil, fmt.Errorf("%w: no audio data", ErrCorruptData)
	}

	raw := d.encodeSamples(pcmBuffer, bitDepth, int(channels))

	wave := &Wave{
		FrameCount: uint32(len(raw) / (int(channels) * int(bitDepth/8))),
		SampleRate: sampleRate,
		SampleSize: bitDepth,
		Channels:   channels,
		Data:       raw,
	}

	slog.Info("AIFF decode completed successfully",
		"total_bytes", len(raw),
		"frames", wave.FrameCount,
		"channels", wave.Channels,
		"sample_rate", wave.SampleRate,
		"duration_estimate_ms", wave.Duration().Milliseconds())

	return wave, nil
}

// encodeSamples packs whole frames of the integer buffer as little-endian
// Wave samples
func (d *AiffDecoder) encodeSamples(pcmBuffer *goaudio.IntBuffer, bitDepth uint32, channels int) []byte {
	samples := pcmBuffer.Data[:len(pcmBuffer.Data)-len(pcmBuffer.Data)%channels]
	bytesPerSample := int(bitDepth / 8)
	raw := make([]byte, len(samples)*bytesPerSample)

	for i, sample := range samples {
		offset := i * bytesPerSample
		switch bitDepth {
		case 8:
			raw[offset] = byte(int8(sample)) + 128
		case 16:
			binary.LittleEndian.PutUint16(raw[offset:], uint16(int16(sample)))
		case 32:
			f := float32(float64(int32(sample)) / 2147483648.0)
			binary.LittleEndian.PutUint32(raw[offset:], math.Float32bits(f))
		}
	}

	slog.Debug("AIFF samples converted",
		"input_samples", len(pcmBuffer.Data),
		"output_bytes", len(raw),
		"bytes_per_sample", bytesPerSample)

	return raw
}
