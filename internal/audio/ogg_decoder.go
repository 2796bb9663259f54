package audio

import (
	"encoding/binary"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/jfreymuth/oggvorbis"
)

// OggDecoder handles Ogg Vorbis decoding
type OggDecoder struct{}

// NewOggDecoder creates a new Ogg Vorbis decoder instance
func NewOggDecoder() *OggDecoder {
	slog.Debug("creating new OGG decoder instance")
	return &OggDecoder{}
}

// Decode reads a complete Ogg Vorbis stream and stores it as 16-bit PCM.
func (d *OggDecoder) Decode(reader io.Reader) (*Wave, error) {
	slog.Debug("starting OGG decode operation")

	samples, format, err := oggvorbis.ReadAll(reader)
	if err != nil {
		slog.Error("failed to decode OGG stream", "error", err)
		return nil, fmt.Errorf("%w: %w", ErrCorruptData, err)
	}

	if format == nil || format.Channels <= 0 || format.SampleRate <= 0 {
		slog.Error("invalid OGG stream format")
		return nil, fmt.Errorf("%w: missing stream format", ErrCorruptData)
	}

	slog.Debug("OGG format detected",
		"sample_rate", format.SampleRate,
		"channels", format.Channels)

	samples = samples[:len(samples)-len(samples)%format.Channels]
	if len(samples) == 0 {
		slog.Error("no audio data found in OGG file")
		return nil, fmt.Errorf("%w: no audio data", ErrCorruptData)
	}

	wave := &Wave{
		FrameCount: uint32(len(samples) / format.Channels),
		SampleRate: uint32(format.SampleRate),
		SampleSize: 16,
		Channels:   int32(format.Channels),
		Data:       floatsToInt16Bytes(samples),
	}

	slog.Info("OGG decode completed successfully",
		"total_bytes", len(wave.Data),
		"frames", wave.FrameCount,
		"channels", wave.Channels,
		"sample_rate", wave.SampleRate,
		"duration_estimate_ms", wave.Duration().Milliseconds())

	return wave, nil
}

// floatsToInt16Bytes quantizes [-1, 1] samples to little-endian int16
func floatsToInt16Bytes(samples []float32) []byte {
	raw := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(raw[i*2:], uint16(floatToInt16(s)))
	}
	return raw
}

func floatToInt16(s float32) int16 {
	switch {
	case s >= 1:
		return 32767
	case s <= -1:
		return -32768
	default:
		return int16(s * 32767)
	}
}

// CanDecode checks if this decoder can handle the given filename
func (d *OggDecoder) CanDecode(filename string) bool {
	lower := strings.ToLower(filename)
	canDecode := strings.HasSuffix(lower, ".ogg") || strings.HasSuffix(lower, ".oga")

	slog.Debug("OGG decoder file check",
		"filename", filename,
		"can_decode", canDecode)

	return canDecode
}

// FormatName returns the name of the format this decoder handles
func (d *OggDecoder) FormatName() string {
	return "OGG"
}

// FileType returns FileTypeOGG
func (d *OggDecoder) FileType() FileType {
	return FileTypeOGG
}
