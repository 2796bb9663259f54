package audio

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/hajimehoshi/go-mp3"
)

// Mp3Decoder handles MP3 audio format decoding
type Mp3Decoder struct{}

// NewMp3Decoder creates a new MP3 decoder instance
func NewMp3Decoder() *Mp3Decoder {
	slog.Debug("creating new MP3 decoder instance")
	return &Mp3Decoder{}
}

// Decode reads MP3 audio data. go-mp3 always produces 16-bit stereo.
func (d *Mp3Decoder) Decode(reader io.Reader) (*Wave, error) {
	slog.Debug("starting MP3 decode operation")

	decoder, err := mp3.NewDecoder(reader)
	if err != nil {
		slog.Error("failed to create MP3 decoder", "error", err)
		return nil, fmt.Errorf("%w: %w", ErrCorruptData, err)
	}

	sampleRate := decoder.SampleRate()
	if sampleRate <= 0 {
		slog.Error("invalid MP3 sample rate", "sample_rate", sampleRate)
		return nil, fmt.Errorf("%w: sample rate %d", ErrCorruptData, sampleRate)
	}

	slog.Debug("MP3 format detected",
		"sample_rate", sampleRate,
		"channels", 2)

	var samples []byte
	if length := decoder.Length(); length > 0 {
		samples = make([]byte, 0, length)
	}
	buf := make([]byte, 4096)

	for {
		n, err := decoder.Read(buf)
		samples = append(samples, buf[:n]...)
		if errors.Is(err, io.EOF) {
			slog.Debug("reached end of MP3 file", "total_bytes", len(samples))
			break
		}
		if err != nil {
			slog.Error("failed to read MP3 PCM data", "error", err)
			return nil, fmt.Errorf("%w: %w", ErrCorruptData, err)
		}
		if n == 0 {
			break
		}
	}

	// 2 channels of 2 bytes
	const frameSize = 4
	samples = samples[:len(samples)-len(samples)%frameSize]
	if len(samples) == 0 {
		slog.Error("no audio data found in MP3 file")
		return nil, fmt.Errorf("%w: no audio data", ErrCorruptData)
	}

	wave := &Wave{
		FrameCount: uint32(len(samples) / frameSize),
		SampleRate: uint32(sampleRate),
		SampleSize: 16,
		Channels:   2,
		Data:       samples,
	}

	slog.Info("MP3 decode completed successfully",
		"total_bytes", len(samples),
		"frames", wave.FrameCount,
		"sample_rate", wave.SampleRate,
		"duration_estimate_ms", wave.Duration().Milliseconds())

	return wave, nil
}

// CanDecode checks if this decoder can handle the given filename
func (d *Mp3Decoder) CanDecode(filename string) bool {
	lower := strings.ToLower(filename)
	canDecode := strings.HasSuffix(lower, ".mp3") || strings.HasSuffix(lower, ".mpeg")

	slog.Debug("MP3 decoder file check",
		"filename", filename,
		"can_decode", canDecode)

	return canDecode
}

// FormatName returns the name of the format this decoder handles
func (d *Mp3Decoder) FormatName() string {
	return "MP3"
}

// FileType returns FileTypeMP3
func (d *Mp3Decoder) FileType() FileType {
	return FileTypeMP3
}
