package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/mewkiz/flac"
)

// FlacDecoder handles FLAC decoding
type FlacDecoder struct{}

// NewFlacDecoder creates a new FLAC decoder instance
func NewFlacDecoder() *FlacDecoder {
	slog.Debug("creating new FLAC decoder instance")
	return &FlacDecoder{}
}

// Decode reads every FLAC frame and stores the result as 16-bit PCM,
// rescaling from the stream's native bit depth.
func (d *FlacDecoder) Decode(reader io.Reader) (*Wave, error) {
	slog.Debug("starting FLAC decode operation")

	stream, err := flac.New(reader)
	if err != nil {
		slog.Error("failed to open FLAC stream", "error", err)
		return nil, fmt.Errorf("%w: %w", ErrCorruptData, err)
	}
	defer stream.Close()

	info := stream.Info
	if info == nil || info.NChannels == 0 || info.SampleRate == 0 || info.BitsPerSample == 0 {
		slog.Error("invalid FLAC stream info")
		return nil, fmt.Errorf("%w: missing stream info", ErrCorruptData)
	}

	channels := int(info.NChannels)
	bitsPerSample := int(info.BitsPerSample)

	slog.Debug("FLAC format detected",
		"sample_rate", info.SampleRate,
		"channels", channels,
		"bits_per_sample", bitsPerSample,
		"total_samples", info.NSamples)

	// NSamples comes from the file header and is not trusted for sizing
	var raw []byte
	frames := 0

	for {
		frame, err := stream.ParseNext()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			slog.Error("failed to parse FLAC frame", "frame", frames, "error", err)
			return nil, fmt.Errorf("%w: frame %d: %w", ErrCorruptData, frames, err)
		}
		if len(frame.Subframes) != channels {
			return nil, fmt.Errorf("%w: frame %d has %d subframes, expected %d",
				ErrCorruptData, frames, len(frame.Subframes), channels)
		}

		blockSize := int(frame.BlockSize)
		for i := 0; i < blockSize; i++ {
			for _, sub := range frame.Subframes {
				if i >= len(sub.Samples) {
					return nil, fmt.Errorf("%w: short subframe in frame %d", ErrCorruptData, frames)
				}
				raw = binary.LittleEndian.AppendUint16(raw, uint16(rescaleTo16(sub.Samples[i], bitsPerSample)))
			}
		}
		frames++
	}

	if len(raw) == 0 {
		slog.Error("no audio data found in FLAC file")
		return nil, fmt.Errorf("%w: no audio data", ErrCorruptData)
	}

	wave := &Wave{
		FrameCount: uint32(len(raw) / (channels * 2)),
		SampleRate: info.SampleRate,
		SampleSize: 16,
		Channels:   int32(channels),
		Data:       raw,
	}

	slog.Info("FLAC decode completed successfully",
		"total_bytes", len(raw),
		"flac_frames", frames,
		"frames", wave.FrameCount,
		"channels", wave.Channels,
		"sample_rate", wave.SampleRate,
		"duration_estimate_ms", wave.Duration().Milliseconds())

	return wave, nil
}

// rescaleTo16 shifts a sample of the given bit depth into the int16 range
func rescaleTo16(sample int32, bits int) int16 {
	switch {
	case bits > 16:
		return int16(sample >> (bits - 16))
	case bits < 16:
		return int16(sample << (16 - bits))
	default:
		return int16(sample)
	}
}

// CanDecode checks if this decoder can handle the given filename
func (d *FlacDecoder) CanDecode(filename string) bool {
	canDecode := strings.HasSuffix(strings.ToLower(filename), ".flac")

	slog.Debug("FLAC decoder file check",
		"filename", filename,
		"can_decode", canDecode)

	return canDecode
}

// FormatName returns the name of the format this decoder handles
func (d *FlacDecoder) FormatName() string {
	return "FLAC"
}

// FileType returns FileTypeFLAC
func (d *FlacDecoder) FileType() FileType {
	return FileTypeFLAC
}
