package audio

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"log/slog"
	"math"
	"strings"

	"github.com/youpy/go-wav"
)

// WAVE format codes found in the fmt chunk
const (
	wavFormatPCM        = 1
	wavFormatIEEEFloat  = 3
	wavFormatExtensible = 0xFFFE
)

// WavDecoder handles WAV audio format decoding
type WavDecoder struct{}

// NewWavDecoder creates a new WAV decoder instance
func NewWavDecoder() *WavDecoder {
	slog.Debug("creating new WAV decoder instance")
	return &WavDecoder{}
}

// Decode reads a RIFF/WAVE file. 8 and 16-bit PCM and 32-bit float keep their
// encoding; 32-bit integer PCM is converted to float32 of the same width.
func (d *WavDecoder) Decode(reader io.Reader) (*Wave, error) {
	slog.Debug("starting WAV decode operation")

	// youpy/go-wav needs random access, so buffer everything first
	data, err := io.ReadAll(reader)
	if err != nil {
		slog.Error("failed to read WAV data", "error", err)
		return nil, fmt.Errorf("%w: %w", ErrIO, err)
	}

	if len(data) == 0 {
		slog.Error("empty WAV data")
		return nil, fmt.Errorf("%w: empty WAV data", ErrCorruptData)
	}

	wavReader := wav.NewReader(bytes.NewReader(data))

	format, err := wavReader.Format()
	if err != nil {
		slog.Error("failed to read WAV format", "error", err)
		return nil, fmt.Errorf("%w: %w", ErrCorruptData, err)
	}

	slog.Debug("WAV format detected",
		"audio_format", format.AudioFormat,
		"sample_rate", format.SampleRate,
		"channels", format.NumChannels,
		"bits_per_sample", format.BitsPerSample)

	if format.NumChannels == 0 || format.SampleRate == 0 {
		slog.Error("invalid WAV format parameters",
			"channels", format.NumChannels,
			"sample_rate", format.SampleRate)
		return nil, fmt.Errorf("%w: %d channels at %d Hz", ErrCorruptData, format.NumChannels, format.SampleRate)
	}

	bits := uint32(format.BitsPerSample)
	if !validSampleSize(bits) {
		slog.Error("unsupported bit depth", "bits", bits)
		return nil, fmt.Errorf("%w: %d-bit WAV samples", ErrInvalidWaveFormat, bits)
	}

	isFloat, err := wavSampleEncoding(format.AudioFormat, bits)
	if err != nil {
		slog.Error("unsupported WAV encoding", "audio_format", format.AudioFormat, "bits", bits)
		return nil, err
	}

	pcm, err := io.ReadAll(wavReader)
	if err != nil {
		slog.Error("failed to read WAV samples", "error", err)
		return nil, fmt.Errorf("%w: %w", ErrCorruptData, err)
	}

	// A truncated data chunk may end mid-frame; keep whole frames only
	frameSize := int(format.NumChannels) * int(bits/8)
	whole := len(pcm) - len(pcm)%frameSize
	if whole == 0 {
		slog.Error("no audio data found in WAV file")
		return nil, fmt.Errorf("%w: no audio data", ErrCorruptData)
	}
	if whole != len(pcm) {
		slog.Warn("dropping partial trailing WAV frame", "bytes", len(pcm)-whole)
	}
	pcm = pcm[:whole]

	if bits == 32 && !isFloat {
		int32ToFloat32(pcm)
	}

	wave := &Wave{
		FrameCount: uint32(whole / frameSize),
		SampleRate: format.SampleRate,
		SampleSize: bits,
		Channels:   int32(format.NumChannels),
		Data:       pcm,
	}

	slog.Info("WAV decode completed successfully",
		"total_bytes", len(pcm),
		"frames", wave.FrameCount,
		"channels", wave.Channels,
		"sample_rate", wave.SampleRate,
		"sample_size", wave.SampleSize,
		"duration_estimate_ms", wave.Duration().Milliseconds())

	return wave, nil
}

// wavSampleEncoding reports whether samples are IEEE float for the given
// fmt chunk code and bit depth.
func wavSampleEncoding(audioFormat uint16, bits uint32) (bool, error) {
	switch audioFormat {
	case wavFormatPCM:
		return false, nil
	case wavFormatIEEEFloat:
		if bits != 32 {
			return false, fmt.Errorf("%w: %d-bit float WAV", ErrInvalidWaveFormat, bits)
		}
		return true, nil
	case wavFormatExtensible:
		// The sub-format GUID is not exposed; only the unambiguous depths pass
		if bits == 32 {
			return false, fmt.Errorf("%w: 32-bit WAVE_FORMAT_EXTENSIBLE", ErrUnsupportedFormat)
		}
		return false, nil
	default:
		return false, fmt.Errorf("%w: WAV codec 0x%04x", ErrUnsupportedFormat, audioFormat)
	}
}

// int32ToFloat32 rewrites little-endian int32 samples as float32 in place
func int32ToFloat32(data []byte) {
	for i := 0; i+4 <= len(data); i += 4 {
		v := int32(binary.LittleEndian.Uint32(data[i:]))
		f := float32(float64(v) / 2147483648.0)
		binary.LittleEndian.PutUint32(data[i:], math.Float32bits(f))
	}
}

// CanDecode checks if this decoder can handle the given filename
func (d *WavDecoder) CanDecode(filename string) bool {
	lower := strings.ToLower(filename)
	canDecode := strings.HasSuffix(lower, ".wav") || strings.HasSuffix(lower, ".wave")

	slog.Debug("WAV decoder file check",
		"filename", filename,
		"can_decode", canDecode)

	return canDecode
}

// FormatName returns the name of the format this decoder handles
func (d *WavDecoder) FormatName() string {
	return "WAV"
}

// FileType returns FileTypeWAV
func (d *WavDecoder) FileType() FileType {
	return FileTypeWAV
}
