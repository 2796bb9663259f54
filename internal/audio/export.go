package audio

import (
	"encoding/binary"
	"fmt"
	"log/slog"

	goaudio "github.com/go-audio/audio"
	gowav "github.com/go-audio/wav"
	"github.com/spf13/afero"
)

// ExportWave writes w to path as a RIFF/WAVE file. 8 and 16-bit waves are
// written as PCM, 32-bit waves as IEEE float.
func ExportWave(fs afero.Fs, w *Wave, path string) error {
	if err := w.Validate(); err != nil {
		return err
	}

	slog.Debug("exporting wave",
		"path", path,
		"frames", w.FrameCount,
		"sample_rate", w.SampleRate,
		"sample_size", w.SampleSize,
		"channels", w.Channels)

	file, err := fs.Create(path)
	if err != nil {
		slog.Error("failed to create export file", "path", path, "error", err)
		return fmt.Errorf("%w: %s: %w", ErrIO, path, err)
	}
	defer file.Close()

	audioFormat := wavFormatPCM
	if w.SampleSize == 32 {
		audioFormat = wavFormatIEEEFloat
	}

	encoder := gowav.NewEncoder(file, int(w.SampleRate), int(w.SampleSize), int(w.Channels), audioFormat)

	buf := &goaudio.IntBuffer{
		Format: &goaudio.Format{
			NumChannels: int(w.Channels),
			SampleRate:  int(w.SampleRate),
		},
		Data:           waveToInts(w),
		SourceBitDepth: int(w.SampleSize),
	}

	if err := encoder.Write(buf); err != nil {
		slog.Error("failed to encode wave", "path", path, "error", err)
		return fmt.Errorf("%w: %s: %w", ErrIO, path, err)
	}
	if err := encoder.Close(); err != nil {
		slog.Error("failed to finalize wave file", "path", path, "error", err)
		return fmt.Errorf("%w: %s: %w", ErrIO, path, err)
	}

	slog.Info("wave exported", "path", path, "bytes", len(w.Data))
	return nil
}

// waveToInts maps samples onto the integers the encoder writes byte for byte.
// 32-bit float samples pass through as their bit patterns.
func waveToInts(w *Wave) []int {
	bytesPerSample := w.BytesPerSample()
	out := make([]int, len(w.Data)/bytesPerSample)

	for i := range out {
		offset := i * bytesPerSample
		switch w.SampleSize {
		case 8:
			out[i] = int(w.Data[offset])
		case 16:
			out[i] = int(int16(binary.LittleEndian.Uint16(w.Data[offset:])))
		default:
			out[i] = int(int32(binary.LittleEndian.Uint32(w.Data[offset:])))
		}
	}
	return out
}
