package audio

import (
	"fmt"
	"log/slog"

	"github.com/gopxl/beep"
)

// Resampling quality bounds accepted by beep.Resample
const (
	MinResampleQuality     = 1
	MaxResampleQuality     = 64
	DefaultResampleQuality = 4
)

// ConvertToMixFormat converts a wave to interleaved float32 samples at the
// given sample rate and channel count (1 or 2). It returns the samples and
// the resulting frame count.
//
// Channel mapping: equal counts copy, mono input is duplicated, mono output
// averages the first two channels, wider input keeps its first two channels.
func ConvertToMixFormat(w *Wave, sampleRate, channels uint32, quality int) ([]float32, uint32, error) {
	if err := w.Validate(); err != nil {
		return nil, 0, err
	}
	if channels != 1 && channels != 2 {
		return nil, 0, fmt.Errorf("%w: mixing channel count %d", ErrInvalidWaveFormat, channels)
	}
	if sampleRate == 0 {
		return nil, 0, fmt.Errorf("%w: mixing sample rate is zero", ErrInvalidWaveFormat)
	}

	frames := toStereoFrames(w)

	if w.SampleRate != sampleRate && len(frames) > 0 {
		quality = clampQuality(quality)
		slog.Debug("resampling wave",
			"from_rate", w.SampleRate,
			"to_rate", sampleRate,
			"quality", quality,
			"frames", len(frames))
		var err error
		frames, err = resampleFrames(frames, w.SampleRate, sampleRate, quality)
		if err != nil {
			return nil, 0, err
		}
	}

	out := make([]float32, len(frames)*int(channels))
	for i, f := range frames {
		if channels == 1 {
			out[i] = float32((f[0] + f[1]) / 2)
			continue
		}
		out[i*2] = float32(f[0])
		out[i*2+1] = float32(f[1])
	}

	slog.Debug("wave converted to mixing format",
		"source_frames", w.FrameCount,
		"mix_frames", len(frames),
		"sample_rate", sampleRate,
		"channels", channels)

	return out, uint32(len(frames)), nil
}

// toStereoFrames decodes the wave into beep's stereo frame layout. Mono
// sources fill both slots.
func toStereoFrames(w *Wave) [][2]float64 {
	frames := make([][2]float64, w.FrameCount)
	channels := int(w.Channels)

	for i := range frames {
		if channels == 1 {
			s := float64(w.SampleAt(i, 0))
			frames[i] = [2]float64{s, s}
			continue
		}
		frames[i] = [2]float64{float64(w.SampleAt(i, 0)), float64(w.SampleAt(i, 1))}
	}
	return frames
}

func clampQuality(q int) int {
	switch {
	case q < MinResampleQuality:
		return DefaultResampleQuality
	case q > MaxResampleQuality:
		return MaxResampleQuality
	default:
		return q
	}
}

// frameStreamer feeds a fixed slice of frames to beep
type frameStreamer struct {
	frames [][2]float64
	pos    int
}

func (s *frameStreamer) Stream(samples [][2]float64) (int, bool) {
	if s.pos >= len(s.frames) {
		return 0, false
	}
	n := copy(samples, s.frames[s.pos:])
	s.pos += n
	return n, true
}

func (s *frameStreamer) Err() error {
	return nil
}

func resampleFrames(frames [][2]float64, from, to uint32, quality int) ([][2]float64, error) {
	resampler := beep.Resample(quality, beep.SampleRate(from), beep.SampleRate(to), &frameStreamer{frames: frames})

	expected := int(uint64(len(frames)) * uint64(to) / uint64(from))
	out := make([][2]float64, 0, expected+1)
	buf := make([][2]float64, 512)

	for {
		n, ok := resampler.Stream(buf)
		out = append(out, buf[:n]...)
		if !ok {
			break
		}
	}
	if err := resampler.Err(); err != nil {
		return nil, fmt.Errorf("resampling %d Hz to %d Hz: %w", from, to, err)
	}

	// The resampler may run a frame past the ideal length
	if len(out) > expected && expected > 0 {
		out = out[:expected]
	}
	return out, nil
}
