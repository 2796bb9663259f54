package audio

import (
	"encoding/binary"
	"fmt"
	"log/slog"
	"math"
	"time"
)

// Wave holds decoded PCM samples together with their format.
//
// Sample encodings by SampleSize:
//   - 8: unsigned 8-bit
//   - 16: signed 16-bit little-endian
//   - 32: IEEE float32 little-endian
type Wave struct {
	FrameCount uint32 // Frames per channel
	SampleRate uint32 // Frames per second
	SampleSize uint32 // Bits per sample: 8, 16 or 32
	Channels   int32  // Interleaved channel count
	Data       []byte // Interleaved sample bytes

	released bool
}

// NewWave builds a Wave from raw interleaved sample bytes, deriving the frame
// count from the data length.
func NewWave(sampleRate, sampleSize uint32, channels int32, data []byte) (*Wave, error) {
	if !validSampleSize(sampleSize) {
		return nil, fmt.Errorf("%w: unsupported sample size %d", ErrInvalidWaveFormat, sampleSize)
	}
	if channels < 1 {
		return nil, fmt.Errorf("%w: channel count %d", ErrInvalidWaveFormat, channels)
	}

	frameBytes := int(channels) * int(sampleSize/8)
	if len(data)%frameBytes != 0 {
		return nil, fmt.Errorf("%w: %d bytes is not a whole number of %d-byte frames",
			ErrInvalidWaveFormat, len(data), frameBytes)
	}

	w := &Wave{
		FrameCount: uint32(len(data) / frameBytes),
		SampleRate: sampleRate,
		SampleSize: sampleSize,
		Channels:   channels,
		Data:       data,
	}
	if err := w.Validate(); err != nil {
		return nil, err
	}
	return w, nil
}

func validSampleSize(size uint32) bool {
	return size == 8 || size == 16 || size == 32
}

// BytesPerSample returns the size of one sample of one channel.
func (w *Wave) BytesPerSample() int {
	return int(w.SampleSize / 8)
}

// FrameSize returns the size in bytes of one interleaved frame.
func (w *Wave) FrameSize() int {
	return w.BytesPerSample() * int(w.Channels)
}

// ExpectedDataSize is FrameCount·Channels·BytesPerSample.
func (w *Wave) ExpectedDataSize() int {
	return int(w.FrameCount) * w.FrameSize()
}

// Validate checks the wave's format fields and that Data holds exactly the
// number of bytes its format describes.
func (w *Wave) Validate() error {
	if w == nil {
		return fmt.Errorf("%w: nil wave", ErrInvalidWaveFormat)
	}
	if w.released {
		return fmt.Errorf("%w: wave has been released", ErrInvalidWaveFormat)
	}
	if !validSampleSize(w.SampleSize) {
		return fmt.Errorf("%w: unsupported sample size %d", ErrInvalidWaveFormat, w.SampleSize)
	}
	if w.Channels < 1 {
		return fmt.Errorf("%w: channel count %d", ErrInvalidWaveFormat, w.Channels)
	}
	if w.SampleRate == 0 {
		return fmt.Errorf("%w: sample rate is zero", ErrInvalidWaveFormat)
	}
	if len(w.Data) != w.ExpectedDataSize() {
		return fmt.Errorf("%w: data is %d bytes, format requires %d",
			ErrInvalidWaveFormat, len(w.Data), w.ExpectedDataSize())
	}
	return nil
}

// Duration returns the playing time of the wave at its own sample rate.
func (w *Wave) Duration() time.Duration {
	if w.SampleRate == 0 {
		return 0
	}
	return time.Duration(w.FrameCount) * time.Second / time.Duration(w.SampleRate)
}

// Copy returns a deep copy. The copy is never marked released.
func (w *Wave) Copy() *Wave {
	data := make([]byte, len(w.Data))
	copy(data, w.Data)
	return &Wave{
		FrameCount: w.FrameCount,
		SampleRate: w.SampleRate,
		SampleSize: w.SampleSize,
		Channels:   w.Channels,
		Data:       data,
	}
}

// Release drops the sample data. A released wave no longer validates.
// Releasing twice is harmless.
func (w *Wave) Release() {
	if w == nil || w.released {
		return
	}
	slog.Debug("releasing wave data", "bytes", len(w.Data), "frames", w.FrameCount)
	w.Data = nil
	w.FrameCount = 0
	w.released = true
}

// IsReleased reports whether Release has been called.
func (w *Wave) IsReleased() bool {
	return w != nil && w.released
}

// SampleAt decodes the sample of one channel of one frame to [-1, 1].
// The caller guarantees the indexes are in range.
func (w *Wave) SampleAt(frame, channel int) float32 {
	offset := (frame*int(w.Channels) + channel) * w.BytesPerSample()
	switch w.SampleSize {
	case 8:
		return (float32(w.Data[offset]) - 128) / 128
	case 16:
		return float32(int16(binary.LittleEndian.Uint16(w.Data[offset:]))) / 32768
	default:
		return math.Float32frombits(binary.LittleEndian.Uint32(w.Data[offset:]))
	}
}

// WaveFromFloat32 packs interleaved float samples into a 16-bit wave,
// clamping to [-1, 1].
func WaveFromFloat32(samples []float32, sampleRate uint32, channels int32) (*Wave, error) {
	data := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(data[i*2:], uint16(floatToInt16(s)))
	}
	return NewWave(sampleRate, 16, channels, data)
}
