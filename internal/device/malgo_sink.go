//go:build cgo

package device

import (
	"encoding/binary"
	"fmt"
	"log/slog"
	"math"
	"sync"

	"github.com/gen2brain/malgo"
)

// MalgoSink plays through miniaudio with a float32 playback device
type MalgoSink struct {
	mu      sync.Mutex
	context *Context
	device  *malgo.Device
}

func newMalgoSink() (Sink, error) {
	return &MalgoSink{}, nil
}

// Name returns "malgo"
func (s *MalgoSink) Name() string {
	return "malgo"
}

// Open initializes and starts a playback device. A zero sample rate selects
// the device's native rate.
func (s *MalgoSink) Open(format Format, render RenderFunc) (Format, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.device != nil {
		return Format{}, fmt.Errorf("malgo sink is already open")
	}

	audioCtx, err := NewContext()
	if err != nil {
		return Format{}, fmt.Errorf("failed to initialize audio context: %w", err)
	}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Playback)
	deviceConfig.Playback.Format = malgo.FormatF32
	deviceConfig.Playback.Channels = format.Channels
	deviceConfig.SampleRate = format.SampleRate
	deviceConfig.PeriodSizeInFrames = format.BufferFrames
	deviceConfig.Alsa.NoMMap = 1

	slog.Debug("device configuration",
		"format", "f32",
		"channels", format.Channels,
		"sample_rate", format.SampleRate,
		"period_frames", format.BufferFrames)

	channels := int(format.Channels)
	scratch := make([]float32, int(format.BufferFrames)*channels)

	onSamples := func(pOutputSample, pInputSamples []byte, framecount uint32) {
		n := int(framecount) * channels
		if cap(scratch) < n {
			scratch = make([]float32, n)
		}
		buf := scratch[:n]
		render(buf)

		// The whole output must be written or the device plays garbage
		for i, v := range buf {
			binary.LittleEndian.PutUint32(pOutputSample[i*4:], math.Float32bits(v))
		}
		for i := n * 4; i < len(pOutputSample); i++ {
			pOutputSample[i] = 0
		}
	}

	device, err := malgo.InitDevice(audioCtx.Raw().Context, deviceConfig, malgo.DeviceCallbacks{
		Data: onSamples,
	})
	if err != nil {
		audioCtx.Close()
		slog.Error("failed to initialize playback device", "error", err)
		return Format{}, fmt.Errorf("failed to initialize playback device: %w", err)
	}

	if err := device.Start(); err != nil {
		device.Uninit()
		audioCtx.Close()
		slog.Error("failed to start playback device", "error", err)
		return Format{}, fmt.Errorf("failed to start playback: %w", err)
	}

	s.context = audioCtx
	s.device = device

	actual := format
	actual.SampleRate = device.SampleRate()

	slog.Debug("malgo playback device started", "sample_rate", actual.SampleRate)
	return actual, nil
}

// Close stops the device, which waits for the in-flight callback, then
// releases the context
func (s *MalgoSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.device == nil {
		return nil
	}

	if err := s.device.Stop(); err != nil {
		slog.Warn("failed to stop playback device", "error", err)
	}
	s.device.Uninit()
	s.device = nil

	err := s.context.Close()
	s.context = nil
	if err != nil {
		return fmt.Errorf("error closing audio context: %w", err)
	}
	return nil
}
