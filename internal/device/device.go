package device

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
)

// Device errors
var (
	ErrDeviceNotReady  = errors.New("audio device is not ready")
	ErrStreamNotFound  = errors.New("audio stream not found")
	ErrSinkUnavailable = errors.New("audio sink unavailable")
	ErrSinkClosed      = errors.New("audio sink is closed")
	ErrInvalidBuffer   = errors.New("invalid stream buffer")
	ErrFormatMismatch  = errors.New("mixing format does not match the device")
	ErrInvalidVolume   = errors.New("volume must be between 0.0 and 1.0")
	ErrInvalidPan      = errors.New("pan must be between 0.0 and 1.0")
)

// Defaults used when a Config leaves a field zero
const (
	DefaultSampleRate   = 44100
	DefaultChannels     = 2
	DefaultBufferFrames = 512
)

// BufferID identifies a registered stream buffer. Zero is never issued.
type BufferID uint64

// ProcessorID identifies an attached processor. Zero means none.
type ProcessorID uint64

// Format describes the interleaved float32 mixing format
type Format struct {
	SampleRate   uint32
	Channels     uint32
	BufferFrames uint32
}

// SourceFormat is the format of the wave a stream was created from
type SourceFormat struct {
	SampleRate uint32
	SampleSize uint32
	Channels   uint32
}

// Stream is a capability token for a registered buffer together with the
// format of the wave it was built from
type Stream struct {
	Buffer     BufferID
	Processor  ProcessorID
	SampleRate uint32
	SampleSize uint32
	Channels   uint32
}

// Config holds the requested device format. Zero fields take defaults; a zero
// SampleRate lets the sink pick its native rate.
type Config struct {
	SampleRate   uint32
	Channels     uint32
	BufferFrames uint32
}

// Device owns a platform sink, the registry of stream buffers and the mixer
// that feeds the sink
type Device struct {
	sink      Sink
	requested Format

	lifeMu sync.Mutex
	ready  atomic.Bool

	// mu guards everything below and is held for a whole mix tick
	mu            sync.Mutex
	format        Format
	buffers       map[BufferID]*buffer
	nextBuffer    BufferID
	nextProcessor ProcessorID
	mixed         []processorSlot
	masterVolume  float32
	scratch       []float32
}

// New creates a device that will open sink on Init
func New(sink Sink, cfg Config) *Device {
	requested := Format{
		SampleRate:   cfg.SampleRate,
		Channels:     cfg.Channels,
		BufferFrames: cfg.BufferFrames,
	}
	if requested.Channels == 0 {
		requested.Channels = DefaultChannels
	}
	if requested.Channels > 2 {
		slog.Warn("mixing supports at most 2 channels, using stereo", "requested", requested.Channels)
		requested.Channels = DefaultChannels
	}
	if requested.BufferFrames == 0 {
		requested.BufferFrames = DefaultBufferFrames
	}

	return &Device{
		sink:         sink,
		requested:    requested,
		buffers:      make(map[BufferID]*buffer),
		masterVolume: 1.0,
	}
}

// Init opens the sink and marks the device ready. Calling Init on a ready
// device does nothing.
func (d *Device) Init() error {
	d.lifeMu.Lock()
	defer d.lifeMu.Unlock()

	if d.ready.Load() {
		slog.Debug("audio device already initialized")
		return nil
	}

	if d.sink == nil {
		slog.Error("no audio sink configured")
		return fmt.Errorf("%w: no sink configured", ErrSinkUnavailable)
	}

	slog.Debug("initializing audio device",
		"sink", d.sink.Name(),
		"sample_rate", d.requested.SampleRate,
		"channels", d.requested.Channels,
		"buffer_frames", d.requested.BufferFrames)

	actual, err := d.sink.Open(d.requested, d.Mix)
	if err != nil {
		slog.Error("failed to open audio sink", "sink", d.sink.Name(), "error", err)
		return fmt.Errorf("%w: %s: %w", ErrSinkUnavailable, d.sink.Name(), err)
	}

	if actual.SampleRate == 0 {
		actual.SampleRate = DefaultSampleRate
	}
	if actual.BufferFrames == 0 {
		actual.BufferFrames = d.requested.BufferFrames
	}
	if actual.Channels != 1 && actual.Channels != 2 {
		_ = d.sink.Close()
		slog.Error("audio sink opened with unsupported channel count", "channels", actual.Channels)
		return fmt.Errorf("%w: %s opened %d channels", ErrSinkUnavailable, d.sink.Name(), actual.Channels)
	}

	d.mu.Lock()
	d.format = actual
	d.buffers = make(map[BufferID]*buffer)
	d.scratch = make([]float32, int(actual.BufferFrames)*int(actual.Channels))
	d.mu.Unlock()

	d.ready.Store(true)

	slog.Info("audio device initialized",
		"sink", d.sink.Name(),
		"sample_rate", actual.SampleRate,
		"channels", actual.Channels,
		"buffer_frames", actual.BufferFrames)
	return nil
}

// Close releases every registered buffer and closes the sink. Closing a
// device that is not ready does nothing.
func (d *Device) Close() error {
	d.lifeMu.Lock()
	defer d.lifeMu.Unlock()

	if !d.ready.Load() {
		slog.Debug("audio device already closed")
		return nil
	}

	d.ready.Store(false)

	d.mu.Lock()
	released := len(d.buffers)
	for _, b := range d.buffers {
		b.release()
	}
	d.buffers = make(map[BufferID]*buffer)
	d.mixed = nil
	d.format = Format{}
	d.mu.Unlock()

	if err := d.sink.Close(); err != nil {
		slog.Error("failed to close audio sink", "sink", d.sink.Name(), "error", err)
		return fmt.Errorf("closing %s sink: %w", d.sink.Name(), err)
	}

	slog.Info("audio device closed", "sink", d.sink.Name(), "released_buffers", released)
	return nil
}

// IsReady reports whether Init has succeeded and Close has not been called since
func (d *Device) IsReady() bool {
	return d.ready.Load()
}

// Format returns the mixing format negotiated with the sink
func (d *Device) Format() (Format, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.ready.Load() {
		return Format{}, ErrDeviceNotReady
	}
	return d.format, nil
}

// SampleRate returns the mixing sample rate, or 0 when not ready
func (d *Device) SampleRate() uint32 {
	f, _ := d.Format()
	return f.SampleRate
}

// Channels returns the mixing channel count, or 0 when not ready
func (d *Device) Channels() uint32 {
	f, _ := d.Format()
	return f.Channels
}

// SinkName names the sink this device drives
func (d *Device) SinkName() string {
	if d.sink == nil {
		return ""
	}
	return d.sink.Name()
}

// MasterVolume returns the gain applied to the final mix
func (d *Device) MasterVolume() float32 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.masterVolume
}

// SetMasterVolume sets the gain applied to the final mix
func (d *Device) SetMasterVolume(volume float32) error {
	if volume < 0.0 || volume > 1.0 {
		slog.Error("invalid master volume", "volume", volume)
		return fmt.Errorf("%w: %f", ErrInvalidVolume, volume)
	}

	d.mu.Lock()
	old := d.masterVolume
	d.masterVolume = volume
	d.mu.Unlock()

	slog.Debug("master volume changed", "old_volume", old, "new_volume", volume)
	return nil
}
