package device

import (
	"fmt"
	"log/slog"
)

// State is the playback state of a stream buffer
type State int

const (
	StateUnloaded State = iota
	StateLoaded
	StatePlaying
	StatePaused
	StateFinished
)

func (s State) String() string {
	switch s {
	case StateLoaded:
		return "loaded"
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	case StateFinished:
		return "finished"
	default:
		return "unloaded"
	}
}

// ProcessorFunc transforms frameCount interleaved frames in place. It runs on
// the audio thread with the registry locked and must not call back into the
// device.
type ProcessorFunc func(frames []float32, frameCount int)

type processorSlot struct {
	id ProcessorID
	fn ProcessorFunc
}

// buffer is a registered stream converted to the mixing format
type buffer struct {
	stream     Stream
	data       []float32
	frames     int
	cursor     int
	state      State
	volume     float32
	pan        float32
	looping    bool
	processors []processorSlot
	flagged    bool
}

func (b *buffer) release() {
	b.data = nil
	b.frames = 0
	b.cursor = 0
	b.processors = nil
	b.state = StateUnloaded
}

// RegisterBuffer adds a buffer of interleaved samples already converted to
// mix, which must match the device's current format. The device keeps data;
// the caller must not modify it afterwards.
func (d *Device) RegisterBuffer(source SourceFormat, mix Format, data []float32) (Stream, error) {
	if mix.Channels == 0 || len(data)%int(mix.Channels) != 0 {
		return Stream{}, fmt.Errorf("%w: %d samples for %d channels", ErrInvalidBuffer, len(data), mix.Channels)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.ready.Load() {
		slog.Error("cannot register stream buffer, device not ready")
		return Stream{}, ErrDeviceNotReady
	}

	if mix.SampleRate != d.format.SampleRate || mix.Channels != d.format.Channels {
		slog.Error("stream buffer format does not match device",
			"buffer_rate", mix.SampleRate,
			"buffer_channels", mix.Channels,
			"device_rate", d.format.SampleRate,
			"device_channels", d.format.Channels)
		return Stream{}, fmt.Errorf("%w: %d Hz/%d ch against %d Hz/%d ch", ErrFormatMismatch,
			mix.SampleRate, mix.Channels, d.format.SampleRate, d.format.Channels)
	}

	d.nextBuffer++
	stream := Stream{
		Buffer:     d.nextBuffer,
		SampleRate: source.SampleRate,
		SampleSize: source.SampleSize,
		Channels:   source.Channels,
	}

	d.buffers[stream.Buffer] = &buffer{
		stream: stream,
		data:   data,
		frames: len(data) / int(mix.Channels),
		state:  StateLoaded,
		volume: 1.0,
		pan:    0.5,
	}

	slog.Debug("stream buffer registered",
		"buffer", stream.Buffer,
		"frames", len(data)/int(mix.Channels),
		"active_buffers", len(d.buffers))

	return stream, nil
}

// DeregisterBuffer removes a buffer. An unknown id is treated as already
// removed, which also covers buffers torn down by Close.
func (d *Device) DeregisterBuffer(id BufferID) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	b, ok := d.buffers[id]
	if !ok {
		slog.Debug("stream buffer already deregistered", "buffer", id)
		return nil
	}

	b.release()
	delete(d.buffers, id)

	slog.Debug("stream buffer deregistered", "buffer", id, "active_buffers", len(d.buffers))
	return nil
}

// withBuffer runs fn on a registered buffer with the registry locked
func (d *Device) withBuffer(id BufferID, fn func(b *buffer) error) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.ready.Load() {
		return ErrDeviceNotReady
	}

	b, ok := d.buffers[id]
	if !ok {
		return fmt.Errorf("%w: buffer %d", ErrStreamNotFound, id)
	}
	return fn(b)
}

// Play starts a buffer from its first frame. Playing a buffer that is
// already playing restarts it.
func (d *Device) Play(id BufferID) error {
	return d.withBuffer(id, func(b *buffer) error {
		b.cursor = 0
		b.state = StatePlaying
		return nil
	})
}

// Stop halts a buffer and rewinds it
func (d *Device) Stop(id BufferID) error {
	return d.withBuffer(id, func(b *buffer) error {
		b.cursor = 0
		b.state = StateLoaded
		return nil
	})
}

// Pause halts a playing buffer without rewinding it
func (d *Device) Pause(id BufferID) error {
	return d.withBuffer(id, func(b *buffer) error {
		if b.state == StatePlaying {
			b.state = StatePaused
		}
		return nil
	})
}

// Resume continues a paused buffer
func (d *Device) Resume(id BufferID) error {
	return d.withBuffer(id, func(b *buffer) error {
		if b.state == StatePaused {
			b.state = StatePlaying
		}
		return nil
	})
}

// SetVolume sets a buffer's gain
func (d *Device) SetVolume(id BufferID, volume float32) error {
	if volume < 0.0 || volume > 1.0 {
		return fmt.Errorf("%w: %f", ErrInvalidVolume, volume)
	}
	return d.withBuffer(id, func(b *buffer) error {
		b.volume = volume
		return nil
	})
}

// SetPan places a buffer in the stereo field; 0.5 is centered
func (d *Device) SetPan(id BufferID, pan float32) error {
	if pan < 0.0 || pan > 1.0 {
		return fmt.Errorf("%w: %f", ErrInvalidPan, pan)
	}
	return d.withBuffer(id, func(b *buffer) error {
		b.pan = pan
		return nil
	})
}

// SetLooping makes a buffer wrap to its start instead of finishing
func (d *Device) SetLooping(id BufferID, looping bool) error {
	return d.withBuffer(id, func(b *buffer) error {
		b.looping = looping
		return nil
	})
}

// State reports a buffer's playback state; unknown ids report StateUnloaded
func (d *Device) State(id BufferID) State {
	d.mu.Lock()
	defer d.mu.Unlock()

	b, ok := d.buffers[id]
	if !ok {
		return StateUnloaded
	}
	return b.state
}

// Cursor returns the next frame a buffer will mix
func (d *Device) Cursor(id BufferID) (uint32, error) {
	var cursor uint32
	err := d.withBuffer(id, func(b *buffer) error {
		cursor = uint32(b.cursor)
		return nil
	})
	return cursor, err
}

// ActiveBuffers counts registered buffers
func (d *Device) ActiveBuffers() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.buffers)
}

// AttachProcessor appends fn to a buffer's processor chain
func (d *Device) AttachProcessor(id BufferID, fn ProcessorFunc) (ProcessorID, error) {
	if fn == nil {
		return 0, fmt.Errorf("%w: nil processor", ErrInvalidBuffer)
	}

	var pid ProcessorID
	err := d.withBuffer(id, func(b *buffer) error {
		d.nextProcessor++
		pid = d.nextProcessor
		b.processors = append(b.processors, processorSlot{id: pid, fn: fn})
		return nil
	})
	return pid, err
}

// DetachProcessor removes a processor from a buffer's chain
func (d *Device) DetachProcessor(id BufferID, pid ProcessorID) error {
	return d.withBuffer(id, func(b *buffer) error {
		b.processors = removeProcessor(b.processors, pid)
		return nil
	})
}

// AttachMixedProcessor appends fn to the chain run over the full mix
func (d *Device) AttachMixedProcessor(fn ProcessorFunc) (ProcessorID, error) {
	if fn == nil {
		return 0, fmt.Errorf("%w: nil processor", ErrInvalidBuffer)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.ready.Load() {
		return 0, ErrDeviceNotReady
	}

	d.nextProcessor++
	d.mixed = append(d.mixed, processorSlot{id: d.nextProcessor, fn: fn})
	return d.nextProcessor, nil
}

// DetachMixedProcessor removes a processor from the mix chain
func (d *Device) DetachMixedProcessor(pid ProcessorID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.mixed = removeProcessor(d.mixed, pid)
}

func removeProcessor(chain []processorSlot, pid ProcessorID) []processorSlot {
	out := chain[:0]
	for _, p := range chain {
		if p.id != pid {
			out = append(out, p)
		}
	}
	return out
}
