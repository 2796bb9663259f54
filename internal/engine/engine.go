package engine

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"riqaudio.click/internal/audio"
	"riqaudio.click/internal/device"
)

// Engine errors
var (
	ErrSoundUnloaded = errors.New("sound has been unloaded")
)

// Sound is a playable handle: the stream token plus the frame count of the
// wave it was loaded from. It is a value; copies refer to the same sound.
type Sound struct {
	Stream     device.Stream
	FrameCount uint32
}

// State is the playback state of a sound
type State = device.State

const (
	StateUnloaded = device.StateUnloaded
	StateLoaded   = device.StateLoaded
	StatePlaying  = device.StatePlaying
	StatePaused   = device.StatePaused
	StateFinished = device.StateFinished
)

type soundEntry struct {
	wave   *audio.Wave
	source string
}

// Engine loads, plays and unloads sounds on one device
type Engine struct {
	device   *device.Device
	registry *audio.DecoderRegistry
	quality  int
	hooks    []EventHook

	mu     sync.RWMutex
	sounds map[device.BufferID]*soundEntry
}

// Option configures an Engine
type Option func(*Engine)

// WithRegistry replaces the default decoder registry
func WithRegistry(registry *audio.DecoderRegistry) Option {
	return func(e *Engine) {
		e.registry = registry
	}
}

// WithResampleQuality sets the resampler quality used when a wave's rate
// differs from the device's
func WithResampleQuality(quality int) Option {
	return func(e *Engine) {
		e.quality = quality
	}
}

// WithHook registers a hook notified of engine events
func WithHook(hook EventHook) Option {
	return func(e *Engine) {
		if hook != nil {
			e.hooks = append(e.hooks, hook)
		}
	}
}

// New creates an engine driving dev
func New(dev *device.Device, opts ...Option) *Engine {
	e := &Engine{
		device:  dev,
		quality: audio.DefaultResampleQuality,
		sounds:  make(map[device.BufferID]*soundEntry),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.registry == nil {
		e.registry = audio.NewDefaultRegistry()
	}
	return e
}

// Device returns the device the engine drives
func (e *Engine) Device() *device.Device {
	return e.device
}

// Registry returns the decoder registry used for loading
func (e *Engine) Registry() *audio.DecoderRegistry {
	return e.registry
}

// InitAudioDevice initializes the device; a second call is a no-op
func (e *Engine) InitAudioDevice() error {
	return e.device.Init()
}

// CloseAudioDevice tears down every stream and closes the device. Sounds stay
// owned by the engine until unloaded.
func (e *Engine) CloseAudioDevice() error {
	return e.device.Close()
}

// IsReady reports whether the device is initialized
func (e *Engine) IsReady() bool {
	return e.device.IsReady()
}

// LoadWave decodes a file without touching the device
func (e *Engine) LoadWave(path string) (*audio.Wave, error) {
	return e.registry.LoadWave(path)
}

// LoadWaveFromMemory decodes in-memory data; fileType is a tag such as ".wav"
func (e *Engine) LoadWaveFromMemory(fileType string, data []byte) (*audio.Wave, error) {
	return e.registry.LoadWaveFromMemory(fileType, data)
}

// UnloadWave releases a wave's samples
func (e *Engine) UnloadWave(w *audio.Wave) {
	w.Release()
}

// LoadSound decodes the file at path and registers it with the device.
func (e *Engine) LoadSound(path string) (Sound, error) {
	path = audio.TruncateAtNUL(path)

	if !e.device.IsReady() {
		slog.Error("cannot load sound, audio device not ready", "path", path)
		e.emit(Event{Kind: EventLoadFailed, Source: path, Err: device.ErrDeviceNotReady})
		return Sound{}, device.ErrDeviceNotReady
	}

	wave, err := e.registry.LoadWave(path)
	if err != nil {
		e.emit(Event{Kind: EventLoadFailed, Source: path, Err: err})
		return Sound{}, err
	}

	sound, err := e.register(wave, path)
	if err != nil {
		wave.Release()
		e.emit(Event{Kind: EventLoadFailed, Source: path, Err: err})
		return Sound{}, err
	}
	return sound, nil
}

// LoadSoundFromWave registers a copy of w with the device. The caller keeps
// ownership of w.
func (e *Engine) LoadSoundFromWave(w *audio.Wave) (Sound, error) {
	if err := w.Validate(); err != nil {
		slog.Error("cannot load sound from invalid wave", "error", err)
		e.emit(Event{Kind: EventLoadFailed, Err: err})
		return Sound{}, err
	}

	if !e.device.IsReady() {
		slog.Error("cannot load sound, audio device not ready")
		e.emit(Event{Kind: EventLoadFailed, Err: device.ErrDeviceNotReady})
		return Sound{}, device.ErrDeviceNotReady
	}

	sound, err := e.register(w.Copy(), "")
	if err != nil {
		e.emit(Event{Kind: EventLoadFailed, Err: err})
		return Sound{}, err
	}
	return sound, nil
}

// register converts an owned wave to the mixing format and hands it to the
// device. Conversion happens before any lock is taken.
func (e *Engine) register(w *audio.Wave, source string) (Sound, error) {
	format, err := e.device.Format()
	if err != nil {
		return Sound{}, err
	}

	mix, _, err := audio.ConvertToMixFormat(w, format.SampleRate, format.Channels, e.quality)
	if err != nil {
		slog.Error("failed to convert wave to mixing format", "source", source, "error", err)
		return Sound{}, err
	}

	stream, err := e.device.RegisterBuffer(device.SourceFormat{
		SampleRate: w.SampleRate,
		SampleSize: w.SampleSize,
		Channels:   uint32(w.Channels),
	}, format, mix)
	if err != nil {
		return Sound{}, err
	}

	e.mu.Lock()
	e.sounds[stream.Buffer] = &soundEntry{wave: w, source: source}
	loaded := len(e.sounds)
	e.mu.Unlock()

	sound := Sound{Stream: stream, FrameCount: w.FrameCount}

	slog.Info("sound loaded",
		"source", source,
		"buffer", stream.Buffer,
		"frames", w.FrameCount,
		"sample_rate", w.SampleRate,
		"channels", w.Channels,
		"loaded_sounds", loaded)

	e.emit(Event{
		Kind:       EventSoundLoaded,
		Source:     source,
		Buffer:     stream.Buffer,
		Frames:     w.FrameCount,
		SampleRate: w.SampleRate,
		Channels:   uint32(w.Channels),
	})
	return sound, nil
}

// UnloadSound deregisters the sound's stream and then releases its wave.
// Unloading a sound twice is a no-op.
func (e *Engine) UnloadSound(s Sound) error {
	id := s.Stream.Buffer

	e.mu.Lock()
	entry, ok := e.sounds[id]
	if ok {
		delete(e.sounds, id)
	}
	e.mu.Unlock()

	if !ok {
		slog.Debug("attempted to unload sound that is not loaded", "buffer", id)
		return nil
	}

	if err := e.device.DeregisterBuffer(id); err != nil {
		slog.Error("failed to deregister stream", "buffer", id, "error", err)
		return err
	}
	entry.wave.Release()

	slog.Info("sound unloaded", "source", entry.source, "buffer", id)
	e.emit(Event{Kind: EventSoundUnloaded, Source: entry.source, Buffer: id})
	return nil
}

// lookup resolves a handle, checking device readiness first
func (e *Engine) lookup(s Sound) (*soundEntry, error) {
	if !e.device.IsReady() {
		return nil, device.ErrDeviceNotReady
	}

	e.mu.RLock()
	entry, ok := e.sounds[s.Stream.Buffer]
	e.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: buffer %d", ErrSoundUnloaded, s.Stream.Buffer)
	}
	return entry, nil
}

// PlaySound starts s from its first frame; a playing sound restarts.
func (e *Engine) PlaySound(s Sound) error {
	entry, err := e.lookup(s)
	if err != nil {
		slog.Error("cannot play sound", "buffer", s.Stream.Buffer, "error", err)
		return err
	}

	if err := e.device.Play(s.Stream.Buffer); err != nil {
		slog.Error("cannot play sound", "buffer", s.Stream.Buffer, "error", err)
		return err
	}

	slog.Debug("sound playing", "source", entry.source, "buffer", s.Stream.Buffer)
	e.emit(Event{
		Kind:       EventSoundPlayed,
		Source:     entry.source,
		Buffer:     s.Stream.Buffer,
		Frames:     s.FrameCount,
		SampleRate: s.Stream.SampleRate,
		Channels:   s.Stream.Channels,
	})
	return nil
}

// control runs a device operation on a loaded sound
func (e *Engine) control(s Sound, op func(id device.BufferID) error) error {
	if _, err := e.lookup(s); err != nil {
		return err
	}
	return op(s.Stream.Buffer)
}

// StopSound halts s and rewinds it
func (e *Engine) StopSound(s Sound) error {
	return e.control(s, e.device.Stop)
}

// PauseSound halts s without rewinding
func (e *Engine) PauseSound(s Sound) error {
	return e.control(s, e.device.Pause)
}

// ResumeSound continues a paused sound
func (e *Engine) ResumeSound(s Sound) error {
	return e.control(s, e.device.Resume)
}

// SetSoundVolume sets the gain of s in [0, 1]
func (e *Engine) SetSoundVolume(s Sound, volume float32) error {
	return e.control(s, func(id device.BufferID) error {
		return e.device.SetVolume(id, volume)
	})
}

// SetSoundPan sets the stereo position of s in [0, 1]; 0.5 is centered
func (e *Engine) SetSoundPan(s Sound, pan float32) error {
	return e.control(s, func(id device.BufferID) error {
		return e.device.SetPan(id, pan)
	})
}

// SetSoundLooping makes s wrap instead of finishing
func (e *Engine) SetSoundLooping(s Sound, looping bool) error {
	return e.control(s, func(id device.BufferID) error {
		return e.device.SetLooping(id, looping)
	})
}

// IsSoundPlaying reports whether s is currently being mixed
func (e *Engine) IsSoundPlaying(s Sound) bool {
	return e.SoundState(s) == StatePlaying
}

// SoundState reports the state of s. A sound whose stream was torn down by
// CloseAudioDevice reports StateUnloaded.
func (e *Engine) SoundState(s Sound) State {
	e.mu.RLock()
	_, ok := e.sounds[s.Stream.Buffer]
	e.mu.RUnlock()

	if !ok {
		return StateUnloaded
	}
	return e.device.State(s.Stream.Buffer)
}

// SoundCursor returns the next mixing-format frame of s
func (e *Engine) SoundCursor(s Sound) (uint32, error) {
	if _, err := e.lookup(s); err != nil {
		return 0, err
	}
	return e.device.Cursor(s.Stream.Buffer)
}

// SoundSource returns the path s was loaded from, or "" for waves
func (e *Engine) SoundSource(s Sound) string {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if entry, ok := e.sounds[s.Stream.Buffer]; ok {
		return entry.source
	}
	return ""
}

// LoadedSounds counts sounds not yet unloaded
func (e *Engine) LoadedSounds() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.sounds)
}

// SetMasterVolume sets the gain applied to the whole mix
func (e *Engine) SetMasterVolume(volume float32) error {
	return e.device.SetMasterVolume(volume)
}

// Close unloads every sound and closes the device
func (e *Engine) Close() error {
	e.mu.RLock()
	handles := make([]Sound, 0, len(e.sounds))
	for id := range e.sounds {
		handles = append(handles, Sound{Stream: device.Stream{Buffer: id}})
	}
	e.mu.RUnlock()

	for _, s := range handles {
		if err := e.UnloadSound(s); err != nil {
			slog.Warn("failed to unload sound during close", "buffer", s.Stream.Buffer, "error", err)
		}
	}
	return e.CloseAudioDevice()
}
