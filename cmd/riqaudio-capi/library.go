package main

import (
	"fmt"
	"log/slog"
	"math"
	"sync"

	"github.com/spf13/afero"

	"riqaudio.click/internal/audio"
	"riqaudio.click/internal/config"
	"riqaudio.click/internal/device"
	"riqaudio.click/internal/engine"
)

// library is the process-wide engine behind the exported functions. C callers
// have no handle to pass around, so exactly one exists per process.
type library struct {
	mu      sync.Mutex
	fs      afero.Fs
	configs *config.ConfigManager
	sinks   device.SinkFactory
	engine  *engine.Engine
}

var lib = newLibrary(afero.NewOsFs(), device.NewSinkFactory())

func newLibrary(fs afero.Fs, sinks device.SinkFactory) *library {
	return &library{
		fs:      fs,
		configs: config.NewConfigManagerWithFilesystem(fs),
		sinks:   sinks,
	}
}

// engineLocked builds the engine on first use from the user's config. The
// sink is created but not opened.
func (l *library) engineLocked() (*engine.Engine, error) {
	if l.engine != nil {
		return l.engine, nil
	}

	cfg, err := l.configs.LoadConfig()
	if err != nil {
		slog.Warn("falling back to default config", "error", err)
		cfg = l.configs.GetDefaultConfig()
	}
	cfg = l.configs.ApplyEnvironmentOverrides(cfg)
	if err := l.configs.ApplyLogLevel(cfg.LogLevel); err != nil {
		slog.Warn("invalid log level in config", "level", cfg.LogLevel, "error", err)
	}

	sink, err := l.sinks.CreateSink(cfg.AudioBackend)
	if err != nil {
		slog.Error("failed to create audio sink", "backend", cfg.AudioBackend, "error", err)
		return nil, fmt.Errorf("failed to create audio backend '%s': %w", cfg.AudioBackend, err)
	}

	dev := device.New(sink, device.Config{
		SampleRate:   cfg.SampleRate,
		Channels:     cfg.Channels,
		BufferFrames: cfg.BufferFrames,
	})
	e := engine.New(dev,
		engine.WithRegistry(audio.NewDefaultRegistryWithFilesystem(l.fs)),
		engine.WithResampleQuality(cfg.ResampleQuality))

	if err := e.SetMasterVolume(float32(cfg.Volume)); err != nil {
		slog.Warn("ignoring configured volume", "volume", cfg.Volume, "error", err)
	}

	l.engine = e
	return e, nil
}

func (l *library) withEngine(fn func(e *engine.Engine) error) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, err := l.engineLocked()
	if err != nil {
		return err
	}
	return fn(e)
}

func (l *library) initDevice() error {
	return l.withEngine(func(e *engine.Engine) error {
		return e.InitAudioDevice()
	})
}

// closeDevice does nothing when the device was never created
func (l *library) closeDevice() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.engine == nil {
		return nil
	}
	return l.engine.CloseAudioDevice()
}

func (l *library) ready() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.engine != nil && l.engine.IsReady()
}

func (l *library) loadSound(path string) (engine.Sound, error) {
	var sound engine.Sound
	err := l.withEngine(func(e *engine.Engine) error {
		var err error
		sound, err = e.LoadSound(path)
		return err
	})
	return sound, err
}

func (l *library) loadSoundFromWave(w *audio.Wave) (engine.Sound, error) {
	var sound engine.Sound
	err := l.withEngine(func(e *engine.Engine) error {
		var err error
		sound, err = e.LoadSoundFromWave(w)
		return err
	})
	return sound, err
}

func (l *library) unloadSound(s engine.Sound) error {
	return l.withEngine(func(e *engine.Engine) error {
		return e.UnloadSound(s)
	})
}

func (l *library) playSound(s engine.Sound) error {
	return l.withEngine(func(e *engine.Engine) error {
		return e.PlaySound(s)
	})
}

func (l *library) loadWave(path string) (*audio.Wave, error) {
	var wave *audio.Wave
	err := l.withEngine(func(e *engine.Engine) error {
		var err error
		wave, err = e.LoadWave(path)
		return err
	})
	return wave, err
}

func (l *library) loadWaveFromMemory(fileType string, data []byte) (*audio.Wave, error) {
	var wave *audio.Wave
	err := l.withEngine(func(e *engine.Engine) error {
		var err error
		wave, err = e.LoadWaveFromMemory(fileType, data)
		return err
	})
	return wave, err
}

// waveDataSize is the byte length a C wave header describes. It must fit the
// C int that cgo copies with.
func waveDataSize(frameCount, sampleSize, channels uint32) (int, error) {
	if sampleSize != 8 && sampleSize != 16 && sampleSize != 32 {
		return 0, fmt.Errorf("%w: sample size %d", audio.ErrInvalidWaveFormat, sampleSize)
	}
	if channels < 1 || channels > math.MaxInt32 {
		return 0, fmt.Errorf("%w: %d channels", audio.ErrCorruptData, channels)
	}
	frameBytes := uint64(frameCount) * uint64(sampleSize/8)
	if frameBytes > math.MaxInt32/uint64(channels) {
		return 0, fmt.Errorf("%w: %d frames of %d channels exceed %d bytes",
			audio.ErrCorruptData, frameCount, channels, math.MaxInt32)
	}
	return int(frameBytes * uint64(channels)), nil
}
