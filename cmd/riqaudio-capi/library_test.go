package main

import (
	"bytes"
	"math"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"riqaudio.click/internal/audio"
	"riqaudio.click/internal/device"
	"riqaudio.click/internal/engine"
)

// manualSinks hands out manual sinks whatever backend is configured
type manualSinks struct {
	created []*device.ManualSink
}

func (m *manualSinks) CreateSink(kind string) (device.Sink, error) {
	sink := device.NewManualSink()
	m.created = append(m.created, sink)
	return sink, nil
}

func (m *manualSinks) GetSupportedSinks() []string { return []string{device.SinkManual} }

func (m *manualSinks) IsValidSinkType(kind string) bool { return kind == device.SinkManual }

func testWave(t *testing.T) *audio.Wave {
	t.Helper()
	data := make([]byte, 441*2)
	for i := range data {
		data[i] = byte(i)
	}
	w, err := audio.NewWave(44100, 16, 1, data)
	require.NoError(t, err)
	return w
}

func newTestLibrary(t *testing.T) (*library, afero.Fs, *manualSinks) {
	t.Helper()
	t.Setenv("RIQAUDIO_LOG_LEVEL", "error")

	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll("/sounds", 0755))
	require.NoError(t, audio.ExportWave(fs, testWave(t), "/sounds/click.wav"))

	sinks := &manualSinks{}
	l := newLibrary(fs, sinks)
	t.Cleanup(func() {
		if l.engine != nil {
			l.engine.Close()
		}
	})
	return l, fs, sinks
}

func TestLibraryLifecycle(t *testing.T) {
	l, _, sinks := newTestLibrary(t)

	assert.False(t, l.ready())
	assert.NoError(t, l.closeDevice(), "closing before init is a no-op")

	_, err := l.loadSound("/sounds/click.wav")
	assert.ErrorIs(t, err, device.ErrDeviceNotReady)

	require.NoError(t, l.initDevice())
	require.NoError(t, l.initDevice())
	assert.True(t, l.ready())
	assert.Len(t, sinks.created, 1, "the engine is built once per process")

	sound, err := l.loadSound("/sounds/click.wav")
	require.NoError(t, err)
	assert.Equal(t, uint32(441), sound.FrameCount)
	assert.Equal(t, uint32(44100), sound.Stream.SampleRate)

	require.NoError(t, l.playSound(sound))
	assert.True(t, l.engine.IsSoundPlaying(sound))

	require.NoError(t, l.unloadSound(sound))
	require.NoError(t, l.unloadSound(sound))
	assert.ErrorIs(t, l.playSound(sound), engine.ErrSoundUnloaded)

	require.NoError(t, l.closeDevice())
	assert.False(t, l.ready())
}

func TestLibraryLoadSoundTruncatesAtNUL(t *testing.T) {
	l, _, _ := newTestLibrary(t)
	require.NoError(t, l.initDevice())

	sound, err := l.loadSound("/sounds/click.wav\x00.ogg")
	require.NoError(t, err)
	assert.Equal(t, uint32(441), sound.FrameCount)
}

func TestLibraryWaves(t *testing.T) {
	l, fs, _ := newTestLibrary(t)

	// waves decode without an initialized device
	w, err := l.loadWave("/sounds/click.wav")
	require.NoError(t, err)
	assert.Equal(t, uint32(441), w.FrameCount)
	assert.Len(t, w.Data, w.ExpectedDataSize())

	raw, err := afero.ReadFile(fs, "/sounds/click.wav")
	require.NoError(t, err)

	mem, err := l.loadWaveFromMemory(".wav\x00trailing", raw)
	require.NoError(t, err)
	assert.True(t, bytes.Equal(w.Data, mem.Data))

	_, err = l.loadWave("/sounds/missing.ogg")
	assert.ErrorIs(t, err, audio.ErrIO)

	_, err = l.loadWaveFromMemory(".xm", []byte("extended module data"))
	assert.ErrorIs(t, err, audio.ErrUnsupportedFormat)
}

func TestLibraryLoadSoundFromWave(t *testing.T) {
	l, _, _ := newTestLibrary(t)
	require.NoError(t, l.initDevice())

	w := testWave(t)
	sound, err := l.loadSoundFromWave(w)
	require.NoError(t, err)
	assert.Equal(t, w.FrameCount, sound.FrameCount)

	w.Release()
	require.NoError(t, l.playSound(sound), "the engine keeps its own copy")

	bad := &audio.Wave{FrameCount: 1, SampleRate: 44100, SampleSize: 24, Channels: 1, Data: make([]byte, 3)}
	_, err = l.loadSoundFromWave(bad)
	assert.ErrorIs(t, err, audio.ErrInvalidWaveFormat)
}

func TestWaveDataSize(t *testing.T) {
	tests := []struct {
		name                         string
		frames, sampleSize, channels uint32
		want                         int
		wantErr                      error
	}{
		{"8-bit mono", 100, 8, 1, 100, nil},
		{"16-bit stereo", 100, 16, 2, 400, nil},
		{"32-bit stereo", 10, 32, 2, 80, nil},
		{"no frames", 0, 16, 2, 0, nil},
		{"largest copyable size", math.MaxInt32, 8, 1, math.MaxInt32, nil},
		{"24-bit is not describable", 100, 24, 2, 0, audio.ErrInvalidWaveFormat},
		{"zero sample size", 100, 0, 2, 0, audio.ErrInvalidWaveFormat},
		{"zero channels", 100, 16, 0, 0, audio.ErrCorruptData},
		{"channels with the sign bit set", 100, 16, 1 << 31, 0, audio.ErrCorruptData},
		{"all channel bits set", 1, 8, math.MaxUint32, 0, audio.ErrCorruptData},
		{"one byte past the C int", math.MaxInt32 + 1, 8, 1, 0, audio.ErrCorruptData},
		{"size wraps to zero as a C int", 1 << 29, 32, 2, 0, audio.ErrCorruptData},
		{"size wraps negative as a C int", 3 << 29, 16, 2, 0, audio.ErrCorruptData},
		{"largest header", math.MaxUint32, 32, math.MaxInt32, 0, audio.ErrCorruptData},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := waveDataSize(tt.frames, tt.sampleSize, tt.channels)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
