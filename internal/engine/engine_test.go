package engine

import (
	"encoding/binary"
	"math"
	"sync"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"riqaudio.click/internal/audio"
	"riqaudio.click/internal/device"
)

// sineWave builds a 16-bit mono wave of the given length
func sineWave(t *testing.T, sampleRate uint32, frames int) *audio.Wave {
	t.Helper()
	data := make([]byte, frames*2)
	for i := 0; i < frames; i++ {
		s := int16(12000 * math.Sin(2*math.Pi*440*float64(i)/float64(sampleRate)))
		binary.LittleEndian.PutUint16(data[i*2:], uint16(s))
	}
	w, err := audio.NewWave(sampleRate, 16, 1, data)
	require.NoError(t, err)
	return w
}

type fixture struct {
	engine *Engine
	sink   *device.ManualSink
	fs     afero.Fs
	events *eventRecorder
}

type eventRecorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *eventRecorder) OnEvent(event Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *eventRecorder) kinds() []EventKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	kinds := make([]EventKind, len(r.events))
	for i, e := range r.events {
		kinds[i] = e.Kind
	}
	return kinds
}

func (r *eventRecorder) last() Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.events[len(r.events)-1]
}

// newFixture builds an engine over a 44.1 kHz stereo manual sink with
// click.wav, a tenth of a second at 22.05 kHz, on an in-memory filesystem
func newFixture(t *testing.T, initDevice bool) *fixture {
	t.Helper()

	fs := afero.NewMemMapFs()
	require.NoError(t, audio.ExportWave(fs, sineWave(t, 22050, 2205), "click.wav"))

	sink := device.NewManualSink()
	events := &eventRecorder{}
	e := New(device.New(sink, device.Config{SampleRate: 44100, Channels: 2}),
		WithRegistry(audio.NewDefaultRegistryWithFilesystem(fs)),
		WithHook(events))

	if initDevice {
		require.NoError(t, e.InitAudioDevice())
	}
	t.Cleanup(func() { _ = e.Close() })

	return &fixture{engine: e, sink: sink, fs: fs, events: events}
}

func TestLoadPlayUnloadScenario(t *testing.T) {
	f := newFixture(t, true)
	e := f.engine

	sound, err := e.LoadSound("click.wav")
	require.NoError(t, err)

	assert.Equal(t, uint32(2205), sound.FrameCount)
	assert.Equal(t, uint32(22050), sound.Stream.SampleRate)
	assert.Equal(t, uint32(16), sound.Stream.SampleSize)
	assert.Equal(t, uint32(1), sound.Stream.Channels)
	assert.Equal(t, StateLoaded, e.SoundState(sound))
	assert.Equal(t, "click.wav", e.SoundSource(sound))

	require.NoError(t, e.PlaySound(sound))
	assert.True(t, e.IsSoundPlaying(sound))

	out, err := f.sink.Pull(512)
	require.NoError(t, err)

	var peak float32
	for _, s := range out {
		peak = max(peak, float32(math.Abs(float64(s))))
	}
	assert.Greater(t, peak, float32(0.1), "the mix carries the sound")
	assert.LessOrEqual(t, peak, float32(1))

	cursor, err := e.SoundCursor(sound)
	require.NoError(t, err)
	assert.Equal(t, uint32(512), cursor)

	// 2205 frames at 22.05 kHz are about 4410 frames at 44.1 kHz
	_, err = f.sink.Pull(8192)
	require.NoError(t, err)
	assert.Equal(t, StateFinished, e.SoundState(sound))
	assert.False(t, e.IsSoundPlaying(sound))

	require.NoError(t, e.UnloadSound(sound))
	require.NoError(t, e.UnloadSound(sound), "second unload is a no-op")

	assert.Equal(t, StateUnloaded, e.SoundState(sound))
	assert.ErrorIs(t, e.PlaySound(sound), ErrSoundUnloaded)
	assert.Equal(t, 0, e.LoadedSounds())
	assert.Equal(t, 0, e.Device().ActiveBuffers())

	assert.Equal(t, []EventKind{EventSoundLoaded, EventSoundPlayed, EventSoundUnloaded}, f.events.kinds())
}

func TestClickAtDeviceRate(t *testing.T) {
	tests := []struct {
		name  string
		pulls []int
	}{
		{"single tick", []int{4410}},
		{"default buffer ticks", []int{512, 512, 512, 512, 512, 512, 512, 512, 314}},
		{"last frame alone", []int{4409, 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, true)
			e := f.engine
			require.NoError(t, audio.ExportWave(f.fs, sineWave(t, 44100, 4410), "click.wav"))

			sound, err := e.LoadSound("click.wav")
			require.NoError(t, err)
			assert.Equal(t, uint32(4410), sound.FrameCount)
			assert.Equal(t, uint32(44100), sound.Stream.SampleRate)

			require.NoError(t, e.PlaySound(sound))

			mixed := 0
			for i, n := range tt.pulls {
				_, err := f.sink.Pull(n)
				require.NoError(t, err)
				mixed += n
				if i < len(tt.pulls)-1 {
					assert.Equal(t, StatePlaying, e.SoundState(sound), "still playing after %d frames", mixed)
				}
			}
			require.Equal(t, 4410, mixed)
			assert.Equal(t, StateFinished, e.SoundState(sound))

			require.NoError(t, e.PlaySound(sound))
			assert.Equal(t, StatePlaying, e.SoundState(sound))
			cursor, err := e.SoundCursor(sound)
			require.NoError(t, err)
			assert.Equal(t, uint32(0), cursor)

			_, err = f.sink.Pull(100)
			require.NoError(t, err)
			cursor, err = e.SoundCursor(sound)
			require.NoError(t, err)
			assert.Equal(t, uint32(100), cursor)

			require.NoError(t, e.PlaySound(sound), "playing a playing sound restarts it")
			cursor, err = e.SoundCursor(sound)
			require.NoError(t, err)
			assert.Equal(t, uint32(0), cursor)

			_, err = e.LoadSound("missing.ogg")
			assert.ErrorIs(t, err, audio.ErrIO)
			assert.True(t, e.IsReady(), "a failed load leaves the device ready")
			assert.Equal(t, StatePlaying, e.SoundState(sound))
		})
	}
}

func TestLoadSoundFailures(t *testing.T) {
	t.Run("device not ready", func(t *testing.T) {
		f := newFixture(t, false)

		_, err := f.engine.LoadSound("click.wav")
		assert.ErrorIs(t, err, device.ErrDeviceNotReady)
		assert.Equal(t, EventLoadFailed, f.events.last().Kind)
	})

	t.Run("missing file leaves device ready", func(t *testing.T) {
		f := newFixture(t, true)

		sound, err := f.engine.LoadSound("missing.ogg")
		assert.ErrorIs(t, err, audio.ErrIO)
		assert.Equal(t, Sound{}, sound)
		assert.True(t, f.engine.IsReady())
		assert.Equal(t, 0, f.engine.LoadedSounds())

		failed := f.events.last()
		assert.Equal(t, EventLoadFailed, failed.Kind)
		assert.Equal(t, "missing.ogg", failed.Source)
		assert.ErrorIs(t, failed.Err, audio.ErrIO)
	})

	t.Run("unknown format", func(t *testing.T) {
		f := newFixture(t, true)
		require.NoError(t, afero.WriteFile(f.fs, "notes.txt", []byte("just some text"), 0644))

		_, err := f.engine.LoadSound("notes.txt")
		assert.ErrorIs(t, err, audio.ErrUnsupportedFormat)
	})

	t.Run("path truncated at NUL", func(t *testing.T) {
		f := newFixture(t, true)

		sound, err := f.engine.LoadSound("click.wav\x00trailing")
		require.NoError(t, err)
		assert.Equal(t, "click.wav", f.engine.SoundSource(sound))
	})
}

func TestLoadSoundFromWave(t *testing.T) {
	f := newFixture(t, true)
	e := f.engine

	w := sineWave(t, 44100, 441)
	original := append([]byte(nil), w.Data...)

	sound, err := e.LoadSoundFromWave(w)
	require.NoError(t, err)
	assert.Equal(t, uint32(441), sound.FrameCount)
	assert.Equal(t, "", e.SoundSource(sound))

	require.NoError(t, e.UnloadSound(sound))

	assert.False(t, w.IsReleased(), "the caller keeps its wave")
	assert.Equal(t, original, w.Data)

	t.Run("24-bit wave rejected", func(t *testing.T) {
		bad := &audio.Wave{FrameCount: 2, SampleRate: 44100, SampleSize: 24, Channels: 1, Data: make([]byte, 6)}
		_, err := e.LoadSoundFromWave(bad)
		assert.ErrorIs(t, err, audio.ErrInvalidWaveFormat)
	})

	t.Run("released wave rejected", func(t *testing.T) {
		released := sineWave(t, 44100, 10)
		e.UnloadWave(released)
		_, err := e.LoadSoundFromWave(released)
		assert.ErrorIs(t, err, audio.ErrInvalidWaveFormat)
	})
}

func TestWaveOperationsWithoutDevice(t *testing.T) {
	f := newFixture(t, false)

	w, err := f.engine.LoadWave("click.wav")
	require.NoError(t, err)
	assert.Equal(t, uint32(2205), w.FrameCount)

	data, err := afero.ReadFile(f.fs, "click.wav")
	require.NoError(t, err)

	fromMemory, err := f.engine.LoadWaveFromMemory(".wav", data)
	require.NoError(t, err)
	assert.Equal(t, w.Data, fromMemory.Data)

	f.engine.UnloadWave(w)
	f.engine.UnloadWave(w)
	assert.True(t, w.IsReleased())

	_, err = f.engine.LoadSoundFromWave(fromMemory)
	assert.ErrorIs(t, err, device.ErrDeviceNotReady)
}

func TestSoundsAcrossDeviceRestart(t *testing.T) {
	f := newFixture(t, true)
	e := f.engine

	sound, err := e.LoadSound("click.wav")
	require.NoError(t, err)
	require.NoError(t, e.PlaySound(sound))

	require.NoError(t, e.CloseAudioDevice())
	require.NoError(t, e.CloseAudioDevice())

	assert.Equal(t, StateUnloaded, e.SoundState(sound))
	assert.ErrorIs(t, e.PlaySound(sound), device.ErrDeviceNotReady)
	assert.ErrorIs(t, e.SetSoundVolume(sound, 0.5), device.ErrDeviceNotReady)

	require.NoError(t, e.InitAudioDevice())
	assert.ErrorIs(t, e.PlaySound(sound), device.ErrStreamNotFound)

	// The handle still unloads cleanly and the wave is released
	require.NoError(t, e.UnloadSound(sound))
	assert.Equal(t, 0, e.LoadedSounds())
}

func TestPlaybackControls(t *testing.T) {
	f := newFixture(t, true)
	e := f.engine

	sound, err := e.LoadSound("click.wav")
	require.NoError(t, err)

	require.NoError(t, e.SetSoundVolume(sound, 0.5))
	require.NoError(t, e.SetSoundPan(sound, 0.25))
	require.NoError(t, e.SetSoundLooping(sound, true))
	assert.ErrorIs(t, e.SetSoundVolume(sound, 3), device.ErrInvalidVolume)
	assert.ErrorIs(t, e.SetSoundPan(sound, -1), device.ErrInvalidPan)

	require.NoError(t, e.PlaySound(sound))
	_, err = f.sink.Pull(256)
	require.NoError(t, err)

	require.NoError(t, e.PauseSound(sound))
	assert.Equal(t, StatePaused, e.SoundState(sound))

	require.NoError(t, e.ResumeSound(sound))
	assert.Equal(t, StatePlaying, e.SoundState(sound))

	// Looping sounds never finish
	_, err = f.sink.Pull(20000)
	require.NoError(t, err)
	assert.Equal(t, StatePlaying, e.SoundState(sound))

	require.NoError(t, e.StopSound(sound))
	assert.Equal(t, StateLoaded, e.SoundState(sound))
	cursor, err := e.SoundCursor(sound)
	require.NoError(t, err)
	assert.Equal(t, uint32(0), cursor)

	require.NoError(t, e.SetMasterVolume(0.3))
	assert.Equal(t, float32(0.3), e.Device().MasterVolume())
}

func TestManyLoadsGetDistinctHandles(t *testing.T) {
	f := newFixture(t, true)
	e := f.engine

	seen := make(map[device.BufferID]bool)
	for i := 0; i < 20; i++ {
		sound, err := e.LoadSound("click.wav")
		require.NoError(t, err)
		assert.False(t, seen[sound.Stream.Buffer], "buffer id reused")
		seen[sound.Stream.Buffer] = true
		if i%2 == 0 {
			require.NoError(t, e.UnloadSound(sound))
		}
	}
	assert.Equal(t, 10, e.LoadedSounds())

	require.NoError(t, e.Close())
	assert.Equal(t, 0, e.LoadedSounds())
	assert.False(t, e.IsReady())
}

func TestConcurrentUnloadWhileMixing(t *testing.T) {
	f := newFixture(t, true)
	e := f.engine

	sounds := make([]Sound, 16)
	for i := range sounds {
		sound, err := e.LoadSound("click.wav")
		require.NoError(t, err)
		require.NoError(t, e.SetSoundLooping(sound, true))
		require.NoError(t, e.PlaySound(sound))
		sounds[i] = sound
	}

	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
				if _, err := f.sink.Pull(256); err != nil {
					t.Errorf("pull failed: %v", err)
					return
				}
			}
		}
	}()

	var unloaders sync.WaitGroup
	for _, s := range sounds {
		unloaders.Add(1)
		go func(s Sound) {
			defer unloaders.Done()
			if err := e.UnloadSound(s); err != nil {
				t.Errorf("unload failed: %v", err)
			}
		}(s)
	}
	unloaders.Wait()

	close(stop)
	wg.Wait()

	assert.Equal(t, 0, e.LoadedSounds())
	assert.Equal(t, 0, e.Device().ActiveBuffers())
}

func TestHookPanicDoesNotBreakEngine(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, audio.ExportWave(fs, sineWave(t, 44100, 100), "beep.wav"))

	var calls int
	e := New(device.New(device.NewManualSink(), device.Config{}),
		WithRegistry(audio.NewDefaultRegistryWithFilesystem(fs)),
		WithHook(EventHookFunc(func(Event) { panic("boom") })),
		WithHook(EventHookFunc(func(Event) { calls++ })),
		WithHook(nil))
	require.NoError(t, e.InitAudioDevice())
	defer e.Close()

	sound, err := e.LoadSound("beep.wav")
	require.NoError(t, err)
	require.NoError(t, e.PlaySound(sound))
	assert.Equal(t, 2, calls)
}
