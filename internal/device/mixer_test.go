package device

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const centerGain = 0.6875

func registerPlaying(t *testing.T, d *Device, data []float32) BufferID {
	t.Helper()
	format, err := d.Format()
	require.NoError(t, err)

	stream, err := d.RegisterBuffer(SourceFormat{SampleRate: format.SampleRate, SampleSize: 32, Channels: format.Channels}, format, data)
	require.NoError(t, err)
	require.NoError(t, d.Play(stream.Buffer))
	return stream.Buffer
}

func TestMixSilenceWithoutBuffers(t *testing.T) {
	_, sink := newReadyDevice(t, Config{})

	out, err := sink.Pull(64)
	require.NoError(t, err)
	assert.Len(t, out, 128)
	for _, s := range out {
		assert.Zero(t, s)
	}
}

func TestMixCenterPanLaw(t *testing.T) {
	d, sink := newReadyDevice(t, Config{})
	registerPlaying(t, d, stereoFrames(16, 0.5))

	out, err := sink.Pull(4)
	require.NoError(t, err)
	for i, s := range out {
		assert.InDelta(t, 0.5*centerGain, s, 1e-6, "sample %d", i)
	}
}

func TestMixHardPan(t *testing.T) {
	d, sink := newReadyDevice(t, Config{})
	id := registerPlaying(t, d, stereoFrames(16, 0.5))

	require.NoError(t, d.SetPan(id, 1))
	out, err := sink.Pull(1)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, out[0], 1e-6)
	assert.InDelta(t, 0.0, out[1], 1e-6)

	require.NoError(t, d.SetPan(id, 0))
	out, err = sink.Pull(1)
	require.NoError(t, err)
	assert.InDelta(t, 0.0, out[0], 1e-6)
	assert.InDelta(t, 0.5, out[1], 1e-6)
}

func TestMixVolumesAndClamp(t *testing.T) {
	d, sink := newReadyDevice(t, Config{})
	a := registerPlaying(t, d, stereoFrames(8, 1))
	b := registerPlaying(t, d, stereoFrames(8, 1))

	require.NoError(t, d.SetPan(a, 1))
	require.NoError(t, d.SetPan(b, 1))

	out, err := sink.Pull(1)
	require.NoError(t, err)
	assert.Equal(t, float32(1), out[0], "sum of two full-scale buffers clamps to 1")
	assert.Equal(t, float32(0), out[1])

	require.NoError(t, d.SetVolume(a, 0.25))
	require.NoError(t, d.SetVolume(b, 0.25))
	require.NoError(t, d.SetMasterVolume(0.5))

	out, err = sink.Pull(1)
	require.NoError(t, err)
	assert.InDelta(t, 0.25, out[0], 1e-6)
}

func TestMixMonoDevice(t *testing.T) {
	d, sink := newReadyDevice(t, Config{Channels: 1})
	require.Equal(t, uint32(1), d.Channels())

	id := registerPlaying(t, d, []float32{0.5, 0.5, 0.5})
	require.NoError(t, d.SetVolume(id, 0.8))
	require.NoError(t, d.SetPan(id, 0))

	out, err := sink.Pull(2)
	require.NoError(t, err)
	assert.Len(t, out, 2)
	assert.InDelta(t, 0.4, out[0], 1e-6)
	assert.InDelta(t, 0.4, out[1], 1e-6)
}

func TestMixOneShotFinishes(t *testing.T) {
	d, sink := newReadyDevice(t, Config{})
	id := registerPlaying(t, d, stereoFrames(3, 1))
	require.NoError(t, d.SetPan(id, 1))

	out, err := sink.Pull(2)
	require.NoError(t, err)
	assert.Equal(t, StatePlaying, d.State(id))
	cursor, err := d.Cursor(id)
	require.NoError(t, err)
	assert.Equal(t, uint32(2), cursor)
	assert.Equal(t, float32(1), out[2])

	out, err = sink.Pull(4)
	require.NoError(t, err)
	assert.Equal(t, float32(1), out[0], "last frame is still mixed")
	assert.Equal(t, float32(0), out[2], "nothing after the end")

	assert.Equal(t, StateFinished, d.State(id))
	cursor, err = d.Cursor(id)
	require.NoError(t, err)
	assert.Equal(t, uint32(0), cursor)

	// Finished buffers stay registered and can be replayed
	require.NoError(t, d.Play(id))
	assert.Equal(t, StatePlaying, d.State(id))
}

func TestMixLoopingWraps(t *testing.T) {
	d, sink := newReadyDevice(t, Config{})
	data := []float32{0.1, 0.1, 0.2, 0.2, 0.3, 0.3}
	id := registerPlaying(t, d, data)
	require.NoError(t, d.SetLooping(id, true))
	require.NoError(t, d.SetPan(id, 1))

	out, err := sink.Pull(7)
	require.NoError(t, err)

	want := []float32{0.1, 0.2, 0.3, 0.1, 0.2, 0.3, 0.1}
	for i, w := range want {
		assert.InDelta(t, w, out[i*2], 1e-6, "frame %d", i)
	}
	assert.Equal(t, StatePlaying, d.State(id))

	cursor, err := d.Cursor(id)
	require.NoError(t, err)
	assert.Equal(t, uint32(1), cursor)
}

func TestMixPauseResumeStop(t *testing.T) {
	d, sink := newReadyDevice(t, Config{})
	data := []float32{0.1, 0.1, 0.2, 0.2, 0.3, 0.3, 0.4, 0.4}
	id := registerPlaying(t, d, data)
	require.NoError(t, d.SetPan(id, 1))

	_, err := sink.Pull(1)
	require.NoError(t, err)

	require.NoError(t, d.Pause(id))
	assert.Equal(t, StatePaused, d.State(id))

	out, err := sink.Pull(2)
	require.NoError(t, err)
	assert.Equal(t, []float32{0, 0, 0, 0}, out)

	require.NoError(t, d.Resume(id))
	out, err = sink.Pull(1)
	require.NoError(t, err)
	assert.InDelta(t, 0.2, out[0], 1e-6)

	require.NoError(t, d.Stop(id))
	assert.Equal(t, StateLoaded, d.State(id))
	cursor, err := d.Cursor(id)
	require.NoError(t, err)
	assert.Equal(t, uint32(0), cursor)

	// Resume only affects paused buffers
	require.NoError(t, d.Resume(id))
	assert.Equal(t, StateLoaded, d.State(id))
}

func TestMixProcessors(t *testing.T) {
	d, sink := newReadyDevice(t, Config{})
	id := registerPlaying(t, d, stereoFrames(32, 0.25))
	require.NoError(t, d.SetPan(id, 1))

	double := func(frames []float32, frameCount int) {
		for i := range frames[:frameCount*2] {
			frames[i] *= 2
		}
	}

	var mixedCalls int
	halve := func(frames []float32, frameCount int) {
		mixedCalls++
		for i := range frames[:frameCount*2] {
			frames[i] *= 0.5
		}
	}

	pid, err := d.AttachProcessor(id, double)
	require.NoError(t, err)
	out, err := sink.Pull(1)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, out[0], 1e-6)

	mid, err := d.AttachMixedProcessor(halve)
	require.NoError(t, err)
	out, err = sink.Pull(1)
	require.NoError(t, err)
	assert.InDelta(t, 0.25, out[0], 1e-6)
	assert.Equal(t, 1, mixedCalls)

	require.NoError(t, d.DetachProcessor(id, pid))
	d.DetachMixedProcessor(mid)
	out, err = sink.Pull(1)
	require.NoError(t, err)
	assert.InDelta(t, 0.25, out[0], 1e-6)
	assert.Equal(t, 1, mixedCalls)

	// The source buffer is never modified by processors
	_, err = d.AttachProcessor(id, double)
	require.NoError(t, err)
	require.NoError(t, d.Play(id))
	for i := 0; i < 3; i++ {
		out, err = sink.Pull(1)
		require.NoError(t, err)
		assert.InDelta(t, 0.5, out[0], 1e-6)
	}

	_, err = d.AttachProcessor(id, nil)
	assert.ErrorIs(t, err, ErrInvalidBuffer)
}

func TestMixConcurrentRegistration(t *testing.T) {
	d, sink := newReadyDevice(t, Config{})
	format, err := d.Format()
	require.NoError(t, err)

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
				if _, err := sink.Pull(128); err != nil {
					t.Errorf("pull failed: %v", err)
					return
				}
			}
		}
	}()

	for i := 0; i < 200; i++ {
		stream, err := d.RegisterBuffer(SourceFormat{}, format, stereoFrames(256, 0.2))
		require.NoError(t, err)
		require.NoError(t, d.Play(stream.Buffer))
		require.NoError(t, d.DeregisterBuffer(stream.Buffer))
	}

	close(stop)
	wg.Wait()
	assert.Equal(t, 0, d.ActiveBuffers())
}

func TestPanGains(t *testing.T) {
	l, r := panGains(1, 0.5)
	assert.InDelta(t, centerGain, l, 1e-6)
	assert.InDelta(t, centerGain, r, 1e-6)

	l, r = panGains(0.5, 1)
	assert.InDelta(t, 0.5, l, 1e-6)
	assert.InDelta(t, 0, r, 1e-6)
}
