//go:build cgo

package device

import (
	"encoding/binary"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"
)

// oto allows a single context per process, so it outlives any one sink
var (
	otoOnce   sync.Once
	otoCtx    *oto.Context
	otoFormat Format
	otoErr    error
)

func sharedOtoContext(format Format) (*oto.Context, Format, error) {
	otoOnce.Do(func() {
		op := &oto.NewContextOptions{
			SampleRate:   int(format.SampleRate),
			ChannelCount: int(format.Channels),
			Format:       oto.FormatFloat32LE,
			BufferSize:   time.Duration(format.BufferFrames) * time.Second / time.Duration(format.SampleRate),
		}

		ctx, readyChan, err := oto.NewContext(op)
		if err != nil {
			otoErr = fmt.Errorf("failed to create oto context: %w", err)
			return
		}
		<-readyChan

		otoCtx = ctx
		otoFormat = format
	})
	return otoCtx, otoFormat, otoErr
}

// OtoSink plays through ebitengine/oto
type OtoSink struct {
	mu     sync.Mutex
	player *oto.Player
}

func newOtoSink() (Sink, error) {
	return &OtoSink{}, nil
}

// Name returns "oto"
func (s *OtoSink) Name() string {
	return "oto"
}

// Open starts a player that reads ticks from render. Once the process-wide
// context exists its format wins over the request.
func (s *OtoSink) Open(format Format, render RenderFunc) (Format, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.player != nil {
		return Format{}, fmt.Errorf("oto sink is already open")
	}

	format = withDefaults(format)
	ctx, actual, err := sharedOtoContext(format)
	if err != nil {
		slog.Error("oto context unavailable", "error", err)
		return Format{}, err
	}

	if actual.SampleRate != format.SampleRate || actual.Channels != format.Channels {
		slog.Warn("oto cannot be reinitialized, keeping existing format",
			"requested_rate", format.SampleRate,
			"requested_channels", format.Channels,
			"sample_rate", actual.SampleRate,
			"channels", actual.Channels)
	}

	if err := ctx.Resume(); err != nil {
		return Format{}, fmt.Errorf("failed to resume oto context: %w", err)
	}

	s.player = ctx.NewPlayer(&mixReader{render: render, channels: int(actual.Channels)})
	s.player.Play()

	slog.Debug("oto player started", "sample_rate", actual.SampleRate, "channels", actual.Channels)
	return actual, nil
}

// Close stops the player and suspends the shared context
func (s *OtoSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.player == nil {
		return nil
	}

	err := s.player.Close()
	s.player = nil
	if err != nil {
		return fmt.Errorf("failed to close oto player: %w", err)
	}

	if err := otoCtx.Suspend(); err != nil {
		return fmt.Errorf("failed to suspend oto context: %w", err)
	}
	return nil
}

// mixReader adapts a RenderFunc to the io.Reader oto pulls float32 bytes from
type mixReader struct {
	render   RenderFunc
	channels int
	scratch  []float32
}

func (r *mixReader) Read(p []byte) (int, error) {
	frames := len(p) / (4 * r.channels)
	if frames == 0 {
		return 0, nil
	}

	n := frames * r.channels
	if cap(r.scratch) < n {
		r.scratch = make([]float32, n)
	}
	buf := r.scratch[:n]
	r.render(buf)

	for i, v := range buf {
		binary.LittleEndian.PutUint32(p[i*4:], math.Float32bits(v))
	}
	return n * 4, nil
}
