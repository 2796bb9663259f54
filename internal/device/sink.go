package device

import (
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// RenderFunc fills an interleaved float32 buffer with the next tick
type RenderFunc func(out []float32)

// Sink is a platform output that periodically pulls ticks from a RenderFunc
type Sink interface {
	// Open starts pulling from render. The returned format is what the sink
	// actually runs at and may differ from the request.
	Open(format Format, render RenderFunc) (Format, error)

	// Close stops pulling. No render call is in flight once it returns.
	Close() error

	// Name identifies the sink in logs and configuration
	Name() string
}

func withDefaults(format Format) Format {
	if format.SampleRate == 0 {
		format.SampleRate = DefaultSampleRate
	}
	if format.Channels == 0 {
		format.Channels = DefaultChannels
	}
	if format.BufferFrames == 0 {
		format.BufferFrames = DefaultBufferFrames
	}
	return format
}

// ManualSink renders only when Pull is called. It drives tests and offline
// rendering.
type ManualSink struct {
	mu     sync.Mutex
	format Format
	render RenderFunc
	open   bool
}

// NewManualSink creates a closed manual sink
func NewManualSink() *ManualSink {
	return &ManualSink{}
}

// Name returns "manual"
func (s *ManualSink) Name() string {
	return "manual"
}

// Open records render; nothing is pulled until Pull is called
func (s *ManualSink) Open(format Format, render RenderFunc) (Format, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.open {
		return Format{}, fmt.Errorf("manual sink is already open")
	}

	s.format = withDefaults(format)
	s.render = render
	s.open = true

	slog.Debug("manual sink opened",
		"sample_rate", s.format.SampleRate,
		"channels", s.format.Channels)
	return s.format, nil
}

// Close detaches the render function
func (s *ManualSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.open = false
	s.render = nil
	slog.Debug("manual sink closed")
	return nil
}

// Format returns the format the sink was opened with
func (s *ManualSink) Format() Format {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.format
}

// Pull renders frames frames on the calling goroutine and returns them
// interleaved.
func (s *ManualSink) Pull(frames int) ([]float32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.open {
		return nil, ErrSinkClosed
	}

	out := make([]float32, frames*int(s.format.Channels))
	s.render(out)
	return out, nil
}

// NullSink pulls ticks in real time and discards them. It stands in for an
// audio device on machines without one.
type NullSink struct {
	mu   sync.Mutex
	stop chan struct{}
	done chan struct{}
}

// NewNullSink creates a closed null sink
func NewNullSink() *NullSink {
	return &NullSink{}
}

// Name returns "null"
func (s *NullSink) Name() string {
	return "null"
}

// Open starts a goroutine rendering one buffer per buffer period
func (s *NullSink) Open(format Format, render RenderFunc) (Format, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stop != nil {
		return Format{}, fmt.Errorf("null sink is already open")
	}

	format = withDefaults(format)
	period := time.Duration(format.BufferFrames) * time.Second / time.Duration(format.SampleRate)
	buf := make([]float32, int(format.BufferFrames)*int(format.Channels))

	stop := make(chan struct{})
	done := make(chan struct{})
	s.stop, s.done = stop, done

	go func() {
		defer close(done)
		ticker := time.NewTicker(period)
		defer ticker.Stop()

		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				render(buf)
			}
		}
	}()

	slog.Debug("null sink opened", "period", period, "sample_rate", format.SampleRate)
	return format, nil
}

// Close stops the render goroutine and waits for it to exit
func (s *NullSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stop == nil {
		return nil
	}

	close(s.stop)
	<-s.done
	s.stop, s.done = nil, nil

	slog.Debug("null sink closed")
	return nil
}
