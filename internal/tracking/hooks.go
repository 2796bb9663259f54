package tracking

import (
	"log/slog"

	"riqaudio.click/internal/engine"
)

// SlogHook provides structured logging of engine events for debugging
type SlogHook struct {
	logger *slog.Logger
}

// NewSlogHook creates a new SlogHook with the given logger
// If logger is nil, uses the default logger
func NewSlogHook(logger *slog.Logger) *SlogHook {
	if logger == nil {
		logger = slog.Default()
	}
	return &SlogHook{
		logger: logger,
	}
}

// OnEvent logs the event at debug level
func (s *SlogHook) OnEvent(event engine.Event) {
	s.logger.Debug("engine event",
		"kind", event.Kind,
		"source", event.Source,
		"buffer", event.Buffer,
		"frames", event.Frames,
		"sample_rate", event.SampleRate,
		"channels", event.Channels,
		"error", event.Err,
	)
}

// NopHook provides a no-operation hook for disabled modes
type NopHook struct{}

// NewNopHook creates a new NopHook that does nothing
func NewNopHook() *NopHook {
	return &NopHook{}
}

// OnEvent does nothing
func (n *NopHook) OnEvent(engine.Event) {}
