package engine

import (
	"log/slog"
	"time"

	"riqaudio.click/internal/device"
)

// EventKind names something the engine did
type EventKind string

const (
	EventSoundLoaded   EventKind = "sound_loaded"
	EventSoundPlayed   EventKind = "sound_played"
	EventSoundUnloaded EventKind = "sound_unloaded"
	EventLoadFailed    EventKind = "load_failed"
)

// Event describes one engine operation. Source is empty for sounds loaded
// from in-memory waves.
type Event struct {
	Kind       EventKind
	Time       time.Time
	Source     string
	Buffer     device.BufferID
	Frames     uint32
	SampleRate uint32
	Channels   uint32
	Err        error
}

// EventHook is notified after an engine operation. Hooks run on the caller's
// goroutine with no engine locks held.
type EventHook interface {
	OnEvent(event Event)
}

// EventHookFunc adapts a function to EventHook
type EventHookFunc func(event Event)

// OnEvent calls f
func (f EventHookFunc) OnEvent(event Event) {
	f(event)
}

func (e *Engine) emit(event Event) {
	if len(e.hooks) == 0 {
		return
	}
	if event.Time.IsZero() {
		event.Time = time.Now()
	}

	for _, hook := range e.hooks {
		func() {
			defer func() {
				if r := recover(); r != nil {
					slog.Error("engine event hook panicked", "kind", event.Kind, "panic", r)
				}
			}()
			hook.OnEvent(event)
		}()
	}
}
