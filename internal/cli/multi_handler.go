package cli

import (
	"context"
	"log/slog"
)

// MultiLevelHandler fans records out to several handlers, each keeping its
// own level. riqplay uses it to log at the configured level on stderr while
// the rotating log file receives everything.
type MultiLevelHandler struct {
	handlers []slog.Handler
}

// NewMultiLevelHandler creates a handler distributing records to handlers
func NewMultiLevelHandler(handlers ...slog.Handler) *MultiLevelHandler {
	return &MultiLevelHandler{
		handlers: handlers,
	}
}

// Enabled reports whether any wrapped handler accepts level
func (h *MultiLevelHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, handler := range h.handlers {
		if handler.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

// Handle passes the record to every handler that accepts its level. The
// first error stops the fan-out.
func (h *MultiLevelHandler) Handle(ctx context.Context, record slog.Record) error {
	for _, handler := range h.handlers {
		if !handler.Enabled(ctx, record.Level) {
			continue
		}
		if err := handler.Handle(ctx, record.Clone()); err != nil {
			return err
		}
	}
	return nil
}

func (h *MultiLevelHandler) mapHandlers(f func(slog.Handler) slog.Handler) *MultiLevelHandler {
	handlers := make([]slog.Handler, len(h.handlers))
	for i, handler := range h.handlers {
		handlers[i] = f(handler)
	}
	return NewMultiLevelHandler(handlers...)
}

// WithAttrs returns a handler whose children all carry attrs
func (h *MultiLevelHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return h.mapHandlers(func(handler slog.Handler) slog.Handler {
		return handler.WithAttrs(attrs)
	})
}

// WithGroup returns a handler whose children all open group name
func (h *MultiLevelHandler) WithGroup(name string) slog.Handler {
	return h.mapHandlers(func(handler slog.Handler) slog.Handler {
		return handler.WithGroup(name)
	})
}
