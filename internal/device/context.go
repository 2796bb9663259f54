//go:build cgo

package device

import (
	"log/slog"

	"github.com/gen2brain/malgo"
)

// Context wraps malgo.AllocatedContext with lifecycle management and logging
type Context struct {
	ctx *malgo.AllocatedContext
}

// NewContext initializes a miniaudio context that forwards its messages to slog
func NewContext() (*Context, error) {
	slog.Debug("initializing miniaudio context")

	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, func(message string) {
		slog.Debug("malgo internal", "message", message)
	})
	if err != nil {
		slog.Error("failed to initialize miniaudio context", "error", err)
		return nil, err
	}

	slog.Debug("miniaudio context initialized")
	return &Context{ctx: ctx}, nil
}

// Close uninitializes and frees the context. Closing twice is harmless.
func (c *Context) Close() error {
	if c.ctx == nil {
		slog.Debug("miniaudio context already closed")
		return nil
	}

	// malgo requires both Uninit() and Free()
	if err := c.ctx.Uninit(); err != nil {
		slog.Error("failed to uninitialize miniaudio context", "error", err)
		return err
	}

	c.ctx.Free()
	c.ctx = nil

	slog.Debug("miniaudio context closed")
	return nil
}

// Raw returns the underlying malgo context for device operations
func (c *Context) Raw() *malgo.AllocatedContext {
	return c.ctx
}
