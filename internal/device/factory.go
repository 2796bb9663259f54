package device

import (
	"errors"
	"fmt"
	"log/slog"
)

// Sink kinds accepted by the factory
const (
	SinkAuto   = "auto"
	SinkMalgo  = "malgo"
	SinkOto    = "oto"
	SinkNull   = "null"
	SinkManual = "manual"
)

// SinkFactory creates Sink instances based on configuration
type SinkFactory interface {
	CreateSink(kind string) (Sink, error)
	GetSupportedSinks() []string
	IsValidSinkType(kind string) bool
}

// DefaultSinkFactory implements SinkFactory with platform detection
type DefaultSinkFactory struct {
	isWSLFunc func() bool
}

// Factory errors
var (
	ErrInvalidSinkType = errors.New("invalid sink type")
)

// NewSinkFactory creates a factory with real platform detection
func NewSinkFactory() *DefaultSinkFactory {
	return &DefaultSinkFactory{isWSLFunc: IsWSL}
}

// NewSinkFactoryWithDependencies creates a factory with injected platform
// detection for testing
func NewSinkFactoryWithDependencies(isWSLFunc func() bool) *DefaultSinkFactory {
	return &DefaultSinkFactory{isWSLFunc: isWSLFunc}
}

// CreateSink creates a sink of the given kind; "" means "auto"
func (f *DefaultSinkFactory) CreateSink(kind string) (Sink, error) {
	if kind == "" {
		kind = SinkAuto
	}

	slog.Debug("creating audio sink", "type", kind)

	switch kind {
	case SinkAuto:
		optimal := detectOptimalSinkWith(f.isWSLFunc())
		slog.Debug("auto-detection result", "selected_type", optimal)
		return f.CreateSink(optimal)
	case SinkMalgo:
		return newMalgoSink()
	case SinkOto:
		return newOtoSink()
	case SinkNull:
		return NewNullSink(), nil
	case SinkManual:
		return NewManualSink(), nil
	default:
		slog.Error("invalid sink type requested", "type", kind)
		return nil, fmt.Errorf("%w: %s", ErrInvalidSinkType, kind)
	}
}

// GetSupportedSinks returns a list of all supported sink types
func (f *DefaultSinkFactory) GetSupportedSinks() []string {
	return []string{SinkAuto, SinkMalgo, SinkOto, SinkNull, SinkManual}
}

// IsValidSinkType checks if a sink type is supported
func (f *DefaultSinkFactory) IsValidSinkType(kind string) bool {
	if kind == "" {
		return true
	}
	for _, supported := range f.GetSupportedSinks() {
		if kind == supported {
			return true
		}
	}
	return false
}
