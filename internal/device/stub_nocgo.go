//go:build !cgo

package device

import "errors"

var errCGORequired = errors.New(`riqaudio requires CGO support for platform audio output.

This error occurs when riqaudio is built without CGO enabled.

To fix this issue:
1. Ensure CGO_ENABLED=1 (this is the default for native builds)
2. Install a C compiler:
   - Linux: sudo apt-get install build-essential
   - macOS: xcode-select --install
   - Windows: Install MinGW or Visual Studio Build Tools

The "null" and "manual" sinks work without CGO.`)

func newMalgoSink() (Sink, error) {
	return nil, errCGORequired
}

func newOtoSink() (Sink, error) {
	return nil, errCGORequired
}
