// Package integration holds end-to-end tests that run the decoders, the
// engine, the CLI and usage tracking together against real files.
package integration
