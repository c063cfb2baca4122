//go:build !cgo || purego
// +build !cgo purego

package corpus

// Compiled for pure-Go builds (CGO disabled or the purego tag set). Uses
// modernc's translated SQLite driver so the binary cross-compiles without
// a C toolchain.
//
// Build command:
//   CGO_ENABLED=0 go build ./...

import (
	_ "modernc.org/sqlite"
)

const (
	// DriverName is the SQLite driver to use
	DriverName = "sqlite"

	// BuildMode describes the current build configuration
	BuildMode = "purego"
)
