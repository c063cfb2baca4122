//go:build cgo && !purego
// +build cgo,!purego

package corpus

// Compiled for CGO builds. Uses the C SQLite driver, which is faster and
// battle-tested but requires a C toolchain.
//
// Build command:
//   CGO_ENABLED=1 go build ./...

import (
	_ "github.com/mattn/go-sqlite3"
)

const (
	// DriverName is the SQLite driver to use
	DriverName = "sqlite3"

	// BuildMode describes the current build configuration
	BuildMode = "cgo"
)
