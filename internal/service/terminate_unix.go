//go:build !windows
// +build !windows

package service

import (
	"os/exec"
	"syscall"
)

// terminate sends SIGTERM so the inference process can shut down
// gracefully. The watch goroutine reaps it.
func terminate(cmd *exec.Cmd) error {
	return cmd.Process.Signal(syscall.SIGTERM)
}
