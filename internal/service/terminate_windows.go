//go:build windows
// +build windows

package service

import (
	"os/exec"
	"strconv"
)

// terminate force-kills the whole process tree. Windows has no POSIX
// signals, and uvicorn spawns workers that outlive a plain Process.Kill.
func terminate(cmd *exec.Cmd) error {
	pid := strconv.Itoa(cmd.Process.Pid)
	return exec.Command("taskkill", "/T", "/F", "/PID", pid).Run()
}
