// Package process inspects and signals running gitsafe processes.
package process

import (
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strconv"
	"syscall"
	"time"

	"github.com/google/gops/goprocess"
)

// Process is a running Go program found on this machine.
type Process struct {
	PID  int
	PPID int
	Exec string
	Path string
}

// List returns the Go processes currently running.
func List() []Process {
	found := goprocess.FindAll()

	out := make([]Process, 0, len(found))
	for _, p := range found {
		out = append(out, Process{
			PID:  p.PID,
			PPID: p.PPID,
			Exec: p.Exec,
			Path: p.Path,
		})
	}

	return out
}

// IsRunning reports whether a Go process with pid is alive.
func IsRunning(pid int) bool {
	if pid <= 0 {
		return false
	}

	for _, p := range List() {
		if p.PID == pid {
			return true
		}
	}

	return false
}

// Terminate asks the process to shut down gracefully.
func Terminate(pid int) error {
	if runtime.GOOS == "windows" {
		return exec.Command("taskkill", "/PID", strconv.Itoa(pid), "/F").Run()
	}

	p, err := os.FindProcess(pid)
	if err != nil {
		return fmt.Errorf("failed to find process: %w", err)
	}

	return p.Signal(syscall.SIGTERM)
}

// WaitForExit polls until pid is gone or timeout elapses.
func WaitForExit(pid int, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)

	for time.Now().Before(deadline) {
		if !IsRunning(pid) {
			return nil
		}

		time.Sleep(100 * time.Millisecond)
	}

	return fmt.Errorf("process %d still running after %v", pid, timeout)
}
