//go:build windows

package pyenv

import (
	"os"
	"os/exec"
)

func startInProcessGroup(cmd *exec.Cmd) {}

// interruptProcessGroup kills p; Windows has no SIGINT for child processes.
func interruptProcessGroup(p *os.Process) error {
	return p.Kill()
}

func killProcessGroup(p *os.Process) error {
	return nil
}
