//go:build !windows

package pyenv

import (
	"os"
	"os/exec"
	"syscall"
)

// startInProcessGroup makes the server the leader of its own process
// group. With debug enabled the reloader runs the actual server in a
// child process; signalling the group reaches both.
func startInProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

// interruptProcessGroup sends SIGINT to the process group led by p.
func interruptProcessGroup(p *os.Process) error {
	return syscall.Kill(-p.Pid, syscall.SIGINT)
}

// killProcessGroup kills whatever is left of the process group led by p.
// A group that is already gone is not an error.
func killProcessGroup(p *os.Process) error {
	if err := syscall.Kill(-p.Pid, syscall.SIGKILL); err != nil && err != syscall.ESRCH {
		return err
	}
	return nil
}
