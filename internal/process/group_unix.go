//go:build unix

package process

import (
	"os/exec"
	"syscall"
)

// configureGroup places the child in its own process group so cancellation reaches grandchildren.
func configureGroup(cmd *exec.Cmd) {
	setGroup(cmd)
	cmd.Cancel = func() error {
		if cmd.Process == nil {
			return nil
		}
		return KillGroup(cmd.Process.Pid, syscall.SIGTERM)
	}
}

func setGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

// KillGroup signals the process group led by pid, falling back to the process itself.
func KillGroup(pid int, sig syscall.Signal) error {
	if pid <= 0 {
		return nil
	}
	if err := syscall.Kill(-pid, sig); err != nil {
		return syscall.Kill(pid, sig)
	}
	return nil
}

func signalGroup(pid int, force bool) error {
	if force {
		return KillGroup(pid, syscall.SIGKILL)
	}
	return KillGroup(pid, syscall.SIGTERM)
}
