//go:build !unix

package process

import (
	"os"
	"os/exec"
)

func configureGroup(cmd *exec.Cmd) {}

func setGroup(cmd *exec.Cmd) {}

func signalGroup(pid int, _ bool) error {
	p, err := os.FindProcess(pid)
	if err != nil {
		return err
	}
	return p.Kill()
}
