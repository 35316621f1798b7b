//go:build !unix

package procexec

import (
	"os"
	"os/exec"
)

func setProcessGroup(*exec.Cmd) {}

func terminateGroup(proc *os.Process) error {
	if proc == nil {
		return nil
	}
	return proc.Kill()
}

func killGroup(proc *os.Process) {
	if proc != nil {
		_ = proc.Kill()
	}
}
