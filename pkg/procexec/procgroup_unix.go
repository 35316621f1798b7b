//go:build unix

package procexec

import (
	"errors"
	"os"
	"os/exec"
	"syscall"

	"golang.org/x/sys/unix"
)

// setProcessGroup places the child in a new process group whose id equals
// its pid, so the group can be signalled as a unit.
func setProcessGroup(cmd *exec.Cmd) {
	if cmd.SysProcAttr == nil {
		cmd.SysProcAttr = &syscall.SysProcAttr{}
	}
	cmd.SysProcAttr.Setpgid = true
}

// terminateGroup asks the whole group to stop. sudo relays SIGTERM to the
// command it runs, which an unprivileged parent could not signal directly.
func terminateGroup(proc *os.Process) error {
	if proc == nil {
		return nil
	}
	if err := unix.Kill(-proc.Pid, unix.SIGTERM); err != nil {
		return proc.Signal(os.Interrupt)
	}
	return nil
}

// killGroup sends SIGKILL to every remaining member of the group.
func killGroup(proc *os.Process) {
	if proc == nil {
		return
	}
	if err := unix.Kill(-proc.Pid, unix.SIGKILL); err != nil && !errors.Is(err, unix.ESRCH) {
		_ = proc.Kill()
	}
}
