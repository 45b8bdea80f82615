//go:build unix

package tools

import (
	"os/exec"
	"syscall"
)

// setProcGroup starts the command in its own process group so a timeout
// reaches every descendant, not only sh.
func setProcGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

func killProcGroup(cmd *exec.Cmd) error {
	if cmd.Process == nil {
		return nil
	}
	return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
}
