//go:build !windows

package process

import (
	"os/exec"
	"syscall"
)

// KillProcessGroup sends SIGKILL to the process group led by pid (negative PID).
// Child processes started through Runner lead their own group, so this also
// reaches helpers spawned by the tool (mktexpk, kpsewhich, ...).
func KillProcessGroup(pid int) {
	// Best-effort; Wait reports the outcome.
	_ = syscall.Kill(-pid, syscall.SIGKILL)
}

// setProcessGroup makes the command the leader of a new process group.
func setProcessGroup(cmd *exec.Cmd) {
	if cmd.SysProcAttr == nil {
		cmd.SysProcAttr = &syscall.SysProcAttr{}
	}
	cmd.SysProcAttr.Setpgid = true
}
