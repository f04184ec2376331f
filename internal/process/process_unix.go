//go:build !windows

package process

import (
	"os/exec"
	"syscall"

	"golang.org/x/sys/unix"
)

// setProcAttr puts the build in its own process group so signals reach its
// children too.
func setProcAttr(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

func signalGroup(cmd *exec.Cmd, sig unix.Signal) error {
	pid := cmd.Process.Pid
	if pgid, err := unix.Getpgid(pid); err == nil && pgid > 0 {
		return unix.Kill(-pgid, sig)
	}
	return unix.Kill(pid, sig)
}

func signalTerm(cmd *exec.Cmd) error { return signalGroup(cmd, unix.SIGTERM) }

func signalKill(cmd *exec.Cmd) error { return signalGroup(cmd, unix.SIGKILL) }

// Job objects only exist on Windows.
func setupJobObject(*exec.Cmd) error { return nil }

func cleanupJobObject(int) {}
