//go:build unix

package process

import (
	"errors"
	"os"
	"os/exec"
	"syscall"
)

// setProcessGroup puts the child in its own process group so signals reach
// everything it spawns.
func setProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

// terminateGroup sends SIGTERM to the process group led by p.
func terminateGroup(p *os.Process) error {
	return signalGroup(p, syscall.SIGTERM)
}

// killGroup sends SIGKILL to the process group led by p.
func killGroup(p *os.Process) error {
	return signalGroup(p, syscall.SIGKILL)
}

func signalGroup(p *os.Process, sig syscall.Signal) error {
	err := syscall.Kill(-p.Pid, sig)
	if errors.Is(err, syscall.ESRCH) {
		return nil
	}
	if err != nil {
		// The group may be gone while the leader is a zombie; fall back to
		// the leader itself.
		if sigErr := p.Signal(sig); sigErr != nil && !errors.Is(sigErr, os.ErrProcessDone) {
			return err
		}
	}
	return nil
}

// exitInfoFrom extracts the exit status from a finished process.
func exitInfoFrom(ps *os.ProcessState) ExitInfo {
	if ps == nil {
		return ExitInfo{Code: -1}
	}
	if ws, ok := ps.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		return ExitInfo{Code: -1, Signaled: true, Signal: ws.Signal().String()}
	}
	return ExitInfo{Code: ps.ExitCode()}
}

// groupAlive reports whether any process remains in the group led by p.
func groupAlive(p *os.Process) bool {
	err := syscall.Kill(-p.Pid, 0)
	return err == nil || errors.Is(err, syscall.EPERM)
}
