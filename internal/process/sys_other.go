//go:build !unix

package process

import (
	"errors"
	"os"
	"os/exec"
)

func setProcessGroup(_ *exec.Cmd) {}

// terminateGroup has no graceful variant on this platform.
func terminateGroup(p *os.Process) error {
	return killGroup(p)
}

func killGroup(p *os.Process) error {
	if err := p.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return err
	}
	return nil
}

// groupAlive is false: processes are not grouped on this platform.
func groupAlive(_ *os.Process) bool {
	return false
}

func exitInfoFrom(ps *os.ProcessState) ExitInfo {
	if ps == nil {
		return ExitInfo{Code: -1}
	}
	return ExitInfo{Code: ps.ExitCode()}
}
