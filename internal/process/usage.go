package process

import (
	"fmt"
	"slices"

	psprocess "github.com/shirou/gopsutil/v3/process"
)

// Usage is a resource usage sample of a running script.
type Usage struct {
	// CPUPercent is the CPU usage since the process started.
	CPUPercent float64

	// RSS is the resident set size in bytes.
	RSS uint64
}

// SampleUsage reads the CPU and memory usage of pid.
func SampleUsage(pid int) (Usage, error) {
	if pid <= 0 {
		return Usage{}, fmt.Errorf("sample usage: invalid pid %d", pid)
	}

	p, err := psprocess.NewProcess(int32(pid))
	if err != nil {
		return Usage{}, fmt.Errorf("sample usage of pid %d: %w", pid, err)
	}

	cpu, err := p.CPUPercent()
	if err != nil {
		return Usage{}, fmt.Errorf("cpu of pid %d: %w", pid, err)
	}

	mem, err := p.MemoryInfo()
	if err != nil {
		return Usage{}, fmt.Errorf("memory of pid %d: %w", pid, err)
	}

	return Usage{CPUPercent: cpu, RSS: mem.RSS}, nil
}

// Usage samples the handle's process. It fails if the handle is not running.
func (h *Handle) Usage() (Usage, error) {
	pid := h.PID()
	if pid == 0 || h.hasExited() {
		return Usage{}, fmt.Errorf("script %q is not running", h.ScriptID)
	}
	return SampleUsage(pid)
}

// pidAlive reports whether pid still exists. Zombies count as gone.
func pidAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	ok, err := psprocess.PidExists(int32(pid))
	if err != nil || !ok {
		return false
	}
	p, err := psprocess.NewProcess(int32(pid))
	if err != nil {
		return false
	}
	status, err := p.Status()
	if err != nil {
		return true
	}
	return !slices.Contains(status, psprocess.Zombie)
}
