package process

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSampleUsageSelf(t *testing.T) {
	usage, err := SampleUsage(os.Getpid())
	require.NoError(t, err)
	assert.NotZero(t, usage.RSS)
	assert.GreaterOrEqual(t, usage.CPUPercent, 0.0)
}

func TestSampleUsageInvalidPID(t *testing.T) {
	_, err := SampleUsage(0)
	assert.Error(t, err)
}

func TestHandleUsageNotRunning(t *testing.T) {
	h := newHandle("core", "true", nil)
	_, err := h.Usage()
	assert.Error(t, err)
}

func TestPidAlive(t *testing.T) {
	assert.True(t, pidAlive(os.Getpid()))
	assert.False(t, pidAlive(0))
	assert.False(t, pidAlive(-1))
}
