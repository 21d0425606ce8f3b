package command

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParameters_SetGetDelete(t *testing.T) {
	p := NewParameters(map[string]string{"episode": "1"})

	v, ok := p.Get("episode")
	require.True(t, ok)
	assert.Equal(t, "1", v)

	p.Set("run", "baseline")
	v, _ = p.Get("run")
	assert.Equal(t, "baseline", v)

	p.Delete("run")
	_, ok = p.Get("run")
	assert.False(t, ok)
}

func TestParameters_SeedIsCopied(t *testing.T) {
	seed := map[string]string{"episode": "1"}
	p := NewParameters(seed)
	seed["episode"] = "99"

	v, _ := p.Get("episode")
	assert.Equal(t, "1", v)
}

func TestParameters_Increment(t *testing.T) {
	p := NewParameters(map[string]string{"episode": "3"})

	n, err := p.Increment("episode", 1)
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	n, err = p.Increment("episode", -5)
	require.NoError(t, err)
	assert.Equal(t, -1, n)

	n, err = p.Increment("fresh", 1)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	p.Set("name", "abc")
	_, err = p.Increment("name", 1)
	assert.Error(t, err)
	v, _ := p.Get("name")
	assert.Equal(t, "abc", v)
}

func TestParameters_SnapshotIsIndependent(t *testing.T) {
	p := NewParameters(map[string]string{"episode": "1"})
	snap := p.Snapshot()
	p.Set("episode", "2")

	assert.Equal(t, "1", snap["episode"])
}

func TestParameters_String(t *testing.T) {
	p := NewParameters(map[string]string{"b": "2", "a": "1"})
	assert.Equal(t, "a=1 b=2", p.String())
}

func TestParameters_ConcurrentIncrement(t *testing.T) {
	p := NewParameters(nil)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = p.Increment("episode", 1)
		}()
	}
	wg.Wait()

	v, _ := p.Get("episode")
	assert.Equal(t, "50", v)
}
