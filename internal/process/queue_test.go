package process

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLineQueueFIFO(t *testing.T) {
	q := newLineQueue(4)
	q.push(queuedLine{text: "a"})
	q.push(queuedLine{text: "b"})
	assert.Equal(t, 2, q.len())

	dropped, line, ok, finished := q.pop()
	assert.Zero(t, dropped)
	assert.True(t, ok)
	assert.False(t, finished)
	assert.Equal(t, "a", line.text)

	_, line, _, _ = q.pop()
	assert.Equal(t, "b", line.text)
	assert.Zero(t, q.len())
}

func TestLineQueueDropsOldest(t *testing.T) {
	q := newLineQueue(2)
	assert.False(t, q.push(queuedLine{text: "a"}))
	assert.False(t, q.push(queuedLine{text: "b"}))
	assert.True(t, q.push(queuedLine{text: "c"}))
	assert.True(t, q.push(queuedLine{text: "d"}))

	dropped, line, ok, _ := q.pop()
	assert.Equal(t, 2, dropped)
	require.True(t, ok)
	assert.Equal(t, "c", line.text)

	dropped, line, ok, _ = q.pop()
	assert.Zero(t, dropped)
	require.True(t, ok)
	assert.Equal(t, "d", line.text)
}

func TestLineQueueCloseDrainsThenFinishes(t *testing.T) {
	q := newLineQueue(2)
	q.push(queuedLine{text: "a"})
	q.close()
	assert.False(t, q.push(queuedLine{text: "ignored"}))

	_, line, ok, finished := q.pop()
	assert.True(t, ok)
	assert.False(t, finished)
	assert.Equal(t, "a", line.text)

	_, _, ok, finished = q.pop()
	assert.False(t, ok)
	assert.True(t, finished)
}

func TestLineQueueDiscardKeepsPartialLines(t *testing.T) {
	q := newLineQueue(8)
	q.push(queuedLine{text: "a"})
	q.push(queuedLine{text: "b"})

	assert.Equal(t, 2, q.discard())
	assert.Zero(t, q.len())
	assert.True(t, q.push(queuedLine{text: "c"}))
	assert.False(t, q.push(queuedLine{text: "tail", partial: true}))
	q.close()

	dropped, line, ok, finished := q.pop()
	assert.Zero(t, dropped)
	require.True(t, ok)
	assert.False(t, finished)
	assert.Equal(t, "tail", line.text)

	dropped, _, ok, finished = q.pop()
	assert.Equal(t, 3, dropped)
	assert.False(t, ok)
	assert.True(t, finished)
}

func TestLineQueuePopBlocksUntilPush(t *testing.T) {
	q := newLineQueue(0)
	assert.Equal(t, DefaultQueueCapacity, q.capacity)

	got := make(chan string, 1)
	go func() {
		_, line, _, _ := q.pop()
		got <- line.text
	}()

	select {
	case <-got:
		t.Fatal("pop returned before anything was pushed")
	case <-time.After(20 * time.Millisecond):
	}

	q.push(queuedLine{text: "late"})
	select {
	case text := <-got:
		assert.Equal(t, "late", text)
	case <-time.After(time.Second):
		t.Fatal("pop did not wake up")
	}
}
