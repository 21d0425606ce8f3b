package process

import (
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type lineSink struct {
	mu    sync.Mutex
	lines []OutputLine
}

func (s *lineSink) deliver(line OutputLine) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lines = append(s.lines, line)
}

func (s *lineSink) get() []OutputLine {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]OutputLine(nil), s.lines...)
}

func runRelay(t *testing.T, capacity int, stdout, stderr string) []OutputLine {
	t.Helper()
	sink := &lineSink{}
	r := newRelay("script", "handle", capacity, sink.deliver, nil)
	r.start(io.NopCloser(strings.NewReader(stdout)), io.NopCloser(strings.NewReader(stderr)))
	require.True(t, r.waitReaders(5*time.Second))
	r.finish()
	require.NoError(t, r.Err())
	return sink.get()
}

func TestRelayStreamsAndEOF(t *testing.T) {
	lines := runRelay(t, 0, "one\ntwo\n", "oops\n")

	require.Len(t, lines, 4)
	var stdout, stderr []string
	for _, line := range lines[:3] {
		assert.Equal(t, LineText, line.Kind)
		assert.Equal(t, "script", line.ScriptID)
		assert.Equal(t, "handle", line.HandleID)
		if line.Stream == StreamStdout {
			stdout = append(stdout, line.Text)
		} else {
			stderr = append(stderr, line.Text)
		}
	}
	assert.Equal(t, []string{"one", "two"}, stdout)
	assert.Equal(t, []string{"oops"}, stderr)

	last := lines[3]
	assert.Equal(t, LineEOF, last.Kind)
	assert.Equal(t, uint64(4), last.Sequence)
}

func TestRelayFlushesPartialLine(t *testing.T) {
	lines := runRelay(t, 0, "first\nlast-without-newline", "")

	require.Len(t, lines, 3)
	assert.Equal(t, "first", lines[0].Text)
	assert.Equal(t, "last-without-newline", lines[1].Text)
	assert.Equal(t, LineEOF, lines[2].Kind)
}

func TestRelayLongLine(t *testing.T) {
	long := strings.Repeat("x", 1<<20)
	lines := runRelay(t, 0, long+"\n", "")

	require.Len(t, lines, 2)
	assert.Equal(t, long, lines[0].Text)
}

func TestRelayPreservesBytes(t *testing.T) {
	lines := runRelay(t, 0, "tab\there\r\n\n  spaced  \n", "")

	require.Len(t, lines, 4)
	assert.Equal(t, "tab\there\r", lines[0].Text)
	assert.Equal(t, "", lines[1].Text)
	assert.Equal(t, "  spaced  ", lines[2].Text)
}

func TestRelayEmptyOutput(t *testing.T) {
	lines := runRelay(t, 0, "", "")

	require.Len(t, lines, 1)
	assert.Equal(t, LineEOF, lines[0].Kind)
	assert.Equal(t, uint64(1), lines[0].Sequence)
}

func TestRelayOverflowDeliversDroppedMarker(t *testing.T) {
	sink := &lineSink{}
	var warnings []*OverrunWarning
	r := newRelay("script", "handle", 3, sink.deliver, func(w *OverrunWarning) {
		warnings = append(warnings, w)
	})

	for i := range 10 {
		r.queue.push(queuedLine{stream: StreamStdout, text: string(rune('a' + i)), at: time.Now()})
	}
	r.queue.close()
	r.deliverLoop()

	lines := sink.get()
	require.Len(t, lines, 5)

	assert.Equal(t, LineDropped, lines[0].Kind)
	assert.Equal(t, 7, lines[0].Dropped)
	assert.Contains(t, lines[0].Text, "7 lines dropped")

	assert.Equal(t, "h", lines[1].Text)
	assert.Equal(t, "i", lines[2].Text)
	assert.Equal(t, "j", lines[3].Text)
	assert.Equal(t, LineEOF, lines[4].Kind)

	for i, line := range lines {
		assert.Equal(t, uint64(i+1), line.Sequence)
	}

	require.Len(t, warnings, 1)
	assert.Equal(t, 7, warnings[0].Dropped)
	assert.Equal(t, "script", warnings[0].ScriptID)
}

func TestRelayDiscardReportsOneMarkerBeforeEOF(t *testing.T) {
	release := make(chan struct{})
	var once sync.Once
	sink := &lineSink{}
	r := newRelay("script", "handle", 0, func(line OutputLine) {
		sink.deliver(line)
		once.Do(func() { <-release })
	}, nil)
	go r.deliverLoop()

	for _, text := range []string{"a", "b", "c", "d", "e"} {
		r.queue.push(queuedLine{stream: StreamStdout, text: text})
	}
	require.Eventually(t, func() bool { return len(sink.get()) == 1 }, time.Second, 5*time.Millisecond)

	assert.Equal(t, 4, r.discard())
	r.queue.push(queuedLine{stream: StreamStdout, text: "late"})
	r.queue.push(queuedLine{stream: StreamStderr, text: "tail", partial: true})
	r.queue.close()
	close(release)
	<-r.delivered

	lines := sink.get()
	require.Len(t, lines, 4)
	assert.Equal(t, "a", lines[0].Text)
	assert.Equal(t, "tail", lines[1].Text)
	assert.Equal(t, StreamStderr, lines[1].Stream)
	assert.Equal(t, LineDropped, lines[2].Kind)
	assert.Equal(t, 5, lines[2].Dropped)
	assert.Equal(t, LineEOF, lines[3].Kind)
	for i, line := range lines {
		assert.Equal(t, uint64(i+1), line.Sequence)
	}
}

func TestRelayCloseReadersUnblocksOpenPipe(t *testing.T) {
	pr, pw := io.Pipe()
	t.Cleanup(func() { _ = pw.Close() })

	sink := &lineSink{}
	r := newRelay("script", "handle", 0, sink.deliver, nil)
	r.start(pr, io.NopCloser(strings.NewReader("")))

	_, err := pw.Write([]byte("kept\npartial"))
	require.NoError(t, err)

	assert.False(t, r.waitReaders(50*time.Millisecond))
	r.closeReaders()
	r.finish()

	lines := sink.get()
	require.NotEmpty(t, lines)
	assert.Equal(t, "kept", lines[0].Text)
	assert.Equal(t, LineEOF, lines[len(lines)-1].Kind)
}
