package process

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"go.uber.org/multierr"
)

// relay streams the output of one handle to subscribers.
//
// Two readers split stdout and stderr into lines and push them onto a
// bounded queue. A single delivery goroutine numbers the lines and hands them
// to deliver, so subscribers see lines of a handle one at a time and in
// sequence order.
type relay struct {
	scriptID string
	handleID string

	queue   *lineQueue
	deliver func(OutputLine)
	overrun func(*OverrunWarning)

	readers     sync.WaitGroup
	readersDone chan struct{}
	sources     []io.Closer

	delivered chan struct{}

	errMu sync.Mutex
	err   error
}

func newRelay(scriptID, handleID string, capacity int, deliver func(OutputLine), overrun func(*OverrunWarning)) *relay {
	if deliver == nil {
		deliver = func(OutputLine) {}
	}
	if overrun == nil {
		overrun = func(*OverrunWarning) {}
	}
	return &relay{
		scriptID:    scriptID,
		handleID:    handleID,
		queue:       newLineQueue(capacity),
		deliver:     deliver,
		overrun:     overrun,
		readersDone: make(chan struct{}),
		delivered:   make(chan struct{}),
	}
}

// start begins reading stdout and stderr and delivering lines.
func (r *relay) start(stdout, stderr io.ReadCloser) {
	r.sources = []io.Closer{stdout, stderr}

	r.readers.Add(2)
	go r.read(stdout, StreamStdout)
	go r.read(stderr, StreamStderr)

	go func() {
		r.readers.Wait()
		close(r.readersDone)
	}()

	go r.deliverLoop()
}

// read splits src into lines until EOF. A final line without a terminator is
// still delivered. Lines have no length limit.
func (r *relay) read(src io.ReadCloser, stream Stream) {
	defer r.readers.Done()
	defer src.Close()

	br := bufio.NewReader(src)
	for {
		b, err := br.ReadBytes('\n')
		if len(b) > 0 {
			partial := err != nil
			if !partial {
				b = b[:len(b)-1]
			}
			r.queue.push(queuedLine{stream: stream, text: string(b), at: time.Now(), partial: partial})
		}
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, os.ErrClosed) {
				r.recordErr(fmt.Errorf("read %s: %w", stream, err))
			}
			return
		}
	}
}

func (r *relay) deliverLoop() {
	defer close(r.delivered)

	var seq uint64
	emit := func(line OutputLine) {
		seq++
		line.ScriptID = r.scriptID
		line.HandleID = r.handleID
		line.Sequence = seq
		r.deliver(line)
	}

	for {
		dropped, item, ok, finished := r.queue.pop()
		if dropped > 0 {
			warning := &OverrunWarning{ScriptID: r.scriptID, Dropped: dropped}
			r.overrun(warning)
			emit(OutputLine{
				Kind:    LineDropped,
				Text:    warning.Error(),
				Dropped: dropped,
				Time:    time.Now(),
			})
		}
		if ok {
			emit(OutputLine{
				Kind:   LineText,
				Stream: item.stream,
				Text:   item.text,
				Time:   item.at,
			})
		}
		if finished {
			emit(OutputLine{Kind: LineEOF, Time: time.Now()})
			return
		}
	}
}

// waitReaders waits up to timeout for both streams to reach EOF.
func (r *relay) waitReaders(timeout time.Duration) bool {
	select {
	case <-r.readersDone:
		return true
	default:
	}
	if timeout <= 0 {
		return false
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-r.readersDone:
		return true
	case <-timer.C:
		return false
	}
}

// closeReaders closes the read ends, unblocking readers held open by
// processes that inherited the pipes. Buffered partial lines are still
// delivered.
func (r *relay) closeReaders() {
	for _, c := range r.sources {
		_ = c.Close()
	}
	<-r.readersDone
}

// finish delivers everything still queued followed by the EOF marker, and
// returns once delivery is complete. Readers must be done.
func (r *relay) finish() {
	r.queue.close()
	<-r.delivered
}

func (r *relay) recordErr(err error) {
	r.errMu.Lock()
	defer r.errMu.Unlock()
	r.err = multierr.Append(r.err, err)
}

// Err returns read errors other than EOF.
func (r *relay) Err() error {
	r.errMu.Lock()
	defer r.errMu.Unlock()
	return r.err
}
