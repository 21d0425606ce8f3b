package process

import (
	"sync"
	"time"
)

// queuedLine is a line waiting for delivery.
type queuedLine struct {
	stream Stream
	text   string
	at     time.Time

	// partial is set for a final line without a terminator.
	partial bool
}

// lineQueue is a bounded FIFO between the pipe readers and the delivery
// goroutine. Pushing never blocks: when the queue is full the oldest line is
// discarded and counted instead.
type lineQueue struct {
	mu       sync.Mutex
	cond     *sync.Cond
	items    []queuedLine
	capacity int
	dropped  int
	closed   bool

	// discarding counts complete lines as dropped instead of queueing them.
	discarding bool
}

func newLineQueue(capacity int) *lineQueue {
	if capacity <= 0 {
		capacity = DefaultQueueCapacity
	}
	q := &lineQueue{
		items:    make([]queuedLine, 0, min(capacity, 256)),
		capacity: capacity,
	}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// push appends a line. It reports whether an older line had to be dropped.
// Lines pushed after close are ignored.
func (q *lineQueue) push(line queuedLine) (dropped bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}

	if q.discarding && !line.partial {
		q.dropped++
		q.cond.Signal()
		return true
	}

	if len(q.items) >= q.capacity {
		q.items[0] = queuedLine{}
		q.items = q.items[1:]
		q.dropped++
		dropped = true
	}
	q.items = append(q.items, line)
	q.cond.Signal()
	return dropped
}

// close marks the end of input. Queued lines remain available to pop.
func (q *lineQueue) close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	q.cond.Broadcast()
}

// discard drops every queued line and counts it as dropped. Complete lines
// pushed afterwards are dropped too; partial lines are still queued. It
// returns the number of lines dropped by this call.
func (q *lineQueue) discard() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	n := len(q.items)
	clear(q.items)
	q.items = q.items[:0]
	q.dropped += n
	q.discarding = true
	q.cond.Broadcast()
	return n
}

// pop blocks until there is something to deliver. It returns the number of
// lines dropped since the previous pop (these precede line), the next line if
// any, and finished once the queue is closed and empty. After discard the
// dropped count is reported only with finished.
func (q *lineQueue) pop() (dropped int, line queuedLine, ok bool, finished bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for len(q.items) == 0 && !q.closed && (q.dropped == 0 || q.discarding) {
		q.cond.Wait()
	}

	if len(q.items) > 0 {
		line = q.items[0]
		q.items[0] = queuedLine{}
		q.items = q.items[1:]
		ok = true
	}

	finished = q.closed && len(q.items) == 0 && !ok
	if !q.discarding || finished {
		dropped = q.dropped
		q.dropped = 0
	}
	return dropped, line, ok, finished
}

// len returns the number of queued lines.
func (q *lineQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
