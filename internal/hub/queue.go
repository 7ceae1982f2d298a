package hub

import "sync"

// sendQueue is a per-session FIFO of encoded frames. It never blocks the
// producer: when it reaches 70% of capacity it doubles.
type sendQueue struct {
	mu       sync.Mutex
	cond     *sync.Cond
	buf      [][]byte
	head     int // read position
	tail     int // write position
	count    int
	closed   bool
	grown    int
	enqueued int64
}

func newSendQueue(initialCapacity int) *sendQueue {
	if initialCapacity < 1 {
		initialCapacity = 1
	}
	q := &sendQueue{buf: make([][]byte, initialCapacity)}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Push appends a frame. It returns false once the queue is closed.
func (q *sendQueue) Push(frame []byte) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}

	threshold := (len(q.buf) * 70) / 100
	if threshold < 1 {
		threshold = 1
	}
	if q.count+1 >= threshold {
		q.grow()
	}

	q.buf[q.tail] = frame
	q.tail = (q.tail + 1) % len(q.buf)
	q.count++
	q.enqueued++

	q.cond.Signal()
	return true
}

// Pop blocks until a frame is available. After Close it keeps returning
// queued frames, then reports false.
func (q *sendQueue) Pop() ([]byte, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for q.count == 0 && !q.closed {
		q.cond.Wait()
	}
	if q.count == 0 {
		return nil, false
	}

	frame := q.buf[q.head]
	q.buf[q.head] = nil
	q.head = (q.head + 1) % len(q.buf)
	q.count--
	return frame, true
}

// Close stops accepting frames and wakes the consumer.
func (q *sendQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	q.cond.Broadcast()
}

// Len returns the number of queued frames.
func (q *sendQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.count
}

// grow doubles the capacity. Must be called with lock held.
func (q *sendQueue) grow() {
	next := make([][]byte, len(q.buf)*2)
	if q.count > 0 {
		if q.head < q.tail {
			copy(next, q.buf[q.head:q.tail])
		} else {
			n := copy(next, q.buf[q.head:])
			copy(next[n:], q.buf[:q.tail])
		}
	}
	q.buf = next
	q.head = 0
	q.tail = q.count
	q.grown++
}
