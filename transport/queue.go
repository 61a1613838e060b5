package transport

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/AltairaLabs/mediasession/logger"
	"github.com/AltairaLabs/mediasession/media"
)

// DefaultQueueSize holds about five seconds of 100 ms audio chunks.
const DefaultQueueSize = 64

// dropLogInterval limits drop warnings to one per interval.
const dropLogInterval = time.Second

// SendFunc writes one chunk to the wire.
type SendFunc func(media.Chunk) error

// item is a queued chunk or, when fn is set, a control write that must stay
// ordered after the chunks pushed before it.
type item struct {
	chunk media.Chunk
	fn    func() error
}

// Queue decouples producers from the wire. Push never blocks; a single
// worker drains chunks in FIFO order, so per-stream production order is kept.
type Queue struct {
	ch      chan item
	send    SendFunc
	onError func(error)
	log     *slog.Logger

	dropped   atomic.Int64
	sometimes rate.Sometimes

	startOnce sync.Once
	stopOnce  sync.Once
	quit      chan struct{}
	done      chan struct{}
}

// NewQueue creates a queue of the given size. onError is called from the
// worker when send fails; it may be nil.
func NewQueue(size int, send SendFunc, onError func(error)) *Queue {
	if size <= 0 {
		size = DefaultQueueSize
	}
	return &Queue{
		ch:        make(chan item, size),
		send:      send,
		onError:   onError,
		log:       logger.Component("transport.queue"),
		sometimes: rate.Sometimes{First: 1, Interval: dropLogInterval},
		quit:      make(chan struct{}),
		done:      make(chan struct{}),
	}
}

// Start launches the worker. Calling it more than once has no effect.
func (q *Queue) Start() {
	q.startOnce.Do(func() { go q.run() })
}

func (q *Queue) run() {
	defer close(q.done)
	for {
		select {
		case <-q.quit:
			return
		case it := <-q.ch:
			var err error
			if it.fn != nil {
				err = it.fn()
			} else {
				err = q.send(it.chunk)
			}
			if err != nil && q.onError != nil {
				q.onError(err)
			}
		}
	}
}

// Push enqueues c. It returns false if the chunk was dropped.
func (q *Queue) Push(c media.Chunk) bool {
	return q.push(item{chunk: c})
}

// PushFunc enqueues a control write behind the chunks already queued. Unlike
// chunks, a control write is dropped only if the queue is stopped or full.
func (q *Queue) PushFunc(fn func() error) bool {
	return q.push(item{fn: fn})
}

func (q *Queue) push(it item) bool {
	select {
	case <-q.quit:
		q.Drop("queue stopped")
		return false
	default:
	}
	select {
	case q.ch <- it:
		return true
	default:
		q.Drop("queue full")
		return false
	}
}

// Drop counts a discarded chunk and logs at most once per second.
func (q *Queue) Drop(reason string) {
	n := q.dropped.Add(1)
	q.sometimes.Do(func() {
		q.log.Warn("dropping outbound chunk", "reason", reason, "dropped_total", n)
	})
}

// Dropped returns the number of chunks discarded so far.
func (q *Queue) Dropped() int64 {
	return q.dropped.Load()
}

// Len returns the number of queued chunks.
func (q *Queue) Len() int {
	return len(q.ch)
}

// Stop terminates the worker and discards pending chunks. It does not wait
// for an in-progress send, so it is safe to call from the send path; use
// Done to wait for the worker to exit.
func (q *Queue) Stop() {
	q.stopOnce.Do(func() { close(q.quit) })
}

// Done is closed once the worker has exited. It never closes if the queue
// was not started.
func (q *Queue) Done() <-chan struct{} {
	return q.done
}
