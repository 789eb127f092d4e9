// ABOUTME: Single-goroutine dispatcher for buffer-ready events
// ABOUTME: Driver callbacks hand buffers to Run and wait for them to be filled
package output

import (
	"context"
	"sync"
	"sync/atomic"
)

// request is one buffer-ready event. Each stream owns exactly one request
// and reuses it for every callback, so dispatching does not allocate.
type request struct {
	fill FillFunc
	buf  Buffer
	done chan struct{}
}

func newRequest(fill FillFunc) *request {
	return &request{
		fill: fill,
		done: make(chan struct{}, 1),
	}
}

// dispatcher serializes FillFunc calls from any number of driver threads
// onto the goroutine running Run
type dispatcher struct {
	events   chan *request
	stopped  chan struct{}
	stopOnce sync.Once
	running  atomic.Bool
}

func newDispatcher() *dispatcher {
	return &dispatcher{
		events:  make(chan *request),
		stopped: make(chan struct{}),
	}
}

// serve is called from a driver callback. It blocks until the buffer has
// been filled on the Run goroutine, or writes silence once Run has exited.
func (d *dispatcher) serve(req *request, buf Buffer) {
	req.buf = buf
	select {
	case d.events <- req:
		select {
		case <-req.done:
		case <-d.stopped:
		}
	case <-d.stopped:
		silence(buf)
	}
	req.buf = Buffer{}
}

// run processes events until ctx is done. It may be called only once.
func (d *dispatcher) run(ctx context.Context) error {
	if !d.running.CompareAndSwap(false, true) {
		return errAlreadyRunning
	}
	defer d.stopOnce.Do(func() { close(d.stopped) })

	for {
		select {
		case <-ctx.Done():
			return nil
		case req := <-d.events:
			req.fill(req.buf)
			req.done <- struct{}{}
		}
	}
}

// stop releases any driver callback still waiting on a dispatcher whose
// Run never started
func (d *dispatcher) stop() {
	d.stopOnce.Do(func() { close(d.stopped) })
}
