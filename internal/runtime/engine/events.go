package engine

import "sync"

// dispatcher runs listener invocations one at a time on its own goroutine.
// The queue is unbounded: posting never blocks, so a bus goroutine that
// acknowledges messages can never wait on a callback that is itself blocked
// in Write.
type dispatcher struct {
	mu      sync.Mutex
	queue   []func()
	stopped bool

	wake chan struct{}
	done chan struct{}
	exit chan struct{}
}

func newDispatcher(capacity int) *dispatcher {
	d := &dispatcher{
		queue: make([]func(), 0, capacity),
		wake:  make(chan struct{}, 1),
		done:  make(chan struct{}),
		exit:  make(chan struct{}),
	}
	go d.run()
	return d
}

// post queues fn. Events posted after stop are dropped.
func (d *dispatcher) post(fns ...func()) {
	if len(fns) == 0 {
		return
	}
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return
	}
	d.queue = append(d.queue, fns...)
	d.mu.Unlock()

	select {
	case d.wake <- struct{}{}:
	default:
	}
}

func (d *dispatcher) run() {
	defer close(d.exit)
	for {
		select {
		case <-d.done:
			return
		case <-d.wake:
		}

		for {
			d.mu.Lock()
			if d.stopped || len(d.queue) == 0 {
				d.mu.Unlock()
				break
			}
			batch := d.queue
			d.queue = make([]func(), 0, cap(batch))
			d.mu.Unlock()

			for _, fn := range batch {
				select {
				case <-d.done:
					return
				default:
				}
				fn()
			}
		}
	}
}

// stop discards pending events and waits for the running one to return. It
// must not be called from a listener.
func (d *dispatcher) stop() {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		<-d.exit
		return
	}
	d.stopped = true
	d.queue = nil
	d.mu.Unlock()

	close(d.done)
	<-d.exit
}

// pending returns the number of queued events.
func (d *dispatcher) pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.queue)
}
