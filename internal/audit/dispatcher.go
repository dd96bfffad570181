package audit

import (
	"sync"
	"sync/atomic"
	"time"
)

// Dispatcher decouples event producers from the underlying sink with a
// buffered channel. Record never blocks: when the buffer is full the event
// is dropped and counted.
type Dispatcher struct {
	sink      Sink
	ch        chan Event
	done      chan struct{}
	wg        sync.WaitGroup
	dropped   atomic.Uint64
	closed    atomic.Bool
	closeOnce sync.Once
}

var _ Sink = (*Dispatcher)(nil)

// NewDispatcher starts a dispatcher forwarding to sink. A nil sink is
// replaced with NopSink.
func NewDispatcher(sink Sink, buffer int) *Dispatcher {
	if buffer <= 0 {
		buffer = 1
	}
	if sink == nil {
		sink = NopSink{}
	}

	d := &Dispatcher{
		sink: sink,
		ch:   make(chan Event, buffer),
		done: make(chan struct{}),
	}

	d.wg.Add(1)
	go d.run()
	return d
}

func (d *Dispatcher) run() {
	defer d.wg.Done()

	for {
		select {
		case ev := <-d.ch:
			d.sink.Record(ev.Tag, ev.Fields)
		case <-d.done:
			// Drain whatever is still buffered before exiting.
			for {
				select {
				case ev := <-d.ch:
					d.sink.Record(ev.Tag, ev.Fields)
				default:
					return
				}
			}
		}
	}
}

// Record enqueues an event without blocking the caller.
func (d *Dispatcher) Record(tag string, fields map[string]any) {
	if d == nil || d.closed.Load() {
		return
	}
	ev := Event{Tag: tag, Timestamp: time.Now(), Fields: fields}
	select {
	case d.ch <- ev:
	default:
		d.dropped.Add(1)
	}
}

// Close stops accepting events, flushes the buffer, and waits for the
// worker to exit.
func (d *Dispatcher) Close() {
	if d == nil {
		return
	}
	d.closeOnce.Do(func() {
		d.closed.Store(true)
		close(d.done)
		d.wg.Wait()
	})
}

// Dropped reports how many events were discarded due to a full buffer.
func (d *Dispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}
