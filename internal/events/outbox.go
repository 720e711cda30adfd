package events

import "sync"

// Outbox holds events recorded under a caller's lock until that lock is
// released. Events are delivered in the order they were added, by one
// flushing goroutine at a time.
type Outbox struct {
	mu       sync.Mutex
	pending  []Event
	flushing bool
}

func (o *Outbox) Add(ev Event) {
	o.mu.Lock()
	o.pending = append(o.pending, ev)
	o.mu.Unlock()
}

// Flush hands every pending event to deliver. If another call is already
// flushing, Flush returns at once and that call delivers the new events too,
// so an observer that triggers further events on the same outbox never
// blocks.
func (o *Outbox) Flush(deliver func(Event)) {
	o.mu.Lock()
	if o.flushing {
		o.mu.Unlock()
		return
	}
	o.flushing = true
	for len(o.pending) > 0 {
		batch := o.pending
		o.pending = nil
		o.mu.Unlock()
		for _, ev := range batch {
			deliver(ev)
		}
		o.mu.Lock()
	}
	o.flushing = false
	o.mu.Unlock()
}
