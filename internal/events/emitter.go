package events

import (
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// Observer receives every emitted event. A returned error is logged and
// otherwise ignored.
type Observer interface {
	Handle(ev Event) error
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(ev Event) error

func (f ObserverFunc) Handle(ev Event) error { return f(ev) }

// Emitter fans events out synchronously to its observers in subscription
// order. Observer failures, panics included, never reach the emitting caller.
type Emitter struct {
	mu        sync.RWMutex
	observers map[int]Observer
	order     []int
	nextID    int
}

func NewEmitter() *Emitter {
	return &Emitter{observers: make(map[int]Observer)}
}

// Subscribe registers o and returns a function removing it again.
func (e *Emitter) Subscribe(o Observer) (unsubscribe func()) {
	e.mu.Lock()
	id := e.nextID
	e.nextID++
	e.observers[id] = o
	e.order = append(e.order, id)
	e.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			e.mu.Lock()
			defer e.mu.Unlock()
			delete(e.observers, id)
			for i, v := range e.order {
				if v == id {
					e.order = append(e.order[:i:i], e.order[i+1:]...)
					break
				}
			}
		})
	}
}

func (e *Emitter) Emit(ev Event) {
	// Snapshot so observers may (un)subscribe from inside Handle.
	e.mu.RLock()
	obs := make([]Observer, 0, len(e.order))
	for _, id := range e.order {
		obs = append(obs, e.observers[id])
	}
	e.mu.RUnlock()

	for _, o := range obs {
		if err := dispatch(o, ev); err != nil {
			zap.L().Error("events.observer_failed",
				zap.String("kind", string(ev.Kind)),
				zap.String("listing_id", ev.ListingID),
				zap.Error(err),
			)
		}
	}
}

func dispatch(o Observer, ev Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("observer panic: %v", r)
		}
	}()
	return o.Handle(ev)
}
