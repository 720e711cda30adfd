package ws

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"

	"go.uber.org/zap"

	"nftmarket/internal/events"
)

var ErrFanoutFull = errors.New("fanout queue full")

// LocalFanout delivers emitter events to the hub. It stands in for the redis
// subscription path when the process runs without redis. Handle only
// enqueues; Run does the socket writes.
type LocalFanout struct {
	hub     *Hub
	queue   chan events.Event
	dropped atomic.Int64
}

func NewLocalFanout(hub *Hub, buffer int) *LocalFanout {
	return &LocalFanout{hub: hub, queue: make(chan events.Event, buffer)}
}

func (f *LocalFanout) Handle(ev events.Event) error {
	select {
	case f.queue <- ev:
		return nil
	default:
		f.dropped.Add(1)
		return ErrFanoutFull
	}
}

// Dropped counts events discarded because the queue was full.
func (f *LocalFanout) Dropped() int64 { return f.dropped.Load() }

// Run drains the queue until ctx is cancelled.
func (f *LocalFanout) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-f.queue:
			if err := f.deliver(ev); err != nil {
				zap.L().Warn("ws.fanout",
					zap.String("kind", string(ev.Kind)),
					zap.String("listing_id", ev.ListingID),
					zap.Error(err),
				)
			}
		}
	}
}

func (f *LocalFanout) deliver(ev events.Event) error {
	if f.hub.Watchers(ev.ListingID) == 0 {
		return nil
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	wrapped, err := wrapEvent(payload)
	if err != nil {
		return err
	}
	f.hub.Broadcast(ev.ListingID, wrapped)
	return nil
}

type noopSubscriber struct{}

func (noopSubscriber) Subscribe(string)   {}
func (noopSubscriber) Unsubscribe(string) {}
