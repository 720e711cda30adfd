package eventpub

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"nftmarket/internal/events"
)

const (
	// StreamKey is the redis stream every event is appended to.
	StreamKey = "market_events"

	streamMaxLen = 100_000
)

var ErrQueueFull = errors.New("event queue full")

// Channel is the pub/sub channel carrying events for one listing.
func Channel(listingID string) string { return "listing:" + listingID + ":events" }

// Publisher forwards domain events to redis. Handle only enqueues, so the
// emitting operation never waits on the network; Run does the I/O.
type Publisher struct {
	rdb     redis.Cmdable
	queue   chan events.Event
	dropped atomic.Int64
}

func New(rdb redis.Cmdable, buffer int) *Publisher {
	return &Publisher{rdb: rdb, queue: make(chan events.Event, buffer)}
}

func (p *Publisher) Handle(ev events.Event) error {
	select {
	case p.queue <- ev:
		return nil
	default:
		p.dropped.Add(1)
		return ErrQueueFull
	}
}

// Dropped counts events discarded because the queue was full.
func (p *Publisher) Dropped() int64 { return p.dropped.Load() }

// Run drains the queue until ctx is cancelled.
func (p *Publisher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-p.queue:
			if err := p.publish(ctx, ev); err != nil {
				zap.L().Warn("eventpub.publish",
					zap.String("kind", string(ev.Kind)),
					zap.String("listing_id", ev.ListingID),
					zap.Error(err),
				)
			}
		}
	}
}

func (p *Publisher) publish(ctx context.Context, ev events.Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	if err := p.rdb.Publish(ctx, Channel(ev.ListingID), payload).Err(); err != nil {
		return err
	}
	return p.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: StreamKey,
		MaxLen: streamMaxLen,
		Approx: true,
		Values: []any{
			"type", string(ev.Kind),
			"listing_id", ev.ListingID,
			"at", ev.Timestamp.UnixMilli(),
			"payload", string(payload),
		},
	}).Err()
}
