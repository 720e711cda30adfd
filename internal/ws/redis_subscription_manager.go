package ws

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"nftmarket/internal/redis/eventpub"
)

// roomSubscriber is told when a listing room gains or loses a connection.
type roomSubscriber interface {
	Subscribe(listingID string)
	Unsubscribe(listingID string)
}

// subscriptionManager holds exactly one redis subscription per listing
// channel, however many websocket clients watch that listing.
type subscriptionManager struct {
	rdb  *redis.Client
	hub  *Hub
	mu   sync.Mutex
	subs map[string]*subEntry // listingID -> subscription data
}

type subEntry struct {
	refCnt int
	cancel context.CancelFunc
}

func newSubscriptionManager(rdb *redis.Client, hub *Hub) *subscriptionManager {
	return &subscriptionManager{
		rdb:  rdb,
		hub:  hub,
		subs: make(map[string]*subEntry),
	}
}

// Subscribe opens the listing's channel on first use; later calls only bump
// the ref-counter.
func (sm *subscriptionManager) Subscribe(listingID string) {
	sm.mu.Lock()
	if e, ok := sm.subs[listingID]; ok {
		e.refCnt++
		sm.mu.Unlock()
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	ps := sm.rdb.Subscribe(ctx, eventpub.Channel(listingID))

	sm.subs[listingID] = &subEntry{refCnt: 1, cancel: cancel}
	sm.mu.Unlock()

	go func() {
		defer ps.Close()

		for {
			select {
			case <-ctx.Done():
				return
			case m, ok := <-ps.Channel():
				if !ok {
					return
				}
				wrapped, err := wrapEvent([]byte(m.Payload))
				if err != nil {
					zap.L().Warn("ws.wrap_event_failed", zap.Error(err))
					wrapped = []byte(m.Payload)
				}
				sm.hub.Broadcast(listingID, wrapped)
			}
		}
	}()
}

// Unsubscribe drops the subscription when the last client leaves the room.
func (sm *subscriptionManager) Unsubscribe(listingID string) {
	sm.mu.Lock()
	e, ok := sm.subs[listingID]
	if !ok {
		sm.mu.Unlock()
		return
	}
	e.refCnt--
	if e.refCnt > 0 {
		sm.mu.Unlock()
		return
	}
	delete(sm.subs, listingID)
	sm.mu.Unlock()

	e.cancel()
}

// wrapEvent turns
//
//	{"type":"bid_placed","listingId":"l1","timestamp":"…","data":{…}}
//
// into
//
//	{"event":"listings/bid_placed","body":{"listingId":"l1","timestamp":"…","data":{…}}}
func wrapEvent(payload []byte) ([]byte, error) {
	var raw map[string]any
	if err := json.Unmarshal(payload, &raw); err != nil {
		return nil, err
	}

	evt, _ := raw["type"].(string)
	if evt == "" {
		evt = "unknown"
	}
	delete(raw, "type")

	return json.Marshal(map[string]any{
		"event": "listings/" + evt,
		"body":  raw,
	})
}
