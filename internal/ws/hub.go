package ws

import (
	"sync"
)

// Hub keeps one room of connections per listing.
type Hub struct {
	rooms sync.Map // listingID -> *room
}

func NewHub() *Hub { return &Hub{} }

// Broadcast sends msg to every connection watching listingID.
func (h *Hub) Broadcast(listingID string, msg []byte) {
	if v, ok := h.rooms.Load(listingID); ok {
		v.(*room).broadcast(msg)
	}
}

func (h *Hub) Join(listingID string, c *clientConn) {
	r, _ := h.rooms.LoadOrStore(listingID, newRoom())
	r.(*room).add(c)
}

func (h *Hub) Leave(listingID string, c *clientConn) {
	v, ok := h.rooms.Load(listingID)
	if !ok {
		return
	}
	r := v.(*room)
	r.remove(c)
	if r.size() == 0 {
		h.rooms.CompareAndDelete(listingID, r)
	}
}

// Watchers returns how many connections watch listingID.
func (h *Hub) Watchers(listingID string) int {
	if v, ok := h.rooms.Load(listingID); ok {
		return v.(*room).size()
	}
	return 0
}
