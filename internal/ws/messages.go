package ws

import (
	"encoding/json"

	"nftmarket/internal/domain/model"
)

// Envelope wraps every WS frame.
type Envelope struct {
	Event string          `json:"event"`          // e.g. "auctions/bid"
	Body  json.RawMessage `json:"body,omitempty"` // arbitrary JSON object
}

// BidRequest is the body for "auctions/bid".
type BidRequest struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

// AcceptRequest is the body for "auctions/accept".
type AcceptRequest struct {
	Currency string `json:"currency"`
	TxRef    string `json:"tx_ref,omitempty"`
}

type BidAck struct {
	Bid         *model.Bid `json:"bid"`
	NextMinimum int64      `json:"next_minimum,omitempty"`
}

type AcceptAck struct {
	Sale *model.Sale `json:"sale"`
}

type Snapshot struct {
	Listing     *model.Listing      `json:"listing"`
	Auction     *model.AuctionState `json:"auction,omitempty"`
	DutchPrice  int64               `json:"dutch_price,omitempty"`
	NextMinimum int64               `json:"next_minimum,omitempty"`
}

// ErrorBody is returned for failures.
type ErrorBody struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}
