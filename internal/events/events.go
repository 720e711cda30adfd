package events

import (
	"encoding/json"
	"fmt"
	"time"

	"nftmarket/internal/domain/model"
)

type Kind string

const (
	KindListingCreated   Kind = "listing_created"
	KindListingUpdated   Kind = "listing_updated"
	KindListingCancelled Kind = "listing_cancelled"
	KindPriceUpdated     Kind = "price_updated"
	KindSaleCompleted    Kind = "sale_completed"
	KindAuctionStarted   Kind = "auction_started"
	KindBidPlaced        Kind = "bid_placed"
	KindAuctionEnded     Kind = "auction_ended"
)

// Event is one domain event. Data always holds the payload type matching Kind.
type Event struct {
	Kind      Kind
	ListingID string
	Timestamp time.Time
	Data      Payload
}

// Payload is implemented only by the payload structs in this package.
type Payload interface {
	kind() Kind
}

// New builds an event whose Kind is taken from the payload.
func New(listingID string, at time.Time, data Payload) Event {
	return Event{Kind: data.kind(), ListingID: listingID, Timestamp: at, Data: data}
}

type ListingCreated struct {
	Listing model.Listing `json:"listing"`
}

type ListingUpdated struct {
	Status   model.ListingStatus `json:"status"`
	EndTime  *time.Time          `json:"end_time,omitempty"`
	Metadata map[string]string   `json:"metadata,omitempty"`
}

const (
	CancelReasonSeller  = "seller_cancelled"
	CancelReasonAuction = "auction_cancelled"
)

type ListingCancelled struct {
	Seller string `json:"seller,omitempty"`
	Reason string `json:"reason"`
}

type PriceUpdated struct {
	OldPrice int64      `json:"old_price"`
	NewPrice int64      `json:"new_price"`
	EndTime  *time.Time `json:"end_time,omitempty"`
}

type SaleCompleted struct {
	Buyer    string             `json:"buyer"`
	Seller   string             `json:"seller"`
	Price    int64              `json:"price"`
	Currency string             `json:"currency"`
	Fees     model.FeeBreakdown `json:"fees"`
	TxRef    string             `json:"tx_ref"`
}

type AuctionStarted struct {
	Config    model.AuctionConfig `json:"config"`
	Phase     model.AuctionPhase  `json:"phase"`
	StartTime time.Time           `json:"start_time"`
	EndTime   time.Time           `json:"end_time"`
}

type BidPlaced struct {
	Bid              model.Bid  `json:"bid"`
	PreviousBid      *model.Bid `json:"previous_bid,omitempty"`
	EffectiveEndTime time.Time  `json:"effective_end_time"`
	Extended         bool       `json:"extended"`
}

type AuctionEnded struct {
	Winner     string     `json:"winner,omitempty"`
	WinningBid *model.Bid `json:"winning_bid,omitempty"`
	ReserveMet bool       `json:"reserve_met"`
	TotalBids  int        `json:"total_bids"`
}

func (ListingCreated) kind() Kind   { return KindListingCreated }
func (ListingUpdated) kind() Kind   { return KindListingUpdated }
func (ListingCancelled) kind() Kind { return KindListingCancelled }
func (PriceUpdated) kind() Kind     { return KindPriceUpdated }
func (SaleCompleted) kind() Kind    { return KindSaleCompleted }
func (AuctionStarted) kind() Kind   { return KindAuctionStarted }
func (BidPlaced) kind() Kind        { return KindBidPlaced }
func (AuctionEnded) kind() Kind     { return KindAuctionEnded }

type wireEvent struct {
	Type      Kind            `json:"type"`
	ListingID string          `json:"listingId"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

func (e Event) MarshalJSON() ([]byte, error) {
	data, err := json.Marshal(e.Data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(wireEvent{Type: e.Kind, ListingID: e.ListingID, Timestamp: e.Timestamp, Data: data})
}

func (e *Event) UnmarshalJSON(b []byte) error {
	var w wireEvent
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	p, err := emptyPayload(w.Type)
	if err != nil {
		return err
	}
	if len(w.Data) > 0 {
		if err := json.Unmarshal(w.Data, p); err != nil {
			return fmt.Errorf("decode %s payload: %w", w.Type, err)
		}
	}
	*e = Event{Kind: w.Type, ListingID: w.ListingID, Timestamp: w.Timestamp, Data: derefPayload(p)}
	return nil
}

func emptyPayload(k Kind) (any, error) {
	switch k {
	case KindListingCreated:
		return &ListingCreated{}, nil
	case KindListingUpdated:
		return &ListingUpdated{}, nil
	case KindListingCancelled:
		return &ListingCancelled{}, nil
	case KindPriceUpdated:
		return &PriceUpdated{}, nil
	case KindSaleCompleted:
		return &SaleCompleted{}, nil
	case KindAuctionStarted:
		return &AuctionStarted{}, nil
	case KindBidPlaced:
		return &BidPlaced{}, nil
	case KindAuctionEnded:
		return &AuctionEnded{}, nil
	}
	return nil, fmt.Errorf("unknown event type %q", k)
}

func derefPayload(p any) Payload {
	switch v := p.(type) {
	case *ListingCreated:
		return *v
	case *ListingUpdated:
		return *v
	case *ListingCancelled:
		return *v
	case *PriceUpdated:
		return *v
	case *SaleCompleted:
		return *v
	case *AuctionStarted:
		return *v
	case *BidPlaced:
		return *v
	case *AuctionEnded:
		return *v
	}
	return nil
}
