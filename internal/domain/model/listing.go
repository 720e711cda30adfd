package model

import (
	"maps"
	"time"
)

type ListingType string

const (
	ListingFixed          ListingType = "fixed"
	ListingEnglishAuction ListingType = "english_auction"
	ListingDutchAuction   ListingType = "dutch_auction"
)

// IsAuction reports whether listings of this type are driven by the auction engine.
func (t ListingType) IsAuction() bool {
	return t == ListingEnglishAuction || t == ListingDutchAuction
}

// AuctionType maps an auction listing type to its auction mechanism.
func (t ListingType) AuctionType() (AuctionType, bool) {
	switch t {
	case ListingEnglishAuction:
		return AuctionEnglish, true
	case ListingDutchAuction:
		return AuctionDutch, true
	}
	return "", false
}

func (t ListingType) Valid() bool {
	return t == ListingFixed || t.IsAuction()
}

type ListingStatus string

const (
	ListingActive    ListingStatus = "active"
	ListingSold      ListingStatus = "sold"
	ListingCancelled ListingStatus = "cancelled"
	ListingExpired   ListingStatus = "expired"
)

// Terminal reports whether no further transition is allowed out of s.
func (s ListingStatus) Terminal() bool {
	return s == ListingSold || s == ListingCancelled || s == ListingExpired
}

func (s ListingStatus) Valid() bool {
	return s == ListingActive || s.Terminal()
}

// Listing is one sellable position for one token.
type Listing struct {
	ID         string `json:"id"`
	NFTAddress string `json:"nft_address"`
	TokenID    string `json:"token_id"`
	Seller     string `json:"seller"`
	Chain      string `json:"chain"`

	Type               ListingType `json:"type"`
	Price              int64       `json:"price"`
	Currency           string      `json:"currency"`
	ReservePrice       *int64      `json:"reserve_price,omitempty"`
	MinBidIncrementPct *int64      `json:"min_bid_increment_pct,omitempty"`

	Status    ListingStatus `json:"status"`
	StartTime time.Time     `json:"start_time"`
	EndTime   *time.Time    `json:"end_time,omitempty"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`

	Bids       []Bid `json:"bids"`
	HighestBid *Bid  `json:"highest_bid,omitempty"`

	Metadata map[string]string `json:"metadata,omitempty"`
	Sale     *Sale             `json:"sale,omitempty"`
}

// Clone returns a deep copy safe to hand out of the store.
func (l *Listing) Clone() *Listing {
	if l == nil {
		return nil
	}
	c := *l
	c.ReservePrice = cloneInt64(l.ReservePrice)
	c.MinBidIncrementPct = cloneInt64(l.MinBidIncrementPct)
	if l.EndTime != nil {
		t := *l.EndTime
		c.EndTime = &t
	}
	c.Bids = make([]Bid, len(l.Bids))
	copy(c.Bids, l.Bids)
	if l.HighestBid != nil {
		b := *l.HighestBid
		c.HighestBid = &b
	}
	c.Metadata = maps.Clone(l.Metadata)
	if l.Sale != nil {
		s := *l.Sale
		c.Sale = &s
	}
	return &c
}

// Sale is recorded on a listing when it transitions to sold.
type Sale struct {
	Buyer       string       `json:"buyer"`
	Price       int64        `json:"price"`
	Currency    string       `json:"currency"`
	Fees        FeeBreakdown `json:"fees"`
	TxRef       string       `json:"tx_ref"`
	CompletedAt time.Time    `json:"completed_at"`
}

func cloneInt64(p *int64) *int64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// Int64 returns a pointer to v, for optional amount fields.
func Int64(v int64) *int64 { return &v }
