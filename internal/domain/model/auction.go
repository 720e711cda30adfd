package model

import "time"

type AuctionType string

const (
	AuctionEnglish AuctionType = "english"
	AuctionDutch   AuctionType = "dutch"
)

type AuctionPhase string

const (
	PhasePending   AuctionPhase = "pending"
	PhaseActive    AuctionPhase = "active"
	PhaseEnding    AuctionPhase = "ending"
	PhaseSettled   AuctionPhase = "settled"
	PhaseCancelled AuctionPhase = "cancelled"
)

// Closed reports whether the phase accepts no further bids or settlement.
func (p AuctionPhase) Closed() bool {
	return p == PhaseSettled || p == PhaseCancelled
}

// AuctionConfig is fixed at auction creation.
type AuctionConfig struct {
	Type               AuctionType   `json:"type"`
	StartPrice         int64         `json:"start_price"`
	ReservePrice       *int64        `json:"reserve_price,omitempty"`
	Duration           time.Duration `json:"duration"`
	ExtensionPeriod    time.Duration `json:"extension_period"`      // english only
	MinBidIncrementBps int64         `json:"min_bid_increment_bps"` // english only
	Currency           string        `json:"currency"`
}

// Reserve returns the reserve price or 0 when none is set.
func (c AuctionConfig) Reserve() int64 {
	if c.ReservePrice == nil {
		return 0
	}
	return *c.ReservePrice
}

// AuctionState is the engine's runtime record for one auction listing.
type AuctionState struct {
	ListingID        string        `json:"listing_id"`
	Seller           string        `json:"seller"`
	Config           AuctionConfig `json:"config"`
	Phase            AuctionPhase  `json:"phase"`
	StartTime        time.Time     `json:"start_time"`
	EndTime          time.Time     `json:"end_time"`
	EffectiveEndTime time.Time     `json:"effective_end_time"`
	Bids             []Bid         `json:"bids"`
	HighestBid       *Bid          `json:"highest_bid,omitempty"`
	ExtensionCount   int           `json:"extension_count"`
	Settled          bool          `json:"settled"`
}

// Clone returns a deep copy of the state.
func (s *AuctionState) Clone() *AuctionState {
	if s == nil {
		return nil
	}
	c := *s
	c.Config.ReservePrice = cloneInt64(s.Config.ReservePrice)
	c.Bids = make([]Bid, len(s.Bids))
	copy(c.Bids, s.Bids)
	if s.HighestBid != nil {
		b := *s.HighestBid
		c.HighestBid = &b
	}
	return &c
}

// SettlementResult is what settling an english auction produced.
type SettlementResult struct {
	ListingID  string `json:"listing_id"`
	ReserveMet bool   `json:"reserve_met"`
	Winner     string `json:"winner,omitempty"`
	WinningBid *Bid   `json:"winning_bid,omitempty"`
	TotalBids  int    `json:"total_bids"`
}
