package model

import (
	"time"

	"github.com/google/uuid"
)

type BidStatus string

const (
	BidActive    BidStatus = "active"
	BidOutbid    BidStatus = "outbid"
	BidWon       BidStatus = "won"
	BidCancelled BidStatus = "cancelled"
)

type Bid struct {
	ID        string    `json:"id"`
	ListingID string    `json:"listing_id"`
	Bidder    string    `json:"bidder"`
	Amount    int64     `json:"amount"`
	Currency  string    `json:"currency"`
	Timestamp time.Time `json:"timestamp"`
	Status    BidStatus `json:"status"`
}

// FeeBreakdown splits a sale price between platform, creator and seller.
type FeeBreakdown struct {
	PlatformFeeBps    int64 `json:"platform_fee_bps"`
	CreatorRoyaltyBps int64 `json:"creator_royalty_bps"`
	PlatformFee       int64 `json:"platform_fee"`
	CreatorRoyalty    int64 `json:"creator_royalty"`
	SellerProceeds    int64 `json:"seller_proceeds"`
}

// NewID returns a fresh random identifier for listings and bids.
func NewID() string { return uuid.NewString() }

// Clock supplies the current time to time-sensitive operations.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to Clock.
type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time { return f() }

// SystemClock reads the wall clock in UTC.
var SystemClock Clock = ClockFunc(func() time.Time { return time.Now().UTC() })
