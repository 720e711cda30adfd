package markethandler

import (
	"time"

	"github.com/shopspring/decimal"

	"nftmarket/internal/domain/model"
	"nftmarket/internal/services/listing"
)

type AuctionBody struct {
	StartPrice         int64  `json:"start_price"`
	ReservePrice       *int64 `json:"reserve_price"`
	DurationSeconds    int64  `json:"duration_seconds"      binding:"gt=0"`
	ExtensionSeconds   int64  `json:"extension_seconds"     binding:"gte=0"`
	MinBidIncrementBps int64  `json:"min_bid_increment_bps" binding:"gte=0"`
}

type CreateListingBody struct {
	NFTAddress string            `json:"nft_address" binding:"required"`
	TokenID    string            `json:"token_id"    binding:"required"`
	Seller     string            `json:"seller"      binding:"required"`
	Chain      string            `json:"chain"`
	Type       model.ListingType `json:"type"        binding:"required,oneof=fixed english_auction dutch_auction"`
	Price      int64             `json:"price"`
	Currency   string            `json:"currency"    binding:"required"`
	StartTime  *time.Time        `json:"start_time"`
	EndTime    *time.Time        `json:"end_time"`
	Metadata   map[string]string `json:"metadata"`
	Auction    *AuctionBody      `json:"auction"`
}

func (b CreateListingBody) params() listing.CreateParams {
	p := listing.CreateParams{
		NFTAddress: b.NFTAddress,
		TokenID:    b.TokenID,
		Seller:     b.Seller,
		Chain:      b.Chain,
		Type:       b.Type,
		Price:      b.Price,
		Currency:   b.Currency,
		EndTime:    b.EndTime,
		Metadata:   b.Metadata,
	}
	if b.StartTime != nil {
		p.StartTime = b.StartTime.UTC()
	}
	if b.Auction != nil {
		at, _ := b.Type.AuctionType()
		p.Auction = &model.AuctionConfig{
			Type:               at,
			StartPrice:         b.Auction.StartPrice,
			ReservePrice:       b.Auction.ReservePrice,
			Duration:           time.Duration(b.Auction.DurationSeconds) * time.Second,
			ExtensionPeriod:    time.Duration(b.Auction.ExtensionSeconds) * time.Second,
			MinBidIncrementBps: b.Auction.MinBidIncrementBps,
			Currency:           b.Currency,
		}
	}
	return p
}

type UpdateListingBody struct {
	Seller   string            `json:"seller"   binding:"required"`
	Price    *int64            `json:"price"`
	EndTime  *time.Time        `json:"end_time"`
	Metadata map[string]string `json:"metadata"`
}

type SellerBody struct {
	Seller string `json:"seller" binding:"required"`
}

type BuyBody struct {
	Buyer    string `json:"buyer"    binding:"required"`
	Currency string `json:"currency" binding:"required"`
	TxRef    string `json:"tx_ref"`
}

type SaleBody struct {
	Buyer             string `json:"buyer"               binding:"required"`
	SalePrice         int64  `json:"sale_price"`
	CreatorRoyaltyBps int64  `json:"creator_royalty_bps"`
	TxRef             string `json:"tx_ref"`
}

type PlaceBidBody struct {
	Bidder   string `json:"bidder"   binding:"required"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency" binding:"required"`
}

type ListListingsQuery struct {
	Seller     string `form:"seller"`
	Collection string `form:"collection"`
	Status     string `form:"status" binding:"omitempty,oneof=active sold cancelled expired"`
}

type DutchPriceQuery struct {
	At string `form:"at" binding:"omitempty"` // RFC 3339, default now
}

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// ListingDTO is a listing plus human-readable amounts.
type ListingDTO struct {
	*model.Listing
	PriceDisplay string `json:"price_display"`
}

type SaleDTO struct {
	*model.Sale
	PriceDisplay          string `json:"price_display"`
	SellerProceedsDisplay string `json:"seller_proceeds_display"`
}

type DutchPriceDTO struct {
	ListingID    string    `json:"listing_id"`
	At           time.Time `json:"at"`
	Price        int64     `json:"price"`
	PriceDisplay string    `json:"price_display"`
}

type SettlementDTO struct {
	*model.SettlementResult
	Sale *SaleDTO `json:"sale,omitempty"`
}

type AuctionDTO struct {
	*model.AuctionState
	NextMinimumBid int64 `json:"next_minimum_bid,omitempty"`
	CurrentPrice   int64 `json:"current_price,omitempty"`
}

// currencyDecimals maps a currency to the exponent of its smallest unit.
var currencyDecimals = map[string]int32{
	"ETH":   18,
	"WETH":  18,
	"MATIC": 18,
	"SOL":   9,
	"USDC":  6,
}

// display renders a smallest-unit amount in whole currency units.
func display(amount int64, currency string) string {
	return decimal.New(amount, -currencyDecimals[currency]).String()
}

func listingDTO(l *model.Listing) ListingDTO {
	return ListingDTO{Listing: l, PriceDisplay: display(l.Price, l.Currency)}
}

func saleDTO(s *model.Sale) *SaleDTO {
	if s == nil {
		return nil
	}
	return &SaleDTO{
		Sale:                  s,
		PriceDisplay:          display(s.Price, s.Currency),
		SellerProceedsDisplay: display(s.Fees.SellerProceeds, s.Currency),
	}
}
