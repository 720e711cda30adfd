package marketplace

import (
	"time"

	"go.uber.org/zap"

	"nftmarket/internal/domain/apperr"
	"nftmarket/internal/domain/model"
	"nftmarket/internal/events"
	"nftmarket/internal/services/auction"
	"nftmarket/internal/services/listing"
)

// RoyaltyResolver supplies the creator royalty applied when a listing sells.
type RoyaltyResolver interface {
	CreatorRoyaltyBps(l model.Listing) (int64, error)
}

// FixedRoyalty applies the same royalty to every sale.
type FixedRoyalty int64

func (f FixedRoyalty) CreatorRoyaltyBps(model.Listing) (int64, error) { return int64(f), nil }

type Filter struct {
	Seller     string
	Collection string
	Status     model.ListingStatus
}

type SweepReport struct {
	Expired int `json:"expired"`
	Settled int `json:"settled"`
	Sold    int `json:"sold"`
	Failed  int `json:"failed"`
}

type Stats struct {
	ByStatus      map[model.ListingStatus]int `json:"by_status"`
	OpenAuctions  int                         `json:"open_auctions"`
	SettleableNow int                         `json:"settleable_now"`
}

type IMarketplace interface {
	CreateListing(p listing.CreateParams) (*model.Listing, error)
	UpdateListing(id, seller string, p listing.UpdateParams) (*model.Listing, error)
	CancelListing(id, seller string) error
	GetListing(id string) (*model.Listing, error)
	ListListings(f Filter) []*model.Listing
	Stats() Stats

	BuyNow(id, buyer, currency, txRef string) (*model.Sale, error)
	CompleteSale(id, buyer string, salePrice, creatorRoyaltyBps int64, txRef string) (*model.Sale, error)

	GetAuction(id string) (*model.AuctionState, error)
	PlaceBid(id, bidder string, amount int64, currency string) (*model.Bid, error)
	NextMinimumBid(id string) (int64, error)
	DutchPrice(id string, at time.Time) (int64, error)
	AcceptDutchPrice(id, buyer, currency, txRef string) (*model.Sale, error)
	SettleAuction(id string) (*model.SettlementResult, *model.Sale, error)
	CancelAuction(id, seller string) error

	RunSweep() SweepReport
}

type marketplace struct {
	store   *listing.Store
	engine  *auction.Engine
	royalty RoyaltyResolver
	clock   model.Clock
}

var _ IMarketplace = (*marketplace)(nil)

// New wires a listing store and an auction engine to em. The store is
// subscribed to em so it mirrors the engine's bids and cancellations.
func New(em *events.Emitter, store *listing.Store, engine *auction.Engine, royalty RoyaltyResolver, clock model.Clock) IMarketplace {
	if clock == nil {
		clock = model.SystemClock
	}
	if royalty == nil {
		royalty = FixedRoyalty(0)
	}
	em.Subscribe(store)
	return &marketplace{store: store, engine: engine, royalty: royalty, clock: clock}
}

// CreateListing stores the listing and, for auction types, its auction. The
// auction config is validated first so a bad config leaves nothing behind.
func (m *marketplace) CreateListing(p listing.CreateParams) (*model.Listing, error) {
	var cfg model.AuctionConfig
	if p.Auction != nil {
		cfg = *p.Auction
		if cfg.Currency == "" {
			cfg.Currency = p.Currency
		}
		if cfg.Currency != p.Currency {
			return nil, apperr.ErrCurrencyMismatch.WithReason("auction currency differs from listing currency")
		}
		if p.ReservePrice == nil && cfg.ReservePrice != nil {
			r := *cfg.ReservePrice
			p.ReservePrice = &r
		}
		if p.MinBidIncrementPct == nil && cfg.Type == model.AuctionEnglish {
			pct := cfg.MinBidIncrementBps / 100
			p.MinBidIncrementPct = &pct
		}
		if err := auction.ValidateConfig(cfg); err != nil {
			return nil, err
		}
		p.Auction = &cfg
	}

	l, err := m.store.CreateListing(p)
	if err != nil {
		return nil, err
	}
	if p.Auction == nil {
		return l, nil
	}
	if _, err := m.engine.CreateAuction(*l, cfg); err != nil {
		zap.L().Error("marketplace.create_auction_failed", zap.String("listing_id", l.ID), zap.Error(err))
		if cerr := m.store.CancelListing(l.ID, l.Seller); cerr != nil {
			zap.L().Error("marketplace.rollback_failed", zap.String("listing_id", l.ID), zap.Error(cerr))
		}
		return nil, err
	}
	return m.store.Get(l.ID)
}

func (m *marketplace) UpdateListing(id, seller string, p listing.UpdateParams) (*model.Listing, error) {
	return m.store.UpdateListing(id, seller, p)
}

// CancelListing cancels fixed listings directly and routes auction listings
// through the engine so both sides end up cancelled.
func (m *marketplace) CancelListing(id, seller string) error {
	l, err := m.store.Get(id)
	if err != nil {
		return err
	}
	if l.Type.IsAuction() {
		return m.CancelAuction(id, seller)
	}
	return m.store.CancelListing(id, seller)
}

func (m *marketplace) GetListing(id string) (*model.Listing, error) { return m.store.Get(id) }

func (m *marketplace) ListListings(f Filter) []*model.Listing {
	var out []*model.Listing
	switch {
	case f.Seller != "":
		out = m.store.BySeller(f.Seller)
	case f.Collection != "":
		out = m.store.ByCollection(f.Collection)
	case f.Status != "":
		out = m.store.ByStatus(f.Status)
	default:
		out = m.store.All()
	}
	filtered := out[:0]
	for _, l := range out {
		if f.Seller != "" && l.Seller != f.Seller ||
			f.Collection != "" && l.NFTAddress != f.Collection ||
			f.Status != "" && l.Status != f.Status {
			continue
		}
		filtered = append(filtered, l)
	}
	return filtered
}

func (m *marketplace) Stats() Stats {
	open := 0
	for _, st := range m.engine.Auctions() {
		if !st.Phase.Closed() {
			open++
		}
	}
	return Stats{
		ByStatus:      m.store.CountByStatus(),
		OpenAuctions:  open,
		SettleableNow: len(m.engine.GetSettleableAuctions()),
	}
}

// BuyNow sells a fixed-price listing at its listed price.
func (m *marketplace) BuyNow(id, buyer, currency, txRef string) (*model.Sale, error) {
	l, err := m.store.Get(id)
	if err != nil {
		return nil, err
	}
	if l.Type != model.ListingFixed {
		return nil, apperr.ErrWrongAuctionType.WithReason("buy now is only available on fixed-price listings")
	}
	if l.Status != model.ListingActive {
		return nil, apperr.ErrInvalidStatus.WithReasonf("listing is %s", l.Status)
	}
	now := m.clock.Now()
	if now.Before(l.StartTime) {
		return nil, apperr.ErrInvalidStatus.WithReason("listing has not started")
	}
	if l.EndTime != nil && !now.Before(*l.EndTime) {
		return nil, apperr.ErrInvalidStatus.WithReason("listing has ended")
	}
	if currency != l.Currency {
		return nil, apperr.ErrCurrencyMismatch.WithReasonf("listing currency is %s", l.Currency)
	}
	if buyer == l.Seller {
		return nil, apperr.ErrInvalidBidder.WithReason("seller cannot buy own listing")
	}
	bps, err := m.royalty.CreatorRoyaltyBps(*l)
	if err != nil {
		return nil, err
	}
	return m.store.CompleteSale(id, buyer, l.Price, bps, txRef)
}

// CompleteSale records a sale settled outside the marketplace. Auction
// listings only sell through SettleAuction or AcceptDutchPrice, so the
// engine and the listing always agree on the outcome.
func (m *marketplace) CompleteSale(id, buyer string, salePrice, creatorRoyaltyBps int64, txRef string) (*model.Sale, error) {
	l, err := m.store.Get(id)
	if err != nil {
		return nil, err
	}
	if l.Type.IsAuction() {
		return nil, apperr.ErrWrongAuctionType.WithReason("auction listings sell through settlement or dutch acceptance")
	}
	return m.store.CompleteSale(id, buyer, salePrice, creatorRoyaltyBps, txRef)
}

func (m *marketplace) GetAuction(id string) (*model.AuctionState, error) { return m.engine.GetAuction(id) }

func (m *marketplace) PlaceBid(id, bidder string, amount int64, currency string) (*model.Bid, error) {
	return m.engine.PlaceBid(id, bidder, amount, currency)
}

func (m *marketplace) NextMinimumBid(id string) (int64, error) { return m.engine.NextMinimumBid(id) }

func (m *marketplace) DutchPrice(id string, at time.Time) (int64, error) {
	if at.IsZero() {
		return m.engine.GetDutchAuctionPrice(id)
	}
	return m.engine.DutchPriceAt(id, at)
}

// AcceptDutchPrice settles a dutch auction for buyer and completes the sale
// at the accepted price.
func (m *marketplace) AcceptDutchPrice(id, buyer, currency, txRef string) (*model.Sale, error) {
	l, err := m.store.Get(id)
	if err != nil {
		return nil, err
	}
	if l.Status != model.ListingActive {
		return nil, apperr.ErrInvalidStatus.WithReasonf("listing is %s", l.Status)
	}
	bps, err := m.royalty.CreatorRoyaltyBps(*l)
	if err != nil {
		return nil, err
	}
	bid, err := m.engine.AcceptDutchAuctionPrice(id, buyer, currency)
	if err != nil {
		return nil, err
	}
	sale, err := m.store.CompleteSale(id, buyer, bid.Amount, bps, txRef)
	if err != nil {
		zap.L().Error("marketplace.dutch_sale_failed", zap.String("listing_id", id), zap.Error(err))
		return nil, err
	}
	return sale, nil
}

// SettleAuction settles an english auction. A winning bid completes the sale;
// an unmet reserve expires the listing so the seller can list again.
func (m *marketplace) SettleAuction(id string) (*model.SettlementResult, *model.Sale, error) {
	l, err := m.store.Get(id)
	if err != nil {
		return nil, nil, err
	}
	if l.Status != model.ListingActive {
		return nil, nil, apperr.ErrInvalidStatus.WithReasonf("listing is %s", l.Status)
	}
	bps, err := m.royalty.CreatorRoyaltyBps(*l)
	if err != nil {
		return nil, nil, err
	}
	res, err := m.engine.SettleAuction(id)
	if err != nil {
		return nil, nil, err
	}
	if !res.ReserveMet {
		if err := m.store.ExpireListing(id); err != nil {
			return res, nil, err
		}
		return res, nil, nil
	}
	sale, err := m.store.CompleteSale(id, res.Winner, res.WinningBid.Amount, bps, "auction:"+res.WinningBid.ID)
	if err != nil {
		zap.L().Error("marketplace.auction_sale_failed", zap.String("listing_id", id), zap.Error(err))
		return res, nil, err
	}
	return res, sale, nil
}

func (m *marketplace) CancelAuction(id, seller string) error {
	l, err := m.store.Get(id)
	if err != nil {
		return err
	}
	if l.Seller != seller {
		return apperr.ErrUnauthorized.WithReason("only the seller may cancel an auction")
	}
	if l.Status != model.ListingActive {
		return apperr.ErrInvalidStatus.WithReasonf("listing is %s", l.Status)
	}
	return m.engine.CancelAuction(id)
}

// RunSweep expires stale fixed listings and settles every english auction
// past its effective end. Failures are logged and retried next sweep.
func (m *marketplace) RunSweep() SweepReport {
	rep := SweepReport{Expired: m.store.ExpireStaleListings()}
	for _, id := range m.engine.GetSettleableAuctions() {
		_, sale, err := m.SettleAuction(id)
		if err != nil {
			rep.Failed++
			zap.L().Warn("marketplace.sweep_settle_failed", zap.String("listing_id", id), zap.Error(err))
			continue
		}
		rep.Settled++
		if sale != nil {
			rep.Sold++
		}
	}
	return rep
}
