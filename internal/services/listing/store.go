package listing

import (
	"maps"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"nftmarket/internal/domain/apperr"
	"nftmarket/internal/domain/model"
	"nftmarket/internal/events"
	"nftmarket/internal/services/fees"
)

const (
	// MaxListingWindow caps how far past creation a listing may run.
	MaxListingWindow = 90 * 24 * time.Hour
	// DefaultMinPrice is the smallest price a listing may be created with.
	DefaultMinPrice int64 = 1_000
)

// Publisher is where the store sends its domain events.
type Publisher interface {
	Emit(ev events.Event)
}

type CreateParams struct {
	NFTAddress string
	TokenID    string
	Seller     string
	Chain      string

	Type               model.ListingType
	Price              int64
	Currency           string
	ReservePrice       *int64
	MinBidIncrementPct *int64

	StartTime time.Time // zero means now
	EndTime   *time.Time

	Auction  *model.AuctionConfig
	Metadata map[string]string
}

type UpdateParams struct {
	Price    *int64
	EndTime  *time.Time
	Metadata map[string]string
}

// Store owns listings and their status transitions. Each listing has its own
// lock; the map lock is only held for lookups and inserts.
type Store struct {
	mu       sync.RWMutex
	listings map[string]*entry

	pub      Publisher
	clock    model.Clock
	minPrice int64
}

// entry is one listing. Events are queued in out while mu is held and
// delivered after it is released.
type entry struct {
	mu  sync.Mutex
	l   model.Listing
	out events.Outbox
}

type Option func(*Store)

func WithClock(c model.Clock) Option { return func(s *Store) { s.clock = c } }

func WithMinPrice(p int64) Option { return func(s *Store) { s.minPrice = p } }

func NewStore(pub Publisher, opts ...Option) *Store {
	s := &Store{
		listings: make(map[string]*entry),
		pub:      pub,
		clock:    model.SystemClock,
		minPrice: DefaultMinPrice,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Store) CreateListing(p CreateParams) (*model.Listing, error) {
	now := s.clock.Now()
	if err := s.validateCreate(p, now); err != nil {
		return nil, err
	}

	start := p.StartTime
	if start.IsZero() {
		start = now
	}
	l := model.Listing{
		ID:                 model.NewID(),
		NFTAddress:         p.NFTAddress,
		TokenID:            p.TokenID,
		Seller:             p.Seller,
		Chain:              p.Chain,
		Type:               p.Type,
		Price:              p.Price,
		Currency:           p.Currency,
		ReservePrice:       p.ReservePrice,
		MinBidIncrementPct: p.MinBidIncrementPct,
		Status:             model.ListingActive,
		StartTime:          start,
		EndTime:            auctionEnd(p, start),
		CreatedAt:          now,
		UpdatedAt:          now,
		Bids:               []model.Bid{},
		Metadata:           maps.Clone(p.Metadata),
	}
	l = *l.Clone()

	e := &entry{l: l}
	defer s.flush(e)
	e.mu.Lock()
	defer e.mu.Unlock()
	s.mu.Lock()
	s.listings[l.ID] = e
	s.mu.Unlock()

	zap.L().Info("listing.created",
		zap.String("listing_id", l.ID),
		zap.String("type", string(l.Type)),
		zap.String("seller", l.Seller),
		zap.Int64("price", l.Price),
	)
	s.emit(e, now, events.ListingCreated{Listing: *l.Clone()})
	return l.Clone(), nil
}

// auctionEnd is the listing end time; auctions always end start+Duration.
func auctionEnd(p CreateParams, start time.Time) *time.Time {
	if p.Auction == nil {
		return p.EndTime
	}
	end := start.Add(p.Auction.Duration)
	return &end
}

func (s *Store) validateCreate(p CreateParams, now time.Time) error {
	switch {
	case p.NFTAddress == "" || p.TokenID == "":
		return apperr.ErrInvalidListing.WithReason("nft address and token id are required")
	case p.Seller == "":
		return apperr.ErrInvalidListing.WithReason("seller is required")
	case !p.Type.Valid():
		return apperr.ErrInvalidListing.WithReasonf("unknown listing type %q", p.Type)
	case p.Currency == "":
		return apperr.ErrInvalidListing.WithReason("currency is required")
	case p.Price <= 0:
		return apperr.ErrInvalidListing.WithReason("price must be positive")
	case p.Price < s.minPrice:
		return apperr.ErrInvalidListing.WithReasonf("price below minimum of %d", s.minPrice)
	case p.Type.IsAuction() && p.Auction == nil:
		return apperr.ErrInvalidListing.WithReason("auction listing requires an auction config")
	case p.Type == model.ListingFixed && p.Auction != nil:
		return apperr.ErrInvalidListing.WithReason("fixed listing must not carry an auction config")
	case p.ReservePrice != nil && *p.ReservePrice < 0:
		return apperr.ErrInvalidListing.WithReason("reserve price must not be negative")
	case p.MinBidIncrementPct != nil && (*p.MinBidIncrementPct < 1 || *p.MinBidIncrementPct > 50):
		return apperr.ErrInvalidListing.WithReason("min bid increment must be within [1, 50] percent")
	}
	if p.Auction != nil {
		if want, _ := p.Type.AuctionType(); p.Auction.Type != want {
			return apperr.ErrInvalidListing.WithReasonf("auction config type %q does not match listing type %q", p.Auction.Type, p.Type)
		}
	}
	if p.Type == model.ListingDutchAuction && p.ReservePrice != nil && *p.ReservePrice >= p.Price {
		return apperr.ErrInvalidListing.WithReason("dutch reserve price must be below price")
	}
	if p.Auction != nil && p.EndTime != nil {
		start := p.StartTime
		if start.IsZero() {
			start = now
		}
		if !p.EndTime.Equal(start.Add(p.Auction.Duration)) {
			return apperr.ErrInvalidListing.WithReason("auction end time follows from its start and duration")
		}
	}
	if p.EndTime != nil {
		if !p.EndTime.After(now) {
			return apperr.ErrInvalidListing.WithReason("end time must be in the future")
		}
		if p.EndTime.After(now.Add(MaxListingWindow)) {
			return apperr.ErrInvalidListing.WithReason("end time exceeds 90 day limit")
		}
		if !p.StartTime.IsZero() && !p.EndTime.After(p.StartTime) {
			return apperr.ErrInvalidListing.WithReason("end time must be after start time")
		}
	}
	return nil
}

// UpdateListing changes price, end time or metadata of an active listing.
// Auction listings only take metadata changes; their terms live in the
// auction config, which never changes once the auction exists.
func (s *Store) UpdateListing(id, seller string, p UpdateParams) (*model.Listing, error) {
	e, err := s.lookup(id)
	if err != nil {
		return nil, err
	}
	defer s.flush(e)
	e.mu.Lock()
	defer e.mu.Unlock()

	l := &e.l
	if l.Seller != seller {
		return nil, apperr.ErrUnauthorized.WithReason("only the seller may update a listing")
	}
	if l.Status != model.ListingActive {
		return nil, apperr.ErrInvalidStatus.WithReasonf("listing is %s", l.Status)
	}
	if p.Price == nil && p.EndTime == nil && p.Metadata == nil {
		return nil, apperr.ErrInvalidListing.WithReason("nothing to update")
	}
	now := s.clock.Now()
	if (p.Price != nil || p.EndTime != nil) && l.Type.IsAuction() {
		if len(l.Bids) > 0 {
			return nil, apperr.ErrAuctionHasBids.WithReasonf("%d bids placed", len(l.Bids))
		}
		return nil, apperr.ErrWrongAuctionType.WithReason("auction price and end time are fixed by its config")
	}
	if p.Price != nil && (*p.Price <= 0 || *p.Price < s.minPrice) {
		return nil, apperr.ErrInvalidPrice.WithReasonf("price must be at least %d", s.minPrice)
	}
	if p.Price != nil && l.Type == model.ListingDutchAuction && l.ReservePrice != nil && *l.ReservePrice >= *p.Price {
		return nil, apperr.ErrInvalidPrice.WithReason("dutch reserve price must stay below price")
	}
	if p.EndTime != nil {
		if !p.EndTime.After(now) {
			return nil, apperr.ErrInvalidListing.WithReason("end time must be in the future")
		}
		if p.EndTime.After(l.CreatedAt.Add(MaxListingWindow)) {
			return nil, apperr.ErrInvalidListing.WithReason("end time exceeds 90 days from creation")
		}
	}

	oldPrice := l.Price
	if p.Price != nil {
		l.Price = *p.Price
	}
	if p.EndTime != nil {
		end := *p.EndTime
		l.EndTime = &end
	}
	if p.Metadata != nil {
		if l.Metadata == nil {
			l.Metadata = make(map[string]string, len(p.Metadata))
		}
		maps.Copy(l.Metadata, p.Metadata)
	}
	l.UpdatedAt = now

	if p.Price != nil && *p.Price != oldPrice {
		s.emit(e, now, events.PriceUpdated{OldPrice: oldPrice, NewPrice: l.Price, EndTime: p.EndTime})
	} else {
		s.emit(e, now, events.ListingUpdated{Status: l.Status, EndTime: p.EndTime, Metadata: maps.Clone(p.Metadata)})
	}
	return l.Clone(), nil
}

// CancelListing withdraws an active listing. Auctions that received bids
// must be settled through the auction engine instead.
func (s *Store) CancelListing(id, seller string) error {
	e, err := s.lookup(id)
	if err != nil {
		return err
	}
	defer s.flush(e)
	e.mu.Lock()
	defer e.mu.Unlock()

	l := &e.l
	if l.Seller != seller {
		return apperr.ErrUnauthorized.WithReason("only the seller may cancel a listing")
	}
	if l.Status != model.ListingActive {
		return apperr.ErrInvalidStatus.WithReasonf("listing is %s", l.Status)
	}
	if l.Type.IsAuction() && len(l.Bids) > 0 {
		return apperr.ErrAuctionHasBids.WithReasonf("%d bids placed; settle the auction", len(l.Bids))
	}

	now := s.clock.Now()
	l.Status = model.ListingCancelled
	l.UpdatedAt = now
	zap.L().Info("listing.cancelled", zap.String("listing_id", id))
	s.emit(e, now, events.ListingCancelled{Seller: seller, Reason: events.CancelReasonSeller})
	return nil
}

// CompleteSale marks an active listing sold to buyer and records the fee
// split. It is the single path through which any listing becomes sold.
func (s *Store) CompleteSale(id, buyer string, salePrice, creatorRoyaltyBps int64, txRef string) (*model.Sale, error) {
	if buyer == "" {
		return nil, apperr.ErrInvalidBidder.WithReason("buyer is required")
	}
	breakdown, err := fees.ComputeFees(salePrice, creatorRoyaltyBps)
	if err != nil {
		return nil, err
	}
	e, err := s.lookup(id)
	if err != nil {
		return nil, err
	}
	defer s.flush(e)
	e.mu.Lock()
	defer e.mu.Unlock()

	l := &e.l
	if l.Status != model.ListingActive {
		return nil, apperr.ErrInvalidStatus.WithReasonf("listing is %s", l.Status)
	}

	now := s.clock.Now()
	sale := model.Sale{
		Buyer:       buyer,
		Price:       salePrice,
		Currency:    l.Currency,
		Fees:        breakdown,
		TxRef:       txRef,
		CompletedAt: now,
	}
	l.Status = model.ListingSold
	l.Sale = &sale
	l.UpdatedAt = now

	zap.L().Info("listing.sold",
		zap.String("listing_id", id),
		zap.String("buyer", buyer),
		zap.Int64("price", salePrice),
		zap.String("tx_ref", txRef),
	)
	s.emit(e, now, events.SaleCompleted{
		Buyer:    buyer,
		Seller:   l.Seller,
		Price:    salePrice,
		Currency: l.Currency,
		Fees:     breakdown,
		TxRef:    txRef,
	})
	out := sale
	return &out, nil
}

// ExpireStaleListings moves active fixed-price listings whose end time has
// passed to expired. Auction listings are left to the auction engine.
func (s *Store) ExpireStaleListings() int {
	now := s.clock.Now()
	n := 0
	for _, e := range s.entries() {
		e.mu.Lock()
		l := &e.l
		if l.Type == model.ListingFixed && l.Status == model.ListingActive && l.EndTime != nil && !now.Before(*l.EndTime) {
			l.Status = model.ListingExpired
			l.UpdatedAt = now
			s.emit(e, now, events.ListingUpdated{Status: model.ListingExpired})
			n++
		}
		e.mu.Unlock()
		s.flush(e)
	}
	if n > 0 {
		zap.L().Info("listing.expired_stale", zap.Int("count", n))
	}
	return n
}

// ExpireListing ends a single active listing without a sale, e.g. an english
// auction that closed below its reserve.
func (s *Store) ExpireListing(id string) error {
	e, err := s.lookup(id)
	if err != nil {
		return err
	}
	defer s.flush(e)
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.l.Status != model.ListingActive {
		return apperr.ErrInvalidStatus.WithReasonf("listing is %s", e.l.Status)
	}
	now := s.clock.Now()
	e.l.Status = model.ListingExpired
	e.l.UpdatedAt = now
	s.emit(e, now, events.ListingUpdated{Status: model.ListingExpired})
	return nil
}

func (s *Store) Get(id string) (*model.Listing, error) {
	e, err := s.lookup(id)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.l.Clone(), nil
}

func (s *Store) BySeller(seller string) []*model.Listing {
	return s.filter(func(l *model.Listing) bool { return l.Seller == seller })
}

// ByCollection returns listings for tokens of one NFT contract.
func (s *Store) ByCollection(nftAddress string) []*model.Listing {
	return s.filter(func(l *model.Listing) bool { return l.NFTAddress == nftAddress })
}

func (s *Store) ByStatus(status model.ListingStatus) []*model.Listing {
	return s.filter(func(l *model.Listing) bool { return l.Status == status })
}

func (s *Store) All() []*model.Listing {
	return s.filter(func(*model.Listing) bool { return true })
}

// CountByStatus reports how many listings sit in each status; every status
// is present in the result.
func (s *Store) CountByStatus() map[model.ListingStatus]int {
	out := map[model.ListingStatus]int{
		model.ListingActive:    0,
		model.ListingSold:      0,
		model.ListingCancelled: 0,
		model.ListingExpired:   0,
	}
	for _, e := range s.entries() {
		e.mu.Lock()
		out[e.l.Status]++
		e.mu.Unlock()
	}
	return out
}

func (s *Store) filter(keep func(*model.Listing) bool) []*model.Listing {
	var out []*model.Listing
	for _, e := range s.entries() {
		e.mu.Lock()
		if keep(&e.l) {
			out = append(out, e.l.Clone())
		}
		e.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

func (s *Store) lookup(id string) (*entry, error) {
	s.mu.RLock()
	e, ok := s.listings[id]
	s.mu.RUnlock()
	if !ok {
		return nil, apperr.ErrListingNotFound.WithReasonf("listing %s", id)
	}
	return e, nil
}

func (s *Store) entries() []*entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*entry, 0, len(s.listings))
	for _, e := range s.listings {
		out = append(out, e)
	}
	return out
}

// emit queues an event on e; the caller must hold e.mu.
func (s *Store) emit(e *entry, at time.Time, p events.Payload) {
	e.out.Add(events.New(e.l.ID, at, p))
}

func (s *Store) flush(e *entry) {
	e.out.Flush(func(ev events.Event) {
		if s.pub != nil {
			s.pub.Emit(ev)
		}
	})
}
