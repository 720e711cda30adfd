package auction

import (
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"nftmarket/internal/domain/apperr"
	"nftmarket/internal/domain/model"
	"nftmarket/internal/events"
)

// Publisher is where the engine sends its domain events.
type Publisher interface {
	Emit(ev events.Event)
}

// Engine owns one AuctionState per auction listing. Each auction is guarded
// by its own mutex, so bids on different listings never contend.
type Engine struct {
	mu       sync.RWMutex
	auctions map[string]*record

	pub   Publisher
	clock model.Clock
}

// record is one auction. Events are queued in out while mu is held and
// delivered after it is released.
type record struct {
	mu  sync.Mutex
	st  model.AuctionState
	out events.Outbox
}

func NewEngine(pub Publisher, clock model.Clock) *Engine {
	if clock == nil {
		clock = model.SystemClock
	}
	return &Engine{
		auctions: make(map[string]*record),
		pub:      pub,
		clock:    clock,
	}
}

// CreateAuction registers the auction for an active auction-typed listing.
// The auction starts at the listing's start time and runs for cfg.Duration.
func (e *Engine) CreateAuction(listing model.Listing, cfg model.AuctionConfig) (*model.AuctionState, error) {
	want, ok := listing.Type.AuctionType()
	if !ok {
		return nil, apperr.ErrInvalidAuctionConfig.WithReasonf("listing type %q cannot carry an auction", listing.Type)
	}
	if cfg.Type != want {
		return nil, apperr.ErrInvalidAuctionConfig.WithReasonf("config type %q does not match listing type %q", cfg.Type, listing.Type)
	}
	if listing.Status != model.ListingActive {
		return nil, apperr.ErrInvalidStatus.WithReasonf("listing is %s", listing.Status)
	}
	if cfg.Currency == "" {
		cfg.Currency = listing.Currency
	}
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}

	now := e.clock.Now()
	start := listing.StartTime
	if start.IsZero() {
		start = now
	}
	end := start.Add(cfg.Duration)
	phase := model.PhaseActive
	if start.After(now) {
		phase = model.PhasePending
	}

	rec := &record{st: model.AuctionState{
		ListingID:        listing.ID,
		Seller:           listing.Seller,
		Config:           cfg,
		Phase:            phase,
		StartTime:        start,
		EndTime:          end,
		EffectiveEndTime: end,
		Bids:             []model.Bid{},
	}}
	rec.st.Config.ReservePrice = copyAmount(cfg.ReservePrice)

	e.mu.Lock()
	if _, exists := e.auctions[listing.ID]; exists {
		e.mu.Unlock()
		return nil, apperr.ErrAuctionExists.WithReasonf("listing %s", listing.ID)
	}
	e.auctions[listing.ID] = rec
	defer e.flush(rec)
	rec.mu.Lock()
	e.mu.Unlock()
	defer rec.mu.Unlock()

	zap.L().Info("auction.created",
		zap.String("listing_id", listing.ID),
		zap.String("type", string(cfg.Type)),
		zap.String("phase", string(phase)),
	)
	e.emit(rec, now, events.AuctionStarted{
		Config:    rec.st.Config,
		Phase:     phase,
		StartTime: start,
		EndTime:   end,
	})
	return rec.st.Clone(), nil
}

// PlaceBid accepts an english bid or rejects it without touching state.
func (e *Engine) PlaceBid(listingID, bidder string, amount int64, currency string) (*model.Bid, error) {
	if bidder == "" {
		return nil, apperr.ErrInvalidBidder.WithReason("bidder is required")
	}
	if amount <= 0 {
		return nil, apperr.ErrInvalidPrice.WithReasonf("bid amount %d must be positive", amount)
	}
	rec, err := e.lookup(listingID)
	if err != nil {
		return nil, err
	}
	defer e.flush(rec)
	rec.mu.Lock()
	defer rec.mu.Unlock()

	st := &rec.st
	if st.Config.Type != model.AuctionEnglish {
		return nil, apperr.ErrWrongAuctionType.WithReason("bids are only accepted on english auctions")
	}
	now := e.clock.Now()
	activate(st, now)

	if st.Phase.Closed() {
		return nil, apperr.ErrAuctionClosed.WithReasonf("auction is %s", st.Phase)
	}
	if st.Phase == model.PhasePending {
		return nil, apperr.ErrAuctionNotStarted.WithReasonf("starts at %s", st.StartTime.Format(time.RFC3339))
	}
	if now.After(st.EffectiveEndTime) {
		return nil, apperr.ErrAuctionEnded.WithReasonf("ended at %s", st.EffectiveEndTime.Format(time.RFC3339))
	}
	if currency != st.Config.Currency {
		return nil, apperr.ErrCurrencyMismatch.WithReasonf("auction currency is %s", st.Config.Currency)
	}
	if st.HighestBid != nil && st.HighestBid.Bidder == bidder {
		return nil, apperr.ErrSelfBid.WithReason("bidder already holds the highest bid")
	}
	if minimum := MinimumBid(st.Config, st.HighestBid); amount < minimum {
		return nil, apperr.ErrBidTooLow.WithReasonf("minimum bid is %d", minimum)
	}

	var previous *model.Bid
	if st.HighestBid != nil {
		idx := indexOfBid(st.Bids, st.HighestBid.ID)
		st.Bids[idx].Status = model.BidOutbid
		prev := st.Bids[idx]
		previous = &prev
	}
	bid := model.Bid{
		ID:        model.NewID(),
		ListingID: listingID,
		Bidder:    bidder,
		Amount:    amount,
		Currency:  currency,
		Timestamp: now,
		Status:    model.BidActive,
	}
	st.Bids = append(st.Bids, bid)
	highest := bid
	st.HighestBid = &highest

	extended := false
	if ext := st.Config.ExtensionPeriod; ext > 0 && !now.Before(st.EffectiveEndTime.Add(-ext)) {
		st.EffectiveEndTime = st.EffectiveEndTime.Add(ext)
		st.ExtensionCount++
		st.Phase = model.PhaseEnding
		extended = true
	}

	zap.L().Debug("auction.bid_placed",
		zap.String("listing_id", listingID),
		zap.String("bidder", bidder),
		zap.Int64("amount", amount),
		zap.Bool("extended", extended),
	)
	e.emit(rec, now, events.BidPlaced{
		Bid:              bid,
		PreviousBid:      previous,
		EffectiveEndTime: st.EffectiveEndTime,
		Extended:         extended,
	})
	return &bid, nil
}

// GetDutchAuctionPrice returns the dutch price at the current time.
func (e *Engine) GetDutchAuctionPrice(listingID string) (int64, error) {
	return e.DutchPriceAt(listingID, e.clock.Now())
}

// DutchPriceAt returns the dutch price the auction has (or had, or will have) at.
func (e *Engine) DutchPriceAt(listingID string, at time.Time) (int64, error) {
	rec, err := e.lookup(listingID)
	if err != nil {
		return 0, err
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()

	st := &rec.st
	if st.Config.Type != model.AuctionDutch {
		return 0, apperr.ErrWrongAuctionType.WithReason("not a dutch auction")
	}
	activate(st, e.clock.Now())
	return DutchPriceAt(st.Config, st.StartTime, st.EndTime, at), nil
}

// AcceptDutchAuctionPrice sells to buyer at the current dutch price. The
// first acceptance settles the auction; later calls fail.
func (e *Engine) AcceptDutchAuctionPrice(listingID, buyer, currency string) (*model.Bid, error) {
	if buyer == "" {
		return nil, apperr.ErrInvalidBidder.WithReason("buyer is required")
	}
	rec, err := e.lookup(listingID)
	if err != nil {
		return nil, err
	}
	defer e.flush(rec)
	rec.mu.Lock()
	defer rec.mu.Unlock()

	st := &rec.st
	if st.Config.Type != model.AuctionDutch {
		return nil, apperr.ErrWrongAuctionType.WithReason("not a dutch auction")
	}
	now := e.clock.Now()
	activate(st, now)

	if st.Settled {
		return nil, apperr.ErrAlreadySettled
	}
	if st.Phase.Closed() {
		return nil, apperr.ErrAuctionClosed.WithReasonf("auction is %s", st.Phase)
	}
	if st.Phase == model.PhasePending {
		return nil, apperr.ErrAuctionNotStarted.WithReasonf("starts at %s", st.StartTime.Format(time.RFC3339))
	}
	if currency != st.Config.Currency {
		return nil, apperr.ErrCurrencyMismatch.WithReasonf("auction currency is %s", st.Config.Currency)
	}

	price := DutchPriceAt(st.Config, st.StartTime, st.EndTime, now)
	bid := model.Bid{
		ID:        model.NewID(),
		ListingID: listingID,
		Bidder:    buyer,
		Amount:    price,
		Currency:  currency,
		Timestamp: now,
		Status:    model.BidWon,
	}
	st.Bids = append(st.Bids, bid)
	won := bid
	st.HighestBid = &won
	st.Phase = model.PhaseSettled
	st.Settled = true

	zap.L().Info("auction.dutch_accepted",
		zap.String("listing_id", listingID),
		zap.String("buyer", buyer),
		zap.Int64("price", price),
	)
	e.emit(rec, now, events.AuctionEnded{
		Winner:     buyer,
		WinningBid: &bid,
		ReserveMet: true,
		TotalBids:  1,
	})
	return &bid, nil
}

// SettleAuction closes an english auction whose effective end has passed.
func (e *Engine) SettleAuction(listingID string) (*model.SettlementResult, error) {
	rec, err := e.lookup(listingID)
	if err != nil {
		return nil, err
	}
	defer e.flush(rec)
	rec.mu.Lock()
	defer rec.mu.Unlock()

	st := &rec.st
	if st.Config.Type != model.AuctionEnglish {
		return nil, apperr.ErrWrongAuctionType.WithReason("only english auctions are settled")
	}
	if st.Settled {
		return nil, apperr.ErrAlreadySettled
	}
	if st.Phase == model.PhaseCancelled {
		return nil, apperr.ErrAuctionClosed.WithReason("auction was cancelled")
	}
	now := e.clock.Now()
	if !now.After(st.EffectiveEndTime) {
		return nil, apperr.ErrAuctionStillActive.WithReasonf("ends at %s", st.EffectiveEndTime.Format(time.RFC3339))
	}

	res := &model.SettlementResult{
		ListingID:  listingID,
		ReserveMet: ReserveMet(st.Config, st.HighestBid),
		TotalBids:  len(st.Bids),
	}
	if res.ReserveMet {
		idx := indexOfBid(st.Bids, st.HighestBid.ID)
		st.Bids[idx].Status = model.BidWon
		st.HighestBid.Status = model.BidWon
		won := st.Bids[idx]
		res.Winner = won.Bidder
		res.WinningBid = &won
	}
	st.Phase = model.PhaseSettled
	st.Settled = true

	zap.L().Info("auction.settled",
		zap.String("listing_id", listingID),
		zap.Bool("reserve_met", res.ReserveMet),
		zap.Int("total_bids", res.TotalBids),
	)
	e.emit(rec, now, events.AuctionEnded{
		Winner:     res.Winner,
		WinningBid: res.WinningBid,
		ReserveMet: res.ReserveMet,
		TotalBids:  res.TotalBids,
	})
	return res, nil
}

// CancelAuction cancels an english auction without bids, or a dutch auction
// that nobody accepted yet.
func (e *Engine) CancelAuction(listingID string) error {
	rec, err := e.lookup(listingID)
	if err != nil {
		return err
	}
	defer e.flush(rec)
	rec.mu.Lock()
	defer rec.mu.Unlock()

	st := &rec.st
	if st.Settled {
		return apperr.ErrAlreadySettled
	}
	if st.Phase == model.PhaseCancelled {
		return apperr.ErrAuctionClosed.WithReason("auction already cancelled")
	}
	if st.Config.Type == model.AuctionEnglish && len(st.Bids) > 0 {
		return apperr.ErrHasBids.WithReasonf("%d bids placed; settle instead", len(st.Bids))
	}
	for i := range st.Bids {
		st.Bids[i].Status = model.BidCancelled
	}
	if st.HighestBid != nil {
		st.HighestBid.Status = model.BidCancelled
	}
	st.Phase = model.PhaseCancelled

	zap.L().Info("auction.cancelled", zap.String("listing_id", listingID))
	e.emit(rec, e.clock.Now(), events.ListingCancelled{
		Seller: st.Seller,
		Reason: events.CancelReasonAuction,
	})
	return nil
}

// GetAuction returns a snapshot of the auction state.
func (e *Engine) GetAuction(listingID string) (*model.AuctionState, error) {
	rec, err := e.lookup(listingID)
	if err != nil {
		return nil, err
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	activate(&rec.st, e.clock.Now())
	return rec.st.Clone(), nil
}

// NextMinimumBid previews the minimum amount PlaceBid would accept now.
func (e *Engine) NextMinimumBid(listingID string) (int64, error) {
	rec, err := e.lookup(listingID)
	if err != nil {
		return 0, err
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	if rec.st.Config.Type != model.AuctionEnglish {
		return 0, apperr.ErrWrongAuctionType.WithReason("not an english auction")
	}
	return MinimumBid(rec.st.Config, rec.st.HighestBid), nil
}

// GetSettleableAuctions lists english auctions past their effective end that
// are neither settled nor cancelled, earliest deadline first.
func (e *Engine) GetSettleableAuctions() []string {
	now := e.clock.Now()
	type due struct {
		id  string
		end time.Time
	}
	var out []due
	for id, rec := range e.snapshot() {
		rec.mu.Lock()
		st := rec.st
		rec.mu.Unlock()
		if st.Config.Type == model.AuctionEnglish && !st.Phase.Closed() && now.After(st.EffectiveEndTime) {
			out = append(out, due{id: id, end: st.EffectiveEndTime})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].end.Equal(out[j].end) {
			return out[i].id < out[j].id
		}
		return out[i].end.Before(out[j].end)
	})
	ids := make([]string, len(out))
	for i, d := range out {
		ids[i] = d.id
	}
	return ids
}

// Auctions returns snapshots of every auction, for persistence mirrors.
func (e *Engine) Auctions() []*model.AuctionState {
	var out []*model.AuctionState
	for _, rec := range e.snapshot() {
		rec.mu.Lock()
		out = append(out, rec.st.Clone())
		rec.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ListingID < out[j].ListingID })
	return out
}

func (e *Engine) lookup(listingID string) (*record, error) {
	e.mu.RLock()
	rec, ok := e.auctions[listingID]
	e.mu.RUnlock()
	if !ok {
		return nil, apperr.ErrAuctionNotFound.WithReasonf("listing %s", listingID)
	}
	return rec, nil
}

func (e *Engine) snapshot() map[string]*record {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make(map[string]*record, len(e.auctions))
	for id, rec := range e.auctions {
		out[id] = rec
	}
	return out
}

// emit queues an event on rec; the caller must hold rec.mu.
func (e *Engine) emit(rec *record, at time.Time, p events.Payload) {
	rec.out.Add(events.New(rec.st.ListingID, at, p))
}

// flush delivers rec's queued events. Deferred ahead of rec.mu.Unlock so
// observers run once the auction is released and may read it back.
func (e *Engine) flush(rec *record) {
	rec.out.Flush(func(ev events.Event) {
		if e.pub != nil {
			e.pub.Emit(ev)
		}
	})
}

// activate moves a pending auction to active once its start time is reached.
func activate(st *model.AuctionState, now time.Time) {
	if st.Phase == model.PhasePending && !now.Before(st.StartTime) {
		st.Phase = model.PhaseActive
	}
}

func indexOfBid(bids []model.Bid, id string) int {
	for i := len(bids) - 1; i >= 0; i-- {
		if bids[i].ID == id {
			return i
		}
	}
	return -1
}

func copyAmount(p *int64) *int64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
