package auction

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nftmarket/internal/domain/apperr"
	"nftmarket/internal/domain/model"
	"nftmarket/internal/events"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

func (c *testClock) Advance(d time.Duration) { c.Set(c.Now().Add(d)) }

type recorder struct {
	mu  sync.Mutex
	evs []events.Event
}

func (r *recorder) Emit(ev events.Event) {
	r.mu.Lock()
	r.evs = append(r.evs, ev)
	r.mu.Unlock()
}

func (r *recorder) last() events.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.evs[len(r.evs)-1]
}

func (r *recorder) kinds() []events.Kind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]events.Kind, len(r.evs))
	for i, ev := range r.evs {
		out[i] = ev.Kind
	}
	return out
}

func newTestEngine() (*Engine, *testClock, *recorder) {
	clk := &testClock{now: t0}
	rec := &recorder{}
	return NewEngine(rec, clk), clk, rec
}

func englishListing(id string) model.Listing {
	return model.Listing{
		ID:        id,
		Seller:    "seller",
		Type:      model.ListingEnglishAuction,
		Price:     1_000_000_000,
		Currency:  "ETH",
		Status:    model.ListingActive,
		StartTime: t0,
	}
}

func dutchListing(id string) model.Listing {
	l := englishListing(id)
	l.Type = model.ListingDutchAuction
	l.Price = 10_000_000_000
	return l
}

func englishConfig() model.AuctionConfig {
	return model.AuctionConfig{
		Type:               model.AuctionEnglish,
		StartPrice:         1_000_000_000,
		Duration:           24 * time.Hour,
		ExtensionPeriod:    10 * time.Minute,
		MinBidIncrementBps: 500,
		Currency:           "ETH",
	}
}

func dutchConfig() model.AuctionConfig {
	return model.AuctionConfig{
		Type:         model.AuctionDutch,
		StartPrice:   10_000_000_000,
		ReservePrice: model.Int64(1_000_000_000),
		Duration:     86_400 * time.Second,
		Currency:     "ETH",
	}
}

func TestPlaceBid_englishScenario(t *testing.T) {
	eng, _, rec := newTestEngine()
	_, err := eng.CreateAuction(englishListing("l1"), englishConfig())
	require.NoError(t, err)

	a, err := eng.PlaceBid("l1", "A", 1_000_000_000, "ETH")
	require.NoError(t, err)
	assert.Equal(t, model.BidActive, a.Status)

	_, err = eng.PlaceBid("l1", "B", 1_040_000_000, "ETH")
	require.ErrorIs(t, err, apperr.ErrBidTooLow)

	next, err := eng.NextMinimumBid("l1")
	require.NoError(t, err)
	assert.Equal(t, int64(1_050_000_000), next)

	b, err := eng.PlaceBid("l1", "B", 1_050_000_000, "ETH")
	require.NoError(t, err)

	st, err := eng.GetAuction("l1")
	require.NoError(t, err)
	require.Len(t, st.Bids, 2)
	assert.Equal(t, model.BidOutbid, st.Bids[0].Status)
	assert.Equal(t, model.BidActive, st.Bids[1].Status)
	assert.Equal(t, b.ID, st.HighestBid.ID)

	ev := rec.last()
	require.Equal(t, events.KindBidPlaced, ev.Kind)
	bp := ev.Data.(events.BidPlaced)
	require.NotNil(t, bp.PreviousBid)
	assert.Equal(t, "A", bp.PreviousBid.Bidder)
	assert.Equal(t, model.BidOutbid, bp.PreviousBid.Status)
}

func TestPlaceBid_incrementBoundary(t *testing.T) {
	eng, _, _ := newTestEngine()
	cfg := englishConfig()
	cfg.StartPrice = 1_999
	cfg.MinBidIncrementBps = 100
	_, err := eng.CreateAuction(englishListing("l1"), cfg)
	require.NoError(t, err)

	_, err = eng.PlaceBid("l1", "A", 1_999, "ETH")
	require.NoError(t, err)

	// floor(1999 * 1%) = 19
	_, err = eng.PlaceBid("l1", "B", 1_999+19-1, "ETH")
	assert.ErrorIs(t, err, apperr.ErrBidTooLow)
	_, err = eng.PlaceBid("l1", "B", 1_999+19, "ETH")
	assert.NoError(t, err)
}

func TestRequiredIncrement_isAtLeastOne(t *testing.T) {
	cfg := model.AuctionConfig{MinBidIncrementBps: 100}
	assert.Equal(t, int64(1), RequiredIncrement(cfg, 50))
	assert.Equal(t, int64(51), MinimumBid(cfg, &model.Bid{Amount: 50}))
}

func TestPlaceBid_selfBidRejectedRegardlessOfAmount(t *testing.T) {
	eng, _, _ := newTestEngine()
	_, err := eng.CreateAuction(englishListing("l1"), englishConfig())
	require.NoError(t, err)

	_, err = eng.PlaceBid("l1", "A", 1_000_000_000, "ETH")
	require.NoError(t, err)

	for _, amount := range []int64{1, 1_000_000_000, 1_050_000_000, 9_000_000_000} {
		_, err = eng.PlaceBid("l1", "A", amount, "ETH")
		assert.ErrorIs(t, err, apperr.ErrSelfBid, "amount %d", amount)
	}

	// after being outbid the same bidder may lead again
	_, err = eng.PlaceBid("l1", "B", 1_050_000_000, "ETH")
	require.NoError(t, err)
	_, err = eng.PlaceBid("l1", "A", 1_102_500_000, "ETH")
	assert.NoError(t, err)
}

func TestPlaceBid_rejectionLeavesStateUntouched(t *testing.T) {
	eng, _, rec := newTestEngine()
	_, err := eng.CreateAuction(englishListing("l1"), englishConfig())
	require.NoError(t, err)
	_, err = eng.PlaceBid("l1", "A", 1_000_000_000, "ETH")
	require.NoError(t, err)
	before, _ := eng.GetAuction("l1")
	evCount := len(rec.kinds())

	_, err = eng.PlaceBid("l1", "B", 1_050_000_000, "USDC")
	assert.ErrorIs(t, err, apperr.ErrCurrencyMismatch)
	_, err = eng.PlaceBid("l1", "B", 1_000_000_001, "ETH")
	assert.ErrorIs(t, err, apperr.ErrBidTooLow)
	_, err = eng.PlaceBid("l1", "", 2_000_000_000, "ETH")
	assert.ErrorIs(t, err, apperr.ErrInvalidBidder)
	_, err = eng.PlaceBid("l1", "B", 0, "ETH")
	assert.ErrorIs(t, err, apperr.ErrInvalidPrice)

	after, _ := eng.GetAuction("l1")
	assert.Equal(t, before, after)
	assert.Len(t, rec.kinds(), evCount)
}

func TestPlaceBid_antiSniping(t *testing.T) {
	eng, clk, _ := newTestEngine()
	_, err := eng.CreateAuction(englishListing("l1"), englishConfig())
	require.NoError(t, err)
	end := t0.Add(24 * time.Hour)
	ext := 10 * time.Minute

	// one second before the window: no extension
	clk.Set(end.Add(-ext - time.Second))
	_, err = eng.PlaceBid("l1", "A", 1_000_000_000, "ETH")
	require.NoError(t, err)
	st, _ := eng.GetAuction("l1")
	assert.Equal(t, end, st.EffectiveEndTime)
	assert.Equal(t, 0, st.ExtensionCount)
	assert.Equal(t, model.PhaseActive, st.Phase)

	// exactly at the window boundary: extended by the full period
	clk.Set(end.Add(-ext))
	_, err = eng.PlaceBid("l1", "B", 1_050_000_000, "ETH")
	require.NoError(t, err)
	st, _ = eng.GetAuction("l1")
	assert.Equal(t, end.Add(ext), st.EffectiveEndTime)
	assert.Equal(t, 1, st.ExtensionCount)
	assert.Equal(t, model.PhaseEnding, st.Phase)
	assert.Equal(t, end, st.EndTime)

	// bidding at the original deadline is still inside the extended window
	clk.Set(end)
	_, err = eng.PlaceBid("l1", "A", 1_102_500_000, "ETH")
	require.NoError(t, err)
	st, _ = eng.GetAuction("l1")
	assert.Equal(t, end.Add(2*ext), st.EffectiveEndTime)
	assert.Equal(t, 2, st.ExtensionCount)

	// past the effective end
	clk.Set(st.EffectiveEndTime.Add(time.Millisecond))
	_, err = eng.PlaceBid("l1", "B", 5_000_000_000, "ETH")
	assert.ErrorIs(t, err, apperr.ErrAuctionEnded)
}

func TestPlaceBid_pendingAuctionActivatesLazily(t *testing.T) {
	eng, clk, _ := newTestEngine()
	l := englishListing("l1")
	l.StartTime = t0.Add(time.Hour)
	st, err := eng.CreateAuction(l, englishConfig())
	require.NoError(t, err)
	assert.Equal(t, model.PhasePending, st.Phase)

	_, err = eng.PlaceBid("l1", "A", 1_000_000_000, "ETH")
	assert.ErrorIs(t, err, apperr.ErrAuctionNotStarted)

	clk.Set(l.StartTime)
	_, err = eng.PlaceBid("l1", "A", 1_000_000_000, "ETH")
	require.NoError(t, err)
	st, _ = eng.GetAuction("l1")
	assert.Equal(t, model.PhaseActive, st.Phase)
}

func TestSettleAuction(t *testing.T) {
	eng, clk, rec := newTestEngine()
	_, err := eng.CreateAuction(englishListing("l1"), englishConfig())
	require.NoError(t, err)
	_, err = eng.PlaceBid("l1", "A", 1_000_000_000, "ETH")
	require.NoError(t, err)
	_, err = eng.PlaceBid("l1", "B", 1_050_000_000, "ETH")
	require.NoError(t, err)

	end := t0.Add(24 * time.Hour)
	clk.Set(end.Add(-time.Minute))
	_, err = eng.SettleAuction("l1")
	assert.ErrorIs(t, err, apperr.ErrAuctionStillActive)
	clk.Set(end)
	_, err = eng.SettleAuction("l1")
	assert.ErrorIs(t, err, apperr.ErrAuctionStillActive)

	clk.Set(end.Add(time.Second))
	assert.Equal(t, []string{"l1"}, eng.GetSettleableAuctions())
	res, err := eng.SettleAuction("l1")
	require.NoError(t, err)
	assert.True(t, res.ReserveMet)
	assert.Equal(t, "B", res.Winner)
	assert.Equal(t, int64(1_050_000_000), res.WinningBid.Amount)
	assert.Equal(t, 2, res.TotalBids)

	st, _ := eng.GetAuction("l1")
	assert.True(t, st.Settled)
	assert.Equal(t, model.PhaseSettled, st.Phase)
	assert.Equal(t, model.BidWon, st.Bids[1].Status)
	assert.Equal(t, model.BidOutbid, st.Bids[0].Status)
	assert.Empty(t, eng.GetSettleableAuctions())

	ended := rec.last().Data.(events.AuctionEnded)
	assert.Equal(t, "B", ended.Winner)
	assert.True(t, ended.ReserveMet)

	_, err = eng.SettleAuction("l1")
	assert.ErrorIs(t, err, apperr.ErrAlreadySettled)
	_, err = eng.PlaceBid("l1", "C", 9_000_000_000, "ETH")
	assert.ErrorIs(t, err, apperr.ErrAuctionClosed)
}

func TestSettleAuction_reserveNotMet(t *testing.T) {
	eng, clk, _ := newTestEngine()
	cfg := englishConfig()
	cfg.StartPrice = 100
	cfg.ReservePrice = model.Int64(100)
	_, err := eng.CreateAuction(englishListing("withbid"), cfg)
	require.NoError(t, err)
	_, err = eng.CreateAuction(englishListing("nobids"), englishConfig())
	require.NoError(t, err)

	clk.Advance(25 * time.Hour)
	res, err := eng.SettleAuction("nobids")
	require.NoError(t, err)
	assert.False(t, res.ReserveMet)
	assert.Empty(t, res.Winner)
	assert.Nil(t, res.WinningBid)
	assert.Zero(t, res.TotalBids)

	assert.False(t, ReserveMet(cfg, &model.Bid{Amount: 99}))
	assert.True(t, ReserveMet(cfg, &model.Bid{Amount: 100}))
	assert.True(t, ReserveMet(englishConfig(), &model.Bid{Amount: 1}))
}

func TestDutchPrice_schedule(t *testing.T) {
	eng, clk, _ := newTestEngine()
	_, err := eng.CreateAuction(dutchListing("d1"), dutchConfig())
	require.NoError(t, err)

	mid, err := eng.DutchPriceAt("d1", t0.Add(43_200*time.Second))
	require.NoError(t, err)
	assert.Equal(t, int64(5_500_000_000), mid)

	before, _ := eng.DutchPriceAt("d1", t0.Add(-time.Hour))
	atStart, _ := eng.DutchPriceAt("d1", t0)
	atEnd, _ := eng.DutchPriceAt("d1", t0.Add(24*time.Hour))
	after, _ := eng.DutchPriceAt("d1", t0.Add(48*time.Hour))
	assert.Equal(t, int64(10_000_000_000), before)
	assert.Equal(t, int64(10_000_000_000), atStart)
	assert.Equal(t, int64(1_000_000_000), atEnd)
	assert.Equal(t, int64(1_000_000_000), after)

	prev := atStart
	for s := int64(0); s <= 86_400; s += 997 {
		at := t0.Add(time.Duration(s) * time.Second).Add(123 * time.Millisecond)
		p, err := eng.DutchPriceAt("d1", at)
		require.NoError(t, err)
		again, _ := eng.DutchPriceAt("d1", at)
		assert.Equal(t, p, again)
		assert.LessOrEqual(t, p, prev)
		prev = p
	}

	clk.Set(t0.Add(6 * time.Hour))
	now, err := eng.GetDutchAuctionPrice("d1")
	require.NoError(t, err)
	assert.Equal(t, int64(7_750_000_000), now)
}

func TestDutchPrice_noReserveDecaysToZero(t *testing.T) {
	cfg := dutchConfig()
	cfg.ReservePrice = nil
	end := t0.Add(cfg.Duration)
	assert.Equal(t, int64(0), DutchPriceAt(cfg, t0, end, end))
	assert.Equal(t, int64(5_000_000_000), DutchPriceAt(cfg, t0, end, t0.Add(12*time.Hour)))
}

func TestAcceptDutchAuctionPrice(t *testing.T) {
	eng, clk, rec := newTestEngine()
	_, err := eng.CreateAuction(dutchListing("d1"), dutchConfig())
	require.NoError(t, err)

	clk.Set(t0.Add(12 * time.Hour))
	_, err = eng.AcceptDutchAuctionPrice("d1", "buyer", "USDC")
	assert.ErrorIs(t, err, apperr.ErrCurrencyMismatch)

	bid, err := eng.AcceptDutchAuctionPrice("d1", "buyer", "ETH")
	require.NoError(t, err)
	assert.Equal(t, int64(5_500_000_000), bid.Amount)
	assert.Equal(t, model.BidWon, bid.Status)

	ended := rec.last().Data.(events.AuctionEnded)
	assert.True(t, ended.ReserveMet)
	assert.Equal(t, 1, ended.TotalBids)
	assert.Equal(t, "buyer", ended.Winner)

	st, _ := eng.GetAuction("d1")
	assert.True(t, st.Settled)
	assert.Equal(t, model.PhaseSettled, st.Phase)

	_, err = eng.AcceptDutchAuctionPrice("d1", "late", "ETH")
	assert.ErrorIs(t, err, apperr.ErrAlreadySettled)
	assert.ErrorIs(t, eng.CancelAuction("d1"), apperr.ErrAlreadySettled)

	_, err = eng.PlaceBid("d1", "x", 1, "ETH")
	assert.ErrorIs(t, err, apperr.ErrWrongAuctionType)
	_, err = eng.SettleAuction("d1")
	assert.ErrorIs(t, err, apperr.ErrWrongAuctionType)
}

func TestAcceptDutchAuctionPrice_onlyOneWinnerUnderContention(t *testing.T) {
	eng, _, _ := newTestEngine()
	_, err := eng.CreateAuction(dutchListing("d1"), dutchConfig())
	require.NoError(t, err)

	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := eng.AcceptDutchAuctionPrice("d1", fmt.Sprintf("b%d", i), "ETH"); err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, wins)
}

func TestCreateAuction_validation(t *testing.T) {
	eng, _, _ := newTestEngine()

	_, err := eng.CreateAuction(englishListing("l1"), englishConfig())
	require.NoError(t, err)
	_, err = eng.CreateAuction(englishListing("l1"), englishConfig())
	assert.ErrorIs(t, err, apperr.ErrAuctionExists)

	fixed := englishListing("f1")
	fixed.Type = model.ListingFixed
	_, err = eng.CreateAuction(fixed, englishConfig())
	assert.ErrorIs(t, err, apperr.ErrInvalidAuctionConfig)

	_, err = eng.CreateAuction(dutchListing("mismatch"), englishConfig())
	assert.ErrorIs(t, err, apperr.ErrInvalidAuctionConfig)

	sold := englishListing("sold")
	sold.Status = model.ListingSold
	_, err = eng.CreateAuction(sold, englishConfig())
	assert.ErrorIs(t, err, apperr.ErrInvalidStatus)

	cases := []struct {
		name string
		mut  func(*model.AuctionConfig)
		want error
	}{
		{"zero start", func(c *model.AuctionConfig) { c.StartPrice = 0 }, apperr.ErrInvalidAuctionConfig},
		{"short", func(c *model.AuctionConfig) { c.Duration = time.Hour - time.Second }, apperr.ErrDurationOutOfRange},
		{"long", func(c *model.AuctionConfig) { c.Duration = 30*24*time.Hour + time.Second }, apperr.ErrDurationOutOfRange},
		{"increment low", func(c *model.AuctionConfig) { c.MinBidIncrementBps = 99 }, apperr.ErrIncrementOutOfRange},
		{"increment high", func(c *model.AuctionConfig) { c.MinBidIncrementBps = 5001 }, apperr.ErrIncrementOutOfRange},
		{"reserve above start", func(c *model.AuctionConfig) { c.ReservePrice = model.Int64(c.StartPrice + 1) }, apperr.ErrInvalidAuctionConfig},
	}
	for _, tc := range cases {
		cfg := englishConfig()
		tc.mut(&cfg)
		assert.ErrorIs(t, ValidateConfig(cfg), tc.want, tc.name)
	}

	ok := englishConfig()
	ok.Duration = time.Hour
	ok.ReservePrice = model.Int64(ok.StartPrice)
	assert.NoError(t, ValidateConfig(ok))
	ok.Duration = 30 * 24 * time.Hour
	ok.MinBidIncrementBps = 5000
	assert.NoError(t, ValidateConfig(ok))

	d := dutchConfig()
	d.ReservePrice = model.Int64(d.StartPrice)
	assert.ErrorIs(t, ValidateConfig(d), apperr.ErrInvalidAuctionConfig)
	d.ReservePrice = model.Int64(d.StartPrice - 1)
	assert.NoError(t, ValidateConfig(d))
}

func TestCancelAuction(t *testing.T) {
	eng, _, rec := newTestEngine()
	_, err := eng.CreateAuction(englishListing("l1"), englishConfig())
	require.NoError(t, err)
	_, err = eng.CreateAuction(englishListing("l2"), englishConfig())
	require.NoError(t, err)
	_, err = eng.CreateAuction(dutchListing("d1"), dutchConfig())
	require.NoError(t, err)

	_, err = eng.PlaceBid("l1", "A", 1_000_000_000, "ETH")
	require.NoError(t, err)
	assert.ErrorIs(t, eng.CancelAuction("l1"), apperr.ErrHasBids)

	require.NoError(t, eng.CancelAuction("l2"))
	ev := rec.last()
	assert.Equal(t, events.KindListingCancelled, ev.Kind)
	assert.Equal(t, events.CancelReasonAuction, ev.Data.(events.ListingCancelled).Reason)

	_, err = eng.PlaceBid("l2", "A", 1_000_000_000, "ETH")
	assert.ErrorIs(t, err, apperr.ErrAuctionClosed)
	assert.ErrorIs(t, eng.CancelAuction("l2"), apperr.ErrAuctionClosed)
	_, err = eng.SettleAuction("l2")
	assert.ErrorIs(t, err, apperr.ErrAuctionClosed)

	require.NoError(t, eng.CancelAuction("d1"))
	_, err = eng.AcceptDutchAuctionPrice("d1", "buyer", "ETH")
	assert.ErrorIs(t, err, apperr.ErrAuctionClosed)

	assert.ErrorIs(t, eng.CancelAuction("missing"), apperr.ErrAuctionNotFound)
}

func TestPlaceBid_concurrentBiddersKeepOneLeader(t *testing.T) {
	eng, _, _ := newTestEngine()
	_, err := eng.CreateAuction(englishListing("l1"), englishConfig())
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			bidder := fmt.Sprintf("bidder-%d", i)
			for j := 0; j < 20; j++ {
				next, err := eng.NextMinimumBid("l1")
				if err != nil {
					return
				}
				_, _ = eng.PlaceBid("l1", bidder, next, "ETH")
			}
		}()
	}
	wg.Wait()

	st, err := eng.GetAuction("l1")
	require.NoError(t, err)
	require.NotEmpty(t, st.Bids)

	leaders := 0
	for i, b := range st.Bids {
		if b.Status == model.BidActive || b.Status == model.BidWon {
			leaders++
			assert.Equal(t, st.HighestBid.ID, b.ID)
		} else {
			assert.Equal(t, model.BidOutbid, b.Status)
		}
		if i > 0 {
			assert.Greater(t, b.Amount, st.Bids[i-1].Amount)
			assert.NotEqual(t, st.Bids[i-1].Bidder, b.Bidder)
		}
	}
	assert.Equal(t, 1, leaders)
}

func TestLookup_unknownListing(t *testing.T) {
	eng, _, _ := newTestEngine()
	_, err := eng.PlaceBid("nope", "A", 1, "ETH")
	assert.ErrorIs(t, err, apperr.ErrAuctionNotFound)
	_, err = eng.GetDutchAuctionPrice("nope")
	assert.ErrorIs(t, err, apperr.ErrAuctionNotFound)
	_, err = eng.SettleAuction("nope")
	assert.ErrorIs(t, err, apperr.ErrAuctionNotFound)
}

func TestObserversRunAfterTheAuctionIsReleased(t *testing.T) {
	clk := &testClock{now: t0}
	em := events.NewEmitter()
	eng := NewEngine(em, clk)
	_, err := eng.CreateAuction(englishListing("l1"), englishConfig())
	require.NoError(t, err)

	var (
		leaders []string
		kinds   []events.Kind
	)
	em.Subscribe(events.ObserverFunc(func(ev events.Event) error {
		kinds = append(kinds, ev.Kind)
		if ev.Kind != events.KindBidPlaced {
			return nil
		}
		st, err := eng.GetAuction(ev.ListingID)
		if err != nil {
			return err
		}
		leaders = append(leaders, st.HighestBid.Bidder)
		// an outbid bot answering A straight from the event
		if st.HighestBid.Bidder == "A" {
			next, err := eng.NextMinimumBid(ev.ListingID)
			if err != nil {
				return err
			}
			_, err = eng.PlaceBid(ev.ListingID, "bot", next, "ETH")
			return err
		}
		return nil
	}))

	done := make(chan error, 1)
	go func() {
		_, err := eng.PlaceBid("l1", "A", 1_000_000_000, "ETH")
		done <- err
	}()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("PlaceBid blocked on an observer reading the auction")
	}

	assert.Equal(t, []events.Kind{events.KindBidPlaced, events.KindBidPlaced}, kinds)
	assert.Equal(t, []string{"A", "bot"}, leaders)

	st, err := eng.GetAuction("l1")
	require.NoError(t, err)
	assert.Equal(t, "bot", st.HighestBid.Bidder)
	assert.Len(t, st.Bids, 2)
}
