package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nftmarket/internal/domain/apperr"
	"nftmarket/internal/domain/model"
	"nftmarket/internal/events"
	"nftmarket/internal/services/auction"
	"nftmarket/internal/services/listing"
	"nftmarket/internal/services/marketplace"
)

func TestRouterDispatch(t *testing.T) {
	r := NewRouter()
	Register(r, "echo", func(_ context.Context, c *ConnContext, req BidRequest) (BidRequest, error) {
		req.Currency = c.UserID + ":" + req.Currency
		return req, nil
	})

	res, err := r.dispatch(context.Background(), &ConnContext{UserID: "bob"},
		Envelope{Event: "echo", Body: json.RawMessage(`{"amount":5,"currency":"ETH"}`)})
	require.NoError(t, err)
	assert.Equal(t, BidRequest{Amount: 5, Currency: "bob:ETH"}, res)

	_, err = r.dispatch(context.Background(), &ConnContext{}, Envelope{Event: "nope"})
	assert.ErrorIs(t, err, ErrUnknownEvent)

	_, err = r.dispatch(context.Background(), &ConnContext{}, Envelope{Event: "echo", Body: json.RawMessage(`{`)})
	assert.Error(t, err)
}

func TestWrapEvent(t *testing.T) {
	ev := events.New("l1", time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		events.ListingCancelled{Seller: "alice", Reason: events.CancelReasonSeller})
	raw, err := json.Marshal(ev)
	require.NoError(t, err)

	out, err := wrapEvent(raw)
	require.NoError(t, err)

	var env struct {
		Event string         `json:"event"`
		Body  map[string]any `json:"body"`
	}
	require.NoError(t, json.Unmarshal(out, &env))
	assert.Equal(t, "listings/listing_cancelled", env.Event)
	assert.Equal(t, "l1", env.Body["listingId"])
	assert.NotContains(t, env.Body, "type")

	_, err = wrapEvent([]byte("not json"))
	assert.Error(t, err)
}

func TestErrorBody(t *testing.T) {
	assert.Equal(t, ErrorBody{Error: "BID_TOO_LOW: need 5", Code: "BID_TOO_LOW"},
		errorBody(apperr.ErrBidTooLow.WithReason("need 5")))
	assert.Equal(t, ErrorBody{Error: "boom"}, errorBody(errors.New("boom")))
}

type frame struct {
	Event string          `json:"event"`
	Body  json.RawMessage `json:"body"`
}

func readUntil(t *testing.T, c *websocket.Conn, event string) frame {
	t.Helper()
	_ = c.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		var f frame
		require.NoError(t, c.ReadJSON(&f))
		if f.Event == event {
			return f
		}
	}
}

// readEach reads until every named event has arrived, in any order.
func readEach(t *testing.T, c *websocket.Conn, names ...string) map[string]frame {
	t.Helper()
	_ = c.SetReadDeadline(time.Now().Add(2 * time.Second))
	want := make(map[string]bool, len(names))
	for _, n := range names {
		want[n] = true
	}
	got := make(map[string]frame, len(names))
	for len(got) < len(names) {
		var f frame
		require.NoError(t, c.ReadJSON(&f))
		if want[f.Event] {
			got[f.Event] = f
		}
	}
	return got
}

func TestLocalFanout_handleNeverBlocks(t *testing.T) {
	f := NewLocalFanout(NewHub(), 1)
	ev := events.New("l1", time.Now(), events.ListingUpdated{Status: model.ListingActive})

	require.NoError(t, f.Handle(ev))
	assert.ErrorIs(t, f.Handle(ev), ErrFanoutFull)
	assert.Equal(t, int64(1), f.Dropped())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		f.Run(ctx)
		close(done)
	}()
	assert.Eventually(t, func() bool { return len(f.queue) == 0 }, time.Second, 10*time.Millisecond)
	cancel()
	<-done
}

func TestServer_bidRoundTrip(t *testing.T) {
	gin.SetMode(gin.TestMode)

	em := events.NewEmitter()
	store := listing.NewStore(em)
	engine := auction.NewEngine(em, model.SystemClock)
	mkt := marketplace.New(em, store, engine, marketplace.FixedRoyalty(0), model.SystemClock)

	hub := NewHub()
	fanout := NewLocalFanout(hub, 64)
	em.Subscribe(fanout)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go fanout.Run(ctx)

	l, err := mkt.CreateListing(listing.CreateParams{
		NFTAddress: "0xart", TokenID: "1", Seller: "alice",
		Type: model.ListingEnglishAuction, Price: 1_000_000, Currency: "ETH",
		Auction: &model.AuctionConfig{
			Type: model.AuctionEnglish, StartPrice: 1_000_000,
			Duration: 2 * time.Hour, ExtensionPeriod: 5 * time.Minute, MinBidIncrementBps: 500,
		},
	})
	require.NoError(t, err)

	r := gin.New()
	r.GET("/ws", NewWsServer(hub, nil, mkt).Handle)
	srv := httptest.NewServer(r)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?listing_id=" + l.ID + "&user_id=bob"
	c, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer c.Close()

	var snap Snapshot
	require.NoError(t, json.Unmarshal(readUntil(t, c, "listings/snapshot").Body, &snap))
	assert.Equal(t, l.ID, snap.Listing.ID)
	assert.EqualValues(t, 1_000_000, snap.NextMinimum)

	require.NoError(t, c.WriteJSON(map[string]any{
		"event": "auctions/bid",
		"body":  BidRequest{Amount: 1_000_000, Currency: "ETH"},
	}))

	got := readEach(t, c, "listings/bid_placed", "auctions/bid-ack")
	var ack BidAck
	require.NoError(t, json.Unmarshal(got["auctions/bid-ack"].Body, &ack))
	assert.Equal(t, "bob", ack.Bid.Bidder)
	assert.EqualValues(t, 1_050_000, ack.NextMinimum)

	// the same bidder cannot bid against themself
	require.NoError(t, c.WriteJSON(map[string]any{
		"event": "auctions/bid",
		"body":  BidRequest{Amount: 2_000_000, Currency: "ETH"},
	}))
	var eb ErrorBody
	require.NoError(t, json.Unmarshal(readUntil(t, c, "error").Body, &eb))
	assert.Equal(t, "SELF_BID", eb.Code)
}

func TestServer_requiresQuery(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/ws", NewWsServer(NewHub(), nil, nil).Handle)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/ws?listing_id=x", nil))
	assert.Equal(t, 400, w.Code)
}
