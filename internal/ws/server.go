package ws

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"nftmarket/internal/domain/apperr"
	"nftmarket/internal/domain/model"
	"nftmarket/internal/services/marketplace"
)

const (
	writeWait    = 10 * time.Second
	pongWait     = 12 * time.Second
	pingPeriod   = 3 * time.Second // must be < pongWait
	readLimit    = 4096
	handlerLimit = 1900 * time.Millisecond
)

type WsServer struct {
	hub      *Hub
	subs     roomSubscriber
	router   *Router
	mkt      marketplace.IMarketplace
	upgrader websocket.Upgrader
}

// NewWsServer builds the websocket endpoint. With a nil rdc, rooms are fed by
// a LocalFanout subscribed to the process emitter instead of redis.
func NewWsServer(h *Hub, rdc *redis.Client, mkt marketplace.IMarketplace) *WsServer {
	var subs roomSubscriber = noopSubscriber{}
	if rdc != nil {
		subs = newSubscriptionManager(rdc, h)
	}
	srv := &WsServer{
		hub:    h,
		subs:   subs,
		router: NewRouter(),
		mkt:    mkt,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true }, // dev-only
		},
	}
	srv.registerHandlers()
	return srv
}

func (s *WsServer) Handle(ginCtx *gin.Context) {
	listingID := ginCtx.Query("listing_id")
	userID := ginCtx.Query("user_id")
	if listingID == "" || userID == "" {
		ginCtx.JSON(http.StatusBadRequest, gin.H{"error": "listing_id and user_id are required"})
		return
	}

	rawConn, err := s.upgrader.Upgrade(ginCtx.Writer, ginCtx.Request, nil)
	if err != nil {
		zap.L().Warn("ws.accept", zap.Error(err))
		return
	}
	rawConn.SetReadLimit(readLimit)

	wsConn := &clientConn{rawConn: rawConn, userID: userID}
	s.hub.Join(listingID, wsConn)
	s.subs.Subscribe(listingID)

	if snap, err := s.snapshot(listingID); err == nil {
		_ = wsConn.writeJSON(gin.H{"event": "listings/snapshot", "body": snap})
	} else if !errors.Is(err, apperr.ErrListingNotFound) {
		zap.L().Warn("ws.snapshot", zap.Error(err))
	}

	done := make(chan struct{})
	go s.reader(listingID, userID, wsConn, done)
	go s.pinger(wsConn, done)
}

func (s *WsServer) registerHandlers() {
	Register(
		s.router,
		"auctions/bid",
		func(ctx context.Context, cc *ConnContext, req BidRequest) (BidAck, error) {
			bid, err := s.mkt.PlaceBid(cc.ListingID, cc.UserID, req.Amount, req.Currency)
			if err != nil {
				return BidAck{}, err
			}
			next, _ := s.mkt.NextMinimumBid(cc.ListingID)
			return BidAck{Bid: bid, NextMinimum: next}, nil
		},
	)
	Register(
		s.router,
		"auctions/accept",
		func(ctx context.Context, cc *ConnContext, req AcceptRequest) (AcceptAck, error) {
			sale, err := s.mkt.AcceptDutchPrice(cc.ListingID, cc.UserID, req.Currency, req.TxRef)
			return AcceptAck{Sale: sale}, err
		},
	)
	Register(
		s.router,
		"listings/snapshot",
		func(ctx context.Context, cc *ConnContext, _ struct{}) (*Snapshot, error) {
			return s.snapshot(cc.ListingID)
		},
	)
}

func (s *WsServer) snapshot(listingID string) (*Snapshot, error) {
	l, err := s.mkt.GetListing(listingID)
	if err != nil {
		return nil, err
	}
	snap := &Snapshot{Listing: l}
	if !l.Type.IsAuction() {
		return snap, nil
	}
	if snap.Auction, err = s.mkt.GetAuction(listingID); err != nil {
		return snap, nil
	}
	if snap.Auction.Phase.Closed() {
		return snap, nil
	}
	switch snap.Auction.Config.Type {
	case model.AuctionDutch:
		snap.DutchPrice, _ = s.mkt.DutchPrice(listingID, time.Time{})
	case model.AuctionEnglish:
		snap.NextMinimum, _ = s.mkt.NextMinimumBid(listingID)
	}
	return snap, nil
}

func (s *WsServer) reader(listingID, userID string, conn *clientConn, done chan struct{}) {
	defer func() {
		close(done)
		s.hub.Leave(listingID, conn)
		s.subs.Unsubscribe(listingID)
	}()

	_ = conn.rawConn.SetReadDeadline(time.Now().Add(pongWait))
	conn.rawConn.SetPongHandler(func(string) error {
		return conn.rawConn.SetReadDeadline(time.Now().Add(pongWait))
	})

	cc := &ConnContext{ListingID: listingID, UserID: userID, Server: s}

	for {
		var env Envelope
		if err := conn.rawConn.ReadJSON(&env); err != nil {
			return // client closed or errored
		}

		ctx, cancel := context.WithTimeout(context.Background(), handlerLimit)
		res, err := s.router.dispatch(ctx, cc, env)
		cancel()

		if err != nil {
			_ = conn.writeJSON(map[string]any{"event": "error", "body": errorBody(err)})
			continue
		}

		reply := map[string]any{"event": env.Event + "-ack"}
		if res != nil {
			reply["body"] = res
		}
		_ = conn.writeJSON(reply)
	}
}

func (s *WsServer) pinger(conn *clientConn, done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := conn.ping(); err != nil {
				_ = conn.rawConn.Close()
				return
			}
		}
	}
}

func errorBody(err error) ErrorBody {
	var ae *apperr.Error
	if errors.As(err, &ae) {
		return ErrorBody{Error: ae.Error(), Code: string(ae.Code)}
	}
	return ErrorBody{Error: err.Error()}
}
