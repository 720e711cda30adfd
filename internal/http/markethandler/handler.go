package markethandler

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"nftmarket/internal/domain/apperr"
	"nftmarket/internal/domain/model"
	"nftmarket/internal/services/listing"
	"nftmarket/internal/services/marketplace"
)

type Handler struct {
	svc   marketplace.IMarketplace
	clock model.Clock
}

type Option func(*Handler)

// WithClock sets the clock that stamps responses computed for "now".
func WithClock(c model.Clock) Option { return func(h *Handler) { h.clock = c } }

func New(svc marketplace.IMarketplace, opts ...Option) *Handler {
	h := &Handler{svc: svc, clock: model.SystemClock}
	for _, o := range opts {
		o(h)
	}
	return h
}

func (h *Handler) Register(r gin.IRoutes) {
	r.GET("/listings", h.list)
	r.POST("/listings", h.create)
	r.GET("/listings/:id", h.info)
	r.PATCH("/listings/:id", h.update)
	r.POST("/listings/:id/cancel", h.cancel)
	r.POST("/listings/:id/buy", h.buy)
	r.POST("/listings/:id/sale", h.sale)

	r.GET("/listings/:id/auction", h.auction)
	r.POST("/listings/:id/bids", h.bid)
	r.POST("/listings/:id/accept", h.accept)
	r.POST("/listings/:id/settle", h.settle)
	r.POST("/listings/:id/auction/cancel", h.cancelAuction)
	r.GET("/listings/:id/dutch-price", h.dutchPrice)

	r.GET("/stats", h.stats)
}

// statusFor maps a domain error onto an HTTP status.
func statusFor(err error) int {
	var ae *apperr.Error
	if !errors.As(err, &ae) {
		return http.StatusInternalServerError
	}
	switch ae.Kind {
	case apperr.KindValidation:
		return http.StatusBadRequest
	case apperr.KindAuthorization:
		return http.StatusForbidden
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindState, apperr.KindBusinessRule:
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

func fail(c *gin.Context, err error) {
	status := statusFor(err)
	resp := ErrorResponse{Error: err.Error()}
	var ae *apperr.Error
	if errors.As(err, &ae) {
		resp.Code = string(ae.Code)
	}
	if status == http.StatusInternalServerError {
		zap.L().Error("http.unexpected", zap.String("path", c.FullPath()), zap.Error(err))
	}
	c.JSON(status, resp)
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
}

// list filters by seller, collection and status.
func (h *Handler) list(c *gin.Context) {
	var q ListListingsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		badRequest(c, err)
		return
	}
	ls := h.svc.ListListings(marketplace.Filter{
		Seller:     q.Seller,
		Collection: q.Collection,
		Status:     model.ListingStatus(q.Status),
	})
	out := make([]ListingDTO, len(ls))
	for i, l := range ls {
		out[i] = listingDTO(l)
	}
	c.JSON(http.StatusOK, out)
}

func (h *Handler) create(c *gin.Context) {
	var body CreateListingBody
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, err)
		return
	}
	if body.Type.IsAuction() && body.Auction == nil {
		badRequest(c, errors.New("auction listings need an auction block"))
		return
	}
	l, err := h.svc.CreateListing(body.params())
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, listingDTO(l))
}

func (h *Handler) info(c *gin.Context) {
	l, err := h.svc.GetListing(c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, listingDTO(l))
}

func (h *Handler) update(c *gin.Context) {
	var body UpdateListingBody
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, err)
		return
	}
	l, err := h.svc.UpdateListing(c.Param("id"), body.Seller, listing.UpdateParams{
		Price:    body.Price,
		EndTime:  body.EndTime,
		Metadata: body.Metadata,
	})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, listingDTO(l))
}

func (h *Handler) cancel(c *gin.Context) {
	var body SellerBody
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, err)
		return
	}
	if err := h.svc.CancelListing(c.Param("id"), body.Seller); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) buy(c *gin.Context) {
	var body BuyBody
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, err)
		return
	}
	s, err := h.svc.BuyNow(c.Param("id"), body.Buyer, body.Currency, body.TxRef)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, saleDTO(s))
}

// sale records a fixed-price sale whose payment cleared at checkout.
func (h *Handler) sale(c *gin.Context) {
	var body SaleBody
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, err)
		return
	}
	s, err := h.svc.CompleteSale(c.Param("id"), body.Buyer, body.SalePrice, body.CreatorRoyaltyBps, body.TxRef)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, saleDTO(s))
}

// auction adds the next minimum bid or the current dutch price while the
// auction is open.
func (h *Handler) auction(c *gin.Context) {
	id := c.Param("id")
	st, err := h.svc.GetAuction(id)
	if err != nil {
		fail(c, err)
		return
	}
	dto := AuctionDTO{AuctionState: st}
	if !st.Phase.Closed() {
		switch st.Config.Type {
		case model.AuctionEnglish:
			dto.NextMinimumBid, _ = h.svc.NextMinimumBid(id)
		case model.AuctionDutch:
			dto.CurrentPrice, _ = h.svc.DutchPrice(id, time.Time{})
		}
	}
	c.JSON(http.StatusOK, dto)
}

func (h *Handler) bid(c *gin.Context) {
	var body PlaceBidBody
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, err)
		return
	}
	b, err := h.svc.PlaceBid(c.Param("id"), body.Bidder, body.Amount, body.Currency)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, b)
}

func (h *Handler) accept(c *gin.Context) {
	var body BuyBody
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, err)
		return
	}
	s, err := h.svc.AcceptDutchPrice(c.Param("id"), body.Buyer, body.Currency, body.TxRef)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, saleDTO(s))
}

func (h *Handler) settle(c *gin.Context) {
	res, s, err := h.svc.SettleAuction(c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, SettlementDTO{SettlementResult: res, Sale: saleDTO(s)})
}

func (h *Handler) cancelAuction(c *gin.Context) {
	var body SellerBody
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, err)
		return
	}
	if err := h.svc.CancelAuction(c.Param("id"), body.Seller); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// dutchPrice answers for the instant in ?at (RFC 3339), or for now.
func (h *Handler) dutchPrice(c *gin.Context) {
	var q DutchPriceQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		badRequest(c, err)
		return
	}
	at := h.clock.Now()
	if q.At != "" {
		t, err := time.Parse(time.RFC3339, q.At)
		if err != nil {
			badRequest(c, err)
			return
		}
		at = t.UTC()
	}

	id := c.Param("id")
	l, err := h.svc.GetListing(id)
	if err != nil {
		fail(c, err)
		return
	}
	price, err := h.svc.DutchPrice(id, at)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, DutchPriceDTO{
		ListingID:    id,
		At:           at,
		Price:        price,
		PriceDisplay: display(price, l.Currency),
	})
}

func (h *Handler) stats(c *gin.Context) {
	c.JSON(http.StatusOK, h.svc.Stats())
}
