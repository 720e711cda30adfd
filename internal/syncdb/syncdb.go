package syncdb

import (
	"context"
	"database/sql"
	"time"

	"go.uber.org/zap"

	"nftmarket/internal/domain/model"
)

// ListingSource is satisfied by *listing.Store.
type ListingSource interface {
	All() []*model.Listing
}

// AuctionSource is satisfied by *auction.Engine.
type AuctionSource interface {
	Auctions() []*model.AuctionState
}

const (
	upsertListing = `
	INSERT INTO listings (id, nft_address, token_id, seller, chain, type, price,
	                      currency, reserve_price, status, start_time, end_time,
	                      buyer, sale_price, tx_ref, created_at, updated_at)
	     VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)
	ON CONFLICT (id) DO UPDATE
	       SET price=EXCLUDED.price,
	           status=EXCLUDED.status,
	           end_time=EXCLUDED.end_time,
	           buyer=EXCLUDED.buyer,
	           sale_price=EXCLUDED.sale_price,
	           tx_ref=EXCLUDED.tx_ref,
	           updated_at=EXCLUDED.updated_at`

	upsertAuction = `
	INSERT INTO auction_states (listing_id, type, phase, start_price, reserve_price,
	                            start_time, end_time, effective_end_time,
	                            extension_count, settled)
	     VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
	ON CONFLICT (listing_id) DO UPDATE
	       SET phase=EXCLUDED.phase,
	           effective_end_time=EXCLUDED.effective_end_time,
	           extension_count=EXCLUDED.extension_count,
	           settled=EXCLUDED.settled`

	upsertBid = `
	INSERT INTO bids (id, listing_id, bidder, amount, currency, status, placed_at)
	     VALUES ($1,$2,$3,$4,$5,$6,$7)
	ON CONFLICT (id) DO UPDATE
	       SET status=EXCLUDED.status`
)

// Run snapshots in-memory listings and auctions into Postgres every interval.
func Run(ctx context.Context, db *sql.DB, listings ListingSource, auctions AuctionSource, interval time.Duration) {
	tk := time.NewTicker(interval)
	go func() {
		defer tk.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-tk.C:
				if err := syncOnce(ctx, db, listings, auctions); err != nil {
					zap.L().Error("syncdb.sync", zap.Error(err))
				}
			}
		}
	}()
}

func syncOnce(ctx context.Context, db *sql.DB, listings ListingSource, auctions AuctionSource) error {
	ls := listings.All()
	as := auctions.Auctions()
	if len(ls) == 0 {
		return nil
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	// listings first, the other tables reference them
	for _, l := range ls {
		var buyer, txRef sql.NullString
		var salePrice sql.NullInt64
		if l.Sale != nil {
			buyer = sql.NullString{String: l.Sale.Buyer, Valid: true}
			txRef = sql.NullString{String: l.Sale.TxRef, Valid: l.Sale.TxRef != ""}
			salePrice = sql.NullInt64{Int64: l.Sale.Price, Valid: true}
		}
		if _, err := tx.ExecContext(ctx, upsertListing,
			l.ID, l.NFTAddress, l.TokenID, l.Seller, l.Chain, string(l.Type), l.Price,
			l.Currency, nullInt(l.ReservePrice), string(l.Status), l.StartTime, nullTime(l.EndTime),
			buyer, salePrice, txRef, l.CreatedAt, l.UpdatedAt); err != nil {
			return err
		}
		for _, b := range l.Bids {
			if _, err := tx.ExecContext(ctx, upsertBid,
				b.ID, l.ID, b.Bidder, b.Amount, b.Currency, string(b.Status), b.Timestamp); err != nil {
				return err
			}
		}
	}

	for _, a := range as {
		if _, err := tx.ExecContext(ctx, upsertAuction,
			a.ListingID, string(a.Config.Type), string(a.Phase), a.Config.StartPrice,
			nullInt(a.Config.ReservePrice), a.StartTime, a.EndTime, a.EffectiveEndTime,
			a.ExtensionCount, a.Settled); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	zap.L().Debug("syncdb.synced", zap.Int("listings", len(ls)), zap.Int("auctions", len(as)))
	return nil
}

func nullInt(p *int64) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *p, Valid: true}
}

func nullTime(p *time.Time) sql.NullTime {
	if p == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *p, Valid: true}
}
