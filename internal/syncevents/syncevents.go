package syncevents

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"nftmarket/internal/redis/eventpub"
)

const insertEvent = `INSERT INTO market_events (stream_id, listing_id, type, occurred_at, payload)
             VALUES ($1, $2, $3, to_timestamp($4::double precision / 1000), $5::jsonb)
             ON CONFLICT (stream_id) DO NOTHING`

// Run tails the market event stream and persists every entry. Entries carry
// their stream id as primary key, so replays after a restart are no-ops.
func Run(ctx context.Context, rdc *redis.Client, db *sql.DB) {
	go func() {
		lastID := "0-0"
		for {
			select {
			case <-ctx.Done():
				return
			default:
			}

			// block up to 2 s for new entries
			res, err := rdc.XRead(ctx, &redis.XReadArgs{
				Streams: []string{eventpub.StreamKey, lastID},
				Count:   100,
				Block:   2000 * time.Millisecond,
			}).Result()
			if err != nil && !errors.Is(err, redis.Nil) {
				if ctx.Err() != nil {
					return
				}
				zap.L().Warn("syncevents.xread", zap.Error(err))
				time.Sleep(time.Second)
				continue
			}
			if len(res) == 0 || len(res[0].Messages) == 0 {
				continue
			}
			entries := res[0].Messages
			if err := persist(ctx, db, entries); err != nil {
				zap.L().Error("syncevents.persist", zap.Error(err))
				time.Sleep(time.Second)
				continue
			}
			lastID = entries[len(entries)-1].ID
		}
	}()
}

func persist(ctx context.Context, db *sql.DB, msgs []redis.XMessage) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, m := range msgs {
		listingID, _ := m.Values["listing_id"].(string)
		kind, _ := m.Values["type"].(string)
		payload, _ := m.Values["payload"].(string)
		atRaw, _ := m.Values["at"].(string)
		at, err := strconv.ParseInt(atRaw, 10, 64)
		if err != nil || listingID == "" || kind == "" {
			zap.L().Warn("syncevents.skip_malformed", zap.String("stream_id", m.ID))
			continue
		}
		if _, err := tx.ExecContext(ctx, insertEvent, m.ID, listingID, kind, at, payload); err != nil {
			return fmt.Errorf("insert %s: %w", m.ID, err)
		}
	}
	return tx.Commit()
}
