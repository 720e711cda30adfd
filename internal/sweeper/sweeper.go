package sweeper

import (
	"context"
	"time"

	"go.uber.org/zap"

	"nftmarket/internal/services/marketplace"
)

// Sweepable is satisfied by marketplace.IMarketplace.
type Sweepable interface {
	RunSweep() marketplace.SweepReport
}

// Run settles due auctions and expires stale listings every interval until
// ctx is cancelled. Run blocks; start it in its own goroutine.
func Run(ctx context.Context, svc Sweepable, interval time.Duration) {
	tk := time.NewTicker(interval)
	defer tk.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-tk.C:
			Once(svc)
		}
	}
}

// Once runs a single sweep and logs anything it changed.
func Once(svc Sweepable) marketplace.SweepReport {
	rep := svc.RunSweep()
	if rep == (marketplace.SweepReport{}) {
		return rep
	}
	log := zap.L().Info
	if rep.Failed > 0 {
		log = zap.L().Warn
	}
	log("sweeper.pass",
		zap.Int("expired", rep.Expired),
		zap.Int("settled", rep.Settled),
		zap.Int("sold", rep.Sold),
		zap.Int("failed", rep.Failed),
	)
	return rep
}
