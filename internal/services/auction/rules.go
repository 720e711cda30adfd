package auction

import (
	"time"

	"nftmarket/internal/domain/apperr"
	"nftmarket/internal/domain/model"
	"nftmarket/internal/services/fees"
)

const (
	MinDuration = time.Hour
	MaxDuration = 30 * 24 * time.Hour

	MinIncrementBps int64 = 100  // 1%
	MaxIncrementBps int64 = 5000 // 50%
)

// ValidateConfig checks the bounds an auction config must satisfy at creation.
func ValidateConfig(cfg model.AuctionConfig) error {
	switch cfg.Type {
	case model.AuctionEnglish, model.AuctionDutch:
	default:
		return apperr.ErrInvalidAuctionConfig.WithReasonf("unknown auction type %q", cfg.Type)
	}
	if cfg.StartPrice <= 0 {
		return apperr.ErrInvalidAuctionConfig.WithReason("start price must be positive")
	}
	if cfg.Currency == "" {
		return apperr.ErrInvalidAuctionConfig.WithReason("currency is required")
	}
	if cfg.Duration < MinDuration || cfg.Duration > MaxDuration {
		return apperr.ErrDurationOutOfRange.WithReasonf("duration %s outside [%s, %s]", cfg.Duration, MinDuration, MaxDuration)
	}
	if cfg.ReservePrice != nil && *cfg.ReservePrice < 0 {
		return apperr.ErrInvalidAuctionConfig.WithReason("reserve price must not be negative")
	}

	if cfg.Type == model.AuctionEnglish {
		if cfg.MinBidIncrementBps < MinIncrementBps || cfg.MinBidIncrementBps > MaxIncrementBps {
			return apperr.ErrIncrementOutOfRange.WithReasonf("increment %d bps outside [%d, %d]",
				cfg.MinBidIncrementBps, MinIncrementBps, MaxIncrementBps)
		}
		if cfg.ExtensionPeriod < 0 || cfg.ExtensionPeriod > cfg.Duration {
			return apperr.ErrInvalidAuctionConfig.WithReason("extension period must be within [0, duration]")
		}
		// english reserve may equal the start price, dutch may not
		if cfg.ReservePrice != nil && *cfg.ReservePrice > cfg.StartPrice {
			return apperr.ErrInvalidAuctionConfig.WithReason("reserve price above start price")
		}
		return nil
	}

	if cfg.ReservePrice != nil && *cfg.ReservePrice >= cfg.StartPrice {
		return apperr.ErrInvalidAuctionConfig.WithReason("dutch reserve price must be below start price")
	}
	return nil
}

// MinimumBid is the smallest amount an english auction accepts next.
func MinimumBid(cfg model.AuctionConfig, highest *model.Bid) int64 {
	if highest == nil {
		return cfg.StartPrice
	}
	return highest.Amount + RequiredIncrement(cfg, highest.Amount)
}

// RequiredIncrement is max(1, floor(amount * minBidIncrementBps / 10000)).
func RequiredIncrement(cfg model.AuctionConfig, amount int64) int64 {
	return max(1, fees.BpsOf(amount, cfg.MinBidIncrementBps))
}

// ReserveMet reports whether highest would win under cfg.
func ReserveMet(cfg model.AuctionConfig, highest *model.Bid) bool {
	if highest == nil {
		return false
	}
	return cfg.ReservePrice == nil || highest.Amount >= *cfg.ReservePrice
}

// DutchPriceAt is the linearly decaying price of a dutch auction running
// from start to end. Integer arithmetic only, truncating like integer
// division, so the schedule is reproducible exactly.
func DutchPriceAt(cfg model.AuctionConfig, start, end, at time.Time) int64 {
	reserve := cfg.Reserve()
	if !at.After(start) {
		return cfg.StartPrice
	}
	if !at.Before(end) {
		return reserve
	}
	elapsedMs := at.Sub(start).Milliseconds()
	totalMs := end.Sub(start).Milliseconds()
	if totalMs <= 0 {
		return reserve
	}
	decrease := fees.MulDiv(cfg.StartPrice-reserve, elapsedMs, totalMs)
	return max(cfg.StartPrice-decrease, reserve)
}
