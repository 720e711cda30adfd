package fees

import (
	"math/big"

	"nftmarket/internal/domain/apperr"
	"nftmarket/internal/domain/model"
)

const (
	// PlatformFeeBps is the fixed 2.5% platform cut.
	PlatformFeeBps int64 = 250
	// MaxCreatorRoyaltyBps caps caller-supplied royalties at 10%.
	MaxCreatorRoyaltyBps int64 = 1000

	bpsDenominator int64 = 10_000
)

// ComputeFees splits salePrice into platform fee, creator royalty and seller
// proceeds. Every share is floored, so rounding dust goes to the seller.
func ComputeFees(salePrice, creatorRoyaltyBps int64) (model.FeeBreakdown, error) {
	if salePrice <= 0 {
		return model.FeeBreakdown{}, apperr.ErrInvalidPrice.WithReasonf("sale price %d must be positive", salePrice)
	}
	if creatorRoyaltyBps < 0 || creatorRoyaltyBps > MaxCreatorRoyaltyBps {
		return model.FeeBreakdown{}, apperr.ErrInvalidRoyalty.WithReasonf("royalty %d bps outside [0, %d]", creatorRoyaltyBps, MaxCreatorRoyaltyBps)
	}

	platformFee := BpsOf(salePrice, PlatformFeeBps)
	royalty := BpsOf(salePrice, creatorRoyaltyBps)

	return model.FeeBreakdown{
		PlatformFeeBps:    PlatformFeeBps,
		CreatorRoyaltyBps: creatorRoyaltyBps,
		PlatformFee:       platformFee,
		CreatorRoyalty:    royalty,
		SellerProceeds:    salePrice - platformFee - royalty,
	}, nil
}

// BpsOf returns floor(amount * bps / 10000) for non-negative inputs, computed
// without int64 overflow. The result never exceeds amount when bps <= 10000.
func BpsOf(amount, bps int64) int64 {
	return MulDiv(amount, bps, bpsDenominator)
}

// MulDiv returns a*b/d truncated toward zero, with a 128-bit-safe intermediate.
func MulDiv(a, b, d int64) int64 {
	if d == 0 {
		panic("fees: MulDiv by zero")
	}
	n := new(big.Int).Mul(big.NewInt(a), big.NewInt(b))
	return n.Quo(n, big.NewInt(d)).Int64()
}
