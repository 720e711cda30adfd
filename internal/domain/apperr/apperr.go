package apperr

import "fmt"

// Kind groups error codes by how a caller should react to them.
type Kind int

const (
	KindValidation Kind = iota + 1
	KindAuthorization
	KindNotFound
	KindState
	KindBusinessRule
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindAuthorization:
		return "authorization"
	case KindNotFound:
		return "not_found"
	case KindState:
		return "state"
	case KindBusinessRule:
		return "business_rule"
	}
	return "unknown"
}

// Code is the stable, wire-visible identifier of an error.
type Code string

type Error struct {
	Code   Code
	Kind   Kind
	Reason string // optional detail distinguishing two errors with the same code
}

func (e *Error) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Reason)
	}
	return string(e.Code)
}

// Is matches on Code only, so errors.Is(err, ErrBidTooLow) holds for any
// reason attached with WithReason.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// WithReason returns a copy of e carrying reason.
func (e *Error) WithReason(reason string) *Error {
	return &Error{Code: e.Code, Kind: e.Kind, Reason: reason}
}

// WithReasonf is WithReason with fmt.Sprintf formatting.
func (e *Error) WithReasonf(format string, args ...any) *Error {
	return e.WithReason(fmt.Sprintf(format, args...))
}

func newErr(code Code, kind Kind) *Error { return &Error{Code: code, Kind: kind} }

var (
	// validation
	ErrInvalidListing       = newErr("INVALID_LISTING", KindValidation)
	ErrInvalidPrice         = newErr("INVALID_PRICE", KindValidation)
	ErrInvalidRoyalty       = newErr("INVALID_ROYALTY", KindValidation)
	ErrInvalidAuctionConfig = newErr("INVALID_AUCTION_CONFIG", KindValidation)
	ErrDurationOutOfRange   = newErr("DURATION_OUT_OF_RANGE", KindValidation)
	ErrIncrementOutOfRange  = newErr("INCREMENT_OUT_OF_RANGE", KindValidation)
	ErrInvalidBidder        = newErr("INVALID_BIDDER", KindValidation)

	// authorization
	ErrUnauthorized = newErr("UNAUTHORIZED", KindAuthorization)

	// lookups
	ErrListingNotFound = newErr("LISTING_NOT_FOUND", KindNotFound)
	ErrAuctionNotFound = newErr("AUCTION_NOT_FOUND", KindNotFound)

	// state
	ErrInvalidStatus      = newErr("INVALID_STATUS", KindState)
	ErrAuctionClosed      = newErr("AUCTION_CLOSED", KindState)
	ErrAuctionEnded       = newErr("AUCTION_ENDED", KindState)
	ErrAuctionNotStarted  = newErr("AUCTION_NOT_STARTED", KindState)
	ErrAuctionStillActive = newErr("AUCTION_STILL_ACTIVE", KindState)
	ErrAlreadySettled     = newErr("ALREADY_SETTLED", KindState)
	ErrAuctionExists      = newErr("AUCTION_EXISTS", KindState)
	ErrWrongAuctionType   = newErr("WRONG_AUCTION_TYPE", KindState)

	// business rules
	ErrBidTooLow        = newErr("BID_TOO_LOW", KindBusinessRule)
	ErrSelfBid          = newErr("SELF_BID", KindBusinessRule)
	ErrCurrencyMismatch = newErr("CURRENCY_MISMATCH", KindBusinessRule)
	ErrHasBids          = newErr("HAS_BIDS", KindBusinessRule)
	ErrAuctionHasBids   = newErr("AUCTION_HAS_BIDS", KindBusinessRule)
)
