package portfolio

import "errors"

// Stable error kinds for the trading core. Callers match with errors.Is.
var (
	// ErrNotFound means the profile, holding or pending order does not
	// exist for the given identity.
	ErrNotFound = errors.New("not found")

	// ErrInsufficientFunds means a BUY (immediate or pending) exceeds the
	// available cash balance.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrInsufficientQuantity means a SELL exceeds the held quantity.
	ErrInsufficientQuantity = errors.New("insufficient quantity")

	// ErrNoHoldings means a SELL was requested for an asset the profile
	// does not hold.
	ErrNoHoldings = errors.New("no holdings for asset")

	// ErrQuoteUnavailable means no price source could supply a quote.
	ErrQuoteUnavailable = errors.New("quote unavailable")

	// ErrValidation means the request was malformed (non-positive quantity
	// or price, unknown trade type, bad filters). Rejected before any
	// persistence.
	ErrValidation = errors.New("validation failed")
)
