package quotes

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// ErrUnavailable is returned when a provider has no price for a symbol.
// Callers must treat it as "unknown price" and fall back, not crash.
var ErrUnavailable = errors.New("quote unavailable")

// Quote is a point-in-time price for one symbol.
type Quote struct {
	Symbol        string          `json:"symbol"`
	CurrentPrice  decimal.Decimal `json:"current_price"`
	Open          decimal.Decimal `json:"open"`
	High          decimal.Decimal `json:"high"`
	Low           decimal.Decimal `json:"low"`
	PreviousClose decimal.Decimal `json:"previous_close"`
	Timestamp     time.Time       `json:"timestamp"`
}

// Provider defines the interface for a quote source.
type Provider interface {
	// Name returns the provider's short name, for logging.
	Name() string

	// RealtimeQuote fetches the current quote for one symbol. Returns
	// ErrUnavailable when the provider has no data for the symbol.
	RealtimeQuote(ctx context.Context, symbol string) (*Quote, error)

	// BatchQuotes fetches quotes for many symbols. Partial results are
	// allowed; missing symbols are simply absent from the map.
	BatchQuotes(ctx context.Context, symbols []string) (map[string]Quote, error)
}

// batchBySingles implements BatchQuotes on top of RealtimeQuote for providers
// without a native batch endpoint. Failed symbols are skipped.
func batchBySingles(ctx context.Context, p Provider, symbols []string) (map[string]Quote, error) {
	result := make(map[string]Quote, len(symbols))
	for _, symbol := range symbols {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		quote, err := p.RealtimeQuote(ctx, symbol)
		if err != nil {
			continue
		}
		result[symbol] = *quote
	}
	return result, nil
}
