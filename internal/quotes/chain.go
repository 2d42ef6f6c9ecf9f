package quotes

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// Chain is a Provider that tries an ordered list of providers, returning the
// first successful result. Callers depend only on the combined capability,
// not on any specific provider.
type Chain struct {
	providers []Provider
	logger    *zap.Logger
}

var _ Provider = (*Chain)(nil)

// NewChain creates a provider chain. Providers are tried in the given order.
func NewChain(logger *zap.Logger, providers ...Provider) *Chain {
	return &Chain{
		providers: providers,
		logger:    logger.Named("quote-chain"),
	}
}

// Name implements Provider.
func (c *Chain) Name() string { return "chain" }

// RealtimeQuote tries each provider in order until one returns a quote.
func (c *Chain) RealtimeQuote(ctx context.Context, symbol string) (*Quote, error) {
	var lastErr error
	for _, p := range c.providers {
		quote, err := p.RealtimeQuote(ctx, symbol)
		if err == nil {
			return quote, nil
		}
		lastErr = err
		c.logger.Warn("Provider failed for symbol, trying next",
			zap.String("provider", p.Name()),
			zap.String("symbol", symbol),
			zap.Error(err),
		)
	}
	if lastErr == nil {
		lastErr = ErrUnavailable
	}
	return nil, fmt.Errorf("all providers failed for %s: %w", symbol, lastErr)
}

// BatchQuotes asks each provider in order for the symbols still missing,
// merging partial results.
func (c *Chain) BatchQuotes(ctx context.Context, symbols []string) (map[string]Quote, error) {
	result := make(map[string]Quote, len(symbols))
	missing := symbols

	for _, p := range c.providers {
		if len(missing) == 0 {
			break
		}
		partial, err := p.BatchQuotes(ctx, missing)
		if err != nil {
			c.logger.Warn("Provider batch failed, trying next",
				zap.String("provider", p.Name()),
				zap.Error(err),
			)
			continue
		}
		var stillMissing []string
		for _, symbol := range missing {
			if quote, ok := partial[symbol]; ok {
				result[symbol] = quote
			} else {
				stillMissing = append(stillMissing, symbol)
			}
		}
		missing = stillMissing
	}

	return result, nil
}
