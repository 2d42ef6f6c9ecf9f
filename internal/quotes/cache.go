package quotes

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Cache wraps a Provider with a TTL'd in-memory cache. Entries within the TTL
// are served without hitting the source; when the source fails, a stale entry
// is served rather than propagating the error.
type Cache struct {
	source Provider
	ttl    time.Duration
	logger *zap.Logger

	mu      sync.RWMutex
	entries map[string]cacheEntry
}

type cacheEntry struct {
	quote     Quote
	fetchedAt time.Time
}

var _ Provider = (*Cache)(nil)

// NewCache creates a caching wrapper around source.
func NewCache(source Provider, ttl time.Duration, logger *zap.Logger) *Cache {
	return &Cache{
		source:  source,
		ttl:     ttl,
		logger:  logger.Named("quote-cache"),
		entries: make(map[string]cacheEntry),
	}
}

// Name implements Provider.
func (c *Cache) Name() string { return c.source.Name() }

func (c *Cache) lookup(symbol string) (cacheEntry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.entries[symbol]
	return entry, ok
}

func (c *Cache) store(quote Quote) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[quote.Symbol] = cacheEntry{quote: quote, fetchedAt: time.Now()}
}

// RealtimeQuote serves a fresh cached quote if present, otherwise asks the
// source. Stale entries are only served when the source fails.
func (c *Cache) RealtimeQuote(ctx context.Context, symbol string) (*Quote, error) {
	if entry, ok := c.lookup(symbol); ok && time.Since(entry.fetchedAt) < c.ttl {
		quote := entry.quote
		return &quote, nil
	}

	quote, err := c.source.RealtimeQuote(ctx, symbol)
	if err != nil {
		if entry, ok := c.lookup(symbol); ok {
			c.logger.Warn("Source failed, serving stale quote",
				zap.String("symbol", symbol),
				zap.Time("fetched_at", entry.fetchedAt),
				zap.Error(err),
			)
			stale := entry.quote
			return &stale, nil
		}
		return nil, err
	}

	c.store(*quote)
	return quote, nil
}

// BatchQuotes serves fresh entries from the cache and fetches the rest from
// the source, falling back to stale entries per symbol.
func (c *Cache) BatchQuotes(ctx context.Context, symbols []string) (map[string]Quote, error) {
	result := make(map[string]Quote, len(symbols))
	var missing []string

	for _, symbol := range symbols {
		if entry, ok := c.lookup(symbol); ok && time.Since(entry.fetchedAt) < c.ttl {
			result[symbol] = entry.quote
		} else {
			missing = append(missing, symbol)
		}
	}

	if len(missing) == 0 {
		return result, nil
	}

	fetched, err := c.source.BatchQuotes(ctx, missing)
	if err != nil {
		c.logger.Warn("Source batch failed, falling back to stale entries", zap.Error(err))
		fetched = nil
	}
	for _, symbol := range missing {
		if quote, ok := fetched[symbol]; ok {
			c.store(quote)
			result[symbol] = quote
		} else if entry, ok := c.lookup(symbol); ok {
			result[symbol] = entry.quote
		}
	}

	return result, nil
}
