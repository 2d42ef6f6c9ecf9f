package quotes

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"time"

	"papertrade/internal/config"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// FinnhubClient is a quote provider backed by the Finnhub REST API.
type FinnhubClient struct {
	client  *resty.Client
	apiKey  string
	logger  *zap.Logger
	limiter *rate.Limiter
}

// ensure FinnhubClient implements the interface
var _ Provider = (*FinnhubClient)(nil)

// NewFinnhubClient creates a new Finnhub quote client. A request that
// exceeds timeout is treated by callers as "quote unavailable".
func NewFinnhubClient(cfg *config.Provider, timeout time.Duration, logger *zap.Logger) *FinnhubClient {
	client := resty.New().SetBaseURL(cfg.BaseURL).SetTimeout(timeout)

	// rate.Limit is requests per second.
	limiter := rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateLimitBurst)

	return &FinnhubClient{
		client:  client,
		apiKey:  cfg.ApiKey,
		logger:  logger.Named("finnhub"),
		limiter: limiter,
	}
}

// Name implements Provider.
func (c *FinnhubClient) Name() string { return "finnhub" }

// finnhubQuoteResponse mirrors the /quote endpoint payload.
type finnhubQuoteResponse struct {
	Current       float64 `json:"c"`
	Open          float64 `json:"o"`
	High          float64 `json:"h"`
	Low           float64 `json:"l"`
	PreviousClose float64 `json:"pc"`
	Timestamp     int64   `json:"t"`
}

// RealtimeQuote fetches the current quote for one symbol.
func (c *FinnhubClient) RealtimeQuote(ctx context.Context, symbol string) (*Quote, error) {
	req := c.client.R().
		SetContext(ctx).
		SetQueryParam("symbol", symbol).
		SetQueryParam("token", c.apiKey).
		SetResult(&finnhubQuoteResponse{})

	resp, err := doRequest(ctx, c.client, c.logger, c.limiter, "GET", "/quote", req)
	if err != nil {
		return nil, fmt.Errorf("failed to get quote for %s: %w", symbol, err)
	}

	result := resp.Result().(*finnhubQuoteResponse)
	// Finnhub returns all zeroes for unknown symbols rather than an error.
	if result.Current == 0 {
		return nil, fmt.Errorf("%w: %s", ErrUnavailable, symbol)
	}

	return &Quote{
		Symbol:        symbol,
		CurrentPrice:  decimal.NewFromFloat(result.Current),
		Open:          decimal.NewFromFloat(result.Open),
		High:          decimal.NewFromFloat(result.High),
		Low:           decimal.NewFromFloat(result.Low),
		PreviousClose: decimal.NewFromFloat(result.PreviousClose),
		Timestamp:     time.Unix(result.Timestamp, 0),
	}, nil
}

// BatchQuotes fetches quotes one symbol at a time; Finnhub's free tier has no
// batch endpoint.
func (c *FinnhubClient) BatchQuotes(ctx context.Context, symbols []string) (map[string]Quote, error) {
	return batchBySingles(ctx, c, symbols)
}

// doRequest handles request execution with rate limiting and retry logic.
// Shared between the quote providers.
func doRequest(ctx context.Context, client *resty.Client, logger *zap.Logger, limiter *rate.Limiter, method, url string, req *resty.Request) (*resty.Response, error) {
	var resp *resty.Response
	var err error
	const maxRetries = 3

	for i := 0; i < maxRetries; i++ {
		// Wait for the rate limiter
		if err := limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter wait failed: %w", err)
		}

		logger.Debug("Executing request", zap.String("method", method), zap.String("url", client.BaseURL+url))
		resp, err = req.Execute(method, url)

		if err == nil && !resp.IsError() {
			return resp, nil // Success
		}

		// Analyze error and decide whether to retry
		shouldRetry := false
		var retryAfter time.Duration

		if resp != nil && resp.RawResponse != nil {
			statusCode := resp.StatusCode()
			if statusCode == http.StatusTooManyRequests {
				shouldRetry = true
				retryAfterHeader := resp.Header().Get("Retry-After")
				if seconds, err := strconv.Atoi(retryAfterHeader); err == nil {
					retryAfter = time.Duration(seconds) * time.Second
				}
			} else if statusCode >= 500 { // Server errors
				shouldRetry = true
			}
		} else { // Network or other client-side errors
			shouldRetry = true
		}

		if !shouldRetry {
			return nil, fmt.Errorf("request failed with status %s: %s", resp.Status(), resp.String())
		}

		if retryAfter == 0 {
			// Exponential backoff: 1s, 2s, 4s
			retryAfter = time.Duration(math.Pow(2, float64(i))) * time.Second
		}

		logger.Warn("Request failed, retrying...",
			zap.Int("attempt", i+1),
			zap.Duration("retry_after", retryAfter),
			zap.Error(err),
		)

		select {
		case <-time.After(retryAfter):
			continue
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	return nil, fmt.Errorf("request failed after %d attempts: %w", maxRetries, err)
}
