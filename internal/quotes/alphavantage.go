package quotes

import (
	"context"
	"fmt"
	"time"

	"papertrade/internal/config"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// AlphaVantageClient is a quote provider backed by the Alpha Vantage API.
// Used as the fallback behind Finnhub.
type AlphaVantageClient struct {
	client  *resty.Client
	apiKey  string
	logger  *zap.Logger
	limiter *rate.Limiter
}

var _ Provider = (*AlphaVantageClient)(nil)

// NewAlphaVantageClient creates a new Alpha Vantage quote client.
func NewAlphaVantageClient(cfg *config.Provider, timeout time.Duration, logger *zap.Logger) *AlphaVantageClient {
	client := resty.New().SetBaseURL(cfg.BaseURL).SetTimeout(timeout)
	limiter := rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateLimitBurst)

	return &AlphaVantageClient{
		client:  client,
		apiKey:  cfg.ApiKey,
		logger:  logger.Named("alphavantage"),
		limiter: limiter,
	}
}

// Name implements Provider.
func (c *AlphaVantageClient) Name() string { return "alphavantage" }

// alphaVantageResponse mirrors the GLOBAL_QUOTE payload. All numeric values
// arrive as strings.
type alphaVantageResponse struct {
	GlobalQuote struct {
		Symbol        string `json:"01. symbol"`
		Open          string `json:"02. open"`
		High          string `json:"03. high"`
		Low           string `json:"04. low"`
		Price         string `json:"05. price"`
		PreviousClose string `json:"08. previous close"`
	} `json:"Global Quote"`
}

// RealtimeQuote fetches the current quote for one symbol.
func (c *AlphaVantageClient) RealtimeQuote(ctx context.Context, symbol string) (*Quote, error) {
	req := c.client.R().
		SetContext(ctx).
		SetQueryParam("function", "GLOBAL_QUOTE").
		SetQueryParam("symbol", symbol).
		SetQueryParam("apikey", c.apiKey).
		SetResult(&alphaVantageResponse{})

	resp, err := doRequest(ctx, c.client, c.logger, c.limiter, "GET", "/query", req)
	if err != nil {
		return nil, fmt.Errorf("failed to get quote for %s: %w", symbol, err)
	}

	result := resp.Result().(*alphaVantageResponse)
	// An empty Global Quote object means the symbol is unknown or the
	// request budget is exhausted.
	if result.GlobalQuote.Price == "" {
		return nil, fmt.Errorf("%w: %s", ErrUnavailable, symbol)
	}

	price, err := decimal.NewFromString(result.GlobalQuote.Price)
	if err != nil {
		return nil, fmt.Errorf("failed to parse price for %s: %w", symbol, err)
	}

	quote := &Quote{
		Symbol:       symbol,
		CurrentPrice: price,
		Timestamp:    time.Now(),
	}
	// The remaining fields are optional context; ignore parse failures.
	quote.Open, _ = decimal.NewFromString(result.GlobalQuote.Open)
	quote.High, _ = decimal.NewFromString(result.GlobalQuote.High)
	quote.Low, _ = decimal.NewFromString(result.GlobalQuote.Low)
	quote.PreviousClose, _ = decimal.NewFromString(result.GlobalQuote.PreviousClose)

	return quote, nil
}

// BatchQuotes fetches quotes one symbol at a time.
func (c *AlphaVantageClient) BatchQuotes(ctx context.Context, symbols []string) (map[string]Quote, error) {
	return batchBySingles(ctx, c, symbols)
}
