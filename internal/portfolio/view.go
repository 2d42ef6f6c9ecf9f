package portfolio

import (
	"context"
	"errors"
	"fmt"
	"time"

	"papertrade/internal/models"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// HoldingView is a holding enriched with a current market valuation.
type HoldingView struct {
	AssetID         uint            `json:"asset_id"`
	Symbol          string          `json:"symbol"`
	Name            string          `json:"name"`
	Quantity        decimal.Decimal `json:"quantity"`
	AverageBuyPrice decimal.Decimal `json:"average_buy_price"`
	CurrentPrice    decimal.Decimal `json:"current_price"`
	MarketValue     decimal.Decimal `json:"market_value"`
	UnrealizedPL    decimal.Decimal `json:"unrealized_pl"`
	QuoteAvailable  bool            `json:"quote_available"`
}

// ProfileView is a profile with enriched holdings and totals.
type ProfileView struct {
	UserID        string          `json:"user_id"`
	CashBalance   decimal.Decimal `json:"cash_balance"`
	HoldingsValue decimal.Decimal `json:"holdings_value"`
	TotalValue    decimal.Decimal `json:"total_value"`
	Holdings      []HoldingView   `json:"holdings"`
}

// GetProfile returns the profile with each holding valued at its latest
// quote. Holdings whose quote is unavailable are valued at average buy price
// and marked accordingly; quote failures never fail the call.
func (s *Service) GetProfile(ctx context.Context, userID string) (*ProfileView, error) {
	profile, err := s.profileByUser(userID)
	if err != nil {
		return nil, err
	}

	var holdings []models.Holding
	if err := s.db.Preload("Asset").Where("profile_id = ?", profile.ID).Find(&holdings).Error; err != nil {
		return nil, fmt.Errorf("failed to load holdings: %w", err)
	}

	symbols := make([]string, 0, len(holdings))
	for _, holding := range holdings {
		symbols = append(symbols, holding.Asset.Symbol)
	}

	priced := map[string]decimal.Decimal{}
	if len(symbols) > 0 {
		batch, err := s.quotes.BatchQuotes(ctx, symbols)
		if err != nil {
			s.logger.Warn("Batch quotes failed, valuing holdings at average cost", zap.Error(err))
		}
		for symbol, quote := range batch {
			priced[symbol] = quote.CurrentPrice
		}
	}

	view := &ProfileView{
		UserID:        profile.UserID,
		CashBalance:   profile.CashBalance,
		HoldingsValue: decimal.Zero,
		Holdings:      make([]HoldingView, 0, len(holdings)),
	}

	for _, holding := range holdings {
		currentPrice, ok := priced[holding.Asset.Symbol]
		if !ok {
			currentPrice = holding.AverageBuyPrice
		}
		marketValue := holding.Quantity.Mul(currentPrice)
		costBasis := holding.Quantity.Mul(holding.AverageBuyPrice)

		view.Holdings = append(view.Holdings, HoldingView{
			AssetID:         holding.AssetID,
			Symbol:          holding.Asset.Symbol,
			Name:            holding.Asset.Name,
			Quantity:        holding.Quantity,
			AverageBuyPrice: holding.AverageBuyPrice,
			CurrentPrice:    currentPrice,
			MarketValue:     marketValue,
			UnrealizedPL:    marketValue.Sub(costBasis),
			QuoteAvailable:  ok,
		})
		view.HoldingsValue = view.HoldingsValue.Add(marketValue)
	}

	view.TotalValue = view.CashBalance.Add(view.HoldingsValue)
	return view, nil
}

// HistoryFilter narrows a transaction history query. Zero values mean
// "no filter". Cursor is the ID of the last transaction from the previous
// page.
type HistoryFilter struct {
	AssetID uint
	Type    string
	From    *time.Time
	To      *time.Time
	Cursor  uint
	Limit   int
}

// HistoryPage is one page of executed transactions, most recent first.
type HistoryPage struct {
	Transactions []models.Transaction `json:"transactions"`
	NextCursor   uint                 `json:"next_cursor,omitempty"`
	HasMore      bool                 `json:"has_more"`
}

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 200
)

// GetTransactionHistory returns executed (non-pending) transactions for the
// profile, cursor-paginated, descending by execution time.
func (s *Service) GetTransactionHistory(userID string, filter HistoryFilter) (*HistoryPage, error) {
	if filter.Type != "" && filter.Type != models.TradeTypeBuy && filter.Type != models.TradeTypeSell {
		return nil, fmt.Errorf("%w: unknown trade type %q", ErrValidation, filter.Type)
	}
	if filter.From != nil && filter.To != nil && filter.From.After(*filter.To) {
		return nil, fmt.Errorf("%w: 'from' is after 'to'", ErrValidation)
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}

	profile, err := s.profileByUser(userID)
	if err != nil {
		return nil, err
	}

	query := s.db.Preload("Asset").
		Where("profile_id = ? AND pending = ?", profile.ID, false).
		Order("executed_at DESC, id DESC")

	if filter.AssetID != 0 {
		query = query.Where("asset_id = ?", filter.AssetID)
	}
	if filter.Type != "" {
		query = query.Where("type = ?", filter.Type)
	}
	if filter.From != nil {
		query = query.Where("executed_at >= ?", *filter.From)
	}
	if filter.To != nil {
		query = query.Where("executed_at <= ?", *filter.To)
	}

	if filter.Cursor != 0 {
		var after models.Transaction
		err := s.db.Where("id = ? AND profile_id = ?", filter.Cursor, profile.ID).First(&after).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: cursor %d", ErrValidation, filter.Cursor)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to resolve cursor: %w", err)
		}
		query = query.Where("executed_at < ? OR (executed_at = ? AND id < ?)",
			after.ExecutedAt, after.ExecutedAt, after.ID)
	}

	// Fetch one extra row to know whether another page exists.
	var transactions []models.Transaction
	if err := query.Limit(limit + 1).Find(&transactions).Error; err != nil {
		return nil, fmt.Errorf("failed to load transactions: %w", err)
	}

	page := &HistoryPage{}
	if len(transactions) > limit {
		page.HasMore = true
		transactions = transactions[:limit]
	}
	page.Transactions = transactions
	if page.HasMore && len(transactions) > 0 {
		page.NextCursor = transactions[len(transactions)-1].ID
	}
	return page, nil
}
