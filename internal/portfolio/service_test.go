package portfolio

import (
	"context"
	"fmt"
	"testing"

	"papertrade/internal/database"
	"papertrade/internal/models"
	"papertrade/internal/quotes"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// MockProvider is a mock implementation of the quotes.Provider interface.
type MockProvider struct {
	mock.Mock
}

func (m *MockProvider) Name() string { return "mock" }

func (m *MockProvider) RealtimeQuote(ctx context.Context, symbol string) (*quotes.Quote, error) {
	args := m.Called(symbol)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*quotes.Quote), args.Error(1)
}

func (m *MockProvider) BatchQuotes(ctx context.Context, symbols []string) (map[string]quotes.Quote, error) {
	args := m.Called(symbols)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]quotes.Quote), args.Error(1)
}

// setupTest creates a service backed by a fresh in-memory database and a
// mock quote provider.
func setupTest(t *testing.T) (*Service, *MockProvider, *gorm.DB) {
	// A named shared-cache memory DB keeps all pooled connections on the
	// same database while staying isolated per test.
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	assert.NoError(t, err)

	err = database.Migrate(db)
	assert.NoError(t, err)

	mockQuotes := new(MockProvider)
	svc := NewService(db, mockQuotes, zap.NewNop(), decimal.NewFromInt(100000))

	return svc, mockQuotes, db
}

func seedAsset(t *testing.T, db *gorm.DB, symbol string) models.Asset {
	asset := models.Asset{Symbol: symbol, Name: symbol, Exchange: "TEST", Currency: "USD", Type: models.AssetTypeStock}
	assert.NoError(t, db.Create(&asset).Error)
	return asset
}

func initProfile(t *testing.T, svc *Service, userID string) *models.Profile {
	profile, err := svc.InitializeProfile(userID)
	assert.NoError(t, err)
	return profile
}

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func assertDecimal(t *testing.T, expected string, actual decimal.Decimal) {
	t.Helper()
	assert.True(t, dec(expected).Equal(actual), "expected %s, got %s", expected, actual)
}

func TestInitializeProfile_Idempotent(t *testing.T) {
	svc, _, db := setupTest(t)

	first, err := svc.InitializeProfile("alice")
	assert.NoError(t, err)
	assertDecimal(t, "100000", first.CashBalance)

	second, err := svc.InitializeProfile("alice")
	assert.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	var count int64
	db.Model(&models.Profile{}).Count(&count)
	assert.EqualValues(t, 1, count)
}

func TestInitializeProfile_RequiresUserID(t *testing.T) {
	svc, _, _ := setupTest(t)

	_, err := svc.InitializeProfile("")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestExecuteTrade_BuyCreatesHolding(t *testing.T) {
	svc, _, db := setupTest(t)
	asset := seedAsset(t, db, "AAPL")
	initProfile(t, svc, "alice")

	record, err := svc.ExecuteTrade(context.Background(), "alice", asset.ID, models.TradeTypeBuy, dec("10"), dec("50"), true)
	assert.NoError(t, err)
	assert.False(t, record.Pending)
	assert.NotNil(t, record.ExecutedAt)

	var profile models.Profile
	db.Where("user_id = ?", "alice").First(&profile)
	assertDecimal(t, "99500", profile.CashBalance)

	var holding models.Holding
	assert.NoError(t, db.Where("profile_id = ? AND asset_id = ?", profile.ID, asset.ID).First(&holding).Error)
	assertDecimal(t, "10", holding.Quantity)
	assertDecimal(t, "50", holding.AverageBuyPrice)
}

// The worked ledger scenario: two buys at different prices average to 60,
// a partial sell leaves the average untouched, and a full liquidation
// removes the holding row.
func TestExecuteTrade_LedgerScenario(t *testing.T) {
	svc, _, db := setupTest(t)
	asset := seedAsset(t, db, "AAPL")
	profile := initProfile(t, svc, "alice")
	ctx := context.Background()

	_, err := svc.ExecuteTrade(ctx, "alice", asset.ID, models.TradeTypeBuy, dec("10"), dec("50"), true)
	assert.NoError(t, err)
	_, err = svc.ExecuteTrade(ctx, "alice", asset.ID, models.TradeTypeBuy, dec("10"), dec("70"), true)
	assert.NoError(t, err)

	var holding models.Holding
	db.Where("profile_id = ?", profile.ID).First(&holding)
	assertDecimal(t, "20", holding.Quantity)
	assertDecimal(t, "60", holding.AverageBuyPrice)

	db.Where("user_id = ?", "alice").First(profile)
	assertDecimal(t, "98800", profile.CashBalance)

	_, err = svc.ExecuteTrade(ctx, "alice", asset.ID, models.TradeTypeSell, dec("5"), dec("80"), true)
	assert.NoError(t, err)

	db.Where("profile_id = ?", profile.ID).First(&holding)
	assertDecimal(t, "15", holding.Quantity)
	assertDecimal(t, "60", holding.AverageBuyPrice) // untouched on SELL

	db.Where("user_id = ?", "alice").First(profile)
	assertDecimal(t, "99200", profile.CashBalance)

	_, err = svc.ExecuteTrade(ctx, "alice", asset.ID, models.TradeTypeSell, dec("15"), dec("60"), true)
	assert.NoError(t, err)

	db.Where("user_id = ?", "alice").First(profile)
	assertDecimal(t, "100100", profile.CashBalance)

	var count int64
	db.Model(&models.Holding{}).Where("profile_id = ?", profile.ID).Count(&count)
	assert.EqualValues(t, 0, count, "emptied holding must be deleted")
}

func TestExecuteTrade_WeightedAverageAcrossManyBuys(t *testing.T) {
	svc, _, db := setupTest(t)
	asset := seedAsset(t, db, "AAPL")
	profile := initProfile(t, svc, "alice")
	ctx := context.Background()

	buys := []struct{ quantity, price string }{
		{"3", "10.50"},
		{"7", "11.25"},
		{"1.5", "9.80"},
		{"12", "13.13"},
		{"0.25", "8.00"},
	}

	totalQuantity := decimal.Zero
	totalCost := decimal.Zero
	for _, buy := range buys {
		_, err := svc.ExecuteTrade(ctx, "alice", asset.ID, models.TradeTypeBuy, dec(buy.quantity), dec(buy.price), true)
		assert.NoError(t, err)
		totalQuantity = totalQuantity.Add(dec(buy.quantity))
		totalCost = totalCost.Add(dec(buy.quantity).Mul(dec(buy.price)))
	}

	var holding models.Holding
	db.Where("profile_id = ?", profile.ID).First(&holding)
	assert.True(t, totalQuantity.Equal(holding.Quantity))

	wantAverage := totalCost.Div(totalQuantity)
	diff := wantAverage.Sub(holding.AverageBuyPrice).Abs()
	assert.True(t, diff.LessThan(dec("0.00000001")),
		"average %s deviates from weighted mean %s", holding.AverageBuyPrice, wantAverage)
}

func TestExecuteTrade_InsufficientFunds_NoPartialState(t *testing.T) {
	svc, _, db := setupTest(t)
	asset := seedAsset(t, db, "AAPL")
	profile := initProfile(t, svc, "alice")

	_, err := svc.ExecuteTrade(context.Background(), "alice", asset.ID, models.TradeTypeBuy, dec("100"), dec("2000"), true)
	assert.ErrorIs(t, err, ErrInsufficientFunds)

	db.Where("user_id = ?", "alice").First(profile)
	assertDecimal(t, "100000", profile.CashBalance)

	var holdings, transactions, snapshots int64
	db.Model(&models.Holding{}).Count(&holdings)
	db.Model(&models.Transaction{}).Count(&transactions)
	db.Model(&models.Snapshot{}).Count(&snapshots)
	assert.EqualValues(t, 0, holdings)
	assert.EqualValues(t, 0, transactions)
	assert.EqualValues(t, 0, snapshots)
}

func TestExecuteTrade_SellWithoutHolding(t *testing.T) {
	svc, _, db := setupTest(t)
	asset := seedAsset(t, db, "AAPL")
	initProfile(t, svc, "alice")

	_, err := svc.ExecuteTrade(context.Background(), "alice", asset.ID, models.TradeTypeSell, dec("1"), dec("50"), true)
	assert.ErrorIs(t, err, ErrNoHoldings)
}

func TestExecuteTrade_SellExceedingQuantity_NoStateChange(t *testing.T) {
	svc, _, db := setupTest(t)
	asset := seedAsset(t, db, "AAPL")
	profile := initProfile(t, svc, "alice")
	ctx := context.Background()

	_, err := svc.ExecuteTrade(ctx, "alice", asset.ID, models.TradeTypeBuy, dec("10"), dec("50"), true)
	assert.NoError(t, err)

	_, err = svc.ExecuteTrade(ctx, "alice", asset.ID, models.TradeTypeSell, dec("11"), dec("50"), true)
	assert.ErrorIs(t, err, ErrInsufficientQuantity)

	var holding models.Holding
	db.Where("profile_id = ?", profile.ID).First(&holding)
	assertDecimal(t, "10", holding.Quantity)

	db.Where("user_id = ?", "alice").First(profile)
	assertDecimal(t, "99500", profile.CashBalance)

	var transactions int64
	db.Model(&models.Transaction{}).Count(&transactions)
	assert.EqualValues(t, 1, transactions, "only the BUY must be recorded")
}

func TestExecuteTrade_Validation(t *testing.T) {
	svc, _, db := setupTest(t)
	asset := seedAsset(t, db, "AAPL")
	initProfile(t, svc, "alice")
	ctx := context.Background()

	_, err := svc.ExecuteTrade(ctx, "alice", asset.ID, "SHORT", dec("1"), dec("50"), true)
	assert.ErrorIs(t, err, ErrValidation)

	_, err = svc.ExecuteTrade(ctx, "alice", asset.ID, models.TradeTypeBuy, dec("0"), dec("50"), true)
	assert.ErrorIs(t, err, ErrValidation)

	_, err = svc.ExecuteTrade(ctx, "alice", asset.ID, models.TradeTypeBuy, dec("1"), dec("-50"), true)
	assert.ErrorIs(t, err, ErrValidation)

	var transactions int64
	db.Model(&models.Transaction{}).Count(&transactions)
	assert.EqualValues(t, 0, transactions)
}

func TestExecuteTrade_UnknownAsset(t *testing.T) {
	svc, _, _ := setupTest(t)
	initProfile(t, svc, "alice")

	_, err := svc.ExecuteTrade(context.Background(), "alice", 999, models.TradeTypeBuy, dec("1"), dec("50"), true)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestExecuteTrade_UnknownProfile(t *testing.T) {
	svc, _, db := setupTest(t)
	asset := seedAsset(t, db, "AAPL")

	_, err := svc.ExecuteTrade(context.Background(), "nobody", asset.ID, models.TradeTypeBuy, dec("1"), dec("50"), true)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestExecuteTrade_SnapshotUpsertedPerDay(t *testing.T) {
	svc, _, db := setupTest(t)
	asset := seedAsset(t, db, "AAPL")
	profile := initProfile(t, svc, "alice")
	ctx := context.Background()

	_, err := svc.ExecuteTrade(ctx, "alice", asset.ID, models.TradeTypeBuy, dec("10"), dec("50"), true)
	assert.NoError(t, err)
	_, err = svc.ExecuteTrade(ctx, "alice", asset.ID, models.TradeTypeBuy, dec("10"), dec("70"), true)
	assert.NoError(t, err)

	var snapshots []models.Snapshot
	db.Where("profile_id = ?", profile.ID).Find(&snapshots)
	assert.Len(t, snapshots, 1, "same-day trades must share one snapshot row")

	// After the second trade: cash 98800, 20 shares marked at the 70 trade
	// price.
	assertDecimal(t, "98800", snapshots[0].CashValue)
	assertDecimal(t, "1400", snapshots[0].HoldingsValue)
	assertDecimal(t, "100200", snapshots[0].TotalValue)
}

func TestResetProfile(t *testing.T) {
	svc, mockQuotes, db := setupTest(t)
	asset := seedAsset(t, db, "AAPL")
	profile := initProfile(t, svc, "alice")
	ctx := context.Background()

	_, err := svc.ExecuteTrade(ctx, "alice", asset.ID, models.TradeTypeBuy, dec("10"), dec("50"), true)
	assert.NoError(t, err)
	_, err = svc.AddToWatchlist("alice", asset.ID, nil, false)
	assert.NoError(t, err)

	reset, err := svc.ResetProfile("alice")
	assert.NoError(t, err)
	assertDecimal(t, "100000", reset.CashBalance)

	mockQuotes.On("BatchQuotes", mock.Anything).Return(map[string]quotes.Quote{}, nil).Maybe()
	view, err := svc.GetProfile(ctx, "alice")
	assert.NoError(t, err)
	assertDecimal(t, "100000", view.CashBalance)
	assert.Empty(t, view.Holdings)

	var transactions, watchlist, snapshots int64
	db.Model(&models.Transaction{}).Where("profile_id = ?", profile.ID).Count(&transactions)
	db.Model(&models.WatchlistItem{}).Where("profile_id = ?", profile.ID).Count(&watchlist)
	db.Model(&models.Snapshot{}).Where("profile_id = ?", profile.ID).Count(&snapshots)
	assert.EqualValues(t, 0, transactions)
	assert.EqualValues(t, 0, watchlist)
	assert.EqualValues(t, 0, snapshots)
}

func TestResetProfile_UnknownProfile(t *testing.T) {
	svc, _, _ := setupTest(t)

	_, err := svc.ResetProfile("nobody")
	assert.ErrorIs(t, err, ErrNotFound)
}
