package portfolio

import (
	"context"
	"errors"
	"testing"
	"time"

	"papertrade/internal/models"
	"papertrade/internal/quotes"

	"github.com/stretchr/testify/assert"
)

// fakeClock is a market.Clock with a fixed open/closed state.
type fakeClock struct {
	open bool
}

func (c fakeClock) Now() time.Time        { return time.Now() }
func (c fakeClock) IsOpen(time.Time) bool { return c.open }

func TestExecuteTrade_MarketClosed_QueuesPending(t *testing.T) {
	svc, _, db := setupTest(t)
	asset := seedAsset(t, db, "AAPL")
	profile := initProfile(t, svc, "alice")

	record, err := svc.ExecuteTrade(context.Background(), "alice", asset.ID, models.TradeTypeBuy, dec("10"), dec("50"), false)
	assert.NoError(t, err)
	assert.True(t, record.Pending)
	assert.Nil(t, record.ExecutedAt)

	// No ledger mutation until the order is replayed.
	db.Where("user_id = ?", "alice").First(profile)
	assertDecimal(t, "100000", profile.CashBalance)

	var holdings, snapshots int64
	db.Model(&models.Holding{}).Count(&holdings)
	db.Model(&models.Snapshot{}).Count(&snapshots)
	assert.EqualValues(t, 0, holdings)
	assert.EqualValues(t, 0, snapshots)

	var pending int64
	db.Model(&models.Transaction{}).Where("pending = ?", true).Count(&pending)
	assert.EqualValues(t, 1, pending)
}

func TestExecuteTrade_MarketClosed_BuyCheckedAgainstCash(t *testing.T) {
	svc, _, db := setupTest(t)
	asset := seedAsset(t, db, "AAPL")
	initProfile(t, svc, "alice")

	_, err := svc.ExecuteTrade(context.Background(), "alice", asset.ID, models.TradeTypeBuy, dec("100"), dec("2000"), false)
	assert.ErrorIs(t, err, ErrInsufficientFunds)

	var pending int64
	db.Model(&models.Transaction{}).Count(&pending)
	assert.EqualValues(t, 0, pending)
}

func TestProcessPendingOrders_ExecutesAtFreshQuote(t *testing.T) {
	svc, mockQuotes, db := setupTest(t)
	asset := seedAsset(t, db, "AAPL")
	profile := initProfile(t, svc, "alice")
	ctx := context.Background()

	// Order submitted while closed, at a requested price of 100.
	_, err := svc.ExecuteTrade(ctx, "alice", asset.ID, models.TradeTypeBuy, dec("10"), dec("100"), false)
	assert.NoError(t, err)

	// At replay the market quotes 80; the requested price is discarded.
	mockQuotes.On("RealtimeQuote", "AAPL").Return(&quotes.Quote{
		Symbol:       "AAPL",
		CurrentPrice: dec("80"),
		Timestamp:    time.Now(),
	}, nil)

	result, err := svc.ProcessPendingOrders(ctx, "alice")
	assert.NoError(t, err)
	assert.Equal(t, 1, result.Processed)
	assert.Equal(t, 0, result.Failed)
	assert.True(t, result.Results[0].Executed)
	assertDecimal(t, "80", result.Results[0].ExecutedPrice)

	var holding models.Holding
	assert.NoError(t, db.Where("profile_id = ?", profile.ID).First(&holding).Error)
	assertDecimal(t, "10", holding.Quantity)
	assertDecimal(t, "80", holding.AverageBuyPrice)

	db.Where("user_id = ?", "alice").First(profile)
	assertDecimal(t, "99200", profile.CashBalance)

	// The pending row is gone; one executed transaction remains.
	var pending, executed int64
	db.Model(&models.Transaction{}).Where("pending = ?", true).Count(&pending)
	db.Model(&models.Transaction{}).Where("pending = ?", false).Count(&executed)
	assert.EqualValues(t, 0, pending)
	assert.EqualValues(t, 1, executed)

	mockQuotes.AssertExpectations(t)
}

func TestProcessPendingOrders_FailedQuoteDoesNotAbortSweep(t *testing.T) {
	svc, mockQuotes, db := setupTest(t)
	appleAsset := seedAsset(t, db, "AAPL")
	brokenAsset := seedAsset(t, db, "BROKEN")
	initProfile(t, svc, "alice")
	ctx := context.Background()

	_, err := svc.ExecuteTrade(ctx, "alice", brokenAsset.ID, models.TradeTypeBuy, dec("1"), dec("10"), false)
	assert.NoError(t, err)
	_, err = svc.ExecuteTrade(ctx, "alice", appleAsset.ID, models.TradeTypeBuy, dec("2"), dec("10"), false)
	assert.NoError(t, err)

	mockQuotes.On("RealtimeQuote", "BROKEN").Return(nil, errors.New("provider down"))
	mockQuotes.On("RealtimeQuote", "AAPL").Return(&quotes.Quote{
		Symbol:       "AAPL",
		CurrentPrice: dec("12"),
	}, nil)

	result, err := svc.ProcessPendingOrders(ctx, "alice")
	assert.NoError(t, err)
	assert.Equal(t, 1, result.Processed)
	assert.Equal(t, 1, result.Failed)

	// The failed order stays pending for the next sweep.
	var pending []models.Transaction
	db.Where("pending = ?", true).Find(&pending)
	assert.Len(t, pending, 1)
	assert.Equal(t, brokenAsset.ID, pending[0].AssetID)
}

func TestGetPendingOrders_MostRecentFirst(t *testing.T) {
	svc, _, db := setupTest(t)
	apple := seedAsset(t, db, "AAPL")
	msft := seedAsset(t, db, "MSFT")
	initProfile(t, svc, "alice")
	ctx := context.Background()

	first, err := svc.ExecuteTrade(ctx, "alice", apple.ID, models.TradeTypeBuy, dec("1"), dec("10"), false)
	assert.NoError(t, err)
	time.Sleep(5 * time.Millisecond)
	second, err := svc.ExecuteTrade(ctx, "alice", msft.ID, models.TradeTypeBuy, dec("1"), dec("10"), false)
	assert.NoError(t, err)

	orders, err := svc.GetPendingOrders("alice")
	assert.NoError(t, err)
	assert.Len(t, orders, 2)
	assert.Equal(t, second.ID, orders[0].ID)
	assert.Equal(t, first.ID, orders[1].ID)
}

func TestCancelPendingOrder(t *testing.T) {
	svc, _, db := setupTest(t)
	asset := seedAsset(t, db, "AAPL")
	initProfile(t, svc, "alice")

	record, err := svc.ExecuteTrade(context.Background(), "alice", asset.ID, models.TradeTypeBuy, dec("1"), dec("10"), false)
	assert.NoError(t, err)

	assert.NoError(t, svc.CancelPendingOrder("alice", record.ID))

	// The row is gone entirely, not retained.
	var count int64
	db.Unscoped().Model(&models.Transaction{}).Count(&count)
	assert.EqualValues(t, 0, count)
}

func TestCancelPendingOrder_NotFoundCases(t *testing.T) {
	svc, _, db := setupTest(t)
	asset := seedAsset(t, db, "AAPL")
	initProfile(t, svc, "alice")
	initProfile(t, svc, "bob")
	ctx := context.Background()

	pending, err := svc.ExecuteTrade(ctx, "alice", asset.ID, models.TradeTypeBuy, dec("1"), dec("10"), false)
	assert.NoError(t, err)
	executed, err := svc.ExecuteTrade(ctx, "alice", asset.ID, models.TradeTypeBuy, dec("1"), dec("10"), true)
	assert.NoError(t, err)

	// Unknown order.
	assert.ErrorIs(t, svc.CancelPendingOrder("alice", 9999), ErrNotFound)
	// Executed orders cannot be cancelled.
	assert.ErrorIs(t, svc.CancelPendingOrder("alice", executed.ID), ErrNotFound)
	// Another user's order is invisible.
	assert.ErrorIs(t, svc.CancelPendingOrder("bob", pending.ID), ErrNotFound)
}

func TestSweepAllPending_SkipsClosedMarket(t *testing.T) {
	svc, mockQuotes, db := setupTest(t)
	asset := seedAsset(t, db, "AAPL")
	initProfile(t, svc, "alice")
	ctx := context.Background()

	_, err := svc.ExecuteTrade(ctx, "alice", asset.ID, models.TradeTypeBuy, dec("1"), dec("10"), false)
	assert.NoError(t, err)

	assert.NoError(t, svc.SweepAllPending(ctx, fakeClock{open: false}))

	// Nothing was fetched or executed.
	mockQuotes.AssertNotCalled(t, "RealtimeQuote")
	var pending int64
	db.Model(&models.Transaction{}).Where("pending = ?", true).Count(&pending)
	assert.EqualValues(t, 1, pending)
}

func TestSweepAllPending_ProcessesAllProfiles(t *testing.T) {
	svc, mockQuotes, db := setupTest(t)
	asset := seedAsset(t, db, "AAPL")
	initProfile(t, svc, "alice")
	initProfile(t, svc, "bob")
	ctx := context.Background()

	_, err := svc.ExecuteTrade(ctx, "alice", asset.ID, models.TradeTypeBuy, dec("1"), dec("10"), false)
	assert.NoError(t, err)
	_, err = svc.ExecuteTrade(ctx, "bob", asset.ID, models.TradeTypeBuy, dec("2"), dec("10"), false)
	assert.NoError(t, err)

	mockQuotes.On("RealtimeQuote", "AAPL").Return(&quotes.Quote{
		Symbol:       "AAPL",
		CurrentPrice: dec("11"),
	}, nil)

	assert.NoError(t, svc.SweepAllPending(ctx, fakeClock{open: true}))

	var pending int64
	db.Model(&models.Transaction{}).Where("pending = ?", true).Count(&pending)
	assert.EqualValues(t, 0, pending)

	var executed int64
	db.Model(&models.Transaction{}).Where("pending = ?", false).Count(&executed)
	assert.EqualValues(t, 2, executed)
}
