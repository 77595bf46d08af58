package executor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"coinbase_bot/internal/errdefs"
	"coinbase_bot/internal/models"
)

type fakeGateway struct {
	mu    sync.Mutex
	calls int
	err   error
	id    string
}

func (g *fakeGateway) Buy(ctx context.Context, pair string, size, price decimal.Decimal) (string, error) {
	return g.place()
}

func (g *fakeGateway) Sell(ctx context.Context, pair string, size, price decimal.Decimal) (string, error) {
	return g.place()
}

func (g *fakeGateway) place() (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	if g.err != nil {
		return "", g.err
	}
	if g.id == "" {
		return "test-order", nil
	}
	return g.id, nil
}

func (g *fakeGateway) callCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

type rejectAllRisk struct{}

func (rejectAllRisk) CheckOrderRisk(ctx context.Context, pair string, side models.Side, size, price decimal.Decimal) bool {
	return false
}

func newTestExecutor(gw Gateway, risk RiskChecker) *Executor {
	return New(gw, risk, Config{
		RetryAttempts: 3,
		RetryDelay:    time.Millisecond,
		OrderTimeout:  time.Second,
	}, zap.NewNop())
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestExecuteOrder_WeightedAverageEntry(t *testing.T) {
	gw := &fakeGateway{}
	ex := newTestExecutor(gw, nil)
	ctx := context.Background()

	_, err := ex.ExecuteOrder(ctx, models.SideBuy, dec("2.0"), dec("50000"), "BTC-USD")
	require.NoError(t, err)
	_, err = ex.ExecuteOrder(ctx, models.SideBuy, dec("1.0"), dec("55000"), "BTC-USD")
	require.NoError(t, err)

	pos := ex.GetPosition("BTC-USD")
	assert.True(t, pos.Size.Equal(dec("3.0")), "size = %s", pos.Size)
	// (2*50000 + 1*55000) / 3
	want := dec("155000").Div(dec("3"))
	assert.True(t, pos.EntryPrice.Equal(want), "entry = %s", pos.EntryPrice)
	assert.Equal(t, "51666.67", pos.EntryPrice.StringFixed(2))
}

func TestExecuteOrder_PartialSellKeepsEntry(t *testing.T) {
	gw := &fakeGateway{}
	ex := newTestExecutor(gw, nil)
	ctx := context.Background()

	_, err := ex.ExecuteOrder(ctx, models.SideBuy, dec("2.0"), dec("50000"), "BTC-USD")
	require.NoError(t, err)
	_, err = ex.ExecuteOrder(ctx, models.SideBuy, dec("1.0"), dec("55000"), "BTC-USD")
	require.NoError(t, err)
	entryBefore := ex.GetPosition("BTC-USD").EntryPrice

	_, err = ex.ExecuteOrder(ctx, models.SideSell, dec("1.5"), dec("60000"), "BTC-USD")
	require.NoError(t, err)

	pos := ex.GetPosition("BTC-USD")
	assert.True(t, pos.Size.Equal(dec("1.5")))
	assert.True(t, pos.EntryPrice.Equal(entryBefore), "entry must not change on partial sell")
}

func TestExecuteOrder_FullSellResetsEntry(t *testing.T) {
	gw := &fakeGateway{}
	ex := newTestExecutor(gw, nil)
	ctx := context.Background()

	_, err := ex.ExecuteOrder(ctx, models.SideBuy, dec("1.5"), dec("51000"), "BTC-USD")
	require.NoError(t, err)
	_, err = ex.ExecuteOrder(ctx, models.SideSell, dec("1.5"), dec("65000"), "BTC-USD")
	require.NoError(t, err)

	pos := ex.GetPosition("BTC-USD")
	assert.True(t, pos.Size.IsZero())
	assert.True(t, pos.EntryPrice.IsZero(), "entry must reset to zero when flat")
}

func TestExecuteOrder_NoShortSelling(t *testing.T) {
	gw := &fakeGateway{}
	ex := newTestExecutor(gw, nil)
	ctx := context.Background()

	_, err := ex.ExecuteOrder(ctx, models.SideBuy, dec("1.0"), dec("50000"), "BTC-USD")
	require.NoError(t, err)
	callsAfterBuy := gw.callCount()

	_, err = ex.ExecuteOrder(ctx, models.SideSell, dec("2.0"), dec("50000"), "BTC-USD")
	require.Error(t, err)

	var perr *errdefs.PositionError
	assert.ErrorAs(t, err, &perr)
	assert.Equal(t, callsAfterBuy, gw.callCount(), "gateway must not be called")
}

func TestExecuteOrder_RetryBound(t *testing.T) {
	gw := &fakeGateway{err: errdefs.Exchange(nil, "exchange down")}
	ex := newTestExecutor(gw, nil)

	_, err := ex.ExecuteOrder(context.Background(), models.SideBuy, dec("1.0"), dec("50000"), "BTC-USD")
	require.Error(t, err)

	var oerr *errdefs.OrderExecutionError
	require.ErrorAs(t, err, &oerr)
	assert.Equal(t, 3, oerr.Attempts)
	assert.Equal(t, 3, gw.callCount(), "exactly retry_attempts gateway calls")
}

func TestExecuteOrder_NonRetryableFailsFast(t *testing.T) {
	gw := &fakeGateway{err: errors.New("weird internal failure")}
	ex := newTestExecutor(gw, nil)

	_, err := ex.ExecuteOrder(context.Background(), models.SideBuy, dec("1.0"), dec("50000"), "BTC-USD")
	require.Error(t, err)

	var oerr *errdefs.OrderExecutionError
	require.ErrorAs(t, err, &oerr)
	assert.Equal(t, 1, gw.callCount(), "non-retryable errors must not be retried")
}

func TestExecuteOrder_ValidationShortCircuits(t *testing.T) {
	gw := &fakeGateway{}
	ex := newTestExecutor(gw, nil)
	ctx := context.Background()

	cases := []struct {
		name  string
		side  models.Side
		size  decimal.Decimal
		price decimal.Decimal
		pair  string
	}{
		{"bad side", models.Side("hold"), dec("1"), dec("1"), "BTC-USD"},
		{"zero size", models.SideBuy, dec("0"), dec("1"), "BTC-USD"},
		{"negative size", models.SideBuy, dec("-1"), dec("1"), "BTC-USD"},
		{"zero price", models.SideBuy, dec("1"), dec("0"), "BTC-USD"},
		{"empty pair", models.SideBuy, dec("1"), dec("1"), ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ex.ExecuteOrder(ctx, tc.side, tc.size, tc.price, tc.pair)
			require.Error(t, err)
			var verr *errdefs.ValidationError
			assert.ErrorAs(t, err, &verr)
		})
	}
	assert.Equal(t, 0, gw.callCount(), "invalid params must never reach the gateway")
}

func TestExecuteOrder_RiskRejection(t *testing.T) {
	gw := &fakeGateway{}
	ex := newTestExecutor(gw, rejectAllRisk{})

	_, err := ex.ExecuteOrder(context.Background(), models.SideBuy, dec("1.0"), dec("50000"), "BTC-USD")
	require.Error(t, err)

	var verr *errdefs.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Msg, "risk")
	assert.Equal(t, 0, gw.callCount())
}

func TestAdjustPosition_NoopWhenAtTarget(t *testing.T) {
	gw := &fakeGateway{}
	ex := newTestExecutor(gw, nil)
	ctx := context.Background()

	_, err := ex.ExecuteOrder(ctx, models.SideBuy, dec("1.0"), dec("50000"), "BTC-USD")
	require.NoError(t, err)
	calls := gw.callCount()

	order, err := ex.AdjustPosition(ctx, "BTC-USD", dec("1.0"), dec("50000"))
	require.NoError(t, err)
	assert.Nil(t, order)
	assert.Equal(t, calls, gw.callCount(), "no-op adjustment must not call the gateway")
}

func TestAdjustPosition_BuysAndSellsDelta(t *testing.T) {
	gw := &fakeGateway{}
	ex := newTestExecutor(gw, nil)
	ctx := context.Background()

	order, err := ex.AdjustPosition(ctx, "ETH-USD", dec("2.0"), dec("3000"))
	require.NoError(t, err)
	require.NotNil(t, order)
	assert.Equal(t, models.SideBuy, order.Side)
	assert.True(t, order.Size.Equal(dec("2.0")))

	order, err = ex.AdjustPosition(ctx, "ETH-USD", dec("0.5"), dec("3100"))
	require.NoError(t, err)
	require.NotNil(t, order)
	assert.Equal(t, models.SideSell, order.Side)
	assert.True(t, order.Size.Equal(dec("1.5")))

	pos := ex.GetPosition("ETH-USD")
	assert.True(t, pos.Size.Equal(dec("0.5")))
}

func TestGetPosition_UntradedPairIsZero(t *testing.T) {
	ex := newTestExecutor(&fakeGateway{}, nil)
	pos := ex.GetPosition("XRP-USD")
	assert.Equal(t, "XRP-USD", pos.Pair)
	assert.True(t, pos.Size.IsZero())
	assert.True(t, pos.EntryPrice.IsZero())
}

func TestExecuteOrder_HistoryAndOrderFields(t *testing.T) {
	gw := &fakeGateway{id: "cb-42"}
	ex := newTestExecutor(gw, nil)

	order, err := ex.ExecuteOrder(context.Background(), models.SideBuy, dec("1.0"), dec("50000"), "BTC-USD")
	require.NoError(t, err)

	assert.Equal(t, models.StatusFilled, order.Status)
	assert.Equal(t, "cb-42", order.OrderID)
	assert.Equal(t, "BTC-USD", order.Pair)
	assert.False(t, order.Timestamp.IsZero())

	hist := ex.History()
	require.Len(t, hist, 1)
	assert.Equal(t, "cb-42", hist[0].OrderID)
}

func TestExecuteOrder_SerializesPerPair(t *testing.T) {
	gw := &fakeGateway{}
	ex := newTestExecutor(gw, nil)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := ex.ExecuteOrder(ctx, models.SideBuy, dec("1.0"), dec("100"), "BTC-USD")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	pos := ex.GetPosition("BTC-USD")
	assert.True(t, pos.Size.Equal(dec("20")), "size = %s", pos.Size)
	assert.True(t, pos.EntryPrice.Equal(dec("100")))
}
