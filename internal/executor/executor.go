package executor

import (
	"context"
	"sync"
	"time"

	"github.com/opentracing/opentracing-go"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"coinbase_bot/internal/errdefs"
	"coinbase_bot/internal/models"
)

// Gateway — тонкий интерфейс биржи: разместить рыночный ордер, вернуть id.
// Реализации: подписанный REST-клиент и бумажный шлюз.
type Gateway interface {
	Buy(ctx context.Context, pair string, size, price decimal.Decimal) (string, error)
	Sell(ctx context.Context, pair string, size, price decimal.Decimal) (string, error)
}

// RiskChecker — внешняя риск-проверка; false = ордер не размещаем.
type RiskChecker interface {
	CheckOrderRisk(ctx context.Context, pair string, side models.Side, size, price decimal.Decimal) bool
}

// Executor — единственный писатель состояния позиций. Каждый ордер проходит
// через него: валидация, лимиты, риск-проверка, ретраи, обновление леджера.
type Executor struct {
	gw   Gateway
	risk RiskChecker // nil = без внешней проверки
	log  *zap.Logger

	retryAttempts int
	retryDelay    time.Duration
	orderTimeout  time.Duration

	mu        sync.Mutex
	positions map[string]*models.Position
	pairLocks map[string]*sync.Mutex
	history   []models.Order
}

type Config struct {
	RetryAttempts int
	RetryDelay    time.Duration
	OrderTimeout  time.Duration
}

func New(gw Gateway, risk RiskChecker, cfg Config, log *zap.Logger) *Executor {
	if cfg.RetryAttempts <= 0 {
		cfg.RetryAttempts = 3
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = time.Second
	}
	if cfg.OrderTimeout <= 0 {
		cfg.OrderTimeout = 10 * time.Second
	}
	return &Executor{
		gw:            gw,
		risk:          risk,
		log:           log.With(zap.String("component", "executor")),
		retryAttempts: cfg.RetryAttempts,
		retryDelay:    cfg.RetryDelay,
		orderTimeout:  cfg.OrderTimeout,
		positions:     make(map[string]*models.Position),
		pairLocks:     make(map[string]*sync.Mutex),
	}
}

// Validate — чистая проверка параметров, без побочных эффектов.
func Validate(side models.Side, size, price decimal.Decimal, pair string) error {
	if !side.Valid() {
		return errdefs.Validation("invalid order side: %q (must be buy or sell)", side)
	}
	if !size.IsPositive() {
		return errdefs.Validation("invalid order size: %s (must be positive)", size)
	}
	if !price.IsPositive() {
		return errdefs.Validation("invalid order price: %s (must be positive)", price)
	}
	if pair == "" {
		return errdefs.Validation("trading pair is required")
	}
	return nil
}

// ExecuteOrder: валидация -> лимит позиции -> риск-проверка -> биржа с
// ретраями -> обновление леджера. Валидационные и позиционные ошибки не
// ретраятся и до биржи не доходят.
func (e *Executor) ExecuteOrder(ctx context.Context, side models.Side, size, price decimal.Decimal, pair string) (*models.Order, error) {
	if err := Validate(side, size, price, pair); err != nil {
		return nil, err
	}

	span, ctx := opentracing.StartSpanFromContext(ctx, "executor.execute_order")
	span.SetTag("pair", pair)
	span.SetTag("side", string(side))
	defer span.Finish()

	// сериализуем исполнение по паре: инвариант средневзвешенной цены
	// требует единственного писателя на пару
	lock := e.pairLock(pair)
	lock.Lock()
	defer lock.Unlock()

	if side == models.SideSell {
		pos := e.GetPosition(pair)
		if size.GreaterThan(pos.Size) {
			return nil, errdefs.Position("insufficient position size for sell: have %s, want %s", pos.Size, size)
		}
	}

	if e.risk != nil && !e.risk.CheckOrderRisk(ctx, pair, side, size, price) {
		return nil, errdefs.Validation("order exceeds risk limits")
	}

	orderID, err := e.submitWithRetry(ctx, side, size, price, pair)
	if err != nil {
		return nil, err
	}
	if orderID == "" {
		orderID = models.OrderIDUnknown
	}

	e.applyFill(pair, side, size, price)

	order := models.Order{
		Status:    models.StatusFilled,
		OrderID:   orderID,
		Pair:      pair,
		Side:      side,
		Size:      size,
		Price:     price,
		Timestamp: time.Now(),
	}

	e.mu.Lock()
	e.history = append(e.history, order)
	e.mu.Unlock()

	e.log.Info("order filled",
		zap.String("pair", pair),
		zap.String("side", string(side)),
		zap.String("size", size.String()),
		zap.String("price", price.String()),
		zap.String("order_id", orderID),
	)
	return &order, nil
}

// submitWithRetry — до retryAttempts попыток с линейной задержкой
// retryDelay*attempt; ретраим только транспорт/биржу, каждая попытка под
// собственным таймаутом.
func (e *Executor) submitWithRetry(ctx context.Context, side models.Side, size, price decimal.Decimal, pair string) (string, error) {
	var lastErr error
	for attempt := 1; attempt <= e.retryAttempts; attempt++ {
		attemptCtx, cancel := context.WithTimeout(ctx, e.orderTimeout)
		var (
			orderID string
			err     error
		)
		if side == models.SideBuy {
			orderID, err = e.gw.Buy(attemptCtx, pair, size, price)
		} else {
			orderID, err = e.gw.Sell(attemptCtx, pair, size, price)
		}
		cancel()

		if err == nil {
			return orderID, nil
		}
		lastErr = err

		if !errdefs.Retryable(err) {
			e.log.Error("order failed with non-retryable error", zap.String("pair", pair), zap.Error(err))
			return "", &errdefs.OrderExecutionError{Attempts: attempt, Err: err}
		}
		if attempt < e.retryAttempts {
			delay := e.retryDelay * time.Duration(attempt)
			e.log.Warn("order attempt failed, retrying",
				zap.Int("attempt", attempt),
				zap.Duration("delay", delay),
				zap.Error(err),
			)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return "", &errdefs.OrderExecutionError{Attempts: attempt, Err: ctx.Err()}
			}
		}
	}
	e.log.Error("all order attempts failed", zap.Int("attempts", e.retryAttempts), zap.Error(lastErr))
	return "", &errdefs.OrderExecutionError{Attempts: e.retryAttempts, Err: lastErr}
}

// applyFill — средневзвешенная цена входа:
// buy:  entry' = (size*entry + qty*px) / (size+qty), первая покупка = px
// sell: размер уменьшается, entry не меняется; при нуле entry сбрасывается
func (e *Executor) applyFill(pair string, side models.Side, size, price decimal.Decimal) {
	e.mu.Lock()
	defer e.mu.Unlock()

	pos, ok := e.positions[pair]
	if !ok {
		pos = &models.Position{Pair: pair}
		e.positions[pair] = pos
	}

	if side == models.SideBuy {
		newSize := pos.Size.Add(size)
		if pos.Size.IsZero() {
			pos.EntryPrice = price
		} else {
			total := pos.Size.Mul(pos.EntryPrice).Add(size.Mul(price))
			pos.EntryPrice = total.Div(newSize)
		}
		pos.Size = newSize
	} else {
		pos.Size = pos.Size.Sub(size)
		if pos.Size.IsZero() {
			pos.EntryPrice = decimal.Zero
		}
	}
	pos.Updated = time.Now()
}

// GetPosition — чистое чтение; по неторгованной паре возвращает нулевую позицию.
func (e *Executor) GetPosition(pair string) models.Position {
	e.mu.Lock()
	defer e.mu.Unlock()
	if pos, ok := e.positions[pair]; ok {
		return *pos
	}
	return models.Position{Pair: pair}
}

// AdjustPosition доводит позицию до target одним ордером.
// delta == 0 — no-op, ни одного обращения к бирже.
func (e *Executor) AdjustPosition(ctx context.Context, pair string, targetSize, currentPrice decimal.Decimal) (*models.Order, error) {
	current := e.GetPosition(pair).Size
	delta := targetSize.Sub(current)
	if delta.IsZero() {
		return nil, nil
	}

	side := models.SideBuy
	if delta.IsNegative() {
		side = models.SideSell
	}
	return e.ExecuteOrder(ctx, side, delta.Abs(), currentPrice, pair)
}

// History — копия in-memory истории филов.
func (e *Executor) History() []models.Order {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]models.Order, len(e.history))
	copy(out, e.history)
	return out
}

func (e *Executor) pairLock(pair string) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()
	l, ok := e.pairLocks[pair]
	if !ok {
		l = &sync.Mutex{}
		e.pairLocks[pair] = l
	}
	return l
}
