package runner

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"coinbase_bot/internal/models"
	"coinbase_bot/internal/modules/config"
	healthsvc "coinbase_bot/internal/modules/health/service"
	"coinbase_bot/internal/notify"
	"coinbase_bot/internal/strategy"
)

// OrderExecutor — единственная точка исполнения сигналов.
type OrderExecutor interface {
	ExecuteOrder(ctx context.Context, side models.Side, size, price decimal.Decimal, pair string) (*models.Order, error)
	AdjustPosition(ctx context.Context, pair string, targetSize, currentPrice decimal.Decimal) (*models.Order, error)
	GetPosition(pair string) models.Position
}

// PriceSource — что раннер читает у стрим-клиента.
type PriceSource interface {
	GetCurrentPrice(ctx context.Context, pair string) (float64, error)
}

// Stream — полный цикл стрим-соединения; реконнект-политика здесь, у раннера.
type Stream interface {
	Run(ctx context.Context) error
}

// Runner гоняет стратегии по всем парам, исполняет сигналы через executor,
// ведёт дневную статистику и дневной kill switch.
type Runner struct {
	ctx    context.Context
	cancel context.CancelFunc

	cfg     *config.Config
	ex      OrderExecutor
	prices  PriceSource
	stream  Stream
	engines []strategy.Engine
	n       notify.Notifier
	state   *healthsvc.State
	log     *zap.Logger

	running  atomic.Bool
	stopOnce sync.Once
	wg       sync.WaitGroup

	mu    sync.Mutex
	stats DailyStats
}

func New(
	cfg *config.Config,
	ex OrderExecutor,
	prices PriceSource,
	stream Stream,
	engines []strategy.Engine,
	n notify.Notifier,
	state *healthsvc.State,
	log *zap.Logger,
) *Runner {
	return &Runner{
		cfg:     cfg,
		ex:      ex,
		prices:  prices,
		stream:  stream,
		engines: engines,
		n:       n,
		state:   state,
		log:     log.With(zap.String("component", "runner")),
		stats: DailyStats{
			Volume:    decimal.Zero,
			PnL:       decimal.Zero,
			LastReset: time.Now(),
		},
	}
}

// Start поднимает supervision стрима и торговый цикл.
func (r *Runner) Start(parent context.Context) {
	r.ctx, r.cancel = context.WithCancel(parent)
	r.running.Store(true)
	r.state.SetTrading(true)
	r.state.SetReady(true)

	r.wg.Add(2)
	go r.superviseStream(r.ctx)
	go r.tradingLoop(r.ctx)

	r.n.Sendf("🚀 бот запущен: %d пар, paper=%v", len(r.cfg.TradingPairs), r.cfg.PaperTrading)
}

// Stop гасит циклы; при flatten_on_shutdown доводит все позиции до нуля.
// Идемпотентный: повторный вызов ничего не делает. Ошибки на закрытии
// отдельной пары логируем и идём дальше: shutdown всегда доводим до конца.
func (r *Runner) Stop() {
	r.stopOnce.Do(r.stop)
}

func (r *Runner) stop() {
	r.running.Store(false)
	r.state.SetTrading(false)
	r.state.SetReady(false)
	if r.cancel != nil {
		r.cancel()
	}
	r.wg.Wait()

	if r.cfg.Runner.FlattenOnShutdown {
		r.flattenAll()
	}
	r.n.Send("⏹ бот остановлен")
}

func (r *Runner) flattenAll() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	for _, pair := range r.cfg.TradingPairs {
		pos := r.ex.GetPosition(pair)
		if pos.Flat() {
			continue
		}

		price, err := r.prices.GetCurrentPrice(ctx, pair)
		if err != nil {
			// цены нет — закрываем по последней цене входа, лучше чем держать
			r.log.Error("no price for shutdown flatten, using entry",
				zap.String("pair", pair), zap.Error(err))
			price = pos.EntryPrice.InexactFloat64()
		}

		if _, err := r.ex.AdjustPosition(ctx, pair, decimal.Zero, decimal.NewFromFloat(price)); err != nil {
			r.log.Error("failed to flatten position", zap.String("pair", pair), zap.Error(err))
			continue
		}
		r.log.Info("position flattened on shutdown", zap.String("pair", pair))
	}
}

// superviseStream перезапускает connect->auth->subscribe->receive с
// линейным бэкоффом: стрим-клиент сам не реконнектится.
func (r *Runner) superviseStream(ctx context.Context) {
	defer r.wg.Done()

	attempt := 0
	for {
		if ctx.Err() != nil {
			return
		}

		// флаг ws_connected ведёт сам стрим-клиент по факту транспорта
		err := r.stream.Run(ctx)
		if ctx.Err() != nil {
			return
		}

		attempt++
		delay := time.Duration(attempt) * time.Second
		if delay > r.cfg.Runner.ErrorBackoff.Duration {
			delay = r.cfg.Runner.ErrorBackoff.Duration
			attempt = 0
		}
		r.log.Error("market data stream stopped, reconnecting",
			zap.Duration("delay", delay), zap.Error(err))

		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
	}
}

// tradingLoop — по всем парам обе стратегии, пауза interval; любая ошибка
// итерации логируется и даёт длинный бэкофф, процесс не умирает.
func (r *Runner) tradingLoop(ctx context.Context) {
	defer r.wg.Done()
	r.log.Info("trading loop started", zap.Strings("pairs", r.cfg.TradingPairs))

	for r.running.Load() {
		delay := r.cfg.Runner.Interval.Duration
		if err := r.iterate(ctx); err != nil {
			r.log.Error("trading loop iteration failed", zap.Error(err))
			delay = r.cfg.Runner.ErrorBackoff.Duration
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
	}
}

func (r *Runner) iterate(ctx context.Context) error {
	for _, pair := range r.cfg.TradingPairs {
		if !r.running.Load() {
			return nil
		}
		if err := r.evaluatePair(ctx, pair); err != nil {
			return err
		}
	}
	return nil
}

func (r *Runner) evaluatePair(ctx context.Context, pair string) error {
	price, err := r.prices.GetCurrentPrice(ctx, pair)
	if err != nil {
		return err
	}
	r.state.TouchTick(time.Now())

	// стоп-лосс раньше стратегий: защита позиции важнее нового сигнала
	if closed, err := r.checkStopLoss(ctx, pair, price); err != nil || closed {
		return err
	}

	for _, eng := range r.engines {
		sig := eng.OnPrice(pair, price)
		if sig.Side == models.SideNone {
			continue
		}
		r.log.Info("strategy signal",
			zap.String("pair", pair),
			zap.String("side", string(sig.Side)),
			zap.String("strategy", string(sig.Strategy)),
			zap.String("reason", sig.Reason),
		)
		r.executeSignal(ctx, sig)
		if !r.running.Load() {
			return nil
		}
	}
	return nil
}

// checkStopLoss закрывает позицию, когда цена ушла ниже entry*(1-stop_loss_pct).
func (r *Runner) checkStopLoss(ctx context.Context, pair string, price float64) (bool, error) {
	if r.cfg.Risk.StopLossPct <= 0 {
		return false, nil
	}
	pos := r.ex.GetPosition(pair)
	if pos.Flat() {
		return false, nil
	}

	threshold := pos.EntryPrice.Mul(decimal.NewFromFloat(1 - r.cfg.Risk.StopLossPct))
	px := decimal.NewFromFloat(price)
	if px.GreaterThanOrEqual(threshold) {
		return false, nil
	}

	r.log.Warn("stop loss triggered",
		zap.String("pair", pair),
		zap.String("entry", pos.EntryPrice.String()),
		zap.String("price", px.String()),
	)

	entryBefore := pos.EntryPrice
	order, err := r.ex.ExecuteOrder(ctx, models.SideSell, pos.Size, px, pair)
	if err != nil {
		r.log.Error("stop loss sell failed", zap.String("pair", pair), zap.Error(err))
		return false, nil
	}
	r.recordFill(order, entryBefore)
	r.n.Sendf("🛑 стоп-лосс %s: продано %s по %s", pair, order.Size, order.Price)
	return true, nil
}

// executeSignal: сначала дневной kill switch, потом сделка. Неудачная
// сигнальная сделка логируется, цикл живёт дальше.
func (r *Runner) executeSignal(ctx context.Context, sig models.Signal) {
	if r.killSwitchTripped() {
		return
	}

	size := r.cfg.Strategy.TradeSize.Decimal
	px := decimal.NewFromFloat(sig.Price)

	if sig.Side == models.SideSell {
		pos := r.ex.GetPosition(sig.Pair)
		if pos.Flat() {
			// шортов нет: sell без позиции пропускаем молча
			return
		}
		if size.GreaterThan(pos.Size) {
			size = pos.Size
		}
	}

	entryBefore := r.ex.GetPosition(sig.Pair).EntryPrice
	order, err := r.ex.ExecuteOrder(ctx, sig.Side, size, px, sig.Pair)
	if err != nil {
		r.log.Error("signal trade failed",
			zap.String("pair", sig.Pair),
			zap.String("side", string(sig.Side)),
			zap.String("strategy", string(sig.Strategy)),
			zap.Error(err),
		)
		return
	}

	r.recordFill(order, entryBefore)
	r.n.Sendf("✅ %s %s %s @ %s (%s)", sig.Side, order.Size, sig.Pair, order.Price, sig.Strategy)
}

// killSwitchTripped: pnl <= -max_daily_loss — останавливаем торговлю целиком.
func (r *Runner) killSwitchTripped() bool {
	maxLoss := r.cfg.Risk.MaxDailyLoss.Decimal
	if maxLoss.IsZero() {
		return false
	}

	r.mu.Lock()
	pnl := r.stats.PnL
	r.mu.Unlock()

	if pnl.GreaterThan(maxLoss.Neg()) {
		return false
	}

	if r.running.Swap(false) {
		r.state.SetTrading(false)
		r.log.Error("daily loss limit reached, trading halted",
			zap.String("pnl", pnl.String()),
			zap.String("limit", maxLoss.String()),
		)
		r.n.Sendf("⚠️ дневной лимит потерь достигнут (pnl=%s), торговля остановлена", pnl)
	}
	return true
}

// Running ...
func (r *Runner) Running() bool { return r.running.Load() }
