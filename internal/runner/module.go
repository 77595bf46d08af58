package runner

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"coinbase_bot/internal/executor"
	wssvc "coinbase_bot/internal/modules/coinbase_ws/service"
	"coinbase_bot/internal/modules/config"
	healthsvc "coinbase_bot/internal/modules/health/service"
	"coinbase_bot/internal/notify"
	"coinbase_bot/internal/strategy"
)

func Module() fx.Option {
	return fx.Module("runner",
		fx.Provide(
			func(
				cfg *config.Config,
				ex *executor.Executor,
				ws *wssvc.Client,
				engines []strategy.Engine,
				n notify.Notifier,
				state *healthsvc.State,
				log *zap.Logger,
			) *Runner {
				// ws-клиент — и источник цен, и стрим под supervision
				return New(cfg, ex, ws, ws, engines, n, state, log)
			},
		),
		fx.Invoke(func(lc fx.Lifecycle, r *Runner, ctx context.Context) {
			lc.Append(fx.Hook{
				OnStart: func(_ context.Context) error {
					r.Start(ctx)
					return nil
				},
				OnStop: func(_ context.Context) error {
					r.Stop()
					return nil
				},
			})
		}),
	)
}
