package executor

import (
	"go.uber.org/fx"
	"go.uber.org/zap"

	"coinbase_bot/internal/modules/config"
	"coinbase_bot/internal/risk"
)

func Module() fx.Option {
	return fx.Module("executor",
		fx.Provide(
			func(cfg *config.Config, log *zap.Logger) RiskChecker {
				return risk.NewManager(cfg.Risk.MaxPositionSize.Decimal, cfg.Risk.MaxOrderValue.Decimal, log)
			},
			func(cfg *config.Config, gw Gateway, risk RiskChecker, log *zap.Logger) *Executor {
				return New(gw, risk, Config{
					RetryAttempts: cfg.Executor.RetryAttempts,
					RetryDelay:    cfg.Executor.RetryDelay.Duration,
					OrderTimeout:  cfg.Executor.OrderTimeout.Duration,
				}, log)
			},
		),
	)
}
