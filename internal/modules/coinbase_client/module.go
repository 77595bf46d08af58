package coinbase_client

import (
	"go.uber.org/fx"
	"go.uber.org/zap"

	"coinbase_bot/internal/executor"
	"coinbase_bot/internal/modules/coinbase_client/service"
	"coinbase_bot/internal/modules/config"
)

func Module() fx.Option {
	return fx.Module("coinbase_client",
		fx.Provide(
			service.NewClient,
			// шлюз для executor: бумажный или живой, по paper_trading
			func(cfg *config.Config, c *service.Client, log *zap.Logger) executor.Gateway {
				if cfg.PaperTrading {
					return service.NewPaperExchange(log)
				}
				return c
			},
		),
	)
}
