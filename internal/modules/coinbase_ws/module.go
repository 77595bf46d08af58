package coinbase_ws

import (
	"go.uber.org/fx"
	"go.uber.org/zap"

	clientsvc "coinbase_bot/internal/modules/coinbase_client/service"
	"coinbase_bot/internal/modules/coinbase_ws/service"
	"coinbase_bot/internal/modules/config"
	healthsvc "coinbase_bot/internal/modules/health/service"
)

func Module() fx.Option {
	return fx.Module("coinbase_ws",
		fx.Provide(
			func(cfg *config.Config, rest *clientsvc.Client, state *healthsvc.State, log *zap.Logger) *service.Client {
				return service.NewClient(cfg, rest, state, log)
			},
		),
	)
}
