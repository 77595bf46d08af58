package strategy

import (
	"go.uber.org/fx"

	"coinbase_bot/internal/modules/config"
)

func Module() fx.Option {
	return fx.Module("strategy",
		fx.Provide(
			func(cfg *config.Config) []Engine {
				return NewEngines(&cfg.Strategy)
			},
		),
	)
}
