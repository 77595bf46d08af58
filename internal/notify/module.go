package notify

import (
	"go.uber.org/fx"
	"go.uber.org/zap"

	"coinbase_bot/internal/modules/config"
)

func Module() fx.Option {
	return fx.Module("notify",
		fx.Provide(
			func(cfg *config.Config, log *zap.Logger) (Notifier, error) {
				if cfg.Telegram.Token == "" {
					return Nop{}, nil
				}
				return NewTelegram(cfg.Telegram.Token, cfg.Telegram.ChatID, log)
			},
		),
	)
}
