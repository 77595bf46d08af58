package main

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"coinbase_bot/internal/executor"
	"coinbase_bot/internal/modules/coinbase_client"
	"coinbase_bot/internal/modules/coinbase_ws"
	"coinbase_bot/internal/modules/config"
	"coinbase_bot/internal/modules/health"
	"coinbase_bot/internal/notify"
	"coinbase_bot/internal/runner"
	"coinbase_bot/internal/strategy"
	"coinbase_bot/pkg/logger"
	"coinbase_bot/pkg/tracing"
)

func main() {
	app := fx.New(
		fx.Provide(
			func() context.Context {
				return context.Background()
			},
			func() (*zap.Logger, error) {
				return logger.New("coinbase_bot")
			},
		),
		config.Module(),
		coinbase_client.Module(),
		coinbase_ws.Module(),
		executor.Module(),
		strategy.Module(),
		notify.Module(),
		health.Module(),
		runner.Module(),
		fx.Invoke(initTracing),
	)
	app.Run()
}

// initTracing поднимает jaeger, если он настроен.
func initTracing(lc fx.Lifecycle, cfg *config.Config, log *zap.Logger) error {
	if cfg.Jaeger.Host == "" {
		log.Info("jaeger is not configured, tracing disabled")
		return nil
	}

	_, closeTracer, err := tracing.InitTracer(tracing.Config{
		Service: "coinbase_bot",
		Host:    cfg.Jaeger.Host,
		Port:    cfg.Jaeger.Port,
	})
	if err != nil {
		return err
	}

	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return closeTracer()
		},
	})
	return nil
}
