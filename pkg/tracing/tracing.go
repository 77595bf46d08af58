package tracing

import (
	"fmt"

	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"
	jCfg "github.com/uber/jaeger-client-go/config"
	"github.com/uber/jaeger-lib/metrics"
)

type Config struct {
	Service string
	Host    string
	Port    int
}

// InitTracer поднимает jaeger-трейсер и ставит его глобальным.
// Возвращает функцию закрытия для fx.Lifecycle OnStop.
func InitTracer(conf Config) (opentracing.Tracer, func() error, error) {
	cfg := &jCfg.Configuration{
		ServiceName: conf.Service,
		Sampler: &jCfg.SamplerConfig{
			Type:  "const",
			Param: 1,
		},
		Reporter: &jCfg.ReporterConfig{
			LogSpans:           false,
			LocalAgentHostPort: fmt.Sprintf("%s:%d", conf.Host, conf.Port),
		},
	}

	tracer, closer, err := cfg.NewTracer(
		jCfg.Metrics(metrics.NullFactory),
	)
	if err != nil {
		return nil, nil, errors.Wrap(err, "init jaeger tracer")
	}

	opentracing.SetGlobalTracer(tracer)
	return tracer, closer.Close, nil
}
