// Package telemetry installs the OpenTelemetry meter provider the services record through.
//
// Telemetry is off unless Telemetry.Enabled is set; the global provider is then a no-op.
// With Telemetry.Stdout set, metrics are periodically written to stdout.
package telemetry

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/trezcool/clotrack/core"
)

const exportInterval = 15 * time.Second

// ShutdownFunc flushes pending metrics.
type ShutdownFunc func(ctx context.Context) error

func noopShutdown(context.Context) error { return nil }

// Init sets the global meter provider from conf and returns its shutdown func.
func Init(conf *core.Config) (ShutdownFunc, error) {
	if !conf.Telemetry.Enabled {
		otel.SetMeterProvider(metricnoop.NewMeterProvider())
		return noopShutdown, nil
	}

	var opts []sdkmetric.Option
	if conf.Telemetry.Stdout {
		exp, err := stdoutmetric.New()
		if err != nil {
			return nil, errors.Wrap(err, "telemetry: stdout exporter")
		}
		opts = append(opts, sdkmetric.WithReader(
			sdkmetric.NewPeriodicReader(exp, sdkmetric.WithInterval(exportInterval)),
		))
	}

	mp := sdkmetric.NewMeterProvider(opts...)
	otel.SetMeterProvider(mp)
	return mp.Shutdown, nil
}
