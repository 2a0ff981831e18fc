package marker

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/fleetops/fleetmap/internal/marker"

func meter() metric.Meter {
	return otel.Meter(instrumentationName)
}
