package behavior

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/dynencounters/npc-engine/internal/behavior"

func meter() metric.Meter {
	return otel.Meter(instrumentationName)
}
