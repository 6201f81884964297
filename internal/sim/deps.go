package sim

import (
	"snake-arena/server/internal/telemetry"
	"snake-arena/server/logging"
)

// Deps carries shared infrastructure dependencies for the loop and queue.
type Deps struct {
	Logger    telemetry.Logger
	Metrics   telemetry.Metrics
	Clock     logging.Clock
	Publisher logging.Publisher
}
