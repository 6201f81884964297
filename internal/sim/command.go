package sim

import "time"

// CommandType enumerates the supported simulation commands.
type CommandType string

const (
	// CommandSteer changes a snake's travel direction on the next tick.
	CommandSteer CommandType = "Steer"
)

// SteerCommand carries the requested direction as received and as a unit vector.
type SteerCommand struct {
	Moving string  `json:"moving"`
	DX     float64 `json:"dx"`
	DY     float64 `json:"dy"`
}

// Command represents an intent captured for processing on the next tick.
type Command struct {
	OriginTick uint64        `json:"originTick"`
	ActorID    int           `json:"actorId"`
	Type       CommandType   `json:"type"`
	IssuedAt   time.Time     `json:"issuedAt"`
	Steer      *SteerCommand `json:"steer,omitempty"`
}
