package gameplay

import (
	"context"

	"snake-arena/server/logging"
)

const (
	// EventPowerupConsumed is emitted when a snake eats a powerup.
	EventPowerupConsumed logging.EventType = "gameplay.powerup_consumed"
	// EventSnakeDied is emitted on a lethal collision.
	EventSnakeDied logging.EventType = "gameplay.snake_died"
	// EventSnakeRespawned is emitted when a dead snake re-enters play.
	EventSnakeRespawned logging.EventType = "gameplay.snake_respawned"
	// EventSpawnRelaxed is emitted when rejection sampling had to fall back.
	EventSpawnRelaxed logging.EventType = "gameplay.spawn_relaxed"
)

// PowerupConsumedPayload identifies the eaten powerup and the new score.
type PowerupConsumedPayload struct {
	Powerup int `json:"powerup"`
	Score   int `json:"score"`
}

// SnakeDiedPayload records what killed the snake and the score it lost.
type SnakeDiedPayload struct {
	Cause string `json:"cause"`
	Score int    `json:"score"`
}

// SnakeRespawnedPayload records the new head position.
type SnakeRespawnedPayload struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// SpawnRelaxedPayload describes a placement that exhausted its normal attempts.
type SpawnRelaxedPayload struct {
	Kind     string  `json:"kind"`
	X        float64 `json:"x,omitempty"`
	Y        float64 `json:"y,omitempty"`
	Attempts int     `json:"attempts"`
	Placed   bool    `json:"placed"`
}

// PowerupConsumed publishes a powerup consumption event.
func PowerupConsumed(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload PowerupConsumedPayload, extra map[string]any) {
	publish(ctx, pub, EventPowerupConsumed, logging.SeverityDebug, tick, actor, payload, extra)
}

// SnakeDied publishes a death event.
func SnakeDied(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload SnakeDiedPayload, extra map[string]any) {
	publish(ctx, pub, EventSnakeDied, logging.SeverityInfo, tick, actor, payload, extra)
}

// SnakeRespawned publishes a respawn event.
func SnakeRespawned(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload SnakeRespawnedPayload, extra map[string]any) {
	publish(ctx, pub, EventSnakeRespawned, logging.SeverityDebug, tick, actor, payload, extra)
}

// SpawnRelaxed publishes a warning when placement fell back to relaxed rules.
func SpawnRelaxed(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload SpawnRelaxedPayload, extra map[string]any) {
	publish(ctx, pub, EventSpawnRelaxed, logging.SeverityWarn, tick, actor, payload, extra)
}

func publish(ctx context.Context, pub logging.Publisher, eventType logging.EventType, severity logging.Severity, tick uint64, actor logging.EntityRef, payload any, extra map[string]any) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     eventType,
		Tick:     tick,
		Actor:    actor,
		Severity: severity,
		Category: logging.CategoryGameplay,
		Payload:  payload,
		Extra:    extra,
	})
}
