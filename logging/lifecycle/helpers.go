package lifecycle

import (
	"context"

	"snake-arena/server/logging"
)

const (
	// EventPlayerJoined is emitted when a client completes the handshake.
	EventPlayerJoined logging.EventType = "lifecycle.player_joined"
	// EventPlayerDisconnected is emitted when the disconnect sweep removes a player.
	EventPlayerDisconnected logging.EventType = "lifecycle.player_disconnected"
)

// PlayerJoinedPayload captures the handshake result for a new player.
type PlayerJoinedPayload struct {
	Name      string  `json:"name"`
	Transport string  `json:"transport"`
	SpawnX    float64 `json:"spawnX"`
	SpawnY    float64 `json:"spawnY"`
}

// PlayerDisconnectedPayload captures the reason a player left.
type PlayerDisconnectedPayload struct {
	Name   string `json:"name"`
	Reason string `json:"reason"`
	Score  int    `json:"score"`
}

// PlayerJoined publishes a player join event.
func PlayerJoined(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, traceID string, payload PlayerJoinedPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventPlayerJoined,
		Tick:     tick,
		Actor:    actor,
		Severity: logging.SeverityInfo,
		Category: logging.CategoryLifecycle,
		Payload:  payload,
		TraceID:  traceID,
	})
}

// PlayerDisconnected publishes a player disconnect event.
func PlayerDisconnected(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, traceID string, payload PlayerDisconnectedPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventPlayerDisconnected,
		Tick:     tick,
		Actor:    actor,
		Severity: logging.SeverityInfo,
		Category: logging.CategoryLifecycle,
		Payload:  payload,
		TraceID:  traceID,
	})
}
