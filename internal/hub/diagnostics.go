package hub

import "snake-arena/server/internal/telemetry"

// DiagnosticsPlayer summarises one connected player.
type DiagnosticsPlayer struct {
	ID              int    `json:"id"`
	Name            string `json:"name"`
	Transport       string `json:"transport"`
	Score           int    `json:"score"`
	Alive           bool   `json:"alive"`
	Length          int    `json:"length"`
	DroppedCommands uint64 `json:"droppedCommands,omitempty"`
	Closed          bool   `json:"closed,omitempty"`
}

// Diagnostics is the hub state exposed over HTTP.
type Diagnostics struct {
	Tick              uint64              `json:"tick"`
	Frame             uint64              `json:"frame"`
	FramePeriodMillis int64               `json:"framePeriodMillis"`
	WorldSize         int                 `json:"worldSize"`
	LivePowerups      int                 `json:"livePowerups"`
	PendingCommands   int                 `json:"pendingCommands"`
	Players           []DiagnosticsPlayer `json:"players"`
	Telemetry         telemetry.Snapshot  `json:"telemetry"`
}

// Diagnostics copies the current hub state.
func (h *Hub) Diagnostics() Diagnostics {
	h.mu.Lock()
	defer h.mu.Unlock()

	players := make([]DiagnosticsPlayer, 0, len(h.clients))
	for _, id := range h.sortedIDsLocked() {
		c := h.clients[id]
		entry := DiagnosticsPlayer{
			ID:              id,
			Name:            c.name,
			Transport:       c.transport,
			Closed:          c.closed,
			DroppedCommands: h.queue.DropCount(id),
		}
		if snake, ok := h.world.Snake(id); ok {
			entry.Score = snake.Score
			entry.Alive = snake.Alive
			entry.Length = len(snake.Body)
		}
		players = append(players, entry)
	}
	return Diagnostics{
		Tick:              h.tick.Load(),
		Frame:             h.world.Frame(),
		FramePeriodMillis: h.config.FramePeriod.Milliseconds(),
		WorldSize:         h.world.Size(),
		LivePowerups:      h.world.LivePowerups(),
		PendingCommands:   h.queue.Pending(),
		Players:           players,
		Telemetry:         h.counters.Snapshot(),
	}
}
