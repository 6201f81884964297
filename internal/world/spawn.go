package world

import (
	"context"

	"snake-arena/server/logging"
	"snake-arena/server/logging/gameplay"
)

const (
	// SpawnInset keeps spawn points away from the world edge.
	SpawnInset = 200
	// MinSize is the smallest world that honours the full spawn inset.
	MinSize = 2 * SpawnInset
	// SpawnLength is the distance between the two points of a fresh body.
	SpawnLength = 120.0
	// PlacementAttempts bounds each rejection-sampling round.
	PlacementAttempts = 1000
)

// Spawn places s at a random free point with a two-segment body and marks it
// alive. Candidates are rejected while they sit near a wall or on a snake
// body; after PlacementAttempts rejections the wall padding drops to the
// lethal distance, and after a second round the last candidate is accepted.
func (w *World) Spawn(s *Snake) {
	half := w.config.Size / 2
	inset := spawnInset(half)
	pads := []float64{WallSpawnPadding, SnakeWallPadding}

	var head Vector2D
	placed := false
	relaxed := false
	for round, pad := range pads {
		for attempt := 0; attempt < PlacementAttempts; attempt++ {
			head = RandomPoint(w.rng, half, inset)
			if w.WallCollision(head, pad) || w.PowerupSnakeCollision(head) {
				continue
			}
			placed = true
			break
		}
		if placed {
			relaxed = round > 0
			break
		}
	}
	if !placed {
		relaxed = true
	}

	dir := w.spawnDirection()
	s.Body = []Vector2D{head.Sub(dir.Scale(SpawnLength)), head}
	s.Dir = dir
	s.Alive = true
	s.Died = false
	s.Disconnected = false
	s.growth = 0
	w.snakes[s.ID] = s

	if relaxed {
		gameplay.SpawnRelaxed(context.Background(), w.publisher, w.frame, snakeRef(s), gameplay.SpawnRelaxedPayload{
			Kind:     "snake",
			X:        head.X,
			Y:        head.Y,
			Attempts: PlacementAttempts * len(pads),
			Placed:   placed,
		}, nil)
	}
}

// spawnInset narrows SpawnInset for worlds smaller than MinSize so the head
// never lands outside the world.
func spawnInset(half int) int {
	if half < SpawnInset {
		return half
	}
	return SpawnInset
}

// spawnDirection picks left, right or up with equal probability.
func (w *World) spawnDirection() Vector2D {
	switch RandomInt(w.rng, -1, 2) {
	case -1:
		return Vec(-1, 0)
	case 1:
		return Vec(1, 0)
	default:
		return Vec(0, -1)
	}
}

// ReplenishPowerups removes consumed powerups and places new ones until the
// live count reaches the configured maximum. It returns how many were placed.
// A powerup that cannot be placed within two sampling rounds is deferred to
// the next frame.
func (w *World) ReplenishPowerups() int {
	w.purgeTombstones()

	half := w.config.Size / 2
	placedCount := 0
	for w.livePowerups < w.config.MaxPowerups {
		loc, ok := w.samplePowerup(half)
		if !ok {
			gameplay.SpawnRelaxed(context.Background(), w.publisher, w.frame, logging.EntityRef{Kind: logging.EntityKindWorld}, gameplay.SpawnRelaxedPayload{
				Kind:     "powerup",
				Attempts: 2 * PlacementAttempts,
			}, nil)
			break
		}
		if _, ok := w.PlacePowerup(loc); !ok {
			break
		}
		placedCount++
	}
	return placedCount
}

func (w *World) samplePowerup(half int) (Vector2D, bool) {
	// The first candidate may fall anywhere; retries are drawn away from the
	// boundary margin so they cannot fail on it.
	candidate := RandomPoint(w.rng, half, 0)
	if !w.powerupBlocked(candidate) {
		return candidate, true
	}
	inset := int(BoundaryMargin)
	for attempt := 1; attempt < PlacementAttempts; attempt++ {
		candidate = RandomPoint(w.rng, half, inset)
		if !w.powerupBlocked(candidate) {
			return candidate, true
		}
	}
	for attempt := 0; attempt < PlacementAttempts; attempt++ {
		candidate = RandomPoint(w.rng, half, inset)
		if !w.WallPowerupCollision(candidate) {
			return candidate, true
		}
	}
	return Vector2D{}, false
}

func (w *World) powerupBlocked(p Vector2D) bool {
	return w.WallPowerupCollision(p) || w.PowerupPowerupCollision(p) || w.PowerupSnakeCollision(p)
}
