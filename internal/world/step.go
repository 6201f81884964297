package world

import (
	"context"
	"strconv"

	"snake-arena/server/logging"
	"snake-arena/server/logging/gameplay"
)

// Death causes reported by Lethal.
const (
	CauseWall  = "wall"
	CauseSnake = "snake"
	CauseSelf  = "self"
)

// Consume lets s eat every live powerup under its head. Each one awards a
// point, restarts the growth delay and decrements the live count. It returns
// the number eaten.
func (w *World) Consume(s *Snake) int {
	if !s.Alive || s.Disconnected {
		return 0
	}
	eaten := 0
	for _, p := range w.Powerups() {
		if p.Died || !SnakePowerupCollision(s, p) {
			continue
		}
		if !w.consume(p) {
			continue
		}
		s.Score++
		s.growth = w.config.GrowthFrames
		eaten++
		gameplay.PowerupConsumed(context.Background(), w.publisher, w.frame, snakeRef(s), gameplay.PowerupConsumedPayload{
			Powerup: p.ID,
			Score:   s.Score,
		}, nil)
	}
	return eaten
}

// Lethal reports whether s currently collides with a wall, another snake or
// itself, and which.
func (w *World) Lethal(s *Snake) (bool, string) {
	if !s.Alive || s.Disconnected {
		return false, ""
	}
	switch {
	case w.SnakeWallCollision(s):
		return true, CauseWall
	case w.SnakeSnakeCollision(s):
		return true, CauseSnake
	case w.SnakeSelfCollision(s):
		return true, CauseSelf
	}
	return false, ""
}

// Kill marks s dead: not alive, died this frame, score reset.
func (w *World) Kill(s *Snake, cause string) {
	score := s.Score
	s.kill()
	gameplay.SnakeDied(context.Background(), w.publisher, w.frame, snakeRef(s), gameplay.SnakeDiedPayload{
		Cause: cause,
		Score: score,
	}, nil)
}

// Respawn places a dead snake back into play.
func (w *World) Respawn(s *Snake) {
	w.Spawn(s)
	head := s.Head()
	gameplay.SnakeRespawned(context.Background(), w.publisher, w.frame, snakeRef(s), gameplay.SnakeRespawnedPayload{
		X: head.X,
		Y: head.Y,
	}, nil)
}

func snakeRef(s *Snake) logging.EntityRef {
	return logging.EntityRef{ID: strconv.Itoa(s.ID), Kind: logging.EntityKindPlayer}
}
