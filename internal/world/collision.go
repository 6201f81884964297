package world

// Padding applied to bounding boxes (or center distances) for each interaction.
const (
	WallPowerupPadding   = 35.0
	WallSpawnPadding     = 200.0
	PowerupSpacing       = 10.0
	PowerupSnakePadding  = 10.0
	SnakeWallPadding     = 30.0
	SnakeSnakePadding    = 5.0
	SnakeSelfPadding     = 2.0
	SnakePowerupDistance = 10.0

	// BoundaryMargin keeps powerups away from the world edge.
	BoundaryMargin = 60.0

	// selfCollisionSkip is how many segments behind the head are ignored by
	// the self collision test.
	selfCollisionSkip = 3
)

// All tests below are pure: they never mutate the world.

// WallCollision reports whether p lies inside any wall box inflated by pad.
func (w *World) WallCollision(p Vector2D, pad float64) bool {
	for _, wall := range w.walls {
		if segmentBox(wall.P1, wall.P2, pad).contains(p) {
			return true
		}
	}
	return false
}

// OutsidePlayArea reports whether p is within margin of the world edge.
func (w *World) OutsidePlayArea(p Vector2D, margin float64) bool {
	half := float64(w.config.Size) / 2
	return p.X > half-margin || p.X < -half+margin || p.Y > half-margin || p.Y < -half+margin
}

// WallPowerupCollision reports whether a powerup centred at p would touch a
// wall or sit too close to the world boundary.
func (w *World) WallPowerupCollision(p Vector2D) bool {
	return w.WallCollision(p, WallPowerupPadding) || w.OutsidePlayArea(p, BoundaryMargin)
}

// WallSpawnCollision reports whether a spawn point at p is too close to a wall.
func (w *World) WallSpawnCollision(p Vector2D) bool {
	return w.WallCollision(p, WallSpawnPadding)
}

// PowerupPowerupCollision reports whether p is within PowerupSpacing of a live powerup.
func (w *World) PowerupPowerupCollision(p Vector2D) bool {
	for _, other := range w.powerups {
		if other.Died {
			continue
		}
		if other.Loc.Dist(p) < PowerupSpacing {
			return true
		}
	}
	return false
}

// PowerupSnakeCollision reports whether p touches any segment of any
// connected snake.
func (w *World) PowerupSnakeCollision(p Vector2D) bool {
	for _, s := range w.snakes {
		if s.Disconnected {
			continue
		}
		if bodyContains(s.Body, len(s.Body)-1, p, PowerupSnakePadding) {
			return true
		}
	}
	return false
}

// SnakeWallCollision reports whether the head of s hits a wall.
func (w *World) SnakeWallCollision(s *Snake) bool {
	return w.WallCollision(s.Head(), SnakeWallPadding)
}

// SnakeSnakeCollision reports whether the head of s hits another snake's body.
// Only live, connected snakes take part.
func (w *World) SnakeSnakeCollision(s *Snake) bool {
	if !s.Alive || s.Disconnected {
		return false
	}
	head := s.Head()
	for id, other := range w.snakes {
		if id == s.ID || !other.Alive || other.Disconnected {
			continue
		}
		if bodyContains(other.Body, len(other.Body)-1, head, SnakeSnakePadding) {
			return true
		}
	}
	return false
}

// SnakeSelfCollision reports whether the head of s hits its own body. Segments
// within three points of the head are ignored.
func (w *World) SnakeSelfCollision(s *Snake) bool {
	segments := len(s.Body) - selfCollisionSkip - 1
	if segments <= 0 {
		return false
	}
	return bodyContains(s.Body, segments, s.Head(), SnakeSelfPadding)
}

// SnakePowerupCollision reports whether the head of s is close enough to eat p.
func SnakePowerupCollision(s *Snake, p *Powerup) bool {
	return s.Head().Dist(p.Loc) < SnakePowerupDistance
}

// bodyContains tests p against the first n segments of body, where segment i
// joins body[i] and body[i+1].
func bodyContains(body []Vector2D, n int, p Vector2D, pad float64) bool {
	if n > len(body)-1 {
		n = len(body) - 1
	}
	for i := 0; i < n; i++ {
		if segmentBox(body[i], body[i+1], pad).contains(p) {
			return true
		}
	}
	return false
}
