package world

// Wall is an axis-aligned segment fixed for the whole session.
type Wall struct {
	ID int      `json:"wall"`
	P1 Vector2D `json:"p1"`
	P2 Vector2D `json:"p2"`
}

// Powerup is a pickup. Died marks it consumed; it stays in the world until the
// next replenishment so clients observe the consumption once.
type Powerup struct {
	ID   int
	Loc  Vector2D
	Died bool
}

// Snake is a player's avatar. Body is ordered tail first, head last.
type Snake struct {
	ID           int
	Name         string
	Body         []Vector2D
	Dir          Vector2D
	Score        int
	Alive        bool
	Died         bool
	Disconnected bool
	Joined       bool

	growth int
}

// NewSnake returns a snake that has not been placed yet.
func NewSnake(id int, name string, at Vector2D) *Snake {
	return &Snake{
		ID:   id,
		Name: name,
		Body: []Vector2D{at},
		Dir:  Vec(1, 0),
	}
}

// Head returns the leading segment point.
func (s *Snake) Head() Vector2D {
	return s.Body[len(s.Body)-1]
}

// Tail returns the trailing segment point.
func (s *Snake) Tail() Vector2D {
	return s.Body[0]
}

// GrowthRemaining reports how many frames the tail stays put.
func (s *Snake) GrowthRemaining() int {
	return s.growth
}

// Steer changes the travel direction. The exact reverse of the current
// direction is rejected, as is steering a snake that is not alive.
func (s *Snake) Steer(dir Vector2D) bool {
	return s.SteerFrom(s.Dir, dir)
}

// SteerFrom changes the travel direction unless dir reverses heading. The
// hub passes the direction held at the start of the tick so several turns
// staged in one tick cannot add up to a U-turn.
func (s *Snake) SteerFrom(heading, dir Vector2D) bool {
	if !s.Alive || s.Disconnected {
		return false
	}
	if dir == heading.Neg() {
		return false
	}
	s.Dir = dir
	return true
}

// kill applies the lethal-collision transition.
func (s *Snake) kill() {
	s.Alive = false
	s.Died = true
	s.Score = 0
	s.growth = 0
}
