package world

import (
	"fmt"
	"math/rand"
	"sort"

	"snake-arena/server/logging"
)

// RNGFactory produces deterministic RNG instances for world subsystems.
type RNGFactory func(rootSeed, label string) *rand.Rand

// Deps bundles runtime dependencies required to construct a World instance.
type Deps struct {
	Publisher logging.Publisher
	RNG       RNGFactory
}

// World stores the arena entities. It is not safe for concurrent use; the hub
// serializes every access behind its lock.
type World struct {
	config Config

	publisher logging.Publisher
	rng       *rand.Rand

	snakes   map[int]*Snake
	powerups map[int]*Powerup
	walls    map[int]Wall

	livePowerups int
	frame        uint64
}

// New constructs a world with normalized configuration and a seeded RNG.
// Duplicate wall ids are rejected.
func New(cfg Config, deps Deps) (*World, error) {
	normalized := cfg.normalized()

	factory := deps.RNG
	if factory == nil {
		factory = NewDeterministicRNG
	}

	publisher := deps.Publisher
	if publisher == nil {
		publisher = logging.NopPublisher()
	}

	w := &World{
		config:    normalized,
		publisher: publisher,
		rng:       factory(normalized.Seed, "world"),
		snakes:    make(map[int]*Snake),
		powerups:  make(map[int]*Powerup),
		walls:     make(map[int]Wall, len(normalized.Walls)),
	}
	for _, wall := range normalized.Walls {
		if _, exists := w.walls[wall.ID]; exists {
			return nil, fmt.Errorf("duplicate wall id %d", wall.ID)
		}
		w.walls[wall.ID] = wall
	}
	return w, nil
}

// Config returns the normalized session configuration.
func (w *World) Config() Config {
	return w.config
}

// Size returns the side length of the square world.
func (w *World) Size() int {
	return w.config.Size
}

// Frame returns the number of completed ticks.
func (w *World) Frame() uint64 {
	return w.frame
}

// AdvanceFrame increments the frame counter and returns the new value.
func (w *World) AdvanceFrame() uint64 {
	w.frame++
	return w.frame
}

// LivePowerups reports how many powerups can still be consumed.
func (w *World) LivePowerups() int {
	return w.livePowerups
}

// Snake returns the snake with the given id.
func (w *World) Snake(id int) (*Snake, bool) {
	s, ok := w.snakes[id]
	return s, ok
}

// AddSnake registers s under its id, replacing any previous entry.
func (w *World) AddSnake(s *Snake) {
	w.snakes[s.ID] = s
}

// RemoveSnake drops the snake with the given id.
func (w *World) RemoveSnake(id int) {
	delete(w.snakes, id)
}

// Snakes returns the snakes ordered by id.
func (w *World) Snakes() []*Snake {
	out := make([]*Snake, 0, len(w.snakes))
	for _, s := range w.snakes {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Powerup returns the powerup with the given id.
func (w *World) Powerup(id int) (*Powerup, bool) {
	p, ok := w.powerups[id]
	return p, ok
}

// Powerups returns every powerup, tombstones included, ordered by id.
func (w *World) Powerups() []*Powerup {
	out := make([]*Powerup, 0, len(w.powerups))
	for _, p := range w.powerups {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Walls returns the walls ordered by id.
func (w *World) Walls() []Wall {
	out := make([]Wall, 0, len(w.walls))
	for _, wall := range w.walls {
		out = append(out, wall)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// PlacePowerup inserts a live powerup at loc using the smallest free id.
// It returns false when the live count is already at the maximum.
func (w *World) PlacePowerup(loc Vector2D) (*Powerup, bool) {
	if w.livePowerups >= w.config.MaxPowerups {
		return nil, false
	}
	id := 0
	for {
		if _, taken := w.powerups[id]; !taken {
			break
		}
		id++
	}
	p := &Powerup{ID: id, Loc: loc}
	w.powerups[id] = p
	w.livePowerups++
	return p, true
}

// consume marks p eaten and decrements the live count immediately.
func (w *World) consume(p *Powerup) bool {
	if p.Died {
		return false
	}
	p.Died = true
	w.livePowerups--
	return true
}

// purgeTombstones removes powerups consumed in an earlier frame.
func (w *World) purgeTombstones() {
	for id, p := range w.powerups {
		if p.Died {
			delete(w.powerups, id)
		}
	}
}
