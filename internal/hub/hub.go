// Package hub owns the connected clients and the world they play in. Every
// world access happens under the hub's single mutex; client I/O happens
// outside it.
package hub

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"snake-arena/server/internal/net/proto"
	"snake-arena/server/internal/sim"
	"snake-arena/server/internal/telemetry"
	"snake-arena/server/internal/world"
	"snake-arena/server/logging"
	"snake-arena/server/logging/lifecycle"
	"snake-arena/server/logging/network"
)

const (
	// DefaultWriteWait bounds a single write to a client.
	DefaultWriteWait = 2 * time.Second
	// DefaultCommandCapacity sizes the staged command ring.
	DefaultCommandCapacity = 1024
	// DefaultPerClientCommands caps the commands one client may stage per tick.
	DefaultPerClientCommands = 16
	// backlogDivisor sets the default warning step as a fraction of capacity.
	backlogDivisor = 4
)

// Reasons reported when a steer command is discarded.
const (
	RejectReverse  = "reverse"
	RejectNotAlive = "not_alive"
	RejectUnknown  = "unknown_player"
)

// ErrClosed is returned by Join after Close.
var ErrClosed = errors.New("hub: closed")

// SubscriberConn is the write side of a client connection.
type SubscriberConn interface {
	Write(data []byte) error
	SetWriteDeadline(deadline time.Time) error
	Close() error
}

// FrameRecorder receives every broadcast frame.
type FrameRecorder interface {
	RecordFrame(tick uint64, snakes []proto.SnakeRecord, powers []proto.PowerRecord)
}

// Config holds the session parameters.
type Config struct {
	World       world.Config
	RespawnRate int
	FramePeriod time.Duration
	WriteWait   time.Duration
	Queue       sim.QueueConfig
}

// Deps bundles the hub's collaborators. Zero values are replaced by no-ops.
type Deps struct {
	Publisher logging.Publisher
	Logger    telemetry.Logger
	Metrics   telemetry.Metrics
	Counters  *telemetry.Counters
	Clock     logging.Clock
	RNG       world.RNGFactory
	Recorder  FrameRecorder
}

// Hub is the connection manager: it performs handshakes, stages commands,
// runs the per-tick step and broadcasts the full world to every client.
type Hub struct {
	mu      sync.Mutex
	world   *world.World
	clients map[int]*client
	nextID  int
	closed  bool

	config    Config
	queue     *sim.Queue
	publisher logging.Publisher
	logger    telemetry.Logger
	counters  *telemetry.Counters
	clock     logging.Clock
	recorder  FrameRecorder

	tick atomic.Uint64
}

type client struct {
	id        int
	name      string
	traceID   string
	transport string
	conn      SubscriberConn

	// writeMu orders the handshake before any frame.
	writeMu sync.Mutex

	closed       bool
	respawnDelay int
}

// Join describes a client completing the handshake.
type Join struct {
	Name      string
	Transport string
	TraceID   string
}

// New constructs a hub around a fresh world.
func New(cfg Config, deps Deps) (*Hub, error) {
	if deps.Publisher == nil {
		deps.Publisher = logging.NopPublisher()
	}
	if deps.Logger == nil {
		deps.Logger = telemetry.LoggerFunc(nil)
	}
	if deps.Clock == nil {
		deps.Clock = logging.SystemClock{}
	}
	if cfg.WriteWait <= 0 {
		cfg.WriteWait = DefaultWriteWait
	}
	if cfg.Queue.Capacity <= 0 {
		cfg.Queue.Capacity = DefaultCommandCapacity
	}
	if cfg.Queue.PerActorLimit <= 0 {
		cfg.Queue.PerActorLimit = DefaultPerClientCommands
	}
	if cfg.Queue.WarningStep <= 0 {
		cfg.Queue.WarningStep = cfg.Queue.Capacity / backlogDivisor
	}
	if cfg.RespawnRate < 0 {
		cfg.RespawnRate = 0
	}

	w, err := world.New(cfg.World, world.Deps{Publisher: deps.Publisher, RNG: deps.RNG})
	if err != nil {
		return nil, fmt.Errorf("build world: %w", err)
	}

	h := &Hub{
		world:     w,
		clients:   make(map[int]*client),
		config:    cfg,
		publisher: deps.Publisher,
		logger:    deps.Logger,
		counters:  deps.Counters,
		clock:     deps.Clock,
		recorder:  deps.Recorder,
	}
	h.queue = sim.NewQueue(cfg.Queue, sim.Deps{Logger: deps.Logger, Metrics: deps.Metrics}, sim.QueueHooks{
		OnCommandDrop:  h.onCommandDrop,
		OnQueueWarning: h.onQueueWarning,
	})
	return h, nil
}

// Tick returns the last executed tick.
func (h *Hub) Tick() uint64 {
	return h.tick.Load()
}

// Join registers conn as a new player, spawns its snake and writes the
// handshake (id, world size, walls). The returned id is used for Steer and
// MarkClosed.
func (h *Hub) Join(conn SubscriberConn, join Join) (int, error) {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return 0, ErrClosed
	}
	id := h.nextID
	h.nextID++

	snake := world.NewSnake(id, join.Name, world.Vector2D{})
	snake.Joined = true
	h.world.AddSnake(snake)
	h.world.Spawn(snake)
	head := snake.Head()

	c := &client{
		id:        id,
		name:      join.Name,
		traceID:   join.TraceID,
		transport: join.Transport,
		conn:      conn,
	}
	c.writeMu.Lock()
	h.clients[id] = c
	handshake, err := proto.EncodeHandshake(id, h.world.Size(), h.world.Walls())
	h.mu.Unlock()

	lifecycle.PlayerJoined(context.Background(), h.publisher, h.tick.Load(), playerRef(id), join.TraceID, lifecycle.PlayerJoinedPayload{
		Name:      join.Name,
		Transport: join.Transport,
		SpawnX:    head.X,
		SpawnY:    head.Y,
	})

	if err == nil {
		err = h.writeLocked(c, handshake)
	}
	c.writeMu.Unlock()
	if err != nil {
		h.MarkClosed(id)
		return id, fmt.Errorf("handshake: %w", err)
	}
	return id, nil
}

// Steer stages a direction change for the next tick. "none" is accepted and
// ignored. Unknown directions are rejected immediately; reverse turns are
// rejected when the command is applied.
func (h *Hub) Steer(id int, moving string) (bool, string) {
	dir, ok := proto.Command{Moving: moving}.Direction()
	if !ok {
		if moving == proto.MoveNone {
			return true, ""
		}
		return false, proto.ErrUnknownDirection.Error()
	}
	return h.queue.Enqueue(sim.Command{
		OriginTick: h.tick.Load(),
		ActorID:    id,
		Type:       sim.CommandSteer,
		IssuedAt:   h.clock.Now(),
		Steer:      &sim.SteerCommand{Moving: moving, DX: dir.X, DY: dir.Y},
	})
}

// MarkClosed flags the client's connection as gone. The snake is removed by
// the next tick's disconnect sweep.
func (h *Hub) MarkClosed(id int) {
	h.mu.Lock()
	if c, ok := h.clients[id]; ok {
		c.closed = true
	}
	h.mu.Unlock()
}

// Close refuses further joins and closes every client connection.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	conns := make([]SubscriberConn, 0, len(h.clients))
	for _, c := range h.clients {
		conns = append(conns, c.conn)
	}
	h.mu.Unlock()
	for _, conn := range conns {
		_ = conn.Close()
	}
}

// Step executes one tick; it implements sim.Stepper.
func (h *Hub) Step(ctx sim.TickContext) {
	commands := h.queue.Drain()

	h.mu.Lock()
	h.tick.Store(ctx.Tick)
	h.world.AdvanceFrame()
	h.applyCommandsLocked(commands)
	h.world.ReplenishPowerups()

	live := h.liveClientsLocked()
	h.processClientsLocked(live)

	snakes, powers := h.frameLocked()
	frame, err := proto.EncodeFrame(snakes, powers)
	if err != nil {
		h.logger.Printf("[hub] encode frame tick=%d: %v", ctx.Tick, err)
	}

	finals, closing := h.sweepLocked(ctx.Tick)
	for _, rec := range finals {
		line, err := proto.EncodeLine(rec)
		if err != nil {
			h.logger.Printf("[hub] encode final record player=%d: %v", rec.Snake, err)
			continue
		}
		frame = append(frame, line...)
	}
	targets := h.liveClientsLocked()
	h.mu.Unlock()

	if h.recorder != nil {
		h.recorder.RecordFrame(ctx.Tick, append(snakes, finals...), powers)
	}

	for _, c := range closing {
		_ = c.conn.Close()
	}
	entities := len(snakes) + len(powers) + len(finals)
	for _, c := range targets {
		h.send(c, frame, entities)
	}
}

// applyCommandsLocked applies staged steering in arrival order. Reverses are
// judged against the heading each snake had when the tick started.
func (h *Hub) applyCommandsLocked(commands []sim.Command) {
	headings := make(map[int]world.Vector2D)
	for _, cmd := range commands {
		if cmd.Type != sim.CommandSteer || cmd.Steer == nil {
			continue
		}
		reason := ""
		snake, ok := h.world.Snake(cmd.ActorID)
		if ok {
			if _, seen := headings[snake.ID]; !seen {
				headings[snake.ID] = snake.Dir
			}
		}
		switch {
		case !ok:
			reason = RejectUnknown
		case !snake.Alive || snake.Disconnected:
			reason = RejectNotAlive
		case !snake.SteerFrom(headings[snake.ID], world.Vec(cmd.Steer.DX, cmd.Steer.DY)):
			reason = RejectReverse
		}
		if reason != "" {
			network.CommandRejected(context.Background(), h.publisher, h.tick.Load(), playerRef(cmd.ActorID), network.CommandRejectedPayload{
				Moving: cmd.Steer.Moving,
				Reason: reason,
			})
		}
	}
}

// processClientsLocked runs respawn, movement and consumption for every live
// client in id order, then resolves lethal collisions against the positions
// every snake reached this tick.
func (h *Hub) processClientsLocked(live []*client) {
	moved := make([]*world.Snake, 0, len(live))
	for _, c := range live {
		snake, ok := h.world.Snake(c.id)
		if !ok {
			continue
		}
		switch {
		case c.respawnDelay > 0:
			c.respawnDelay--
			snake.Died = false
		case !snake.Alive:
			snake.Died = false
			h.world.Respawn(snake)
		default:
			h.world.Advance(snake)
			h.world.Consume(snake)
			moved = append(moved, snake)
		}
	}

	type hit struct {
		snake *world.Snake
		cause string
	}
	var hits []hit
	for _, snake := range moved {
		if lethal, cause := h.world.Lethal(snake); lethal {
			hits = append(hits, hit{snake: snake, cause: cause})
		}
	}
	for _, hit := range hits {
		h.world.Kill(hit.snake, hit.cause)
		if c, ok := h.clients[hit.snake.ID]; ok {
			c.respawnDelay = h.config.RespawnRate
		}
	}
}

func (h *Hub) frameLocked() ([]proto.SnakeRecord, []proto.PowerRecord) {
	snakes := h.world.Snakes()
	snakeRecords := make([]proto.SnakeRecord, 0, len(snakes))
	for _, s := range snakes {
		snakeRecords = append(snakeRecords, proto.SnakeFrom(s))
		s.Joined = false
	}
	powerups := h.world.Powerups()
	powerRecords := make([]proto.PowerRecord, 0, len(powerups))
	for _, p := range powerups {
		powerRecords = append(powerRecords, proto.PowerFrom(p))
	}
	return snakeRecords, powerRecords
}

// sweepLocked removes every closed client. It returns the final records for
// their snakes and the clients whose connections should be closed.
func (h *Hub) sweepLocked(tick uint64) ([]proto.SnakeRecord, []*client) {
	var finals []proto.SnakeRecord
	var closing []*client
	for _, id := range h.sortedIDsLocked() {
		c := h.clients[id]
		if !c.closed {
			continue
		}
		score := 0
		if snake, ok := h.world.Snake(id); ok {
			score = snake.Score
			snake.Disconnected = true
			snake.Died = true
			snake.Alive = false
			finals = append(finals, proto.SnakeFrom(snake))
			h.world.RemoveSnake(id)
		}
		delete(h.clients, id)
		h.queue.Forget(id)
		closing = append(closing, c)
		lifecycle.PlayerDisconnected(context.Background(), h.publisher, tick, playerRef(id), c.traceID, lifecycle.PlayerDisconnectedPayload{
			Name:   c.name,
			Reason: "connection_closed",
			Score:  score,
		})
	}
	return finals, closing
}

func (h *Hub) liveClientsLocked() []*client {
	ids := h.sortedIDsLocked()
	live := make([]*client, 0, len(ids))
	for _, id := range ids {
		if c := h.clients[id]; !c.closed {
			live = append(live, c)
		}
	}
	return live
}

func (h *Hub) sortedIDsLocked() []int {
	ids := make([]int, 0, len(h.clients))
	for id := range h.clients {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

func (h *Hub) send(c *client, data []byte, entities int) {
	if len(data) == 0 {
		return
	}
	c.writeMu.Lock()
	err := h.writeLocked(c, data)
	c.writeMu.Unlock()
	if err != nil {
		h.counters.RecordWriteFailure()
		network.WriteFailed(context.Background(), h.publisher, h.tick.Load(), playerRef(c.id), c.traceID, network.WriteFailedPayload{
			Error: err.Error(),
		})
		h.MarkClosed(c.id)
		return
	}
	h.counters.RecordBroadcast(len(data), entities)
}

// writeLocked writes data to c; the caller holds c.writeMu.
func (h *Hub) writeLocked(c *client, data []byte) error {
	if err := c.conn.SetWriteDeadline(h.clock.Now().Add(h.config.WriteWait)); err != nil {
		return err
	}
	return c.conn.Write(data)
}

func (h *Hub) onCommandDrop(reason string, cmd sim.Command) {
	moving := ""
	if cmd.Steer != nil {
		moving = cmd.Steer.Moving
	}
	network.CommandRejected(context.Background(), h.publisher, h.tick.Load(), playerRef(cmd.ActorID), network.CommandRejectedPayload{
		Moving: moving,
		Reason: reason,
	})
}

func (h *Hub) onQueueWarning(length int) {
	network.CommandBacklog(context.Background(), h.publisher, h.tick.Load(), network.CommandBacklogPayload{
		Pending:  length,
		Capacity: h.queue.Capacity(),
	})
}

func playerRef(id int) logging.EntityRef {
	return logging.EntityRef{ID: strconv.Itoa(id), Kind: logging.EntityKindPlayer}
}
