package hub

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"snake-arena/server/internal/net/proto"
	"snake-arena/server/internal/sim"
	"snake-arena/server/internal/telemetry"
	"snake-arena/server/internal/world"
	"snake-arena/server/logging"
	"snake-arena/server/logging/network"
)

type fakeConn struct {
	mu        sync.Mutex
	data      strings.Builder
	writes    int
	deadlines []time.Time
	fail      bool
	closed    bool
}

func (c *fakeConn) Write(p []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail {
		return errors.New("broken pipe")
	}
	c.writes++
	c.data.Write(p)
	return nil
}

func (c *fakeConn) SetWriteDeadline(deadline time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.deadlines = append(c.deadlines, deadline)
	return nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

// take returns the lines written since the last call.
func (c *fakeConn) take() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	raw := strings.TrimSuffix(c.data.String(), "\n")
	c.data.Reset()
	if raw == "" {
		return nil
	}
	return strings.Split(raw, "\n")
}

func (c *fakeConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []logging.Event
}

func (p *recordingPublisher) Publish(_ context.Context, event logging.Event) {
	p.mu.Lock()
	p.events = append(p.events, event)
	p.mu.Unlock()
}

func (p *recordingPublisher) ofType(kind logging.EventType) []logging.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []logging.Event
	for _, event := range p.events {
		if event.Type == kind {
			out = append(out, event)
		}
	}
	return out
}

type frameCapture struct {
	ticks  []uint64
	snakes [][]proto.SnakeRecord
}

func (f *frameCapture) RecordFrame(tick uint64, snakes []proto.SnakeRecord, _ []proto.PowerRecord) {
	f.ticks = append(f.ticks, tick)
	f.snakes = append(f.snakes, snakes)
}

type frame struct {
	snakes map[int]proto.SnakeRecord
	powers map[int]proto.PowerRecord
	order  []proto.Kind
}

func parseFrame(t *testing.T, lines []string) frame {
	t.Helper()
	f := frame{snakes: map[int]proto.SnakeRecord{}, powers: map[int]proto.PowerRecord{}}
	for _, line := range lines {
		rec, err := proto.DecodeRecord([]byte(line))
		if err != nil {
			t.Fatalf("decode %q: %v", line, err)
		}
		f.order = append(f.order, rec.Kind)
		switch rec.Kind {
		case proto.KindSnake:
			f.snakes[rec.Snake.Snake] = *rec.Snake
		case proto.KindPower:
			f.powers[rec.Power.Power] = *rec.Power
		}
	}
	return f
}

type harness struct {
	hub       *Hub
	publisher *recordingPublisher
	tick      uint64
}

func newHarness(t *testing.T, cfg Config) *harness {
	t.Helper()
	publisher := &recordingPublisher{}
	if cfg.World.Seed == "" {
		cfg.World.Seed = "hub-test"
	}
	h, err := New(cfg, Deps{Publisher: publisher, Counters: telemetry.NewCounters()})
	if err != nil {
		t.Fatalf("new hub: %v", err)
	}
	return &harness{hub: h, publisher: publisher}
}

func (hs *harness) join(t *testing.T, name string) (int, *fakeConn) {
	t.Helper()
	conn := &fakeConn{}
	id, err := hs.hub.Join(conn, Join{Name: name, Transport: "tcp"})
	if err != nil {
		t.Fatalf("join %s: %v", name, err)
	}
	conn.take()
	return id, conn
}

func (hs *harness) step() {
	hs.tick++
	hs.hub.Step(sim.TickContext{Tick: hs.tick, Now: time.Unix(0, 0)})
}

func (hs *harness) snake(t *testing.T, id int) *world.Snake {
	t.Helper()
	snake, ok := hs.hub.world.Snake(id)
	if !ok {
		t.Fatalf("snake %d missing", id)
	}
	return snake
}

func place(s *world.Snake, dir world.Vector2D, body ...world.Vector2D) {
	s.Dir = dir
	s.Body = append([]world.Vector2D(nil), body...)
}

func TestJoinWritesHandshake(t *testing.T) {
	walls := []world.Wall{{ID: 0, P1: world.Vec(-100, 0), P2: world.Vec(100, 0)}}
	hs := newHarness(t, Config{World: world.Config{Size: 2000, Walls: walls}})

	conn := &fakeConn{}
	id, err := hs.hub.Join(conn, Join{Name: "alpha", Transport: "tcp"})
	if err != nil {
		t.Fatalf("join: %v", err)
	}
	lines := conn.take()
	if len(lines) != 3 {
		t.Fatalf("expected 3 handshake lines, got %q", lines)
	}
	if lines[0] != "0" || id != 0 {
		t.Fatalf("expected first player id 0, got line %q id %d", lines[0], id)
	}
	if lines[1] != "2000" {
		t.Fatalf("expected world size 2000, got %q", lines[1])
	}
	rec, err := proto.DecodeRecord([]byte(lines[2]))
	if err != nil || rec.Kind != proto.KindWall || rec.Wall.ToWall() != walls[0] {
		t.Fatalf("unexpected wall line %q (%v)", lines[2], err)
	}
	if len(hs.publisher.ofType("lifecycle.player_joined")) != 1 {
		t.Fatalf("expected player_joined event")
	}

	second := &fakeConn{}
	if id, _ := hs.hub.Join(second, Join{Name: "beta"}); id != 1 {
		t.Fatalf("expected sequential id 1, got %d", id)
	}
}

func TestJoinSpawnsTwoSegmentSnake(t *testing.T) {
	hs := newHarness(t, Config{World: world.Config{Size: 2000}})
	id, _ := hs.join(t, "alpha")
	snake := hs.snake(t, id)
	if !snake.Alive || len(snake.Body) != 2 {
		t.Fatalf("expected live two-segment snake, got alive=%v body=%v", snake.Alive, snake.Body)
	}
	if d := snake.Body[0].Dist(snake.Body[1]); d != world.SpawnLength {
		t.Fatalf("expected spawn length %v, got %v", world.SpawnLength, d)
	}
	head := snake.Head()
	if head.X < -800 || head.X >= 800 || head.Y < -800 || head.Y >= 800 {
		t.Fatalf("expected head inset from the edge, got %v", head)
	}
}

func TestStepBroadcastsSameFrameToEveryClient(t *testing.T) {
	hs := newHarness(t, Config{World: world.Config{Size: 2000, MaxPowerups: 3}})
	a, connA := hs.join(t, "alpha")
	b, connB := hs.join(t, "beta")

	hs.step()
	linesA, linesB := connA.take(), connB.take()
	if strings.Join(linesA, "\n") != strings.Join(linesB, "\n") {
		t.Fatalf("clients received different frames:\n%q\n%q", linesA, linesB)
	}
	first := parseFrame(t, linesA)
	if len(first.snakes) != 2 || len(first.powers) != 3 {
		t.Fatalf("expected 2 snakes and 3 powers, got %d and %d", len(first.snakes), len(first.powers))
	}
	want := []proto.Kind{proto.KindSnake, proto.KindSnake, proto.KindPower, proto.KindPower, proto.KindPower}
	for i, kind := range first.order {
		if kind != want[i] {
			t.Fatalf("expected snakes before powers, got %v", first.order)
		}
	}
	if !first.snakes[a].Join || !first.snakes[b].Join {
		t.Fatalf("expected join flag in first frame")
	}

	hs.step()
	second := parseFrame(t, connA.take())
	if second.snakes[a].Join || second.snakes[b].Join {
		t.Fatalf("expected join flag cleared after first frame")
	}
}

func TestLivePowerupsNeverExceedMaximum(t *testing.T) {
	hs := newHarness(t, Config{World: world.Config{Size: 2000, MaxPowerups: 5}})
	_, conn := hs.join(t, "alpha")
	for i := 0; i < 50; i++ {
		hs.step()
		live := 0
		for _, p := range parseFrame(t, conn.take()).powers {
			if !p.Died {
				live++
			}
		}
		if live > 5 || hs.hub.world.LivePowerups() > 5 {
			t.Fatalf("tick %d: live powerups %d exceed maximum", hs.tick, live)
		}
	}
}

func TestSteerRejectsReverse(t *testing.T) {
	hs := newHarness(t, Config{World: world.Config{Size: 2000}})
	id, _ := hs.join(t, "alpha")
	place(hs.snake(t, id), world.Vec(1, 0), world.Vec(-120, 0), world.Vec(0, 0))

	if ok, reason := hs.hub.Steer(id, proto.MoveLeft); !ok {
		t.Fatalf("expected command to be staged, got %s", reason)
	}
	hs.step()
	snake := hs.snake(t, id)
	if snake.Dir != world.Vec(1, 0) {
		t.Fatalf("expected reverse turn ignored, got dir %v", snake.Dir)
	}
	if snake.Head() != world.Vec(6, 0) {
		t.Fatalf("expected head (6,0), got %v", snake.Head())
	}
	rejected := hs.publisher.ofType(network.EventCommandRejected)
	if len(rejected) != 1 {
		t.Fatalf("expected one rejection event, got %d", len(rejected))
	}
	if payload, ok := rejected[0].Payload.(network.CommandRejectedPayload); !ok || payload.Reason != RejectReverse {
		t.Fatalf("unexpected rejection payload %+v", rejected[0].Payload)
	}

	hs.hub.Steer(id, proto.MoveUp)
	hs.step()
	if snake.Dir != world.Vec(0, -1) || snake.Head() != world.Vec(6, -6) {
		t.Fatalf("expected turn up, got dir %v head %v", snake.Dir, snake.Head())
	}
	hs.hub.Steer(id, proto.MoveDown)
	hs.step()
	if snake.Dir != world.Vec(0, -1) {
		t.Fatalf("expected reverse of up rejected, got %v", snake.Dir)
	}
}

func TestSteerJudgesReverseAgainstTickHeading(t *testing.T) {
	hs := newHarness(t, Config{World: world.Config{Size: 2000}})
	id, _ := hs.join(t, "alpha")
	place(hs.snake(t, id), world.Vec(1, 0), world.Vec(-120, 0), world.Vec(0, 0))

	hs.hub.Steer(id, proto.MoveUp)
	hs.hub.Steer(id, proto.MoveLeft)
	hs.step()

	snake := hs.snake(t, id)
	if snake.Dir != world.Vec(0, -1) {
		t.Fatalf("expected up to stick and left to be refused, got dir %v", snake.Dir)
	}
	if !snake.Alive {
		t.Fatalf("expected snake alive, two turns in one tick must not fold it onto itself")
	}
	rejected := hs.publisher.ofType(network.EventCommandRejected)
	if len(rejected) != 1 {
		t.Fatalf("expected one rejection, got %d", len(rejected))
	}
	if payload := rejected[0].Payload.(network.CommandRejectedPayload); payload.Moving != proto.MoveLeft || payload.Reason != RejectReverse {
		t.Fatalf("unexpected rejection payload %+v", payload)
	}

	// The next tick starts from up, so left is now a legal turn.
	hs.hub.Steer(id, proto.MoveLeft)
	hs.step()
	if snake.Dir != world.Vec(-1, 0) {
		t.Fatalf("expected left turn on the following tick, got %v", snake.Dir)
	}
}

func TestCommandBacklogWarning(t *testing.T) {
	hs := newHarness(t, Config{World: world.Config{Size: 2000}, Queue: sim.QueueConfig{Capacity: 8}})
	a, _ := hs.join(t, "alpha")
	b, _ := hs.join(t, "beta")

	hs.hub.Steer(a, proto.MoveUp)
	if got := hs.publisher.ofType(network.EventCommandBacklog); len(got) != 0 {
		t.Fatalf("expected no backlog warning below the step, got %d", len(got))
	}
	hs.hub.Steer(b, proto.MoveDown)
	warnings := hs.publisher.ofType(network.EventCommandBacklog)
	if len(warnings) != 1 {
		t.Fatalf("expected one backlog warning, got %d", len(warnings))
	}
	payload, ok := warnings[0].Payload.(network.CommandBacklogPayload)
	if !ok || payload.Pending != 2 || payload.Capacity != 8 {
		t.Fatalf("unexpected backlog payload %+v", warnings[0].Payload)
	}
	if warnings[0].Severity != logging.SeverityWarn {
		t.Fatalf("expected warn severity, got %v", warnings[0].Severity)
	}
}

func TestSweepForgetsCommandDrops(t *testing.T) {
	hs := newHarness(t, Config{World: world.Config{Size: 2000}, Queue: sim.QueueConfig{PerActorLimit: 1}})
	id, _ := hs.join(t, "alpha")

	hs.hub.Steer(id, proto.MoveUp)
	if ok, reason := hs.hub.Steer(id, proto.MoveDown); ok || reason != sim.CommandRejectQueueLimit {
		t.Fatalf("expected second command throttled, got ok=%v reason=%q", ok, reason)
	}
	diag := hs.hub.Diagnostics()
	if len(diag.Players) != 1 || diag.Players[0].DroppedCommands != 1 {
		t.Fatalf("expected one dropped command in diagnostics, got %+v", diag.Players)
	}

	hs.hub.MarkClosed(id)
	hs.step()
	if got := hs.hub.queue.DropCount(id); got != 0 {
		t.Fatalf("expected drop count forgotten after disconnect, got %d", got)
	}
}

func TestSteerNoneAndUnknown(t *testing.T) {
	hs := newHarness(t, Config{World: world.Config{Size: 2000}})
	id, _ := hs.join(t, "alpha")
	if ok, _ := hs.hub.Steer(id, proto.MoveNone); !ok {
		t.Fatalf("expected none to be accepted")
	}
	if ok, _ := hs.hub.Steer(id, "sideways"); ok {
		t.Fatalf("expected unknown direction to be rejected")
	}
	if hs.hub.queue.Pending() != 0 {
		t.Fatalf("expected nothing staged, got %d", hs.hub.queue.Pending())
	}
}

func TestMovementAdvancesHeadAndTail(t *testing.T) {
	hs := newHarness(t, Config{World: world.Config{Size: 2000, Speed: 6}})
	id, _ := hs.join(t, "alpha")
	snake := hs.snake(t, id)

	place(snake, world.Vec(1, 0), world.Vec(-120, 0), world.Vec(0, 0))
	hs.step()
	if snake.Head() != world.Vec(6, 0) || snake.Tail() != world.Vec(-114, 0) {
		t.Fatalf("expected head (6,0) tail (-114,0), got %v", snake.Body)
	}

	place(snake, world.Vec(1, 0), world.Vec(-4, 0), world.Vec(0, 0))
	hs.step()
	if len(snake.Body) != 2 || snake.Tail() != world.Vec(0, 0) || snake.Head() != world.Vec(6, 0) {
		t.Fatalf("expected tail dropped onto next segment, got %v", snake.Body)
	}
}

func TestLethalCollisionResetsScoreAndDelaysRespawn(t *testing.T) {
	walls := []world.Wall{{ID: 0, P1: world.Vec(30, 100), P2: world.Vec(30, -100)}}
	hs := newHarness(t, Config{World: world.Config{Size: 2000, Walls: walls}, RespawnRate: 3})
	id, conn := hs.join(t, "alpha")
	snake := hs.snake(t, id)
	place(snake, world.Vec(1, 0), world.Vec(-120, 0), world.Vec(0, 0))
	snake.Score = 5

	hs.step()
	death := parseFrame(t, conn.take()).snakes[id]
	if death.Alive || !death.Died || death.Score != 0 {
		t.Fatalf("expected death frame, got %+v", death)
	}
	if len(hs.publisher.ofType("gameplay.snake_died")) != 1 {
		t.Fatalf("expected snake_died event")
	}

	body := append([]world.Vector2D(nil), snake.Body...)
	for i := 0; i < 3; i++ {
		hs.step()
		rec := parseFrame(t, conn.take()).snakes[id]
		if rec.Alive || rec.Died {
			t.Fatalf("delay tick %d: expected dead without died flag, got %+v", i, rec)
		}
		if len(snake.Body) != len(body) || snake.Head() != body[len(body)-1] {
			t.Fatalf("delay tick %d: snake moved while dead", i)
		}
		if ok, _ := hs.hub.Steer(id, proto.MoveUp); !ok {
			t.Fatalf("expected staging to succeed")
		}
	}

	hs.step()
	respawned := parseFrame(t, conn.take()).snakes[id]
	if !respawned.Alive || respawned.Died || len(respawned.Body) != 2 {
		t.Fatalf("expected respawn after delay, got %+v", respawned)
	}
	if hs.snake(t, id).Score != 0 {
		t.Fatalf("expected score to stay reset")
	}
}

func TestTwoSnakesHittingThirdDieSameTick(t *testing.T) {
	hs := newHarness(t, Config{World: world.Config{Size: 2000}})
	a, _ := hs.join(t, "a")
	b, _ := hs.join(t, "b")
	c, conn := hs.join(t, "c")

	place(hs.snake(t, c), world.Vec(0, -1), world.Vec(0, 100), world.Vec(0, -100))
	place(hs.snake(t, a), world.Vec(1, 0), world.Vec(-130, 50), world.Vec(-10, 50))
	place(hs.snake(t, b), world.Vec(-1, 0), world.Vec(130, -50), world.Vec(10, -50))

	hs.step()
	f := parseFrame(t, conn.take())
	if !f.snakes[a].Died || !f.snakes[b].Died {
		t.Fatalf("expected both a and b dead, got a=%+v b=%+v", f.snakes[a], f.snakes[b])
	}
	if !f.snakes[c].Alive {
		t.Fatalf("expected c to survive")
	}
}

func TestHeadOnCollisionKillsBoth(t *testing.T) {
	hs := newHarness(t, Config{World: world.Config{Size: 2000}})
	a, _ := hs.join(t, "a")
	b, _ := hs.join(t, "b")
	place(hs.snake(t, a), world.Vec(1, 0), world.Vec(-60, 0), world.Vec(0, 0))
	place(hs.snake(t, b), world.Vec(-1, 0), world.Vec(70, 0), world.Vec(10, 0))

	hs.step()
	if hs.snake(t, a).Alive || hs.snake(t, b).Alive {
		t.Fatalf("expected head-on collision to kill both snakes")
	}
}

func TestConsumingPowerupScoresAndGrows(t *testing.T) {
	hs := newHarness(t, Config{World: world.Config{Size: 2000, MaxPowerups: 1}})
	id, conn := hs.join(t, "alpha")
	hs.step()
	conn.take()

	powerups := hs.hub.world.Powerups()
	if len(powerups) != 1 {
		t.Fatalf("expected one powerup, got %d", len(powerups))
	}
	loc := powerups[0].Loc
	snake := hs.snake(t, id)
	place(snake, world.Vec(1, 0), loc.Sub(world.Vec(126, 0)), loc.Sub(world.Vec(6, 0)))

	hs.step()
	f := parseFrame(t, conn.take())
	if f.snakes[id].Score != 1 {
		t.Fatalf("expected score 1, got %d", f.snakes[id].Score)
	}
	if p := f.powers[powerups[0].ID]; !p.Died {
		t.Fatalf("expected consumed powerup broadcast with died flag, got %+v", p)
	}
	if hs.hub.world.LivePowerups() != 0 {
		t.Fatalf("expected live count 0 after consumption, got %d", hs.hub.world.LivePowerups())
	}
	if snake.GrowthRemaining() != world.DefaultGrowthFrames {
		t.Fatalf("expected growth delay %d, got %d", world.DefaultGrowthFrames, snake.GrowthRemaining())
	}

	tail := snake.Tail()
	hs.step()
	if snake.Tail() != tail {
		t.Fatalf("expected tail to hold while growing")
	}
	if hs.hub.world.LivePowerups() != 1 {
		t.Fatalf("expected replenishment, got %d live", hs.hub.world.LivePowerups())
	}
}

func TestDisconnectSweepBroadcastsFinalRecord(t *testing.T) {
	capture := &frameCapture{}
	publisher := &recordingPublisher{}
	h, err := New(Config{World: world.Config{Size: 2000, Seed: "sweep"}}, Deps{Publisher: publisher, Recorder: capture})
	if err != nil {
		t.Fatalf("new hub: %v", err)
	}
	hs := &harness{hub: h, publisher: publisher}
	a, connA := hs.join(t, "leaver")
	b, connB := hs.join(t, "stayer")

	hs.hub.MarkClosed(a)
	hs.step()

	if connA.take() != nil {
		t.Fatalf("expected no writes to the closed client")
	}
	if !connA.isClosed() {
		t.Fatalf("expected closed client connection to be closed")
	}
	lines := connB.take()
	last, err := proto.DecodeRecord([]byte(lines[len(lines)-1]))
	if err != nil || last.Kind != proto.KindSnake {
		t.Fatalf("expected trailing snake record, got %q (%v)", lines[len(lines)-1], err)
	}
	final := *last.Snake
	if final.Snake != a || !final.DC || !final.Died || final.Alive {
		t.Fatalf("unexpected final record %+v", final)
	}
	if _, ok := hs.hub.world.Snake(a); ok {
		t.Fatalf("expected snake removed after sweep")
	}
	if len(publisher.ofType("lifecycle.player_disconnected")) != 1 {
		t.Fatalf("expected player_disconnected event")
	}

	hs.step()
	f := parseFrame(t, connB.take())
	if _, ok := f.snakes[a]; ok || len(f.snakes) != 1 {
		t.Fatalf("expected only %d in later frames, got %v", b, f.snakes)
	}
	if len(capture.ticks) != 2 || len(capture.snakes[0]) != 3 {
		t.Fatalf("expected recorder to receive frames with final record, got %v", capture.ticks)
	}
}

func TestWriteFailureDisconnectsClient(t *testing.T) {
	hs := newHarness(t, Config{World: world.Config{Size: 2000}})
	a, connA := hs.join(t, "flaky")
	connA.mu.Lock()
	connA.fail = true
	connA.mu.Unlock()

	hs.step()
	if len(hs.publisher.ofType(network.EventWriteFailed)) != 1 {
		t.Fatalf("expected write_failed event")
	}
	hs.step()
	if _, ok := hs.hub.world.Snake(a); ok {
		t.Fatalf("expected failed client swept on the next tick")
	}
	if hs.hub.counters.Snapshot().WriteFailures != 1 {
		t.Fatalf("expected one write failure recorded")
	}
}

func TestJoinAfterClose(t *testing.T) {
	hs := newHarness(t, Config{World: world.Config{Size: 2000}})
	_, conn := hs.join(t, "alpha")
	hs.hub.Close()
	if !conn.isClosed() {
		t.Fatalf("expected Close to close client connections")
	}
	if _, err := hs.hub.Join(&fakeConn{}, Join{Name: "late"}); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}

func TestNewRejectsDuplicateWalls(t *testing.T) {
	walls := []world.Wall{
		{ID: 1, P1: world.Vec(0, 0), P2: world.Vec(0, 10)},
		{ID: 1, P1: world.Vec(5, 0), P2: world.Vec(5, 10)},
	}
	if _, err := New(Config{World: world.Config{Walls: walls}}, Deps{}); err == nil {
		t.Fatalf("expected duplicate wall ids to fail")
	}
}

func TestDiagnostics(t *testing.T) {
	hs := newHarness(t, Config{World: world.Config{Size: 1500, MaxPowerups: 2}, FramePeriod: 34 * time.Millisecond})
	hs.join(t, "alpha")
	hs.step()

	diag := hs.hub.Diagnostics()
	if diag.Tick != 1 || diag.Frame != 1 || diag.WorldSize != 1500 || diag.FramePeriodMillis != 34 {
		t.Fatalf("unexpected diagnostics %+v", diag)
	}
	if len(diag.Players) != 1 || diag.Players[0].Name != "alpha" || !diag.Players[0].Alive {
		t.Fatalf("unexpected players %+v", diag.Players)
	}
	if diag.LivePowerups != 2 || diag.Telemetry.Broadcasts != 1 {
		t.Fatalf("unexpected counters %+v", diag)
	}
}
