package sim

import (
	"context"
	"sync"
	"testing"
	"time"

	"snake-arena/server/logging"
	"snake-arena/server/logging/simulation"
)

type steppingClock struct {
	now  time.Time
	step time.Duration
}

func (c *steppingClock) Now() time.Time {
	current := c.now
	c.now = c.now.Add(c.step)
	return current
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

func TestLoopAdvanceReportsOverrun(t *testing.T) {
	clock := &steppingClock{now: time.Unix(0, 0), step: 50 * time.Millisecond}
	publisher := &recordingPublisher{}
	var ticks []uint64
	loop := NewLoop(StepperFunc(func(ctx TickContext) {
		ticks = append(ticks, ctx.Tick)
	}), LoopConfig{FramePeriod: 34 * time.Millisecond}, Deps{Clock: clock, Publisher: publisher}, LoopHooks{})

	first := loop.Advance()
	second := loop.Advance()

	if len(ticks) != 2 || ticks[0] != 1 || ticks[1] != 2 {
		t.Fatalf("unexpected ticks %v", ticks)
	}
	if !first.Overrun || first.Streak != 1 || second.Streak != 2 {
		t.Fatalf("expected consecutive overruns, got %+v %+v", first, second)
	}
	if len(publisher.events) != 2 || publisher.events[0].Type != simulation.EventTickBudgetOverrun {
		t.Fatalf("expected overrun events, got %+v", publisher.events)
	}
}

func TestLoopAdvanceWithinBudget(t *testing.T) {
	clock := &steppingClock{now: time.Unix(0, 0), step: time.Millisecond}
	publisher := &recordingPublisher{}
	var after []LoopResult
	loop := NewLoop(StepperFunc(func(TickContext) {}), LoopConfig{FramePeriod: 34 * time.Millisecond},
		Deps{Clock: clock, Publisher: publisher},
		LoopHooks{
			NextTick:  func() uint64 { return 41 },
			AfterStep: func(r LoopResult) { after = append(after, r) },
		})

	result := loop.Advance()
	if result.Overrun || result.Tick != 41 {
		t.Fatalf("unexpected result %+v", result)
	}
	if len(after) != 1 || len(publisher.events) != 0 {
		t.Fatalf("expected one AfterStep and no events, got %d and %d", len(after), len(publisher.events))
	}
}

func TestLoopRunStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ticked := make(chan uint64, 16)
	loop := NewLoop(StepperFunc(func(tc TickContext) {
		select {
		case ticked <- tc.Tick:
		default:
		}
	}), LoopConfig{FramePeriod: time.Millisecond}, Deps{}, LoopHooks{})

	done := make(chan struct{})
	go func() {
		loop.Run(ctx)
		close(done)
	}()

	for i := 0; i < 3; i++ {
		select {
		case <-ticked:
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for tick %d", i+1)
		}
	}
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("loop did not stop after cancel")
	}
}

func TestNewLoopDefaults(t *testing.T) {
	if NewLoop(nil, LoopConfig{}, Deps{}, LoopHooks{}) != nil {
		t.Fatalf("expected nil loop without stepper")
	}
	loop := NewLoop(StepperFunc(func(TickContext) {}), LoopConfig{}, Deps{}, LoopHooks{})
	if loop.FramePeriod() != DefaultFramePeriod {
		t.Fatalf("expected default frame period, got %v", loop.FramePeriod())
	}
}
