package sim

import (
	"context"
	"time"

	"snake-arena/server/logging"
	"snake-arena/server/logging/simulation"
)

// DefaultFramePeriod is used when LoopConfig.FramePeriod is unset.
const DefaultFramePeriod = 34 * time.Millisecond

// Stepper advances the game by one tick.
type Stepper interface {
	Step(ctx TickContext)
}

// StepperFunc adapts a function into a Stepper.
type StepperFunc func(ctx TickContext)

// Step implements Stepper.
func (f StepperFunc) Step(ctx TickContext) {
	if f == nil {
		return
	}
	f(ctx)
}

// TickContext describes the tick being executed.
type TickContext struct {
	Tick  uint64
	Now   time.Time
	Delta time.Duration
}

// LoopResult reports how a tick went.
type LoopResult struct {
	Tick     uint64
	Now      time.Time
	Duration time.Duration
	Budget   time.Duration
	Overrun  bool
	Streak   uint64
}

// LoopConfig tunes the fixed-period runner.
type LoopConfig struct {
	FramePeriod time.Duration
}

// LoopHooks observe the loop.
type LoopHooks struct {
	NextTick  func() uint64
	AfterStep func(LoopResult)
}

// Loop drives a Stepper once per frame period. The period is measured from
// tick start to tick start; a slow tick delays the next one instead of
// queueing extra ticks.
type Loop struct {
	stepper Stepper
	config  LoopConfig
	hooks   LoopHooks
	deps    Deps

	tick   uint64
	last   time.Time
	streak uint64
}

// NewLoop wraps stepper in a fixed-period loop.
func NewLoop(stepper Stepper, cfg LoopConfig, deps Deps, hooks LoopHooks) *Loop {
	if stepper == nil {
		return nil
	}
	if cfg.FramePeriod <= 0 {
		cfg.FramePeriod = DefaultFramePeriod
	}
	if deps.Clock == nil {
		deps.Clock = logging.SystemClock{}
	}
	if deps.Publisher == nil {
		deps.Publisher = logging.NopPublisher()
	}
	return &Loop{stepper: stepper, config: cfg, hooks: hooks, deps: deps}
}

// FramePeriod returns the configured tick period.
func (l *Loop) FramePeriod() time.Duration {
	if l == nil {
		return 0
	}
	return l.config.FramePeriod
}

// Advance executes a single tick and reports its timing. It is not safe to
// call concurrently with Run.
func (l *Loop) Advance() LoopResult {
	if l == nil {
		return LoopResult{}
	}
	clock := l.deps.Clock
	now := clock.Now()
	delta := l.config.FramePeriod
	if !l.last.IsZero() {
		if d := now.Sub(l.last); d > 0 {
			delta = d
		}
	}
	l.last = now

	var tick uint64
	if l.hooks.NextTick != nil {
		tick = l.hooks.NextTick()
	} else {
		l.tick++
		tick = l.tick
	}

	l.stepper.Step(TickContext{Tick: tick, Now: now, Delta: delta})

	result := LoopResult{
		Tick:     tick,
		Now:      now,
		Duration: clock.Now().Sub(now),
		Budget:   l.config.FramePeriod,
	}
	if result.Duration > result.Budget {
		l.streak++
		result.Overrun = true
		result.Streak = l.streak
		simulation.TickBudgetOverrun(context.Background(), l.deps.Publisher, tick, simulation.TickBudgetOverrunPayload{
			DurationMillis: result.Duration.Milliseconds(),
			BudgetMillis:   result.Budget.Milliseconds(),
			Ratio:          float64(result.Duration) / float64(result.Budget),
			Streak:         l.streak,
		}, nil)
	} else {
		l.streak = 0
	}
	if l.deps.Metrics != nil {
		l.deps.Metrics.Store("sim_tick_duration_us", uint64(result.Duration.Microseconds()))
		if result.Overrun {
			l.deps.Metrics.Add("sim_tick_overrun_total", 1)
		}
	}

	if l.hooks.AfterStep != nil {
		l.hooks.AfterStep(result)
	}
	return result
}

// Run ticks until ctx is cancelled.
func (l *Loop) Run(ctx context.Context) {
	if l == nil {
		return
	}
	ticker := time.NewTicker(l.config.FramePeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.Advance()
		}
	}
}
