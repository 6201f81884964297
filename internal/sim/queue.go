package sim

import (
	"sync"

	"snake-arena/server/internal/telemetry"
)

const (
	// CommandRejectQueueLimit indicates a command was dropped due to per-actor
	// queue throttling.
	CommandRejectQueueLimit = "queue_limit"
	// CommandRejectQueueFull indicates the global command buffer is saturated.
	CommandRejectQueueFull = "queue_full"
)

// QueueConfig tunes command staging.
type QueueConfig struct {
	Capacity      int
	PerActorLimit int
	WarningStep   int
}

// QueueHooks receive backpressure notifications.
type QueueHooks struct {
	OnCommandDrop  func(reason string, cmd Command)
	OnQueueWarning func(length int)
}

// Queue stages commands between ticks and throttles chatty actors.
type Queue struct {
	buffer *CommandBuffer
	config QueueConfig
	hooks  QueueHooks
	logger telemetry.Logger

	mu            sync.Mutex
	perActorCount map[int]int
	dropCounts    map[int]uint64
}

// NewQueue constructs a queue backed by a ring buffer of cfg.Capacity.
func NewQueue(cfg QueueConfig, deps Deps, hooks QueueHooks) *Queue {
	return &Queue{
		buffer:        NewCommandBuffer(cfg.Capacity, deps.Metrics),
		config:        cfg,
		hooks:         hooks,
		logger:        deps.Logger,
		perActorCount: make(map[int]int),
		dropCounts:    make(map[int]uint64),
	}
}

// Enqueue stages a command, enforcing per-actor throttling and capacity limits.
func (q *Queue) Enqueue(cmd Command) (bool, string) {
	if q == nil {
		return false, CommandRejectQueueFull
	}
	reason := ""
	var dropCount uint64
	warnLength := 0
	q.mu.Lock()
	if q.config.PerActorLimit > 0 && q.perActorCount[cmd.ActorID] >= q.config.PerActorLimit {
		reason = CommandRejectQueueLimit
		dropCount = q.incrementDropLocked(cmd.ActorID)
	} else if !q.buffer.Push(cmd) {
		reason = CommandRejectQueueFull
		dropCount = q.incrementDropLocked(cmd.ActorID)
	} else {
		q.perActorCount[cmd.ActorID]++
		if step := q.config.WarningStep; step > 0 {
			if length := q.buffer.Len(); length >= step && length%step == 0 {
				warnLength = length
			}
		}
	}
	q.mu.Unlock()

	if reason != "" {
		q.reportDrop(reason, cmd, dropCount)
		return false, reason
	}
	if warnLength > 0 && q.hooks.OnQueueWarning != nil {
		q.hooks.OnQueueWarning(warnLength)
	}
	return true, ""
}

// Drain returns the staged commands in arrival order and resets throttling.
func (q *Queue) Drain() []Command {
	if q == nil {
		return nil
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	commands := q.buffer.Drain()
	if len(q.perActorCount) > 0 {
		q.perActorCount = make(map[int]int)
	}
	return commands
}

// Forget discards the throttling and drop state kept for actorID. Commands
// already staged for the actor are left in place.
func (q *Queue) Forget(actorID int) {
	if q == nil {
		return
	}
	q.mu.Lock()
	delete(q.perActorCount, actorID)
	delete(q.dropCounts, actorID)
	q.mu.Unlock()
}

// DropCount reports how many commands from actorID have been dropped since
// it was last forgotten.
func (q *Queue) DropCount(actorID int) uint64 {
	if q == nil {
		return 0
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.dropCounts[actorID]
}

// Capacity reports the size of the staging ring.
func (q *Queue) Capacity() int {
	if q == nil {
		return 0
	}
	return q.buffer.Capacity()
}

// Pending reports the number of staged commands.
func (q *Queue) Pending() int {
	if q == nil {
		return 0
	}
	return q.buffer.Len()
}

func (q *Queue) incrementDropLocked(actorID int) uint64 {
	count := q.dropCounts[actorID] + 1
	q.dropCounts[actorID] = count
	return count
}

func (q *Queue) reportDrop(reason string, cmd Command, count uint64) {
	if q.hooks.OnCommandDrop != nil {
		q.hooks.OnCommandDrop(reason, cmd)
	}
	// Log on powers of two so a flooding client cannot flood the log too.
	if count > 0 && count&(count-1) == 0 && q.logger != nil {
		q.logger.Printf(
			"[backpressure] dropping command actor=%d type=%s reason=%s count=%d",
			cmd.ActorID,
			cmd.Type,
			reason,
			count,
		)
	}
}
