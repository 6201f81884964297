// Package journal keeps the recent broadcast frames of a match in memory and
// optionally records every frame to a msgpack file for later replay.
package journal

import (
	"sync"
	"time"

	"snake-arena/server/internal/net/proto"
	"snake-arena/server/internal/world"
)

// FormatVersion is written in the header of every journal file.
const FormatVersion = 1

// Header opens a journal file with the session parameters a replay needs.
type Header struct {
	Version     int                `msgpack:"version"`
	StartedAt   time.Time          `msgpack:"startedAt"`
	FramePeriod time.Duration      `msgpack:"framePeriod"`
	Size        int                `msgpack:"size"`
	Walls       []proto.WallRecord `msgpack:"walls"`
}

// Frame is one broadcast: every snake record (finals of disconnected players
// included) and every powerup record sent for a tick.
type Frame struct {
	Tick       uint64              `msgpack:"tick" json:"tick"`
	RecordedAt time.Time           `msgpack:"recordedAt" json:"recordedAt"`
	Snakes     []proto.SnakeRecord `msgpack:"snakes" json:"snakes"`
	Powers     []proto.PowerRecord `msgpack:"powers" json:"powers"`
}

// Eviction describes a frame dropped from the retention window.
type Eviction struct {
	Tick   uint64
	Reason string
}

// RecordResult summarises the window after a frame was retained.
type RecordResult struct {
	Size    int
	Oldest  uint64
	Newest  uint64
	Evicted []Eviction
}

// Journal is a bounded window of recent frames, trimmed by count and age.
type Journal struct {
	mu        sync.RWMutex
	frames    []Frame
	maxFrames int
	maxAge    time.Duration
	now       func() time.Time
}

// New constructs a journal that retains at most capacity frames no older
// than maxAge. A zero maxAge disables the age limit.
func New(capacity int, maxAge time.Duration) *Journal {
	if capacity < 0 {
		capacity = 0
	}
	if maxAge < 0 {
		maxAge = 0
	}
	return &Journal{
		frames:    make([]Frame, 0, capacity),
		maxFrames: capacity,
		maxAge:    maxAge,
		now:       time.Now,
	}
}

// Record retains frame, stamping RecordedAt when unset, and evicts what falls
// outside the window.
func (j *Journal) Record(frame Frame) RecordResult {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.maxFrames == 0 {
		j.frames = j.frames[:0]
		return RecordResult{}
	}

	if frame.RecordedAt.IsZero() {
		frame.RecordedAt = j.now()
	}
	j.frames = append(j.frames, frame)

	var evicted []Eviction
	if j.maxAge > 0 {
		cutoff := frame.RecordedAt.Add(-j.maxAge)
		idx := 0
		for idx < len(j.frames) && j.frames[idx].RecordedAt.Before(cutoff) {
			evicted = append(evicted, Eviction{Tick: j.frames[idx].Tick, Reason: "expired"})
			idx++
		}
		j.dropLocked(idx)
	}
	if overflow := len(j.frames) - j.maxFrames; overflow > 0 {
		for _, f := range j.frames[:overflow] {
			evicted = append(evicted, Eviction{Tick: f.Tick, Reason: "count"})
		}
		j.dropLocked(overflow)
	}

	result := RecordResult{Size: len(j.frames), Evicted: evicted}
	if result.Size > 0 {
		result.Oldest = j.frames[0].Tick
		result.Newest = j.frames[result.Size-1].Tick
	}
	return result
}

func (j *Journal) dropLocked(n int) {
	if n <= 0 {
		return
	}
	copy(j.frames, j.frames[n:])
	for i := len(j.frames) - n; i < len(j.frames); i++ {
		j.frames[i] = Frame{}
	}
	j.frames = j.frames[:len(j.frames)-n]
}

// Frames returns a copy of the window in tick order.
func (j *Journal) Frames() []Frame {
	j.mu.RLock()
	defer j.mu.RUnlock()
	if len(j.frames) == 0 {
		return nil
	}
	out := make([]Frame, len(j.frames))
	copy(out, j.frames)
	return out
}

// FrameAt returns the retained frame for tick.
func (j *Journal) FrameAt(tick uint64) (Frame, bool) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	for _, f := range j.frames {
		if f.Tick == tick {
			return f, true
		}
	}
	return Frame{}, false
}

// Window reports the current retention window.
func (j *Journal) Window() (size int, oldest, newest uint64) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	size = len(j.frames)
	if size == 0 {
		return 0, 0, 0
	}
	return size, j.frames[0].Tick, j.frames[size-1].Tick
}

// HeaderFor builds a journal header from the world configuration.
func HeaderFor(cfg world.Config, period time.Duration, startedAt time.Time) Header {
	walls := make([]proto.WallRecord, 0, len(cfg.Walls))
	for _, w := range cfg.Walls {
		walls = append(walls, proto.WallFrom(w))
	}
	return Header{
		Version:     FormatVersion,
		StartedAt:   startedAt,
		FramePeriod: period,
		Size:        cfg.Size,
		Walls:       walls,
	}
}
