package telemetry

import (
	"sync/atomic"
	"time"
)

// Counters accumulates broadcast and tick statistics for diagnostics.
type Counters struct {
	bytesSent             atomic.Uint64
	entitiesSent          atomic.Uint64
	broadcasts            atomic.Uint64
	writeFailures         atomic.Uint64
	tickDurationMicros    atomic.Int64
	tickOverruns          atomic.Uint64
	lastBroadcastBytes    atomic.Uint64
	lastBroadcastEntities atomic.Uint64
	journalDropped        atomic.Uint64
}

// Snapshot is the JSON view of Counters.
type Snapshot struct {
	BytesSent             uint64 `json:"bytesSent"`
	EntitiesSent          uint64 `json:"entitiesSent"`
	Broadcasts            uint64 `json:"broadcasts"`
	WriteFailures         uint64 `json:"writeFailures"`
	TickDurationMicros    int64  `json:"tickDurationMicros"`
	TickOverruns          uint64 `json:"tickOverruns"`
	LastBroadcastBytes    uint64 `json:"lastBroadcastBytes"`
	LastBroadcastEntities uint64 `json:"lastBroadcastEntities"`
	JournalDropped        uint64 `json:"journalDropped"`
}

// NewCounters returns zeroed counters.
func NewCounters() *Counters {
	return &Counters{}
}

// RecordBroadcast adds one frame of the given size to the totals.
func (c *Counters) RecordBroadcast(bytes, entities int) {
	if c == nil {
		return
	}
	if bytes < 0 {
		bytes = 0
	}
	if entities < 0 {
		entities = 0
	}
	c.broadcasts.Add(1)
	c.bytesSent.Add(uint64(bytes))
	c.entitiesSent.Add(uint64(entities))
	c.lastBroadcastBytes.Store(uint64(bytes))
	c.lastBroadcastEntities.Store(uint64(entities))
}

// RecordWriteFailure counts a failed client write.
func (c *Counters) RecordWriteFailure() {
	if c == nil {
		return
	}
	c.writeFailures.Add(1)
}

// RecordTick stores the duration of the last tick and counts overruns.
func (c *Counters) RecordTick(duration, budget time.Duration) {
	if c == nil {
		return
	}
	micros := duration.Microseconds()
	if micros < 0 {
		micros = 0
	}
	c.tickDurationMicros.Store(micros)
	if budget > 0 && duration > budget {
		c.tickOverruns.Add(1)
	}
}

// RecordJournalDrop counts a journal frame discarded under backpressure.
func (c *Counters) RecordJournalDrop() {
	if c == nil {
		return
	}
	c.journalDropped.Add(1)
}

// Snapshot copies the current values.
func (c *Counters) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{}
	}
	return Snapshot{
		BytesSent:             c.bytesSent.Load(),
		EntitiesSent:          c.entitiesSent.Load(),
		Broadcasts:            c.broadcasts.Load(),
		WriteFailures:         c.writeFailures.Load(),
		TickDurationMicros:    c.tickDurationMicros.Load(),
		TickOverruns:          c.tickOverruns.Load(),
		LastBroadcastBytes:    c.lastBroadcastBytes.Load(),
		LastBroadcastEntities: c.lastBroadcastEntities.Load(),
		JournalDropped:        c.journalDropped.Load(),
	}
}
