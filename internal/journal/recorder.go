package journal

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/vmihailenco/msgpack/v5"

	"snake-arena/server/internal/net/proto"
	"snake-arena/server/internal/telemetry"
	"snake-arena/server/logging"
)

// DefaultBuffer is the number of frames that may wait for the file writer.
const DefaultBuffer = 256

// ErrClosed is returned by Close when the recorder was already closed.
var ErrClosed = errors.New("journal: recorder closed")

// Telemetry captures the metrics adapter used to report dropped frames.
type Telemetry interface {
	RecordJournalDrop()
}

// RecorderConfig controls a Recorder.
type RecorderConfig struct {
	// Window is the in-memory journal. It may be nil.
	Window *Journal
	// Buffer bounds the frames queued for the writer.
	Buffer int
}

// Recorder receives broadcast frames from the hub, keeps them in the window
// and streams them to an optional msgpack sink without blocking the tick.
// Frames that do not fit the buffer are dropped and counted.
type Recorder struct {
	window    *Journal
	telemetry Telemetry
	logger    telemetry.Logger
	clock     logging.Clock

	mu      sync.Mutex
	closed  bool
	frames  chan Frame
	done    chan struct{}
	sink    io.WriteCloser
	buf     *bufio.Writer
	enc     *msgpack.Encoder
	written uint64
	err     error
}

// NewRecorder builds a recorder. When sink is nil frames only reach the
// window. The header is written before any frame.
func NewRecorder(sink io.WriteCloser, header Header, cfg RecorderConfig, metrics Telemetry, logger telemetry.Logger, clock logging.Clock) (*Recorder, error) {
	if logger == nil {
		logger = telemetry.WrapLogger(nil)
	}
	if clock == nil {
		clock = logging.SystemClock{}
	}
	r := &Recorder{
		window:    cfg.Window,
		telemetry: metrics,
		logger:    logger,
		clock:     clock,
	}
	if sink == nil {
		return r, nil
	}

	buffer := cfg.Buffer
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	r.sink = sink
	r.buf = bufio.NewWriter(sink)
	r.enc = msgpack.NewEncoder(r.buf)
	r.enc.SetCustomStructTag("json")
	if header.Version == 0 {
		header.Version = FormatVersion
	}
	if err := r.enc.Encode(&header); err != nil {
		return nil, fmt.Errorf("write journal header: %w", err)
	}
	r.frames = make(chan Frame, buffer)
	r.done = make(chan struct{})
	go r.run()
	return r, nil
}

// Create opens path for writing and returns a recorder streaming into it.
func Create(path string, header Header, cfg RecorderConfig, metrics Telemetry, logger telemetry.Logger, clock logging.Clock) (*Recorder, error) {
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create journal: %w", err)
	}
	r, err := NewRecorder(file, header, cfg, metrics, logger, clock)
	if err != nil {
		file.Close()
		return nil, err
	}
	return r, nil
}

// RecordFrame stores the frame for tick. The record slices are owned by the
// recorder after the call.
func (r *Recorder) RecordFrame(tick uint64, snakes []proto.SnakeRecord, powers []proto.PowerRecord) {
	if r == nil {
		return
	}
	frame := Frame{Tick: tick, RecordedAt: r.clock.Now(), Snakes: snakes, Powers: powers}
	if r.window != nil {
		r.window.Record(frame)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed || r.frames == nil {
		return
	}
	select {
	case r.frames <- frame:
	default:
		if r.telemetry != nil {
			r.telemetry.RecordJournalDrop()
		}
	}
}

func (r *Recorder) run() {
	defer close(r.done)
	for frame := range r.frames {
		if r.err != nil {
			continue
		}
		if err := r.enc.Encode(&frame); err != nil {
			r.err = err
			r.logger.Printf("[journal] write failed at tick %d: %v", frame.Tick, err)
			continue
		}
		r.written++
	}
}

// Written reports how many frames reached the sink. Only meaningful after
// Close.
func (r *Recorder) Written() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.written
}

// Window returns the in-memory journal, or nil when none was configured.
func (r *Recorder) Window() *Journal {
	if r == nil {
		return nil
	}
	return r.window
}

// Close drains pending frames, flushes and closes the sink.
func (r *Recorder) Close(ctx context.Context) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return ErrClosed
	}
	r.closed = true
	frames := r.frames
	r.mu.Unlock()

	if frames == nil {
		return nil
	}
	close(frames)
	select {
	case <-r.done:
	case <-ctx.Done():
		return ctx.Err()
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	err := r.err
	if flushErr := r.buf.Flush(); err == nil {
		err = flushErr
	}
	if closeErr := r.sink.Close(); err == nil {
		err = closeErr
	}
	return err
}

var _ Telemetry = (*telemetry.Counters)(nil)
