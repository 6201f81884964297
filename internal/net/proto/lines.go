package proto

import "bytes"

// DefaultMaxLine bounds a buffered partial line.
const DefaultMaxLine = 64 * 1024

// LineBuffer reassembles newline-terminated lines from arbitrary reads.
// Bytes after the last newline are kept until the rest arrives.
type LineBuffer struct {
	pending []byte
	max     int
	dropped int
}

// NewLineBuffer returns a buffer that discards a partial line once it grows
// past max bytes.
func NewLineBuffer(max int) *LineBuffer {
	if max <= 0 {
		max = DefaultMaxLine
	}
	return &LineBuffer{max: max}
}

// Feed appends data and returns every line it completed, without the
// terminator. Empty lines are skipped.
func (b *LineBuffer) Feed(data []byte) [][]byte {
	b.pending = append(b.pending, data...)
	var lines [][]byte
	for {
		idx := bytes.IndexByte(b.pending, '\n')
		if idx < 0 {
			break
		}
		line := bytes.TrimRight(b.pending[:idx], "\r")
		if len(line) > 0 {
			lines = append(lines, append([]byte(nil), line...))
		}
		b.pending = b.pending[idx+1:]
	}
	if len(b.pending) > b.max {
		b.pending = nil
		b.dropped++
	}
	if len(b.pending) == 0 {
		b.pending = nil
	}
	return lines
}

// Pending reports how many bytes await a terminator.
func (b *LineBuffer) Pending() int {
	return len(b.pending)
}

// Dropped reports how many overlong partial lines were discarded.
func (b *LineBuffer) Dropped() int {
	return b.dropped
}
