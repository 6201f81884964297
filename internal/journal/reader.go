package journal

import (
	"bufio"
	"errors"
	"fmt"
	"io"

	"github.com/vmihailenco/msgpack/v5"
)

// Reader decodes a journal file written by a Recorder.
type Reader struct {
	dec    *msgpack.Decoder
	header Header
}

// NewReader reads and checks the header.
func NewReader(r io.Reader) (*Reader, error) {
	dec := msgpack.NewDecoder(bufio.NewReader(r))
	dec.SetCustomStructTag("json")
	var header Header
	if err := dec.Decode(&header); err != nil {
		return nil, fmt.Errorf("read journal header: %w", err)
	}
	if header.Version != FormatVersion {
		return nil, fmt.Errorf("unsupported journal version %d", header.Version)
	}
	return &Reader{dec: dec, header: header}, nil
}

// Header returns the session parameters of the journal.
func (r *Reader) Header() Header {
	return r.header
}

// Next returns the next frame, or io.EOF at the end of the journal.
func (r *Reader) Next() (Frame, error) {
	var frame Frame
	if err := r.dec.Decode(&frame); err != nil {
		if errors.Is(err, io.EOF) {
			return Frame{}, io.EOF
		}
		return Frame{}, fmt.Errorf("read journal frame: %w", err)
	}
	return frame, nil
}
