// Package session runs the per-connection protocol: read the display name,
// join the hub, then stage every command line until the connection drops.
// It is shared by the TCP listener and the WebSocket bridge.
package session

import (
	"errors"
	"io"

	"github.com/google/uuid"

	"snake-arena/server/internal/hub"
	"snake-arena/server/internal/net/intake"
	"snake-arena/server/internal/net/proto"
	"snake-arena/server/internal/telemetry"
	"snake-arena/server/logging"
)

// LineConn is a client connection that exchanges protocol lines.
type LineConn interface {
	hub.SubscriberConn
	// ReadLine blocks for the next complete line, without its terminator.
	ReadLine() ([]byte, error)
	RemoteAddr() string
}

// Hub is the part of the connection manager a session drives.
type Hub interface {
	Join(conn hub.SubscriberConn, join hub.Join) (int, error)
	Steer(id int, moving string) (bool, string)
	MarkClosed(id int)
	Tick() uint64
}

// Config carries the session's collaborators.
type Config struct {
	Transport string
	Publisher logging.Publisher
	Logger    telemetry.Logger
}

// Serve runs conn to completion. It returns once the connection fails;
// the hub removes the player on its next tick.
func Serve(h Hub, conn LineConn, cfg Config) error {
	publisher := cfg.Publisher
	if publisher == nil {
		publisher = logging.NopPublisher()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = telemetry.LoggerFunc(nil)
	}
	traceID := uuid.New().String()

	first, err := conn.ReadLine()
	if err != nil {
		_ = conn.Close()
		if errors.Is(err, io.EOF) {
			return nil
		}
		return err
	}
	name := proto.ParseName(string(first))

	id, err := h.Join(conn, hub.Join{Name: name, Transport: cfg.Transport, TraceID: traceID})
	if err != nil {
		logger.Printf("[session] join failed remote=%s name=%q: %v", conn.RemoteAddr(), name, err)
		_ = conn.Close()
		return err
	}

	ctx := intake.CommandContext{
		Hub:       h,
		Publisher: publisher,
		TraceID:   traceID,
		Tick:      h.Tick,
	}
	for {
		line, err := conn.ReadLine()
		if err != nil {
			h.MarkClosed(id)
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		// Malformed lines are reported by intake and otherwise skipped.
		_, _, _ = intake.StageClientCommand(ctx, id, line)
	}
}
