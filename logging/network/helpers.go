package network

import (
	"context"

	"snake-arena/server/logging"
)

const (
	// EventMalformedLine is emitted when a client line cannot be decoded.
	EventMalformedLine logging.EventType = "network.malformed_line"
	// EventWriteFailed is emitted when a broadcast to a client fails.
	EventWriteFailed logging.EventType = "network.write_failed"
	// EventCommandRejected is emitted when a direction command is refused.
	EventCommandRejected logging.EventType = "network.command_rejected"
	// EventCommandBacklog is emitted when staged commands pile up between ticks.
	EventCommandBacklog logging.EventType = "network.command_backlog"
)

// MalformedLinePayload captures the discarded input.
type MalformedLinePayload struct {
	Line  string `json:"line"`
	Error string `json:"error"`
}

// WriteFailedPayload captures a transport write error.
type WriteFailedPayload struct {
	Error string `json:"error"`
}

// CommandRejectedPayload captures a refused direction command.
type CommandRejectedPayload struct {
	Moving string `json:"moving"`
	Reason string `json:"reason"`
}

// CommandBacklogPayload captures the staging ring occupancy.
type CommandBacklogPayload struct {
	Pending  int `json:"pending"`
	Capacity int `json:"capacity"`
}

// MalformedLine publishes a debug event for a discarded line.
func MalformedLine(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, traceID string, payload MalformedLinePayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventMalformedLine,
		Tick:     tick,
		Actor:    actor,
		Severity: logging.SeverityDebug,
		Category: logging.CategoryNetwork,
		Payload:  payload,
		TraceID:  traceID,
	})
}

// WriteFailed publishes a warning when a client write fails.
func WriteFailed(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, traceID string, payload WriteFailedPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventWriteFailed,
		Tick:     tick,
		Actor:    actor,
		Severity: logging.SeverityWarn,
		Category: logging.CategoryNetwork,
		Payload:  payload,
		TraceID:  traceID,
	})
}

// CommandRejected publishes a debug event when a direction command is refused.
func CommandRejected(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload CommandRejectedPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventCommandRejected,
		Tick:     tick,
		Actor:    actor,
		Severity: logging.SeverityDebug,
		Category: logging.CategoryNetwork,
		Payload:  payload,
	})
}

// CommandBacklog publishes a warning when the command ring crosses a
// backlog threshold.
func CommandBacklog(ctx context.Context, pub logging.Publisher, tick uint64, payload CommandBacklogPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventCommandBacklog,
		Tick:     tick,
		Severity: logging.SeverityWarn,
		Category: logging.CategoryNetwork,
		Payload:  payload,
	})
}
