package logging_test

import (
	"context"
	"testing"
	"time"

	"snake-arena/server/logging"
	"snake-arena/server/logging/lifecycle"
	"snake-arena/server/logging/sinks"
)

func TestRouterForwardsAboveSeverityFloor(t *testing.T) {
	memory := sinks.NewMemorySink()
	cfg := logging.DefaultConfig()
	cfg.EnabledSinks = []string{"memory"}
	cfg.MinimumSeverity = logging.SeverityInfo
	cfg.Fields = map[string]any{"service": "snake-arena"}

	now := time.Unix(1700000000, 0)
	router, err := logging.NewRouter(cfg, logging.ClockFunc(func() time.Time { return now }), nil, map[string]logging.Sink{"memory": memory})
	if err != nil {
		t.Fatalf("router: %v", err)
	}

	ctx := context.Background()
	router.Publish(ctx, logging.Event{Type: "debug.noise", Severity: logging.SeverityDebug})
	router.Publish(ctx, logging.Event{Type: ""})
	lifecycle.PlayerJoined(ctx, router, 3, logging.EntityRef{ID: "0", Kind: logging.EntityKindPlayer}, "trace-1", lifecycle.PlayerJoinedPayload{Name: "ada", Transport: "tcp"})

	if err := router.Close(ctx); err != nil {
		t.Fatalf("close: %v", err)
	}

	events := memory.Events()
	if len(events) != 1 {
		t.Fatalf("expected 1 event past the floor, got %d", len(events))
	}
	event := events[0]
	if event.Type != lifecycle.EventPlayerJoined || event.Tick != 3 || event.TraceID != "trace-1" {
		t.Fatalf("unexpected event %+v", event)
	}
	if !event.Time.Equal(now) {
		t.Fatalf("expected router clock to stamp the event, got %v", event.Time)
	}
	if event.Extra["service"] != "snake-arena" {
		t.Fatalf("expected static fields to be merged, got %v", event.Extra)
	}
	if stats := router.Stats(); stats.EventsTotal != 1 {
		t.Fatalf("expected 1 forwarded event, got %+v", stats)
	}

	router.Publish(ctx, logging.Event{Type: "after.close", Severity: logging.SeverityError})
	if len(memory.Events()) != 1 {
		t.Fatalf("expected publish after close to be ignored")
	}
}

func TestRouterRejectsUnconfiguredSink(t *testing.T) {
	cfg := logging.DefaultConfig()
	cfg.EnabledSinks = []string{"json"}
	if _, err := logging.NewRouter(cfg, nil, nil, map[string]logging.Sink{}); err == nil {
		t.Fatalf("expected missing sink to fail")
	}
}

func TestParseSeverity(t *testing.T) {
	cases := map[string]logging.Severity{
		"debug": logging.SeverityDebug,
		"INFO":  logging.SeverityInfo,
		"warn":  logging.SeverityWarn,
		"error": logging.SeverityError,
	}
	for raw, want := range cases {
		got, err := logging.ParseSeverity(raw)
		if err != nil || got != want {
			t.Fatalf("ParseSeverity(%q) = %v, %v; want %v", raw, got, err, want)
		}
	}
	if _, err := logging.ParseSeverity("loud"); err == nil {
		t.Fatalf("expected unknown severity to fail")
	}
}
