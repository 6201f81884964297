package sinks

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"snake-arena/server/logging"
)

func TestJSONWritesOneObjectPerLine(t *testing.T) {
	var buf bytes.Buffer
	sink := NewJSON(&buf, 0)

	at := time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC)
	for tick := uint64(1); tick <= 2; tick++ {
		err := sink.Write(logging.Event{
			Type:     "gameplay.snake_died",
			Tick:     tick,
			Time:     at,
			Actor:    logging.EntityRef{ID: "4", Kind: logging.EntityKindPlayer},
			Severity: logging.SeverityInfo,
			Category: logging.CategoryGameplay,
			Payload:  map[string]any{"cause": "wall"},
		})
		if err != nil {
			t.Fatalf("write: %v", err)
		}
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d: %q", len(lines), buf.String())
	}
	var decoded struct {
		Type     string            `json:"type"`
		Tick     uint64            `json:"tick"`
		Time     string            `json:"time"`
		Severity string            `json:"severity"`
		Actor    logging.EntityRef `json:"actor"`
		Payload  map[string]any    `json:"payload"`
	}
	if err := json.Unmarshal([]byte(lines[1]), &decoded); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.Type != "gameplay.snake_died" || decoded.Tick != 2 || decoded.Severity != "info" {
		t.Fatalf("unexpected event %+v", decoded)
	}
	if decoded.Time != "2024-05-06T07:08:09Z" || decoded.Actor.ID != "4" || decoded.Payload["cause"] != "wall" {
		t.Fatalf("unexpected fields %+v", decoded)
	}
	if err := sink.Close(context.Background()); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := sink.Close(context.Background()); err != nil {
		t.Fatalf("second close: %v", err)
	}
}

func TestConsoleFormatsEvent(t *testing.T) {
	var buf bytes.Buffer
	sink := NewConsoleSink(&buf, logging.ConsoleConfig{})
	sink.Write(logging.Event{
		Type:     "network.malformed_line",
		Tick:     9,
		Actor:    logging.EntityRef{ID: "2", Kind: logging.EntityKindPlayer},
		Severity: logging.SeverityWarn,
		TraceID:  "abc",
	})
	out := buf.String()
	for _, want := range []string{"[network.malformed_line]", "tick=9", "severity=warn", "trace=abc"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in %q", want, out)
		}
	}
}

func TestMemorySinkReset(t *testing.T) {
	sink := NewMemorySink()
	sink.Write(logging.Event{Type: "a"})
	sink.Write(logging.Event{Type: "b"})
	if len(sink.Events()) != 2 {
		t.Fatalf("expected two events")
	}
	sink.Reset()
	if len(sink.Events()) != 0 {
		t.Fatalf("expected reset to clear events")
	}
}
