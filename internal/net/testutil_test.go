package net

import (
	"context"
	"sync"
	"testing"
	"time"

	"snake-arena/server/internal/hub"
	"snake-arena/server/internal/world"
	"snake-arena/server/logging"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []logging.Event
}

func (p *recordingPublisher) Publish(_ context.Context, event logging.Event) {
	p.mu.Lock()
	p.events = append(p.events, event)
	p.mu.Unlock()
}

func (p *recordingPublisher) count(kind logging.EventType) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, event := range p.events {
		if event.Type == kind {
			n++
		}
	}
	return n
}

func newTestHub(t *testing.T, publisher logging.Publisher) *hub.Hub {
	t.Helper()
	h, err := hub.New(hub.Config{
		World:       world.Config{Size: 2000, Seed: "net-test"},
		FramePeriod: 34 * time.Millisecond,
	}, hub.Deps{Publisher: publisher})
	if err != nil {
		t.Fatalf("new hub: %v", err)
	}
	return h
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}
