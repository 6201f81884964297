package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestWriteSchema(t *testing.T) {
	out := filepath.Join(t.TempDir(), "nested", "protocol.schema.json")
	if err := writeSchema(out, buildSchema()); err != nil {
		t.Fatalf("write schema: %v", err)
	}

	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("read schema: %v", err)
	}
	var doc struct {
		Title string `json:"title"`
		OneOf []struct {
			Title string `json:"title"`
			OneOf []struct {
				Title      string                     `json:"title"`
				Properties map[string]json.RawMessage `json:"properties"`
				Required   []string                   `json:"required"`
			} `json:"oneOf"`
		} `json:"oneOf"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("decode schema: %v", err)
	}
	if doc.Title != "Snake Arena Protocol" || len(doc.OneOf) != 2 {
		t.Fatalf("unexpected root %+v", doc)
	}
	records := doc.OneOf[0].OneOf
	if len(records) != 3 {
		t.Fatalf("expected three server records, got %d", len(records))
	}
	snake := records[1]
	for _, key := range []string{"snake", "body", "dir", "dc", "join"} {
		if _, ok := snake.Properties[key]; !ok {
			t.Fatalf("expected snake schema to describe %q", key)
		}
	}
	if len(snake.Required) == 0 {
		t.Fatalf("expected required fields on snake schema")
	}
	if _, err := os.Stat(out + ".tmp"); !os.IsNotExist(err) {
		t.Fatalf("expected temp file to be renamed away")
	}
}
