package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"reflect"

	"github.com/invopop/jsonschema"

	"snake-arena/server/internal/net/proto"
)

func main() {
	var outPath string
	flag.StringVar(&outPath, "out", "", "path to write the JSON schema")
	flag.Parse()

	if outPath == "" {
		fmt.Fprintln(os.Stderr, "--out is required")
		os.Exit(1)
	}

	if err := writeSchema(outPath, buildSchema()); err != nil {
		fmt.Fprintf(os.Stderr, "failed to write schema: %v\n", err)
		os.Exit(1)
	}
}

// buildSchema describes every JSON line of the protocol: the three server
// records and the client command.
func buildSchema() *jsonschema.Schema {
	reflector := jsonschema.Reflector{
		RequiredFromJSONSchemaTags: true,
		DoNotReference:             true,
	}

	record := func(v any, title, description string) *jsonschema.Schema {
		schema := reflector.ReflectFromType(reflect.TypeOf(v))
		schema.Version = ""
		schema.Title = title
		schema.Description = description
		return schema
	}

	serverLine := &jsonschema.Schema{
		Title:       "Server Record",
		Description: "One line sent by the server after the handshake preamble.",
		OneOf: []*jsonschema.Schema{
			record(proto.WallRecord{}, "Wall", "Axis-aligned wall segment, sent once in the handshake."),
			record(proto.SnakeRecord{}, "Snake", "Full state of one snake, sent every frame."),
			record(proto.PowerRecord{}, "Powerup", "Full state of one powerup, sent every frame."),
		},
	}
	clientLine := record(proto.Command{}, "Command", "Steering line sent by a client after its name.")

	return &jsonschema.Schema{
		Version:     jsonschema.Version,
		Title:       "Snake Arena Protocol",
		Description: "Newline-delimited JSON records exchanged over TCP and the WebSocket bridge.",
		OneOf: []*jsonschema.Schema{
			serverLine,
			clientLine,
		},
	}
}

func writeSchema(outPath string, schema *jsonschema.Schema) error {
	data, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal schema: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return fmt.Errorf("create schema directory: %w", err)
	}

	tmpPath := outPath + ".tmp"
	if err := os.WriteFile(tmpPath, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write temp schema: %w", err)
	}
	if err := os.Rename(tmpPath, outPath); err != nil {
		return fmt.Errorf("replace schema: %w", err)
	}
	return nil
}
