// Package proto implements the newline-delimited JSON protocol spoken between
// the arena server and its clients.
//
// After the client sends its display name, the server replies with the
// player id, the world size and one wall record per line. From then on the
// server sends one snake record per player and one power record per powerup
// every frame, and the client sends {"moving":"<dir>"} commands.
package proto

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"snake-arena/server/internal/world"
)

// Record field names that identify the entity kind.
const (
	KeyWall  = "wall"
	KeySnake = "snake"
	KeyPower = "power"
)

// Directions accepted in client commands.
const (
	MoveUp    = "up"
	MoveDown  = "down"
	MoveLeft  = "left"
	MoveRight = "right"
	MoveNone  = "none"
)

var (
	// ErrUnknownRecord reports a well-formed object without a known kind field.
	ErrUnknownRecord = errors.New("proto: unknown record kind")
	// ErrUnknownDirection reports a command with an unrecognised direction.
	ErrUnknownDirection = errors.New("proto: unknown direction")
)

// WallRecord is the wire form of a wall.
type WallRecord struct {
	Wall int            `json:"wall" jsonschema:"title=Wall id,required"`
	P1   world.Vector2D `json:"p1" jsonschema:"description=First endpoint,required"`
	P2   world.Vector2D `json:"p2" jsonschema:"description=Second endpoint; not ordered relative to p1,required"`
}

// SnakeRecord is the wire form of a snake.
type SnakeRecord struct {
	Snake int              `json:"snake" jsonschema:"title=Player id,required"`
	Name  string           `json:"name" jsonschema:"description=Display name chosen at handshake,required"`
	Body  []world.Vector2D `json:"body" jsonschema:"description=Segment points ordered tail first and head last,required"`
	Dir   world.Vector2D   `json:"dir" jsonschema:"description=Unit travel direction,required"`
	Score int              `json:"score" jsonschema:"required"`
	Died  bool             `json:"died" jsonschema:"description=True only in the frame the snake died,required"`
	Alive bool             `json:"alive" jsonschema:"required"`
	DC    bool             `json:"dc" jsonschema:"description=Set once in the final record of a disconnected player,required"`
	Join  bool             `json:"join" jsonschema:"description=True in the first frame after the player joined,required"`
}

// PowerRecord is the wire form of a powerup.
type PowerRecord struct {
	Power int            `json:"power" jsonschema:"title=Powerup id,required"`
	Loc   world.Vector2D `json:"loc" jsonschema:"required"`
	Died  bool           `json:"died" jsonschema:"description=True in the frame the powerup was eaten,required"`
}

// Command is a client input line.
type Command struct {
	Moving string `json:"moving" jsonschema:"enum=up,enum=down,enum=left,enum=right,enum=none,required"`
}

// Kind discriminates the variants of Record.
type Kind int

const (
	KindUnknown Kind = iota
	KindWall
	KindSnake
	KindPower
)

func (k Kind) String() string {
	switch k {
	case KindWall:
		return KeyWall
	case KindSnake:
		return KeySnake
	case KindPower:
		return KeyPower
	default:
		return "unknown"
	}
}

// Record is a decoded server line. Exactly one pointer matching Kind is set.
type Record struct {
	Kind  Kind
	Wall  *WallRecord
	Snake *SnakeRecord
	Power *PowerRecord
}

// WallFrom converts a world wall to its record.
func WallFrom(w world.Wall) WallRecord {
	return WallRecord{Wall: w.ID, P1: w.P1, P2: w.P2}
}

// SnakeFrom converts a world snake to its record.
func SnakeFrom(s *world.Snake) SnakeRecord {
	body := make([]world.Vector2D, len(s.Body))
	copy(body, s.Body)
	return SnakeRecord{
		Snake: s.ID,
		Name:  s.Name,
		Body:  body,
		Dir:   s.Dir,
		Score: s.Score,
		Died:  s.Died,
		Alive: s.Alive,
		DC:    s.Disconnected,
		Join:  s.Joined,
	}
}

// PowerFrom converts a world powerup to its record.
func PowerFrom(p *world.Powerup) PowerRecord {
	return PowerRecord{Power: p.ID, Loc: p.Loc, Died: p.Died}
}

// ToWall converts the record back into a world wall.
func (r WallRecord) ToWall() world.Wall {
	return world.Wall{ID: r.Wall, P1: r.P1, P2: r.P2}
}

// EncodeLine marshals v as JSON followed by a newline.
func EncodeLine(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// EncodeHandshake renders the server half of the handshake: id, world size
// and every wall, one per line.
func EncodeHandshake(playerID, size int, walls []world.Wall) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(strconv.Itoa(playerID))
	buf.WriteByte('\n')
	buf.WriteString(strconv.Itoa(size))
	buf.WriteByte('\n')
	for _, w := range walls {
		line, err := EncodeLine(WallFrom(w))
		if err != nil {
			return nil, fmt.Errorf("encode wall %d: %w", w.ID, err)
		}
		buf.Write(line)
	}
	return buf.Bytes(), nil
}

// EncodeFrame renders one full-state frame: every snake, then every powerup.
func EncodeFrame(snakes []SnakeRecord, powers []PowerRecord) ([]byte, error) {
	var buf bytes.Buffer
	for _, s := range snakes {
		line, err := EncodeLine(s)
		if err != nil {
			return nil, fmt.Errorf("encode snake %d: %w", s.Snake, err)
		}
		buf.Write(line)
	}
	for _, p := range powers {
		line, err := EncodeLine(p)
		if err != nil {
			return nil, fmt.Errorf("encode power %d: %w", p.Power, err)
		}
		buf.Write(line)
	}
	return buf.Bytes(), nil
}

// DecodeRecord parses one server line and dispatches on its kind field.
func DecodeRecord(line []byte) (Record, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(line, &fields); err != nil {
		return Record{}, err
	}
	switch {
	case has(fields, KeyWall):
		var rec WallRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			return Record{}, err
		}
		return Record{Kind: KindWall, Wall: &rec}, nil
	case has(fields, KeySnake):
		var rec SnakeRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			return Record{}, err
		}
		return Record{Kind: KindSnake, Snake: &rec}, nil
	case has(fields, KeyPower):
		var rec PowerRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			return Record{}, err
		}
		return Record{Kind: KindPower, Power: &rec}, nil
	}
	return Record{}, ErrUnknownRecord
}

func has(fields map[string]json.RawMessage, key string) bool {
	_, ok := fields[key]
	return ok
}

// ParseName extracts the display name from the client's first line.
func ParseName(line string) string {
	return strings.TrimRight(line, "\r\n")
}

// ParseInt parses a handshake integer line.
func ParseInt(line string) (int, error) {
	return strconv.Atoi(strings.TrimSpace(line))
}

// DecodeCommand parses a client command line.
func DecodeCommand(line []byte) (Command, error) {
	var cmd Command
	if err := json.Unmarshal(line, &cmd); err != nil {
		return Command{}, err
	}
	switch cmd.Moving {
	case MoveUp, MoveDown, MoveLeft, MoveRight, MoveNone:
		return cmd, nil
	}
	return Command{}, fmt.Errorf("%w: %q", ErrUnknownDirection, cmd.Moving)
}

// EncodeCommand renders a command line for the given direction.
func EncodeCommand(moving string) []byte {
	line, _ := EncodeLine(Command{Moving: moving})
	return line
}

// Direction maps the command to a unit vector. "none" yields false.
func (c Command) Direction() (world.Vector2D, bool) {
	switch c.Moving {
	case MoveUp:
		return world.Vec(0, -1), true
	case MoveDown:
		return world.Vec(0, 1), true
	case MoveLeft:
		return world.Vec(-1, 0), true
	case MoveRight:
		return world.Vec(1, 0), true
	}
	return world.Vector2D{}, false
}
