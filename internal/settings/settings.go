// Package settings loads the session configuration: frame period, respawn
// delay, world size and walls. A settings file that cannot be read or does
// not validate is fatal to startup.
package settings

import (
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"snake-arena/server/internal/world"
)

// ErrInvalid marks settings that parsed but cannot be used.
var ErrInvalid = errors.New("settings: invalid")

// Format selects the settings encoding.
type Format string

const (
	FormatXML  Format = "xml"
	FormatJSON Format = "json"
)

// Point is an X/Y pair as written in the settings file.
type Point struct {
	X float64 `xml:"X" json:"X"`
	Y float64 `xml:"Y" json:"Y"`
}

// Wall is one wall entry.
type Wall struct {
	ID int   `xml:"ID" json:"ID"`
	P1 Point `xml:"p1" json:"p1"`
	P2 Point `xml:"p2" json:"p2"`
}

// Settings mirrors the <GameSettings> document. The optional fields fall back
// to the world defaults when absent.
type Settings struct {
	XMLName      xml.Name `xml:"GameSettings" json:"-"`
	MSPerFrame   int      `xml:"MSPerFrame" json:"MSPerFrame"`
	RespawnRate  int      `xml:"RespawnRate" json:"RespawnRate"`
	UniverseSize int      `xml:"UniverseSize" json:"UniverseSize"`
	Walls        []Wall   `xml:"Walls>Wall" json:"Walls"`

	SnakeSpeed   float64 `xml:"SnakeSpeed,omitempty" json:"SnakeSpeed,omitempty"`
	MaxPowerups  *int    `xml:"MaxPowerups,omitempty" json:"MaxPowerups,omitempty"`
	GrowthFrames int     `xml:"GrowthFrames,omitempty" json:"GrowthFrames,omitempty"`
}

// FormatFor picks the encoding from the file extension; anything but .json
// is read as XML.
func FormatFor(path string) Format {
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return FormatJSON
	}
	return FormatXML
}

// Load reads, decodes and validates the settings file at path.
func Load(path string) (Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Settings{}, fmt.Errorf("read settings: %w", err)
	}
	s, err := Parse(data, FormatFor(path))
	if err != nil {
		return Settings{}, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// Parse decodes and validates settings in the given format.
func Parse(data []byte, format Format) (Settings, error) {
	var s Settings
	var err error
	switch format {
	case FormatJSON:
		err = json.Unmarshal(data, &s)
	case FormatXML:
		err = xml.Unmarshal(data, &s)
	default:
		return Settings{}, fmt.Errorf("unknown settings format %q", format)
	}
	if err != nil {
		return Settings{}, fmt.Errorf("decode %s settings: %w", format, err)
	}
	if err := s.Validate(); err != nil {
		return Settings{}, err
	}
	return s, nil
}

// Validate checks the values the simulation relies on.
func (s Settings) Validate() error {
	if s.MSPerFrame <= 0 {
		return fmt.Errorf("%w: MSPerFrame must be positive, got %d", ErrInvalid, s.MSPerFrame)
	}
	if s.UniverseSize < world.MinSize {
		return fmt.Errorf("%w: UniverseSize must be at least %d, got %d", ErrInvalid, world.MinSize, s.UniverseSize)
	}
	if s.RespawnRate < 0 {
		return fmt.Errorf("%w: RespawnRate must not be negative, got %d", ErrInvalid, s.RespawnRate)
	}
	if s.SnakeSpeed < 0 {
		return fmt.Errorf("%w: SnakeSpeed must not be negative, got %v", ErrInvalid, s.SnakeSpeed)
	}
	if s.MaxPowerups != nil && *s.MaxPowerups < 0 {
		return fmt.Errorf("%w: MaxPowerups must not be negative, got %d", ErrInvalid, *s.MaxPowerups)
	}
	if s.GrowthFrames < 0 {
		return fmt.Errorf("%w: GrowthFrames must not be negative, got %d", ErrInvalid, s.GrowthFrames)
	}
	seen := make(map[int]struct{}, len(s.Walls))
	for _, w := range s.Walls {
		if _, dup := seen[w.ID]; dup {
			return fmt.Errorf("%w: duplicate wall id %d", ErrInvalid, w.ID)
		}
		seen[w.ID] = struct{}{}
		if w.P1.X != w.P2.X && w.P1.Y != w.P2.Y {
			return fmt.Errorf("%w: wall %d is not axis-aligned", ErrInvalid, w.ID)
		}
	}
	return nil
}

// FramePeriod returns MSPerFrame as a duration.
func (s Settings) FramePeriod() time.Duration {
	return time.Duration(s.MSPerFrame) * time.Millisecond
}

// WorldConfig converts the settings into a world configuration.
func (s Settings) WorldConfig(seed string) world.Config {
	walls := make([]world.Wall, 0, len(s.Walls))
	for _, w := range s.Walls {
		walls = append(walls, world.Wall{
			ID: w.ID,
			P1: world.Vec(w.P1.X, w.P1.Y),
			P2: world.Vec(w.P2.X, w.P2.Y),
		})
	}
	maxPowerups := world.DefaultMaxPowerups
	if s.MaxPowerups != nil {
		maxPowerups = *s.MaxPowerups
	}
	return world.Config{
		Size:         s.UniverseSize,
		Speed:        s.SnakeSpeed,
		MaxPowerups:  maxPowerups,
		GrowthFrames: s.GrowthFrames,
		Walls:        walls,
		Seed:         seed,
	}
}
