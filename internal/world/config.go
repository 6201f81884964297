package world

import "strings"

const (
	DefaultSeed         = "arena"
	DefaultSize         = 2000
	DefaultSpeed        = 6.0
	DefaultMaxPowerups  = 20
	DefaultGrowthFrames = 24
)

// Config captures the immutable session parameters of a world.
type Config struct {
	Size         int     `json:"size"`
	Speed        float64 `json:"speed"`
	MaxPowerups  int     `json:"maxPowerups"`
	GrowthFrames int     `json:"growthFrames"`
	Walls        []Wall  `json:"walls"`
	Seed         string  `json:"seed"`
}

func (cfg Config) normalized() Config {
	normalized := cfg
	normalized.Seed = strings.TrimSpace(normalized.Seed)
	if normalized.Seed == "" {
		normalized.Seed = DefaultSeed
	}
	if normalized.Size <= 0 {
		normalized.Size = DefaultSize
	}
	if normalized.Speed <= 0 {
		normalized.Speed = DefaultSpeed
	}
	if normalized.MaxPowerups < 0 {
		normalized.MaxPowerups = 0
	}
	if normalized.GrowthFrames <= 0 {
		normalized.GrowthFrames = DefaultGrowthFrames
	}
	normalized.Walls = append([]Wall(nil), cfg.Walls...)
	return normalized
}
