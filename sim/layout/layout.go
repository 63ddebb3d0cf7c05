// Package layout places servers and request spawn points in the plane.
// It implements sim.PositionLookup for the nearest-server router.
package layout

import (
	"fmt"

	"github.com/inference-sim/hostsim/sim"
)

// Config describes the grid servers sit on and the band requests spawn in.
type Config struct {
	Columns   int     `yaml:"columns" koanf:"columns"`
	Spacing   float64 `yaml:"spacing" koanf:"spacing"`
	OriginX   float64 `yaml:"origin_x" koanf:"origin_x"`
	OriginY   float64 `yaml:"origin_y" koanf:"origin_y"`
	SpawnMinX float64 `yaml:"spawn_min_x" koanf:"spawn_min_x"`
	SpawnMaxX float64 `yaml:"spawn_max_x" koanf:"spawn_max_x"`
	SpawnY    float64 `yaml:"spawn_y" koanf:"spawn_y"`
}

// DefaultConfig is the standard playfield: a row of
// servers 100 units apart starting at x=-200, requests entering from the
// top edge anywhere in x ∈ [-250, 250).
func DefaultConfig() Config {
	return Config{
		Columns:   5,
		Spacing:   100,
		OriginX:   -200,
		OriginY:   0,
		SpawnMinX: -250,
		SpawnMaxX: 250,
		SpawnY:    300,
	}
}

// Validate checks the grid is usable.
func (c Config) Validate() error {
	if c.Columns < 1 {
		return fmt.Errorf("layout: columns must be >= 1, got %d", c.Columns)
	}
	if c.Spacing <= 0 {
		return fmt.Errorf("layout: spacing must be > 0, got %v", c.Spacing)
	}
	if c.SpawnMaxX < c.SpawnMinX {
		return fmt.Errorf("layout: spawn band [%v, %v) is inverted", c.SpawnMinX, c.SpawnMaxX)
	}
	return nil
}

// Grid is a stateless PositionLookup. Request positions are a pure function
// of the seed and the request id, so a level reset replays the same spawn
// points without any coordination with the simulator.
type Grid struct {
	cfg  Config
	seed uint64
}

// New returns a Grid. Panics on an invalid config; callers validate first.
func New(cfg Config, seed int64) *Grid {
	if err := cfg.Validate(); err != nil {
		panic(err)
	}
	rng := sim.NewPartitionedRNG(sim.NewSimulationKey(seed))
	return &Grid{cfg: cfg, seed: rng.Seed(sim.SubsystemLayout)}
}

// ServerPosition fills rows left to right, moving down one row every Columns servers.
func (g *Grid) ServerPosition(id sim.ServerID) sim.Position {
	col := int(id) % g.cfg.Columns
	row := int(id) / g.cfg.Columns
	return sim.Position{
		X: g.cfg.OriginX + float64(col)*g.cfg.Spacing,
		Y: g.cfg.OriginY - float64(row)*g.cfg.Spacing,
	}
}

// RequestPosition returns the spawn point of a request.
func (g *Grid) RequestPosition(id sim.RequestID) sim.Position {
	frac := float64(splitmix64(g.seed+uint64(id))>>11) / (1 << 53)
	return sim.Position{
		X: g.cfg.SpawnMinX + frac*(g.cfg.SpawnMaxX-g.cfg.SpawnMinX),
		Y: g.cfg.SpawnY,
	}
}

// splitmix64 is a bijective 64-bit mixer.
func splitmix64(x uint64) uint64 {
	x += 0x9e3779b97f4a7c15
	x = (x ^ (x >> 30)) * 0xbf58476d1ce4e5b9
	x = (x ^ (x >> 27)) * 0x94d049bb133111eb
	return x ^ (x >> 31)
}
