package sim

import (
	"hash/fnv"
	"math/rand"
)

// SimulationKey is the seed of one reproducible level attempt. Equal keys and
// equal level configuration give equal outcome streams.
type SimulationKey int64

// NewSimulationKey wraps a CLI or config seed.
func NewSimulationKey(seed int64) SimulationKey {
	return SimulationKey(seed)
}

// RNG subsystems. Draws in one subsystem never shift the sequence of another.
const (
	// SubsystemRequests feeds request sizes and is seeded with the key itself.
	SubsystemRequests = "requests"
	// SubsystemLayout feeds spawn positions on the playfield.
	SubsystemLayout = "layout"
)

// PartitionedRNG hands out one lazily created generator per subsystem.
// Subsystems other than SubsystemRequests are seeded with key ^ fnv1a64(name).
// Not safe for concurrent use.
type PartitionedRNG struct {
	key        SimulationKey
	subsystems map[string]*rand.Rand
}

func NewPartitionedRNG(key SimulationKey) *PartitionedRNG {
	return &PartitionedRNG{
		key:        key,
		subsystems: make(map[string]*rand.Rand),
	}
}

// ForSubsystem returns the cached generator for name, creating it on first use.
func (p *PartitionedRNG) ForSubsystem(name string) *rand.Rand {
	if rng, ok := p.subsystems[name]; ok {
		return rng
	}
	rng := rand.New(rand.NewSource(p.seedFor(name)))
	p.subsystems[name] = rng
	return rng
}

// Seed returns a 64-bit value derived from the subsystem's stream, for
// collaborators that run their own hash-based generator.
func (p *PartitionedRNG) Seed(name string) uint64 {
	return p.ForSubsystem(name).Uint64()
}

func (p *PartitionedRNG) seedFor(name string) int64 {
	if name == SubsystemRequests {
		return int64(p.key)
	}
	h := fnv.New64a()
	h.Write([]byte(name))
	return int64(p.key) ^ int64(h.Sum64())
}

func (p *PartitionedRNG) Key() SimulationKey {
	return p.key
}

// Reset drops every generator; the next draws replay from the start.
func (p *PartitionedRNG) Reset() {
	p.subsystems = make(map[string]*rand.Rand)
}

// IntInRange draws from [r.Min, r.Max). An empty range yields r.Min.
func (p *PartitionedRNG) IntInRange(subsystem string, r SizeRange) int {
	if r.Max <= r.Min {
		return r.Min
	}
	return r.Min + p.ForSubsystem(subsystem).Intn(r.Max-r.Min)
}
