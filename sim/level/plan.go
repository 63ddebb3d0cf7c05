package level

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/inference-sim/hostsim/sim"
)

// ServerPlan configures one server before a run.
type ServerPlan struct {
	Server        int    `yaml:"server"`
	Mode          string `yaml:"mode,omitempty"`
	CPUUpgrades   int    `yaml:"cpu_upgrades,omitempty"`
	QueueUpgrades int    `yaml:"queue_upgrades,omitempty"`
	Outputs       []int  `yaml:"outputs,omitempty"`
}

// Plan is the player's setup for a level: modes, upgrades and proxy wiring.
type Plan struct {
	Servers []ServerPlan `yaml:"servers"`
}

// LoadPlan reads a plan from a YAML file.
func LoadPlan(path string) (*Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading plan: %w", err)
	}
	p, err := ParsePlan(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return p, nil
}

// ParsePlan decodes plan YAML strictly and validates it.
func ParsePlan(data []byte) (*Plan, error) {
	var p Plan
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&p); err != nil {
		return nil, fmt.Errorf("parsing plan: %w", err)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// Validate checks the plan independent of any level.
func (p *Plan) Validate() error {
	seen := make(map[int]bool, len(p.Servers))
	for i, sp := range p.Servers {
		prefix := fmt.Sprintf("servers[%d]", i)
		if sp.Server < 0 {
			return fmt.Errorf("%s: server id must be >= 0, got %d", prefix, sp.Server)
		}
		if seen[sp.Server] {
			return fmt.Errorf("%s: server %d configured twice", prefix, sp.Server)
		}
		seen[sp.Server] = true
		if sp.Mode != "" && !sim.IsValidServerMode(sp.Mode) {
			return fmt.Errorf("%s: unknown mode %q; valid: process, proxy", prefix, sp.Mode)
		}
		if sp.CPUUpgrades < 0 || sp.QueueUpgrades < 0 {
			return fmt.Errorf("%s: upgrade counts must be >= 0", prefix)
		}
		if len(sp.Outputs) > 0 && sp.Mode != string(sim.ModeProxy) {
			return fmt.Errorf("%s: outputs require mode proxy", prefix)
		}
	}
	return nil
}

// Cost returns the upgrade points the plan spends, assuming every server starts at base configuration.
func (p *Plan) Cost() int {
	total := 0
	for _, sp := range p.Servers {
		total += sim.UpgradeRefund(1+sp.CPUUpgrades, sp.QueueUpgrades)
	}
	return total
}

// Apply configures s. Modes are set before outputs so switching a server to
// proxy does not discard its wiring. The first failure is returned; earlier
// steps stay applied.
func (p *Plan) Apply(s *sim.Simulator) error {
	for _, sp := range p.Servers {
		id := sim.ServerID(sp.Server)
		if sp.Mode != "" {
			if err := s.SetServerMode(id, sim.ServerMode(sp.Mode)); err != nil {
				return fmt.Errorf("plan: %w", err)
			}
		}
		for i := 0; i < sp.CPUUpgrades; i++ {
			if err := s.PurchaseCPUUpgrade(id); err != nil {
				return fmt.Errorf("plan: %w", err)
			}
		}
		for i := 0; i < sp.QueueUpgrades; i++ {
			if err := s.PurchaseQueueUpgrade(id); err != nil {
				return fmt.Errorf("plan: %w", err)
			}
		}
	}
	for _, sp := range p.Servers {
		if len(sp.Outputs) == 0 {
			continue
		}
		outputs := make([]sim.ServerID, len(sp.Outputs))
		for i, o := range sp.Outputs {
			outputs[i] = sim.ServerID(o)
		}
		if err := s.SetServerOutputs(sim.ServerID(sp.Server), outputs); err != nil {
			return fmt.Errorf("plan: %w", err)
		}
	}
	return nil
}
