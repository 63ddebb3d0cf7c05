package level

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inference-sim/hostsim/sim"
	"github.com/inference-sim/hostsim/sim/layout"
)

const proxyPlanYAML = `
servers:
  - server: 0
    mode: proxy
    outputs: [1, 2]
  - server: 1
    cpu_upgrades: 2
    queue_upgrades: 1
  - server: 2
    queue_upgrades: 2
`

func newLevelSimulator(t *testing.T, lvl Level) *sim.Simulator {
	t.Helper()
	s := sim.NewSimulator(sim.Config{Seed: 1, Positions: layout.New(layout.DefaultConfig(), 1)})
	s.ResetLevel(lvl.Config())
	return s
}

func TestParsePlan_AndApply(t *testing.T) {
	// GIVEN a plan wiring a proxy to two upgraded workers
	p, err := ParsePlan([]byte(proxyPlanYAML))
	require.NoError(t, err)
	assert.Equal(t, 6, p.Cost())

	// WHEN applied to a level with enough points
	s := newLevelSimulator(t, Builtin().Levels[1])
	require.NoError(t, p.Apply(s))

	// THEN modes, upgrades and outputs are in place
	proxy, _ := s.Server(0)
	assert.Equal(t, sim.ModeProxy, proxy.Mode)
	assert.Equal(t, []sim.ServerID{1, 2}, proxy.Outputs)
	w1, _ := s.Server(1)
	assert.Equal(t, 3, w1.ProcessingPower)
	assert.Equal(t, 1, w1.QueueSize)
	w2, _ := s.Server(2)
	assert.Equal(t, 2, w2.QueueSize)
	assert.Equal(t, 6, s.Points().Assigned)
}

func TestPlan_Apply_InsufficientPoints(t *testing.T) {
	// GIVEN the alpha level (5 points) and a plan costing 6
	p := &Plan{Servers: []ServerPlan{{Server: 0, CPUUpgrades: 3}}}
	s := newLevelSimulator(t, Builtin().Levels[0])
	require.NoError(t, s.PurchaseQueueUpgrade(0))

	// WHEN applied
	err := p.Apply(s)

	// THEN it stops at the upgrade it cannot afford
	assert.True(t, errors.Is(err, sim.ErrInsufficientPoints))
	snap, _ := s.Server(0)
	assert.Equal(t, 3, snap.ProcessingPower)
}

func TestPlan_Apply_UnknownServer(t *testing.T) {
	p := &Plan{Servers: []ServerPlan{{Server: 4, Mode: "proxy"}}}
	s := newLevelSimulator(t, Builtin().Levels[0])
	assert.True(t, errors.Is(p.Apply(s), sim.ErrUnknownServer))
}

func TestParsePlan_Rejects(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"unknown key", "servers:\n  - server: 0\n    turbo: true\n"},
		{"bad mode", "servers:\n  - server: 0\n    mode: cache\n"},
		{"duplicate server", "servers:\n  - server: 0\n  - server: 0\n"},
		{"negative upgrades", "servers:\n  - server: 0\n    cpu_upgrades: -1\n"},
		{"outputs without proxy", "servers:\n  - server: 0\n    outputs: [1]\n"},
		{"negative id", "servers:\n  - server: -1\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParsePlan([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestLoadPlan_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plan.yaml")
	require.NoError(t, os.WriteFile(path, []byte(proxyPlanYAML), 0o644))
	p, err := LoadPlan(path)
	require.NoError(t, err)
	assert.Len(t, p.Servers, 3)

	_, err = LoadPlan(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestBuiltin_AlphaTest_PassesWithUpgradedServer(t *testing.T) {
	// GIVEN the alpha level with its server upgraded to power 3 and 2 queue slots (cost 5)
	lvl := Builtin().Levels[0]
	s := newLevelSimulator(t, lvl)
	plan := &Plan{Servers: []ServerPlan{{Server: 0, CPUUpgrades: 2, QueueUpgrades: 2}}}
	assert.Equal(t, lvl.UpgradePoints, plan.Cost())
	require.NoError(t, plan.Apply(s))

	// WHEN the level is played to completion
	s.Start()
	for i := 0; i < 10000 && s.Phase() != sim.PhaseGraded; i++ {
		s.Tick(100 * time.Millisecond)
	}

	// THEN nothing is dropped and the level passes
	res, ok := s.Results()
	require.True(t, ok)
	assert.Zero(t, s.SnapshotStats().DroppedRequests)
	assert.True(t, res.Passed, res.String())
}
