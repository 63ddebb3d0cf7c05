package cmd

import (
	"bufio"
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inference-sim/hostsim/sim"
	"github.com/inference-sim/hostsim/sim/level"
)

// alphaPlan upgrades the single alpha server to power 3 with two queue slots.
const alphaPlan = `
servers:
  - server: 0
    cpu_upgrades: 2
    queue_upgrades: 2
`

func testSettings(t *testing.T) *Settings {
	t.Helper()
	st := defaultSettings()
	return &st
}

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func countLines(t *testing.T, path string) int {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	n := 0
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		n++
	}
	require.NoError(t, scanner.Err())
	return n
}

func TestResolveLevel(t *testing.T) {
	c := level.Builtin()
	tests := []struct {
		sel     string
		want    int
		wantErr bool
	}{
		{"", 0, false},
		{"1", 0, false},
		{"3", 2, false},
		{"Website Launch", 1, false},
		{"0", 0, true},
		{"4", 0, true},
		{"Nope", 0, true},
	}
	for _, tt := range tests {
		got, err := resolveLevel(c, tt.sel)
		if tt.wantErr {
			assert.Error(t, err, tt.sel)
			continue
		}
		require.NoError(t, err, tt.sel)
		assert.Equal(t, tt.want, got, tt.sel)
	}
}

func TestSession_PlanPassesAlphaAndWritesOutcomes(t *testing.T) {
	// GIVEN the alpha level with an upgrade plan, outcome tracing and a JSONL sink
	st := testSettings(t)
	st.Plan = writeTemp(t, "plan.yaml", alphaPlan)
	st.Trace = "outcomes"
	st.SinkJSONL = filepath.Join(t.TempDir(), "outcomes.jsonl")
	sess, err := newSession(st)
	require.NoError(t, err)

	// WHEN the level is played headless
	var out bytes.Buffer
	passed, err := runCampaign(sess, &out)
	require.NoError(t, err)
	require.NoError(t, sess.Close())

	// THEN it passes, the report is printed and every outcome reached the sink
	assert.True(t, passed, out.String())
	assert.Contains(t, out.String(), "=== Alpha Test ===")
	assert.Contains(t, out.String(), "PASSED")
	assert.Contains(t, out.String(), "routing:")
	assert.Equal(t, observedOutcomes(t, sess), countLines(t, st.SinkJSONL))
}

// observedOutcomes sums the recorder's outcome counter over every kind.
func observedOutcomes(t *testing.T, sess *session) int {
	t.Helper()
	families, err := sess.recorder.Registry().Gather()
	require.NoError(t, err)
	total := 0.0
	for _, mf := range families {
		if mf.GetName() != "hostsim_sim_outcomes_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			total += m.GetCounter().GetValue()
		}
	}
	require.Positive(t, total)
	return int(total)
}

func TestSession_UnupgradedAlphaFails(t *testing.T) {
	// GIVEN the alpha level with a single base server
	st := testSettings(t)
	st.Campaign = true
	sess, err := newSession(st)
	require.NoError(t, err)
	defer sess.Close()

	// WHEN played in campaign mode
	var out bytes.Buffer
	passed, err := runCampaign(sess, &out)

	// THEN it fails and the campaign stops at the first level
	require.NoError(t, err)
	assert.False(t, passed)
	assert.Contains(t, out.String(), "FAILED")
	assert.Contains(t, out.String(), level.Builtin().Levels[0].FailureTexts[0])
	idx, _ := sess.progression.Current()
	assert.Equal(t, 0, idx)
	assert.Positive(t, sess.sim.SnapshotStats().DroppedRequests)
}

func TestSession_MaxTicksExceeded(t *testing.T) {
	st := testSettings(t)
	st.MaxTicks = 5
	sess, err := newSession(st)
	require.NoError(t, err)
	defer sess.Close()

	_, err = sess.play()
	assert.ErrorContains(t, err, "not graded")
}

func TestSession_ReloadKeepsUpgrades(t *testing.T) {
	// GIVEN a session whose plan upgraded the server
	st := testSettings(t)
	st.Plan = writeTemp(t, "plan.yaml", alphaPlan)
	sess, err := newSession(st)
	require.NoError(t, err)
	defer sess.Close()
	firstRun := sess.runID

	// WHEN reloaded and then reset
	sess.reloadLevel()
	reloaded, _ := sess.sim.Server(0)
	require.NoError(t, sess.resetLevel())
	reset, _ := sess.sim.Server(0)

	// THEN reload keeps the upgrades, reset reapplies the plan, and each attempt gets a new run id
	assert.Equal(t, 3, reloaded.ProcessingPower)
	assert.Equal(t, 3, reset.ProcessingPower)
	assert.Equal(t, 5, sess.sim.Points().Assigned)
	assert.NotEqual(t, firstRun, sess.runID)
	assert.Equal(t, sim.PhasePlanning, sess.sim.Phase())
}

func TestSession_CustomCatalogAndBadPlan(t *testing.T) {
	catalog := writeTemp(t, "catalog.yaml", `
levels:
  - title: Tiny
    schedules:
      - rampup_seconds: 1
        max_rps: 1
        rampdown_seconds: 1
    available_servers: 1
    upgrade_points: 0
    required_handled_requests: 0
    required_avg_response_time: 30
`)
	st := testSettings(t)
	st.Catalog = catalog
	st.Level = "Tiny"
	sess, err := newSession(st)
	require.NoError(t, err)
	assert.Equal(t, "Tiny", sess.level().Title)
	require.NoError(t, sess.Close())

	// A plan the level cannot afford fails session setup.
	st.Plan = writeTemp(t, "plan.yaml", alphaPlan)
	_, err = newSession(st)
	assert.ErrorIs(t, err, sim.ErrInsufficientPoints)
}
