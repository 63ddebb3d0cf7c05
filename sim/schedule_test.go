package sim

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func totalSpawned(spawns []SpawnCount) int {
	n := 0
	for _, s := range spawns {
		n += s.Count
	}
	return n
}

// runScenario ticks a started scenario with step dt for the given span and returns the spawn total.
func runScenario(sc *LoadScenario, dt, span time.Duration) int {
	total := 0
	for now := dt; now <= span; now += dt {
		total += totalSpawned(sc.Tick(now))
	}
	return total
}

func TestLoadSchedule_Rate_PiecewiseLinear(t *testing.T) {
	ls := NewLoadSchedule(5*time.Second, 2, 5*time.Second)

	assert.InDelta(t, 0.0, ls.Rate(0), 1e-9)
	assert.InDelta(t, 1.0, ls.Rate(2500*time.Millisecond), 1e-9)
	assert.InDelta(t, 2.0, ls.Rate(5*time.Second), 1e-9)
	assert.InDelta(t, 1.0, ls.Rate(7500*time.Millisecond), 1e-9)
	assert.InDelta(t, 0.0, ls.Rate(10*time.Second), 1e-9)
	assert.InDelta(t, 0.0, ls.Rate(20*time.Second), 1e-9)
}

func TestLoadSchedule_Rate_ZeroRampup_JumpsToMax(t *testing.T) {
	ls := NewLoadSchedule(0, 4, 2*time.Second)
	assert.InDelta(t, 4.0, ls.Rate(0), 1e-9)
	assert.InDelta(t, 2.0, ls.Rate(time.Second), 1e-9)
}

func TestLoadSchedule_Rate_ZeroRampdown(t *testing.T) {
	ls := NewLoadSchedule(2*time.Second, 4, 0)
	assert.InDelta(t, 2.0, ls.Rate(time.Second), 1e-9)
	assert.InDelta(t, 0.0, ls.Rate(2*time.Second), 1e-9)
}

func TestNewLoadSchedule_NegativeRamp_Panics(t *testing.T) {
	assert.Panics(t, func() { NewLoadSchedule(-time.Second, 1, 0) })
	assert.Panics(t, func() { NewLoadSchedule(0, -1, 0) })
}

func TestLoadScenario_SpawnTotal_ConvergesToIntegral(t *testing.T) {
	// GIVEN rampup=5s, max_rps=2, rampdown=5s (integral = 10 requests)
	sc := NewLoadScenario([]LoadSchedule{NewLoadSchedule(5*time.Second, 2, 5*time.Second)}, 0)
	sc.Start(0)

	// WHEN driven to completion at the default quantum
	total := runScenario(sc, DefaultSpawnQuantum, 12*time.Second)

	// THEN the spawn count is within one of the integral
	assert.InDelta(t, 10, total, 1)
	assert.True(t, sc.Completed())
}

func TestLoadScenario_SpawnTotal_IndependentOfFrameRate(t *testing.T) {
	tests := []struct {
		name string
		dt   time.Duration
	}{
		{"16ms frames", 16 * time.Millisecond},
		{"50ms frames", 50 * time.Millisecond},
		{"250ms frames", 250 * time.Millisecond},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// GIVEN rampup=10s, max_rps=3, rampdown=10s (integral = 30 requests)
			sc := NewLoadScenario([]LoadSchedule{NewLoadSchedule(10*time.Second, 3, 10*time.Second)}, 0)
			sc.Start(0)

			total := runScenario(sc, tt.dt, 25*time.Second)

			assert.InDelta(t, 30, total, 1)
		})
	}
}

func TestLoadScenario_LowRate_NotRoundedAway(t *testing.T) {
	// GIVEN a schedule whose per-quantum rate is always below one request
	sc := NewLoadScenario([]LoadSchedule{NewLoadSchedule(10*time.Second, 1, 10*time.Second)}, 0)
	sc.Start(0)

	// WHEN run to completion
	total := runScenario(sc, DefaultSpawnQuantum, 25*time.Second)

	// THEN fractional spawns accumulate into whole requests
	assert.InDelta(t, 10, total, 1)
}

func TestLoadScenario_MultipleSchedules_ReportedByIndex(t *testing.T) {
	sc := NewLoadScenario([]LoadSchedule{
		NewLoadSchedule(time.Second, 10, time.Second),
		NewLoadSchedule(time.Second, 0, time.Second),
	}, 0)
	sc.Start(0)

	var spawns []SpawnCount
	for now := DefaultSpawnQuantum; now <= 3*time.Second; now += DefaultSpawnQuantum {
		spawns = append(spawns, sc.Tick(now)...)
	}

	assert.NotEmpty(t, spawns)
	for _, s := range spawns {
		assert.Equal(t, 0, s.Schedule, "zero-rate schedule must never spawn")
	}
	assert.InDelta(t, 10, totalSpawned(spawns), 1)
}

func TestLoadScenario_NotStarted_NoSpawns(t *testing.T) {
	sc := NewLoadScenario([]LoadSchedule{NewLoadSchedule(time.Second, 10, time.Second)}, 0)
	assert.Empty(t, sc.Tick(time.Second))
	assert.False(t, sc.Completed())
}

func TestLoadScenario_CatchesUpOnLongFrame(t *testing.T) {
	// GIVEN a scenario ticked once with a frame much longer than the quantum
	sc := NewLoadScenario([]LoadSchedule{NewLoadSchedule(5*time.Second, 2, 5*time.Second)}, 0)
	sc.Start(0)

	// WHEN the whole run elapses in a single call
	total := totalSpawned(sc.Tick(11 * time.Second))

	// THEN every quantum boundary was evaluated
	assert.InDelta(t, 10, total, 1)
	assert.True(t, sc.Completed())
}

func TestLoadSchedule_CompletesOnlyAfterFullDuration(t *testing.T) {
	ls := NewLoadSchedule(time.Second, 1, time.Second)
	ls.Start(0)

	ls.step(2*time.Second, DefaultSpawnQuantum)
	assert.False(t, ls.Completed, "elapsed == duration is not yet complete")

	ls.step(2*time.Second+DefaultSpawnQuantum, DefaultSpawnQuantum)
	assert.True(t, ls.Completed)
	assert.Zero(t, ls.step(3*time.Second, DefaultSpawnQuantum))
}

func TestLoadScenario_Drained_Hysteresis(t *testing.T) {
	// GIVEN a completed scenario
	sc := NewLoadScenario(nil, 0)
	sc.Start(0)
	assert.True(t, sc.Completed())

	// WHEN the first quiet check happens
	// THEN it is not yet drained
	assert.False(t, sc.Drained(0))

	// WHEN work appears in between
	assert.False(t, sc.Drained(1))
	// THEN the streak restarts
	assert.False(t, sc.Drained(0))

	// WHEN two consecutive checks see nothing in flight
	// THEN the scenario is drained
	assert.True(t, sc.Drained(0))
}

func TestLoadScenario_Drained_RequiresCompletion(t *testing.T) {
	sc := NewLoadScenario([]LoadSchedule{NewLoadSchedule(time.Second, 1, time.Second)}, 0)
	sc.Start(0)
	assert.False(t, sc.Drained(0))
	assert.False(t, sc.Drained(0))
}

func TestLoadScenario_Progress(t *testing.T) {
	sc := NewLoadScenario([]LoadSchedule{NewLoadSchedule(time.Second, 1, time.Second)}, 0)
	assert.Zero(t, sc.Progress(time.Second))
	sc.Start(0)
	assert.InDelta(t, 0.5, sc.Progress(time.Second), 1e-9)
	assert.InDelta(t, 1.0, sc.Progress(10*time.Second), 1e-9)
}
