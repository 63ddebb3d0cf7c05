package level

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inference-sim/hostsim/sim"
)

func TestBuiltin_Validates(t *testing.T) {
	c := Builtin()
	require.NoError(t, c.Validate())
	require.Len(t, c.Levels, 3)

	titles := []string{"Alpha Test", "Website Launch", "GMTK Game Jam"}
	for i, title := range titles {
		assert.Equal(t, title, c.Levels[i].Title)
	}
}

func TestLevel_Config(t *testing.T) {
	// GIVEN the first built-in level
	lvl := Builtin().Levels[0]

	// WHEN converted to a simulator config
	lc := lvl.Config()

	// THEN the schedule, hardware and thresholds carry over
	require.Len(t, lc.Schedules, 1)
	assert.Equal(t, 5*time.Second, lc.Schedules[0].Rampup)
	assert.Equal(t, 2, lc.Schedules[0].MaxRPS)
	assert.Equal(t, 5*time.Second, lc.Schedules[0].Rampdown)
	assert.Equal(t, sim.DefaultSizeRange, lc.Schedules[0].RequestSizes)
	assert.Equal(t, 1, lc.AvailableServers)
	assert.Equal(t, 5, lc.UpgradePoints)
	assert.Equal(t, sim.Thresholds{PassPercentage: 1.0, PassAvgResponseTime: 10.0}, lc.Thresholds)
}

func TestLevel_ExpectedRequestsAndDuration(t *testing.T) {
	lvl := Builtin().Levels[0]
	assert.InDelta(t, 10.0, lvl.ExpectedRequests(), 1e-9)
	assert.Equal(t, 10*time.Second, lvl.Duration())
}

func TestScheduleSpec_RequestSizesOverride(t *testing.T) {
	s := ScheduleSpec{RampupSeconds: 1.5, MaxRPS: 3, RequestSizes: &sim.SizeRange{Min: 2, Max: 4}}
	ls := s.Schedule()
	assert.Equal(t, 1500*time.Millisecond, ls.Rampup)
	assert.Equal(t, sim.SizeRange{Min: 2, Max: 4}, ls.RequestSizes)
}

func TestLevel_FailureText_Cycles(t *testing.T) {
	lvl := Level{FailureTexts: []string{"a", "b"}}
	assert.Equal(t, "a", lvl.FailureText(0))
	assert.Equal(t, "b", lvl.FailureText(1))
	assert.Equal(t, "a", lvl.FailureText(2))
	assert.Equal(t, "Level failed.", Level{}.FailureText(0))
}

func TestLevel_Validate(t *testing.T) {
	valid := Builtin().Levels[1]
	tests := []struct {
		name   string
		mutate func(*Level)
	}{
		{"empty title", func(l *Level) { l.Title = "" }},
		{"negative servers", func(l *Level) { l.AvailableServers = -1 }},
		{"negative points", func(l *Level) { l.UpgradePoints = -1 }},
		{"percentage above one", func(l *Level) { l.RequiredHandledRequests = 1.5 }},
		{"zero response time", func(l *Level) { l.RequiredAvgResponseTime = 0 }},
		{"negative ramp", func(l *Level) { l.Schedules = []ScheduleSpec{{RampupSeconds: -1}} }},
		{"negative rps", func(l *Level) { l.Schedules = []ScheduleSpec{{MaxRPS: -1}} }},
		{"bad sizes", func(l *Level) {
			l.Schedules = []ScheduleSpec{{MaxRPS: 1, RequestSizes: &sim.SizeRange{Min: 0, Max: 4}}}
		}},
	}
	require.NoError(t, valid.Validate())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := valid
			l.Schedules = append([]ScheduleSpec(nil), valid.Schedules...)
			tt.mutate(&l)
			assert.Error(t, l.Validate())
		})
	}
}
