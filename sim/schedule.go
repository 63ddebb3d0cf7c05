// Implements load schedules: piecewise-linear request rates sampled on a
// fixed quantum, with fractional spawns carried between quanta.

package sim

import (
	"fmt"
	"time"
)

// DefaultSpawnQuantum is the interval at which schedules decide how many requests to spawn.
const DefaultSpawnQuantum = 100 * time.Millisecond

// SizeRange is a half-open [Min, Max) range of request sizes.
type SizeRange struct {
	Min int `yaml:"min" json:"min"`
	Max int `yaml:"max" json:"max"`
}

// DefaultSizeRange is the range request sizes are drawn from. A schedule's
// RequestSizes is advisory and does not affect sampling.
var DefaultSizeRange = SizeRange{Min: 1, Max: 32}

// LoadSchedule ramps linearly from 0 to MaxRPS over Rampup, then back to 0
// over Rampdown. It completes once more than Rampup+Rampdown has elapsed
// since Start.
type LoadSchedule struct {
	Rampup       time.Duration
	MaxRPS       int
	Rampdown     time.Duration
	RequestSizes SizeRange

	Active    bool
	Completed bool
	StartTime time.Duration

	accumulated float64
}

// NewLoadSchedule returns an inactive schedule.
func NewLoadSchedule(rampup time.Duration, maxRPS int, rampdown time.Duration) LoadSchedule {
	if rampup < 0 || rampdown < 0 {
		panic(fmt.Sprintf("NewLoadSchedule: negative ramp (rampup=%v, rampdown=%v)", rampup, rampdown))
	}
	if maxRPS < 0 {
		panic(fmt.Sprintf("NewLoadSchedule: negative maxRPS %d", maxRPS))
	}
	return LoadSchedule{
		Rampup:       rampup,
		MaxRPS:       maxRPS,
		Rampdown:     rampdown,
		RequestSizes: DefaultSizeRange,
	}
}

// Duration returns the total length of the ramp.
func (ls *LoadSchedule) Duration() time.Duration {
	return ls.Rampup + ls.Rampdown
}

// Start activates the schedule at the given clock value.
func (ls *LoadSchedule) Start(now time.Duration) {
	ls.Active = true
	ls.Completed = false
	ls.StartTime = now
	ls.accumulated = 0
}

// Rate returns the instantaneous request rate at elapsed time since Start.
// A zero-length phase is skipped, so rampup=0 jumps straight to the rampdown.
func (ls *LoadSchedule) Rate(elapsed time.Duration) float64 {
	maxRPS := float64(ls.MaxRPS)
	switch {
	case elapsed < ls.Rampup:
		return elapsed.Seconds() / ls.Rampup.Seconds() * maxRPS
	case elapsed < ls.Rampup+ls.Rampdown:
		return maxRPS * (1 - (elapsed - ls.Rampup).Seconds()/ls.Rampdown.Seconds())
	default:
		return 0
	}
}

// step evaluates one quantum ending at now and returns the whole number of
// requests to spawn. The fractional remainder is kept for the next quantum.
func (ls *LoadSchedule) step(now, quantum time.Duration) int {
	if !ls.Active || ls.Completed {
		return 0
	}
	elapsed := now - ls.StartTime
	if elapsed > ls.Duration() {
		ls.Completed = true
		return 0
	}
	ls.accumulated += ls.Rate(elapsed) * quantum.Seconds()
	spawn := int(ls.accumulated)
	ls.accumulated -= float64(spawn)
	return spawn
}

// SpawnCount reports how many requests one schedule spawns on a tick.
type SpawnCount struct {
	Schedule int // index into LoadScenario.Schedules
	Count    int
}

// LoadScenario drives a set of schedules that run concurrently from the same start time.
type LoadScenario struct {
	Schedules []LoadSchedule

	quantum  time.Duration
	lastStep time.Duration
	started  bool

	// drain hysteresis: set when the previous check saw nothing in flight
	quietOnce bool
}

// NewLoadScenario copies schedules into a new scenario. A non-positive
// quantum selects DefaultSpawnQuantum.
func NewLoadScenario(schedules []LoadSchedule, quantum time.Duration) *LoadScenario {
	if quantum <= 0 {
		quantum = DefaultSpawnQuantum
	}
	cp := make([]LoadSchedule, len(schedules))
	copy(cp, schedules)
	return &LoadScenario{Schedules: cp, quantum: quantum}
}

// Start activates every schedule at now.
func (sc *LoadScenario) Start(now time.Duration) {
	for i := range sc.Schedules {
		sc.Schedules[i].Start(now)
	}
	sc.lastStep = now
	sc.started = true
	sc.quietOnce = false
}

// Tick evaluates every quantum boundary that falls in (lastStep, now] and
// returns the non-zero spawn counts in schedule order.
func (sc *LoadScenario) Tick(now time.Duration) []SpawnCount {
	if !sc.started {
		return nil
	}
	var spawns []SpawnCount
	for sc.lastStep+sc.quantum <= now {
		sc.lastStep += sc.quantum
		for i := range sc.Schedules {
			if n := sc.Schedules[i].step(sc.lastStep, sc.quantum); n > 0 {
				spawns = append(spawns, SpawnCount{Schedule: i, Count: n})
			}
		}
	}
	return spawns
}

// Completed reports whether every schedule has finished. A scenario with no
// schedules is complete as soon as it starts.
func (sc *LoadScenario) Completed() bool {
	if !sc.started {
		return false
	}
	for i := range sc.Schedules {
		if !sc.Schedules[i].Completed {
			return false
		}
	}
	return true
}

// Drained reports whether the scenario is complete and nothing has been in
// flight for two consecutive checks. Any check that sees work in flight, or
// an unfinished schedule, resets the streak.
func (sc *LoadScenario) Drained(inFlight int) bool {
	if !sc.Completed() || inFlight > 0 {
		sc.quietOnce = false
		return false
	}
	if sc.quietOnce {
		return true
	}
	sc.quietOnce = true
	return false
}

// Progress returns the fraction of the longest schedule that has elapsed, in [0, 1].
func (sc *LoadScenario) Progress(now time.Duration) float64 {
	if !sc.started {
		return 0
	}
	var longest time.Duration
	for i := range sc.Schedules {
		if d := sc.Schedules[i].Duration(); d > longest {
			longest = d
		}
	}
	if longest == 0 {
		return 1
	}
	p := float64(now-sc.lastStartTime()) / float64(longest)
	if p > 1 {
		return 1
	}
	if p < 0 {
		return 0
	}
	return p
}

func (sc *LoadScenario) lastStartTime() time.Duration {
	if len(sc.Schedules) == 0 {
		return sc.lastStep
	}
	return sc.Schedules[0].StartTime
}
