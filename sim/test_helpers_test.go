package sim

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const testTick = 100 * time.Millisecond

// linePositions places server i at (i*100, 0) and every request at the origin,
// so the nearest-server router always picks the lowest id.
type linePositions struct {
	request Position
}

func (p linePositions) ServerPosition(id ServerID) Position {
	return Position{X: float64(id) * 100}
}

func (p linePositions) RequestPosition(RequestID) Position {
	return p.request
}

// mapPositions returns explicit positions, defaulting to the origin.
type mapPositions struct {
	servers  map[ServerID]Position
	requests map[RequestID]Position
}

func (p mapPositions) ServerPosition(id ServerID) Position   { return p.servers[id] }
func (p mapPositions) RequestPosition(id RequestID) Position { return p.requests[id] }

func newTestSimulator(t *testing.T) *Simulator {
	t.Helper()
	return NewSimulator(Config{Seed: 42, Positions: linePositions{}})
}

// tickN advances n ticks of testTick and returns every outcome with the tick
// number (1-based, relative to this call) on which it occurred.
func tickN(s *Simulator, n int) ([]Outcome, []int) {
	var all []Outcome
	var ticks []int
	for i := 1; i <= n; i++ {
		for _, o := range s.Tick(testTick) {
			all = append(all, o)
			ticks = append(ticks, i)
		}
	}
	return all, ticks
}

// runUntilGraded ticks until the simulator grades or limit ticks elapse.
func runUntilGraded(t *testing.T, s *Simulator, limit int) []Outcome {
	t.Helper()
	var all []Outcome
	for i := 0; i < limit; i++ {
		all = append(all, s.Tick(testTick)...)
		if s.Phase() == PhaseGraded {
			return all
		}
	}
	require.FailNow(t, "simulation did not grade", "after %d ticks", limit)
	return nil
}

func findOutcomes(outcomes []Outcome, kind OutcomeKind) []Outcome {
	var out []Outcome
	for _, o := range outcomes {
		if o.Kind == kind {
			out = append(out, o)
		}
	}
	return out
}
