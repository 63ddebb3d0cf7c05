package sim

// GameStats accumulates the outcomes of one level attempt.
type GameStats struct {
	DroppedRequests int
	HandledRequests int
	ResponseTimes   []float64 // request ages at completion, seconds, in completion order

	avgResponseTime float64
}

// RecordHandled appends a response-time sample and recomputes the average.
func (g *GameStats) RecordHandled(age float64) {
	g.ResponseTimes = append(g.ResponseTimes, age)
	g.HandledRequests++
	g.avgResponseTime = CalculateMean(g.ResponseTimes)
}

// RecordDropped counts a dropped request. Drops contribute no response-time sample.
func (g *GameStats) RecordDropped() {
	g.DroppedRequests++
}

// AvgResponseTime returns the mean response time. The boolean is false when
// no request has been handled, in which case the average is not applicable.
func (g GameStats) AvgResponseTime() (float64, bool) {
	if len(g.ResponseTimes) == 0 {
		return 0, false
	}
	return g.avgResponseTime, true
}

// Total returns handled plus dropped.
func (g GameStats) Total() int {
	return g.HandledRequests + g.DroppedRequests
}

// Distribution summarizes the response-time samples.
func (g GameStats) Distribution() Distribution {
	return NewDistribution(g.ResponseTimes)
}

// Clone returns a deep copy safe to hand to callers.
func (g GameStats) Clone() GameStats {
	out := g
	out.ResponseTimes = make([]float64, len(g.ResponseTimes))
	copy(out.ResponseTimes, g.ResponseTimes)
	return out
}
