package trace

// TraceSummary aggregates statistics from a SimulationTrace.
type TraceSummary struct {
	TotalDecisions     int
	Forwards           int // decisions with Hop > 0
	MeanDistance       float64
	MaxDistance        float64
	UniqueTargets      int
	TargetDistribution map[int]int // server ID → count of requests routed or forwarded there

	Handled       int
	Dropped       int
	DropsByReason map[string]int
}

// Summarize computes aggregate statistics from a SimulationTrace.
// Safe for nil or empty traces (returns zero-value fields).
func Summarize(st *SimulationTrace) *TraceSummary {
	summary := &TraceSummary{
		TargetDistribution: make(map[int]int),
		DropsByReason:      make(map[string]int),
	}
	if st == nil {
		return summary
	}

	summary.TotalDecisions = len(st.Routings)
	initial := 0
	totalDistance := 0.0
	for _, r := range st.Routings {
		summary.TargetDistribution[r.ChosenServer]++
		if r.Hop > 0 {
			summary.Forwards++
			continue
		}
		initial++
		totalDistance += r.Distance
		if r.Distance > summary.MaxDistance {
			summary.MaxDistance = r.Distance
		}
	}
	if initial > 0 {
		summary.MeanDistance = totalDistance / float64(initial)
	}
	summary.UniqueTargets = len(summary.TargetDistribution)

	for _, o := range st.Outcomes {
		switch o.Kind {
		case "handled":
			summary.Handled++
		case "dropped":
			summary.Dropped++
			summary.DropsByReason[o.Reason]++
		}
	}

	return summary
}
