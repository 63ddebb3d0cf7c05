package trace

// TraceLevel controls the verbosity of decision tracing.
type TraceLevel string

const (
	// TraceLevelNone disables tracing (zero overhead).
	TraceLevelNone TraceLevel = "none"
	// TraceLevelDecisions captures routing and forwarding decisions.
	TraceLevelDecisions TraceLevel = "decisions"
	// TraceLevelOutcomes captures decisions plus every request outcome.
	TraceLevelOutcomes TraceLevel = "outcomes"
)

// validTraceLevels maps accepted trace level strings.
var validTraceLevels = map[TraceLevel]bool{
	TraceLevelNone:      true,
	TraceLevelDecisions: true,
	TraceLevelOutcomes:  true,
	"":                  true, // empty defaults to none
}

// IsValidTraceLevel returns true if the given level string is a recognized trace level.
func IsValidTraceLevel(level string) bool {
	return validTraceLevels[TraceLevel(level)]
}

// TraceConfig controls trace collection behavior.
type TraceConfig struct {
	Level TraceLevel
}

// SimulationTrace collects decision records during a simulation.
type SimulationTrace struct {
	Config   TraceConfig
	Routings []RoutingRecord
	Outcomes []OutcomeRecord
}

// NewSimulationTrace creates a SimulationTrace ready for recording.
func NewSimulationTrace(config TraceConfig) *SimulationTrace {
	return &SimulationTrace{
		Config:   config,
		Routings: make([]RoutingRecord, 0),
		Outcomes: make([]OutcomeRecord, 0),
	}
}

// RecordsDecisions reports whether routing records should be kept.
func (st *SimulationTrace) RecordsDecisions() bool {
	return st != nil && (st.Config.Level == TraceLevelDecisions || st.Config.Level == TraceLevelOutcomes)
}

// RecordsOutcomes reports whether outcome records should be kept.
func (st *SimulationTrace) RecordsOutcomes() bool {
	return st != nil && st.Config.Level == TraceLevelOutcomes
}

// RecordRouting appends a routing decision record.
func (st *SimulationTrace) RecordRouting(record RoutingRecord) {
	st.Routings = append(st.Routings, record)
}

// RecordOutcome appends an outcome record.
func (st *SimulationTrace) RecordOutcome(record OutcomeRecord) {
	st.Outcomes = append(st.Outcomes, record)
}

// Reset drops all records, keeping the configuration.
func (st *SimulationTrace) Reset() {
	st.Routings = st.Routings[:0]
	st.Outcomes = st.Outcomes[:0]
}
