// Package trace provides decision-trace recording for routing and request outcomes.
// It does not import sim; records hold plain values.
package trace

// RoutingRecord captures a single routing decision. Hop is 0 for the initial
// nearest-server assignment and n for the nth proxy forward.
type RoutingRecord struct {
	RequestID    uint64
	Clock        int64 // simulation clock, milliseconds
	ChosenServer int
	Reason       string
	Distance     float64
	Hop          int
}

// OutcomeRecord captures a terminal or intermediate outcome for a request.
type OutcomeRecord struct {
	RequestID uint64
	Clock     int64
	Server    int
	Kind      string
	Reason    string // non-empty for drops
	Age       float64
}
