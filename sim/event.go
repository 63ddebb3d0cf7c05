package sim

import (
	"fmt"
	"time"
)

// OutcomeKind classifies what happened to a request during a tick.
type OutcomeKind string

const (
	OutcomeSpawned   OutcomeKind = "spawned"
	OutcomeRouted    OutcomeKind = "routed"
	OutcomeAccepted  OutcomeKind = "accepted"
	OutcomeHandled   OutcomeKind = "handled"
	OutcomeDropped   OutcomeKind = "dropped"
	OutcomeForwarded OutcomeKind = "forwarded"
	OutcomeGraded    OutcomeKind = "graded"
)

// DropReason explains a Dropped outcome.
type DropReason string

const (
	DropNone       DropReason = ""
	DropServerBusy DropReason = "server_busy"
	DropNoOutputs  DropReason = "no_outputs"
	DropSelfLoop   DropReason = "self_loop"
)

// Outcome is one event produced by Tick for the presentation layer to react to.
// Server is where the event happened (NoServer for spawns and grading);
// Target is the next hop for Routed and Forwarded outcomes.
type Outcome struct {
	Kind    OutcomeKind
	Clock   time.Duration
	Request RequestID
	Server  ServerID
	Target  ServerID
	Age     float64 // request age at the time of the outcome, seconds
	Size    int
	Reason  DropReason

	// Results is set only on OutcomeGraded.
	Results *LevelResults
}

func (o Outcome) String() string {
	switch o.Kind {
	case OutcomeGraded:
		return fmt.Sprintf("[%v] graded: %v", o.Clock, o.Results)
	case OutcomeDropped:
		return fmt.Sprintf("[%v] dropped request %d at server %d (%s)", o.Clock, o.Request, o.Server, o.Reason)
	case OutcomeRouted, OutcomeForwarded:
		return fmt.Sprintf("[%v] %s request %d: %d -> %d", o.Clock, o.Kind, o.Request, o.Server, o.Target)
	default:
		return fmt.Sprintf("[%v] %s request %d at server %d", o.Clock, o.Kind, o.Request, o.Server)
	}
}

// CountOutcomes tallies outcomes by kind.
func CountOutcomes(outcomes []Outcome) map[OutcomeKind]int {
	counts := make(map[OutcomeKind]int)
	for _, o := range outcomes {
		counts[o.Kind]++
	}
	return counts
}
