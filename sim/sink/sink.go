// Package sink persists simulator outcomes outside the process: JSON lines
// on disk, GreptimeDB tables, or both.
package sink

import (
	"time"

	"github.com/google/uuid"

	"github.com/inference-sim/hostsim/sim"
)

// OutcomeRow is one sim.Outcome stamped with the run it belongs to.
type OutcomeRow struct {
	RunID     string    `json:"run_id"`
	Level     string    `json:"level"`
	Kind      string    `json:"kind"`
	Request   uint64    `json:"request"`
	Server    int       `json:"server"`
	Target    int       `json:"target"`
	Reason    string    `json:"reason,omitempty"`
	Age       float64   `json:"age"`
	Size      int       `json:"size"`
	ClockMs   int64     `json:"clock_ms"`
	Passed    bool      `json:"passed,omitempty"`
	Timestamp time.Time `json:"ts"`
}

// Writer receives outcome rows.
type Writer interface {
	WriteOutcomes(rows []OutcomeRow) error
	Close() error
}

// NewRunID returns a fresh identifier for one level attempt.
func NewRunID() string {
	return uuid.NewString()
}

// Rows converts outcomes to rows. Timestamps are start plus the simulated clock.
func Rows(runID, level string, start time.Time, outcomes []sim.Outcome) []OutcomeRow {
	rows := make([]OutcomeRow, 0, len(outcomes))
	for _, o := range outcomes {
		row := OutcomeRow{
			RunID:     runID,
			Level:     level,
			Kind:      string(o.Kind),
			Request:   uint64(o.Request),
			Server:    int(o.Server),
			Target:    int(o.Target),
			Reason:    string(o.Reason),
			Age:       o.Age,
			Size:      o.Size,
			ClockMs:   o.Clock.Milliseconds(),
			Timestamp: start.Add(o.Clock),
		}
		if o.Results != nil {
			row.Passed = o.Results.Passed
		}
		rows = append(rows, row)
	}
	return rows
}
