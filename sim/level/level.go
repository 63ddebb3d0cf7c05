// Package level supplies level definitions to the simulator: the built-in
// campaign, YAML catalogs checked against a CUE schema, progression through
// a catalog, and player plans that configure servers before a run.
package level

import (
	"fmt"
	"time"

	"github.com/inference-sim/hostsim/sim"
)

// ScheduleSpec is the YAML form of a sim.LoadSchedule.
type ScheduleSpec struct {
	RampupSeconds   float64        `yaml:"rampup_seconds"`
	MaxRPS          int            `yaml:"max_rps"`
	RampdownSeconds float64        `yaml:"rampdown_seconds"`
	RequestSizes    *sim.SizeRange `yaml:"request_sizes,omitempty"`
}

// Schedule returns the inactive sim.LoadSchedule this entry describes.
func (s ScheduleSpec) Schedule() sim.LoadSchedule {
	ls := sim.NewLoadSchedule(seconds(s.RampupSeconds), s.MaxRPS, seconds(s.RampdownSeconds))
	if s.RequestSizes != nil {
		ls.RequestSizes = *s.RequestSizes
	}
	return ls
}

// Level is one puzzle: the traffic to survive, the hardware and budget the
// player gets, and the thresholds that decide pass or fail.
type Level struct {
	Title            string         `yaml:"title"`
	Schedules        []ScheduleSpec `yaml:"schedules"`
	AvailableServers int            `yaml:"available_servers"`
	UpgradePoints    int            `yaml:"upgrade_points"`
	IntroText        string         `yaml:"intro_text,omitempty"`
	SuccessText      string         `yaml:"success_text,omitempty"`
	FailureTexts     []string       `yaml:"failure_texts,omitempty"`

	// Fraction of requests in [0, 1] that must be handled.
	RequiredHandledRequests float64 `yaml:"required_handled_requests"`
	// Maximum average response time, seconds.
	RequiredAvgResponseTime float64 `yaml:"required_avg_response_time"`
}

// Config converts the level to the record the simulator consumes.
func (l Level) Config() sim.LevelConfig {
	schedules := make([]sim.LoadSchedule, len(l.Schedules))
	for i, s := range l.Schedules {
		schedules[i] = s.Schedule()
	}
	return sim.LevelConfig{
		Schedules:        schedules,
		AvailableServers: l.AvailableServers,
		UpgradePoints:    l.UpgradePoints,
		Thresholds: sim.Thresholds{
			PassPercentage:      l.RequiredHandledRequests,
			PassAvgResponseTime: l.RequiredAvgResponseTime,
		},
	}
}

// Duration returns the length of the longest schedule.
func (l Level) Duration() time.Duration {
	var longest time.Duration
	for _, s := range l.Schedules {
		if d := seconds(s.RampupSeconds) + seconds(s.RampdownSeconds); d > longest {
			longest = d
		}
	}
	return longest
}

// ExpectedRequests returns the integral of every schedule's rate curve, the
// number of requests a full run spawns to within one per schedule.
func (l Level) ExpectedRequests() float64 {
	total := 0.0
	for _, s := range l.Schedules {
		total += float64(s.MaxRPS) * (s.RampupSeconds + s.RampdownSeconds) / 2
	}
	return total
}

// FailureText picks a failure message, cycling through the list by attempt number.
func (l Level) FailureText(attempt int) string {
	if len(l.FailureTexts) == 0 {
		return "Level failed."
	}
	if attempt < 0 {
		attempt = 0
	}
	return l.FailureTexts[attempt%len(l.FailureTexts)]
}

// Validate checks the semantic rules the schema cannot express.
func (l Level) Validate() error {
	if l.Title == "" {
		return fmt.Errorf("title must not be empty")
	}
	if l.AvailableServers < 0 {
		return fmt.Errorf("%s: available_servers must be >= 0, got %d", l.Title, l.AvailableServers)
	}
	if l.UpgradePoints < 0 {
		return fmt.Errorf("%s: upgrade_points must be >= 0, got %d", l.Title, l.UpgradePoints)
	}
	if l.RequiredHandledRequests < 0 || l.RequiredHandledRequests > 1 {
		return fmt.Errorf("%s: required_handled_requests must be in [0, 1], got %v", l.Title, l.RequiredHandledRequests)
	}
	if l.RequiredAvgResponseTime <= 0 {
		return fmt.Errorf("%s: required_avg_response_time must be > 0, got %v", l.Title, l.RequiredAvgResponseTime)
	}
	for i, s := range l.Schedules {
		if s.RampupSeconds < 0 || s.RampdownSeconds < 0 {
			return fmt.Errorf("%s: schedule[%d]: ramp durations must be >= 0", l.Title, i)
		}
		if s.MaxRPS < 0 {
			return fmt.Errorf("%s: schedule[%d]: max_rps must be >= 0, got %d", l.Title, i, s.MaxRPS)
		}
		if r := s.RequestSizes; r != nil && (r.Min < 1 || r.Max < r.Min) {
			return fmt.Errorf("%s: schedule[%d]: invalid request_sizes [%d, %d)", l.Title, i, r.Min, r.Max)
		}
	}
	return nil
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
