package sim

import "fmt"

// Thresholds are a level's pass requirements.
type Thresholds struct {
	PassPercentage      float64 `yaml:"pass_percentage" json:"pass_percentage"`
	PassAvgResponseTime float64 `yaml:"pass_avg_response_time" json:"pass_avg_response_time"`
}

// LevelResults is the verdict for one level attempt.
type LevelResults struct {
	PassPercentage      float64
	PassAvgResponseTime float64

	CurrentPercentage      float64
	CurrentAvgResponseTime float64
	HasAvgResponseTime     bool // false when no request was handled

	Passed bool
}

// Evaluate grades stats against thresholds. The handled fraction is 0 when no
// request was ever handled or dropped. Both conditions must hold to pass; an
// attempt with no response-time samples fails the latency condition.
func Evaluate(stats GameStats, th Thresholds) LevelResults {
	res := LevelResults{
		PassPercentage:      th.PassPercentage,
		PassAvgResponseTime: th.PassAvgResponseTime,
	}
	if total := stats.Total(); total > 0 {
		res.CurrentPercentage = float64(stats.HandledRequests) / float64(total)
	}
	res.CurrentAvgResponseTime, res.HasAvgResponseTime = stats.AvgResponseTime()

	res.Passed = res.CurrentPercentage >= th.PassPercentage &&
		res.HasAvgResponseTime &&
		res.CurrentAvgResponseTime <= th.PassAvgResponseTime
	return res
}

// AvgString renders the average response time, or "n/a" when not applicable.
func (r LevelResults) AvgString() string {
	if !r.HasAvgResponseTime {
		return "n/a"
	}
	return fmt.Sprintf("%.2fs", r.CurrentAvgResponseTime)
}

func (r LevelResults) String() string {
	verdict := "FAILED"
	if r.Passed {
		verdict = "PASSED"
	}
	return fmt.Sprintf("%s: handled %.0f%% (need %.0f%%), avg response %s (need <= %.2fs)",
		verdict, r.CurrentPercentage*100, r.PassPercentage*100, r.AvgString(), r.PassAvgResponseTime)
}
