package level

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/inference-sim/hostsim/sim"
)

// Progression walks through a catalog one level at a time.
type Progression struct {
	catalog   *Catalog
	current   int
	attempts  map[int]int
	completed bool
}

// NewProgression starts at the first level of c.
func NewProgression(c *Catalog) *Progression {
	if c == nil || len(c.Levels) == 0 {
		panic("NewProgression: empty catalog")
	}
	return &Progression{catalog: c, attempts: make(map[int]int)}
}

// Current returns the active level and its index.
func (p *Progression) Current() (int, Level) {
	return p.current, p.catalog.Levels[p.current]
}

// Len returns the number of levels.
func (p *Progression) Len() int {
	return len(p.catalog.Levels)
}

// Select jumps to level i.
func (p *Progression) Select(i int) error {
	if i < 0 || i >= len(p.catalog.Levels) {
		return fmt.Errorf("level index %d out of range [0, %d)", i, len(p.catalog.Levels))
	}
	p.current = i
	p.completed = false
	return nil
}

// Advance moves to the next level. It returns false and marks the game
// completed when the current level is the last one.
func (p *Progression) Advance() bool {
	if p.current+1 >= len(p.catalog.Levels) {
		p.completed = true
		logrus.Infof("game completed after %d levels", len(p.catalog.Levels))
		return false
	}
	p.current++
	return true
}

// Completed reports whether Advance ran past the last level.
func (p *Progression) Completed() bool {
	return p.completed
}

// Attempts returns how many results have been recorded for the current level.
func (p *Progression) Attempts() int {
	return p.attempts[p.current]
}

// RecordResult counts an attempt on the current level and returns the
// message to show the player.
func (p *Progression) RecordResult(res sim.LevelResults) string {
	_, lvl := p.Current()
	attempt := p.attempts[p.current]
	p.attempts[p.current]++
	if res.Passed {
		if lvl.SuccessText == "" {
			return "Level passed!"
		}
		return lvl.SuccessText
	}
	return lvl.FailureText(attempt)
}
