package cmd

import (
	"fmt"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/inference-sim/hostsim/sim"
	"github.com/inference-sim/hostsim/sim/level"
	"github.com/inference-sim/hostsim/sim/metrics"
	"github.com/inference-sim/hostsim/sim/sink"
	"github.com/inference-sim/hostsim/sim/trace"
)

// session wires one simulator to the level progression and every
// configured output. run and play both drive a session.
type session struct {
	settings    *Settings
	progression *level.Progression
	plan        *level.Plan
	planLevel   int
	sim         *sim.Simulator
	trace       *trace.SimulationTrace
	recorder    *metrics.Recorder
	writer      *sink.MultiWriter

	runID string
	start time.Time
}

func newSession(st *Settings) (*session, error) {
	catalog := level.Builtin()
	if st.Catalog != "" {
		c, err := level.LoadCatalog(st.Catalog)
		if err != nil {
			return nil, err
		}
		catalog = c
	}
	progression := level.NewProgression(catalog)
	idx, err := resolveLevel(catalog, st.Level)
	if err != nil {
		return nil, err
	}
	if err := progression.Select(idx); err != nil {
		return nil, err
	}

	var plan *level.Plan
	if st.Plan != "" {
		if plan, err = level.LoadPlan(st.Plan); err != nil {
			return nil, err
		}
	}

	var tr *trace.SimulationTrace
	if st.Trace != "" && trace.TraceLevel(st.Trace) != trace.TraceLevelNone {
		tr = trace.NewSimulationTrace(trace.TraceConfig{Level: trace.TraceLevel(st.Trace)})
	}

	writers, err := openWriters(st)
	if err != nil {
		return nil, err
	}

	s := &session{
		settings:    st,
		progression: progression,
		plan:        plan,
		planLevel:   idx,
		sim:         sim.NewSimulator(st.simConfig(tr)),
		trace:       tr,
		recorder:    metrics.NewRecorder(),
		writer:      writers,
	}
	if err := s.resetLevel(); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

func openWriters(st *Settings) (*sink.MultiWriter, error) {
	var writers []sink.Writer
	if st.SinkJSONL != "" {
		fw, err := sink.NewFileWriter(st.SinkJSONL)
		if err != nil {
			return nil, err
		}
		writers = append(writers, fw)
	}
	if st.GreptimeHost != "" {
		gw, err := sink.NewGreptimeDBWriter(sink.GreptimeConfig{
			Host:     st.GreptimeHost,
			Port:     st.GreptimePort,
			Database: st.GreptimeDatabase,
			Table:    st.GreptimeTable,
		})
		if err != nil {
			_ = sink.NewMultiWriter(writers...).Close()
			return nil, err
		}
		writers = append(writers, gw)
	}
	return sink.NewMultiWriter(writers...), nil
}

// resolveLevel accepts a title or a 1-based index; empty selects the first level.
func resolveLevel(c *level.Catalog, sel string) (int, error) {
	if sel == "" {
		return 0, nil
	}
	if n, err := strconv.Atoi(sel); err == nil {
		if n < 1 || n > len(c.Levels) {
			return 0, fmt.Errorf("level %d out of range [1, %d]", n, len(c.Levels))
		}
		return n - 1, nil
	}
	idx, ok := c.Find(sel)
	if !ok {
		return 0, fmt.Errorf("no level titled %q", sel)
	}
	return idx, nil
}

func (s *session) level() level.Level {
	_, lvl := s.progression.Current()
	return lvl
}

// resetLevel sets the current level up from scratch. The plan only applies
// to the level that was selected when the session started.
func (s *session) resetLevel() error {
	s.sim.ResetLevel(s.level().Config())
	s.beginAttempt()
	if idx, _ := s.progression.Current(); s.plan == nil || idx != s.planLevel {
		return nil
	}
	return s.plan.Apply(s.sim)
}

// reloadLevel restarts the current level keeping servers and upgrades.
func (s *session) reloadLevel() {
	s.sim.ReloadLevel(s.level().Config())
	s.beginAttempt()
}

func (s *session) beginAttempt() {
	s.runID = sink.NewRunID()
	s.start = time.Now()
	s.recorder.Sample(s.sim)
}

// tick advances one step and feeds the outcomes to metrics and sinks.
func (s *session) tick() ([]sim.Outcome, error) {
	out := s.sim.Tick(s.settings.TickDuration())
	s.recorder.Observe(out)
	s.recorder.Sample(s.sim)
	if len(out) > 0 && s.writer.Len() > 0 {
		if err := s.writer.WriteOutcomes(sink.Rows(s.runID, s.level().Title, s.start, out)); err != nil {
			return out, fmt.Errorf("writing outcomes: %w", err)
		}
	}
	return out, nil
}

// play starts the current level and ticks until it is graded.
func (s *session) play() (sim.LevelResults, error) {
	s.sim.Start()
	for i := 0; i < s.settings.MaxTicks; i++ {
		if _, err := s.tick(); err != nil {
			return sim.LevelResults{}, err
		}
		if res, ok := s.sim.Results(); ok {
			return res, nil
		}
	}
	return sim.LevelResults{}, fmt.Errorf("level %q not graded after %d ticks (%v simulated)",
		s.level().Title, s.settings.MaxTicks, s.sim.Clock())
}

// advance moves to the next level, reporting false at the end of the catalog.
func (s *session) advance() (bool, error) {
	if !s.progression.Advance() {
		return false, nil
	}
	logrus.Infof("advancing to level %q", s.level().Title)
	return true, s.resetLevel()
}

func (s *session) Close() error {
	return s.writer.Close()
}
