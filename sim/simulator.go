// sim/simulator.go
//
// The simulation context: arenas of servers and requests indexed by id, the
// active load scenario, the upgrade budget, and the stats for one level
// attempt. Tick advances every component in a fixed order and returns the
// outcomes it produced.

package sim

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/inference-sim/hostsim/sim/trace"
)

// Phase is the lifecycle stage of a level attempt.
type Phase string

const (
	PhasePlanning Phase = "planning"
	PhaseRunning  Phase = "running"
	PhaseGraded   Phase = "graded"
)

// LevelConfig is the in-memory level record supplied by the level catalog.
type LevelConfig struct {
	Schedules        []LoadSchedule
	AvailableServers int
	UpgradePoints    int
	Thresholds       Thresholds
}

// Config holds the engine settings that do not change between levels.
type Config struct {
	Seed          int64
	SpawnQuantum  time.Duration // 0 selects DefaultSpawnQuantum
	RoutingPolicy string        // "" selects nearest
	Positions     PositionLookup
	Trace         *trace.SimulationTrace // nil disables tracing
}

// Simulator owns every server and request for one level attempt.
// It is not safe for concurrent use.
type Simulator struct {
	cfg    Config
	rng    *PartitionedRNG
	router RoutingPolicy

	clock     time.Duration
	tickIndex uint64
	phase     Phase

	servers      map[ServerID]*Server
	serverOrder  []ServerID
	nextServerID ServerID

	requests      map[RequestID]*Request
	requestOrder  []RequestID
	nextRequestID RequestID

	levelSchedules []LoadSchedule
	scenario       *LoadScenario

	stats      GameStats
	thresholds Thresholds
	results    LevelResults
	graded     bool

	points UpgradePoints
}

// NewSimulator returns an empty simulator in the planning phase.
func NewSimulator(cfg Config) *Simulator {
	if cfg.Positions == nil {
		panic("NewSimulator: Positions must not be nil")
	}
	if !IsValidRoutingPolicy(cfg.RoutingPolicy) {
		panic(fmt.Sprintf("NewSimulator: unknown routing policy %q", cfg.RoutingPolicy))
	}
	if cfg.SpawnQuantum <= 0 {
		cfg.SpawnQuantum = DefaultSpawnQuantum
	}
	s := &Simulator{
		cfg:    cfg,
		rng:    NewPartitionedRNG(NewSimulationKey(cfg.Seed)),
		router: NewRoutingPolicy(cfg.RoutingPolicy),
	}
	s.clearAll()
	return s
}

func (s *Simulator) clearAll() {
	s.clock = 0
	s.tickIndex = 0
	s.phase = PhasePlanning
	s.servers = make(map[ServerID]*Server)
	s.serverOrder = nil
	s.nextServerID = 0
	s.clearRun()
}

// clearRun discards requests, scenario and stats but keeps servers.
func (s *Simulator) clearRun() {
	s.requests = make(map[RequestID]*Request)
	s.requestOrder = nil
	s.nextRequestID = 0
	s.scenario = nil
	s.stats = GameStats{}
	s.results = LevelResults{}
	s.graded = false
	s.rng.Reset()
	s.router = NewRoutingPolicy(s.cfg.RoutingPolicy)
	if s.cfg.Trace != nil {
		s.cfg.Trace.Reset()
	}
}

// ResetLevel discards everything and sets up lc from scratch: fresh servers,
// the full upgrade budget, the level's thresholds and schedules.
func (s *Simulator) ResetLevel(lc LevelConfig) {
	s.clearAll()
	s.AddServers(lc.AvailableServers)
	s.points = UpgradePoints{Total: lc.UpgradePoints}
	s.installLevel(lc)
	logrus.Infof("level reset: %d servers, %d upgrade points", lc.AvailableServers, lc.UpgradePoints)
}

// ReloadLevel restarts lc keeping the current servers, their configuration
// and the upgrade budget. Requests, queues, timers and stats are discarded.
func (s *Simulator) ReloadLevel(lc LevelConfig) {
	s.clock = 0
	s.tickIndex = 0
	s.phase = PhasePlanning
	for _, id := range s.serverOrder {
		s.servers[id].clear()
	}
	s.clearRun()
	s.installLevel(lc)
	logrus.Infof("level reloaded: keeping %d servers", len(s.serverOrder))
}

func (s *Simulator) installLevel(lc LevelConfig) {
	s.levelSchedules = make([]LoadSchedule, len(lc.Schedules))
	copy(s.levelSchedules, lc.Schedules)
	s.thresholds = lc.Thresholds
}

// Start begins the schedules installed by the last ResetLevel or ReloadLevel.
func (s *Simulator) Start() {
	s.StartScenario(s.levelSchedules)
}

// StartScenario begins spawning from schedules at the current clock.
func (s *Simulator) StartScenario(schedules []LoadSchedule) {
	s.scenario = NewLoadScenario(schedules, s.cfg.SpawnQuantum)
	s.scenario.Start(s.clock)
	s.phase = PhaseRunning
	s.graded = false
	s.results = LevelResults{}
	logrus.Infof("scenario started at %v with %d schedules", s.clock, len(schedules))
}

// Tick advances the simulation by dt and returns the outcomes in the order
// they happened. Order within a tick: age requests, spawn, arrivals, routing,
// server timers, drain check.
func (s *Simulator) Tick(dt time.Duration) []Outcome {
	if dt < 0 {
		panic(fmt.Sprintf("Tick: negative dt %v", dt))
	}
	s.clock += dt
	s.tickIndex++
	var out []Outcome

	for _, id := range s.requestOrder {
		s.requests[id].Age += dt.Seconds()
	}
	if s.phase == PhaseRunning {
		for _, sc := range s.scenario.Tick(s.clock) {
			for i := 0; i < sc.Count; i++ {
				out = append(out, s.spawnRequest())
			}
		}
	}
	out = s.processArrivals(out)
	out = s.routeRequests(out)
	out = s.advanceServers(dt, out)
	s.compactRequests()

	if s.phase == PhaseRunning && s.scenario.Drained(len(s.requests)) {
		out = append(out, s.grade())
	}
	for _, id := range s.serverOrder {
		s.servers[id].checkInvariant()
	}
	s.recordOutcomes(out)
	return out
}

func (s *Simulator) spawnRequest() Outcome {
	id := s.nextRequestID
	s.nextRequestID++
	req := &Request{
		ID:        id,
		Size:      s.rng.IntInRange(SubsystemRequests, DefaultSizeRange),
		State:     StateUnrouted,
		SpawnedAt: s.clock,
		spawnTick: s.tickIndex,
	}
	s.requests[id] = req
	s.requestOrder = append(s.requestOrder, id)
	logrus.Debugf("[%v] spawned %s", s.clock, req)
	return Outcome{Kind: OutcomeSpawned, Clock: s.clock, Request: id, Server: NoServer, Target: NoServer, Size: req.Size}
}

// processArrivals delivers in-transit requests routed on an earlier tick.
// A busy destination drops the request at arrival.
func (s *Simulator) processArrivals(out []Outcome) []Outcome {
	for _, id := range s.requestOrder {
		req, ok := s.requests[id]
		if !ok || req.State != StateInTransit || req.routedTick >= s.tickIndex {
			continue
		}
		dest := *req.Destination
		srv, ok := s.servers[dest]
		if !ok {
			req.unroute()
			continue
		}
		if srv.IsBusy() {
			s.stats.RecordDropped()
			s.removeRequest(id)
			logrus.Debugf("[%v] request %d dropped: server %d busy, queue %v", s.clock, id, dest, &srv.queue)
			out = append(out, s.outcome(OutcomeDropped, req, dest, NoServer, DropServerBusy))
			continue
		}
		srv.AddRequest(id)
		if cur, _ := srv.Current(); cur == id {
			req.State = StateServing
		} else {
			req.State = StateQueued
		}
		out = append(out, s.outcome(OutcomeAccepted, req, dest, NoServer, DropNone))
	}
	return out
}

// routeRequests assigns a destination to every unrouted request spawned on an
// earlier tick. Requests stay unrouted while no server exists.
func (s *Simulator) routeRequests(out []Outcome) []Outcome {
	var state *RouterState
	for _, id := range s.requestOrder {
		req, ok := s.requests[id]
		if !ok || req.State != StateUnrouted || req.spawnTick >= s.tickIndex {
			continue
		}
		if state == nil {
			state = s.routerState()
		}
		decision, err := s.router.Route(req, state)
		if err != nil {
			logrus.Debugf("[%v] request %d not routed: %v", s.clock, id, err)
			continue
		}
		req.setDestination(decision.Target, s.tickIndex)
		if s.cfg.Trace.RecordsDecisions() {
			s.cfg.Trace.RecordRouting(trace.RoutingRecord{
				RequestID:    uint64(id),
				Clock:        s.clock.Milliseconds(),
				ChosenServer: int(decision.Target),
				Reason:       decision.Reason,
				Distance:     decision.Distance,
			})
		}
		out = append(out, s.outcome(OutcomeRouted, req, NoServer, decision.Target, DropNone))
	}
	return out
}

func (s *Simulator) routerState() *RouterState {
	snaps := make([]RoutingSnapshot, 0, len(s.serverOrder))
	for _, id := range s.serverOrder {
		srv := s.servers[id]
		snaps = append(snaps, RoutingSnapshot{
			ID:         id,
			QueueDepth: srv.QueueLen(),
			Serving:    srv.IsServing(),
			Busy:       srv.IsBusy(),
		})
	}
	return &RouterState{Snapshots: snaps, Positions: s.cfg.Positions}
}

// advanceServers runs every server's timer. A completion either records the
// request as handled or, in proxy mode, forwards or drops it. Forwarded
// requests arrive on a later tick, so server order does not matter.
func (s *Simulator) advanceServers(dt time.Duration, out []Outcome) []Outcome {
	for _, sid := range s.serverOrder {
		srv := s.servers[sid]
		done, ok := srv.advance(dt)
		if ok {
			if next, serving := srv.Current(); serving {
				s.requests[next].State = StateServing
			}
			out = append(out, s.complete(srv, s.requests[done]))
		}
	}
	return out
}

func (s *Simulator) complete(srv *Server, req *Request) Outcome {
	if srv.Mode == ModeProcess {
		s.stats.RecordHandled(req.Age)
		s.removeRequest(req.ID)
		logrus.Debugf("[%v] request %d handled by server %d (age %.3fs)", s.clock, req.ID, srv.ID, req.Age)
		return s.outcome(OutcomeHandled, req, srv.ID, NoServer, DropNone)
	}
	hop := srv.NextHop()
	if !hop.Forward {
		s.stats.RecordDropped()
		s.removeRequest(req.ID)
		logrus.Debugf("[%v] request %d dropped by proxy %d (%s)", s.clock, req.ID, srv.ID, hop.Reason)
		return s.outcome(OutcomeDropped, req, srv.ID, NoServer, hop.Reason)
	}
	req.setDestination(hop.Target, s.tickIndex)
	req.Hops++
	if s.cfg.Trace.RecordsDecisions() {
		s.cfg.Trace.RecordRouting(trace.RoutingRecord{
			RequestID:    uint64(req.ID),
			Clock:        s.clock.Milliseconds(),
			ChosenServer: int(hop.Target),
			Reason:       fmt.Sprintf("proxy %d round-robin", srv.ID),
			Hop:          req.Hops,
		})
	}
	return s.outcome(OutcomeForwarded, req, srv.ID, hop.Target, DropNone)
}

func (s *Simulator) grade() Outcome {
	s.results = Evaluate(s.stats, s.thresholds)
	s.graded = true
	s.phase = PhaseGraded
	logrus.Infof("[%v] level graded: %v", s.clock, s.results)
	res := s.results
	return Outcome{Kind: OutcomeGraded, Clock: s.clock, Server: NoServer, Target: NoServer, Results: &res}
}

func (s *Simulator) outcome(kind OutcomeKind, req *Request, server, target ServerID, reason DropReason) Outcome {
	return Outcome{
		Kind:    kind,
		Clock:   s.clock,
		Request: req.ID,
		Server:  server,
		Target:  target,
		Age:     req.Age,
		Size:    req.Size,
		Reason:  reason,
	}
}

func (s *Simulator) recordOutcomes(out []Outcome) {
	if !s.cfg.Trace.RecordsOutcomes() {
		return
	}
	for _, o := range out {
		if o.Kind == OutcomeGraded {
			continue
		}
		s.cfg.Trace.RecordOutcome(trace.OutcomeRecord{
			RequestID: uint64(o.Request),
			Clock:     o.Clock.Milliseconds(),
			Server:    int(o.Server),
			Kind:      string(o.Kind),
			Reason:    string(o.Reason),
			Age:       o.Age,
		})
	}
}

func (s *Simulator) removeRequest(id RequestID) {
	delete(s.requests, id)
}

// compactRequests drops ids of removed requests from the iteration order.
func (s *Simulator) compactRequests() {
	if len(s.requestOrder) == len(s.requests) {
		return
	}
	kept := s.requestOrder[:0]
	for _, id := range s.requestOrder {
		if _, ok := s.requests[id]; ok {
			kept = append(kept, id)
		}
	}
	s.requestOrder = kept
}

// AddServers creates n idle process-mode servers and returns their ids.
func (s *Simulator) AddServers(n int) []ServerID {
	ids := make([]ServerID, 0, n)
	for i := 0; i < n; i++ {
		id := s.nextServerID
		s.nextServerID++
		s.servers[id] = NewServer(id)
		s.serverOrder = append(s.serverOrder, id)
		ids = append(ids, id)
	}
	return ids
}

// RemoveAllServers deletes every server and refunds their upgrades. Requests
// queued on or served by a removed server are discarded without being
// counted; requests travelling to one become unrouted.
func (s *Simulator) RemoveAllServers() {
	for _, id := range s.requestOrder {
		req := s.requests[id]
		switch req.State {
		case StateQueued, StateServing:
			s.removeRequest(id)
		case StateInTransit:
			req.unroute()
		}
	}
	s.compactRequests()
	for _, id := range s.serverOrder {
		srv := s.servers[id]
		s.points.Refund(UpgradeRefund(srv.ProcessingPower, srv.QueueSize))
	}
	s.servers = make(map[ServerID]*Server)
	s.serverOrder = nil
	s.nextServerID = 0
}

// SetServerMode switches a server between process and proxy.
func (s *Simulator) SetServerMode(id ServerID, mode ServerMode) error {
	if !validServerModes[mode] {
		return fmt.Errorf("server %d: %w: %q", id, ErrInvalidMode, mode)
	}
	srv, err := s.lookupServer(id)
	if err != nil {
		return err
	}
	srv.SetMode(mode)
	return nil
}

// SetServerOutputs sets the proxy output list of a server. Every output must
// exist; a server may list itself, which drops whatever is forwarded there.
func (s *Simulator) SetServerOutputs(id ServerID, outputs []ServerID) error {
	srv, err := s.lookupServer(id)
	if err != nil {
		return err
	}
	for _, o := range outputs {
		if _, ok := s.servers[o]; !ok {
			return fmt.Errorf("output of server %d: %w: %d", id, ErrUnknownServer, o)
		}
	}
	srv.SetOutputs(outputs)
	return nil
}

func (s *Simulator) lookupServer(id ServerID) (*Server, error) {
	srv, ok := s.servers[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownServer, id)
	}
	return srv, nil
}

// SnapshotStats returns a copy of the running stats.
func (s *Simulator) SnapshotStats() GameStats {
	return s.stats.Clone()
}

// Evaluate returns the frozen verdict once graded, or a provisional
// verdict computed from the current stats.
func (s *Simulator) Evaluate() LevelResults {
	if s.graded {
		return s.results
	}
	return Evaluate(s.stats, s.thresholds)
}

// Results returns the verdict and true once the level has been graded.
func (s *Simulator) Results() (LevelResults, bool) {
	return s.results, s.graded
}

// Clock returns the simulated time since the last reset.
func (s *Simulator) Clock() time.Duration { return s.clock }

// Phase returns the lifecycle stage.
func (s *Simulator) Phase() Phase { return s.phase }

// Thresholds returns the active level's pass requirements.
func (s *Simulator) Thresholds() Thresholds { return s.thresholds }

// InFlight returns the number of requests that have not been handled or dropped.
func (s *Simulator) InFlight() int { return len(s.requests) }

// Progress returns how far the running scenario is through its schedules, in [0, 1].
func (s *Simulator) Progress() float64 {
	if s.scenario == nil {
		return 0
	}
	return s.scenario.Progress(s.clock)
}

// ServerIDs returns the ids of all servers in ascending order.
func (s *Simulator) ServerIDs() []ServerID {
	out := make([]ServerID, len(s.serverOrder))
	copy(out, s.serverOrder)
	return out
}

// Request returns a copy of the request with the given id.
func (s *Simulator) Request(id RequestID) (Request, bool) {
	req, ok := s.requests[id]
	if !ok {
		return Request{}, false
	}
	return *req, true
}

// Requests returns copies of all in-flight requests in id order.
func (s *Simulator) Requests() []Request {
	out := make([]Request, 0, len(s.requests))
	for _, id := range s.requestOrder {
		if req, ok := s.requests[id]; ok {
			out = append(out, *req)
		}
	}
	return out
}

// ServerSnapshot is a read-only copy of a server's state.
type ServerSnapshot struct {
	ID              ServerID
	Mode            ServerMode
	ProcessingPower int
	QueueSize       int
	Queued          []RequestID
	Current         RequestID
	Serving         bool
	Busy            bool
	Timer           ProgressTimer
	Outputs         []ServerID
}

// Server returns a snapshot of one server.
func (s *Simulator) Server(id ServerID) (ServerSnapshot, error) {
	srv, err := s.lookupServer(id)
	if err != nil {
		return ServerSnapshot{}, err
	}
	return snapshotServer(srv), nil
}

// Servers returns snapshots of every server in id order.
func (s *Simulator) Servers() []ServerSnapshot {
	out := make([]ServerSnapshot, 0, len(s.serverOrder))
	for _, id := range s.serverOrder {
		out = append(out, snapshotServer(s.servers[id]))
	}
	return out
}

func snapshotServer(srv *Server) ServerSnapshot {
	cur, serving := srv.Current()
	return ServerSnapshot{
		ID:              srv.ID,
		Mode:            srv.Mode,
		ProcessingPower: srv.ProcessingPower,
		QueueSize:       srv.QueueSize,
		Queued:          srv.Queued(),
		Current:         cur,
		Serving:         serving,
		Busy:            srv.IsBusy(),
		Timer:           srv.Timer(),
		Outputs:         srv.Outputs(),
	}
}
