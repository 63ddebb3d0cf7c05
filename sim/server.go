// Implements the server state machine: one current request, a bounded
// FIFO behind it, and a progress timer sized from the server's upgrades.

package sim

import (
	"fmt"
	"time"
)

// ServerID identifies a server within one level attempt.
type ServerID int

// NoServer marks an Outcome that is not attached to a server.
const NoServer ServerID = -1

// ServerMode selects what a server does with a request once its timer fires.
type ServerMode string

const (
	// ModeProcess records the request as handled.
	ModeProcess ServerMode = "process"
	// ModeProxy forwards the request to the next output in round-robin order.
	ModeProxy ServerMode = "proxy"
)

// BaselineProcessing is the service time of a power-1 server in process mode.
const BaselineProcessing = 2000 * time.Millisecond

var validServerModes = map[ServerMode]bool{
	ModeProcess: true,
	ModeProxy:   true,
}

// IsValidServerMode returns true if name is a recognized server mode.
func IsValidServerMode(name string) bool {
	return validServerModes[ServerMode(name)]
}

// ParseServerMode converts a mode name to a ServerMode.
func ParseServerMode(name string) (ServerMode, error) {
	if !IsValidServerMode(name) {
		return "", fmt.Errorf("%w: %q", ErrInvalidMode, name)
	}
	return ServerMode(name), nil
}

// ProgressTimer is a one-shot countdown. It fires on the first Advance that
// brings Elapsed to Total, including the first Advance of a zero-length timer,
// and stays finished until reset.
type ProgressTimer struct {
	Total   time.Duration
	Elapsed time.Duration

	fired bool
}

// Finished reports whether the timer has fired.
func (t ProgressTimer) Finished() bool {
	return t.fired
}

// Advance moves the timer forward by dt and reports whether it finished on this call.
// Leftover time past Total is discarded.
func (t *ProgressTimer) Advance(dt time.Duration) bool {
	if t.fired {
		return false
	}
	t.Elapsed += dt
	if t.Elapsed >= t.Total {
		t.Elapsed = t.Total
		t.fired = true
		return true
	}
	return false
}

// Remaining returns the time until the timer fires.
func (t ProgressTimer) Remaining() time.Duration {
	if t.fired || t.Elapsed >= t.Total {
		return 0
	}
	return t.Total - t.Elapsed
}

// Fraction returns completion in [0, 1].
func (t ProgressTimer) Fraction() float64 {
	if t.Total <= 0 {
		if t.fired {
			return 1
		}
		return 0
	}
	return float64(t.Elapsed) / float64(t.Total)
}

// Server holds at most one request in service and up to QueueSize waiting behind it.
//
// State machine:
//
//	Idle    --AddRequest-->  Serving (request becomes current, timer restarts)
//	Serving --AddRequest-->  Serving (request appended to the queue)
//	Serving --timer fires--> Serving (next queued request becomes current)
//	Serving --timer fires--> Idle    (queue empty)
//
// An idle server never has queued requests.
type Server struct {
	ID              ServerID
	Mode            ServerMode
	ProcessingPower int
	QueueSize       int

	queue   WaitQueue
	current RequestID
	serving bool
	timer   ProgressTimer

	outputs    []ServerID
	nextOutput int
}

// NewServer returns an idle process-mode server with no upgrades.
func NewServer(id ServerID) *Server {
	s := &Server{
		ID:              id,
		Mode:            ModeProcess,
		ProcessingPower: 1,
	}
	s.ResetProgress()
	return s
}

// ProcessingDuration returns how long one request occupies the server.
// Proxy mode runs at twice the speed of process mode. Sub-millisecond
// remainders are truncated.
func (s *Server) ProcessingDuration() time.Duration {
	divisor := s.ProcessingPower
	if s.Mode == ModeProxy {
		divisor *= 2
	}
	if divisor < 1 {
		divisor = 1
	}
	ms := BaselineProcessing.Milliseconds() / int64(divisor)
	return time.Duration(ms) * time.Millisecond
}

// ResetProgress restarts the timer at the full duration for the current configuration.
func (s *Server) ResetProgress() {
	s.timer = ProgressTimer{Total: s.ProcessingDuration()}
}

// IsBusy reports whether the server would refuse a new request.
func (s *Server) IsBusy() bool {
	return s.serving && s.queue.Len() >= s.QueueSize
}

// IsServing reports whether the server has a current request.
func (s *Server) IsServing() bool {
	return s.serving
}

// AddRequest accepts a request. An idle server starts serving it immediately;
// otherwise it is appended to the queue. Callers must check IsBusy first.
func (s *Server) AddRequest(id RequestID) {
	if s.IsBusy() {
		panic(fmt.Sprintf("Server.AddRequest: server %d is busy", s.ID))
	}
	if !s.serving {
		s.current = id
		s.serving = true
		s.ResetProgress()
		return
	}
	s.queue.Enqueue(id)
}

// Current returns the request in service, if any.
func (s *Server) Current() (RequestID, bool) {
	return s.current, s.serving
}

// QueueLen returns the number of waiting requests.
func (s *Server) QueueLen() int {
	return s.queue.Len()
}

// Queued returns the waiting requests in FIFO order.
func (s *Server) Queued() []RequestID {
	return s.queue.Items()
}

// Timer returns a copy of the progress timer.
func (s *Server) Timer() ProgressTimer {
	return s.timer
}

// Outputs returns a copy of the proxy output list.
func (s *Server) Outputs() []ServerID {
	out := make([]ServerID, len(s.outputs))
	copy(out, s.outputs)
	return out
}

// SetOutputs replaces the proxy output list and rewinds the round-robin cursor.
func (s *Server) SetOutputs(outputs []ServerID) {
	s.outputs = make([]ServerID, len(outputs))
	copy(s.outputs, outputs)
	s.nextOutput = 0
}

// SetMode switches between process and proxy. Leaving proxy mode clears the
// output list. The new mode applies to the next request that starts service.
func (s *Server) SetMode(mode ServerMode) {
	if s.Mode == ModeProxy && mode == ModeProcess {
		s.SetOutputs(nil)
	}
	s.Mode = mode
}

// advance runs the timer for dt. When the current request completes, the
// next queued request (if any) becomes current with a fresh timer and the
// completed id is returned. At most one request completes per call.
func (s *Server) advance(dt time.Duration) (RequestID, bool) {
	if !s.serving {
		return 0, false
	}
	if !s.timer.Advance(dt) {
		return 0, false
	}
	done := s.current
	if next, ok := s.queue.Dequeue(); ok {
		s.current = next
	} else {
		s.current = 0
		s.serving = false
	}
	s.ResetProgress()
	return done, true
}

// clear drops the current request and the queue, leaving the server idle.
func (s *Server) clear() {
	s.queue.Clear()
	s.current = 0
	s.serving = false
	s.ResetProgress()
}

// checkInvariant panics if the server is idle but has queued requests.
// Queue length may exceed QueueSize after ResetUpgrades; capacity is only
// enforced on admission.
func (s *Server) checkInvariant() {
	if !s.serving && s.queue.Len() > 0 {
		panic(fmt.Sprintf("server %d: idle with %d queued requests", s.ID, s.queue.Len()))
	}
}
