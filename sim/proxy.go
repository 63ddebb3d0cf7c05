package sim

// ForwardDecision is the result of asking a proxy server where to send a
// finished request.
type ForwardDecision struct {
	Target  ServerID
	Forward bool
	Reason  DropReason // set when Forward is false
}

// NextHop advances the round-robin cursor and returns the next output.
//
// The cursor is advanced before it is read, wrapping to 0 after the last
// output. With outputs [A, B, C] and a fresh cursor the sequence is
// B, C, A, B, ... A proxy with no outputs, or whose chosen output is
// itself, drops the request.
func (s *Server) NextHop() ForwardDecision {
	if len(s.outputs) == 0 {
		return ForwardDecision{Reason: DropNoOutputs}
	}
	if s.nextOutput >= len(s.outputs)-1 {
		s.nextOutput = 0
	} else {
		s.nextOutput++
	}
	target := s.outputs[s.nextOutput]
	if target == s.ID {
		return ForwardDecision{Reason: DropSelfLoop}
	}
	return ForwardDecision{Target: target, Forward: true}
}
