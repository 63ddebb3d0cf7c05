// Defines the Request struct that flows through the server graph.

package sim

import (
	"fmt"
	"time"
)

// RequestID identifies a request within one level attempt.
// IDs are allocated in increasing order starting at 0.
type RequestID uint64

// RequestState represents the lifecycle position of a request.
type RequestState string

const (
	// StateUnrouted: spawned but not yet assigned a destination.
	StateUnrouted RequestState = "unrouted"
	// StateInTransit: destination set, arrives on a later tick.
	StateInTransit RequestState = "in_transit"
	// StateQueued: waiting in a server's queue.
	StateQueued RequestState = "queued"
	// StateServing: the current request of a server.
	StateServing RequestState = "serving"
)

// Request models a single unit of traffic.
//
// Age is the number of simulated seconds since the request was spawned and
// keeps growing while it travels, waits and is served. It is the value
// recorded as the response time when the request is handled.
type Request struct {
	ID    RequestID
	Size  int     // cosmetic weight in [1, 32)
	Age   float64 // seconds since spawn
	State RequestState

	// Destination is the server the request is travelling to or resides on.
	// Nil while unrouted.
	Destination *ServerID

	SpawnedAt time.Duration // simulation clock at spawn
	Hops      int           // number of proxy forwards so far

	spawnTick  uint64 // tick index on which the request was spawned
	routedTick uint64 // tick index of the last routing or forward
}

// String renders a compact representation used in debug logs.
func (r *Request) String() string {
	dest := "none"
	if r.Destination != nil {
		dest = fmt.Sprintf("%d", *r.Destination)
	}
	return fmt.Sprintf("Request(id=%d, state=%s, dest=%s, age=%.3fs)", r.ID, r.State, dest, r.Age)
}

// HasDestination reports whether the request has been routed.
func (r *Request) HasDestination() bool {
	return r.Destination != nil
}

func (r *Request) setDestination(id ServerID, tick uint64) {
	dest := id
	r.Destination = &dest
	r.State = StateInTransit
	r.routedTick = tick
}

func (r *Request) unroute() {
	r.Destination = nil
	r.State = StateUnrouted
}
