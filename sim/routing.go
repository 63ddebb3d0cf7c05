package sim

import (
	"fmt"
	"math"
)

// Position is a point in the plane the presentation layer lays entities out on.
type Position struct {
	X float64
	Y float64
}

// Distance returns the Euclidean distance between p and q.
func (p Position) Distance(q Position) float64 {
	return math.Hypot(p.X-q.X, p.Y-q.Y)
}

// PositionLookup supplies entity positions. The engine never stores positions;
// they belong to the collaborator that draws the world.
type PositionLookup interface {
	ServerPosition(id ServerID) Position
	RequestPosition(id RequestID) Position
}

// RoutingSnapshot is a lightweight view of server state for policy decisions.
type RoutingSnapshot struct {
	ID         ServerID
	QueueDepth int
	Serving    bool
	Busy       bool
}

// EffectiveLoad returns queued requests plus the one in service.
func (s RoutingSnapshot) EffectiveLoad() int {
	load := s.QueueDepth
	if s.Serving {
		load++
	}
	return load
}

// RouterState is what a policy sees when routing one request.
// Snapshots are sorted by ascending server id.
type RouterState struct {
	Snapshots []RoutingSnapshot
	Positions PositionLookup
}

// RoutingDecision encapsulates the routing decision for a request.
type RoutingDecision struct {
	Target   ServerID
	Reason   string
	Distance float64 // request-to-target distance, 0 for policies that ignore positions
}

// RoutingPolicy chooses a destination for an unrouted request.
// Implementations return ErrNoRoutingTarget when there are no snapshots.
type RoutingPolicy interface {
	Route(req *Request, state *RouterState) (RoutingDecision, error)
}

// NearestServer routes to the server closest to the request's position.
// Ties are broken by the lowest server id.
type NearestServer struct{}

// Route implements RoutingPolicy for NearestServer.
func (NearestServer) Route(req *Request, state *RouterState) (RoutingDecision, error) {
	if len(state.Snapshots) == 0 {
		return RoutingDecision{}, ErrNoRoutingTarget
	}
	if state.Positions == nil {
		panic("NearestServer.Route: nil position lookup")
	}
	from := state.Positions.RequestPosition(req.ID)
	best := state.Snapshots[0].ID
	bestDist := from.Distance(state.Positions.ServerPosition(best))
	for _, snap := range state.Snapshots[1:] {
		d := from.Distance(state.Positions.ServerPosition(snap.ID))
		if d < bestDist || (d == bestDist && snap.ID < best) {
			best, bestDist = snap.ID, d
		}
	}
	return RoutingDecision{
		Target:   best,
		Distance: bestDist,
		Reason:   fmt.Sprintf("nearest (distance=%.1f)", bestDist),
	}, nil
}

// Assign returns the nearest candidate for req, or false if there are no candidates.
func Assign(req *Request, candidates []ServerID, positions PositionLookup) (ServerID, bool) {
	snaps := make([]RoutingSnapshot, len(candidates))
	for i, id := range candidates {
		snaps[i] = RoutingSnapshot{ID: id}
	}
	d, err := NearestServer{}.Route(req, &RouterState{Snapshots: snaps, Positions: positions})
	if err != nil {
		return 0, false
	}
	return d.Target, true
}

// RoundRobin routes requests in rotation across servers, ignoring positions.
type RoundRobin struct {
	counter int
}

// Route implements RoutingPolicy for RoundRobin.
func (rr *RoundRobin) Route(req *Request, state *RouterState) (RoutingDecision, error) {
	snapshots := state.Snapshots
	if len(snapshots) == 0 {
		return RoutingDecision{}, ErrNoRoutingTarget
	}
	target := snapshots[rr.counter%len(snapshots)]
	rr.counter++
	return RoutingDecision{
		Target: target.ID,
		Reason: fmt.Sprintf("round-robin[%d]", rr.counter-1),
	}, nil
}

// LeastLoaded routes to the server with the fewest queued plus in-service requests.
// Ties are broken by first occurrence in snapshot order (lowest id).
type LeastLoaded struct{}

// Route implements RoutingPolicy for LeastLoaded.
func (LeastLoaded) Route(req *Request, state *RouterState) (RoutingDecision, error) {
	snapshots := state.Snapshots
	if len(snapshots) == 0 {
		return RoutingDecision{}, ErrNoRoutingTarget
	}
	target := snapshots[0]
	minLoad := target.EffectiveLoad()
	for _, snap := range snapshots[1:] {
		if load := snap.EffectiveLoad(); load < minLoad {
			minLoad = load
			target = snap
		}
	}
	return RoutingDecision{
		Target: target.ID,
		Reason: fmt.Sprintf("least-loaded (load=%d)", minLoad),
	}, nil
}

var validRoutingPolicies = map[string]bool{
	"":             true,
	"nearest":      true,
	"round-robin":  true,
	"least-loaded": true,
}

// IsValidRoutingPolicy returns true if name is a recognized routing policy.
// The empty string selects "nearest".
func IsValidRoutingPolicy(name string) bool {
	return validRoutingPolicies[name]
}

// NewRoutingPolicy creates a routing policy by name. Panics on unknown names;
// callers validate with IsValidRoutingPolicy first.
func NewRoutingPolicy(name string) RoutingPolicy {
	switch name {
	case "", "nearest":
		return NearestServer{}
	case "round-robin":
		return &RoundRobin{}
	case "least-loaded":
		return LeastLoaded{}
	default:
		panic(fmt.Sprintf("unknown routing policy %q", name))
	}
}
