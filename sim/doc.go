// Package sim provides the simulation engine for the hosting puzzle: requests
// spawned by ramp schedules travel to servers, wait in bounded queues, and are
// handled, dropped or forwarded by proxies.
//
// # Reading Guide
//
// Start with these files to understand the engine:
//   - server.go: the per-server Idle/Serving state machine and processing timer
//   - schedule.go: ramp schedules and the fractional spawn accumulator
//   - simulator.go: the arenas and the fixed per-tick order
//
// # Tick Order
//
// Each Tick ages existing requests, spawns new ones, delivers requests routed
// on earlier ticks, routes requests spawned on earlier ticks, advances server
// timers, then checks whether the level has drained. A request spawned,
// routed or forwarded on a tick is never acted on again in that same tick.
//
// # Collaborators
//
// Positions, level definitions and presentation live outside this package:
//   - sim/layout: PositionLookup implementation used by the nearest-server router
//   - sim/level: level catalog producing LevelConfig records
//   - sim/trace: optional routing and outcome trace
//   - sim/metrics, sim/sink: consumers of the Outcome list returned by Tick
package sim
