package sim

import "errors"

var (
	// ErrInsufficientPoints is returned when an upgrade costs more than the remaining budget.
	ErrInsufficientPoints = errors.New("insufficient upgrade points")

	// ErrUnknownServer is returned when an operation names a server that does not exist.
	ErrUnknownServer = errors.New("unknown server")

	// ErrNoRoutingTarget is returned by routing policies when no server is available.
	ErrNoRoutingTarget = errors.New("no routing target")

	// ErrInvalidMode is returned when a server mode string is not recognized.
	ErrInvalidMode = errors.New("invalid server mode")
)
