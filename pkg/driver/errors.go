package driver

import "errors"

var (
	// ErrAlreadyConnected is returned by Connect on a live session.
	ErrAlreadyConnected = errors.New("driver already connected")

	// ErrNotConnected is returned by operations that need a live session.
	ErrNotConnected = errors.New("driver not connected")

	// ErrNotAwake aborts Connect when the robot's motors cannot be
	// confirmed powered.
	ErrNotAwake = errors.New("robot is not awake")

	// ErrNoJoints aborts Connect when the configured motor groups filter
	// down to nothing controllable.
	ErrNoJoints = errors.New("no controllable joints resolved")
)
