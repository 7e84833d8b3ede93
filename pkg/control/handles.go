// Package control provides the hardware-interface handle registry and a
// controller manager stepping position controllers at the control-loop rate.
//
// Handles wrap pointers into the driver's per-joint state arrays. They are
// registered once at connect time; controllers resolve them by joint name
// when they start and read or write through them on every update.
package control

import (
	"errors"
	"fmt"
)

// ErrNilCell reports a handle constructed over a missing state cell.
var ErrNilCell = errors.New("handle cell pointer is nil")

// StateHandle exposes one joint's sensed state to controllers. The pointers
// alias the driver's state arrays and stay valid for the whole session.
type StateHandle struct {
	name     string
	position *float64
	velocity *float64
	effort   *float64
}

// NewStateHandle builds a read-only handle over a joint's state cells.
func NewStateHandle(name string, position, velocity, effort *float64) (StateHandle, error) {
	if name == "" {
		return StateHandle{}, errors.New("state handle needs a joint name")
	}
	if position == nil || velocity == nil || effort == nil {
		return StateHandle{}, fmt.Errorf("state handle %q: %w", name, ErrNilCell)
	}
	return StateHandle{name: name, position: position, velocity: velocity, effort: effort}, nil
}

// Name returns the joint name.
func (h StateHandle) Name() string { return h.name }

// Position returns the last sensed angle in radians.
func (h StateHandle) Position() float64 { return *h.position }

// Velocity returns the last sensed velocity.
func (h StateHandle) Velocity() float64 { return *h.velocity }

// Effort returns the last sensed effort.
func (h StateHandle) Effort() float64 { return *h.effort }

// CommandHandle extends a state handle with a writable position target.
type CommandHandle struct {
	StateHandle
	command *float64
}

// NewCommandHandle builds a writable handle over a joint's command cell.
func NewCommandHandle(state StateHandle, command *float64) (CommandHandle, error) {
	if command == nil {
		return CommandHandle{}, fmt.Errorf("command handle %q: %w", state.Name(), ErrNilCell)
	}
	return CommandHandle{StateHandle: state, command: command}, nil
}

// SetCommand stores a position target for this tick's write step.
func (h CommandHandle) SetCommand(v float64) { *h.command = v }

// Command returns the currently stored position target.
func (h CommandHandle) Command() float64 { return *h.command }
