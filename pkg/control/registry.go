package control

import (
	"errors"
	"fmt"
)

// ErrDuplicateHandle reports a second registration for the same joint.
var ErrDuplicateHandle = errors.New("handle already registered")

// ErrUnknownJoint reports a handle lookup for a joint nobody registered.
var ErrUnknownJoint = errors.New("no handle registered for joint")

// Registry holds the hardware handles controllers resolve by joint name.
// It is populated once at connect time and read-only afterwards.
type Registry struct {
	order    []string
	states   map[string]StateHandle
	commands map[string]CommandHandle
}

// NewRegistry creates an empty handle registry.
func NewRegistry() *Registry {
	return &Registry{
		states:   make(map[string]StateHandle),
		commands: make(map[string]CommandHandle),
	}
}

// RegisterState adds a joint's state handle.
func (r *Registry) RegisterState(h StateHandle) error {
	if _, dup := r.states[h.Name()]; dup {
		return fmt.Errorf("state %q: %w", h.Name(), ErrDuplicateHandle)
	}
	r.states[h.Name()] = h
	r.order = append(r.order, h.Name())
	return nil
}

// RegisterCommand adds a joint's command handle. The joint's state handle
// must be registered first.
func (r *Registry) RegisterCommand(h CommandHandle) error {
	if _, ok := r.states[h.Name()]; !ok {
		return fmt.Errorf("command %q: %w", h.Name(), ErrUnknownJoint)
	}
	if _, dup := r.commands[h.Name()]; dup {
		return fmt.Errorf("command %q: %w", h.Name(), ErrDuplicateHandle)
	}
	r.commands[h.Name()] = h
	return nil
}

// State returns the state handle for a joint.
func (r *Registry) State(name string) (StateHandle, error) {
	h, ok := r.states[name]
	if !ok {
		return StateHandle{}, fmt.Errorf("state %q: %w", name, ErrUnknownJoint)
	}
	return h, nil
}

// Command returns the command handle for a joint.
func (r *Registry) Command(name string) (CommandHandle, error) {
	h, ok := r.commands[name]
	if !ok {
		return CommandHandle{}, fmt.Errorf("command %q: %w", name, ErrUnknownJoint)
	}
	return h, nil
}

// Names returns the registered joint names in registration order.
func (r *Registry) Names() []string { return r.order }
