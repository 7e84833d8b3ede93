// Package joints resolves the controlled joint set from configured motor
// groups and mirrors its state between daemon reads and controller writes.
package joints

import (
	"fmt"
	"strings"
)

// wheelMarker flags joints that are velocity devices, never position
// controlled.
const wheelMarker = "Wheel"

// h21Mimics are joints mechanically coupled to others on H21 bodies. They
// follow their parent joint and must not be driven directly.
var h21Mimics = map[string]struct{}{
	"RHand":     {},
	"LHand":     {},
	"RWristYaw": {},
	"LWristYaw": {},
}

// h21BodyType is the hardware variant whose hand and wrist joints are
// mimics.
const h21BodyType = "H21"

// GroupSource lists the joint names of one motor group, in actuation order.
type GroupSource interface {
	BodyNames(group string) ([]string, error)
}

// Resolver computes the ordered controlled joint set for a session.
type Resolver struct {
	// BodyType is the hardware variant from configuration. It is distinct
	// from the robot model the daemon reports at runtime.
	BodyType string
	// Source resolves group names to joint names, normally the motion
	// service.
	Source GroupSource
}

// Controlled resolves each configured group, concatenates the results in
// group order and filters out joints that cannot be position controlled.
// A group that resolves to no joints aborts resolution.
func (r Resolver) Controlled(groups []string) ([]string, error) {
	var names []string
	for _, group := range groups {
		got, err := r.Source.BodyNames(group)
		if err != nil {
			return nil, fmt.Errorf("resolve motor group %q: %w", group, err)
		}
		if len(got) == 0 {
			return nil, fmt.Errorf("motor group %q resolved to no joints", group)
		}
		names = append(names, got...)
	}
	return r.Filter(names), nil
}

// Filter returns the joints that may be commanded, preserving input order.
// Wheels are never position controlled; on H21 bodies the coupled hand and
// wrist joints are dropped too. The input slice is left untouched.
func (r Resolver) Filter(names []string) []string {
	mimics := r.BodyType == h21BodyType
	out := make([]string, 0, len(names))
	for _, name := range names {
		if strings.Contains(name, wheelMarker) {
			continue
		}
		if mimics {
			if _, coupled := h21Mimics[name]; coupled {
				continue
			}
		}
		out = append(out, name)
	}
	return out
}
