// Package driver runs the fixed-rate joint control loop against a robot
// daemon. It owns the connect/run/stop lifecycle, mirrors sensed joint state
// into controller-visible buffers, and flushes position commands through
// either the high-level motion service or the low-level device controller.
//
// The package depends only on small consumer interfaces so tests and
// alternative transports can stand in for the daemon services.
package driver

import (
	"time"

	"github.com/asterworks/go-aster/pkg/telemetry"
)

// Motion is the daemon's high-level motion service: wake state, joint
// tables, angle reads and writes, stiffness ramps and base moves.
type Motion interface {
	WakeUp() error
	Rest() error
	IsAwake() (bool, error)
	BodyNames(group string) ([]string, error)
	Init(joints []string) error
	Angles(group string) ([]float64, error)
	WriteJoints(values []float64) error
	StiffnessInterpolation(groups []string, value, seconds float64) error
	MoveTo(x, y, theta float64) error
	ManageConcurrence() error
}

// Memory reads named values from the robot's shared memory service.
type Memory interface {
	Data(key string) (string, error)
	Init(joints []string) error
	ListData() ([]float64, error)
	Values(keys []string) ([]float64, error)
}

// LowLevel writes joint position targets straight to the device controller,
// bypassing the motion service's interpolation.
type LowLevel interface {
	Init(joints []string) error
	WriteJoints(values []float64) error
}

// Backends groups the daemon services the driver drives. Motion and Memory
// are always required; LowLevel is consulted only when low-level writes are
// enabled.
type Backends struct {
	Motion   Motion
	Memory   Memory
	LowLevel LowLevel
}

// TelemetrySink receives the per-tick joint state and stiffness messages.
// Publication is fire-and-forget; a slow sink must not stall the loop.
type TelemetrySink interface {
	JointState(telemetry.JointState)
	Stiffness(telemetry.Stiffness)
}

// Diagnostics aggregates and publishes a health report each tick. A failed
// publish tells the driver the robot is no longer observable and triggers
// shutdown.
type Diagnostics interface {
	Publish(stamp time.Time) error
}
