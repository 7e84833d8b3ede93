package daemon

import (
	"fmt"

	"github.com/asterworks/go-aster/pkg/driver"
)

// writeSpeedFraction is the maximum joint speed fraction passed with every
// high-level angle write. The motion service interpolates toward the target
// at this fraction of the joint's maximum velocity.
const writeSpeedFraction = 0.2

// Motion is the client for the daemon's high-level motion service.
type Motion struct {
	session *Session
	joints  []string
}

var _ driver.Motion = (*Motion)(nil)

// NewMotion creates a motion client on the session.
func NewMotion(s *Session) *Motion {
	return &Motion{session: s}
}

// WakeUp powers the motors and brings the robot to its initial posture.
func (m *Motion) WakeUp() error {
	return m.session.call("motion", "wake_up", nil, nil)
}

// Rest brings the robot to a safe crouched posture and cuts motor power.
func (m *Motion) Rest() error {
	return m.session.call("motion", "rest", nil, nil)
}

// IsAwake reports whether the motors are powered.
func (m *Motion) IsAwake() (bool, error) {
	var resp struct {
		Awake bool `json:"awake"`
	}
	if err := m.session.call("motion", "is_awake", nil, &resp); err != nil {
		return false, err
	}
	return resp.Awake, nil
}

// BodyNames returns the joint names belonging to a motor group such as
// "LArm", "Body" or "JointActuators".
func (m *Motion) BodyNames(group string) ([]string, error) {
	req := struct {
		Group string `json:"group"`
	}{Group: group}
	var resp struct {
		Names []string `json:"names"`
	}
	if err := m.session.call("motion", "get_body_names", req, &resp); err != nil {
		return nil, err
	}
	return resp.Names, nil
}

// Init records the controlled joint set. Subsequent WriteJoints calls pair
// these names with the given values.
func (m *Motion) Init(joints []string) error {
	m.joints = append([]string(nil), joints...)
	return nil
}

// Angles returns the current angles of a motor group.
func (m *Motion) Angles(group string) ([]float64, error) {
	req := struct {
		Group string `json:"group"`
	}{Group: group}
	var resp struct {
		Angles []float64 `json:"angles"`
	}
	if err := m.session.call("motion", "get_angles", req, &resp); err != nil {
		return nil, err
	}
	return resp.Angles, nil
}

// WriteJoints sends position targets for the joint set recorded by Init.
func (m *Motion) WriteJoints(values []float64) error {
	if len(m.joints) == 0 {
		return fmt.Errorf("motion client not initialized with joints")
	}
	if len(values) != len(m.joints) {
		return fmt.Errorf("motion write: %d values for %d joints", len(values), len(m.joints))
	}
	req := struct {
		Names  []string  `json:"names"`
		Angles []float64 `json:"angles"`
		Speed  float64   `json:"speed"`
	}{Names: m.joints, Angles: values, Speed: writeSpeedFraction}
	return m.session.call("motion", "set_angles", req, nil)
}

// StiffnessInterpolation ramps the stiffness of the named motor groups to
// value over the given duration in seconds.
func (m *Motion) StiffnessInterpolation(groups []string, value, seconds float64) error {
	req := struct {
		Names   []string `json:"names"`
		Value   float64  `json:"value"`
		Seconds float64  `json:"seconds"`
	}{Names: groups, Value: value, Seconds: seconds}
	return m.session.call("motion", "stiffness_interpolation", req, nil)
}

// MoveTo walks the base to the pose (x, y, theta) in the robot frame and
// returns once the motion service accepts the command.
func (m *Motion) MoveTo(x, y, theta float64) error {
	req := struct {
		X     float64 `json:"x"`
		Y     float64 `json:"y"`
		Theta float64 `json:"theta"`
	}{X: x, Y: y, Theta: theta}
	return m.session.call("motion", "move_to", req, nil)
}

// ManageConcurrence tells the motion service to yield device ownership so
// low-level writes do not fight its own control cycle. Must be called before
// the device controller registers its actuator alias.
func (m *Motion) ManageConcurrence() error {
	return m.session.call("motion", "manage_concurrence", nil, nil)
}
