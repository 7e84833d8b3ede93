package daemon

import (
	"fmt"

	"github.com/asterworks/go-aster/pkg/driver"
)

// jointAlias is the device-controller alias grouping all controlled joint
// position actuators. Writes address the whole set through it.
const jointAlias = "jointActuator"

// DCM is the client for the daemon's low-level device controller. Position
// commands bypass the motion service's interpolation entirely.
type DCM struct {
	session  *Session
	offsetMS int
	ready    bool
}

var _ driver.LowLevel = (*DCM)(nil)

// NewDCM creates a device-controller client. Commands are timestamped one
// control period ahead so the controller always has a fresh target to
// interpolate toward.
func NewDCM(s *Session, controllerFreq float64) *DCM {
	offset := int(1000.0 / controllerFreq)
	if offset < 1 {
		offset = 1
	}
	return &DCM{session: s, offsetMS: offset}
}

// Init registers the actuator alias for the controlled joint set.
func (d *DCM) Init(joints []string) error {
	keys := make([]string, len(joints))
	for i, j := range joints {
		keys[i] = "Device/SubDeviceList/" + j + "/Position/Actuator/Value"
	}
	req := struct {
		Alias string   `json:"alias"`
		Keys  []string `json:"keys"`
	}{Alias: jointAlias, Keys: keys}
	if err := d.session.call("dcm", "create_alias", req, nil); err != nil {
		return err
	}
	d.ready = true
	return nil
}

// WriteJoints sends position targets for the aliased joint set, replacing
// any previously queued commands.
func (d *DCM) WriteJoints(values []float64) error {
	if !d.ready {
		return fmt.Errorf("device controller alias not initialized")
	}
	req := struct {
		Alias    string    `json:"alias"`
		Values   []float64 `json:"values"`
		OffsetMS int       `json:"offset_ms"`
		Merge    string    `json:"merge"`
	}{Alias: jointAlias, Values: values, OffsetMS: d.offsetMS, Merge: "ClearAll"}
	return d.session.call("dcm", "set_alias", req, nil)
}
