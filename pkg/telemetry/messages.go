// Package telemetry defines the wire messages the driver publishes and a
// WebSocket client for consuming them. Everything on the wire is JSON with
// snake_case keys; the same types are shared by the web server, the flight
// recorder and the terminal monitor.
package telemetry

import (
	"encoding/json"
	"fmt"
	"time"
)

// JointState is the full-body joint snapshot published every control tick.
// Names and Positions are index-aligned. Names covers the whole publication
// set, including non-actuated joints such as wheels, not just the joints
// under control.
type JointState struct {
	Stamp     time.Time `json:"stamp"`
	FrameID   string    `json:"frame_id"`
	Names     []string  `json:"names"`
	Positions []float64 `json:"positions"`
}

// Stiffness is the actuator compliance scalar, republished every tick so
// subscribers can observe it even when unchanged.
type Stiffness struct {
	Stamp time.Time `json:"stamp"`
	Value float64   `json:"value"`
}

// Level grades a diagnostic status.
type Level int

const (
	LevelOK Level = iota
	LevelWarn
	LevelError
)

// String returns the lowercase level name.
func (l Level) String() string {
	switch l {
	case LevelOK:
		return "ok"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	default:
		return fmt.Sprintf("level(%d)", int(l))
	}
}

// MarshalJSON encodes the level as its string name.
func (l Level) MarshalJSON() ([]byte, error) {
	return json.Marshal(l.String())
}

// UnmarshalJSON decodes a level from its string name.
func (l *Level) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	switch s {
	case "ok":
		*l = LevelOK
	case "warn":
		*l = LevelWarn
	case "error":
		*l = LevelError
	default:
		return fmt.Errorf("telemetry: unknown level %q", s)
	}
	return nil
}

// JointStatus is one joint's entry in a diagnostics report.
type JointStatus struct {
	Name        string  `json:"name"`
	Level       Level   `json:"level"`
	Temperature float64 `json:"temperature"`
	Message     string  `json:"message,omitempty"`
}

// Report is the periodic diagnostics array. Level aggregates the worst
// joint status; Battery is the charge fraction in [0,1].
type Report struct {
	Stamp   time.Time     `json:"stamp"`
	Robot   string        `json:"robot"`
	Level   Level         `json:"level"`
	Battery float64       `json:"battery"`
	Joints  []JointStatus `json:"joints"`
}

// Twist is the inbound velocity command: planar linear velocity plus a
// rotation about the vertical axis.
type Twist struct {
	Linear struct {
		X float64 `json:"x"`
		Y float64 `json:"y"`
	} `json:"linear"`
	Angular struct {
		Z float64 `json:"z"`
	} `json:"angular"`
}
