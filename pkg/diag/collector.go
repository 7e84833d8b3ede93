// Package diag collects joint temperatures and battery charge from the
// robot's memory and publishes aggregated health reports. The control loop
// publishes one report per tick and treats a failed publish as fatal: a
// robot whose health cannot be observed must not keep being driven.
package diag

import (
	"fmt"
	"time"

	"github.com/asterworks/go-aster/pkg/telemetry"
)

// Temperature thresholds in degrees Celsius, battery threshold as a
// fraction of full charge.
const (
	tempWarn    = 70.0
	tempError   = 80.0
	batteryWarn = 0.1
)

const batteryKey = "Device/SubDeviceList/Battery/Charge/Sensor/Value"

// MemoryReader reads batched float values by memory key.
type MemoryReader interface {
	Values(keys []string) ([]float64, error)
}

// Broadcaster delivers a finished report to subscribers.
type Broadcaster interface {
	Report(telemetry.Report) error
}

// Collector builds health reports for the full actuator set, wheels
// included, which is wider than the controlled joint set.
type Collector struct {
	robot       string
	joints      []string
	keys        []string
	memory      MemoryReader
	broadcaster Broadcaster
}

// NewCollector creates a collector for the given actuator names. The robot
// string is the model reported by the daemon and tags every report.
func NewCollector(robot string, joints []string, memory MemoryReader, b Broadcaster) *Collector {
	keys := make([]string, 0, len(joints)+1)
	for _, j := range joints {
		keys = append(keys, "Device/SubDeviceList/"+j+"/Temperature/Sensor/Value")
	}
	keys = append(keys, batteryKey)
	return &Collector{
		robot:       robot,
		joints:      append([]string(nil), joints...),
		keys:        keys,
		memory:      memory,
		broadcaster: b,
	}
}

// Collect reads one batch of temperatures plus battery charge and grades
// them into a report.
func (c *Collector) Collect(stamp time.Time) (telemetry.Report, error) {
	values, err := c.memory.Values(c.keys)
	if err != nil {
		return telemetry.Report{}, fmt.Errorf("read diagnostics values: %w", err)
	}
	if len(values) != len(c.keys) {
		return telemetry.Report{}, fmt.Errorf("diagnostics read returned %d values for %d keys", len(values), len(c.keys))
	}

	report := telemetry.Report{
		Stamp:   stamp,
		Robot:   c.robot,
		Level:   telemetry.LevelOK,
		Battery: values[len(values)-1],
		Joints:  make([]telemetry.JointStatus, len(c.joints)),
	}

	for i, name := range c.joints {
		temp := values[i]
		status := telemetry.JointStatus{Name: name, Level: telemetry.LevelOK, Temperature: temp}
		switch {
		case temp >= tempError:
			status.Level = telemetry.LevelError
			status.Message = "overheating"
		case temp >= tempWarn:
			status.Level = telemetry.LevelWarn
			status.Message = "running hot"
		}
		report.Joints[i] = status
		if status.Level > report.Level {
			report.Level = status.Level
		}
	}

	if report.Battery < batteryWarn && report.Level < telemetry.LevelWarn {
		report.Level = telemetry.LevelWarn
	}
	return report, nil
}

// Publish collects a report and hands it to the broadcaster.
func (c *Collector) Publish(stamp time.Time) error {
	report, err := c.Collect(stamp)
	if err != nil {
		return err
	}
	if err := c.broadcaster.Report(report); err != nil {
		return fmt.Errorf("broadcast diagnostics: %w", err)
	}
	return nil
}
