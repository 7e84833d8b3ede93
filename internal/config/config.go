// Package config holds the driver configuration for asterd.
//
// Values resolve in three layers: compiled defaults, an optional JSON file,
// then environment variables for the connection-level settings. Command
// flags are bound on top by the caller.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"
)

// Defaults for the driver. These mirror the values the on-robot tooling
// assumes, so a bare asterd run behaves like the vendor stack.
const (
	DefaultTopicQueue     = 10
	DefaultHighFreq       = 50.0
	DefaultControllerFreq = 15.0
	DefaultJointPrecision = 0.1
	DefaultOdomFrame      = "odom"
	DefaultPrefix         = "aster"
	DefaultDaemonURL      = "http://127.0.0.1:9559"
	DefaultListen         = ":8080"
)

// defaultMotorGroups is used when no motor groups are configured.
// Controlling just the arms keeps the robot standing on its own balance.
var defaultMotorGroups = []string{"LArm", "RArm"}

// Config is the full driver configuration.
type Config struct {
	// BodyType is the hardware variant, e.g. "H21" or "H25". The H21
	// variant has mechanically mimicked hand and wrist joints that must
	// not be controlled independently.
	BodyType string `json:"body_type"`

	// TopicQueue is the buffer depth for telemetry fanout channels.
	TopicQueue int `json:"topic_queue"`

	// HighFreq is the high-rate communication frequency in Hz. It is kept
	// for parity with the on-robot tooling; the control loop runs at
	// ControllerFreq.
	HighFreq float64 `json:"high_freq"`

	// ControllerFreq is the control loop rate in Hz.
	ControllerFreq float64 `json:"controller_freq"`

	// JointPrecision is the change-detection threshold in radians. Command
	// batches whose every joint moved less than this are not written.
	JointPrecision float64 `json:"joint_precision"`

	// OdomFrame names the odometry reference frame. Unused by the control
	// loop; carried for downstream consumers of the telemetry stream.
	OdomFrame string `json:"odom_frame"`

	// UseDCM selects the low-level bus write path instead of the motion
	// API. Positions then bypass the daemon's own arbitration, which can
	// fight the daemon if it keeps driving the same joints.
	UseDCM bool `json:"use_dcm"`

	// UseCmdVel mounts the velocity teleop endpoint.
	UseCmdVel bool `json:"use_cmd_vel"`

	// Prefix namespaces telemetry topics. A trailing slash is appended
	// when missing.
	Prefix string `json:"prefix"`

	// MotorGroups is a space-separated list of motor group names, e.g.
	// "LArm RArm" or "Body". Empty selects the two-arm default.
	MotorGroups string `json:"motor_groups"`

	// DaemonURL is the base URL of the robot's motion daemon.
	DaemonURL string `json:"daemon_url"`

	// Listen is the bind address of the driver's web API.
	Listen string `json:"listen"`

	// RecordPath enables the SQLite flight recorder when non-empty.
	RecordPath string `json:"record_path"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `json:"log_level"`
}

// Default returns the compiled-in configuration.
func Default() Config {
	return Config{
		TopicQueue:     DefaultTopicQueue,
		HighFreq:       DefaultHighFreq,
		ControllerFreq: DefaultControllerFreq,
		JointPrecision: DefaultJointPrecision,
		OdomFrame:      DefaultOdomFrame,
		Prefix:         DefaultPrefix,
		DaemonURL:      DefaultDaemonURL,
		Listen:         DefaultListen,
		LogLevel:       "info",
	}
}

// Load reads a JSON config file over the defaults. A missing path returns
// the defaults unchanged.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// FromEnv overrides connection-level settings from the environment:
// ASTER_DAEMON_URL, ASTER_LISTEN and ASTER_LOG_LEVEL.
func (c *Config) FromEnv() {
	if v := os.Getenv("ASTER_DAEMON_URL"); v != "" {
		c.DaemonURL = v
	}
	if v := os.Getenv("ASTER_LISTEN"); v != "" {
		c.Listen = v
	}
	if v := os.Getenv("ASTER_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
}

// Validate reports the first configuration error found.
func (c Config) Validate() error {
	if c.ControllerFreq <= 0 {
		return fmt.Errorf("controller_freq must be positive, got %v", c.ControllerFreq)
	}
	if c.HighFreq <= 0 {
		return fmt.Errorf("high_freq must be positive, got %v", c.HighFreq)
	}
	if c.JointPrecision < 0 {
		return fmt.Errorf("joint_precision must not be negative, got %v", c.JointPrecision)
	}
	if c.TopicQueue <= 0 {
		return fmt.Errorf("topic_queue must be positive, got %d", c.TopicQueue)
	}
	if c.DaemonURL == "" {
		return fmt.Errorf("daemon_url is required")
	}
	return nil
}

// Groups resolves MotorGroups into an ordered list of group names.
// Empty input yields the two-arm default.
func (c Config) Groups() []string {
	fields := strings.Fields(c.MotorGroups)
	if len(fields) == 0 {
		out := make([]string, len(defaultMotorGroups))
		copy(out, defaultMotorGroups)
		return out
	}
	return fields
}

// TopicPrefix returns Prefix with a trailing slash appended when non-empty
// and missing. An empty prefix stays empty.
func (c Config) TopicPrefix() string {
	if c.Prefix == "" {
		return ""
	}
	if strings.HasSuffix(c.Prefix, "/") {
		return c.Prefix
	}
	return c.Prefix + "/"
}

// Period returns the control loop period derived from ControllerFreq.
func (c Config) Period() time.Duration {
	return time.Duration(float64(time.Second) / c.ControllerFreq)
}

// WholeBody reports whether exactly one motor group is configured and it is
// the whole-body group. Wake-up and rest behavior key off this.
func (c Config) WholeBody() bool {
	groups := c.Groups()
	return len(groups) == 1 && groups[0] == "Body"
}
