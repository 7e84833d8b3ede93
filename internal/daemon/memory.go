package daemon

import (
	"fmt"

	"github.com/asterworks/go-aster/pkg/driver"
)

// Memory is the client for the daemon's shared-memory service.
type Memory struct {
	session *Session
	keys    []string
}

var _ driver.Memory = (*Memory)(nil)

// NewMemory creates a memory client on the session.
func NewMemory(s *Session) *Memory {
	return &Memory{session: s}
}

// Data returns the string value stored under a memory key, for example
// RobotConfig/Body/Type.
func (m *Memory) Data(key string) (string, error) {
	req := struct {
		Key string `json:"key"`
	}{Key: key}
	var resp struct {
		Value string `json:"value"`
	}
	if err := m.session.call("memory", "get_data", req, &resp); err != nil {
		return "", err
	}
	return resp.Value, nil
}

// Init builds the position sensor keys for the controlled joint set.
// ListData reads exactly these keys, in this order.
func (m *Memory) Init(joints []string) error {
	m.keys = make([]string, len(joints))
	for i, j := range joints {
		m.keys[i] = "Device/SubDeviceList/" + j + "/Position/Sensor/Value"
	}
	return nil
}

// ListData reads the sensed positions of the controlled joints.
func (m *Memory) ListData() ([]float64, error) {
	if len(m.keys) == 0 {
		return nil, fmt.Errorf("memory client not initialized with joints")
	}
	return m.Values(m.keys)
}

// Values reads a batch of float values by memory key.
func (m *Memory) Values(keys []string) ([]float64, error) {
	req := struct {
		Keys []string `json:"keys"`
	}{Keys: keys}
	var resp struct {
		Values []float64 `json:"values"`
	}
	if err := m.session.call("memory", "get_values", req, &resp); err != nil {
		return nil, err
	}
	return resp.Values, nil
}
