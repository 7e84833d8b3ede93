package web

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/asterworks/go-aster/pkg/control"
	"github.com/asterworks/go-aster/pkg/driver"
	"github.com/asterworks/go-aster/pkg/telemetry"
)

// fakeDriver satisfies DriverAPI with canned values and recorded commands.
type fakeDriver struct {
	mu          sync.Mutex
	connected   bool
	robot       string
	joints      []string
	controllers []string
	stiffness   float64

	setStiffness []float64
	stiffnessErr error
	twists       []telemetry.Twist
	twistErr     error
	added        []string
	addErr       error
	stops        int
}

func (f *fakeDriver) IsConnected() bool      { f.mu.Lock(); defer f.mu.Unlock(); return f.connected }
func (f *fakeDriver) RobotModel() string     { return f.robot }
func (f *fakeDriver) Joints() []string       { return f.joints }
func (f *fakeDriver) Controllers() []string  { return f.controllers }
func (f *fakeDriver) Stiffness() float64     { return f.stiffness }
func (f *fakeDriver) Stats() driver.TickStats { return driver.TickStats{Ticks: 42} }

func (f *fakeDriver) SetStiffness(v float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.stiffnessErr != nil {
		return f.stiffnessErr
	}
	f.setStiffness = append(f.setStiffness, v)
	return nil
}

func (f *fakeDriver) CommandVelocity(tw telemetry.Twist) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.twistErr != nil {
		return f.twistErr
	}
	f.twists = append(f.twists, tw)
	return nil
}

func (f *fakeDriver) AddController(c control.Controller) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.addErr != nil {
		return f.addErr
	}
	f.added = append(f.added, c.Name())
	return nil
}

func (f *fakeDriver) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stops++
	f.connected = false
}

func newTestServer(t *testing.T, enableCmdVel bool) (*Server, *fakeDriver, *telemetry.Publisher) {
	t.Helper()
	d := &fakeDriver{
		connected:   true,
		robot:       "pepper",
		joints:      []string{"HeadYaw", "HeadPitch"},
		controllers: []string{"pid/HeadYaw"},
		stiffness:   1.0,
	}
	pub := telemetry.NewPublisher("aster/", 4)
	pub.Start()
	t.Cleanup(pub.Close)
	return NewServer(":0", d, pub, enableCmdVel), d, pub
}

func get(t *testing.T, s *Server, path string) *http.Response {
	t.Helper()
	resp, err := s.app.Test(httptest.NewRequest(http.MethodGet, path, nil))
	require.NoError(t, err)
	return resp
}

func post(t *testing.T, s *Server, path, body string) *http.Response {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := s.app.Test(req, int(5*time.Second/time.Millisecond))
	require.NoError(t, err)
	return resp
}

func decode(t *testing.T, resp *http.Response, out any) {
	t.Helper()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, out))
}

func TestServer_Status(t *testing.T) {
	s, _, _ := newTestServer(t, false)

	resp := get(t, s, "/api/status")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got statusResponse
	decode(t, resp, &got)
	assert.True(t, got.Connected)
	assert.Equal(t, "pepper", got.Robot)
	assert.Equal(t, 1.0, got.Stiffness)
	assert.Equal(t, []string{"pid/HeadYaw"}, got.Controllers)
	assert.Equal(t, uint64(42), got.Stats.Ticks)
}

func TestServer_Stats(t *testing.T) {
	s, _, _ := newTestServer(t, false)

	resp := get(t, s, "/api/stats")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got driver.TickStats
	decode(t, resp, &got)
	assert.Equal(t, uint64(42), got.Ticks)
}

func TestServer_Joints(t *testing.T) {
	s, _, _ := newTestServer(t, false)

	resp := get(t, s, "/api/joints")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got struct {
		Joints []string `json:"joints"`
	}
	decode(t, resp, &got)
	assert.Equal(t, []string{"HeadYaw", "HeadPitch"}, got.Joints)
}

func TestServer_JointStateSnapshot(t *testing.T) {
	s, _, pub := newTestServer(t, false)

	resp := get(t, s, "/api/joint_states")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	pub.JointState(telemetry.JointState{
		FrameID:   "base_link",
		Names:     []string{"HeadYaw"},
		Positions: []float64{0.4},
	})

	resp = get(t, s, "/api/joint_states")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got telemetry.JointState
	decode(t, resp, &got)
	assert.Equal(t, []string{"HeadYaw"}, got.Names)
	assert.Equal(t, []float64{0.4}, got.Positions)
}

func TestServer_SetStiffness(t *testing.T) {
	s, d, _ := newTestServer(t, false)

	resp := post(t, s, "/api/stiffness", `{"value":0.5}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, []float64{0.5}, d.setStiffness)

	resp = post(t, s, "/api/stiffness", `{"value":1.5}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = post(t, s, "/api/stiffness", `not json`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestServer_StiffnessFallsBackToDriver(t *testing.T) {
	s, _, _ := newTestServer(t, false)

	resp := get(t, s, "/api/stiffness")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got telemetry.Stiffness
	decode(t, resp, &got)
	assert.Equal(t, 1.0, got.Value)
}

func TestServer_Diagnostics(t *testing.T) {
	s, _, pub := newTestServer(t, false)

	resp := get(t, s, "/api/diagnostics")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	require.NoError(t, pub.Report(telemetry.Report{Robot: "pepper", Level: telemetry.LevelOK}))

	resp = get(t, s, "/api/diagnostics")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got telemetry.Report
	decode(t, resp, &got)
	assert.Equal(t, "pepper", got.Robot)
}

func TestServer_AddController(t *testing.T) {
	s, d, _ := newTestServer(t, false)

	resp := post(t, s, "/api/controllers", `{"joint":"HeadYaw","kp":0.8}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, []string{"pid/HeadYaw"}, d.added)

	resp = post(t, s, "/api/controllers", `{"kp":0.8}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	d.addErr = driver.ErrNotConnected
	resp = post(t, s, "/api/controllers", `{"joint":"HeadPitch"}`)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
}

func TestServer_CmdVelMountedOnlyWhenEnabled(t *testing.T) {
	enabled, d, _ := newTestServer(t, true)
	resp := post(t, enabled, "/api/cmd_vel", `{"linear":{"x":0.5,"y":0},"angular":{"z":0.2}}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, d.twists, 1)
	assert.Equal(t, 0.5, d.twists[0].Linear.X)
	assert.Equal(t, 0.2, d.twists[0].Angular.Z)

	disabled, _, _ := newTestServer(t, false)
	resp = post(t, disabled, "/api/cmd_vel", `{"linear":{"x":0.5,"y":0},"angular":{"z":0.2}}`)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestServer_Stop(t *testing.T) {
	s, d, _ := newTestServer(t, false)

	resp := post(t, s, "/api/stop", ``)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got struct {
		Connected bool `json:"connected"`
	}
	decode(t, resp, &got)
	assert.False(t, got.Connected)
	assert.Equal(t, 1, d.stops)
}

func TestServer_WSRequiresUpgrade(t *testing.T) {
	s, _, _ := newTestServer(t, false)

	resp := get(t, s, "/ws/joint_states")
	assert.Equal(t, http.StatusUpgradeRequired, resp.StatusCode)
}
