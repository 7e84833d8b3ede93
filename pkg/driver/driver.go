package driver

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/asterworks/go-aster/internal/config"
	"github.com/asterworks/go-aster/internal/log"
	"github.com/asterworks/go-aster/pkg/control"
	"github.com/asterworks/go-aster/pkg/diag"
	"github.com/asterworks/go-aster/pkg/joints"
)

// Motor group that maps to the whole body. A single-group configuration of
// exactly this name changes wake and rest behavior.
const wholeBodyGroup = "Body"

// Groups whose stiffness is toggled around base moves and relaxed first
// during shutdown when the low-level backend is active.
var armGroups = []string{"LArm", "RArm"}

// stiffnessRampSeconds is the fixed ramp applied to every stiffness change.
const stiffnessRampSeconds = 1.0

// Driver owns the session against the robot daemon: it connects, runs the
// control loop, and tears everything down. MotionBackend state (mirror,
// handle registry, controller manager, diagnostics) is constructed only
// inside Connect and dropped only inside Stop; nothing outlives the driver.
type Driver struct {
	cfg       *config.Config
	backends  Backends
	sink      TelemetrySink
	reporter  diag.Broadcaster
	groups    []string
	wholeBody bool

	connected atomic.Bool

	// lifecycleMu guards connect/stop transitions and the session state
	// they build.
	lifecycleMu sync.Mutex
	stopped     bool

	// backendMu serializes batch operations against the daemon between the
	// control loop and the asynchronous velocity path. The velocity path
	// holds it through its settle pause, stalling the loop's reads and
	// writes for that long.
	backendMu sync.Mutex

	stiffnessMu sync.RWMutex
	stiffness   float64

	// Built by Connect.
	robotModel  string
	mirror      *joints.Mirror
	stateNames  []string
	registry    *control.Registry
	manager     *control.ControllerManager
	diagnostics Diagnostics

	stats *loopStats

	// settle is the blocking pause after a base move; tests shorten it.
	settle time.Duration

	lastWarn time.Time

	logger *slog.Logger
}

// New creates a disconnected driver. Motion and Memory backends are
// required; LowLevel only when the configuration selects low-level writes.
func New(cfg *config.Config, backends Backends, sink TelemetrySink, reporter diag.Broadcaster) (*Driver, error) {
	if backends.Motion == nil || backends.Memory == nil {
		return nil, fmt.Errorf("driver needs motion and memory backends")
	}
	if cfg.UseDCM && backends.LowLevel == nil {
		return nil, fmt.Errorf("low-level writes selected but no low-level backend provided")
	}
	if sink == nil {
		return nil, fmt.Errorf("driver needs a telemetry sink")
	}
	return &Driver{
		cfg:       cfg,
		backends:  backends,
		sink:      sink,
		reporter:  reporter,
		groups:    cfg.Groups(),
		wholeBody: cfg.WholeBody(),
		stiffness: 1.0,
		// Nothing to tear down until a connect attempt touches the backends.
		stopped: true,
		stats:   newLoopStats(),
		settle:  time.Second,
		logger:  log.Component("driver"),
	}, nil
}

// Connect brings up the session: confirms the robot is awake, resolves the
// controlled joint set, sizes the state mirror, initializes the backends,
// raises stiffness and registers the controller hardware interface. Any
// failure tears partial state down via Stop and leaves the driver
// disconnected.
func (d *Driver) Connect() error {
	d.lifecycleMu.Lock()
	defer d.lifecycleMu.Unlock()

	if d.connected.Load() {
		return ErrAlreadyConnected
	}
	d.stopped = false

	fail := func(err error) error {
		d.logger.Error("connect failed", "error", err)
		d.stopLocked()
		return err
	}

	model, err := d.backends.Memory.Data("RobotConfig/Body/Type")
	if err != nil {
		return fail(fmt.Errorf("read robot model: %w", err))
	}
	d.robotModel = strings.ToLower(model)
	d.logger.Info("connecting", "robot", d.robotModel, "groups", strings.Join(d.groups, " "))

	// Wake the motors. With the low-level backend only a whole-body
	// configuration wakes the robot; partial groups are assumed managed
	// externally. The awake check below decides whether connect proceeds.
	if d.wholeBody || !d.cfg.UseDCM {
		if err := d.backends.Motion.WakeUp(); err != nil {
			d.logger.Warn("wake up request failed", "error", err)
		}
	}
	awake, err := d.backends.Motion.IsAwake()
	if err != nil {
		return fail(fmt.Errorf("query wake state: %w", err))
	}
	if !awake {
		return fail(ErrNotAwake)
	}

	if d.cfg.UseDCM {
		if err := d.backends.Motion.ManageConcurrence(); err != nil {
			return fail(fmt.Errorf("manage concurrence: %w", err))
		}
	}

	resolver := joints.Resolver{BodyType: d.cfg.BodyType, Source: d.backends.Motion}
	controlled, err := resolver.Controlled(d.groups)
	if err != nil {
		return fail(fmt.Errorf("resolve controlled joints: %w", err))
	}
	if len(controlled) == 0 {
		return fail(ErrNoJoints)
	}
	d.logger.Info("controlled joints", "count", len(controlled), "names", strings.Join(controlled, " "))

	if err := d.backends.Motion.Init(controlled); err != nil {
		return fail(fmt.Errorf("init motion backend: %w", err))
	}
	if err := d.backends.Memory.Init(controlled); err != nil {
		return fail(fmt.Errorf("init memory backend: %w", err))
	}
	if d.cfg.UseDCM {
		if err := d.backends.LowLevel.Init(controlled); err != nil {
			return fail(fmt.Errorf("init low-level backend: %w", err))
		}
	}

	d.mirror = joints.NewMirror(controlled)

	// The published joint-state set is the full body, wheels and mimics
	// included, which is wider than the controlled set.
	stateNames, err := d.backends.Motion.BodyNames(wholeBodyGroup)
	if err != nil {
		return fail(fmt.Errorf("resolve state joints: %w", err))
	}
	d.stateNames = stateNames

	actuators, err := d.backends.Motion.BodyNames("JointActuators")
	if err != nil {
		return fail(fmt.Errorf("resolve actuators for diagnostics: %w", err))
	}
	d.diagnostics = diag.NewCollector(d.robotModel, actuators, d.backends.Memory, d.reporter)

	d.connected.Store(true)

	if err := d.SetStiffness(1.0); err != nil {
		return fail(err)
	}

	if err := d.registerHandles(controlled); err != nil {
		return fail(err)
	}

	d.logger.Info("connected", "robot", d.robotModel, "joints", len(controlled))
	return nil
}

// registerHandles exposes the mirror's cells to the controller framework.
func (d *Driver) registerHandles(controlled []string) error {
	reg := control.NewRegistry()
	for i, name := range controlled {
		state, err := control.NewStateHandle(name, d.mirror.PositionAt(i), d.mirror.VelocityAt(i), d.mirror.EffortAt(i))
		if err != nil {
			return fmt.Errorf("state handle: %w", err)
		}
		if err := reg.RegisterState(state); err != nil {
			return fmt.Errorf("register state handle: %w", err)
		}
		cmd, err := control.NewCommandHandle(state, d.mirror.CommandAt(i))
		if err != nil {
			return fmt.Errorf("command handle: %w", err)
		}
		if err := reg.RegisterCommand(cmd); err != nil {
			return fmt.Errorf("register command handle: %w", err)
		}
	}
	d.registry = reg
	d.manager = control.NewControllerManager(reg)
	return nil
}

// Stop tears the session down: with the low-level backend active it relaxes
// the arms first, rests a whole-body configuration, then drops stiffness to
// zero and clears the connection flag. Safe to call repeatedly; only the
// first call after a connect touches the backends.
func (d *Driver) Stop() {
	d.lifecycleMu.Lock()
	defer d.lifecycleMu.Unlock()
	d.stopLocked()
}

func (d *Driver) stopLocked() {
	if d.stopped {
		d.connected.Store(false)
		return
	}
	d.stopped = true

	if d.cfg.UseDCM {
		d.backendMu.Lock()
		if err := d.backends.Motion.StiffnessInterpolation(armGroups, 0.0, stiffnessRampSeconds); err != nil {
			d.logger.Warn("relax arms failed", "error", err)
		}
		d.backendMu.Unlock()
	}

	if d.wholeBody {
		d.backendMu.Lock()
		if err := d.backends.Motion.Rest(); err != nil {
			d.logger.Warn("rest failed", "error", err)
		}
		d.backendMu.Unlock()
	}

	if err := d.SetStiffness(0.0); err != nil {
		d.logger.Warn("drop stiffness failed", "error", err)
	}

	d.connected.Store(false)
	d.logger.Info("stopped")
}

// IsConnected reports whether the session is live.
func (d *Driver) IsConnected() bool { return d.connected.Load() }

// SetStiffness stores the stiffness target and ramps all configured motor
// groups to it over one second through the high-level backend. The stored
// value is updated before the ramp is requested, so a failed ramp still
// reflects the intended state.
func (d *Driver) SetStiffness(value float64) error {
	d.stiffnessMu.Lock()
	d.stiffness = value
	d.stiffnessMu.Unlock()

	d.backendMu.Lock()
	defer d.backendMu.Unlock()
	if err := d.backends.Motion.StiffnessInterpolation(d.groups, value, stiffnessRampSeconds); err != nil {
		return fmt.Errorf("stiffness interpolation: %w", err)
	}
	return nil
}

// Stiffness returns the last commanded stiffness value.
func (d *Driver) Stiffness() float64 {
	d.stiffnessMu.RLock()
	defer d.stiffnessMu.RUnlock()
	return d.stiffness
}

// AddController starts a controller against the session's handle registry.
// Requires a live connection.
func (d *Driver) AddController(c control.Controller) error {
	d.lifecycleMu.Lock()
	defer d.lifecycleMu.Unlock()
	if !d.connected.Load() || d.manager == nil {
		return ErrNotConnected
	}
	return d.manager.Add(c)
}

// Controllers returns the names of the running controllers.
func (d *Driver) Controllers() []string {
	d.lifecycleMu.Lock()
	defer d.lifecycleMu.Unlock()
	if d.manager == nil {
		return nil
	}
	return d.manager.Controllers()
}

// Joints returns the controlled joint names.
func (d *Driver) Joints() []string {
	d.lifecycleMu.Lock()
	defer d.lifecycleMu.Unlock()
	if d.mirror == nil {
		return nil
	}
	return append([]string(nil), d.mirror.Names()...)
}

// RobotModel returns the daemon-reported model, lowercased.
func (d *Driver) RobotModel() string {
	d.lifecycleMu.Lock()
	defer d.lifecycleMu.Unlock()
	return d.robotModel
}

// Stats returns a snapshot of the loop health counters.
func (d *Driver) Stats() TickStats { return d.stats.Snapshot() }

// warnThrottled logs a warning at most once per five seconds, so a dead
// daemon does not flood the log at the loop rate.
func (d *Driver) warnThrottled(msg string, err error) {
	now := time.Now()
	if !d.lastWarn.IsZero() && now.Sub(d.lastWarn) < 5*time.Second {
		return
	}
	d.lastWarn = now
	d.logger.Warn(msg, "error", err)
}
