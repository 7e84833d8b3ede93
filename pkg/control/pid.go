package control

import (
	"fmt"
	"sync"
	"time"
)

// PIDConfig holds the gains and limits of a position-hold controller.
type PIDConfig struct {
	Joint string  `json:"joint"`
	Kp    float64 `json:"kp"`
	Ki    float64 `json:"ki"`
	Kd    float64 `json:"kd"`
	// StepLimit bounds the per-tick position correction in radians, so a
	// distant target is approached as a ramp instead of a jump.
	StepLimit float64 `json:"step_limit"`
	// IntegralLimit clamps the accumulated error to keep the integral term
	// from winding up while a joint is obstructed.
	IntegralLimit float64 `json:"integral_limit"`
}

// Default limits for controllers configured with gains only.
const (
	defaultStepLimit     = 0.1
	defaultIntegralLimit = 1.0
)

// PID holds one joint at a target position. Until a target is set it
// latches the joint's sensed position on its first update, so attaching the
// controller never moves the robot.
type PID struct {
	cfg    PIDConfig
	handle CommandHandle

	mu        sync.Mutex
	target    float64
	hasTarget bool

	integral  float64
	prevError float64
	primed    bool
}

// NewPID creates a position-hold controller for one joint.
func NewPID(cfg PIDConfig) *PID {
	if cfg.StepLimit <= 0 {
		cfg.StepLimit = defaultStepLimit
	}
	if cfg.IntegralLimit <= 0 {
		cfg.IntegralLimit = defaultIntegralLimit
	}
	return &PID{cfg: cfg}
}

// Name identifies the controller within the manager.
func (p *PID) Name() string { return "pid/" + p.cfg.Joint }

// Start resolves the joint's command handle.
func (p *PID) Start(reg *Registry) error {
	h, err := reg.Command(p.cfg.Joint)
	if err != nil {
		return err
	}
	p.handle = h
	return nil
}

// SetTarget sets the position the controller drives toward. Safe to call
// from outside the control loop.
func (p *PID) SetTarget(v float64) {
	p.mu.Lock()
	p.target = v
	p.hasTarget = true
	p.mu.Unlock()
}

// Target returns the current target and whether one has been set.
func (p *PID) Target() (float64, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.target, p.hasTarget
}

// Reset clears the accumulated state. The next update re-latches the
// sensed position unless a target was set in the meantime.
func (p *PID) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.hasTarget = false
	p.integral = 0
	p.prevError = 0
	p.primed = false
}

// Update computes this tick's position command.
func (p *PID) Update(now time.Time, period time.Duration) error {
	dt := period.Seconds()
	if dt <= 0 {
		return fmt.Errorf("controller %q: non-positive period %v", p.Name(), period)
	}

	position := p.handle.Position()

	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.hasTarget {
		p.target = position
		p.hasTarget = true
	}

	posErr := p.target - position

	pTerm := p.cfg.Kp * posErr

	p.integral += posErr * dt
	if p.integral > p.cfg.IntegralLimit {
		p.integral = p.cfg.IntegralLimit
	} else if p.integral < -p.cfg.IntegralLimit {
		p.integral = -p.cfg.IntegralLimit
	}
	iTerm := p.cfg.Ki * p.integral

	// Derivative on the error, skipped on the first primed tick.
	var dTerm float64
	if p.primed {
		dTerm = p.cfg.Kd * (posErr - p.prevError) / dt
	}
	p.prevError = posErr
	p.primed = true

	step := pTerm + iTerm + dTerm
	if step > p.cfg.StepLimit {
		step = p.cfg.StepLimit
		if p.cfg.Ki != 0 {
			p.integral = (step - pTerm - dTerm) / p.cfg.Ki
		}
	} else if step < -p.cfg.StepLimit {
		step = -p.cfg.StepLimit
		if p.cfg.Ki != 0 {
			p.integral = (step - pTerm - dTerm) / p.cfg.Ki
		}
	}

	p.handle.SetCommand(position + step)
	return nil
}
