package driver

import (
	"errors"
	"testing"

	"github.com/asterworks/go-aster/internal/config"
	"github.com/asterworks/go-aster/pkg/telemetry"
)

func twist(x, y, theta float64) telemetry.Twist {
	var tw telemetry.Twist
	tw.Linear.X = x
	tw.Linear.Y = y
	tw.Angular.Z = theta
	return tw
}

func TestDriver_CommandVelocity(t *testing.T) {
	r := newRig(t, nil)
	r.connect(t)
	before := len(r.motion.stiffness())

	if err := r.d.CommandVelocity(twist(0.5, 0.0, 0.3)); err != nil {
		t.Fatal(err)
	}

	if len(r.motion.moves) != 1 {
		t.Fatalf("moves = %d, want 1", len(r.motion.moves))
	}
	if got := r.motion.moves[0]; got != [3]float64{0.5, 0.0, 0.3} {
		t.Errorf("move = %v", got)
	}
	// High-level mode leaves arm stiffness alone.
	if len(r.motion.stiffness()) != before {
		t.Errorf("stiffness calls changed by %d", len(r.motion.stiffness())-before)
	}
}

func TestDriver_CommandVelocityRequiresConnect(t *testing.T) {
	r := newRig(t, nil)
	if err := r.d.CommandVelocity(twist(0.5, 0, 0)); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("expected ErrNotConnected, got %v", err)
	}
}

func TestDriver_CommandVelocityLowLevelTogglesArms(t *testing.T) {
	r := newRig(t, func(cfg *config.Config) {
		cfg.UseDCM = true
	})
	r.connect(t)
	before := len(r.motion.stiffness())

	if err := r.d.CommandVelocity(twist(0.2, 0.1, 0.0)); err != nil {
		t.Fatal(err)
	}

	calls := r.motion.stiffness()[before:]
	if len(calls) != 2 {
		t.Fatalf("stiffness calls = %d, want relax and restore", len(calls))
	}
	if calls[0].value != 0.0 || calls[1].value != 1.0 {
		t.Errorf("stiffness values = %v, %v, want 0 then 1", calls[0].value, calls[1].value)
	}
	for _, c := range calls {
		if len(c.groups) != 2 || c.groups[0] != "LArm" || c.groups[1] != "RArm" {
			t.Errorf("groups = %v, want arms", c.groups)
		}
	}
}

func TestDriver_CommandVelocityMoveErrorStillRestoresArms(t *testing.T) {
	r := newRig(t, func(cfg *config.Config) {
		cfg.UseDCM = true
	})
	r.connect(t)
	r.motion.mu.Lock()
	r.motion.moveErr = errors.New("base blocked")
	r.motion.mu.Unlock()
	before := len(r.motion.stiffness())

	if err := r.d.CommandVelocity(twist(0.2, 0, 0)); err == nil {
		t.Fatal("expected move error")
	}

	calls := r.motion.stiffness()[before:]
	if len(calls) != 2 || calls[1].value != 1.0 {
		t.Errorf("stiffness calls = %+v, want arm restore after failed move", calls)
	}
}
