package driver

import (
	"fmt"
	"time"

	"github.com/asterworks/go-aster/pkg/telemetry"
)

// CommandVelocity walks the base toward the commanded twist. With the
// low-level backend active the arms are relaxed for the move and stiffened
// again afterwards, so the per-cycle position writes do not fight the walk
// animation. The call blocks through a settle pause, holding the backend
// lock and stalling the control loop's reads and writes for that long.
func (d *Driver) CommandVelocity(tw telemetry.Twist) error {
	if !d.connected.Load() {
		return ErrNotConnected
	}

	d.backendMu.Lock()
	defer d.backendMu.Unlock()

	if d.cfg.UseDCM {
		if err := d.backends.Motion.StiffnessInterpolation(armGroups, 0.0, stiffnessRampSeconds); err != nil {
			return fmt.Errorf("relax arms: %w", err)
		}
		defer func() {
			if err := d.backends.Motion.StiffnessInterpolation(armGroups, 1.0, stiffnessRampSeconds); err != nil {
				d.logger.Warn("restiffen arms failed", "error", err)
			}
		}()
	}

	if err := d.backends.Motion.MoveTo(tw.Linear.X, tw.Linear.Y, tw.Angular.Z); err != nil {
		return fmt.Errorf("move to: %w", err)
	}

	// Let the move take hold before another command can override it.
	time.Sleep(d.settle)
	return nil
}
