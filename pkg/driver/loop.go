package driver

import (
	"context"
	"fmt"
	"time"

	"github.com/asterworks/go-aster/pkg/telemetry"
)

// Frame tag on published joint states.
const baseFrameID = "base_link"

// heartbeatTicks spaces the loop's debug heartbeat, about ten seconds at
// the default rate.
const heartbeatTicks = 150

// Run drives the control loop at the configured frequency until the context
// is canceled, the session disconnects, or a controller fails. Returns nil
// on disconnect, the context error on shutdown, and the controller error on
// a fatal update. The loop is not resumable; a fresh Connect is required
// after any exit.
func (d *Driver) Run(ctx context.Context) error {
	if !d.connected.Load() {
		return ErrNotConnected
	}

	period := d.cfg.Period()
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	d.logger.Info("control loop running", "freq_hz", d.cfg.ControllerFreq, "period", period)

	for {
		select {
		case <-ctx.Done():
			d.logLoopExit("shutdown signal")
			return ctx.Err()
		case <-ticker.C:
			if !d.connected.Load() {
				d.logLoopExit("disconnected")
				return nil
			}
			now := time.Now()
			if err := d.tick(now, period); err != nil {
				d.logger.Error("control loop fatal", "error", err)
				d.logLoopExit("controller failure")
				return err
			}
			d.stats.Observe(time.Since(now))
		}
	}
}

func (d *Driver) logLoopExit(reason string) {
	s := d.stats.Snapshot()
	d.logger.Info("control loop exited", "reason", reason,
		"ticks", s.Ticks, "skipped_writes", s.SkippedWrites,
		"read_errors", s.ReadErrors, "write_errors", s.WriteErrors)
}

// tick runs one control cycle. Only a controller failure is fatal; sensor
// problems skip the remainder of the cycle and diagnostics failures stop
// the service while the current cycle finishes.
func (d *Driver) tick(now time.Time, period time.Duration) error {
	d.stats.Tick()

	// Stiffness goes out every tick, changed or not, so subscribers can
	// always observe the current value.
	d.sink.Stiffness(telemetry.Stiffness{Stamp: now, Value: d.Stiffness()})

	if err := d.readStep(); err != nil {
		d.stats.ReadError()
		d.warnThrottled("read step failed, skipping tick", err)
		return nil
	}

	d.backendMu.Lock()
	diagErr := d.diagnostics.Publish(now)
	d.backendMu.Unlock()
	if diagErr != nil {
		d.logger.Error("diagnostics publish failed, stopping service", "error", diagErr)
		d.Stop()
	}

	if err := d.manager.Update(now, period); err != nil {
		return fmt.Errorf("controller update: %w", err)
	}

	if err := d.writeStep(); err != nil {
		d.stats.WriteError()
		d.warnThrottled("write step failed", err)
	}

	d.publishJointState(now)

	if s := d.stats.Snapshot(); s.Ticks%heartbeatTicks == 0 {
		d.logger.Debug("control loop heartbeat", "ticks", s.Ticks,
			"skipped_writes", s.SkippedWrites, "read_errors", s.ReadErrors,
			"write_errors", s.WriteErrors, "mean_tick_s", s.MeanTick)
	}
	return nil
}

// readStep pulls the batched sensor read into the mirror. Commands are
// reseeded from the sensed angles, so joints nobody drives hold position.
func (d *Driver) readStep() error {
	d.backendMu.Lock()
	values, err := d.backends.Memory.ListData()
	d.backendMu.Unlock()
	if err != nil {
		return fmt.Errorf("read joint sensors: %w", err)
	}
	return d.mirror.SetSensed(values)
}

// writeStep flushes the command vector when any joint's command moved
// beyond the precision threshold since this tick's read. The write is all
// or nothing: no joints, or the full batch.
func (d *Driver) writeStep() error {
	if !d.mirror.Changed(d.cfg.JointPrecision) {
		d.stats.SkippedWrite()
		return nil
	}
	commands := d.mirror.Commands()

	d.backendMu.Lock()
	defer d.backendMu.Unlock()
	if d.cfg.UseDCM {
		return d.backends.LowLevel.WriteJoints(commands)
	}
	return d.backends.Motion.WriteJoints(commands)
}

// publishJointState republishes the full-body joint state from a fresh
// backend read rather than the mirror. The extra round trip keeps the
// published set wider than the controlled set and matches the sensed state
// after this tick's write.
func (d *Driver) publishJointState(now time.Time) {
	d.backendMu.Lock()
	angles, err := d.backends.Motion.Angles(wholeBodyGroup)
	d.backendMu.Unlock()
	if err != nil {
		d.stats.ReadError()
		d.warnThrottled("joint state read failed", err)
		return
	}
	if len(angles) != len(d.stateNames) {
		d.stats.ReadError()
		d.warnThrottled("joint state read size mismatch",
			fmt.Errorf("%d angles for %d joints", len(angles), len(d.stateNames)))
		return
	}
	d.sink.JointState(telemetry.JointState{
		Stamp:     now,
		FrameID:   baseFrameID,
		Names:     d.stateNames,
		Positions: angles,
	})
}
