package driver

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/asterworks/go-aster/internal/config"
)

func TestDriver_TickOrder(t *testing.T) {
	r := newRig(t, nil)
	r.connect(t)

	bump := &bumpController{events: r.events, joint: "LHand", delta: 0.5}
	if err := r.d.AddController(bump); err != nil {
		t.Fatal(err)
	}
	r.events.reset()

	r.tick(t)

	want := []string{
		"sink.stiffness",
		"memory.list_data",
		"memory.values",
		"diag.report",
		"controller.update",
		"motion.write",
		"motion.get_angles",
		"sink.joint_state",
	}
	if diff := cmp.Diff(want, r.events.list()); diff != "" {
		t.Errorf("tick order (-want +got):\n%s", diff)
	}
}

func TestDriver_NoWriteBelowPrecision(t *testing.T) {
	r := newRig(t, nil)
	r.connect(t)

	// No controller has run: commands equal sensed angles, deltas are zero.
	r.tick(t)
	if r.motion.writeCount() != 0 || r.low.writeCount() != 0 {
		t.Errorf("writes = %d/%d, want none", r.motion.writeCount(), r.low.writeCount())
	}

	// A controller nudging one joint inside the precision window still
	// produces no write.
	small := &bumpController{events: r.events, joint: "LHand", delta: 0.05}
	if err := r.d.AddController(small); err != nil {
		t.Fatal(err)
	}
	r.tick(t)
	if r.motion.writeCount() != 0 {
		t.Errorf("writes = %d, want none for delta below precision", r.motion.writeCount())
	}
	if r.d.Stats().SkippedWrites != 2 {
		t.Errorf("skipped writes = %d, want 2", r.d.Stats().SkippedWrites)
	}
}

func TestDriver_WriteSendsFullBatch(t *testing.T) {
	r := newRig(t, nil)
	r.connect(t)

	bump := &bumpController{events: r.events, joint: "LHand", delta: 0.5}
	if err := r.d.AddController(bump); err != nil {
		t.Fatal(err)
	}

	r.tick(t)
	if r.motion.writeCount() != 1 {
		t.Fatalf("writes = %d, want exactly one batch", r.motion.writeCount())
	}
	// One joint over threshold flushes the whole vector: the bumped LHand
	// command plus the untouched sensed values.
	want := []float64{0.1, 0.7, 0.3, 0.4}
	if diff := cmp.Diff(want, r.motion.lastWrite()); diff != "" {
		t.Errorf("batch (-want +got):\n%s", diff)
	}

	// Commands reseed from sensed values each tick, so the same bump fires
	// again next tick rather than accumulating.
	r.tick(t)
	if r.motion.writeCount() != 2 {
		t.Fatalf("writes = %d, want 2", r.motion.writeCount())
	}
	if diff := cmp.Diff(want, r.motion.lastWrite()); diff != "" {
		t.Errorf("second batch (-want +got):\n%s", diff)
	}
}

func TestDriver_FirstTickScenario(t *testing.T) {
	r := newRig(t, func(cfg *config.Config) {
		cfg.ControllerFreq = 15.0
		cfg.JointPrecision = 0.1
	})
	r.memory.setSensed([]float64{0.50, 0.2, 0.3, 0.4})
	r.connect(t)

	r.tick(t)

	if got := r.d.mirror.Angles()[0]; got != 0.50 {
		t.Errorf("angle = %v, want 0.50", got)
	}
	if got := r.d.mirror.Commands()[0]; got != 0.50 {
		t.Errorf("command = %v, want 0.50", got)
	}
	if r.motion.writeCount() != 0 || r.low.writeCount() != 0 {
		t.Error("unexpected write on first tick with no controller")
	}
}

func TestDriver_LowLevelWritePath(t *testing.T) {
	r := newRig(t, func(cfg *config.Config) {
		cfg.UseDCM = true
	})
	r.connect(t)

	bump := &bumpController{events: r.events, joint: "LHand", delta: 0.5}
	if err := r.d.AddController(bump); err != nil {
		t.Fatal(err)
	}

	r.tick(t)
	if r.low.writeCount() != 1 {
		t.Errorf("low-level writes = %d, want 1", r.low.writeCount())
	}
	if r.motion.writeCount() != 0 {
		t.Errorf("motion writes = %d, want 0 in low-level mode", r.motion.writeCount())
	}
}

func TestDriver_ReadMismatchSkipsTick(t *testing.T) {
	r := newRig(t, nil)
	r.connect(t)
	bump := &bumpController{events: r.events, joint: "LHand", delta: 0.5}
	if err := r.d.AddController(bump); err != nil {
		t.Fatal(err)
	}

	r.memory.setSensed([]float64{0.1, 0.2, 0.3}) // three values, four joints
	r.tick(t)

	if bump.updateCount() != 0 {
		t.Error("controllers ran on a skipped tick")
	}
	if r.motion.writeCount() != 0 {
		t.Error("write issued on a skipped tick")
	}
	if r.d.Stats().ReadErrors != 1 {
		t.Errorf("read errors = %d, want 1", r.d.Stats().ReadErrors)
	}

	// The loop recovers once the batch size matches again.
	r.memory.setSensed([]float64{0.1, 0.2, 0.3, 0.4})
	r.tick(t)
	if bump.updateCount() != 1 {
		t.Errorf("controller updates = %d, want 1 after recovery", bump.updateCount())
	}
}

func TestDriver_ReadErrorSkipsTick(t *testing.T) {
	r := newRig(t, nil)
	r.connect(t)

	r.memory.setSensedErr(errors.New("daemon timeout"))
	r.tick(t)
	if r.d.Stats().ReadErrors != 1 {
		t.Errorf("read errors = %d, want 1", r.d.Stats().ReadErrors)
	}
	if r.d.Stats().Ticks != 1 {
		t.Errorf("ticks = %d, want 1", r.d.Stats().Ticks)
	}

	r.memory.setSensedErr(nil)
	r.tick(t)
	if r.sink.jointStateCount() != 1 {
		t.Errorf("joint states = %d, want 1 after recovery", r.sink.jointStateCount())
	}
}

func TestDriver_WriteErrorIsNotFatal(t *testing.T) {
	r := newRig(t, nil)
	r.connect(t)
	bump := &bumpController{events: r.events, joint: "LHand", delta: 0.5}
	if err := r.d.AddController(bump); err != nil {
		t.Fatal(err)
	}

	r.motion.mu.Lock()
	r.motion.writeErr = errors.New("bus rejected batch")
	r.motion.mu.Unlock()

	r.tick(t)
	if r.d.Stats().WriteErrors != 1 {
		t.Errorf("write errors = %d, want 1", r.d.Stats().WriteErrors)
	}
	if r.sink.jointStateCount() != 1 {
		t.Error("tick did not run to completion after the failed write")
	}
	if !r.d.IsConnected() {
		t.Error("write failure disconnected the session")
	}
}

func TestDriver_DiagnosticsFailureStopsService(t *testing.T) {
	r := newRig(t, nil)
	r.connect(t)
	bump := &bumpController{events: r.events, joint: "LHand", delta: 0.5}
	if err := r.d.AddController(bump); err != nil {
		t.Fatal(err)
	}

	r.reporter.setErr(errors.New("subscribers gone"))
	r.tick(t)

	if r.d.IsConnected() {
		t.Fatal("still connected after diagnostics failure")
	}
	// The failing tick still ran to completion before the loop observes the
	// dropped flag on its next pass.
	if bump.updateCount() != 1 {
		t.Errorf("controller updates = %d, want 1", bump.updateCount())
	}
	if r.motion.writeCount() != 1 {
		t.Errorf("writes = %d, want 1", r.motion.writeCount())
	}
}

func TestDriver_StiffnessPublishedEveryTick(t *testing.T) {
	r := newRig(t, nil)
	r.connect(t)

	r.tick(t)
	r.tick(t)
	if r.sink.stiffnessCount() != 2 {
		t.Fatalf("stiffness publishes = %d, want 2", r.sink.stiffnessCount())
	}
	for _, msg := range r.sink.stiffness {
		if msg.Value != 1.0 {
			t.Errorf("stiffness value = %v, want 1.0", msg.Value)
		}
	}
}

func TestDriver_JointStatePublishesFullBody(t *testing.T) {
	r := newRig(t, nil)
	r.connect(t)

	r.tick(t)
	if r.sink.jointStateCount() != 1 {
		t.Fatalf("joint states = %d, want 1", r.sink.jointStateCount())
	}
	js := r.sink.jointStates[0]
	if js.FrameID != "base_link" {
		t.Errorf("frame = %q", js.FrameID)
	}
	// The published set is the body superset from a fresh backend read, not
	// the controlled set or the mirror.
	wantNames := []string{"HeadYaw", "LShoulderPitch", "LHand", "RShoulderPitch", "RHand", "LWheel"}
	if diff := cmp.Diff(wantNames, js.Names); diff != "" {
		t.Errorf("names (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]float64{0, 0.1, 0.2, 0.3, 0.4, 0.5}, js.Positions); diff != "" {
		t.Errorf("positions (-want +got):\n%s", diff)
	}
}

func TestDriver_JointStateReadFailureSkipsPublish(t *testing.T) {
	r := newRig(t, nil)
	r.connect(t)

	r.motion.mu.Lock()
	r.motion.anglesErr = errors.New("daemon timeout")
	r.motion.mu.Unlock()

	r.tick(t)
	if r.sink.jointStateCount() != 0 {
		t.Error("joint state published despite read failure")
	}
	if r.sink.stiffnessCount() != 1 {
		t.Error("tick did not complete its other publications")
	}
}

func TestDriver_RunRequiresConnect(t *testing.T) {
	r := newRig(t, nil)
	if err := r.d.Run(context.Background()); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("expected ErrNotConnected, got %v", err)
	}
}

func TestDriver_RunStopsOnDisconnect(t *testing.T) {
	r := newRig(t, func(cfg *config.Config) {
		cfg.ControllerFreq = 200.0
	})
	r.connect(t)

	done := make(chan error, 1)
	go func() { done <- r.d.Run(context.Background()) }()

	time.Sleep(30 * time.Millisecond)
	r.d.Stop()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run returned %v, want nil on disconnect", err)
		}
	case <-time.After(time.Second):
		t.Fatal("loop did not exit after stop")
	}
	if r.d.Stats().Ticks < 2 {
		t.Errorf("ticks = %d, expected the loop to have run", r.d.Stats().Ticks)
	}
}

func TestDriver_RunStopsOnShutdownSignal(t *testing.T) {
	r := newRig(t, func(cfg *config.Config) {
		cfg.ControllerFreq = 200.0
	})
	r.connect(t)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.d.Run(ctx) }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("run returned %v, want context.Canceled", err)
		}
	case <-time.After(time.Second):
		t.Fatal("loop did not exit after cancel")
	}
	// External shutdown does not tear the session down by itself.
	if !r.d.IsConnected() {
		t.Error("shutdown signal cleared the connection flag")
	}
}

func TestDriver_RunFatalOnControllerError(t *testing.T) {
	r := newRig(t, func(cfg *config.Config) {
		cfg.ControllerFreq = 200.0
	})
	r.connect(t)

	boom := errors.New("joint fault")
	if err := r.d.AddController(&failingController{err: boom}); err != nil {
		t.Fatal(err)
	}

	done := make(chan error, 1)
	go func() { done <- r.d.Run(context.Background()) }()

	select {
	case err := <-done:
		if !errors.Is(err, boom) {
			t.Fatalf("run returned %v, want controller error", err)
		}
	case <-time.After(time.Second):
		t.Fatal("loop did not exit on controller error")
	}
	// The loop exits without tearing the session down; the owner decides.
	if !r.d.IsConnected() {
		t.Error("controller failure cleared the connection flag")
	}
}
