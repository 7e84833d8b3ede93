package joints

import (
	"errors"
	"fmt"
	"math"
)

// ErrLengthMismatch reports a sensor batch whose size does not match the
// controlled joint set.
var ErrLengthMismatch = errors.New("sensor value count does not match joint count")

// Mirror holds the per-joint state arrays shared with controllers: sensed
// position, velocity and effort, plus the position command. All arrays are
// indexed in lockstep with the joint names and sized once at construction.
//
// Controllers hold pointers into these arrays through hardware handles. The
// driver refreshes the sensed side and reseeds commands once per tick, then
// flushes commands after the controllers ran; nothing else may mutate the
// arrays.
type Mirror struct {
	names      []string
	index      map[string]int
	angles     []float64
	velocities []float64
	efforts    []float64
	commands   []float64
}

// NewMirror allocates state arrays for the given joint set.
func NewMirror(names []string) *Mirror {
	m := &Mirror{
		names:      append([]string(nil), names...),
		index:      make(map[string]int, len(names)),
		angles:     make([]float64, len(names)),
		velocities: make([]float64, len(names)),
		efforts:    make([]float64, len(names)),
		commands:   make([]float64, len(names)),
	}
	for i, name := range m.names {
		m.index[name] = i
	}
	return m
}

// Len returns the number of mirrored joints.
func (m *Mirror) Len() int { return len(m.names) }

// Names returns the mirrored joint names in index order.
func (m *Mirror) Names() []string { return m.names }

// Name returns the joint name at index i.
func (m *Mirror) Name(i int) string { return m.names[i] }

// Index returns the array index of a joint name.
func (m *Mirror) Index(name string) (int, bool) {
	i, ok := m.index[name]
	return i, ok
}

// SetSensed stores a batched sensor read. Each command is overwritten with
// the sensed value, so a joint nobody drives tracks its sensed position and
// never re-fires a stale command. The batch must carry exactly one value per
// joint.
func (m *Mirror) SetSensed(values []float64) error {
	if len(values) != len(m.angles) {
		return fmt.Errorf("%w: got %d values for %d joints", ErrLengthMismatch, len(values), len(m.angles))
	}
	copy(m.angles, values)
	copy(m.commands, values)
	return nil
}

// Changed reports whether any command differs from this tick's sensed angle
// by more than precision.
func (m *Mirror) Changed(precision float64) bool {
	for i := range m.commands {
		if math.Abs(m.commands[i]-m.angles[i]) > precision {
			return true
		}
	}
	return false
}

// Commands returns the live command vector. Callers flush it as one batch
// and must not retain it across ticks.
func (m *Mirror) Commands() []float64 { return m.commands }

// Angles returns the live sensed angle vector.
func (m *Mirror) Angles() []float64 { return m.angles }

// PositionAt returns a pointer to the sensed angle cell for handle
// registration.
func (m *Mirror) PositionAt(i int) *float64 { return &m.angles[i] }

// VelocityAt returns a pointer to the velocity cell. The daemon does not
// report joint velocities, so the cell stays zero.
func (m *Mirror) VelocityAt(i int) *float64 { return &m.velocities[i] }

// EffortAt returns a pointer to the effort cell. The daemon does not report
// joint efforts, so the cell stays zero.
func (m *Mirror) EffortAt(i int) *float64 { return &m.efforts[i] }

// CommandAt returns a pointer to the command cell for handle registration.
func (m *Mirror) CommandAt(i int) *float64 { return &m.commands[i] }
