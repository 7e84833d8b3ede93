package telemetry

import (
	"log/slog"
	"sync"

	"github.com/asterworks/go-aster/internal/log"
	"github.com/asterworks/go-aster/pkg/hub"
)

// Topic names, namespaced by the configured prefix.
const (
	TopicJoints      = "joint_states"
	TopicStiffness   = "stiffnesses"
	TopicDiagnostics = "diagnostics"
)

// Publisher fans driver telemetry out to WebSocket subscribers, one hub per
// topic, and caches the last message of each kind for REST snapshots.
// Joint-state and stiffness publication is fire-and-forget; diagnostics
// reports propagate errors because the driver treats their failure as fatal.
type Publisher struct {
	joints      *hub.Hub
	stiffness   *hub.Hub
	diagnostics *hub.Hub

	mu            sync.RWMutex
	lastJoints    JointState
	haveJoints    bool
	lastStiffness Stiffness
	haveStiffness bool
	lastReport    Report
	haveReport    bool

	logger *slog.Logger
}

// NewPublisher creates the topic hubs. The prefix should come from
// config.TopicPrefix; queue bounds every hub and client buffer.
func NewPublisher(prefix string, queue int) *Publisher {
	return &Publisher{
		joints:      hub.New(prefix+TopicJoints, queue),
		stiffness:   hub.New(prefix+TopicStiffness, queue),
		diagnostics: hub.New(prefix+TopicDiagnostics, queue),
		logger:      log.Component("telemetry"),
	}
}

// Start launches the hub loops.
func (p *Publisher) Start() {
	go p.joints.Run()
	go p.stiffness.Run()
	go p.diagnostics.Run()
}

// Close stops the hub loops and disconnects subscribers.
func (p *Publisher) Close() {
	p.joints.Close()
	p.stiffness.Close()
	p.diagnostics.Close()
}

// JointHub exposes the joint-state hub for WebSocket route wiring.
func (p *Publisher) JointHub() *hub.Hub { return p.joints }

// StiffnessHub exposes the stiffness hub for WebSocket route wiring.
func (p *Publisher) StiffnessHub() *hub.Hub { return p.stiffness }

// DiagnosticsHub exposes the diagnostics hub for WebSocket route wiring.
func (p *Publisher) DiagnosticsHub() *hub.Hub { return p.diagnostics }

// JointState publishes a joint-state snapshot.
func (p *Publisher) JointState(js JointState) {
	p.mu.Lock()
	p.lastJoints = js
	p.haveJoints = true
	p.mu.Unlock()

	if err := p.joints.BroadcastJSON(js); err != nil {
		p.logger.Warn("joint state broadcast failed", "error", err)
	}
}

// Stiffness publishes the stiffness scalar.
func (p *Publisher) Stiffness(s Stiffness) {
	p.mu.Lock()
	p.lastStiffness = s
	p.haveStiffness = true
	p.mu.Unlock()

	if err := p.stiffness.BroadcastJSON(s); err != nil {
		p.logger.Warn("stiffness broadcast failed", "error", err)
	}
}

// Report publishes a diagnostics report.
func (p *Publisher) Report(r Report) error {
	p.mu.Lock()
	p.lastReport = r
	p.haveReport = true
	p.mu.Unlock()

	return p.diagnostics.BroadcastJSON(r)
}

// LastJointState returns the most recent joint-state message, if any.
func (p *Publisher) LastJointState() (JointState, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.lastJoints, p.haveJoints
}

// LastStiffness returns the most recent stiffness message, if any.
func (p *Publisher) LastStiffness() (Stiffness, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.lastStiffness, p.haveStiffness
}

// LastReport returns the most recent diagnostics report, if any.
func (p *Publisher) LastReport() (Report, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.lastReport, p.haveReport
}
