package control

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/asterworks/go-aster/internal/log"
)

// Controller computes position commands from registered handles once per
// control tick. Start resolves the handles it needs; Update runs on the
// control-loop goroutine and must not block.
type Controller interface {
	Name() string
	Start(reg *Registry) error
	Update(now time.Time, period time.Duration) error
}

// ControllerManager steps controllers in the order they were added. An
// error from any controller aborts the tick; the control loop treats it as
// fatal.
type ControllerManager struct {
	registry *Registry

	mu          sync.RWMutex
	controllers []Controller

	logger *slog.Logger
}

// NewControllerManager creates a manager over the given handle registry.
func NewControllerManager(reg *Registry) *ControllerManager {
	return &ControllerManager{
		registry: reg,
		logger:   log.Component("control"),
	}
}

// Add starts a controller against the registry and schedules it for
// updates. Controllers may be added while the loop is running; they begin
// updating on the next tick.
func (cm *ControllerManager) Add(c Controller) error {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	for _, existing := range cm.controllers {
		if existing.Name() == c.Name() {
			return fmt.Errorf("controller %q already added", c.Name())
		}
	}
	if err := c.Start(cm.registry); err != nil {
		return fmt.Errorf("start controller %q: %w", c.Name(), err)
	}
	cm.controllers = append(cm.controllers, c)
	cm.logger.Info("controller added", "name", c.Name())
	return nil
}

// Update steps every controller for this tick.
func (cm *ControllerManager) Update(now time.Time, period time.Duration) error {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	for _, c := range cm.controllers {
		if err := c.Update(now, period); err != nil {
			return fmt.Errorf("controller %q: %w", c.Name(), err)
		}
	}
	return nil
}

// Controllers returns the names of the controllers currently running.
func (cm *ControllerManager) Controllers() []string {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	names := make([]string, len(cm.controllers))
	for i, c := range cm.controllers {
		names[i] = c.Name()
	}
	return names
}
