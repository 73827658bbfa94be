// Package launcher provides the in-process home unit.
package launcher

import (
	"sync"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/abilityms/internal/domain/ability"
	"github.com/GriffinCanCode/AgentOS/abilityms/internal/domain/host"
	"github.com/GriffinCanCode/AgentOS/abilityms/internal/infrastructure/logging"
	"github.com/GriffinCanCode/AgentOS/abilityms/internal/shared/types"
)

// Ability is the launcher's native callback object. Transitions complete
// immediately and are acknowledged through the Acknowledger, which must not
// call back into the controller synchronously.
type Ability struct {
	mu          sync.RWMutex
	state       types.State
	intent      types.Intent
	activations int

	ack    host.Acknowledger
	logger *logging.Logger
}

// New creates a launcher in the stop state
func New(ack host.Acknowledger, logger *logging.Logger) *Ability {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Ability{
		state:  types.StateStop,
		ack:    ack,
		logger: logger,
	}
}

// OnActive brings the launcher to the foreground with intent's payload
func (a *Ability) OnActive(intent types.Intent) {
	a.mu.Lock()
	a.state = types.StateActive
	a.intent = *intent.Clone()
	a.activations++
	a.mu.Unlock()

	a.logger.Debug("Launcher active", zap.Int("payload", len(intent.Data)))
	a.done(types.LifecycleActive)
}

// OnBackground hides the launcher
func (a *Ability) OnBackground() {
	a.mu.Lock()
	a.state = types.StateBackground
	a.mu.Unlock()

	a.logger.Debug("Launcher background")
	a.done(types.LifecycleBackground)
}

// State returns the launcher's own view of its state
func (a *Ability) State() types.State {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.state
}

// Payload returns the data delivered with the latest activation
func (a *Ability) Payload() []byte {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return types.CloneBytes(a.intent.Data)
}

// Activations counts how often the launcher was brought to the foreground
func (a *Ability) Activations() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.activations
}

func (a *Ability) done(kind types.Lifecycle) {
	if a.ack != nil {
		a.ack.SchedulerLifecycleDone(ability.LauncherToken, kind)
	}
}
