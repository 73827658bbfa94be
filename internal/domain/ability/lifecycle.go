package ability

import (
	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/abilityms/internal/shared/types"
)

// SchedulerLifecycleDone routes a completion acknowledgement to its handler
func (m *Manager) SchedulerLifecycleDone(token uint16, kind types.Lifecycle) {
	switch kind {
	case types.LifecycleActive:
		m.OnActiveDone(token)
	case types.LifecycleBackground:
		m.OnBackgroundDone(token)
	case types.LifecycleDestroy:
		m.OnDestroyDone(token)
	default:
		m.logger.Warn("Unknown lifecycle acknowledgement", zap.Uint16("token", token), zap.Int("kind", int(kind)))
	}
}

// OnActiveDone records that token reached the foreground
func (m *Manager) OnActiveDone(token uint16) {
	m.metrics.RecordAck(types.LifecycleActive.String())
	m.logger.Debug("Active done", zap.Uint16("token", token))
	m.setState(token, types.StateActive)

	top := m.stack.Top()
	if top == nil || token != LauncherToken {
		return
	}

	if m.native == nil || m.native.State() != types.StateActive {
		m.logger.Error("Launcher acknowledged active but is not active")
		m.metrics.RecordFault("launcher_not_active")
		return
	}
	if top.IsLauncher() {
		return
	}

	switch {
	case top.State == types.StateActive:
		// launcher and app both claim the foreground
		m.logger.Error("Conflicting foreground states", zap.Uint16("token", top.Token), zap.String("bundle", top.Name))
		m.metrics.RecordFault("conflicting_foreground")
		m.OnDestroyDone(top.Token)
	case top.State != types.StateBackground:
		m.logger.Error("App failed to reach background", zap.Uint16("token", top.Token), zap.Stringer("state", top.State))
		m.metrics.RecordFault("background_failed")
		m.stack.Pop()
		m.deleteRecord(top.Token)
	case top.IsTerminated:
		_ = m.schedule(top, types.LifecycleDestroy)
	}
}

// OnBackgroundDone records that token left the foreground
func (m *Manager) OnBackgroundDone(token uint16) {
	m.metrics.RecordAck(types.LifecycleBackground.String())
	m.logger.Debug("Background done", zap.Uint16("token", token))
	m.setState(token, types.StateBackground)

	top := m.stack.Top()
	if top == nil {
		return
	}

	if token != LauncherToken {
		if top.Token == token {
			_ = m.scheduleToken(LauncherToken, types.LifecycleActive)
		}
		return
	}

	if top.IsLauncher() {
		m.logger.Warn("Launcher went background with no app in front")
		return
	}
	_ = m.schedule(top, types.LifecycleActive)
	if m.cleanData {
		if launcher := m.list.Get(LauncherToken); launcher != nil {
			launcher.SetData(nil)
		}
		m.cleanData = false
	}
}

// OnDestroyDone releases token and hands the foreground to the pending start
// or back to the launcher
func (m *Manager) OnDestroyDone(token uint16) {
	m.metrics.RecordAck(types.LifecycleDestroy.String())
	m.logger.Debug("Destroy done", zap.Uint16("token", token))

	if token == LauncherToken {
		m.setState(token, types.StateStop)
		return
	}

	top := m.stack.Top()
	if top == nil || top.Token != token {
		m.setState(token, types.StateStop)
		m.deleteRecord(token)
		return
	}

	m.stack.Pop()
	m.deleteRecord(token)
	top.State = types.StateStop
	m.handOff()
}

// handOff gives the foreground to the pending start, or to the launcher when
// nothing is pending or the pending start fails
func (m *Manager) handOff() {
	if m.pendingToken == 0 {
		_ = m.scheduleToken(LauncherToken, types.LifecycleActive)
		return
	}

	pending := m.pendingToken
	m.pendingToken = 0
	if err := m.createWorkerUnit(m.list.Get(pending)); err != nil {
		m.logger.Error("Pending start failed", zap.Uint16("token", pending), zap.Error(err))
		m.deleteRecord(pending)
		_ = m.scheduleToken(LauncherToken, types.LifecycleActive)
	}
}

func (m *Manager) setState(token uint16, state types.State) {
	rec := m.list.Get(token)
	if rec == nil {
		return
	}
	rec.State = state
	m.emit("state", rec, 0)
}
