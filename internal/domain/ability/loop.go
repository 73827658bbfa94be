package ability

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/abilityms/internal/infrastructure/logging"
	"github.com/GriffinCanCode/AgentOS/abilityms/internal/shared/id"
	"github.com/GriffinCanCode/AgentOS/abilityms/internal/shared/types"
)

// ErrLoopStopped is returned for requests made after the loop exited
var ErrLoopStopped = errors.New("ability loop stopped")

type request struct {
	fn   func(*Manager)
	done chan struct{}
}

type ack struct {
	token uint16
	kind  types.Lifecycle
}

// Loop owns a Manager and runs every request and acknowledgement on one
// goroutine. Acknowledgements are queued without bound so a callback running
// inside the loop can ack without blocking it.
type Loop struct {
	mgr    *Manager
	logger *logging.Logger

	requests chan request

	ackMu  sync.Mutex
	acks   []ack
	ackSig chan struct{}

	done     chan struct{}
	stopOnce sync.Once
}

// NewLoop creates a loop around mgr. The manager must not be used directly
// once Run has started.
func NewLoop(mgr *Manager, logger *logging.Logger) *Loop {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Loop{
		mgr:      mgr,
		logger:   logger,
		requests: make(chan request),
		ackSig:   make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
}

// Run processes requests until ctx is cancelled
func (l *Loop) Run(ctx context.Context) error {
	defer l.stopOnce.Do(func() { close(l.done) })
	l.logger.Info("Ability loop started")

	for {
		select {
		case <-ctx.Done():
			l.logger.Info("Ability loop stopped")
			return ctx.Err()
		case <-l.ackSig:
			l.drainAcks()
		case req := <-l.requests:
			req.fn(l.mgr)
			close(req.done)
			l.drainAcks()
		}
	}
}

// Done is closed once Run returns
func (l *Loop) Done() <-chan struct{} {
	return l.done
}

// SchedulerLifecycleDone queues a completion acknowledgement. Safe from any goroutine.
func (l *Loop) SchedulerLifecycleDone(token uint16, kind types.Lifecycle) {
	l.ackMu.Lock()
	l.acks = append(l.acks, ack{token: token, kind: kind})
	l.ackMu.Unlock()

	select {
	case l.ackSig <- struct{}{}:
	default:
	}
}

func (l *Loop) drainAcks() {
	for {
		l.ackMu.Lock()
		batch := l.acks
		l.acks = nil
		l.ackMu.Unlock()

		if len(batch) == 0 {
			return
		}
		for _, a := range batch {
			l.mgr.SchedulerLifecycleDone(a.token, a.kind)
		}
	}
}

// Do runs fn on the loop goroutine and waits for it. It must not be called
// from inside the loop.
func (l *Loop) Do(ctx context.Context, fn func(*Manager) error) error {
	var err error
	req := request{
		fn:   func(m *Manager) { err = fn(m) },
		done: make(chan struct{}),
	}

	select {
	case l.requests <- req:
	case <-ctx.Done():
		return ctx.Err()
	case <-l.done:
		return ErrLoopStopped
	}

	// an accepted request always completes before Run returns
	<-req.done
	return err
}

// StartLauncher creates and activates the home unit
func (l *Loop) StartLauncher(ctx context.Context) error {
	return l.Do(ctx, func(m *Manager) error {
		return m.StartLauncher()
	})
}

// StartAbility starts the ability named by intent. Remote starts are sent
// outside the loop so a slow device never stalls local lifecycle work.
func (l *Loop) StartAbility(ctx context.Context, intent *types.Intent) error {
	if intent == nil {
		return l.Do(ctx, func(m *Manager) error { return m.StartAbility(ctx, nil) })
	}
	intent = intent.Clone()

	if !intent.IsRemote() {
		return l.Do(ctx, func(m *Manager) error {
			return m.StartAbility(ctx, intent)
		})
	}

	var (
		caller string
		remote RemoteStarter
	)
	err := l.Do(ctx, func(m *Manager) error {
		var err error
		caller, err = m.RemoteCaller(intent)
		remote = m.Remote()
		return err
	})
	if err != nil {
		return err
	}

	err = remote.StartRemoteAbility(ctx, intent, caller)
	l.logger.Info("Remote start",
		zap.String("bundle", intent.BundleName),
		zap.String("device", intent.DeviceID),
		zap.String("caller", caller),
		zap.Error(err),
	)
	if err != nil {
		return fmt.Errorf("%w: remote start: %v", ErrFailed, err)
	}
	return nil
}

// TerminateAbility asks the foreground ability to shut down
func (l *Loop) TerminateAbility(ctx context.Context, token uint16) error {
	return l.Do(ctx, func(m *Manager) error {
		return m.TerminateAbility(token)
	})
}

// ForceStop tears down an ability by bundle name
func (l *Loop) ForceStop(ctx context.Context, name string) error {
	return l.Do(ctx, func(m *Manager) error {
		return m.ForceStop(name)
	})
}

// ForceStopBundle tears down an ability by token
func (l *Loop) ForceStopBundle(ctx context.Context, token uint16) error {
	return l.Do(ctx, func(m *Manager) error {
		return m.ForceStopBundle(token)
	})
}

// SetCleanAbilityDataFlag sets the launcher payload clean flag
func (l *Loop) SetCleanAbilityDataFlag(ctx context.Context, clean bool) error {
	return l.Do(ctx, func(m *Manager) error {
		m.SetCleanAbilityDataFlag(clean)
		return nil
	})
}

// TopAbility returns the visible ability
func (l *Loop) TopAbility(ctx context.Context) (types.Element, bool, error) {
	var (
		elem types.Element
		ok   bool
	)
	err := l.Do(ctx, func(m *Manager) error {
		elem, ok = m.GetTopAbility()
		return nil
	})
	return elem, ok, err
}

// MissionInfos lists running bundles, most recent first
func (l *Loop) MissionInfos(ctx context.Context, max int) ([]types.MissionInfo, error) {
	var infos []types.MissionInfo
	err := l.Do(ctx, func(m *Manager) error {
		infos = m.MissionInfos(max)
		return nil
	})
	return infos, err
}

// Mission returns the records belonging to one mission
func (l *Loop) Mission(ctx context.Context, mission id.MissionID) ([]Snapshot, error) {
	var recs []Snapshot
	err := l.Do(ctx, func(m *Manager) error {
		recs = m.Mission(mission)
		return nil
	})
	return recs, err
}

// Records returns snapshots of every record
func (l *Loop) Records(ctx context.Context) ([]Snapshot, error) {
	var recs []Snapshot
	err := l.Do(ctx, func(m *Manager) error {
		recs = m.Records()
		return nil
	})
	return recs, err
}

// Stats returns controller statistics
func (l *Loop) Stats(ctx context.Context) (types.Stats, error) {
	var stats types.Stats
	err := l.Do(ctx, func(m *Manager) error {
		stats = m.Stats()
		return nil
	})
	return stats, err
}
