package ability

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/AgentOS/abilityms/internal/infrastructure/logging"
	"github.com/GriffinCanCode/AgentOS/abilityms/internal/shared/types"
)

// ackingHost acknowledges every posted command from its own goroutine
type ackingHost struct {
	*fakeHost
	ack func(token uint16, kind types.Lifecycle)
}

func (h *ackingHost) Post(queue types.QueueID, cmd types.Command) error {
	if err := h.fakeHost.Post(queue, cmd); err != nil {
		return err
	}
	go h.ack(cmd.Token, cmd.Kind)
	return nil
}

func startLoop(t *testing.T) (*Loop, *ackingHost) {
	t.Helper()

	host := &ackingHost{fakeHost: &fakeHost{}}
	m := NewManager(DefaultConfig(), host, logging.NewNop()).
		WithBundles(fakeBundles{"x.app": "/apps/x", "y.app": "/apps/y"})
	loop := NewLoop(m, logging.NewNop())
	host.ack = loop.SchedulerLifecycleDone

	// the native launcher acks from inside the loop's own call chain
	m.SetNativeAbility(&fakeNative{ack: loop.SchedulerLifecycleDone})

	ctx, cancel := context.WithCancel(context.Background())
	go loop.Run(ctx)
	t.Cleanup(func() {
		cancel()
		<-loop.Done()
	})
	return loop, host
}

func waitForTop(t *testing.T, loop *Loop, want string) {
	t.Helper()
	assert.Eventually(t, func() bool {
		elem, ok, err := loop.TopAbility(context.Background())
		return err == nil && ok && elem.BundleName == want
	}, 2*time.Second, 5*time.Millisecond)
}

func TestLoopEndToEnd(t *testing.T) {
	loop, host := startLoop(t)
	ctx := context.Background()

	require.NoError(t, loop.StartLauncher(ctx))
	waitForTop(t, loop, launcherName)

	require.NoError(t, loop.StartAbility(ctx, &types.Intent{BundleName: "x.app"}))
	waitForTop(t, loop, "x.app")

	require.NoError(t, loop.StartAbility(ctx, &types.Intent{BundleName: "y.app"}))
	waitForTop(t, loop, "y.app")

	assert.Eventually(t, func() bool {
		stats, err := loop.Stats(ctx)
		return err == nil && stats.Records == 2 && stats.PendingToken == 0 && stats.TopState == "active"
	}, 2*time.Second, 5*time.Millisecond)

	host.mu.Lock()
	destroyed := len(host.destroyedTasks)
	host.mu.Unlock()
	assert.Equal(t, 1, destroyed, "x's task is released after its destroy acknowledgement")

	records, err := loop.Records(ctx)
	require.NoError(t, err)
	assert.Len(t, records, 2)

	infos, err := loop.MissionInfos(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, "y.app", infos[0].BundleName)
}

func TestLoopTerminateReturnsToLauncher(t *testing.T) {
	loop, _ := startLoop(t)
	ctx := context.Background()

	require.NoError(t, loop.StartLauncher(ctx))
	require.NoError(t, loop.StartAbility(ctx, &types.Intent{BundleName: "x.app"}))
	waitForTop(t, loop, "x.app")

	require.NoError(t, loop.TerminateAbility(ctx, 1))
	waitForTop(t, loop, launcherName)

	assert.Eventually(t, func() bool {
		stats, err := loop.Stats(ctx)
		return err == nil && stats.Records == 1
	}, 2*time.Second, 5*time.Millisecond)
}

func TestLoopForceStop(t *testing.T) {
	loop, _ := startLoop(t)
	ctx := context.Background()

	require.NoError(t, loop.StartLauncher(ctx))
	require.NoError(t, loop.StartAbility(ctx, &types.Intent{BundleName: "x.app"}))
	waitForTop(t, loop, "x.app")

	require.NoError(t, loop.ForceStop(ctx, "x.app"))
	waitForTop(t, loop, launcherName)
	assert.ErrorIs(t, loop.ForceStopBundle(ctx, 1), ErrParamCheck)
	assert.NoError(t, loop.SetCleanAbilityDataFlag(ctx, true))
}

func TestLoopRemoteStart(t *testing.T) {
	host := &ackingHost{fakeHost: &fakeHost{}}
	remote := &fakeRemote{}
	m := NewManager(DefaultConfig(), host, nil).WithRemote(remote)
	loop := NewLoop(m, nil)
	host.ack = loop.SchedulerLifecycleDone
	m.SetNativeAbility(&fakeNative{ack: loop.SchedulerLifecycleDone})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go loop.Run(ctx)

	require.NoError(t, loop.StartLauncher(ctx))
	require.NoError(t, loop.StartAbility(ctx, &types.Intent{BundleName: "r.app", DeviceID: "dev1"}))
	assert.Equal(t, []string{launcherName}, remote.callers)
}

func TestLoopStopped(t *testing.T) {
	loop := NewLoop(NewManager(DefaultConfig(), &fakeHost{}, nil), nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, loop.Run(ctx), context.Canceled)

	err := loop.StartLauncher(context.Background())
	assert.ErrorIs(t, err, ErrLoopStopped)
}

func TestLoopRequestContextCancelled(t *testing.T) {
	loop := NewLoop(NewManager(DefaultConfig(), &fakeHost{}, nil), nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, loop.StartLauncher(ctx), context.Canceled)
}
