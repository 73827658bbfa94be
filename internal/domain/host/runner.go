package host

import (
	"context"

	"github.com/GriffinCanCode/AgentOS/abilityms/internal/shared/types"
)

// Runner is the app code a worker task drives through its lifecycle
type Runner interface {
	OnActive(ctx context.Context, cmd types.Command) error
	OnBackground(ctx context.Context, cmd types.Command) error
	OnDestroy(ctx context.Context, cmd types.Command) error
}

// RunnerFactory builds the runner for a task from the first command it receives
type RunnerFactory func(cmd types.Command) Runner

// Acknowledger receives lifecycle completions from worker tasks
type Acknowledger interface {
	SchedulerLifecycleDone(token uint16, kind types.Lifecycle)
}

// NopRunner completes every transition immediately
type NopRunner struct{}

func (NopRunner) OnActive(context.Context, types.Command) error     { return nil }
func (NopRunner) OnBackground(context.Context, types.Command) error { return nil }
func (NopRunner) OnDestroy(context.Context, types.Command) error    { return nil }

func dispatch(ctx context.Context, r Runner, cmd types.Command) error {
	switch cmd.Kind {
	case types.LifecycleActive:
		return r.OnActive(ctx, cmd)
	case types.LifecycleBackground:
		return r.OnBackground(ctx, cmd)
	case types.LifecycleDestroy:
		return r.OnDestroy(ctx, cmd)
	}
	return nil
}
