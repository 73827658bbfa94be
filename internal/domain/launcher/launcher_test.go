package launcher

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/GriffinCanCode/AgentOS/abilityms/internal/shared/types"
)

type ackRecorder struct {
	kinds []types.Lifecycle
}

func (r *ackRecorder) SchedulerLifecycleDone(token uint16, kind types.Lifecycle) {
	if token == 0 {
		r.kinds = append(r.kinds, kind)
	}
}

func TestLauncherTransitions(t *testing.T) {
	ack := &ackRecorder{}
	l := New(ack, nil)
	assert.Equal(t, types.StateStop, l.State())

	data := []byte("home")
	l.OnActive(types.Intent{BundleName: "com.ohos.launcher", Data: data})
	data[0] = 'X'
	assert.Equal(t, types.StateActive, l.State())
	assert.Equal(t, []byte("home"), l.Payload())

	l.OnBackground()
	assert.Equal(t, types.StateBackground, l.State())
	assert.Equal(t, []types.Lifecycle{types.LifecycleActive, types.LifecycleBackground}, ack.kinds)
	assert.Equal(t, 1, l.Activations())
}

func TestLauncherWithoutAcknowledger(t *testing.T) {
	l := New(nil, nil)
	assert.NotPanics(t, func() {
		l.OnActive(types.Intent{})
		l.OnBackground()
	})
}
