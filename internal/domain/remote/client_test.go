package remote

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/AgentOS/abilityms/internal/infrastructure/resilience"
	"github.com/GriffinCanCode/AgentOS/abilityms/internal/infrastructure/tracing"
	"github.com/GriffinCanCode/AgentOS/abilityms/internal/shared/types"
)

func TestStartRemoteAbility(t *testing.T) {
	var got StartRequest
	var traceHeader string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, StartPath, r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		traceHeader = r.Header.Get(tracing.HeaderTraceID)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	tracer := tracing.New("test", nil)
	defer tracer.Close()
	c := NewClient(Config{Devices: map[string]string{"dev1": srv.URL + "/"}}, nil).WithTracer(tracer)

	err := c.StartRemoteAbility(context.Background(), &types.Intent{
		BundleName: "x.app",
		DeviceID:   "dev1",
		Data:       []byte("hello"),
	}, "com.ohos.launcher")
	require.NoError(t, err)

	assert.Equal(t, "x.app", got.BundleName)
	assert.Equal(t, []byte("hello"), got.Data)
	assert.Equal(t, "com.ohos.launcher", got.CallerBundle)
	assert.NotEmpty(t, traceHeader)
	assert.Equal(t, []string{"dev1"}, c.Devices())
}

func TestStartRemoteAbilityUnknownDevice(t *testing.T) {
	c := NewClient(Config{}, nil)
	err := c.StartRemoteAbility(context.Background(), &types.Intent{BundleName: "x.app", DeviceID: "nope"}, "caller")
	assert.ErrorIs(t, err, ErrUnknownDevice)
}

func TestStartRemoteAbilityRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "denied", http.StatusForbidden)
	}))
	defer srv.Close()

	c := NewClient(Config{Devices: map[string]string{"dev1": srv.URL}}, nil)
	err := c.StartRemoteAbility(context.Background(), &types.Intent{BundleName: "x.app", DeviceID: "dev1"}, "caller")
	assert.ErrorIs(t, err, ErrRejected)
}

func TestBreakerOpensForFailingDevice(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient(Config{Devices: map[string]string{"dev1": srv.URL}, Timeout: time.Second}, nil)
	intent := &types.Intent{BundleName: "x.app", DeviceID: "dev1"}
	for i := 0; i < 5; i++ {
		_ = c.StartRemoteAbility(context.Background(), intent, "caller")
	}

	err := c.StartRemoteAbility(context.Background(), intent, "caller")
	assert.ErrorIs(t, err, resilience.ErrCircuitOpen)
	assert.Equal(t, int32(5), calls.Load())
	assert.Equal(t, resilience.StateOpen, c.BreakerStates()["dev1"])
}
