package resilience

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errFailed = errors.New("failed")

func run(b *Breaker, results ...bool) {
	for _, ok := range results {
		_ = b.Do(func() error {
			if ok {
				return nil
			}
			return errFailed
		})
	}
}

func tripAfter(n uint32) func(Counts) bool {
	return func(c Counts) bool { return c.ConsecutiveFailures >= n }
}

func TestBreakerStateTransitions(t *testing.T) {
	tests := []struct {
		name     string
		settings Settings
		results  []bool
		want     State
	}{
		{
			name:     "stays closed on successes",
			settings: Settings{Timeout: time.Minute},
			results:  []bool{true, true, true},
			want:     StateClosed,
		},
		{
			name:     "opens after consecutive failures",
			settings: Settings{Timeout: time.Minute, ReadyToTrip: tripAfter(3)},
			results:  []bool{false, false, false},
			want:     StateOpen,
		},
		{
			name:     "a success resets the streak",
			settings: Settings{Timeout: time.Minute, ReadyToTrip: tripAfter(3)},
			results:  []bool{false, false, true, false, false},
			want:     StateClosed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := New("test", tt.settings)
			run(b, tt.results...)
			assert.Equal(t, tt.want, b.State())
		})
	}
}

func TestBreakerCounts(t *testing.T) {
	b := New("test", Settings{Timeout: time.Minute})

	require.NoError(t, b.Do(func() error { return nil }))
	counts := b.Counts()
	assert.Equal(t, uint32(1), counts.Requests)
	assert.Equal(t, uint32(1), counts.TotalSuccesses)

	assert.ErrorIs(t, b.Do(func() error { return errFailed }), errFailed)
	counts = b.Counts()
	assert.Equal(t, uint32(2), counts.Requests)
	assert.Equal(t, uint32(1), counts.TotalFailures)
	assert.Equal(t, uint32(1), counts.ConsecutiveFailures)
	assert.Zero(t, counts.ConsecutiveSuccesses)
}

func TestBreakerOpenRejects(t *testing.T) {
	b := New("test", Settings{Timeout: time.Minute, ReadyToTrip: tripAfter(2)})
	run(b, false, false)

	called := false
	err := b.Do(func() error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.False(t, called)
}

func TestBreakerHalfOpenRecovers(t *testing.T) {
	var transitions []string
	b := New("dev1", Settings{
		MaxRequests: 2,
		Timeout:     30 * time.Millisecond,
		ReadyToTrip: tripAfter(2),
		OnStateChange: func(name string, from, to State) {
			transitions = append(transitions, name+":"+from.String()+"->"+to.String())
		},
	})
	run(b, false, false)
	require.Equal(t, StateOpen, b.State())

	time.Sleep(40 * time.Millisecond)
	assert.Equal(t, StateHalfOpen, b.State())

	run(b, true, true)
	assert.Equal(t, StateClosed, b.State())
	assert.Equal(t, []string{
		"dev1:closed->open",
		"dev1:open->half-open",
		"dev1:half-open->closed",
	}, transitions)
}

func TestBreakerHalfOpenFailureReopens(t *testing.T) {
	b := New("test", Settings{Timeout: 20 * time.Millisecond, ReadyToTrip: tripAfter(1)})
	run(b, false)
	time.Sleep(30 * time.Millisecond)
	require.Equal(t, StateHalfOpen, b.State())

	run(b, false)
	assert.Equal(t, StateOpen, b.State())
}

func TestBreakerPanicCountsAsFailure(t *testing.T) {
	b := New("test", Settings{Timeout: time.Minute, ReadyToTrip: tripAfter(1)})
	assert.Panics(t, func() {
		_ = b.Do(func() error { panic("boom") })
	})
	assert.Equal(t, StateOpen, b.State())
}

func TestGroupKeepsBreakerPerKey(t *testing.T) {
	g := NewGroup(Settings{Timeout: time.Minute, ReadyToTrip: tripAfter(1)})
	assert.Same(t, g.Get("a"), g.Get("a"))

	run(g.Get("a"), false)
	run(g.Get("b"), true)

	assert.Equal(t, map[string]State{"a": StateOpen, "b": StateClosed}, g.States())
}
