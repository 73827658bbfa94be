package types

import "time"

// State represents the confirmed lifecycle state of an ability record
type State int

const (
	StateStop State = iota
	StateInactive
	StateActive
	StateBackground
)

// String returns the string representation of the state
func (s State) String() string {
	switch s {
	case StateStop:
		return "stop"
	case StateInactive:
		return "inactive"
	case StateActive:
		return "active"
	case StateBackground:
		return "background"
	default:
		return "unknown"
	}
}

// Intent is the boundary request identifying a target ability
type Intent struct {
	BundleName string `json:"bundle_name"`
	Data       []byte `json:"data,omitempty"`
	DeviceID   string `json:"device_id,omitempty"` // Remote device; empty means local

	// CallerTask is the worker task issuing the request, 0 for the home unit
	CallerTask uint32 `json:"caller_task,omitempty"`
}

// IsRemote reports whether the intent targets another device
func (i *Intent) IsRemote() bool {
	return i.DeviceID != ""
}

// Clone returns a deep copy of the intent
func (i *Intent) Clone() *Intent {
	if i == nil {
		return nil
	}
	c := *i
	c.Data = CloneBytes(i.Data)
	return &c
}

// Element identifies an ability by bundle name
type Element struct {
	BundleName string `json:"bundle_name,omitempty"`
	DeviceID   string `json:"device_id,omitempty"`
}

// MissionInfo describes one entry of the mission list
type MissionInfo struct {
	BundleName string `json:"bundle_name"`
}

// Stats contains controller statistics
type Stats struct {
	Records      int    `json:"records"`
	StackDepth   int    `json:"stack_depth"`
	PendingToken uint16 `json:"pending_token"`
	TopBundle    string `json:"top_bundle,omitempty"`
	TopToken     uint16 `json:"top_token"`
	TopState     string `json:"top_state,omitempty"`
}

// Event is a lifecycle notification emitted by the controller
type Event struct {
	ID         string    `json:"id"`
	Kind       string    `json:"kind"` // "dispatch", "state", "evict", "destroy"
	Token      uint16    `json:"token"`
	BundleName string    `json:"bundle_name"`
	Lifecycle  string    `json:"lifecycle,omitempty"`
	State      string    `json:"state,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// CloneBytes copies b, returning nil for empty input
func CloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

// TaskID is a handle to a worker task, 0 means none
type TaskID uint32

// QueueID is a handle to a worker command queue, 0 means none
type QueueID uint32
