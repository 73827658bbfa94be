package ability

import (
	"github.com/GriffinCanCode/AgentOS/abilityms/internal/shared/id"
	"github.com/GriffinCanCode/AgentOS/abilityms/internal/shared/types"
)

// LauncherToken is permanently reserved for the home unit
const LauncherToken uint16 = 0

// Record is one entry per known ability. Records are owned by the List;
// the Stack only refers to them.
type Record struct {
	Token   uint16
	Name    string
	Path    string // empty for the launcher
	State   types.State
	Mission id.MissionID

	// Worker resources, created and destroyed together. Zero for the launcher.
	TaskID  types.TaskID
	QueueID types.QueueID

	IsTerminated bool

	data []byte
}

// NewRecord creates a record in the stop state
func NewRecord(token uint16, name, path string) *Record {
	return &Record{
		Token:   token,
		Name:    name,
		Path:    path,
		State:   types.StateStop,
		Mission: id.NewMissionID(),
	}
}

// IsLauncher reports whether the record is the home unit
func (r *Record) IsLauncher() bool {
	return r.Token == LauncherToken
}

// HasWorker reports whether a worker task and queue are attached
func (r *Record) HasWorker() bool {
	return r.TaskID != 0
}

// SetData replaces the pending payload with a copy of data
func (r *Record) SetData(data []byte) {
	r.data = types.CloneBytes(data)
}

// Data returns the pending payload
func (r *Record) Data() []byte {
	return r.data
}

// command builds the queue message for a lifecycle transition
func (r *Record) command(kind types.Lifecycle) types.Command {
	return types.Command{
		Kind:       kind,
		Token:      r.Token,
		BundleName: r.Name,
		Path:       r.Path,
		Payload:    types.CloneBytes(r.data),
	}
}

// Snapshot is a read-only copy of a record
type Snapshot struct {
	Token        uint16       `json:"token"`
	Name         string       `json:"bundle_name"`
	Path         string       `json:"path,omitempty"`
	State        string       `json:"state"`
	Mission      id.MissionID `json:"mission"`
	TaskID       types.TaskID `json:"task_id,omitempty"`
	IsTerminated bool         `json:"is_terminated"`
	DataLength   int          `json:"data_length"`
}

// Snapshot returns a copy safe to hand outside the controller
func (r *Record) Snapshot() Snapshot {
	return Snapshot{
		Token:        r.Token,
		Name:         r.Name,
		Path:         r.Path,
		State:        r.State.String(),
		Mission:      r.Mission,
		TaskID:       r.TaskID,
		IsTerminated: r.IsTerminated,
		DataLength:   len(r.data),
	}
}
