package ability

import (
	"sync"

	"github.com/GriffinCanCode/AgentOS/abilityms/internal/shared/id"
	"github.com/GriffinCanCode/AgentOS/abilityms/internal/shared/types"
)

// List is the bounded registry of every known ability record, ordered most
// recently added first.
//
// Each method is atomic on its own. Sequences of calls are not: a reader
// running between Erase and Add will see the record missing. Use MoveToTop
// for reordering.
type List struct {
	mu       sync.RWMutex
	records  []*Record // Protected by mu, index 0 is the front
	capacity int
}

// NewList creates a registry holding at most capacity records
func NewList(capacity int) *List {
	if capacity < 2 {
		capacity = 2
	}
	return &List{
		records:  make([]*Record, 0, capacity),
		capacity: capacity,
	}
}

// Add inserts rec at the front. A duplicate token is ignored. When the list
// is full the bottom entry is evicted first and returned to the caller, who
// becomes responsible for releasing it. The launcher is never evicted.
func (l *List) Add(rec *Record) (evicted *Record) {
	if rec == nil {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.indexLocked(rec.Token) >= 0 {
		return nil
	}
	if len(l.records) >= l.capacity {
		evicted = l.popBottomLocked()
	}
	l.records = append(l.records, nil)
	copy(l.records[1:], l.records)
	l.records[0] = rec
	return evicted
}

// popBottomLocked removes the tail entry. If the tail is the launcher, the
// entry above it goes instead and the launcher stays at the tail.
func (l *List) popBottomLocked() *Record {
	n := len(l.records)
	if n == 0 {
		return nil
	}
	last := l.records[n-1]
	if !last.IsLauncher() {
		l.records = l.records[:n-1]
		return last
	}
	if n < 2 {
		return nil
	}
	victim := l.records[n-2]
	l.records[n-2] = last
	l.records = l.records[:n-1]
	return victim
}

// Get finds a record by token
func (l *List) Get(token uint16) *Record {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if i := l.indexLocked(token); i >= 0 {
		return l.records[i]
	}
	return nil
}

// GetByName finds a record by bundle name
func (l *List) GetByName(name string) *Record {
	if name == "" {
		return nil
	}

	l.mu.RLock()
	defer l.mu.RUnlock()

	for _, rec := range l.records {
		if rec.Name == name {
			return rec
		}
	}
	return nil
}

// GetByTaskID finds the record owning a worker task
func (l *List) GetByTaskID(task types.TaskID) *Record {
	if task == 0 {
		return nil
	}

	l.mu.RLock()
	defer l.mu.RUnlock()

	for _, rec := range l.records {
		if rec.TaskID == task {
			return rec
		}
	}
	return nil
}

// Erase removes the record with token, reporting whether it was present
func (l *List) Erase(token uint16) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	i := l.indexLocked(token)
	if i < 0 {
		return false
	}
	l.records = append(l.records[:i], l.records[i+1:]...)
	return true
}

// MoveToTop moves the record with token to the front under a single lock
func (l *List) MoveToTop(token uint16) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	i := l.indexLocked(token)
	if i < 0 {
		return false
	}
	rec := l.records[i]
	copy(l.records[1:i+1], l.records[:i])
	l.records[0] = rec
	return true
}

// Size returns the number of records
func (l *List) Size() int {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return len(l.records)
}

// Capacity returns the configured bound
func (l *List) Capacity() int {
	return l.capacity
}

// ByMission returns the records started under one mission, front first
func (l *List) ByMission(mission id.MissionID) []*Record {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var out []*Record
	for _, rec := range l.records {
		if rec.Mission == mission {
			out = append(out, rec)
		}
	}
	return out
}

// MissionInfos lists bundle names front first, at most max entries (0 = all)
func (l *List) MissionInfos(max int) []types.MissionInfo {
	l.mu.RLock()
	defer l.mu.RUnlock()

	n := len(l.records)
	if max > 0 && max < n {
		n = max
	}
	infos := make([]types.MissionInfo, 0, n)
	for _, rec := range l.records[:n] {
		infos = append(infos, types.MissionInfo{BundleName: rec.Name})
	}
	return infos
}

// Records returns the records front first
func (l *List) Records() []*Record {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]*Record, len(l.records))
	copy(out, l.records)
	return out
}

func (l *List) indexLocked(token uint16) int {
	for i, rec := range l.records {
		if rec.Token == token {
			return i
		}
	}
	return -1
}
