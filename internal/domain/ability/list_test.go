package ability

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/AgentOS/abilityms/internal/shared/types"
)

func tokensOf(l *List) []uint16 {
	var out []uint16
	for _, rec := range l.Records() {
		out = append(out, rec.Token)
	}
	return out
}

func TestListAddOrdersMostRecentFirst(t *testing.T) {
	l := NewList(5)
	l.Add(NewRecord(LauncherToken, "com.ohos.launcher", ""))
	l.Add(NewRecord(1, "a", "/a"))
	l.Add(NewRecord(2, "b", "/b"))

	assert.Equal(t, []uint16{2, 1, 0}, tokensOf(l))
	assert.Equal(t, 3, l.Size())
}

func TestListDuplicateTokenIgnored(t *testing.T) {
	l := NewList(2)
	l.Add(NewRecord(LauncherToken, "com.ohos.launcher", ""))
	l.Add(NewRecord(1, "a", "/a"))

	// full list, but the duplicate must not evict anything
	evicted := l.Add(NewRecord(1, "other", "/other"))
	assert.Nil(t, evicted)
	assert.Equal(t, []uint16{1, 0}, tokensOf(l))
	assert.Equal(t, "a", l.Get(1).Name)
}

func TestListEvictionProtectsLauncher(t *testing.T) {
	l := NewList(3)
	l.Add(NewRecord(LauncherToken, "com.ohos.launcher", ""))
	l.Add(NewRecord(1, "a", "/a"))
	l.Add(NewRecord(2, "b", "/b"))

	evicted := l.Add(NewRecord(3, "c", "/c"))
	require.NotNil(t, evicted)
	assert.Equal(t, uint16(1), evicted.Token)
	assert.Equal(t, []uint16{3, 2, 0}, tokensOf(l))

	evicted = l.Add(NewRecord(4, "d", "/d"))
	require.NotNil(t, evicted)
	assert.Equal(t, uint16(2), evicted.Token)
	assert.Equal(t, []uint16{4, 3, 0}, tokensOf(l))
}

func TestListEvictionWithoutLauncher(t *testing.T) {
	l := NewList(2)
	l.Add(NewRecord(1, "a", "/a"))
	l.Add(NewRecord(2, "b", "/b"))

	evicted := l.Add(NewRecord(3, "c", "/c"))
	require.NotNil(t, evicted)
	assert.Equal(t, uint16(1), evicted.Token)
	assert.Equal(t, []uint16{3, 2}, tokensOf(l))
}

func TestListCapacityClamped(t *testing.T) {
	assert.Equal(t, 2, NewList(0).Capacity())
	assert.Equal(t, 2, NewList(1).Capacity())
	assert.Equal(t, 7, NewList(7).Capacity())
}

func TestListLookups(t *testing.T) {
	l := NewList(4)
	launcher := NewRecord(LauncherToken, "com.ohos.launcher", "")
	app := NewRecord(1, "a", "/a")
	app.TaskID = 42
	l.Add(launcher)
	l.Add(app)

	assert.Same(t, app, l.Get(1))
	assert.Nil(t, l.Get(9))
	assert.Same(t, app, l.GetByName("a"))
	assert.Nil(t, l.GetByName("missing"))
	assert.Same(t, app, l.GetByTaskID(42))
	assert.Nil(t, l.GetByTaskID(0), "task 0 never matches the launcher")
	assert.Len(t, l.ByMission(app.Mission), 1)
}

func TestListEraseAndMoveToTop(t *testing.T) {
	l := NewList(4)
	l.Add(NewRecord(LauncherToken, "com.ohos.launcher", ""))
	l.Add(NewRecord(1, "a", "/a"))
	l.Add(NewRecord(2, "b", "/b"))

	assert.True(t, l.MoveToTop(1))
	assert.Equal(t, []uint16{1, 2, 0}, tokensOf(l))
	assert.False(t, l.MoveToTop(9))

	assert.True(t, l.Erase(2))
	assert.False(t, l.Erase(2))
	assert.Equal(t, []uint16{1, 0}, tokensOf(l))
}

func TestListMissionInfos(t *testing.T) {
	l := NewList(4)
	l.Add(NewRecord(LauncherToken, "com.ohos.launcher", ""))
	l.Add(NewRecord(1, "a", "/a"))
	l.Add(NewRecord(2, "b", "/b"))

	assert.Equal(t, []types.MissionInfo{{BundleName: "b"}, {BundleName: "a"}}, l.MissionInfos(2))
	assert.Len(t, l.MissionInfos(10), 3)
	assert.Len(t, l.MissionInfos(0), 3, "zero means no limit")
}

func TestStackPushMovesExisting(t *testing.T) {
	s := NewStack()
	launcher := NewRecord(LauncherToken, "com.ohos.launcher", "")
	app := NewRecord(1, "a", "/a")

	s.Push(launcher)
	s.Push(app)
	s.Push(launcher)

	assert.Equal(t, 2, s.Size())
	assert.Same(t, launcher, s.Top())
	assert.Same(t, launcher, s.Pop())
	assert.Same(t, app, s.Pop())
	assert.Nil(t, s.Pop())
	assert.Nil(t, s.Top())
}

func TestStackEraseAndMoveToTop(t *testing.T) {
	s := NewStack()
	a := NewRecord(1, "a", "/a")
	b := NewRecord(2, "b", "/b")
	s.Push(a)
	s.Push(b)

	assert.True(t, s.MoveToTop(1))
	assert.Same(t, a, s.Top())

	// a different record with the same token is not on the stack
	assert.False(t, s.Erase(NewRecord(1, "a", "/a")))
	assert.True(t, s.Erase(a))
	assert.Same(t, b, s.Top())
	assert.False(t, s.MoveToTop(1))
}

func TestTokenGeneratorWraps(t *testing.T) {
	var g tokenGenerator
	assert.Equal(t, uint16(1), g.next())
	assert.Equal(t, uint16(2), g.next())

	g.last = 65533
	assert.Equal(t, uint16(65534), g.next())
	assert.Equal(t, uint16(1), g.next(), "wraps before the maximum and skips the launcher token")
}

func TestRecordSnapshotAndData(t *testing.T) {
	rec := NewRecord(3, "a", "/a")
	data := []byte("payload")
	rec.SetData(data)
	data[0] = 'X'

	assert.Equal(t, []byte("payload"), rec.Data())
	snap := rec.Snapshot()
	assert.Equal(t, "stop", snap.State)
	assert.Equal(t, 7, snap.DataLength)
	assert.False(t, rec.HasWorker())
	assert.False(t, rec.IsLauncher())

	cmd := rec.command(types.LifecycleActive)
	assert.Equal(t, uint16(3), cmd.Token)
	assert.Equal(t, "/a", cmd.Path)
	assert.Equal(t, 7, cmd.PayloadLength())
}
