package ability

import (
	"context"
	"fmt"
	"runtime"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/abilityms/internal/infrastructure/logging"
	"github.com/GriffinCanCode/AgentOS/abilityms/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/AgentOS/abilityms/internal/shared/id"
	"github.com/GriffinCanCode/AgentOS/abilityms/internal/shared/types"
)

// NativeAbility is the home unit's callback object. It is invoked
// synchronously on the controller's execution context.
type NativeAbility interface {
	OnActive(intent types.Intent)
	OnBackground()
	State() types.State
}

// TaskHost creates and destroys worker tasks and their command queues
type TaskHost interface {
	CreateTask(priority, stackSize int) (types.TaskID, error)
	CreateQueue(task types.TaskID, depth int) (types.QueueID, error)
	Post(queue types.QueueID, cmd types.Command) error
	ForceDestroy(task types.TaskID)
	DestroyTask(task types.TaskID)
	DestroyQueue(queue types.QueueID)
}

// BundleResolver maps a bundle name to its execution path
type BundleResolver interface {
	Resolve(name string) (bundleName, path string, ok bool)
}

// ResponseChecker decides whether a start request may proceed
type ResponseChecker interface {
	CheckResponse(bundleName string) error
}

// RemoteStarter starts an ability on another device
type RemoteStarter interface {
	StartRemoteAbility(ctx context.Context, intent *types.Intent, callerBundle string) error
}

// EventSink receives lifecycle events
type EventSink interface {
	Publish(event types.Event)
}

// Config holds controller settings
type Config struct {
	Capacity       int
	LauncherBundle string
	LauncherSuffix string
	QueueLength    int
	TaskPriority   int
	StackSize      int
	PostRetries    int
}

// DefaultConfig returns the stock controller settings
func DefaultConfig() Config {
	return Config{
		Capacity:       10,
		LauncherBundle: "com.ohos.launcher",
		LauncherSuffix: ".launcher",
		QueueLength:    32,
		TaskPriority:   25,
		StackSize:      65536,
	}
}

// Manager is the lifecycle controller. It must be driven from a single
// execution context; Loop provides one.
type Manager struct {
	cfg   Config
	list  *List
	stack *Stack

	tokens       tokenGenerator
	pendingToken uint16
	cleanData    bool

	native  NativeAbility
	host    TaskHost
	bundles BundleResolver
	checker ResponseChecker
	remote  RemoteStarter
	events  EventSink

	logger  *logging.Logger
	metrics *monitoring.Metrics
}

// NewManager creates a lifecycle controller
func NewManager(cfg Config, host TaskHost, logger *logging.Logger) *Manager {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Manager{
		cfg:    cfg,
		list:   NewList(cfg.Capacity),
		stack:  NewStack(),
		host:   host,
		logger: logger,
	}
}

// WithMetrics adds metrics tracking to the manager
func (m *Manager) WithMetrics(metrics *monitoring.Metrics) *Manager {
	m.metrics = metrics
	return m
}

// WithBundles sets the bundle resolver
func (m *Manager) WithBundles(bundles BundleResolver) *Manager {
	m.bundles = bundles
	return m
}

// WithChecker sets the response checker
func (m *Manager) WithChecker(checker ResponseChecker) *Manager {
	m.checker = checker
	return m
}

// WithRemote sets the remote starter
func (m *Manager) WithRemote(remote RemoteStarter) *Manager {
	m.remote = remote
	return m
}

// WithEvents sets the lifecycle event sink
func (m *Manager) WithEvents(events EventSink) *Manager {
	m.events = events
	return m
}

// SetNativeAbility installs the home unit's callback object. nil leaves the
// controller in the bootstrap configuration where apps are activated directly.
func (m *Manager) SetNativeAbility(native NativeAbility) {
	m.native = native
}

// SetCleanAbilityDataFlag requests that the launcher payload be dropped the
// next time it goes to background behind an app
func (m *Manager) SetCleanAbilityDataFlag(clean bool) {
	m.cleanData = clean
}

// IsLauncher reports whether name designates the home unit
func (m *Manager) IsLauncher(name string) bool {
	if name == m.cfg.LauncherBundle {
		return true
	}
	return m.cfg.LauncherSuffix != "" && strings.HasSuffix(name, m.cfg.LauncherSuffix)
}

// StartLauncher creates the home record and activates it. Calling it again is a no-op.
func (m *Manager) StartLauncher() error {
	if m.list.Get(LauncherToken) != nil {
		return nil
	}

	rec := NewRecord(LauncherToken, m.cfg.LauncherBundle, "")
	rec.State = types.StateActive
	m.addRecord(rec)
	m.stack.Push(rec)
	m.observe()

	m.logger.Info("Launcher started", zap.String("bundle", rec.Name))
	return m.schedule(rec, types.LifecycleActive)
}

// StartAbility brings the ability named by intent to the foreground
func (m *Manager) StartAbility(ctx context.Context, intent *types.Intent) error {
	if intent == nil || intent.BundleName == "" {
		return fmt.Errorf("%w: intent has no bundle name", ErrParamNull)
	}
	if intent.IsRemote() {
		caller, err := m.RemoteCaller(intent)
		if err != nil {
			return err
		}
		return m.startRemote(ctx, intent, caller)
	}

	name, path, err := m.resolve(intent.BundleName)
	if err != nil {
		m.metrics.RecordStart(Code(err))
		return err
	}

	err = m.start(name, path, intent.Data)
	m.metrics.RecordStart(Code(err))
	return err
}

func (m *Manager) resolve(name string) (string, string, error) {
	if m.IsLauncher(name) {
		return name, "", nil
	}
	if m.bundles == nil {
		return "", "", fmt.Errorf("%w: no bundle resolver for %q", ErrParamNull, name)
	}
	resolved, path, ok := m.bundles.Resolve(name)
	if !ok || resolved == "" || path == "" {
		m.logger.Error("Bundle info is not valid", zap.String("bundle", name))
		return "", "", fmt.Errorf("%w: bundle %q has no valid ability info", ErrParamNull, name)
	}
	return resolved, path, nil
}

func (m *Manager) start(name, path string, data []byte) error {
	top := m.stack.Top()
	if top == nil {
		m.logger.Error("No foreground ability", zap.String("bundle", name))
		return fmt.Errorf("%w: no foreground ability", ErrParamNull)
	}

	if m.IsLauncher(name) {
		m.updateLauncherData(name, data)
		if !top.IsLauncher() && top.State != types.StateBackground {
			m.logger.Info("Moving app to background for launcher", zap.Uint16("token", top.Token))
			_ = m.schedule(top, types.LifecycleBackground)
		} else {
			_ = m.scheduleToken(LauncherToken, types.LifecycleActive)
		}
		return nil
	}

	if err := m.checkResponse(name); err != nil {
		return err
	}

	if top.State != types.StateStop && !top.IsLauncher() {
		if top.Name == name {
			if top.State == types.StateBackground {
				m.logger.Info("Resuming app from background", zap.Uint16("token", top.Token))
				_ = m.scheduleToken(LauncherToken, types.LifecycleBackground)
				return nil
			}
			m.logger.Info("App already started or starting", zap.String("bundle", name))
		} else {
			m.logger.Info("Terminating foreground app before switch",
				zap.Uint16("token", top.Token),
				zap.String("from", top.Name),
				zap.String("to", name),
			)
			if err := m.TerminateAbility(top.Token); err != nil {
				m.logger.Warn("Terminate of foreground app failed", zap.Uint16("token", top.Token), zap.Error(err))
			}
			m.reservePending()
		}
	}

	return m.preCheckStart(name, path, data)
}

func (m *Manager) updateLauncherData(name string, data []byte) {
	rec := m.list.GetByName(name)
	if rec == nil || !rec.IsLauncher() {
		return
	}
	rec.SetData(data)
}

func (m *Manager) checkResponse(name string) error {
	if m.checker == nil {
		return nil
	}
	if err := m.checker.CheckResponse(name); err != nil {
		m.logger.Warn("Start request rejected", zap.String("bundle", name), zap.Error(err))
		return fmt.Errorf("%w: %s: %v", ErrParamCheck, name, err)
	}
	return nil
}

// reservePending reserves the token for the app that starts once the
// current foreground app is destroyed. An older reservation that never got
// its worker is discarded.
func (m *Manager) reservePending() {
	if m.pendingToken != 0 {
		if old := m.list.Get(m.pendingToken); old != nil && !old.HasWorker() {
			m.logger.Info("Replacing pending start", zap.Uint16("token", old.Token), zap.String("bundle", old.Name))
			m.deleteRecord(old.Token)
		}
	}
	m.pendingToken = m.tokens.next()
}

func (m *Manager) preCheckStart(name, path string, data []byte) error {
	if path == "" {
		m.logger.Error("Start path is empty", zap.String("bundle", name))
		return fmt.Errorf("%w: empty path for %q", ErrParamNull, name)
	}

	if cur := m.list.GetByName(name); cur != nil {
		switch cur.State {
		case types.StateActive:
			m.logger.Warn("Ability already active", zap.Uint16("token", cur.Token))
		case types.StateBackground:
			_ = m.scheduleToken(LauncherToken, types.LifecycleBackground)
		}
		return nil
	}

	pending := m.pendingToken != 0
	token := m.pendingToken
	if !pending {
		token = m.tokens.next()
	}
	rec := NewRecord(token, name, path)
	rec.SetData(data)
	m.addRecord(rec)

	if pending {
		m.logger.Info("Start pending on foreground teardown", zap.Uint16("token", token), zap.String("bundle", name))
		return nil
	}
	if err := m.createWorkerUnit(rec); err != nil {
		m.logger.Error("Create worker unit failed", zap.Uint16("token", token), zap.String("bundle", name), zap.Error(err))
		m.deleteRecord(token)
		return fmt.Errorf("%w: %s: %v", ErrCreateTask, name, err)
	}
	return nil
}

// createWorkerUnit attaches a worker task and queue to rec, pushes it on the
// stack and starts the launcher/app hand-over.
func (m *Manager) createWorkerUnit(rec *Record) error {
	if rec == nil || rec.Name == "" {
		return fmt.Errorf("%w: no record to start", ErrParamNull)
	}
	if m.host == nil {
		return fmt.Errorf("%w: no task host", ErrCreateTask)
	}

	task, err := m.host.CreateTask(m.cfg.TaskPriority, m.cfg.StackSize)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCreateTask, err)
	}
	queue, err := m.host.CreateQueue(task, m.cfg.QueueLength)
	if err != nil {
		m.host.DestroyTask(task)
		return fmt.Errorf("%w: queue: %v", ErrCreateTask, err)
	}

	rec.TaskID = task
	rec.QueueID = queue
	rec.State = types.StateInactive
	m.stack.Push(rec)
	m.observe()
	m.logger.Info("Worker unit created",
		zap.Uint16("token", rec.Token),
		zap.String("bundle", rec.Name),
		zap.Uint32("task", uint32(task)),
	)

	if m.native == nil {
		return m.schedule(rec, types.LifecycleActive)
	}
	if err := m.scheduleToken(LauncherToken, types.LifecycleBackground); err != nil {
		m.stack.Pop()
		m.observe()
		return fmt.Errorf("%w: hiding launcher: %v", ErrLifecycle, err)
	}
	return nil
}

// TerminateAbility asks the foreground app identified by token to shut down
func (m *Manager) TerminateAbility(token uint16) error {
	m.logger.Info("Terminate ability", zap.Uint16("token", token))

	top := m.stack.Top()
	if top == nil {
		return fmt.Errorf("%w: no ability running", ErrParamNull)
	}

	if token == LauncherToken {
		// the launcher cannot be terminated; with an app behind it, it yields instead
		if !top.IsLauncher() && top.State == types.StateBackground {
			m.logger.Info("Resuming app behind launcher", zap.Uint16("token", top.Token))
			return m.scheduleToken(LauncherToken, types.LifecycleBackground)
		}
		return nil
	}

	if token != top.Token {
		m.logger.Warn("Terminating stale token", zap.Uint16("token", token), zap.Uint16("top", top.Token))
		m.deleteRecord(token)
		return fmt.Errorf("%w: %d, foreground is %d", ErrStaleToken, token, top.Token)
	}

	top.IsTerminated = true
	return m.schedule(top, types.LifecycleBackground)
}

// ForceStopBundle tears down the ability with token without the
// background/destroy handshake
func (m *Manager) ForceStopBundle(token uint16) error {
	m.logger.Info("Force stop", zap.Uint16("token", token))
	if token == LauncherToken {
		m.logger.Info("Launcher does not support force stop")
		return nil
	}

	rec := m.list.Get(token)
	if rec == nil {
		return fmt.Errorf("%w: unknown token %d", ErrParamCheck, token)
	}
	wasTop := m.stack.Top() == rec
	if rec.HasWorker() && m.host != nil {
		m.host.ForceDestroy(rec.TaskID)
	}
	m.deleteRecord(token)

	if wasTop && m.pendingToken != 0 {
		m.handOff()
		return nil
	}

	launcher := m.list.Get(LauncherToken)
	if launcher == nil {
		return fmt.Errorf("%w: launcher not started", ErrParamNull)
	}
	if launcher.State != types.StateActive {
		return m.schedule(launcher, types.LifecycleActive)
	}
	return nil
}

// ForceStop tears down the ability with the given bundle name
func (m *Manager) ForceStop(name string) error {
	if name == "" {
		return fmt.Errorf("%w: empty bundle name", ErrParamNull)
	}
	if m.IsLauncher(name) {
		m.logger.Info("Launcher does not support force stop")
		return nil
	}
	rec := m.list.GetByName(name)
	if rec == nil {
		return fmt.Errorf("%w: %q is not running", ErrParamCheck, name)
	}
	return m.ForceStopBundle(rec.Token)
}

// GetTopAbility returns the identity of the visible ability
func (m *Manager) GetTopAbility() (types.Element, bool) {
	top := m.stack.Top()
	launcher := m.list.Get(LauncherToken)
	if top == nil || launcher == nil {
		return types.Element{}, false
	}
	if top.IsLauncher() || launcher.State == types.StateActive {
		return types.Element{BundleName: launcher.Name}, true
	}
	if top.State == types.StateActive || top.State == types.StateBackground {
		return types.Element{BundleName: top.Name}, true
	}
	return types.Element{BundleName: launcher.Name}, true
}

// RemoteCaller resolves the bundle on whose behalf a remote start is made
func (m *Manager) RemoteCaller(intent *types.Intent) (string, error) {
	if m.remote == nil {
		return "", fmt.Errorf("%w: remote start not supported", ErrParamNull)
	}
	var caller *Record
	if intent.CallerTask != 0 {
		caller = m.list.GetByTaskID(types.TaskID(intent.CallerTask))
	} else {
		caller = m.list.Get(LauncherToken)
	}
	if caller == nil || caller.Name == "" {
		m.logger.Error("No caller record for remote start", zap.Uint32("task", intent.CallerTask))
		return "", fmt.Errorf("%w: no caller for task %d", ErrParamNull, intent.CallerTask)
	}
	return caller.Name, nil
}

// Remote returns the configured remote starter
func (m *Manager) Remote() RemoteStarter {
	return m.remote
}

func (m *Manager) startRemote(ctx context.Context, intent *types.Intent, caller string) error {
	err := m.remote.StartRemoteAbility(ctx, intent, caller)
	m.logger.Info("Remote start",
		zap.String("bundle", intent.BundleName),
		zap.String("device", intent.DeviceID),
		zap.Error(err),
	)
	if err != nil {
		err = fmt.Errorf("%w: remote start: %v", ErrFailed, err)
	}
	m.metrics.RecordStart(Code(err))
	return err
}

// MissionInfos lists running bundles, most recent first
func (m *Manager) MissionInfos(max int) []types.MissionInfo {
	return m.list.MissionInfos(max)
}

// Mission returns the records of one mission
func (m *Manager) Mission(mission id.MissionID) []Snapshot {
	recs := m.list.ByMission(mission)
	out := make([]Snapshot, 0, len(recs))
	for _, rec := range recs {
		out = append(out, rec.Snapshot())
	}
	return out
}

// Records returns snapshots of every record, most recent first
func (m *Manager) Records() []Snapshot {
	recs := m.list.Records()
	out := make([]Snapshot, 0, len(recs))
	for _, rec := range recs {
		out = append(out, rec.Snapshot())
	}
	return out
}

// Stats returns controller statistics
func (m *Manager) Stats() types.Stats {
	stats := types.Stats{
		Records:      m.list.Size(),
		StackDepth:   m.stack.Size(),
		PendingToken: m.pendingToken,
	}
	if top := m.stack.Top(); top != nil {
		stats.TopBundle = top.Name
		stats.TopToken = top.Token
		stats.TopState = top.State.String()
	}
	return stats
}

// Shutdown releases every record including the launcher. Only for process teardown.
func (m *Manager) Shutdown() {
	for _, rec := range m.list.Records() {
		m.list.Erase(rec.Token)
		m.destroyRecord(rec)
	}
	m.pendingToken = 0
	m.observe()
}

func (m *Manager) addRecord(rec *Record) {
	evicted := m.list.Add(rec)
	if evicted == nil {
		m.observe()
		return
	}

	m.logger.Warn("Registry full, evicting record",
		zap.Uint16("token", evicted.Token),
		zap.String("bundle", evicted.Name),
	)
	m.metrics.IncEvictions()
	m.emit("evict", evicted, 0)
	wasTop := m.stack.Top() == evicted
	m.destroyRecord(evicted)

	// the evicted app was being torn down for a pending start; no destroy
	// acknowledgement will arrive for it now
	if wasTop && m.pendingToken != 0 && m.list.Get(m.pendingToken) != nil {
		m.handOff()
	}
}

// deleteRecord removes a non-launcher record from the registry and releases it
func (m *Manager) deleteRecord(token uint16) {
	if token == LauncherToken {
		return
	}
	rec := m.list.Get(token)
	if rec == nil {
		return
	}
	m.list.Erase(token)
	m.destroyRecord(rec)
}

// destroyRecord is the only place worker resources and payloads are released.
// rec must already be out of the registry.
func (m *Manager) destroyRecord(rec *Record) {
	m.stack.Erase(rec)
	if rec.HasWorker() && m.host != nil {
		// task first so nothing reads from a deleted queue
		m.host.DestroyTask(rec.TaskID)
		m.host.DestroyQueue(rec.QueueID)
	}
	rec.TaskID = 0
	rec.QueueID = 0
	rec.data = nil
	if m.pendingToken != 0 && m.pendingToken == rec.Token {
		m.pendingToken = 0
	}
	m.emit("destroy", rec, 0)
	m.observe()
}

func (m *Manager) observe() {
	m.metrics.SetRegistrySize(m.list.Size())
	m.metrics.SetStackDepth(m.stack.Size())
}

func (m *Manager) emit(kind string, rec *Record, lifecycle types.Lifecycle) {
	if m.events == nil || rec == nil {
		return
	}
	ev := types.Event{
		ID:         id.NewEventID().String(),
		Kind:       kind,
		Token:      rec.Token,
		BundleName: rec.Name,
		State:      rec.State.String(),
		Timestamp:  time.Now(),
	}
	if lifecycle != 0 {
		ev.Lifecycle = lifecycle.String()
	}
	m.events.Publish(ev)
}

func (m *Manager) scheduleToken(token uint16, kind types.Lifecycle) error {
	rec := m.list.Get(token)
	if rec == nil {
		m.logger.Warn("Lifecycle for unknown token", zap.Uint16("token", token), zap.Stringer("kind", kind))
		return fmt.Errorf("%w: unknown token %d", ErrParamNull, token)
	}
	return m.schedule(rec, kind)
}

// schedule dispatches a lifecycle instruction: a direct call for the
// launcher, a queue post for a worker. It never waits for the outcome.
func (m *Manager) schedule(rec *Record, kind types.Lifecycle) error {
	if rec == nil {
		return fmt.Errorf("%w: no record", ErrParamNull)
	}
	if !rec.IsLauncher() {
		return m.post(rec, kind)
	}

	if m.native == nil {
		m.metrics.RecordDispatch("native", kind.String(), "absent")
		return fmt.Errorf("%w: no native ability installed", ErrLifecycle)
	}
	m.emit("dispatch", rec, kind)
	switch kind {
	case types.LifecycleActive:
		m.native.OnActive(types.Intent{
			BundleName: m.cfg.LauncherBundle,
			Data:       types.CloneBytes(rec.data),
		})
	case types.LifecycleBackground:
		m.native.OnBackground()
	}
	m.metrics.RecordDispatch("native", kind.String(), "ok")
	return nil
}

func (m *Manager) post(rec *Record, kind types.Lifecycle) error {
	if !rec.HasWorker() || m.host == nil {
		m.metrics.RecordDispatch("worker", kind.String(), "absent")
		return fmt.Errorf("%w: token %d has no worker queue", ErrLifecycle, rec.Token)
	}

	cmd := rec.command(kind)
	var err error
	for attempt := 0; ; attempt++ {
		if err = m.host.Post(rec.QueueID, cmd); err == nil || attempt >= m.cfg.PostRetries {
			break
		}
		// let the worker drain before the next non-blocking attempt
		runtime.Gosched()
	}
	if err != nil {
		m.metrics.RecordDispatch("worker", kind.String(), "dropped")
		m.metrics.IncQueueDrops()
		m.logger.Warn("Lifecycle command not delivered",
			zap.Uint16("token", rec.Token),
			zap.Stringer("kind", kind),
			zap.Error(err),
		)
		return fmt.Errorf("%w: %s to token %d: %v", ErrLifecycle, kind, rec.Token, err)
	}

	m.emit("dispatch", rec, kind)
	m.metrics.RecordDispatch("worker", kind.String(), "ok")
	return nil
}
