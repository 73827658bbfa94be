package host

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/abilityms/internal/infrastructure/logging"
	"github.com/GriffinCanCode/AgentOS/abilityms/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/AgentOS/abilityms/internal/shared/types"
)

var (
	ErrTaskLimit     = errors.New("worker task limit reached")
	ErrUnknownTask   = errors.New("unknown worker task")
	ErrUnknownQueue  = errors.New("unknown worker queue")
	ErrQueueAttached = errors.New("worker task already has a queue")
	ErrQueueFull     = errors.New("worker queue full")
	ErrQueueClosed   = errors.New("worker queue closed")
)

// TaskInfo describes a live worker task
type TaskInfo struct {
	ID        types.TaskID  `json:"id"`
	Queue     types.QueueID `json:"queue,omitempty"`
	Priority  int           `json:"priority"`
	StackSize int           `json:"stack_size"`
	Bundle    string        `json:"bundle,omitempty"`
}

// Spawner hosts worker tasks as goroutines, each fed by a bounded queue
type Spawner struct {
	mu     sync.RWMutex
	tasks  map[types.TaskID]*task
	queues map[types.QueueID]*queue

	nextTask  types.TaskID
	nextQueue types.QueueID
	maxTasks  int

	ack     Acknowledger
	factory RunnerFactory
	logger  *logging.Logger
	metrics *monitoring.Metrics

	wg sync.WaitGroup
}

// NewSpawner creates a host allowing at most maxTasks live tasks (0 = unbounded)
func NewSpawner(maxTasks int, ack Acknowledger, logger *logging.Logger) *Spawner {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Spawner{
		tasks:    make(map[types.TaskID]*task),
		queues:   make(map[types.QueueID]*queue),
		maxTasks: maxTasks,
		ack:      ack,
		factory:  func(types.Command) Runner { return NopRunner{} },
		logger:   logger,
	}
}

// WithMetrics adds metrics tracking to the spawner
func (s *Spawner) WithMetrics(metrics *monitoring.Metrics) *Spawner {
	s.metrics = metrics
	return s
}

// WithRunnerFactory sets how tasks build their runner
func (s *Spawner) WithRunnerFactory(factory RunnerFactory) *Spawner {
	if factory != nil {
		s.factory = factory
	}
	return s
}

// SetAcknowledger sets where completions are reported. Must be called
// before the first task is created.
func (s *Spawner) SetAcknowledger(ack Acknowledger) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ack = ack
}

// CreateTask starts a worker task. It idles until a queue is attached.
// priority and stackSize are recorded only; goroutines have neither.
func (s *Spawner) CreateTask(priority, stackSize int) (types.TaskID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.maxTasks > 0 && len(s.tasks) >= s.maxTasks {
		return 0, fmt.Errorf("%w: %d live", ErrTaskLimit, len(s.tasks))
	}

	s.nextTask++
	ctx, cancel := context.WithCancel(context.Background())
	t := &task{
		id:        s.nextTask,
		priority:  priority,
		stackSize: stackSize,
		ctx:       ctx,
		cancel:    cancel,
		attach:    make(chan *queue, 1),
		done:      make(chan struct{}),
	}
	s.tasks[t.id] = t

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.run(t)
	}()

	s.metrics.SetWorkerTasks(len(s.tasks))
	s.logger.Debug("Worker task created", zap.Uint32("task", uint32(t.id)))
	return t.id, nil
}

// CreateQueue creates a bounded command queue and attaches it to task
func (s *Spawner) CreateQueue(task types.TaskID, depth int) (types.QueueID, error) {
	if depth <= 0 {
		depth = 1
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[task]
	if !ok {
		return 0, fmt.Errorf("%w: %d", ErrUnknownTask, task)
	}
	if t.queue != nil {
		return 0, fmt.Errorf("%w: %d", ErrQueueAttached, task)
	}

	s.nextQueue++
	q := &queue{
		id:   s.nextQueue,
		task: task,
		ch:   make(chan types.Command, depth),
	}
	s.queues[q.id] = q
	t.queue = q
	t.attach <- q
	return q.id, nil
}

// Post delivers cmd without blocking
func (s *Spawner) Post(queueID types.QueueID, cmd types.Command) error {
	s.mu.RLock()
	q, ok := s.queues[queueID]
	s.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownQueue, queueID)
	}

	if err := q.post(cmd); err != nil {
		s.metrics.IncQueueDrops()
		return err
	}
	return nil
}

// ForceDestroy stops a task immediately, abandoning queued commands
func (s *Spawner) ForceDestroy(task types.TaskID) {
	s.logger.Info("Force destroying worker task", zap.Uint32("task", uint32(task)))
	s.stopTask(task, true)
}

// DestroyTask stops a task once its current command completes
func (s *Spawner) DestroyTask(task types.TaskID) {
	s.stopTask(task, false)
}

// DestroyQueue closes and forgets a queue
func (s *Spawner) DestroyQueue(queueID types.QueueID) {
	s.mu.Lock()
	q, ok := s.queues[queueID]
	delete(s.queues, queueID)
	s.mu.Unlock()

	if ok {
		q.close()
	}
}

// Tasks lists live tasks
func (s *Spawner) Tasks() []TaskInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]TaskInfo, 0, len(s.tasks))
	for _, t := range s.tasks {
		info := TaskInfo{
			ID:        t.id,
			Priority:  t.priority,
			StackSize: t.stackSize,
			Bundle:    t.bundle(),
		}
		if t.queue != nil {
			info.Queue = t.queue.id
		}
		out = append(out, info)
	}
	return out
}

// Close stops every task and waits for them to exit
func (s *Spawner) Close() {
	s.mu.Lock()
	ids := make([]types.TaskID, 0, len(s.tasks))
	for id := range s.tasks {
		ids = append(ids, id)
	}
	s.mu.Unlock()

	for _, id := range ids {
		s.stopTask(id, true)
	}
	s.wg.Wait()
}

func (s *Spawner) stopTask(id types.TaskID, force bool) {
	s.mu.Lock()
	t, ok := s.tasks[id]
	delete(s.tasks, id)
	var q *queue
	if force && t != nil && t.queue != nil {
		q = t.queue
		delete(s.queues, q.id)
	}
	n := len(s.tasks)
	s.mu.Unlock()

	if !ok {
		return
	}
	if q != nil {
		q.close()
	}
	t.cancel()
	s.metrics.SetWorkerTasks(n)
}

// run is the task entry: it waits for a queue, then feeds each command to
// the runner and acknowledges it
func (s *Spawner) run(t *task) {
	defer close(t.done)

	var q *queue
	select {
	case q = <-t.attach:
	case <-t.ctx.Done():
		return
	}

	var runner Runner
	for {
		select {
		case <-t.ctx.Done():
			return
		case cmd, ok := <-q.ch:
			if !ok {
				return
			}
			if runner == nil {
				runner = s.factory(cmd)
				t.setBundle(cmd.BundleName)
			}
			if err := dispatch(t.ctx, runner, cmd); err != nil {
				s.logger.Warn("Runner lifecycle failed",
					zap.Uint32("task", uint32(t.id)),
					zap.Uint16("token", cmd.Token),
					zap.Stringer("kind", cmd.Kind),
					zap.Error(err),
				)
			}
			// a task stopped mid-command is gone; nobody waits for its ack
			if t.ctx.Err() != nil {
				return
			}
			s.mu.RLock()
			ack := s.ack
			s.mu.RUnlock()
			if ack != nil {
				ack.SchedulerLifecycleDone(cmd.Token, cmd.Kind)
			}
		}
	}
}

type task struct {
	id        types.TaskID
	priority  int
	stackSize int

	ctx    context.Context
	cancel context.CancelFunc
	attach chan *queue
	done   chan struct{}

	queue *queue // guarded by Spawner.mu

	mu   sync.Mutex
	name string
}

func (t *task) setBundle(name string) {
	t.mu.Lock()
	t.name = name
	t.mu.Unlock()
}

func (t *task) bundle() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.name
}

type queue struct {
	id   types.QueueID
	task types.TaskID
	ch   chan types.Command

	mu     sync.RWMutex
	closed bool
}

func (q *queue) post(cmd types.Command) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		return ErrQueueClosed
	}
	select {
	case q.ch <- cmd:
		return nil
	default:
		return ErrQueueFull
	}
}

func (q *queue) close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if !q.closed {
		q.closed = true
		close(q.ch)
	}
}
