package ability

import (
	"context"
	"errors"
	"sync"

	"github.com/GriffinCanCode/AgentOS/abilityms/internal/shared/types"
)

type posted struct {
	queue types.QueueID
	cmd   types.Command
}

type fakeHost struct {
	mu sync.Mutex

	nextTask  types.TaskID
	nextQueue types.QueueID

	posts           []posted
	destroyedTasks  []types.TaskID
	destroyedQueues []types.QueueID
	forced          []types.TaskID

	createErr error
	queueErr  error
	postErr   error
}

func (h *fakeHost) CreateTask(priority, stackSize int) (types.TaskID, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.createErr != nil {
		return 0, h.createErr
	}
	h.nextTask++
	return h.nextTask + 100, nil
}

func (h *fakeHost) CreateQueue(task types.TaskID, depth int) (types.QueueID, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.queueErr != nil {
		return 0, h.queueErr
	}
	h.nextQueue++
	return h.nextQueue + 200, nil
}

func (h *fakeHost) Post(queue types.QueueID, cmd types.Command) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.postErr != nil {
		return h.postErr
	}
	h.posts = append(h.posts, posted{queue: queue, cmd: cmd})
	return nil
}

func (h *fakeHost) ForceDestroy(task types.TaskID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.forced = append(h.forced, task)
}

func (h *fakeHost) DestroyTask(task types.TaskID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.destroyedTasks = append(h.destroyedTasks, task)
}

func (h *fakeHost) DestroyQueue(queue types.QueueID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.destroyedQueues = append(h.destroyedQueues, queue)
}

func (h *fakeHost) lastPost() (posted, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.posts) == 0 {
		return posted{}, false
	}
	return h.posts[len(h.posts)-1], true
}

func (h *fakeHost) postCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.posts)
}

// fakeNative records calls and optionally acknowledges them through ack
type fakeNative struct {
	mu      sync.Mutex
	state   types.State
	calls   []string
	intents []types.Intent
	ack     func(token uint16, kind types.Lifecycle)
}

func (n *fakeNative) OnActive(intent types.Intent) {
	n.mu.Lock()
	n.state = types.StateActive
	n.calls = append(n.calls, "active")
	n.intents = append(n.intents, intent)
	ack := n.ack
	n.mu.Unlock()
	if ack != nil {
		ack(LauncherToken, types.LifecycleActive)
	}
}

func (n *fakeNative) OnBackground() {
	n.mu.Lock()
	n.state = types.StateBackground
	n.calls = append(n.calls, "background")
	ack := n.ack
	n.mu.Unlock()
	if ack != nil {
		ack(LauncherToken, types.LifecycleBackground)
	}
}

func (n *fakeNative) State() types.State {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.state
}

func (n *fakeNative) lastCall() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.calls) == 0 {
		return ""
	}
	return n.calls[len(n.calls)-1]
}

func (n *fakeNative) callCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.calls)
}

type fakeBundles map[string]string

func (b fakeBundles) Resolve(name string) (string, string, bool) {
	path, ok := b[name]
	return name, path, ok
}

type fakeChecker struct {
	deny map[string]bool
}

func (c fakeChecker) CheckResponse(name string) error {
	if c.deny[name] {
		return errors.New("denied")
	}
	return nil
}

type fakeRemote struct {
	mu      sync.Mutex
	callers []string
	intents []*types.Intent
	err     error
}

func (r *fakeRemote) StartRemoteAbility(ctx context.Context, intent *types.Intent, caller string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.callers = append(r.callers, caller)
	r.intents = append(r.intents, intent)
	return r.err
}

type fakeSink struct {
	mu     sync.Mutex
	events []types.Event
}

func (s *fakeSink) Publish(ev types.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
}

func (s *fakeSink) kinds() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for _, ev := range s.events {
		out = append(out, ev.Kind)
	}
	return out
}
