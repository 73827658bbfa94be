package ws

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/abilityms/internal/infrastructure/logging"
	"github.com/GriffinCanCode/AgentOS/abilityms/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/AgentOS/abilityms/internal/shared/types"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	sendBuffer = 64
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Message is a frame exchanged with subscribers
type Message struct {
	Type       string       `json:"type"`
	ID         string       `json:"id,omitempty"`
	BundleName string       `json:"bundle_name,omitempty"`
	Event      *types.Event `json:"event,omitempty"`
	Error      string       `json:"error,omitempty"`
}

type subscriber struct {
	id   string
	send chan Message

	mu     sync.RWMutex
	bundle string // empty receives everything
}

func (s *subscriber) wants(ev types.Event) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.bundle == "" || s.bundle == ev.BundleName
}

func (s *subscriber) filter(bundle string) {
	s.mu.Lock()
	s.bundle = bundle
	s.mu.Unlock()
}

// Hub fans lifecycle events out to WebSocket subscribers
type Hub struct {
	logger  *logging.Logger
	metrics *monitoring.Metrics

	mu     sync.RWMutex
	subs   map[string]*subscriber
	closed bool
}

// NewHub creates an empty hub
func NewHub(logger *logging.Logger, metrics *monitoring.Metrics) *Hub {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Hub{
		logger:  logger,
		metrics: metrics,
		subs:    make(map[string]*subscriber),
	}
}

// Publish delivers ev to every interested subscriber. It never blocks;
// a subscriber whose buffer is full misses the event.
func (h *Hub) Publish(ev types.Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, sub := range h.subs {
		if !sub.wants(ev) {
			continue
		}
		e := ev
		select {
		case sub.send <- Message{Type: "event", Event: &e}:
		default:
			h.logger.Debug("Subscriber too slow, event dropped",
				zap.String("subscriber", sub.id),
				zap.String("kind", ev.Kind),
			)
		}
	}
}

// Subscribers returns the number of connected subscribers
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Close disconnects all subscribers and refuses new ones
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for id, sub := range h.subs {
		close(sub.send)
		delete(h.subs, id)
	}
}

func (h *Hub) register() (*subscriber, bool) {
	sub := &subscriber{
		id:   uuid.NewString(),
		send: make(chan Message, sendBuffer),
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil, false
	}
	h.subs[sub.id] = sub
	return sub, true
}

// deliver queues msg for sub unless sub is gone or backed up
func (h *Hub) deliver(sub *subscriber, msg Message) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if _, ok := h.subs[sub.id]; !ok {
		return false
	}
	select {
	case sub.send <- msg:
		return true
	default:
		return false
	}
}

func (h *Hub) unregister(sub *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subs[sub.id]; ok {
		delete(h.subs, sub.id)
		close(sub.send)
	}
}

// HandleConnection upgrades the request and streams events until either side closes
func (h *Hub) HandleConnection(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("WebSocket upgrade failed", zap.Error(err))
		return
	}

	sub, ok := h.register()
	if !ok {
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"))
		conn.Close()
		return
	}
	sub.filter(c.Query("bundle"))

	h.metrics.IncWSConnections()
	h.logger.Info("Subscriber connected", zap.String("subscriber", sub.id))

	h.deliver(sub, Message{Type: "welcome", ID: sub.id})

	done := make(chan struct{})
	go func() {
		defer close(done)
		h.writePump(conn, sub)
	}()

	h.readPump(conn, sub)
	h.unregister(sub)
	<-done

	h.metrics.DecWSConnections()
	h.logger.Info("Subscriber disconnected", zap.String("subscriber", sub.id))
}

// readPump handles control frames from the client. Replies go through
// sub.send so only writePump touches the connection for writing.
func (h *Hub) readPump(conn *websocket.Conn, sub *subscriber) {
	conn.SetReadLimit(4096)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var msg Message
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug("WebSocket read error", zap.Error(err))
			}
			return
		}

		var reply Message
		switch msg.Type {
		case "ping":
			reply = Message{Type: "pong"}
		case "subscribe":
			sub.filter(msg.BundleName)
			reply = Message{Type: "subscribed", BundleName: msg.BundleName}
		default:
			reply = Message{Type: "error", Error: "unknown message type"}
		}

		h.deliver(sub, reply)
	}
}

func (h *Hub) writePump(conn *websocket.Conn, sub *subscriber) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	defer conn.Close()

	for {
		select {
		case msg, ok := <-sub.send:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteJSON(msg); err != nil {
				h.logger.Debug("WebSocket write error", zap.Error(err))
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
