// Package ws streams protocol activity to connected QA clients: intents,
// lifecycle events, and console output, as they happen.
package ws

import (
	"net/http"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/adforge/preview/internal/mraid"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // preview tool, any origin may connect
	},
}

const clientBuffer = 64

// Message is one frame pushed to stream clients.
type Message struct {
	Type      string        `json:"type"`
	Intent    *mraid.Intent `json:"intent,omitempty"`
	Event     string        `json:"event,omitempty"`
	Args      []any         `json:"args,omitempty"`
	Level     string        `json:"level,omitempty"`
	Text      string        `json:"message,omitempty"`
	Timestamp int64         `json:"timestamp"`
}

// Hub fans protocol activity out to every connected client. Slow clients
// drop frames rather than stall the publishers, which run on loop
// goroutines.
type Hub struct {
	logger *zap.Logger

	mu      sync.Mutex
	clients map[*client]struct{}
	closed  bool
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// NewHub creates an empty hub.
func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		logger:  logger.Named("stream"),
		clients: make(map[*client]struct{}),
	}
}

// PublishIntent broadcasts a creative intent.
func (h *Hub) PublishIntent(in mraid.Intent) {
	h.publish(Message{Type: "intent", Intent: &in, Timestamp: time.Now().Unix()})
}

// PublishEvent broadcasts a lifecycle event dispatch.
func (h *Hub) PublishEvent(event string, args []any) {
	h.publish(Message{Type: "event", Event: event, Args: args, Timestamp: time.Now().Unix()})
}

// PublishConsole broadcasts one console line from a creative script.
func (h *Hub) PublishConsole(level, text string) {
	h.publish(Message{Type: "console", Level: level, Text: text, Timestamp: time.Now().Unix()})
}

func (h *Hub) publish(msg Message) {
	data, err := sonic.Marshal(msg)
	if err != nil {
		h.logger.Warn("marshal stream frame", zap.Error(err))
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			// Client is not keeping up; this frame is lost to it.
		}
	}
}

// HandleConnection upgrades the request and serves the client until it
// disconnects.
func (h *Hub) HandleConnection(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	cl := &client{conn: conn, send: make(chan []byte, clientBuffer)}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		conn.Close()
		return
	}
	h.clients[cl] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	h.logger.Info("stream client connected", zap.Int("clients", n))

	welcome, _ := sonic.Marshal(Message{Type: "system", Text: "connected", Timestamp: time.Now().Unix()})
	cl.send <- welcome

	go h.writePump(cl)
	h.readPump(cl)
}

func (h *Hub) writePump(cl *client) {
	for data := range cl.send {
		if err := cl.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			return
		}
	}
}

// readPump consumes client frames. The only understood request is ping;
// everything else is acknowledged with an error frame. Returning drops the
// client.
func (h *Hub) readPump(cl *client) {
	defer h.drop(cl)
	for {
		var msg struct {
			Type string `json:"type"`
		}
		_, data, err := cl.conn.ReadMessage()
		if err != nil {
			return
		}
		if err := sonic.Unmarshal(data, &msg); err != nil {
			continue
		}
		switch msg.Type {
		case "ping":
			pong, _ := sonic.Marshal(Message{Type: "pong", Timestamp: time.Now().Unix()})
			select {
			case cl.send <- pong:
			default:
			}
		default:
			frame, _ := sonic.Marshal(Message{Type: "error", Text: "unknown message type", Timestamp: time.Now().Unix()})
			select {
			case cl.send <- frame:
			default:
			}
		}
	}
}

func (h *Hub) drop(cl *client) {
	h.mu.Lock()
	_, ok := h.clients[cl]
	if ok {
		delete(h.clients, cl)
		close(cl.send)
	}
	n := len(h.clients)
	h.mu.Unlock()
	cl.conn.Close()
	if ok {
		h.logger.Info("stream client disconnected", zap.Int("clients", n))
	}
}

// Close disconnects every client. The hub accepts no connections afterwards.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
		c.conn.Close()
	}
	h.mu.Unlock()
}
