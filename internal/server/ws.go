package server

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/ayusman/tala/internal/app"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait     = 2 * time.Second
	clientBacklog = 8
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow local connections
	},
}

type poseClient struct {
	conn *websocket.Conn
	send chan []byte
}

// PoseHub broadcasts frame results to WebSocket clients. Slow clients drop
// messages instead of stalling the pipeline.
type PoseHub struct {
	log     *zap.Logger
	clients map[*poseClient]struct{}
	mu      sync.RWMutex
}

// NewPoseHub creates an empty PoseHub.
func NewPoseHub(log *zap.Logger) *PoseHub {
	return &PoseHub{
		log:     log,
		clients: make(map[*poseClient]struct{}),
	}
}

// Publish sends res to every connected client. It never blocks.
func (h *PoseHub) Publish(res app.FrameResult) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if len(h.clients) == 0 {
		return
	}

	msg, err := json.Marshal(res)
	if err != nil {
		h.log.Warn("failed to encode frame result", zap.Error(err))
		return
	}

	for c := range h.clients {
		select {
		case c.send <- msg:
		default:
		}
	}
}

// Clients returns the number of connected clients.
func (h *PoseHub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ServeHTTP handles WebSocket upgrade requests.
func (h *PoseHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	c := &poseClient{conn: conn, send: make(chan []byte, clientBacklog)}
	h.register(c)
	defer h.unregister(c)

	go c.writeLoop()

	// Keep connection alive by reading messages
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
}

func (h *PoseHub) register(c *poseClient) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	h.log.Debug("pose client connected", zap.Int("clients", n))
}

func (h *PoseHub) unregister(c *poseClient) {
	h.mu.Lock()
	delete(h.clients, c)
	close(c.send)
	n := len(h.clients)
	h.mu.Unlock()
	h.log.Debug("pose client disconnected", zap.Int("clients", n))
}

func (c *poseClient) writeLoop() {
	for msg := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
}
