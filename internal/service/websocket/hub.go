package websocket

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"sorter/internal/logger"
	"sorter/internal/metrics"
	"sorter/internal/model"
)

// Event names sent to dashboard observers.
const (
	EventConnection   = "connection_response"
	EventFrameUpdate  = "frame_update"
	EventNewDetection = "new_detection"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// Message is the envelope of every websocket message.
type Message struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

type client struct {
	id   string
	conn *websocket.Conn
	send chan []byte
}

// HubService fans messages out to connected observers. Each observer has its own
// bounded queue; a full queue drops the message for that observer only.
type HubService struct {
	clients    map[*client]bool
	register   chan *client
	unregister chan *client
	mutex      sync.RWMutex
	buffer     int
	dropped    atomic.Uint64
	logger     *logger.Logger
}

// NewHubService creates a hub giving each observer a queue of buffer messages.
func NewHubService(buffer int, logger *logger.Logger) *HubService {
	if buffer < 1 {
		buffer = 1
	}
	return &HubService{
		clients:    make(map[*client]bool),
		register:   make(chan *client),
		unregister: make(chan *client),
		buffer:     buffer,
		logger:     logger,
	}
}

// Run processes registrations until ctx is done, then disconnects every observer.
func (h *HubService) Run(ctx context.Context) {
	for {
		select {
		case c := <-h.register:
			h.mutex.Lock()
			h.clients[c] = true
			count := len(h.clients)
			h.mutex.Unlock()
			metrics.Observers.Set(float64(count))
			h.logger.Info("Observer %s connected. Total: %d", c.id, count)

		case c := <-h.unregister:
			h.mutex.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}
			count := len(h.clients)
			h.mutex.Unlock()
			metrics.Observers.Set(float64(count))
			h.logger.Info("Observer %s disconnected. Total: %d", c.id, count)

		case <-ctx.Done():
			h.mutex.Lock()
			for c := range h.clients {
				delete(h.clients, c)
				close(c.send)
			}
			h.mutex.Unlock()
			metrics.Observers.Set(0)
			return
		}
	}
}

// Serve attaches conn as an observer and blocks until it disconnects.
func (h *HubService) Serve(ctx context.Context, conn *websocket.Conn) {
	c := &client{
		id:   uuid.NewString(),
		conn: conn,
		send: make(chan []byte, h.buffer),
	}

	if msg, err := encode(EventConnection, map[string]string{"data": "Connected", "id": c.id}); err == nil {
		c.send <- msg
	}

	select {
	case h.register <- c:
	case <-ctx.Done():
		conn.Close()
		return
	}

	go h.writePump(c)
	h.readPump(c)

	select {
	case h.unregister <- c:
	case <-ctx.Done():
	}
}

// readPump discards inbound messages and returns when the connection fails.
func (h *HubService) readPump(c *client) {
	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Warning("Observer %s read error: %v", c.id, err)
			}
			return
		}
	}
}

func (h *HubService) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				h.logger.Error("Error sending to observer %s: %v", c.id, err)
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Broadcast queues msg for every observer without blocking.
func (h *HubService) Broadcast(msg []byte) {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	for c := range h.clients {
		select {
		case c.send <- msg:
		default:
			h.dropped.Add(1)
			metrics.BroadcastDropped.Inc()
		}
	}
}

// BroadcastFrame sends an annotated JPEG as a frame_update event.
func (h *HubService) BroadcastFrame(jpeg []byte) {
	if h.GetClientCount() == 0 {
		return
	}
	msg, err := encode(EventFrameUpdate, map[string]string{"frame": base64.StdEncoding.EncodeToString(jpeg)})
	if err != nil {
		h.logger.Error("Failed to encode frame update: %v", err)
		return
	}
	h.Broadcast(msg)
}

// BroadcastEvent sends a new_detection event.
func (h *HubService) BroadcastEvent(evt model.DetectionEvent) {
	msg, err := encode(EventNewDetection, evt)
	if err != nil {
		h.logger.Error("Failed to encode detection event: %v", err)
		return
	}
	h.Broadcast(msg)
}

// GetClientCount returns the number of connected observers.
func (h *HubService) GetClientCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}

// Dropped returns how many messages were dropped for slow observers.
func (h *HubService) Dropped() uint64 {
	return h.dropped.Load()
}

func encode(event string, data interface{}) ([]byte, error) {
	return json.Marshal(Message{Event: event, Data: data})
}
