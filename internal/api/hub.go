package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gofiber/contrib/websocket"

	"singalong/internal/logging"
)

// Event types pushed to websocket clients.
const (
	EventDownloads      = "downloads"
	EventSeparations    = "separations"
	EventCatalogChanged = "catalog_changed"
	EventPing           = "ping"
	EventPong           = "pong"
)

const (
	clientBuffer = 64
	pingInterval = 30 * time.Second
)

// Event is one websocket payload. Jobs carries the full list for the
// downloads and separations types.
type Event struct {
	Type string `json:"type"`
	Jobs any    `json:"jobs,omitempty"`
}

type wsClient struct {
	conn *websocket.Conn
	send chan []byte
	quit chan struct{}
	once sync.Once
}

func (c *wsClient) stop() {
	c.once.Do(func() { close(c.quit) })
}

// offer queues msg without blocking and reports whether it fit.
func (c *wsClient) offer(msg []byte) bool {
	select {
	case <-c.quit:
		return false
	default:
	}
	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

// Hub fans events out to every connected websocket client.
type Hub struct {
	clients    map[*wsClient]struct{}
	register   chan *wsClient
	unregister chan *wsClient
	broadcast  chan []byte
	done       chan struct{}
	logger     *slog.Logger
}

// NewHub constructs a hub. Run must be started before clients connect.
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Hub{
		clients:    make(map[*wsClient]struct{}),
		register:   make(chan *wsClient),
		unregister: make(chan *wsClient),
		broadcast:  make(chan []byte, 256),
		done:       make(chan struct{}),
		logger:     logger,
	}
}

// Run serves registrations and broadcasts until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			for client := range h.clients {
				client.stop()
				delete(h.clients, client)
			}
			return

		case client := <-h.register:
			h.clients[client] = struct{}{}
			h.logger.Debug("websocket client registered", logging.Int("clients", len(h.clients)))

		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				client.stop()
			}

		case msg := <-h.broadcast:
			for client := range h.clients {
				if !client.offer(msg) {
					delete(h.clients, client)
					client.stop()
					h.logger.Debug("dropped slow websocket client")
				}
			}
		}
	}
}

// Publish encodes evt and hands it to Run. It never blocks; when the
// broadcast buffer is full the event is dropped.
func (h *Hub) Publish(evt Event) {
	data, err := json.Marshal(evt)
	if err != nil {
		logging.WarnWithContext(h.logger, "failed to encode websocket event", "ws_encode_failed",
			logging.String("type", evt.Type),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "inspect the event payload"),
			logging.String(logging.FieldImpact, "clients miss one update"),
		)
		return
	}
	select {
	case h.broadcast <- data:
	default:
		logging.WarnWithContext(h.logger, "websocket broadcast buffer full", "ws_broadcast_dropped",
			logging.String("type", evt.Type),
			logging.String(logging.FieldErrorHint, "clients are not draining; check network latency"),
			logging.String(logging.FieldImpact, "clients miss one update"),
		)
	}
}

func (h *Hub) add(client *wsClient) bool {
	select {
	case h.register <- client:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) remove(client *wsClient) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// join registers client and only then encodes the snapshot, so a change
// landing in between reaches the client as a broadcast.
func (h *Hub) join(client *wsClient, snapshot func() []Event) ([][]byte, bool) {
	if !h.add(client) {
		return nil, false
	}
	if snapshot == nil {
		return nil, true
	}
	var frames [][]byte
	for _, evt := range snapshot() {
		if data, err := json.Marshal(evt); err == nil {
			frames = append(frames, data)
		}
	}
	return frames, true
}

// HandleConnection serves one websocket until either side closes. The
// snapshot events are written before any broadcast.
func (h *Hub) HandleConnection(conn *websocket.Conn, snapshot func() []Event) {
	client := &wsClient{
		conn: conn,
		send: make(chan []byte, clientBuffer),
		quit: make(chan struct{}),
	}
	frames, ok := h.join(client, snapshot)
	if !ok {
		return
	}
	for _, data := range frames {
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			h.remove(client)
			_ = conn.Close()
			return
		}
	}
	defer h.remove(client)

	go h.writeLoop(client)

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.logger.Debug("websocket read failed", logging.Error(err))
			}
			client.stop()
			return
		}
		var msg Event
		if err := json.Unmarshal(message, &msg); err != nil {
			continue
		}
		if msg.Type == EventPing {
			data, _ := json.Marshal(Event{Type: EventPong})
			client.offer(data)
		}
	}
}

func (h *Hub) writeLoop(client *wsClient) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	defer client.conn.Close()

	for {
		select {
		case <-client.quit:
			_ = client.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		case message := <-client.send:
			if err := client.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				client.stop()
				return
			}
		case <-ticker.C:
			if err := client.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				client.stop()
				return
			}
		}
	}
}
