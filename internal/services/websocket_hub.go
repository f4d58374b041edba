package services

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/ravin1227/photonix-sub000/internal/models"
	"github.com/ravin1227/photonix-sub000/internal/observability"
)

// Notifier tells an owner's connected devices about their photos
type Notifier interface {
	PhotoUploaded(userID, photoID string)
	PhotoProcessed(userID, photoID string, status models.ProcessingStatus)
}

type noopNotifier struct{}

func (noopNotifier) PhotoUploaded(string, string) {}

func (noopNotifier) PhotoProcessed(string, string, models.ProcessingStatus) {}

// WSMessage represents a WebSocket message
type WSMessage struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// Message types
const (
	WSTypePhotoUploaded  = "photo_uploaded"
	WSTypePhotoProcessed = "photo_processed"
)

// PhotoUploadedPayload is sent when a new record is created
type PhotoUploadedPayload struct {
	PhotoID   string `json:"photo_id"`
	Duplicate bool   `json:"duplicate"`
}

// PhotoProcessedPayload is sent when the thumbnail job settles a record
type PhotoProcessedPayload struct {
	PhotoID          string                  `json:"photo_id"`
	ProcessingStatus models.ProcessingStatus `json:"processing_status"`
}

// WSClient represents a connected WebSocket client
type WSClient struct {
	ID         string
	UserID     string
	Conn       *websocket.Conn
	Send       chan []byte
	hub        *WebSocketHub
	closedOnce sync.Once
}

type userMessage struct {
	userID  string
	message []byte
}

// WebSocketHub fans events out to every connection of a user
type WebSocketHub struct {
	userConns  map[string]map[*WSClient]bool
	register   chan *WSClient
	unregister chan *WSClient
	outbound   chan userMessage
	mu         sync.RWMutex
	logger     *observability.Logger
}

// NewWebSocketHub creates a new WebSocket hub
func NewWebSocketHub() *WebSocketHub {
	return &WebSocketHub{
		userConns:  make(map[string]map[*WSClient]bool),
		register:   make(chan *WSClient),
		unregister: make(chan *WSClient),
		outbound:   make(chan userMessage, 256),
		logger:     observability.WithField("component", "websocket_hub"),
	}
}

// Run is the hub's main loop; it returns when ctx is cancelled
func (h *WebSocketHub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return

		case client := <-h.register:
			h.mu.Lock()
			if h.userConns[client.UserID] == nil {
				h.userConns[client.UserID] = make(map[*WSClient]bool)
			}
			h.userConns[client.UserID][client] = true
			h.mu.Unlock()
			h.logger.WithField("user_id", client.UserID).Debugf("WebSocket client connected: %s", client.ID)

		case client := <-h.unregister:
			h.remove(client)

		case msg := <-h.outbound:
			h.mu.RLock()
			var slow []*WSClient
			for client := range h.userConns[msg.userID] {
				select {
				case client.Send <- msg.message:
				default:
					slow = append(slow, client)
				}
			}
			h.mu.RUnlock()
			for _, client := range slow {
				h.remove(client)
			}
		}
	}
}

func (h *WebSocketHub) remove(client *WSClient) {
	h.mu.Lock()
	defer h.mu.Unlock()

	conns, ok := h.userConns[client.UserID]
	if !ok || !conns[client] {
		return
	}
	delete(conns, client)
	if len(conns) == 0 {
		delete(h.userConns, client.UserID)
	}
	close(client.Send)
	h.logger.Debugf("WebSocket client disconnected: %s", client.ID)
}

func (h *WebSocketHub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for userID, conns := range h.userConns {
		for client := range conns {
			close(client.Send)
		}
		delete(h.userConns, userID)
	}
}

// Register adds a client to the hub
func (h *WebSocketHub) Register(client *WSClient) {
	h.register <- client
}

// Unregister removes a client from the hub
func (h *WebSocketHub) Unregister(client *WSClient) {
	h.unregister <- client
}

// SendToUser queues msg for every connection of userID. It never blocks;
// when the hub is saturated the event is dropped.
func (h *WebSocketHub) SendToUser(userID string, msg WSMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.WithError(err).Error("Error marshaling WebSocket message")
		return
	}

	select {
	case h.outbound <- userMessage{userID: userID, message: data}:
	default:
		h.logger.WithField("user_id", userID).Warnf("Dropped %s event, hub is saturated", msg.Type)
	}
}

// PhotoUploaded implements Notifier
func (h *WebSocketHub) PhotoUploaded(userID, photoID string) {
	h.SendToUser(userID, WSMessage{
		Type:    WSTypePhotoUploaded,
		Payload: PhotoUploadedPayload{PhotoID: photoID},
	})
}

// PhotoProcessed implements Notifier
func (h *WebSocketHub) PhotoProcessed(userID, photoID string, status models.ProcessingStatus) {
	h.SendToUser(userID, WSMessage{
		Type:    WSTypePhotoProcessed,
		Payload: PhotoProcessedPayload{PhotoID: photoID, ProcessingStatus: status},
	})
}

// ClientCount returns the number of connected clients
func (h *WebSocketHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, conns := range h.userConns {
		n += len(conns)
	}
	return n
}

// NewClient creates a client of userID connected to this hub
func (h *WebSocketHub) NewClient(id, userID string, conn *websocket.Conn) *WSClient {
	return &WSClient{
		ID:     id,
		UserID: userID,
		Conn:   conn,
		Send:   make(chan []byte, 64),
		hub:    h,
	}
}

// Close closes the client connection
func (c *WSClient) Close() {
	c.closedOnce.Do(func() {
		go c.hub.Unregister(c)
		c.Conn.Close()
	})
}

// WritePump pumps messages from the hub to the websocket connection
func (c *WSClient) WritePump() {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// ReadPump reads until the connection closes. Clients only listen, so
// inbound frames are discarded.
func (c *WSClient) ReadPump() {
	defer c.Close()

	c.Conn.SetReadLimit(4 * 1024)
	c.Conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		if _, _, err := c.Conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.WithError(err).Warn("WebSocket read error")
			}
			return
		}
	}
}
