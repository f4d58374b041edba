package handlers

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/ravin1227/photonix-sub000/internal/middleware"
	"github.com/ravin1227/photonix-sub000/internal/observability"
	"github.com/ravin1227/photonix-sub000/internal/services"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// API key auth already ran; any origin holding a key may listen
		return true
	},
}

// WebSocketHandler streams processing events to the authenticated user
type WebSocketHandler struct {
	hub *services.WebSocketHub
}

// NewWebSocketHandler creates a new WebSocketHandler
func NewWebSocketHandler(hub *services.WebSocketHub) *WebSocketHandler {
	return &WebSocketHandler{hub: hub}
}

// HandleConnection upgrades HTTP to WebSocket and manages the connection
// @Summary Processing events
// @Description Emits photo_uploaded and photo_processed events for the caller's photos
// @Tags events
// @Security ApiKeyAuth
// @Router /api/ws [get]
func (h *WebSocketHandler) HandleConnection(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUserFromContext(r.Context())

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		observability.WithContext(r.Context()).WithError(err).Warn("WebSocket upgrade failed")
		return
	}

	client := h.hub.NewClient(uuid.New().String(), user.ID, conn)
	h.hub.Register(client)

	go client.WritePump()
	client.ReadPump()
}
