package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/playforge/esports-platform/events"
)

var errMissingTournamentID = errors.New("tournament id is required")

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

type WebSocketHandler struct {
	hub *events.Hub
}

func NewWebSocketHandler(hub *events.Hub) *WebSocketHandler {
	return &WebSocketHandler{hub: hub}
}

// Subscribe подключает клиента к комнате событий турнира.
func (h *WebSocketHandler) Subscribe(w http.ResponseWriter, r *http.Request) {
	room := chi.URLParam(r, "id")
	if room == "" {
		badRequestResponse(w, errMissingTournamentID)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	h.hub.NewClient(conn, room)
}
