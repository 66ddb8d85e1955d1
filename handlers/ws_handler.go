package handlers

import (
	"log/slog"
	"net/http"

	"github.com/caulonghn/club-manager/live"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Origin проверяется CORS-слоем на HTTP-эндпоинтах; фронтенд клуба
		// ходит с тех же доменов, поэтому здесь пропускаем всех.
		return true
	},
}

type WebSocketHandler struct {
	hub    *live.Hub
	logger *slog.Logger
}

func NewWebSocketHandler(hub *live.Hub, logger *slog.Logger) *WebSocketHandler {
	return &WebSocketHandler{
		hub:    hub,
		logger: logger,
	}
}

// ServeWs апгрейдит соединение и подписывает клиента на ленту событий клуба.
func (h *WebSocketHandler) ServeWs(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// upgrader.Upgrade сам отправляет HTTP-ошибку клиенту.
		h.logger.Warn("Failed to upgrade WebSocket connection", slog.Any("error", err))
		return
	}

	live.NewClient(h.hub, conn)
}
