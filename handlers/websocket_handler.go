package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/debatearena/debate-platform/debates"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// В продакшене здесь должна быть проверка Origin,
		// чтобы разрешать подключения только с доверенных доменов.
		return true
	},
}

type WebSocketHandler struct {
	hub        *debates.Hub
	dispatcher *Dispatcher
	logger     *slog.Logger
}

func NewWebSocketHandler(hub *debates.Hub, dispatcher *Dispatcher, logger *slog.Logger) *WebSocketHandler {
	return &WebSocketHandler{
		hub:        hub,
		dispatcher: dispatcher,
		logger:     logger,
	}
}

// ServeWs принимает WebSocket-подключение клиента. Вся дальнейшая работа,
// включая аутентификацию, идёт внутри канала через Dispatcher.
func (h *WebSocketHandler) ServeWs(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("failed to upgrade websocket connection", slog.Any("error", err))
		// upgrader.Upgrade сам отправляет HTTP-ошибку клиенту.
		return
	}

	client := debates.NewClient(h.hub, conn)
	client.Handler = func(data []byte) {
		h.dispatcher.Dispatch(client, data)
	}
	h.hub.Register <- client

	go client.WritePump()
	go client.ReadPump()

	h.logger.Debug("websocket client connected", slog.String("conn_id", client.ID))
}
