package debates

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
)

// Client — одно WebSocket-соединение. UserID равен нулю, пока клиент не
// прошёл аутентификацию внутри канала.
type Client struct {
	ID       string
	Hub      *Hub
	Conn     *websocket.Conn
	Send     chan []byte
	UserID   int
	Username string

	// Handler вызывается из ReadPump для каждого входящего сообщения.
	// Устанавливается WebSocket-обработчиком до запуска насосов.
	Handler func(data []byte)

	mu       sync.Mutex
	isClosed bool
}

func NewClient(hub *Hub, conn *websocket.Conn) *Client {
	return &Client{
		ID:   uuid.NewString(),
		Hub:  hub,
		Conn: conn,
		Send: make(chan []byte, 256),
	}
}

// SendJSON ставит событие в очередь отправки этого соединения. Используется
// для ответов клиентам, ещё не привязанным к пользователю (auth_response).
func (c *Client) SendJSON(v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		c.Hub.logger.Error("failed to marshal outbound event", slog.Any("error", err))
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.isClosed {
		return
	}
	select {
	case c.Send <- data:
	default:
		// Канал клиента переполнен — событие отбрасывается.
	}
}

func (c *Client) closeSend() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.isClosed {
		close(c.Send)
		c.isClosed = true
	}
}

// Hub — реестр соединений (ConnectionRegistry): отображает идентификатор
// аутентифицированного пользователя на его живое соединение.
type Hub struct {
	Register   chan *Client
	Unregister chan *Client

	clients map[string]*Client // все соединения по ID соединения
	users   map[int]*Client    // аутентифицированные, по ID пользователя
	mu      sync.RWMutex

	logger *slog.Logger

	// Колбэки присутствия; устанавливаются до запуска Run.
	OnDisconnect func(userID int)
	OnReconnect  func(userID int)
}

func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		clients:    make(map[string]*Client),
		users:      make(map[int]*Client),
		logger:     logger,
	}
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.Register:
			h.mu.Lock()
			h.clients[client.ID] = client
			h.mu.Unlock()
			h.logger.Debug("client registered", slog.String("conn_id", client.ID))

		case client := <-h.Unregister:
			h.mu.Lock()
			if _, ok := h.clients[client.ID]; !ok {
				h.mu.Unlock()
				continue
			}
			delete(h.clients, client.ID)
			userGone := 0
			if client.UserID != 0 && h.users[client.UserID] == client {
				delete(h.users, client.UserID)
				userGone = client.UserID
			}
			h.mu.Unlock()
			client.closeSend()
			if userGone != 0 {
				h.logger.Info("user disconnected", slog.Int("user_id", userGone))
				if h.OnDisconnect != nil {
					h.OnDisconnect(userGone)
				}
			}
		}
	}
}

// BindUser привязывает аутентифицированного пользователя к соединению.
// Более новое соединение того же пользователя вытесняет старое.
func (h *Hub) BindUser(client *Client, userID int, username string) {
	h.mu.Lock()
	old := h.users[userID]
	if old != nil && old != client {
		delete(h.clients, old.ID)
	}
	client.UserID = userID
	client.Username = username
	h.users[userID] = client
	h.mu.Unlock()

	if old != nil && old != client {
		old.closeSend()
		_ = old.Conn.Close()
	}

	h.logger.Info("user authenticated", slog.Int("user_id", userID), slog.String("username", username))
	if h.OnReconnect != nil {
		h.OnReconnect(userID)
	}
}

// SendToUser отправляет событие пользователю, если у него есть открытое
// соединение. Если соединения нет, событие отбрасывается (повторной
// доставки нет: клиент пересинхронизируется через join_debate или
// get_debate_results).
func (h *Hub) SendToUser(userID int, v interface{}) bool {
	h.mu.RLock()
	client := h.users[userID]
	h.mu.RUnlock()
	if client == nil {
		return false
	}
	client.SendJSON(v)
	return true
}

// IsOnline reports whether the user currently has an open connection.
func (h *Hub) IsOnline(userID int) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.users[userID] != nil
}

func (c *Client) ReadPump() {
	defer func() {
		c.Hub.Unregister <- c
		c.Conn.Close()
	}()
	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error { c.Conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.Hub.logger.Debug("unexpected websocket close", slog.Any("error", err))
			}
			break
		}
		if c.Handler != nil {
			c.Handler(message)
		}
	}
}

func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()
	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
