package api

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"portfolio-server/internal/model"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Галерея публичная, origin не ограничиваем
	},
}

// wsMessage - кадр, уходящий подписчикам при каждом изменении коллекции.
type wsMessage struct {
	Type    string       `json:"type"`
	Payload []model.Slot `json:"payload"`
}

// Hub управляет WebSocket-соединениями зрителей галереи. Единственный вид
// трафика - широковещательная рассылка полного снимка коллекции.
type Hub struct {
	clients    map[uuid.UUID]*wsClient
	register   chan *wsClient
	unregister chan *wsClient
	broadcast  chan []byte
	mu         sync.RWMutex
	logger     *zap.Logger
}

type wsClient struct {
	id   uuid.UUID
	conn *websocket.Conn
	send chan []byte
	hub  *Hub
}

// NewHub создает hub рассылки.
func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		clients:    make(map[uuid.UUID]*wsClient),
		register:   make(chan *wsClient),
		unregister: make(chan *wsClient),
		broadcast:  make(chan []byte, 16),
		logger:     logger.Named("WSHub"),
	}
}

// Start запускает цикл обработки в отдельной горутине.
func (h *Hub) Start() {
	go h.run()
}

func (h *Hub) run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.id] = client
			h.mu.Unlock()
			h.logger.Info("WebSocket client connected", zap.String("client_id", client.id.String()))

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client.id]; ok {
				close(client.send)
				delete(h.clients, client.id)
				h.logger.Info("WebSocket client disconnected", zap.String("client_id", client.id.String()))
			}
			h.mu.Unlock()

		case data := <-h.broadcast:
			h.mu.Lock()
			for id, client := range h.clients {
				select {
				case client.send <- data:
				default:
					// Медленный клиент: очередь заполнена, разрываем соединение
					close(client.send)
					delete(h.clients, id)
				}
			}
			h.mu.Unlock()
		}
	}
}

// BroadcastSlots рассылает снимок коллекции всем подключенным клиентам.
func (h *Hub) BroadcastSlots(slots []model.Slot) {
	data, err := json.Marshal(wsMessage{Type: "slots", Payload: slots})
	if err != nil {
		h.logger.Error("Failed to marshal slots broadcast", zap.Error(err))
		return
	}
	select {
	case h.broadcast <- data:
	default:
		h.logger.Warn("Broadcast queue is full, dropping update")
	}
}

// ClientCount возвращает число подключенных клиентов.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Handle апгрейдит HTTP-соединение и регистрирует клиента.
func (h *Hub) Handle(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("WebSocket upgrade failed", zap.Error(err))
		return
	}

	client := &wsClient{
		id:   uuid.New(),
		conn: conn,
		send: make(chan []byte, 16),
		hub:  h,
	}
	h.register <- client

	go client.writePump()
	go client.readPump()
}

// readPump читает (и игнорирует) входящие сообщения, поддерживая pong-таймауты.
func (c *wsClient) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *wsClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case data, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
