package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"chapter-server/internal/workflow"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 54 * time.Second
	maxMessageSize = 512
	sendBuffer     = 64
)

// MessageTypeChapterState - тип сообщения с изменением состояния главы.
const MessageTypeChapterState = "chapter_state"

// Message - сообщение, отправляемое подписчикам.
type Message struct {
	Type    string `json:"type"`
	Topic   string `json:"topic"`
	Payload any    `json:"payload"`
}

// Hub рассылает события планов подключенным клиентам. Тема - ID плана.
type Hub struct {
	clients    map[uuid.UUID]*Client
	register   chan *Client
	unregister chan *Client
	broadcast  chan Message
	done       chan struct{}
	mu         sync.RWMutex
	upgrader   websocket.Upgrader
	logger     *zap.Logger
}

var _ workflow.EventSink = (*Hub)(nil)

// Client - websocket подписчик.
type Client struct {
	ID     uuid.UUID
	conn   *websocket.Conn
	hub    *Hub
	send   chan []byte
	mu     sync.RWMutex
	topics map[string]bool
}

// NewHub создает Hub. allowedOrigins пуст - разрешены все источники.
func NewHub(allowedOrigins []string, logger *zap.Logger) *Hub {
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = true
	}
	return &Hub{
		clients:    make(map[uuid.UUID]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan Message, 256),
		done:       make(chan struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return len(allowed) == 0 || origin == "" || allowed[origin]
			},
		},
		logger: logger.Named("WebSocketHub"),
	}
}

// Run обрабатывает подключения и рассылку до отмены ctx.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for id, c := range h.clients {
				close(c.send)
				delete(h.clients, id)
			}
			h.mu.Unlock()
			h.logger.Info("WebSocket hub stopped")
			return

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c.ID] = c
			h.mu.Unlock()
			h.logger.Debug("Client connected", zap.String("client_id", c.ID.String()))

		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c.ID]; ok {
				close(c.send)
				delete(h.clients, c.ID)
				h.logger.Debug("Client disconnected", zap.String("client_id", c.ID.String()))
			}
			h.mu.Unlock()

		case msg := <-h.broadcast:
			data, err := json.Marshal(msg)
			if err != nil {
				h.logger.Error("Failed to marshal websocket message", zap.Error(err))
				continue
			}
			h.mu.Lock()
			for id, c := range h.clients {
				if !c.IsSubscribed(msg.Topic) {
					continue
				}
				select {
				case c.send <- data:
				default:
					h.logger.Warn("Dropping slow websocket client", zap.String("client_id", id.String()))
					close(c.send)
					delete(h.clients, id)
				}
			}
			h.mu.Unlock()
		}
	}
}

// ClientCount возвращает число подключенных клиентов.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Publish рассылает событие подписчикам плана.
func (h *Hub) Publish(ctx context.Context, event workflow.StateEvent) error {
	msg := Message{Type: MessageTypeChapterState, Topic: event.PlanID, Payload: event}
	select {
	case h.broadcast <- msg:
		return nil
	case <-h.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ServePlan подключает клиента и подписывает его на план из параметра :planID.
func (h *Hub) ServePlan(c *gin.Context) {
	planID := c.Param("planID")
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("WebSocket upgrade failed", zap.String("plan_id", planID), zap.Error(err))
		return
	}

	client := &Client{
		ID:     uuid.New(),
		conn:   conn,
		hub:    h,
		send:   make(chan []byte, sendBuffer),
		topics: map[string]bool{planID: true},
	}
	select {
	case h.register <- client:
	case <-h.done:
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

// Subscribe подписывает клиента на план.
func (c *Client) Subscribe(topic string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.topics[topic] = true
}

// Unsubscribe отписывает клиента от плана.
func (c *Client) Unsubscribe(topic string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.topics, topic)
}

// IsSubscribed сообщает, подписан ли клиент на план.
func (c *Client) IsSubscribed(topic string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.topics[topic]
}

func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.Warn("WebSocket read error", zap.String("client_id", c.ID.String()), zap.Error(err))
			}
			return
		}

		var cmd struct {
			Action string `json:"action"`
			Topic  string `json:"topic"`
		}
		if err := json.Unmarshal(raw, &cmd); err != nil {
			c.hub.logger.Debug("Ignoring malformed websocket command", zap.Error(err))
			continue
		}
		switch cmd.Action {
		case "subscribe":
			c.Subscribe(cmd.Topic)
		case "unsubscribe":
			c.Unsubscribe(cmd.Topic)
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
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
