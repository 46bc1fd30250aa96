package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"nexusmail/agent/internal/inbox"
)

const (
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
	writeWait  = 10 * time.Second
)

// MessageType WebSocket 消息类型
type MessageType string

const (
	MessageTypeInboxUpdate     MessageType = "inbox_update"
	MessageTypeMailboxSwitched MessageType = "mailbox_switched"
	MessageTypePing            MessageType = "ping"
	MessageTypePong            MessageType = "pong"
)

// Message WebSocket 消息结构
type Message struct {
	Type      MessageType     `json:"type"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// Client 一个已连接的 UI 客户端
type Client struct {
	ID   string
	conn *websocket.Conn
	send chan []byte
	hub  *Hub
	log  *zap.Logger
}

// ClientCounter 连接数变化的观察回调。
type ClientCounter func(count int)

// Hub 管理所有 WebSocket 连接。
//
// 本地代理是单用户进程，所有连接的客户端收到同一份事件流，
// 不做按邮箱的订阅隔离。
type Hub struct {
	clients    map[string]*Client
	register   chan *Client
	unregister chan *Client
	broadcast  chan *Message
	done       chan struct{}
	mu         sync.RWMutex
	log        *zap.Logger

	allowedOrigins []string
	onClientCount  ClientCounter
}

// NewHub 创建 WebSocket Hub
func NewHub(allowedOrigins []string, log *zap.Logger) *Hub {
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}

	return &Hub{
		clients:        make(map[string]*Client),
		register:       make(chan *Client),
		unregister:     make(chan *Client),
		broadcast:      make(chan *Message, 256),
		done:           make(chan struct{}),
		log:            log,
		allowedOrigins: allowedOrigins,
	}
}

// OnClientCount 注册连接数观察回调，必须在 Run 之前调用。
func (h *Hub) OnClientCount(fn ClientCounter) {
	h.onClientCount = fn
}

// Run 驱动 Hub 的事件循环，直到 ctx 取消。
func (h *Hub) Run(ctx context.Context) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			// 先关 done，挂在 register/unregister 上的 goroutine 才能退出
			close(h.done)
			h.log.Info("websocket hub 已停止")
			h.closeAll()
			return

		case client := <-h.register:
			h.add(client)

		case client := <-h.unregister:
			h.remove(client)

		case msg := <-h.broadcast:
			if data, err := json.Marshal(msg); err == nil {
				h.fanOut(data)
			} else {
				h.log.Error("编码消息失败", zap.Error(err))
			}

		case <-ticker.C:
			ping := &Message{Type: MessageTypePing, Timestamp: time.Now()}
			if data, err := json.Marshal(ping); err == nil {
				h.fanOut(data)
			}
		}
	}
}

// NotifyEvent 把同步器事件推给所有连接的客户端。
// 注册为 inbox.Synchronizer 的事件回调使用。
func (h *Hub) NotifyEvent(event inbox.Event) {
	data, err := json.Marshal(event)
	if err != nil {
		h.log.Error("编码事件失败", zap.Error(err))
		return
	}

	msg := &Message{
		Type:      MessageType(event.Type),
		Data:      data,
		Timestamp: time.Now(),
	}

	select {
	case h.broadcast <- msg:
	default:
		h.log.Warn("广播队列已满，丢弃事件", zap.String("type", event.Type))
	}
}

func (h *Hub) add(client *Client) {
	h.mu.Lock()
	h.clients[client.ID] = client
	count := len(h.clients)
	h.mu.Unlock()

	h.notifyClientCount(count)
	h.log.Info("客户端已连接", zap.String("id", client.ID))
}

func (h *Hub) remove(client *Client) {
	h.mu.Lock()
	if _, ok := h.clients[client.ID]; ok {
		delete(h.clients, client.ID)
		close(client.send)
		h.log.Info("客户端已断开", zap.String("id", client.ID))
	}
	count := len(h.clients)
	h.mu.Unlock()

	h.notifyClientCount(count)
}

// fanOut 把已编码的消息投递给每个客户端，阻塞的客户端直接跳过。
func (h *Hub) fanOut(data []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, client := range h.clients {
		select {
		case client.send <- data:
		default:
			h.log.Warn("客户端通道阻塞，跳过", zap.String("clientID", client.ID))
		}
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, client := range h.clients {
		close(client.send)
	}
	h.clients = make(map[string]*Client)
	h.notifyClientCount(0)
}

func (h *Hub) notifyClientCount(count int) {
	if h.onClientCount != nil {
		h.onClientCount(count)
	}
}

// checkOrigin 按 CORS 配置验证升级请求来源，空 Origin 视为同源。
func checkOrigin(allowedOrigins []string) func(*http.Request) bool {
	return func(r *http.Request) bool {
		requestOrigin := r.Header.Get("Origin")
		if requestOrigin == "" {
			return true
		}
		for _, origin := range allowedOrigins {
			if origin == "*" || origin == requestOrigin {
				return true
			}
		}
		return false
	}
}

// HandleWebSocket 升级连接并挂入 Hub。
func HandleWebSocket(hub *Hub) gin.HandlerFunc {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     checkOrigin(hub.allowedOrigins),
	}

	return func(c *gin.Context) {
		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			hub.log.Error("升级连接失败",
				zap.Error(err),
				zap.String("origin", c.Request.Header.Get("Origin")),
				zap.String("remote_addr", c.ClientIP()))
			return
		}

		client := &Client{
			ID:   uuid.NewString(),
			conn: conn,
			send: make(chan []byte, 256),
			hub:  hub,
			log:  hub.log,
		}

		select {
		case hub.register <- client:
		case <-hub.done:
			conn.Close()
			return
		}

		go client.writePump()
		go client.readPump()
	}
}

// readPump 消费客户端消息，目前只用于刷新读超时。
func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var msg Message
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.log.Error("websocket 连接异常", zap.Error(err))
			}
			return
		}

		if msg.Type == MessageTypePong {
			c.conn.SetReadDeadline(time.Now().Add(pongWait))
		}
	}
}

// writePump 把 send 通道里的消息写给客户端，并维持协议级心跳。
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
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
