// internal/push/hub.go
package push

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"shopcore/internal/pkg/logger"
	"shopcore/internal/service/checkout/domain"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool { // 简化处理，允许所有跨域
		return true
	},
}

// Hub 维护所有活跃的订单事件订阅连接，按客户邮箱分发支付结果。
// 它实现 port.PaymentNotifier，支付提交成功后由编排器直接调用。
type Hub struct {
	nodeID     string
	clients    map[string]map[*Client]struct{} // email -> 连接集合，同一邮箱允许多端
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	lock       sync.RWMutex
}

func NewHub() *Hub {
	return &Hub{
		nodeID:     "push-" + uuid.New().String()[:8],
		clients:    make(map[string]map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
	}
}

// Run 处理连接的注册与注销，需要在独立 goroutine 中运行。
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.lock.Lock()
			set, ok := h.clients[client.email]
			if !ok {
				set = make(map[*Client]struct{})
				h.clients[client.email] = set
			}
			set[client] = struct{}{}
			h.lock.Unlock()
			logger.Logger.Debug().Str("email", client.email).Str("node", h.nodeID).Msg("push client registered")
		case client := <-h.unregister:
			h.lock.Lock()
			if set, ok := h.clients[client.email]; ok {
				if _, ok := set[client]; ok {
					delete(set, client)
					close(client.send)
					if len(set) == 0 {
						delete(h.clients, client.email)
					}
				}
			}
			h.lock.Unlock()
		case <-h.done:
			h.lock.Lock()
			for _, set := range h.clients {
				for client := range set {
					close(client.send)
				}
			}
			h.clients = make(map[string]map[*Client]struct{})
			h.lock.Unlock()
			return
		}
	}
}

// Close 断开所有连接并停止 Run 循环。
func (h *Hub) Close() {
	close(h.done)
}

// PaymentSucceeded 把支付成功事件推送给该客户的所有在线连接。
// 没有在线连接不算失败，推送是尽力而为的。
func (h *Hub) PaymentSucceeded(ctx context.Context, event *domain.PaymentSucceededEvent) error {
	payload, err := json.Marshal(map[string]interface{}{
		"type":      event.EventType(),
		"orderId":   event.OrderID,
		"paymentId": event.PaymentID,
		"amount":    event.Amount,
		"paidAt":    event.PaidAt,
	})
	if err != nil {
		return err
	}

	email := normalizeEmail(event.CustomerEmail)
	h.lock.RLock()
	set := h.clients[email]
	delivered := 0
	for client := range set {
		select {
		case client.send <- payload:
			delivered++
		default:
			// 写缓冲已满说明连接已死，交给 writePump 收尾
		}
	}
	h.lock.RUnlock()

	if delivered > 0 {
		logger.Ctx(ctx).Debug().
			Str("order_id", event.OrderID).
			Int("connections", delivered).
			Msg("payment event pushed")
	}
	return nil
}

// ServeHTTP 把 HTTP 连接升级为 WebSocket 并注册到 Hub。
// 客户端通过 ?email= 标识自己订阅哪个客户的订单事件。
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	email := normalizeEmail(r.URL.Query().Get("email"))
	if email == "" {
		http.Error(w, "email is required", http.StatusBadRequest)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Ctx(r.Context()).Error().Err(err).Msg("websocket upgrade failed")
		return
	}

	client := &Client{hub: h, conn: conn, send: make(chan []byte, 256), email: email}
	h.register <- client

	go client.writePump()
	go client.readPump()
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Client 是一个 WebSocket 连接的代表
type Client struct {
	hub   *Hub
	conn  *websocket.Conn
	send  chan []byte
	email string
}

// writePump 把 send channel 中的消息写入 websocket，并维持心跳
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

// readPump 读取心跳等消息，连接断开时从 Hub 注销
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()
	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}
