package alert

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// WSChannel 把通知以 JSON 广播给所有已连接的 websocket 客户端。
// 作为 http.Handler 挂载到 /ws。
type WSChannel struct {
	name         string
	writeTimeout time.Duration
	clients      map[*websocket.Conn]bool
	lock         sync.Mutex
}

// NewWSChannel 创建 websocket 通知通道
func NewWSChannel(name string) *WSChannel {
	return &WSChannel{
		name:         name,
		writeTimeout: 2 * time.Second,
		clients:      make(map[*websocket.Conn]bool),
	}
}

// ServeHTTP 升级连接并登记客户端，读循环只用于感知断开。
func (c *WSChannel) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	c.lock.Lock()
	c.clients[conn] = true
	c.lock.Unlock()

	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				c.drop(conn)
				return
			}
		}
	}()
}

// Send 广播通知，写失败的客户端被移除。
func (c *WSChannel) Send(alert Alert) error {
	msg, err := json.Marshal(alert)
	if err != nil {
		return err
	}
	c.lock.Lock()
	defer c.lock.Unlock()
	for client := range c.clients {
		_ = client.SetWriteDeadline(time.Now().Add(c.writeTimeout))
		if err := client.WriteMessage(websocket.TextMessage, msg); err != nil {
			client.Close()
			delete(c.clients, client)
		}
	}
	return nil
}

// Clients 当前连接数
func (c *WSChannel) Clients() int {
	c.lock.Lock()
	defer c.lock.Unlock()
	return len(c.clients)
}

// Close 断开所有客户端
func (c *WSChannel) Close() error {
	c.lock.Lock()
	defer c.lock.Unlock()
	for client := range c.clients {
		client.Close()
		delete(c.clients, client)
	}
	return nil
}

// Name 返回通道名称
func (c *WSChannel) Name() string {
	return c.name
}

func (c *WSChannel) drop(conn *websocket.Conn) {
	c.lock.Lock()
	defer c.lock.Unlock()
	if c.clients[conn] {
		conn.Close()
		delete(c.clients, conn)
	}
}
