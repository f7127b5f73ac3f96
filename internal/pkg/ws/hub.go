package ws

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
	sendBufferSize = 16
)

// Hub 按钱包地址分组的连接表，同一钱包可以有多个连接
type Hub struct {
	clients map[string]map[*Client]struct{}
	mu      sync.RWMutex
}

// Client 单个连接；写操作只在 WritePump 中进行
type Client struct {
	Wallet string

	conn      *websocket.Conn
	send      chan []byte
	closeOnce sync.Once
}

type Message struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

func NewHub() *Hub {
	return &Hub{
		clients: make(map[string]map[*Client]struct{}),
	}
}

func NewClient(wallet string, conn *websocket.Conn) *Client {
	return &Client{
		Wallet: wallet,
		conn:   conn,
		send:   make(chan []byte, sendBufferSize),
	}
}

func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	conns := h.clients[client.Wallet]
	if conns == nil {
		conns = make(map[*Client]struct{})
		h.clients[client.Wallet] = conns
	}
	conns[client] = struct{}{}

	log.Printf("Wallet %s subscribed to updates, wallet_conns: %d", client.Wallet, len(conns))
}

// Unregister 移除连接并关闭发送队列，可重复调用
func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	removed := h.remove(client)
	h.mu.Unlock()

	if removed {
		log.Printf("Wallet %s unsubscribed", client.Wallet)
	}
	client.closeSend()
}

func (h *Hub) remove(client *Client) bool {
	conns, ok := h.clients[client.Wallet]
	if !ok {
		return false
	}
	if _, ok := conns[client]; !ok {
		return false
	}
	delete(conns, client)
	if len(conns) == 0 {
		delete(h.clients, client.Wallet)
	}
	return true
}

// SendToWallet 投递到钱包的所有连接；队列满的慢连接直接断开
func (h *Hub) SendToWallet(wallet string, msg *Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	var slow []*Client
	h.mu.RLock()
	for c := range h.clients[wallet] {
		select {
		case c.send <- data:
		default:
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range slow {
		log.Printf("Dropping slow connection for wallet %s", wallet)
		h.Unregister(c)
	}
	return nil
}

// IsOnline 检查钱包是否有连接
func (h *Hub) IsOnline(wallet string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[wallet]) > 0
}

// ConnectionCount 获取在线连接数
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	total := 0
	for _, conns := range h.clients {
		total += len(conns)
	}
	return total
}

func (c *Client) closeSend() {
	c.closeOnce.Do(func() { close(c.send) })
}

// WritePump 把队列中的消息写到连接上并定时发送 ping，队列关闭后退出
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Printf("Write error for wallet %s: %v", c.Wallet, err)
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

// ReadPump 只处理 pong 和断开，客户端消息一律丢弃
func (c *Client) ReadPump(h *Hub) {
	defer h.Unregister(c)

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}
