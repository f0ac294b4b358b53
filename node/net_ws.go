package node

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
)

// ClientConn 观战连接的发送端包装
type ClientConn struct {
	ws   *websocket.Conn
	send chan []byte
	done chan struct{}
	once sync.Once
}

func NewClientConn(ws *websocket.Conn) *ClientConn {
	return &ClientConn{
		ws:   ws,
		send: make(chan []byte, 64),
		done: make(chan struct{}),
	}
}

// Enqueue 将要发送的消息压入队列（非阻塞，满则丢弃）
func (c *ClientConn) Enqueue(b []byte) {
	select {
	case <-c.done:
		return
	default:
	}
	select {
	case c.send <- b:
	default:
		// 为了实时性，丢弃消息（防止阻塞接收循环）
	}
}

// Close 关闭底层连接并结束写协程，可重复调用
func (c *ClientConn) Close() {
	c.once.Do(func() {
		close(c.done)
		_ = c.ws.Close()
	})
}

// writePump 独立协程，负责从 send 队列写出到 WS
func (c *ClientConn) writePump() {
	ping := time.NewTicker(30 * time.Second)
	defer ping.Stop()
	defer c.Close()
	for {
		select {
		case <-c.done:
			return
		case msg := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(5 * time.Second))
			if err := c.ws.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ping.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(5 * time.Second))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump 观战端只读；这里只负责保活并在断开时注销
func (c *ClientConn) readPump(h *Spectators) {
	defer h.remove(c)
	defer c.Close()
	c.ws.SetReadLimit(512)
	_ = c.ws.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.ws.SetPongHandler(func(string) error { return c.ws.SetReadDeadline(time.Now().Add(60 * time.Second)) })

	for {
		if _, _, err := c.ws.ReadMessage(); err != nil {
			return
		}
	}
}

// SpectatorUpdate 推送给观战端的 JSON
type SpectatorUpdate struct {
	Type   string   `json:"type"` // "local" | "remote" | "snapshot"
	ID     Identity `json:"id"`
	X      uint32   `json:"x"`
	Y      uint32   `json:"y"`
	Side   uint32   `json:"side"`
	Color  string   `json:"color"`
	Status string   `json:"status,omitempty"`
}

func newSpectatorUpdate(kind string, p Player) SpectatorUpdate {
	return SpectatorUpdate{
		Type:  kind,
		ID:    p.ID,
		X:     p.Coordinates.X,
		Y:     p.Coordinates.Y,
		Side:  p.Side,
		Color: p.Color.String(),
	}
}

// Spectators 观战连接集合；实现 Renderer，把每次更新广播给浏览器
type Spectators struct {
	mu      sync.Mutex
	clients map[*ClientConn]struct{}
}

func NewSpectators() *Spectators {
	return &Spectators{clients: make(map[*ClientConn]struct{})}
}

func (h *Spectators) OnLocalUpdate(p Player) {
	h.broadcast(newSpectatorUpdate("local", p))
}

func (h *Spectators) OnRemoteUpdate(id Identity, at Point, p Player) {
	u := newSpectatorUpdate("remote", p)
	u.ID, u.X, u.Y = id, at.X, at.Y
	h.broadcast(u)
}

func (h *Spectators) broadcast(u SpectatorUpdate) {
	b, err := json.Marshal(u)
	if err != nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		c.Enqueue(b)
	}
}

// Len 当前观战连接数
func (h *Spectators) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *Spectators) remove(c *ClientConn) {
	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
}

// attach 在持有 h.mu 时登记并推送快照，广播要等快照入队后才能进行，
// 新连接既不会漏掉更新，也不会在更新之后收到旧快照
func (h *Spectators) attach(c *ClientConn, s *Session) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = struct{}{}
	snap := s.Snapshot()
	if snap.Self != nil {
		u := newSpectatorUpdate("snapshot", *snap.Self)
		u.Status = snap.Status.String()
		if b, err := json.Marshal(u); err == nil {
			c.Enqueue(b)
		}
	}
	for _, p := range snap.Remotes {
		if b, err := json.Marshal(newSpectatorUpdate("snapshot", p)); err == nil {
			c.Enqueue(b)
		}
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// 观战端只读，允许所有来源
		return true
	},
}

// Handle WebSocket 接入：先推送当前快照，之后推送每次更新
func (h *Spectators) Handle(s *Session) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			Log.Warnw("spectator upgrade failed", "remote", r.RemoteAddr, "err", err)
			return
		}
		c := NewClientConn(ws)
		h.attach(c, s)
		Log.Infow("spectator connected", "remote", r.RemoteAddr)
		go c.writePump()
		go c.readPump(h)
	}
}
