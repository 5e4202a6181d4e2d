package im

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const writeTimeout = 10 * time.Second

// Socket 抽象底层 websocket 连接，*websocket.Conn 天然实现
type Socket interface {
	WriteMessage(messageType int, data []byte) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

// Conn 一条物理连接及其绑定状态。
// 未认证时只允许 ready 帧，认证后持有用户、设备组和群的绑定键，
// 连接关闭时注册表按这些键剪除索引。
type Conn struct {
	sock Socket

	writeMu sync.Mutex // gorilla 不允许并发写

	mu        sync.RWMutex
	userID    string
	deviceKey string
	groups    []string
	bound     bool
}

func NewConn(sock Socket) *Conn {
	return &Conn{sock: sock}
}

// SendText 发送一条文本帧，带写超时
func (c *Conn) SendText(payload []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.sock.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.sock.WriteMessage(websocket.TextMessage, payload)
}

func (c *Conn) bind(userID, deviceKey string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.userID = userID
	c.deviceKey = deviceKey
	c.bound = true
}

func (c *Conn) addGroup(groupID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.groups = append(c.groups, groupID)
}

func (c *Conn) UserID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.userID
}

func (c *Conn) DeviceKey() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.deviceKey
}

func (c *Conn) Groups() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	res := make([]string, len(c.groups))
	copy(res, c.groups)
	return res
}

func (c *Conn) Bound() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.bound
}

func (c *Conn) Close() error {
	return c.sock.Close()
}
