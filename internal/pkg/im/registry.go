package im

import (
	"context"
	log "log/slog"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Registry 全局连接索引：用户 -> 连接、用户:客户端 -> 连接、群 -> 连接。
// 绑定、剪除和扇出查找全部经过这里，调用方不做任何自己的加锁。
type Registry struct {
	mu      sync.RWMutex
	users   map[string]map[*Conn]struct{}
	devices map[string]map[*Conn]struct{}
	groups  map[string]map[*Conn]struct{}
}

func NewRegistry() *Registry {
	return &Registry{
		users:   make(map[string]map[*Conn]struct{}),
		devices: make(map[string]map[*Conn]struct{}),
		groups:  make(map[string]map[*Conn]struct{}),
	}
}

// BindUser 将连接绑定进用户索引和设备组索引
func (r *Registry) BindUser(c *Conn, userID, deviceKey string) {
	c.bind(userID, deviceKey)

	r.mu.Lock()
	defer r.mu.Unlock()
	bindIndex(r.users, userID, c)
	bindIndex(r.devices, deviceKey, c)
}

// BindGroup 将连接绑定进一个群索引
func (r *Registry) BindGroup(c *Conn, groupID string) {
	c.addGroup(groupID)

	r.mu.Lock()
	defer r.mu.Unlock()
	bindIndex(r.groups, groupID, c)
}

// Unbind 连接关闭时按连接记录的绑定键剪除全部索引，避免残留扇出目标
func (r *Registry) Unbind(c *Conn) {
	if !c.Bound() {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	unbindIndex(r.users, c.UserID(), c)
	unbindIndex(r.devices, c.DeviceKey(), c)
	for _, groupID := range c.Groups() {
		unbindIndex(r.groups, groupID, c)
	}
}

// ConnsOfUser 用户当前的全部在线连接
func (r *Registry) ConnsOfUser(userID string) []*Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return snapshot(r.users[userID])
}

// ConnsOfDevice 某设备组当前的全部在线连接
func (r *Registry) ConnsOfDevice(deviceKey string) []*Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return snapshot(r.devices[deviceKey])
}

// ConnsOfGroup 群成员当前的全部在线连接
func (r *Registry) ConnsOfGroup(groupID string) []*Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return snapshot(r.groups[groupID])
}

// SendToUser 向用户的每条在线连接各发一份，单条失败不影响其余
func (r *Registry) SendToUser(userID string, payload []byte) {
	for _, c := range r.ConnsOfUser(userID) {
		if err := c.SendText(payload); err != nil {
			log.Error("向用户连接推送失败", "userID", userID, "err", err)
		}
	}
}

// SendToDevice 向设备组的每条在线连接各发一份
func (r *Registry) SendToDevice(deviceKey string, payload []byte) {
	for _, c := range r.ConnsOfDevice(deviceKey) {
		if err := c.SendText(payload); err != nil {
			log.Error("向设备组连接推送失败", "deviceKey", deviceKey, "err", err)
		}
	}
}

// SendToGroup 并发扇出到群索引里的全部连接，单条失败不阻塞其余
func (r *Registry) SendToGroup(groupID string, payload []byte) {
	conns := r.ConnsOfGroup(groupID)
	if len(conns) == 0 {
		return
	}

	g, _ := errgroup.WithContext(context.Background())
	g.SetLimit(16)
	for _, c := range conns {
		g.Go(func() error {
			if err := c.SendText(payload); err != nil {
				log.Error("向群连接推送失败", "groupID", groupID, "userID", c.UserID(), "err", err)
			}
			return nil
		})
	}
	_ = g.Wait()
}

// Len 当前在线连接总数
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	count := 0
	for _, set := range r.users {
		count += len(set)
	}
	return count
}

func bindIndex(index map[string]map[*Conn]struct{}, key string, c *Conn) {
	set, ok := index[key]
	if !ok {
		set = make(map[*Conn]struct{})
		index[key] = set
	}
	set[c] = struct{}{}
}

func unbindIndex(index map[string]map[*Conn]struct{}, key string, c *Conn) {
	set, ok := index[key]
	if !ok {
		return
	}
	delete(set, c)
	if len(set) == 0 {
		delete(index, key)
	}
}

func snapshot(set map[*Conn]struct{}) []*Conn {
	if len(set) == 0 {
		return nil
	}
	res := make([]*Conn, 0, len(set))
	for c := range set {
		res = append(res, c)
	}
	return res
}
