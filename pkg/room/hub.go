package room

import (
	"sync"

	"github.com/gorilla/websocket"
)

// Signal 房间信号接口
// 成员变更成功后，由业务侧为对应用户的连接绑定/解绑群广播
type Signal interface {
	JoinRoom(userID, groupID string)
	LeaveRoom(userID, groupID string)
}

// Hub 连接与房间的绑定关系管理器
// 每个用户最多持有一条活跃连接，重复注册时替换旧连接
type Hub struct {
	mu    sync.RWMutex
	conns map[string]*websocket.Conn     // userID -> 连接
	rooms map[string]map[string]struct{} // groupID -> userID集合
	joins map[string]map[string]struct{} // userID -> groupID集合，断开时反向清理
}

// NewHub 创建Hub
func NewHub() *Hub {
	return &Hub{
		conns: make(map[string]*websocket.Conn),
		rooms: make(map[string]map[string]struct{}),
		joins: make(map[string]map[string]struct{}),
	}
}

// Register 注册用户连接，已有连接时关闭旧连接
func (h *Hub) Register(userID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if old, ok := h.conns[userID]; ok && old != conn {
		old.Close()
	}
	h.conns[userID] = conn
}

// Unregister 注销连接并退出其全部房间
// 仅当传入连接仍是该用户的活跃连接时生效，避免误删替换后的新连接
func (h *Hub) Unregister(userID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if current, ok := h.conns[userID]; !ok || current != conn {
		return
	}

	for groupID := range h.joins[userID] {
		delete(h.rooms[groupID], userID)
		if len(h.rooms[groupID]) == 0 {
			delete(h.rooms, groupID)
		}
	}
	delete(h.joins, userID)
	delete(h.conns, userID)
}

// JoinRoom 将用户绑定到群房间
func (h *Hub) JoinRoom(userID, groupID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.rooms[groupID] == nil {
		h.rooms[groupID] = make(map[string]struct{})
	}
	h.rooms[groupID][userID] = struct{}{}

	if h.joins[userID] == nil {
		h.joins[userID] = make(map[string]struct{})
	}
	h.joins[userID][groupID] = struct{}{}
}

// LeaveRoom 将用户从群房间解绑
func (h *Hub) LeaveRoom(userID, groupID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	delete(h.rooms[groupID], userID)
	if len(h.rooms[groupID]) == 0 {
		delete(h.rooms, groupID)
	}
	delete(h.joins[userID], groupID)
}

// Connected 判断用户当前是否持有活跃连接
func (h *Hub) Connected(userID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.conns[userID]
	return ok
}

// InRoom 判断用户是否在房间内
func (h *Hub) InRoom(userID, groupID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.rooms[groupID][userID]
	return ok
}

// RoomSize 房间内用户数
func (h *Hub) RoomSize(groupID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[groupID])
}

// Broadcast 向群房间广播消息，跳过指定用户
func (h *Hub) Broadcast(groupID string, exceptUserID string, payload []byte) {
	h.mu.RLock()
	targets := make([]*websocket.Conn, 0, len(h.rooms[groupID]))
	for userID := range h.rooms[groupID] {
		if userID == exceptUserID {
			continue
		}
		if conn, ok := h.conns[userID]; ok {
			targets = append(targets, conn)
		}
	}
	h.mu.RUnlock()

	for _, conn := range targets {
		// 写失败的连接交由读循环回收
		_ = conn.WriteMessage(websocket.TextMessage, payload)
	}
}
