package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"gochat-server/pkg/logger"
	"gochat-server/pkg/middleware"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// WSEvent 下行事件帧
type WSEvent struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

func marshalWSEvent(event string, data interface{}) ([]byte, error) {
	return json.Marshal(WSEvent{Event: event, Data: data})
}

// HandleWebSocket 建立长连接
// 连接建立即在线：注册连接、写入在线表、重新绑定所属群的房间；
// 连接断开即离线，反向全部清理
func (h *HTTPHandler) HandleWebSocket(c *gin.Context) {
	ctx := c.Request.Context()
	callerID := middleware.CallerID(c)

	user, err := h.svc.GetUser(ctx, callerID)
	if err != nil {
		h.writeError(c, err)
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn(ctx, "WebSocket upgrade failed", logger.F("error", err.Error()))
		return
	}

	h.hub.Register(callerID, conn)
	if err := h.reg.SetOnline(ctx, callerID); err != nil {
		h.log.Error(ctx, "Failed to mark user online", logger.F("userID", callerID), logger.F("error", err.Error()))
	}
	for _, groupID := range user.Groups {
		h.hub.JoinRoom(callerID, groupID)
	}

	h.log.Info(ctx, "WebSocket connected", logger.F("userID", callerID))

	defer func() {
		// 清理时请求上下文已随连接结束取消，换用独立上下文
		cleanupCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		h.hub.Unregister(callerID, conn)
		// 重连替换旧连接时，旧连接的清理不得把用户置为离线
		if !h.hub.Connected(callerID) {
			if err := h.reg.SetOffline(cleanupCtx, callerID); err != nil {
				h.log.Error(cleanupCtx, "Failed to mark user offline", logger.F("userID", callerID), logger.F("error", err.Error()))
			}
		}
		conn.Close()
		h.log.Info(cleanupCtx, "WebSocket disconnected", logger.F("userID", callerID))
	}()

	conn.SetReadLimit(64 * 1024)
	_ = conn.SetReadDeadline(time.Now().Add(90 * time.Second))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(90 * time.Second))
	})

	// 读循环只消费心跳和关闭帧，业务请求全部走HTTP
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(90 * time.Second))
	}
}
