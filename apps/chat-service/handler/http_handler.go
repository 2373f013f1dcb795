package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"gochat-server/apps/chat-service/converter"
	"gochat-server/apps/chat-service/model"
	"gochat-server/apps/chat-service/service"
	"gochat-server/pkg/httpx"
	"gochat-server/pkg/logger"
	"gochat-server/pkg/middleware"
	"gochat-server/pkg/presence"
	"gochat-server/pkg/room"
)

// HTTPHandler HTTP协议处理器
type HTTPHandler struct {
	svc       *service.Service
	hub       *room.Hub
	reg       presence.Registry
	authMW    *middleware.AuthMiddleware
	jwtSecret string
	log       logger.Logger
}

// NewHTTPHandler 创建HTTP处理器
func NewHTTPHandler(svc *service.Service, hub *room.Hub, reg presence.Registry, authMW *middleware.AuthMiddleware, jwtSecret string, log logger.Logger) *HTTPHandler {
	return &HTTPHandler{
		svc:       svc,
		hub:       hub,
		reg:       reg,
		authMW:    authMW,
		jwtSecret: jwtSecret,
		log:       log,
	}
}

// RegisterRoutes 注册HTTP路由
func (h *HTTPHandler) RegisterRoutes(r *gin.Engine) {
	// 未登录入口单独限流，防注册和撞库
	authLimiter := middleware.NewRateLimiter(5, 10)

	public := r.Group("/api/v1")
	{
		public.POST("/user/register", authLimiter.GinRateLimit(), h.Register)
		public.POST("/user/login", authLimiter.GinRateLimit(), h.Login)
		public.GET("/user/avatar", h.GetUserAvatar)
		public.GET("/user/:id", h.GetUser)
	}

	api := r.Group("/api/v1", h.authMW.GinAuth())
	{
		api.POST("/group", h.CreateGroup)              // 创建群组
		api.GET("/group/:id", h.GetGroupRoster)        // 获取在线成员视图
		api.POST("/group/members", h.JoinGroup)        // 加入群组
		api.DELETE("/group/members", h.LeaveGroup)     // 退出群组
		api.PUT("/group/announcement", h.UpdateAnnouncement)
		api.PUT("/group/avatar", h.UpdateGroupAvatar)
		api.POST("/group/message", h.SendGroupMessage) // 发送群消息

		api.GET("/user/me", h.GetMe)
		api.POST("/user/friend", h.AddFriend)
		api.DELETE("/user/friend", h.RemoveFriend)
		api.PUT("/user/avatar", h.UpdateUserAvatar)
		api.POST("/user/expression", h.AddExpression)
		api.DELETE("/user/expression", h.RemoveExpression)

		api.GET("/ws", h.HandleWebSocket)
	}
}

// statusOf 业务错误到HTTP状态码的映射
func statusOf(err error) int {
	switch model.Kind(err) {
	case model.ErrUnauthorized, model.ErrForbidden:
		return http.StatusUnauthorized
	case model.ErrInvalidInput, model.ErrNotFound, model.ErrConflict:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// writeError 写出错误响应，存储类错误不向客户端透出细节
func (h *HTTPHandler) writeError(c *gin.Context, err error) {
	status := statusOf(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		h.log.Error(c.Request.Context(), "Request failed",
			logger.F("path", c.Request.URL.Path), logger.F("error", msg))
		msg = "server error"
	}
	httpx.WriteError(c, status, msg)
}

// validObjectID 校验ID是否为合法ObjectID hex
func validObjectID(id string) bool {
	_, err := primitive.ObjectIDFromHex(id)
	return err == nil
}

// CreateGroupRequest 创建群组请求
type CreateGroupRequest struct {
	Name string `json:"name"`
}

// CreateGroup 创建群组
func (h *HTTPHandler) CreateGroup(c *gin.Context) {
	ctx := c.Request.Context()
	var req CreateGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.WriteError(c, http.StatusBadRequest, "invalid request format")
		return
	}

	detail, err := h.svc.CreateGroup(ctx, middleware.CallerID(c), req.Name)
	if err != nil {
		h.writeError(c, err)
		return
	}
	httpx.WriteObject(c, http.StatusCreated, converter.ToGroupResponse(detail))
}

// GetGroupRoster 获取按在线状态过滤的群成员视图
func (h *HTTPHandler) GetGroupRoster(c *gin.Context) {
	ctx := c.Request.Context()
	groupID := c.Param("id")
	if !validObjectID(groupID) {
		httpx.WriteError(c, http.StatusBadRequest, "groupId is invalid")
		return
	}

	detail, err := h.svc.GetGroupRoster(ctx, middleware.CallerID(c), groupID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	httpx.WriteObject(c, http.StatusOK, converter.ToGroupResponse(detail))
}

// JoinGroupRequest 加群请求
type JoinGroupRequest struct {
	GroupName string `json:"groupName"`
}

// JoinGroup 加入群组，返回带最近消息的群视图
func (h *HTTPHandler) JoinGroup(c *gin.Context) {
	ctx := c.Request.Context()
	var req JoinGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.WriteError(c, http.StatusBadRequest, "invalid request format")
		return
	}

	detail, err := h.svc.JoinGroup(ctx, middleware.CallerID(c), req.GroupName)
	if err != nil {
		h.writeError(c, err)
		return
	}
	httpx.WriteObject(c, http.StatusCreated, converter.ToGroupResponse(detail))
}

// LeaveGroupRequest 退群请求
type LeaveGroupRequest struct {
	GroupID string `json:"groupId"`
}

// LeaveGroup 退出群组
func (h *HTTPHandler) LeaveGroup(c *gin.Context) {
	ctx := c.Request.Context()
	var req LeaveGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.WriteError(c, http.StatusBadRequest, "invalid request format")
		return
	}
	if req.GroupID != "" && !validObjectID(req.GroupID) {
		httpx.WriteError(c, http.StatusBadRequest, "groupId is invalid")
		return
	}

	if err := h.svc.LeaveGroup(ctx, middleware.CallerID(c), req.GroupID); err != nil {
		h.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// UpdateAnnouncementRequest 发布公告请求
type UpdateAnnouncementRequest struct {
	GroupID string `json:"groupId"`
	Content string `json:"content"`
}

// UpdateAnnouncement 发布群公告
func (h *HTTPHandler) UpdateAnnouncement(c *gin.Context) {
	ctx := c.Request.Context()
	var req UpdateAnnouncementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.WriteError(c, http.StatusBadRequest, "invalid request format")
		return
	}
	if req.GroupID != "" && !validObjectID(req.GroupID) {
		httpx.WriteError(c, http.StatusBadRequest, "groupId is invalid")
		return
	}

	group, err := h.svc.UpdateAnnouncement(ctx, middleware.CallerID(c), req.GroupID, req.Content)
	if err != nil {
		h.writeError(c, err)
		return
	}
	httpx.WriteObject(c, http.StatusCreated, converter.ToBareGroupResponse(group))
}

// UpdateGroupAvatarRequest 更新群头像请求
type UpdateGroupAvatarRequest struct {
	GroupID string `json:"groupId"`
	Avatar  string `json:"avatar"`
}

// UpdateGroupAvatar 更新群头像
func (h *HTTPHandler) UpdateGroupAvatar(c *gin.Context) {
	ctx := c.Request.Context()
	var req UpdateGroupAvatarRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.WriteError(c, http.StatusBadRequest, "invalid request format")
		return
	}
	if req.GroupID != "" && !validObjectID(req.GroupID) {
		httpx.WriteError(c, http.StatusBadRequest, "groupId is invalid")
		return
	}

	group, err := h.svc.UpdateGroupAvatar(ctx, middleware.CallerID(c), req.GroupID, req.Avatar)
	if err != nil {
		h.writeError(c, err)
		return
	}
	httpx.WriteObject(c, http.StatusCreated, converter.ToBareGroupResponse(group))
}

// SendGroupMessageRequest 发送群消息请求
type SendGroupMessageRequest struct {
	GroupID string `json:"groupId"`
	Type    string `json:"type"`
	Content string `json:"content"`
}

// SendGroupMessage 发送群消息并向房间内其他成员广播
func (h *HTTPHandler) SendGroupMessage(c *gin.Context) {
	ctx := c.Request.Context()
	var req SendGroupMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.WriteError(c, http.StatusBadRequest, "invalid request format")
		return
	}
	if req.GroupID != "" && !validObjectID(req.GroupID) {
		httpx.WriteError(c, http.StatusBadRequest, "groupId is invalid")
		return
	}

	callerID := middleware.CallerID(c)
	msg, err := h.svc.SendGroupMessage(ctx, callerID, req.GroupID, req.Type, req.Content)
	if err != nil {
		h.writeError(c, err)
		return
	}

	h.broadcastMessage(msg, callerID)
	httpx.WriteObject(c, http.StatusCreated, converter.ToMessageResponse(msg))
}

func (h *HTTPHandler) broadcastMessage(msg *model.GroupMessage, exceptUserID string) {
	payload, err := marshalWSEvent("group.message", converter.ToMessageResponse(msg))
	if err != nil {
		return
	}
	h.hub.Broadcast(msg.To, exceptUserID, payload)
}

// notFoundAsUserStatus 用户资源查询专用：不存在返回404而不是400
func notFoundAsUserStatus(err error) int {
	if errors.Is(err, model.ErrNotFound) {
		return http.StatusNotFound
	}
	return statusOf(err)
}
