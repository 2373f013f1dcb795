package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"gochat-server/apps/chat-service/converter"
	"gochat-server/pkg/auth"
	"gochat-server/pkg/httpx"
	"gochat-server/pkg/middleware"
)

// RegisterRequest 注册请求
type RegisterRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Register 注册用户
func (h *HTTPHandler) Register(c *gin.Context) {
	ctx := c.Request.Context()
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.WriteError(c, http.StatusBadRequest, "invalid request format")
		return
	}

	user, err := h.svc.Register(ctx, req.Username, req.Password)
	if err != nil {
		h.writeError(c, err)
		return
	}
	httpx.WriteObject(c, http.StatusCreated, converter.ToUserResponse(user))
}

// LoginRequest 登录请求
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResponse 登录响应
type LoginResponse struct {
	Token string                  `json:"token"`
	User  *converter.UserResponse `json:"user"`
}

// Login 登录并签发token
func (h *HTTPHandler) Login(c *gin.Context) {
	ctx := c.Request.Context()
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.WriteError(c, http.StatusBadRequest, "invalid request format")
		return
	}

	user, err := h.svc.Login(ctx, req.Username, req.Password)
	if err != nil {
		h.writeError(c, err)
		return
	}

	token, err := auth.GenerateJWT(user.ID, user.Username, h.jwtSecret, auth.DefaultExpireTime)
	if err != nil {
		h.writeError(c, err)
		return
	}

	httpx.WriteObject(c, http.StatusOK, LoginResponse{
		Token: token,
		User:  converter.ToUserResponse(user),
	})
}

// GetUser 查询用户公开资料
func (h *HTTPHandler) GetUser(c *gin.Context) {
	ctx := c.Request.Context()
	userID := c.Param("id")
	if !validObjectID(userID) {
		httpx.WriteError(c, http.StatusBadRequest, "id is invalid")
		return
	}

	user, err := h.svc.GetUser(ctx, userID)
	if err != nil {
		httpx.WriteError(c, notFoundAsUserStatus(err), err.Error())
		return
	}
	httpx.WriteObject(c, http.StatusOK, converter.ToUserResponse(user))
}

// GetMe 查询当前登录用户
func (h *HTTPHandler) GetMe(c *gin.Context) {
	ctx := c.Request.Context()
	user, err := h.svc.GetUser(ctx, middleware.CallerID(c))
	if err != nil {
		h.writeError(c, err)
		return
	}
	httpx.WriteObject(c, http.StatusOK, converter.ToUserResponse(user))
}

// GetUserAvatar 按用户名查询头像，用户不存在时返回空头像
func (h *HTTPHandler) GetUserAvatar(c *gin.Context) {
	ctx := c.Request.Context()
	username := c.Query("username")

	avatar, err := h.svc.GetUserAvatar(ctx, username)
	if err != nil {
		h.writeError(c, err)
		return
	}
	httpx.WriteObject(c, http.StatusOK, gin.H{"username": username, "avatar": avatar})
}

// FriendRequest 好友操作请求
type FriendRequest struct {
	UserID string `json:"userId"`
}

// AddFriend 添加好友
func (h *HTTPHandler) AddFriend(c *gin.Context) {
	ctx := c.Request.Context()
	var req FriendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.WriteError(c, http.StatusBadRequest, "invalid request format")
		return
	}
	if !validObjectID(req.UserID) {
		httpx.WriteError(c, http.StatusBadRequest, "userId is invalid")
		return
	}

	if err := h.svc.AddFriend(ctx, middleware.CallerID(c), req.UserID); err != nil {
		h.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// RemoveFriend 移除好友
func (h *HTTPHandler) RemoveFriend(c *gin.Context) {
	ctx := c.Request.Context()
	var req FriendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.WriteError(c, http.StatusBadRequest, "invalid request format")
		return
	}
	if !validObjectID(req.UserID) {
		httpx.WriteError(c, http.StatusBadRequest, "userId is invalid")
		return
	}

	if err := h.svc.RemoveFriend(ctx, middleware.CallerID(c), req.UserID); err != nil {
		h.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// UpdateUserAvatarRequest 更新用户头像请求
type UpdateUserAvatarRequest struct {
	Avatar string `json:"avatar"`
}

// UpdateUserAvatar 更新用户头像
func (h *HTTPHandler) UpdateUserAvatar(c *gin.Context) {
	ctx := c.Request.Context()
	var req UpdateUserAvatarRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.WriteError(c, http.StatusBadRequest, "invalid request format")
		return
	}

	user, err := h.svc.UpdateUserAvatar(ctx, middleware.CallerID(c), req.Avatar)
	if err != nil {
		h.writeError(c, err)
		return
	}
	httpx.WriteObject(c, http.StatusOK, converter.ToUserResponse(user))
}

// ExpressionRequest 表情收藏请求
type ExpressionRequest struct {
	Src string `json:"src"`
}

// AddExpression 收藏表情
func (h *HTTPHandler) AddExpression(c *gin.Context) {
	ctx := c.Request.Context()
	var req ExpressionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.WriteError(c, http.StatusBadRequest, "invalid request format")
		return
	}

	expressions, err := h.svc.AddExpression(ctx, middleware.CallerID(c), req.Src)
	if err != nil {
		h.writeError(c, err)
		return
	}
	httpx.WriteObject(c, http.StatusCreated, gin.H{"expressions": expressions})
}

// RemoveExpression 取消收藏表情
func (h *HTTPHandler) RemoveExpression(c *gin.Context) {
	ctx := c.Request.Context()
	var req ExpressionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.WriteError(c, http.StatusBadRequest, "invalid request format")
		return
	}

	expressions, err := h.svc.RemoveExpression(ctx, middleware.CallerID(c), req.Src)
	if err != nil {
		h.writeError(c, err)
		return
	}
	httpx.WriteObject(c, http.StatusOK, gin.H{"expressions": expressions})
}
