package converter

import (
	"time"

	"gochat-server/apps/chat-service/model"
)

// GroupResponse 群组响应体
type GroupResponse struct {
	ID                    string            `json:"id"`
	Name                  string            `json:"name"`
	Avatar                string            `json:"avatar"`
	Announcement          string            `json:"announcement"`
	AnnouncementPublisher string            `json:"announcementPublisher"`
	AnnouncementTime      time.Time         `json:"announcementTime"`
	Creator               *CreatorResponse  `json:"creator,omitempty"`
	IsDefault             bool              `json:"isDefault"`
	Members               []MemberResponse  `json:"members"`
	Messages              []MessageResponse `json:"messages,omitempty"`
	CreateTime            time.Time         `json:"createTime"`
}

// CreatorResponse 创建者摘要响应体
type CreatorResponse struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

// MemberResponse 成员摘要响应体
type MemberResponse struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Avatar   string `json:"avatar"`
}

// MessageResponse 群消息响应体
type MessageResponse struct {
	ID         int64     `json:"id"`
	To         string    `json:"to"`
	From       string    `json:"from"`
	Type       string    `json:"type"`
	Content    string    `json:"content"`
	CreateTime time.Time `json:"createTime"`
}

// UserResponse 用户响应体，不含口令字段
type UserResponse struct {
	ID          string    `json:"id"`
	Username    string    `json:"username"`
	Avatar      string    `json:"avatar"`
	Groups      []string  `json:"groups"`
	Friends     []string  `json:"friends"`
	Expressions []string  `json:"expressions"`
	CreateTime  time.Time `json:"createTime"`
}

// ToGroupResponse 把带摘要的群视图转为响应体
func ToGroupResponse(detail *model.GroupDetail) *GroupResponse {
	resp := toBareGroupResponse(detail.Group)

	resp.Members = make([]MemberResponse, 0, len(detail.Members))
	for _, m := range detail.Members {
		resp.Members = append(resp.Members, MemberResponse{
			ID:       m.ID,
			Username: m.Username,
			Avatar:   m.Avatar,
		})
	}

	if detail.Creator != nil {
		resp.Creator = &CreatorResponse{ID: detail.Creator.ID, Username: detail.Creator.Username}
	}

	if len(detail.Messages) > 0 {
		resp.Messages = make([]MessageResponse, 0, len(detail.Messages))
		for _, msg := range detail.Messages {
			resp.Messages = append(resp.Messages, ToMessageResponse(msg))
		}
	}

	return resp
}

// ToBareGroupResponse 把裸群文档转为响应体，成员只含ID
func ToBareGroupResponse(group *model.Group) *GroupResponse {
	resp := toBareGroupResponse(group)
	resp.Members = make([]MemberResponse, 0, len(group.Members))
	for _, id := range group.Members {
		resp.Members = append(resp.Members, MemberResponse{ID: id})
	}
	return resp
}

func toBareGroupResponse(group *model.Group) *GroupResponse {
	return &GroupResponse{
		ID:                    group.ID,
		Name:                  group.Name,
		Avatar:                group.Avatar,
		Announcement:          group.Announcement,
		AnnouncementPublisher: group.AnnouncementPublisher,
		AnnouncementTime:      group.AnnouncementTime,
		IsDefault:             group.IsDefault,
		CreateTime:            group.CreateTime,
	}
}

// ToMessageResponse 把群消息转为响应体
func ToMessageResponse(msg *model.GroupMessage) MessageResponse {
	return MessageResponse{
		ID:         msg.ID,
		To:         msg.To,
		From:       msg.From,
		Type:       msg.Type,
		Content:    msg.Content,
		CreateTime: msg.CreateTime,
	}
}

// ToUserResponse 把用户文档转为响应体
func ToUserResponse(user *model.User) *UserResponse {
	return &UserResponse{
		ID:          user.ID,
		Username:    user.Username,
		Avatar:      user.Avatar,
		Groups:      user.Groups,
		Friends:     user.Friends,
		Expressions: user.Expressions,
		CreateTime:  user.CreateTime,
	}
}
