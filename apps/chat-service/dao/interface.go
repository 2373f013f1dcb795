package dao

import (
	"context"

	"gochat-server/apps/chat-service/model"
)

// UserDAO 用户数据访问接口
type UserDAO interface {
	CreateUser(ctx context.Context, user *model.User) (string, error)
	GetUser(ctx context.Context, userID string) (*model.User, error)
	GetUserByUsername(ctx context.Context, username string) (*model.User, error)
	GetUsers(ctx context.Context, userIDs []string) ([]*model.User, error)

	// 有序集合字段的逐项写，重复写入不产生重复元素
	AddGroup(ctx context.Context, userID, groupID string) error
	RemoveGroup(ctx context.Context, userID, groupID string) error
	AddFriend(ctx context.Context, userID, friendID string) error
	RemoveFriend(ctx context.Context, userID, friendID string) error
	AddExpression(ctx context.Context, userID, src string) error
	RemoveExpression(ctx context.Context, userID, src string) error

	UpdateAvatar(ctx context.Context, userID, avatar string) error
}

// GroupDAO 群组数据访问接口
type GroupDAO interface {
	CreateGroup(ctx context.Context, group *model.Group) (string, error)
	GetGroup(ctx context.Context, groupID string) (*model.Group, error)
	GetGroupByName(ctx context.Context, name string) (*model.Group, error)
	GetDefaultGroup(ctx context.Context) (*model.Group, error)
	CountByCreator(ctx context.Context, creatorID string) (int64, error)

	AddMember(ctx context.Context, groupID, userID string) error
	RemoveMember(ctx context.Context, groupID, userID string) error

	UpdateAnnouncement(ctx context.Context, groupID, content, publisher string) error
	UpdateAvatar(ctx context.Context, groupID, avatar string) error
}

// MessageDAO 群消息数据访问接口，只追加
type MessageDAO interface {
	SaveMessage(ctx context.Context, message *model.GroupMessage) error
	// 最近limit条消息，按时间从旧到新返回
	GetRecentGroupMessages(ctx context.Context, groupID string, limit int64) ([]*model.GroupMessage, error)
	CountGroupMessages(ctx context.Context, groupID string) (int64, error)
}
