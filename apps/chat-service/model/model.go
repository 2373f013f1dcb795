package model

import (
	"regexp"
	"time"
)

// 集合名
const (
	CollectionUsers    = "users"
	CollectionGroups   = "groups"
	CollectionMessages = "messages"
)

// DefaultAnnouncement 新群默认公告
const DefaultAnnouncement = "无公告"

// DefaultAnnouncementPublisher 默认公告发布者
const DefaultAnnouncementPublisher = "system"

// DefaultGroupAvatar 新群默认头像
const DefaultGroupAvatar = "/avatars/group_default.png"

// RecentMessageWindow 入群时返回的最近消息条数上限
const RecentMessageWindow = 30

// namePattern 用户名与群名共用的命名约束：1-16个小写字母、数字、汉字、下划线或连字符
var namePattern = regexp.MustCompile(`(?i)^[-_0-9a-z\x{4e00}-\x{9eff}]{1,16}$`)

// ValidName 校验名称是否符合命名约束
func ValidName(name string) bool {
	return namePattern.MatchString(name)
}

// User 用户
type User struct {
	ID          string    `bson:"_id,omitempty" json:"id"`
	Username    string    `bson:"username" json:"username"`
	Password    string    `bson:"password" json:"-"`
	Avatar      string    `bson:"avatar" json:"avatar"`
	Groups      []string  `bson:"groups" json:"groups"`
	Friends     []string  `bson:"friends" json:"friends"`
	Expressions []string  `bson:"expressions" json:"expressions"`
	CreateTime  time.Time `bson:"createTime" json:"createTime"`
	UpdateTime  time.Time `bson:"updateTime" json:"updateTime"`
}

// Group 群组
type Group struct {
	ID                    string    `bson:"_id,omitempty" json:"id"`
	Name                  string    `bson:"name" json:"name"`
	Avatar                string    `bson:"avatar" json:"avatar"`
	Announcement          string    `bson:"announcement" json:"announcement"`
	AnnouncementPublisher string    `bson:"announcementPublisher" json:"announcementPublisher"`
	AnnouncementTime      time.Time `bson:"announcementTime" json:"announcementTime"`
	Creator               string    `bson:"creator" json:"creator"`
	IsDefault             bool      `bson:"isDefault" json:"isDefault"`
	Members               []string  `bson:"members" json:"members"`
	CreateTime            time.Time `bson:"createTime" json:"createTime"`
	UpdateTime            time.Time `bson:"updateTime" json:"updateTime"`
}

// HasMember 判断用户是否在成员列表中
func (g *Group) HasMember(userID string) bool {
	return Contains(g.Members, userID)
}

// GroupMessage 群消息，只追加不修改
type GroupMessage struct {
	ID         int64     `bson:"_id" json:"id"`
	To         string    `bson:"to" json:"to"`
	From       string    `bson:"from" json:"from"`
	Type       string    `bson:"type" json:"type"`
	Content    string    `bson:"content" json:"content"`
	CreateTime time.Time `bson:"createTime" json:"createTime"`
}

// 消息类型
const (
	MessageTypeText  = "text"
	MessageTypeImage = "image"
	MessageTypeCode  = "code"
	MessageTypeURL   = "url"
)

// MemberSummary 成员摘要，读侧反规范化的结果
type MemberSummary struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Avatar   string `json:"avatar"`
}

// CreatorSummary 创建者摘要
type CreatorSummary struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

// GroupDetail 带摘要的群视图
type GroupDetail struct {
	Group    *Group
	Members  []MemberSummary
	Creator  *CreatorSummary
	Messages []*GroupMessage
}

// Contains 判断值是否已在切片中
func Contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

// AppendUnique 有序集合式追加，已存在时不变
func AppendUnique(list []string, v string) ([]string, bool) {
	if Contains(list, v) {
		return list, false
	}
	return append(list, v), true
}

// Remove 从切片移除值，保持其余元素顺序
func Remove(list []string, v string) ([]string, bool) {
	for i, item := range list {
		if item == v {
			return append(list[:i:i], list[i+1:]...), true
		}
	}
	return list, false
}
