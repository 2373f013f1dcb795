package dao

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"gochat-server/apps/chat-service/model"
	"gochat-server/pkg/database"
)

// groupDAO 群组数据访问对象
type groupDAO struct {
	db *database.MongoDB
}

// NewGroupDAO 创建群组DAO实例
func NewGroupDAO(db *database.MongoDB) GroupDAO {
	return &groupDAO{db: db}
}

func (d *groupDAO) collection() *mongo.Collection {
	return d.db.GetCollection(model.CollectionGroups)
}

// EnsureGroupIndexes 创建群名唯一索引
func EnsureGroupIndexes(ctx context.Context, db *database.MongoDB) error {
	_, err := db.GetCollection(model.CollectionGroups).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "name", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("failed to create group name index: %v", err)
	}
	return nil
}

// CreateGroup 创建群组
func (d *groupDAO) CreateGroup(ctx context.Context, group *model.Group) (string, error) {
	if group.ID == "" {
		group.ID = primitive.NewObjectID().Hex()
	}
	now := time.Now()
	group.CreateTime = now
	group.UpdateTime = now
	if group.Avatar == "" {
		group.Avatar = model.DefaultGroupAvatar
	}
	if group.Announcement == "" {
		group.Announcement = model.DefaultAnnouncement
	}
	if group.AnnouncementPublisher == "" {
		group.AnnouncementPublisher = model.DefaultAnnouncementPublisher
	}
	if group.AnnouncementTime.IsZero() {
		group.AnnouncementTime = now
	}
	if group.Members == nil {
		group.Members = []string{}
	}

	if _, err := d.collection().InsertOne(ctx, group); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return "", model.ErrDuplicateName
		}
		return "", fmt.Errorf("failed to create group: %v", err)
	}
	return group.ID, nil
}

// GetGroup 根据ID获取群组
func (d *groupDAO) GetGroup(ctx context.Context, groupID string) (*model.Group, error) {
	var group model.Group
	err := d.collection().FindOne(ctx, bson.M{"_id": groupID}).Decode(&group)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, model.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get group: %v", err)
	}
	return &group, nil
}

// GetGroupByName 根据群名获取群组
func (d *groupDAO) GetGroupByName(ctx context.Context, name string) (*model.Group, error) {
	var group model.Group
	err := d.collection().FindOne(ctx, bson.M{"name": name}).Decode(&group)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, model.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get group by name: %v", err)
	}
	return &group, nil
}

// GetDefaultGroup 获取默认群，系统内至多一个
func (d *groupDAO) GetDefaultGroup(ctx context.Context) (*model.Group, error) {
	var group model.Group
	err := d.collection().FindOne(ctx, bson.M{"isDefault": true}).Decode(&group)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, model.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get default group: %v", err)
	}
	return &group, nil
}

// CountByCreator 统计用户创建的群数量
func (d *groupDAO) CountByCreator(ctx context.Context, creatorID string) (int64, error) {
	count, err := d.collection().CountDocuments(ctx, bson.M{"creator": creatorID})
	if err != nil {
		return 0, fmt.Errorf("failed to count groups by creator: %v", err)
	}
	return count, nil
}

// AddMember 将用户加入成员列表，重复写入不产生重复成员
func (d *groupDAO) AddMember(ctx context.Context, groupID, userID string) error {
	res, err := d.collection().UpdateOne(ctx,
		bson.M{"_id": groupID},
		bson.M{
			"$addToSet": bson.M{"members": userID},
			"$set":      bson.M{"updateTime": time.Now()},
		},
	)
	if err != nil {
		return fmt.Errorf("failed to add group member: %v", err)
	}
	if res.MatchedCount == 0 {
		return model.ErrNotFound
	}
	return nil
}

// RemoveMember 将用户移出成员列表
func (d *groupDAO) RemoveMember(ctx context.Context, groupID, userID string) error {
	res, err := d.collection().UpdateOne(ctx,
		bson.M{"_id": groupID},
		bson.M{
			"$pull": bson.M{"members": userID},
			"$set":  bson.M{"updateTime": time.Now()},
		},
	)
	if err != nil {
		return fmt.Errorf("failed to remove group member: %v", err)
	}
	if res.MatchedCount == 0 {
		return model.ErrNotFound
	}
	return nil
}

// UpdateAnnouncement 更新群公告
func (d *groupDAO) UpdateAnnouncement(ctx context.Context, groupID, content, publisher string) error {
	now := time.Now()
	res, err := d.collection().UpdateOne(ctx,
		bson.M{"_id": groupID},
		bson.M{"$set": bson.M{
			"announcement":          content,
			"announcementPublisher": publisher,
			"announcementTime":      now,
			"updateTime":            now,
		}},
	)
	if err != nil {
		return fmt.Errorf("failed to update announcement: %v", err)
	}
	if res.MatchedCount == 0 {
		return model.ErrNotFound
	}
	return nil
}

// UpdateAvatar 更新群头像
func (d *groupDAO) UpdateAvatar(ctx context.Context, groupID, avatar string) error {
	res, err := d.collection().UpdateOne(ctx,
		bson.M{"_id": groupID},
		bson.M{"$set": bson.M{"avatar": avatar, "updateTime": time.Now()}},
	)
	if err != nil {
		return fmt.Errorf("failed to update group avatar: %v", err)
	}
	if res.MatchedCount == 0 {
		return model.ErrNotFound
	}
	return nil
}
