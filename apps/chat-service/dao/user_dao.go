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

// userDAO 用户数据访问对象
type userDAO struct {
	db *database.MongoDB
}

// NewUserDAO 创建用户DAO实例
func NewUserDAO(db *database.MongoDB) UserDAO {
	return &userDAO{db: db}
}

func (d *userDAO) collection() *mongo.Collection {
	return d.db.GetCollection(model.CollectionUsers)
}

// EnsureUserIndexes 创建用户名唯一索引
func EnsureUserIndexes(ctx context.Context, db *database.MongoDB) error {
	_, err := db.GetCollection(model.CollectionUsers).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "username", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("failed to create username index: %v", err)
	}
	return nil
}

// CreateUser 创建用户
func (d *userDAO) CreateUser(ctx context.Context, user *model.User) (string, error) {
	if user.ID == "" {
		user.ID = primitive.NewObjectID().Hex()
	}
	now := time.Now()
	user.CreateTime = now
	user.UpdateTime = now
	if user.Groups == nil {
		user.Groups = []string{}
	}
	if user.Friends == nil {
		user.Friends = []string{}
	}
	if user.Expressions == nil {
		user.Expressions = []string{}
	}

	if _, err := d.collection().InsertOne(ctx, user); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return "", model.ErrDuplicateName
		}
		return "", fmt.Errorf("failed to create user: %v", err)
	}
	return user.ID, nil
}

// GetUser 根据ID获取用户
func (d *userDAO) GetUser(ctx context.Context, userID string) (*model.User, error) {
	var user model.User
	err := d.collection().FindOne(ctx, bson.M{"_id": userID}).Decode(&user)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, model.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user: %v", err)
	}
	return &user, nil
}

// GetUserByUsername 根据用户名获取用户
func (d *userDAO) GetUserByUsername(ctx context.Context, username string) (*model.User, error) {
	var user model.User
	err := d.collection().FindOne(ctx, bson.M{"username": username}).Decode(&user)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, model.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user by username: %v", err)
	}
	return &user, nil
}

// GetUsers 按ID批量获取用户，结果顺序与入参一致
func (d *userDAO) GetUsers(ctx context.Context, userIDs []string) ([]*model.User, error) {
	if len(userIDs) == 0 {
		return []*model.User{}, nil
	}

	cursor, err := d.collection().Find(ctx, bson.M{"_id": bson.M{"$in": userIDs}})
	if err != nil {
		return nil, fmt.Errorf("failed to get users: %v", err)
	}
	defer cursor.Close(ctx)

	byID := make(map[string]*model.User, len(userIDs))
	for cursor.Next(ctx) {
		var user model.User
		if err := cursor.Decode(&user); err != nil {
			return nil, fmt.Errorf("failed to decode user: %v", err)
		}
		u := user
		byID[u.ID] = &u
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate users: %v", err)
	}

	users := make([]*model.User, 0, len(userIDs))
	for _, id := range userIDs {
		if u, ok := byID[id]; ok {
			users = append(users, u)
		}
	}
	return users, nil
}

// addToSet 向用户的有序集合字段追加元素
func (d *userDAO) addToSet(ctx context.Context, userID, field, value string) error {
	res, err := d.collection().UpdateOne(ctx,
		bson.M{"_id": userID},
		bson.M{
			"$addToSet": bson.M{field: value},
			"$set":      bson.M{"updateTime": time.Now()},
		},
	)
	if err != nil {
		return fmt.Errorf("failed to update user %s: %v", field, err)
	}
	if res.MatchedCount == 0 {
		return model.ErrNotFound
	}
	return nil
}

// pull 从用户的有序集合字段移除元素
func (d *userDAO) pull(ctx context.Context, userID, field, value string) error {
	res, err := d.collection().UpdateOne(ctx,
		bson.M{"_id": userID},
		bson.M{
			"$pull": bson.M{field: value},
			"$set":  bson.M{"updateTime": time.Now()},
		},
	)
	if err != nil {
		return fmt.Errorf("failed to update user %s: %v", field, err)
	}
	if res.MatchedCount == 0 {
		return model.ErrNotFound
	}
	return nil
}

// AddGroup 将群加入用户的群列表
func (d *userDAO) AddGroup(ctx context.Context, userID, groupID string) error {
	return d.addToSet(ctx, userID, "groups", groupID)
}

// RemoveGroup 将群移出用户的群列表
func (d *userDAO) RemoveGroup(ctx context.Context, userID, groupID string) error {
	return d.pull(ctx, userID, "groups", groupID)
}

// AddFriend 添加好友
func (d *userDAO) AddFriend(ctx context.Context, userID, friendID string) error {
	return d.addToSet(ctx, userID, "friends", friendID)
}

// RemoveFriend 移除好友
func (d *userDAO) RemoveFriend(ctx context.Context, userID, friendID string) error {
	return d.pull(ctx, userID, "friends", friendID)
}

// AddExpression 收藏表情
func (d *userDAO) AddExpression(ctx context.Context, userID, src string) error {
	return d.addToSet(ctx, userID, "expressions", src)
}

// RemoveExpression 取消收藏表情
func (d *userDAO) RemoveExpression(ctx context.Context, userID, src string) error {
	return d.pull(ctx, userID, "expressions", src)
}

// UpdateAvatar 更新用户头像
func (d *userDAO) UpdateAvatar(ctx context.Context, userID, avatar string) error {
	res, err := d.collection().UpdateOne(ctx,
		bson.M{"_id": userID},
		bson.M{"$set": bson.M{"avatar": avatar, "updateTime": time.Now()}},
	)
	if err != nil {
		return fmt.Errorf("failed to update user avatar: %v", err)
	}
	if res.MatchedCount == 0 {
		return model.ErrNotFound
	}
	return nil
}
