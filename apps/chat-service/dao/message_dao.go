package dao

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"gochat-server/apps/chat-service/model"
	"gochat-server/pkg/database"
)

// messageDAO 群消息数据访问对象
type messageDAO struct {
	db *database.MongoDB
}

// NewMessageDAO 创建消息DAO实例
func NewMessageDAO(db *database.MongoDB) MessageDAO {
	return &messageDAO{db: db}
}

func (d *messageDAO) collection() *mongo.Collection {
	return d.db.GetCollection(model.CollectionMessages)
}

// EnsureMessageIndexes 创建按群查询的联合索引
func EnsureMessageIndexes(ctx context.Context, db *database.MongoDB) error {
	_, err := db.GetCollection(model.CollectionMessages).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "to", Value: 1}, {Key: "createTime", Value: 1}},
	})
	if err != nil {
		return fmt.Errorf("failed to create message index: %v", err)
	}
	return nil
}

// SaveMessage 保存消息
func (d *messageDAO) SaveMessage(ctx context.Context, message *model.GroupMessage) error {
	if message.CreateTime.IsZero() {
		message.CreateTime = time.Now()
	}
	if _, err := d.collection().InsertOne(ctx, message); err != nil {
		return fmt.Errorf("failed to save message: %v", err)
	}
	return nil
}

// GetRecentGroupMessages 取群内最近limit条消息，按时间从旧到新返回
func (d *messageDAO) GetRecentGroupMessages(ctx context.Context, groupID string, limit int64) ([]*model.GroupMessage, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "createTime", Value: -1}}).
		SetLimit(limit)

	cursor, err := d.collection().Find(ctx, bson.M{"to": groupID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to get recent messages: %v", err)
	}
	defer cursor.Close(ctx)

	var messages []*model.GroupMessage
	for cursor.Next(ctx) {
		var msg model.GroupMessage
		if err := cursor.Decode(&msg); err != nil {
			return nil, fmt.Errorf("failed to decode message: %v", err)
		}
		m := msg
		messages = append(messages, &m)
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate messages: %v", err)
	}

	// 倒序查询结果翻转为时间正序
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

// CountGroupMessages 统计群消息总数
func (d *messageDAO) CountGroupMessages(ctx context.Context, groupID string) (int64, error) {
	count, err := d.collection().CountDocuments(ctx, bson.M{"to": groupID})
	if err != nil {
		return 0, fmt.Errorf("failed to count messages: %v", err)
	}
	return count, nil
}
