package presence

import (
	"context"
	"fmt"

	"gochat-server/pkg/redis"
)

// 在线用户集合的Redis key
const onlineUsersKey = "online_users"

// Registry 在线状态注册表
// 业务侧只消费读接口，写入由连接生命周期驱动
type Registry interface {
	IsOnline(ctx context.Context, userID string) (bool, error)
	SetOnline(ctx context.Context, userID string) error
	SetOffline(ctx context.Context, userID string) error
	OnlineUsers(ctx context.Context) ([]string, error)
}

// redisRegistry 基于Redis set的在线状态注册表
type redisRegistry struct {
	redis *redis.RedisClient
}

// NewRegistry 创建在线状态注册表
func NewRegistry(rc *redis.RedisClient) Registry {
	return &redisRegistry{redis: rc}
}

// IsOnline 检查用户是否在线
func (r *redisRegistry) IsOnline(ctx context.Context, userID string) (bool, error) {
	online, err := r.redis.SIsMember(ctx, onlineUsersKey, userID)
	if err != nil {
		return false, fmt.Errorf("failed to check online status: %v", err)
	}
	return online, nil
}

// SetOnline 标记用户在线
func (r *redisRegistry) SetOnline(ctx context.Context, userID string) error {
	if err := r.redis.SAdd(ctx, onlineUsersKey, userID); err != nil {
		return fmt.Errorf("failed to set user online: %v", err)
	}
	return nil
}

// SetOffline 标记用户离线
func (r *redisRegistry) SetOffline(ctx context.Context, userID string) error {
	if err := r.redis.SRem(ctx, onlineUsersKey, userID); err != nil {
		return fmt.Errorf("failed to set user offline: %v", err)
	}
	return nil
}

// OnlineUsers 获取全部在线用户
func (r *redisRegistry) OnlineUsers(ctx context.Context) ([]string, error) {
	members, err := r.redis.SMembers(ctx, onlineUsersKey)
	if err != nil {
		return nil, fmt.Errorf("failed to list online users: %v", err)
	}
	return members, nil
}
