package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"golang.org/x/crypto/bcrypt"

	"gochat-server/apps/chat-service/model"
	"gochat-server/pkg/imagestore"
	"gochat-server/pkg/logger"
)

// bcrypt代价因子
const bcryptCost = 10

// 注册时随机分配的头像底色
var avatarColors = []string{
	"aquamarine", "blueviolet", "chocolate", "darkcyan", "darkgrey",
	"darkmagenta", "darkorange", "darkseagreen", "darkslategrey",
	"deeppink", "deepskyblue", "dimgrey", "forestgreen", "indigo",
}

// Register 注册用户并自动加入默认群
func (s *Service) Register(ctx context.Context, username, password string) (*model.User, error) {
	if username == "" {
		return nil, fmt.Errorf("need username param but not exists: %w", model.ErrInvalidInput)
	}
	if password == "" {
		return nil, fmt.Errorf("need password param but not exists: %w", model.ErrInvalidInput)
	}
	if !model.ValidName(username) {
		return nil, fmt.Errorf("username invalid: %w", model.ErrInvalidName)
	}

	if _, err := s.users.GetUserByUsername(ctx, username); err == nil {
		return nil, fmt.Errorf("username already exists: %w", model.ErrDuplicateName)
	} else if !errors.Is(err, model.ErrNotFound) {
		return nil, fmt.Errorf("%v: %w", err, model.ErrStorage)
	}

	defaultGroup, err := s.groups.GetDefaultGroup(ctx)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return nil, fmt.Errorf("default group not exists: %w", model.ErrStorage)
		}
		return nil, fmt.Errorf("%v: %w", err, model.ErrStorage)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("%v: %w", err, model.ErrStorage)
	}

	user := &model.User{
		Username: username,
		Password: string(hash),
		Avatar:   avatarColors[rand.Intn(len(avatarColors))],
		Groups:   []string{defaultGroup.ID},
	}
	userID, err := s.users.CreateUser(ctx, user)
	if err != nil {
		if errors.Is(err, model.ErrDuplicateName) {
			return nil, fmt.Errorf("username already exists: %w", model.ErrDuplicateName)
		}
		return nil, fmt.Errorf("%v: %w", err, model.ErrStorage)
	}

	// 用户文档已写入，这一步失败会留下单侧成员关系
	if err := s.groups.AddMember(ctx, defaultGroup.ID, userID); err != nil {
		return nil, fmt.Errorf("enrol default group after register: %v: %w", err, model.ErrStorage)
	}

	s.logger.Info(ctx, "User registered",
		logger.F("userID", userID), logger.F("username", username))
	return user, nil
}

// Login 校验用户名密码
func (s *Service) Login(ctx context.Context, username, password string) (*model.User, error) {
	if username == "" || password == "" {
		return nil, fmt.Errorf("need username and password params: %w", model.ErrInvalidInput)
	}

	user, err := s.users.GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return nil, model.ErrUnauthorized
		}
		return nil, fmt.Errorf("%v: %w", err, model.ErrStorage)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return nil, model.ErrUnauthorized
	}
	return user, nil
}

// GetUser 查询用户公开资料
func (s *Service) GetUser(ctx context.Context, userID string) (*model.User, error) {
	if userID == "" {
		return nil, fmt.Errorf("need id param but not exists: %w", model.ErrInvalidInput)
	}
	user, err := s.users.GetUser(ctx, userID)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return nil, fmt.Errorf("user not exists: %w", model.ErrNotFound)
		}
		return nil, fmt.Errorf("%v: %w", err, model.ErrStorage)
	}
	return user, nil
}

// GetUserAvatar 按用户名查询头像，用户不存在时返回空头像
func (s *Service) GetUserAvatar(ctx context.Context, username string) (string, error) {
	if username == "" {
		return "", fmt.Errorf("need username param but not exists: %w", model.ErrInvalidInput)
	}
	user, err := s.users.GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return "", nil
		}
		return "", fmt.Errorf("%v: %w", err, model.ErrStorage)
	}
	return user.Avatar, nil
}

// AddFriend 添加好友，已是好友时视为成功
func (s *Service) AddFriend(ctx context.Context, callerID, friendID string) error {
	if callerID == "" {
		return model.ErrUnauthorized
	}
	if friendID == "" {
		return fmt.Errorf("need userId param but not exists: %w", model.ErrInvalidInput)
	}

	caller, err := s.users.GetUser(ctx, callerID)
	if err != nil {
		return fmt.Errorf("%v: %w", err, model.ErrStorage)
	}
	if model.Contains(caller.Friends, friendID) {
		return nil
	}

	if _, err := s.users.GetUser(ctx, friendID); err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return fmt.Errorf("user not exists: %w", model.ErrNotFound)
		}
		return fmt.Errorf("%v: %w", err, model.ErrStorage)
	}

	if err := s.users.AddFriend(ctx, callerID, friendID); err != nil {
		return fmt.Errorf("%v: %w", err, model.ErrStorage)
	}
	return nil
}

// RemoveFriend 移除好友，本就不是好友时视为成功
func (s *Service) RemoveFriend(ctx context.Context, callerID, friendID string) error {
	if callerID == "" {
		return model.ErrUnauthorized
	}
	if friendID == "" {
		return fmt.Errorf("need userId param but not exists: %w", model.ErrInvalidInput)
	}

	caller, err := s.users.GetUser(ctx, callerID)
	if err != nil {
		return fmt.Errorf("%v: %w", err, model.ErrStorage)
	}
	if !model.Contains(caller.Friends, friendID) {
		return nil
	}

	if err := s.users.RemoveFriend(ctx, callerID, friendID); err != nil {
		return fmt.Errorf("%v: %w", err, model.ErrStorage)
	}
	return nil
}

// UpdateUserAvatar 更新用户头像
func (s *Service) UpdateUserAvatar(ctx context.Context, callerID, avatarDataURI string) (*model.User, error) {
	if callerID == "" {
		return nil, model.ErrUnauthorized
	}
	if avatarDataURI == "" {
		return nil, fmt.Errorf("need avatar param but not exists: %w", model.ErrInvalidInput)
	}

	subtype, err := imagestore.ParseSubtype(avatarDataURI)
	if err != nil {
		return nil, fmt.Errorf("%v: %w", err, model.ErrInvalidInput)
	}

	user, err := s.users.GetUser(ctx, callerID)
	if err != nil {
		return nil, fmt.Errorf("%v: %w", err, model.ErrStorage)
	}

	filename := fmt.Sprintf("user_%s_%d.%s", user.ID, time.Now().UnixMilli(), subtype)
	ref, err := s.images.Persist(ctx, filename, avatarDataURI)
	if err != nil {
		return nil, fmt.Errorf("%v: %w", err, model.ErrStorage)
	}

	if err := s.users.UpdateAvatar(ctx, callerID, ref); err != nil {
		return nil, fmt.Errorf("%v: %w", err, model.ErrStorage)
	}

	user.Avatar = ref
	return user, nil
}

// AddExpression 收藏表情，重复收藏不产生重复项
func (s *Service) AddExpression(ctx context.Context, callerID, src string) ([]string, error) {
	if callerID == "" {
		return nil, model.ErrUnauthorized
	}
	if src == "" {
		return nil, fmt.Errorf("need src param but not exists: %w", model.ErrInvalidInput)
	}

	if err := s.users.AddExpression(ctx, callerID, src); err != nil {
		return nil, fmt.Errorf("%v: %w", err, model.ErrStorage)
	}

	user, err := s.users.GetUser(ctx, callerID)
	if err != nil {
		return nil, fmt.Errorf("%v: %w", err, model.ErrStorage)
	}
	return user.Expressions, nil
}

// RemoveExpression 取消收藏表情
func (s *Service) RemoveExpression(ctx context.Context, callerID, src string) ([]string, error) {
	if callerID == "" {
		return nil, model.ErrUnauthorized
	}
	if src == "" {
		return nil, fmt.Errorf("need src param but not exists: %w", model.ErrInvalidInput)
	}

	if err := s.users.RemoveExpression(ctx, callerID, src); err != nil {
		return nil, fmt.Errorf("%v: %w", err, model.ErrStorage)
	}

	user, err := s.users.GetUser(ctx, callerID)
	if err != nil {
		return nil, fmt.Errorf("%v: %w", err, model.ErrStorage)
	}
	return user.Expressions, nil
}
