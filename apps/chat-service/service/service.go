package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"gochat-server/apps/chat-service/dao"
	"gochat-server/apps/chat-service/model"
	"gochat-server/pkg/imagestore"
	"gochat-server/pkg/kafka"
	"gochat-server/pkg/logger"
	"gochat-server/pkg/presence"
	"gochat-server/pkg/room"
	"gochat-server/pkg/snowflake"
	"gochat-server/pkg/telemetry"
)

// EventPublisher 群组事件发布接口
type EventPublisher interface {
	SendGroupEvent(topic string, event kafka.GroupEvent) error
}

// Service 聊天服务
// 成员关系冗余存储在用户侧和群侧两份文档中，写入顺序固定为先用户后群，
// 两次写之间没有事务，第二次写失败以存储错误上抛，不做补偿回滚
type Service struct {
	users    dao.UserDAO
	groups   dao.GroupDAO
	messages dao.MessageDAO
	presence presence.Registry
	rooms    room.Signal
	events   EventPublisher
	images   imagestore.Store
	idgen    *snowflake.Snowflake
	logger   logger.Logger

	eventTopic string
}

// NewService 创建聊天服务实例
func NewService(
	users dao.UserDAO,
	groups dao.GroupDAO,
	messages dao.MessageDAO,
	reg presence.Registry,
	rooms room.Signal,
	events EventPublisher,
	images imagestore.Store,
	idgen *snowflake.Snowflake,
	eventTopic string,
	log logger.Logger,
) *Service {
	return &Service{
		users:      users,
		groups:     groups,
		messages:   messages,
		presence:   reg,
		rooms:      rooms,
		events:     events,
		images:     images,
		idgen:      idgen,
		eventTopic: eventTopic,
		logger:     log,
	}
}

// publishEvent 发布群组事件，失败只记日志不影响主流程
func (s *Service) publishEvent(ctx context.Context, eventType, groupID, userID string) {
	if s.events == nil {
		return
	}
	event := kafka.GroupEvent{
		Type:      eventType,
		GroupID:   groupID,
		UserID:    userID,
		Timestamp: time.Now().Unix(),
	}
	if err := s.events.SendGroupEvent(s.eventTopic, event); err != nil {
		s.logger.Warn(ctx, "Failed to publish group event",
			logger.F("type", eventType), logger.F("groupID", groupID), logger.F("error", err.Error()))
	}
}

// CreateGroup 创建群组，每个用户至多创建一个群
func (s *Service) CreateGroup(ctx context.Context, callerID, name string) (*model.GroupDetail, error) {
	ctx, span := telemetry.StartSpan(ctx, "chat.service.CreateGroup")
	defer span.End()
	span.SetAttributes(
		attribute.String("group.name", name),
		attribute.String("caller.id", callerID),
	)

	if callerID == "" {
		return nil, model.ErrUnauthorized
	}
	if name == "" {
		return nil, fmt.Errorf("need name param but not exists: %w", model.ErrInvalidInput)
	}
	if !model.ValidName(name) {
		return nil, model.ErrInvalidName
	}

	owned, err := s.groups.CountByCreator(ctx, callerID)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("%v: %w", err, model.ErrStorage)
	}
	if owned > 0 {
		span.SetStatus(codes.Error, "ownership limit exceeded")
		return nil, model.ErrOwnershipLimit
	}

	caller, err := s.users.GetUser(ctx, callerID)
	if err != nil {
		return nil, fmt.Errorf("%v: %w", err, model.ErrStorage)
	}

	group := &model.Group{
		Name:    name,
		Creator: caller.ID,
		Members: []string{caller.ID},
	}
	groupID, err := s.groups.CreateGroup(ctx, group)
	if err != nil {
		if errors.Is(err, model.ErrDuplicateName) {
			return nil, model.ErrDuplicateName
		}
		span.RecordError(err)
		return nil, fmt.Errorf("%v: %w", err, model.ErrStorage)
	}
	span.SetAttributes(attribute.String("group.id", groupID))

	// 群文档已落盘，这次写失败会留下单侧成员关系，按存储错误上抛
	if err := s.users.AddGroup(ctx, caller.ID, groupID); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("save user groups after create: %v: %w", err, model.ErrStorage)
	}

	s.publishEvent(ctx, "created", groupID, callerID)
	s.logger.Info(ctx, "Group created",
		logger.F("groupID", groupID), logger.F("name", name), logger.F("creator", callerID))

	return s.populateDetail(ctx, group, nil)
}

// JoinGroup 按群名加入群组，返回带成员摘要和最近消息的群视图
func (s *Service) JoinGroup(ctx context.Context, callerID, groupName string) (*model.GroupDetail, error) {
	ctx, span := telemetry.StartSpan(ctx, "chat.service.JoinGroup")
	defer span.End()
	span.SetAttributes(
		attribute.String("group.name", groupName),
		attribute.String("caller.id", callerID),
	)

	if callerID == "" {
		return nil, model.ErrUnauthorized
	}
	if groupName == "" {
		return nil, fmt.Errorf("need groupName param but not exists: %w", model.ErrInvalidInput)
	}

	group, err := s.groups.GetGroupByName(ctx, groupName)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return nil, fmt.Errorf("group not exists: %w", model.ErrNotFound)
		}
		return nil, fmt.Errorf("%v: %w", err, model.ErrStorage)
	}

	caller, err := s.users.GetUser(ctx, callerID)
	if err != nil {
		return nil, fmt.Errorf("%v: %w", err, model.ErrStorage)
	}

	// 成员关系双侧校验；两侧不一致说明此前有写入中断，如实上抛而不是就地修复
	inUser := model.Contains(caller.Groups, group.ID)
	inGroup := group.HasMember(callerID)
	if inUser && inGroup {
		return nil, model.ErrAlreadyMember
	}
	if inUser != inGroup {
		span.SetStatus(codes.Error, "membership records inconsistent")
		s.logger.Error(ctx, "Membership records inconsistent",
			logger.F("userID", callerID), logger.F("groupID", group.ID),
			logger.F("inUser", inUser), logger.F("inGroup", inGroup))
		return nil, fmt.Errorf("membership records inconsistent for user %s and group %s: %w",
			callerID, group.ID, model.ErrStorage)
	}

	// 先写用户侧再写群侧；第二步失败时第一步不回滚
	if err := s.users.AddGroup(ctx, callerID, group.ID); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("save user side of membership: %v: %w", err, model.ErrStorage)
	}
	if err := s.groups.AddMember(ctx, group.ID, callerID); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "group side write failed after user side committed")
		return nil, fmt.Errorf("save group side of membership: %v: %w", err, model.ErrStorage)
	}

	// 两侧都提交后才绑定房间广播
	s.rooms.JoinRoom(callerID, group.ID)
	group.Members, _ = model.AppendUnique(group.Members, callerID)

	s.publishEvent(ctx, "member.joined", group.ID, callerID)
	s.logger.Info(ctx, "User joined group",
		logger.F("userID", callerID), logger.F("groupID", group.ID))

	recent, err := s.messages.GetRecentGroupMessages(ctx, group.ID, model.RecentMessageWindow)
	if err != nil {
		return nil, fmt.Errorf("%v: %w", err, model.ErrStorage)
	}
	return s.populateDetail(ctx, group, recent)
}

// LeaveGroup 退出群组
func (s *Service) LeaveGroup(ctx context.Context, callerID, groupID string) error {
	ctx, span := telemetry.StartSpan(ctx, "chat.service.LeaveGroup")
	defer span.End()
	span.SetAttributes(
		attribute.String("group.id", groupID),
		attribute.String("caller.id", callerID),
	)

	if callerID == "" {
		return model.ErrUnauthorized
	}
	if groupID == "" {
		return fmt.Errorf("need groupId param but not exists: %w", model.ErrInvalidInput)
	}

	group, err := s.groups.GetGroup(ctx, groupID)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return fmt.Errorf("group not exists: %w", model.ErrNotFound)
		}
		return fmt.Errorf("%v: %w", err, model.ErrStorage)
	}

	caller, err := s.users.GetUser(ctx, callerID)
	if err != nil {
		return fmt.Errorf("%v: %w", err, model.ErrStorage)
	}

	// 先查用户侧再查群侧，任一侧缺失都按非成员处理，且不产生任何写入
	if !model.Contains(caller.Groups, group.ID) {
		return model.ErrNotMember
	}
	if !group.HasMember(callerID) {
		return model.ErrNotMember
	}

	if err := s.users.RemoveGroup(ctx, callerID, group.ID); err != nil {
		span.RecordError(err)
		return fmt.Errorf("remove user side of membership: %v: %w", err, model.ErrStorage)
	}
	if err := s.groups.RemoveMember(ctx, group.ID, callerID); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "group side write failed after user side committed")
		return fmt.Errorf("remove group side of membership: %v: %w", err, model.ErrStorage)
	}

	s.rooms.LeaveRoom(callerID, group.ID)

	s.publishEvent(ctx, "member.left", group.ID, callerID)
	s.logger.Info(ctx, "User left group",
		logger.F("userID", callerID), logger.F("groupID", groupID))
	return nil
}

// UpdateAnnouncement 发布群公告，仅创建者可操作
func (s *Service) UpdateAnnouncement(ctx context.Context, callerID, groupID, content string) (*model.Group, error) {
	ctx, span := telemetry.StartSpan(ctx, "chat.service.UpdateAnnouncement")
	defer span.End()
	span.SetAttributes(
		attribute.String("group.id", groupID),
		attribute.String("caller.id", callerID),
	)

	if callerID == "" {
		return nil, model.ErrUnauthorized
	}
	if content == "" {
		return nil, fmt.Errorf("need content param but not exists: %w", model.ErrInvalidInput)
	}
	if groupID == "" {
		return nil, fmt.Errorf("need groupId param but not exists: %w", model.ErrInvalidInput)
	}

	group, err := s.groups.GetGroup(ctx, groupID)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return nil, fmt.Errorf("group not exists: %w", model.ErrNotFound)
		}
		return nil, fmt.Errorf("%v: %w", err, model.ErrStorage)
	}
	if group.Creator != callerID {
		return nil, model.ErrNotCreator
	}

	caller, err := s.users.GetUser(ctx, callerID)
	if err != nil {
		return nil, fmt.Errorf("%v: %w", err, model.ErrStorage)
	}

	if err := s.groups.UpdateAnnouncement(ctx, groupID, content, caller.Username); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("%v: %w", err, model.ErrStorage)
	}

	s.publishEvent(ctx, "announcement", groupID, callerID)

	group.Announcement = content
	group.AnnouncementPublisher = caller.Username
	group.AnnouncementTime = time.Now()
	return group, nil
}

// UpdateGroupAvatar 更新群头像，仅创建者可操作
// 图片载荷解析失败在任何存储调用之前拒绝
func (s *Service) UpdateGroupAvatar(ctx context.Context, callerID, groupID, avatarDataURI string) (*model.Group, error) {
	ctx, span := telemetry.StartSpan(ctx, "chat.service.UpdateGroupAvatar")
	defer span.End()
	span.SetAttributes(
		attribute.String("group.id", groupID),
		attribute.String("caller.id", callerID),
	)

	if callerID == "" {
		return nil, model.ErrUnauthorized
	}
	if avatarDataURI == "" {
		return nil, fmt.Errorf("need avatar param but not exists: %w", model.ErrInvalidInput)
	}
	if groupID == "" {
		return nil, fmt.Errorf("need groupId param but not exists: %w", model.ErrInvalidInput)
	}

	subtype, err := imagestore.ParseSubtype(avatarDataURI)
	if err != nil {
		return nil, fmt.Errorf("%v: %w", err, model.ErrInvalidInput)
	}

	group, err := s.groups.GetGroup(ctx, groupID)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return nil, fmt.Errorf("group not exists: %w", model.ErrNotFound)
		}
		return nil, fmt.Errorf("%v: %w", err, model.ErrStorage)
	}
	if group.Creator != callerID {
		return nil, model.ErrNotCreator
	}

	filename := fmt.Sprintf("group_%s_%d.%s", group.ID, time.Now().UnixMilli(), subtype)
	ref, err := s.images.Persist(ctx, filename, avatarDataURI)
	if err != nil {
		return nil, fmt.Errorf("%v: %w", err, model.ErrStorage)
	}

	if err := s.groups.UpdateAvatar(ctx, groupID, ref); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("%v: %w", err, model.ErrStorage)
	}

	group.Avatar = ref
	return group, nil
}

// GetGroupRoster 获取按在线状态过滤的群成员视图
// 调用者本人即使尚未出现在在线表中也始终保留，纯读操作
func (s *Service) GetGroupRoster(ctx context.Context, callerID, groupID string) (*model.GroupDetail, error) {
	ctx, span := telemetry.StartSpan(ctx, "chat.service.GetGroupRoster")
	defer span.End()

	if callerID == "" {
		return nil, model.ErrUnauthorized
	}
	if groupID == "" {
		return nil, fmt.Errorf("need groupId param but not exists: %w", model.ErrInvalidInput)
	}

	group, err := s.groups.GetGroup(ctx, groupID)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return nil, fmt.Errorf("group not exists: %w", model.ErrNotFound)
		}
		return nil, fmt.Errorf("%v: %w", err, model.ErrStorage)
	}

	online, err := s.presence.OnlineUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("%v: %w", err, model.ErrStorage)
	}
	onlineSet := make(map[string]struct{}, len(online))
	for _, id := range online {
		onlineSet[id] = struct{}{}
	}

	// 过滤保持成员原有插入顺序
	filtered := make([]string, 0, len(group.Members))
	for _, memberID := range group.Members {
		if _, ok := onlineSet[memberID]; ok || memberID == callerID {
			filtered = append(filtered, memberID)
		}
	}
	group.Members = filtered

	return s.populateDetail(ctx, group, nil)
}

// SendGroupMessage 发送群消息并向房间内其他成员广播
func (s *Service) SendGroupMessage(ctx context.Context, callerID, groupID, msgType, content string) (*model.GroupMessage, error) {
	if callerID == "" {
		return nil, model.ErrUnauthorized
	}
	if groupID == "" || content == "" {
		return nil, fmt.Errorf("need groupId and content params: %w", model.ErrInvalidInput)
	}
	if msgType == "" {
		msgType = model.MessageTypeText
	}

	group, err := s.groups.GetGroup(ctx, groupID)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return nil, fmt.Errorf("group not exists: %w", model.ErrNotFound)
		}
		return nil, fmt.Errorf("%v: %w", err, model.ErrStorage)
	}
	if !group.HasMember(callerID) {
		return nil, model.ErrNotMember
	}

	message := &model.GroupMessage{
		ID:         s.idgen.Generate(),
		To:         groupID,
		From:       callerID,
		Type:       msgType,
		Content:    content,
		CreateTime: time.Now(),
	}
	if err := s.messages.SaveMessage(ctx, message); err != nil {
		return nil, fmt.Errorf("%v: %w", err, model.ErrStorage)
	}

	return message, nil
}

// populateDetail 读侧反规范化：为群视图补齐成员与创建者摘要
func (s *Service) populateDetail(ctx context.Context, group *model.Group, messages []*model.GroupMessage) (*model.GroupDetail, error) {
	members, err := s.users.GetUsers(ctx, group.Members)
	if err != nil {
		return nil, fmt.Errorf("%v: %w", err, model.ErrStorage)
	}

	summaries := make([]model.MemberSummary, 0, len(members))
	for _, u := range members {
		summaries = append(summaries, model.MemberSummary{
			ID:       u.ID,
			Username: u.Username,
			Avatar:   u.Avatar,
		})
	}

	detail := &model.GroupDetail{
		Group:    group,
		Members:  summaries,
		Messages: messages,
	}

	if group.Creator != "" {
		creator, err := s.users.GetUser(ctx, group.Creator)
		if err == nil {
			detail.Creator = &model.CreatorSummary{ID: creator.ID, Username: creator.Username}
		} else if !errors.Is(err, model.ErrNotFound) {
			return nil, fmt.Errorf("%v: %w", err, model.ErrStorage)
		}
	}

	return detail, nil
}
