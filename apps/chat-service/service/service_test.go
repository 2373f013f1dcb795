package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gochat-server/apps/chat-service/model"
	"gochat-server/pkg/kafka"
	"gochat-server/pkg/logger"
	"gochat-server/pkg/snowflake"
)

// 内存版DAO，行为对齐mongo实现：按值返回副本，集合字段去重追加

type memUserDAO struct {
	mu     sync.Mutex
	seq    int
	users  map[string]*model.User
	byName map[string]string

	failAddGroup error
}

func newMemUserDAO() *memUserDAO {
	return &memUserDAO{users: make(map[string]*model.User), byName: make(map[string]string)}
}

func copyUser(u *model.User) *model.User {
	c := *u
	c.Groups = append([]string(nil), u.Groups...)
	c.Friends = append([]string(nil), u.Friends...)
	c.Expressions = append([]string(nil), u.Expressions...)
	return &c
}

func (d *memUserDAO) CreateUser(ctx context.Context, user *model.User) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.byName[user.Username]; ok {
		return "", model.ErrDuplicateName
	}
	d.seq++
	u := copyUser(user)
	u.ID = fmt.Sprintf("user-%d", d.seq)
	d.users[u.ID] = u
	d.byName[u.Username] = u.ID
	return u.ID, nil
}

func (d *memUserDAO) GetUser(ctx context.Context, userID string) (*model.User, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	u, ok := d.users[userID]
	if !ok {
		return nil, model.ErrNotFound
	}
	return copyUser(u), nil
}

func (d *memUserDAO) GetUserByUsername(ctx context.Context, username string) (*model.User, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	id, ok := d.byName[username]
	if !ok {
		return nil, model.ErrNotFound
	}
	return copyUser(d.users[id]), nil
}

func (d *memUserDAO) GetUsers(ctx context.Context, userIDs []string) ([]*model.User, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	result := make([]*model.User, 0, len(userIDs))
	for _, id := range userIDs {
		if u, ok := d.users[id]; ok {
			result = append(result, copyUser(u))
		}
	}
	return result, nil
}

func (d *memUserDAO) AddGroup(ctx context.Context, userID, groupID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.failAddGroup != nil {
		return d.failAddGroup
	}
	u, ok := d.users[userID]
	if !ok {
		return model.ErrNotFound
	}
	u.Groups, _ = model.AppendUnique(u.Groups, groupID)
	return nil
}

func (d *memUserDAO) RemoveGroup(ctx context.Context, userID, groupID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	u, ok := d.users[userID]
	if !ok {
		return model.ErrNotFound
	}
	u.Groups, _ = model.Remove(u.Groups, groupID)
	return nil
}

func (d *memUserDAO) AddFriend(ctx context.Context, userID, friendID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	u, ok := d.users[userID]
	if !ok {
		return model.ErrNotFound
	}
	u.Friends, _ = model.AppendUnique(u.Friends, friendID)
	return nil
}

func (d *memUserDAO) RemoveFriend(ctx context.Context, userID, friendID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	u, ok := d.users[userID]
	if !ok {
		return model.ErrNotFound
	}
	u.Friends, _ = model.Remove(u.Friends, friendID)
	return nil
}

func (d *memUserDAO) AddExpression(ctx context.Context, userID, src string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	u, ok := d.users[userID]
	if !ok {
		return model.ErrNotFound
	}
	u.Expressions, _ = model.AppendUnique(u.Expressions, src)
	return nil
}

func (d *memUserDAO) RemoveExpression(ctx context.Context, userID, src string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	u, ok := d.users[userID]
	if !ok {
		return model.ErrNotFound
	}
	u.Expressions, _ = model.Remove(u.Expressions, src)
	return nil
}

func (d *memUserDAO) UpdateAvatar(ctx context.Context, userID, avatar string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	u, ok := d.users[userID]
	if !ok {
		return model.ErrNotFound
	}
	u.Avatar = avatar
	return nil
}

// put 直接注入用户，绕过注册流程
func (d *memUserDAO) put(u *model.User) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.users[u.ID] = copyUser(u)
	d.byName[u.Username] = u.ID
}

type memGroupDAO struct {
	mu     sync.Mutex
	seq    int
	groups map[string]*model.Group

	failAddMember error
}

func newMemGroupDAO() *memGroupDAO {
	return &memGroupDAO{groups: make(map[string]*model.Group)}
}

func copyGroup(g *model.Group) *model.Group {
	c := *g
	c.Members = append([]string(nil), g.Members...)
	return &c
}

func (d *memGroupDAO) CreateGroup(ctx context.Context, group *model.Group) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, g := range d.groups {
		if g.Name == group.Name {
			return "", model.ErrDuplicateName
		}
	}
	d.seq++
	// 与真实 DAO 保持一致：默认值写回调用方的 group（见 dao/group_dao.go）
	group.ID = fmt.Sprintf("group-%d", d.seq)
	if group.Avatar == "" {
		group.Avatar = model.DefaultGroupAvatar
	}
	if group.Announcement == "" {
		group.Announcement = model.DefaultAnnouncement
		group.AnnouncementPublisher = model.DefaultAnnouncementPublisher
	}
	group.CreateTime = time.Now()
	g := copyGroup(group)
	d.groups[g.ID] = g
	return g.ID, nil
}

func (d *memGroupDAO) GetGroup(ctx context.Context, groupID string) (*model.Group, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	g, ok := d.groups[groupID]
	if !ok {
		return nil, model.ErrNotFound
	}
	return copyGroup(g), nil
}

func (d *memGroupDAO) GetGroupByName(ctx context.Context, name string) (*model.Group, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, g := range d.groups {
		if g.Name == name {
			return copyGroup(g), nil
		}
	}
	return nil, model.ErrNotFound
}

func (d *memGroupDAO) GetDefaultGroup(ctx context.Context) (*model.Group, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, g := range d.groups {
		if g.IsDefault {
			return copyGroup(g), nil
		}
	}
	return nil, model.ErrNotFound
}

func (d *memGroupDAO) CountByCreator(ctx context.Context, creatorID string) (int64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	var n int64
	for _, g := range d.groups {
		if g.Creator == creatorID {
			n++
		}
	}
	return n, nil
}

func (d *memGroupDAO) AddMember(ctx context.Context, groupID, userID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.failAddMember != nil {
		return d.failAddMember
	}
	g, ok := d.groups[groupID]
	if !ok {
		return model.ErrNotFound
	}
	g.Members, _ = model.AppendUnique(g.Members, userID)
	return nil
}

func (d *memGroupDAO) RemoveMember(ctx context.Context, groupID, userID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	g, ok := d.groups[groupID]
	if !ok {
		return model.ErrNotFound
	}
	g.Members, _ = model.Remove(g.Members, userID)
	return nil
}

func (d *memGroupDAO) UpdateAnnouncement(ctx context.Context, groupID, content, publisher string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	g, ok := d.groups[groupID]
	if !ok {
		return model.ErrNotFound
	}
	g.Announcement = content
	g.AnnouncementPublisher = publisher
	g.AnnouncementTime = time.Now()
	return nil
}

func (d *memGroupDAO) UpdateAvatar(ctx context.Context, groupID, avatar string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	g, ok := d.groups[groupID]
	if !ok {
		return model.ErrNotFound
	}
	g.Avatar = avatar
	return nil
}

func (d *memGroupDAO) put(g *model.Group) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.groups[g.ID] = copyGroup(g)
}

type memMessageDAO struct {
	mu       sync.Mutex
	messages []*model.GroupMessage
}

func (d *memMessageDAO) SaveMessage(ctx context.Context, message *model.GroupMessage) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	m := *message
	d.messages = append(d.messages, &m)
	return nil
}

func (d *memMessageDAO) GetRecentGroupMessages(ctx context.Context, groupID string, limit int64) ([]*model.GroupMessage, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	var all []*model.GroupMessage
	for _, m := range d.messages {
		if m.To == groupID {
			all = append(all, m)
		}
	}
	if int64(len(all)) > limit {
		all = all[int64(len(all))-limit:]
	}
	return all, nil
}

func (d *memMessageDAO) CountGroupMessages(ctx context.Context, groupID string) (int64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	var n int64
	for _, m := range d.messages {
		if m.To == groupID {
			n++
		}
	}
	return n, nil
}

// fakePresence 固定在线表
type fakePresence struct {
	mu     sync.Mutex
	online map[string]bool
}

func newFakePresence(ids ...string) *fakePresence {
	p := &fakePresence{online: make(map[string]bool)}
	for _, id := range ids {
		p.online[id] = true
	}
	return p
}

func (p *fakePresence) IsOnline(ctx context.Context, userID string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.online[userID], nil
}

func (p *fakePresence) SetOnline(ctx context.Context, userID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.online[userID] = true
	return nil
}

func (p *fakePresence) SetOffline(ctx context.Context, userID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.online, userID)
	return nil
}

func (p *fakePresence) OnlineUsers(ctx context.Context) ([]string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	ids := make([]string, 0, len(p.online))
	for id := range p.online {
		ids = append(ids, id)
	}
	return ids, nil
}

// recordSignal 记录房间绑定调用
type recordSignal struct {
	mu     sync.Mutex
	joins  []string
	leaves []string
}

func (r *recordSignal) JoinRoom(userID, groupID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.joins = append(r.joins, userID+"/"+groupID)
}

func (r *recordSignal) LeaveRoom(userID, groupID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.leaves = append(r.leaves, userID+"/"+groupID)
}

// recordPublisher 记录发布的群组事件
type recordPublisher struct {
	mu     sync.Mutex
	events []kafka.GroupEvent
}

func (p *recordPublisher) SendGroupEvent(topic string, event kafka.GroupEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

// fakeImages 不落盘的图片存储
type fakeImages struct {
	mu    sync.Mutex
	saved []string
}

func (f *fakeImages) Persist(ctx context.Context, filename, dataURI string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saved = append(f.saved, filename)
	return "/avatars/" + filename, nil
}

type fixture struct {
	svc      *Service
	users    *memUserDAO
	groups   *memGroupDAO
	messages *memMessageDAO
	presence *fakePresence
	rooms    *recordSignal
	events   *recordPublisher
	images   *fakeImages
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	idgen, err := snowflake.NewSnowflake(1)
	require.NoError(t, err)

	f := &fixture{
		users:    newMemUserDAO(),
		groups:   newMemGroupDAO(),
		messages: &memMessageDAO{},
		presence: newFakePresence(),
		rooms:    &recordSignal{},
		events:   &recordPublisher{},
		images:   &fakeImages{},
	}
	f.svc = NewService(f.users, f.groups, f.messages, f.presence, f.rooms,
		f.events, f.images, idgen, "group_events", logger.GetLogger())
	return f
}

func (f *fixture) addUser(id, username string) *model.User {
	u := &model.User{ID: id, Username: username}
	f.users.put(u)
	return u
}

func (f *fixture) addGroup(g *model.Group) *model.Group {
	f.groups.put(g)
	return g
}

// 双侧成员关系一致性断言
func (f *fixture) assertMembership(t *testing.T, userID, groupID string, member bool) {
	t.Helper()
	u, err := f.users.GetUser(context.Background(), userID)
	require.NoError(t, err)
	g, err := f.groups.GetGroup(context.Background(), groupID)
	require.NoError(t, err)
	assert.Equal(t, member, model.Contains(u.Groups, groupID), "user side membership")
	assert.Equal(t, member, g.HasMember(userID), "group side membership")
}

func TestCreateGroup(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addUser("user-1", "alice")

	detail, err := f.svc.CreateGroup(ctx, "user-1", "golang")
	require.NoError(t, err)
	require.NotNil(t, detail.Group)

	assert.Equal(t, "golang", detail.Group.Name)
	assert.Equal(t, "user-1", detail.Group.Creator)
	assert.Equal(t, []string{"user-1"}, detail.Group.Members)
	assert.Equal(t, model.DefaultAnnouncement, detail.Group.Announcement)
	require.Len(t, detail.Members, 1)
	assert.Equal(t, "alice", detail.Members[0].Username)

	f.assertMembership(t, "user-1", detail.Group.ID, true)

	require.Len(t, f.events.events, 1)
	assert.Equal(t, "created", f.events.events[0].Type)
}

func TestCreateGroupValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addUser("user-1", "alice")

	tests := []struct {
		name      string
		groupName string
		wantErr   error
	}{
		{"空名称", "", model.ErrInvalidInput},
		{"非法字符", "bad name!", model.ErrInvalidName},
		{"超长", "abcdefgh123456789", model.ErrInvalidName},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.CreateGroup(ctx, "user-1", tt.groupName)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	// 16字符边界和汉字、连字符、下划线都合法
	for _, name := range []string{"abcdefgh12345678", "围棋爱好者", "go-dev_01"} {
		detail, err := f.svc.CreateGroup(ctx, "user-1", name)
		if err == nil {
			// 清掉已建群，绕过单群上限继续验证下一个名称
			f.groups.mu.Lock()
			delete(f.groups.groups, detail.Group.ID)
			f.groups.mu.Unlock()
		}
		assert.NoError(t, err, "name %q should be accepted", name)
	}
}

func TestCreateGroupOwnershipLimit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addUser("user-1", "alice")

	_, err := f.svc.CreateGroup(ctx, "user-1", "first")
	require.NoError(t, err)

	_, err = f.svc.CreateGroup(ctx, "user-1", "second")
	assert.ErrorIs(t, err, model.ErrOwnershipLimit)
}

func TestCreateGroupDuplicateName(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addUser("user-1", "alice")
	f.addUser("user-2", "bob")

	_, err := f.svc.CreateGroup(ctx, "user-1", "golang")
	require.NoError(t, err)

	_, err = f.svc.CreateGroup(ctx, "user-2", "golang")
	assert.ErrorIs(t, err, model.ErrDuplicateName)
}

func TestJoinGroup(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addUser("user-1", "alice")
	f.addUser("user-2", "bob")
	f.addGroup(&model.Group{ID: "group-1", Name: "golang", Creator: "user-1", Members: []string{"user-1"}})

	detail, err := f.svc.JoinGroup(ctx, "user-2", "golang")
	require.NoError(t, err)

	assert.Equal(t, []string{"user-1", "user-2"}, detail.Group.Members)
	f.assertMembership(t, "user-2", "group-1", true)
	assert.Equal(t, []string{"user-2/group-1"}, f.rooms.joins)

	require.Len(t, f.events.events, 1)
	assert.Equal(t, "member.joined", f.events.events[0].Type)
}

func TestJoinGroupAlreadyMember(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addUser("user-1", "alice")
	f.addGroup(&model.Group{ID: "group-1", Name: "golang", Creator: "user-1", Members: []string{"user-1"}})
	require.NoError(t, f.users.AddGroup(ctx, "user-1", "group-1"))

	_, err := f.svc.JoinGroup(ctx, "user-1", "golang")
	assert.ErrorIs(t, err, model.ErrAlreadyMember)
	assert.Empty(t, f.rooms.joins)
}

func TestJoinGroupNotExists(t *testing.T) {
	f := newFixture(t)
	f.addUser("user-1", "alice")

	_, err := f.svc.JoinGroup(context.Background(), "user-1", "nosuch")
	assert.ErrorIs(t, err, model.ErrNotFound)
}

// 两侧记录不一致时如实上抛，不做就地修复
func TestJoinGroupInconsistentMembership(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addUser("user-1", "alice")
	// 只有群侧有记录
	f.addGroup(&model.Group{ID: "group-1", Name: "golang", Members: []string{"user-1"}})

	_, err := f.svc.JoinGroup(ctx, "user-1", "golang")
	assert.ErrorIs(t, err, model.ErrStorage)
	assert.Equal(t, model.ErrStorage, model.Kind(err))

	// 校验失败不产生任何写入
	f.assertMembershipUnchanged(t, "user-1", "group-1")
	assert.Empty(t, f.rooms.joins)
}

func (f *fixture) assertMembershipUnchanged(t *testing.T, userID, groupID string) {
	t.Helper()
	u, err := f.users.GetUser(context.Background(), userID)
	require.NoError(t, err)
	assert.False(t, model.Contains(u.Groups, groupID))
	g, err := f.groups.GetGroup(context.Background(), groupID)
	require.NoError(t, err)
	assert.True(t, g.HasMember(userID))
}

// 群侧写失败时用户侧已提交，按存储错误上抛且不绑定房间
func TestJoinGroupPartialFailure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addUser("user-1", "alice")
	f.addGroup(&model.Group{ID: "group-1", Name: "golang", Members: []string{}})
	f.groups.failAddMember = fmt.Errorf("write conflict")

	_, err := f.svc.JoinGroup(ctx, "user-1", "golang")
	assert.ErrorIs(t, err, model.ErrStorage)

	u, err := f.users.GetUser(ctx, "user-1")
	require.NoError(t, err)
	assert.True(t, model.Contains(u.Groups, "group-1"), "user side stays committed")
	assert.Empty(t, f.rooms.joins)
}

func TestJoinGroupReturnsRecentMessages(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addUser("user-1", "alice")
	f.addGroup(&model.Group{ID: "group-1", Name: "golang", Members: []string{}})

	base := time.Now().Add(-time.Hour)
	for i := 0; i < 45; i++ {
		require.NoError(t, f.messages.SaveMessage(ctx, &model.GroupMessage{
			ID:         int64(i + 1),
			To:         "group-1",
			From:       "user-9",
			Type:       model.MessageTypeText,
			Content:    fmt.Sprintf("msg-%d", i+1),
			CreateTime: base.Add(time.Duration(i) * time.Second),
		}))
	}

	detail, err := f.svc.JoinGroup(ctx, "user-1", "golang")
	require.NoError(t, err)

	require.Len(t, detail.Messages, model.RecentMessageWindow)
	assert.Equal(t, "msg-16", detail.Messages[0].Content, "oldest of the window first")
	assert.Equal(t, "msg-45", detail.Messages[len(detail.Messages)-1].Content)
}

func TestJoinGroupFewMessages(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addUser("user-1", "alice")
	f.addGroup(&model.Group{ID: "group-1", Name: "golang", Members: []string{}})

	for i := 0; i < 10; i++ {
		require.NoError(t, f.messages.SaveMessage(ctx, &model.GroupMessage{
			ID: int64(i + 1), To: "group-1", Content: fmt.Sprintf("msg-%d", i+1),
		}))
	}

	detail, err := f.svc.JoinGroup(ctx, "user-1", "golang")
	require.NoError(t, err)
	assert.Len(t, detail.Messages, 10)
}

// 并发加入互不干扰，成员列表无重复
func TestJoinGroupConcurrent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addGroup(&model.Group{ID: "group-1", Name: "golang", Members: []string{}})

	const n = 8
	for i := 0; i < n; i++ {
		f.addUser(fmt.Sprintf("user-%d", i+1), fmt.Sprintf("member%d", i+1))
	}

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := f.svc.JoinGroup(ctx, fmt.Sprintf("user-%d", i+1), "golang")
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	g, err := f.groups.GetGroup(ctx, "group-1")
	require.NoError(t, err)
	assert.Len(t, g.Members, n)
	seen := make(map[string]bool)
	for _, id := range g.Members {
		assert.False(t, seen[id], "duplicate member %s", id)
		seen[id] = true
	}
}

func TestLeaveGroup(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addUser("user-1", "alice")
	f.addGroup(&model.Group{ID: "group-1", Name: "golang", Members: []string{"user-1"}})
	require.NoError(t, f.users.AddGroup(ctx, "user-1", "group-1"))

	require.NoError(t, f.svc.LeaveGroup(ctx, "user-1", "group-1"))

	f.assertMembership(t, "user-1", "group-1", false)
	assert.Equal(t, []string{"user-1/group-1"}, f.rooms.leaves)

	// 再退一次按非成员拒绝，且无任何写入
	err := f.svc.LeaveGroup(ctx, "user-1", "group-1")
	assert.ErrorIs(t, err, model.ErrNotMember)
	assert.Len(t, f.rooms.leaves, 1)
}

func TestLeaveGroupNotMember(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addUser("user-1", "alice")
	f.addGroup(&model.Group{ID: "group-1", Name: "golang", Members: []string{"user-9"}})

	err := f.svc.LeaveGroup(ctx, "user-1", "group-1")
	assert.ErrorIs(t, err, model.ErrNotMember)
	assert.Equal(t, model.ErrConflict, model.Kind(err))
}

func TestLeaveGroupPreservesOtherMembers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addUser("user-1", "alice")
	f.addUser("user-2", "bob")
	f.addUser("user-3", "carol")
	f.addGroup(&model.Group{ID: "group-1", Name: "golang", Members: []string{"user-1", "user-2", "user-3"}})
	for _, id := range []string{"user-1", "user-2", "user-3"} {
		require.NoError(t, f.users.AddGroup(ctx, id, "group-1"))
	}

	require.NoError(t, f.svc.LeaveGroup(ctx, "user-2", "group-1"))

	g, err := f.groups.GetGroup(ctx, "group-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"user-1", "user-3"}, g.Members, "remaining order preserved")
}

func TestUpdateAnnouncement(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addUser("user-1", "alice")
	f.addGroup(&model.Group{ID: "group-1", Name: "golang", Creator: "user-1", Members: []string{"user-1"}})

	group, err := f.svc.UpdateAnnouncement(ctx, "user-1", "group-1", "meeting at noon")
	require.NoError(t, err)
	assert.Equal(t, "meeting at noon", group.Announcement)
	assert.Equal(t, "alice", group.AnnouncementPublisher)
	assert.WithinDuration(t, time.Now(), group.AnnouncementTime, time.Second)

	stored, err := f.groups.GetGroup(ctx, "group-1")
	require.NoError(t, err)
	assert.Equal(t, "meeting at noon", stored.Announcement)
	assert.Equal(t, "alice", stored.AnnouncementPublisher)
}

func TestUpdateAnnouncementNotCreator(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addUser("user-1", "alice")
	f.addUser("user-2", "bob")
	f.addGroup(&model.Group{ID: "group-1", Name: "golang", Creator: "user-1", Members: []string{"user-1", "user-2"}})

	_, err := f.svc.UpdateAnnouncement(ctx, "user-2", "group-1", "hijack")
	assert.ErrorIs(t, err, model.ErrNotCreator)
	assert.Equal(t, model.ErrForbidden, model.Kind(err))

	stored, err := f.groups.GetGroup(ctx, "group-1")
	require.NoError(t, err)
	assert.Empty(t, stored.Announcement)
}

func TestUpdateGroupAvatar(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addUser("user-1", "alice")
	f.addGroup(&model.Group{ID: "group-1", Name: "golang", Creator: "user-1", Members: []string{"user-1"}})

	group, err := f.svc.UpdateGroupAvatar(ctx, "user-1", "group-1", "data:image/png;base64,aGVsbG8=")
	require.NoError(t, err)
	assert.Contains(t, group.Avatar, "group_group-1_")
	assert.Contains(t, group.Avatar, ".png")
	require.Len(t, f.images.saved, 1)
}

// 载荷解析失败在任何存储调用之前拒绝
func TestUpdateGroupAvatarBadPayload(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addUser("user-1", "alice")
	f.addGroup(&model.Group{ID: "group-1", Name: "golang", Creator: "user-1", Members: []string{"user-1"}})

	_, err := f.svc.UpdateGroupAvatar(ctx, "user-1", "group-1", "not-a-data-uri")
	assert.ErrorIs(t, err, model.ErrInvalidInput)
	assert.Empty(t, f.images.saved)

	g, err := f.groups.GetGroup(ctx, "group-1")
	require.NoError(t, err)
	assert.Empty(t, g.Avatar)
}

func TestGetGroupRoster(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addUser("user-1", "alice")
	f.addUser("user-2", "bob")
	f.addUser("user-3", "carol")
	f.addUser("user-4", "dave")
	f.addGroup(&model.Group{
		ID: "group-1", Name: "golang", Creator: "user-1",
		Members: []string{"user-1", "user-2", "user-3", "user-4"},
	})
	f.presence = newFakePresence("user-3")
	f.svc.presence = f.presence

	// 调用者user-2自身离线也始终保留，其余只留在线成员，顺序不变
	detail, err := f.svc.GetGroupRoster(ctx, "user-2", "group-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"user-2", "user-3"}, detail.Group.Members)
	require.Len(t, detail.Members, 2)
	assert.Equal(t, "bob", detail.Members[0].Username)
	assert.Equal(t, "carol", detail.Members[1].Username)
	require.NotNil(t, detail.Creator)
	assert.Equal(t, "alice", detail.Creator.Username)
}

func TestGetGroupRosterReadOnly(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addUser("user-1", "alice")
	f.addGroup(&model.Group{ID: "group-1", Name: "golang", Members: []string{"user-1", "user-9"}})

	_, err := f.svc.GetGroupRoster(ctx, "user-1", "group-1")
	require.NoError(t, err)

	// 过滤只作用于返回视图，存储侧成员列表不变
	stored, err := f.groups.GetGroup(ctx, "group-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"user-1", "user-9"}, stored.Members)
}

func TestSendGroupMessage(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addUser("user-1", "alice")
	f.addGroup(&model.Group{ID: "group-1", Name: "golang", Members: []string{"user-1"}})

	msg, err := f.svc.SendGroupMessage(ctx, "user-1", "group-1", "", "hello")
	require.NoError(t, err)
	assert.Equal(t, model.MessageTypeText, msg.Type)
	assert.NotZero(t, msg.ID)

	count, err := f.messages.CountGroupMessages(ctx, "group-1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestSendGroupMessageNotMember(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addUser("user-1", "alice")
	f.addGroup(&model.Group{ID: "group-1", Name: "golang", Members: []string{"user-9"}})

	_, err := f.svc.SendGroupMessage(ctx, "user-1", "group-1", "text", "hello")
	assert.ErrorIs(t, err, model.ErrNotMember)
}
