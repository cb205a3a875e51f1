package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"gorm.io/gorm"

	"study-overlay/backend/internal/model"
)

// ── Mock UserRepository ──

type mockUserRepo struct {
	users map[string]*model.User
	seq   int
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{users: make(map[string]*model.User)}
}

func (m *mockUserRepo) Create(_ context.Context, user *model.User) error {
	for _, u := range m.users {
		if u.Email == user.Email {
			return gorm.ErrDuplicatedKey
		}
	}
	if user.UserID == "" {
		m.seq++
		user.UserID = fmt.Sprintf("user-%d", m.seq)
	}
	user.CreatedAt = time.Now()
	user.UpdatedAt = time.Now()
	m.users[user.UserID] = user
	return nil
}

func (m *mockUserRepo) GetByID(_ context.Context, id string) (*model.User, error) {
	if u, ok := m.users[id]; ok {
		return u, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockUserRepo) GetByEmail(_ context.Context, email string) (*model.User, error) {
	for _, u := range m.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockUserRepo) Update(_ context.Context, user *model.User) error {
	m.users[user.UserID] = user
	return nil
}

// ── Mock RoomRepository ──

type mockRoomRepo struct {
	rooms        map[string]*model.Room
	participants *mockParticipantRepo // ListByMember 需要成员关系
	seq          int

	createErr   error // 注入：Create 返回的非冲突错误
	duplicateN  int   // 注入：前 N 次 Create 返回唯一约束冲突
	createCalls int
}

func newMockRoomRepo() *mockRoomRepo {
	return &mockRoomRepo{rooms: make(map[string]*model.Room)}
}

func (m *mockRoomRepo) Create(_ context.Context, room *model.Room) error {
	m.createCalls++
	if m.createCalls <= m.duplicateN {
		return gorm.ErrDuplicatedKey
	}
	if m.createErr != nil {
		return m.createErr
	}
	for _, r := range m.rooms {
		if r.InviteCode == room.InviteCode {
			return gorm.ErrDuplicatedKey
		}
	}
	m.seq++
	room.RoomID = fmt.Sprintf("room-%d", m.seq)
	room.CreatedAt = time.Now()
	room.UpdatedAt = time.Now()
	m.rooms[room.RoomID] = room
	return nil
}

func (m *mockRoomRepo) GetByID(_ context.Context, id string) (*model.Room, error) {
	if r, ok := m.rooms[id]; ok {
		return r, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockRoomRepo) GetByInviteCode(_ context.Context, code string) (*model.Room, error) {
	for _, r := range m.rooms {
		if r.InviteCode == code {
			return r, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockRoomRepo) ListByMember(_ context.Context, userID string, offset, limit int) ([]model.Room, int64, error) {
	var result []model.Room
	for _, r := range m.rooms {
		if m.participants != nil && m.participants.hasMember(r.RoomID, userID) {
			result = append(result, *r)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	total := int64(len(result))
	if offset >= len(result) {
		return nil, total, nil
	}
	end := offset + limit
	if end > len(result) {
		end = len(result)
	}
	return result[offset:end], total, nil
}

// ── Mock ParticipantRepository ──

type mockParticipantRepo struct {
	participants map[string]*model.RoomParticipant
	seq          int

	createErr       error // 注入：Create 始终失败
	duplicateOnce   bool  // 注入：下一次 Create 返回唯一约束冲突（模拟并发加入落败）
	notFoundOnce    bool  // 注入：下一次 GetByRoomAndUser 返回未找到（配合 duplicateOnce 模拟竞态）
	markInactiveErr error // 注入：MarkInactive 失败
}

func newMockParticipantRepo() *mockParticipantRepo {
	return &mockParticipantRepo{participants: make(map[string]*model.RoomParticipant)}
}

func (m *mockParticipantRepo) hasMember(roomID, userID string) bool {
	for _, p := range m.participants {
		if p.RoomID == roomID && p.UserID == userID {
			return true
		}
	}
	return false
}

func (m *mockParticipantRepo) findByRoomAndUser(roomID, userID string) *model.RoomParticipant {
	for _, p := range m.participants {
		if p.RoomID == roomID && p.UserID == userID {
			return p
		}
	}
	return nil
}

func (m *mockParticipantRepo) Create(_ context.Context, p *model.RoomParticipant) error {
	if m.createErr != nil {
		return m.createErr
	}
	if m.duplicateOnce {
		m.duplicateOnce = false
		return gorm.ErrDuplicatedKey
	}
	if m.findByRoomAndUser(p.RoomID, p.UserID) != nil {
		return gorm.ErrDuplicatedKey
	}
	m.seq++
	p.ParticipantID = fmt.Sprintf("participant-%d", m.seq)
	p.CreatedAt = time.Now()
	p.UpdatedAt = time.Now()
	m.participants[p.ParticipantID] = p
	return nil
}

func (m *mockParticipantRepo) GetByRoomAndUser(_ context.Context, roomID, userID string) (*model.RoomParticipant, error) {
	if m.notFoundOnce {
		m.notFoundOnce = false
		return nil, gorm.ErrRecordNotFound
	}
	if p := m.findByRoomAndUser(roomID, userID); p != nil {
		return p, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockParticipantRepo) ListByRoom(_ context.Context, roomID string) ([]model.RoomParticipant, error) {
	var result []model.RoomParticipant
	for _, p := range m.participants {
		if p.RoomID == roomID {
			result = append(result, *p)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].JoinedAt.Before(result[j].JoinedAt)
	})
	return result, nil
}

func (m *mockParticipantRepo) TouchPing(_ context.Context, roomID, userID string, now time.Time) (int64, error) {
	p := m.findByRoomAndUser(roomID, userID)
	if p == nil {
		return 0, nil
	}
	p.LastPingAt = now
	p.IsActive = true
	p.UpdatedAt = now
	return 1, nil
}

func (m *mockParticipantRepo) UpdateFields(_ context.Context, participantID string, fields map[string]interface{}) error {
	p, ok := m.participants[participantID]
	if !ok {
		return nil
	}
	for k, v := range fields {
		switch k {
		case "display_name":
			p.DisplayName = v.(string)
		case "avatar_url":
			s := v.(string)
			p.AvatarURL = &s
		case "custom_status":
			s := v.(string)
			p.CustomStatus = &s
		case "last_ping_at":
			p.LastPingAt = v.(time.Time)
		case "is_active":
			p.IsActive = v.(bool)
		}
	}
	p.UpdatedAt = time.Now()
	return nil
}

func (m *mockParticipantRepo) MarkInactive(_ context.Context, roomID string, participantIDs []string) error {
	if m.markInactiveErr != nil {
		return m.markInactiveErr
	}
	for _, id := range participantIDs {
		if p, ok := m.participants[id]; ok && p.RoomID == roomID {
			p.IsActive = false
		}
	}
	return nil
}

func (m *mockParticipantRepo) Delete(_ context.Context, roomID, participantID string) (int64, error) {
	if p, ok := m.participants[participantID]; ok && p.RoomID == roomID {
		delete(m.participants, participantID)
		return 1, nil
	}
	return 0, nil
}
