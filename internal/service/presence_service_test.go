package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"study-overlay/backend/config"
	"study-overlay/backend/internal/dto"
	"study-overlay/backend/internal/model"
	"study-overlay/backend/internal/repository"
)

// ── 测试辅助 ──

func testPresenceConfig() *config.Config {
	return &config.Config{
		Presence: config.PresenceConfig{
			ActiveWindow:       30 * time.Second,
			PingInterval:       15 * time.Second,
			RosterPollInterval: 5 * time.Second,
		},
	}
}

func setupTestPresenceService() (PresenceService, *mockRoomRepo, *mockParticipantRepo) {
	roomRepo := newMockRoomRepo()
	participantRepo := newMockParticipantRepo()
	roomRepo.participants = participantRepo

	repo := &repository.Repository{
		User:        newMockUserRepo(),
		Room:        roomRepo,
		Participant: participantRepo,
	}
	svc := NewPresenceService(testPresenceConfig(), repo, zap.NewNop())
	return svc, roomRepo, participantRepo
}

func seedRoom(roomRepo *mockRoomRepo, id, code string) {
	roomRepo.rooms[id] = &model.Room{
		RoomID: id, Name: "自习室", CreatorID: "user-1", InviteCode: code,
		BaseModel: model.BaseModel{CreatedAt: time.Now(), UpdatedAt: time.Now()},
	}
}

func seedParticipant(participantRepo *mockParticipantRepo, id, roomID, userID string, lastPing time.Time, storedActive bool) *model.RoomParticipant {
	p := &model.RoomParticipant{
		ParticipantID: id,
		RoomID:        roomID,
		UserID:        userID,
		DisplayName:   userID,
		IsActive:      storedActive,
		LastPingAt:    lastPing,
		JoinedAt:      lastPing,
	}
	participantRepo.participants[id] = p
	return p
}

// ── 活跃判定 ──

func TestIsActiveAt_Boundary(t *testing.T) {
	window := 30 * time.Second
	now := time.Now()

	cases := []struct {
		name    string
		elapsed time.Duration
		want    bool
	}{
		{"刚刚心跳", 0, true},
		{"窗口内", 29 * time.Second, true},
		{"恰好 30s（闭区间边界）", 30 * time.Second, true},
		{"超出 1ms", 30*time.Second + time.Millisecond, false},
		{"超出 1s", 31 * time.Second, false},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := isActiveAt(now.Add(-c.elapsed), now, window); got != c.want {
				t.Errorf("elapsed=%v: 期望 %v，实际 %v", c.elapsed, c.want, got)
			}
		})
	}
}

// ── Ping 测试 ──

func TestPresenceService_Ping_RefreshesHeartbeat(t *testing.T) {
	svc, roomRepo, participantRepo := setupTestPresenceService()
	seedRoom(roomRepo, "room-1", "STUDY-AB12")
	stale := time.Now().Add(-time.Hour)
	seedParticipant(participantRepo, "p-1", "room-1", "user-2", stale, false)

	if err := svc.Ping(context.Background(), "room-1", "user-2"); err != nil {
		t.Fatalf("Ping 应成功: %v", err)
	}

	p := participantRepo.participants["p-1"]
	if !p.LastPingAt.After(stale) {
		t.Error("Ping 应刷新 last_ping_at")
	}
	if !p.IsActive {
		t.Error("Ping 应置 is_active=true")
	}
}

func TestPresenceService_Ping_NonMemberIsNoop(t *testing.T) {
	svc, roomRepo, _ := setupTestPresenceService()
	seedRoom(roomRepo, "room-1", "STUDY-AB12")

	// 从未加入（或已被移除）用户的心跳不是错误
	if err := svc.Ping(context.Background(), "room-1", "user-9"); err != nil {
		t.Errorf("非成员心跳应为无操作成功: %v", err)
	}
}

// ── UpdateStatus 测试 ──

func TestPresenceService_UpdateStatus_SparsePatch(t *testing.T) {
	svc, roomRepo, participantRepo := setupTestPresenceService()
	seedRoom(roomRepo, "room-1", "STUDY-AB12")
	p := seedParticipant(participantRepo, "p-1", "room-1", "user-2", time.Now(), true)
	p.DisplayName = "红姐"
	avatar := "https://example.com/a.png"
	p.AvatarURL = &avatar

	// 仅更新 custom_status，其余字段不得被动
	status := "背单词"
	err := svc.UpdateStatus(context.Background(), "room-1", "user-2", &dto.UpdateStatusRequest{
		CustomStatus: &status,
	})
	if err != nil {
		t.Fatalf("UpdateStatus 应成功: %v", err)
	}

	if p.CustomStatus == nil || *p.CustomStatus != "背单词" {
		t.Error("custom_status 应已更新")
	}
	if p.DisplayName != "红姐" {
		t.Errorf("省略的 display_name 不应被重置，实际=%s", p.DisplayName)
	}
	if p.AvatarURL == nil || *p.AvatarURL != avatar {
		t.Error("省略的 avatar_url 不应被重置")
	}
}

func TestPresenceService_UpdateStatus_EmptyPatchIsNoop(t *testing.T) {
	svc, roomRepo, participantRepo := setupTestPresenceService()
	seedRoom(roomRepo, "room-1", "STUDY-AB12")
	p := seedParticipant(participantRepo, "p-1", "room-1", "user-2", time.Now(), true)
	before := p.DisplayName

	if err := svc.UpdateStatus(context.Background(), "room-1", "user-2", &dto.UpdateStatusRequest{}); err != nil {
		t.Fatalf("空补丁应成功: %v", err)
	}
	if p.DisplayName != before {
		t.Error("空补丁不应改动任何字段")
	}
}

func TestPresenceService_UpdateStatus_NonMemberIsNoop(t *testing.T) {
	svc, roomRepo, _ := setupTestPresenceService()
	seedRoom(roomRepo, "room-1", "STUDY-AB12")

	status := "x"
	err := svc.UpdateStatus(context.Background(), "room-1", "user-9", &dto.UpdateStatusRequest{CustomStatus: &status})
	if err != nil {
		t.Errorf("非成员状态更新应为无操作成功: %v", err)
	}
}

// ── GetRoom 测试 ──

func TestPresenceService_GetRoom_NotFound(t *testing.T) {
	svc, _, _ := setupTestPresenceService()

	_, err := svc.GetRoom(context.Background(), "room-missing")
	if !errors.Is(err, ErrRoomNotFound) {
		t.Errorf("期望 ErrRoomNotFound，实际: %v", err)
	}
}

func TestPresenceService_GetRoom_ComputedOverridesStored(t *testing.T) {
	svc, roomRepo, participantRepo := setupTestPresenceService()
	seedRoom(roomRepo, "room-1", "STUDY-AB12")
	now := time.Now()
	// 存储值与真实状态两两相反的组合
	seedParticipant(participantRepo, "p-1", "room-1", "user-1", now.Add(-5*time.Second), false) // 实际活跃，存储离线
	seedParticipant(participantRepo, "p-2", "room-1", "user-2", now.Add(-31*time.Second), true) // 实际离线，存储活跃

	detail, err := svc.GetRoom(context.Background(), "room-1")
	if err != nil {
		t.Fatalf("GetRoom 应成功: %v", err)
	}
	if len(detail.Participants) != 2 {
		t.Fatalf("期望 2 个成员，实际=%d", len(detail.Participants))
	}

	byID := map[string]dto.ParticipantResponse{}
	for _, p := range detail.Participants {
		byID[p.ID] = p
	}
	if !byID["p-1"].IsActive {
		t.Error("p-1 心跳新鲜，计算值应覆盖存储的 false")
	}
	if byID["p-2"].IsActive {
		t.Error("p-2 心跳过期，计算值应覆盖存储的 true")
	}
}

func TestPresenceService_GetRoom_WriteBackStaleRows(t *testing.T) {
	svc, roomRepo, participantRepo := setupTestPresenceService()
	seedRoom(roomRepo, "room-1", "STUDY-AB12")
	now := time.Now()
	seedParticipant(participantRepo, "p-1", "room-1", "user-1", now.Add(-31*time.Second), true)  // 需回写
	seedParticipant(participantRepo, "p-2", "room-1", "user-2", now.Add(-31*time.Second), false) // 已收敛，不应重复回写
	seedParticipant(participantRepo, "p-3", "room-1", "user-3", now, true)                       // 活跃，不动

	if _, err := svc.GetRoom(context.Background(), "room-1"); err != nil {
		t.Fatalf("GetRoom 应成功: %v", err)
	}

	if participantRepo.participants["p-1"].IsActive {
		t.Error("过期成员的存储 is_active 应被回写为 false")
	}
	if participantRepo.participants["p-3"].IsActive != true {
		t.Error("活跃成员的存储 is_active 不应被改动")
	}
}

func TestPresenceService_GetRoom_WriteBackFailureDoesNotAffectRead(t *testing.T) {
	svc, roomRepo, participantRepo := setupTestPresenceService()
	seedRoom(roomRepo, "room-1", "STUDY-AB12")
	seedParticipant(participantRepo, "p-1", "room-1", "user-1", time.Now().Add(-31*time.Second), true)
	participantRepo.markInactiveErr = errors.New("write-back failed")

	detail, err := svc.GetRoom(context.Background(), "room-1")
	if err != nil {
		t.Fatalf("回写失败不应影响读取: %v", err)
	}
	if detail.Participants[0].IsActive {
		t.Error("响应应使用计算值（Away），与回写结果无关")
	}
}

func TestPresenceService_GetRoom_OrderedByJoinedAt(t *testing.T) {
	svc, roomRepo, participantRepo := setupTestPresenceService()
	seedRoom(roomRepo, "room-1", "STUDY-AB12")
	now := time.Now()
	// 乱序写入，读取应按 joined_at 升序
	seedParticipant(participantRepo, "p-3", "room-1", "user-3", now.Add(-1*time.Minute), true)
	seedParticipant(participantRepo, "p-1", "room-1", "user-1", now.Add(-3*time.Minute), true)
	seedParticipant(participantRepo, "p-2", "room-1", "user-2", now.Add(-2*time.Minute), true)

	detail, err := svc.GetRoom(context.Background(), "room-1")
	if err != nil {
		t.Fatalf("GetRoom 应成功: %v", err)
	}

	want := []string{"p-1", "p-2", "p-3"}
	for i, p := range detail.Participants {
		if p.ID != want[i] {
			t.Errorf("位置 %d 期望 %s，实际=%s", i, want[i], p.ID)
		}
	}
}

func TestPresenceService_GetRoom_PollingHints(t *testing.T) {
	svc, roomRepo, _ := setupTestPresenceService()
	seedRoom(roomRepo, "room-1", "STUDY-AB12")

	detail, err := svc.GetRoom(context.Background(), "room-1")
	if err != nil {
		t.Fatalf("GetRoom 应成功: %v", err)
	}
	if detail.Polling.PingIntervalSeconds != 15 {
		t.Errorf("期望心跳间隔 15s，实际=%d", detail.Polling.PingIntervalSeconds)
	}
	if detail.Polling.RosterPollIntervalSeconds != 5 {
		t.Errorf("期望花名册轮询间隔 5s，实际=%d", detail.Polling.RosterPollIntervalSeconds)
	}
}

// ── 端到端场景 ──

// 覆盖完整生命周期：建房 → 小写码加入 → 成员过期转 Away → 心跳复活 → 对称移除（幂等）
func TestStudyRoomLifecycleScenario(t *testing.T) {
	userRepo := newMockUserRepo()
	roomRepo := newMockRoomRepo()
	participantRepo := newMockParticipantRepo()
	roomRepo.participants = participantRepo
	repo := &repository.Repository{User: userRepo, Room: roomRepo, Participant: participantRepo}
	logger := zap.NewNop()
	roomSvc := NewRoomService(repo, logger)
	presenceSvc := NewPresenceService(testPresenceConfig(), repo, logger)

	seedUser(userRepo, "user-1", "小明")
	seedUser(userRepo, "user-2", "小红")

	// 1. 建房，创建者自动入室
	room, err := roomSvc.Create(context.Background(), &dto.CreateRoomRequest{Name: "Finals Week"}, "user-1")
	if err != nil {
		t.Fatalf("Create 应成功: %v", err)
	}

	// 2. 第二个用户用小写码加入
	if _, err := roomSvc.Join(context.Background(), &dto.JoinRoomRequest{
		InviteCode: toLowerASCII(room.InviteCode),
	}, "user-2"); err != nil {
		t.Fatalf("Join 应成功: %v", err)
	}

	detail, err := presenceSvc.GetRoom(context.Background(), room.ID)
	if err != nil {
		t.Fatalf("GetRoom 应成功: %v", err)
	}
	if len(detail.Participants) != 2 {
		t.Fatalf("期望 2 个成员，实际=%d", len(detail.Participants))
	}

	// 3. user-2 超过 31s 未心跳 → Away，user-1 仍 Active
	p2 := participantRepo.findByRoomAndUser(room.ID, "user-2")
	p2.LastPingAt = time.Now().Add(-31 * time.Second)

	detail, _ = presenceSvc.GetRoom(context.Background(), room.ID)
	for _, p := range detail.Participants {
		switch p.UserID {
		case "user-1":
			if !p.IsActive {
				t.Error("user-1 应仍为 Active")
			}
		case "user-2":
			if p.IsActive {
				t.Error("user-2 超窗未心跳应为 Away")
			}
		}
	}
	if p2.IsActive {
		t.Error("user-2 的存储 is_active 应已回写为 false")
	}

	// 4. user-2 心跳 → 下一次读取恢复 Active
	if err := presenceSvc.Ping(context.Background(), room.ID, "user-2"); err != nil {
		t.Fatalf("Ping 应成功: %v", err)
	}
	detail, _ = presenceSvc.GetRoom(context.Background(), room.ID)
	for _, p := range detail.Participants {
		if p.UserID == "user-2" && !p.IsActive {
			t.Error("心跳后 user-2 应恢复 Active")
		}
	}

	// 5. 任意成员移除 user-2；重复移除仍成功
	if err := roomSvc.Remove(context.Background(), room.ID, p2.ParticipantID, "user-1"); err != nil {
		t.Fatalf("Remove 应成功: %v", err)
	}
	detail, _ = presenceSvc.GetRoom(context.Background(), room.ID)
	if len(detail.Participants) != 1 {
		t.Errorf("移除后期望 1 个成员，实际=%d", len(detail.Participants))
	}
	if err := roomSvc.Remove(context.Background(), room.ID, p2.ParticipantID, "user-1"); err != nil {
		t.Errorf("重复移除应幂等成功: %v", err)
	}
	detail, _ = presenceSvc.GetRoom(context.Background(), room.ID)
	if len(detail.Participants) != 1 {
		t.Errorf("重复移除后仍应为 1 个成员，实际=%d", len(detail.Participants))
	}

	// 6. 被移除后客户端残留定时器的心跳是无操作
	if err := presenceSvc.Ping(context.Background(), room.ID, "user-2"); err != nil {
		t.Errorf("被移除成员的心跳应为无操作成功: %v", err)
	}
}
