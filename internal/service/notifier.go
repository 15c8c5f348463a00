package service

import (
	"github.com/cwrk-planet/chat-service/internal/hub"

	"github.com/google/uuid"
)

// Notifier живая доставка событий; реализуется *hub.Hub.
type Notifier interface {
	SendToUser(userID uuid.UUID, ev hub.Event) int
	SendToGroup(roomID uuid.UUID, ev hub.Event) int
	RemoveUserFromGroup(userID, roomID uuid.UUID) int
	DropGroup(roomID uuid.UUID)
}

var _ Notifier = (*hub.Hub)(nil)
