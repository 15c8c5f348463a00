package ws

import (
	"encoding/json"

	"github.com/google/uuid"
)

// Операции клиента.
const (
	OpJoinGroup   = "joinGroup"
	OpLeaveGroup  = "leaveGroup"
	OpSendMessage = "sendMessage"
	OpAddToRoom   = "addToRoom"
	OpLeaveRoom   = "leaveRoom"
	OpKickUser    = "kickUser"
)

// ClientMessage входящий кадр; Ref возвращается в Ack/Error как есть.
type ClientMessage struct {
	Type    string          `json:"type"`
	Ref     string          `json:"ref,omitempty"`
	Payload json.RawMessage `json:"payload"`
}

type RoomPayload struct {
	RoomID uuid.UUID `json:"roomId"`
}

type SendMessagePayload struct {
	ReceiverID *uuid.UUID `json:"receiverId,omitempty"`
	ChatRoomID *uuid.UUID `json:"chatRoomId,omitempty"`
	Content    string     `json:"content"`
}

type AddToRoomPayload struct {
	ChatRoomID uuid.UUID   `json:"chatRoomId"`
	UserIDs    []uuid.UUID `json:"userIds"`
}

// MemberPayload для leaveRoom userId можно не передавать: берётся из соединения.
type MemberPayload struct {
	RoomID uuid.UUID `json:"roomId"`
	UserID uuid.UUID `json:"userId"`
}

type AddedPayload struct {
	Added []uuid.UUID `json:"added"`
}
