package hub

import (
	"github.com/cwrk-planet/chat-service/internal/domain"

	"github.com/google/uuid"
)

// Типы событий, которые уходят клиенту.
const (
	TypeReceiveMessage  = "ReceiveMessage"
	TypeUserAddedToRoom = "UserAddedToRoom"
	TypeUserLeftRoom    = "UserLeftRoom"
	TypeChatRoomUpdated = "ChatRoomUpdated"
	TypeChatRoomDeleted = "ChatRoomDeleted"
	TypeAck             = "Ack"   // подтверждение операции клиента
	TypeError           = "Error" // ошибка операции клиента
)

// Message конверт на проводе.
type Message struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// Event одно из событий ниже; у каждого типа свой фиксированный payload.
type Event interface {
	EventType() string
}

func Envelope(e Event) Message {
	return Message{Type: e.EventType(), Payload: e}
}

type ReceiveMessage struct {
	domain.MessageView
}

type UserAddedToRoom struct {
	Message string      `json:"message"`
	UserIDs []uuid.UUID `json:"userIds"`
	RoomID  uuid.UUID   `json:"roomId"`
}

type UserLeftRoom struct {
	UserID   uuid.UUID `json:"userId"`
	RoomID   uuid.UUID `json:"roomId"`
	IsKicked bool      `json:"isKicked"`
}

type ChatRoomUpdated struct {
	domain.RoomView
}

type ChatRoomDeleted struct {
	RoomID uuid.UUID `json:"roomId"`
}

type Ack struct {
	Op   string `json:"op"`
	Ref  string `json:"ref,omitempty"`
	Data any    `json:"data,omitempty"`
}

type Error struct {
	Op      string                  `json:"op"`
	Ref     string                  `json:"ref,omitempty"`
	Message string                  `json:"message"`
	Fields  []domain.FieldViolation `json:"fields,omitempty"`
}

func (ReceiveMessage) EventType() string  { return TypeReceiveMessage }
func (UserAddedToRoom) EventType() string { return TypeUserAddedToRoom }
func (UserLeftRoom) EventType() string    { return TypeUserLeftRoom }
func (ChatRoomUpdated) EventType() string { return TypeChatRoomUpdated }
func (ChatRoomDeleted) EventType() string { return TypeChatRoomDeleted }
func (Ack) EventType() string             { return TypeAck }
func (Error) EventType() string           { return TypeError }
