package domain

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

// MaxContentLength ограничение на длину сообщения в рунах.
const MaxContentLength = 1000

// Message сообщение: либо личное (ReceiverID), либо в комнату (ChatRoomID), но не оба сразу.
type Message struct {
	ID         uuid.UUID  `db:"id"`
	SenderID   uuid.UUID  `db:"sender_id"`
	ReceiverID *uuid.UUID `db:"receiver_id"`
	ChatRoomID *uuid.UUID `db:"chat_room_id"`
	Content    string     `db:"content"`
	Timestamp  time.Time  `db:"timestamp"`
	IsRead     bool       `db:"is_read"`
}

// NewDirectMessage личные сообщения создаются непрочитанными.
func NewDirectMessage(sender, receiver uuid.UUID, content string, now time.Time) Message {
	return Message{
		ID:         uuid.New(),
		SenderID:   sender,
		ReceiverID: &receiver,
		Content:    strings.TrimSpace(content),
		Timestamp:  now.UTC(),
		IsRead:     false,
	}
}

// NewRoomMessage сообщения в комнату считаются прочитанными: per-user read receipts не ведём.
func NewRoomMessage(sender, roomID uuid.UUID, content string, now time.Time) Message {
	return Message{
		ID:         uuid.New(),
		SenderID:   sender,
		ChatRoomID: &roomID,
		Content:    strings.TrimSpace(content),
		Timestamp:  now.UTC(),
		IsRead:     true,
	}
}

func (m Message) IsDirect() bool { return m.ReceiverID != nil && m.ChatRoomID == nil }

func (m Message) IsRoom() bool { return m.ChatRoomID != nil && m.ReceiverID == nil }

// Validate проверяет инварианты сущности перед записью.
func (m Message) Validate() error {
	var fields []FieldViolation
	if m.SenderID == uuid.Nil {
		fields = append(fields, FieldViolation{Field: "senderId", Message: "sender is required"})
	}
	switch {
	case m.ReceiverID == nil && m.ChatRoomID == nil:
		fields = append(fields, FieldViolation{Field: "receiverId", Message: "either receiverId or chatRoomId is required"})
	case m.ReceiverID != nil && m.ChatRoomID != nil:
		fields = append(fields, FieldViolation{Field: "chatRoomId", Message: "receiverId and chatRoomId are mutually exclusive"})
	}
	content := strings.TrimSpace(m.Content)
	if content == "" {
		fields = append(fields, FieldViolation{Field: "content", Message: "content is required"})
	} else if utf8.RuneCountInString(content) > MaxContentLength {
		fields = append(fields, FieldViolation{Field: "content", Message: "content is too long"})
	}
	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}

	return nil
}

// Counterpart возвращает собеседника для личного сообщения.
func (m Message) Counterpart(userID uuid.UUID) uuid.UUID {
	if m.ReceiverID == nil {
		return uuid.Nil
	}
	if m.SenderID == userID {
		return *m.ReceiverID
	}

	return m.SenderID
}

// MessageView то, что уходит клиенту (HTTP, WS, gRPC).
type MessageView struct {
	ID           uuid.UUID  `json:"id"`
	SenderID     uuid.UUID  `json:"senderId"`
	ReceiverID   *uuid.UUID `json:"receiverId,omitempty"`
	ChatRoomID   *uuid.UUID `json:"chatRoomId,omitempty"`
	ChatRoomName string     `json:"chatRoomName,omitempty"`
	Content      string     `json:"content"`
	Timestamp    time.Time  `json:"timestamp"`
	IsRead       bool       `json:"isRead"`
}

func NewMessageView(m Message, roomName string) MessageView {
	return MessageView{
		ID:           m.ID,
		SenderID:     m.SenderID,
		ReceiverID:   m.ReceiverID,
		ChatRoomID:   m.ChatRoomID,
		ChatRoomName: roomName,
		Content:      m.Content,
		Timestamp:    m.Timestamp,
		IsRead:       m.IsRead,
	}
}
