package http

import "github.com/google/uuid"

// SendMessageBody отправитель берётся из личности запроса, не из тела.
type SendMessageBody struct {
	ReceiverID *uuid.UUID `json:"receiverId,omitempty"`
	ChatRoomID *uuid.UUID `json:"chatRoomId,omitempty"`
	Content    string     `json:"content"`
}

type UnreadCountResponse struct {
	Count int `json:"count"`
}
