package domain

import (
	"time"

	"github.com/google/uuid"
)

type ChatPartner struct {
	PartnerID   uuid.UUID   `json:"partnerId"`
	LastMessage MessageView `json:"lastMessage"`
	Timestamp   time.Time   `json:"timestamp"`
	UnreadCount int         `json:"unreadCount"`
}

type ConversationType string

const (
	ConversationDirect ConversationType = "direct"
	ConversationRoom   ConversationType = "room"
)

// Conversation элемент общей ленты: собеседник или комната.
type Conversation struct {
	Type        ConversationType `json:"type"`
	ID          uuid.UUID        `json:"id"`
	Name        string           `json:"name"`
	LastMessage *MessageView     `json:"lastMessage,omitempty"`
	Timestamp   time.Time        `json:"timestamp"`
	UnreadCount int              `json:"unreadCount"`
}
