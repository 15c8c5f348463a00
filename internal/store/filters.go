package store

import (
	"bytes"
	"cmp"
	"slices"
	"strings"

	"github.com/cwrk-planet/chat-service/internal/domain"

	"github.com/google/uuid"
)

// Pair переписка между двумя пользователями в обе стороны.
type Pair struct {
	A, B uuid.UUID
}

// MessageFilter все заданные поля объединяются через AND.
type MessageFilter struct {
	IDs         []uuid.UUID
	SenderID    *uuid.UUID
	NotSenderID *uuid.UUID
	ReceiverID  *uuid.UUID
	ChatRoomID  *uuid.UUID
	IsRead      *bool
	Direct      *bool
	Between     *Pair
	// Involving личные сообщения, где пользователь отправитель или получатель.
	Involving *uuid.UUID
}

func SentBy(id uuid.UUID) MessageFilter     { return MessageFilter{SenderID: &id} }
func NotSentBy(id uuid.UUID) MessageFilter  { return MessageFilter{NotSenderID: &id} }
func ReceivedBy(id uuid.UUID) MessageFilter { return MessageFilter{ReceiverID: &id} }
func InRoom(id uuid.UUID) MessageFilter     { return MessageFilter{ChatRoomID: &id} }
func ReadState(read bool) MessageFilter     { return MessageFilter{IsRead: &read} }
func Between(a, b uuid.UUID) MessageFilter {
	return MessageFilter{Between: &Pair{A: a, B: b}}
}
func DirectInvolving(id uuid.UUID) MessageFilter { return MessageFilter{Involving: &id} }
func MessageIDs(ids ...uuid.UUID) MessageFilter  { return MessageFilter{IDs: ids} }

func (f MessageFilter) Match(m domain.Message) bool {
	if len(f.IDs) > 0 && !slices.Contains(f.IDs, m.ID) {
		return false
	}
	if f.SenderID != nil && m.SenderID != *f.SenderID {
		return false
	}
	if f.NotSenderID != nil && m.SenderID == *f.NotSenderID {
		return false
	}
	if f.ReceiverID != nil && (m.ReceiverID == nil || *m.ReceiverID != *f.ReceiverID) {
		return false
	}
	if f.ChatRoomID != nil && (m.ChatRoomID == nil || *m.ChatRoomID != *f.ChatRoomID) {
		return false
	}
	if f.IsRead != nil && m.IsRead != *f.IsRead {
		return false
	}
	if f.Direct != nil && m.IsDirect() != *f.Direct {
		return false
	}
	if f.Between != nil {
		if m.ReceiverID == nil {
			return false
		}
		ab := m.SenderID == f.Between.A && *m.ReceiverID == f.Between.B
		ba := m.SenderID == f.Between.B && *m.ReceiverID == f.Between.A
		if !ab && !ba {
			return false
		}
	}
	if f.Involving != nil {
		if m.ReceiverID == nil {
			return false
		}
		if m.SenderID != *f.Involving && *m.ReceiverID != *f.Involving {
			return false
		}
	}
	return true
}

type MessageSortKey int

const (
	MessageByID MessageSortKey = iota
	MessageByTimestamp
	MessageBySender
)

func (k MessageSortKey) Compare(a, b domain.Message) int {
	switch k {
	case MessageByTimestamp:
		return a.Timestamp.Compare(b.Timestamp)
	case MessageBySender:
		return CompareIDs(a.SenderID, b.SenderID)
	default:
		return CompareIDs(a.ID, b.ID)
	}
}

type RoomFilter struct {
	IDs          []uuid.UUID
	MemberID     *uuid.UUID
	NameContains string
}

func RoomIDs(ids ...uuid.UUID) RoomFilter { return RoomFilter{IDs: ids} }
func WithMember(id uuid.UUID) RoomFilter  { return RoomFilter{MemberID: &id} }
func NameContains(s string) RoomFilter    { return RoomFilter{NameContains: s} }

func (f RoomFilter) Match(r domain.Room) bool {
	if len(f.IDs) > 0 && !slices.Contains(f.IDs, r.ID) {
		return false
	}
	if f.MemberID != nil && !r.HasMember(*f.MemberID) {
		return false
	}
	if f.NameContains != "" && !strings.Contains(strings.ToLower(r.Name), strings.ToLower(f.NameContains)) {
		return false
	}
	return true
}

type RoomSortKey int

const (
	RoomByID RoomSortKey = iota
	RoomByName
	RoomByCreatedAt
)

func (k RoomSortKey) Compare(a, b domain.Room) int {
	switch k {
	case RoomByName:
		return cmp.Compare(a.Name, b.Name)
	case RoomByCreatedAt:
		return a.CreatedAt.Compare(b.CreatedAt)
	default:
		return CompareIDs(a.ID, b.ID)
	}
}

// CompareIDs побайтовое сравнение, совпадает с порядком uuid в postgres.
func CompareIDs(a, b uuid.UUID) int {
	return bytes.Compare(a[:], b[:])
}
