package memory

import (
	"slices"

	"github.com/cwrk-planet/chat-service/internal/domain"
	"github.com/cwrk-planet/chat-service/internal/store"

	"github.com/google/uuid"
)

type (
	MessageStore = Store[domain.Message, store.MessageFilter, store.MessageSortKey]
	RoomStore    = Store[domain.Room, store.RoomFilter, store.RoomSortKey]
)

func NewMessageStore(db *DB) *MessageStore {
	return &MessageStore{
		db:  db,
		tbl: db.messages,
		schema: schema[domain.Message, store.MessageFilter, store.MessageSortKey]{
			entity:  "message",
			id:      func(m domain.Message) uuid.UUID { return m.ID },
			match:   func(f store.MessageFilter, m domain.Message) bool { return f.Match(m) },
			compare: func(k store.MessageSortKey, a, b domain.Message) int { return k.Compare(a, b) },
			clone:   cloneMessage,
			project: func(m domain.Message, _ store.Include) domain.Message { return m },
		},
	}
}

func NewRoomStore(db *DB) *RoomStore {
	return &RoomStore{
		db:  db,
		tbl: db.rooms,
		schema: schema[domain.Room, store.RoomFilter, store.RoomSortKey]{
			entity:  "room",
			id:      func(r domain.Room) uuid.UUID { return r.ID },
			match:   func(f store.RoomFilter, r domain.Room) bool { return f.Match(r) },
			compare: func(k store.RoomSortKey, a, b domain.Room) int { return k.Compare(a, b) },
			clone:   cloneRoom,
			project: func(r domain.Room, inc store.Include) domain.Room {
				if !inc.Has(store.IncludeMembers) {
					r.Members = nil
				}
				return r
			},
			// nil Members значит "не загружены": состав комнаты не трогаем.
			keep: func(updated, current domain.Room) domain.Room {
				if updated.Members == nil {
					updated.Members = slices.Clone(current.Members)
				}
				updated.CreatedAt = current.CreatedAt
				return updated
			},
		},
	}
}

func cloneMessage(m domain.Message) domain.Message {
	if m.ReceiverID != nil {
		v := *m.ReceiverID
		m.ReceiverID = &v
	}
	if m.ChatRoomID != nil {
		v := *m.ChatRoomID
		m.ChatRoomID = &v
	}
	return m
}

func cloneRoom(r domain.Room) domain.Room {
	if r.Members != nil {
		r.Members = slices.Clone(r.Members)
	}
	return r
}
