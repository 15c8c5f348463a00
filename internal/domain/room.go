package domain

import (
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
)

const MaxRoomNameLength = 100

type Room struct {
	ID        uuid.UUID `db:"id"`
	Name      string    `db:"name"`
	CreatedAt time.Time `db:"created_at"`

	// Members заполняется только при store.IncludeMembers.
	Members []uuid.UUID
}

type Membership struct {
	RoomID   uuid.UUID `db:"room_id"`
	UserID   uuid.UUID `db:"user_id"`
	JoinedAt time.Time `db:"joined_at"`
}

func NewRoom(name string, members []uuid.UUID, now time.Time) Room {
	r := Room{
		ID:        uuid.New(),
		Name:      strings.TrimSpace(name),
		CreatedAt: now.UTC(),
	}
	r.AddMembers(members...)
	return r
}

func (r *Room) HasMember(userID uuid.UUID) bool {
	return slices.Contains(r.Members, userID)
}

// AddMembers добавляет только новых участников и возвращает их в порядке передачи.
func (r *Room) AddMembers(ids ...uuid.UUID) []uuid.UUID {
	var added []uuid.UUID
	for _, id := range ids {
		if id == uuid.Nil || r.HasMember(id) {
			continue
		}
		r.Members = append(r.Members, id)
		added = append(added, id)
	}
	return added
}

// RemoveMember false, если пользователь не состоял в комнате.
func (r *Room) RemoveMember(userID uuid.UUID) bool {
	i := slices.Index(r.Members, userID)
	if i < 0 {
		return false
	}
	r.Members = slices.Delete(r.Members, i, i+1)
	return true
}

type RoomView struct {
	ID          uuid.UUID    `json:"id"`
	Name        string       `json:"name"`
	Members     []uuid.UUID  `json:"userIds"`
	CreatedAt   time.Time    `json:"createdAt"`
	LastMessage *MessageView `json:"lastMessage,omitempty"`
}

func NewRoomView(r Room) RoomView {
	members := r.Members
	if members == nil {
		members = []uuid.UUID{}
	}
	return RoomView{
		ID:        r.ID,
		Name:      r.Name,
		Members:   members,
		CreatedAt: r.CreatedAt,
	}
}

// RoomDetails комната вместе со страницей сообщений.
type RoomDetails struct {
	RoomView
	Messages PagedResult[MessageView] `json:"messages"`
}
